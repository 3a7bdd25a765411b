// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gitforge provides a uniform client for hosted Git forges —
// GitHub, GitHub Enterprise, GitLab, Gitea, Gogs, Bitbucket Cloud, and
// Azure DevOps — behind one capability interface (pkg/gitforge.Adapter),
// plus a forge-neutral pull-request merge orchestrator
// (pkg/orchestrator) that rebases a source branch onto its target and
// resolves routine conflicts automatically.
//
// Callers normally start at pkg/forgekind.New, which detects a forge
// from a repository URL or an explicit ForgeKind and returns the bound
// Adapter for it:
//
//	coord, err := coordinate.Parse(repoURL)
//	adapter, err := forgekind.New(ctx, coord)
//	pr, err := adapter.UpdateAndMergePullRequest(ctx, opts)
package gitforge

import "runtime"

// Version information. These values can be overridden at build time
// using -ldflags, e.g.:
//
//	go build -ldflags "-X github.com/archmagece/gitforge.GitCommit=$(git rev-parse HEAD)"
var (
	// Version is the current library version following semantic versioning.
	Version = "0.1.0"

	// GitCommit is the git commit SHA of the build.
	GitCommit = "unknown"

	// BuildDate is the date the library was built.
	BuildDate = "unknown"
)

// VersionInfo returns version, commit, build date, and Go toolchain
// version as a map, suitable for embedding in diagnostics output.
func VersionInfo() map[string]string {
	return map[string]string{
		"version":   Version,
		"gitCommit": GitCommit,
		"buildDate": BuildDate,
		"goVersion": runtime.Version(),
	}
}
