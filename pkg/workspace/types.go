// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package workspace

import "github.com/archmagece/gitforge/internal/parser"

// Status represents the working tree and staging area status of a
// workspace, parsed from "git status --porcelain". It is an alias of
// parser.Status so that the porcelain-format parsing stays in one place.
type Status = parser.Status

// RenamedFile represents a file that has been renamed.
type RenamedFile = parser.RenamedFile

// CloneOptions configures Workspace.Clone.
type CloneOptions struct {
	// URL is the repository URL to clone (required).
	URL string

	// Depth limits the clone depth. 0 means full clone.
	Depth int

	// CACertPath, if set, is written into the clone's local config as
	// http.sslCAInfo so subsequent fetch/push operations trust it.
	CACertPath string

	// Env is not read by Clone: the clone subprocess, like every other
	// git invocation in the workspace, gets the environment passed to
	// Acquire through WithEnv.
	Env []string
}

// Option configures Acquire.
type Option func(*options)

type options struct {
	baseDir string
	env     []string
}

// WithBaseDir overrides the default /tmp/repo base directory. Primarily
// useful for tests that want a disposable directory under t.TempDir().
func WithBaseDir(dir string) Option {
	return func(o *options) {
		o.baseDir = dir
	}
}

// WithEnv sets environment variables passed to every git invocation in the
// acquired workspace (credential helpers, GIT_SSL_CAINFO, and similar).
func WithEnv(env []string) Option {
	return func(o *options) {
		o.env = env
	}
}
