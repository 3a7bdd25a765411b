// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package forgekind ties the pieces together: parse a repository
// coordinate, identify which forge hosts it when that isn't already
// known, and construct the bound Adapter for it. It is the module's
// single public entry point — callers should rarely need to import any
// pkg/forges/* package directly.
package forgekind

import (
	"context"
	"fmt"

	"github.com/archmagece/gitforge/internal/httpkernel"
	"github.com/archmagece/gitforge/pkg/coordinate"
	"github.com/archmagece/gitforge/pkg/detector"
	"github.com/archmagece/gitforge/pkg/forges/azure"
	"github.com/archmagece/gitforge/pkg/forges/bitbucket"
	"github.com/archmagece/gitforge/pkg/forges/gitea"
	"github.com/archmagece/gitforge/pkg/forges/github"
	"github.com/archmagece/gitforge/pkg/forges/gitlab"
	"github.com/archmagece/gitforge/pkg/forges/gogs"
	"github.com/archmagece/gitforge/pkg/gitforge"
)

// ParseURL parses a repository URL (git@host:owner/repo,
// https://host/owner/repo[.git]#branch[:target], or Azure's
// dev.azure.com/{org}/{project}/_git/{repo} form) into a RepoCoordinate,
// then resolves it to a bound Adapter via New.
func ParseURL(ctx context.Context, rawURL string, creds gitforge.Credentials) (gitforge.Adapter, gitforge.RepoCoordinate, error) {
	coord, err := coordinate.Parse(rawURL)
	if err != nil {
		return nil, gitforge.RepoCoordinate{}, err
	}
	coord.Username = creds.Username
	coord.Password = creds.Password
	coord.CACert = creds.CACert

	adapter, err := New(ctx, coord)
	return adapter, coord, err
}

// New resolves coord to a bound Adapter. When coord.Host matches a
// well-known forge domain, no network probe is required; otherwise it
// delegates to detector.Detect before constructing the adapter, per
// spec's forge-identification note.
func New(ctx context.Context, coord gitforge.RepoCoordinate) (gitforge.Adapter, error) {
	kind, err := identify(ctx, coord)
	if err != nil {
		return nil, err
	}
	return build(ctx, kind, coord)
}

// NewForKind constructs an Adapter for an already-known forge kind,
// skipping detection entirely. Useful when the caller already recorded
// which forge a host is (e.g. from a prior ParseURL/New call) and wants
// to avoid a redundant probe.
func NewForKind(ctx context.Context, kind gitforge.ForgeKind, coord gitforge.RepoCoordinate) (gitforge.Adapter, error) {
	return build(ctx, kind, coord)
}

func identify(ctx context.Context, coord gitforge.RepoCoordinate) (gitforge.ForgeKind, error) {
	switch coord.Host {
	case "github.com":
		return gitforge.KindGitHub, nil
	case "bitbucket.org":
		return gitforge.KindBitbucket, nil
	case "dev.azure.com":
		return gitforge.KindAzure, nil
	}

	httpClient, err := httpkernel.Build(httpkernel.Config{
		Username: coord.Username,
		Password: coord.Password,
		CACert:   coord.CACert,
	})
	if err != nil {
		return "", err
	}
	return detector.Detect(ctx, httpClient, coord.Host, coord.Username)
}

func build(ctx context.Context, kind gitforge.ForgeKind, coord gitforge.RepoCoordinate) (gitforge.Adapter, error) {
	switch kind {
	case gitforge.KindGitHub, gitforge.KindGHE:
		return github.New(coord)
	case gitforge.KindGitLab:
		return gitlab.New(coord)
	case gitforge.KindGitea:
		return gitea.New(coord)
	case gitforge.KindGogs:
		return gogs.New(coord)
	case gitforge.KindBitbucket:
		return bitbucket.New(coord)
	case gitforge.KindAzure:
		// azure.New needs ctx to build its SDK clients, unlike every
		// other forge's New(coord) — the SDK's client constructors take
		// a context for their own connection probing.
		return azure.New(ctx, coord)
	default:
		return nil, gitforge.New(gitforge.KindFatal, kind, fmt.Sprintf("unsupported forge kind %q", kind), nil)
	}
}
