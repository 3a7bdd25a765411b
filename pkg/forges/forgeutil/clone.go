// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package forgeutil holds the small pieces of Adapter.Clone behavior
// that are identical across every forges/* package, so each adapter
// wires pkg/workspace the same way instead of repeating the
// acquire-then-clone boilerplate.
package forgeutil

import (
	"context"

	"github.com/archmagece/gitforge/pkg/coordinate"
	"github.com/archmagece/gitforge/pkg/gitforge"
	"github.com/archmagece/gitforge/pkg/workspace"
)

// Clone acquires a workspace for branch and clones coord's effective
// (credential-baked) URL into it.
func Clone(ctx context.Context, coord gitforge.RepoCoordinate, branch string, opts gitforge.CloneOptions) (*gitforge.ClonedWorkspace, func(), error) {
	var wsOpts []workspace.Option
	if opts.LocalDir != "" {
		wsOpts = append(wsOpts, workspace.WithBaseDir(opts.LocalDir))
	}
	if len(opts.ExtraConfig) > 0 {
		var env []string
		for k, v := range opts.ExtraConfig {
			env = append(env, k+"="+v)
		}
		wsOpts = append(wsOpts, workspace.WithEnv(env))
	}

	ws, cleanup, err := workspace.Acquire(ctx, branch, wsOpts...)
	if err != nil {
		return nil, cleanup, err
	}

	cloneURL := coordinate.EffectiveCloneURL(coord)
	if err := ws.Clone(ctx, workspace.CloneOptions{URL: cloneURL, CACertPath: coord.CACert}); err != nil {
		return nil, cleanup, err
	}

	return &gitforge.ClonedWorkspace{Path: ws.Path, Coordinate: coord}, cleanup, nil
}
