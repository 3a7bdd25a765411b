// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package resolver provides pluggable conflict-resolution strategies for
// the merge orchestrator's rebase loop. A Resolver is a plain function
// value; composing strategies means wrapping one Resolver with another,
// not subclassing.
package resolver

import (
	"context"

	"github.com/archmagece/gitforge/pkg/workspace"
)

// Resolution is the outcome of running a Resolver over one batch of
// conflicted files.
type Resolution struct {
	// ResolvedConflicts are the files the resolver successfully rewrote
	// in the working tree. The orchestrator stages and commits each one
	// via workspace.ResolveFile.
	ResolvedConflicts []string

	// ConflictErrors holds any files the resolver tried and failed to
	// resolve. A non-empty slice here always forces
	// ConflictResolutionFailed upstream, regardless of ResolvedConflicts.
	ConflictErrors []error
}

// Resolver attempts to resolve a batch of conflicted files in ws. It
// returns the subset it resolved (written to the working tree, neither
// staged nor committed — the orchestrator stages and commits them via
// workspace.ResolveFile) and any explicit
// failures.
type Resolver func(ctx context.Context, ws *workspace.Workspace, conflicted []string) (Resolution, error)

// Default is the resolver used when the caller supplies none. It leaves
// every file unresolved, which forces workspace.ErrUnresolvedConflicts
// whenever any conflict is present — matching the behavior of the
// original "resolver that does nothing."
func Default(_ context.Context, _ *workspace.Workspace, _ []string) (Resolution, error) {
	return Resolution{}, nil
}
