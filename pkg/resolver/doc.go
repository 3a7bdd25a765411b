// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package resolver provides conflict-resolution strategies consumed by
// pkg/orchestrator's rebase loop: Default (forces UnresolvedConflicts),
// Union (keep-both via git merge-file --union), and Kustomize (merge
// kustomization.yaml resource lists).
package resolver
