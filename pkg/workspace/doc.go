// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package workspace manages temporary local clones used by the merge
// orchestrator's rebase-and-push loop. Every Workspace is single-owner for
// the duration of one rebase attempt and is always removed afterwards,
// regardless of outcome.
package workspace
