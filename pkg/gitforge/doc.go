// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gitforge defines the forge-neutral capability set this module
// exposes, independent of any single hosted Git provider: the Adapter
// interface, the shared data model (RepoCoordinate, PullRequest,
// Webhook, RepoSummary), and the closed ErrorKind taxonomy callers
// switch on instead of inspecting forge-specific HTTP responses.
package gitforge
