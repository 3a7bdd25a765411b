// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitforge

import "context"

// Adapter is the capability interface every forge package in
// pkg/forges/* implements. It replaces an inheritance-style GitBase →
// GitHub/GitLab/… hierarchy with a single interface plus one concrete
// value type per forge; shared helpers (URL building, credential
// formatting, retry kernel) live in free functions or a common embedded
// value, never in a base class.
type Adapter interface {
	// GetType returns the forge this adapter is bound to.
	GetType() ForgeKind

	// GetConfig returns a defensive copy of the adapter's coordinate.
	GetConfig() RepoCoordinate

	// GetRepoInfo reads the bound repository's summary.
	GetRepoInfo(ctx context.Context) (*RepoSummary, error)

	// ListRepos lists the URLs of every repo in the bound org/user scope.
	ListRepos(ctx context.Context) ([]string, error)

	// CreateRepo creates a repository and returns an adapter bound to it.
	CreateRepo(ctx context.Context, opts CreateRepoOptions) (Adapter, error)

	// DeleteRepo deletes the bound repository and returns an adapter
	// bound to the parent org/user scope.
	DeleteRepo(ctx context.Context) (Adapter, error)

	// ListFiles lists files on the configured branch.
	ListFiles(ctx context.Context) ([]FileEntry, error)

	// GetFileContents reads one file's bytes at path (or url, if set).
	GetFileContents(ctx context.Context, path, url string) ([]byte, error)

	// GetDefaultBranch returns the repository's default branch name.
	GetDefaultBranch(ctx context.Context) (string, error)

	// GetBranches lists the repository's branches.
	GetBranches(ctx context.Context) ([]BranchRef, error)

	// DeleteBranch deletes a branch by name.
	DeleteBranch(ctx context.Context, branch string) error

	// GetPullRequest reads one pull request by number.
	GetPullRequest(ctx context.Context, pullNumber int) (*PullRequest, error)

	// CreatePullRequest opens a new pull request.
	CreatePullRequest(ctx context.Context, opts CreatePullRequestOptions) (*PullRequest, error)

	// MergePullRequest attempts a single merge under the kernel retry
	// policy only — it never rebases.
	MergePullRequest(ctx context.Context, opts MergePullRequestOptions) (string, error)

	// UpdatePullRequestBranch asks the forge to update the PR's source
	// branch against its target. Semantics vary by forge (some rebase,
	// some merge); best-effort, the orchestrator never relies on it.
	UpdatePullRequestBranch(ctx context.Context, pullNumber int) error

	// UpdateAndMergePullRequest runs the full Polled/Rebased/Waited/
	// MergeAttempted loop described by the merge orchestrator.
	UpdateAndMergePullRequest(ctx context.Context, opts UpdateAndMergeOptions) (string, error)

	// RebaseBranch runs the rebaseBranch subsidiary state machine and
	// reports whether source was changed and pushed.
	RebaseBranch(ctx context.Context, opts RebaseBranchOptions) (bool, error)

	// GetWebhooks lists the repository's webhooks.
	GetWebhooks(ctx context.Context) ([]Webhook, error)

	// CreateWebhook registers a new webhook and returns its id.
	CreateWebhook(ctx context.Context, webhookURL string, events []string) (int64, error)

	// Clone acquires a local workspace with the repository cloned into
	// it, credentials baked into the effective remote URL.
	Clone(ctx context.Context, opts CloneOptions) (*ClonedWorkspace, func(), error)

	// BuildWebhookParams returns the header selectors a CI template
	// uses to recognize an inbound delivery for event. The returned
	// record has no path selector.
	BuildWebhookParams(event GitEvent) WebhookParams
}

// ClonedWorkspace is the handle Clone returns: the local directory the
// repository was cloned into, plus the coordinate it was cloned from.
type ClonedWorkspace struct {
	Path       string
	Coordinate RepoCoordinate
}
