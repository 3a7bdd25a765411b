// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitforge

import (
	"time"

	"github.com/archmagece/gitforge/pkg/resolver"
)

// ForgeKind is the closed set of forges an Adapter can be bound to.
type ForgeKind string

const (
	KindGitHub    ForgeKind = "github"
	KindGHE       ForgeKind = "ghe"
	KindGitLab    ForgeKind = "gitlab"
	KindGogs      ForgeKind = "gogs"
	KindGitea     ForgeKind = "gitea"
	KindBitbucket ForgeKind = "bitbucket"
	KindAzure     ForgeKind = "azure"
)

// RepoCoordinate identifies a repository, or an organization scope when
// Repo is empty. It is immutable once an adapter is built on it; a
// sibling coordinate for a different repo is produced by cloning and
// overriding fields, never by mutating in place.
type RepoCoordinate struct {
	Protocol string // "http" or "https"
	Host     string
	Owner    string
	Repo     string // empty for org-scope coordinates
	Project  string // Azure DevOps only
	Branch   string

	// TargetBranch is the optional ":target" segment of a coordinate's
	// "#source:target" fragment, consumed by pull-request commands as
	// the merge/base branch; empty when the fragment had no target.
	TargetBranch string

	Username string
	Password string
	CACert   string
}

// Clone returns a copy of the coordinate, so callers can override fields
// on a sibling coordinate without mutating the original.
func (c RepoCoordinate) Clone() RepoCoordinate {
	return c
}

// Credentials carries the authentication material passed by reference
// into every adapter instance. Never mutated after construction.
type Credentials struct {
	Username string
	Password string
	CACert   string
}

// PullRequestStatus is normalized across forges per the per-adapter
// mapping tables in each forges/* package.
type PullRequestStatus string

const (
	PRNotSet     PullRequestStatus = "NotSet"
	PRActive     PullRequestStatus = "Active"
	PRAbandoned  PullRequestStatus = "Abandoned"
	PRCompleted  PullRequestStatus = "Completed"
	PRConflicts  PullRequestStatus = "Conflicts"
	PRBlocked    PullRequestStatus = "Blocked"
)

// PullRequest is constructed from a forge read and never persisted by
// this module.
type PullRequest struct {
	PullNumber   int
	SourceBranch string
	TargetBranch string
	Status       PullRequestStatus
	MergeStatus  string // forge-native string, diagnostic only
	HasConflicts bool
}

// Webhook describes an HTTP webhook subscription on a repository.
type Webhook struct {
	ID     int64
	Name   string
	Active bool
	Events []string
	Config WebhookConfig
}

// WebhookConfig is the delivery configuration of a Webhook.
type WebhookConfig struct {
	ContentType string
	URL         string
	InsecureSSL bool
}

// RepoSummary is the normalized shape Adapter.GetRepoInfo returns
// across every forge.
type RepoSummary struct {
	ID            int64
	Slug          string
	HTTPURL       string
	Name          string
	Description   string
	IsPrivate     bool
	DefaultBranch string
}

// GitEvent is the forge-neutral event name passed to
// Adapter.BuildWebhookParams, e.g. "push", "pull_request".
type GitEvent string

// WebhookParams is the header selector record a CI template uses to
// recognize and validate an inbound webhook delivery for GitEvent. It
// carries no path selector.
type WebhookParams struct {
	HeaderName  string
	EventValue  string
	SignatureHeader string
}

// CreateRepoOptions configures Adapter.CreateRepo.
type CreateRepoOptions struct {
	Name       string
	PrivateRepo bool

	// AutoInit defaults to true regardless of the zero value, matching
	// forge parity with the original source's `options.autoInit ||
	// true`. Set AutoInitSet with AutoInit=false to opt out explicitly.
	AutoInit    bool
	AutoInitSet bool
}

// ResolvedAutoInit returns whether the new repo should be initialized
// with a first commit, applying the always-true-unless-explicitly-false
// default documented on CreateRepoOptions.
func (o CreateRepoOptions) ResolvedAutoInit() bool {
	if o.AutoInitSet {
		return o.AutoInit
	}
	return true
}

// MergeMethod is the forge-neutral merge method, translated per-forge in
// each forges/* package.
type MergeMethod string

const (
	MergeCommit MergeMethod = "merge"
	MergeSquash MergeMethod = "squash"
	MergeRebase MergeMethod = "rebase"
)

// CreatePullRequestOptions configures Adapter.CreatePullRequest.
type CreatePullRequestOptions struct {
	Title        string
	SourceBranch string
	TargetBranch string
	Draft        bool
	Body         string
}

// MergePullRequestOptions configures Adapter.MergePullRequest and the
// single merge-attempt step inside UpdateAndMergePullRequest.
type MergePullRequestOptions struct {
	PullNumber    int
	Method        MergeMethod
	CommitMessage string

	// DeleteSourceBranch, when true, makes UpdateAndMergePullRequest
	// delete the source branch after a successful merge on a best-effort
	// basis (errors are swallowed). Adapter.MergePullRequest ignores it.
	DeleteSourceBranch bool
}

// UpdateAndMergeOptions configures
// Adapter.UpdateAndMergePullRequest.
type UpdateAndMergeOptions struct {
	MergePullRequestOptions

	// Resolver is used by the rebase-and-loop steps. A nil Resolver
	// falls back to resolver.Default, which forces UnresolvedConflicts
	// on any conflict.
	Resolver resolver.Resolver

	// WaitForBlocked is a time-text budget ("1h30m", "90m", …) for how
	// long to tolerate a Blocked PR state before giving up.
	WaitForBlocked string

	// RetryEvaluator, if set, is OR-composed with the built-in
	// rebase-triggering classification in step 5 of the orchestrator.
	RetryEvaluator func(err error) bool
}

// RebaseBranchOptions configures Adapter.RebaseBranch.
type RebaseBranchOptions struct {
	SourceBranch string
	TargetBranch string
	Resolver     resolver.Resolver
}

// CloneOptions configures Adapter.Clone.
type CloneOptions struct {
	LocalDir    string
	UserConfig  map[string]string
	ExtraConfig map[string]string
}

// BranchRef is a single entry from Adapter.GetBranches.
type BranchRef struct {
	Name string
}

// FileEntry is a single entry from Adapter.ListFiles.
type FileEntry struct {
	Path string
	URL  string
}

// RetryPolicy is the caller-overridable half of the composite retry
// decision described in the HTTP kernel.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}
