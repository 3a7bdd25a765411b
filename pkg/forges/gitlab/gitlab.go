// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gitlab implements gitforge.Adapter for GitLab (gitlab.com and
// self-managed instances alike — they share one API shape, only the
// base URL differs).
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xanzy/go-gitlab"

	"github.com/archmagece/gitforge/internal/httpkernel"
	"github.com/archmagece/gitforge/pkg/coordinate"
	"github.com/archmagece/gitforge/pkg/forges/forgeutil"
	"github.com/archmagece/gitforge/pkg/gitforge"
	"github.com/archmagece/gitforge/pkg/orchestrator"
)

const userAgent = "gitforge/1.0"

// mergeStatusPollInterval is how long awaitMergeStatusSettled waits
// between GetMergeRequest polls while merge_status is still "checking".
const mergeStatusPollInterval = 2 * time.Second

// Adapter implements gitforge.Adapter for GitLab.
type Adapter struct {
	coord gitforge.RepoCoordinate
	proj  string // "owner/repo" project path
	client *gitlab.Client
	orch  *orchestrator.Orchestrator

	// sleep paces awaitMergeStatusSettled's poll loop; tests override it
	// to avoid waiting in real time.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an Adapter bound to coord. An empty coord.Host defaults to
// gitlab.com; any other host is treated as a self-managed instance.
func New(coord gitforge.RepoCoordinate) (*Adapter, error) {
	httpClient, err := httpkernel.Build(httpkernel.Config{UserAgent: userAgent, CACert: coord.CACert})
	if err != nil {
		return nil, err
	}

	clientOpts := []gitlab.ClientOptionFunc{gitlab.WithHTTPClient(httpClient)}
	if coord.Host != "" && coord.Host != "gitlab.com" {
		clientOpts = append(clientOpts, gitlab.WithBaseURL(fmt.Sprintf("https://%s", coord.Host)))
	}

	client, err := gitlab.NewClient(coord.Password, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gitlab: building client: %w", err)
	}

	a := &Adapter{
		coord:  coord,
		proj:   strings.TrimSuffix(fmt.Sprintf("%s/%s", coord.Owner, coord.Repo), "/"),
		client: client,
		sleep:  realSleep,
	}
	a.orch = orchestrator.New(a, cloneURL(coord))
	return a, nil
}

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cloneURL(coord gitforge.RepoCoordinate) string {
	return coordinate.EffectiveCloneURL(coord)
}

func (a *Adapter) GetType() gitforge.ForgeKind         { return gitforge.KindGitLab }
func (a *Adapter) GetConfig() gitforge.RepoCoordinate { return a.coord.Clone() }

func classifyErr(a *Adapter, resp *gitlab.Response, op string, err error) error {
	if resp == nil {
		return gitforge.New(gitforge.KindRetryable, a.GetType(), op, err)
	}
	var gfErr *gitforge.Error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		gfErr = gitforge.New(gitforge.KindBadCredentials, a.GetType(), op, err)
	case http.StatusForbidden:
		gfErr = gitforge.New(gitforge.KindInsufficientPermissions, a.GetType(), op, err)
	case http.StatusNotFound:
		gfErr = gitforge.New(gitforge.KindRepoNotFound, a.GetType(), op, err)
	default:
		gfErr = gitforge.New(gitforge.KindFatal, a.GetType(), op, err)
	}
	gfErr.HTTPStatus = resp.StatusCode
	return gfErr
}

// GetRepoInfo reads the bound project's summary.
func (a *Adapter) GetRepoInfo(ctx context.Context) (*gitforge.RepoSummary, error) {
	project, resp, err := a.client.Projects.GetProject(a.proj, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyErr(a, resp, "getting project", err)
	}
	return convertProject(project), nil
}

// ListRepos lists the URLs of every project under the bound group.
func (a *Adapter) ListRepos(ctx context.Context) ([]string, error) {
	var urls []string
	opts := &gitlab.ListGroupProjectsOptions{
		ListOptions:      gitlab.ListOptions{PerPage: 100},
		IncludeSubGroups: gitlab.Ptr(true),
	}
	for {
		projects, resp, err := a.client.Groups.ListGroupProjects(a.coord.Owner, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classifyErr(a, resp, "listing group projects", err)
		}
		for _, p := range projects {
			urls = append(urls, p.WebURL)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return urls, nil
}

// CreateRepo creates a project under the bound group. When Owner names
// no group, the project is created in the authenticated user's
// namespace.
func (a *Adapter) CreateRepo(ctx context.Context, opts gitforge.CreateRepoOptions) (gitforge.Adapter, error) {
	visibility := gitlab.PublicVisibility
	if opts.PrivateRepo {
		visibility = gitlab.PrivateVisibility
	}
	req := &gitlab.CreateProjectOptions{
		Name:                 gitlab.Ptr(opts.Name),
		Visibility:           gitlab.Ptr(visibility),
		InitializeWithReadme: gitlab.Ptr(opts.ResolvedAutoInit()),
	}
	if group, _, gErr := a.client.Groups.GetGroup(a.coord.Owner, nil, gitlab.WithContext(ctx)); gErr == nil && group != nil {
		req.NamespaceID = gitlab.Ptr(group.ID)
	}

	project, resp, err := a.client.Projects.CreateProject(req, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyErr(a, resp, "creating project", err)
	}

	child := a.coord.Clone()
	child.Repo = opts.Name
	next := &Adapter{coord: child, proj: project.PathWithNamespace, client: a.client}
	next.orch = orchestrator.New(next, cloneURL(child))
	return next, nil
}

// DeleteRepo deletes the bound project and returns an adapter bound to
// the parent group scope.
func (a *Adapter) DeleteRepo(ctx context.Context) (gitforge.Adapter, error) {
	resp, err := a.client.Projects.DeleteProject(a.proj, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyErr(a, resp, "deleting project", err)
	}

	parent := a.coord.Clone()
	parent.Repo = ""
	next := &Adapter{coord: parent, client: a.client}
	next.orch = orchestrator.New(next, "")
	return next, nil
}

// ListFiles lists files on the configured branch via the repository
// tree API.
func (a *Adapter) ListFiles(ctx context.Context) ([]gitforge.FileEntry, error) {
	branch := a.coord.Branch
	if branch == "" {
		var err error
		branch, err = a.GetDefaultBranch(ctx)
		if err != nil {
			return nil, err
		}
	}

	var entries []gitforge.FileEntry
	opts := &gitlab.ListTreeOptions{
		Ref:       gitlab.Ptr(branch),
		Recursive: gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	for {
		tree, resp, err := a.client.Repositories.ListTree(a.proj, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classifyErr(a, resp, "listing tree", err)
		}
		for _, item := range tree {
			if item.Type != "blob" {
				continue
			}
			entries = append(entries, gitforge.FileEntry{Path: item.Path})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return entries, nil
}

// GetFileContents reads one file's raw bytes at path.
func (a *Adapter) GetFileContents(ctx context.Context, path, url string) ([]byte, error) {
	if url != "" {
		return nil, fmt.Errorf("gitlab: fetching file contents by raw url is not supported, use path")
	}
	ref := a.coord.Branch
	if ref == "" {
		var err error
		ref, err = a.GetDefaultBranch(ctx)
		if err != nil {
			return nil, err
		}
	}

	raw, resp, err := a.client.RepositoryFiles.GetRawFile(a.proj, path, &gitlab.GetRawFileOptions{Ref: gitlab.Ptr(ref)}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyErr(a, resp, "reading raw file "+path, err)
	}
	return raw, nil
}

// GetDefaultBranch returns the project's default branch name.
func (a *Adapter) GetDefaultBranch(ctx context.Context) (string, error) {
	project, resp, err := a.client.Projects.GetProject(a.proj, nil, gitlab.WithContext(ctx))
	if err != nil {
		return "", classifyErr(a, resp, "reading default branch", err)
	}
	return project.DefaultBranch, nil
}

// GetBranches lists the project's branches.
func (a *Adapter) GetBranches(ctx context.Context) ([]gitforge.BranchRef, error) {
	var refs []gitforge.BranchRef
	opts := &gitlab.ListBranchesOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		branches, resp, err := a.client.Branches.ListBranches(a.proj, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classifyErr(a, resp, "listing branches", err)
		}
		for _, b := range branches {
			refs = append(refs, gitforge.BranchRef{Name: b.Name})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return refs, nil
}

// DeleteBranch deletes a branch by name.
func (a *Adapter) DeleteBranch(ctx context.Context, branch string) error {
	resp, err := a.client.Branches.DeleteBranch(a.proj, branch, gitlab.WithContext(ctx))
	if err != nil {
		return classifyErr(a, resp, "deleting branch "+branch, err)
	}
	return nil
}

// GetPullRequest reads one merge request by IID, normalizing its
// status per spec's GitLab mapping table.
func (a *Adapter) GetPullRequest(ctx context.Context, pullNumber int) (*gitforge.PullRequest, error) {
	mr, resp, err := a.client.MergeRequests.GetMergeRequest(a.proj, pullNumber, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyErr(a, resp, fmt.Sprintf("reading merge request %d", pullNumber), err)
	}
	return &gitforge.PullRequest{
		PullNumber:   mr.IID,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		Status:       mapMergeRequestStatus(mr),
		MergeStatus:  mr.MergeStatus,
		HasConflicts: mr.HasConflicts,
	}, nil
}

// mapMergeRequestStatus implements spec's bit-exact GitLab mapping:
// opened + merge_status=cannot_be_merged → Conflicts, else Active.
// closed + merged_at set → Completed, else Abandoned.
func mapMergeRequestStatus(mr *gitlab.MergeRequest) gitforge.PullRequestStatus {
	switch mr.State {
	case "opened":
		if mr.MergeStatus == "cannot_be_merged" {
			return gitforge.PRConflicts
		}
		return gitforge.PRActive
	case "closed", "merged":
		if mr.MergedAt != nil {
			return gitforge.PRCompleted
		}
		return gitforge.PRAbandoned
	default:
		return gitforge.PRNotSet
	}
}

// CreatePullRequest opens a new merge request.
func (a *Adapter) CreatePullRequest(ctx context.Context, opts gitforge.CreatePullRequestOptions) (*gitforge.PullRequest, error) {
	req := &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(opts.Title),
		SourceBranch: gitlab.Ptr(opts.SourceBranch),
		TargetBranch: gitlab.Ptr(opts.TargetBranch),
		Description:  gitlab.Ptr(opts.Body),
	}
	mr, resp, err := a.client.MergeRequests.CreateMergeRequest(a.proj, req, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyErr(a, resp, "creating merge request", err)
	}
	return &gitforge.PullRequest{
		PullNumber:   mr.IID,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		Status:       mapMergeRequestStatus(mr),
	}, nil
}

// MergePullRequest attempts a single merge. Per spec's GitLab note, the
// merge_status must be polled until it is no longer "checking" and
// must equal "can_be_merged" before the merge call is issued.
func (a *Adapter) MergePullRequest(ctx context.Context, opts gitforge.MergePullRequestOptions) (string, error) {
	if err := a.awaitMergeStatusSettled(ctx, opts.PullNumber); err != nil {
		return "", err
	}

	req := &gitlab.AcceptMergeRequestOptions{
		MergeCommitMessage: gitlab.Ptr(opts.CommitMessage),
		Squash:             gitlab.Ptr(opts.Method == gitforge.MergeSquash),
	}
	mr, resp, err := a.client.MergeRequests.AcceptMergeRequest(a.proj, opts.PullNumber, req, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusMethodNotAllowed {
			ge := gitforge.New(gitforge.KindMergeConflict, a.GetType(), err.Error(), err)
			ge.PullNumber = opts.PullNumber
			return "", ge
		}
		return "", classifyErr(a, resp, "merging merge request", err)
	}
	return fmt.Sprintf("merged %s into %s", mr.SourceBranch, mr.TargetBranch), nil
}

// awaitMergeStatusSettled polls GetMergeRequest until merge_status is
// no longer "checking", then requires "can_be_merged".
func (a *Adapter) awaitMergeStatusSettled(ctx context.Context, pullNumber int) error {
	for {
		mr, resp, err := a.client.MergeRequests.GetMergeRequest(a.proj, pullNumber, nil, gitlab.WithContext(ctx))
		if err != nil {
			return classifyErr(a, resp, "polling merge status", err)
		}
		if mr.MergeStatus != "checking" {
			if mr.MergeStatus != "can_be_merged" {
				ge := gitforge.New(gitforge.KindMergeConflict, a.GetType(), "merge_status is "+mr.MergeStatus, nil)
				ge.PullNumber = pullNumber
				return ge
			}
			return nil
		}
		if err := a.sleep(ctx, mergeStatusPollInterval); err != nil {
			return err
		}
	}
}

// UpdatePullRequestBranch is not meaningfully supported by GitLab's
// API (there is no "update branch" endpoint analogous to GitHub's);
// best-effort no-op, matching spec's documented GitLab behavior of
// relying on rebaseBranch instead.
func (a *Adapter) UpdatePullRequestBranch(ctx context.Context, pullNumber int) error {
	return nil
}

// UpdateAndMergePullRequest runs the full merge orchestrator loop.
func (a *Adapter) UpdateAndMergePullRequest(ctx context.Context, opts gitforge.UpdateAndMergeOptions) (string, error) {
	return a.orch.UpdateAndMergePullRequest(ctx, opts)
}

// RebaseBranch runs the rebaseBranch subsidiary state machine.
func (a *Adapter) RebaseBranch(ctx context.Context, opts gitforge.RebaseBranchOptions) (bool, error) {
	return a.orch.RebaseBranch(ctx, opts)
}

// GetWebhooks lists the project's webhooks.
func (a *Adapter) GetWebhooks(ctx context.Context) ([]gitforge.Webhook, error) {
	hooks, resp, err := a.client.Projects.ListProjectHooks(a.proj, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyErr(a, resp, "listing webhooks", err)
	}
	var out []gitforge.Webhook
	for _, h := range hooks {
		out = append(out, gitforge.Webhook{
			ID:     int64(h.ID),
			Active: true,
			Config: gitforge.WebhookConfig{URL: h.URL, InsecureSSL: !h.EnableSSLVerification},
		})
	}
	return out, nil
}

// CreateWebhook registers a new webhook and returns its id.
func (a *Adapter) CreateWebhook(ctx context.Context, webhookURL string, events []string) (int64, error) {
	req := &gitlab.AddProjectHookOptions{URL: gitlab.Ptr(webhookURL)}
	for _, e := range events {
		switch e {
		case "push":
			req.PushEvents = gitlab.Ptr(true)
		case "merge_request", "pull_request":
			req.MergeRequestsEvents = gitlab.Ptr(true)
		}
	}
	hook, resp, err := a.client.Projects.AddProjectHook(a.proj, req, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return 0, gitforge.New(gitforge.KindWebhookAlreadyExists, a.GetType(), "webhook already exists", err)
		}
		return 0, classifyErr(a, resp, "creating webhook", err)
	}
	return int64(hook.ID), nil
}

// Clone acquires a local workspace with the project cloned into it.
func (a *Adapter) Clone(ctx context.Context, opts gitforge.CloneOptions) (*gitforge.ClonedWorkspace, func(), error) {
	branch := a.coord.Branch
	if branch == "" {
		var err error
		branch, err = a.GetDefaultBranch(ctx)
		if err != nil {
			return nil, func() {}, err
		}
	}
	return forgeutil.Clone(ctx, a.coord, branch, opts)
}

// BuildWebhookParams returns the header selectors GitLab's
// delivery format uses for event.
func (a *Adapter) BuildWebhookParams(event gitforge.GitEvent) gitforge.WebhookParams {
	return gitforge.WebhookParams{
		HeaderName: "X-Gitlab-Event",
		EventValue: string(event),
	}
}

func convertProject(p *gitlab.Project) *gitforge.RepoSummary {
	return &gitforge.RepoSummary{
		ID:            int64(p.ID),
		Slug:          p.Path,
		HTTPURL:       p.WebURL,
		Name:          p.PathWithNamespace,
		Description:   p.Description,
		IsPrivate:     p.Visibility != gitlab.PublicVisibility,
		DefaultBranch: p.DefaultBranch,
	}
}

var _ gitforge.Adapter = (*Adapter)(nil)
