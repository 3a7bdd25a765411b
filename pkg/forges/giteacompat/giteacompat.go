// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package giteacompat implements gitforge.Adapter once for both Gitea
// and Gogs: Gogs exposes the same v1 API shape as Gitea (spec's "Gogs:
// per Gitea semantics"), so pkg/forges/gitea and pkg/forges/gogs are
// thin constructors over this package rather than duplicating it.
package giteacompat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"code.gitea.io/sdk/gitea"

	"github.com/archmagece/gitforge/internal/httpkernel"
	"github.com/archmagece/gitforge/pkg/coordinate"
	"github.com/archmagece/gitforge/pkg/forges/forgeutil"
	"github.com/archmagece/gitforge/pkg/gitforge"
	"github.com/archmagece/gitforge/pkg/orchestrator"
)

const userAgent = "gitforge/1.0"

// Adapter implements gitforge.Adapter for Gitea and Gogs. kind
// distinguishes which ForgeKind GetType reports; every other code path
// is identical between the two.
type Adapter struct {
	kind   gitforge.ForgeKind
	coord  gitforge.RepoCoordinate
	client *gitea.Client
	orch   *orchestrator.Orchestrator
}

// New builds an Adapter bound to coord, reporting kind from GetType.
// baseURL is the API root (e.g. "https://gitea.example.com").
func New(kind gitforge.ForgeKind, coord gitforge.RepoCoordinate, baseURL string) (*Adapter, error) {
	httpClient, err := httpkernel.Build(httpkernel.Config{UserAgent: userAgent, CACert: coord.CACert})
	if err != nil {
		return nil, err
	}

	client, err := gitea.NewClient(baseURL, gitea.SetHTTPClient(httpClient), gitea.SetToken(coord.Password))
	if err != nil {
		return nil, fmt.Errorf("giteacompat: building client: %w", err)
	}

	a := &Adapter{kind: kind, coord: coord, client: client}
	a.orch = orchestrator.New(a, coordinate.EffectiveCloneURL(coord))
	return a, nil
}

func (a *Adapter) GetType() gitforge.ForgeKind         { return a.kind }
func (a *Adapter) GetConfig() gitforge.RepoCoordinate { return a.coord.Clone() }

func classifyErr(a *Adapter, resp *gitea.Response, op string, err error) error {
	if resp == nil || resp.Response == nil {
		return gitforge.New(gitforge.KindRetryable, a.kind, op, err)
	}
	var gfErr *gitforge.Error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		gfErr = gitforge.New(gitforge.KindBadCredentials, a.kind, op, err)
	case http.StatusForbidden:
		gfErr = gitforge.New(gitforge.KindInsufficientPermissions, a.kind, op, err)
	case http.StatusNotFound:
		gfErr = gitforge.New(gitforge.KindRepoNotFound, a.kind, op, err)
	default:
		gfErr = gitforge.New(gitforge.KindFatal, a.kind, op, err)
	}
	gfErr.HTTPStatus = resp.StatusCode
	return gfErr
}

// GetRepoInfo reads the bound repository's summary.
func (a *Adapter) GetRepoInfo(ctx context.Context) (*gitforge.RepoSummary, error) {
	repo, resp, err := a.client.GetRepo(a.coord.Owner, a.coord.Repo)
	if err != nil {
		return nil, classifyErr(a, resp, "getting repository", err)
	}
	return convertRepo(repo), nil
}

// ListRepos lists the URLs of every repo under the bound owner.
func (a *Adapter) ListRepos(ctx context.Context) ([]string, error) {
	var urls []string
	opts := gitea.ListOrgReposOptions{ListOptions: gitea.ListOptions{Page: 1, PageSize: 50}}
	for {
		repos, resp, err := a.client.ListOrgRepos(a.coord.Owner, opts)
		if err != nil {
			return a.listUserRepos()
		}
		for _, r := range repos {
			urls = append(urls, r.HTMLURL)
		}
		if len(repos) < opts.PageSize || resp == nil {
			break
		}
		opts.Page++
	}
	return urls, nil
}

func (a *Adapter) listUserRepos() ([]string, error) {
	var urls []string
	opts := gitea.ListReposOptions{ListOptions: gitea.ListOptions{Page: 1, PageSize: 50}}
	for {
		repos, resp, err := a.client.ListUserRepos(a.coord.Owner, opts)
		if err != nil {
			return nil, classifyErr(a, resp, "listing user repos", err)
		}
		for _, r := range repos {
			urls = append(urls, r.HTMLURL)
		}
		if len(repos) < opts.PageSize || resp == nil {
			break
		}
		opts.Page++
	}
	return urls, nil
}

// CreateRepo creates a repository under the bound owner.
func (a *Adapter) CreateRepo(ctx context.Context, opts gitforge.CreateRepoOptions) (gitforge.Adapter, error) {
	req := gitea.CreateRepoOption{
		Name:     opts.Name,
		Private:  opts.PrivateRepo,
		AutoInit: opts.ResolvedAutoInit(),
	}

	var (
		repo *gitea.Repository
		resp *gitea.Response
		err  error
	)
	if org, orgErr := a.client.GetOrg(a.coord.Owner); orgErr == nil && org != nil {
		repo, resp, err = a.client.CreateOrgRepo(a.coord.Owner, req)
	} else {
		repo, resp, err = a.client.CreateRepo(req)
	}
	if err != nil {
		return nil, classifyErr(a, resp, "creating repository", err)
	}

	child := a.coord.Clone()
	child.Repo = opts.Name
	next := &Adapter{kind: a.kind, coord: child, client: a.client}
	next.orch = orchestrator.New(next, coordinate.EffectiveCloneURL(child))
	_ = repo
	return next, nil
}

// DeleteRepo deletes the bound repository and returns an adapter bound
// to the parent owner scope.
func (a *Adapter) DeleteRepo(ctx context.Context) (gitforge.Adapter, error) {
	resp, err := a.client.DeleteRepo(a.coord.Owner, a.coord.Repo)
	if err != nil {
		return nil, classifyErr(a, resp, "deleting repository", err)
	}

	parent := a.coord.Clone()
	parent.Repo = ""
	next := &Adapter{kind: a.kind, coord: parent, client: a.client}
	next.orch = orchestrator.New(next, "")
	return next, nil
}

// ListFiles lists files on the configured branch via the git trees API.
func (a *Adapter) ListFiles(ctx context.Context) ([]gitforge.FileEntry, error) {
	branch := a.coord.Branch
	if branch == "" {
		var err error
		branch, err = a.GetDefaultBranch(ctx)
		if err != nil {
			return nil, err
		}
	}

	tree, resp, err := a.client.GetTrees(a.coord.Owner, a.coord.Repo, branch, true)
	if err != nil {
		return nil, classifyErr(a, resp, "listing tree", err)
	}

	var entries []gitforge.FileEntry
	for _, e := range tree.Entries {
		if e.Type != "blob" {
			continue
		}
		entries = append(entries, gitforge.FileEntry{Path: e.Path, URL: e.URL})
	}
	return entries, nil
}

// GetFileContents reads one file's raw bytes at path.
func (a *Adapter) GetFileContents(ctx context.Context, path, url string) ([]byte, error) {
	if url != "" {
		return nil, fmt.Errorf("giteacompat: fetching file contents by raw url is not supported, use path")
	}
	data, resp, err := a.client.GetFile(a.coord.Owner, a.coord.Repo, a.coord.Branch, path)
	if err != nil {
		return nil, classifyErr(a, resp, "reading file "+path, err)
	}
	return data, nil
}

// GetDefaultBranch returns the repository's default branch name.
func (a *Adapter) GetDefaultBranch(ctx context.Context) (string, error) {
	repo, resp, err := a.client.GetRepo(a.coord.Owner, a.coord.Repo)
	if err != nil {
		return "", classifyErr(a, resp, "reading default branch", err)
	}
	return repo.DefaultBranch, nil
}

// GetBranches lists the repository's branches.
func (a *Adapter) GetBranches(ctx context.Context) ([]gitforge.BranchRef, error) {
	var refs []gitforge.BranchRef
	opts := gitea.ListRepoBranchesOptions{ListOptions: gitea.ListOptions{Page: 1, PageSize: 50}}
	for {
		branches, resp, err := a.client.ListRepoBranches(a.coord.Owner, a.coord.Repo, opts)
		if err != nil {
			return nil, classifyErr(a, resp, "listing branches", err)
		}
		for _, b := range branches {
			refs = append(refs, gitforge.BranchRef{Name: b.Name})
		}
		if len(branches) < opts.PageSize || resp == nil {
			break
		}
		opts.Page++
	}
	return refs, nil
}

// DeleteBranch deletes a branch by name.
func (a *Adapter) DeleteBranch(ctx context.Context, branch string) error {
	_, resp, err := a.client.DeleteRepoBranch(a.coord.Owner, a.coord.Repo, branch)
	if err != nil {
		return classifyErr(a, resp, "deleting branch "+branch, err)
	}
	return nil
}

// GetPullRequest reads one pull request by index, normalizing its
// status per spec's Gitea mapping table.
func (a *Adapter) GetPullRequest(ctx context.Context, pullNumber int) (*gitforge.PullRequest, error) {
	pr, resp, err := a.client.GetPullRequest(a.coord.Owner, a.coord.Repo, int64(pullNumber))
	if err != nil {
		return nil, classifyErr(a, resp, fmt.Sprintf("reading pull request %d", pullNumber), err)
	}
	return &gitforge.PullRequest{
		PullNumber:   int(pr.Index),
		SourceBranch: pr.Head.Ref,
		TargetBranch: pr.Base.Ref,
		Status:       mapPullRequestStatus(pr),
		HasConflicts: pr.State == gitea.StateOpen && !pr.Mergeable,
	}, nil
}

// mapPullRequestStatus implements spec's bit-exact Gitea mapping:
// open + mergeable=true → Active, else Conflicts. closed + merged=true
// → Completed, else Abandoned.
func mapPullRequestStatus(pr *gitea.PullRequest) gitforge.PullRequestStatus {
	switch pr.State {
	case gitea.StateOpen:
		if pr.Mergeable {
			return gitforge.PRActive
		}
		return gitforge.PRConflicts
	case gitea.StateClosed:
		if pr.HasMerged {
			return gitforge.PRCompleted
		}
		return gitforge.PRAbandoned
	default:
		return gitforge.PRNotSet
	}
}

// CreatePullRequest opens a new pull request.
func (a *Adapter) CreatePullRequest(ctx context.Context, opts gitforge.CreatePullRequestOptions) (*gitforge.PullRequest, error) {
	req := gitea.CreatePullRequestOption{
		Title: opts.Title,
		Head:  opts.SourceBranch,
		Base:  opts.TargetBranch,
		Body:  opts.Body,
	}
	pr, resp, err := a.client.CreatePullRequest(a.coord.Owner, a.coord.Repo, req)
	if err != nil {
		return nil, classifyErr(a, resp, "creating pull request", err)
	}
	return &gitforge.PullRequest{
		PullNumber:   int(pr.Index),
		SourceBranch: pr.Head.Ref,
		TargetBranch: pr.Base.Ref,
		Status:       mapPullRequestStatus(pr),
	}, nil
}

// mergeConflictBody matches Gitea's "Automatic merge failed ... fix
// conflicts" response body, per spec's 405/500 disambiguation.
var mergeConflictBody = "Automatic merge failed"

// MergePullRequest attempts a single merge.
func (a *Adapter) MergePullRequest(ctx context.Context, opts gitforge.MergePullRequestOptions) (string, error) {
	req := gitea.MergePullRequestOption{
		Style:   mapMergeStyle(opts.Method),
		Message: opts.CommitMessage,
	}
	ok, resp, err := a.client.MergePullRequest(a.coord.Owner, a.coord.Repo, int64(opts.PullNumber), req)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusInternalServerError) &&
			strings.Contains(err.Error(), mergeConflictBody) {
			ge := gitforge.New(gitforge.KindMergeConflict, a.kind, err.Error(), err)
			ge.PullNumber = opts.PullNumber
			return "", ge
		}
		return "", classifyErr(a, resp, "merging pull request", err)
	}
	if !ok {
		return "", gitforge.New(gitforge.KindFatal, a.kind, "merge did not complete", nil)
	}
	return fmt.Sprintf("merged pull request %d", opts.PullNumber), nil
}

func mapMergeStyle(m gitforge.MergeMethod) gitea.MergeStyle {
	switch m {
	case gitforge.MergeSquash:
		return gitea.MergeStyleSquash
	case gitforge.MergeRebase:
		return gitea.MergeStyleRebase
	default:
		return gitea.MergeStyleMerge
	}
}

// UpdatePullRequestBranch asks Gitea to update the PR's branch against
// its base. Best-effort; the orchestrator never relies on it.
func (a *Adapter) UpdatePullRequestBranch(ctx context.Context, pullNumber int) error {
	resp, err := a.client.UpdatePullRequest(a.coord.Owner, a.coord.Repo, int64(pullNumber))
	if err != nil {
		return classifyErr(a, resp, "updating pull request branch", err)
	}
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

// GetWebhooks lists the repository's webhooks.
func (a *Adapter) GetWebhooks(ctx context.Context) ([]gitforge.Webhook, error) {
	hooks, resp, err := a.client.ListRepoHooks(a.coord.Owner, a.coord.Repo, gitea.ListHooksOptions{})
	if err != nil {
		return nil, classifyErr(a, resp, "listing webhooks", err)
	}
	var out []gitforge.Webhook
	for _, h := range hooks {
		out = append(out, gitforge.Webhook{
			ID:     h.ID,
			Active: h.Active,
			Config: gitforge.WebhookConfig{ContentType: h.Config["content_type"], URL: h.Config["url"]},
		})
	}
	return out, nil
}

// CreateWebhook registers a new webhook and returns its id.
func (a *Adapter) CreateWebhook(ctx context.Context, webhookURL string, events []string) (int64, error) {
	req := gitea.CreateHookOption{
		Type:   "gitea",
		Config: map[string]string{"url": webhookURL, "content_type": "json"},
		Events: events,
		Active: true,
	}
	hook, resp, err := a.client.CreateRepoHook(a.coord.Owner, a.coord.Repo, req)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return 0, gitforge.New(gitforge.KindWebhookAlreadyExists, a.kind, "webhook already exists", err)
		}
		return 0, classifyErr(a, resp, "creating webhook", err)
	}
	return hook.ID, nil
}

// Clone acquires a local workspace with the repository cloned into it.
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

// BuildWebhookParams returns the header selectors Gitea's or
// Gogs's delivery format uses for event — the header name differs
// even though the rest of the v1 API shape is shared.
func (a *Adapter) BuildWebhookParams(event gitforge.GitEvent) gitforge.WebhookParams {
	if a.kind == gitforge.KindGogs {
		return gitforge.WebhookParams{
			HeaderName:      "X-Gogs-Event",
			EventValue:      string(event),
			SignatureHeader: "X-Gogs-Signature",
		}
	}
	return gitforge.WebhookParams{
		HeaderName:      "X-Gitea-Event",
		EventValue:      string(event),
		SignatureHeader: "X-Gitea-Signature",
	}
}

func convertRepo(repo *gitea.Repository) *gitforge.RepoSummary {
	return &gitforge.RepoSummary{
		ID:            repo.ID,
		Slug:          repo.Name,
		HTTPURL:       repo.HTMLURL,
		Name:          repo.FullName,
		Description:   repo.Description,
		IsPrivate:     repo.Private,
		DefaultBranch: repo.DefaultBranch,
	}
}

var _ gitforge.Adapter = (*Adapter)(nil)
