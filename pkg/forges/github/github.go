// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package github implements gitforge.Adapter for GitHub.com and GitHub
// Enterprise (GHE) — the latter differs only in which base URL the
// go-github client targets, so both kinds share this package.
package github

import (
	"context"
	"fmt"
	"strings"

	gogithub "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/archmagece/gitforge/internal/httpkernel"
	"github.com/archmagece/gitforge/pkg/coordinate"
	"github.com/archmagece/gitforge/pkg/forges/forgeutil"
	"github.com/archmagece/gitforge/pkg/gitforge"
	"github.com/archmagece/gitforge/pkg/orchestrator"
)

const userAgent = "gitforge/1.0"

// Adapter implements gitforge.Adapter for GitHub and GHE.
type Adapter struct {
	coord  gitforge.RepoCoordinate
	client *gogithub.Client
	orch   *orchestrator.Orchestrator
}

// New builds an Adapter bound to coord. coord.Host == "github.com"
// targets github.com; any other host is treated as a GHE installation
// reachable at https://{host}/api/v3.
func New(coord gitforge.RepoCoordinate) (*Adapter, error) {
	httpClient, err := httpkernel.Build(httpkernel.Config{
		UserAgent: userAgent,
		CACert:    coord.CACert,
	})
	if err != nil {
		return nil, err
	}

	authedClient := httpClient
	if coord.Password != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: coord.Password})
		authedClient = oauth2.NewClient(ctx, ts)
	}
	client := gogithub.NewClient(authedClient)

	kind := gitforge.KindGitHub
	if coord.Host != "" && coord.Host != "github.com" {
		kind = gitforge.KindGHE
		enterprise, err := client.WithEnterpriseURLs(
			fmt.Sprintf("https://%s/api/v3/", coord.Host),
			fmt.Sprintf("https://%s/api/uploads/", coord.Host),
		)
		if err != nil {
			return nil, fmt.Errorf("github: building enterprise client: %w", err)
		}
		client = enterprise
	}

	a := &Adapter{coord: coord, client: client}
	a.orch = orchestrator.New(a, coordinate.EffectiveCloneURL(coord))
	_ = kind // kind is reported via GetType(); recorded here only to document the branch above
	return a, nil
}

// GetType returns KindGitHub or KindGHE depending on the bound host.
func (a *Adapter) GetType() gitforge.ForgeKind {
	if a.coord.Host != "" && a.coord.Host != "github.com" {
		return gitforge.KindGHE
	}
	return gitforge.KindGitHub
}

// GetConfig returns a defensive copy of the bound coordinate.
func (a *Adapter) GetConfig() gitforge.RepoCoordinate { return a.coord.Clone() }

func (a *Adapter) wrapErr(kind gitforge.ErrorKind, message string, err error) error {
	if err == nil {
		return nil
	}
	return gitforge.New(kind, a.GetType(), message, err)
}

// GetRepoInfo reads the bound repository's summary.
func (a *Adapter) GetRepoInfo(ctx context.Context) (*gitforge.RepoSummary, error) {
	repo, resp, err := a.client.Repositories.Get(ctx, a.coord.Owner, a.coord.Repo)
	if err != nil {
		return nil, classifyErr(a, resp, "getting repository", err)
	}
	return convertRepo(repo), nil
}

// ListRepos lists the URLs of every repo in the bound org/user scope.
func (a *Adapter) ListRepos(ctx context.Context) ([]string, error) {
	var urls []string
	opts := &gogithub.RepositoryListByOrgOptions{ListOptions: gogithub.ListOptions{PerPage: 100}}
	for {
		repos, resp, err := a.client.Repositories.ListByOrg(ctx, a.coord.Owner, opts)
		if err != nil {
			// Fall back to the user-scoped listing: Owner may name a
			// user rather than an organization.
			return a.listUserRepos(ctx)
		}
		for _, r := range repos {
			urls = append(urls, r.GetHTMLURL())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return urls, nil
}

func (a *Adapter) listUserRepos(ctx context.Context) ([]string, error) {
	var urls []string
	opts := &gogithub.RepositoryListOptions{ListOptions: gogithub.ListOptions{PerPage: 100}, Type: "all"}
	for {
		repos, resp, err := a.client.Repositories.List(ctx, a.coord.Owner, opts)
		if err != nil {
			return nil, classifyErr(a, resp, "listing repositories", err)
		}
		for _, r := range repos {
			urls = append(urls, r.GetHTMLURL())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return urls, nil
}

// CreateRepo creates a repository under the bound owner and returns an
// adapter bound to it.
func (a *Adapter) CreateRepo(ctx context.Context, opts gitforge.CreateRepoOptions) (gitforge.Adapter, error) {
	autoInit := opts.ResolvedAutoInit()
	req := &gogithub.Repository{
		Name:     gogithub.Ptr(opts.Name),
		Private:  gogithub.Ptr(opts.PrivateRepo),
		AutoInit: gogithub.Ptr(autoInit),
	}

	org := a.coord.Owner
	repo, resp, err := a.client.Repositories.Create(ctx, org, req)
	if err != nil {
		return nil, classifyErr(a, resp, "creating repository", err)
	}

	child := a.coord.Clone()
	child.Repo = opts.Name
	next := &Adapter{coord: child, client: a.client}
	next.orch = orchestrator.New(next, coordinate.EffectiveCloneURL(child))
	_ = repo
	return next, nil
}

// DeleteRepo deletes the bound repository and returns an adapter bound
// to the parent org/user scope.
func (a *Adapter) DeleteRepo(ctx context.Context) (gitforge.Adapter, error) {
	resp, err := a.client.Repositories.Delete(ctx, a.coord.Owner, a.coord.Repo)
	if err != nil {
		return nil, classifyErr(a, resp, "deleting repository", err)
	}

	parent := a.coord.Clone()
	parent.Repo = ""
	next := &Adapter{coord: parent, client: a.client}
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

	tree, resp, err := a.client.Git.GetTree(ctx, a.coord.Owner, a.coord.Repo, branch, true)
	if err != nil {
		return nil, classifyErr(a, resp, "listing files", err)
	}

	var entries []gitforge.FileEntry
	for _, e := range tree.Entries {
		if e.GetType() != "blob" {
			continue
		}
		entries = append(entries, gitforge.FileEntry{Path: e.GetPath(), URL: e.GetURL()})
	}
	return entries, nil
}

// GetFileContents reads one file's bytes at path on the configured
// branch. A non-empty url is rejected with an error; files are read by
// path only.
func (a *Adapter) GetFileContents(ctx context.Context, path, url string) ([]byte, error) {
	if url != "" {
		return nil, fmt.Errorf("github: fetching file contents by raw url is not supported, use path")
	}
	rc, _, err := a.client.Repositories.DownloadContents(ctx, a.coord.Owner, a.coord.Repo, path, &gogithub.RepositoryContentGetOptions{Ref: a.coord.Branch})
	if err != nil {
		return nil, a.wrapErr(gitforge.KindFatal, fmt.Sprintf("downloading %s", path), err)
	}
	defer rc.Close()

	var buf strings.Builder
	buf.Grow(4096)
	chunk := make([]byte, 4096)
	for {
		n, readErr := rc.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if readErr != nil {
			break
		}
	}
	return []byte(buf.String()), nil
}

// GetDefaultBranch returns the repository's default branch name.
func (a *Adapter) GetDefaultBranch(ctx context.Context) (string, error) {
	repo, resp, err := a.client.Repositories.Get(ctx, a.coord.Owner, a.coord.Repo)
	if err != nil {
		return "", classifyErr(a, resp, "reading default branch", err)
	}
	return repo.GetDefaultBranch(), nil
}

// GetBranches lists the repository's branches.
func (a *Adapter) GetBranches(ctx context.Context) ([]gitforge.BranchRef, error) {
	var refs []gitforge.BranchRef
	opts := &gogithub.BranchListOptions{ListOptions: gogithub.ListOptions{PerPage: 100}}
	for {
		branches, resp, err := a.client.Repositories.ListBranches(ctx, a.coord.Owner, a.coord.Repo, opts)
		if err != nil {
			return nil, classifyErr(a, resp, "listing branches", err)
		}
		for _, b := range branches {
			refs = append(refs, gitforge.BranchRef{Name: b.GetName()})
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
	resp, err := a.client.Git.DeleteRef(ctx, a.coord.Owner, a.coord.Repo, "heads/"+branch)
	if err != nil {
		return classifyErr(a, resp, "deleting branch "+branch, err)
	}
	return nil
}

// GetPullRequest reads one pull request by number, normalizing its
// status per spec's GitHub mapping table.
func (a *Adapter) GetPullRequest(ctx context.Context, pullNumber int) (*gitforge.PullRequest, error) {
	pr, resp, err := a.client.PullRequests.Get(ctx, a.coord.Owner, a.coord.Repo, pullNumber)
	if err != nil {
		return nil, classifyErr(a, resp, fmt.Sprintf("reading pull request %d", pullNumber), err)
	}
	return &gitforge.PullRequest{
		PullNumber:   pr.GetNumber(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Status:       mapPullRequestStatus(pr),
		MergeStatus:  pr.GetMergeableState(),
		HasConflicts: pr.GetMergeableState() == "dirty",
	}, nil
}

// mapPullRequestStatus implements spec's bit-exact GitHub mapping:
// open + mergeable_state=dirty → Conflicts; =blocked → Blocked; else
// Active. closed + merged=true → Completed; else Abandoned.
func mapPullRequestStatus(pr *gogithub.PullRequest) gitforge.PullRequestStatus {
	switch pr.GetState() {
	case "open":
		switch pr.GetMergeableState() {
		case "dirty":
			return gitforge.PRConflicts
		case "blocked":
			return gitforge.PRBlocked
		default:
			return gitforge.PRActive
		}
	case "closed":
		if pr.GetMerged() {
			return gitforge.PRCompleted
		}
		return gitforge.PRAbandoned
	default:
		return gitforge.PRNotSet
	}
}

// CreatePullRequest opens a new pull request.
func (a *Adapter) CreatePullRequest(ctx context.Context, opts gitforge.CreatePullRequestOptions) (*gitforge.PullRequest, error) {
	req := &gogithub.NewPullRequest{
		Title: gogithub.Ptr(opts.Title),
		Head:  gogithub.Ptr(opts.SourceBranch),
		Base:  gogithub.Ptr(opts.TargetBranch),
		Body:  gogithub.Ptr(opts.Body),
		Draft: gogithub.Ptr(opts.Draft),
	}
	pr, resp, err := a.client.PullRequests.Create(ctx, a.coord.Owner, a.coord.Repo, req)
	if err != nil {
		return nil, classifyErr(a, resp, "creating pull request", err)
	}
	return &gitforge.PullRequest{
		PullNumber:   pr.GetNumber(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Status:       mapPullRequestStatus(pr),
	}, nil
}

// MergePullRequest attempts a single merge, per spec's 405
// disambiguation: "approving review is required" maps to Blocked,
// any other 405 maps to MergeConflict.
func (a *Adapter) MergePullRequest(ctx context.Context, opts gitforge.MergePullRequestOptions) (string, error) {
	req := &gogithub.PullRequestOptions{MergeMethod: mapMergeMethod(opts.Method)}
	result, resp, err := a.client.PullRequests.Merge(ctx, a.coord.Owner, a.coord.Repo, opts.PullNumber, opts.CommitMessage, req)
	if err != nil {
		if resp != nil && resp.StatusCode == 405 {
			msg := err.Error()
			if strings.Contains(strings.ToLower(msg), "approving review is required") {
				return "", gitforge.New(gitforge.KindMergeBlockedForPullRequest, a.GetType(), msg, err)
			}
			ge := gitforge.New(gitforge.KindMergeConflict, a.GetType(), msg, err)
			ge.PullNumber = opts.PullNumber
			return "", ge
		}
		return "", classifyErr(a, resp, "merging pull request", err)
	}
	return result.GetMessage(), nil
}

func mapMergeMethod(m gitforge.MergeMethod) string {
	switch m {
	case gitforge.MergeSquash:
		return "squash"
	case gitforge.MergeRebase:
		return "rebase"
	default:
		return "merge"
	}
}

// UpdatePullRequestBranch asks GitHub to update the PR's branch.
// Best-effort: the orchestrator never relies on it.
func (a *Adapter) UpdatePullRequestBranch(ctx context.Context, pullNumber int) error {
	_, resp, err := a.client.PullRequests.UpdateBranch(ctx, a.coord.Owner, a.coord.Repo, pullNumber, nil)
	if err != nil && (resp == nil || resp.StatusCode != 202) {
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
	hooks, resp, err := a.client.Repositories.ListHooks(ctx, a.coord.Owner, a.coord.Repo, nil)
	if err != nil {
		return nil, classifyErr(a, resp, "listing webhooks", err)
	}
	var out []gitforge.Webhook
	for _, h := range hooks {
		out = append(out, gitforge.Webhook{
			ID:     h.GetID(),
			Name:   h.GetName(),
			Active: h.GetActive(),
			Events: h.Events,
			Config: gitforge.WebhookConfig{
				ContentType: h.GetConfig().GetContentType(),
				URL:         h.GetConfig().GetURL(),
				InsecureSSL: h.GetConfig().GetInsecureSSL() == "1",
			},
		})
	}
	return out, nil
}

// CreateWebhook registers a new webhook and returns its id.
func (a *Adapter) CreateWebhook(ctx context.Context, webhookURL string, events []string) (int64, error) {
	hook := &gogithub.Hook{
		Active: gogithub.Ptr(true),
		Events: events,
		Config: &gogithub.HookConfig{
			ContentType: gogithub.Ptr("json"),
			URL:         gogithub.Ptr(webhookURL),
		},
	}
	created, resp, err := a.client.Repositories.CreateHook(ctx, a.coord.Owner, a.coord.Repo, hook)
	if err != nil {
		if resp != nil && resp.StatusCode == 422 {
			return 0, gitforge.New(gitforge.KindWebhookAlreadyExists, a.GetType(), "webhook already exists", err)
		}
		return 0, classifyErr(a, resp, "creating webhook", err)
	}
	return created.GetID(), nil
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

// BuildWebhookParams returns the header selectors GitHub's
// delivery format uses for event.
func (a *Adapter) BuildWebhookParams(event gitforge.GitEvent) gitforge.WebhookParams {
	return gitforge.WebhookParams{
		HeaderName:      "X-GitHub-Event",
		EventValue:      string(event),
		SignatureHeader: "X-Hub-Signature-256",
	}
}

func convertRepo(repo *gogithub.Repository) *gitforge.RepoSummary {
	return &gitforge.RepoSummary{
		ID:            repo.GetID(),
		Slug:          repo.GetName(),
		HTTPURL:       repo.GetHTMLURL(),
		Name:          repo.GetFullName(),
		Description:   repo.GetDescription(),
		IsPrivate:     repo.GetPrivate(),
		DefaultBranch: repo.GetDefaultBranch(),
	}
}

// classifyErr maps a go-github error/response pair onto the shared
// error taxonomy.
func classifyErr(a *Adapter, resp *gogithub.Response, op string, err error) error {
	if resp == nil {
		return gitforge.New(gitforge.KindRetryable, a.GetType(), op, err)
	}
	var gfErr *gitforge.Error
	switch resp.StatusCode {
	case 401:
		gfErr = gitforge.New(gitforge.KindBadCredentials, a.GetType(), op, err)
	case 403:
		gfErr = gitforge.New(gitforge.KindInsufficientPermissions, a.GetType(), op, err)
	case 404:
		gfErr = gitforge.New(gitforge.KindRepoNotFound, a.GetType(), op, err)
	default:
		gfErr = gitforge.New(gitforge.KindFatal, a.GetType(), op, err)
	}
	gfErr.HTTPStatus = resp.StatusCode
	return gfErr
}

var _ gitforge.Adapter = (*Adapter)(nil)
