// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package bitbucket implements gitforge.Adapter for Bitbucket Cloud. No
// actively maintained Go SDK for the 2.0 API surfaced in the example
// pack (see DESIGN.md), so this adapter shapes requests/responses by
// hand over the shared retry kernel, following spec.md §6's endpoint
// list directly.
package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/archmagece/gitforge/internal/httpkernel"
	"github.com/archmagece/gitforge/pkg/coordinate"
	"github.com/archmagece/gitforge/pkg/forges/forgeutil"
	"github.com/archmagece/gitforge/pkg/gitforge"
	"github.com/archmagece/gitforge/pkg/orchestrator"
)

const (
	userAgent = "gitforge/1.0"
	apiBase   = "https://api.bitbucket.org/2.0"
)

// Adapter implements gitforge.Adapter for Bitbucket Cloud.
type Adapter struct {
	coord  gitforge.RepoCoordinate
	client *http.Client
	orch   *orchestrator.Orchestrator
}

// New builds an Adapter bound to coord.
func New(coord gitforge.RepoCoordinate) (*Adapter, error) {
	httpClient, err := httpkernel.Build(httpkernel.Config{
		Username:  coord.Username,
		Password:  coord.Password,
		UserAgent: userAgent,
		CACert:    coord.CACert,
	})
	if err != nil {
		return nil, err
	}

	a := &Adapter{coord: coord, client: httpClient}
	a.orch = orchestrator.New(a, coordinate.EffectiveCloneURL(coord))
	return a, nil
}

func (a *Adapter) GetType() gitforge.ForgeKind         { return gitforge.KindBitbucket }
func (a *Adapter) GetConfig() gitforge.RepoCoordinate { return a.coord.Clone() }

// apiCall issues method against apiBase+path, decoding a JSON response
// body into out (when non-nil) and classifying non-2xx statuses onto
// the shared error taxonomy.
func (a *Adapter) apiCall(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return gitforge.New(gitforge.KindFatal, gitforge.KindBitbucket, "encoding request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, reader)
	if err != nil {
		return gitforge.New(gitforge.KindFatal, gitforge.KindBitbucket, "building request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return gitforge.New(gitforge.KindRetryable, gitforge.KindBitbucket, method+" "+path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, method+" "+path, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return gitforge.New(gitforge.KindFatal, gitforge.KindBitbucket, "decoding response for "+path, err)
		}
	}
	return nil
}

// mergeConflictBody matches Bitbucket's documented merge-conflict
// response text, per spec's conflict-detection table.
const mergeConflictBody = "You can't merge until you resolve all merge conflicts."

func classifyStatus(status int, op string, body []byte) error {
	bodyStr := string(body)
	var gfErr *gitforge.Error
	switch status {
	case http.StatusUnauthorized:
		gfErr = gitforge.New(gitforge.KindBadCredentials, gitforge.KindBitbucket, op+": "+bodyStr, nil)
	case http.StatusForbidden:
		gfErr = gitforge.New(gitforge.KindInsufficientPermissions, gitforge.KindBitbucket, op+": "+bodyStr, nil)
	case http.StatusNotFound:
		gfErr = gitforge.New(gitforge.KindRepoNotFound, gitforge.KindBitbucket, op+": "+bodyStr, nil)
	case http.StatusConflict:
		if strings.Contains(bodyStr, mergeConflictBody) {
			gfErr = gitforge.New(gitforge.KindMergeConflict, gitforge.KindBitbucket, bodyStr, nil)
		} else {
			gfErr = gitforge.New(gitforge.KindFatal, gitforge.KindBitbucket, op+": "+bodyStr, nil)
		}
	default:
		if strings.Contains(bodyStr, mergeConflictBody) {
			gfErr = gitforge.New(gitforge.KindMergeConflict, gitforge.KindBitbucket, bodyStr, nil)
		} else {
			gfErr = gitforge.New(gitforge.KindFatal, gitforge.KindBitbucket, fmt.Sprintf("%s: status %d: %s", op, status, bodyStr), nil)
		}
	}
	gfErr.HTTPStatus = status
	return gfErr
}

type btRepository struct {
	UUID        string `json:"uuid"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	Mainbranch  struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
}

// GetRepoInfo reads the bound repository's summary.
func (a *Adapter) GetRepoInfo(ctx context.Context) (*gitforge.RepoSummary, error) {
	var repo btRepository
	if err := a.apiCall(ctx, http.MethodGet, fmt.Sprintf("/repositories/%s/%s", a.coord.Owner, a.coord.Repo), nil, &repo); err != nil {
		return nil, err
	}
	return convertRepo(&repo), nil
}

type btPaginated struct {
	Values []json.RawMessage `json:"values"`
	Next   string             `json:"next"`
}

// ListRepos lists the URLs of every repository under the bound
// workspace (Bitbucket's term for an org/user scope), following `next`
// links per spec's pagination note.
func (a *Adapter) ListRepos(ctx context.Context) ([]string, error) {
	var urls []string
	path := fmt.Sprintf("/repositories/%s", a.coord.Owner)
	for path != "" {
		var page btPaginated
		if err := a.apiCall(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Values {
			var repo btRepository
			if err := json.Unmarshal(raw, &repo); err != nil {
				continue
			}
			urls = append(urls, repo.Links.HTML.Href)
		}
		if page.Next == "" {
			break
		}
		path = strings.TrimPrefix(page.Next, apiBase)
	}
	return urls, nil
}

// CreateRepo creates a repository under the bound workspace. Bitbucket
// does not auto-init new repositories (spec's createRepo note); when
// ResolvedAutoInit() is true, the caller is expected to push an initial
// commit the same way the Azure adapter's pushInitialReadme does —
// this adapter leaves that one step to the caller via Clone, since
// Bitbucket's repository-create payload has no init flag at all.
func (a *Adapter) CreateRepo(ctx context.Context, opts gitforge.CreateRepoOptions) (gitforge.Adapter, error) {
	reqBody := map[string]interface{}{
		"scm":      "git",
		"is_private": opts.PrivateRepo,
	}
	var repo btRepository
	path := fmt.Sprintf("/repositories/%s/%s", a.coord.Owner, opts.Name)
	if err := a.apiCall(ctx, http.MethodPost, path, reqBody, &repo); err != nil {
		return nil, err
	}

	child := a.coord.Clone()
	child.Repo = opts.Name
	next := &Adapter{coord: child, client: a.client}
	next.orch = orchestrator.New(next, coordinate.EffectiveCloneURL(child))
	return next, nil
}

// DeleteRepo deletes the bound repository and returns an adapter bound
// to the parent workspace scope.
func (a *Adapter) DeleteRepo(ctx context.Context) (gitforge.Adapter, error) {
	path := fmt.Sprintf("/repositories/%s/%s", a.coord.Owner, a.coord.Repo)
	if err := a.apiCall(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return nil, err
	}

	parent := a.coord.Clone()
	parent.Repo = ""
	next := &Adapter{coord: parent, client: a.client}
	next.orch = orchestrator.New(next, "")
	return next, nil
}

type btSrcEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// ListFiles lists files on the configured branch via the src listing
// endpoint.
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
	path := fmt.Sprintf("/repositories/%s/%s/src/%s/?max_depth=%d", a.coord.Owner, a.coord.Repo, url.PathEscape(branch), 9999)
	for path != "" {
		var page btPaginated
		if err := a.apiCall(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Values {
			var e btSrcEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				continue
			}
			if e.Type == "commit_file" {
				entries = append(entries, gitforge.FileEntry{Path: e.Path})
			}
		}
		if page.Next == "" {
			break
		}
		path = strings.TrimPrefix(page.Next, apiBase)
	}
	return entries, nil
}

// GetFileContents reads one file's raw bytes at path via the raw-file
// endpoint.
func (a *Adapter) GetFileContents(ctx context.Context, path, rawURL string) ([]byte, error) {
	if rawURL != "" {
		return nil, fmt.Errorf("bitbucket: fetching file contents by raw url is not supported, use path")
	}
	branch := a.coord.Branch
	if branch == "" {
		var err error
		branch, err = a.GetDefaultBranch(ctx)
		if err != nil {
			return nil, err
		}
	}

	endpoint := fmt.Sprintf("%s/repositories/%s/%s/src/%s/%s", apiBase, a.coord.Owner, a.coord.Repo, url.PathEscape(branch), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, gitforge.New(gitforge.KindFatal, gitforge.KindBitbucket, "building request", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, gitforge.New(gitforge.KindRetryable, gitforge.KindBitbucket, "fetching "+path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, "fetching "+path, body)
	}
	return body, nil
}

// GetDefaultBranch returns the repository's main branch name.
func (a *Adapter) GetDefaultBranch(ctx context.Context) (string, error) {
	var repo btRepository
	if err := a.apiCall(ctx, http.MethodGet, fmt.Sprintf("/repositories/%s/%s", a.coord.Owner, a.coord.Repo), nil, &repo); err != nil {
		return "", err
	}
	return repo.Mainbranch.Name, nil
}

type btBranch struct {
	Name string `json:"name"`
}

// GetBranches lists the repository's branches.
func (a *Adapter) GetBranches(ctx context.Context) ([]gitforge.BranchRef, error) {
	var refs []gitforge.BranchRef
	path := fmt.Sprintf("/repositories/%s/%s/refs/branches", a.coord.Owner, a.coord.Repo)
	for path != "" {
		var page btPaginated
		if err := a.apiCall(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Values {
			var b btBranch
			if err := json.Unmarshal(raw, &b); err != nil {
				continue
			}
			refs = append(refs, gitforge.BranchRef{Name: b.Name})
		}
		if page.Next == "" {
			break
		}
		path = strings.TrimPrefix(page.Next, apiBase)
	}
	return refs, nil
}

// DeleteBranch deletes a branch by name.
func (a *Adapter) DeleteBranch(ctx context.Context, branch string) error {
	path := fmt.Sprintf("/repositories/%s/%s/refs/branches/%s", a.coord.Owner, a.coord.Repo, url.PathEscape(branch))
	return a.apiCall(ctx, http.MethodDelete, path, nil, nil)
}

type btPullRequest struct {
	ID     int    `json:"id"`
	State  string `json:"state"` // OPEN, MERGED, SUPERSEDED, DECLINED
	Source struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
	} `json:"source"`
	Destination struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
	} `json:"destination"`
}

// GetPullRequest reads one pull request by id, normalizing its status
// per spec's Bitbucket mapping table.
func (a *Adapter) GetPullRequest(ctx context.Context, pullNumber int) (*gitforge.PullRequest, error) {
	var pr btPullRequest
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d", a.coord.Owner, a.coord.Repo, pullNumber)
	if err := a.apiCall(ctx, http.MethodGet, path, nil, &pr); err != nil {
		return nil, err
	}
	return &gitforge.PullRequest{
		PullNumber:   pr.ID,
		SourceBranch: pr.Source.Branch.Name,
		TargetBranch: pr.Destination.Branch.Name,
		Status:       mapPullRequestStatus(pr.State),
		MergeStatus:  pr.State,
	}, nil
}

// mapPullRequestStatus implements spec's bit-exact Bitbucket mapping:
// OPEN → Active, MERGED → Completed, SUPERSEDED/DECLINED → Abandoned.
func mapPullRequestStatus(state string) gitforge.PullRequestStatus {
	switch state {
	case "OPEN":
		return gitforge.PRActive
	case "MERGED":
		return gitforge.PRCompleted
	case "SUPERSEDED", "DECLINED":
		return gitforge.PRAbandoned
	default:
		return gitforge.PRNotSet
	}
}

// CreatePullRequest opens a new pull request.
func (a *Adapter) CreatePullRequest(ctx context.Context, opts gitforge.CreatePullRequestOptions) (*gitforge.PullRequest, error) {
	reqBody := map[string]interface{}{
		"title":       opts.Title,
		"description": opts.Body,
		"source":      map[string]interface{}{"branch": map[string]string{"name": opts.SourceBranch}},
		"destination": map[string]interface{}{"branch": map[string]string{"name": opts.TargetBranch}},
	}
	var pr btPullRequest
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests", a.coord.Owner, a.coord.Repo)
	if err := a.apiCall(ctx, http.MethodPost, path, reqBody, &pr); err != nil {
		var gfErr *gitforge.Error
		if asErr, ok := err.(*gitforge.Error); ok {
			gfErr = asErr
		}
		if gfErr != nil && strings.Contains(strings.ToLower(gfErr.Message), "no commits") {
			gfErr.Kind = gitforge.KindNoCommitsForPullRequest
		}
		return nil, err
	}
	return &gitforge.PullRequest{
		PullNumber:   pr.ID,
		SourceBranch: opts.SourceBranch,
		TargetBranch: opts.TargetBranch,
		Status:       mapPullRequestStatus(pr.State),
	}, nil
}

// mapMergeStrategy translates the forge-neutral merge method to
// Bitbucket's merge_strategy values, per spec's mapping table:
// merge→merge_commit, squash→squash, rebase→fast_forward.
func mapMergeStrategy(m gitforge.MergeMethod) string {
	switch m {
	case gitforge.MergeSquash:
		return "squash"
	case gitforge.MergeRebase:
		return "fast_forward"
	default:
		return "merge_commit"
	}
}

// MergePullRequest attempts a single merge.
func (a *Adapter) MergePullRequest(ctx context.Context, opts gitforge.MergePullRequestOptions) (string, error) {
	reqBody := map[string]interface{}{
		"merge_strategy": mapMergeStrategy(opts.Method),
	}
	if opts.CommitMessage != "" {
		reqBody["message"] = opts.CommitMessage
	}

	var pr btPullRequest
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d/merge", a.coord.Owner, a.coord.Repo, opts.PullNumber)
	if err := a.apiCall(ctx, http.MethodPost, path, reqBody, &pr); err != nil {
		if gfErr, ok := err.(*gitforge.Error); ok && gfErr.Kind == gitforge.KindMergeConflict {
			gfErr.PullNumber = opts.PullNumber
		}
		return "", err
	}
	return fmt.Sprintf("merged pull request %d", opts.PullNumber), nil
}

// UpdatePullRequestBranch has no Bitbucket Cloud analogue; best-effort
// no-op, matching spec's note that the orchestrator never relies on it.
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

type btWebhook struct {
	UUID   string   `json:"uuid"`
	URL    string   `json:"url"`
	Active bool     `json:"active"`
	Events []string `json:"events"`
}

// GetWebhooks lists the repository's webhooks.
func (a *Adapter) GetWebhooks(ctx context.Context) ([]gitforge.Webhook, error) {
	var out []gitforge.Webhook
	path := fmt.Sprintf("/repositories/%s/%s/hooks", a.coord.Owner, a.coord.Repo)
	for path != "" {
		var page btPaginated
		if err := a.apiCall(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Values {
			var h btWebhook
			if err := json.Unmarshal(raw, &h); err != nil {
				continue
			}
			out = append(out, gitforge.Webhook{
				Active: h.Active,
				Events: h.Events,
				Config: gitforge.WebhookConfig{URL: h.URL, ContentType: "json"},
			})
		}
		if page.Next == "" {
			break
		}
		path = strings.TrimPrefix(page.Next, apiBase)
	}
	return out, nil
}

// CreateWebhook registers a new webhook and returns its id. Bitbucket
// hook ids are UUIDs; hashWebhookID adapts one into the int64 the
// Adapter interface returns, the same technique the Azure adapter uses
// for its subscription GUIDs.
func (a *Adapter) CreateWebhook(ctx context.Context, webhookURL string, events []string) (int64, error) {
	reqBody := map[string]interface{}{
		"description": "gitforge",
		"url":         webhookURL,
		"active":      true,
		"events":      events,
	}
	var hook btWebhook
	path := fmt.Sprintf("/repositories/%s/%s/hooks", a.coord.Owner, a.coord.Repo)
	if err := a.apiCall(ctx, http.MethodPost, path, reqBody, &hook); err != nil {
		return 0, err
	}
	return hashWebhookID(hook.UUID), nil
}

func hashWebhookID(uuid string) int64 {
	var h int64
	for _, r := range uuid {
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

// BuildWebhookParams returns the header selectors Bitbucket
// Cloud's delivery format uses for event.
func (a *Adapter) BuildWebhookParams(event gitforge.GitEvent) gitforge.WebhookParams {
	return gitforge.WebhookParams{
		HeaderName: "X-Event-Key",
		EventValue: string(event),
	}
}

func convertRepo(repo *btRepository) *gitforge.RepoSummary {
	return &gitforge.RepoSummary{
		Slug:          repo.Slug,
		HTTPURL:       repo.Links.HTML.Href,
		Name:          repo.FullName,
		Description:   repo.Description,
		IsPrivate:     repo.IsPrivate,
		DefaultBranch: repo.Mainbranch.Name,
	}
}

var _ gitforge.Adapter = (*Adapter)(nil)
