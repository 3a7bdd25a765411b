// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package detector identifies which forge a given host runs, first by
// well-known domain, then by probing a handful of forge-distinguishing
// endpoints in a fixed order.
package detector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/archmagece/gitforge/pkg/gitforge"
)

// wellKnownHosts short-circuits the probe sequence for the hosted
// (non-self-managed) forges whose domain alone is unambiguous.
var wellKnownHosts = map[string]gitforge.ForgeKind{
	"github.com":    gitforge.KindGitHub,
	"bitbucket.org": gitforge.KindBitbucket,
	"dev.azure.com": gitforge.KindAzure,
}

// probe is one ordered candidate in the self-hosted probe sequence: a
// path distinctive enough to identify that forge's API, and a matcher
// that inspects the (2xx-only) response for the content spec.md §4.2
// requires — a header for GHE, a non-empty body for the rest.
type probe struct {
	kind  gitforge.ForgeKind
	path  string
	match func(resp *http.Response, body []byte) bool
}

// gheHeaderMatch reports whether resp carries GitHub Enterprise's
// version header, case-insensitively, per spec.md §4.2 step 4.
func gheHeaderMatch(resp *http.Response, body []byte) bool {
	return resp.Header.Get("X-GitHub-Enterprise-Version") != ""
}

// nonEmptyBodyMatch reports whether body is non-empty once surrounding
// whitespace is trimmed, per spec.md §4.2 steps 5-7 ("body is non-empty").
func nonEmptyBodyMatch(resp *http.Response, body []byte) bool {
	return len(strings.TrimSpace(string(body))) > 0
}

// probes runs in this exact order: GitHub Enterprise, GitLab, Gitea.
// The first matching probe wins; Gogs is probed separately afterward
// since its endpoint needs a username.
var probes = []probe{
	{kind: gitforge.KindGHE, path: "/api/v3", match: gheHeaderMatch},
	{kind: gitforge.KindGitLab, path: "/api/v4/projects", match: nonEmptyBodyMatch},
	{kind: gitforge.KindGitea, path: "/api/v1/settings/api", match: nonEmptyBodyMatch},
}

// HTTPClient is the minimal surface Detect depends on, satisfied by
// *http.Client and easily substituted with a recorder in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Detect identifies the forge kind hosted at host. username is needed
// only for the Gogs probe, which has no unauthenticated settings
// endpoint and instead checks a known user route.
func Detect(ctx context.Context, client HTTPClient, host, username string) (gitforge.ForgeKind, error) {
	if kind, ok := wellKnownHosts[host]; ok {
		return kind, nil
	}

	for _, p := range probes {
		if ok, err := probeOnce(ctx, client, host, p.path, p.match); err == nil && ok {
			return p.kind, nil
		}
	}

	if username != "" {
		gogsPath := fmt.Sprintf("/api/v1/users/%s", username)
		if ok, err := probeOnce(ctx, client, host, gogsPath, nonEmptyBodyMatch); err == nil && ok {
			return gitforge.KindGogs, nil
		}
	}

	return "", gitforge.New(gitforge.KindFatal, "", fmt.Sprintf("could not identify forge type for host %q", host), nil)
}

// probeOnce issues the probe request and runs match against the
// response, treating any non-2xx status as a failed probe regardless
// of what match would otherwise report, per spec.md §4.2's "non-2xx
// responses are treated as probe failed (not fatal)".
func probeOnce(ctx context.Context, client HTTPClient, host, path string, match func(resp *http.Response, body []byte) bool) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := "https://" + host + path
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	return match(resp, body), nil
}
