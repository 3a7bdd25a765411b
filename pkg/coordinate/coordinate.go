// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package coordinate parses the URL forms this module accepts into a
// gitforge.RepoCoordinate: "https://[user[:pass]@]host/owner[/remainder]
// [#branch[:target]]" and "git@host:owner/remainder" (coerced to https).
package coordinate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/archmagece/gitforge/pkg/gitforge"
)

var (
	// sshForm matches "git@host:owner/remainder".
	sshForm = regexp.MustCompile(`^git@([^:]+):(.+)$`)

	// azureGitForm matches the "{project}/_git/{repo}" remainder shape.
	azureGitForm = regexp.MustCompile(`^([^/]+)/_git/(.+)$`)
)

// errInvalidGitURLMessage is the message of the *gitforge.Error with
// gitforge.KindInvalidGitURL that Parse returns whenever it rejects its
// input.
const errInvalidGitURLMessage = "URL matches neither accepted form"

// Parse parses rawURL into a RepoCoordinate. It never issues network
// calls; forge detection happens separately in pkg/detector.
func Parse(rawURL string) (gitforge.RepoCoordinate, error) {
	if m := sshForm.FindStringSubmatch(rawURL); m != nil {
		host := m[1]
		remainder := m[2]
		return parseOwnerRemainder("https", host, remainder, "", "", "")
	}

	if strings.HasPrefix(rawURL, "https://") || strings.HasPrefix(rawURL, "http://") {
		return parseHTTPForm(rawURL)
	}

	return gitforge.RepoCoordinate{}, gitforge.New(gitforge.KindInvalidGitURL, "", errInvalidGitURLMessage, nil)
}

func parseHTTPForm(rawURL string) (gitforge.RepoCoordinate, error) {
	branchPart := ""
	withoutFragment := rawURL
	if idx := strings.Index(rawURL, "#"); idx != -1 {
		withoutFragment = rawURL[:idx]
		branchPart = rawURL[idx+1:]
	}

	u, err := url.Parse(withoutFragment)
	if err != nil || u.Host == "" {
		return gitforge.RepoCoordinate{}, gitforge.New(gitforge.KindInvalidGitURL, "", errInvalidGitURLMessage, err)
	}

	// u.User (any "user:pass@" embedded in the URL) is intentionally not
	// carried into the coordinate: credentials are supplied separately
	// via gitforge.Credentials, never parsed out of a repo URL.
	protocol := strings.TrimSuffix(u.Scheme, "")

	owner, remainder := splitOwnerRemainder(strings.TrimPrefix(u.Path, "/"))

	source, target := splitBranchFragment(branchPart)

	return parseOwnerRemainder(protocol, u.Host, remainder, owner, source, target)
}

func parseOwnerRemainder(protocol, host, remainder, preParsedOwner, branch, target string) (gitforge.RepoCoordinate, error) {
	owner := preParsedOwner
	rest := remainder
	if owner == "" {
		owner, rest = splitOwnerRemainder(remainder)
	}

	coord := gitforge.RepoCoordinate{
		Protocol:     protocol,
		Host:         host,
		Owner:        owner,
		Branch:       branch,
		TargetBranch: target,
	}

	if host == "dev.azure.com" {
		if m := azureGitForm.FindStringSubmatch(rest); m != nil {
			coord.Project = m[1]
			coord.Repo = strings.TrimSuffix(m[2], ".git")
		} else {
			coord.Project = rest
		}
		return coord, nil
	}

	coord.Repo = strings.TrimSuffix(rest, ".git")
	return coord, nil
}

// splitOwnerRemainder splits "owner/remainder..." into owner and the
// remainder after the first slash.
func splitOwnerRemainder(path string) (owner, remainder string) {
	parts := strings.SplitN(path, "/", 2)
	owner = parts[0]
	if len(parts) == 2 {
		remainder = parts[1]
	}
	return owner, remainder
}

// splitBranchFragment splits a "#" fragment into source/target per the
// "source" or "source:target" forms.
func splitBranchFragment(fragment string) (source, target string) {
	if fragment == "" {
		return "", ""
	}
	parts := strings.SplitN(fragment, ":", 2)
	source = parts[0]
	if len(parts) == 2 {
		target = parts[1]
	}
	return source, target
}

// Format renders a RepoCoordinate back into its canonical URL form,
// omitting embedded credentials. Round-tripping Parse(Format(c)) is a
// fixed point after the first pass (embedded credentials and the
// trailing ".git" are the only lossy transforms).
func Format(c gitforge.RepoCoordinate) string {
	var b strings.Builder
	b.WriteString(c.Protocol)
	b.WriteString("://")
	b.WriteString(c.Host)

	if c.Owner != "" {
		b.WriteString("/")
		b.WriteString(c.Owner)
	}

	if c.Project != "" && c.Host == "dev.azure.com" {
		b.WriteString("/")
		b.WriteString(c.Project)
		if c.Repo != "" {
			b.WriteString("/_git/")
			b.WriteString(c.Repo)
		}
	} else if c.Repo != "" {
		b.WriteString("/")
		b.WriteString(c.Repo)
	}

	if c.Branch != "" {
		b.WriteString("#")
		b.WriteString(c.Branch)
		if c.TargetBranch != "" {
			b.WriteString(":")
			b.WriteString(c.TargetBranch)
		}
	}

	return b.String()
}

// PercentEncodeCredentials returns the user[:pass]@ segment baked into
// an effective clone URL, per the "clone must bake credentials ... using
// percent-encoding" requirement.
func PercentEncodeCredentials(username, password string) string {
	if username == "" {
		return ""
	}
	u := url.QueryEscape(username)
	if password == "" {
		return fmt.Sprintf("%s@", u)
	}
	return fmt.Sprintf("%s:%s@", u, url.QueryEscape(password))
}

// EffectiveCloneURL renders c into a clone URL with credentials baked
// in, the form every forge adapter passes to pkg/workspace.Clone. The
// branch fragment Format appends for display purposes is omitted: it
// is not a valid component of a git remote URL.
func EffectiveCloneURL(c gitforge.RepoCoordinate) string {
	withoutCred := Format(gitforge.RepoCoordinate{
		Protocol: c.Protocol,
		Host:     c.Host,
		Owner:    c.Owner,
		Repo:     c.Repo,
		Project:  c.Project,
	})
	cred := PercentEncodeCredentials(c.Username, c.Password)
	if cred == "" {
		return withoutCred
	}
	proto := c.Protocol + "://"
	return strings.Replace(withoutCred, proto, proto+cred, 1)
}
