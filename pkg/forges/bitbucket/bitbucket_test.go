// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package bitbucket

import (
	"net/http"
	"testing"

	"github.com/archmagece/gitforge/pkg/gitforge"
)

func TestMapPullRequestStatus(t *testing.T) {
	tests := []struct {
		state string
		want  gitforge.PullRequestStatus
	}{
		{"OPEN", gitforge.PRActive},
		{"MERGED", gitforge.PRCompleted},
		{"SUPERSEDED", gitforge.PRAbandoned},
		{"DECLINED", gitforge.PRAbandoned},
		{"", gitforge.PRNotSet},
	}
	for _, tt := range tests {
		if got := mapPullRequestStatus(tt.state); got != tt.want {
			t.Errorf("mapPullRequestStatus(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestMapMergeStrategy(t *testing.T) {
	tests := map[gitforge.MergeMethod]string{
		gitforge.MergeCommit: "merge_commit",
		gitforge.MergeSquash: "squash",
		gitforge.MergeRebase: "fast_forward",
	}
	for in, want := range tests {
		if got := mapMergeStrategy(in); got != want {
			t.Errorf("mapMergeStrategy(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   gitforge.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, "", gitforge.KindBadCredentials},
		{"forbidden", http.StatusForbidden, "", gitforge.KindInsufficientPermissions},
		{"not found", http.StatusNotFound, "", gitforge.KindRepoNotFound},
		{"conflict with merge conflict body", http.StatusConflict, mergeConflictBody, gitforge.KindMergeConflict},
		{"conflict without merge conflict body", http.StatusConflict, "some other conflict", gitforge.KindFatal},
		{"merge conflict body on other status", http.StatusBadRequest, mergeConflictBody, gitforge.KindMergeConflict},
		{"unmapped status", http.StatusTeapot, "", gitforge.KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.status, "op", []byte(tt.body))
			gfErr, ok := err.(*gitforge.Error)
			if !ok {
				t.Fatalf("classifyStatus() returned %T, want *gitforge.Error", err)
			}
			if gfErr.Kind != tt.want {
				t.Errorf("classifyStatus() kind = %v, want %v", gfErr.Kind, tt.want)
			}
		})
	}
}

func TestHashWebhookIDIsDeterministicAndNonNegative(t *testing.T) {
	a := hashWebhookID("{11111111-2222-3333-4444-555555555555}")
	b := hashWebhookID("{11111111-2222-3333-4444-555555555555}")
	if a != b {
		t.Errorf("hashWebhookID() not deterministic: %d != %d", a, b)
	}
	if a < 0 {
		t.Errorf("hashWebhookID() = %d, want non-negative", a)
	}
}

func TestConvertRepo(t *testing.T) {
	repo := &btRepository{
		Slug:        "repo",
		FullName:    "owner/repo",
		Description: "desc",
		IsPrivate:   true,
	}
	repo.Mainbranch.Name = "main"
	repo.Links.HTML.Href = "https://bitbucket.org/owner/repo"

	summary := convertRepo(repo)
	if summary.Slug != "repo" || summary.Name != "owner/repo" || summary.DefaultBranch != "main" || !summary.IsPrivate {
		t.Errorf("convertRepo() = %+v, unexpected", summary)
	}
}

var _ gitforge.Adapter = (*Adapter)(nil)
