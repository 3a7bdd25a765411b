// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package azure

import (
	"errors"
	"testing"

	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/git"

	"github.com/archmagece/gitforge/pkg/gitforge"
)

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want gitforge.ErrorKind
	}{
		{"not found by code", "TF401019: the repository does not exist", gitforge.KindRepoNotFound},
		{"not found by text", "project could not be found", gitforge.KindRepoNotFound},
		{"unauthorized", "401 Unauthorized", gitforge.KindBadCredentials},
		{"bad credentials code", "TF400813: not authorized", gitforge.KindBadCredentials},
		{"forbidden", "403 Forbidden", gitforge.KindInsufficientPermissions},
		{"permission text", "does not have permission to access", gitforge.KindInsufficientPermissions},
		{"unmapped", "some unexpected server error", gitforge.KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyErr("op", errors.New(tt.msg))
			gfErr, ok := err.(*gitforge.Error)
			if !ok {
				t.Fatalf("classifyErr() returned %T, want *gitforge.Error", err)
			}
			if gfErr.Kind != tt.want {
				t.Errorf("classifyErr(%q) kind = %v, want %v", tt.msg, gfErr.Kind, tt.want)
			}
		})
	}
}

func TestClassifyErrNil(t *testing.T) {
	if err := classifyErr("op", nil); err != nil {
		t.Errorf("classifyErr(nil) = %v, want nil", err)
	}
}

func TestMapMergeMethod(t *testing.T) {
	tests := map[gitforge.MergeMethod]git.GitPullRequestMergeStrategy{
		gitforge.MergeCommit: git.GitPullRequestMergeStrategyValues.RebaseMerge,
		gitforge.MergeRebase: git.GitPullRequestMergeStrategyValues.Rebase,
		gitforge.MergeSquash: git.GitPullRequestMergeStrategyValues.Squash,
	}
	for in, want := range tests {
		if got := mapMergeMethod(in); got != want {
			t.Errorf("mapMergeMethod(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestTrimRefsHeads(t *testing.T) {
	tests := map[string]string{
		"refs/heads/main":    "main",
		"refs/heads/feature": "feature",
		"main":               "main",
		"":                   "",
	}
	for in, want := range tests {
		if got := trimRefsHeads(in); got != want {
			t.Errorf("trimRefsHeads(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapPullRequestStatus(t *testing.T) {
	active := git.PullRequestStatusValues.Active
	abandoned := git.PullRequestStatusValues.Abandoned
	completed := git.PullRequestStatusValues.Completed
	rejected := git.PullRequestAsyncStatusValues.RejectedByPolicy
	conflicts := git.PullRequestAsyncStatusValues.Conflicts
	succeeded := git.PullRequestAsyncStatusValues.Succeeded

	tests := []struct {
		name         string
		pr           *git.GitPullRequest
		hasConflicts bool
		want         gitforge.PullRequestStatus
	}{
		{"active clean", &git.GitPullRequest{Status: &active, MergeStatus: &succeeded}, false, gitforge.PRActive},
		{"active rejected by policy is blocked", &git.GitPullRequest{Status: &active, MergeStatus: &rejected}, false, gitforge.PRBlocked},
		{"active merge-status conflicts", &git.GitPullRequest{Status: &active, MergeStatus: &conflicts}, false, gitforge.PRConflicts},
		{"active detected conflicts", &git.GitPullRequest{Status: &active, MergeStatus: &succeeded}, true, gitforge.PRConflicts},
		{"abandoned", &git.GitPullRequest{Status: &abandoned}, false, gitforge.PRAbandoned},
		{"completed", &git.GitPullRequest{Status: &completed}, false, gitforge.PRCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapPullRequestStatus(tt.pr, tt.hasConflicts); got != tt.want {
				t.Errorf("mapPullRequestStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashSubscriptionIDIsDeterministicAndNonNegative(t *testing.T) {
	a := hashSubscriptionID("11111111-2222-3333-4444-555555555555")
	b := hashSubscriptionID("11111111-2222-3333-4444-555555555555")
	if a != b {
		t.Errorf("hashSubscriptionID() not deterministic: %d != %d", a, b)
	}
	if a < 0 {
		t.Errorf("hashSubscriptionID() = %d, want non-negative", a)
	}
}

func TestGetType(t *testing.T) {
	a := &Adapter{coord: gitforge.RepoCoordinate{Host: "dev.azure.com"}}
	if got := a.GetType(); got != gitforge.KindAzure {
		t.Errorf("GetType() = %v, want %v", got, gitforge.KindAzure)
	}
}

var _ gitforge.Adapter = (*Adapter)(nil)
