// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package github

import (
	"testing"

	gogithub "github.com/google/go-github/v66/github"

	"github.com/archmagece/gitforge/pkg/gitforge"
)

func TestMapPullRequestStatus(t *testing.T) {
	tests := []struct {
		name           string
		state          string
		mergeableState string
		merged         bool
		want           gitforge.PullRequestStatus
	}{
		{"open dirty is conflicts", "open", "dirty", false, gitforge.PRConflicts},
		{"open blocked is blocked", "open", "blocked", false, gitforge.PRBlocked},
		{"open clean is active", "open", "clean", false, gitforge.PRActive},
		{"open unknown is active", "open", "unstable", false, gitforge.PRActive},
		{"closed merged is completed", "closed", "", true, gitforge.PRCompleted},
		{"closed unmerged is abandoned", "closed", "", false, gitforge.PRAbandoned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := &gogithub.PullRequest{
				State:          gogithub.Ptr(tt.state),
				MergeableState: gogithub.Ptr(tt.mergeableState),
				Merged:         gogithub.Ptr(tt.merged),
			}
			if got := mapPullRequestStatus(pr); got != tt.want {
				t.Errorf("mapPullRequestStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetTypeDistinguishesGHE(t *testing.T) {
	a := &Adapter{coord: gitforge.RepoCoordinate{Host: "github.com"}}
	if got := a.GetType(); got != gitforge.KindGitHub {
		t.Errorf("GetType() = %v, want %v", got, gitforge.KindGitHub)
	}

	a = &Adapter{coord: gitforge.RepoCoordinate{Host: "github.example.com"}}
	if got := a.GetType(); got != gitforge.KindGHE {
		t.Errorf("GetType() = %v, want %v", got, gitforge.KindGHE)
	}
}

func TestMapMergeMethod(t *testing.T) {
	tests := map[gitforge.MergeMethod]string{
		gitforge.MergeCommit: "merge",
		gitforge.MergeSquash: "squash",
		gitforge.MergeRebase: "rebase",
	}
	for in, want := range tests {
		if got := mapMergeMethod(in); got != want {
			t.Errorf("mapMergeMethod(%v) = %q, want %q", in, got, want)
		}
	}
}

var _ gitforge.Adapter = (*Adapter)(nil)
