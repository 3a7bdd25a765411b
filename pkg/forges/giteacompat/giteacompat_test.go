// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package giteacompat

import (
	"testing"

	"code.gitea.io/sdk/gitea"

	"github.com/archmagece/gitforge/pkg/gitforge"
)

func TestMapPullRequestStatus(t *testing.T) {
	tests := []struct {
		name      string
		state     gitea.StateType
		mergeable bool
		hasMerged bool
		want      gitforge.PullRequestStatus
	}{
		{"open mergeable is active", gitea.StateOpen, true, false, gitforge.PRActive},
		{"open unmergeable is conflicts", gitea.StateOpen, false, false, gitforge.PRConflicts},
		{"closed merged is completed", gitea.StateClosed, false, true, gitforge.PRCompleted},
		{"closed unmerged is abandoned", gitea.StateClosed, false, false, gitforge.PRAbandoned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := &gitea.PullRequest{State: tt.state, Mergeable: tt.mergeable, HasMerged: tt.hasMerged}
			if got := mapPullRequestStatus(pr); got != tt.want {
				t.Errorf("mapPullRequestStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildWebhookParamsDistinguishesGogs(t *testing.T) {
	gitea := &Adapter{kind: gitforge.KindGitea}
	if got := gitea.BuildWebhookParams("push"); got.HeaderName != "X-Gitea-Event" {
		t.Errorf("gitea HeaderName = %q, want X-Gitea-Event", got.HeaderName)
	}

	gogs := &Adapter{kind: gitforge.KindGogs}
	if got := gogs.BuildWebhookParams("push"); got.HeaderName != "X-Gogs-Event" {
		t.Errorf("gogs HeaderName = %q, want X-Gogs-Event", got.HeaderName)
	}
}

var _ gitforge.Adapter = (*Adapter)(nil)
