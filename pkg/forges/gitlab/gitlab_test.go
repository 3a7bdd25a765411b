// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xanzy/go-gitlab"

	"github.com/archmagece/gitforge/pkg/gitforge"
)

func TestMapMergeRequestStatus(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		state       string
		mergeStatus string
		mergedAt    *time.Time
		want        gitforge.PullRequestStatus
	}{
		{"opened cannot_be_merged is conflicts", "opened", "cannot_be_merged", nil, gitforge.PRConflicts},
		{"opened can_be_merged is active", "opened", "can_be_merged", nil, gitforge.PRActive},
		{"closed with merged_at is completed", "closed", "", &now, gitforge.PRCompleted},
		{"closed without merged_at is abandoned", "closed", "", nil, gitforge.PRAbandoned},
		{"unknown state is not set", "locked", "", nil, gitforge.PRNotSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := &gitlab.MergeRequest{
				State:       tt.state,
				MergeStatus: tt.mergeStatus,
				MergedAt:    tt.mergedAt,
			}
			if got := mapMergeRequestStatus(mr); got != tt.want {
				t.Errorf("mapMergeRequestStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestAwaitMergeStatusSettledPollsWithDelay verifies that
// awaitMergeStatusSettled sleeps between poll iterations instead of
// busy-looping: it must see multiple "checking" responses before the
// merge_status settles, and each iteration must go through the
// adapter's sleep hook.
func TestAwaitMergeStatusSettledPollsWithDelay(t *testing.T) {
	var requestCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requestCount, 1)
		status := "checking"
		if n >= 3 {
			status = "can_be_merged"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"iid":          1,
			"merge_status": status,
		})
	}))
	defer server.Close()

	client, err := gitlab.NewClient("tok", gitlab.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("building gitlab client: %v", err)
	}

	var sleepCount int32
	a := &Adapter{
		coord:  gitforge.RepoCoordinate{Owner: "acme", Repo: "widgets"},
		proj:   "acme/widgets",
		client: client,
		sleep: func(ctx context.Context, d time.Duration) error {
			atomic.AddInt32(&sleepCount, 1)
			return nil
		},
	}

	if err := a.awaitMergeStatusSettled(context.Background(), 1); err != nil {
		t.Fatalf("awaitMergeStatusSettled() error = %v", err)
	}

	if got := atomic.LoadInt32(&requestCount); got != 3 {
		t.Errorf("requestCount = %d, want 3", got)
	}
	if got := atomic.LoadInt32(&sleepCount); got != 2 {
		t.Errorf("sleepCount = %d, want 2 (one per \"checking\" iteration)", got)
	}
}

func TestAwaitMergeStatusSettledPropagatesSleepError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"iid":          1,
			"merge_status": "checking",
		})
	}))
	defer server.Close()

	client, err := gitlab.NewClient("tok", gitlab.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("building gitlab client: %v", err)
	}

	a := &Adapter{
		coord:  gitforge.RepoCoordinate{Owner: "acme", Repo: "widgets"},
		proj:   "acme/widgets",
		client: client,
		sleep: func(ctx context.Context, d time.Duration) error {
			return fmt.Errorf("sleep aborted")
		},
	}

	if err := a.awaitMergeStatusSettled(context.Background(), 1); err == nil {
		t.Fatal("expected error when sleep fails")
	}
}

var _ gitforge.Adapter = (*Adapter)(nil)
