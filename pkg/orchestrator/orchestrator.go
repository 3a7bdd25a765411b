// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package orchestrator drives the Polled/Rebased/Waited/MergeAttempted
// state machine that underlies Adapter.UpdateAndMergePullRequest, and
// the rebaseBranch subsidiary state machine it calls into.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/archmagece/gitforge/pkg/gitforge"
	"github.com/archmagece/gitforge/pkg/resolver"
	"github.com/archmagece/gitforge/pkg/workspace"
)

// blockedPollInterval is how long the orchestrator sleeps between polls
// of a Blocked pull request, per rebaseBranch step 3.
const blockedPollInterval = 5 * time.Minute

// Logger is the minimal logging surface the orchestrator needs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}

// Sleeper abstracts time.Sleep so tests can advance a fake clock
// instead of waiting in real time.
type Sleeper func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Merger is the subset of gitforge.Adapter the orchestrator drives.
// Adapters satisfy it directly.
type Merger interface {
	GetPullRequest(ctx context.Context, pullNumber int) (*gitforge.PullRequest, error)
	MergePullRequest(ctx context.Context, opts gitforge.MergePullRequestOptions) (string, error)
	DeleteBranch(ctx context.Context, branch string) error
	GetType() gitforge.ForgeKind
}

// Orchestrator runs the merge state machine over one Merger.
type Orchestrator struct {
	merger   Merger
	logger   Logger
	sleep    Sleeper
	cloneURL string
}

// New builds an Orchestrator. cloneURL is the credential-baked remote
// used to materialize the rebase workspace.
func New(merger Merger, cloneURL string) *Orchestrator {
	return &Orchestrator{
		merger:   merger,
		logger:   noopLogger{},
		sleep:    realSleep,
		cloneURL: cloneURL,
	}
}

// SetLogger overrides the orchestrator's logger.
func (o *Orchestrator) SetLogger(logger Logger) {
	if logger != nil {
		o.logger = logger
	}
}

// SetSleeper overrides the orchestrator's sleep function. Intended for
// tests that drive a fake clock instead of waiting in real time.
func (o *Orchestrator) SetSleeper(sleep Sleeper) {
	if sleep != nil {
		o.sleep = sleep
	}
}

// UpdateAndMergePullRequest implements the Polled/Rebased/Waited/
// MergeAttempted loop of the merge orchestrator, per §4.6.
func (o *Orchestrator) UpdateAndMergePullRequest(ctx context.Context, opts gitforge.UpdateAndMergeOptions) (string, error) {
	waitBudget := ParseDuration(opts.WaitForBlocked)
	var cumulativeWait time.Duration

	res := opts.Resolver
	if res == nil {
		res = resolver.Default
	}

	for {
		pr, err := o.merger.GetPullRequest(ctx, opts.PullNumber)
		if err != nil {
			return "", err
		}

		switch pr.Status {
		case gitforge.PRConflicts:
			o.logger.Debug("pull request %d has conflicts, rebasing", opts.PullNumber)
			if _, err := o.RebaseBranch(ctx, gitforge.RebaseBranchOptions{
				SourceBranch: pr.SourceBranch,
				TargetBranch: pr.TargetBranch,
				Resolver:     res,
			}); err != nil {
				return "", err
			}
			continue

		case gitforge.PRBlocked:
			if cumulativeWait >= waitBudget {
				return "", gitforge.New(gitforge.KindMergeBlockedForPullRequest, o.merger.GetType(),
					fmt.Sprintf("pull request %d remained blocked past the %s budget", opts.PullNumber, opts.WaitForBlocked), nil)
			}
			o.logger.Info("pull request %d is blocked, waiting %s", opts.PullNumber, blockedPollInterval)
			if err := o.sleep(ctx, blockedPollInterval); err != nil {
				return "", err
			}
			cumulativeWait += blockedPollInterval
			continue

		default:
			message, err := o.merger.MergePullRequest(ctx, opts.MergePullRequestOptions)
			if err == nil {
				if opts.DeleteSourceBranch {
					_ = o.merger.DeleteBranch(ctx, pr.SourceBranch)
				}
				return message, nil
			}

			if isRebaseTriggeringError(err) || (opts.RetryEvaluator != nil && opts.RetryEvaluator(err)) {
				o.logger.Debug("merge attempt for pull request %d failed retryably, rebasing and retrying: %v", opts.PullNumber, err)
				if _, rebaseErr := o.RebaseBranch(ctx, gitforge.RebaseBranchOptions{
					SourceBranch: pr.SourceBranch,
					TargetBranch: pr.TargetBranch,
					Resolver:     res,
				}); rebaseErr != nil {
					return "", rebaseErr
				}
				if sleepErr := o.sleep(ctx, 1000*time.Millisecond+time.Duration(rand.Intn(5000))*time.Millisecond); sleepErr != nil {
					return "", sleepErr
				}
				continue
			}

			return "", err
		}
	}
}

// MergePullRequest runs a single merge attempt under the kernel retry
// policy only — it never rebases.
func (o *Orchestrator) MergePullRequest(ctx context.Context, opts gitforge.MergePullRequestOptions) (string, error) {
	return o.merger.MergePullRequest(ctx, opts)
}

var (
	baseBranchModified  = regexp.MustCompile(`(?i)base branch was modified`)
	notMergeable        = regexp.MustCompile(`(?i)pull request is not mergeable`)
	mergeConflictBody   = regexp.MustCompile(`(?i)merge conflict between base and head`)
)

// isRebaseTriggeringError classifies whether err should trigger a
// rebase-and-retry, per §4.6 step 5's merge-retryable patterns.
func isRebaseTriggeringError(err error) bool {
	var gfErr *gitforge.Error
	if errors.As(err, &gfErr) {
		if gfErr.Kind == gitforge.KindMergeConflict {
			return true
		}
		if baseBranchModified.MatchString(gfErr.Message) || notMergeable.MatchString(gfErr.Message) || mergeConflictBody.MatchString(gfErr.Message) {
			return true
		}
		switch gfErr.HTTPStatus {
		case 409, 405, 422:
			return true
		}
	}

	return false
}

// RebaseBranch runs the rebaseBranch subsidiary state machine: acquire
// a workspace, clone, rebase, resolve conflicts, push. Returns whether
// source was changed and pushed.
func (o *Orchestrator) RebaseBranch(ctx context.Context, opts gitforge.RebaseBranchOptions) (bool, error) {
	res := opts.Resolver
	if res == nil {
		res = resolver.Default
	}

	ws, cleanup, err := workspace.Acquire(ctx, opts.SourceBranch)
	if err != nil {
		return false, err
	}
	defer cleanup()

	if err := ws.Clone(ctx, workspace.CloneOptions{URL: o.cloneURL}); err != nil {
		return false, err
	}

	startPoint := fmt.Sprintf("origin/%s", opts.SourceBranch)
	if err := ws.CheckoutBranch(ctx, opts.SourceBranch, startPoint); err != nil {
		return false, err
	}

	// Rebase onto the remote-tracking ref: a plain clone only carries a
	// local branch for whichever ref was HEAD in the source repository,
	// so an unqualified target name would not resolve for any other
	// branch.
	if err := ws.Rebase(ctx, fmt.Sprintf("origin/%s", opts.TargetBranch)); err != nil {
		return false, err
	}

	for {
		status, err := ws.Status(ctx)
		if err != nil {
			return false, err
		}

		if len(status.ConflictFiles) == 0 {
			break
		}

		resolution, err := res(ctx, ws, status.ConflictFiles)
		if err != nil {
			return false, err
		}

		if len(resolution.ConflictErrors) > 0 {
			return false, gitforge.New(gitforge.KindConflictResolutionFailed, o.merger.GetType(),
				fmt.Sprintf("resolver reported %d unresolvable conflicts", len(resolution.ConflictErrors)), workspace.ErrConflictResolutionFailed)
		}

		if unresolved := setDifference(status.ConflictFiles, resolution.ResolvedConflicts); len(unresolved) > 0 {
			return false, gitforge.New(gitforge.KindUnresolvedConflicts, o.merger.GetType(),
				fmt.Sprintf("resolver left %d file(s) unresolved: %v", len(unresolved), unresolved), workspace.ErrUnresolvedConflicts)
		}

		for _, file := range resolution.ResolvedConflicts {
			if err := ws.ResolveFile(ctx, file); err != nil {
				return false, err
			}
		}

		if err := ws.ContinueRebase(ctx); err != nil {
			return false, err
		}
	}

	finalStatus, err := ws.Status(ctx)
	if err != nil {
		return false, err
	}

	if finalStatus.Ahead == 0 && finalStatus.Behind == 0 {
		return false, nil
	}

	if err := ws.PushForceWithLease(ctx, opts.SourceBranch); err != nil {
		return false, err
	}

	return true, nil
}

// setDifference returns the elements of a not present in b.
func setDifference(a, b []string) []string {
	present := make(map[string]bool, len(b))
	for _, x := range b {
		present[x] = true
	}
	var diff []string
	for _, x := range a {
		if !present[x] {
			diff = append(diff, x)
		}
	}
	return diff
}
