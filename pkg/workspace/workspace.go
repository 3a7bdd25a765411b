// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package workspace manages the disposable local clone used while rebasing
// a pull request's source branch onto its target. A Workspace is acquired
// for the lifetime of one rebase attempt and guaranteed removed afterwards,
// success or failure.
package workspace

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/archmagece/gitforge/internal/gitcmd"
	"github.com/archmagece/gitforge/internal/parser"
)

const randSuffixChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// Logger is the minimal logging surface a Workspace needs. It mirrors the
// logger shape used across this module so callers can share one
// implementation everywhere.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}

// Workspace is a local working copy rooted at Path, owned exclusively by
// the caller that acquired it.
type Workspace struct {
	// Path is the workspace's root directory on disk.
	Path string

	// SourceBranch is the branch this workspace was acquired for.
	SourceBranch string

	executor *gitcmd.Executor
	logger   Logger
}

// Acquire creates a fresh workspace directory at
// /tmp/repo/{sourceBranch}/rebase-{random5} and returns it along with a
// cleanup function that removes the directory unconditionally. Callers
// must defer the cleanup function immediately:
//
//	ws, cleanup, err := workspace.Acquire(ctx, "feature-x")
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
func Acquire(ctx context.Context, sourceBranch string, opts ...Option) (*Workspace, func(), error) {
	if sourceBranch == "" {
		return nil, func() {}, fmt.Errorf("workspace: source branch is required")
	}

	o := &options{baseDir: filepath.Join(os.TempDir(), "repo")}
	for _, opt := range opts {
		opt(o)
	}

	dir := filepath.Join(o.baseDir, sourceBranch, "rebase-"+randomSuffix(5))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, func() {}, fmt.Errorf("workspace: failed to create %s: %w", dir, err)
	}

	cleanup := func() {
		_ = os.RemoveAll(dir)
	}

	execOpts := []gitcmd.Option{}
	if len(o.env) > 0 {
		execOpts = append(execOpts, gitcmd.WithEnv(o.env))
	}

	ws := &Workspace{
		Path:         dir,
		SourceBranch: sourceBranch,
		executor:     gitcmd.NewExecutor(execOpts...),
		logger:       noopLogger{},
	}

	return ws, cleanup, nil
}

// SetLogger overrides the workspace's logger. Intended for library
// consumers that already have their own Logger implementation.
func (w *Workspace) SetLogger(logger Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// Clone clones url into the workspace directory. If opts.CACertPath is
// set, it is recorded in the clone's local config as http.sslCAInfo so
// later fetch/push invocations against the same remote trust it.
func (w *Workspace) Clone(ctx context.Context, opts CloneOptions) error {
	if opts.URL == "" {
		return fmt.Errorf("workspace: clone URL is required")
	}

	args := []string{"clone"}
	if opts.Depth > 0 {
		args = append(args, "--depth", fmt.Sprintf("%d", opts.Depth))
	}
	args = append(args, opts.URL, w.Path)

	w.logger.Debug("cloning %s into %s", opts.URL, w.Path)

	result, err := w.executor.Run(ctx, "", args...)
	if err != nil {
		return fmt.Errorf("workspace: clone failed: %w", err)
	}
	if result.ExitCode != 0 {
		return &Error{Op: "clone", Path: w.Path, Stderr: result.Stderr}
	}

	if opts.CACertPath != "" {
		if _, err := w.executor.Run(ctx, w.Path, "config", "http.sslCAInfo", opts.CACertPath); err != nil {
			return fmt.Errorf("workspace: failed to set http.sslCAInfo: %w", err)
		}
	}

	return nil
}

// CheckoutBranch runs "git checkout -b {branch} {startPoint}", matching
// rebaseBranch step 2 ("checkout -b {source} origin/{source}").
func (w *Workspace) CheckoutBranch(ctx context.Context, branch, startPoint string) error {
	result, err := w.executor.Run(ctx, w.Path, "checkout", "-b", branch, startPoint)
	if err != nil {
		return fmt.Errorf("workspace: checkout failed: %w", err)
	}
	if result.ExitCode != 0 {
		return &Error{Op: "checkout -b " + branch, Path: w.Path, Stderr: result.Stderr}
	}
	return nil
}

// Rebase runs "git rebase {onto}". Its exit code is deliberately ignored —
// callers must inspect Status afterwards to decide whether conflicts need
// resolving, per rebaseBranch step 3.
func (w *Workspace) Rebase(ctx context.Context, onto string) error {
	_, err := w.executor.Run(ctx, w.Path, "rebase", onto)
	if err != nil {
		return fmt.Errorf("workspace: failed to invoke rebase: %w", err)
	}
	return nil
}

// ContinueRebase runs "git rebase --continue". If git reports that there
// is nothing to commit ("No changes - did you forget to use 'git add'"),
// it substitutes "git rebase --skip" instead, per rebaseBranch step 5.
func (w *Workspace) ContinueRebase(ctx context.Context) error {
	result, err := w.executor.Run(ctx, w.Path, "rebase", "--continue")
	if err != nil {
		return fmt.Errorf("workspace: rebase --continue failed: %w", err)
	}

	combined := result.Stdout + result.Stderr
	if strings.Contains(combined, "No changes - did you forget to use 'git add'") {
		skipResult, err := w.executor.Run(ctx, w.Path, "rebase", "--skip")
		if err != nil {
			return fmt.Errorf("workspace: rebase --skip failed: %w", err)
		}
		if skipResult.ExitCode != 0 && !strings.Contains(skipResult.Stdout+skipResult.Stderr, "CONFLICT") {
			return &Error{Op: "rebase --skip", Path: w.Path, Stderr: skipResult.Stderr}
		}
		return nil
	}

	if result.ExitCode != 0 && !strings.Contains(combined, "CONFLICT") {
		return &Error{Op: "rebase --continue", Path: w.Path, Stderr: result.Stderr}
	}

	return nil
}

// AbortRebase runs "git rebase --abort".
func (w *Workspace) AbortRebase(ctx context.Context) error {
	result, err := w.executor.Run(ctx, w.Path, "rebase", "--abort")
	if err != nil {
		return fmt.Errorf("workspace: rebase --abort failed: %w", err)
	}
	if result.ExitCode != 0 {
		return &Error{Op: "rebase --abort", Path: w.Path, Stderr: result.Stderr}
	}
	return nil
}

// Status reads "git status --porcelain" plus ahead/behind counts against
// upstream and returns the parsed Status.
func (w *Workspace) Status(ctx context.Context) (*Status, error) {
	output, err := w.executor.RunOutput(ctx, w.Path, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("workspace: failed to read status: %w", err)
	}

	status, err := parser.ParseStatus(output)
	if err != nil {
		return nil, fmt.Errorf("workspace: failed to parse status: %w", err)
	}

	aheadBehind, err := w.executor.RunOutput(ctx, w.Path, "rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if err == nil {
		ahead, behind, parseErr := parser.ParseAheadBehind(aheadBehind)
		if parseErr == nil {
			status.Ahead = ahead
			status.Behind = behind
		}
	}

	return status, nil
}

// ResolveFile stages a single resolved file and commits it with the
// message convention used by rebaseBranch step 4: "Resolves conflict
// with {file}".
func (w *Workspace) ResolveFile(ctx context.Context, file string) error {
	if result, err := w.executor.Run(ctx, w.Path, "add", file); err != nil {
		return fmt.Errorf("workspace: git add %s failed: %w", file, err)
	} else if result.ExitCode != 0 {
		return &Error{Op: "add " + file, Path: w.Path, Stderr: result.Stderr}
	}

	msg := fmt.Sprintf("Resolves conflict with %s", file)
	result, err := w.executor.Run(ctx, w.Path, "commit", "-m", msg)
	if err != nil {
		return fmt.Errorf("workspace: commit for %s failed: %w", file, err)
	}
	if result.ExitCode != 0 && !strings.Contains(result.Stdout+result.Stderr, "nothing to commit") {
		return &Error{Op: "commit " + file, Path: w.Path, Stderr: result.Stderr}
	}
	return nil
}

// PushForceWithLease runs "git push origin {branch} --force-with-lease",
// matching rebaseBranch step 7.
func (w *Workspace) PushForceWithLease(ctx context.Context, branch string) error {
	result, err := w.executor.Run(ctx, w.Path, "push", "origin", branch, "--force-with-lease")
	if err != nil {
		return fmt.Errorf("workspace: push failed: %w", err)
	}
	if result.ExitCode != 0 {
		return &Error{Op: "push " + branch, Path: w.Path, Stderr: result.Stderr}
	}
	return nil
}

// ShowStaged recovers one side of a three-way conflict from the index
// (stage 1 = common ancestor, stage 2 = ours, stage 3 = theirs) via
// "git show :{stage}:{file}". Used by conflict resolvers that need to
// reconstruct all three blobs before shelling out to merge-file.
func (w *Workspace) ShowStaged(ctx context.Context, stage int, file string) (string, error) {
	ref := fmt.Sprintf(":%d:%s", stage, file)
	result, err := w.executor.Run(ctx, w.Path, "show", ref)
	if err != nil {
		return "", fmt.Errorf("workspace: git show %s failed: %w", ref, err)
	}
	if result.ExitCode != 0 {
		return "", &Error{Op: "show " + ref, Path: w.Path, Stderr: result.Stderr}
	}
	return result.Stdout, nil
}

// CheckoutOurs runs "git checkout --ours {file}", replacing the
// working-tree file with the caller's side of the conflict; the file is
// not staged. Used by resolvers that want to keep one side wholesale
// (e.g. the kustomize resolver) before rewriting the file in place.
func (w *Workspace) CheckoutOurs(ctx context.Context, file string) error {
	if result, err := w.executor.Run(ctx, w.Path, "checkout", "--ours", file); err != nil {
		return fmt.Errorf("workspace: checkout --ours %s failed: %w", file, err)
	} else if result.ExitCode != 0 {
		return &Error{Op: "checkout --ours " + file, Path: w.Path, Stderr: result.Stderr}
	}
	return nil
}

// Exec runs an arbitrary git subcommand inside the workspace. It exists
// for conflict resolvers that need git plumbing (merge-file, cat-file)
// beyond the higher-level methods above.
func (w *Workspace) Exec(ctx context.Context, args ...string) (*gitcmd.Result, error) {
	return w.executor.Run(ctx, w.Path, args...)
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randSuffixChars[rand.Intn(len(randSuffixChars))]
	}
	return string(b)
}
