// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitforge

import (
	"errors"
	"fmt"
)

// ErrNotImplemented is returned by operations the bound forge's API
// does not support at all (Azure's getFileContents/listFiles, per
// spec.md §9 Open Question (i)), as opposed to an operation that
// failed for a forge-reported reason.
var ErrNotImplemented = errors.New("gitforge: not implemented for this forge")

// ErrorKind is the closed, forge-independent error taxonomy every
// surfaced error carries.
type ErrorKind string

const (
	KindInsufficientPermissions  ErrorKind = "InsufficientPermissions"
	KindBadCredentials           ErrorKind = "BadCredentials"
	KindUserNotFound             ErrorKind = "UserNotFound"
	KindInvalidGitURL            ErrorKind = "InvalidGitUrl"
	KindRepoNotFound             ErrorKind = "RepoNotFound"
	KindGroupNotFound            ErrorKind = "GroupNotFound"
	KindWebhookAlreadyExists     ErrorKind = "WebhookAlreadyExists"
	KindUnknownWebhook           ErrorKind = "UnknownWebhook"
	KindMergeConflict            ErrorKind = "MergeConflict"
	KindNoCommitsForPullRequest  ErrorKind = "NoCommitsForPullRequest"
	KindMergeBlockedForPullRequest ErrorKind = "MergeBlockedForPullRequest"
	KindUnresolvedConflicts      ErrorKind = "UnresolvedConflicts"
	KindConflictResolutionFailed ErrorKind = "ConflictResolutionFailed"
	KindRetryable                ErrorKind = "Retryable"
	KindFatal                    ErrorKind = "Fatal"
)

// Error is the struct every adapter and orchestrator operation returns
// for forge-facing failures. Kind is what callers should switch on;
// Forge and Cause are diagnostic.
type Error struct {
	Kind    ErrorKind
	Message string
	Forge   ForgeKind
	Cause   error

	// PullNumber is set for MergeConflict errors, per §4.3's
	// "Carries pullNumber" note.
	PullNumber int

	// HTTPStatus is the forge's raw HTTP response status when the error
	// originated from an HTTP call, 0 otherwise. It lets callers classify
	// on the status itself (e.g. a bare 409 on merge) when the message
	// text doesn't match a known pattern.
	HTTPStatus int
}

// StatusCode returns e.HTTPStatus, so *Error satisfies
// interface{ StatusCode() int }. The orchestrator's merge-retry
// classification reads HTTPStatus directly after errors.As to *Error.
func (e *Error) StatusCode() int {
	return e.HTTPStatus
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gitforge: %s: %s", e.Kind, e.Message)
	if e.Forge != "" {
		msg += fmt.Sprintf(" (forge=%s)", e.Forge)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Kind, enabling
// errors.Is(err, &gitforge.Error{Kind: gitforge.KindMergeConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return true
	}
	return t.Kind == e.Kind
}

// New constructs an *Error. Forge and cause may be zero/nil.
func New(kind ErrorKind, forge ForgeKind, message string, cause error) *Error {
	return &Error{Kind: kind, Forge: forge, Message: message, Cause: cause}
}
