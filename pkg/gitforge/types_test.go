package gitforge

import (
	"errors"
	"testing"
)

func TestCreateRepoOptionsResolvedAutoInit(t *testing.T) {
	tests := []struct {
		name string
		opts CreateRepoOptions
		want bool
	}{
		{
			name: "zero value defaults to true",
			opts: CreateRepoOptions{},
			want: true,
		},
		{
			name: "explicit true",
			opts: CreateRepoOptions{AutoInit: true, AutoInitSet: true},
			want: true,
		},
		{
			name: "explicit false opt-out",
			opts: CreateRepoOptions{AutoInit: false, AutoInitSet: true},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.ResolvedAutoInit(); got != tt.want {
				t.Errorf("ResolvedAutoInit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := New(KindMergeConflict, KindGitHub, "merge conflict between base and head", nil)

	if !errors.Is(err, &Error{Kind: KindMergeConflict}) {
		t.Error("expected errors.Is to match on Kind")
	}
	if errors.Is(err, &Error{Kind: KindRepoNotFound}) {
		t.Error("expected errors.Is to not match a different Kind")
	}
	if !errors.Is(err, &Error{}) {
		t.Error("expected a zero-Kind target to match any *Error")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying transport error")
	err := New(KindRetryable, "", "request failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the wrapped cause")
	}
}
