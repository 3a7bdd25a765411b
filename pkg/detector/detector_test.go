package detector

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/archmagece/gitforge/pkg/gitforge"
)

func TestDetectWellKnownHosts(t *testing.T) {
	tests := []struct {
		host string
		want gitforge.ForgeKind
	}{
		{host: "github.com", want: gitforge.KindGitHub},
		{host: "bitbucket.org", want: gitforge.KindBitbucket},
		{host: "dev.azure.com", want: gitforge.KindAzure},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, err := Detect(context.Background(), http.DefaultClient, tt.host, "")
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

// fakeResponse is what a probed path returns: a status, an optional
// header set, and a body.
type fakeResponse struct {
	status  int
	headers map[string]string
	body    string
}

type fakeRoundTripper struct {
	responses map[string]fakeResponse
}

func (f *fakeRoundTripper) Do(req *http.Request) (*http.Response, error) {
	fr, ok := f.responses[req.URL.Path]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: http.NoBody, Header: http.Header{}}, nil
	}
	header := http.Header{}
	for k, v := range fr.headers {
		header.Set(k, v)
	}
	return &http.Response{
		StatusCode: fr.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(fr.body)),
	}, nil
}

func TestDetectProbesGitLabByNonEmptyBody(t *testing.T) {
	client := &fakeRoundTripper{responses: map[string]fakeResponse{
		"/api/v4/projects": {status: http.StatusOK, body: `[{"id":1}]`},
	}}

	got, err := Detect(context.Background(), client, "gitlab.internal.example.com", "")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != gitforge.KindGitLab {
		t.Errorf("Detect() = %q, want %q", got, gitforge.KindGitLab)
	}
}

func TestDetectGitLabProbeWithEmptyBodyDoesNotMatch(t *testing.T) {
	client := &fakeRoundTripper{responses: map[string]fakeResponse{
		"/api/v4/projects": {status: http.StatusOK, body: ""},
	}}

	_, err := Detect(context.Background(), client, "mystery.example.com", "")
	if err == nil {
		t.Fatal("expected error: a 200 with an empty body should not be classified as GitLab")
	}
}

func TestDetectProbesGHEByHeaderNotStatus(t *testing.T) {
	client := &fakeRoundTripper{responses: map[string]fakeResponse{
		"/api/v3": {status: http.StatusOK, headers: map[string]string{"X-GitHub-Enterprise-Version": "3.11.0"}},
	}}

	got, err := Detect(context.Background(), client, "ghe.internal.example.com", "")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != gitforge.KindGHE {
		t.Errorf("Detect() = %q, want %q", got, gitforge.KindGHE)
	}
}

func TestDetectSelfHostedServerWithOKButNoGHEHeaderFallsThroughToGitLab(t *testing.T) {
	// A self-hosted server that happens to return 200 on /api/v3 but
	// carries no X-GitHub-Enterprise-Version header must not be
	// misclassified as GHE; the GitLab probe should get a chance next.
	client := &fakeRoundTripper{responses: map[string]fakeResponse{
		"/api/v3":          {status: http.StatusOK, body: `{}`},
		"/api/v4/projects": {status: http.StatusOK, body: `[{"id":1}]`},
	}}

	got, err := Detect(context.Background(), client, "self-hosted.example.com", "")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != gitforge.KindGitLab {
		t.Errorf("Detect() = %q, want %q", got, gitforge.KindGitLab)
	}
}

func TestDetectProbesGHEBeforeGitLab(t *testing.T) {
	client := &fakeRoundTripper{responses: map[string]fakeResponse{
		"/api/v3":          {status: http.StatusOK, headers: map[string]string{"X-GitHub-Enterprise-Version": "3.11.0"}},
		"/api/v4/projects": {status: http.StatusOK, body: `[{"id":1}]`},
	}}

	got, err := Detect(context.Background(), client, "ghe.internal.example.com", "")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != gitforge.KindGHE {
		t.Errorf("Detect() = %q, want %q (GHE must win when both probes match)", got, gitforge.KindGHE)
	}
}

func TestDetectProbesGiteaByNonEmptyBody(t *testing.T) {
	client := &fakeRoundTripper{responses: map[string]fakeResponse{
		"/api/v1/settings/api": {status: http.StatusOK, body: `{"max_response_items":50}`},
	}}

	got, err := Detect(context.Background(), client, "gitea.internal.example.com", "")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != gitforge.KindGitea {
		t.Errorf("Detect() = %q, want %q", got, gitforge.KindGitea)
	}
}

func TestDetectProbesGogsFallback(t *testing.T) {
	client := &fakeRoundTripper{responses: map[string]fakeResponse{
		"/api/v1/users/octocat": {status: http.StatusOK, body: `{"login":"octocat"}`},
	}}

	got, err := Detect(context.Background(), client, "gogs.internal.example.com", "octocat")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != gitforge.KindGogs {
		t.Errorf("Detect() = %q, want %q", got, gitforge.KindGogs)
	}
}

func TestDetectNon2xxIsTreatedAsProbeFailedNotFatal(t *testing.T) {
	client := &fakeRoundTripper{responses: map[string]fakeResponse{
		"/api/v3":               {status: http.StatusUnauthorized, headers: map[string]string{"X-GitHub-Enterprise-Version": "3.11.0"}},
		"/api/v4/projects":      {status: http.StatusUnauthorized, body: `[{"id":1}]`},
		"/api/v1/settings/api":  {status: http.StatusForbidden, body: `{}`},
		"/api/v1/users/octocat": {status: http.StatusOK, body: `{"login":"octocat"}`},
	}}

	got, err := Detect(context.Background(), client, "gogs.internal.example.com", "octocat")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != gitforge.KindGogs {
		t.Errorf("Detect() = %q, want %q (non-2xx probes must all fail through to Gogs)", got, gitforge.KindGogs)
	}
}

func TestDetectUnidentifiable(t *testing.T) {
	client := &fakeRoundTripper{responses: map[string]fakeResponse{}}

	_, err := Detect(context.Background(), client, "mystery.example.com", "")
	if err == nil {
		t.Fatal("expected error for unidentifiable host")
	}
}
