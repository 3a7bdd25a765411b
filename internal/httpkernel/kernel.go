// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package httpkernel builds the retrying HTTP client shared by every
// forge adapter: a single retryablehttp.Client configured with the
// kernel's transport-retry policy, secondary rate-limit handling, and
// basic-auth/PAT/CA-cert wiring, composed with any caller-supplied
// retry decision.
package httpkernel

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// retryableStatus is the fixed set of HTTP statuses the transport retries
// on, beyond the connection-error case retryablehttp already covers.
var retryableStatus = map[int]bool{
	http.StatusMethodNotAllowed:    true, // 405
	http.StatusRequestTimeout:      true, // 408
	http.StatusPayloadTooLarge:     true, // 413
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
	521:                            true, // web server is down
	522:                            true, // connection timed out
	524:                            true, // a timeout occurred
}

var secondaryRateLimitPattern = regexp.MustCompile(`(?i)secondary rate limit`)

// maxRetryAttempts bounds every retry the client makes, transport
// retries and secondary rate-limit retries alike; Retry-After only sets
// the delay before each rate-limit retry.
const maxRetryAttempts = 10

// Config configures Build.
type Config struct {
	Username string
	Password string // PAT or password, sent via HTTP basic auth
	CACert   string // PEM-encoded CA certificate bytes or a file path

	// UserAgent is sent on every request. Forges that reject requests
	// without one (Bitbucket, some GHE installs) require this be set.
	UserAgent string

	// ExtraRetry is OR-composed with the kernel's built-in retry
	// classification: a response is retried if either says so.
	ExtraRetry retryablehttp.CheckRetry
}

// Build returns an *http.Client wired with the kernel's transport-retry
// policy, secondary rate-limit handling, and an auth/UA-injecting
// RoundTripper.
func Build(cfg Config) (*http.Client, error) {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetryAttempts
	rc.Logger = nil

	transport := cleanhttp.DefaultPooledTransport()
	if cfg.CACert != "" {
		pool, err := loadCACertPool(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("httpkernel: loading CA cert: %w", err)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}
	rc.HTTPClient.Transport = transport

	rc.Backoff = func(minWait, maxWait time.Duration, attempt int, resp *http.Response) time.Duration {
		if resp != nil && isSecondaryRateLimit(resp) {
			return rateLimitDelay(resp)
		}
		return transportRetryDelay()
	}

	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if retry, checkErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err); retry || checkErr != nil {
			return retry, checkErr
		}
		if resp != nil {
			if retryableStatus[resp.StatusCode] || isSecondaryRateLimit(resp) {
				return true, nil
			}
		}
		if cfg.ExtraRetry != nil {
			return cfg.ExtraRetry(ctx, resp, err)
		}
		return false, nil
	}

	base := rc.StandardClient()
	base.Transport = &authRoundTripper{
		next:      base.Transport,
		username:  cfg.Username,
		password:  cfg.Password,
		userAgent: cfg.UserAgent,
	}

	return base, nil
}

// isSecondaryRateLimit reports whether resp looks like GitHub's
// secondary rate limit response: HTTP 403 with a response body matching
// "secondary rate limit" (e.g. `{"message":"You have exceeded a
// secondary rate limit..."}`). The body is read and restored so the
// caller can still decode it normally afterward.
func isSecondaryRateLimit(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden || resp.Body == nil {
		return false
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return secondaryRateLimitPattern.Match(body)
}

// rateLimitDelay honors Retry-After when the forge sends one, else
// waits 30s plus up to 20s of jitter.
func rateLimitDelay(resp *http.Response) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 30*time.Second + time.Duration(rand.Intn(20000))*time.Millisecond
}

// transportRetryDelay is the per-retry delay for ordinary transport
// retries: 5000ms plus up to 5000ms of jitter.
func transportRetryDelay() time.Duration {
	return 5000*time.Millisecond + time.Duration(rand.Intn(5000))*time.Millisecond
}

func loadCACertPool(caCert string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()

	var pem []byte
	if _, err := os.Stat(caCert); err == nil {
		pem, err = os.ReadFile(caCert)
		if err != nil {
			return nil, err
		}
	} else {
		pem = []byte(caCert)
	}

	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("httpkernel: no certificates found in CA cert input")
	}
	return pool, nil
}

// authRoundTripper injects basic auth and a stable User-Agent on every
// outbound request without mutating the caller's original request.
type authRoundTripper struct {
	next      http.RoundTripper
	username  string
	password  string
	userAgent string
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.username != "" {
		clone.SetBasicAuth(t.username, t.password)
	}
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	return t.next.RoundTrip(clone)
}
