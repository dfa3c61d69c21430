// Package github performs the pull-request decisions against the code host.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"

	perrors "github.com/pullquest/console/internal/errors"
	"github.com/pullquest/console/internal/metrics"
	"github.com/pullquest/console/internal/requestid"
)

const service = "github"

// Client wraps the GitHub API with the maintainer's access token.
type Client struct {
	gh      *github.Client
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewClient creates a GitHub client. An empty baseURL targets github.com.
func NewClient(token, baseURL string, timeout time.Duration, m *metrics.Metrics, logger zerolog.Logger) (*Client, error) {
	gh := github.NewClient(&http.Client{
		Transport: &tokenTransport{token: token, base: http.DefaultTransport},
		Timeout:   timeout,
	})
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
		}
		gh.BaseURL = u
	}

	return &Client{
		gh:      gh,
		metrics: m,
		logger:  logger.With().Str("component", "github").Logger(),
	}, nil
}

// ClosePR closes an open pull request without merging it.
func (c *Client) ClosePR(ctx context.Context, owner, repo string, number int) error {
	start := time.Now()
	state := "closed"
	_, resp, err := c.gh.PullRequests.Edit(ctx, owner, repo, number, &github.PullRequest{State: &state})
	c.record("close-pr", resp, err, start)
	if err != nil {
		return wrapErr("closing pull request", resp, err)
	}

	c.logger.Info().
		Str("owner", owner).
		Str("repo", repo).
		Int("pr", number).
		Msg("closed pull request")
	return nil
}

// MergePR merges a pull request with the repository's default method.
func (c *Client) MergePR(ctx context.Context, owner, repo string, number int, message string) error {
	start := time.Now()
	result, resp, err := c.gh.PullRequests.Merge(ctx, owner, repo, number, message, nil)
	c.record("merge-pr", resp, err, start)
	if err != nil {
		return wrapErr("merging pull request", resp, err)
	}
	if !result.GetMerged() {
		return &perrors.APIError{Service: service, StatusCode: resp.StatusCode, Message: result.GetMessage()}
	}

	c.logger.Info().
		Str("owner", owner).
		Str("repo", repo).
		Int("pr", number).
		Str("sha", result.GetSHA()).
		Msg("merged pull request")
	return nil
}

func (c *Client) record(endpoint string, resp *github.Response, err error, start time.Time) {
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	} else if err == nil {
		status = "ok"
	}
	c.metrics.RecordAPICall(service, endpoint, status, time.Since(start).Seconds())
}

// wrapErr keeps GitHub's own message when the API answered.
func wrapErr(action string, resp *github.Response, err error) error {
	if resp == nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	var msg string
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		msg = ghErr.Message
	}
	return &perrors.APIError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Err:        fmt.Errorf("%s: %w", action, err),
	}
}

type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	if t.token != "" {
		req2.Header.Set("Authorization", "token "+t.token)
	}
	requestid.Attach(req2)
	return t.base.RoundTrip(req2)
}
