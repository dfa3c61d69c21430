// Package backend is the HTTP client of the pullquest application API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/pullquest/console/internal/errors"
	"github.com/pullquest/console/internal/metrics"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/internal/requestid"
	"github.com/pullquest/console/pkg/tokenstore"
)

const service = "backend"

// Client calls the application backend. The bearer token is read from
// durable storage at call time; when absent the header is omitted and the
// server decides.
type Client struct {
	baseURL    string
	httpClient *http.Client
	storage    tokenstore.Store
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewClient creates a backend client.
func NewClient(baseURL string, timeout time.Duration, storage tokenstore.Store, m *metrics.Metrics, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		storage:    storage,
		metrics:    m,
		logger:     logger.With().Str("component", "backend").Logger(),
	}
}

// UserContext fetches the server's view of the user identified by email.
func (c *Client) UserContext(ctx context.Context, email string) (*models.Session, error) {
	var u contextUser
	if err := c.do(ctx, http.MethodGet, "context", "/context/"+url.PathEscape(email), nil, nil, &u); err != nil {
		return nil, err
	}
	s := u.session()
	return &s, nil
}

// CreateIssue creates the issue upstream through the backend.
func (c *Client) CreateIssue(ctx context.Context, req CreateIssueRequest) (*CreateIssueResponse, error) {
	env, err := c.envelope(ctx, http.MethodPost, "create-issue", "/api/maintainer/create-issue", nil, req, "GitHub issue creation failed")
	if err != nil {
		return nil, err
	}

	resp := &CreateIssueResponse{Number: env.Number}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		var issue models.Issue
		if err := json.Unmarshal(env.Data, &issue); err != nil {
			return nil, fmt.Errorf("decoding created issue: %w", err)
		}
		resp.Issue = &issue
		if resp.Number == 0 {
			resp.Number = issue.Number
		}
	}
	return resp, nil
}

// IngestIssue registers a created issue with the application's tracking store.
func (c *Client) IngestIssue(ctx context.Context, req IngestIssueRequest) error {
	_, err := c.envelope(ctx, http.MethodPost, "ingest-issue", "/api/maintainer/ingest-issue", nil, req, "Failed to save issue locally")
	return err
}

// IngestRaw replays a previously serialized ingest payload.
func (c *Client) IngestRaw(ctx context.Context, payload json.RawMessage) error {
	_, err := c.envelope(ctx, http.MethodPost, "ingest-issue", "/api/maintainer/ingest-issue", nil, payload, "Failed to save issue locally")
	return err
}

// RepoPulls lists open pull requests of a repository.
func (c *Client) RepoPulls(ctx context.Context, owner, repo string, perPage, page int) ([]models.PullRequest, error) {
	q := url.Values{}
	q.Set("owner", owner)
	q.Set("repo", repo)
	q.Set("state", "open")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))

	env, err := c.envelope(ctx, http.MethodGet, "repo-pulls", "/api/maintainer/repo-pulls", q, nil, "Failed to load pull requests")
	if err != nil {
		return nil, err
	}
	var prs []models.PullRequest
	if err := decodeData(env, &prs); err != nil {
		return nil, err
	}
	return prs, nil
}

// IssueByNumber fetches a single issue of a repository.
func (c *Client) IssueByNumber(ctx context.Context, owner, repo string, number int) (*models.Issue, error) {
	q := url.Values{}
	q.Set("owner", owner)
	q.Set("repo", repo)
	q.Set("number", strconv.Itoa(number))

	env, err := c.envelope(ctx, http.MethodGet, "issue-by-number", "/api/maintainer/issue-by-number", q, nil, "Failed to fetch issue")
	if err != nil {
		return nil, err
	}
	var issue models.Issue
	if err := decodeData(env, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// ReposByUsername lists repositories owned by a GitHub user.
func (c *Client) ReposByUsername(ctx context.Context, username string, perPage, page int) ([]models.Repository, error) {
	q := url.Values{}
	q.Set("githubUsername", username)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))

	env, err := c.envelope(ctx, http.MethodGet, "repos-by-username", "/api/maintainer/repos-by-username", q, nil, "Failed to load repositories")
	if err != nil {
		return nil, err
	}
	var repos []models.Repository
	if err := decodeData(env, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// OrgsByUsername lists organizations a GitHub user belongs to.
func (c *Client) OrgsByUsername(ctx context.Context, username string) ([]models.Org, error) {
	q := url.Values{}
	q.Set("githubUsername", username)

	env, err := c.envelope(ctx, http.MethodGet, "orgs-by-username", "/api/maintainer/orgs-by-username", q, nil, "Failed to fetch orgs")
	if err != nil {
		return nil, err
	}
	var orgs []models.Org
	if err := decodeData(env, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Ping checks that the backend answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// envelope performs a call whose body is a {success, data, message} wrapper
// and turns success=false into an APIError carrying the server message.
func (c *Client) envelope(ctx context.Context, method, endpoint, path string, query url.Values, body any, fallback string) (*envelope, error) {
	var env envelope
	if err := c.do(ctx, method, endpoint, path, query, body, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = fallback
		}
		return nil, &perrors.APIError{Service: service, StatusCode: http.StatusOK, Message: msg}
	}
	return &env, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := tokenstore.Token(ctx, c.storage); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	reqID := requestid.Attach(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPICall(service, endpoint, "error", time.Since(start).Seconds())
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordAPICall(service, endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("backend call")

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

func apiError(status int, body []byte) *perrors.APIError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	return &perrors.APIError{
		Service:    service,
		StatusCode: status,
		Message:    msg,
		Err:        fmt.Errorf("request failed with status %d", status),
	}
}

func decodeData(env *envelope, out any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}
