package backend

import (
	"encoding/json"

	"github.com/pullquest/console/internal/models"
)

// envelope is the response wrapper used by the maintainer endpoints.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Number  int             `json:"number,omitempty"`
	Message string          `json:"message,omitempty"`
}

// CreateIssueRequest is the payload of POST /api/maintainer/create-issue.
type CreateIssueRequest struct {
	Owner       string   `json:"owner"`
	Repo        string   `json:"repo"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Labels      []string `json:"labels"`
	Assignees   []string `json:"assignees"`
	Milestone   string   `json:"milestone,omitempty"`
	Stake       int      `json:"stake"`
	GitHubToken string   `json:"githubToken,omitempty"`
}

// CreateIssueResponse is the created upstream issue.
type CreateIssueResponse struct {
	Number int
	Issue  *models.Issue
}

// IngestIssueRequest is the payload of POST /api/maintainer/ingest-issue.
type IngestIssueRequest struct {
	UserID          string         `json:"userId"`
	GitHubUsername  string         `json:"githubUsername"`
	Repository      models.RepoRef `json:"repository"`
	Issue           models.Issue   `json:"issue"`
	StakingRequired int            `json:"stakingRequired"`
	UserAccessToken string         `json:"userAccessToken,omitempty"`
}

// contextUser is the server view returned by GET /context/{email}. Older
// backends send "_id" and nest the GitHub login under "profile".
type contextUser struct {
	models.Session
	LegacyID string `json:"_id,omitempty"`
	Username string `json:"username,omitempty"`
	Profile  *struct {
		Username string `json:"username"`
	} `json:"profile,omitempty"`
}

func (u *contextUser) session() models.Session {
	s := u.Session
	if s.ID == "" {
		s.ID = u.LegacyID
	}
	if s.GitHubUsername == "" {
		switch {
		case u.Profile != nil && u.Profile.Username != "":
			s.GitHubUsername = u.Profile.Username
		case u.Username != "":
			s.GitHubUsername = u.Username
		}
	}
	return s
}
