package models

import (
	"encoding/json"
	"time"
)

// Issue is an upstream issue as returned by the application backend.
type Issue struct {
	ID        int64     `json:"id,omitempty"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state,omitempty"`
	HTMLURL   string    `json:"html_url,omitempty"`
	User      *Account  `json:"user,omitempty"`
	Labels    []Label   `json:"labels,omitempty"`
	Assignees []Account `json:"assignees,omitempty"`
	CreatedAt string    `json:"created_at,omitempty"`
	UpdatedAt string    `json:"updated_at,omitempty"`

	Repository *RepositoryDescriptor `json:"repository,omitempty"`
}

// RepositoryDescriptor is the repository block attached to ingested issues.
type RepositoryDescriptor struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Owner           Account `json:"owner"`
	FullName        string  `json:"full_name"`
	HTMLURL         string  `json:"html_url"`
	Language        string  `json:"language"`
	StargazersCount int     `json:"stargazers_count"`
	ForksCount      int     `json:"forks_count"`
	Description     string  `json:"description"`
}

// NewRepositoryDescriptor builds the placeholder descriptor the backend
// completes on ingestion.
func NewRepositoryDescriptor(owner, repo string) *RepositoryDescriptor {
	return &RepositoryDescriptor{
		Name:     repo,
		Owner:    Account{Login: owner},
		FullName: owner + "/" + repo,
		HTMLURL:  "https://github.com/" + owner + "/" + repo,
	}
}

// RepoRef names a repository by owner and name.
type RepoRef struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// Repository is a repository listed for a GitHub user.
type Repository struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	HTMLURL         string  `json:"html_url"`
	Language        string  `json:"language"`
	StargazersCount int     `json:"stargazers_count"`
	UpdatedAt       string  `json:"updated_at"`
	OpenIssuesCount int     `json:"open_issues_count"`
	Owner           Account `json:"owner"`
}

// Org is a GitHub organization a user belongs to.
type Org struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	AvatarURL string `json:"avatar_url"`
}

// PendingIngest records an issue that was created upstream but whose
// ingestion step has not completed yet.
type PendingIngest struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Repo        string          `json:"repo"`
	IssueNumber int             `json:"issueNumber"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
}
