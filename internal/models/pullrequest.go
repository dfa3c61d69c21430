package models

import (
	"fmt"
	"strings"
	"time"
)

// Account is a code-host user reference.
type Account struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Label is an issue or pull request label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// PullRequest is the read model of an upstream pull request.
type PullRequest struct {
	Number             int       `json:"number"`
	Title              string    `json:"title"`
	Body               string    `json:"body"`
	HTMLURL            string    `json:"html_url"`
	User               Account   `json:"user"`
	State              string    `json:"state"` // "open" | "closed"
	Draft              bool      `json:"draft"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Comments           int       `json:"comments"`
	Labels             []Label   `json:"labels"`
	MergeableState     string    `json:"mergeable_state,omitempty"`
	Assignees          []Account `json:"assignees,omitempty"`
	RequestedReviewers []Account `json:"requested_reviewers,omitempty"`
	Additions          int       `json:"additions,omitempty"`
	Deletions          int       `json:"deletions,omitempty"`
	ChangedFiles       int       `json:"changed_files,omitempty"`
}

// Matches reports whether the title or author login contains term, ignoring case.
func (p *PullRequest) Matches(term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.User.Login), term)
}

// Age renders how long ago t was, relative to now: "5h ago", "3d ago",
// or a plain date beyond a week. Times after now count as "0h ago".
func Age(t, now time.Time) string {
	hours := max(int(now.Sub(t).Hours()), 0)
	switch {
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case hours < 168:
		return fmt.Sprintf("%dd ago", hours/24)
	default:
		return t.Format("2006-01-02")
	}
}
