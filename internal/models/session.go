package models

import "fmt"

// Session is the authenticated user's identity as seen by the client.
type Session struct {
	ID             string `json:"id"`
	Email          string `json:"email,omitempty"`
	Role           Role   `json:"role"`
	GitHubUsername string `json:"githubUsername,omitempty"`
	AccessToken    string `json:"accessToken,omitempty"`
}

// Validate checks the invariants of a non-nil session.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session has no user id")
	}
	if !s.Role.Valid() {
		return fmt.Errorf("session has invalid role %q", s.Role)
	}
	return nil
}

// CanMaintain reports whether the session may perform maintainer actions.
func (s *Session) CanMaintain() bool {
	return s.Role == RoleMaintainer
}
