// Package directory lists the repositories and organizations a maintainer
// can stake issues on.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	perrors "github.com/pullquest/console/internal/errors"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/pkg/tokenstore"
)

// Sections reported in FetchError.
const (
	SectionRepos = "repos"
	SectionOrgs  = "orgs"
)

// Backend is the listing subset of the application API.
type Backend interface {
	ReposByUsername(ctx context.Context, username string, perPage, page int) ([]models.Repository, error)
	OrgsByUsername(ctx context.Context, username string) ([]models.Org, error)
}

// Lister performs the listings with their local preconditions.
type Lister struct {
	backend Backend
	storage tokenstore.Store
	perPage int
	logger  zerolog.Logger
}

// NewLister creates a lister.
func NewLister(b Backend, storage tokenstore.Store, perPage int, logger zerolog.Logger) *Lister {
	if perPage <= 0 {
		perPage = 30
	}
	return &Lister{
		backend: b,
		storage: storage,
		perPage: perPage,
		logger:  logger.With().Str("component", "directory").Logger(),
	}
}

// Repos lists the first page of a user's repositories.
func (l *Lister) Repos(ctx context.Context, username string) ([]models.Repository, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &perrors.ValidationError{Field: "githubUsername", Message: "Please enter a GitHub username"}
	}
	repos, err := l.backend.ReposByUsername(ctx, username, l.perPage, 1)
	if err != nil {
		l.logger.Warn().Err(err).Str("user", username).Msg("listing repositories failed")
		return nil, fetchError(SectionRepos, err, "Failed to load repositories")
	}
	return repos, nil
}

// Orgs lists the organizations of a user. It needs a stored token and makes
// no call without one.
func (l *Lister) Orgs(ctx context.Context, username string) ([]models.Org, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &perrors.ValidationError{Field: "githubUsername", Message: "Please enter a GitHub username"}
	}
	if tokenstore.Token(ctx, l.storage) == "" {
		return nil, &perrors.ValidationError{Field: "token", Message: "No auth token available – please log in again"}
	}
	orgs, err := l.backend.OrgsByUsername(ctx, username)
	if err != nil {
		l.logger.Warn().Err(err).Str("user", username).Msg("listing organizations failed")
		return nil, fetchError(SectionOrgs, err, "Failed to fetch orgs")
	}
	return orgs, nil
}

func fetchError(section string, err error, fallback string) *perrors.FetchError {
	msg := fallback
	var apiErr *perrors.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return &perrors.FetchError{Section: section, Message: msg, Err: err}
}
