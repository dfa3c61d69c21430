// Package session holds the authenticated user's identity and keeps it in
// sync with durable storage and the application backend.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/pkg/tokenstore"
)

// ContextFetcher returns the server's view of a user.
type ContextFetcher interface {
	UserContext(ctx context.Context, email string) (*models.Session, error)
}

// Navigator moves the operator to another screen.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Config holds session store settings.
type Config struct {
	LoginPath string
}

// Store is the single owner of the current session. It is the only writer
// of the token and user keys in durable storage.
type Store struct {
	mu      sync.RWMutex
	current *models.Session
	loading bool

	storage tokenstore.Store
	backend ContextFetcher
	nav     Navigator
	cfg     Config
	logger  zerolog.Logger
}

// New creates a session store. The store starts in the loading state until
// Hydrate returns.
func New(storage tokenstore.Store, backend ContextFetcher, nav Navigator, cfg Config, logger zerolog.Logger) *Store {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Store{
		loading: true,
		storage: storage,
		backend: backend,
		nav:     nav,
		cfg:     cfg,
		logger:  logger.With().Str("component", "session").Logger(),
	}
}

// Hydrate restores the session from durable storage and refreshes it from
// the backend. Any failure of the refresh clears the session. The call is
// made once and never retried.
func (s *Store) Hydrate(ctx context.Context) error {
	defer s.setLoading(false)

	rawUser, userErr := s.storage.Get(ctx, tokenstore.KeyUser)
	token, tokenErr := s.storage.Get(ctx, tokenstore.KeyToken)
	if userErr != nil || tokenErr != nil || rawUser == "" || token == "" {
		s.logger.Debug().Msg("no persisted session, starting anonymous")
		return nil
	}

	var persisted models.Session
	if err := json.Unmarshal([]byte(rawUser), &persisted); err != nil {
		s.logger.Warn().Err(err).Msg("persisted user is malformed, clearing session")
		return s.Update(ctx, nil)
	}

	fresh, err := s.backend.UserContext(ctx, persisted.Email)
	if err != nil {
		s.logger.Warn().Err(err).Msg("session refresh failed, clearing session")
		return s.Update(ctx, nil)
	}
	if fresh.Email == "" {
		fresh.Email = persisted.Email
	}
	if err := fresh.Validate(); err != nil {
		s.logger.Warn().Err(err).Msg("server returned an invalid session, clearing session")
		return s.Update(ctx, nil)
	}

	s.logger.Info().Str("user_id", fresh.ID).Str("role", string(fresh.Role)).Msg("session hydrated")
	return s.Update(ctx, fresh)
}

// Update replaces the session wholesale. A non-nil session is persisted
// under the user key first and only then installed in memory, so a failed
// write leaves the previous session in place. nil removes both the user and
// token keys together; the in-memory session is dropped even when that
// removal fails.
func (s *Store) Update(ctx context.Context, sess *models.Session) error {
	if sess == nil {
		err := s.storage.Delete(ctx, tokenstore.KeyUser, tokenstore.KeyToken)
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("clearing persisted session: %w", err)
		}
		return nil
	}

	if err := sess.Validate(); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := s.storage.Set(ctx, tokenstore.KeyUser, string(data)); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	cp := *sess
	s.mu.Lock()
	s.current = &cp
	s.mu.Unlock()
	return nil
}

// Login stores the bearer token issued by the login flow, then installs the
// server's view of the user. When that lookup fails nothing stays behind.
func (s *Store) Login(ctx context.Context, token, email string) (models.Session, error) {
	if token == "" {
		return models.Session{}, errors.New("login requires a token")
	}
	if err := s.storage.Set(ctx, tokenstore.KeyToken, token); err != nil {
		return models.Session{}, fmt.Errorf("persisting token: %w", err)
	}

	sess, err := s.backend.UserContext(ctx, email)
	if err == nil {
		if sess.Email == "" {
			sess.Email = email
		}
		err = sess.Validate()
	}
	if err != nil {
		if clearErr := s.Update(ctx, nil); clearErr != nil {
			s.logger.Error().Err(clearErr).Msg("could not clear failed login")
		}
		return models.Session{}, fmt.Errorf("login: %w", err)
	}

	if err := s.Update(ctx, sess); err != nil {
		return models.Session{}, err
	}
	s.logger.Info().Str("user_id", sess.ID).Str("role", string(sess.Role)).Msg("logged in")
	return *sess, nil
}

// Logout clears the session and always navigates to the login screen, even
// when clearing storage fails.
func (s *Store) Logout(ctx context.Context) error {
	err := s.Update(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("logout could not clear storage")
	}
	s.nav.Navigate(s.cfg.LoginPath)
	return err
}

// Current returns a copy of the session, if any.
func (s *Store) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Session{}, false
	}
	return *s.current, true
}

// Loading reports whether hydration is still in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}
