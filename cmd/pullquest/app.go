package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pullquest/console/internal/auth"
	"github.com/pullquest/console/internal/backend"
	"github.com/pullquest/console/internal/config"
	"github.com/pullquest/console/internal/directory"
	"github.com/pullquest/console/internal/health"
	"github.com/pullquest/console/internal/issue"
	"github.com/pullquest/console/internal/metrics"
	"github.com/pullquest/console/internal/session"
	"github.com/pullquest/console/internal/store"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	state   *store.Store
	backend *backend.Client
	session *session.Store
	gate    *auth.Gate
	issues  *issue.Submitter
	dir     *directory.Lister
	checker *health.Checker
	nav     *terminalNav
}

// terminalNav reports navigation targets to the operator.
type terminalNav struct {
	logger zerolog.Logger
	last   string
}

func (n *terminalNav) Navigate(path string) {
	n.last = path
	n.logger.Info().Str("path", path).Msg("navigate")
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, hydrate bool) (*app, error) {
	st, err := store.New(cfg.StatePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	m := metrics.New()
	nav := &terminalNav{logger: logger.With().Str("component", "nav").Logger()}
	api := backend.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, st, m, logger)
	sessions := session.New(st, api, nav, session.Config{LoginPath: cfg.LoginPath}, logger)

	checker := health.NewChecker(logger)
	checker.RegisterPing("state", true, func(context.Context) error { return st.Ping() })
	checker.RegisterPing("backend", false, api.Ping)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		state:   st,
		backend: api,
		session: sessions,
		gate:    auth.NewGate(st, auth.NewDecoder(cfg.JWTSecret), cfg.HomePath, m, logger),
		issues:  issue.NewSubmitter(api, sessions, st, nav, m, logger),
		dir:     directory.NewLister(api, st, cfg.PerPage, logger),
		checker: checker,
		nav:     nav,
	}

	if hydrate {
		if err := sessions.Hydrate(ctx); err != nil {
			logger.Warn().Err(err).Msg("session hydration could not clear storage")
		}
	}
	return a, nil
}

func (a *app) close() {
	if err := a.state.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("closing state store")
	}
}
