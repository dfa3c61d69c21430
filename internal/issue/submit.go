// Package issue creates staked issues upstream and registers them with the
// application's tracking backend.
package issue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pullquest/console/internal/backend"
	perrors "github.com/pullquest/console/internal/errors"
	"github.com/pullquest/console/internal/metrics"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/internal/session"
)

// DashboardPath is where a maintainer lands after a complete submission.
const DashboardPath = "/maintainer/dashboard"

// Backend is the subset of the application API used for submissions.
type Backend interface {
	CreateIssue(ctx context.Context, req backend.CreateIssueRequest) (*backend.CreateIssueResponse, error)
	IngestIssue(ctx context.Context, req backend.IngestIssueRequest) error
	IngestRaw(ctx context.Context, payload json.RawMessage) error
}

// SessionSource yields the current session.
type SessionSource interface {
	Current() (models.Session, bool)
}

// Journal durably records issues whose ingestion has not completed.
type Journal interface {
	SavePending(ctx context.Context, p models.PendingIngest) error
	GetPending(ctx context.Context, id string) (*models.PendingIngest, error)
	ListPending(ctx context.Context) ([]models.PendingIngest, error)
	DeletePending(ctx context.Context, id string) error
}

// Outcome describes a completed submission.
type Outcome struct {
	IssueNumber int
	Issue       models.Issue
}

// Submitter runs the two-step create then ingest sequence. Step 2 is only
// issued after step 1 succeeded. A failed step 2 is not compensated: the
// upstream issue stays, and submitting the same draft again creates a
// second one. ResumeIngest replays step 2 alone from the journal.
type Submitter struct {
	backend  Backend
	sessions SessionSource
	journal  Journal
	nav      session.Navigator
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	inFlight atomic.Bool
	now      func() time.Time
}

// NewSubmitter creates a submitter. journal may be nil, in which case
// partial failures cannot be resumed.
func NewSubmitter(b Backend, sessions SessionSource, journal Journal, nav session.Navigator, m *metrics.Metrics, logger zerolog.Logger) *Submitter {
	if nav == nil {
		nav = session.NavigatorFunc(func(string) {})
	}
	return &Submitter{
		backend:  b,
		sessions: sessions,
		journal:  journal,
		nav:      nav,
		metrics:  m,
		logger:   logger.With().Str("component", "issue").Logger(),
		now:      time.Now,
	}
}

// InFlight reports whether a submission is running.
func (s *Submitter) InFlight() bool {
	return s.inFlight.Load()
}

// Submit creates the issue upstream and then ingests it.
func (s *Submitter) Submit(ctx context.Context, d *Draft) (*Outcome, error) {
	sess, ok := s.sessions.Current()
	if !ok {
		return nil, perrors.ErrNotAuthenticated
	}
	if !sess.CanMaintain() {
		return nil, perrors.ErrNotPermitted
	}
	if err := d.Validate(); err != nil {
		s.metrics.RecordSubmission("invalid")
		return nil, err
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, perrors.ErrInFlight
	}
	defer s.inFlight.Store(false)

	log := s.logger.With().Str("owner", d.Owner).Str("repo", d.Repo).Logger()

	created, err := s.backend.CreateIssue(ctx, createRequest(d, sess))
	if err != nil {
		s.metrics.RecordSubmission("create_failed")
		log.Error().Err(err).Msg("issue creation failed")
		return nil, &perrors.SubmitError{
			Stage:   perrors.StageCreate,
			Message: perrors.UserMessage(err),
			Err:     fmt.Errorf("%w: %w", perrors.ErrCreateFailed, err),
		}
	}

	issue := models.Issue{Number: created.Number}
	if created.Issue != nil {
		issue = *created.Issue
	}
	issue.Repository = models.NewRepositoryDescriptor(d.Owner, d.Repo)
	log = log.With().Int("issue", issue.Number).Logger()
	log.Info().Int("stake", d.Stake).Msg("issue created upstream")

	req := backend.IngestIssueRequest{
		UserID:          sess.ID,
		GitHubUsername:  sess.GitHubUsername,
		Repository:      models.RepoRef{Owner: d.Owner, Repo: d.Repo},
		Issue:           issue,
		StakingRequired: d.Stake,
		UserAccessToken: sess.AccessToken,
	}
	pendingID := s.journalIngest(ctx, d, issue.Number, req)

	if err := s.backend.IngestIssue(ctx, req); err != nil {
		s.metrics.RecordSubmission("ingest_failed")
		log.Error().Err(err).Str("pending_id", pendingID).Msg("issue created but ingestion failed")
		return nil, &perrors.SubmitError{
			Stage:       perrors.StageIngest,
			Message:     perrors.UserMessage(err),
			IssueNumber: issue.Number,
			PendingID:   pendingID,
			Err:         fmt.Errorf("%w: %w", perrors.ErrIngestFailed, err),
		}
	}

	s.clearPending(ctx, pendingID)
	s.metrics.RecordSubmission("success")
	log.Info().Msg("issue ingested")
	s.nav.Navigate(DashboardPath)

	return &Outcome{IssueNumber: issue.Number, Issue: issue}, nil
}

// ResumeIngest replays the ingestion step of a journaled submission. The
// upstream issue is not created again.
func (s *Submitter) ResumeIngest(ctx context.Context, pendingID string) (*models.PendingIngest, error) {
	if s.journal == nil {
		return nil, errors.New("no pending-ingest journal configured")
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, perrors.ErrInFlight
	}
	defer s.inFlight.Store(false)

	p, err := s.journal.GetPending(ctx, pendingID)
	if err != nil {
		return nil, fmt.Errorf("loading pending ingest %s: %w", pendingID, err)
	}

	if err := s.backend.IngestRaw(ctx, p.Payload); err != nil {
		s.metrics.RecordSubmission("resume_failed")
		s.logger.Error().Err(err).Str("pending_id", p.ID).Int("issue", p.IssueNumber).Msg("resumed ingestion failed")
		return p, &perrors.SubmitError{
			Stage:       perrors.StageIngest,
			Message:     perrors.UserMessage(err),
			IssueNumber: p.IssueNumber,
			PendingID:   p.ID,
			Err:         fmt.Errorf("%w: %w", perrors.ErrIngestFailed, err),
		}
	}

	s.clearPending(ctx, p.ID)
	s.metrics.RecordSubmission("resumed")
	s.logger.Info().Str("pending_id", p.ID).Int("issue", p.IssueNumber).Msg("resumed ingestion succeeded")
	return p, nil
}

// Pending lists journaled submissions awaiting ingestion, oldest first.
func (s *Submitter) Pending(ctx context.Context) ([]models.PendingIngest, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.ListPending(ctx)
}

func createRequest(d *Draft, sess models.Session) backend.CreateIssueRequest {
	labels := append([]string{}, d.Labels...)
	assignees := append([]string{}, d.Assignees...)
	return backend.CreateIssueRequest{
		Owner:       d.Owner,
		Repo:        d.Repo,
		Title:       d.Title,
		Body:        d.Body,
		Labels:      labels,
		Assignees:   assignees,
		Milestone:   d.Milestone,
		Stake:       d.Stake,
		GitHubToken: sess.AccessToken,
	}
}

// journalIngest records step 2 before it is attempted. A journal failure
// is logged and does not block the submission.
func (s *Submitter) journalIngest(ctx context.Context, d *Draft, number int, req backend.IngestIssueRequest) string {
	if s.journal == nil {
		return ""
	}
	payload, err := json.Marshal(req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not encode ingest payload for journal")
		return ""
	}
	p := models.PendingIngest{
		ID:          uuid.NewString(),
		Owner:       d.Owner,
		Repo:        d.Repo,
		IssueNumber: number,
		Payload:     payload,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.journal.SavePending(ctx, p); err != nil {
		s.logger.Warn().Err(err).Msg("could not journal pending ingest")
		return ""
	}
	s.refreshGauge(ctx)
	return p.ID
}

func (s *Submitter) clearPending(ctx context.Context, id string) {
	if s.journal == nil || id == "" {
		return
	}
	if err := s.journal.DeletePending(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("pending_id", id).Msg("could not clear pending ingest")
	}
	s.refreshGauge(ctx)
}

func (s *Submitter) refreshGauge(ctx context.Context) {
	pending, err := s.journal.ListPending(ctx)
	if err != nil {
		return
	}
	s.metrics.SetPendingIngests(float64(len(pending)))
}
