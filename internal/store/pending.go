package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	perrors "github.com/pullquest/console/internal/errors"
	"github.com/pullquest/console/internal/models"
)

// SavePending records an issue awaiting ingestion.
func (s *Store) SavePending(ctx context.Context, p models.PendingIngest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO pending_ingests (
		id, owner, repo, issue_number, payload, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Owner, p.Repo, p.IssueNumber, string(p.Payload), p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pending ingest: %w", err)
	}
	return nil
}

// GetPending returns a single pending ingest by ID.
func (s *Store) GetPending(ctx context.Context, id string) (*models.PendingIngest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
	SELECT id, owner, repo, issue_number, payload, created_at
	FROM pending_ingests WHERE id = ?`, id)

	p, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending ingest %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending ingest: %w", err)
	}
	return p, nil
}

// ListPending returns every pending ingest, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]models.PendingIngest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, owner, repo, issue_number, payload, created_at
	FROM pending_ingests ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending ingests: %w", err)
	}
	defer rows.Close()

	var out []models.PendingIngest
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending ingest: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DeletePending removes a pending ingest once ingestion has succeeded.
func (s *Store) DeletePending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_ingests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pending ingest: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPending(sc scanner) (*models.PendingIngest, error) {
	var (
		p         models.PendingIngest
		payload   string
		createdAt int64
	)
	if err := sc.Scan(&p.ID, &p.Owner, &p.Repo, &p.IssueNumber, &payload, &createdAt); err != nil {
		return nil, err
	}
	p.Payload = []byte(payload)
	p.CreatedAt = time.UnixMilli(createdAt)
	return &p, nil
}
