package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/pullquest/console/internal/errors"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/pkg/tokenstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "state.db")
	store, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew_CreatesDB(t *testing.T) {
	store := newTestStore(t)

	for _, table := range []string{"client_state", "pending_ingests", "meta"} {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
	assert.NoError(t, store.Ping())
}

func TestClientState_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Get(ctx, tokenstore.KeyToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)

	require.NoError(t, store.Set(ctx, tokenstore.KeyToken, "jwt"))
	require.NoError(t, store.Set(ctx, tokenstore.KeyUser, `{"id":"u1","role":"maintainer"}`))
	require.NoError(t, store.Set(ctx, tokenstore.KeyToken, "jwt-2"))

	v, err := store.Get(ctx, tokenstore.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "jwt-2", v)

	require.NoError(t, store.Delete(ctx, tokenstore.KeyToken, tokenstore.KeyUser))
	_, err = store.Get(ctx, tokenstore.KeyToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	_, err = store.Get(ctx, tokenstore.KeyUser)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestClientState_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state.db")

	first, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, tokenstore.KeyToken, "persisted"))
	require.NoError(t, first.Close())

	second, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()

	v, err := second.Get(ctx, tokenstore.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "persisted", v)
}

func TestPending_CRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	older := models.PendingIngest{
		ID: "p-1", Owner: "acme", Repo: "widgets", IssueNumber: 41,
		Payload: []byte(`{"stakingRequired":20}`), CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := models.PendingIngest{
		ID: "p-2", Owner: "acme", Repo: "widgets", IssueNumber: 42,
		Payload: []byte(`{"stakingRequired":15}`),
	}
	require.NoError(t, store.SavePending(ctx, older))
	require.NoError(t, store.SavePending(ctx, newer))

	got, err := store.GetPending(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 41, got.IssueNumber)
	assert.JSONEq(t, `{"stakingRequired":20}`, string(got.Payload))

	list, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p-1", list[0].ID)

	require.NoError(t, store.DeletePending(ctx, "p-1"))
	_, err = store.GetPending(ctx, "p-1")
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}
