package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"rift-rewind/internal/config"
	"rift-rewind/internal/database"
	"rift-rewind/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func pendingPlayer(puuid string) *domain.PlayerRecord {
	return &domain.PlayerRecord{
		PUUID:     puuid,
		HandleKey: "hide on bush#kr1#kr",
		Name:      "Hide on bush",
		Tag:       "KR1",
		Platform:  "kr",
		Status:    domain.StatusPending,
	}
}

func TestCreateReportsWhetherThisCallWon(t *testing.T) {
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	created, err := repo.Create(ctx, pendingPlayer("puuid-1"))
	require.NoError(t, err)
	require.True(t, created)

	// Same puuid again: the conflict is swallowed and created is false,
	// so only the first caller enqueues.
	created, err = repo.Create(ctx, pendingPlayer("puuid-1"))
	require.NoError(t, err)
	require.False(t, created)
}

func TestGetByHandleKey(t *testing.T) {
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.GetByHandleKey(ctx, "hide on bush#kr1#kr")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Create(ctx, pendingPlayer("puuid-1"))
	require.NoError(t, err)

	rec, err := repo.GetByHandleKey(ctx, "hide on bush#kr1#kr")
	require.NoError(t, err)
	require.Equal(t, "puuid-1", rec.PUUID)
	require.Equal(t, domain.StatusPending, rec.Status)
	require.Empty(t, rec.MatchIDs)
}

func TestSetMatchSnapshotResetsCounter(t *testing.T) {
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Create(ctx, pendingPlayer("puuid-1"))
	require.NoError(t, err)

	ids := []string{"KR_1", "KR_2", "KR_3"}
	require.NoError(t, repo.SetMatchSnapshot(ctx, "puuid-1", ids))

	rec, err := repo.Get(ctx, "puuid-1")
	require.NoError(t, err)
	require.Equal(t, ids, rec.MatchIDs)
	require.Equal(t, 3, rec.TotalMatches)
	require.Equal(t, 0, rec.ProcessedMatches)

	require.ErrorIs(t, repo.SetMatchSnapshot(ctx, "nobody", ids), ErrNotFound)
}

func TestIncrementProcessedReturnsNewCounts(t *testing.T) {
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Create(ctx, pendingPlayer("puuid-1"))
	require.NoError(t, err)
	require.NoError(t, repo.SetMatchSnapshot(ctx, "puuid-1", []string{"KR_1", "KR_2"}))

	processed, total, err := repo.IncrementProcessed(ctx, "puuid-1")
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Equal(t, 2, total)

	processed, total, err = repo.IncrementProcessed(ctx, "puuid-1")
	require.NoError(t, err)
	require.Equal(t, 2, processed)
	require.Equal(t, 2, total)

	_, _, err = repo.IncrementProcessed(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatusEnforcesForwardTransitions(t *testing.T) {
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Create(ctx, pendingPlayer("puuid-1"))
	require.NoError(t, err)

	// Backwards moves are rejected before touching the database.
	err = repo.SetStatus(ctx, "puuid-1", domain.StatusDone, domain.StatusPending)
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, repo.SetStatus(ctx, "puuid-1", domain.StatusPending, domain.StatusDone))

	rec, err := repo.Get(ctx, "puuid-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusDone, rec.Status)

	// The guarded update also fails when the stored status moved on.
	err = repo.SetStatus(ctx, "puuid-1", domain.StatusPending, domain.StatusDone)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetForReprocess(t *testing.T) {
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Create(ctx, pendingPlayer("puuid-1"))
	require.NoError(t, err)

	// Only DONE players can be reset.
	require.ErrorIs(t, repo.ResetForReprocess(ctx, "puuid-1"), ErrInvalidTransition)

	require.NoError(t, repo.SetMatchSnapshot(ctx, "puuid-1", []string{"KR_1"}))
	_, _, err = repo.IncrementProcessed(ctx, "puuid-1")
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(ctx, "puuid-1", domain.StatusPending, domain.StatusDone))

	require.NoError(t, repo.ResetForReprocess(ctx, "puuid-1"))

	rec, err := repo.Get(ctx, "puuid-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, rec.Status)
	require.Empty(t, rec.MatchIDs)
	require.Equal(t, 0, rec.TotalMatches)
	require.Equal(t, 0, rec.ProcessedMatches)
}

func TestMatchIndexUpsertAndLookup(t *testing.T) {
	repo := NewMatchIndexRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	ok, err := repo.Exists(ctx, "KR_1")
	require.NoError(t, err)
	require.False(t, ok)

	entry := &domain.MatchIndexEntry{
		MatchID:      "KR_1",
		PlatformID:   "KR",
		GameCreation: 1700000000000,
		Participants: []string{"puuid-1", "puuid-2"},
	}
	require.NoError(t, repo.Upsert(ctx, entry))
	require.NoError(t, repo.Upsert(ctx, entry)) // retried job, same content

	got, err := repo.Get(ctx, "KR_1")
	require.NoError(t, err)
	require.Equal(t, "KR", got.PlatformID)
	require.Equal(t, []string{"puuid-1", "puuid-2"}, got.Participants)

	ok, err = repo.Exists(ctx, "KR_1")
	require.NoError(t, err)
	require.True(t, ok)
}
