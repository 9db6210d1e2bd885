package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rift-rewind/internal/domain"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidTransition is returned when a status update would move a
	// player backwards (for example DONE -> PENDING outside the
	// administrative reprocess path).
	ErrInvalidTransition = errors.New("repository: invalid status transition")
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(db *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{db: db, logger: logger}
}

func (r *PlayerRepository) Get(ctx context.Context, puuid string) (*domain.PlayerRecord, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectPlayer+` WHERE puuid = ?`, puuid))
}

// GetByHandleKey is the secondary-index lookup that lets repeat
// StatusGate calls skip account resolution.
func (r *PlayerRepository) GetByHandleKey(ctx context.Context, handleKey string) (*domain.PlayerRecord, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectPlayer+` WHERE handle_key = ?`, handleKey))
}

const selectPlayer = `
	SELECT puuid, handle_key, name, tag, platform, status, match_ids,
	       total_matches, processed_matches, created_at, updated_at
	FROM players`

func (r *PlayerRepository) scanOne(row *sql.Row) (*domain.PlayerRecord, error) {
	var rec domain.PlayerRecord
	var matchIDs string
	err := row.Scan(&rec.PUUID, &rec.HandleKey, &rec.Name, &rec.Tag, &rec.Platform,
		&rec.Status, &matchIDs, &rec.TotalMatches, &rec.ProcessedMatches,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read player: %w", err)
	}
	if err := json.Unmarshal([]byte(matchIDs), &rec.MatchIDs); err != nil {
		return nil, fmt.Errorf("failed to decode match id snapshot: %w", err)
	}
	return &rec, nil
}

// Create inserts a new PENDING record. A concurrent insert for the same
// puuid loses cleanly: the conflict is ignored and created reports
// whether this call won, so exactly one caller enqueues the user job.
func (r *PlayerRepository) Create(ctx context.Context, rec *domain.PlayerRecord) (created bool, err error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO players (puuid, handle_key, name, tag, platform, status, match_ids,
		                     total_matches, processed_matches, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '[]', 0, 0, ?, ?)
		ON CONFLICT (puuid) DO NOTHING`,
		rec.PUUID, rec.HandleKey, rec.Name, rec.Tag, rec.Platform, rec.Status, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to create player %s: %w", rec.PUUID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create player %s: %w", rec.PUUID, err)
	}
	if n == 0 {
		return false, nil
	}

	r.logger.Info().
		Str("puuid", rec.PUUID).
		Str("handle_key", rec.HandleKey).
		Str("status", string(rec.Status)).
		Msg("player record created")
	return true, nil
}

// SetMatchSnapshot stores the fanned-out match id list and resets the
// completion counter. The snapshot fixes what aggregation will read,
// regardless of games played while the pipeline runs.
func (r *PlayerRepository) SetMatchSnapshot(ctx context.Context, puuid string, matchIDs []string) error {
	encoded, err := json.Marshal(matchIDs)
	if err != nil {
		return fmt.Errorf("failed to encode match ids: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE players
		SET match_ids = ?, total_matches = ?, processed_matches = 0, updated_at = ?
		WHERE puuid = ?`,
		string(encoded), len(matchIDs), time.Now(), puuid)
	if err != nil {
		return fmt.Errorf("failed to snapshot matches for %s: %w", puuid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	r.logger.Info().Str("puuid", puuid).Int("total_matches", len(matchIDs)).Msg("match snapshot recorded")
	return nil
}

// IncrementProcessed atomically bumps the completion counter and
// returns the new processed/total pair. The caller that observes
// processed == total is the one that triggers aggregation.
func (r *PlayerRepository) IncrementProcessed(ctx context.Context, puuid string) (processed, total int, err error) {
	err = r.db.QueryRowContext(ctx, `
		UPDATE players
		SET processed_matches = processed_matches + 1, updated_at = ?
		WHERE puuid = ?
		RETURNING processed_matches, total_matches`,
		time.Now(), puuid).Scan(&processed, &total)
	if err == sql.ErrNoRows {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment processed count for %s: %w", puuid, err)
	}
	return processed, total, nil
}

// SetStatus performs a guarded transition. The update only applies when
// the stored status equals from, enforcing the forward-only state
// machine in the database rather than by convention.
func (r *PlayerRepository) SetStatus(ctx context.Context, puuid string, from, to domain.Status) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE players SET status = ?, updated_at = ? WHERE puuid = ? AND status = ?`,
		to, time.Now(), puuid, from)
	if err != nil {
		return fmt.Errorf("failed to set status for %s: %w", puuid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: player %s not in status %s", ErrInvalidTransition, puuid, from)
	}

	r.logger.Info().
		Str("puuid", puuid).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("player status updated")
	return nil
}

// ResetForReprocess is the administrative escape hatch: a DONE player
// goes back to PENDING with cleared counters so the pipeline can run
// again. Not part of the normal request flow.
func (r *PlayerRepository) ResetForReprocess(ctx context.Context, puuid string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE players
		SET status = ?, match_ids = '[]', total_matches = 0, processed_matches = 0, updated_at = ?
		WHERE puuid = ? AND status = ?`,
		domain.StatusPending, time.Now(), puuid, domain.StatusDone)
	if err != nil {
		return fmt.Errorf("failed to reset player %s: %w", puuid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: player %s is not DONE", ErrInvalidTransition, puuid)
	}

	r.logger.Info().Str("puuid", puuid).Msg("player reset for reprocessing")
	return nil
}
