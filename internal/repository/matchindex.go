package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rift-rewind/internal/domain"

	"github.com/rs/zerolog"
)

type MatchIndexRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchIndexRepository(db *sql.DB, logger zerolog.Logger) *MatchIndexRepository {
	return &MatchIndexRepository{db: db, logger: logger}
}

func (r *MatchIndexRepository) Upsert(ctx context.Context, entry *domain.MatchIndexEntry) error {
	participants, err := json.Marshal(entry.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO match_index (match_id, platform_id, game_creation, participants, processed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (match_id) DO UPDATE SET
			platform_id = excluded.platform_id,
			game_creation = excluded.game_creation,
			participants = excluded.participants,
			processed_at = excluded.processed_at`,
		entry.MatchID, entry.PlatformID, entry.GameCreation, string(participants), time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert match index %s: %w", entry.MatchID, err)
	}

	r.logger.Debug().
		Str("match_id", entry.MatchID).
		Int("participants", len(entry.Participants)).
		Msg("match index updated")
	return nil
}

func (r *MatchIndexRepository) Get(ctx context.Context, matchID string) (*domain.MatchIndexEntry, error) {
	var entry domain.MatchIndexEntry
	var participants string
	err := r.db.QueryRowContext(ctx, `
		SELECT match_id, platform_id, game_creation, participants, processed_at
		FROM match_index WHERE match_id = ?`, matchID).
		Scan(&entry.MatchID, &entry.PlatformID, &entry.GameCreation, &participants, &entry.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read match index %s: %w", matchID, err)
	}
	if err := json.Unmarshal([]byte(participants), &entry.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants for %s: %w", matchID, err)
	}
	return &entry, nil
}

func (r *MatchIndexRepository) Exists(ctx context.Context, matchID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM match_index WHERE match_id = ?`, matchID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check match index %s: %w", matchID, err)
	}
	return true, nil
}
