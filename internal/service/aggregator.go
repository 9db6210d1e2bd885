package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rift-rewind/internal/blob"
	"rift-rewind/internal/constants"
	"rift-rewind/internal/domain"
	"rift-rewind/internal/repository"
	"rift-rewind/internal/stats"

	"github.com/rs/zerolog"
)

// Aggregator recomputes a player's result wholesale from the cached
// summaries of the snapshot. The aggregate is written before the status
// flips to DONE; the gate must never see DONE without a stored result.
type Aggregator struct {
	players    *repository.PlayerRepository
	store      blob.Store
	summarizer Summarizer
	logger     zerolog.Logger

	// now is swappable so tests get reproducible generated_at stamps.
	now func() time.Time
}

func NewAggregator(players *repository.PlayerRepository, store blob.Store, summarizer Summarizer, logger zerolog.Logger) *Aggregator {
	return &Aggregator{players: players, store: store, summarizer: summarizer, logger: logger, now: time.Now}
}

func (a *Aggregator) Run(ctx context.Context, puuid string) error {
	rec, err := a.players.Get(ctx, puuid)
	if err != nil {
		return err
	}

	summaries, err := a.loadSummaries(ctx, rec)
	if err != nil {
		return err
	}

	result := stats.Aggregate(puuid, summaries, a.now().UTC())
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode aggregate for %s: %w", puuid, err)
	}
	if err := a.store.Put(ctx, blob.AggregateKey(puuid), body); err != nil {
		return err
	}

	if rec.Status != domain.StatusDone {
		err := a.players.SetStatus(ctx, puuid, domain.StatusPending, domain.StatusDone)
		if err != nil && !errors.Is(err, repository.ErrInvalidTransition) {
			return err
		}
		// A concurrent aggregation already flipped the status; both runs
		// wrote the same result, so the lost race is fine.
	}

	a.logger.Info().
		Str("puuid", puuid).
		Int("total_matches", result.TotalMatches).
		Int("wins", result.Wins).
		Msg("aggregation complete")

	a.triggerSummarizer(result)
	return nil
}

// loadSummaries requires every snapshot entry to be cached. A missing
// summary means an outstanding or over-counted match job; aggregation
// bails out and a later trigger retries.
func (a *Aggregator) loadSummaries(ctx context.Context, rec *domain.PlayerRecord) ([]domain.MatchSummary, error) {
	summaries := make([]domain.MatchSummary, 0, len(rec.MatchIDs))
	for _, matchID := range rec.MatchIDs {
		body, err := a.store.Get(ctx, blob.SummaryKey(rec.PUUID, matchID))
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("summary for match %s not cached yet: %w", matchID, err)
		}
		if err != nil {
			return nil, err
		}

		var summary domain.MatchSummary
		if err := json.Unmarshal(body, &summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary for match %s: %w", matchID, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// triggerSummarizer kicks off insight generation without tying its fate
// to the pipeline: a summarizer failure never reverts DONE.
func (a *Aggregator) triggerSummarizer(result *domain.AggregatedResult) {
	if a.summarizer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
		defer cancel()

		if _, err := a.summarizer.Summarize(ctx, result, ""); err != nil {
			a.logger.Warn().Err(err).Str("puuid", result.PUUID).Msg("summarizer failed")
		}
	}()
}
