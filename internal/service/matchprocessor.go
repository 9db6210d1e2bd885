package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rift-rewind/internal/blob"
	"rift-rewind/internal/domain"
	"rift-rewind/internal/regions"
	"rift-rewind/internal/repository"
	"rift-rewind/internal/riot"
	"rift-rewind/internal/stats"

	"github.com/rs/zerolog"
)

// MatchProcessor handles one match job: cache-first fetch of the raw
// match, per-player summary derivation, participant indexing, and the
// completion check that triggers aggregation for the last outstanding
// match.
type MatchProcessor struct {
	riot       RiotAPI
	players    *repository.PlayerRepository
	matchIndex *repository.MatchIndexRepository
	store      blob.Store
	aggregator *Aggregator
	logger     zerolog.Logger
}

func NewMatchProcessor(riotAPI RiotAPI, players *repository.PlayerRepository, matchIndex *repository.MatchIndexRepository, store blob.Store, aggregator *Aggregator, logger zerolog.Logger) *MatchProcessor {
	return &MatchProcessor{riot: riotAPI, players: players, matchIndex: matchIndex, store: store, aggregator: aggregator, logger: logger}
}

func (p *MatchProcessor) Process(ctx context.Context, job domain.MatchJob) error {
	logger := p.logger.With().Str("puuid", job.PUUID).Str("match_id", job.MatchID).Logger()

	summaryKey := blob.SummaryKey(job.PUUID, job.MatchID)
	exists, err := p.store.Exists(ctx, summaryKey)
	if err != nil {
		return err
	}

	if exists {
		// Redelivered job: the summary write already happened, only the
		// completion check remains.
		logger.Info().Msg("summary already cached, skipping fetch")
	} else {
		match, err := p.loadMatch(ctx, job, logger)
		if err != nil {
			return err
		}

		summary, err := stats.Summarize(job.PUUID, match)
		if err != nil {
			return fmt.Errorf("failed to summarize match %s: %w", job.MatchID, err)
		}
		body, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		if err := p.store.Put(ctx, summaryKey, body); err != nil {
			return err
		}

		if err := p.matchIndex.Upsert(ctx, &domain.MatchIndexEntry{
			MatchID:      match.Metadata.MatchID,
			PlatformID:   match.Info.PlatformID,
			GameCreation: match.Info.GameCreation,
			Participants: match.Metadata.Participants,
		}); err != nil {
			return err
		}
	}

	processed, total, err := p.players.IncrementProcessed(ctx, job.PUUID)
	if err != nil {
		return err
	}
	logger.Info().Int("processed", processed).Int("total", total).Msg("match processed")

	if total > 0 && processed >= total {
		logger.Info().Msg("last outstanding match, triggering aggregation")
		return p.aggregator.Run(ctx, job.PUUID)
	}
	return nil
}

// loadMatch reads the shared raw-match cache first; one fetch serves
// every tracked participant of the match.
func (p *MatchProcessor) loadMatch(ctx context.Context, job domain.MatchJob, logger zerolog.Logger) (*riot.Match, error) {
	matchKey := blob.MatchKey(job.MatchID)

	body, err := p.store.Get(ctx, matchKey)
	if err == nil {
		logger.Debug().Msg("raw match cache hit")
		var match riot.Match
		if jsonErr := json.Unmarshal(body, &match); jsonErr == nil {
			return &match, nil
		}
		// Corrupt cache entry falls through to a fresh fetch.
		logger.Warn().Msg("cached raw match unreadable, refetching")
	} else if !errors.Is(err, blob.ErrNotFound) {
		return nil, err
	}

	cluster, err := regions.Route(job.Platform)
	if err != nil {
		return nil, err
	}

	match, err := p.riot.GetMatch(ctx, cluster, job.MatchID)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(match)
	if err != nil {
		return nil, fmt.Errorf("failed to encode raw match: %w", err)
	}
	if err := p.store.Put(ctx, matchKey, raw); err != nil {
		return nil, err
	}
	return match, nil
}
