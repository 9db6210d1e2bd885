package service

import (
	"context"
	"encoding/json"
	"fmt"

	"rift-rewind/internal/config"
	"rift-rewind/internal/domain"
	"rift-rewind/internal/queue"
	"rift-rewind/internal/regions"
	"rift-rewind/internal/repository"

	"github.com/rs/zerolog"
)

const matchPageSize = 100

// Fanout turns one user job into one match job per discovered match.
// Any failure fails the whole job so the queue retries it from scratch;
// duplicate match enqueues are harmless because match processing is
// idempotent.
type Fanout struct {
	riot       RiotAPI
	players    *repository.PlayerRepository
	queues     *queue.Queues
	aggregator *Aggregator
	cfg        *config.Config
	logger     zerolog.Logger
}

func NewFanout(riotAPI RiotAPI, players *repository.PlayerRepository, queues *queue.Queues, aggregator *Aggregator, cfg *config.Config, logger zerolog.Logger) *Fanout {
	return &Fanout{riot: riotAPI, players: players, queues: queues, aggregator: aggregator, cfg: cfg, logger: logger}
}

func (f *Fanout) Process(ctx context.Context, job domain.UserJob) error {
	cluster, err := regions.Route(job.Platform)
	if err != nil {
		return err
	}

	matchIDs, err := f.listMatches(ctx, cluster, job.PUUID)
	if err != nil {
		return fmt.Errorf("failed to list matches for %s: %w", job.PUUID, err)
	}

	// The snapshot fixes what aggregation will read; games played after
	// this point wait for a reprocess.
	if err := f.players.SetMatchSnapshot(ctx, job.PUUID, matchIDs); err != nil {
		return err
	}

	if len(matchIDs) == 0 {
		f.logger.Info().Str("puuid", job.PUUID).Msg("no ranked matches, completing immediately")
		return f.aggregator.Run(ctx, job.PUUID)
	}

	for _, matchID := range matchIDs {
		body, err := json.Marshal(domain.MatchJob{
			PUUID:    job.PUUID,
			MatchID:  matchID,
			Platform: job.Platform,
		})
		if err != nil {
			return fmt.Errorf("failed to encode match job: %w", err)
		}
		if err := f.queues.Match.Enqueue(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to enqueue match %s: %w", matchID, err)
		}
	}

	f.logger.Info().
		Str("puuid", job.PUUID).
		Str("cluster", string(cluster)).
		Int("match_count", len(matchIDs)).
		Msg("matches fanned out")
	return nil
}

func (f *Fanout) listMatches(ctx context.Context, cluster regions.Cluster, puuid string) ([]string, error) {
	var all []string
	for start := 0; len(all) < f.cfg.MatchCount; start += matchPageSize {
		count := f.cfg.MatchCount - len(all)
		if count > matchPageSize {
			count = matchPageSize
		}

		page, err := f.riot.ListMatchIDs(ctx, cluster, puuid, start, count)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < count {
			break
		}
	}
	return all, nil
}
