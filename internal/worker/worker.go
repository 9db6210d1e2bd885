// Package worker hosts the queue consumers. Workers are stateless:
// every piece of coordination lives in the database, so any number of
// processes could run the same loops against the same queues.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"rift-rewind/internal/config"
	"rift-rewind/internal/constants"
	"rift-rewind/internal/domain"
	"rift-rewind/internal/queue"
	"rift-rewind/internal/riot"
	"rift-rewind/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Runner struct {
	queues    *queue.Queues
	fanout    *service.Fanout
	processor *service.MatchProcessor
	cfg       *config.Config
	logger    zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(queues *queue.Queues, fanout *service.Fanout, processor *service.MatchProcessor, cfg *config.Config, logger zerolog.Logger) *Runner {
	return &Runner{
		queues:    queues,
		fanout:    fanout,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start launches one user consumer (a single fan-out in flight avoids
// duplicate fan-outs) and a fixed pool of match consumers. The pool
// size is the concurrency ceiling that keeps the pipeline under the
// upstream rate limit; there is no token bucket on top.
func (r *Runner) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		r.consume(gCtx, r.queues.User, r.handleUserJob)
		return nil
	})
	for i := 0; i < r.cfg.MatchWorkers; i++ {
		g.Go(func() error {
			r.consume(gCtx, r.queues.Match, r.handleMatchJob)
			return nil
		})
	}

	go func() {
		g.Wait()
		close(r.done)
	}()

	r.logger.Info().
		Int("match_workers", r.cfg.MatchWorkers).
		Msg("queue consumers started")
	return nil
}

func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()

	select {
	case <-r.done:
		r.logger.Info().Msg("queue consumers drained")
		return nil
	case <-time.After(constants.WorkerDrainWait):
		r.logger.Warn().Msg("queue consumers did not drain in time")
		return nil
	}
}

func (r *Runner) consume(ctx context.Context, q *queue.Queue, handle func(context.Context, *queue.Message) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := q.Receive(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("receive failed")
			r.sleep(ctx, r.cfg.PollInterval)
			continue
		}
		if msg == nil {
			r.sleep(ctx, r.cfg.PollInterval)
			continue
		}

		if err := handle(ctx, msg); err != nil {
			if errors.Is(err, riot.ErrRateLimited) {
				// Leave the message invisible; the visibility timeout is
				// the backoff before redelivery.
				r.logger.Warn().Str("message_id", msg.ID).Msg("rate limited, deferring to visibility timeout")
				continue
			}
			r.logger.Error().Err(err).
				Str("message_id", msg.ID).
				Int("receive_count", msg.ReceiveCount).
				Msg("job failed, returning to queue")
			if nackErr := q.Nack(ctx, msg.ID); nackErr != nil {
				r.logger.Error().Err(nackErr).Str("message_id", msg.ID).Msg("nack failed")
			}
			continue
		}

		if err := q.Ack(ctx, msg.ID); err != nil {
			r.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
		}
	}
}

func (r *Runner) handleUserJob(ctx context.Context, msg *queue.Message) error {
	var job domain.UserJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		// Malformed payloads can never succeed; drop instead of retrying.
		r.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping malformed user job")
		return nil
	}
	return r.fanout.Process(ctx, job)
}

func (r *Runner) handleMatchJob(ctx context.Context, msg *queue.Message) error {
	var job domain.MatchJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		r.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping malformed match job")
		return nil
	}

	// Small random delay spreads bursts when several workers pick up
	// fanned-out jobs at once.
	jitter := constants.MatchJitterMin + time.Duration(rand.Int63n(int64(constants.MatchJitterMax-constants.MatchJitterMin)))
	r.sleep(ctx, jitter)

	return r.processor.Process(ctx, job)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
