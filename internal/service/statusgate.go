package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rift-rewind/internal/blob"
	"rift-rewind/internal/constants"
	"rift-rewind/internal/domain"
	"rift-rewind/internal/queue"
	"rift-rewind/internal/regions"
	"rift-rewind/internal/repository"

	"github.com/rs/zerolog"
)

// ErrInvalidHandle rejects malformed summoner input before any upstream
// call is made.
var ErrInvalidHandle = errors.New("invalid summoner handle")

type GateState string

const (
	StateDone       GateState = "done"
	StateProcessing GateState = "processing"
)

// GateResult is the immediate answer of the status gate. When State is
// done, Aggregate holds the stored result verbatim.
type GateResult struct {
	State     GateState
	PUUID     string
	Aggregate json.RawMessage
}

// StatusGate answers the poll endpoint from durable state and enqueues
// the pipeline on a first miss. It never blocks on the pipeline itself.
type StatusGate struct {
	riot    RiotAPI
	players *repository.PlayerRepository
	store   blob.Store
	queues  *queue.Queues
	logger  zerolog.Logger
}

func NewStatusGate(riotAPI RiotAPI, players *repository.PlayerRepository, store blob.Store, queues *queue.Queues, logger zerolog.Logger) *StatusGate {
	return &StatusGate{riot: riotAPI, players: players, store: store, queues: queues, logger: logger}
}

// HandleKey normalizes a handle to its lookup form.
func HandleKey(name, tag, platform string) string {
	return strings.ToLower(fmt.Sprintf("%s#%s#%s", name, tag, platform))
}

// SplitHandle parses "Name#Tag" input.
func SplitHandle(summoner string) (name, tag string, err error) {
	name, tag, ok := strings.Cut(summoner, "#")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(tag) == "" {
		return "", "", fmt.Errorf("%w: expected \"name#tag\", got %q", ErrInvalidHandle, summoner)
	}
	return strings.TrimSpace(name), strings.TrimSpace(tag), nil
}

// Check implements the gate contract: done returns the aggregate,
// pending returns processing without enqueueing again, and an unknown
// handle resolves the account, creates the PENDING record, and enqueues
// exactly one user job.
func (g *StatusGate) Check(ctx context.Context, summoner, platform string) (*GateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	name, tag, err := SplitHandle(summoner)
	if err != nil {
		return nil, err
	}

	// Region is validated before any resolution attempt. Unknown codes
	// are rejected rather than defaulted: a defaulted cluster reports
	// existing players as missing.
	cluster, err := regions.Route(platform)
	if err != nil {
		return nil, err
	}

	handleKey := HandleKey(name, tag, platform)
	g.logger.Info().
		Str("handle_key", handleKey).
		Str("cluster", string(cluster)).
		Msg("checking player status")

	rec, err := g.players.GetByHandleKey(ctx, handleKey)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if rec == nil {
		account, err := g.riot.ResolveAccount(ctx, cluster, name, tag)
		if err != nil {
			return nil, err
		}

		// The puuid may already be tracked under a differently-cased
		// handle; reuse that record instead of re-running the pipeline.
		rec, err = g.players.Get(ctx, account.PUUID)
		if errors.Is(err, repository.ErrNotFound) {
			return g.admit(ctx, &domain.PlayerRecord{
				PUUID:     account.PUUID,
				HandleKey: handleKey,
				Name:      name,
				Tag:       tag,
				Platform:  strings.ToLower(platform),
				Status:    domain.StatusPending,
			})
		}
		if err != nil {
			return nil, err
		}
	}

	return g.answer(ctx, rec)
}

func (g *StatusGate) admit(ctx context.Context, rec *domain.PlayerRecord) (*GateResult, error) {
	created, err := g.players.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a race with a concurrent first call; that call enqueued.
		existing, err := g.players.Get(ctx, rec.PUUID)
		if err != nil {
			return nil, err
		}
		return g.answer(ctx, existing)
	}

	job, err := json.Marshal(domain.UserJob{
		PUUID:    rec.PUUID,
		Name:     rec.Name,
		Tag:      rec.Tag,
		Platform: rec.Platform,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode user job: %w", err)
	}
	if err := g.queues.User.Enqueue(ctx, string(job)); err != nil {
		return nil, err
	}

	g.logger.Info().Str("puuid", rec.PUUID).Msg("player admitted to pipeline")
	return &GateResult{State: StateProcessing, PUUID: rec.PUUID}, nil
}

func (g *StatusGate) answer(ctx context.Context, rec *domain.PlayerRecord) (*GateResult, error) {
	if rec.Status == domain.StatusDone {
		body, err := g.store.Get(ctx, blob.AggregateKey(rec.PUUID))
		if err == nil {
			return &GateResult{State: StateDone, PUUID: rec.PUUID, Aggregate: body}, nil
		}
		if !errors.Is(err, blob.ErrNotFound) {
			return nil, err
		}
		// DONE without a stored aggregate violates the write-then-flip
		// ordering; keep the client polling rather than fail.
		g.logger.Error().Str("puuid", rec.PUUID).Msg("player DONE but aggregate missing")
	}
	return &GateResult{State: StateProcessing, PUUID: rec.PUUID}, nil
}

// Reprocess resets a DONE player and re-enqueues the pipeline. This is
// the administrative path, not part of the normal request flow.
func (g *StatusGate) Reprocess(ctx context.Context, puuid string) error {
	rec, err := g.players.Get(ctx, puuid)
	if err != nil {
		return err
	}

	if err := g.players.ResetForReprocess(ctx, puuid); err != nil {
		return err
	}

	job, err := json.Marshal(domain.UserJob{
		PUUID:    rec.PUUID,
		Name:     rec.Name,
		Tag:      rec.Tag,
		Platform: rec.Platform,
	})
	if err != nil {
		return fmt.Errorf("failed to encode user job: %w", err)
	}
	if err := g.queues.User.Enqueue(ctx, string(job)); err != nil {
		return err
	}

	g.logger.Info().Str("puuid", puuid).Msg("player re-enqueued for reprocessing")
	return nil
}
