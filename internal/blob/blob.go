// Package blob is the object store of the pipeline: raw match payloads
// shared across players, per-player match summaries, and the aggregated
// result. Keys derive purely from ids, so existence checks never need
// enumeration.
package blob

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("blob: not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}

func MatchKey(matchID string) string {
	return fmt.Sprintf("matches/%s.json", matchID)
}

func SummaryKey(puuid, matchID string) string {
	return fmt.Sprintf("players/%s/matches/%s.json", puuid, matchID)
}

func AggregateKey(puuid string) string {
	return fmt.Sprintf("players/%s/aggregate.json", puuid)
}
