package service

import (
	"context"

	"rift-rewind/internal/regions"
	"rift-rewind/internal/riot"
)

// RiotAPI is the slice of the Riot client the pipeline uses. Narrowing
// it here keeps the services testable against a fake.
type RiotAPI interface {
	ResolveAccount(ctx context.Context, cluster regions.Cluster, name, tag string) (*riot.Account, error)
	ListMatchIDs(ctx context.Context, cluster regions.Cluster, puuid string, start, count int) ([]string, error)
	GetMatch(ctx context.Context, cluster regions.Cluster, matchID string) (*riot.Match, error)
}
