package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"rift-rewind/internal/blob"
	"rift-rewind/internal/config"
	"rift-rewind/internal/database"
	"rift-rewind/internal/queue"
	"rift-rewind/internal/regions"
	"rift-rewind/internal/repository"
	"rift-rewind/internal/riot"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeRiot implements RiotAPI against canned data and counts calls so
// tests can assert on caching and short-circuits.
type fakeRiot struct {
	account    *riot.Account
	accountErr error
	matchIDs   []string
	listErr    error
	matches    map[string]*riot.Match

	resolveCalls int
	listCalls    int
	getCalls     int
	lastCluster  regions.Cluster
}

func (f *fakeRiot) ResolveAccount(ctx context.Context, cluster regions.Cluster, name, tag string) (*riot.Account, error) {
	f.resolveCalls++
	f.lastCluster = cluster
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return f.account, nil
}

func (f *fakeRiot) ListMatchIDs(ctx context.Context, cluster regions.Cluster, puuid string, start, count int) ([]string, error) {
	f.listCalls++
	f.lastCluster = cluster
	if f.listErr != nil {
		return nil, f.listErr
	}
	if start >= len(f.matchIDs) {
		return nil, nil
	}
	end := start + count
	if end > len(f.matchIDs) {
		end = len(f.matchIDs)
	}
	return f.matchIDs[start:end], nil
}

func (f *fakeRiot) GetMatch(ctx context.Context, cluster regions.Cluster, matchID string) (*riot.Match, error) {
	f.getCalls++
	f.lastCluster = cluster
	match, ok := f.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, riot.ErrNotFound)
	}
	return match, nil
}

type testEnv struct {
	db        *sql.DB
	riot      *fakeRiot
	players   *repository.PlayerRepository
	index     *repository.MatchIndexRepository
	store     blob.Store
	queues    *queue.Queues
	gate      *StatusGate
	fanout    *Fanout
	processor *MatchProcessor
	agg       *Aggregator
}

func testNow() time.Time {
	return time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
}

func newTestEnv(t *testing.T, fake *fakeRiot) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	cfg := &config.Config{
		DBPath:            filepath.Join(t.TempDir(), "test.db"),
		MatchCount:        10,
		MatchWorkers:      1,
		VisibilityTimeout: time.Minute,
		MaxReceiveCount:   5,
		PollInterval:      10 * time.Millisecond,
	}

	db, err := database.New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	players := repository.NewPlayerRepository(db, log)
	index := repository.NewMatchIndexRepository(db, log)
	store := blob.NewSQLiteStore(db, log)
	queues := queue.NewQueues(db, cfg, log)

	agg := NewAggregator(players, store, NewLogSummarizer(log), log)
	agg.now = testNow

	return &testEnv{
		db:        db,
		riot:      fake,
		players:   players,
		index:     index,
		store:     store,
		queues:    queues,
		gate:      NewStatusGate(fake, players, store, queues, log),
		fanout:    NewFanout(fake, players, queues, agg, cfg, log),
		processor: NewMatchProcessor(fake, players, index, store, agg, log),
		agg:       agg,
	}
}

func depth(t *testing.T, q *queue.Queue) int {
	t.Helper()
	n, err := q.Depth(context.Background())
	require.NoError(t, err)
	return n
}

func buildMatch(matchID, platformID string, gameCreation int64, puuids ...string) *riot.Match {
	match := &riot.Match{
		Metadata: riot.MatchMetadata{MatchID: matchID, Participants: puuids},
		Info: riot.MatchInfo{
			GameCreation: gameCreation,
			GameDuration: 1800,
			PlatformID:   platformID,
			QueueID:      420,
		},
	}
	for i, puuid := range puuids {
		match.Info.Participants = append(match.Info.Participants, riot.Participant{
			PUUID:              puuid,
			ChampionName:       fmt.Sprintf("Champion%d", i),
			IndividualPosition: "MIDDLE",
			Win:                true,
			Kills:              5 + i,
			Deaths:             2,
			Assists:            7,
			TotalMinionsKilled: 200,
			VisionScore:        25,
		})
	}
	return match
}
