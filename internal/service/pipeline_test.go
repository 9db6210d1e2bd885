package service

import (
	"context"
	"encoding/json"
	"testing"

	"rift-rewind/internal/blob"
	"rift-rewind/internal/domain"
	"rift-rewind/internal/queue"
	"rift-rewind/internal/regions"
	"rift-rewind/internal/riot"

	"github.com/stretchr/testify/require"
)

func createPending(t *testing.T, env *testEnv, puuid, name, tag, platform string) {
	t.Helper()
	_, err := env.players.Create(context.Background(), &domain.PlayerRecord{
		PUUID:     puuid,
		HandleKey: HandleKey(name, tag, platform),
		Name:      name, Tag: tag, Platform: platform,
		Status: domain.StatusPending,
	})
	require.NoError(t, err)
}

func TestFanoutSnapshotsAndEnqueuesAllMatches(t *testing.T) {
	fake := &fakeRiot{matchIDs: []string{"KR_1", "KR_2", "KR_3"}}
	env := newTestEnv(t, fake)
	ctx := context.Background()

	createPending(t, env, "faker-puuid", "Hide on bush", "KR1", "kr")

	err := env.fanout.Process(ctx, domain.UserJob{
		PUUID: "faker-puuid", Name: "Hide on bush", Tag: "KR1", Platform: "kr",
	})
	require.NoError(t, err)
	require.Equal(t, regions.Asia, fake.lastCluster)

	rec, err := env.players.Get(ctx, "faker-puuid")
	require.NoError(t, err)
	require.Equal(t, []string{"KR_1", "KR_2", "KR_3"}, rec.MatchIDs)
	require.Equal(t, 3, rec.TotalMatches)
	require.Equal(t, 0, rec.ProcessedMatches)
	require.Equal(t, 3, depth(t, env.queues.Match))

	var job domain.MatchJob
	msg, err := env.queues.Match.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NoError(t, json.Unmarshal([]byte(msg.Body), &job))
	require.Equal(t, "faker-puuid", job.PUUID)
	require.Equal(t, "KR_1", job.MatchID)
	require.Equal(t, "kr", job.Platform)
}

func TestFanoutZeroMatchesCompletesImmediately(t *testing.T) {
	env := newTestEnv(t, &fakeRiot{})
	ctx := context.Background()

	createPending(t, env, "fresh-puuid", "Fresh", "NA1", "na1")

	err := env.fanout.Process(ctx, domain.UserJob{
		PUUID: "fresh-puuid", Name: "Fresh", Tag: "NA1", Platform: "na1",
	})
	require.NoError(t, err)
	require.Equal(t, 0, depth(t, env.queues.Match))

	rec, err := env.players.Get(ctx, "fresh-puuid")
	require.NoError(t, err)
	require.Equal(t, domain.StatusDone, rec.Status)

	body, err := env.store.Get(ctx, blob.AggregateKey("fresh-puuid"))
	require.NoError(t, err)

	var result domain.AggregatedResult
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, 0, result.TotalMatches)
}

func TestFanoutRejectsUnknownRegion(t *testing.T) {
	env := newTestEnv(t, &fakeRiot{})

	err := env.fanout.Process(context.Background(), domain.UserJob{
		PUUID: "p", Name: "N", Tag: "T", Platform: "nowhere",
	})
	require.ErrorIs(t, err, regions.ErrUnknownRegion)
}

func TestMatchProcessorSharesRawMatchAcrossPlayers(t *testing.T) {
	match := buildMatch("NA1_10", "NA1", 1000, "puuid-a", "puuid-b")
	fake := &fakeRiot{matches: map[string]*riot.Match{"NA1_10": match}}
	env := newTestEnv(t, fake)
	ctx := context.Background()

	createPending(t, env, "puuid-a", "A", "NA1", "na1")
	createPending(t, env, "puuid-b", "B", "NA1", "na1")
	require.NoError(t, env.players.SetMatchSnapshot(ctx, "puuid-a", []string{"NA1_10"}))
	require.NoError(t, env.players.SetMatchSnapshot(ctx, "puuid-b", []string{"NA1_10"}))

	require.NoError(t, env.processor.Process(ctx, domain.MatchJob{PUUID: "puuid-a", MatchID: "NA1_10", Platform: "na1"}))
	require.NoError(t, env.processor.Process(ctx, domain.MatchJob{PUUID: "puuid-b", MatchID: "NA1_10", Platform: "na1"}))

	// The second player reads the cached raw match.
	require.Equal(t, 1, fake.getCalls)

	entry, err := env.index.Get(ctx, "NA1_10")
	require.NoError(t, err)
	require.Equal(t, []string{"puuid-a", "puuid-b"}, entry.Participants)

	for _, puuid := range []string{"puuid-a", "puuid-b"} {
		rec, err := env.players.Get(ctx, puuid)
		require.NoError(t, err)
		require.Equal(t, domain.StatusDone, rec.Status)
	}
}

func TestMatchProcessorIdempotentOnRedelivery(t *testing.T) {
	match := buildMatch("NA1_20", "NA1", 1000, "puuid-a")
	fake := &fakeRiot{matches: map[string]*riot.Match{"NA1_20": match}}
	env := newTestEnv(t, fake)
	ctx := context.Background()

	createPending(t, env, "puuid-a", "A", "NA1", "na1")
	require.NoError(t, env.players.SetMatchSnapshot(ctx, "puuid-a", []string{"NA1_20"}))

	job := domain.MatchJob{PUUID: "puuid-a", MatchID: "NA1_20", Platform: "na1"}
	require.NoError(t, env.processor.Process(ctx, job))
	require.NoError(t, env.processor.Process(ctx, job))

	// Redelivery finds the cached summary and never refetches.
	require.Equal(t, 1, fake.getCalls)

	rec, err := env.players.Get(ctx, "puuid-a")
	require.NoError(t, err)
	require.Equal(t, domain.StatusDone, rec.Status)

	body, err := env.store.Get(ctx, blob.AggregateKey("puuid-a"))
	require.NoError(t, err)

	var result domain.AggregatedResult
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, 1, result.TotalMatches)
}

func TestAggregatorRequiresEverySummary(t *testing.T) {
	env := newTestEnv(t, &fakeRiot{})
	ctx := context.Background()

	createPending(t, env, "partial-puuid", "Partial", "NA1", "na1")
	require.NoError(t, env.players.SetMatchSnapshot(ctx, "partial-puuid", []string{"NA1_1", "NA1_2"}))

	summary := domain.MatchSummary{MatchID: "NA1_1", PUUID: "partial-puuid", Won: true, Champion: "Jinx"}
	body, err := json.Marshal(summary)
	require.NoError(t, err)
	require.NoError(t, env.store.Put(ctx, blob.SummaryKey("partial-puuid", "NA1_1"), body))

	require.Error(t, env.agg.Run(ctx, "partial-puuid"))

	// Nothing flipped and no partial aggregate was stored.
	rec, err := env.players.Get(ctx, "partial-puuid")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, rec.Status)

	_, err = env.store.Get(ctx, blob.AggregateKey("partial-puuid"))
	require.ErrorIs(t, err, blob.ErrNotFound)
}

func TestAggregatorWritesResultBeforeFlippingDone(t *testing.T) {
	env := newTestEnv(t, &fakeRiot{})
	ctx := context.Background()

	createPending(t, env, "ready-puuid", "Ready", "NA1", "na1")
	require.NoError(t, env.players.SetMatchSnapshot(ctx, "ready-puuid", []string{"NA1_1"}))

	summary := domain.MatchSummary{
		MatchID: "NA1_1", PUUID: "ready-puuid", GameCreation: 1000, Duration: 1800,
		Won: true, Champion: "Jinx", Position: "BOTTOM",
		Kills: 8, Deaths: 1, Assists: 6, CS: 230, VisionScore: 18,
	}
	body, err := json.Marshal(summary)
	require.NoError(t, err)
	require.NoError(t, env.store.Put(ctx, blob.SummaryKey("ready-puuid", "NA1_1"), body))

	require.NoError(t, env.agg.Run(ctx, "ready-puuid"))

	rec, err := env.players.Get(ctx, "ready-puuid")
	require.NoError(t, err)
	require.Equal(t, domain.StatusDone, rec.Status)

	stored, err := env.store.Get(ctx, blob.AggregateKey("ready-puuid"))
	require.NoError(t, err)

	var result domain.AggregatedResult
	require.NoError(t, json.Unmarshal(stored, &result))
	require.Equal(t, 1, result.TotalMatches)
	require.Equal(t, 1, result.Wins)
	require.Equal(t, testNow(), result.GeneratedAt)
	require.Contains(t, result.ChampionStats, "Jinx")
	require.Equal(t, 1, result.PositionStats["BOTTOM"])

	// A second run recomputes the same result and tolerates the record
	// already being DONE.
	require.NoError(t, env.agg.Run(ctx, "ready-puuid"))
	again, err := env.store.Get(ctx, blob.AggregateKey("ready-puuid"))
	require.NoError(t, err)
	require.Equal(t, string(stored), string(again))
}

// drain pulls every visible message off a queue, handles it, and acks.
func drain(t *testing.T, q *queue.Queue, handle func(body string)) {
	t.Helper()
	ctx := context.Background()
	for {
		msg, err := q.Receive(ctx)
		require.NoError(t, err)
		if msg == nil {
			return
		}
		handle(msg.Body)
		require.NoError(t, q.Ack(ctx, msg.ID))
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	fake := &fakeRiot{
		account:  &riot.Account{PUUID: "faker-puuid", GameName: "Hide on bush", TagLine: "KR1"},
		matchIDs: []string{"KR_1", "KR_2"},
		matches: map[string]*riot.Match{
			"KR_1": buildMatch("KR_1", "KR", 1000, "faker-puuid"),
			"KR_2": buildMatch("KR_2", "KR", 2000, "faker-puuid"),
		},
	}
	env := newTestEnv(t, fake)
	ctx := context.Background()

	// First poll admits the player and answers processing.
	result, err := env.gate.Check(ctx, "Hide on bush#KR1", "kr")
	require.NoError(t, err)
	require.Equal(t, StateProcessing, result.State)

	// User queue: fan out the match list.
	drain(t, env.queues.User, func(body string) {
		var job domain.UserJob
		require.NoError(t, json.Unmarshal([]byte(body), &job))
		require.NoError(t, env.fanout.Process(ctx, job))
	})

	// Match queue: process every match; the last one aggregates.
	drain(t, env.queues.Match, func(body string) {
		var job domain.MatchJob
		require.NoError(t, json.Unmarshal([]byte(body), &job))
		require.NoError(t, env.processor.Process(ctx, job))
	})

	result, err = env.gate.Check(ctx, "Hide on bush#KR1", "kr")
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)

	var aggregate domain.AggregatedResult
	require.NoError(t, json.Unmarshal(result.Aggregate, &aggregate))
	require.Equal(t, "faker-puuid", aggregate.PUUID)
	require.Equal(t, 2, aggregate.TotalMatches)
	require.Contains(t, aggregate.ChampionStats, "Champion0")
	require.Equal(t, 2, aggregate.PositionStats["MIDDLE"])
	require.Equal(t, regions.Asia, fake.lastCluster)
}
