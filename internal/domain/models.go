package domain

import (
	"time"
)

// Status is the lifecycle of a player's rewind. Transitions only move
// forward: NOT_STARTED -> PENDING -> DONE. The single exception is the
// administrative reprocess path, which resets DONE back to PENDING.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusPending    Status = "PENDING"
	StatusDone       Status = "DONE"
)

func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusNotStarted:
		return next == StatusPending
	case StatusPending:
		return next == StatusDone
	default:
		return false
	}
}

// PlayerRecord tracks one resolved player through the pipeline.
// HandleKey is the normalized "name#tag#platform" used as a secondary
// index so repeat lookups skip the account resolution call. MatchIDs is
// the match list snapshotted at fan-out time; aggregation reads exactly
// this set.
type PlayerRecord struct {
	PUUID            string
	HandleKey        string
	Name             string
	Tag              string
	Platform         string
	Status           Status
	MatchIDs         []string
	TotalMatches     int
	ProcessedMatches int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MatchIndexEntry records which players took part in a match, so a
// match fetched for one player is reused for teammates.
type MatchIndexEntry struct {
	MatchID      string
	PlatformID   string
	GameCreation int64
	Participants []string
	ProcessedAt  time.Time
}

// PingCounts mirrors the per-participant ping counters of the Riot
// Match-v5 payload.
type PingCounts struct {
	AllIn         int `json:"allInPings"`
	AssistMe      int `json:"assistMePings"`
	Basic         int `json:"basicPings"`
	Command       int `json:"commandPings"`
	Danger        int `json:"dangerPings"`
	EnemyMissing  int `json:"enemyMissingPings"`
	EnemyVision   int `json:"enemyVisionPings"`
	GetBack       int `json:"getBackPings"`
	Hold          int `json:"holdPings"`
	NeedVision    int `json:"needVisionPings"`
	OnMyWay       int `json:"onMyWayPings"`
	Push          int `json:"pushPings"`
	VisionCleared int `json:"visionClearedPings"`
}

func (p *PingCounts) Add(o PingCounts) {
	p.AllIn += o.AllIn
	p.AssistMe += o.AssistMe
	p.Basic += o.Basic
	p.Command += o.Command
	p.Danger += o.Danger
	p.EnemyMissing += o.EnemyMissing
	p.EnemyVision += o.EnemyVision
	p.GetBack += o.GetBack
	p.Hold += o.Hold
	p.NeedVision += o.NeedVision
	p.OnMyWay += o.OnMyWay
	p.Push += o.Push
	p.VisionCleared += o.VisionCleared
}

// MatchSummary is the per-player projection of a single match.
// Immutable once written; a retried job overwrites it with identical
// content.
type MatchSummary struct {
	MatchID        string     `json:"match_id"`
	PUUID          string     `json:"puuid"`
	GameCreation   int64      `json:"game_creation"`
	Duration       int        `json:"match_duration"`
	Won            bool       `json:"won"`
	Champion       string     `json:"champion"`
	Position       string     `json:"position"`
	Kills          int        `json:"kills"`
	Deaths         int        `json:"deaths"`
	Assists        int        `json:"assists"`
	CS             int        `json:"cs"`
	VisionScore    int        `json:"vision_score"`
	WardsPlaced    int        `json:"wards_placed"`
	WardsKilled    int        `json:"wards_killed"`
	EarlySurrender bool       `json:"early_surrender"`
	FirstBlood     bool       `json:"first_blood"`
	Pings          PingCounts `json:"pings"`
}

// KDARatio is (kills+assists)/deaths, or kills+assists on a deathless
// game.
func (m *MatchSummary) KDARatio() float64 {
	if m.Deaths == 0 {
		return float64(m.Kills + m.Assists)
	}
	return float64(m.Kills+m.Assists) / float64(m.Deaths)
}

type ChampionStats struct {
	Games        int     `json:"games"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Kills        int     `json:"kills"`
	Deaths       int     `json:"deaths"`
	Assists      int     `json:"assists"`
	CS           int     `json:"cs"`
	VisionScore  int     `json:"vision_score"`
	Duration     int     `json:"duration"`
	WinRate      float64 `json:"win_rate"`
	AvgKills     float64 `json:"avg_kills"`
	AvgDeaths    float64 `json:"avg_deaths"`
	AvgAssists   float64 `json:"avg_assists"`
	AvgCS        float64 `json:"avg_cs"`
	AvgVision    float64 `json:"avg_vision_score"`
	CSPerMin     float64 `json:"cs_per_minute"`
	VisionPerMin float64 `json:"vision_per_minute"`
}

type PerformanceMetrics struct {
	CSPerMin     float64 `json:"cs_per_minute"`
	VisionPerMin float64 `json:"vision_per_minute"`
	AvgKills     float64 `json:"avg_kills"`
	AvgDeaths    float64 `json:"avg_deaths"`
	AvgAssists   float64 `json:"avg_assists"`
	AvgCS        float64 `json:"avg_cs"`
	AvgVision    float64 `json:"avg_vision_score"`
	AvgDuration  float64 `json:"avg_game_duration"`
}

// MatchHighlight is a best or worst match pick.
type MatchHighlight struct {
	MatchID     string  `json:"match_id"`
	Champion    string  `json:"champion"`
	KDA         string  `json:"kda"`
	KDARatio    float64 `json:"kda_ratio"`
	CS          int     `json:"cs"`
	VisionScore int     `json:"vision_score"`
	Won         bool    `json:"won"`
}

// AggregatedResult is the wholesale recomputation over every
// MatchSummary in the player's snapshot. Rebuilt from scratch on each
// aggregation run, never patched incrementally.
type AggregatedResult struct {
	PUUID           string                    `json:"puuid"`
	Status          Status                    `json:"status"`
	TotalMatches    int                       `json:"total_matches"`
	Wins            int                       `json:"wins"`
	Losses          int                       `json:"losses"`
	Kills           int                       `json:"kills"`
	Deaths          int                       `json:"deaths"`
	Assists         int                       `json:"assists"`
	CS              int                       `json:"cs"`
	VisionScore     int                       `json:"vision_score"`
	WardsPlaced     int                       `json:"wards_placed"`
	WardsKilled     int                       `json:"wards_killed"`
	EarlySurrenders int                       `json:"early_surrenders"`
	FirstBloods     int                       `json:"first_bloods"`
	TotalDuration   int                       `json:"match_duration"`
	Pings           PingCounts                `json:"pings"`
	ChampionStats   map[string]*ChampionStats `json:"champion_stats"`
	PositionStats   map[string]int            `json:"position_stats"`
	Performance     *PerformanceMetrics       `json:"performance_metrics,omitempty"`
	BestMatch       *MatchHighlight           `json:"best_match,omitempty"`
	WorstMatch      *MatchHighlight           `json:"worst_match,omitempty"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}

// UserJob is the payload on the user-processing queue.
type UserJob struct {
	PUUID    string `json:"puuid"`
	Name     string `json:"name"`
	Tag      string `json:"tag"`
	Platform string `json:"platform"`
}

// MatchJob is the payload on the match-processing queue.
type MatchJob struct {
	PUUID    string `json:"puuid"`
	MatchID  string `json:"match_id"`
	Platform string `json:"platform"`
}
