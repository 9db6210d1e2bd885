// Package stats holds the pure computations of the pipeline: the
// per-player projection of one raw match and the wholesale aggregation
// over a player's summaries. Nothing here touches storage or the
// network.
package stats

import (
	"errors"

	"rift-rewind/internal/domain"
	"rift-rewind/internal/riot"
)

// ErrParticipantMissing means the player was not in the match payload,
// which indicates a misrouted or stale match id.
var ErrParticipantMissing = errors.New("participant not in match")

// Summarize projects one raw match onto a single player's view of it.
func Summarize(puuid string, match *riot.Match) (*domain.MatchSummary, error) {
	var player *riot.Participant
	for i := range match.Info.Participants {
		if match.Info.Participants[i].PUUID == puuid {
			player = &match.Info.Participants[i]
			break
		}
	}
	if player == nil {
		return nil, ErrParticipantMissing
	}

	return &domain.MatchSummary{
		MatchID:        match.Metadata.MatchID,
		PUUID:          puuid,
		GameCreation:   match.Info.GameCreation,
		Duration:       match.Info.GameDuration,
		Won:            player.Win,
		Champion:       player.ChampionName,
		Position:       player.IndividualPosition,
		Kills:          player.Kills,
		Deaths:         player.Deaths,
		Assists:        player.Assists,
		CS:             player.TotalMinionsKilled,
		VisionScore:    player.VisionScore,
		WardsPlaced:    player.WardsPlaced,
		WardsKilled:    player.WardsKilled,
		EarlySurrender: player.TeamEarlySurrendered,
		FirstBlood:     player.FirstBloodKill,
		Pings: domain.PingCounts{
			AllIn:         player.AllInPings,
			AssistMe:      player.AssistMePings,
			Basic:         player.BasicPings,
			Command:       player.CommandPings,
			Danger:        player.DangerPings,
			EnemyMissing:  player.EnemyMissingPings,
			EnemyVision:   player.EnemyVisionPings,
			GetBack:       player.GetBackPings,
			Hold:          player.HoldPings,
			NeedVision:    player.NeedVisionPings,
			OnMyWay:       player.OnMyWayPings,
			Push:          player.PushPings,
			VisionCleared: player.VisionClearedPings,
		},
	}, nil
}
