package stats

import (
	"fmt"
	"math"
	"time"

	"rift-rewind/internal/domain"
)

// Aggregate recomputes a player's cumulative statistics from the full
// summary set. The computation is deterministic for a fixed input set:
// integer totals are order-independent, derived ratios come from the
// totals, and highlight selection has a total order (KDA ratio, then
// game creation, then match id).
func Aggregate(puuid string, summaries []domain.MatchSummary, generatedAt time.Time) *domain.AggregatedResult {
	result := &domain.AggregatedResult{
		PUUID:         puuid,
		Status:        domain.StatusDone,
		TotalMatches:  len(summaries),
		ChampionStats: make(map[string]*domain.ChampionStats),
		PositionStats: map[string]int{
			"TOP":     0,
			"JUNGLE":  0,
			"MIDDLE":  0,
			"BOTTOM":  0,
			"UTILITY": 0,
		},
		GeneratedAt: generatedAt,
	}

	for i := range summaries {
		m := &summaries[i]

		result.Kills += m.Kills
		result.Deaths += m.Deaths
		result.Assists += m.Assists
		result.CS += m.CS
		result.VisionScore += m.VisionScore
		result.WardsPlaced += m.WardsPlaced
		result.WardsKilled += m.WardsKilled
		result.TotalDuration += m.Duration
		result.Pings.Add(m.Pings)
		if m.Won {
			result.Wins++
		} else {
			result.Losses++
		}
		if m.EarlySurrender {
			result.EarlySurrenders++
		}
		if m.FirstBlood {
			result.FirstBloods++
		}

		champ, ok := result.ChampionStats[m.Champion]
		if !ok {
			champ = &domain.ChampionStats{}
			result.ChampionStats[m.Champion] = champ
		}
		champ.Games++
		if m.Won {
			champ.Wins++
		} else {
			champ.Losses++
		}
		champ.Kills += m.Kills
		champ.Deaths += m.Deaths
		champ.Assists += m.Assists
		champ.CS += m.CS
		champ.VisionScore += m.VisionScore
		champ.Duration += m.Duration

		if _, ok := result.PositionStats[m.Position]; ok {
			result.PositionStats[m.Position]++
		}
	}

	for _, champ := range result.ChampionStats {
		games := float64(champ.Games)
		champ.WinRate = round1(float64(champ.Wins) / games * 100)
		champ.AvgKills = round1(float64(champ.Kills) / games)
		champ.AvgDeaths = round1(float64(champ.Deaths) / games)
		champ.AvgAssists = round1(float64(champ.Assists) / games)
		champ.AvgCS = round1(float64(champ.CS) / games)
		champ.AvgVision = round1(float64(champ.VisionScore) / games)
		champ.CSPerMin = perMinute(champ.CS, champ.Duration)
		champ.VisionPerMin = perMinute(champ.VisionScore, champ.Duration)
	}

	if result.TotalMatches > 0 && result.TotalDuration > 0 {
		games := float64(result.TotalMatches)
		result.Performance = &domain.PerformanceMetrics{
			CSPerMin:     perMinute(result.CS, result.TotalDuration),
			VisionPerMin: perMinute(result.VisionScore, result.TotalDuration),
			AvgKills:     round1(float64(result.Kills) / games),
			AvgDeaths:    round1(float64(result.Deaths) / games),
			AvgAssists:   round1(float64(result.Assists) / games),
			AvgCS:        round1(float64(result.CS) / games),
			AvgVision:    round1(float64(result.VisionScore) / games),
			AvgDuration:  round1(float64(result.TotalDuration) / games / 60),
		}
	}

	result.BestMatch = pickHighlight(summaries, true)
	result.WorstMatch = pickHighlight(summaries, false)

	return result
}

// pickHighlight selects the best (highest KDA among wins) or worst
// (lowest KDA among losses) match. Ties go to the more recent game, then
// to the lexicographically larger match id so the pick is stable.
func pickHighlight(summaries []domain.MatchSummary, best bool) *domain.MatchHighlight {
	var pick *domain.MatchSummary
	for i := range summaries {
		m := &summaries[i]
		if m.Won != best {
			continue
		}
		if pick == nil || better(m, pick, best) {
			pick = m
		}
	}
	if pick == nil {
		return nil
	}

	return &domain.MatchHighlight{
		MatchID:     pick.MatchID,
		Champion:    pick.Champion,
		KDA:         fmt.Sprintf("%d/%d/%d", pick.Kills, pick.Deaths, pick.Assists),
		KDARatio:    round2(pick.KDARatio()),
		CS:          pick.CS,
		VisionScore: pick.VisionScore,
		Won:         pick.Won,
	}
}

func better(candidate, current *domain.MatchSummary, best bool) bool {
	a, b := candidate.KDARatio(), current.KDARatio()
	if a != b {
		if best {
			return a > b
		}
		return a < b
	}
	if candidate.GameCreation != current.GameCreation {
		return candidate.GameCreation > current.GameCreation
	}
	return candidate.MatchID > current.MatchID
}

func perMinute(total, durationSeconds int) float64 {
	if durationSeconds == 0 {
		return 0
	}
	return round2(float64(total) / float64(durationSeconds) * 60)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
