package service

import (
	"context"

	"rift-rewind/internal/domain"

	"github.com/rs/zerolog"
)

// Summarizer turns an aggregated result (plus an optional free-text
// question) into natural-language commentary. It is an external
// collaborator: best-effort, and its failures never affect pipeline
// state.
type Summarizer interface {
	Summarize(ctx context.Context, result *domain.AggregatedResult, question string) (string, error)
}

// LogSummarizer is the stand-in implementation used until an insight
// backend is wired; it only records that a summary was requested.
type LogSummarizer struct {
	logger zerolog.Logger
}

func NewLogSummarizer(logger zerolog.Logger) *LogSummarizer {
	return &LogSummarizer{logger: logger}
}

func (s *LogSummarizer) Summarize(ctx context.Context, result *domain.AggregatedResult, question string) (string, error) {
	s.logger.Info().
		Str("puuid", result.PUUID).
		Int("total_matches", result.TotalMatches).
		Str("question", question).
		Msg("summary requested")
	return "", nil
}
