package queue

import (
	"database/sql"

	"rift-rewind/internal/config"
	"rift-rewind/internal/constants"

	"github.com/rs/zerolog"
)

// Queues bundles the two pipeline queues. The user queue decouples "a
// player was requested" from the per-match fan-out on the match queue.
type Queues struct {
	User  *Queue
	Match *Queue
}

func NewQueues(db *sql.DB, cfg *config.Config, logger zerolog.Logger) *Queues {
	opts := Options{
		VisibilityTimeout: cfg.VisibilityTimeout,
		MaxReceiveCount:   cfg.MaxReceiveCount,
	}
	return &Queues{
		User:  New(db, constants.UserQueue, opts, logger),
		Match: New(db, constants.MatchQueue, opts, logger),
	}
}
