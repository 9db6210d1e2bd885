package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
	WorkerDrainWait = 10 * time.Second
)

const (
	UserQueue  = "user-processing"
	MatchQueue = "match-processing"
)

// Upstream 429 retry budget inside a single job attempt. Anything past
// this is handled by queue redelivery.
const (
	RiotMaxRetries   = 5
	RiotRetryBaseDur = 2 * time.Second
)

// Random pre-processing delay bounds for match jobs, spreading request
// bursts when many workers pick up at once.
const (
	MatchJitterMin = 100 * time.Millisecond
	MatchJitterMax = 500 * time.Millisecond
)
