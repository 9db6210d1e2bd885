package fx

import (
	"database/sql"

	"rift-rewind/internal/blob"
	"rift-rewind/internal/config"
	"rift-rewind/internal/database"
	"rift-rewind/internal/logger"
	"rift-rewind/internal/queue"
	"rift-rewind/internal/repository"
	"rift-rewind/internal/riot"
	"rift-rewind/internal/server"
	"rift-rewind/internal/service"
	"rift-rewind/internal/worker"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideBlobStore(db *sql.DB, log zerolog.Logger) blob.Store {
	return blob.NewSQLiteStore(db, log)
}

func ProvideRiotAPI(client *riot.Client) service.RiotAPI {
	return client
}

func ProvideSummarizer(log zerolog.Logger) service.Summarizer {
	return service.NewLogSummarizer(log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// storage
	fx.Provide(ProvideBlobStore),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewMatchIndexRepository),
	fx.Provide(queue.NewQueues),
	// api client
	fx.Provide(riot.NewClient),
	fx.Provide(ProvideRiotAPI),
	// svc
	fx.Provide(ProvideSummarizer),
	fx.Provide(service.NewAggregator),
	fx.Provide(service.NewStatusGate),
	fx.Provide(service.NewFanout),
	fx.Provide(service.NewMatchProcessor),
	// workers + server
	fx.Provide(worker.NewRunner),
	fx.Provide(server.NewRewindServer),
)
