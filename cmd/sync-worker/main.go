package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/synaptica-ai/registry/pkg/common/config"
	"github.com/synaptica-ai/registry/pkg/common/database"
	"github.com/synaptica-ai/registry/pkg/common/kafka"
	"github.com/synaptica-ai/registry/pkg/common/logger"
	"github.com/synaptica-ai/registry/pkg/person"
	"github.com/synaptica-ai/registry/pkg/referencedata"
	"github.com/synaptica-ai/registry/pkg/remotesync"
)

// sync-worker consumes lookup events and pulls unknown identifiers from the
// peer registry into the shared postgres store.
func main() {
	logger.Init()
	cfg := config.Load()
	if !cfg.SyncEnabled {
		logger.Log.Fatal("sync worker requires CREATE_FROM_REMOTE=true")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	refs := referencedata.NewRepository(db)
	types, err := refs.Load(ctx)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load reference data, has the registry service migrated?")
	}

	journal := remotesync.NewJournal(db)
	if err := journal.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate sync journal")
	}

	store := person.NewRepository(db)
	builder := person.NewBuilder(store, types)
	client := remotesync.NewClient(cfg.SyncConfig(), builder, journal)
	locker := remotesync.NewRedisLocker(database.GetRedis(cfg), cfg.SyncLockTTL)
	defer database.CloseRedis()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.PersonEventsTopic)
	defer producer.Close()

	svc := person.NewService(store, types, builder, client, locker, producer)
	svc.SetFetchTimeout(cfg.SyncLockTTL)
	worker := remotesync.NewLookupWorker(svc)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.LookupTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic": cfg.LookupTopic,
			"group": cfg.KafkaGroupID,
			"peer":  cfg.SyncConfig().Address(),
		}).Info("Sync Worker started")

		if err := consumer.Consume(ctx, worker.Handle); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Fatal("lookup consumer stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Sync Worker...")
	cancel()
	logger.Log.Info("Sync Worker stopped")
}
