package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/synaptica-ai/registry/pkg/common/config"
	"github.com/synaptica-ai/registry/pkg/common/database"
	"github.com/synaptica-ai/registry/pkg/common/kafka"
	"github.com/synaptica-ai/registry/pkg/common/logger"
	"github.com/synaptica-ai/registry/pkg/common/middleware"
	"github.com/synaptica-ai/registry/pkg/observability/metrics"
	"github.com/synaptica-ai/registry/pkg/person"
	"github.com/synaptica-ai/registry/pkg/referencedata"
	"github.com/synaptica-ai/registry/pkg/remotesync"
)

func main() {
	logger.Init()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed, err := referencedata.LoadSeed(cfg.ReferenceDataPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load reference data seed")
	}

	var (
		store   person.Store
		types   *referencedata.Registry
		db      *gorm.DB
		journal *remotesync.Journal
	)
	switch cfg.StorageDriver {
	case "memory":
		store = person.NewMemoryStore()
		types = referencedata.FromSeed(seed)
	case "postgres":
		db, err = database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer database.ClosePostgres()

		repo := person.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate person tables")
		}
		store = repo

		refs := referencedata.NewRepository(db)
		if err := refs.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate reference data tables")
		}
		if err := refs.EnsureSeed(ctx, seed); err != nil {
			logger.Log.WithError(err).Fatal("failed to seed reference data")
		}
		types, err = refs.Load(ctx)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to load reference data")
		}
	default:
		logger.Log.WithField("driver", cfg.StorageDriver).Fatal("unsupported storage driver")
	}

	builder := person.NewBuilder(store, types)

	var (
		remote person.RemoteRegistry
		locker person.Locker
	)
	if cfg.SyncEnabled {
		if db != nil {
			journal = remotesync.NewJournal(db)
			if err := journal.AutoMigrate(); err != nil {
				logger.Log.WithError(err).Fatal("failed to migrate sync journal")
			}
		}
		var recorder remotesync.Recorder
		if journal != nil {
			recorder = journal
		}
		remote = remotesync.NewClient(cfg.SyncConfig(), builder, recorder)
		locker = remotesync.NewRedisLocker(database.GetRedis(cfg), cfg.SyncLockTTL)
		defer database.CloseRedis()

		logger.Log.WithField("peer", cfg.SyncConfig().Address()).Info("remote registry sync enabled")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.PersonEventsTopic)
	defer producer.Close()

	svc := person.NewService(store, types, builder, remote, locker, producer)
	svc.SetFetchTimeout(cfg.SyncLockTTL)
	handler := person.NewHTTPHandler(svc, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.Use(middleware.Logging, middleware.Recovery, middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil || sqlDB.PingContext(r.Context()) != nil {
				http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	peer := router.PathPrefix("/").Subrouter()
	peerAuth := cfg.PeerAuth()
	peer.Use(
		middleware.RateLimit(cfg.PeerRateLimit, cfg.PeerRateLimit*2),
		middleware.PeerAuth(peerAuth.Usernames, peerAuth.Passwords),
	)
	handler.RegisterPeer(peer)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"storage": cfg.StorageDriver,
		}).Info("Registry Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	if journal != nil {
		go func() {
			ticker := time.NewTicker(12 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := journal.Cleanup(ctx, cfg.SyncLogTTL); err != nil {
						logger.Log.WithError(err).Warn("sync journal cleanup failed")
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Registry Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Registry Service stopped")
}
