// Package app is the composition root of the offline core. It loads
// configuration, opens and migrates the on-device database, loads the
// persisted secret and derives the cipher, wires the services into a
// services.Core, and sets up telemetry. The surrounding system supplies the
// two injected collaborators: the connectivity signal and the remote
// execution function.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Jos-zenith/uzhavan-sub000/internal/config"
	"github.com/Jos-zenith/uzhavan-sub000/internal/connectivity"
	"github.com/Jos-zenith/uzhavan-sub000/internal/observability"
	"github.com/Jos-zenith/uzhavan-sub000/internal/repo"
	"github.com/Jos-zenith/uzhavan-sub000/internal/secrets"
	"github.com/Jos-zenith/uzhavan-sub000/internal/services"
	"github.com/Jos-zenith/uzhavan-sub000/internal/sysutil"

	"gorm.io/gorm"
)

// App bundles the wired core and the resources it owns.
type App struct {
	Cfg    config.Config
	DB     *gorm.DB
	Core   *services.Core
	Signal connectivity.Signal

	otelShutdown func(context.Context) error
}

// New builds a fully wired App. signal must not be nil; execute may be nil
// for read-only embedders, in which case DrainQueue reports
// ErrNoRemoteExecutor.
func New(ctx context.Context, signal connectivity.Signal, execute services.RemoteExecutor) (*App, error) {
	if !sysutil.IsTruthy(os.Getenv("SKIP_DOTENV")) {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")
	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	db, err := repo.Open(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	secret, err := secrets.LoadOrCreateSecret(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("loading device secret: %w", err)
	}
	cipher, err := secrets.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("deriving cipher: %w", err)
	}
	secrets.ZeroKey(secret)

	core := Wire(db, cfg, cipher, signal, execute)

	log.Info().
		Str("db_path", cfg.DBPath).
		Str("version", version).
		Msg("offline core ready")

	return &App{
		Cfg:          cfg,
		DB:           db,
		Core:         core,
		Signal:       signal,
		otelShutdown: otelShutdown,
	}, nil
}

// Wire assembles the service graph over an already-opened database. Split
// out of New so tests can compose a Core against their own DB and config.
func Wire(db *gorm.DB, cfg config.Config, cipher *secrets.Cipher, signal connectivity.Signal, execute services.RemoteExecutor) *services.Core {
	events := services.NewEventService(db)
	sync := services.NewSyncService(db, signal, events, execute, services.SyncPolicy{
		MaxRetry:          cfg.MaxRetry,
		BackoffBase:       cfg.BackoffBase,
		BackoffCap:        cfg.BackoffCap,
		DefaultPriority:   cfg.DefaultPriority,
		PriorityOverrides: cfg.PriorityOverrides,
		ReplayBatchLimit:  cfg.ReplayBatchLimit,
	}, cfg.DrainRPS, cfg.DrainBurst)
	parcels := &services.ParcelService{DB: db, Events: events}

	// Replay feeds the queue and the ledger; both in turn feed events.
	events.Queue = sync
	events.Parcels = parcels

	drafts := services.NewDraftService(db, cipher, events, sync, cfg.AbandonThreshold)
	subsidies := &services.SubsidyService{DB: db, Cipher: cipher, Events: events, Sync: sync}

	return &services.Core{
		Drafts:    drafts,
		Events:    events,
		Parcels:   parcels,
		Subsidies: subsidies,
		Sync:      sync,
	}
}

// Close flushes telemetry and closes the database handle.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
