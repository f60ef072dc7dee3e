package client

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/agrobook/agrobook/internal/adapter"
	"github.com/agrobook/agrobook/internal/config"
	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/netmon"
	"github.com/agrobook/agrobook/internal/service"
	"github.com/agrobook/agrobook/internal/statusapi"
	"github.com/agrobook/agrobook/internal/store"
	"github.com/agrobook/agrobook/internal/workers"
)

// App owns every long-lived component of the device runtime and wires them
// together without ambient globals.
type App struct {
	cfg    *config.ClientConfig
	logger *logger.Logger

	db        *store.DB
	local     store.LocalStore
	remote    adapter.RemoteStore
	syncer    service.Syncer
	lifecycle *netmon.Lifecycle
	workers   *workers.Workers
}

// NewApp builds the full component graph: local database (migrated on open),
// backend adapter, sync engine, connectivity monitor, sync job, and the
// optional status server.
func NewApp(cfg *config.ClientConfig, log *logger.Logger) (*App, error) {
	db, err := store.OpenSQLite(cfg.Storage.DB.Path, log)
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}

	local := store.NewLocalStore(db, log)

	remote, err := adapter.NewHTTPRemoteStore(cfg.Adapter, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create remote adapter: %w", err)
	}

	syncer := service.NewSyncEngine(local, remote, log)

	monitor := netmon.NewProbeMonitor(remote, cfg.Workers.ProbeInterval, log)
	lifecycle := netmon.NewLifecycle()
	job := service.NewSyncJob(syncer, monitor, lifecycle, log)

	ws := []workers.Worker{
		newMonitorWorker(monitor),
		newSyncWorker(job, cfg.Workers.SyncInterval),
	}
	if cfg.Status.HTTPAddress != "" {
		server := statusapi.NewServer(statusapi.NewHandler(syncer, log), cfg.Status, log)
		ws = append(ws, newStatusWorker(server))
	}

	return &App{
		cfg:       cfg,
		logger:    log,
		db:        db,
		local:     local,
		remote:    remote,
		syncer:    syncer,
		lifecycle: lifecycle,
		workers:   workers.New(ws...),
	}, nil
}

// Run implements [Client]. It performs the startup sync, starts the
// background workers, and blocks until a stop signal arrives.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	// The startup sync populates the cache without blocking app start; the
	// application stays usable on local data when the backend is unreachable.
	go func() {
		if err := a.syncer.FullSync(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("startup sync failed, continuing on local data")
		}
	}()

	a.workers.Run(ctx)
	<-ctx.Done()

	a.Shutdown()
	a.logger.Info().Msg("application stopped")

	return nil
}

// Store exposes the local store to the embedding UI layer.
func (a *App) Store() store.LocalStore {
	return a.local
}

// Syncer exposes the sync engine to the embedding UI layer.
func (a *App) Syncer() service.Syncer {
	return a.syncer
}

// Foreground resumes background synchronization after [App.Background].
func (a *App) Foreground() {
	a.lifecycle.Foreground()
}

// Background suspends background synchronization while the embedding
// application is not visible.
func (a *App) Background() {
	a.lifecycle.Background()
}

// Shutdown stops the background workers and closes the local database.
func (a *App) Shutdown() {
	a.workers.Stop()

	if err := a.db.Close(); err != nil {
		a.logger.Error().Err(err).Msg("error closing local database")
	}
}
