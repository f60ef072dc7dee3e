package client

import (
	"context"
	"time"

	"github.com/agrobook/agrobook/internal/netmon"
	"github.com/agrobook/agrobook/internal/service"
	"github.com/agrobook/agrobook/internal/statusapi"
	"github.com/agrobook/agrobook/internal/workers"
)

// monitorWorker adapts [netmon.Monitor] to the [workers.Worker] contract.
type monitorWorker struct {
	monitor netmon.Monitor
}

func newMonitorWorker(monitor netmon.Monitor) workers.Worker {
	return &monitorWorker{monitor: monitor}
}

func (w *monitorWorker) Run(ctx context.Context) {
	w.monitor.Start(ctx)
}

func (w *monitorWorker) Stop() {
	w.monitor.Stop()
}

// syncWorker adapts [service.SyncJob] to the [workers.Worker] contract.
type syncWorker struct {
	job      service.SyncJob
	interval time.Duration
}

func newSyncWorker(job service.SyncJob, interval time.Duration) workers.Worker {
	return &syncWorker{job: job, interval: interval}
}

func (w *syncWorker) Run(ctx context.Context) {
	w.job.Start(ctx, w.interval)
}

func (w *syncWorker) Stop() {
	w.job.Stop()
}

// statusWorker adapts [statusapi.Server] to the [workers.Worker] contract.
type statusWorker struct {
	server *statusapi.Server
}

func newStatusWorker(server *statusapi.Server) workers.Worker {
	return &statusWorker{server: server}
}

func (w *statusWorker) Run(_ context.Context) {
	go w.server.RunServer()
}

func (w *statusWorker) Stop() {
	w.server.Shutdown()
}
