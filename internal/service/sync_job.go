package service

import (
	"context"
	"sync"
	"time"

	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/netmon"
)

type syncJob struct {
	syncer    Syncer
	monitor   netmon.Monitor
	lifecycle *netmon.Lifecycle
	logger    *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a [SyncJob] that triggers syncer.FullSync on a ticker,
// on every offline-to-online transition reported by monitor, and suspends
// both while lifecycle reports the application backgrounded. The job is idle
// until Start is called.
func NewSyncJob(syncer Syncer, monitor netmon.Monitor, lifecycle *netmon.Lifecycle, log *logger.Logger) SyncJob {
	return &syncJob{
		syncer:    syncer,
		monitor:   monitor,
		lifecycle: lifecycle,
		logger:    log,
	}
}

// Start implements [SyncJob]. It stops any previously running job, then
// launches a background goroutine driving the sync schedule. The goroutine
// exits when ctx is cancelled or Stop is called.
func (j *syncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		j.loop(jobCtx, interval)
	}()
}

// Stop implements [SyncJob]. It cancels the background goroutine's context
// and blocks until the goroutine has fully exited. Safe to call when the job
// is not running.
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

func (j *syncJob) loop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	suspended := j.lifecycle != nil && j.lifecycle.State() == netmon.StateBackground

	var netEvents <-chan netmon.Event
	if j.monitor != nil {
		netEvents = j.monitor.Events()
	}
	var appEvents <-chan netmon.AppEvent
	if j.lifecycle != nil {
		appEvents = j.lifecycle.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-t.C:
			if suspended || !j.online() {
				continue
			}
			j.run(ctx, "interval")

		case ev := <-netEvents:
			// Reconnect sync: flush the offline backlog as soon as the
			// backend is reachable again.
			if ev.Status != netmon.StatusOnline || suspended {
				continue
			}
			j.run(ctx, "reconnect")

		case ev := <-appEvents:
			switch ev.State {
			case netmon.StateBackground:
				suspended = true
				j.logger.Debug().Msg("sync job suspended, app backgrounded")
			case netmon.StateForeground:
				suspended = false
				if j.online() {
					j.run(ctx, "resume")
				}
			}
		}
	}
}

func (j *syncJob) online() bool {
	return j.monitor == nil || j.monitor.Online()
}

func (j *syncJob) run(ctx context.Context, trigger string) {
	if err := j.syncer.FullSync(ctx); err != nil {
		j.logger.Warn().Err(err).Str("trigger", trigger).Msg("background sync failed")
	}
}
