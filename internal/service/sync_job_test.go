package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/mock"
	"github.com/agrobook/agrobook/internal/netmon"
)

// fakeMonitor is a hand-rolled netmon.Monitor: tests drive connectivity by
// flipping the flag and feeding the events channel directly.
type fakeMonitor struct {
	online atomic.Bool
	events chan netmon.Event
}

func newFakeMonitor(online bool) *fakeMonitor {
	f := &fakeMonitor{events: make(chan netmon.Event, 8)}
	f.online.Store(online)
	return f
}

func (f *fakeMonitor) Start(context.Context)       {}
func (f *fakeMonitor) Stop()                       {}
func (f *fakeMonitor) Online() bool                { return f.online.Load() }
func (f *fakeMonitor) Events() <-chan netmon.Event { return f.events }

func (f *fakeMonitor) goOnline() {
	f.online.Store(true)
	f.events <- netmon.Event{Status: netmon.StatusOnline, At: time.Now()}
}

func waitCalled(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("sync was not triggered")
	}
}

func TestSyncJob_SyncsOnInterval(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	syncer := mock.NewMockSyncer(ctrl)
	monitor := newFakeMonitor(true)
	called := make(chan struct{}, 1)

	syncer.EXPECT().FullSync(gomock.Any()).
		DoAndReturn(func(context.Context) error {
			select {
			case called <- struct{}{}:
			default:
			}
			return nil
		}).MinTimes(1)

	j := NewSyncJob(syncer, monitor, netmon.NewLifecycle(), logger.Nop())
	j.Start(context.Background(), 10*time.Millisecond)
	defer j.Stop()

	waitCalled(t, called)
}

func TestSyncJob_ReconnectTriggersImmediateSync(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	syncer := mock.NewMockSyncer(ctrl)
	monitor := newFakeMonitor(false)
	called := make(chan struct{}, 1)

	syncer.EXPECT().FullSync(gomock.Any()).
		DoAndReturn(func(context.Context) error {
			select {
			case called <- struct{}{}:
			default:
			}
			return nil
		}).MinTimes(1)

	j := NewSyncJob(syncer, monitor, netmon.NewLifecycle(), logger.Nop())
	// The interval is effectively never; only the reconnect event can fire.
	j.Start(context.Background(), time.Hour)
	defer j.Stop()

	monitor.goOnline()
	waitCalled(t, called)
}

func TestSyncJob_SkipsTicksWhileOffline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	syncer := mock.NewMockSyncer(ctrl)
	monitor := newFakeMonitor(false)

	syncer.EXPECT().FullSync(gomock.Any()).Times(0)

	j := NewSyncJob(syncer, monitor, netmon.NewLifecycle(), logger.Nop())
	j.Start(context.Background(), 5*time.Millisecond)
	defer j.Stop()

	time.Sleep(50 * time.Millisecond)
}

func TestSyncJob_SuspendsWhileBackgrounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	syncer := mock.NewMockSyncer(ctrl)
	monitor := newFakeMonitor(true)
	lifecycle := netmon.NewLifecycle()
	called := make(chan struct{}, 1)

	j := NewSyncJob(syncer, monitor, lifecycle, logger.Nop())

	lifecycle.Background()
	syncer.EXPECT().FullSync(gomock.Any()).
		DoAndReturn(func(context.Context) error {
			select {
			case called <- struct{}{}:
			default:
			}
			return nil
		}).MinTimes(1)

	j.Start(context.Background(), 5*time.Millisecond)
	defer j.Stop()

	// Backgrounded: ticks pass without syncing.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-called:
		t.Fatal("sync ran while backgrounded")
	default:
	}

	// Returning to the foreground triggers an immediate catch-up sync.
	lifecycle.Foreground()
	waitCalled(t, called)
}

func TestSyncJob_StopIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	syncer := mock.NewMockSyncer(ctrl)
	j := NewSyncJob(syncer, newFakeMonitor(true), netmon.NewLifecycle(), logger.Nop())

	j.Start(context.Background(), time.Hour)
	j.Stop()
	j.Stop()
}
