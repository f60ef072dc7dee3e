package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/agrobook/agrobook/internal/config"
	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/mock"
)

func testConfig(t *testing.T) *config.ClientConfig {
	t.Helper()
	return &config.ClientConfig{
		Adapter: config.ClientAdapter{
			// Nothing listens on the discard port; the app must still start.
			HTTPAddress:    "http://127.0.0.1:9",
			RequestTimeout: time.Second,
		},
		Storage: config.ClientStorage{
			DB: config.ClientDB{Path: filepath.Join(t.TempDir(), "agrobook.db")},
		},
		Workers: config.ClientWorkers{
			SyncInterval:  time.Minute,
			ProbeInterval: time.Minute,
		},
	}
}

func TestNewApp_WiresComponents(t *testing.T) {
	app, err := NewApp(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer app.Shutdown()

	assert.NotNil(t, app.Store())
	assert.NotNil(t, app.Syncer())

	app.Background()
	app.Foreground()
}

func TestNewApp_StatusServerIsOptional(t *testing.T) {
	cfg := testConfig(t)
	cfg.Status.HTTPAddress = "127.0.0.1:0"

	app, err := NewApp(cfg, logger.Nop())
	require.NoError(t, err)
	app.Shutdown()
}

func TestNewApp_BadAdapterAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.Adapter.HTTPAddress = "://bad"

	_, err := NewApp(cfg, logger.Nop())
	require.Error(t, err)
}

func TestSyncWorker_DelegatesToJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	job := mock.NewMockSyncJob(ctrl)
	job.EXPECT().Start(gomock.Any(), time.Minute)
	job.EXPECT().Stop()

	w := newSyncWorker(job, time.Minute)
	w.Run(context.Background())
	w.Stop()
}

func TestMonitorWorker_DelegatesToMonitor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	monitor := mock.NewMockMonitor(ctrl)
	monitor.EXPECT().Start(gomock.Any())
	monitor.EXPECT().Stop()

	w := newMonitorWorker(monitor)
	w.Run(context.Background())
	w.Stop()
}
