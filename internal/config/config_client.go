package config

import (
	"fmt"
	"time"
)

// ClientAdapter holds network settings used by the device transport layer.
type ClientAdapter struct {
	// HTTPAddress is the backend sync API address.
	HTTPAddress string
	// RequestTimeout is the default timeout for outbound requests.
	RequestTimeout time.Duration
	// AuthToken is the bearer token presented to the backend.
	AuthToken string
}

// ClientDB contains the device database settings.
type ClientDB struct {
	// Path is the sqlite database file path.
	Path string
}

// ClientStorage groups device storage backend settings.
type ClientStorage struct {
	// DB holds the embedded database settings.
	DB ClientDB
}

// ClientWorkers contains background sync job settings.
type ClientWorkers struct {
	// SyncInterval defines how often the periodic sync runs.
	SyncInterval time.Duration
	// ProbeInterval defines how often connectivity is probed while offline.
	ProbeInterval time.Duration
}

// ClientStatus contains local status endpoint settings.
type ClientStatus struct {
	// HTTPAddress is the status server listen address. Empty disables it.
	HTTPAddress string
}

// ClientConfig is the top-level device configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	// Adapter contains backend transport addresses and timeouts.
	Adapter ClientAdapter
	// Storage contains device storage settings.
	Storage ClientStorage
	// Workers contains background job settings.
	Workers ClientWorkers
	// Status contains local status endpoint settings.
	Status ClientStatus
}

// GetClientConfig builds and validates the device config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the device runtime, and validates the resulting [ClientConfig].
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := &ClientConfig{
		Adapter: ClientAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
			AuthToken:      cfg.Adapter.AuthToken,
		},
		Storage: ClientStorage{
			DB: ClientDB{
				Path: cfg.Storage.DB.Path,
			},
		},
		Workers: ClientWorkers{
			SyncInterval:  cfg.Workers.SyncInterval,
			ProbeInterval: cfg.Workers.ProbeInterval,
		},
		Status: ClientStatus{
			HTTPAddress: cfg.Status.HTTPAddress,
		},
	}

	return clientCfg, clientCfg.validate()
}
