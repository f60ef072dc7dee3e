package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the agrobook
// device application. It aggregates all sub-configurations and is populated
// by merging values from environment variables, command-line flags, and an
// optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Adapter holds connection settings for the remote sync backend.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Storage holds configuration for the embedded device database.
	Storage Storage `envPrefix:"STORAGE_"`

	// Workers holds settings for the background sync and probe loops.
	Workers Workers `envPrefix:"WORKERS_"`

	// Status holds settings for the local status/health HTTP endpoint.
	Status Status `envPrefix:"STATUS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged with the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Adapter holds connection settings for the remote sync backend.
type Adapter struct {
	// HTTPAddress is the base address of the backend sync API,
	// in "host:port" or full URL form.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration allowed for a single outbound
	// request before the client cancels it (e.g. "30s", "1m").
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// AuthToken is the bearer token presented on every backend request.
	// Env: ADAPTER_AUTH_TOKEN
	AuthToken string `env:"AUTH_TOKEN"`
}

// Storage groups the configuration for the device persistence layer.
type Storage struct {
	// DB holds the embedded database settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds settings for the embedded sqlite database.
type DB struct {
	// Path is the filesystem path of the sqlite database file. The file and
	// its schema are created on first open.
	// Env: STORAGE_DB_PATH
	Path string `env:"PATH"`
}

// Workers holds settings for the background sync machinery.
type Workers struct {
	// SyncInterval defines how often the periodic sync job runs (e.g. "5m").
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// ProbeInterval defines how often connectivity to the backend is probed
	// while offline (e.g. "30s").
	// Env: WORKERS_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
}

// Status holds settings for the local status HTTP endpoint.
type Status struct {
	// HTTPAddress is the TCP address the status server listens on,
	// in "host:port" format (e.g. "127.0.0.1:8090"). Empty disables the
	// endpoint.
	// Env: STATUS_ADDRESS
	HTTPAddress string `env:"ADDRESS"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (first source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
