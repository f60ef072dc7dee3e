package config

import (
	"flag"
	"fmt"
	"time"
)

// parseFlags parses all configuration flags from args.
//
// Flags:
//
//	-a remote backend address in format [host]:[port] or full URL
//	-d device database file path
//	-t bearer token for backend requests
//	-c/-config json file path with configs
//	-request-timeout outbound request timeout (e.g., "30s", "1m")
//	-sync-interval periodic sync interval (e.g., "5m")
//	-probe-interval offline connectivity probe interval (e.g., "30s")
//	-status-address local status endpoint address in format [host]:[port]
func parseFlags(args []string) (*StructuredConfig, error) {
	fs := flag.NewFlagSet("agrobook", flag.ContinueOnError)

	var remoteAddress string
	var dbPath string
	var authToken string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var syncInterval time.Duration
	var probeInterval time.Duration
	var statusAddress string

	fs.StringVar(&remoteAddress, "a", "", "Backend address host:port or URL")
	fs.StringVar(&dbPath, "d", "", "Device database file path")
	fs.StringVar(&authToken, "t", "", "Backend bearer token")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Periodic sync interval (e.g., 5m)")
	fs.DurationVar(&probeInterval, "probe-interval", 0, "Connectivity probe interval (e.g., 30s)")
	fs.StringVar(&statusAddress, "status-address", "", "Status endpoint address host:port")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("error parsing flags: %w", err)
	}

	return &StructuredConfig{
		Adapter: Adapter{
			HTTPAddress:    remoteAddress,
			RequestTimeout: requestTimeout,
			AuthToken:      authToken,
		},
		Storage: Storage{
			DB: DB{
				Path: dbPath,
			},
		},
		Workers: Workers{
			SyncInterval:  syncInterval,
			ProbeInterval: probeInterval,
		},
		Status: Status{
			HTTPAddress: statusAddress,
		},
		JSONFilePath: jsonConfigPath,
	}, nil
}
