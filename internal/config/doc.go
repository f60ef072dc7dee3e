// Package config loads the agrobook device configuration.
//
// Values are gathered from environment variables, command-line flags, and an
// optional JSON file, merged in that priority order, topped up with built-in
// defaults and validated. The runtime consumes the narrowed [ClientConfig]
// view rather than the raw [StructuredConfig].
package config
