// Package config provides the configuration of urlrisk: scan timeouts,
// cache sizing, browser settings, history storage and the API server.
//
// Values come from three layers, later layers winning: the defaults of
// NewConfig, the optional YAML configuration file, and command line flags.
// The file may also carry per-host overrides.
package config
