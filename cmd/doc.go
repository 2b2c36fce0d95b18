// Package cmd implements the command-line interface of evercookie. Every command opens a client
// from the configuration (flags, EVERCOOKIE_* environment variables, .env files), runs one
// operation and closes the client again.
//
// The package is organized into subpackages:
//
//   - cookie: The record commands (set, get, inspect, clear, repair, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See evercookie -help for a list of all commands.
package cmd
