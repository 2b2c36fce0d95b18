// Package common provides the configuration structure and the logging setup shared by the
// evercookie library and its command-line interface.
//
// Key Components:
//
//   - Config: All parameters needed to assemble a client from its substrates (data directory,
//     cookie retention, object store container and version, recovery bound, side channels,
//     log level), with validation and a sectioned String() representation.
//
//   - Logger: A custom logger factory for Dragonboat's logger package. Every package of this
//     module obtains its logger with logger.GetLogger(<package>) and InitLoggers sets the
//     factory and the level for all of them.
package common
