// Package cvconfig assembles the settings needed to start the consensus engine:
// node identity, peer-to-peer networking, timeouts, metrics, logging,
// value synchronization, the write-ahead log, and an optional start height.
//
// There are two ways to build an [EngineConfig].
// [NewEngineConfig] and [NewNodeConfig] fill in defaults programmatically,
// and fall back to a default listen address when given one they cannot parse.
// [LoadEngineConfig] reads an operator-supplied TOML file,
// and fails with a [*ConfigError] when the file is incomplete or malformed.
//
// Configuration values are plain values.
// The With methods return modified copies and never alter the receiver.
package cvconfig
