// Package version exposes build metadata for alarmd and alarmctl.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to local-build values.
// Short and Full render the version for CLI output and logs, UserAgent tags
// outgoing gRPC connections.
package version
