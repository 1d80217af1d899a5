// Package common holds helpers shared by alarmd and alarmctl.
//
// It provides a gRPC client wrapper over the alarm service with per-call
// timeouts, and actor detection (hostname/username) for the daemon's audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
