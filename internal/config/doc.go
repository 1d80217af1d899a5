// Package config defines the settings used by alarmd and alarmctl and
// provides helpers to load, validate and save them in YAML format.
//
// Config holds the gRPC address, the store backend and key, the engine mode
// and intervals, and the notification channel. Validate fills defaults.
package config
