// Package logger wraps zap for alarmd and alarmctl:
//   - a global sugared logger writing timestamped console records to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and Configure for the log_level setting,
//   - leveled helpers (InfoKV, ErrorKV, etc.).
//
// The engine, the wake and notification hosts and both binaries take a
// context and extract the logger from it, so every record carries the name
// of the component that wrote it.
package logger
