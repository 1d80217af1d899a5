// Package daemon assembles and runs alarmd.
//
// Run builds the key-value store, the alarm store, the wake service, the
// notifier, the firing coordinator and the engine from configuration, then
// serves the gRPC collaborator API until the context ends. Fire replays a wake
// callback in a fresh process.
package daemon
