// Package server implements the presence and session-coordination core: it
// tracks logged-in sessions, brokers ephemeral call rooms with ordered
// participant lists, and fans out state snapshots to every logged-in client
// over WebSocket.
//
// All registry state is in-memory and owned by a single hub goroutine;
// clients talk to it exclusively through channels. The implementation is
// split into files for configuration, the hub, registries, the broadcast
// bus, clients, routing, and HTTP handlers.
package server
