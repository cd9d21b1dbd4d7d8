// Package server exposes the HTTP API: JSON ingest and snapshot
// endpoints for agents and dispatch tooling, and the SSE delta stream
// observers subscribe to.
package server
