// Package ingest validates and normalizes inbound events before they
// reach the stores. Nothing that fails validation ever touches state
// or the broadcast path.
package ingest
