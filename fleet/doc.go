// Package fleet holds the domain types shared across the tracking
// service: position reports, routes with their ordered stops, the
// delta payloads broadcast to observers, and the sentinel errors
// returned by the stores.
package fleet
