// Package observability provides the structured logger and the
// Prometheus collectors shared by every component.
package observability
