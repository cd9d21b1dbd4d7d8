// Package routestate holds each route's ordered stop list and
// completion state. Routes are created by the external CRUD layer and
// handed in via Put; the only mutation this package performs itself is
// stop completion, which is atomic per (route, stop) and idempotent
// with first-writer-wins on the completion timestamp.
package routestate
