// Package broadcast fans state deltas out to observer sessions.
//
// The Hub owns the set of connected observers. Each session carries a
// bounded outbound queue; when a slow observer's queue fills, the
// oldest pending delta is dropped rather than blocking the publisher.
// The stream is latest-state-wins, not a transactional log, so a
// lagging observer resynchronizes with a snapshot query after
// reconnecting instead of relying on replay.
package broadcast
