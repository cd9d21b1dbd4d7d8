// Package position stores agent position reports.
//
// The log is append-only; the only mutation anywhere is the
// incrementally maintained latest-per-agent index, which makes
// LatestAll O(agents) instead of O(reports). Index updates are
// linearizable per agent: each agent has its own lock, so recording
// for one agent never serializes against another.
package position
