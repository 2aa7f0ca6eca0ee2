// Package tracking is the live tracking and route reconciliation engine.
//
// It maintains, for every field task currently in progress:
//   - the task's destination (Registry), seeded from a REST snapshot and
//     mutated by task lifecycle events
//   - the assignee's latest known position (PositionStore)
//   - for the single focused task, the route shown on the map (Reconciler)
//
// All state is owned by an Engine, which drains one queue of triggers (stream
// messages, debounce timers, routing responses, focus changes and reads) on a
// single goroutine. Registry, PositionStore and Reconciler are therefore not
// safe for concurrent use on their own.
//
// Route requests are rate controlled twice: a spatial threshold suppresses
// GPS jitter and a debounce window collapses bursts of qualifying updates
// into one request carrying the latest position. Each request carries a
// monotonically increasing token; responses for superseded tokens are dropped.
package tracking
