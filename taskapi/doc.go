// Package taskapi fetches the tracking snapshot from the task REST backend.
//
// A snapshot is the list of IN_PROGRESS tasks plus the latest logged
// position of each. The engine is seeded from it at startup and after every
// stream reconnect.
package taskapi
