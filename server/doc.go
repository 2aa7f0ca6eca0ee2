// Package server exposes the tracking engine to the rendering layer over
// HTTP: tracked tasks, live positions, the focused route and the focus
// selection, plus GTFS-RT and SIRI views of the same state.
package server
