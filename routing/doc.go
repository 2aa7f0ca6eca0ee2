// Package routing provides route providers for the tracking engine.
//
// The engine treats a provider as opaque: it sends an origin and a
// destination and receives a polyline. OSRM talks to an OSRM-compatible HTTP
// service, Straight returns the direct segment and Resilient bounds any
// provider with a timeout.
package routing
