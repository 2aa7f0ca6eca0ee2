// Package stream consumes the backend's push event connection.
//
// Client dials the websocket, re-seeds the engine from a fresh snapshot on
// every successful connect and then hands messages to the engine one at a
// time, waiting for each to be applied before reading the next. Lost
// connections are re-established with exponential backoff.
package stream
