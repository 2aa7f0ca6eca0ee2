// Package utils holds small helpers shared by the HTTP-facing packages.
// This package is not intended to be imported by external code.
//
// It contains timestamp parsing for backend payloads and ISO8601 formatting
// for the read API.
package utils
