// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// The package supports multiple backend sites and allows site selection by name.
package config
