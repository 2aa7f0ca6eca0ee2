package config

import "time"

// ServerConfig contains the read API server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// APIConfig points at the task REST backend used for snapshot fetches
type APIConfig struct {
	BaseURL   string `yaml:"baseURL" validate:"omitempty,url"`
	Token     string `yaml:"token"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
}

// StreamConfig contains the push event stream configuration
type StreamConfig struct {
	URL            string `yaml:"url" validate:"omitempty,url"`
	MaxAttempts    int    `yaml:"maxAttempts" validate:"gte=0"`
	InitialDelayMS int    `yaml:"initialDelayMS" validate:"gte=0"`
}

// RoutingConfig selects and configures the routing provider
type RoutingConfig struct {
	Provider  string `yaml:"provider" validate:"omitempty,oneof=osrm straight"`
	BaseURL   string `yaml:"baseURL" validate:"omitempty,url"`
	Profile   string `yaml:"profile"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
}

// PolicyConfig holds the route reconciliation policy values
type PolicyConfig struct {
	ArrivalRadiusM float64 `yaml:"arrivalRadiusM" validate:"gte=0"`
	MoveThresholdM float64 `yaml:"moveThresholdM" validate:"gte=0"`
	DebounceMS     int     `yaml:"debounceMS" validate:"gte=0"`
	GraceWindowMS  int     `yaml:"graceWindowMS" validate:"gte=0"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Site represents a single named backend deployment
type Site struct {
	Name   string       `yaml:"name" validate:"required"`
	API    APIConfig    `yaml:"api"`
	Stream StreamConfig `yaml:"stream"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Stream  StreamConfig  `yaml:"stream"`
	Routing RoutingConfig `yaml:"routing"`
	Policy  PolicyConfig  `yaml:"policy"`
	Log     LogConfig     `yaml:"log"`
	Sites   []Site        `yaml:"sites" validate:"dive"`
}

// Debounce returns the debounce window as a duration.
func (p PolicyConfig) Debounce() time.Duration {
	return time.Duration(p.DebounceMS) * time.Millisecond
}

// GraceWindow returns the orphan position grace window as a duration.
func (p PolicyConfig) GraceWindow() time.Duration {
	return time.Duration(p.GraceWindowMS) * time.Millisecond
}

// Timeout returns the provider call timeout as a duration.
func (r RoutingConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// Timeout returns the REST call timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

// InitialDelay returns the first reconnect backoff delay.
func (s StreamConfig) InitialDelay() time.Duration {
	return time.Duration(s.InitialDelayMS) * time.Millisecond
}
