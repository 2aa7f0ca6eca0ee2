package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are searched in order when no explicit config path is given.
var DefaultPaths = []string{"config.yml", "./config/config.yml"}

// Defaults returns the configuration used for any value the file leaves unset.
func Defaults() AppConfig {
	return AppConfig{
		Server:  ServerConfig{Port: 16182},
		API:     APIConfig{TimeoutMS: 10000},
		Stream:  StreamConfig{MaxAttempts: 8, InitialDelayMS: 500},
		Routing: RoutingConfig{Provider: "osrm", BaseURL: "https://router.project-osrm.org", Profile: "driving", TimeoutMS: 10000},
		Policy:  PolicyConfig{ArrivalRadiusM: 10, MoveThresholdM: 20, DebounceMS: 250, GraceWindowMS: 5000},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// LoadAppConfig loads and validates the application configuration. If path is
// empty, DefaultPaths are tried in order.
func LoadAppConfig(path string) (AppConfig, error) {
	paths := DefaultPaths
	if path != "" {
		paths = []string{path}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return AppConfig{}, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document, then fills defaults.
func Parse(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// Validate checks every section's struct tags.
func Validate(cfg AppConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// sites are optional; if present names must be unique
	seen := map[string]bool{}
	for _, s := range cfg.Sites {
		if seen[s.Name] {
			return fmt.Errorf("invalid config: duplicate site %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	d := Defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.API.TimeoutMS == 0 {
		cfg.API.TimeoutMS = d.API.TimeoutMS
	}
	if cfg.Stream.MaxAttempts == 0 {
		cfg.Stream.MaxAttempts = d.Stream.MaxAttempts
	}
	if cfg.Stream.InitialDelayMS == 0 {
		cfg.Stream.InitialDelayMS = d.Stream.InitialDelayMS
	}
	if cfg.Routing.Provider == "" {
		cfg.Routing.Provider = d.Routing.Provider
	}
	if cfg.Routing.BaseURL == "" && cfg.Routing.Provider == "osrm" {
		cfg.Routing.BaseURL = d.Routing.BaseURL
	}
	if cfg.Routing.Profile == "" {
		cfg.Routing.Profile = d.Routing.Profile
	}
	if cfg.Routing.TimeoutMS == 0 {
		cfg.Routing.TimeoutMS = d.Routing.TimeoutMS
	}
	if cfg.Policy.ArrivalRadiusM == 0 {
		cfg.Policy.ArrivalRadiusM = d.Policy.ArrivalRadiusM
	}
	if cfg.Policy.MoveThresholdM == 0 {
		cfg.Policy.MoveThresholdM = d.Policy.MoveThresholdM
	}
	if cfg.Policy.DebounceMS == 0 {
		cfg.Policy.DebounceMS = d.Policy.DebounceMS
	}
	if cfg.Policy.GraceWindowMS == 0 {
		cfg.Policy.GraceWindowMS = d.Policy.GraceWindowMS
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
}

// ErrNoBackend is returned by SelectSite when neither sites nor top-level
// api/stream sections point anywhere.
var ErrNoBackend = errors.New("no backend configured")

// SelectSite chooses a site by name; fallback to first; if none, use top-level API/Stream.
func SelectSite(cfg AppConfig, name string) (APIConfig, StreamConfig, error) {
	if name != "" {
		for _, s := range cfg.Sites {
			if s.Name == name {
				return withDefaults(cfg, s.API, s.Stream)
			}
		}
		return APIConfig{}, StreamConfig{}, fmt.Errorf("site %q not found", name)
	}
	if len(cfg.Sites) > 0 {
		return withDefaults(cfg, cfg.Sites[0].API, cfg.Sites[0].Stream)
	}
	if cfg.API.BaseURL == "" && cfg.Stream.URL == "" {
		return APIConfig{}, StreamConfig{}, ErrNoBackend
	}
	return cfg.API, cfg.Stream, nil
}

// site sections inherit unset tuning values from the top level
func withDefaults(cfg AppConfig, api APIConfig, stream StreamConfig) (APIConfig, StreamConfig, error) {
	if api.TimeoutMS == 0 {
		api.TimeoutMS = cfg.API.TimeoutMS
	}
	if stream.MaxAttempts == 0 {
		stream.MaxAttempts = cfg.Stream.MaxAttempts
	}
	if stream.InitialDelayMS == 0 {
		stream.InitialDelayMS = cfg.Stream.InitialDelayMS
	}
	return api, stream, nil
}
