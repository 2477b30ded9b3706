// Package config loads node settings and configuration entries from YAML or
// JSON files.
package config

import (
	"strings"
	"time"
)

// Settings is the complete configuration of one node.
type Settings struct {
	Server  ServerConfiguration  `json:"server" yaml:"server"`
	Logging LoggingConfiguration `json:"logging" yaml:"logging"`
	Metrics MetricsConfiguration `json:"metrics" yaml:"metrics"`

	// Entry sections, keyed by name. Values are raw discriminated entries.
	Processors Section `json:"processors,omitempty" yaml:"processors,omitempty"`
	Steps      Section `json:"steps,omitempty" yaml:"steps,omitempty"`
	Policies   Section `json:"policies,omitempty" yaml:"policies,omitempty"`
	Clients    Section `json:"clients,omitempty" yaml:"clients,omitempty"`

	// Sources lists the files the settings were read from.
	Sources []string `json:"-" yaml:"-"`
}

// ServerConfiguration holds HTTP listener settings.
type ServerConfiguration struct {
	// Host is the interface to bind (default all interfaces)
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	// Port is the HTTP port (0 picks a free port)
	Port int `json:"port" yaml:"port"`
	// ReadTimeout is the HTTP read timeout in seconds
	ReadTimeout int `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	// WriteTimeout is the HTTP write timeout in seconds
	WriteTimeout int `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	// ShutdownTimeout bounds graceful shutdown, in seconds
	ShutdownTimeout int `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
}

// LoggingConfiguration selects log level and format.
type LoggingConfiguration struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MetricsConfiguration controls the Prometheus endpoint.
type MetricsConfiguration struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default values.
const (
	DefaultPort            = 8080
	DefaultReadTimeout     = 30
	DefaultWriteTimeout    = 120
	DefaultShutdownTimeout = 10
	DefaultMetricsPath     = "/metrics"
)

// DefaultSettings returns settings with every default applied.
func DefaultSettings() *Settings {
	return &Settings{
		Server: ServerConfiguration{
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Logging: LoggingConfiguration{Level: "info", Format: "text"},
		Metrics: MetricsConfiguration{Enabled: true, Path: DefaultMetricsPath},
	}
}

// Addr returns the listen address.
func (s ServerConfiguration) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// ReadTimeoutDuration returns ReadTimeout as a duration.
func (s ServerConfiguration) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns WriteTimeout as a duration.
func (s ServerConfiguration) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a duration.
func (s ServerConfiguration) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// Section returns the entries of the named section, matched
// case-insensitively. Unknown names return nil.
func (s *Settings) Section(name string) map[string]string {
	switch strings.ToLower(name) {
	case "processors":
		return s.Processors
	case "steps":
		return s.Steps
	case "policies":
		return s.Policies
	case "clients":
		return s.Clients
	}
	return nil
}

// EntryCount returns the number of entries across all sections.
func (s *Settings) EntryCount() int {
	return len(s.Processors) + len(s.Steps) + len(s.Policies) + len(s.Clients)
}
