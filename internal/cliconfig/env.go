package cliconfig

import (
	"os"
	"strconv"
	"strings"

	"github.com/getmockd/mockmesh/pkg/config"
)

// Environment variable names
const (
	EnvConfig       = "MOCKMESH_CONFIG"
	EnvHost         = "MOCKMESH_HOST"
	EnvPort         = "MOCKMESH_PORT"
	EnvLogLevel     = "MOCKMESH_LOG_LEVEL"
	EnvLogFormat    = "MOCKMESH_LOG_FORMAT"
	EnvMetrics      = "MOCKMESH_METRICS"
	EnvReadTimeout  = "MOCKMESH_READ_TIMEOUT"
	EnvWriteTimeout = "MOCKMESH_WRITE_TIMEOUT"
)

// Value sources, lowest precedence first.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Overrides holds the values set outside the configuration files.
// A nil pointer means unset.
type Overrides struct {
	Host         *string
	Port         *int
	LogLevel     *string
	LogFormat    *string
	Metrics      *bool
	ReadTimeout  *int
	WriteTimeout *int

	// Sources records where each applied value came from, by setting name.
	Sources map[string]string
}

// ConfigPatterns returns the configuration file patterns named by
// MOCKMESH_CONFIG, which may hold several separated by commas.
func ConfigPatterns() []string {
	v := os.Getenv(EnvConfig)
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadEnv reads overrides from environment variables.
// It only sets values that are present and parse.
func LoadEnv() *Overrides {
	o := &Overrides{Sources: make(map[string]string)}

	if v := os.Getenv(EnvHost); v != "" {
		o.Host = &v
		o.Sources["server.host"] = SourceEnv
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			o.Port = &port
			o.Sources["server.port"] = SourceEnv
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		o.LogLevel = &v
		o.Sources["logging.level"] = SourceEnv
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		o.LogFormat = &v
		o.Sources["logging.format"] = SourceEnv
	}
	if v := os.Getenv(EnvMetrics); v != "" {
		enabled := v == "true" || v == "1" || v == "yes"
		o.Metrics = &enabled
		o.Sources["metrics.enabled"] = SourceEnv
	}
	if v := os.Getenv(EnvReadTimeout); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			o.ReadTimeout = &timeout
			o.Sources["server.readTimeout"] = SourceEnv
		}
	}
	if v := os.Getenv(EnvWriteTimeout); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			o.WriteTimeout = &timeout
			o.Sources["server.writeTimeout"] = SourceEnv
		}
	}
	return o
}

// Merge copies the values set in next over o, recording source for each.
func (o *Overrides) Merge(next *Overrides, source string) {
	if next == nil {
		return
	}
	if o.Sources == nil {
		o.Sources = make(map[string]string)
	}
	set := func(name string, present bool) {
		if present {
			o.Sources[name] = source
		}
	}
	if next.Host != nil {
		o.Host = next.Host
	}
	set("server.host", next.Host != nil)
	if next.Port != nil {
		o.Port = next.Port
	}
	set("server.port", next.Port != nil)
	if next.LogLevel != nil {
		o.LogLevel = next.LogLevel
	}
	set("logging.level", next.LogLevel != nil)
	if next.LogFormat != nil {
		o.LogFormat = next.LogFormat
	}
	set("logging.format", next.LogFormat != nil)
	if next.Metrics != nil {
		o.Metrics = next.Metrics
	}
	set("metrics.enabled", next.Metrics != nil)
	if next.ReadTimeout != nil {
		o.ReadTimeout = next.ReadTimeout
	}
	set("server.readTimeout", next.ReadTimeout != nil)
	if next.WriteTimeout != nil {
		o.WriteTimeout = next.WriteTimeout
	}
	set("server.writeTimeout", next.WriteTimeout != nil)
}

// Apply writes the set overrides into s and re-validates it.
func (o *Overrides) Apply(s *config.Settings) error {
	if o.Host != nil {
		s.Server.Host = *o.Host
	}
	if o.Port != nil {
		s.Server.Port = *o.Port
	}
	if o.LogLevel != nil {
		s.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		s.Logging.Format = *o.LogFormat
	}
	if o.Metrics != nil {
		s.Metrics.Enabled = *o.Metrics
	}
	if o.ReadTimeout != nil {
		s.Server.ReadTimeout = *o.ReadTimeout
	}
	if o.WriteTimeout != nil {
		s.Server.WriteTimeout = *o.WriteTimeout
	}
	return s.Validate()
}
