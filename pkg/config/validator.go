package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getmockd/mockmesh/pkg/logging"
)

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the server, logging and metrics settings. Entry sections
// are validated when the registry loads them.
func (s *Settings) Validate() error {
	var errs []error

	if s.Server.Port < 0 || s.Server.Port >= 65536 {
		errs = append(errs, &ValidationError{Field: "server.port", Message: "port must be between 0 and 65535"})
	}
	if s.Server.ReadTimeout < 0 {
		errs = append(errs, &ValidationError{Field: "server.readTimeout", Message: "must not be negative"})
	}
	if s.Server.WriteTimeout < 0 {
		errs = append(errs, &ValidationError{Field: "server.writeTimeout", Message: "must not be negative"})
	}
	if s.Server.ShutdownTimeout < 0 {
		errs = append(errs, &ValidationError{Field: "server.shutdownTimeout", Message: "must not be negative"})
	}

	if lvl := strings.ToLower(s.Logging.Level); lvl != "" && logging.ParseLevel(lvl) == logging.LevelInfo && lvl != "info" {
		errs = append(errs, &ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", s.Logging.Level)})
	}
	if f := strings.ToLower(s.Logging.Format); f != "" && f != "text" && f != "json" {
		errs = append(errs, &ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", s.Logging.Format)})
	}

	if s.Metrics.Enabled && !strings.HasPrefix(s.Metrics.Path, "/") {
		errs = append(errs, &ValidationError{Field: "metrics.path", Message: "must start with /"})
	}

	return errors.Join(errs...)
}
