// Package logging provides structured logging configuration for mockmesh.
//
// This package wraps log/slog so every component logs the same way. It adds a
// CRITICAL level for configuration that is detected as unusable while a
// request is being served.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//
//	log := logging.Component(logger, "engine")
//	log.Info("processor finished", "processor", "checkout", "status", "Success")
//	logging.Critical(ctx, log, "delay step has negative time", "time", -2.0)
//
// # Log Levels
//
//   - Debug: per-step execution detail
//   - Info: startup, registry load summary, server lifecycle
//   - Warn: skipped configuration entries, fallback substitutions
//   - Error: failed replicas, transport errors
//   - Critical: invalid configuration discovered at execute time
//
// # Integration
//
// Components accept a *slog.Logger in their constructor or options.
// A nil logger is replaced with logging.Nop().
package logging
