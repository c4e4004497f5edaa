// Package logging configures the process-wide go-nuts logger.
package logging

import (
	"fmt"
	"strings"

	nuts "github.com/vaudience/go-nuts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps the configured log level onto a zap level. Unknown values
// fall back to info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal", "critical":
		return zapcore.FatalLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// Setup replaces nuts.L with a console logger at the given level.
func Setup(level string) error {
	lvl, levelErr := ParseLevel(level)

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("error building logger: %w", err)
	}
	nuts.L = logger.Sugar()

	if levelErr != nil {
		nuts.L.Warnf("[Logging] %v, using info", levelErr)
	}
	return nil
}

// Sync flushes buffered log entries.
func Sync() {
	_ = nuts.L.Sync()
}
