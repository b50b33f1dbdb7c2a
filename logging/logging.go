package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger for the given environment: "local" logs everything in a
// human readable form, "development" the same from info up, and anything else uses the
// production JSON encoder.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "local":
		return zap.NewDevelopment()
	case "development":
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		return cfg.Build()
	case "production", "":
		return zap.NewProduction()
	}
	return nil, fmt.Errorf("unknown environment %q", env)
}

// Install builds the logger for env and makes it the global zap logger.
func Install(env string) (*zap.Logger, error) {
	logger, err := New(env)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
