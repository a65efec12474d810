package config

import (
	stderrors "errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/hostbridge/errors"
)

// Log holds logger settings.
type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// NewLogger builds a zap logger from cfg. The json format uses zap's
// production encoder, console uses the development one.
func NewLogger(cfg Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput,
			stderrors.Join(ErrInvalidLogLevel, err), "LOG_LEVEL")
	}

	var zc zap.Config
	switch cfg.Format {
	case "", "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput,
			ErrInvalidLogFormat, "LOG_FORMAT="+cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	l, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "build logger")
	}
	return l, nil
}

// LoadLogger loads Log from the environment and builds the logger.
func LoadLogger() (*zap.Logger, error) {
	var cfg Log
	if err := Load(&cfg); err != nil {
		return nil, err
	}
	return NewLogger(cfg)
}
