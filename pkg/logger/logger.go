package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

type Option func(*zap.Config)

func WithLevel(level string) Option {
	return func(c *zap.Config) {
		ll := zapcore.InfoLevel
		_ = ll.Set(level)
		c.Level.SetLevel(ll)
	}
}

func WithFormat(format string) Option {
	return func(c *zap.Config) {
		switch format {
		case LogFormatConsole:
			c.Encoding = LogFormatConsole
			c.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		default:
			c.Encoding = LogFormatJSON
		}
	}
}

func WithOutputPaths(paths []string) Option {
	return func(c *zap.Config) {
		if len(paths) > 0 {
			c.OutputPaths = paths
		}
	}
}

func New(opts ...Option) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	for _, opt := range opts {
		opt(&config)
	}

	return config.Build()
}
