// Package config reads process configuration for the shape-message tools
// from the environment.
package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shapestone/shape-message/pkg/uri"
	"github.com/shapestone/shape-message/pkg/wire"
)

// Config holds the settings shared by the command line tools.
type Config struct {
	LogLevel          zapcore.Level `env:"SHAPE_MESSAGE_LOG_LEVEL" envDefault:"info"`
	ElideDefaultPorts bool          `env:"SHAPE_MESSAGE_ELIDE_DEFAULT_PORTS" envDefault:"true"`
	MaxBodyBytes      int64         `env:"SHAPE_MESSAGE_MAX_BODY_BYTES" envDefault:"8388608"`
}

// Parse reads the process environment.
func Parse() (Config, error) {
	return parse(env.Options{})
}

// ParseFrom reads the given variables instead of the process environment.
func ParseFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (cfg Config, err error) {
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, errors.Wrap(err, "failed to parse environment")
	}
	if cfg.MaxBodyBytes < 0 {
		return cfg, errors.Newf("SHAPE_MESSAGE_MAX_BODY_BYTES must not be negative, got %d", cfg.MaxBodyBytes)
	}
	return cfg, nil
}

// Logger builds a JSON logger at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// WireOptions translates the configuration into decoder options.
func (c Config) WireOptions(logger *zap.Logger) []wire.Option {
	opts := []wire.Option{
		wire.WithMaxBodyBytes(c.MaxBodyBytes),
		wire.WithLogger(logger),
	}
	if !c.ElideDefaultPorts {
		opts = append(opts, wire.WithURIOptions(uri.WithoutPortElision()))
	}
	return opts
}
