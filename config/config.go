// Package config holds the settings of the accpack command, read from a TOML
// file and overridden by flags.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rawbytedev/accpack"
	"github.com/rawbytedev/accpack/pkg/accumulator"
)

// EncoderConfig bounds the encoder.
type EncoderConfig struct {
	BaseSize    int `toml:"base_size"`
	MaxCapacity int `toml:"max_capacity"` // 0 means unbounded
	MaxDepth    int `toml:"max_depth"`
}

// OutputConfig selects how encoded bytes are written.
type OutputConfig struct {
	Frame    bool `toml:"frame"`
	Compress bool `toml:"compress"`
	Hex      bool `toml:"hex"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Config is the root of the TOML document.
type Config struct {
	Encoder EncoderConfig `toml:"encoder"`
	Output  OutputConfig  `toml:"output"`
	Log     LogConfig     `toml:"log"`
}

func Default() *Config {
	return &Config{
		Encoder: EncoderConfig{
			BaseSize: accumulator.DefaultSize,
			MaxDepth: accpack.DefaultMaxDepth,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFile decodes the TOML file at path over the defaults.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Encoder.BaseSize < 0 {
		return fmt.Errorf("encoder.base_size must not be negative, got %d", c.Encoder.BaseSize)
	}
	if c.Encoder.MaxCapacity < 0 {
		return fmt.Errorf("encoder.max_capacity must not be negative, got %d", c.Encoder.MaxCapacity)
	}
	if c.Encoder.MaxDepth < 0 {
		return fmt.Errorf("encoder.max_depth must not be negative, got %d", c.Encoder.MaxDepth)
	}
	if c.Output.Compress && !c.Output.Frame {
		return fmt.Errorf("output.compress requires output.frame")
	}
	if _, err := c.Log.ZapLevel(); err != nil {
		return err
	}
	return nil
}

func (l LogConfig) ZapLevel() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return lvl, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Logger builds a zap logger for the configured level. Logs go to stderr so
// encoded output on stdout stays clean.
func (l LogConfig) Logger() (*zap.Logger, error) {
	lvl, err := l.ZapLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func (e EncoderConfig) Options(log *zap.Logger) accpack.Options {
	return accpack.Options{
		BaseSize:    e.BaseSize,
		MaxCapacity: e.MaxCapacity,
		MaxDepth:    e.MaxDepth,
		Logger:      log,
	}
}
