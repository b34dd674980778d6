// Package config holds the parameters of a group key agreement run.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// MinCommitmentBits is the minimum entropy of a commitment opening value.
	MinCommitmentBits = 128

	DefaultCommitmentBits = 256
	DefaultTimeout        = 30 * time.Second
	DefaultLogLevel       = "info"
)

// Config is the set of parameters of a run.
type Config struct {
	// Timeout bounds a whole run. A party whose broadcast has not arrived when it expires is
	// considered missing.
	Timeout time.Duration
	// Workers is the size of the worker pool used by each party. 0 disables the pool.
	Workers int
	// CommitmentBits is the bit length of the random commitment opening values.
	CommitmentBits int
	// LogLevel is a zerolog level name.
	LogLevel string
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Timeout:        DefaultTimeout,
		Workers:        0,
		CommitmentBits: DefaultCommitmentBits,
		LogLevel:       DefaultLogLevel,
	}
}

// New reads the configuration from a viper object. Keys that are not set keep their default value.
//
//	timeout: 30s
//	workers: 4
//	commitment:
//	  bits: 256
//	log:
//	  level: info
func New(vip *viper.Viper) (Config, error) {
	c := Default()
	if vip.IsSet("timeout") {
		c.Timeout = vip.GetDuration("timeout")
	}
	if vip.IsSet("workers") {
		c.Workers = vip.GetInt("workers")
	}
	if vip.IsSet("commitment.bits") {
		c.CommitmentBits = vip.GetInt("commitment.bits")
	}
	if vip.IsSet("log.level") {
		c.LogLevel = vip.GetString("log.level")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads the configuration file at path. The format is deduced from the extension.
func Load(path string) (Config, error) {
	vip := viper.New()
	vip.SetConfigFile(path)
	if err := vip.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return New(vip)
}

// Validate checks that the configuration can be used for a run.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if c.CommitmentBits < MinCommitmentBits {
		return fmt.Errorf("config: commitment bits must be at least %d, got %d", MinCommitmentBits, c.CommitmentBits)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Logger returns a logger writing to w at the configured level. A nil w writes to stderr.
func (c Config) Logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
