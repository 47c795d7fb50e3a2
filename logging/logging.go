// Package logging - Logger construction shared by the binaries.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config selects the level and output format.
type Config struct {
	// Level is a logrus level name such as debug, info or warn.
	Level string `json:"level" yaml:"level"`
	// Format is text or json.
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig logs info and above as text.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text"}
}

// Validate checks the level and format.
func (c Config) Validate() error {
	if c.Level != "" {
		if _, err := logrus.ParseLevel(c.Level); err != nil {
			return errors.Wrap(err, "invalid log level")
		}
	}
	switch c.Format {
	case "", "text", "json":
		return nil
	default:
		return errors.Errorf("unknown log format %q", c.Format)
	}
}

// New creates a logger writing to stderr.
//
// Arguments:
//   - cfg: The level and format.
//
// Returns:
//   - *logrus.Logger: The logger.
//   - error: An error if the level or format is unknown.
func New(cfg Config) (*logrus.Logger, error) {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput is New writing to w.
func NewWithOutput(cfg Config, w io.Writer) (*logrus.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(w)
	if cfg.Level != "" {
		level, _ := logrus.ParseLevel(cfg.Level)
		log.SetLevel(level)
	}
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
