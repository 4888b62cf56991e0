package log

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config selects level, line layout and where log lines go.
type Config struct {
	Level   string           `mapstructure:"level"`
	Pattern string           `mapstructure:"pattern"`
	Time    string           `mapstructure:"time"`
	Console string           `mapstructure:"console"` // stderr, stdout or none
	File    *FileAppenderOpt `mapstructure:"file"`
	Caller  bool             `mapstructure:"caller"`
}

const (
	DefaultPattern = "%time [%level] %field %msg\n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

// DefaultConfig logs info and above to stderr.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Pattern: DefaultPattern,
		Time:    DefaultTime,
		Console: "stderr",
	}
}

// Validate fills empty values with defaults and rejects unknown settings.
func (c *Config) Validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("log level %q: %w", c.Level, err)
	}
	if c.Pattern == "" {
		c.Pattern = DefaultPattern
	}
	if !strings.HasSuffix(c.Pattern, "\n") {
		c.Pattern += "\n"
	}
	if c.Time == "" {
		c.Time = DefaultTime
	}
	switch c.Console {
	case "":
		c.Console = "stderr"
	case "stderr", "stdout", "none":
	default:
		return fmt.Errorf("log console %q: must be stderr, stdout or none", c.Console)
	}
	if c.File != nil && c.File.Filename == "" {
		return fmt.Errorf("log file appender requires filename")
	}
	return nil
}
