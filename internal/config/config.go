// Package config loads the dissect configuration using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/dissect/internal/log"
	"firestige.xyz/dissect/internal/render"
)

// Config is the content of the `dissect:` root key.
type Config struct {
	Log        log.Config       `mapstructure:"log"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Output     OutputConfig     `mapstructure:"output"`
	Dissectors DissectorsConfig `mapstructure:"dissectors"`
}

// CaptureConfig selects the frames replayed into the engine.
type CaptureConfig struct {
	File    string   `mapstructure:"file"`
	Ports   []uint16 `mapstructure:"ports"` // BPF prefilter, empty keeps everything
	Snaplen int      `mapstructure:"snaplen"`
	Limit   int      `mapstructure:"limit"` // 0 means no limit
}

// EngineConfig holds user selections applied after handoff.
type EngineConfig struct {
	DecodeAs   []DecodeAsConfig `mapstructure:"decode_as"`
	Heuristics map[string]bool  `mapstructure:"heuristics"` // internal name -> enabled
}

// DecodeAsConfig forces a protocol for one value of a dispatch table.
type DecodeAsConfig struct {
	Table     string `mapstructure:"table"`
	Value     uint32 `mapstructure:"value"`
	Dissector string `mapstructure:"dissector"` // protocol filter name
}

type OutputConfig struct {
	Format  string             `mapstructure:"format"` // text, yaml or kafka
	Bytes   bool               `mapstructure:"bytes"`  // append a hex dump per frame
	Kafka   render.KafkaConfig `mapstructure:"kafka"`  // used by format kafka
	Metrics MetricsConfig      `mapstructure:"metrics"`
}

// MetricsConfig exports Prometheus metrics of a run.
type MetricsConfig struct {
	File   string `mapstructure:"file"`   // text exposition written when the run ends
	Listen string `mapstructure:"listen"` // serve /metrics while the run lasts
	Path   string `mapstructure:"path"`
}

type DissectorsConfig struct {
	Enabled []string                  `mapstructure:"enabled"` // empty enables every registered dissector
	Options map[string]map[string]any `mapstructure:"options"`
}

type configRoot struct {
	Dissect Config `mapstructure:"dissect"`
}

// Load reads the YAML file at path. An empty path yields the defaults.
// Env vars override file values: key "dissect.log.level" maps to
// DISSECT_LOG_LEVEL.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Dissect

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dissect.log.level", "info")
	v.SetDefault("dissect.log.pattern", log.DefaultPattern)
	v.SetDefault("dissect.log.time", log.DefaultTime)
	v.SetDefault("dissect.log.console", "stderr")
	v.SetDefault("dissect.log.caller", false)

	v.SetDefault("dissect.capture.file", "")
	v.SetDefault("dissect.capture.snaplen", 65535)
	v.SetDefault("dissect.capture.limit", 0)

	v.SetDefault("dissect.output.format", "text")
	v.SetDefault("dissect.output.bytes", false)
	v.SetDefault("dissect.output.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults checks cross-field rules and fills runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	if err := cfg.Log.Validate(); err != nil {
		return err
	}

	if cfg.Capture.Snaplen <= 0 {
		cfg.Capture.Snaplen = 65535
	}
	if cfg.Capture.Limit < 0 {
		return fmt.Errorf("invalid capture.limit: %d", cfg.Capture.Limit)
	}
	if len(cfg.Capture.Ports) > 64 {
		return fmt.Errorf("capture.ports holds %d ports, at most 64 allowed", len(cfg.Capture.Ports))
	}

	switch cfg.Output.Format {
	case "":
		cfg.Output.Format = render.FormatText
	case render.FormatText, render.FormatYAML:
	case render.FormatKafka:
		if err := cfg.Output.Kafka.Validate(); err != nil {
			return fmt.Errorf("invalid output.kafka: %w", err)
		}
	default:
		return fmt.Errorf("invalid output.format: %s (must be text/yaml/kafka)", cfg.Output.Format)
	}
	if cfg.Output.Metrics.Path == "" {
		cfg.Output.Metrics.Path = "/metrics"
	}

	for i, d := range cfg.Engine.DecodeAs {
		if d.Table == "" || d.Dissector == "" {
			return fmt.Errorf("engine.decode_as[%d]: table and dissector are required", i)
		}
	}
	if cfg.Engine.Heuristics == nil {
		cfg.Engine.Heuristics = map[string]bool{}
	}
	if cfg.Dissectors.Options == nil {
		cfg.Dissectors.Options = map[string]map[string]any{}
	}

	seen := make(map[string]bool, len(cfg.Dissectors.Enabled))
	for _, name := range cfg.Dissectors.Enabled {
		if seen[name] {
			return fmt.Errorf("dissectors.enabled lists %q twice", name)
		}
		seen[name] = true
	}
	return nil
}
