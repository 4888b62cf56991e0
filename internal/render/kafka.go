package render

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"gopkg.in/yaml.v3"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/engine"
	"firestige.xyz/dissect/internal/log"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// KafkaConfig selects the topic frames are published to.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`       // required
	Topic        string        `mapstructure:"topic"`         // required
	BatchSize    int           `mapstructure:"batch_size"`    // optional, default 100
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // optional, default 100ms
	Compression  string        `mapstructure:"compression"`   // optional: none|gzip|snappy|lz4, default snappy
	MaxAttempts  int           `mapstructure:"max_attempts"`  // optional, default 3
}

// Validate checks required keys and fills defaults.
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required: %w", core.ErrConfigInvalid)
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required: %w", core.ErrConfigInvalid)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Compression == "" {
		c.Compression = defaultCompression
	}
	_, err := codec(c.Compression)
	return err
}

func codec(name string) (kafka.CompressionCodec, error) {
	switch name {
	case "none":
		return nil, nil
	case "gzip":
		return compress.Gzip.Codec(), nil
	case "snappy":
		return compress.Snappy.Codec(), nil
	case "lz4":
		return compress.Lz4.Codec(), nil
	default:
		return nil, fmt.Errorf("invalid kafka compression %q: %w", name, core.ErrConfigInvalid)
	}
}

// messageWriter is the part of kafka.Writer the renderer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaRenderer struct {
	ctx    context.Context
	writer messageWriter
	opts   Options
	sent   int
}

// NewKafka publishes every frame as a YAML document. Frames are keyed by
// session so one run stays ordered within a partition.
func NewKafka(ctx context.Context, cfg KafkaConfig, opts Options) (Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cc, err := codec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:          cfg.Brokers,
		Topic:            cfg.Topic,
		Balancer:         &kafka.Hash{},
		BatchSize:        cfg.BatchSize,
		BatchTimeout:     cfg.BatchTimeout,
		MaxAttempts:      cfg.MaxAttempts,
		CompressionCodec: cc,
	})
	log.GetLogger().WithFields(map[string]any{
		"brokers":     cfg.Brokers,
		"topic":       cfg.Topic,
		"compression": cfg.Compression,
	}).Info("kafka output started")
	return newKafkaRenderer(ctx, w, opts), nil
}

func newKafkaRenderer(ctx context.Context, w messageWriter, opts Options) *kafkaRenderer {
	return &kafkaRenderer{ctx: ctx, writer: w, opts: opts}
}

func (r *kafkaRenderer) Render(res *engine.Result) error {
	value, err := yaml.Marshal(newFrameDoc(res, r.opts))
	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", res.Number, err)
	}
	msg := kafka.Message{
		Key:   []byte(r.opts.Session),
		Value: value,
		Headers: []kafka.Header{
			{Key: "frame", Value: []byte(fmt.Sprint(res.Number))},
		},
	}
	if err := r.writer.WriteMessages(r.ctx, msg); err != nil {
		return fmt.Errorf("failed to publish frame %d: %w", res.Number, err)
	}
	r.sent++
	return nil
}

func (r *kafkaRenderer) Close() error {
	err := r.writer.Close()
	log.GetLogger().WithField("frames", r.sent).Info("kafka output stopped")
	return err
}
