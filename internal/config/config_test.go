package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dissect.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
dissect:
  log:
    level: debug
  capture:
    file: /tmp/call.pcap
    ports: [5060, 5004]
  engine:
    decode_as:
      - table: udp.port
        value: 4000
        dissector: rtp
    heuristics:
      rtp_udp: false
  output:
    format: yaml
    bytes: true
  dissectors:
    enabled: [testproto, rtp]
    options:
      sip:
        session_ttl: 10m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/call.pcap", cfg.Capture.File)
	assert.Equal(t, []uint16{5060, 5004}, cfg.Capture.Ports)
	assert.Equal(t, 65535, cfg.Capture.Snaplen)
	require.Len(t, cfg.Engine.DecodeAs, 1)
	assert.Equal(t, DecodeAsConfig{Table: "udp.port", Value: 4000, Dissector: "rtp"}, cfg.Engine.DecodeAs[0])
	assert.Equal(t, map[string]bool{"rtp_udp": false}, cfg.Engine.Heuristics)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.True(t, cfg.Output.Bytes)
	assert.Equal(t, []string{"testproto", "rtp"}, cfg.Dissectors.Enabled)
	assert.Equal(t, "10m", cfg.Dissectors.Options["sip"]["session_ttl"])
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stderr", cfg.Log.Console)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, 65535, cfg.Capture.Snaplen)
	assert.Empty(t, cfg.Dissectors.Enabled)
	assert.NotNil(t, cfg.Engine.Heuristics)
	assert.NotNil(t, cfg.Dissectors.Options)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
dissect:
  log:
    level: info
`)
	t.Setenv("DISSECT_LOG_LEVEL", "warn")
	t.Setenv("DISSECT_OUTPUT_FORMAT", "yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "yaml", cfg.Output.Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "dissect:\n  log:\n    level: loud\n"},
		{"output format", "dissect:\n  output:\n    format: json\n"},
		{"decode as", "dissect:\n  engine:\n    decode_as:\n      - table: udp.port\n        value: 1\n"},
		{"duplicate dissector", "dissect:\n  dissectors:\n    enabled: [rtp, rtp]\n"},
		{"negative limit", "dissect:\n  capture:\n    limit: -1\n"},
		{"kafka without topic", "dissect:\n  output:\n    format: kafka\n    kafka:\n      brokers: [localhost:9092]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_KafkaAndMetrics(t *testing.T) {
	path := writeConfig(t, `
dissect:
  output:
    format: kafka
    kafka:
      brokers: [kafka-1:9092, kafka-2:9092]
      topic: frames
      batch_timeout: 250ms
      compression: lz4
    metrics:
      file: /var/lib/node_exporter/dissect.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	k := cfg.Output.Kafka
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, k.Brokers)
	assert.Equal(t, "frames", k.Topic)
	assert.Equal(t, 250*time.Millisecond, k.BatchTimeout)
	assert.Equal(t, 100, k.BatchSize)
	assert.Equal(t, "lz4", k.Compression)
	assert.Equal(t, "/var/lib/node_exporter/dissect.prom", cfg.Output.Metrics.File)
	assert.Equal(t, "/metrics", cfg.Output.Metrics.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
