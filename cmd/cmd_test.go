package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/dissect/internal/capture"
	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/engine"
	"firestige.xyz/dissect/internal/plugin"
	"firestige.xyz/dissect/internal/session"
)

// MockRunner implements runner
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) ID() string {
	return m.Called().String(0)
}

func (m *MockRunner) Run(ctx context.Context, w io.Writer) (*capture.Stats, error) {
	args := m.Called(ctx, w)
	stats, _ := args.Get(0).(*capture.Stats)
	return stats, args.Error(1)
}

func TestRunRun_Success(t *testing.T) {
	r := new(MockRunner)
	var out, summary bytes.Buffer
	r.On("Run", mock.Anything, &out).Return(&capture.Stats{Read: 5, Filtered: 2, Delivered: 3}, nil)
	r.On("ID").Return("abc")

	err := runRun(context.Background(), r, &out, &summary)

	assert.NoError(t, err)
	assert.Equal(t, "5 frames read, 2 filtered, 3 dissected (session abc)\n", summary.String())
	r.AssertExpectations(t)
}

func TestRunRun_Failure(t *testing.T) {
	r := new(MockRunner)
	r.On("Run", mock.Anything, mock.Anything).Return(nil, errors.New("bad magic"))

	var summary bytes.Buffer
	err := runRun(context.Background(), r, io.Discard, &summary)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
	assert.Empty(t, summary.String())
	r.AssertNotCalled(t, "ID")
}

func builtins(t *testing.T) *session.Session {
	s, err := session.New(config.Default(), nil)
	require.NoError(t, err)
	return s
}

func TestRunFields_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runFields(builtins(t).Engine(), "text", &buf))

	out := buf.String()
	assert.Contains(t, out, "P\tSession Initiation Protocol\tsip\n")
	assert.Contains(t, out, "F\tCall-ID\tsip.Call-ID\tFT_STRING\tsip\tBASE_NONE\t0x0\t\n")
	assert.Contains(t, out, "F\tVersion\trtp.version\tFT_UINT8\trtp\tBASE_DEC\t0xc0\t\n")
}

func TestRunFields_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runFields(builtins(t).Engine(), "yaml", &buf))

	var doc struct {
		Protocols []engine.ProtocolInfo `yaml:"protocols"`
		Fields    []engine.FieldInfo    `yaml:"fields"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Len(t, doc.Protocols, 3)
	assert.NotEmpty(t, doc.Fields)
}

func TestRunFields_UnknownFormat(t *testing.T) {
	err := runFields(builtins(t).Engine(), "json", io.Discard)
	assert.Error(t, err)
}

func TestRunList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runList(plugin.ListDissectors(), builtins(t).Engine().Registrations(), &buf))

	lines := strings.Split(buf.String(), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "DISSECTOR"))
	assert.True(t, strings.HasPrefix(lines[1], "rtp"))
	assert.True(t, strings.HasPrefix(lines[2], "sip"))
	assert.True(t, strings.HasPrefix(lines[3], "testproto"))
	assert.Contains(t, buf.String(), "sip_udp (SIP over UDP, enabled=true)")
}

func TestRunValidate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runValidate(&buf))
	assert.Equal(t, "VALID: 3 dissector(s), 0 decode-as rule(s), 0 heuristic override(s)\n", buf.String())
}

func TestApplyRunFlags(t *testing.T) {
	cfg := config.Default()
	assert.Error(t, applyRunFlags(runCmd, cfg))

	require.NoError(t, runCmd.Flags().Set("read", "calls.pcap"))
	require.NoError(t, runCmd.Flags().Set("format", "yaml"))
	require.NoError(t, runCmd.Flags().Set("port", "5060,5080"))
	require.NoError(t, applyRunFlags(runCmd, cfg))

	assert.Equal(t, "calls.pcap", cfg.Capture.File)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, []uint16{5060, 5080}, cfg.Capture.Ports)
}
