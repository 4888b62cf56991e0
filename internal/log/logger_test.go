package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, DefaultPattern, cfg.Pattern)
	assert.Equal(t, DefaultTime, cfg.Time)
	assert.Equal(t, "stderr", cfg.Console)

	cfg = Config{Pattern: "%msg"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "%msg\n", cfg.Pattern)

	cfg = Config{Level: "loud"}
	assert.Error(t, cfg.Validate())

	cfg = Config{Console: "syslog"}
	assert.Error(t, cfg.Validate())

	cfg = Config{File: &FileAppenderOpt{}}
	assert.Error(t, cfg.Validate())
}

func TestFormatter_Pattern(t *testing.T) {
	f := &formatter{pattern: "%time [%level] %field %msg\n", time: "15:04:05"}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "frame malformed",
		Data:    logrus.Fields{"proto": "rtp", "frame": 7},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "03:04:05 [warning] frame=7,proto=rtp frame malformed\n", string(out))
}

func TestMultiWriter_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	w := NewMultiWriter().Add(&a).Add(&b)

	n, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "line\n", a.String())
	assert.Equal(t, "line\n", b.String())
	assert.Equal(t, 2, w.Len())
}

func TestInit_FileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dissect.log")
	require.NoError(t, Init(Config{
		Level:   "debug",
		Pattern: "%level %field %msg",
		Console: "none",
		File:    &FileAppenderOpt{Filename: path, MaxSize: 1},
	}))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	l := GetLogger()
	assert.True(t, l.IsDebugEnabled())
	assert.False(t, l.IsTraceEnabled())
	l.WithField("plugin", "testproto").WithError(errors.New("boom")).Debug("registered")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug error=boom,plugin=testproto registered\n", string(data))
}

func TestGetLogger_Default(t *testing.T) {
	l := GetLogger()
	require.NotNil(t, l)
	assert.True(t, l.IsInfoEnabled())
	assert.NotNil(t, Entry(l))
}

func TestEntryLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetLevel(logrus.WarnLevel)
	base.SetFormatter(&formatter{pattern: "%level %field %msg\n"})
	l := &entryLogger{entry: logrus.NewEntry(base)}

	l.Infof("frame %d", 1)
	l.Warnf("frame %d", 2)
	tagged := l.WithFields(map[string]any{"proto": "sip"})
	tagged.Error("bad header")
	l.Error("untagged")
	assert.Equal(t, "warning  frame 2\nerror proto=sip bad header\nerror  untagged\n", buf.String())

	assert.False(t, l.IsInfoEnabled())
	assert.PanicsWithValue(t, "boom", func() {
		defer func() {
			if r := recover(); r != nil {
				panic(r.(*logrus.Entry).Message)
			}
		}()
		l.Panic("boom")
	})
}
