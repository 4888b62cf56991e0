package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// entryLogger implements Logger on a logrus entry. Every With* call returns
// a new entryLogger, so loggers handed to dissectors never share fields.
type entryLogger struct {
	entry *logrus.Entry
}

func newLogger(cfg Config) (*entryLogger, error) {
	l := logrus.New()
	l.SetFormatter(&formatter{
		pattern: cfg.Pattern,
		time:    cfg.Time,
	})
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetReportCaller(cfg.Caller)

	out := NewMultiWriter()
	switch cfg.Console {
	case "stdout":
		out.Add(os.Stdout)
	case "none":
	default:
		out.Add(os.Stderr)
	}
	if cfg.File != nil {
		out.AddFileAppender(*cfg.File)
	}
	if out.Len() == 0 {
		l.SetOutput(io.Discard)
	} else {
		l.SetOutput(out)
	}

	return &entryLogger{entry: logrus.NewEntry(l)}, nil
}

func (l *entryLogger) Print(args ...any) { l.entry.Print(args...) }
func (l *entryLogger) Printf(format string, args ...any) {
	l.entry.Printf(format, args...)
}

func (l *entryLogger) Trace(args ...any) { l.entry.Log(logrus.TraceLevel, args...) }
func (l *entryLogger) Debug(args ...any) { l.entry.Log(logrus.DebugLevel, args...) }
func (l *entryLogger) Info(args ...any)  { l.entry.Log(logrus.InfoLevel, args...) }
func (l *entryLogger) Warn(args ...any)  { l.entry.Log(logrus.WarnLevel, args...) }
func (l *entryLogger) Error(args ...any) { l.entry.Log(logrus.ErrorLevel, args...) }

func (l *entryLogger) Tracef(format string, args ...any) { l.entry.Logf(logrus.TraceLevel, format, args...) }
func (l *entryLogger) Debugf(format string, args ...any) { l.entry.Logf(logrus.DebugLevel, format, args...) }
func (l *entryLogger) Infof(format string, args ...any)  { l.entry.Logf(logrus.InfoLevel, format, args...) }
func (l *entryLogger) Warnf(format string, args ...any)  { l.entry.Logf(logrus.WarnLevel, format, args...) }
func (l *entryLogger) Errorf(format string, args ...any) { l.entry.Logf(logrus.ErrorLevel, format, args...) }

// Fatal logs and exits through the logger's exit func.
func (l *entryLogger) Fatal(args ...any)                 { l.entry.Fatal(args...) }
func (l *entryLogger) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }

// Panic logs, then panics with the logrus entry.
func (l *entryLogger) Panic(args ...any)                 { l.entry.Log(logrus.PanicLevel, args...) }
func (l *entryLogger) Panicf(format string, args ...any) { l.entry.Logf(logrus.PanicLevel, format, args...) }

func (l *entryLogger) with(e *logrus.Entry) Logger { return &entryLogger{entry: e} }

func (l *entryLogger) WithField(field string, value any) Logger {
	return l.with(l.entry.WithField(field, value))
}

func (l *entryLogger) WithFields(fields map[string]any) Logger {
	return l.with(l.entry.WithFields(fields))
}

func (l *entryLogger) WithError(err error) Logger { return l.with(l.entry.WithError(err)) }

func (l *entryLogger) enabled(level logrus.Level) bool {
	return l.entry.Logger.IsLevelEnabled(level)
}

func (l *entryLogger) IsTraceEnabled() bool { return l.enabled(logrus.TraceLevel) }
func (l *entryLogger) IsDebugEnabled() bool { return l.enabled(logrus.DebugLevel) }
func (l *entryLogger) IsInfoEnabled() bool  { return l.enabled(logrus.InfoLevel) }
