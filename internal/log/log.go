// Package log is the logging facade used across the module. It wraps logrus
// behind a small interface so packages never import logrus directly.
package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...any)
	Printf(format string, args ...any)

	Trace(args ...any)
	Tracef(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Info(args ...any)
	Infof(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	Panic(args ...any)
	Panicf(format string, args ...any)

	WithField(field string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger Logger
)

// GetLogger returns the process logger. Before Init it logs info and above
// to stderr.
func GetLogger() Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		l, _ := newLogger(DefaultConfig())
		logger = l
	}
	return logger
}

// Init replaces the process logger.
func Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// Entry exposes the logrus entry behind l for libraries that take one.
// Loggers from another implementation get a fresh entry on the standard
// logrus logger.
func Entry(l Logger) *logrus.Entry {
	if a, ok := l.(*entryLogger); ok {
		return a.entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
