package sip

import (
	gosiplog "github.com/ghettovoice/gosip/log"
	"github.com/sirupsen/logrus"
)

// loggerAdapter lets the gosip parser log through the process logger.
type loggerAdapter struct {
	entry  *logrus.Entry
	prefix string
}

func newLoggerAdapter(entry *logrus.Entry) *loggerAdapter {
	return &loggerAdapter{entry: entry}
}

func (la *loggerAdapter) Fields() gosiplog.Fields {
	return gosiplog.Fields(la.entry.Data)
}

func (la *loggerAdapter) WithFields(fields map[string]interface{}) gosiplog.Logger {
	return &loggerAdapter{entry: la.entry.WithFields(fields), prefix: la.prefix}
}

func (la *loggerAdapter) Prefix() string {
	return la.prefix
}

func (la *loggerAdapter) WithPrefix(prefix string) gosiplog.Logger {
	return &loggerAdapter{entry: la.entry.WithField("prefix", prefix), prefix: prefix}
}

func (la *loggerAdapter) Print(args ...interface{}) {
	la.entry.Print(args...)
}

func (la *loggerAdapter) Printf(format string, args ...interface{}) {
	la.entry.Printf(format, args...)
}

func (la *loggerAdapter) Trace(args ...interface{}) {
	la.entry.Trace(args...)
}

func (la *loggerAdapter) Tracef(format string, args ...interface{}) {
	la.entry.Tracef(format, args...)
}

func (la *loggerAdapter) Debug(args ...interface{}) {
	la.entry.Debug(args...)
}

func (la *loggerAdapter) Debugf(format string, args ...interface{}) {
	la.entry.Debugf(format, args...)
}

func (la *loggerAdapter) Info(args ...interface{}) {
	la.entry.Info(args...)
}

func (la *loggerAdapter) Infof(format string, args ...interface{}) {
	la.entry.Infof(format, args...)
}

func (la *loggerAdapter) Warn(args ...interface{}) {
	la.entry.Warn(args...)
}

func (la *loggerAdapter) Warnf(format string, args ...interface{}) {
	la.entry.Warnf(format, args...)
}

func (la *loggerAdapter) Error(args ...interface{}) {
	la.entry.Error(args...)
}

func (la *loggerAdapter) Errorf(format string, args ...interface{}) {
	la.entry.Errorf(format, args...)
}

// Fatal and Panic are downgraded: a malformed packet must not end the
// process.
func (la *loggerAdapter) Fatal(args ...interface{}) {
	la.entry.Error(args...)
}

func (la *loggerAdapter) Fatalf(format string, args ...interface{}) {
	la.entry.Errorf(format, args...)
}

func (la *loggerAdapter) Panic(args ...interface{}) {
	la.entry.Error(args...)
}

func (la *loggerAdapter) Panicf(format string, args ...interface{}) {
	la.entry.Errorf(format, args...)
}

// SetLevel is ignored; the level belongs to the process logger.
func (la *loggerAdapter) SetLevel(level uint32) {}
