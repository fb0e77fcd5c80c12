/**
 * @description
 * Structured logger for the forensics engine, built on logrus so multi-component
 * log lines (chain client, decoder, detectors, stream controller) can be
 * correlated by field instead of parsed from free text.
 *
 * @dependencies
 * - github.com/sirupsen/logrus
 */

package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel adjusts the minimum logged level ("debug", "info", "warn", "error").
func SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(lvl)
	}
}

// Fields is a shorthand for structured log attributes.
type Fields = logrus.Fields

// Entry is a logger scoped to a fixed set of fields (component, market, tx_hash, ...).
type Entry struct {
	entry *logrus.Entry
}

// With returns an Entry carrying the given fields on every subsequent call.
func With(fields Fields) *Entry {
	return &Entry{entry: base.WithFields(fields)}
}

// Component is shorthand for With(Fields{"component": name}).
func Component(name string) *Entry {
	return With(Fields{"component": name})
}

func (e *Entry) Debug(args ...interface{}) { e.entry.Debug(args...) }
func (e *Entry) Info(args ...interface{})  { e.entry.Info(args...) }
func (e *Entry) Infof(format string, args ...interface{}) { e.entry.Infof(format, args...) }
func (e *Entry) Warn(args ...interface{})  { e.entry.Warn(args...) }
func (e *Entry) Warnf(format string, args ...interface{}) { e.entry.Warnf(format, args...) }
func (e *Entry) Error(args ...interface{}) { e.entry.Error(args...) }
func (e *Entry) Errorf(format string, args ...interface{}) { e.entry.Errorf(format, args...) }
func (e *Entry) Fatal(args ...interface{}) { e.entry.Fatal(args...) }

// With returns a child entry with additional fields merged in.
func (e *Entry) With(fields Fields) *Entry {
	return &Entry{entry: e.entry.WithFields(fields)}
}

// Info logs a message on the base logger, with no component scoping.
func Info(args ...interface{}) { base.Info(args...) }

// Error logs a message on the base logger, with no component scoping.
func Error(args ...interface{}) { base.Error(args...) }

// Fatal logs a message on the base logger and exits.
func Fatal(args ...interface{}) { base.Fatal(args...) }
