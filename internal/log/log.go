// Package log wraps logrus behind a small Logger interface shared by every
// package. Diagnostics go to stderr (and optionally a rotated file) so that
// stdout stays free for status lines.
package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var (
	mu     sync.RWMutex
	logger Logger
)

// GetLogger returns the process logger. Before Init it is a stock logrus
// logger at info level.
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
		logger = &logrusAdapter{entry: logrus.NewEntry(logrus.New())}
	}
	return logger
}

// Init replaces the process logger according to cfg.
func Init(cfg Config) error {
	l, err := newLogger(cfg, nil)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}
