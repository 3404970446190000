package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type logrusAdapter struct {
	entry *logrus.Entry
}

// newLogger builds a logger from cfg. A nil out means stderr.
func newLogger(cfg Config, out io.Writer) (*logrusAdapter, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	l := logrus.New()
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		pattern, layout := cfg.Pattern, cfg.Time
		if pattern == "" {
			pattern = DefaultPattern
		}
		if layout == "" {
			layout = DefaultTime
		}
		l.SetFormatter(&formatter{pattern: pattern, time: layout})
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: DefaultTime})
	default:
		return nil, fmt.Errorf("unsupported log format %q (must be text or json)", cfg.Format)
	}

	if out == nil {
		out = os.Stderr
	}
	w := NewMultiWriter().Add(out)
	if cfg.File.Path != "" {
		w.AddFileAppender(cfg.File)
	}
	l.SetOutput(w)

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

func (l *logrusAdapter) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *logrusAdapter) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *logrusAdapter) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *logrusAdapter) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
