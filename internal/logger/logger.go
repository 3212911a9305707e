package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var root *logrus.Logger

// Init configures the process-wide logger. JSON output is used outside of
// development or when format is "json".
func Init(level, format string, development bool) *logrus.Logger {
	log := logrus.New()

	if level == "" {
		level = "info"
		if development {
			level = "debug"
		}
	}
	if lvl, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", level).Warn("Invalid log level, using info")
	}

	if !development || strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}
	log.SetOutput(os.Stdout)

	root = log
	return log
}

// Get returns the process logger, initializing a default one on first use.
func Get() *logrus.Logger {
	if root == nil {
		return Init("info", "json", false)
	}
	return root
}

// WithComponent tags log lines with the emitting component.
func WithComponent(name string) *logrus.Entry {
	return Get().WithField("component", name)
}

// Discard returns an entry that drops everything. Tests use it to keep
// output quiet.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
