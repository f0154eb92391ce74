package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Log is usable before InitLogger runs so that tests and early startup code can log.
var Log = logrus.New()

// InitLogger configures the global logger. When logFile is set, entries are written
// both to stdout and to that file.
func InitLogger(level, logFile string) {
	Log = logrus.New()

	// Output to stdout instead of the default stderr
	Log.Out = os.Stdout

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				Log.Out = io.MultiWriter(os.Stdout, f)
			} else {
				Log.WithError(err).Warn("Cannot open log file, logging to stdout only")
			}
		}
	}

	// Set JSON formatter for structured logging
	Log.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
}
