// Package common provides the gateway's logging infrastructure and Echo
// middleware: a logrus logger with intelligent stdout/stderr output
// routing, and the conditional-header and standard-response-header
// middleware every handler relies on.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes error-level log lines to stderr and everything
// else to stdout, so container log collectors can treat the two streams
// differently without the gateway parsing its own log level twice.
type OutputSplitter struct{}

func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide default logger, used before a configured
// instance is available (e.g. while parsing flags).
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

// LoggerConfig mirrors the gateway's log_format/log_level/debug settings.
type LoggerConfig struct {
	Level  string // "Debug", "Info", "Warn", "Error"
	Format string // "Compact" or "Json"
	Debug  bool
}

// NewLogger builds a logrus.Logger from the gateway's configuration,
// routing output through OutputSplitter.
func NewLogger(cfg LoggerConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&OutputSplitter{})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if cfg.Debug && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "Json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
