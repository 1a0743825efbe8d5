package logx

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

type (
	// Fields are structured key/value pairs attached to an entry.
	Fields = logrus.Fields
	// Entry is a log entry carrying fields.
	Entry = logrus.Entry
	// Level is a logging severity.
	Level = logrus.Level
)

const (
	LevelTrace = logrus.TraceLevel
	LevelDebug = logrus.DebugLevel
	LevelInfo  = logrus.InfoLevel
	LevelWarn  = logrus.WarnLevel
	LevelError = logrus.ErrorLevel
	LevelFatal = logrus.FatalLevel
)

// ParseLevel parses a level name, falling back to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return LevelWarn
	}
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return LevelInfo
	}
	return l
}

// Logger is a configured structured logger.
type Logger struct {
	*logrus.Logger
	config *Config
}

// NewLogger builds a logger from config. A nil config uses DefaultConfig.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	l := logrus.New()
	l.SetLevel(config.Level)
	l.SetFormatter(config.formatter())
	l.SetReportCaller(config.EnableCaller)
	if config.Output != nil {
		l.SetOutput(config.Output)
	}
	return &Logger{Logger: l, config: config}
}

// Config returns the configuration the logger was built with.
func (l *Logger) Config() *Config {
	return l.config
}

// SetOutput redirects the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.Logger.SetOutput(w)
	l.config.Output = w
}
