package console

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// ConsoleLogger writes human readable log lines through charmbracelet/log
type ConsoleLogger struct {
	logger *log.Logger
}

// ConsoleLoggerParams configures a ConsoleLogger
type ConsoleLoggerParams struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level  string
	Prefix string
	// Output defaults to stderr
	Output io.Writer
}

// NewConsoleLogger creates a console backend
func NewConsoleLogger(params ConsoleLoggerParams) *ConsoleLogger {
	level, err := log.ParseLevel(params.Level)
	if err != nil {
		level = log.InfoLevel
	}

	out := params.Output
	if out == nil {
		out = os.Stderr
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          params.Prefix,
	})

	return &ConsoleLogger{
		logger: logger,
	}
}

func (c *ConsoleLogger) Debug(message string, keyvals ...any) {
	c.logger.Debug(message, keyvals...)
}

func (c *ConsoleLogger) Info(message string, keyvals ...any) {
	c.logger.Info(message, keyvals...)
}

func (c *ConsoleLogger) Warn(message string, keyvals ...any) {
	c.logger.Warn(message, keyvals...)
}

func (c *ConsoleLogger) Error(message string, keyvals ...any) {
	c.logger.Error(message, keyvals...)
}

func (c *ConsoleLogger) Fatal(message string, keyvals ...any) {
	c.logger.Fatal(message, keyvals...)
}
