package logging

import (
	"io"
	"strings"

	"github.com/kataras/golog"
)

// Logger is the leveled printf-style logger used across labkit
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// GologLogger implements Logger on top of kataras/golog
type GologLogger struct {
	logger *golog.Logger
	level  string
}

var _ Logger = (*GologLogger)(nil)

// New creates a logger writing to out at the given level
// (debug, info, warn, error, disable). Unknown levels fall back to info.
func New(out io.Writer, level string) *GologLogger {
	l := golog.New()
	l.SetOutput(out)
	l.SetPrefix("[labkit] ")
	l.SetTimeFormat("15:04:05")

	g := &GologLogger{logger: l}
	g.SetLevel(level)
	return g
}

// SetLevel changes the minimum level
func (l *GologLogger) SetLevel(level string) {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug", "info", "warn", "error", "disable":
	case "none", "off":
		level = "disable"
	default:
		level = "info"
	}
	l.level = level
	l.logger.SetLevel(level)
}

// Level returns the effective level name
func (l *GologLogger) Level() string {
	return l.level
}

// Debug logs debug messages
func (l *GologLogger) Debug(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

// Info logs informational messages
func (l *GologLogger) Info(format string, v ...any) {
	l.logger.Infof(format, v...)
}

// Warn logs warning messages
func (l *GologLogger) Warn(format string, v ...any) {
	l.logger.Warnf(format, v...)
}

// Error logs error messages
func (l *GologLogger) Error(format string, v ...any) {
	l.logger.Errorf(format, v...)
}

// NoOp discards everything
type NoOp struct{}

func (NoOp) Debug(format string, v ...any) {}
func (NoOp) Info(format string, v ...any)  {}
func (NoOp) Warn(format string, v ...any)  {}
func (NoOp) Error(format string, v ...any) {}

// OrNoOp returns l, or a NoOp logger when l is nil
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOp{}
	}
	return l
}
