package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level is a log severity threshold
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// ParseLevel maps a level name to a Level, defaulting to INFO
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger wraps the standard library logger with structured logging methods
type Logger struct {
	logger *log.Logger
	level  Level
}

// New creates a new Logger writing to stdout at INFO level
func New() *Logger {
	return NewWithWriter(os.Stdout, LevelInfo)
}

// NewWithWriter creates a Logger writing to w, dropping messages below level
func NewWithWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

// Discard returns a logger that writes nothing
func Discard() *Logger {
	return NewWithWriter(io.Discard, LevelError+1)
}

// Debug logs a debug message with structured key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(LevelDebug, msg, keysAndValues...)
}

// Info logs an informational message with structured key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(LevelInfo, msg, keysAndValues...)
}

// Warn logs a warning with structured key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(LevelWarn, msg, keysAndValues...)
}

// Error logs an error message with structured key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(LevelError, msg, keysAndValues...)
}

// log formats and outputs a log message with key-value pairs
// keysAndValues should be pairs like: "key1", value1, "key2", value2
func (l *Logger) log(level Level, msg string, keysAndValues ...interface{}) {
	if l == nil || level < l.level {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", levelNames[level], msg)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}

	l.logger.Println(b.String())
}
