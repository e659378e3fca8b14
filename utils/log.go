package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
)

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a flag/env value to a level. Unknown names fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "critical":
		return CRITICAL
	default:
		return INFO
	}
}

// sink is shared by a logger and everything derived from it with Named.
type sink struct {
	mu   sync.Mutex
	file *os.File
	out  []io.Writer
}

type Logger struct {
	sink     *sink
	levelMu  sync.RWMutex
	minLevel LogLevel
	prefix   string
}

func NewFileLogger(filePath string, minLevel LogLevel, alsoStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	s := &sink{file: f, out: []io.Writer{f}}
	if alsoStdout {
		s.out = append(s.out, os.Stdout)
	}
	return &Logger{sink: s, minLevel: minLevel}, nil
}

// NewLogger writes to w only. Used by tests and when no log file is wanted.
func NewLogger(w io.Writer, minLevel LogLevel) *Logger {
	return &Logger{
		sink:     &sink{out: []io.Writer{w}},
		minLevel: minLevel,
	}
}

// Named returns a logger sharing the same sinks whose lines are tagged with name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		sink:     l.sink,
		minLevel: l.level(),
		prefix:   l.prefix + "[" + name + "] ",
	}
}

func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file != nil {
		return l.sink.file.Close()
	}
	return nil
}

func (l *Logger) SetMinLevel(level LogLevel) {
	l.levelMu.Lock()
	defer l.levelMu.Unlock()
	l.minLevel = level
}

func (l *Logger) level() LogLevel {
	l.levelMu.RLock()
	defer l.levelMu.RUnlock()
	return l.minLevel
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.level()
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if level < l.level() {
		return
	}

	ts := time.Now().Format(time.RFC3339Nano)
	line := fmt.Sprintf("%s [%s] %s%s\n", ts, level.String(), l.prefix, fmt.Sprintf(msg, args...))

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	for _, w := range l.sink.out {
		_, _ = io.WriteString(w, line)
	}
	if l.sink.file != nil {
		_ = l.sink.file.Sync()
	}
}

func (l *Logger) Trace(msg string, args ...any)    { l.log(TRACE, msg, args...) }
func (l *Logger) Debug(msg string, args ...any)    { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)     { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)     { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any)    { l.log(ERROR, msg, args...) }
func (l *Logger) Critical(msg string, args ...any) { l.log(CRITICAL, msg, args...) }
