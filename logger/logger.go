package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset   = "\033[0m"
	ansiRed     = "\033[31m"
	ansiYellow  = "\033[33m"
	ansiBlue    = "\033[34m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

// ParseLevel maps "silent", "error", "warn" and "info" to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "info", "":
		return LogLevelInfo, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// ParseFormat maps "text" and "json" to a LogFormat.
func ParseFormat(s string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(strings.TrimSpace(s))) {
	case LogFormatText, "":
		return LogFormatText, nil
	case LogFormatJSON:
		return LogFormatJSON, nil
	}
	return LogFormatText, fmt.Errorf("unknown log format: %s", s)
}

// Logger is the interface for logging SQL and internal messages
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	WithFields(fields map[string]any) Logger
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SQL(sql string, duration time.Duration, args ...any)
}

// baseLogger contains common logging functionality
type baseLogger struct {
	level  LogLevel
	format LogFormat
	writer io.Writer
	fields map[string]any
	mu     *sync.Mutex
}

func (l *baseLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *baseLogger) SetFormat(format LogFormat) {
	l.format = format
}

func (l *baseLogger) SetOutput(w io.Writer) {
	l.writer = w
}

func (l *baseLogger) clone() *baseLogger {
	newFields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	return &baseLogger{
		level:  l.level,
		format: l.format,
		writer: l.writer,
		fields: newFields,
		mu:     l.mu,
	}
}

// stdLogger is the default implementation of Logger
type stdLogger struct {
	baseLogger
}

// NewStdLogger creates a new standard logger
func NewStdLogger() Logger {
	return &stdLogger{
		baseLogger: baseLogger{
			level:  LogLevelInfo,
			format: LogFormatText,
			writer: os.Stdout,
			fields: make(map[string]any),
			mu:     &sync.Mutex{},
		},
	}
}

// NewNopLogger creates a logger that drops everything.
func NewNopLogger() Logger {
	l := NewStdLogger()
	l.SetLevel(LogLevelSilent)
	l.SetOutput(io.Discard)
	return l
}

func (l *stdLogger) WithFields(fields map[string]any) Logger {
	newLogger := &stdLogger{
		baseLogger: *l.clone(),
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *stdLogger) Info(format string, args ...any) {
	if l.level >= LogLevelInfo {
		l.write(entry{level: "INFO", msg: fmt.Sprintf(format, args...)})
	}
}

func (l *stdLogger) Warn(format string, args ...any) {
	if l.level >= LogLevelWarn {
		l.write(entry{level: "WARN", msg: fmt.Sprintf(format, args...)})
	}
}

func (l *stdLogger) Error(format string, args ...any) {
	if l.level >= LogLevelError {
		l.write(entry{level: "ERROR", msg: fmt.Sprintf(format, args...), color: ansiRed})
	}
}

func (l *stdLogger) SQL(sql string, duration time.Duration, args ...any) {
	if l.level < LogLevelInfo {
		return
	}
	if args == nil {
		args = []any{}
	}
	l.write(entry{
		level: "SQL",
		msg:   fmt.Sprintf("[%v] %s | args: %v", duration, sql, args),
		color: getSQLColor(sql),
		json: map[string]any{
			"sql":         sql,
			"duration":    duration.String(),
			"duration_ms": float64(duration) / float64(time.Millisecond),
			"args":        args,
		},
	})
}

// entry is one log line. In JSON output the json map replaces msg.
type entry struct {
	level string
	msg   string
	color string
	json  map[string]any
}

func (l *stdLogger) write(e entry) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == LogFormatJSON {
		l.writeJSON(now, e)
	} else {
		l.writeText(now, e)
	}
}

func (l *stdLogger) writeJSON(now time.Time, e entry) {
	data := make(map[string]any, len(l.fields)+len(e.json)+3)
	for k, v := range l.fields {
		data[k] = v
	}
	if e.json != nil {
		for k, v := range e.json {
			data[k] = v
		}
	} else {
		data["msg"] = e.msg
	}
	data["time"] = now.Format(time.RFC3339)
	data["level"] = e.level
	json.NewEncoder(l.writer).Encode(data)
}

// writeText prints "[SIMPLEJORM] time LEVEL: msg k=v ..." with fields in
// key order.
func (l *stdLogger) writeText(now time.Time, e entry) {
	msg := e.msg
	if e.color != "" {
		msg = e.color + msg + ansiReset
	}
	var sb strings.Builder
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, l.fields[k])
	}
	fmt.Fprintf(l.writer, "[SIMPLEJORM] %s %s: %s%s\n", now.Format("2006-01-02 15:04:05"), e.level, msg, sb.String())
}

func getSQLColor(sqlStr string) string {
	s := strings.TrimSpace(strings.ToUpper(sqlStr))
	switch {
	case strings.HasPrefix(s, "SELECT COUNT"):
		return ansiMagenta
	case strings.HasPrefix(s, "SELECT"):
		return ansiYellow
	case strings.HasPrefix(s, "WITH"):
		return ansiBlue
	default:
		return ansiCyan
	}
}
