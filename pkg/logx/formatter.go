package logx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Fields is a set of structured key/value pairs attached to a log entry
type Fields map[string]any

// LogEntry is a single log record handed to a Formatter
type LogEntry struct {
	Level     Level
	Message   string
	Fields    Fields
	Error     error
	Caller    string
	Timestamp time.Time
}

// Formatter renders a LogEntry into bytes ready for the output writer
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// ---------------------------------------------------------------------------
// Console formatter
// ---------------------------------------------------------------------------

const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// ConsoleFormatter renders human-readable single-line logs
type ConsoleFormatter struct {
	config *Config
}

// NewConsoleFormatter creates a console formatter
func NewConsoleFormatter(config *Config) *ConsoleFormatter {
	return &ConsoleFormatter{config: config}
}

// Format implements Formatter
func (f *ConsoleFormatter) Format(entry *LogEntry) ([]byte, error) {
	var b strings.Builder

	b.WriteString(entry.Timestamp.Format(f.config.TimeFormat))
	b.WriteString(" ")

	level := fmt.Sprintf("%-5s", entry.Level.String())
	if f.config.EnableColors {
		b.WriteString(f.levelColor(entry.Level) + level + colorReset)
	} else {
		b.WriteString(level)
	}

	if entry.Caller != "" {
		b.WriteString(" " + entry.Caller)
	}

	b.WriteString(" " + entry.Message)

	// Deterministic field order keeps console output diffable
	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf(" %s=%v", k, entry.Fields[k]))
		}
	}

	b.WriteString("\n")
	return []byte(b.String()), nil
}

func (f *ConsoleFormatter) levelColor(level Level) string {
	switch level {
	case LevelTrace, LevelDebug:
		return colorGray
	case LevelInfo:
		return colorGreen
	case LevelWarn:
		return colorYellow
	case LevelError, LevelFatal:
		return colorRed
	default:
		return colorCyan
	}
}

// ---------------------------------------------------------------------------
// JSON formatter
// ---------------------------------------------------------------------------

// JSONFormatter renders one JSON object per line
type JSONFormatter struct {
	config *Config
}

// NewJSONFormatter creates a JSON formatter
func NewJSONFormatter(config *Config) *JSONFormatter {
	return &JSONFormatter{config: config}
}

// Format implements Formatter
func (f *JSONFormatter) Format(entry *LogEntry) ([]byte, error) {
	record := map[string]any{
		"level":     entry.Level.String(),
		"message":   entry.Message,
		"timestamp": entry.Timestamp.Format(f.config.TimeFormat),
	}

	for k, v := range entry.Fields {
		record[k] = v
	}

	if entry.Error != nil {
		record["error"] = entry.Error.Error()
	}
	if entry.Caller != "" {
		record["caller"] = entry.Caller
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
