// pattern: Functional Core

package logging

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// LogEntry is a structured log record as shown in the TUI log panel.
type LogEntry struct {
	Timestamp time.Time      // When the log was created
	Level     string         // DEBUG, INFO, WARN, ERROR
	Scope     string         // Dot-separated scope (e.g., "fetch", "index.dir")
	Message   string         // Log message
	Fields    map[string]any // Additional structured fields
}

// String renders the entry on one line with fields in key order.
func (e LogEntry) String() string {
	var sb strings.Builder
	sb.WriteString(e.Timestamp.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(e.Level)
	sb.WriteString(" [")
	sb.WriteString(e.Scope)
	sb.WriteString("] ")
	sb.WriteString(e.Message)
	if len(e.Fields) > 0 {
		sb.WriteString(" ")
		sb.WriteString(e.FieldsString())
	}

	return sb.String()
}

// FieldsString renders the fields as space-separated key=value pairs in key
// order.
func (e LogEntry) FieldsString() string {
	pairs := make([]string, 0, len(e.Fields))
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, e.Fields[k]))
	}
	return strings.Join(pairs, " ")
}

// MatchesScope reports whether the entry's scope starts with prefix.
// An empty prefix matches all entries.
func (e LogEntry) MatchesScope(prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(e.Scope, prefix)
}

// ParseLevel normalizes a log level string to uppercase.
// Returns "INFO" for unknown levels.
func ParseLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}
