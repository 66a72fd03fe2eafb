package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger provides leveled console logging with redaction support, plus
// JSON run events for machine consumption.
type Logger struct {
	debug   bool
	noColor bool

	mu     sync.Mutex
	out    io.Writer // human-readable lines
	events io.Writer // structured run events
	now    func() time.Time
}

// New creates a new logger instance writing to stderr, with run events on stdout
func New(debug, noColor bool) *Logger {
	return NewWithWriters(debug, noColor, os.Stderr, os.Stdout)
}

// NewWithWriters creates a logger with explicit destinations
func NewWithWriters(debug, noColor bool, out, events io.Writer) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
		out:     out,
		events:  events,
		now:     time.Now,
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewWithWriters(false, true, io.Discard, io.Discard)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("\033[32m✓\033[0m", "✓", format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("\033[33m⚠\033[0m", "⚠", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("\033[31m✗\033[0m", "✗", format, args...)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.write("\033[36m[DEBUG]\033[0m", "[DEBUG]", format, args...)
}

// DebugEnabled reports whether debug output is on
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

func (l *Logger) write(colored, plain, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	prefix := colored
	if l.noColor {
		prefix = plain
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s\n", prefix, msg)
}

// Event writes one structured run event as a single JSON line. Field values
// are passed through RedactValues before they are written.
func (l *Logger) Event(correlationID, event string, fields map[string]string) {
	sanitized := make(map[string]string, len(fields))
	for k, v := range fields {
		sanitized[k] = RedactValues(v)
	}

	payload := struct {
		Timestamp     string            `json:"timestamp"`
		CorrelationID string            `json:"correlationId"`
		Event         string            `json:"event"`
		Fields        map[string]string `json:"fields"`
	}{
		Timestamp:     l.now().UTC().Format(time.RFC3339Nano),
		CorrelationID: correlationID,
		Event:         event,
		Fields:        sanitized,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		l.Error("failed to encode event %s: %v", event, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.events, "%s\n", data)
}

// NewCorrelationID returns a fresh id for grouping the events of one run
func NewCorrelationID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}

var assignmentPattern = regexp.MustCompile(`(?i)((?:value|clientsecret|secret|password|apikey)\s*[:=]\s*)(\S+)`)

// RedactValues masks the right-hand side of value-like assignments such as
// "password=hunter2" or "value: abc".
func RedactValues(s string) string {
	if s == "" {
		return s
	}
	return assignmentPattern.ReplaceAllString(s, "${1}[REDACTED]")
}

// SortedKeys returns the keys of a string map in order, for stable log lines
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
