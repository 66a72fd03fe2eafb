package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
)

// TestLogger wraps a real logging.Logger whose human output and structured
// events are captured in memory, so tests can check redaction and events.
//
// Example usage:
//
//	logger := NewTestLogger(t, false)
//	executor := writes.NewExecutor(store, writes.WithLogger(logger.Logger()))
//	...
//	logger.AssertNotContains(t, "s3cret")
//	assert.Contains(t, logger.EventNames(), "write.completed")
type TestLogger struct {
	mu     sync.Mutex
	out    syncBuffer
	events syncBuffer
	logger *logging.Logger
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// NewTestLogger returns a capturing logger without colour.
func NewTestLogger(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	l := &TestLogger{}
	l.logger = logging.NewWithWriters(debug, true, &l.out, &l.events)
	return l
}

// Logger returns the logger to hand to the code under test.
func (l *TestLogger) Logger() *logging.Logger {
	return l.logger
}

// Output returns the human-readable log lines.
func (l *TestLogger) Output() string {
	return l.out.String()
}

// Events returns the raw structured event lines.
func (l *TestLogger) Events() string {
	return l.events.String()
}

// EventNames returns the event field of every structured event, in order.
func (l *TestLogger) EventNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var names []string
	scanner := bufio.NewScanner(strings.NewReader(l.events.String()))
	for scanner.Scan() {
		var e struct {
			Event string `json:"event"`
		}
		if json.Unmarshal(scanner.Bytes(), &e) == nil && e.Event != "" {
			names = append(names, e.Event)
		}
	}
	return names
}

// Clear drops everything captured so far.
func (l *TestLogger) Clear() {
	l.out.Reset()
	l.events.Reset()
}

// AssertContains checks the log lines and events together.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.Output()+l.Events(), substr, "Expected log output to contain %q", substr)
}

// AssertNotContains checks the log lines and events together.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.Output()+l.Events(), substr, "Expected log output to NOT contain %q", substr)
}
