// pattern: Imperative Shell

package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopLogger returns a logger that discards all output.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// TestLogManager is a LoggerProvider for tests. It logs at debug level to
// a channel only, so tests can assert on what was logged.
type TestLogManager struct {
	cache       *scopeCache
	channelSink *ChannelSink
}

// NewTestLogManager creates a TestLogManager with the given channel buffer.
func NewTestLogManager(bufferSize int) *TestLogManager {
	sink := NewChannelSink(bufferSize)
	base := zap.New(newJSONCore(sink, zapcore.DebugLevel))
	return &TestLogManager{
		cache:       newScopeCache(base, zapcore.DebugLevel),
		channelSink: sink,
	}
}

// For returns a scoped logger, matching the production Manager API.
func (m *TestLogManager) For(scope string) *ScopedLogger {
	return m.cache.get(scope)
}

// Channel returns the channel for receiving log entries.
func (m *TestLogManager) Channel() <-chan LogEntry {
	return m.channelSink.Entries()
}

// WaitFor reads entries until one has the given message or the timeout
// expires. Entries read along the way are discarded.
func (m *TestLogManager) WaitFor(message string, timeout time.Duration) (LogEntry, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case entry, ok := <-m.channelSink.Entries():
			if !ok {
				return LogEntry{}, false
			}
			if entry.Message == message {
				return entry, true
			}
		case <-deadline:
			return LogEntry{}, false
		}
	}
}

// Close closes the test log manager.
func (m *TestLogManager) Close() error {
	return m.channelSink.Close()
}
