// pattern: Imperative Shell

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds configuration for the log Manager.
type Config struct {
	FilePath       string // Path to log file
	MaxSizeMB      int    // Max size in MB before rotation
	MaxBackups     int    // Max number of old log files to keep
	MaxAgeDays     int    // Max days to keep old log files
	Level          string // Minimum log level (debug, info, warn, error)
	ChannelBufSize int    // Buffer size for the TUI log channel (default 1000)
}

func (c *Config) applyDefaults() {
	if c.ChannelBufSize == 0 {
		c.ChannelBufSize = 1000
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 7
	}
}

// LoggerProvider hands out scoped loggers.
// Both Manager and TestLogManager implement it.
type LoggerProvider interface {
	For(scope string) *ScopedLogger
}

// Manager writes every log record twice: as JSON to a rotating file and as
// a parsed LogEntry to a channel that the TUI log panel drains.
type Manager struct {
	cache       *scopeCache
	baseZap     *zap.Logger
	channelSink *ChannelSink
	fileWriter  *lumberjack.Logger
}

// NewManager creates a new log manager with the given configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("FilePath is required")
	}
	cfg.applyDefaults()

	level := ParseZapLevel(cfg.Level)

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	channelSink := NewChannelSink(cfg.ChannelBufSize)

	core := zapcore.NewTee(
		newJSONCore(zapcore.AddSync(fileWriter), level),
		newJSONCore(channelSink, level),
	)
	baseZap := zap.New(core)

	return &Manager{
		cache:       newScopeCache(baseZap, level),
		baseZap:     baseZap,
		channelSink: channelSink,
		fileWriter:  fileWriter,
	}, nil
}

// For returns the cached logger for a scope, creating it on first use.
// Scopes are dot-separated (e.g. "watcher", "fetch.s3").
func (m *Manager) For(scope string) *ScopedLogger {
	return m.cache.get(scope)
}

// Entries returns the channel for consuming log entries.
func (m *Manager) Entries() <-chan LogEntry {
	return m.channelSink.Entries()
}

// GetChannelSink returns the channel sink so other producers can inject
// entries into the TUI log stream.
func (m *Manager) GetChannelSink() *ChannelSink {
	return m.channelSink
}

// Sync flushes all buffered logs.
func (m *Manager) Sync() error {
	return m.baseZap.Sync()
}

// Close syncs and closes all resources.
func (m *Manager) Close() error {
	_ = m.Sync()
	_ = m.channelSink.Close()
	return m.fileWriter.Close()
}

// ParseZapLevel parses a config level string, falling back to info.
func ParseZapLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func newJSONCore(ws zapcore.WriteSyncer, level zapcore.Level) zapcore.Core {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.EpochTimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), ws, level)
}

// scopeCache memoizes one ScopedLogger per scope name.
type scopeCache struct {
	base    *zap.Logger
	level   zapcore.Level
	mu      sync.RWMutex
	loggers map[string]*ScopedLogger
}

func newScopeCache(base *zap.Logger, level zapcore.Level) *scopeCache {
	return &scopeCache{
		base:    base,
		level:   level,
		loggers: make(map[string]*ScopedLogger),
	}
}

func (c *scopeCache) get(scope string) *ScopedLogger {
	c.mu.RLock()
	logger, ok := c.loggers[scope]
	c.mu.RUnlock()
	if ok {
		return logger
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have won the race.
	if logger, ok := c.loggers[scope]; ok {
		return logger
	}

	logger = newScopedLogger(c.base.Named(scope), c.level, scope)
	c.loggers[scope] = logger
	return logger
}
