package utils

import "sync"

// TestLogger records log messages for assertions in tests.
type TestLogger struct {
	mu       sync.Mutex
	Messages []string
}

func (l *TestLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
}

func (l *TestLogger) Debug(msg string, keysAndValues ...any) { l.record("DEBUG", msg) }
func (l *TestLogger) Info(msg string, keysAndValues ...any)  { l.record("INFO", msg) }
func (l *TestLogger) Warn(msg string, keysAndValues ...any)  { l.record("WARN", msg) }
func (l *TestLogger) Error(msg string, keysAndValues ...any) { l.record("ERROR", msg) }
func (l *TestLogger) SetLevel(level LogLevel)                {}
