// Package testutil holds logging doubles shared by package tests.
package testutil

import (
	"strings"
	"sync"

	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
)

// LogMessage is one entry captured by MockLogger.  Fields holds the fields
// bound with With followed by the call's own fields.
type LogMessage struct {
	Level   string
	Logger  string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the last field named key.
func (m LogMessage) Field(key string) (interface{}, bool) {
	for i := len(m.Fields) - 1; i >= 0; i-- {
		if m.Fields[i].Key == key {
			return m.Fields[i].Value, true
		}
	}
	return nil, false
}

// sink is shared by a MockLogger and every logger derived from it.
type sink struct {
	mu      sync.Mutex
	entries []LogMessage
}

// MockLogger implements logging.Logger and records every entry.  Loggers
// returned by With and Named write to the same record.
type MockLogger struct {
	sink   *sink
	name   string
	fields []logging.Field
}

// NewMockLogger returns an empty recorder.
func NewMockLogger() *MockLogger {
	return &MockLogger{sink: &sink{}}
}

func (m *MockLogger) record(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)

	m.sink.mu.Lock()
	m.sink.entries = append(m.sink.entries, LogMessage{Level: level, Logger: m.name, Message: msg, Fields: all})
	m.sink.mu.Unlock()
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) {
	m.record(logging.LevelDebug, msg, fields)
}
func (m *MockLogger) Info(msg string, fields ...logging.Field) {
	m.record(logging.LevelInfo, msg, fields)
}
func (m *MockLogger) Warn(msg string, fields ...logging.Field) {
	m.record(logging.LevelWarn, msg, fields)
}
func (m *MockLogger) Error(msg string, fields ...logging.Field) {
	m.record(logging.LevelError, msg, fields)
}

// Fatal records at level "fatal" and does not exit.
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) {
	m.record("fatal", msg, fields)
}

func (m *MockLogger) With(fields ...logging.Field) logging.Logger {
	bound := append(append([]logging.Field(nil), m.fields...), fields...)
	return &MockLogger{sink: m.sink, name: m.name, fields: bound}
}

func (m *MockLogger) Named(name string) logging.Logger {
	full := name
	if m.name != "" {
		full = m.name + "." + name
	}
	return &MockLogger{sink: m.sink, name: full, fields: m.fields}
}

func (m *MockLogger) Sync() error { return nil }

// GetMessages returns a copy of the record.
func (m *MockLogger) GetMessages() []LogMessage {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	return append([]LogMessage(nil), m.sink.entries...)
}

// Clear empties the record.
func (m *MockLogger) Clear() {
	m.sink.mu.Lock()
	m.sink.entries = nil
	m.sink.mu.Unlock()
}

// Find returns the entries matching pred.
func (m *MockLogger) Find(pred func(LogMessage) bool) []LogMessage {
	var out []LogMessage
	for _, e := range m.GetMessages() {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether msg was logged at level.
func (m *MockLogger) HasMessage(level, msg string) bool {
	return len(m.Find(func(e LogMessage) bool { return e.Level == level && e.Message == msg })) > 0
}

// HasMessageContaining reports whether an entry at level contains substr.
func (m *MockLogger) HasMessageContaining(level, substr string) bool {
	return len(m.Find(func(e LogMessage) bool {
		return e.Level == level && strings.Contains(e.Message, substr)
	})) > 0
}

// CountLevel returns the number of entries logged at level.
func (m *MockLogger) CountLevel(level string) int {
	return len(m.Find(func(e LogMessage) bool { return e.Level == level }))
}

// NopLogger discards everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger                                   { return &NopLogger{} }
func (n *NopLogger) Debug(msg string, fields ...logging.Field)   {}
func (n *NopLogger) Info(msg string, fields ...logging.Field)    {}
func (n *NopLogger) Warn(msg string, fields ...logging.Field)    {}
func (n *NopLogger) Error(msg string, fields ...logging.Field)   {}
func (n *NopLogger) Fatal(msg string, fields ...logging.Field)   {}
func (n *NopLogger) With(fields ...logging.Field) logging.Logger { return n }
func (n *NopLogger) Named(name string) logging.Logger            { return n }
func (n *NopLogger) Sync() error                                 { return nil }

//Personal.AI order the ending
