package logging

import (
	"context"

	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

// NoOpLogger discards all log entries. Components fall back to it when no
// logger is injected.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(context.Context, string, ...interface{}) {}
func (n *NoOpLogger) Info(context.Context, string, ...interface{})  {}
func (n *NoOpLogger) Warn(context.Context, string, ...interface{})  {}
func (n *NoOpLogger) Error(context.Context, string, ...interface{}) {}

// With returns the receiver; there is nothing to enrich.
func (n *NoOpLogger) With(...interface{}) ports.Logger { return n }

// NewNoOpLogger returns a ports.Logger that discards all log entries.
func NewNoOpLogger() ports.Logger {
	return &NoOpLogger{}
}

// OrNoOp returns logger, or a discarding logger when it is nil.
func OrNoOp(logger ports.Logger) ports.Logger {
	if logger == nil {
		return NewNoOpLogger()
	}
	return logger
}
