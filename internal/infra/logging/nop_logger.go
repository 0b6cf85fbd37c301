package logging

import (
	"context"
	"log/slog"
)

// discardHandler drops every record without formatting it.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, Level) bool { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) Handler { return h }
func (h discardHandler) WithGroup(string) Handler { return h }

// NewNopLogger creates a logger that discards all output.
func NewNopLogger() Logger {
	return slog.New(discardHandler{})
}
