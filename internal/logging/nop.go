// Package logging holds the logger defaults shared by switchyard packages.
package logging

import "github.com/arloliu/switchyard/types"

// NopLogger drops every message. It is the logger of components built
// without one.
type NopLogger struct{}

var _ types.Logger = (*NopLogger)(nil)

// NewNopLogger returns a logger that drops every message.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Fatal drops the message and returns; it never exits the process.
func (*NopLogger) Fatal(string, ...any) {}

// Or returns l, or a NopLogger when l is nil.
func Or(l types.Logger) types.Logger {
	if l == nil {
		return NewNopLogger()
	}

	return l
}
