// Package zerolog adapts github.com/rs/zerolog to types.Logger.
//
//	logger := zerolog.New(os.Stderr, zerolog.WithLevel("debug"))
//	router, _ := switchyard.NewRouter(source, managed,
//	    switchyard.WithLogger(logger),
//	)
package zerolog

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/arloliu/switchyard/types"
)

// Logger writes switchyard log messages as zerolog events.
type Logger struct {
	zl zerolog.Logger
}

// Compile-time assertion that Logger implements types.Logger.
var _ types.Logger = (*Logger)(nil)

// Option configures a Logger.
type Option func(*options)

type options struct {
	level     zerolog.Level
	component string
	sync      bool
}

// WithLevel sets the minimum level by name ("debug", "info", "warn", "error").
// Unknown names keep the default "info".
func WithLevel(name string) Option {
	return func(o *options) {
		if lvl, err := zerolog.ParseLevel(name); err == nil && lvl != zerolog.NoLevel {
			o.level = lvl
		}
	}
}

// WithComponent adds a "component" field to every event.
func WithComponent(name string) Option {
	return func(o *options) {
		o.component = name
	}
}

// WithSyncWriter serializes writes to w, for writers that are not safe for
// concurrent use such as plain files.
func WithSyncWriter() Option {
	return func(o *options) {
		o.sync = true
	}
}

// New creates a Logger writing JSON events with timestamps to w.
// A nil w writes to os.Stderr.
func New(w io.Writer, opts ...Option) *Logger {
	o := options{level: zerolog.InfoLevel}
	for _, opt := range opts {
		opt(&o)
	}

	if w == nil {
		w = os.Stderr
	}
	if o.sync {
		w = zerolog.SyncWriter(w)
	}

	ctx := zerolog.New(w).Level(o.level).With().Timestamp()
	if o.component != "" {
		ctx = ctx.Str("component", o.component)
	}

	return &Logger{zl: ctx.Logger()}
}

// Wrap adapts an existing zerolog.Logger.
func Wrap(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	emit(l.zl.Debug(), msg, keysAndValues)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	emit(l.zl.Info(), msg, keysAndValues)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	emit(l.zl.Warn(), msg, keysAndValues)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	emit(l.zl.Error(), msg, keysAndValues)
}

// Fatal logs at fatal level and exits the process.
func (l *Logger) Fatal(msg string, keysAndValues ...any) {
	emit(l.zl.Fatal(), msg, keysAndValues)
}

// emit attaches alternating key/value pairs to e and sends it.
// A trailing key without value is logged under "!BADKEY".
func emit(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}

	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if i+1 >= len(kv) {
			e = e.Interface("!BADKEY", kv[i])
			break
		}

		switch v := kv[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
	}

	e.Msg(msg)
}
