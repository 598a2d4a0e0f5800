// Package log provides the structured logger used across the client.
//
// Components accept the small Logger interface so any logging framework can
// be plugged in. New builds the default zap-backed implementation:
//   - JSON output for machine consumption
//   - console output for interactive CLI use
//
// A nil Logger is never passed around; use Nop when logging is not wanted.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface accepted by the dispatcher, the transfer
// engine and the upgrade manager.
//
// Example with the standard log package:
//
//	type StdLogger struct{}
//	func (StdLogger) Debug(msg string, kv ...any) { log.Println(msg, kv) }
//	func (StdLogger) Info(msg string, kv ...any)  { log.Println(msg, kv) }
//	func (StdLogger) Error(msg string, kv ...any) { log.Println(msg, kv) }
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...any)
}

// Encoding selects the zap encoder.
type Encoding string

const (
	// EncodingJSON writes one JSON object per entry
	EncodingJSON Encoding = "json"

	// EncodingConsole writes human-readable lines
	EncodingConsole Encoding = "console"
)

// Options configures New.
type Options struct {
	// Output defaults to os.Stderr
	Output io.Writer

	// Encoding defaults to EncodingConsole
	Encoding Encoding

	// Verbose enables debug entries
	Verbose bool
}

// ZapLogger adapts a zap.SugaredLogger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a zap-backed logger.
func New(opts Options) *ZapLogger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	var encoder zapcore.Encoder
	if opts.Encoding == EncodingJSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	return NewZap(zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level)))
}

// NewZap wraps an existing zap logger.
func NewZap(z *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: z.Sugar()}
}

// Debug logs a debug message.
func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info message.
func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Error logs an error message.
func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// With returns a logger that adds keysAndValues to every entry.
func (l *ZapLogger) With(keysAndValues ...any) *ZapLogger {
	return &ZapLogger{sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nop{}
}

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
