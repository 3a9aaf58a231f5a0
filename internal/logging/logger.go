// Package logging builds the daemon's zap logger from verbosity and
// output settings.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TraceLevel sits below debug. It is enabled by -vv.
const TraceLevel = zapcore.DebugLevel - 1

// Options controls logger construction.
type Options struct {
	// Verbose is the number of -v flags. 0 uses Level, 1 is debug, 2+ is trace.
	Verbose int
	// Level is used when Verbose is 0. Accepts trace, debug, info, warn, error.
	Level string
	// Format is "console" or "json".
	Format string
	// Output receives log lines. Defaults to stderr.
	Output io.Writer
	// File, when set, also writes logs to a rotating file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel accepts the level names understood by the daemon.
func ParseLevel(value string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	switch name {
	case "trace":
		return TraceLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", value)
	}
	return level, nil
}

// LevelFor maps the -v count onto a level, falling back to base.
func LevelFor(verbose int, base zapcore.Level) zapcore.Level {
	switch {
	case verbose <= 0:
		return base
	case verbose == 1:
		return zapcore.DebugLevel
	default:
		return TraceLevel
	}
}

// New builds a logger. The returned close function flushes and releases
// the rotating file, if any.
func New(opts Options) (*zap.Logger, func() error, error) {
	base, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	level := zap.NewAtomicLevelAt(LevelFor(opts.Verbose, base))

	encoder, err := newEncoder(opts.Format)
	if err != nil {
		return nil, nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(out), level)}

	var rotator *lumberjack.Logger
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		fileEncoder, _ := newEncoder("json")
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closer := func() error {
		_ = logger.Sync()
		if rotator != nil {
			return rotator.Close()
		}
		return nil
	}
	return logger, closer, nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch format {
	case "", "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.TimeKey = ""
		cfg.CallerKey = ""
		cfg.NameKey = ""
		cfg.EncodeLevel = encodeLevel
		return zapcore.NewConsoleEncoder(cfg), nil
	case "json":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = encodeLevel
		return zapcore.NewJSONEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func encodeLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if level == TraceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(level, enc)
}

// Trace logs at TraceLevel.
func Trace(logger *zap.Logger, msg string, fields ...zap.Field) {
	if ce := logger.Check(TraceLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}
