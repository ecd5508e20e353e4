// Package logging provides a structured, context-aware logger built on
// log/slog, with optional file rotation via lumberjack.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the global logger.
type Config struct {
	// Level: debug, info, warn, error.
	Level string `mapstructure:"level" default:"info"`
	// Format: json or text.
	Format string `mapstructure:"format" default:"json"`
	// Output: stdout, file, or both.
	Output     string `mapstructure:"output" default:"stdout"`
	FilePath   string `mapstructure:"file_path" default:"logs/app.log"`
	MaxSize    int    `mapstructure:"max_size" default:"100"`
	MaxBackups int    `mapstructure:"max_backups" default:"10"`
	MaxAge     int    `mapstructure:"max_age" default:"30"`
	Compress   bool   `mapstructure:"compress" default:"true"`
	WithCaller bool   `mapstructure:"with_caller" default:"true"`
}

var global *slog.Logger

// Init builds the global logger from cfg and installs it as slog's default.
func Init(cfg Config) error {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var output io.Writer
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return err
		}
		output = fileWriter
	case "both":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return err
		}
		output = io.MultiWriter(os.Stdout, fileWriter)
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.WithCaller,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	global = slog.New(handler)
	slog.SetDefault(global)
	return nil
}

// Get returns the global logger, falling back to slog.Default if Init was
// never called (e.g. in unit tests).
func Get() *slog.Logger {
	if global == nil {
		return slog.Default()
	}
	return global
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID attaches a request id to ctx for later log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func withContext(ctx context.Context) *slog.Logger {
	l := Get()
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return l.With("request_id", id)
	}
	return l
}

func Debug(ctx context.Context, msg string, args ...any) { withContext(ctx).Debug(msg, args...) }
func Info(ctx context.Context, msg string, args ...any)  { withContext(ctx).Info(msg, args...) }
func Warn(ctx context.Context, msg string, args ...any)  { withContext(ctx).Warn(msg, args...) }
func Error(ctx context.Context, msg string, args ...any) { withContext(ctx).Error(msg, args...) }

// Fatal logs at error level and terminates the process.
func Fatal(ctx context.Context, msg string, args ...any) {
	withContext(ctx).Error(msg, args...)
	os.Exit(1)
}

// LogDuration returns a func to call in a defer, logging elapsed time.
func LogDuration(ctx context.Context, msg string, args ...any) func() {
	start := time.Now()
	return func() {
		args = append(args, "duration", time.Since(start))
		Info(ctx, msg, args...)
	}
}
