package logger_i

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/akolanti/TenantRAG/internal/config"
)

type Logger struct {
	inner *slog.Logger
}

// Init installs the process-wide handler. Format "json" or level parsing follows cfg.
func Init(cfg config.LogConfig) {
	InitWithWriter(cfg, os.Stdout)
}

func InitWithWriter(cfg config.LogConfig, w io.Writer) {
	options := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	slog.SetDefault(slog.New(handler))
}

func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		if config.IS_PROD {
			return config.LOG_LEVEL_PROD
		}
		return slog.LevelDebug
	}
	return l
}

func NewLogger(section string) *Logger {
	return &Logger{
		inner: slog.Default().With("component", section),
	}
}

// FromContext attaches the trace and tenant ids carried by ctx, when present.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	var args []any
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok && trace != "" {
		args = append(args, "traceId", trace)
	}
	if tenant, ok := ctx.Value(config.TENANT_ID_KEY).(string); ok && tenant != "" {
		args = append(args, "tenantId", tenant)
	}
	if len(args) == 0 {
		return l
	}
	return l.With(args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.inner.Info(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if !l.inner.Enabled(context.Background(), level) {
		return
	}
	l.inner.Log(context.Background(), level, msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		inner: l.inner.With(args...),
	}
}
