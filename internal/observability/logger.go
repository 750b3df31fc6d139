package observability

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger пишет структурированные JSON-логи в stderr и ротируемый файл.
// stdout не используется: он занят MCP-транспортом.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// NewLogger создаёт логгер. Пустой logPath - только stderr.
func NewLogger(logPath, logLevel string, maxSizeMB, maxBackups int) *Logger {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer
	)
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
			rotator := &lumberjack.Logger{
				Filename:   logPath,
				MaxSize:    maxSizeMB,
				MaxBackups: maxBackups,
				Compress:   true,
			}
			out = io.MultiWriter(os.Stderr, rotator)
			closer = rotator
		}
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(logLevel)})
	return &Logger{Logger: slog.New(handler), closer: closer}
}

// NewWriterLogger пишет в произвольный writer (тесты, CLI).
func NewWriterLogger(w io.Writer, logLevel string) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(logLevel)})
	return &Logger{Logger: slog.New(handler)}
}

// Nop - логгер, который всё выбрасывает.
func Nop() *Logger {
	return NewWriterLogger(io.Discard, "error")
}

// With возвращает логгер с постоянными атрибутами.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), closer: l.closer}
}

// Close закрывает файл ротации.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
