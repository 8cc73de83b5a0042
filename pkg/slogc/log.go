package slogc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const LevelFine = slog.LevelDebug - 4

func New(level string, format string) (*slog.Logger, error) {
	return NewWriter(os.Stderr, level, format)
}

func NewWriter(w io.Writer, level string, format string) (*slog.Logger, error) {
	logLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       logLevel,
			ReplaceAttr: levelReplacer,
		})), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:       logLevel,
			ReplaceAttr: levelReplacer,
		})), nil
	default:
		return nil, fmt.Errorf("invalid format '%s' (json|text)", format)
	}
}

func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "fine":
		return LevelFine, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "info", "":
		return slog.LevelInfo, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid level '%s' (fine|debug|info|warn|error)", level)
	}
}

func levelReplacer(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.LevelKey && attr.Value.Any() == LevelFine {
		return slog.String(attr.Key, "FINE")
	}
	return attr
}

func Fine(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelFine, msg, args...)
}

func FineDefault(msg string, args ...any) {
	Fine(slog.Default(), msg, args...)
}
