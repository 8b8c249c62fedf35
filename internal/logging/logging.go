// Package logging builds the process logger and logs coded errors.
package logging

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/samber/oops"
)

// New returns a JSON slog.Logger writing to w at the named level. Unknown
// levels fall back to info.
func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With(slog.String("service", "projecthub"))
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// LogError logs err at error level together with attrs. Coded errors
// contribute their code, domain and context values as separate fields so
// they can be filtered on.
func LogError(logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}
	fields := make([]slog.Attr, 0, len(attrs)+4)
	fields = append(fields, attrs...)

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		fields = append(fields, slog.Any("error", err))
		logger.LogAttrs(context.Background(), slog.LevelError, msg, fields...)
		return
	}

	fields = append(fields, slog.String("error", oopsErr.Error()))
	if code := oopsErr.Code(); code != nil {
		fields = append(fields, slog.Any("code", code))
	}
	if domain := oopsErr.Domain(); domain != "" {
		fields = append(fields, slog.String("domain", domain))
	}
	if values := oopsErr.Context(); len(values) > 0 {
		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		group := make([]any, 0, len(keys))
		for _, key := range keys {
			group = append(group, slog.Any(key, values[key]))
		}
		fields = append(fields, slog.Group("context", group...))
	}
	logger.LogAttrs(context.Background(), slog.LevelError, msg, fields...)
}
