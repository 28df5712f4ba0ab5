package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

const defaultService = "marketd"

// Setup installs a JSON slog handler on stderr and returns the base logger.
// Field names follow the ingestion schema: timestamp, severity, message, plus
// the service name and environment on every line.
func Setup(service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		ReplaceAttr: renameStandardAttrs,
	})

	if service = strings.TrimSpace(service); service == "" {
		service = defaultService
	}
	attrs := []slog.Attr{slog.String("service", service)}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	base := slog.New(handler.WithAttrs(attrs))
	slog.SetDefault(base)

	// Route the stdlib logger through the same handler so dependencies that
	// still call log.Printf land in the structured stream.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func renameStandardAttrs(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "timestamp"
	case slog.LevelKey:
		return slog.String("severity", strings.ToUpper(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "message"
	}
	return attr
}
