package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// GetSlogHandlerOptions maps slog keys to Cloud Logging keys.
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "severity", Value: a.Value}
			}
			return a
		},
	}
}

// ComponentHandler prefixes the message with [component] when a
// "component" attribute is set on the logger or the record.
type ComponentHandler struct {
	slog.Handler
	component string
}

func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	comp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			comp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: comp,
	}
}

func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false
		}
		return true
	})
	if comp == "" {
		return h.Handler.Handle(ctx, r)
	}

	// The component attribute stays in the structured payload as well.
	out := slog.NewRecord(r.Time, r.Level, fmt.Sprintf("[%s] %s", comp, r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})
	return h.Handler.Handle(ctx, out)
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// NewLogger builds a JSON logger tagged with the service name. A nil w
// writes to stdout.
func NewLogger(serviceName, level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, GetSlogHandlerOptions(ParseLevel(level)))
	return slog.New(&ComponentHandler{Handler: handler}).With("service", serviceName)
}

// InitLogger installs NewLogger as the slog default.
func InitLogger(serviceName, level string) *slog.Logger {
	logger := NewLogger(serviceName, level, nil)
	slog.SetDefault(logger)
	return logger
}
