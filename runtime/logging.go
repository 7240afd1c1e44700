package runtime

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger. Level is one of DEBUG, INFO, WARN or
// ERROR (INFO otherwise); format "text" selects the human-readable handler,
// anything else JSON.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func RunIDAttr(id string) slog.Attr {
	return slog.String("run_id", id)
}

func StepIDAttr(id string) slog.Attr {
	return slog.String("step_id", id)
}

func ErrorAttr(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
