package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/nlpinitiative/discrimination-classifier/config"
)

// InitLogger installs the default slog logger
func InitLogger(cfg config.LoggingConfig) {
	slog.SetDefault(NewLogger(os.Stdout, cfg))
}

// NewLogger builds a tint-backed logger writing to w
func NewLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(cfg.Level),
		TimeFormat: time.Kitchen,
		AddSource:  cfg.AddSource,
	})
	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog level, defaulting to info
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

// TextAttr logs submitted text only when allowed, otherwise its length
func TextAttr(cfg config.LoggingConfig, text string) slog.Attr {
	if cfg.LogText {
		return slog.String("text", text)
	}
	return slog.Int("text_length", len(text))
}
