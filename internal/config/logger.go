package config

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger: human readable console output
// or JSON lines depending on cfg.Format.
func NewLogger(cfg Log, out io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parsing log level: %w", err)
	}

	w := out
	if cfg.Format == FormatConsole {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

// LogOverrides reports which file values were replaced from env.
func LogOverrides(logger zerolog.Logger, overrides []Override) {
	for _, o := range overrides {
		logger.Info().Str("env", o.Env).Str("value", o.Value).Msg("config value overridden from env")
	}
}
