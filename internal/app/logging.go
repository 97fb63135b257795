package app

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger. Unknown levels fall back to info so a
// typo never silences the app.
func NewLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if format == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log.Level(lvl).With().Timestamp().Logger()
}
