package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

func New(level string) zerolog.Logger {
	return newWith(os.Stdout, level)
}

// NewConsole is used by the CLI tools; same levels, human-readable output.
func NewConsole(level string) zerolog.Logger {
	return newWith(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

func newWith(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}
