package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger tagged with component. format "console" gives human
// readable output, anything else JSON lines.
func New(component, level, format string) zerolog.Logger {
	return NewWithWriter(os.Stderr, component, level, format)
}

// NewWithWriter is New writing to w
func NewWithWriter(w io.Writer, component, level, format string) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
}
