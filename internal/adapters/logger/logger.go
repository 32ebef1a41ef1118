package logger

import (
	"strings"

	"meanReversionBot/internal/ports"
)

// New returns the logger for format: "json" selects zerolog, anything else the
// plain text StdLogger.
func New(format, level string) ports.Logger {
	if strings.EqualFold(format, "json") {
		return NewZerologLogger(level)
	}
	return NewStdLogger(ParseLevel(level))
}
