package internal

import (
	"io"
	"log/slog"
)

// Creates a text logger on w reflecting the current output switches.
//
// Records are grouped under the program name. Verbose mode adds the source
// location of each record.
func NewLogger(w io.Writer) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: IsVerbose(),
	})
	return slog.New(handler.WithGroup(Name))
}
