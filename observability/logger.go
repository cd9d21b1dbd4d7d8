package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns the JSON logger used across the service.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
