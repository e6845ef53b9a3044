package ledgertesting

import (
	"log/slog"
	"os"
)

// NewLogger returns a logger for tests. Quiet by default; DEBUG=1 shows
// info, DEBUG=2 shows debug.
func NewLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("DEBUG") {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
