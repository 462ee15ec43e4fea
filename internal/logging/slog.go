package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Swapped by tests.
var (
	osStdout = os.Stdout
	osPipe   = os.Pipe
)

// SlogManager owns the replay log: text records on the session log file and,
// when Graylog is enabled, the same records as JSON on the remote writer.
type SlogManager struct {
	logger *slog.Logger
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts the slog level names in any case. Anything else is info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime renders record times as RFC3339 UTC, the zerolog component format.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Setup replaces the logger. Records go to file, or to stdout when file is nil,
// and additionally as JSON to remote when it is set.
func (m *SlogManager) Setup(file io.Writer, level string, remote io.Writer) {
	opts := &slog.HandlerOptions{Level: parseLevel(level), ReplaceAttr: utcTime}

	if file == nil {
		file = osStdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(file, opts)}

	// One JSON document per record; the GELF writer sends each as a message.
	if remote != nil {
		handlers = append(handlers, slog.NewJSONHandler(remote, opts))
	}

	m.logger = slog.New(NewMultiHandler(handlers...))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}
