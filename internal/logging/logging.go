// Package logging sets up the slog and zerolog loggers of the replay tools.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds the log file path of one tool session.
func LogFilePath(logsDir, toolName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", toolName, sessionStart.Format("20060102_150405")),
	)
}
