package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/internal/logging"
	"github.com/rs/zerolog"
)

// session holds the configuration and loggers shared by the replays of one
// invocation.
type session struct {
	start time.Time

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager
	// Logger is the slog logger with the current frame attached
	Logger *slog.Logger
	// Components is the zerolog logger of storage, telemetry and the dispatcher
	Components zerolog.Logger

	LogFilePath string
	logFile     *os.File
	graylog     io.Closer

	// frame being simulated, -1 between replays
	frame atomic.Int64
}

// openSession loads the config from configDir and sets up logging. A missing
// config file leaves the defaults in place.
func openSession(configDir string, stderr io.Writer) *session {
	s := &session{start: time.Now(), SlogManager: logging.NewSlogManager()}
	s.frame.Store(-1)

	cfgErr := config.Load(configDir)
	level := config.GetString("logLevel")

	var file io.Writer
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintf(stderr, "Failed to create logs dir %s: %v\n", logsDir, err)
	} else {
		s.LogFilePath = logging.LogFilePath(logsDir, ToolName, s.start)
		f, err := os.OpenFile(s.LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log file %s: %v\n", s.LogFilePath, err)
			s.LogFilePath = ""
		} else {
			s.logFile = f
			file = f
		}
	}

	var remote io.Writer
	var graylogErr error
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address, ToolName)
		if err != nil {
			graylogErr = err
		} else {
			s.graylog = w
			remote = w
		}
	}

	s.SlogManager.Setup(file, level, remote)
	s.Logger = slog.New(logging.NewFrameHandler(s.SlogManager.Logger().Handler(), s.frame.Load))

	if file != nil {
		s.Components = logging.NewZerolog(file, level)
	} else {
		s.Components = logging.NewZerolog(os.Stdout, level)
	}

	if cfgErr != nil {
		s.Logger.Warn("Failed to load config, using defaults!", "error", cfgErr)
	} else {
		s.Logger.Info("Loaded config", "dir", configDir)
	}
	if graylogErr != nil {
		s.Logger.Warn("Graylog disabled", "error", graylogErr)
	}
	s.Logger.Info("Session started", "version", CurrentVersion, "build", BuildDate)
	return s
}

// Close flushes the remote log writer and closes the log file.
func (s *session) Close() {
	s.Logger.Info("Session finished", "duration", time.Since(s.start))
	if s.graylog != nil {
		s.graylog.Close()
	}
	if s.logFile != nil {
		s.logFile.Close()
	}
}
