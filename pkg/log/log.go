package log

import (
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer

	// Capture receives every JSON-encoded log line in addition to Output.
	// It is how the log feed mirrors the process's own logs.
	Capture zerolog.LevelWriter
}

// Init initializes the global logger
func Init(cfg Config) {
	SetLevel(cfg.Level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if !cfg.JSONOutput {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	if cfg.Capture != nil {
		output = zerolog.MultiLevelWriter(output, cfg.Capture)
	}

	logger := zerolog.New(output).With().Timestamp().Caller().Logger()
	if cfg.Capture != nil {
		logger = logger.Hook(functionHook{})
	}
	Logger = logger
}

// FunctionFieldName holds the calling function on captured lines
const FunctionFieldName = "function"

// functionHook adds the calling function to lines the capture writer keeps
type functionHook struct{}

func (functionHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if level < zerolog.InfoLevel {
		return
	}
	if fn := callerFunction(); fn != "" {
		e.Str(FunctionFieldName, fn)
	}
}

// callerFunction returns the first function outside zerolog and this file,
// without its import path: "api.(*Server).moveHandler"
func callerFunction() string {
	var pcs [16]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" &&
			!strings.HasPrefix(frame.Function, "github.com/rs/zerolog") &&
			!strings.HasSuffix(frame.File, "/pkg/log/log.go") {
			return frame.Function[strings.LastIndexByte(frame.Function, '/')+1:]
		}
		if !more {
			return ""
		}
	}
}

// SetLevel changes the global level; safe to call while logging
func SetLevel(lvl Level) {
	zerolog.SetGlobalLevel(parseLevel(lvl))
}

func parseLevel(lvl Level) zerolog.Level {
	switch lvl {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithMouseID creates a child logger with mouse_id field
func WithMouseID(mouseID string) zerolog.Logger {
	return Logger.With().Str("mouse_id", mouseID).Logger()
}

// WithSessionID creates a child logger with session_id field
func WithSessionID(sessionID string) zerolog.Logger {
	return Logger.With().Str("session_id", sessionID).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
