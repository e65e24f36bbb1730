package core

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var once sync.Once

type logger struct {
	*log.Logger
	file *lumberjack.Logger
}

var singleton *logger

// LoggingConfig selects the level and an optional rotating log file.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "Neuranim 🦴 ",
	})
}

func getLogger() *logger {
	if singleton == nil {
		once.Do(
			func() {
				l := newLogger(os.Stderr)
				l.SetLevel(log.DebugLevel)
				singleton = &logger{Logger: l}
			})
	}
	return singleton
}

// LoggingInitialize replaces the process logger according to cfg. When a file
// is configured every record is written both to stderr and to the file.
func LoggingInitialize(cfg LoggingConfig) error {
	level := log.InfoLevel
	if cfg.Level != "" {
		lvl, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Level)
		}
		level = lvl
	}

	var w io.Writer = os.Stderr
	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		w = io.MultiWriter(os.Stderr, file)
	}

	l := newLogger(w)
	l.SetLevel(level)

	// make sure the lazy default never overrides us
	once.Do(func() {})
	previous := singleton
	singleton = &logger{Logger: l, file: file}
	if previous != nil && previous.file != nil {
		_ = previous.file.Close()
	}
	return nil
}

// LoggingShutdown flushes and closes the log file, if any.
func LoggingShutdown() {
	if singleton != nil && singleton.file != nil {
		_ = singleton.file.Close()
	}
}

// LogInfo and friends log msg with structured key/value pairs.
func LogDebug(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Debug(msg, keyvals...)
}

func LogInfo(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Info(msg, keyvals...)
}

func LogWarn(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Warn(msg, keyvals...)
}

func LogError(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Error(msg, keyvals...)
}

func LogFatal(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Fatal(msg, keyvals...)
}

func LogDebugf(format string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Debugf(format, args...)
}

func LogInfof(format string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Infof(format, args...)
}

func LogWarnf(format string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Warnf(format, args...)
}

func LogErrorf(format string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Errorf(format, args...)
}
