package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu  sync.RWMutex
	logger = zap.NewNop()
	sugar  = logger.Sugar()
)

// InitLogger points the package logger at a file. The terminal belongs to
// the progress line and the TUI, so log output never goes to stdout.
func InitLogger(level, path string) error {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	config := zap.NewDevelopmentConfig()
	config.Encoding = "console"
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	built, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	logMu.Lock()
	logger = built
	sugar = built.Sugar()
	logMu.Unlock()
	return nil
}

// SyncLogger flushes buffered log entries.
func SyncLogger() error {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger.Sync()
}

// Debug writes a debug-level message to the log file
func Debug(format string, args ...any) {
	logMu.RLock()
	s := sugar
	logMu.RUnlock()
	s.Debugf(format, args...)
}

// Info writes an info-level message to the log file
func Info(format string, args ...any) {
	logMu.RLock()
	s := sugar
	logMu.RUnlock()
	s.Infof(format, args...)
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}
