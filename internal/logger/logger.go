package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init initializes the package logger.
// format is "console" (default) or "json".
func Init(enabled bool, levelStr, logFile string, console bool, format ...string) error {
	if !enabled {
		Use(zap.NewNop())
		return nil
	}

	level := parseLevel(levelStr)
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if len(format) > 0 && strings.EqualFold(format[0], "json") {
		encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var syncers []zapcore.WriteSyncer
	if logFile != "" {
		dir := filepath.Dir(logFile)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		syncers = append(syncers, zapcore.AddSync(f))
	}
	if console || len(syncers) == 0 {
		syncers = append(syncers, zapcore.Lock(os.Stdout))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	Use(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

// Use replaces the package logger.
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

// L returns the current structured logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered log entries.
func Sync() {
	_ = L().Sync()
}

func parseLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func sugar() *zap.SugaredLogger {
	return L().Sugar()
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	sugar().Debugf(format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	sugar().Infof(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	sugar().Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	sugar().Errorf(format, args...)
}
