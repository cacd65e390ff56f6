// Package log provides the structured logger shared by every component of
// the holders graph engine.
package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the package-level sugared logger every component logs through.
// CLI entrypoints replace it once flags are parsed (see cmd/clearholders).
var Logger = CreateLogger(zapcore.InfoLevel, "")

// ParseLogLevel parses the usual debug|info|warn|error names.
func ParseLogLevel(raw string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", raw)
	}
}

// CreateLogger builds a sugared logger. When logFile is non-empty, output is
// rotated through lumberjack; otherwise it writes to stderr with console
// encoding, matching the teacher's interactive-CLI default.
func CreateLogger(level zapcore.Level, logFile string) *zap.SugaredLogger {
	if logFile == "" {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		logger, err := cfg.Build()
		if err != nil {
			// fall back to a no-op logger rather than panic at import time
			return zap.NewNop().Sugar()
		}
		return logger.Sugar()
	}
	return CreateLoggerWithLumberjack(logFile, 100, level).Sugar()
}

// CreateLoggerWithLumberjack wires lumberjack as the write sink for a zap
// core at the given level. maxSizeMB caps a single log file before rotation.
func CreateLoggerWithLumberjack(logFile string, maxSizeMB int, level zapcore.Level) *zap.Logger {
	writer := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(writer),
		level,
	)
	return zap.New(core)
}
