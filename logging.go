package main

import (
	"os"

	"github.com/riverfog7/RomPatcher/internal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger creates the process logger. Debug entries are only written when
// verbose is set.
func newLogger(verbose bool, jsonOutput bool) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	if jsonOutput {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level))
}

// installLogHandler routes the log events pushed by the patch engine to the logger
func installLogHandler(logger *zap.Logger) {
	internal.LogHandler = func(sender interface{}, log internal.LogStruct) {
		var fields []zap.Field
		if name := internal.SenderName(sender); name != "" {
			fields = append(fields, zap.String("sender", name))
		}

		switch log.LogLevel {
		case internal.Debug:
			logger.Debug(log.Message, fields...)
		case internal.Warning:
			logger.Warn(log.Message, fields...)
		case internal.Error:
			logger.Error(log.Message, fields...)
		default:
			logger.Info(log.Message, fields...)
		}
	}
}
