// Package logger owns the process-wide zap logger. Console output stays
// human-readable; the rotated file gets JSON for ingestion.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance
var Log *zap.Logger

func init() {
	// Nop until Initialize runs so packages can log from tests and tools
	Log = zap.NewNop()
}

// Initialize builds the real logger: a console core at the requested level
// plus a JSON core writing to logFile with rotation.
func Initialize(logLevel, logFile string) error {
	if logFile == "" {
		logFile = "server.log"
	}

	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		level,
	)

	fileEncoderConfig := zap.NewProductionEncoderConfig()
	fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(fileEncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		}),
		level,
	)

	Log = zap.New(
		zapcore.NewTee(consoleCore, fileCore),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	Log.Info("Logger initialized",
		zap.String("level", level.String()),
		zap.String("file", logFile),
	)
	return nil
}

// Close flushes buffered entries before shutdown
func Close() error {
	return Log.Sync()
}

// Field helpers for the names used across the codebase

func WithRequestID(requestID string) zap.Field { return zap.String("request_id", requestID) }
func WithUserID(userID string) zap.Field       { return zap.String("user_id", userID) }
func WithEventID(eventID string) zap.Field     { return zap.String("event_id", eventID) }
func WithChannel(channel string) zap.Field     { return zap.String("channel", channel) }
func WithIP(ip string) zap.Field               { return zap.String("ip", ip) }
func WithStatus(status int) zap.Field          { return zap.Int("status", status) }

// ErrorWithFields logs msg at error level, attaching err when present
func ErrorWithFields(msg string, err error) {
	if err != nil {
		Log.Error(msg, zap.Error(err))
		return
	}
	Log.Error(msg)
}

// WarnWithFields logs msg at warn level, attaching err when present
func WarnWithFields(msg string, err error) {
	if err != nil {
		Log.Warn(msg, zap.Error(err))
		return
	}
	Log.Warn(msg)
}
