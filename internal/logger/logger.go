// Package logger builds the zap logger used across the service and adapts it
// to the logging interfaces of gorm and whatsmeow.
package logger

import (
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// New creates a logger with the given level ("debug", "info", "warn", "error")
// and format ("json" or anything else for console output).
func New(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.ToLower(format) == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// ParseLevel converts a level name, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Gorm returns a gorm logger writing through z.
func Gorm(z *zap.Logger) gormlogger.Interface {
	level := gormlogger.Warn
	if z.Core().Enabled(zapcore.DebugLevel) {
		level = gormlogger.Info
	}
	return gormlogger.New(gormWriter{z.Named("gorm").Sugar()}, gormlogger.Config{
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

type gormWriter struct {
	s *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.s.Debugf(format, args...)
}

// WhatsApp adapts z to whatsmeow's logger interface.
func WhatsApp(z *zap.Logger) waLog.Logger {
	return waLogger{s: z.Sugar()}
}

type waLogger struct {
	s *zap.SugaredLogger
}

func (l waLogger) Warnf(msg string, args ...interface{})  { l.s.Warnf(msg, args...) }
func (l waLogger) Errorf(msg string, args ...interface{}) { l.s.Errorf(msg, args...) }
func (l waLogger) Infof(msg string, args ...interface{})  { l.s.Infof(msg, args...) }
func (l waLogger) Debugf(msg string, args ...interface{}) { l.s.Debugf(msg, args...) }

func (l waLogger) Sub(module string) waLog.Logger {
	return waLogger{s: l.s.Named(module)}
}
