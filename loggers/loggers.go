// Package loggers adapts zap, zerolog and logrus to the dbrecord.Logger interface.
//
//	dbrecord.SetLogger(loggers.NewZap(zapLogger))
package loggers

import (
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/zzguang83325/dbrecord"
	"go.uber.org/zap"
)

// ZapAdapter 实现 dbrecord.Logger 接口，用于集成 zap 日志库
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZap wraps a zap logger
func NewZap(l *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger: l}
}

func (a *ZapAdapter) Log(level dbrecord.LogLevel, msg string, fields map[string]interface{}) {
	var zapFields []zap.Field
	if len(fields) > 0 {
		zapFields = make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zapFields = append(zapFields, zap.Any(k, v))
		}
	}

	switch level {
	case dbrecord.LevelDebug:
		a.logger.Debug(msg, zapFields...)
	case dbrecord.LevelInfo:
		a.logger.Info(msg, zapFields...)
	case dbrecord.LevelWarn:
		a.logger.Warn(msg, zapFields...)
	default:
		a.logger.Error(msg, zapFields...)
	}
}

// Sync flushes buffered entries; dbrecord.Sync calls it
func (a *ZapAdapter) Sync() error {
	return a.logger.Sync()
}

// ZerologAdapter 实现 dbrecord.Logger 接口，用于集成 zerolog 日志库
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerolog wraps a zerolog logger
func NewZerolog(l zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: l}
}

func (a *ZerologAdapter) Log(level dbrecord.LogLevel, msg string, fields map[string]interface{}) {
	var event *zerolog.Event
	switch level {
	case dbrecord.LevelDebug:
		event = a.logger.Debug()
	case dbrecord.LevelInfo:
		event = a.logger.Info()
	case dbrecord.LevelWarn:
		event = a.logger.Warn()
	case dbrecord.LevelError:
		event = a.logger.Error()
	default:
		event = a.logger.Log()
	}

	if len(fields) > 0 {
		event.Fields(fields)
	}
	event.Msg(msg)
}

// LogrusAdapter 实现 dbrecord.Logger 接口，用于集成 logrus 日志库
type LogrusAdapter struct {
	logger *logrus.Logger
}

// NewLogrus wraps a logrus logger
func NewLogrus(l *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{logger: l}
}

func (a *LogrusAdapter) Log(level dbrecord.LogLevel, msg string, fields map[string]interface{}) {
	entry := a.logger.WithFields(logrus.Fields(fields))
	switch level {
	case dbrecord.LevelDebug:
		entry.Debug(msg)
	case dbrecord.LevelInfo:
		entry.Info(msg)
	case dbrecord.LevelWarn:
		entry.Warn(msg)
	default:
		entry.Error(msg)
	}
}
