package capture

import (
	"fmt"

	"github.com/oriys/edgeharness/internal/domain"
	"github.com/sirupsen/logrus"
)

// Logger 是控制台风格的日志器，每次调用追加一条记录，参数原样保留。
type Logger struct {
	sink func(level domain.LogLevel, args []any)
}

// Debug 记录 debug 级别日志。
func (l *Logger) Debug(args ...any) { l.sink(domain.LogLevelDebug, args) }

// Info 记录 info 级别日志。
func (l *Logger) Info(args ...any) { l.sink(domain.LogLevelInfo, args) }

// Warn 记录 warn 级别日志。
func (l *Logger) Warn(args ...any) { l.sink(domain.LogLevelWarn, args) }

// Error 记录 error 级别日志。
func (l *Logger) Error(args ...any) { l.sink(domain.LogLevelError, args) }

// Print 等价于 Info，对应 console.log。
func (l *Logger) Print(args ...any) { l.sink(domain.LogLevelInfo, args) }

// Log 以指定级别记录日志，无法识别的级别按 info 记录。
func (l *Logger) Log(level domain.LogLevel, args ...any) {
	if !level.Valid() {
		level = domain.LogLevelInfo
	}
	l.sink(level, args)
}

// Debugf 记录格式化后的 debug 日志，消息为单个字符串。
func (l *Logger) Debugf(format string, args ...any) {
	l.sink(domain.LogLevelDebug, []any{fmt.Sprintf(format, args...)})
}

// Infof 记录格式化后的 info 日志，消息为单个字符串。
func (l *Logger) Infof(format string, args ...any) {
	l.sink(domain.LogLevelInfo, []any{fmt.Sprintf(format, args...)})
}

// Warnf 记录格式化后的 warn 日志，消息为单个字符串。
func (l *Logger) Warnf(format string, args ...any) {
	l.sink(domain.LogLevelWarn, []any{fmt.Sprintf(format, args...)})
}

// Errorf 记录格式化后的 error 日志，消息为单个字符串。
func (l *Logger) Errorf(format string, args ...any) {
	l.sink(domain.LogLevelError, []any{fmt.Sprintf(format, args...)})
}

// standardLogger 在没有绑定会话时使用，转发到 logrus 标准日志器。
var standardLogger = &Logger{sink: func(level domain.LogLevel, args []any) {
	logrus.StandardLogger().Log(toLogrusLevel(level), args...)
}}

// toLogrusLevel 将记录级别映射为 logrus 级别。
func toLogrusLevel(level domain.LogLevel) logrus.Level {
	switch level {
	case domain.LogLevelDebug:
		return logrus.DebugLevel
	case domain.LogLevelWarn:
		return logrus.WarnLevel
	case domain.LogLevelError:
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}

// fromLogrusLevel 将 logrus 级别折叠为四个记录级别。
func fromLogrusLevel(level logrus.Level) domain.LogLevel {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return domain.LogLevelDebug
	case logrus.InfoLevel:
		return domain.LogLevelInfo
	case logrus.WarnLevel:
		return domain.LogLevelWarn
	}
	return domain.LogLevelError
}
