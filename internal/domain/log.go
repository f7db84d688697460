// Package domain 定义了执行框架的核心领域模型。
package domain

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel 表示一条诊断日志的级别。
type LogLevel string

// 日志级别常量定义
const (
	// LogLevelDebug 调试级别
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo 信息级别（console.log 也归入此级别）
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn 警告级别
	LogLevelWarn LogLevel = "warn"
	// LogLevelError 错误级别
	LogLevelError LogLevel = "error"
)

// TimestampLayout 是 LogRecord 时间戳的 ISO-8601 格式（UTC，毫秒精度）。
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ParseLogLevel 解析日志级别字符串，大小写不敏感，"warning" 视为 warn。
//
// 参数:
//   - s: 级别字符串
//
// 返回:
//   - LogLevel: 解析后的级别
//   - error: 无法识别时返回 ErrInvalidLogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
}

// Valid 判断级别是否为四个受支持的级别之一。
func (l LogLevel) Valid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// LogRecord 表示一次处理器调用期间捕获的一条诊断日志。
// Message 保留调用方传入的原始参数，不做格式化，由序列化阶段决定呈现方式。
type LogRecord struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Message   []any    `json:"message"`
}

// NewLogRecord 以给定时间创建一条日志记录。
// 参数切片会被复制，调用方后续修改不会影响已创建的记录。
func NewLogRecord(at time.Time, level LogLevel, args []any) LogRecord {
	msg := make([]any, len(args))
	copy(msg, args)
	return LogRecord{
		Timestamp: at.UTC().Format(TimestampLayout),
		Level:     level,
		Message:   msg,
	}
}
