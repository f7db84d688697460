// Package domain 定义了执行框架的核心领域模型。
package domain

import (
	"runtime"
	"strconv"
	"strings"
)

// HandlerError 是处理器可以主动返回的结构化错误。
// 它携带名称、消息、原因以及构造时捕获的调用栈，归一化时这些信息会被完整保留。
type HandlerError struct {
	name    string
	message string
	cause   error
	trace   string
}

// NewHandlerError 创建一个结构化错误，name 为空时取 "Error"。
func NewHandlerError(name, message string) *HandlerError {
	if name == "" {
		name = "Error"
	}
	return &HandlerError{name: name, message: message, trace: callerTrace(3)}
}

// WrapHandlerError 创建一个带原因的结构化错误。
func WrapHandlerError(name, message string, cause error) *HandlerError {
	if name == "" {
		name = "Error"
	}
	return &HandlerError{name: name, message: message, cause: cause, trace: callerTrace(3)}
}

// Error 实现 error 接口。
func (e *HandlerError) Error() string { return e.message }

// Name 返回错误名称。
func (e *HandlerError) Name() string { return e.name }

// Unwrap 返回原因错误，支持 errors.Is / errors.As。
func (e *HandlerError) Unwrap() error { return e.cause }

// Trace 返回构造时捕获的调用栈。
func (e *HandlerError) Trace() string { return e.trace }

// callerTrace 以 "function\n\tfile:line" 的形式格式化调用栈，skip 跳过框架内部帧。
func callerTrace(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		b.WriteString(frame.Function)
		b.WriteString("\n\t")
		b.WriteString(frame.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(frame.Line))
		b.WriteByte('\n')
		if !more {
			break
		}
	}
	return b.String()
}
