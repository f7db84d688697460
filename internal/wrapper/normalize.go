package wrapper

import (
	"errors"
	"reflect"

	"github.com/sirupsen/logrus"
)

// maxCauseDepth 限制原因链的归一化深度。
const maxCauseDepth = 16

// NormalizedError 是失败结局的可传输表示。
type NormalizedError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Cause   any    `json:"cause,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// Normalize 归一化处理器返回的失败值。
//
// 消息非空的 error 归一化为 *NormalizedError，原因链通过 Cause() 或
// errors.Unwrap 递归归一化；其他任何值（包括消息为空的 error）原样返回。
func Normalize(v any) any {
	return normalize(v, "", 0)
}

// normalizePanic 归一化 panic 值，stack 为恢复时捕获的调用栈。
func normalizePanic(r any, stack string) (any, error) {
	if entry, ok := r.(*logrus.Entry); ok {
		return &NormalizedError{Message: entry.Message, Name: "Panic", Trace: stack}, nil
	}
	err, _ := r.(error)
	return normalize(r, stack, 0), err
}

func normalize(v any, stack string, depth int) any {
	err, ok := v.(error)
	if !ok || err == nil {
		return v
	}
	msg := err.Error()
	if msg == "" {
		return v
	}

	ne := &NormalizedError{
		Message: msg,
		Name:    errorName(err),
		Trace:   errorTrace(err, stack),
	}
	if depth >= maxCauseDepth {
		return ne
	}

	switch c := err.(type) {
	case interface{ Cause() error }:
		if cause := c.Cause(); cause != nil && cause != err {
			ne.Cause = normalize(cause, "", depth+1)
		}
	case interface{ Unwrap() []error }:
		var causes []any
		for _, cause := range c.Unwrap() {
			if cause != nil {
				causes = append(causes, normalize(cause, "", depth+1))
			}
		}
		if len(causes) > 0 {
			ne.Cause = causes
		}
	default:
		if cause := errors.Unwrap(err); cause != nil {
			ne.Cause = normalize(cause, "", depth+1)
		}
	}
	return ne
}

// genericErrorTypes 是标准库中不携带语义的错误实现，它们统一命名为 "Error"。
var genericErrorTypes = map[string]bool{
	"errorString": true,
	"wrapError":   true,
	"wrapErrors":  true,
	"joinError":   true,
}

// errorName 返回错误名称：优先使用 Name() 方法，否则取动态类型名。
func errorName(err error) string {
	if n, ok := err.(interface{ Name() string }); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" || genericErrorTypes[name] {
		return "Error"
	}
	return name
}

// errorTrace 返回错误的调用栈：优先使用错误自带的栈，否则使用 fallback。
func errorTrace(err error, fallback string) string {
	switch t := err.(type) {
	case interface{ Trace() string }:
		if s := t.Trace(); s != "" {
			return s
		}
	case interface{ StackTrace() string }:
		if s := t.StackTrace(); s != "" {
			return s
		}
	}
	return fallback
}
