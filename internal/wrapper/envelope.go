package wrapper

import (
	"encoding/json"
	"fmt"

	"github.com/oriys/edgeharness/internal/domain"
)

// DebugEnvelope 是调试模式下的响应包装。
type DebugEnvelope struct {
	Body DebugBody `json:"body"`
}

// DebugBody 是调试包装的主体。
// 成功时序列化 result 字段，失败时序列化 error 字段，logs 始终存在。
type DebugBody struct {
	Success bool
	Result  any
	Error   any
	Logs    []domain.LogRecord
}

// MarshalJSON 实现 json.Marshaler 接口。
func (b DebugBody) MarshalJSON() ([]byte, error) {
	logs := b.Logs
	if logs == nil {
		logs = []domain.LogRecord{}
	}
	if b.Success {
		return json.Marshal(struct {
			Success bool               `json:"success"`
			Result  any                `json:"result"`
			Logs    []domain.LogRecord `json:"logs"`
		}{true, b.Result, logs})
	}
	return json.Marshal(struct {
		Success bool               `json:"success"`
		Error   any                `json:"error"`
		Logs    []domain.LogRecord `json:"logs"`
	}{false, b.Error, logs})
}

// InvocationError 把失败结局重新表示为 Go 错误。
// errors.Is(err, domain.ErrInvocationFailed) 恒为真；处理器返回过 error 时，
// errors.Is / errors.As 同样可以匹配原始错误。
type InvocationError struct {
	// Value 是失败结局的值（归一化错误或原始值）
	Value any

	cause error
}

// Error 实现 error 接口。
func (e *InvocationError) Error() string {
	if ne, ok := e.Value.(*NormalizedError); ok {
		return fmt.Sprintf("%s: %s: %s", domain.ErrInvocationFailed, ne.Name, ne.Message)
	}
	return fmt.Sprintf("%s: %v", domain.ErrInvocationFailed, e.Value)
}

// Unwrap 返回哨兵错误以及原始错误（如果存在）。
func (e *InvocationError) Unwrap() []error {
	if e.cause == nil {
		return []error{domain.ErrInvocationFailed}
	}
	return []error{domain.ErrInvocationFailed, e.cause}
}
