// Package domain 定义了执行框架的核心领域模型。
package domain

import (
	"time"
)

// InvocationStatus 表示一次调用的状态类型。
type InvocationStatus string

// 调用状态常量定义
const (
	// InvocationStatusRunning 表示调用正在执行中
	InvocationStatusRunning InvocationStatus = "running"
	// InvocationStatusSuccess 表示调用执行成功
	InvocationStatusSuccess InvocationStatus = "success"
	// InvocationStatusFailed 表示调用执行失败
	InvocationStatusFailed InvocationStatus = "failed"
)

// Invocation 表示宿主侧的一次调用记录。
// 该结构体用于平台日志和调用事件，不包含处理器的返回值本身。
type Invocation struct {
	// ID 是调用记录的唯一标识符
	ID string `json:"id"`
	// Handler 是被调用处理器的名称
	Handler string `json:"handler"`
	// Method 是请求方法
	Method HTTPMethod `json:"method"`
	// Path 是请求路径
	Path string `json:"path"`
	// Debug 表示本次调用是否处于调试模式
	Debug bool `json:"debug"`
	// Status 是调用的当前状态
	Status InvocationStatus `json:"status"`
	// Error 是调用失败时的错误信息
	Error string `json:"error,omitempty"`
	// LogCount 是本次调用捕获的日志条数
	LogCount int `json:"log_count"`
	// StartedAt 是调用开始执行的时间
	StartedAt time.Time `json:"started_at"`
	// CompletedAt 是调用执行完成的时间
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// DurationMs 是调用的实际执行时长（单位：毫秒）
	DurationMs int64 `json:"duration_ms"`
}

// NewInvocation 创建一个处于 running 状态的调用记录。
//
// 参数:
//   - id: 调用 ID
//   - handler: 处理器名称
//   - req: 调用请求，可以为 nil
//
// 返回:
//   - *Invocation: 新创建的调用记录指针
func NewInvocation(id, handler string, req *HTTPRequest) *Invocation {
	inv := &Invocation{
		ID:        id,
		Handler:   handler,
		Status:    InvocationStatusRunning,
		StartedAt: time.Now(),
	}
	if req != nil {
		// 记录使用规范化后的方法与路径，请求本身保持不变
		normalized := *req
		normalized.Normalize()
		inv.Method = normalized.Method
		inv.Path = normalized.Path
		inv.Debug = req.DebugRequested()
	}
	return inv
}

// Complete 标记调用执行成功完成。
func (i *Invocation) Complete(logCount int) {
	i.finish(InvocationStatusSuccess, logCount)
}

// Fail 标记调用执行失败，并记录错误信息。
func (i *Invocation) Fail(errMsg string, logCount int) {
	i.Error = errMsg
	i.finish(InvocationStatusFailed, logCount)
}

func (i *Invocation) finish(status InvocationStatus, logCount int) {
	now := time.Now()
	i.Status = status
	i.LogCount = logCount
	i.CompletedAt = &now
	i.DurationMs = now.Sub(i.StartedAt).Milliseconds()
}
