// Package wrapper 实现处理器的调用包装。
//
// Wrap 恰好调用一次处理器，在调用期间捕获全部诊断日志，并把结果整形为
// 可传输的形式：
//   - 非调试模式：成功时原样返回处理器结果，失败时返回归一化后的错误值
//   - 调试模式（query.debug 为真）：返回 {body: {success, result|error, logs}}
//
// 包装器从不把失败传播给自己的调用方，所有结局都成为返回值。需要区分成功
// 与失败的宿主可以读取 Result.Success，或通过 Result.Err 重新得到错误。
package wrapper

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/oriys/edgeharness/internal/capture"
	"github.com/oriys/edgeharness/internal/domain"
)

// Handler 是用户提供的请求处理器。
// 返回值可以是任意可序列化的值，通常为 *domain.HTTPResponse。
type Handler interface {
	Handle(ctx context.Context, req *domain.HTTPRequest) (any, error)
}

// HandlerFunc 把普通函数适配为 Handler。
type HandlerFunc func(ctx context.Context, req *domain.HTTPRequest) (any, error)

// Handle 实现 Handler 接口。
func (f HandlerFunc) Handle(ctx context.Context, req *domain.HTTPRequest) (any, error) {
	return f(ctx, req)
}

// LogOptions 是诊断子系统的配置。
type LogOptions struct {
	// Level 最低日志级别，当前仅随配置携带，不参与过滤
	Level domain.LogLevel `yaml:"level" json:"level,omitempty"`
}

// Options 是调用包装器的配置。
type Options struct {
	// Log 诊断日志配置
	Log LogOptions `yaml:"log" json:"log"`
	// Redirect 为真时在调用期间把进程级全局日志器重定向到本次会话
	Redirect bool `yaml:"redirect" json:"redirect"`
}

// Result 是一次调用的显式结局。
type Result struct {
	// Debug 表示调用方请求了调试模式
	Debug bool
	// Success 表示处理器是否成功返回
	Success bool
	// Value 是成功时处理器的返回值
	Value any
	// Error 是失败时归一化后的错误值（*NormalizedError），或无法归一化的原始值
	Error any
	// Logs 是本次调用捕获的全部日志记录，按写入顺序排列
	Logs []domain.LogRecord
	// Redirected 表示本次调用是否成功占用了进程级重定向
	Redirected bool
	// Panicked 表示失败由处理器 panic 引起
	Panicked bool
	// StartedAt 是调用开始时间
	StartedAt time.Time
	// Duration 是处理器的执行时长
	Duration time.Duration

	cause error
}

// Wrap 调用处理器并返回调用结局。
//
// 执行步骤：
//  1. 根据 req.Query["debug"] 的真值确定是否为调试模式，缺失时为 false
//  2. 创建捕获会话并绑定到传给处理器的上下文
//  3. 调用处理器一次并等待其结束；panic 会被恢复并视为失败
//  4. 处理器结束后一次性读取会话中的全部记录
//
// 参数：
//   - ctx: 调用上下文，原样传递给处理器（包装器不附加超时）
//   - h: 处理器
//   - req: 请求，可以为 nil
//   - opts: 包装器配置，可以为 nil
//
// 返回：
//   - *Result: 调用结局，永不为 nil
func Wrap(ctx context.Context, h Handler, req *domain.HTTPRequest, opts *Options) *Result {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &Options{}
	}

	res := &Result{Debug: req.DebugRequested()}
	session := capture.Begin()

	res.StartedAt = time.Now()
	out := invoke(capture.WithSession(ctx, session), h, req, session, opts)
	res.Duration = time.Since(res.StartedAt)

	res.Logs = session.Records()
	res.Redirected = out.redirected
	if out.failed {
		res.Error = out.failure
		res.Panicked = out.panicked
		res.cause = out.cause
		return res
	}
	res.Success = true
	res.Value = out.value
	return res
}

// outcome 是 invoke 的内部结果。
type outcome struct {
	value      any
	failure    any
	cause      error
	failed     bool
	panicked   bool
	redirected bool
}

// invoke 执行处理器并恢复可能发生的 panic。
// 重定向在处理器结束（包括 panic）之后恢复。
func invoke(ctx context.Context, h Handler, req *domain.HTTPRequest, session *capture.Session, opts *Options) (out outcome) {
	if opts.Redirect {
		if restore, err := capture.Redirect(session); err == nil {
			out.redirected = true
			defer restore()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			out.value = nil
			out.failed = true
			out.panicked = true
			out.failure, out.cause = normalizePanic(r, string(debug.Stack()))
		}
	}()

	v, err := h.Handle(ctx, req)
	if err != nil {
		out.failed = true
		out.failure = Normalize(err)
		out.cause = err
		return out
	}
	out.value = v
	return out
}

// Envelope 返回调用结局的传输形式。
//
// 非调试模式下成功返回处理器结果本身，失败返回错误值本身；
// 调试模式下返回 *DebugEnvelope。
// 返回值都经过 JSONSafe，无法编码的部分（NaN、函数等）被替换，
// 可以直接编码的值保持原样。
func (r *Result) Envelope() any {
	if r.Debug {
		body := DebugBody{Success: r.Success, Logs: safeRecords(r.Logs)}
		if r.Success {
			body.Result = JSONSafe(r.Value)
		} else {
			body.Error = JSONSafe(r.Error)
		}
		return &DebugEnvelope{Body: body}
	}
	if r.Success {
		return JSONSafe(r.Value)
	}
	return JSONSafe(r.Error)
}

// Err 在调用失败时返回 *InvocationError，成功时返回 nil。
// 宿主可以据此决定是否重新抛出失败。
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return &InvocationError{Value: r.Error, cause: r.cause}
}
