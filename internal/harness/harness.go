// Package harness 负责宿主侧的一次调用编排。
//
// Harness 在包装器之外补充平台能力：为调用分配 ID、创建追踪 Span、
// 绑定宿主能力、记录指标与平台日志，并在调用结束后发布事件。
// 包装器的语义保持不变：失败永远以返回值的形式交给调用方。
package harness

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/host"
	"github.com/oriys/edgeharness/internal/metrics"
	"github.com/oriys/edgeharness/internal/telemetry"
	"github.com/oriys/edgeharness/internal/wrapper"
)

// Publisher 定义调用完成事件的发布能力。
type Publisher interface {
	PublishInvocationCompleted(ctx context.Context, inv *domain.Invocation) error
}

// Harness 是绑定了单个处理器的调用编排器，可被并发使用。
type Harness struct {
	name      string
	handler   wrapper.Handler
	opts      wrapper.Options
	host      host.Host
	metrics   *metrics.Metrics
	publisher Publisher
	logger    *logrus.Logger
}

// Option 配置 Harness。
type Option func(*Harness)

// WithOptions 设置包装器配置。
func WithOptions(opts wrapper.Options) Option {
	return func(h *Harness) { h.opts = opts }
}

// WithHost 设置绑定到处理器上下文的宿主能力。
func WithHost(hst host.Host) Option {
	return func(h *Harness) { h.host = hst }
}

// WithMetrics 设置指标收集器。
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithPublisher 设置事件发布器。
func WithPublisher(p Publisher) Option {
	return func(h *Harness) { h.publisher = p }
}

// WithLogger 设置平台日志记录器。
func WithLogger(logger *logrus.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// New 创建调用编排器。
//
// 参数：
//   - name: 处理器名称，用于指标标签、日志与事件主题
//   - handler: 被调用的处理器
//   - opts: 可选配置
//
// 返回：
//   - *Harness: 调用编排器
func New(name string, handler wrapper.Handler, opts ...Option) *Harness {
	h := &Harness{name: name, handler: handler}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logrus.StandardLogger()
	}
	if h.host == nil {
		h.host = host.NewMemory()
	}
	return h
}

// Name 返回处理器名称。
func (h *Harness) Name() string { return h.name }

// Invoke 执行一次调用。
//
// 执行步骤：
//  1. 生成调用 ID 并创建 running 状态的调用记录
//  2. 创建追踪 Span，把宿主能力绑定到上下文
//  3. 通过 wrapper.Wrap 调用处理器
//  4. 更新调用记录，记录指标与平台日志，发布完成事件
//
// 事件发布失败只记录日志，不影响调用结局。
//
// 返回：
//   - *wrapper.Result: 调用结局，永不为 nil
//   - *domain.Invocation: 已完成的调用记录
func (h *Harness) Invoke(ctx context.Context, req *domain.HTTPRequest) (*wrapper.Result, *domain.Invocation) {
	inv := domain.NewInvocation(uuid.New().String(), h.name, req)

	ctx, span := telemetry.StartSpan(ctx, "invoke "+h.name,
		trace.WithAttributes(
			attribute.String("edgeharness.invocation_id", inv.ID),
			attribute.String("edgeharness.handler", h.name),
			attribute.String("http.method", string(inv.Method)),
			attribute.String("http.route", inv.Path),
			attribute.Bool("edgeharness.debug", inv.Debug),
		),
	)

	res := wrapper.Wrap(host.WithHost(ctx, h.host), h.handler, req, &h.opts)

	var failure string
	if res.Success {
		inv.Complete(len(res.Logs))
	} else {
		failure = Describe(res.Error)
		inv.Fail(failure, len(res.Logs))
	}
	telemetry.EndSpan(span, failure, len(res.Logs))

	h.record(res, inv)
	entry := telemetry.EntryWithTraceContext(ctx, h.logger.WithFields(logrus.Fields{
		"invocation_id": inv.ID,
		"handler":       inv.Handler,
		"method":        inv.Method,
		"path":          inv.Path,
		"status":        inv.Status,
		"debug":         inv.Debug,
		"log_count":     inv.LogCount,
		"duration_ms":   inv.DurationMs,
	}))
	if h.opts.Redirect && !res.Redirected {
		entry.Warn("Process-wide redirection busy, global loggers not captured")
	}
	if res.Success {
		entry.Info("Invocation completed")
	} else {
		entry.WithField("error", failure).Warn("Invocation failed")
	}

	if h.publisher != nil {
		if err := h.publisher.PublishInvocationCompleted(ctx, inv); err != nil {
			entry.WithError(err).Error("Failed to publish invocation event")
		}
	}
	return res, inv
}

// record 更新调用指标。
func (h *Harness) record(res *wrapper.Result, inv *domain.Invocation) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordInvocation(h.name, inv.Status, inv.Debug, float64(res.Duration.Microseconds())/1000)
	h.metrics.RecordLogs(h.name, res.Logs)
	if res.Panicked {
		h.metrics.RecordPanic(h.name)
	}
	if h.opts.Redirect && !res.Redirected {
		h.metrics.RecordRedirectConflict()
	}
}

// Describe 返回失败值的单行描述，用于日志与调用记录。
func Describe(failure any) string {
	switch v := failure.(type) {
	case *wrapper.NormalizedError:
		return v.Name + ": " + v.Message
	case nil:
		return "unknown failure"
	default:
		return fmt.Sprintf("%v", v)
	}
}
