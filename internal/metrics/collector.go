// Package metrics 提供 Prometheus 指标采集与上报的统一封装。
// 该包集中定义调用包装器的关键指标，便于在服务与命令行之间复用并保持标签一致。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oriys/edgeharness/internal/domain"
)

// Metrics 封装调用运行时指标集合。
//
// 指标分类:
//   - 调用指标: 跟踪调用的数量与耗时，按处理器、结局与模式区分
//   - 捕获指标: 按级别统计捕获的诊断日志数量
//   - 稳定性指标: 统计处理器 panic 次数
type Metrics struct {
	// ========== 调用相关指标 ==========

	// InvocationsTotal 调用总次数计数器
	// 标签: handler, status (success/failed), mode (debug/plain)
	InvocationsTotal *prometheus.CounterVec

	// InvocationDuration 调用耗时直方图（单位：毫秒）
	// 标签: handler, mode
	InvocationDuration *prometheus.HistogramVec

	// ========== 捕获相关指标 ==========

	// CapturedRecords 捕获的诊断日志条数
	// 标签: handler, level
	CapturedRecords *prometheus.CounterVec

	// ========== 稳定性相关指标 ==========

	// HandlerPanics 处理器 panic 次数
	// 标签: handler
	HandlerPanics *prometheus.CounterVec

	// RedirectConflicts 因进程级重定向已被占用而退化为注入捕获的次数
	RedirectConflicts prometheus.Counter
}

// NewMetrics 创建并注册一组 Prometheus 指标。
// namespace 用于作为所有指标名前缀；reg 为 nil 时注册到默认注册表。
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		InvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of handler invocations",
			},
			[]string{"handler", "status", "mode"},
		),
		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_ms",
				Help:      "Handler invocation duration in milliseconds",
				Buckets:   []float64{1, 5, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"handler", "mode"},
		),
		CapturedRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captured_records_total",
				Help:      "Total number of diagnostic records captured during invocations",
			},
			[]string{"handler", "level"},
		),
		HandlerPanics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_panics_total",
				Help:      "Total number of recovered handler panics",
			},
			[]string{"handler"},
		),
		RedirectConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redirect_conflicts_total",
				Help:      "Invocations that requested process-wide redirection while it was held",
			},
		),
	}
}

// mode 返回调用模式标签值。
func mode(debug bool) string {
	if debug {
		return "debug"
	}
	return "plain"
}

// RecordInvocation 记录一次调用的统计信息。
// durationMs 为调用耗时（毫秒）。
func (m *Metrics) RecordInvocation(handler string, status domain.InvocationStatus, debug bool, durationMs float64) {
	m.InvocationsTotal.WithLabelValues(handler, string(status), mode(debug)).Inc()
	m.InvocationDuration.WithLabelValues(handler, mode(debug)).Observe(durationMs)
}

// RecordLogs 按级别累加本次调用捕获的日志条数。
func (m *Metrics) RecordLogs(handler string, records []domain.LogRecord) {
	counts := make(map[domain.LogLevel]int, 4)
	for _, rec := range records {
		counts[rec.Level]++
	}
	for level, n := range counts {
		m.CapturedRecords.WithLabelValues(handler, string(level)).Add(float64(n))
	}
}

// RecordPanic 记录一次处理器 panic。
func (m *Metrics) RecordPanic(handler string) {
	m.HandlerPanics.WithLabelValues(handler).Inc()
}

// RecordRedirectConflict 记录一次重定向冲突。
func (m *Metrics) RecordRedirectConflict() {
	m.RedirectConflicts.Inc()
}
