// Package api 提供了执行框架的 HTTP 接口。
// 该文件包含调用处理器：把每个 HTTP 请求转换为一次处理器调用，并保留最近的调用记录供查询。
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/httpio"
	"github.com/oriys/edgeharness/internal/wrapper"
)

// DefaultHistorySize 是默认保留的调用记录条数。
const DefaultHistorySize = 100

// Invoker 定义了执行一次调用的能力，由 harness.Harness 实现。
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, req *domain.HTTPRequest) (*wrapper.Result, *domain.Invocation)
}

// Handler 是 HTTP 调用处理器。
// 它持有调用编排器和最近调用记录的环形缓冲区，可被并发使用。
type Handler struct {
	invoker       Invoker
	logger        *logrus.Logger
	failureStatus int
	ready         func() error

	mu      sync.RWMutex
	history []*domain.Invocation
	next    int
	size    int
}

// NewHandler 创建 HTTP 调用处理器。
//
// 参数：
//   - invoker: 调用编排器
//   - logger: 平台日志记录器
//   - failureStatus: 非调试模式下调用失败时使用的状态码，0 表示 500
//   - historySize: 保留的调用记录条数，小于等于 0 时使用 DefaultHistorySize
//
// 返回值：
//   - *Handler: 新创建的处理器实例
func NewHandler(invoker Invoker, logger *logrus.Logger, failureStatus, historySize int) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Handler{
		invoker:       invoker,
		logger:        logger,
		failureStatus: failureStatus,
		history:       make([]*domain.Invocation, historySize),
	}
}

// SetReadiness 设置就绪检查函数，返回错误时 /health/ready 报告未就绪。
func (h *Handler) SetReadiness(fn func() error) {
	h.ready = fn
}

// Invoke 处理一次调用请求。
// HTTP端点: ANY /*
//
// 处理流程：
//  1. 把 HTTP 请求解码为处理器请求
//  2. 通过调用编排器执行处理器
//  3. 按调用结局写出响应，并在 X-Invocation-ID 头中返回调用 ID
//
// 返回值：
//   - 400: 请求方法不受支持或请求体无法读取
//   - 其他：由调用结局决定
func (h *Handler) Invoke(w http.ResponseWriter, r *http.Request) {
	req, err := httpio.DecodeRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, inv := h.invoker.Invoke(r.Context(), req)
	h.remember(inv)

	w.Header().Set("X-Invocation-ID", inv.ID)
	if err := httpio.WriteResult(w, res, h.failureStatus); err != nil {
		h.logger.WithError(err).WithField("invocation_id", inv.ID).Error("Failed to write invocation response")
	}
}

// ListInvocations 返回最近的调用记录，最新的在前。
// HTTP端点: GET /_harness/invocations
func (h *Handler) ListInvocations(w http.ResponseWriter, r *http.Request) {
	invocations := h.Recent()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"handler":     h.invoker.Name(),
		"invocations": invocations,
		"total":       len(invocations),
	})
}

// GetInvocation 按 ID 返回一条调用记录。
// HTTP端点: GET /_harness/invocations/{id}
//
// 返回值：
//   - 200: 调用记录
//   - 404: 记录不存在或已被淘汰
func (h *Handler) GetInvocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, inv := range h.Recent() {
		if inv.ID == id {
			writeJSON(w, http.StatusOK, inv)
			return
		}
	}
	writeError(w, r, http.StatusNotFound, domain.ErrInvocationNotFound.Error())
}

// Health 处理基本健康检查请求。
// HTTP端点: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "handler": h.invoker.Name()})
}

// Ready 处理就绪探针请求。
// HTTP端点: GET /health/ready
//
// 返回值：
//   - 200: 服务就绪
//   - 503: 处理器尚未加载
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Live 处理存活探针请求。
// HTTP端点: GET /health/live
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Recent 返回缓冲区中的调用记录，最新的在前。
func (h *Handler) Recent() []*domain.Invocation {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*domain.Invocation, 0, h.size)
	for i := 1; i <= h.size; i++ {
		idx := (h.next - i + len(h.history)) % len(h.history)
		out = append(out, h.history[idx])
	}
	return out
}

// remember 把调用记录写入环形缓冲区，满时覆盖最旧的一条。
func (h *Handler) remember(inv *domain.Invocation) {
	if inv == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history[h.next] = inv
	h.next = (h.next + 1) % len(h.history)
	if h.size < len(h.history) {
		h.size++
	}
}

// writeJSON 以 JSON 格式写入 HTTP 响应。
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse 是平台错误的响应结构体。
// 处理器自身的失败不使用该结构，而是按调用结局写出。
type ErrorResponse struct {
	Error     string `json:"error"`                // 错误消息
	RequestID string `json:"request_id,omitempty"` // 请求ID，用于关联日志
}

// writeError 写入平台错误响应，并附带 middleware.RequestID 生成的请求 ID。
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
