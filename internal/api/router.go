// Package api 提供了执行框架的 HTTP 接口。
// 该文件负责配置HTTP路由器和中间件，将HTTP请求映射到相应的处理器方法。
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/oriys/edgeharness/internal/auth"
	"github.com/oriys/edgeharness/internal/telemetry"
)

// ControlPrefix 是框架自身接口的路径前缀，该前缀下的请求不会转发给处理器。
const ControlPrefix = "/_harness"

// RouterConfig 路由器配置选项
type RouterConfig struct {
	// Handler 调用处理器
	Handler *Handler
	// Logger 日志记录器
	Logger *logrus.Logger
	// ServiceName 追踪中使用的服务名称
	ServiceName string
	// Gatherer 指标采集来源，为 nil 时不注册 /metrics
	Gatherer prometheus.Gatherer
	// RequestTimeout 单个请求的超时时间，0 表示不设置
	RequestTimeout time.Duration
	// AccessLog 是否输出访问日志
	AccessLog bool
	// Auth 控制接口认证中间件，为 nil 时控制接口不要求认证
	Auth *auth.Middleware
}

// NewRouter 创建并配置HTTP路由器。
//
// 参数：
//   - cfg: 路由器配置
//
// 返回值：
//   - *chi.Mux: 配置完成的路由器实例
//
// 路由结构：
//
//	/health                       - 基本健康检查
//	/health/ready                 - 就绪探针
//	/health/live                  - 存活探针
//	/metrics                      - Prometheus指标端点（配置了 Gatherer 时）
//	/_harness/invocations         - 最近的调用记录（可要求 API Key）
//	/_harness/invocations/{id}    - 单条调用记录
//	/*                            - 其余请求全部交给处理器
func NewRouter(cfg *RouterConfig) *chi.Mux {
	h := cfg.Handler
	r := chi.NewRouter()

	// 中间件按照添加顺序执行，形成洋葱模型
	r.Use(telemetry.HTTPMiddleware(cfg.ServiceName))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(corsMiddleware)

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	r.Get("/health/live", h.Live)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route(ControlPrefix, func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Authenticate)
		}
		r.Get("/invocations", h.ListInvocations)
		r.Get("/invocations/{id}", h.GetInvocation)
	})

	r.HandleFunc("/*", h.Invoke)
	return r
}

// corsMiddleware 是处理跨域资源共享(CORS)的中间件。
// 预检请求（OPTIONS）在这里直接应答，不会到达处理器。
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "X-Invocation-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
