package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/oriys/edgeharness/internal/auth"
	"github.com/oriys/edgeharness/internal/harness"
	"github.com/oriys/edgeharness/internal/metrics"
	"github.com/oriys/edgeharness/internal/wrapper"
)

func newTestRouter(t *testing.T, name string, h wrapper.Handler, historySize int) (http.Handler, *Handler) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	hs := harness.New(name, h,
		harness.WithLogger(logger),
		harness.WithMetrics(metrics.NewMetrics("test", reg)),
	)
	handler := NewHandler(hs, logger, 502, historySize)
	return NewRouter(&RouterConfig{
		Handler:     handler,
		Logger:      logger,
		ServiceName: "edgeharness-test",
		Gatherer:    reg,
	}), handler
}

// TestRouter_Invoke 测试请求被转发给处理器并按调用结局写出。
func TestRouter_Invoke(t *testing.T) {
	router, _ := newTestRouter(t, "echo", wrapper.HandlerFunc(harness.Echo), 0)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		validate   func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:       "echo response drives status",
			method:     http.MethodPost,
			target:     "/orders?id=7",
			body:       `{"n":1}`,
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var got map[string]interface{}
				if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
					t.Fatalf("invalid JSON: %v", err)
				}
				if got["method"] != "POST" || got["path"] != "/orders" {
					t.Errorf("echoed request = %v", got)
				}
				if rec.Header().Get("X-Invocation-ID") == "" {
					t.Error("X-Invocation-ID header missing")
				}
			},
		},
		{
			name:       "debug envelope",
			method:     http.MethodGet,
			target:     "/?debug=true",
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var body struct {
					Success bool              `json:"success"`
					Logs    []json.RawMessage `json:"logs"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("invalid JSON: %v", err)
				}
				if !body.Success || len(body.Logs) == 0 {
					t.Errorf("envelope = %s", rec.Body.String())
				}
			},
		},
		{
			name:       "preflight answered by cors",
			method:     http.MethodOptions,
			target:     "/anything",
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
					t.Error("CORS headers missing")
				}
			},
		},
		{
			name:       "unsupported method",
			method:     "TRACE",
			target:     "/",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.validate != nil {
				tt.validate(t, rec)
			}
		})
	}
}

// TestRouter_Failure 测试非调试失败使用配置的状态码。
func TestRouter_Failure(t *testing.T) {
	failing := wrapper.HandlerFunc(harness.Fail)
	router, _ := newTestRouter(t, "fail", failing, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?message=nope", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["message"] != "nope" || got["name"] != "HandlerFailure" {
		t.Errorf("failure body = %v", got)
	}
}

// TestRouter_Health 测试健康检查与就绪探针。
func TestRouter_Health(t *testing.T) {
	router, handler := newTestRouter(t, "echo", wrapper.HandlerFunc(harness.Echo), 0)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}

	handler.SetReadiness(func() error { return errors.New("module not loaded") })
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "module not loaded") {
		t.Errorf("ready body = %s", rec.Body.String())
	}
}

// TestRouter_Metrics 测试 /metrics 暴露调用指标。
func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t, "echo", wrapper.HandlerFunc(harness.Echo), 0)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_invocations_total") {
		t.Errorf("metrics output missing invocations counter:\n%s", rec.Body.String())
	}
}

// TestRouter_Invocations 测试调用记录的查询与淘汰。
func TestRouter_Invocations(t *testing.T) {
	router, handler := newTestRouter(t, "echo", wrapper.HandlerFunc(harness.Echo), 2)

	var ids []string
	for _, path := range []string{"/a", "/b", "/c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		ids = append(ids, rec.Header().Get("X-Invocation-ID"))
	}

	recent := handler.Recent()
	if len(recent) != 2 || recent[0].ID != ids[2] || recent[1].ID != ids[1] {
		t.Fatalf("Recent() = %v, want newest two of %v", recent, ids)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ControlPrefix+"/invocations", nil))
	var list struct {
		Handler string `json:"handler"`
		Total   int    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if list.Handler != "echo" || list.Total != 2 {
		t.Errorf("list = %+v", list)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ControlPrefix+"/invocations/"+ids[2], nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"path":"/c"`) {
		t.Errorf("get = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ControlPrefix+"/invocations/"+ids[0], nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("evicted invocation status = %d, want 404", rec.Code)
	}
}

// TestRouter_ControlAuth 测试控制接口的 API Key 认证不影响处理器路由。
func TestRouter_ControlAuth(t *testing.T) {
	logger, _ := test.NewNullLogger()
	keys, err := auth.NewStaticKeys([]string{auth.HashAPIKey("eh_secret")})
	if err != nil {
		t.Fatalf("NewStaticKeys() error: %v", err)
	}
	hs := harness.New("echo", wrapper.HandlerFunc(harness.Echo), harness.WithLogger(logger))
	router := NewRouter(&RouterConfig{
		Handler: NewHandler(hs, logger, 0, 0),
		Logger:  logger,
		Auth:    auth.NewMiddleware("", keys, true),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ControlPrefix+"/invocations", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("control without key status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, ControlPrefix+"/invocations", nil)
	req.Header.Set(auth.DefaultAPIKeyHeader, "eh_secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("control with key status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("handler route status = %d, want 200", rec.Code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics without gatherer should reach the handler, status = %d", rec.Code)
	}
}
