package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/oriys/edgeharness/internal/capture"
	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/host"
	"github.com/oriys/edgeharness/internal/wrapper"
)

// Registry 维护按名称注册的处理器。
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]wrapper.Handler
}

// NewRegistry 创建一个已注册内置处理器的注册表。
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]wrapper.Handler)}
	r.Register("echo", wrapper.HandlerFunc(Echo))
	r.Register("fail", wrapper.HandlerFunc(Fail))
	r.Register("content", wrapper.HandlerFunc(Content))
	r.Register("balance", wrapper.HandlerFunc(Balance))
	return r
}

// Register 注册或替换处理器。
func (r *Registry) Register(name string, h wrapper.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup 按名称查找处理器，不存在时返回 ErrHandlerNotFound。
func (r *Registry) Lookup(name string) (wrapper.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrHandlerNotFound, name)
	}
	return h, nil
}

// Names 返回已注册处理器的名称，按字典序排列。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Echo 记录请求并将其作为 JSON 响应体返回。
func Echo(ctx context.Context, req *domain.HTTPRequest) (any, error) {
	l := capture.L(ctx)
	if req == nil {
		l.Warn("echo: empty request")
		return &domain.HTTPResponse{Status: 204}, nil
	}
	l.Info("echo", req.Method, req.Path)
	if req.Body != nil {
		l.Debug("body", req.Body.Kind().String())
	}

	headers := domain.Headers{}
	headers.Add("Content-Type", "application/json")
	return &domain.HTTPResponse{Status: 200, Headers: headers, Body: req}, nil
}

// Fail 总是失败，错误消息取自 query.message。
func Fail(ctx context.Context, req *domain.HTTPRequest) (any, error) {
	msg := "handler failed"
	if req != nil {
		if s, ok := req.Query["message"].AsString(); ok && s != "" {
			msg = s
		}
	}
	capture.L(ctx).Warn("fail: about to fail with", msg)
	return nil, domain.NewHandlerError("HandlerFailure", msg)
}

// Content 读取 query.hash 指定的内容并以文本返回。
func Content(ctx context.Context, req *domain.HTTPRequest) (any, error) {
	hst := host.FromContext(ctx)
	if hst == nil {
		return nil, domain.NewHandlerError("HostUnavailable", "no host bound to invocation")
	}
	hash, err := host.ParseHash(queryString(req, "hash"))
	if err != nil {
		return nil, domain.WrapHandlerError("BadRequest", err.Error(), err)
	}

	l := capture.L(ctx)
	ok, err := hst.FetchContent(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", hash, err)
	}
	if !ok {
		l.Warn("content not fetched", hash.String())
		return &domain.HTTPResponse{Status: 404, Body: "content not found"}, nil
	}

	handle, err := hst.LoadContent(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", hash, err)
	}
	var b strings.Builder
	for i := 0; i < handle.Len(); i++ {
		block, err := handle.ReadBlock(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("read block %d: %w", i, err)
		}
		l.Debug("read block", i, len(block))
		b.Write(block)
	}
	return &domain.HTTPResponse{Status: 200, Body: b.String()}, nil
}

// Balance 查询 query.account 的余额，query.kind 缺省为 flk。
func Balance(ctx context.Context, req *domain.HTTPRequest) (any, error) {
	hst := host.FromContext(ctx)
	if hst == nil {
		return nil, domain.NewHandlerError("HostUnavailable", "no host bound to invocation")
	}
	account, err := host.ParseAccount(queryString(req, "account"))
	if err != nil {
		return nil, domain.WrapHandlerError("BadRequest", err.Error(), err)
	}
	kind := host.BalanceFLK
	if k := queryString(req, "kind"); k != "" {
		if kind, err = host.ParseBalanceKind(k); err != nil {
			return nil, domain.WrapHandlerError("BadRequest", err.Error(), err)
		}
	}

	v, err := hst.QueryBalance(ctx, account, kind)
	if err != nil {
		return nil, fmt.Errorf("query balance: %w", err)
	}
	capture.L(ctx).Info("balance", account.String(), string(kind))
	return map[string]string{
		"account": account.String(),
		"kind":    string(kind),
		"balance": v.String(),
	}, nil
}

// queryString 返回查询参数的原始文本形式。
// 尽力解析会把十六进制串之类的值识别为数字，这里统一还原为文本。
func queryString(req *domain.HTTPRequest, key string) string {
	if req == nil {
		return ""
	}
	v, ok := req.Query[key]
	if !ok || v.IsNull() {
		return ""
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}
