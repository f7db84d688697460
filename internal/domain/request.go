// Package domain 定义了执行框架的核心领域模型。
package domain

import (
	"fmt"
	"strings"
)

// HTTPMethod 表示 HTTP 请求方法。
type HTTPMethod string

// 受支持的 HTTP 请求方法
const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodPatch  HTTPMethod = "PATCH"
	MethodDelete HTTPMethod = "DELETE"
	MethodHead   HTTPMethod = "HEAD"
)

// ParseHTTPMethod 解析请求方法，大小写不敏感。
//
// 参数:
//   - s: 方法名称
//
// 返回:
//   - HTTPMethod: 规范化（大写）后的方法
//   - error: 不受支持时返回 ErrInvalidMethod
func ParseHTTPMethod(s string) (HTTPMethod, error) {
	m := HTTPMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
}

// DebugQueryKey 是请求调试模式的查询参数名。
const DebugQueryKey = "debug"

// HTTPRequest 是传递给处理器的请求对象。
// 框架原样转发该对象，仅读取 Query 中的 debug 参数。
type HTTPRequest struct {
	// Method 请求方法
	Method HTTPMethod `json:"method"`
	// Path 请求路径，为空时视为 "/"
	Path string `json:"path"`
	// Headers 请求头，键为小写名称
	Headers map[string]string `json:"headers,omitempty"`
	// Query 查询参数，每个值都经过尽力解析
	Query map[string]Value `json:"query,omitempty"`
	// Body 请求体，经过尽力解析；nil 表示无请求体
	Body *Value `json:"body,omitempty"`
}

// Normalize 补齐默认值：空路径设置为 "/"，方法统一为大写。
func (r *HTTPRequest) Normalize() {
	if r.Path == "" {
		r.Path = "/"
	}
	r.Method = HTTPMethod(strings.ToUpper(string(r.Method)))
}

// Validate 校验请求方法是否受支持。
func (r *HTTPRequest) Validate() error {
	_, err := ParseHTTPMethod(string(r.Method))
	return err
}

// DebugRequested 判断请求是否要求调试模式。
// Query 缺失、debug 缺失或其值为假时均返回 false。
func (r *HTTPRequest) DebugRequested() bool {
	if r == nil || r.Query == nil {
		return false
	}
	return r.Query[DebugQueryKey].Truthy()
}
