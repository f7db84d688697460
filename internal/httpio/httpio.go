// Package httpio 负责 net/http 与领域请求/响应形状之间的转换。
package httpio

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/wrapper"
)

// MaxBodyBytes 是读取请求体的上限。
const MaxBodyBytes = 6 * 1024 * 1024

// DecodeRequest 把 HTTP 请求转换为处理器请求。
//
// 请求头名称统一为小写，同名多值以 ", " 连接；查询参数与请求体经过
// domain.ParseValue 尽力解析，空请求体视为不存在。
//
// 参数:
//   - r: HTTP 请求
//
// 返回:
//   - *domain.HTTPRequest: 处理器请求
//   - error: 方法不受支持或读取请求体失败时返回错误
func DecodeRequest(r *http.Request) (*domain.HTTPRequest, error) {
	method, err := domain.ParseHTTPMethod(r.Method)
	if err != nil {
		return nil, err
	}

	req := &domain.HTTPRequest{Method: method, Path: r.URL.Path}
	if len(r.Header) > 0 {
		req.Headers = make(map[string]string, len(r.Header))
		for name, values := range r.Header {
			req.Headers[strings.ToLower(name)] = strings.Join(values, ", ")
		}
	}

	if q := r.URL.Query(); len(q) > 0 {
		req.Query = make(map[string]domain.Value, len(q))
		for key, values := range q {
			var raw string
			if len(values) > 0 {
				raw = values[len(values)-1]
			}
			req.Query[key] = domain.ParseValue(raw)
		}
	}

	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if len(data) > 0 {
			body := domain.ParseValue(string(data))
			req.Body = &body
		}
	}

	req.Normalize()
	return req, nil
}

// WriteResult 把调用结局写入 HTTP 响应。
//
// 写出规则:
//   - 调试模式：包装的 body 即响应体，以 JSON 写出，状态码 200
//   - 非调试失败：错误值以 JSON 写出，状态码为 failureStatus
//   - 成功且结果是 HTTPResponse：由其决定状态码、响应头与响应体
//   - 其他成功结果：以 JSON 写出，状态码 200
//
// 响应无法编码时写出 500 平台错误并返回错误。
func WriteResult(w http.ResponseWriter, res *wrapper.Result, failureStatus int) error {
	if res.Debug {
		// 调试包装本身是 {body: ...} 形式的响应，其 body 交给客户端
		env := res.Envelope().(*wrapper.DebugEnvelope)
		return writeJSON(w, http.StatusOK, env.Body)
	}
	if !res.Success {
		if failureStatus == 0 {
			failureStatus = http.StatusInternalServerError
		}
		return writeJSON(w, failureStatus, res.Envelope())
	}
	if resp, ok := domain.AsHTTPResponse(res.Value); ok {
		return WriteResponse(w, resp)
	}
	return writeJSON(w, http.StatusOK, res.Envelope())
}

// WriteResponse 按 HTTPResponse 写出响应。
// 状态码为 0 时按 200 处理；字符串响应体原样写出，其他响应体以 JSON 写出。
func WriteResponse(w http.ResponseWriter, resp *domain.HTTPResponse) error {
	status := int(resp.Status)
	if status == 0 {
		status = http.StatusOK
	}
	for _, field := range resp.Headers {
		for _, v := range field.Values {
			w.Header().Add(field.Name, v)
		}
	}

	switch body := resp.Body.(type) {
	case nil:
		w.WriteHeader(status)
		return nil
	case string:
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(status)
		_, err := io.WriteString(w, body)
		return err
	case []byte:
		w.WriteHeader(status)
		_, err := w.Write(body)
		return err
	default:
		return writeJSON(w, status, wrapper.JSONSafe(body))
	}
}

// encodeFailureBody 是响应无法编码时写出的平台错误
const encodeFailureBody = `{"error":"failed to encode response"}`

func writeJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, encodeFailureBody)
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}
