// Package domain 定义了执行框架的核心领域模型。
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// HeaderField 表示一个响应头及其全部取值。
type HeaderField struct {
	Name   string
	Values []string
}

// Headers 是有序的响应头列表。
//
// 反序列化时接受以下四种形状，并保留 JSON 中的键顺序：
//   - {"name": "value"}
//   - {"name": ["v1", "v2"]}
//   - [["name", "value"]]
//   - [["name", ["v1", "v2"]]]
//
// 序列化时统一输出为有序的二元组列表，单值为字符串，多值为数组。
type Headers []HeaderField

// Add 追加一个响应头取值，同名头会合并到已有条目。
func (h *Headers) Add(name, value string) {
	for i := range *h {
		if strings.EqualFold((*h)[i].Name, name) {
			(*h)[i].Values = append((*h)[i].Values, value)
			return
		}
	}
	*h = append(*h, HeaderField{Name: name, Values: []string{value}})
}

// Get 返回指定响应头的第一个取值，名称大小写不敏感。
func (h Headers) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) && len(f.Values) > 0 {
			return f.Values[0]
		}
	}
	return ""
}

// Values 返回指定响应头的全部取值。
func (h Headers) Values(name string) []string {
	var out []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Values...)
		}
	}
	return out
}

// MarshalJSON 实现 json.Marshaler 接口。
func (h Headers) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, 0, len(h))
	for _, f := range h {
		if len(f.Values) == 1 {
			pairs = append(pairs, [2]any{f.Name, f.Values[0]})
			continue
		}
		values := f.Values
		if values == nil {
			values = []string{}
		}
		pairs = append(pairs, [2]any{f.Name, values})
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON 实现 json.Unmarshaler 接口。
func (h *Headers) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*h = nil
		return nil
	}

	switch trimmed[0] {
	case '{':
		return h.unmarshalObject(trimmed)
	case '[':
		return h.unmarshalPairs(trimmed)
	}
	return fmt.Errorf("%w: expected object or array", ErrInvalidHeaders)
}

// unmarshalObject 按出现顺序解析对象形式的响应头。
func (h *Headers) unmarshalObject(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeaders, err)
	}

	var out Headers
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidHeaders, err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: header name must be a string", ErrInvalidHeaders)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidHeaders, err)
		}
		values, err := headerValues(raw)
		if err != nil {
			return fmt.Errorf("%w: header %q: %v", ErrInvalidHeaders, name, err)
		}
		out = append(out, HeaderField{Name: name, Values: values})
	}
	*h = out
	return nil
}

// unmarshalPairs 解析二元组列表形式的响应头。
func (h *Headers) unmarshalPairs(data []byte) error {
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeaders, err)
	}

	out := make(Headers, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return fmt.Errorf("%w: entry %d must be a [name, value] pair", ErrInvalidHeaders, i)
		}
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			return fmt.Errorf("%w: entry %d name must be a string", ErrInvalidHeaders, i)
		}
		values, err := headerValues(pair[1])
		if err != nil {
			return fmt.Errorf("%w: header %q: %v", ErrInvalidHeaders, name, err)
		}
		out = append(out, HeaderField{Name: name, Values: values})
	}
	*h = out
	return nil
}

// headerValues 将单个字符串或字符串数组解析为取值列表。
func headerValues(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var multi []string
	if err := json.Unmarshal(raw, &multi); err != nil {
		return nil, fmt.Errorf("value must be a string or an array of strings")
	}
	return multi, nil
}

// HTTPResponse 是处理器返回的 HTTP 响应对象。
// 当函数通过 HTTP 调用时，该对象决定实际响应；否则原始 JSON 直接发送给调用方。
type HTTPResponse struct {
	// Status 状态码，必须能放入无符号 16 位整数
	Status uint16 `json:"status"`
	// Headers 响应头
	Headers Headers `json:"headers"`
	// Body 响应体，可以是任意值
	Body any `json:"body"`
}

// AsHTTPResponse 尝试把处理器结果识别为 HTTPResponse。
// 支持 *HTTPResponse、HTTPResponse，以及包含数值 status 字段的 JSON 对象
// （map[string]any、json.RawMessage 或 []byte）。
func AsHTTPResponse(v any) (*HTTPResponse, bool) {
	switch r := v.(type) {
	case *HTTPResponse:
		return r, r != nil
	case HTTPResponse:
		return &r, true
	case map[string]any:
		if _, ok := r["status"].(float64); !ok {
			return nil, false
		}
		data, err := json.Marshal(r)
		if err != nil {
			return nil, false
		}
		return decodeHTTPResponse(data)
	case json.RawMessage:
		return decodeHTTPResponse(r)
	case []byte:
		return decodeHTTPResponse(r)
	}
	return nil, false
}

// decodeHTTPResponse 解析 JSON 形式的响应对象，要求存在数值 status 字段。
func decodeHTTPResponse(data []byte) (*HTTPResponse, bool) {
	var shape struct {
		Status *json.Number `json:"status"`
	}
	if err := json.Unmarshal(data, &shape); err != nil || shape.Status == nil {
		return nil, false
	}
	var resp HTTPResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}
