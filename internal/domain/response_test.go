// Package domain 定义了执行框架的核心领域模型。
package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

// TestHeaders_UnmarshalShapes 测试四种响应头形状均能被解析且保留顺序。
func TestHeaders_UnmarshalShapes(t *testing.T) {
	tests := []struct {
		name  string  // 测试用例名称
		input string  // JSON 输入
		want  Headers // 期望结果
	}{
		{
			name:  "object single",
			input: `{"b":"2","a":"1"}`,
			want:  Headers{{Name: "b", Values: []string{"2"}}, {Name: "a", Values: []string{"1"}}},
		},
		{
			name:  "object multi",
			input: `{"set-cookie":["x=1","y=2"]}`,
			want:  Headers{{Name: "set-cookie", Values: []string{"x=1", "y=2"}}},
		},
		{
			name:  "pairs single",
			input: `[["content-type","text/plain"]]`,
			want:  Headers{{Name: "content-type", Values: []string{"text/plain"}}},
		},
		{
			name:  "pairs multi",
			input: `[["vary",["a","b"]],["x","y"]]`,
			want:  Headers{{Name: "vary", Values: []string{"a", "b"}}, {Name: "x", Values: []string{"y"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Headers
			if err := json.Unmarshal([]byte(tt.input), &h); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !reflect.DeepEqual(h, tt.want) {
				t.Errorf("got %#v, want %#v", h, tt.want)
			}
		})
	}
}

// TestHeaders_UnmarshalInvalid 测试非法响应头形状返回 ErrInvalidHeaders。
func TestHeaders_UnmarshalInvalid(t *testing.T) {
	inputs := []string{`"text"`, `[["only-name"]]`, `{"a":1}`, `[[1,"v"]]`}
	for _, input := range inputs {
		var h Headers
		err := json.Unmarshal([]byte(input), &h)
		if !errors.Is(err, ErrInvalidHeaders) {
			t.Errorf("input %s: err = %v, want ErrInvalidHeaders", input, err)
		}
	}
}

// TestHeaders_Marshal 测试序列化为有序二元组列表。
func TestHeaders_Marshal(t *testing.T) {
	var h Headers
	h.Add("Content-Type", "application/json")
	h.Add("Set-Cookie", "a=1")
	h.Add("set-cookie", "b=2")

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `[["Content-Type","application/json"],["Set-Cookie",["a=1","b=2"]]]`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
	if h.Get("content-type") != "application/json" {
		t.Errorf("Get is not case-insensitive")
	}
	if got := h.Values("SET-COOKIE"); len(got) != 2 {
		t.Errorf("Values = %v", got)
	}
}

// TestAsHTTPResponse 测试处理器结果识别。
func TestAsHTTPResponse(t *testing.T) {
	if _, ok := AsHTTPResponse(map[string]any{"message": "hi"}); ok {
		t.Error("map without status should not be a response")
	}

	resp, ok := AsHTTPResponse(map[string]any{"status": float64(201), "headers": map[string]any{"x": "1"}, "body": "ok"})
	if !ok {
		t.Fatal("map with status should be a response")
	}
	if resp.Status != 201 || resp.Headers.Get("x") != "1" || resp.Body != "ok" {
		t.Errorf("unexpected response: %#v", resp)
	}

	if _, ok := AsHTTPResponse(json.RawMessage(`{"status":70000}`)); ok {
		t.Error("status outside uint16 should be rejected")
	}

	typed := &HTTPResponse{Status: 204}
	if got, ok := AsHTTPResponse(typed); !ok || got != typed {
		t.Error("typed response should pass through")
	}
}

// TestParseHTTPMethod 测试请求方法解析。
func TestParseHTTPMethod(t *testing.T) {
	if m, err := ParseHTTPMethod("patch"); err != nil || m != MethodPatch {
		t.Errorf("ParseHTTPMethod(patch) = %v, %v", m, err)
	}
	if _, err := ParseHTTPMethod("OPTIONS"); !errors.Is(err, ErrInvalidMethod) {
		t.Errorf("ParseHTTPMethod(OPTIONS) err = %v", err)
	}
}

// TestHTTPRequest_Defaults 测试请求默认值与调试标志。
func TestHTTPRequest_Defaults(t *testing.T) {
	req := &HTTPRequest{Method: "get"}
	req.Normalize()
	if req.Path != "/" || req.Method != MethodGet {
		t.Errorf("Normalize() = %#v", req)
	}
	if req.DebugRequested() {
		t.Error("missing query should not request debug")
	}

	req.Query = map[string]Value{"debug": ParseValue("false")}
	if req.DebugRequested() {
		t.Error("debug=false should not request debug")
	}
	req.Query["debug"] = ParseValue("1")
	if !req.DebugRequested() {
		t.Error("debug=1 should request debug")
	}

	var nilReq *HTTPRequest
	if nilReq.DebugRequested() {
		t.Error("nil request should not request debug")
	}
}

// TestParseLogLevel 测试日志级别解析。
func TestParseLogLevel(t *testing.T) {
	if l, err := ParseLogLevel("WARNING"); err != nil || l != LogLevelWarn {
		t.Errorf("ParseLogLevel(WARNING) = %v, %v", l, err)
	}
	if _, err := ParseLogLevel("trace"); !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("ParseLogLevel(trace) err = %v", err)
	}
}
