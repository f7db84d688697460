package wrapper

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/oriys/edgeharness/internal/capture"
	"github.com/oriys/edgeharness/internal/domain"
)

type withUnexported struct {
	Ratio   float64 `json:"ratio"`
	Skipped string  `json:"-"`
	Empty   string  `json:"empty,omitempty"`
	Plain   int
	hidden  func()
}

// TestJSONSafe 测试无法编码的值被替换且结果可以编码。
func TestJSONSafe(t *testing.T) {
	ok := map[string]any{"a": 1}
	if got := JSONSafe(ok); got == nil || got.(map[string]any)["a"] != 1 {
		t.Errorf("encodable value changed: %#v", got)
	}
	resp := okResponse()
	if got := JSONSafe(resp); got != resp {
		t.Errorf("encodable pointer should be returned as is")
	}

	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nan", in: math.NaN(), want: `null`},
		{name: "inf in slice", in: []float64{1, math.Inf(-1)}, want: `[1,null]`},
		{name: "struct fields", in: withUnexported{Ratio: math.NaN(), Skipped: "x", Plain: 3, hidden: func() {}}, want: `{"Plain":3,"ratio":null}`},
		{name: "pointer", in: &withUnexported{Ratio: math.Inf(1)}, want: `{"Plain":0,"ratio":null}`},
		{name: "nil func", in: (func())(nil), want: `null`},
		{name: "complex", in: complex(1, 2), want: `"(1+2i)"`},
		{name: "int keys", in: map[int]any{1: math.NaN()}, want: `{"1":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(JSONSafe(tt.in))
			if err != nil {
				t.Fatalf("Marshal(JSONSafe()) failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("JSONSafe() = %s, want %s", data, tt.want)
			}
		})
	}

	if s, ok := JSONSafe(func() {}).(string); !ok || s == "" {
		t.Errorf("func should become its text form, got %#v", JSONSafe(func() {}))
	}
}

// TestEnvelope_UnencodableValues 测试调试包装在日志与失败值无法直接编码时仍可编码。
func TestEnvelope_UnencodableValues(t *testing.T) {
	logged := HandlerFunc(func(ctx context.Context, _ *domain.HTTPRequest) (any, error) {
		capture.L(ctx).Info("ratio", math.NaN())
		return "done", nil
	})
	panicked := HandlerFunc(func(ctx context.Context, _ *domain.HTTPRequest) (any, error) {
		capture.L(ctx).Error("before")
		panic(func() {})
	})

	for name, h := range map[string]Handler{"nan log": logged, "func panic": panicked} {
		t.Run(name, func(t *testing.T) {
			res := Wrap(context.Background(), h, debugRequest("true"), nil)
			data, err := json.Marshal(res.Envelope())
			if err != nil {
				t.Fatalf("Marshal(Envelope()) failed: %v", err)
			}
			var decoded struct {
				Body struct {
					Logs []domain.LogRecord `json:"logs"`
				} `json:"body"`
			}
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if len(decoded.Body.Logs) != 1 {
				t.Errorf("logs = %s", data)
			}
		})
	}

	// 原始记录保持不变，只有传输形式被替换
	res := Wrap(context.Background(), logged, debugRequest("true"), nil)
	if f, ok := res.Logs[0].Message[1].(float64); !ok || !math.IsNaN(f) {
		t.Errorf("Result.Logs changed: %#v", res.Logs[0].Message)
	}
}
