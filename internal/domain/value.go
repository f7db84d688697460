// Package domain 定义了执行框架的核心领域模型。
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ValueKind 表示 Value 的具体类别。
type ValueKind int

// Value 类别常量定义
const (
	// ValueNull 空值，零值 Value 即为 Null
	ValueNull ValueKind = iota
	// ValueBool 布尔值
	ValueBool
	// ValueNumber 数值，保留 JSON 原始文本
	ValueNumber
	// ValueString 字符串
	ValueString
	// ValueStructured 对象或数组，保留 JSON 原始编码
	ValueStructured
)

// String 返回类别名称。
func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueStructured:
		return "structured"
	}
	return "unknown"
}

// Value 是请求头、查询参数和请求体经过尽力解析后的可辨识值。
// 合法 JSON 按其类别解析，其他文本一律作为字符串保留。
type Value struct {
	kind ValueKind
	b    bool
	num  json.Number
	s    string
	raw  json.RawMessage
}

// NullValue 返回空值。
func NullValue() Value { return Value{} }

// BoolValue 返回布尔值。
func BoolValue(b bool) Value { return Value{kind: ValueBool, b: b} }

// NumberValue 返回数值。
func NumberValue(f float64) Value {
	return Value{kind: ValueNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

// StringValue 返回字符串值。
func StringValue(s string) Value { return Value{kind: ValueString, s: s} }

// StructuredValue 返回对象或数组值，raw 必须是合法的 JSON 对象或数组。
func StructuredValue(raw json.RawMessage) Value {
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return Value{kind: ValueStructured, raw: cp}
}

// ParseValue 对原始文本做尽力解析。
//
// 解析规则：
//   - 合法 JSON 的 null/true/false/数字/字符串 解析为对应类别
//   - 合法 JSON 的对象或数组解析为 Structured
//   - 其余文本（包括空字符串）作为 String 原样保留
func ParseValue(raw string) Value {
	data := []byte(raw)
	if !json.Valid(data) {
		return StringValue(raw)
	}
	return parseJSON(data)
}

// parseJSON 将一段合法 JSON 转换为 Value。
func parseJSON(data []byte) Value {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return NullValue()
	}
	switch trimmed[0] {
	case 'n':
		return NullValue()
	case 't':
		return BoolValue(true)
	case 'f':
		return BoolValue(false)
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return StringValue(string(data))
		}
		return StringValue(s)
	case '{', '[':
		return StructuredValue(trimmed)
	}
	return Value{kind: ValueNumber, num: json.Number(trimmed)}
}

// Kind 返回值的类别。
func (v Value) Kind() ValueKind { return v.kind }

// IsNull 判断是否为空值。
func (v Value) IsNull() bool { return v.kind == ValueNull }

// AsBool 在值为布尔类型时返回其内容。
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == ValueBool }

// AsNumber 在值为数值类型时返回其浮点表示。
func (v Value) AsNumber() (float64, bool) {
	if v.kind != ValueNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	return f, err == nil
}

// AsString 在值为字符串类型时返回其内容。
func (v Value) AsString() (string, bool) { return v.s, v.kind == ValueString }

// Truthy 按宽松真值规则判断：
// Null 为假，布尔取自身，数值非零为真，字符串非空为真，对象和数组恒为真。
func (v Value) Truthy() bool {
	switch v.kind {
	case ValueBool:
		return v.b
	case ValueNumber:
		f, err := v.num.Float64()
		return err == nil && f != 0
	case ValueString:
		return v.s != ""
	case ValueStructured:
		return true
	}
	return false
}

// Interface 返回值对应的 Go 原生表示（nil、bool、float64、string、map 或 slice）。
func (v Value) Interface() any {
	switch v.kind {
	case ValueBool:
		return v.b
	case ValueNumber:
		f, _ := v.num.Float64()
		return f
	case ValueString:
		return v.s
	case ValueStructured:
		var out any
		if err := json.Unmarshal(v.raw, &out); err != nil {
			return nil
		}
		return out
	}
	return nil
}

// MarshalJSON 实现 json.Marshaler 接口。
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueBool:
		return strconv.AppendBool(nil, v.b), nil
	case ValueNumber:
		return []byte(v.num), nil
	case ValueString:
		return json.Marshal(v.s)
	case ValueStructured:
		return v.raw, nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON 实现 json.Unmarshaler 接口，encoding/json 保证 data 为合法 JSON。
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = parseJSON(data)
	return nil
}
