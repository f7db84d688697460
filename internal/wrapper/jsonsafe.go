package wrapper

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/oriys/edgeharness/internal/domain"
)

// maxSafeDepth 限制 JSONSafe 的递归深度，更深的部分以 null 表示。
const maxSafeDepth = 32

// JSONSafe 返回一个可以被 encoding/json 编码的值。
//
// 能直接编码的值原样返回；否则逐层替换无法编码的部分：
// NaN 与 ±Inf 变为 null，函数、通道与复数变为其 %v 文本，
// 结构体按 json 标签展开为对象，映射的键转为文本。
func JSONSafe(v any) any {
	if _, err := json.Marshal(v); err == nil {
		return v
	}
	return jsonSafe(reflect.ValueOf(v), 0)
}

func jsonSafe(rv reflect.Value, depth int) any {
	if !rv.IsValid() || depth > maxSafeDepth {
		return nil
	}
	if rv.CanInterface() {
		if _, err := json.Marshal(rv.Interface()); err == nil {
			return rv.Interface()
		}
	}

	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
		return nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return nil
		}
		return fmt.Sprintf("%v", rv)
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("%v", rv.Complex())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return jsonSafe(rv.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = jsonSafe(rv.Index(i), depth+1)
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprintf("%v", iter.Key())] = jsonSafe(iter.Value(), depth+1)
		}
		return out
	case reflect.Struct:
		t := rv.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, omitEmpty := jsonFieldName(f)
			if name == "-" {
				continue
			}
			fv := rv.Field(i)
			if omitEmpty && fv.IsZero() {
				continue
			}
			out[name] = jsonSafe(fv, depth+1)
		}
		return out
	}
	return fmt.Sprintf("%v", rv)
}

// jsonFieldName 按 json 标签返回字段名以及是否 omitempty。
func jsonFieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "-", false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, strings.Contains(","+opts+",", ",omitempty,")
}

// safeRecords 返回参数均可编码的日志记录副本。
func safeRecords(records []domain.LogRecord) []domain.LogRecord {
	out := make([]domain.LogRecord, len(records))
	for i, rec := range records {
		msg := make([]any, len(rec.Message))
		for j, arg := range rec.Message {
			msg[j] = JSONSafe(arg)
		}
		out[i] = domain.LogRecord{Timestamp: rec.Timestamp, Level: rec.Level, Message: msg}
	}
	return out
}
