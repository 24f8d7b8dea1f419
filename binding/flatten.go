package binding

import (
	"fmt"
	"math"
	"strconv"
)

// Flatten 提取 data 顶层的标量字段，供 Replace 使用；嵌套对象、数组与 null 被忽略。
func Flatten(data any) map[string]string {
	switch m := data.(type) {
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, v := range m {
			switch v.(type) {
			case map[string]any, []any, map[string]string, []string, nil:
				continue
			}
			out[k] = Format(v)
		}
		return out
	}
	return nil
}

// Format 把标量转为文本。JSON 数字按最短十进制输出，整数不带小数点和指数。
func Format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return Format(float64(x))
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

