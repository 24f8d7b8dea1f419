// Package binding 把请求数据代入模板文本。支持两种占位符：
// ${path.to[0].value} 按路径取 data 中的值；{Key} 按键取扁平化后的字符串表。
package binding

import (
	"regexp"
	"strings"
)

var (
	pathPlaceholder = regexp.MustCompile(`\$\{([^}]+)\}`)
	keyPlaceholder  = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// Interpolate 将文本中的 ${path} 替换为 data 中的值。
// data 为空、路径非法或不存在时保留原占位符。
func Interpolate(text string, data any) string {
	if data == nil {
		return text
	}
	return pathPlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		p, err := ParsePath(match[2 : len(match)-1])
		if err != nil {
			return match
		}
		v, ok := p.Lookup(data)
		if !ok {
			return match
		}
		return Format(v)
	})
}

// Replace 将文本中的 {Key} 替换为 values 中的同名值，键区分大小写。
// 未知的键保持原样，例如 "{brand}" 在 values 缺少 brand 时不变；${path} 占位符不受影响。
func Replace(text string, values map[string]string) string {
	if len(values) == 0 {
		return text
	}
	matches := keyPlaceholder.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if m[0] > 0 && text[m[0]-1] == '$' {
			continue
		}
		val, ok := values[text[m[2]:m[3]]]
		if !ok {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(val)
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
