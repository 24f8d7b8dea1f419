package binding

import (
	"fmt"
	"strconv"
	"strings"
)

// step 是路径中的一级：按键进入对象，或按下标进入数组。
type step struct {
	key   string
	index int
	isIdx bool
}

// Path 是已解析的取值路径，例如 visit.dates[1]。
type Path []step

// ParsePath 解析点号与方括号组成的路径。
func ParsePath(expr string) (Path, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("路径为空")
	}
	var p Path
	for _, segment := range strings.Split(expr, ".") {
		name := segment
		rest := ""
		if i := strings.IndexByte(segment, '['); i >= 0 {
			name, rest = segment[:i], segment[i:]
		}
		name = strings.TrimSpace(name)
		if name == "" && rest == "" {
			return nil, fmt.Errorf("路径 %q 含空段", expr)
		}
		if name != "" {
			p = append(p, step{key: name})
		}
		for rest != "" {
			end := strings.IndexByte(rest, ']')
			if rest[0] != '[' || end < 0 {
				return nil, fmt.Errorf("路径 %q 的下标未闭合", expr)
			}
			idx, err := strconv.Atoi(strings.TrimSpace(rest[1:end]))
			if err != nil {
				return nil, fmt.Errorf("路径 %q 的下标不是整数", expr)
			}
			p = append(p, step{index: idx, isIdx: true})
			rest = rest[end+1:]
		}
	}
	return p, nil
}

// Lookup 沿路径在 data 中取值。
func (p Path) Lookup(data any) (any, bool) {
	current := data
	for _, s := range p {
		var ok bool
		if s.isIdx {
			current, ok = index(current, s.index)
		} else {
			current, ok = field(current, s.key)
		}
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if s.isIdx {
			fmt.Fprintf(&b, "[%d]", s.index)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.key)
	}
	return b.String()
}

func field(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		v, ok := c[key]
		return v, ok
	case map[string]string:
		v, ok := c[key]
		return v, ok
	}
	return nil, false
}

func index(current any, i int) (any, bool) {
	switch c := current.(type) {
	case []any:
		if i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	case []string:
		if i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	}
	return nil, false
}
