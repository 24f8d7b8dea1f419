package binding

import "testing"

func TestInterpolateNestedPaths(t *testing.T) {
	data := map[string]interface{}{
		"brand": "Shell",
		"visit": map[string]interface{}{"dates": []interface{}{"26/02/2025", "27/02/2025"}},
	}
	got := Interpolate("${brand} on ${visit.dates[1]}", data)
	if got != "Shell on 27/02/2025" {
		t.Fatalf("插值结果不符: %q", got)
	}
}

func TestInterpolateKeepsUnknownPath(t *testing.T) {
	got := Interpolate("Hi ${missing.path}", map[string]interface{}{"a": 1})
	if got != "Hi ${missing.path}" {
		t.Fatalf("未知路径应保持原样: %q", got)
	}
	if got := Interpolate("${a}", nil); got != "${a}" {
		t.Fatalf("data 为空时应原样返回: %q", got)
	}
}

func TestReplaceBraceKeys(t *testing.T) {
	values := map[string]string{"Brand": "Shell", "brand": "shell"}
	got := Replace("{Brand} / {brand} / {Unknown} / {not a key}", values)
	want := "Shell / shell / {Unknown} / {not a key}"
	if got != want {
		t.Fatalf("Replace 结果不符: got=%q want=%q", got, want)
	}
}

func TestFlattenSkipsNested(t *testing.T) {
	flat := Flatten(map[string]interface{}{
		"brand": "Shell",
		"id":    float64(12345),
		"meta":  map[string]interface{}{"x": 1},
		"list":  []interface{}{1},
	})
	if len(flat) != 2 || flat["brand"] != "Shell" || flat["id"] != "12345" {
		t.Fatalf("Flatten 结果不符: %#v", flat)
	}
	if Flatten("not a map") != nil {
		t.Fatalf("非对象输入应返回 nil")
	}
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath(" visit.dates[1][0] ")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if p.String() != "visit.dates[1][0]" {
		t.Fatalf("路径不符: %s", p)
	}
	for _, bad := range []string{"", "a..b", "a[1", "a[x]"} {
		if _, err := ParsePath(bad); err == nil {
			t.Fatalf("%q 应解析失败", bad)
		}
	}
}

func TestLookupTypedContainers(t *testing.T) {
	data := map[string]any{
		"labels": map[string]string{"en": "Thank you"},
		"tags":   []string{"a", "b"},
	}
	p, _ := ParsePath("labels.en")
	if v, ok := p.Lookup(data); !ok || v != "Thank you" {
		t.Fatalf("取值不符: %v %v", v, ok)
	}
	p, _ = ParsePath("tags[2]")
	if _, ok := p.Lookup(data); ok {
		t.Fatalf("越界下标应取值失败")
	}
}

func TestFormatNumbers(t *testing.T) {
	cases := map[any]string{
		float64(12345): "12345",
		float64(1e20):  "100000000000000000000",
		2.5:            "2.5",
		true:           "true",
		"x":            "x",
	}
	for in, want := range cases {
		if got := Format(in); got != want {
			t.Fatalf("Format(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestInterpolateBadPathKept(t *testing.T) {
	data := map[string]any{"a": []any{"x"}}
	if got := Interpolate("${a[z]} ${a[0]}", data); got != "${a[z]} x" {
		t.Fatalf("插值结果不符: %q", got)
	}
}

func TestReplaceSkipsPathPlaceholders(t *testing.T) {
	got := Replace("${brand} / {brand}", map[string]string{"brand": "Shell"})
	if got != "${brand} / Shell" {
		t.Fatalf("Replace 不应改动 ${...}: %q", got)
	}
}

