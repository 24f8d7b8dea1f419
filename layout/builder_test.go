package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ByLCY/certify/dsl"
)

// stubTypesetter 是一个最小实现，仅用于测试，避免引入 renderer 造成循环依赖。
// 每个字符宽 size/2 像素，行高 1.25×size。
type stubTypesetter struct {
	fonts []FontResource
}

func (s *stubTypesetter) FaceMetrics(font FontResource, sizePx float64) (Measurer, LineMetrics, error) {
	s.fonts = append(s.fonts, font)
	m := MeasureFunc(func(text string) float64 {
		return float64(utf8.RuneCountInString(text)) * sizePx / 2
	})
	return m, LineMetrics{Height: sizePx * 1.25, Ascent: sizePx}, nil
}

// stubProbe 返回预设的图片尺寸，未登记的图片视为缺失。
type stubProbe map[string][2]int

func (p stubProbe) ImageSize(src string) (int, int, error) {
	size, ok := p[src]
	if !ok {
		return 0, 0, fmt.Errorf("图片 %s: %w", src, ErrAssetMissing)
	}
	return size[0], size[1], nil
}

func mustParse(t *testing.T, text string) *dsl.Document {
	t.Helper()
	doc, err := dsl.ParseString(text)
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	return doc
}

func buildDefault(t *testing.T, probe stubProbe, data map[string]any) *Result {
	t.Helper()
	doc := mustParse(t, DefaultTemplate)
	merged := MergeData(DefaultData(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)), data)
	res, err := Build(doc, merged, BuildOptions{Typesetter: &stubTypesetter{}, Images: probe})
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return res
}

func TestBuildDefaultTemplate(t *testing.T) {
	res := buildDefault(t, stubProbe{
		"built-in:background": {1600, 1131},
		"built-in:logo":       {400, 200},
	}, nil)

	cv := res.Canvas
	if cv.Width != 1600 || cv.Height != 1131 || cv.Background != "built-in:background" {
		t.Fatalf("unexpected canvas: %dx%d %q", cv.Width, cv.Height, cv.Background)
	}
	if cv.Border == nil || cv.Border.Width != 6 || cv.Border.Color != (Color{R: 0xD3, G: 0x2F, B: 0x2F}) {
		t.Fatalf("unexpected border: %+v", cv.Border)
	}

	if len(cv.Images) != 1 {
		t.Fatalf("expected logo image, got %d", len(cv.Images))
	}
	logo := cv.Images[0]
	if logo.Box != (PixelRect{Left: 80, Top: 45, Width: 320, Height: 113}) {
		t.Fatalf("unexpected logo box: %+v", logo.Box)
	}
	if logo.Placement != (Placement{Width: 226, Height: 113, OffsetX: 127, OffsetY: 45}) {
		t.Fatalf("unexpected logo placement: %+v", logo.Placement)
	}

	if len(cv.Texts) != 5 {
		t.Fatalf("expected 5 text boxes, got %d", len(cv.Texts))
	}
	header := cv.Texts[0]
	if header.Content != "CONGRATULATIONS!" || header.FontSize != 44 || header.Font != "Title" {
		t.Fatalf("unexpected header: %q size=%g font=%s", header.Content, header.FontSize, header.Font)
	}
	if header.Lines[0].X != 448 || header.Lines[0].Y != 67 {
		t.Fatalf("header should start at the box origin, got (%g,%g)", header.Lines[0].X, header.Lines[0].Y)
	}

	meta := cv.Texts[3]
	if len(meta.Lines) != 3 {
		t.Fatalf("meta block should keep one line per entry, got %+v", meta.Lines)
	}
	if meta.Lines[0].Content != "Visit Date: 18/10/2026" || meta.Lines[2].Content != "Restaurant ID: 12345" {
		t.Fatalf("unexpected meta lines: %+v", meta.Lines)
	}
	if meta.Lines[1].Y-meta.Lines[0].Y != 22*1.25+6 {
		t.Fatalf("unexpected line step: %g", meta.Lines[1].Y-meta.Lines[0].Y)
	}
	if meta.CursorY != meta.Lines[0].Y+3*(22*1.25+6) {
		t.Fatalf("unexpected cursor: %g", meta.CursorY)
	}
	if meta.Height() != 3*(22*1.25+6) {
		t.Fatalf("unexpected block height: %g", meta.Height())
	}

	footer := cv.Texts[4]
	if strings.Contains(footer.Content, "{brand}") || !strings.Contains(footer.Content, "from Shell for") {
		t.Fatalf("footer brand not substituted: %q", footer.Content)
	}
	for _, ln := range footer.Lines {
		if ln.Width > float64(footer.Box.Width) {
			t.Fatalf("footer line %q wider than box", ln.Content)
		}
	}

	if res.Meta.Title != "Shell Customer Recognition" || res.Meta.Author != "Shell" {
		t.Fatalf("unexpected meta: %+v", res.Meta)
	}
	if len(res.Meta.Keywords) != 2 {
		t.Fatalf("unexpected keywords: %v", res.Meta.Keywords)
	}
}

func TestBuildUsesOverridesAndBrand(t *testing.T) {
	res := buildDefault(t, stubProbe{"built-in:background": {800, 600}}, map[string]any{
		"brand":  "Acme",
		"header": "WELL DONE",
	})
	if res.Canvas.Texts[0].Content != "WELL DONE" {
		t.Fatalf("header override ignored: %q", res.Canvas.Texts[0].Content)
	}
	if !strings.Contains(res.Canvas.Texts[4].Content, "from Acme for") {
		t.Fatalf("brand override ignored: %q", res.Canvas.Texts[4].Content)
	}
}

func TestBuildDoesNotRescanInterpolatedData(t *testing.T) {
	src := "doc T v1 {\n  canvas size 1000 500 {\n" +
		"    text x 0 y 0 w 100 h 50 { \"{header}: ${comment}\" }\n" +
		"    text x 0 y 50 w 100 h 50 placeholders data { \"${footer}\" }\n  }\n}\n"
	data := map[string]any{
		"brand":   "Acme",
		"header":  "HI",
		"footer":  "from {brand}",
		"comment": "I typed {header} and ${brand}",
	}
	res, err := Build(mustParse(t, src), data, BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := res.Canvas.Texts[0].Content; got != "HI: I typed {header} and ${brand}" {
		t.Fatalf("unexpected content %q", got)
	}
	if got := res.Canvas.Texts[1].Content; got != "from Acme" {
		t.Fatalf("footer should expand {brand}: %q", got)
	}
}

func TestBuildSkipsMissingLogo(t *testing.T) {
	res := buildDefault(t, stubProbe{"built-in:background": {1600, 1131}}, nil)
	if len(res.Canvas.Images) != 0 {
		t.Fatalf("missing logo should be skipped, got %+v", res.Canvas.Images)
	}
}

func TestBuildBorderZeroWidth(t *testing.T) {
	doc := mustParse(t, "doc T v1 {\n canvas {\n border color #FF0000 width 0\n }\n}\n")
	res, err := Build(doc, nil, BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if res.Canvas.Border != nil {
		t.Fatalf("width 0 should disable the border, got %+v", res.Canvas.Border)
	}
	if res.Canvas.Width != 1600 || res.Canvas.Height != 1131 {
		t.Fatalf("unexpected default canvas size %dx%d", res.Canvas.Width, res.Canvas.Height)
	}
}

func TestBuildAlignmentAndInlineAttributes(t *testing.T) {
	src := `doc T v1 {
  canvas size 1000 500 fill #FFFFFF {
    text x 10 y 10 w 50 h 20 align center size 20px spacing 0 color #123456 { "abcd" }
    text x 10 y 40 w 50 h 20 align right size 20px { "abcd" }
    rect x 0 y 0 w 100 h 10 stroke #000 stroke-width 2 fill #EEE
  }
}
`
	ts := &stubTypesetter{}
	res, err := Build(mustParse(t, src), nil, BuildOptions{Typesetter: ts})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	cv := res.Canvas
	if cv.Width != 1000 || cv.Height != 500 || cv.Fill == nil || *cv.Fill != (Color{R: 255, G: 255, B: 255}) {
		t.Fatalf("unexpected canvas: %+v", cv)
	}
	// 4 个字符 × 10px = 40px，框宽 500px。
	center := cv.Texts[0]
	if center.Lines[0].X != 100+230 || center.Align != "center" {
		t.Fatalf("center align: x=%g align=%q", center.Lines[0].X, center.Align)
	}
	if center.LineSpacing != 0 || center.Color != (Color{R: 0x12, G: 0x34, B: 0x56}) {
		t.Fatalf("inline attributes ignored: %+v", center)
	}
	right := cv.Texts[1]
	if right.Lines[0].X != 100+460 || right.LineSpacing != defaultLineSpacing {
		t.Fatalf("right align: x=%g spacing=%g", right.Lines[0].X, right.LineSpacing)
	}
	if len(cv.Rects) != 1 || cv.Rects[0].Box != (PixelRect{Width: 1000, Height: 50}) || cv.Rects[0].StrokeWidth != 2 {
		t.Fatalf("unexpected rects: %+v", cv.Rects)
	}
	if cv.Rects[0].FillColor == nil || *cv.Rects[0].FillColor != (Color{R: 0xEE, G: 0xEE, B: 0xEE}) {
		t.Fatalf("unexpected rect fill: %+v", cv.Rects[0].FillColor)
	}
	if len(ts.fonts) != 2 || ts.fonts[0].Name != "Body" || ts.fonts[0].Fallback != "embed:go-regular" {
		t.Fatalf("text without style should use the default Body font, got %+v", ts.fonts)
	}
}

func TestBuildStyleMergesUnderInline(t *testing.T) {
	src := `doc T v1 {
  resources {
    font Serif { src: "embed:lm-roman" }
    style Quote {
      font: Serif
      size: 30px
      align: center
    }
  }
  canvas size 400 400 {
    text Quote x 0 y 0 w 100 h 50 size 10px { "hi" }
  }
}
`
	ts := &stubTypesetter{}
	res, err := Build(mustParse(t, src), nil, BuildOptions{Typesetter: ts})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	tb := res.Canvas.Texts[0]
	if tb.FontSize != 10 || tb.Align != "center" || tb.Font != "Serif" {
		t.Fatalf("style merge wrong: size=%g align=%q font=%s", tb.FontSize, tb.Align, tb.Font)
	}
	if ts.fonts[0].Src != "embed:lm-roman" {
		t.Fatalf("expected Serif font resource, got %+v", ts.fonts[0])
	}
}

func TestBuildRejectsStyleInheritance(t *testing.T) {
	src := "doc T v1 {\n resources {\n style A extends B {\n size: 10px\n }\n }\n canvas {\n }\n}\n"
	if _, err := Build(mustParse(t, src), nil, BuildOptions{Typesetter: &stubTypesetter{}}); err == nil {
		t.Fatalf("expected error for style inheritance")
	}
}

func TestBuildErrors(t *testing.T) {
	ts := &stubTypesetter{}
	if _, err := Build(nil, nil, BuildOptions{Typesetter: ts}); err == nil {
		t.Fatalf("nil document should fail")
	}
	noCanvas := mustParse(t, "doc T v1 {\n meta {\n title: \"x\"\n }\n}\n")
	if _, err := Build(noCanvas, nil, BuildOptions{Typesetter: ts}); err == nil {
		t.Fatalf("missing canvas should fail")
	}
	plain := mustParse(t, "doc T v1 {\n canvas {\n }\n}\n")
	if _, err := Build(plain, nil, BuildOptions{}); err == nil {
		t.Fatalf("missing typesetter should fail")
	}
	emptyText := mustParse(t, "doc T v1 {\n canvas {\n text x 0 { }\n }\n}\n")
	if _, err := Build(emptyText, nil, BuildOptions{Typesetter: ts}); err == nil {
		t.Fatalf("text without content should fail")
	}

	bg := mustParse(t, DefaultTemplate)
	_, err := Build(bg, nil, BuildOptions{Typesetter: ts, Images: stubProbe{}})
	if err == nil || !errors.Is(err, ErrAssetMissing) {
		t.Fatalf("missing background should fail with ErrAssetMissing, got %v", err)
	}
}

func TestBuildDebugRawUnits(t *testing.T) {
	src := "doc T v1 {\n canvas size 100 100 {\n text size 12pt spacing 4px { \"a\" }\n }\n}\n"
	res, err := Build(mustParse(t, src), nil, BuildOptions{Typesetter: &stubTypesetter{}, Debug: DebugOptions{RawUnits: true}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	tb := res.Canvas.Texts[0]
	if math.Abs(tb.FontSize-16) > 1e-9 {
		t.Fatalf("12pt should be 16px, got %g", tb.FontSize)
	}
	if tb.Debug == nil || tb.Debug.RawUnits == nil || tb.Debug.RawUnits.FontSize.Unit != "pt" || tb.Debug.RawUnits.Spacing.Value != 4 {
		t.Fatalf("missing raw units: %+v", tb.Debug)
	}

	var buf bytes.Buffer
	if err := WriteDebug(&buf, res); err != nil {
		t.Fatalf("WriteDebug failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("debug output is not JSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"rawUnits"`) {
		t.Fatalf("debug JSON should carry rawUnits")
	}
}
