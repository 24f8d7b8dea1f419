package layout

import "strings"

// Measurer 返回一段文本在特定字体与字号下的像素宽度，由调用方绑定到具体字体资源。
type Measurer interface {
	MeasureText(s string) float64
}

// MeasureFunc adapts a plain function to Measurer.
type MeasureFunc func(s string) float64

// MeasureText implements Measurer.
func (f MeasureFunc) MeasureText(s string) float64 { return f(s) }

// PlacedLine 是一行已定位的文本，(X, Y) 为行的左上角。
type PlacedLine struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

// WrappedText 保存定位后的行以及绘制完最后一行后的纵向游标，便于调用方继续向下堆叠文本块。
type WrappedText struct {
	Lines   []PlacedLine `json:"lines"`
	CursorY float64      `json:"cursorY"`
}

// Wrap 使用贪心算法把 text 按空白切词后装入宽度不超过 maxWidth 的行。
// 单个超宽的词独占一行，不做词内断行；空串或纯空白返回零行。
func Wrap(text string, maxWidth float64, m Measurer) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := ""
	for _, word := range words {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if m.MeasureText(candidate) <= maxWidth {
			line = candidate
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
		line = word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// WrapParagraphs 先按显式换行拆分段落，再逐段调用 Wrap；空段落不产生行。
func WrapParagraphs(text string, maxWidth float64, m Measurer) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, Wrap(para, maxWidth, m)...)
	}
	return lines
}

// Place 把行依次摆放在 y = startY + i*(lineHeight+lineSpacing)，并返回最后一行之后的游标。
func Place(lines []string, startX, startY, lineHeight, lineSpacing float64) WrappedText {
	step := lineHeight + lineSpacing
	out := WrappedText{
		Lines:   make([]PlacedLine, 0, len(lines)),
		CursorY: startY,
	}
	for i, ln := range lines {
		out.Lines = append(out.Lines, PlacedLine{
			X:    startX,
			Y:    startY + float64(i)*step,
			Text: ln,
		})
	}
	out.CursorY = startY + float64(len(lines))*step
	return out
}
