package layout

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/certify/binding"
	"github.com/ByLCY/certify/dsl"
)

const (
	defaultCanvasWidth  = 1600
	defaultCanvasHeight = 1131
	defaultFontSize     = 28.0
	defaultLineSpacing  = 6.0
)

var defaultTextColor = Color{R: 0, G: 0, B: 0}

// Build 根据模板 AST 与数据生成证书画布上的文本、图片与边框布局。
func Build(doc *dsl.Document, data any, opts BuildOptions) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}

	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	values := binding.Flatten(data)
	meta := collectMeta(doc, data)
	section := doc.Canvas()
	if section == nil {
		return nil, fmt.Errorf("文档中缺少 canvas 段落")
	}

	canvas, err := buildCanvas(section, res, data, values, opts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Canvas:    canvas,
		Resources: res,
		Meta:      meta,
	}, nil
}

// canvasContext 携带单次布局所需的只读输入与正在构建的画布。
type canvasContext struct {
	canvas *Canvas
	res    ResourceSet
	data   any
	values map[string]string
	opts   BuildOptions
}

func buildCanvas(section *dsl.CanvasSection, res ResourceSet, data any, values map[string]string, opts BuildOptions) (Canvas, error) {
	if section.Block == nil {
		return Canvas{}, fmt.Errorf("canvas 段落缺少内容")
	}
	cv := resolveCanvasSpec(section.Params, res)
	if cv.Background != "" {
		if opts.Images == nil {
			return Canvas{}, fmt.Errorf("canvas 指定了背景图 %s，但缺少 ImageProbe", cv.Background)
		}
		w, h, err := opts.Images.ImageSize(cv.Background)
		if err != nil {
			return Canvas{}, fmt.Errorf("读取背景图 %s 尺寸失败: %w", cv.Background, err)
		}
		cv.Width, cv.Height = w, h
	}

	ctx := &canvasContext{
		canvas: &cv,
		res:    res,
		data:   data,
		values: values,
		opts:   opts,
	}
	if err := processBlock(section.Block, ctx); err != nil {
		return Canvas{}, err
	}
	return cv, nil
}

// resolveCanvasSpec 解析 canvas 头部参数：background <src>、size <w> <h>、fill <color>。
func resolveCanvasSpec(params []*dsl.Lexeme, res ResourceSet) Canvas {
	cv := Canvas{Width: defaultCanvasWidth, Height: defaultCanvasHeight}
	for i := 0; i < len(params); i++ {
		switch strings.ToLower(params[i].Value) {
		case "background":
			if i+1 < len(params) {
				cv.Background = resolveImageSrc(params[i+1].Value, res)
				i++
			}
		case "size":
			if i+2 < len(params) {
				w, okW := ParseLength(params[i+1].Value)
				h, okH := ParseLength(params[i+2].Value)
				if okW && okH && w.Value > 0 && h.Value > 0 {
					cv.Width = int(w.ToPX(0))
					cv.Height = int(h.ToPX(0))
				}
				i += 2
			}
		case "fill", "color":
			if i+1 < len(params) {
				c := resolveColor(params[i+1].Value, res, Color{R: 255, G: 255, B: 255})
				cv.Fill = &c
				i++
			}
		}
	}
	return cv
}

// processBlock 依次处理 canvas 内的命令，支持 border、logo/image、text、rect。
func processBlock(block *dsl.Block, ctx *canvasContext) error {
	for _, stmt := range block.Statements {
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		switch strings.ToLower(cmd.Name) {
		case "border":
			handleBorder(cmd, ctx)
		case "logo", "image":
			if err := handleImage(cmd, ctx); err != nil {
				return err
			}
		case "text":
			if err := handleText(cmd, ctx); err != nil {
				return err
			}
		case "rect":
			_, attrs := parseArgs(cmd.Args, false)
			if rc, ok := parseRectShape(attrs, ctx); ok {
				ctx.canvas.Rects = append(ctx.canvas.Rects, rc)
			}
		default:
			// 其余命令暂未实现，忽略即可
			continue
		}
	}
	return nil
}

func handleBorder(cmd *dsl.Command, ctx *canvasContext) {
	_, attrs := parseArgs(cmd.Args, false)
	width := 0
	if l, ok := ParseLength(attrs["width"]); ok {
		width = int(math.Round(l.ToPX(float64(minInt(ctx.canvas.Width, ctx.canvas.Height)))))
	}
	if width <= 0 {
		ctx.canvas.Border = nil
		return
	}
	ctx.canvas.Border = &Border{
		Color: resolveColor(attrs["color"], ctx.res, Color{}),
		Width: width,
	}
}

func handleImage(cmd *dsl.Command, ctx *canvasContext) error {
	name, attrs := parseArgs(cmd.Args, true)
	src := attrs["src"]
	if src == "" {
		src = attrs["image"]
	}
	if src == "" {
		src = name
	}
	src = resolveImageSrc(src, ctx.res)
	if strings.TrimSpace(src) == "" {
		// logo 为可选项
		return nil
	}
	if ctx.opts.Images == nil {
		return fmt.Errorf("image 语句需要 ImageProbe 以读取 %s 的尺寸", src)
	}

	rect := parseBox(attrs, ctx.canvas)
	box := Resolve(ctx.canvas.Width, ctx.canvas.Height, rect)
	aw, ah, err := ctx.opts.Images.ImageSize(src)
	if errors.Is(err, ErrAssetMissing) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("读取图片 %s 尺寸失败: %w", src, err)
	}

	ctx.canvas.Images = append(ctx.canvas.Images, ImageBox{
		Path:        src,
		Source:      rect,
		Box:         box,
		Placement:   Fit(aw, ah, box),
		AssetWidth:  aw,
		AssetHeight: ah,
	})
	return nil
}

func handleText(cmd *dsl.Command, ctx *canvasContext) error {
	if cmd.Block == nil {
		return fmt.Errorf("text 语句缺少文本块")
	}
	styleName, attrs := parseArgs(cmd.Args, true)
	attrs = mergeStyleAttributes(styleName, attrs, ctx.res.Styles)
	content := extractText(cmd.Block)
	if content == "" {
		return fmt.Errorf("text 语句缺少文本内容")
	}
	tb, err := composeTextBox(styleName, attrs, content, ctx)
	if err != nil {
		return err
	}
	ctx.canvas.Texts = append(ctx.canvas.Texts, tb)
	return nil
}

func composeTextBox(style string, attrs map[string]string, content string, ctx *canvasContext) (TextBox, error) {
	fontName := attrs["font"]
	if fontName == "" {
		fontName = style
	}
	if fontName == "" {
		fontName = "Body"
	}

	// {Key} 只在模板文本中替换；插值进来的数据仅在 placeholders data 时再替换一次。
	if ctx.data != nil {
		content = binding.Replace(content, ctx.values)
		content = binding.Interpolate(content, ctx.data)
		if strings.EqualFold(attrs["placeholders"], "data") {
			content = binding.Replace(content, ctx.values)
		}
	}

	cv := ctx.canvas
	fontSize := defaultFontSize
	sizeLen, sizeOK := ParseLength(attrs["size"])
	if sizeOK && sizeLen.Value > 0 {
		fontSize = sizeLen.ToPX(float64(cv.Height))
	}
	spacing := defaultLineSpacing
	spacingLen, spacingOK := ParseLength(firstNonEmpty(attrs["spacing"], attrs["line-spacing"]))
	if spacingOK && spacingLen.Value >= 0 {
		spacing = spacingLen.ToPX(fontSize)
	}

	fontRes, err := resolveFontResource(fontName, ctx.res)
	if err != nil {
		return TextBox{}, err
	}
	measurer, metrics, err := ctx.opts.Typesetter.FaceMetrics(fontRes, fontSize)
	if err != nil {
		return TextBox{}, fmt.Errorf("加载字体 %s 失败: %w", fontName, err)
	}

	rect := parseBox(attrs, cv)
	box := Resolve(cv.Width, cv.Height, rect)
	maxWidth := float64(box.Width)

	var lines []string
	if keepNewlines(attrs["newlines"]) {
		lines = WrapParagraphs(content, maxWidth, measurer)
	} else {
		lines = Wrap(content, maxWidth, measurer)
	}
	placed := Place(lines, float64(box.Left), float64(box.Top), metrics.Height, spacing)

	align := normalizeAlign(attrs["align"])
	textLines := make([]TextLine, 0, len(placed.Lines))
	for _, pl := range placed.Lines {
		w := measurer.MeasureText(pl.Text)
		textLines = append(textLines, TextLine{
			Content: pl.Text,
			X:       pl.X + alignOffset(maxWidth, w, align),
			Y:       pl.Y,
			Width:   w,
		})
	}

	tb := TextBox{
		Content:     content,
		Source:      rect,
		Box:         box,
		Font:        fontName,
		FontSize:    fontSize,
		LineHeight:  metrics.Height,
		LineSpacing: spacing,
		Ascent:      metrics.Ascent,
		Color:       resolveColor(attrs["color"], ctx.res, defaultTextColor),
		Lines:       textLines,
		CursorY:     placed.CursorY,
	}
	if align != "left" {
		tb.Align = align
	}
	if ctx.opts.Debug.RawUnits {
		raw := &RawUnits{}
		if sizeOK {
			raw.FontSize = &RawLengthJSON{Value: sizeLen.Value, Unit: UnitToString(sizeLen.Unit)}
		} else {
			raw.FontSize = &RawLengthJSON{Value: defaultFontSize, Unit: "px"}
		}
		if spacingOK {
			raw.Spacing = &RawLengthJSON{Value: spacingLen.Value, Unit: UnitToString(spacingLen.Unit)}
		}
		tb.Debug = &TextBoxDebug{RawUnits: raw}
	}
	return tb, nil
}

// parseBox 读取 x/y/w/h（或 width/height）属性。无单位与 % 均视为百分比，绝对长度按画布换算。
// 缺省时 x、y 为 0，w、h 占满剩余部分。
func parseBox(attrs map[string]string, cv *Canvas) PercentRect {
	cw := float64(cv.Width)
	ch := float64(cv.Height)
	pct := func(v string, reference, def float64) float64 {
		l, ok := ParseLength(v)
		if !ok {
			return def
		}
		return l.Percent(reference)
	}
	rect := PercentRect{}
	rect.X = pct(attrs["x"], cw, 0)
	rect.Y = pct(attrs["y"], ch, 0)
	rect.W = pct(firstNonEmpty(attrs["w"], attrs["width"]), cw, 100-rect.X)
	rect.H = pct(firstNonEmpty(attrs["h"], attrs["height"]), ch, 100-rect.Y)
	return rect
}

func keepNewlines(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "keep", "preserve", "true", "yes":
		return true
	default:
		return false
	}
}

func normalizeAlign(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "center", "middle":
		return "center"
	case "right", "end":
		return "right"
	default:
		return "left"
	}
}

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Images: map[string]ImageResource{},
		Styles: map[string]Style{},
	}

	for _, block := range doc.ResourceBlocks() {
		for _, cmd := range block.Commands() {
			switch cmd.Name {
			case "font":
				font := parseFontResource(cmd)
				if font.Name != "" {
					res.Fonts[font.Name] = font
				}
			case "color":
				name, value := parseColorResource(cmd)
				if name == "" || value == "" {
					continue
				}
				if c, err := parseColor(value); err == nil {
					res.Colors[name] = c
				}
			case "image":
				image := parseImageResource(cmd)
				if image.Name != "" {
					res.Images[image.Name] = image
				}
			case "style":
				style, err := parseStyleResource(cmd)
				if err != nil {
					return res, err
				}
				if style.Name != "" {
					res.Styles[style.Name] = style
				}
			}
		}
	}

	if _, ok := res.Fonts["Body"]; !ok {
		res.Fonts["Body"] = FontResource{
			Name:     "Body",
			Src:      "system:DejaVuSans.ttf",
			Fallback: "embed:go-regular",
		}
	}
	if _, ok := res.Fonts["Title"]; !ok {
		res.Fonts["Title"] = FontResource{
			Name:     "Title",
			Src:      "system:DejaVuSans-Bold.ttf",
			Fallback: "embed:go-bold",
		}
	}
	return res, nil
}

func collectMeta(doc *dsl.Document, data any) DocumentMeta {
	meta := DocumentMeta{
		Creator: "Certify",
	}
	str := func(v *dsl.Value) string {
		return binding.Interpolate(valueToString(v), data)
	}
	for _, block := range doc.MetaBlocks() {
		for _, a := range block.Assignments() {
			switch strings.ToLower(a.Key) {
			case "title":
				meta.Title = str(a.Value)
			case "author":
				meta.Author = str(a.Value)
			case "subject":
				meta.Subject = str(a.Value)
			case "creator":
				meta.Creator = str(a.Value)
			case "keywords":
				meta.Keywords = valueToStringSlice(a.Value)
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	font := FontResource{Name: cmd.Args[0].Value}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil || stmt.Assignment.Value.String == nil {
			continue
		}
		switch stmt.Assignment.Key {
		case "src":
			font.Src = string(*stmt.Assignment.Value.String)
		case "fallback":
			font.Fallback = string(*stmt.Assignment.Value.String)
		}
	}
	return font
}

func parseImageResource(cmd *dsl.Command) ImageResource {
	if len(cmd.Args) == 0 {
		return ImageResource{}
	}
	image := ImageResource{Name: cmd.Args[0].Value}
	if cmd.Block == nil {
		return image
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment != nil && stmt.Assignment.Key == "src" && stmt.Assignment.Value.String != nil {
			image.Src = string(*stmt.Assignment.Value.String)
		}
	}
	return image
}

func parseStyleResource(cmd *dsl.Command) (Style, error) {
	if len(cmd.Args) == 0 {
		return Style{}, nil
	}
	style := Style{
		Name:  cmd.Args[0].Value,
		Props: map[string]string{},
	}
	if len(cmd.Args) >= 2 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		return Style{}, fmt.Errorf("style %s: 不支持样式继承", style.Name)
	}
	if cmd.Block == nil {
		return style, nil
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		if val == "" {
			continue
		}
		style.Props[stmt.Assignment.Key] = val
	}
	return style, nil
}

func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) == 0 {
		return "", ""
	}
	name := cmd.Args[0].Value
	value := ""
	if len(cmd.Args) > 1 {
		value = cmd.Args[len(cmd.Args)-1].Value
	}
	return name, value
}

// parseArgs 把命令参数解析为 key/value 对。参数个数为奇数且首个为标识符时，首个参数视为样式（或资源）名。
func parseArgs(args []*dsl.Lexeme, allowStyle bool) (string, map[string]string) {
	result := map[string]string{}
	if len(args) == 0 {
		return "", result
	}

	cursor := 0
	var style string
	if allowStyle && len(args)%2 == 1 && args[0].Type == "Ident" {
		style = args[0].Value
		cursor = 1
	}

	for cursor < len(args)-1 {
		key := args[cursor].Value
		val := args[cursor+1].Value
		result[key] = val
		cursor += 2
	}

	return style, result
}

func mergeStyleAttributes(style string, inline map[string]string, styles map[string]Style) map[string]string {
	out := make(map[string]string)
	if style != "" {
		if s, ok := styles[style]; ok {
			for k, v := range s.Props {
				out[k] = v
			}
		}
	}
	for k, v := range inline {
		out[k] = v
	}
	return out
}

func extractText(block *dsl.Block) string {
	if block == nil {
		return ""
	}
	var builder strings.Builder
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			builder.WriteString(string(stmt.Text.Value))
		}
	}
	return builder.String()
}

func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	if font, ok := res.Fonts["Body"]; ok {
		return font, nil
	}
	return FontResource{}, fmt.Errorf("字体 %s 未定义，且没有可用的默认字体", name)
}

func resolveImageSrc(name string, res ResourceSet) string {
	if img, ok := res.Images[name]; ok && img.Src != "" {
		return img.Src
	}
	return name
}

func resolveColor(value string, res ResourceSet, fallback Color) Color {
	if value == "" {
		return fallback
	}
	if c, ok := res.Colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return fallback
}

// parseColor 解析 #RGB、#RRGGBB 或 #RRGGBBAA（忽略透明度）。
func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(value) == 3 {
		value = strings.Repeat(value[0:1], 2) + strings.Repeat(value[1:2], 2) + strings.Repeat(value[2:3], 2)
	}
	if len(value) != 6 && len(value) != 8 {
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	var rgb [3]int
	for i := range rgb {
		v, err := strconv.ParseUint(value[i*2:i*2+2], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("颜色值 %s 无法解析: %w", value, err)
		}
		rgb[i] = int(v)
	}
	return Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

func parseRectShape(attrs map[string]string, ctx *canvasContext) (Rect, bool) {
	rect := parseBox(attrs, ctx.canvas)
	box := Resolve(ctx.canvas.Width, ctx.canvas.Height, rect)
	if box.Empty() {
		return Rect{}, false
	}
	rc := Rect{Box: box}
	if v := attrs["stroke"]; v != "" {
		rc.StrokeColor = resolveColor(v, ctx.res, Color{})
	}
	if l, ok := ParseLength(attrs["stroke-width"]); ok {
		rc.StrokeWidth = l.ToPX(0)
	}
	if v := attrs["fill"]; v != "" {
		c := resolveColor(v, ctx.res, Color{})
		rc.FillColor = &c
	}
	return rc, true
}

func alignOffset(container, width float64, align string) float64 {
	if container <= width {
		return 0
	}
	switch align {
	case "center":
		return (container - width) / 2
	case "right":
		return container - width
	default:
		return 0
	}
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	case val.Expr != nil:
		var builder strings.Builder
		for _, part := range val.Expr.Parts {
			builder.WriteString(part.Value)
		}
		return builder.String()
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
