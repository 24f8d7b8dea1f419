package layout

// 该文件定义布局结果与资源描述，供布局计算、渲染与调试 JSON 共用。

// Result 保存布局后的画布与资源信息。
type Result struct {
	Canvas    Canvas       `json:"canvas"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
}

// ResourceSet 记录解析出的字体、颜色、图片与样式定义。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Colors map[string]Color         `json:"colors"`
	Images map[string]ImageResource `json:"images"`
	Styles map[string]Style         `json:"styles"`
}

// FontResource 描述字体资源，src 可以是文件路径、embed:*、system:* 或 built-in:* 形式。
type FontResource struct {
	Name     string `json:"name"`
	Src      string `json:"src"`
	Fallback string `json:"fallback,omitempty"`
}

// ImageResource 记录命名图片资源。
type ImageResource struct {
	Name string `json:"name"`
	Src  string `json:"src"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Canvas 是证书的绘制面，所有坐标均为像素，原点在左上角。
type Canvas struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Background string     `json:"background,omitempty"`
	Fill       *Color     `json:"fill,omitempty"` // 无背景图时的底色
	Border     *Border    `json:"border,omitempty"`
	Rects      []Rect     `json:"rects,omitempty"`
	Images     []ImageBox `json:"images"`
	Texts      []TextBox  `json:"texts"`
}

// Border 沿画布边缘向内描边。
type Border struct {
	Color Color `json:"color"`
	Width int   `json:"width"`
}

// Rect 表示一个装饰矩形。
type Rect struct {
	Box         PixelRect `json:"box"`
	StrokeColor Color     `json:"strokeColor"`
	StrokeWidth float64   `json:"strokeWidth"`
	FillColor   *Color    `json:"fillColor,omitempty"` // 为空表示不填充
}

// ImageBox 描述一张已适配到目标框内的图片（例如 logo）。
type ImageBox struct {
	Path        string      `json:"path"`
	Source      PercentRect `json:"source"`
	Box         PixelRect   `json:"box"`
	Placement   Placement   `json:"placement"`
	AssetWidth  int         `json:"assetWidth"`
	AssetHeight int         `json:"assetHeight"`
}

// TextBox 表示一个已经完成换行与定位的文本块。
type TextBox struct {
	Content     string        `json:"content"`
	Source      PercentRect   `json:"source"`
	Box         PixelRect     `json:"box"`
	Font        string        `json:"font"`
	FontSize    float64       `json:"fontSize"`
	LineHeight  float64       `json:"lineHeight"`
	LineSpacing float64       `json:"lineSpacing"`
	Ascent      float64       `json:"ascent"`
	Color       Color         `json:"color"`
	Align       string        `json:"align,omitempty"` // left（默认）/center/right
	Lines       []TextLine    `json:"lines"`
	CursorY     float64       `json:"cursorY"`
	Debug       *TextBoxDebug `json:"debug,omitempty"`
}

// Height returns the vertical extent consumed by the block.
func (tb TextBox) Height() float64 {
	return tb.CursorY - float64(tb.Box.Top)
}

// TextLine 表示排版后的一行文本，(X, Y) 为行的左上角。
type TextLine struct {
	Content string  `json:"content"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
}

// TextBoxDebug holds optional debug info displayed only when enabled by BuildOptions.
type TextBoxDebug struct {
	RawUnits *RawUnits `json:"rawUnits,omitempty"`
}

// RawUnits describes original author-specified units for key fields.
type RawUnits struct {
	FontSize *RawLengthJSON `json:"fontSize,omitempty"`
	Spacing  *RawLengthJSON `json:"spacing,omitempty"`
}

// RawLengthJSON is a JSON-friendly representation of Length.
type RawLengthJSON struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Style 是一组命名的属性预设，内联属性会覆盖它。
type Style struct {
	Name  string            `json:"name"`
	Props map[string]string `json:"props"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
