package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/certify/fonts"
	"github.com/ByLCY/certify/layout"
	"github.com/ByLCY/certify/renderer"
)

// canvas 的字号以 pt 计并在内部换算为 mm；这里约定 1 个画布单位 = 1 像素，
// 因此 sizePx 需乘以 72/25.4 才能得到 em 高度恰为 sizePx 单位的字体面。
const unitToPt = 72.0 / 25.4

// Renderer draws layout results via github.com/tdewolff/canvas.
type Renderer struct {
	store *renderer.Store
	fonts *fontCache
}

var (
	_ renderer.Backend  = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

type fontCache struct {
	mu       sync.Mutex
	families map[string]*canvas.FontFamily
	fallback *canvas.FontFamily
}

// New creates a canvas-based renderer resolving assets through store.
func New(store *renderer.Store) *Renderer {
	return &Renderer{
		store: store,
		fonts: &fontCache{families: map[string]*canvas.FontFamily{}},
	}
}

// WithStore 返回使用另一 Store 的渲染器，已加载的字体族继续共享。
func (r *Renderer) WithStore(store *renderer.Store) *Renderer {
	return &Renderer{store: store, fonts: r.fonts}
}

// ImageSize implements layout.ImageProbe.
func (r *Renderer) ImageSize(src string) (int, int, error) {
	return r.store.ImageSize(src)
}

// FaceMetrics 实现 layout.Typesetter：返回按像素测量文本宽度的 Measurer 与行高度量。
func (r *Renderer) FaceMetrics(font layout.FontResource, sizePx float64) (layout.Measurer, layout.LineMetrics, error) {
	face, err := r.fontFace(font, sizePx, layout.Color{})
	if err != nil {
		return nil, layout.LineMetrics{}, err
	}
	m := face.Metrics()
	measure := layout.MeasureFunc(func(s string) float64 {
		return face.TextWidth(s)
	})
	return measure, layout.LineMetrics{Height: m.Ascent + m.Descent, Ascent: m.Ascent}, nil
}

// Render 将布局结果输出为 PNG（逐像素栅格化）或 PDF（矢量，按 96 dpi 换算为毫米）。
func (r *Renderer) Render(result *layout.Result, format renderer.Format) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	cv := result.Canvas
	if cv.Width <= 0 || cv.Height <= 0 {
		return nil, fmt.Errorf("画布尺寸无效: %dx%d", cv.Width, cv.Height)
	}

	w, h := float64(cv.Width), float64(cv.Height)
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点
	if err := r.drawCanvas(ctx, result); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case renderer.FormatPNG:
		img := rasterizer.Draw(c, canvas.DPMM(1.0), canvas.DefaultColorSpace)
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("写入 PNG 失败: %w", err)
		}
	case renderer.FormatPDF:
		writer := pdf.New(&buf, w*layout.PxToMm, h*layout.PxToMm, nil)
		applyMeta(writer, result.Meta)
		c.RenderViewTo(writer, canvas.Identity.Scale(layout.PxToMm, layout.PxToMm))
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("写入 PDF 失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的输出格式 %q", format)
	}
	return buf.Bytes(), nil
}

func applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// drawCanvas 绘制顺序：背景、边框、装饰矩形、图片、文本。
func (r *Renderer) drawCanvas(ctx *canvas.Context, result *layout.Result) error {
	cv := result.Canvas
	w, h := float64(cv.Width), float64(cv.Height)

	if cv.Background != "" {
		bg, err := r.store.Image(cv.Background)
		if err != nil {
			return fmt.Errorf("加载背景图失败: %w", err)
		}
		if b := bg.Bounds(); b.Dx() != cv.Width || b.Dy() != cv.Height {
			bg = imaging.Resize(bg, cv.Width, cv.Height, imaging.Lanczos)
		}
		ctx.DrawImage(0, 0, bg, canvas.DPMM(1.0))
	} else {
		fill := layout.Color{R: 255, G: 255, B: 255}
		if cv.Fill != nil {
			fill = *cv.Fill
		}
		ctx.SetFillColor(colorFromLayout(fill))
		ctx.SetStrokeColor(canvas.Transparent)
		ctx.DrawPath(0, 0, canvas.Rectangle(w, h))
	}

	if b := cv.Border; b != nil && b.Width > 0 {
		bw := float64(b.Width)
		ctx.SetFillColor(canvas.Transparent)
		ctx.SetStrokeColor(colorFromLayout(b.Color))
		ctx.SetStrokeWidth(bw)
		// 描边居中于路径，内缩半个线宽使边框完全落在画布内
		ctx.DrawPath(bw/2, bw/2, canvas.Rectangle(w-bw, h-bw))
	}

	drawRects(ctx, cv.Rects)

	if err := r.drawImages(ctx, cv.Images); err != nil {
		return err
	}

	for _, tb := range cv.Texts {
		fontRes := resolveFontResource(tb.Font, result.Resources.Fonts)
		if err := r.drawTextBox(ctx, tb, fontRes); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawTextBox(ctx *canvas.Context, tb layout.TextBox, fontRes layout.FontResource) error {
	face, err := r.fontFace(fontRes, tb.FontSize, tb.Color)
	if err != nil {
		return err
	}
	for _, line := range tb.Lines {
		// 行坐标为左上角，基线 = 行顶 + 上升部
		textLine := canvas.NewTextLine(face, line.Content, canvas.Left)
		ctx.DrawText(line.X, line.Y+tb.Ascent, textLine)
	}
	return nil
}

func (r *Renderer) drawImages(ctx *canvas.Context, images []layout.ImageBox) error {
	for _, img := range images {
		if img.Path == "" || img.Placement.Width <= 0 || img.Placement.Height <= 0 {
			continue
		}
		src, err := r.store.Image(img.Path)
		if err != nil {
			return fmt.Errorf("加载图片 %s 失败: %w", img.Path, err)
		}
		resized := imaging.Resize(src, img.Placement.Width, img.Placement.Height, imaging.Lanczos)
		ctx.DrawImage(float64(img.Placement.OffsetX), float64(img.Placement.OffsetY), resized, canvas.DPMM(1.0))
	}
	return nil
}

// drawRects 绘制装饰矩形
func drawRects(ctx *canvas.Context, rects []layout.Rect) {
	for _, rc := range rects {
		if rc.FillColor != nil {
			ctx.SetFillColor(colorFromLayout(*rc.FillColor))
		} else {
			ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
		}
		if rc.StrokeWidth > 0 {
			ctx.SetStrokeColor(colorFromLayout(rc.StrokeColor))
			ctx.SetStrokeWidth(rc.StrokeWidth)
		} else {
			ctx.SetStrokeColor(canvas.Transparent)
		}
		ctx.DrawPath(float64(rc.Box.Left), float64(rc.Box.Top), canvas.Rectangle(float64(rc.Box.Width), float64(rc.Box.Height)))
	}
}

func (r *Renderer) fontFace(font layout.FontResource, sizePx float64, col layout.Color) (*canvas.FontFace, error) {
	family, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(sizePx*unitToPt, colorFromLayout(col), canvas.FontRegular, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*canvas.FontFamily, error) {
	key := fontCacheKey(font)
	c := r.fonts
	c.mu.Lock()
	defer c.mu.Unlock()

	if family, ok := c.families[key]; ok {
		return family, nil
	}

	familyName := font.Name
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)
	data, err := r.store.FontBytes(font)
	if err == nil {
		err = family.LoadFont(data, 0, canvas.FontRegular)
	}
	if err != nil {
		fallback, fbErr := c.loadFallback()
		if fbErr != nil {
			return nil, fmt.Errorf("加载字体 %s 失败: %w", font.Name, err)
		}
		c.families[key] = fallback
		return fallback, nil
	}
	c.families[key] = family
	return family, nil
}

// loadFallback 需在持有 mu 时调用。
func (c *fontCache) loadFallback() (*canvas.FontFamily, error) {
	if c.fallback != nil {
		return c.fallback, nil
	}
	family := canvas.NewFontFamily("certify-fallback")
	if err := family.LoadFont(fonts.Default(), 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	c.fallback = family
	return family, nil
}

func resolveFontResource(name string, fonts map[string]layout.FontResource) layout.FontResource {
	if font, ok := fonts[name]; ok {
		return font
	}
	if font, ok := fonts["Body"]; ok {
		return font
	}
	for _, font := range fonts {
		return font
	}
	return layout.FontResource{}
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s", font.Name, font.Src, font.Fallback)
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}
