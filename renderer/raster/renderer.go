// Package raster 使用 fogleman/gg 直接在背景位图上绘制证书，像素级还原 Pillow 风格的输出。
// 字体以 72 dpi 创建，因此字号（pt）与像素一一对应。
package raster

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"

	"github.com/ByLCY/certify/fonts"
	"github.com/ByLCY/certify/layout"
	"github.com/ByLCY/certify/renderer"
)

const dpi = 72

// Renderer draws layout results onto a bitmap via github.com/fogleman/gg.
type Renderer struct {
	store *renderer.Store
	fonts *fontCache
}

var (
	_ renderer.Backend  = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

// parsedFont 持有解析后的字体；TrueType 轮廓走 freetype，CFF（OTF）轮廓走 x/image/font/opentype。
type parsedFont struct {
	tt  *truetype.Font
	otf *opentype.Font
}

type fontCache struct {
	mu     sync.Mutex
	parsed map[string]*parsedFont
}

// New creates a raster renderer resolving assets through store.
func New(store *renderer.Store) *Renderer {
	return &Renderer{
		store: store,
		fonts: &fontCache{parsed: map[string]*parsedFont{}},
	}
}

// WithStore 返回使用另一 Store 的渲染器，已解析的字体继续共享。
func (r *Renderer) WithStore(store *renderer.Store) *Renderer {
	return &Renderer{store: store, fonts: r.fonts}
}

// ImageSize implements layout.ImageProbe.
func (r *Renderer) ImageSize(src string) (int, int, error) {
	return r.store.ImageSize(src)
}

// FaceMetrics 实现 layout.Typesetter。
func (r *Renderer) FaceMetrics(res layout.FontResource, sizePx float64) (layout.Measurer, layout.LineMetrics, error) {
	face, err := r.face(res, sizePx)
	if err != nil {
		return nil, layout.LineMetrics{}, err
	}
	m := face.Metrics()
	ascent := fixedToFloat(m.Ascent)
	lm := layout.LineMetrics{Height: ascent + fixedToFloat(m.Descent), Ascent: ascent}
	measure := layout.MeasureFunc(func(s string) float64 {
		return fixedToFloat(font.MeasureString(face, s))
	})
	return measure, lm, nil
}

// Render 绘制位图后输出 PNG；PDF 输出把整张位图按 96 dpi 嵌入单页。
func (r *Renderer) Render(result *layout.Result, format renderer.Format) ([]byte, error) {
	img, err := r.Draw(result)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch format {
	case renderer.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("写入 PNG 失败: %w", err)
		}
	case renderer.FormatPDF:
		if err := writePDF(&buf, img, result.Meta); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("不支持的输出格式 %q", format)
	}
	return buf.Bytes(), nil
}

// Draw 按背景、边框、装饰矩形、logo、文本的顺序绘制，返回位图。
func (r *Renderer) Draw(result *layout.Result) (image.Image, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	cv := result.Canvas
	if cv.Width <= 0 || cv.Height <= 0 {
		return nil, fmt.Errorf("画布尺寸无效: %dx%d", cv.Width, cv.Height)
	}

	var dc *gg.Context
	if cv.Background != "" {
		bg, err := r.store.Image(cv.Background)
		if err != nil {
			return nil, fmt.Errorf("加载背景图失败: %w", err)
		}
		if b := bg.Bounds(); b.Dx() != cv.Width || b.Dy() != cv.Height {
			bg = imaging.Resize(bg, cv.Width, cv.Height, imaging.Lanczos)
		}
		dc = gg.NewContextForImage(bg)
	} else {
		dc = gg.NewContext(cv.Width, cv.Height)
		fill := layout.Color{R: 255, G: 255, B: 255}
		if cv.Fill != nil {
			fill = *cv.Fill
		}
		dc.SetRGB255(fill.R, fill.G, fill.B)
		dc.Clear()
	}

	if b := cv.Border; b != nil && b.Width > 0 {
		// 与 Pillow rectangle(outline, width) 一致：线宽向内延伸
		bw := float64(b.Width)
		dc.SetRGB255(b.Color.R, b.Color.G, b.Color.B)
		dc.SetLineWidth(bw)
		dc.DrawRectangle(bw/2, bw/2, float64(cv.Width)-bw, float64(cv.Height)-bw)
		dc.Stroke()
	}

	for _, rc := range cv.Rects {
		x, y := float64(rc.Box.Left), float64(rc.Box.Top)
		w, h := float64(rc.Box.Width), float64(rc.Box.Height)
		if rc.FillColor != nil {
			dc.SetRGB255(rc.FillColor.R, rc.FillColor.G, rc.FillColor.B)
			dc.DrawRectangle(x, y, w, h)
			dc.Fill()
		}
		if rc.StrokeWidth > 0 {
			dc.SetRGB255(rc.StrokeColor.R, rc.StrokeColor.G, rc.StrokeColor.B)
			dc.SetLineWidth(rc.StrokeWidth)
			dc.DrawRectangle(x, y, w, h)
			dc.Stroke()
		}
	}

	for _, img := range cv.Images {
		if img.Path == "" || img.Placement.Width <= 0 || img.Placement.Height <= 0 {
			continue
		}
		src, err := r.store.Image(img.Path)
		if err != nil {
			return nil, fmt.Errorf("加载图片 %s 失败: %w", img.Path, err)
		}
		resized := imaging.Resize(src, img.Placement.Width, img.Placement.Height, imaging.Lanczos)
		dc.DrawImage(resized, img.Placement.OffsetX, img.Placement.OffsetY)
	}

	for _, tb := range cv.Texts {
		fontRes := resolveFontResource(tb.Font, result.Resources.Fonts)
		face, err := r.face(fontRes, tb.FontSize)
		if err != nil {
			return nil, err
		}
		dc.SetFontFace(face)
		dc.SetRGB255(tb.Color.R, tb.Color.G, tb.Color.B)
		for _, line := range tb.Lines {
			dc.DrawString(line.Content, line.X, line.Y+tb.Ascent)
		}
	}
	return dc.Image(), nil
}

func writePDF(buf *bytes.Buffer, img image.Image, meta layout.DocumentMeta) error {
	b := img.Bounds()
	w := float64(b.Dx()) * layout.PxToMm
	h := float64(b.Dy()) * layout.PxToMm
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.DrawImage(0, 0, img, canvas.DPMM(layout.MmToPx))

	writer := pdf.New(buf, w, h, nil)
	writer.SetInfo(meta.Title, meta.Subject, joinKeywords(meta.Keywords), meta.Author, meta.Creator)
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return nil
}

func (r *Renderer) face(res layout.FontResource, sizePx float64) (font.Face, error) {
	pf, err := r.parsed(res)
	if err != nil {
		return nil, err
	}
	if pf.tt != nil {
		return truetype.NewFace(pf.tt, &truetype.Options{Size: sizePx, DPI: dpi, Hinting: font.HintingFull}), nil
	}
	face, err := opentype.NewFace(pf.otf, &opentype.FaceOptions{Size: sizePx, DPI: dpi, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("创建字体 %s 失败: %w", res.Name, err)
	}
	return face, nil
}

func (r *Renderer) parsed(res layout.FontResource) (*parsedFont, error) {
	key := res.Name + "|" + res.Src + "|" + res.Fallback
	c := r.fonts
	c.mu.Lock()
	defer c.mu.Unlock()
	if pf, ok := c.parsed[key]; ok {
		return pf, nil
	}

	data, err := r.store.FontBytes(res)
	if err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", res.Name, err)
	}
	pf, err := parseFont(data)
	if err != nil {
		// 字体损坏时退回内置 Go 字体
		pf, err = parseFont(fonts.Default())
		if err != nil {
			return nil, err
		}
	}
	c.parsed[key] = pf
	return pf, nil
}

func parseFont(data []byte) (*parsedFont, error) {
	if tt, err := truetype.Parse(data); err == nil {
		return &parsedFont{tt: tt}, nil
	}
	otf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析字体失败: %w", err)
	}
	return &parsedFont{otf: otf}, nil
}

func resolveFontResource(name string, fonts map[string]layout.FontResource) layout.FontResource {
	if f, ok := fonts[name]; ok {
		return f
	}
	if f, ok := fonts["Body"]; ok {
		return f
	}
	return layout.FontResource{Name: name}
}
