package renderer

import (
	"fmt"
	"strings"

	"github.com/ByLCY/certify/layout"
)

// Format 是渲染输出格式。
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ParseFormat 解析输出格式，空串视为 png。
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("不支持的输出格式 %q（可选 png、pdf）", s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// Renderer 将布局结果输出为最终文件，例如 PNG 或 PDF。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(result *layout.Result, format Format) ([]byte, error)
}

// Backend 同时负责排版测量与绘制，保证测量与绘制使用同一套字体度量。
type Backend interface {
	Renderer
	layout.Typesetter
	layout.ImageProbe
}
