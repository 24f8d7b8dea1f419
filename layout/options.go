package layout

import "errors"

// ErrAssetMissing 表示引用的图片资源不存在（例如未上传可选的 logo）。
// ImageProbe 实现应包装该错误，布局阶段据此跳过可选素材。
var ErrAssetMissing = errors.New("素材不存在")

// BuildOptions 配置布局阶段所需的依赖，例如排版后端与图片尺寸探测。
type BuildOptions struct {
	Typesetter Typesetter
	Images     ImageProbe
	Debug      DebugOptions
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	RawUnits bool // 在调试 JSON 中输出 debug.rawUnits 影子字段
}

// LineMetrics 描述某字体字号下单行文本的像素高度与基线位置。
type LineMetrics struct {
	Height float64 `json:"height"` // ascent + descent
	Ascent float64 `json:"ascent"`
}

// Typesetter 负责把字体资源绑定为测量能力，供贪心换行使用。
type Typesetter interface {
	FaceMetrics(font FontResource, sizePx float64) (Measurer, LineMetrics, error)
}

// ImageProbe 返回图片资源的像素尺寸。
type ImageProbe interface {
	ImageSize(src string) (int, int, error)
}
