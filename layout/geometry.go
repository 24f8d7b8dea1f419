package layout

import "math"

// PercentRect 以容器尺寸的百分比描述一个矩形，字段不要求落在 [0,100]。
type PercentRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PixelRect 是以像素为单位的绝对矩形；Width/Height 恒为非负，可能为 0（退化矩形）。
type PixelRect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right returns the exclusive right edge.
func (r PixelRect) Right() int { return r.Left + r.Width }

// Bottom returns the exclusive bottom edge.
func (r PixelRect) Bottom() int { return r.Top + r.Height }

// Empty reports whether the rectangle has zero area.
func (r PixelRect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Placement 是素材在目标框内的放置结果：缩放后的尺寸与左上角坐标。
type Placement struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	OffsetX int `json:"offsetX"`
	OffsetY int `json:"offsetY"`
}

// Resolve 将百分比矩形换算为容器内的像素矩形：left = floor(containerWidth * x / 100)，其余同理。
// 超出 [0,100] 的百分比按比例缩放而不报错；负的宽高按 0 处理。
func Resolve(containerWidth, containerHeight int, r PercentRect) PixelRect {
	cw := float64(containerWidth)
	ch := float64(containerHeight)
	return PixelRect{
		Left:   scalePercent(cw, r.X),
		Top:    scalePercent(ch, r.Y),
		Width:  nonNegative(scalePercent(cw, r.W)),
		Height: nonNegative(scalePercent(ch, r.H)),
	}
}

func scalePercent(total, pct float64) int {
	v := math.Floor(total * pct / 100)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(v)
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// Fit 计算素材在 box 内保持宽高比的最大放置尺寸（fit-within，不裁切），并在两个方向上居中。
// assetHeight 为 0 时宽高比按 1 处理；box 高度为 0 时同理。
// 放置尺寸在对应方向 box 尺寸 >= 1 时至少为 1 像素，且永远不超过 box。
func Fit(assetWidth, assetHeight int, box PixelRect) Placement {
	bw := nonNegative(box.Width)
	bh := nonNegative(box.Height)

	assetRatio := 1.0
	if assetHeight != 0 {
		assetRatio = float64(assetWidth) / float64(assetHeight)
	}
	boxRatio := 1.0
	if bh != 0 {
		boxRatio = float64(bw) / float64(bh)
	}

	var w, h int
	if assetRatio > boxRatio {
		w = bw
		h = int(float64(w) / assetRatio)
	} else {
		h = bh
		w = int(float64(h) * assetRatio)
	}
	w = clampSpan(w, bw)
	h = clampSpan(h, bh)

	return Placement{
		Width:   w,
		Height:  h,
		OffsetX: box.Left + (bw-w)/2,
		OffsetY: box.Top + (bh-h)/2,
	}
}

// clampSpan keeps v within [min(1, limit), limit].
func clampSpan(v, limit int) int {
	if v < 1 {
		v = 1
	}
	if v > limit {
		v = limit
	}
	return v
}
