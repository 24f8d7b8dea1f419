package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ByLCY/certify/slides"
)

// SlidesRequest 是一次 PPTX 模板填充的输入。
type SlidesRequest struct {
	Template []byte            // .pptx 内容
	Logo     []byte            // 可选
	Values   map[string]string // 覆盖 slides.DefaultValues 的占位符取值
	Accent   string
}

// FillSlides 填充 PPTX 模板并返回新的 .pptx 内容。
func (r *Runner) FillSlides(ctx context.Context, req SlidesRequest) ([]byte, slides.FillReport, error) {
	var report slides.FillReport
	if len(req.Template) == 0 {
		return nil, report, invalid("缺少 PPTX 模板")
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}
	deck, err := slides.Open(bytes.NewReader(req.Template), int64(len(req.Template)))
	if err != nil {
		if errors.Is(err, slides.ErrNotPPTX) || errors.Is(err, slides.ErrNoSlides) {
			return nil, report, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, report, err
	}

	values := slides.DefaultValues()
	for k, v := range req.Values {
		values[k] = v
	}
	report, err = slides.Fill(deck, slides.FillOptions{Values: values, Logo: req.Logo, Accent: req.Accent})
	if err != nil {
		return nil, report, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	out, err := deck.Bytes()
	if err != nil {
		return nil, report, err
	}
	r.logger.Debug("slides filled",
		"slides", deck.SlideCount(),
		"paragraphs", report.Paragraphs,
		"logo_replaced", report.Logo.Replaced,
		"logo_added", report.Logo.Added,
		"borders", report.Borders)
	return out, report, nil
}
