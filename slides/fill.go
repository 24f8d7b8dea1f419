package slides

import "fmt"

// DefaultAccent 是未指定时边框使用的颜色。
const DefaultAccent = "#D32F2F"

// FillOptions 描述一次模板填充。Logo 为空时不替换图片。
type FillOptions struct {
	Values map[string]string
	Logo   []byte
	Accent string
}

// FillReport 汇总填充结果。
type FillReport struct {
	Paragraphs int
	Logo       LogoResult
	Borders    int
}

// DefaultValues 返回演示模板使用的默认占位符取值。
func DefaultValues() map[string]string {
	return map[string]string{
		"Brand":           "Shell",
		"RestaurantName":  "Example Restaurant",
		"CustomerComment": "“The staff were extremely helpful, especially Faye! They happily helped me pick out the things I was looking for, thank you!!”",
		"VisitDate":       "26/02/2025",
		"SurveyDate":      "27/02/2025",
		"RestaurantID":    "12345",
		"FooterText":      "Congratulations from {brand} for providing outstanding customer service. Please share this with your team to celebrate!",
	}
}

// Fill 依次替换占位符、替换 logo（若提供）并为边框重新着色。
func Fill(deck *Deck, opts FillOptions) (FillReport, error) {
	var report FillReport
	if deck == nil {
		return report, fmt.Errorf("演示文稿为空")
	}

	n, err := deck.ReplaceText(ExpandValues(opts.Values))
	if err != nil {
		return report, fmt.Errorf("替换占位符失败: %w", err)
	}
	report.Paragraphs = n

	if len(opts.Logo) > 0 {
		report.Logo, err = deck.ReplaceLogo(opts.Logo)
		if err != nil {
			return report, fmt.Errorf("替换 logo 失败: %w", err)
		}
	}

	accent := opts.Accent
	if accent == "" {
		accent = DefaultAccent
	}
	report.Borders, err = deck.RecolorBorders(ParseHexColor(accent))
	if err != nil {
		return report, fmt.Errorf("边框着色失败: %w", err)
	}
	return report, nil
}
