package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ByLCY/certify/internal/pipeline"
	"github.com/ByLCY/certify/slides"
)

func newFillCmd(a *app) *cobra.Command {
	var template, logo, values, accent, output string

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "填充 PPTX 模板中的 {Key} 占位符、logo 与边框颜色",
		Example: `  certify fill --template certificate.pptx --logo logo.png \
    --values '{"Brand":"Shell","RestaurantName":"Example Restaurant"}' -o filled.pptx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			if template == "" || output == "" {
				return fmt.Errorf("必须指定 --template 与 --out")
			}
			req := pipeline.SlidesRequest{Accent: accent}
			var err error
			if req.Template, err = os.ReadFile(template); err != nil {
				return fmt.Errorf("无法读取模板 %s: %w", template, err)
			}
			if logo != "" {
				if req.Logo, err = os.ReadFile(logo); err != nil {
					return fmt.Errorf("无法读取 logo %s: %w", logo, err)
				}
			}
			if values != "" {
				if err := json.Unmarshal([]byte(values), &req.Values); err != nil {
					return fmt.Errorf("解析 values JSON 失败（需要字符串对象）: %w", err)
				}
			}

			runner, c, err := a.runner(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			prog := newProgress(logger)
			out, report, err := runner.FillSlides(ctx, req)
			if err != nil {
				return err
			}
			if err := writeFile(output, out); err != nil {
				return err
			}
			logger.Info("模板已填充",
				"paragraphs", report.Paragraphs,
				"logo", logoAction(report.Logo),
				"borders", report.Borders)
			prog.done(fmt.Sprintf("已生成 %s", output))
			return nil
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "PPTX 模板")
	cmd.Flags().StringVar(&logo, "logo", "", "品牌 logo（可选，PNG/JPG/WebP）")
	cmd.Flags().StringVar(&values, "values", "", "占位符取值 JSON 对象")
	cmd.Flags().StringVar(&accent, "accent", slides.DefaultAccent, "边框颜色（用于名称含 border 的形状）")
	cmd.Flags().StringVarP(&output, "out", "o", "", "输出 .pptx 路径")
	return cmd
}

func logoAction(r slides.LogoResult) string {
	switch {
	case r.Replaced:
		return "replaced"
	case r.Added:
		return "added"
	default:
		return "unchanged"
	}
}
