package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByLCY/certify/internal/pipeline"
	"github.com/ByLCY/certify/layout"
	"github.com/ByLCY/certify/renderer"
)

// certOpts 是 render 与 layout 命令共用的输入参数。
type certOpts struct {
	template   string // 模板文件，为空时使用内置默认模板
	background string
	logo       string
	data       string // JSON 字符串
	dataFile   string
	backend    string
	rawUnits   bool
}

func (o *certOpts) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.template, "template", "", "证书模板文件（.cert），默认使用内置模板")
	cmd.Flags().StringVar(&o.background, "background", "", "背景图（PNG/JPG/WebP）")
	cmd.Flags().StringVar(&o.logo, "logo", "", "品牌 logo（可选）")
	cmd.Flags().StringVar(&o.data, "data", "", "绑定到模板的 JSON 对象")
	cmd.Flags().StringVar(&o.dataFile, "data-file", "", "绑定数据 JSON 文件")
	cmd.Flags().StringVar(&o.backend, "backend", "", "渲染后端：canvas 或 raster（默认取配置）")
	cmd.Flags().BoolVar(&o.rawUnits, "debug-raw-units", false, "在布局 JSON 中输出 debug.rawUnits 影子字段")
}

// request 读取文件并组装 pipeline.Request。
func (o *certOpts) request() (pipeline.Request, error) {
	var req pipeline.Request
	if o.background == "" {
		return req, fmt.Errorf("必须指定 --background")
	}
	if o.template != "" {
		src, err := os.ReadFile(o.template)
		if err != nil {
			return req, fmt.Errorf("无法读取模板 %s: %w", o.template, err)
		}
		req.Template = string(src)
	}
	bg, err := os.ReadFile(o.background)
	if err != nil {
		return req, fmt.Errorf("无法读取背景图 %s: %w", o.background, err)
	}
	req.Background = bg
	if o.logo != "" {
		logo, err := os.ReadFile(o.logo)
		if err != nil {
			return req, fmt.Errorf("无法读取 logo %s: %w", o.logo, err)
		}
		req.Logo = logo
	}
	data, err := o.loadData()
	if err != nil {
		return req, err
	}
	req.Data = data
	req.Backend = o.backend
	req.Debug = o.rawUnits
	return req, nil
}

func (o *certOpts) loadData() (map[string]any, error) {
	raw := []byte(o.data)
	if o.dataFile != "" {
		if o.data != "" {
			return nil, fmt.Errorf("--data 与 --data-file 只能指定一个")
		}
		b, err := os.ReadFile(o.dataFile)
		if err != nil {
			return nil, fmt.Errorf("无法读取数据文件 %s: %w", o.dataFile, err)
		}
		raw = b
	}
	return parseDataJSON(raw)
}

// parseDataJSON 解析 JSON 对象；空输入返回 nil。
func parseDataJSON(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 data JSON 失败（需要 JSON 对象）: %w", err)
	}
	return data, nil
}

func newRenderCmd(a *app) *cobra.Command {
	var opts certOpts
	var output, format, debugPath string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "按模板生成 PNG 或 PDF 证书",
		Example: `  certify render --background bg.png --logo logo.png --data '{"brand":"Shell"}' -o out/shell.pdf
  certify render --template custom.cert --background bg.jpg -o cert.png --backend canvas`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			if output == "" {
				return fmt.Errorf("必须指定 --out")
			}
			req, err := opts.request()
			if err != nil {
				return err
			}
			f, err := resolveFormat(format, output, a.cfg.Render.Format)
			if err != nil {
				return err
			}
			req.Format = f

			runner, c, err := a.runner(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			prog := newProgress(logger)
			if debugPath != "" {
				result, _, err := runner.Layout(ctx, req)
				if err != nil {
					return err
				}
				if err := writeDebug(result, debugPath); err != nil {
					return err
				}
				logger.Debug("layout JSON written", "path", debugPath)
			}
			out, hit, err := runner.Render(ctx, req)
			if err != nil {
				return err
			}
			if err := writeFile(output, out); err != nil {
				return err
			}
			if hit {
				logger.Debug("served from cache")
			}
			prog.done(fmt.Sprintf("已生成 %s", output))
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&output, "out", "o", "", "输出文件路径")
	cmd.Flags().StringVarP(&format, "format", "f", "", "输出格式：png 或 pdf（默认按 --out 扩展名）")
	cmd.Flags().StringVar(&debugPath, "debug", "", "布局调试 JSON 输出路径")
	return cmd
}

func newLayoutCmd(a *app) *cobra.Command {
	var opts certOpts
	var output string

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "只计算布局并输出 JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req, err := opts.request()
			if err != nil {
				return err
			}
			runner, c, err := a.runner(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			result, _, err := runner.Layout(ctx, req)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return layout.WriteDebug(cmd.OutOrStdout(), result)
			}
			return writeDebug(result, output)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&output, "out", "o", "", "输出文件路径（默认标准输出）")
	return cmd
}

// resolveFormat 依次取 --format、输出文件扩展名、配置中的默认格式。
func resolveFormat(flag, output, fallback string) (renderer.Format, error) {
	if flag != "" {
		return renderer.ParseFormat(flag)
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".pdf":
		return renderer.FormatPDF, nil
	case ".png":
		return renderer.FormatPNG, nil
	}
	return renderer.ParseFormat(fallback)
}

func writeDebug(result *layout.Result, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, path); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return nil
}
