// Package cli 实现 certify 命令行：render、layout、fill、serve 与 version。
//
// 所有命令支持 --verbose (-v) 输出调试日志，以及 --config 指定 TOML 配置文件；
// 命令行参数覆盖配置文件中的取值。logger 通过 context.Context 传递给各命令。
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ByLCY/certify/cache"
	"github.com/ByLCY/certify/config"
	"github.com/ByLCY/certify/internal/pipeline"
)

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion 设置 version 命令输出的版本信息，通常由 main 通过 ldflags 注入。
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// app 保存根命令解析出的全局状态。
type app struct {
	configPath string
	verbose    bool
	cfg        config.Config
	stderr     io.Writer
}

// Execute 构建根命令并运行。
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stderr).ExecuteContext(ctx)
}

// NewRootCommand returns the root command; logs go to stderr.
func NewRootCommand(stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}
	root := &cobra.Command{
		Use:           "certify",
		Short:         "Certify 生成品牌客户表彰证书",
		Long:          "Certify 把背景图、logo 与文本按模板排版为 PNG/PDF 证书，或填充带 {Key} 占位符的 PPTX 模板。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if a.verbose {
				level = log.DebugLevel
			}
			logger := newLogger(a.stderr, level)
			cmd.SetContext(withLogger(cmd.Context(), logger))

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if a.configPath != "" {
				logger.Debug("config loaded", "path", a.configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "输出调试日志")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML 配置文件路径")

	root.AddCommand(newRenderCmd(a))
	root.AddCommand(newLayoutCmd(a))
	root.AddCommand(newFillCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// runner 根据当前配置创建 pipeline.Runner，调用方负责关闭返回的缓存。
func (a *app) runner(ctx context.Context) (*pipeline.Runner, cache.Cache, error) {
	c, err := cache.New(a.cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	ttl, err := a.cfg.Cache.TTLDuration()
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return pipeline.NewRunner(a.cfg.Render, c, ttl, loggerFromContext(ctx)), c, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "certify %s\n", version)
			if commit != "" {
				fmt.Fprintf(out, "commit: %s\n", commit)
			}
			if date != "" {
				fmt.Fprintf(out, "built: %s\n", date)
			}
			return nil
		},
	}
}
