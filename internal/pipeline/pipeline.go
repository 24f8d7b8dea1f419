// Package pipeline 串联模板解析、布局与渲染，并缓存渲染结果。CLI 与 HTTP 服务共用同一个 Runner。
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/ByLCY/certify/cache"
	"github.com/ByLCY/certify/config"
	"github.com/ByLCY/certify/dsl"
	"github.com/ByLCY/certify/layout"
	"github.com/ByLCY/certify/renderer"
	canvasrenderer "github.com/ByLCY/certify/renderer/canvas"
	"github.com/ByLCY/certify/renderer/raster"
)

// ErrInvalidInput 标记由调用方输入导致的失败（模板语法、数据、格式、上传文件等）。
var ErrInvalidInput = errors.New("输入无效")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// 注入到 Store 的 built-in 图片名，对应默认模板中的 built-in:background 与 built-in:logo。
const (
	BackgroundImage = "background"
	LogoImage       = "logo"
)

// Request 是一次证书生成的全部输入。
type Request struct {
	Template   string         // 模板源码，为空时使用 layout.DefaultTemplate
	Background []byte         // 背景图
	Logo       []byte         // 可选
	Data       map[string]any // 覆盖 layout.DefaultData 的字段
	Format     renderer.Format
	Backend    string // canvas | raster
	Debug      bool   // 在 Result 中保留原始单位
	Sandboxed  bool   // 模板来自外部提交：素材路径限制在 BaseDir 内
}

// Runner 持有共享的素材与字体缓存。Runner 可被多个 goroutine 同时使用。
type Runner struct {
	cache   cache.Cache
	ttl     time.Duration
	base    *renderer.Store
	canvas  *canvasrenderer.Renderer
	raster  *raster.Renderer
	backend string
	now     func() time.Time
	logger  *log.Logger
	group   singleflight.Group
}

// NewRunner 按渲染配置创建 Runner。c 为 nil 时不缓存。
func NewRunner(cfg config.Render, c cache.Cache, ttl time.Duration, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	base := renderer.NewStore(renderer.Options{BaseDir: cfg.BaseDir, FontDirs: cfg.FontDirs})
	backend := cfg.Backend
	if backend == "" {
		backend = config.BackendRaster
	}
	return &Runner{
		cache:   c,
		ttl:     ttl,
		base:    base,
		canvas:  canvasrenderer.New(base),
		raster:  raster.New(base),
		backend: backend,
		now:     time.Now,
		logger:  logger,
	}
}

// Normalize 填充默认值并校验请求。
func (r *Runner) Normalize(req *Request) error {
	if strings.TrimSpace(req.Template) == "" {
		req.Template = layout.DefaultTemplate
	}
	if req.Format == "" {
		req.Format = renderer.FormatPNG
	}
	if _, err := renderer.ParseFormat(string(req.Format)); err != nil {
		return invalid("%v", err)
	}
	if req.Backend == "" {
		req.Backend = r.backend
	}
	switch req.Backend {
	case config.BackendCanvas, config.BackendRaster:
	default:
		return invalid("未知渲染后端 %q（可选 canvas、raster）", req.Backend)
	}
	return nil
}

// Layout 解析模板并计算布局，返回布局结果与绑定了本次素材的渲染后端。
func (r *Runner) Layout(ctx context.Context, req Request) (*layout.Result, renderer.Backend, error) {
	if err := r.Normalize(&req); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	doc, err := dsl.ParseString(req.Template)
	if err != nil {
		return nil, nil, invalid("解析模板失败: %v", err)
	}

	store := r.base
	if req.Sandboxed {
		store = store.Sandboxed()
	}
	store = store.WithImages(map[string][]byte{
		BackgroundImage: req.Background,
		LogoImage:       req.Logo,
	})
	backend := r.backendFor(req.Backend, store)

	start := time.Now()
	result, err := layout.Build(doc, r.Data(req.Data), layout.BuildOptions{
		Typesetter: backend,
		Images:     backend,
		Debug:      layout.DebugOptions{RawUnits: req.Debug},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: 布局计算失败: %w", ErrInvalidInput, err)
	}
	r.logger.Debug("layout built",
		"backend", req.Backend,
		"canvas", fmt.Sprintf("%dx%d", result.Canvas.Width, result.Canvas.Height),
		"texts", len(result.Canvas.Texts),
		"duration", time.Since(start).Round(time.Millisecond))
	return result, backend, nil
}

// Render 生成证书文件。相同输入的结果会被缓存，并发的相同请求只渲染一次。
// 第二个返回值表示是否命中缓存。
func (r *Runner) Render(ctx context.Context, req Request) ([]byte, bool, error) {
	if err := r.Normalize(&req); err != nil {
		return nil, false, err
	}
	key := r.Key(req)

	if data, hit, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("cache get failed", "err", err)
	} else if hit {
		r.logger.Debug("cache hit", "key", key)
		return data, true, nil
	}

	v, err, shared := r.group.Do(key, func() (any, error) {
		result, backend, err := r.Layout(ctx, req)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		out, err := backend.Render(result, req.Format)
		if err != nil {
			return nil, fmt.Errorf("渲染 %s 失败: %w", req.Format, err)
		}
		r.logger.Debug("rendered", "format", req.Format, "bytes", len(out),
			"duration", time.Since(start).Round(time.Millisecond))
		if err := r.cache.Set(ctx, key, out, r.ttl); err != nil {
			r.logger.Warn("cache set failed", "err", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		r.logger.Debug("render shared with concurrent request", "key", key)
	}
	return v.([]byte), false, nil
}

// Key 返回请求的缓存键，覆盖所有影响输出的输入。
func (r *Runner) Key(req Request) string {
	data, _ := json.Marshal(r.Data(req.Data))
	return cache.Key("certificate",
		req.Backend,
		req.Sandboxed,
		string(req.Format),
		cache.Hash([]byte(req.Template)),
		cache.Hash(req.Background),
		cache.Hash(req.Logo),
		cache.Hash(data),
	)
}

// Data 返回与默认字段合并后的绑定数据。
func (r *Runner) Data(overrides map[string]any) map[string]any {
	return layout.MergeData(layout.DefaultData(r.now()), overrides)
}

func (r *Runner) backendFor(name string, store *renderer.Store) renderer.Backend {
	if name == config.BackendCanvas {
		return r.canvas.WithStore(store)
	}
	return r.raster.WithStore(store)
}

// Brand 返回数据中的品牌名，用于输出文件名。
func Brand(data map[string]any) string {
	if v, ok := data["brand"].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return "certificate"
}

// FileName 返回 <brand>_certificate.<ext>，品牌名中的路径分隔符与空白替换为下划线。
func FileName(brand string, format renderer.Format) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, brand)
	return clean + "_certificate." + format.Ext()
}
