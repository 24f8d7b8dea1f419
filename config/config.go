// Package config 读取 TOML 配置。未出现在文件中的键沿用 Default 的取值。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config 是 certify 的全部配置。
type Config struct {
	Server Server `toml:"server"`
	Render Render `toml:"render"`
	Cache  Cache  `toml:"cache"`
}

// Server 配置 HTTP 服务。
type Server struct {
	Addr        string `toml:"addr"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// Render 配置渲染后端与素材查找路径。
type Render struct {
	Backend  string   `toml:"backend"` // canvas | raster
	Format   string   `toml:"format"`  // png | pdf
	BaseDir  string   `toml:"base_dir"`
	FontDirs []string `toml:"font_dirs"`
}

// Cache 配置渲染结果缓存。
type Cache struct {
	Kind     string `toml:"kind"` // none | file | redis
	Dir      string `toml:"dir"`
	RedisURL string `toml:"redis_url"`
	TTL      string `toml:"ttl"`
}

// Cache kinds.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Backends.
const (
	BackendCanvas = "canvas"
	BackendRaster = "raster"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", MaxUploadMB: 20},
		Render: Render{Backend: BackendRaster, Format: "png"},
		Cache:  Cache{Kind: CacheNone, TTL: "24h"},
	}
}

// Load 在 Default 之上叠加 path 指向的 TOML 文件；path 为空时直接返回默认配置。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("读取配置 %s 失败: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("配置 %s 含未知键: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("配置 %s 无效: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated values and limits.
func (c Config) Validate() error {
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb 必须为正数")
	}
	switch c.Render.Backend {
	case BackendCanvas, BackendRaster:
	default:
		return fmt.Errorf("未知渲染后端 %q", c.Render.Backend)
	}
	switch strings.ToLower(c.Render.Format) {
	case "png", "pdf":
	default:
		return fmt.Errorf("未知输出格式 %q", c.Render.Format)
	}
	switch c.Cache.Kind {
	case CacheNone, "":
	case CacheFile:
		if c.Cache.Dir == "" {
			return fmt.Errorf("文件缓存需要 dir")
		}
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis 缓存需要 redis_url")
		}
	default:
		return fmt.Errorf("未知缓存类型 %q", c.Cache.Kind)
	}
	if _, err := c.Cache.TTLDuration(); err != nil {
		return err
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (s Server) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// TTLDuration 解析 ttl；为空表示永不过期。
func (c Cache) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("无效的 ttl %q: %w", c.TTL, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("ttl 不能为负: %q", c.TTL)
	}
	return d, nil
}
