package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/certify/fonts"
	"github.com/ByLCY/certify/layout"
)

// Options configures a Store.
type Options struct {
	BaseDir   string
	Sandboxed bool                // 只允许 BaseDir 内的相对路径，用于不可信模板
	FontDirs  []string            // 查找 system: 字体时优先搜索的目录
	Fonts     map[string]Resource // built-in fonts accessible via built-in:<name>
	Images    map[string]Resource // built-in images accessible via built-in:<name>
}

// ErrPathNotAllowed 表示沙箱模式下模板引用了 BaseDir 之外的文件。
var ErrPathNotAllowed = errors.New("不允许访问该路径")

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// Store 负责解析模板中引用的图片与字体：built-in:* 为注入的数据（例如上传文件），
// embed:* 为内置字体，system:* 为系统字体，其余视为相对 BaseDir 的路径。
type Store struct {
	baseDir    string
	sandboxed  bool
	fontDirs   []string
	fontBlobs  map[string][]byte
	imageBlobs map[string][]byte

	mu     sync.Mutex
	images map[string]image.Image
}

var _ layout.ImageProbe = (*Store)(nil)

// NewStore creates a store with injected resources and optional baseDir.
func NewStore(opts Options) *Store {
	s := &Store{
		baseDir:    opts.BaseDir,
		sandboxed:  opts.Sandboxed,
		fontDirs:   opts.FontDirs,
		fontBlobs:  map[string][]byte{},
		imageBlobs: map[string][]byte{},
		images:     map[string]image.Image{},
	}
	ingest(s.fontBlobs, opts.Fonts)
	ingest(s.imageBlobs, opts.Images)
	return s
}

func ingest(dst map[string][]byte, src map[string]Resource) {
	for name, res := range src {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			dst[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path) // 读取失败时留待使用时报错
			if len(data) > 0 {
				dst[name] = data
			}
		}
	}
}

// WithImages 返回共享字体与目录配置的新 Store，并追加 built-in 图片（例如一次请求上传的背景与 logo）。
func (s *Store) WithImages(images map[string][]byte) *Store {
	child := s.child(len(images))
	for k, v := range images {
		if k != "" && len(v) > 0 {
			child.imageBlobs[k] = v
		}
	}
	return child
}

// Sandboxed 返回只允许 BaseDir 内相对路径的新 Store，供处理外部提交的模板。
func (s *Store) Sandboxed() *Store {
	child := s.child(0)
	child.sandboxed = true
	return child
}

func (s *Store) child(extra int) *Store {
	c := &Store{
		baseDir:    s.baseDir,
		sandboxed:  s.sandboxed,
		fontDirs:   s.fontDirs,
		fontBlobs:  s.fontBlobs,
		imageBlobs: make(map[string][]byte, len(s.imageBlobs)+extra),
		images:     map[string]image.Image{},
	}
	for k, v := range s.imageBlobs {
		c.imageBlobs[k] = v
	}
	return c
}

// Image 解码 src 指向的图片并按 EXIF 方向摆正，结果在 Store 内缓存。
// 资源不存在时返回的错误包装 layout.ErrAssetMissing。
func (s *Store) Image(src string) (image.Image, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("图片路径为空: %w", layout.ErrAssetMissing)
	}

	s.mu.Lock()
	if img, ok := s.images[src]; ok {
		s.mu.Unlock()
		return img, nil
	}
	s.mu.Unlock()

	img, err := s.decodeImage(src)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.images[src] = img
	s.mu.Unlock()
	return img, nil
}

// ImageSize implements layout.ImageProbe.
func (s *Store) ImageSize(src string) (int, int, error) {
	img, err := s.Image(src)
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

func (s *Store) decodeImage(src string) (image.Image, error) {
	if name, ok := builtinName(src); ok {
		blob, ok := s.imageBlobs[name]
		if !ok {
			return nil, fmt.Errorf("找不到内置图片资源 built-in:%s: %w", name, layout.ErrAssetMissing)
		}
		return decode(bytes.NewReader(blob), src)
	}
	if strings.HasPrefix(src, "embed:") {
		return nil, fmt.Errorf("图片资源 %s 未找到（embed 仅支持内置字体，暂不支持图片）", src)
	}

	path, err := s.resolvePath(src)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", src, layout.ErrAssetMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	defer file.Close()
	return decode(file, src)
}

func decode(r io.Reader, src string) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", src, err)
	}
	return img, nil
}

// FontBytes 依次尝试 font.Src、font.Fallback，最后退回内置的 Go Regular 字体。
func (s *Store) FontBytes(font layout.FontResource) ([]byte, error) {
	var firstErr error
	for _, src := range []string{font.Src, font.Fallback} {
		if strings.TrimSpace(src) == "" {
			continue
		}
		data, err := s.loadFont(src)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if data := fonts.Default(); len(data) > 0 {
		return data, nil
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("字体 %s 缺少 src", font.Name)
	}
	return nil, firstErr
}

func (s *Store) loadFont(src string) ([]byte, error) {
	if name, ok := builtinName(src); ok {
		if blob, ok := s.fontBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置字体资源 built-in:%s", name)
	}
	if strings.HasPrefix(src, "embed:") {
		return fonts.Load(src)
	}
	if strings.HasPrefix(src, "system:") {
		name := strings.TrimSpace(strings.TrimPrefix(src, "system:"))
		if s.sandboxed && (name == "" || filepath.Base(name) != name) {
			return nil, fmt.Errorf("系统字体 %s: %w", src, ErrPathNotAllowed)
		}
		return fonts.LoadSystem(src, s.fontDirs)
	}
	path, err := s.resolvePath(src)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *Store) resolvePath(src string) (string, error) {
	if s.sandboxed && !filepath.IsLocal(src) {
		return "", fmt.Errorf("资源 %s: %w", src, ErrPathNotAllowed)
	}
	if filepath.IsAbs(src) {
		return src, nil
	}
	if s.baseDir == "" {
		return "", fmt.Errorf("未指定资源目录时不允许直接使用路径：%s（请改用 built-in: 或 embed:）", src)
	}
	return filepath.Join(s.baseDir, src), nil
}

func builtinName(src string) (string, bool) {
	for _, prefix := range []string{"built-in:", "builtin:"} {
		if strings.HasPrefix(src, prefix) {
			return strings.TrimPrefix(src, prefix), true
		}
	}
	return "", false
}
