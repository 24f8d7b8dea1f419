package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flopp/go-findfont"
	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// 内置字体名称，模板中写作 "embed:<name>"。
const (
	GoRegular   = "go-regular"
	GoBold      = "go-bold"
	LMRoman     = "lm-roman"
	LMRomanBold = "lm-roman-bold"
)

var builtin = map[string][]byte{
	GoRegular:   goregular.TTF,
	GoBold:      gobold.TTF,
	LMRoman:     lmroman10regular.TTF,
	LMRomanBold: lmroman10bold.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:go-regular" 或直接 "go-regular"。
func Load(name string) ([]byte, error) {
	key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "embed:")))
	data, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 未知字体（可用: %s）", key, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Names lists the embedded font names in sorted order.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Default 返回兜底字体（Go Regular），任何环境下都可用。
func Default() []byte {
	return goregular.TTF
}

// FindSystem 在 dirs 与系统字体目录中查找字体文件，name 可写为 "system:DejaVuSans.ttf"。
// dirs 优先，便于在容器中挂载额外字体。
func FindSystem(name string, dirs []string) (string, error) {
	file := strings.TrimSpace(strings.TrimPrefix(name, "system:"))
	if file == "" {
		return "", fmt.Errorf("系统字体名称为空")
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, file)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := findfont.Find(file)
	if err != nil {
		return "", fmt.Errorf("查找系统字体 %s 失败: %w", file, err)
	}
	return path, nil
}

// LoadSystem 读取 FindSystem 找到的字体文件。
func LoadSystem(name string, dirs []string) ([]byte, error) {
	path, err := FindSystem(name, dirs)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取系统字体 %s 失败: %w", path, err)
	}
	return data, nil
}
