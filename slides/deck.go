// Package slides 填充 PPTX 模板：替换 {Key} 占位符、替换 logo 图片、为名称含 border 的形状重新着色。
// Deck 直接编辑 OPC 包内的 XML 部件，其余部件按原样写回。
package slides

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

var (
	// ErrNotPPTX 表示输入不是可识别的 PPTX 包。
	ErrNotPPTX = errors.New("不是有效的 PPTX 文件")
	// ErrNoSlides 表示演示文稿中没有幻灯片。
	ErrNoSlides = errors.New("演示文稿中没有幻灯片")
)

const (
	maxPartSize  = 50 << 20 // 单个部件上限
	maxTotalSize = 200 << 20
	maxEntries   = 10000

	contentTypesPart = "[Content_Types].xml"
	presentationPart = "ppt/presentation.xml"
	presentationRels = "ppt/_rels/presentation.xml.rels"

	relsNS       = "http://schemas.openxmlformats.org/package/2006/relationships"
	imageRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Deck 是一个已打开的 PPTX 包。Deck 不是并发安全的。
type Deck struct {
	order    []string
	raw      map[string][]byte
	modified map[string]time.Time
	docs     map[string]*etree.Document
	dirty    map[string]bool
	slides   []string
}

// OpenFile opens a .pptx file from disk.
func OpenFile(p string) (*Deck, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", p, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("读取 %s 信息失败: %w", p, err)
	}
	return Open(f, info.Size())
}

// Open 读取 PPTX 包。幻灯片顺序取自 presentation.xml，缺失时按 slideN.xml 的编号排序。
func Open(r io.ReaderAt, size int64) (*Deck, error) {
	if size <= 0 || size > maxTotalSize {
		return nil, fmt.Errorf("%w: 文件大小 %d 超出范围", ErrNotPPTX, size)
	}
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPPTX, err)
	}
	if len(zr.File) > maxEntries {
		return nil, fmt.Errorf("%w: 包内文件过多（%d）", ErrNotPPTX, len(zr.File))
	}

	d := &Deck{
		raw:      make(map[string][]byte, len(zr.File)),
		modified: make(map[string]time.Time, len(zr.File)),
		docs:     map[string]*etree.Document{},
		dirty:    map[string]bool{},
	}
	var total int64
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readPart(f)
		if err != nil {
			return nil, err
		}
		total += int64(len(data))
		if total > maxTotalSize {
			return nil, fmt.Errorf("%w: 解压后内容超过 %d 字节", ErrNotPPTX, maxTotalSize)
		}
		d.order = append(d.order, f.Name)
		d.raw[f.Name] = data
		d.modified[f.Name] = f.Modified
	}

	if _, ok := d.raw[contentTypesPart]; !ok {
		return nil, fmt.Errorf("%w: 缺少 %s", ErrNotPPTX, contentTypesPart)
	}
	if _, ok := d.raw[presentationPart]; !ok {
		return nil, fmt.Errorf("%w: 缺少 %s", ErrNotPPTX, presentationPart)
	}

	d.slides = d.presentationOrder()
	if len(d.slides) == 0 {
		d.slides = d.numericOrder()
	}
	if len(d.slides) == 0 {
		return nil, ErrNoSlides
	}
	return d, nil
}

func readPart(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxPartSize {
		return nil, fmt.Errorf("%w: 部件 %s 过大", ErrNotPPTX, f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("读取部件 %s 失败: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("读取部件 %s 失败: %w", f.Name, err)
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("%w: 部件 %s 过大", ErrNotPPTX, f.Name)
	}
	return data, nil
}

// presentationOrder 按 p:sldIdLst 的顺序解析幻灯片部件名。
func (d *Deck) presentationOrder() []string {
	pres, err := d.doc(presentationPart)
	if err != nil {
		return nil
	}
	rels, err := d.doc(presentationRels)
	if err != nil {
		return nil
	}
	targets := map[string]string{}
	for _, rel := range rels.FindElements("//Relationship") {
		targets[rel.SelectAttrValue("Id", "")] = rel.SelectAttrValue("Target", "")
	}
	var out []string
	for _, id := range pres.FindElements("//p:sldIdLst/p:sldId") {
		target := targets[id.SelectAttrValue("r:id", "")]
		if target == "" {
			continue
		}
		name := resolveTarget(path.Dir(presentationPart), target)
		if _, ok := d.raw[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (d *Deck) numericOrder() []string {
	type numbered struct {
		name string
		n    int
	}
	var found []numbered
	for _, name := range d.order {
		m := slidePartPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		found = append(found, numbered{name, n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.name
	}
	return out
}

// SlideCount returns the number of slides.
func (d *Deck) SlideCount() int { return len(d.slides) }

// SlideParts returns the slide part names in presentation order.
func (d *Deck) SlideParts() []string {
	return append([]string(nil), d.slides...)
}

// Part returns the current bytes of a package part.
func (d *Deck) Part(name string) ([]byte, bool) {
	if doc, ok := d.docs[name]; ok && d.dirty[name] {
		data, err := doc.WriteToBytes()
		if err != nil {
			return nil, false
		}
		return data, true
	}
	data, ok := d.raw[name]
	return data, ok
}

// doc 返回部件的 XML 树，首次访问时解析并缓存。
func (d *Deck) doc(name string) (*etree.Document, error) {
	if doc, ok := d.docs[name]; ok {
		return doc, nil
	}
	data, ok := d.raw[name]
	if !ok {
		return nil, fmt.Errorf("部件 %s 不存在", name)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("解析部件 %s 失败: %w", name, err)
	}
	d.docs[name] = doc
	return doc, nil
}

// putDoc 新增或替换一个 XML 部件并标记为已修改。
func (d *Deck) putDoc(name string, doc *etree.Document) {
	if _, ok := d.raw[name]; !ok {
		d.order = append(d.order, name)
		d.raw[name] = nil
	}
	d.docs[name] = doc
	d.dirty[name] = true
}

func (d *Deck) putRaw(name string, data []byte) {
	if _, ok := d.raw[name]; !ok {
		d.order = append(d.order, name)
	}
	d.raw[name] = data
	delete(d.docs, name)
	delete(d.dirty, name)
}

func (d *Deck) markDirty(name string) { d.dirty[name] = true }

// WriteTo 按原始顺序重新打包所有部件。
func (d *Deck) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, name := range d.order {
		data, ok := d.Part(name)
		if !ok {
			return cw.n, fmt.Errorf("序列化部件 %s 失败", name)
		}
		header := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: d.modified[name]}
		if header.Modified.IsZero() {
			header.Modified = time.Now()
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return cw.n, fmt.Errorf("写入部件 %s 失败: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return cw.n, fmt.Errorf("写入部件 %s 失败: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("关闭 PPTX 失败: %w", err)
	}
	return cw.n, nil
}

// Bytes returns the re-packed .pptx.
func (d *Deck) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// resolveTarget 把关系中的相对 Target 解析为包内部件名。
func resolveTarget(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(baseDir, target))
}

// relsPartFor returns the relationships part name of a part, e.g. ppt/slides/_rels/slide1.xml.rels.
func relsPartFor(name string) string {
	return path.Join(path.Dir(name), "_rels", path.Base(name)+".rels")
}
