package slides

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/ByLCY/certify/binding"
)

// Run 是段落中的一段同格式文本。Props 为 a:rPr 元素，可能为 nil。
type Run struct {
	Props *etree.Element
	Text  string
}

// Paragraph 是 a:p 中按顺序排列的文本段。
type Paragraph struct {
	Runs []Run
}

// Text returns the concatenated text of all runs.
func (p Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// readParagraph 收集 a:p 下的 a:r、a:fld 与 a:br，换行记为 "\n"。
func readParagraph(p *etree.Element) Paragraph {
	var para Paragraph
	for _, child := range p.ChildElements() {
		if child.Space != "a" {
			continue
		}
		switch child.Tag {
		case "r", "fld":
			run := Run{Props: child.SelectElement("a:rPr")}
			if t := child.SelectElement("a:t"); t != nil {
				run.Text = t.Text()
			}
			para.Runs = append(para.Runs, run)
		case "br":
			para.Runs = append(para.Runs, Run{Props: child.SelectElement("a:rPr"), Text: "\n"})
		}
	}
	return para
}

// writeParagraph 移除 a:p 中已有的文本段，按 para 重新生成；a:pPr 与 a:endParaRPr 保持不变。
func writeParagraph(p *etree.Element, para Paragraph) {
	for _, child := range p.ChildElements() {
		if child.Space == "a" && (child.Tag == "r" || child.Tag == "fld" || child.Tag == "br") {
			p.RemoveChild(child)
		}
	}
	insertAt := len(p.Child)
	if end := p.SelectElement("a:endParaRPr"); end != nil {
		insertAt = end.Index()
	}
	for _, run := range para.Runs {
		for i, piece := range strings.Split(run.Text, "\n") {
			if i > 0 {
				br := etree.NewElement("a:br")
				if run.Props != nil {
					br.AddChild(run.Props.Copy())
				}
				p.InsertChildAt(insertAt, br)
				insertAt++
			}
			if piece == "" {
				continue
			}
			r := etree.NewElement("a:r")
			if run.Props != nil {
				r.AddChild(run.Props.Copy())
			}
			t := r.CreateElement("a:t")
			t.SetText(piece)
			p.InsertChildAt(insertAt, r)
			insertAt++
		}
	}
}

// ReplaceText 在所有幻灯片中替换 {Key} 占位符，返回被改写的段落数。
// 被改写的段落合并为一个文本段并沿用首个文本段的格式，因此跨多个文本段的占位符也能被替换。
func (d *Deck) ReplaceText(values map[string]string) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}
	changed := 0
	for _, name := range d.slides {
		doc, err := d.doc(name)
		if err != nil {
			return changed, err
		}
		n := replaceInTree(doc.Root(), values)
		if n > 0 {
			d.markDirty(name)
			changed += n
		}
	}
	return changed, nil
}

func replaceInTree(root *etree.Element, values map[string]string) int {
	if root == nil {
		return 0
	}
	changed := 0
	for _, p := range root.FindElements("//a:p") {
		para := readParagraph(p)
		orig := para.Text()
		if orig == "" {
			continue
		}
		text := binding.Replace(orig, values)
		if text == orig {
			continue
		}
		var props *etree.Element
		for _, r := range para.Runs {
			if r.Props != nil {
				props = r.Props
				break
			}
		}
		writeParagraph(p, Paragraph{Runs: []Run{{Props: props, Text: text}}})
		changed++
	}
	return changed
}

// Paragraphs 返回指定幻灯片（从 0 开始）中所有段落的文本段。
func (d *Deck) Paragraphs(slide int) ([]Paragraph, error) {
	if slide < 0 || slide >= len(d.slides) {
		return nil, ErrNoSlides
	}
	doc, err := d.doc(d.slides[slide])
	if err != nil {
		return nil, err
	}
	var out []Paragraph
	for _, p := range doc.FindElements("//a:p") {
		out = append(out, readParagraph(p))
	}
	return out, nil
}

// ExpandValues 让取值本身也可以引用其他键，例如 FooterText 中的 {brand}。
// 对每个键额外登记一个首字母小写的别名（若未被占用）。
func ExpandValues(values map[string]string) map[string]string {
	lookup := make(map[string]string, len(values)*2)
	for k, v := range values {
		lookup[k] = v
	}
	for k, v := range values {
		if k == "" {
			continue
		}
		alias := strings.ToLower(k[:1]) + k[1:]
		if _, ok := lookup[alias]; !ok {
			lookup[alias] = v
		}
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = binding.Replace(v, lookup)
	}
	return out
}
