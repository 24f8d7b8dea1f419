package slides

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/ByLCY/certify/layout"
)

// borderWidthEMU 是 2pt 线宽（1pt = 12700 EMU）。
const borderWidthEMU = 25400

// a:ln 必须出现在这些 spPr 子元素之前。
var lnSuccessors = map[string]bool{
	"effectLst": true,
	"effectDag": true,
	"scene3d":   true,
	"sp3d":      true,
	"extLst":    true,
}

// RecolorBorders 把第一张幻灯片上名称含 "border" 的形状线条设为 2pt 纯色，返回处理的形状数。
func (d *Deck) RecolorBorders(rgb layout.Color) (int, error) {
	name := d.slides[0]
	doc, err := d.doc(name)
	if err != nil {
		return 0, err
	}
	root := doc.Root()
	if root == nil {
		return 0, nil
	}
	hex := fmt.Sprintf("%02X%02X%02X", clampByte(rgb.R), clampByte(rgb.G), clampByte(rgb.B))
	count := 0
	for _, shape := range borderShapes(root) {
		spPr := shape.SelectElement("p:spPr")
		if spPr == nil {
			spPr = insertSpPr(shape)
		}
		setLine(spPr, hex)
		count++
	}
	if count > 0 {
		d.markDirty(name)
	}
	return count, nil
}

func borderShapes(root *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, path := range []string{"//p:sp", "//p:cxnSp", "//p:pic"} {
		for _, shape := range root.FindElements(path) {
			if strings.Contains(strings.ToLower(shapeName(shape)), "border") {
				out = append(out, shape)
			}
		}
	}
	return out
}

// insertSpPr 在 nv*Pr（图片为 p:blipFill）之后插入 p:spPr。
func insertSpPr(shape *etree.Element) *etree.Element {
	spPr := etree.NewElement("p:spPr")
	at := 0
	for _, child := range shape.ChildElements() {
		if (strings.HasPrefix(child.Tag, "nv") && strings.HasSuffix(child.Tag, "Pr")) || child.Tag == "blipFill" {
			at = child.Index() + 1
		}
	}
	shape.InsertChildAt(at, spPr)
	return spPr
}

func setLine(spPr *etree.Element, hex string) {
	ln := spPr.SelectElement("a:ln")
	if ln == nil {
		ln = etree.NewElement("a:ln")
		at := len(spPr.Child)
		for _, child := range spPr.ChildElements() {
			if lnSuccessors[child.Tag] {
				at = child.Index()
				break
			}
		}
		spPr.InsertChildAt(at, ln)
	}
	ln.CreateAttr("w", strconv.Itoa(borderWidthEMU))

	// 线条填充只能有一种，先清掉已有的
	for _, child := range ln.ChildElements() {
		switch child.Tag {
		case "noFill", "solidFill", "gradFill", "pattFill":
			ln.RemoveChild(child)
		}
	}
	fill := etree.NewElement("a:solidFill")
	fill.CreateElement("a:srgbClr").CreateAttr("val", hex)
	ln.InsertChildAt(0, fill)
}

// ParseHexColor 解析 #RGB、#RRGGBB 或 #RRGGBBAA（忽略透明度），无法解析时返回黑色。
func ParseHexColor(s string) layout.Color {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 8:
		if _, err := strconv.ParseUint(h[6:], 16, 8); err != nil {
			return layout.Color{}
		}
		h = h[:6]
	}
	if len(h) != 6 {
		return layout.Color{}
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return layout.Color{}
	}
	return layout.Color{R: int(v >> 16 & 0xFF), G: int(v >> 8 & 0xFF), B: int(v & 0xFF)}
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
