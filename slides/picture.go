package slides

import (
	"bytes"
	"fmt"
	"image"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/ByLCY/certify/layout"
)

// EMU 换算：1 英寸 = 914400 EMU。
const (
	emuPerInch   = 914400
	newLogoLeft  = emuPerInch * 3 / 10 // 0.3in
	newLogoTop   = emuPerInch * 3 / 10
	newLogoHeight = emuPerInch * 8 / 10 // 0.8in
)

// LogoResult 描述 logo 替换的结果。
type LogoResult struct {
	Replaced bool   // 替换了已有图片
	Added    bool   // 幻灯片上没有图片，新增了一张
	Media    string // 新图片部件名
}

// ReplaceLogo 在第一张幻灯片上替换 logo：优先选择名称含 "logo" 的图片（不区分大小写），
// 否则取第一张图片；新图片按原比例适配并居中于原图片的边界内。
// 没有任何图片时在左上角 0.3in 处新增一张高 0.8in 的图片。
func (d *Deck) ReplaceLogo(data []byte) (LogoResult, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return LogoResult{}, fmt.Errorf("解码 logo 失败: %w", err)
	}
	var pngBuf bytes.Buffer
	if err := imaging.Encode(&pngBuf, img, imaging.PNG); err != nil {
		return LogoResult{}, fmt.Errorf("转换 logo 为 PNG 失败: %w", err)
	}

	slideName := d.slides[0]
	slide, err := d.doc(slideName)
	if err != nil {
		return LogoResult{}, err
	}

	media := fmt.Sprintf("ppt/media/logo-%s.png", uuid.NewString())
	d.putRaw(media, pngBuf.Bytes())
	if err := d.ensureDefaultContentType("png", "image/png"); err != nil {
		return LogoResult{}, err
	}
	relID, err := d.addRelationship(slideName, imageRelType, relativeTarget(slideName, media))
	if err != nil {
		return LogoResult{}, err
	}

	res := LogoResult{Media: media}
	if pic := findLogoCandidate(slide.Root()); pic != nil {
		retargetPicture(pic, relID, img.Bounds())
		res.Replaced = true
	} else {
		if err := addPicture(slide.Root(), relID, img.Bounds()); err != nil {
			return LogoResult{}, err
		}
		res.Added = true
	}
	d.markDirty(slideName)
	return res, nil
}

// findLogoCandidate 递归查找图片（包括组合形状内），名称含 logo 的优先。
func findLogoCandidate(root *etree.Element) *etree.Element {
	if root == nil {
		return nil
	}
	pics := root.FindElements("//p:pic")
	for _, pic := range pics {
		if strings.Contains(strings.ToLower(shapeName(pic)), "logo") {
			return pic
		}
	}
	if len(pics) > 0 {
		return pics[0]
	}
	return nil
}

func shapeName(shape *etree.Element) string {
	for _, nv := range shape.ChildElements() {
		if !strings.HasPrefix(nv.Tag, "nv") {
			continue
		}
		if c := nv.SelectElement("p:cNvPr"); c != nil {
			return c.SelectAttrValue("name", "")
		}
	}
	return ""
}

func retargetPicture(pic *etree.Element, relID string, bounds image.Rectangle) {
	if c := pic.FindElement("./p:nvPicPr/p:cNvPr"); c != nil {
		c.CreateAttr("name", "Logo")
	}
	blipFill := pic.SelectElement("p:blipFill")
	if blipFill == nil {
		blipFill = pic.CreateElement("p:blipFill")
	}
	blip := blipFill.SelectElement("a:blip")
	if blip == nil {
		blip = etree.NewElement("a:blip")
		blipFill.InsertChildAt(0, blip)
	}
	blip.CreateAttr("r:embed", relID)
	// 原图的裁切不适用于新图片
	if crop := blipFill.SelectElement("a:srcRect"); crop != nil {
		blipFill.RemoveChild(crop)
	}

	xfrm := pic.FindElement("./p:spPr/a:xfrm")
	if xfrm == nil {
		return
	}
	off := xfrm.SelectElement("a:off")
	ext := xfrm.SelectElement("a:ext")
	if off == nil || ext == nil {
		return
	}
	box := layout.PixelRect{
		Left:   attrInt(off, "x"),
		Top:    attrInt(off, "y"),
		Width:  attrInt(ext, "cx"),
		Height: attrInt(ext, "cy"),
	}
	pl := layout.Fit(bounds.Dx(), bounds.Dy(), box)
	off.CreateAttr("x", strconv.Itoa(pl.OffsetX))
	off.CreateAttr("y", strconv.Itoa(pl.OffsetY))
	ext.CreateAttr("cx", strconv.Itoa(pl.Width))
	ext.CreateAttr("cy", strconv.Itoa(pl.Height))
}

func addPicture(root *etree.Element, relID string, bounds image.Rectangle) error {
	tree := root.FindElement("//p:cSld/p:spTree")
	if tree == nil {
		return fmt.Errorf("幻灯片缺少 p:spTree")
	}
	height := newLogoHeight
	width := height
	if bounds.Dy() > 0 {
		width = height * bounds.Dx() / bounds.Dy()
	}

	// p:extLst 必须是 spTree 的最后一个子元素
	pic := etree.NewElement("p:pic")
	at := len(tree.Child)
	if extLst := tree.SelectElement("p:extLst"); extLst != nil {
		at = extLst.Index()
	}
	tree.InsertChildAt(at, pic)
	nv := pic.CreateElement("p:nvPicPr")
	c := nv.CreateElement("p:cNvPr")
	c.CreateAttr("id", strconv.Itoa(nextShapeID(root)))
	c.CreateAttr("name", "Logo")
	nv.CreateElement("p:cNvPicPr").CreateElement("a:picLocks").CreateAttr("noChangeAspect", "1")
	nv.CreateElement("p:nvPr")

	fill := pic.CreateElement("p:blipFill")
	fill.CreateElement("a:blip").CreateAttr("r:embed", relID)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	sp := pic.CreateElement("p:spPr")
	xfrm := sp.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", strconv.Itoa(newLogoLeft))
	off.CreateAttr("y", strconv.Itoa(newLogoTop))
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", strconv.Itoa(width))
	ext.CreateAttr("cy", strconv.Itoa(height))
	geom := sp.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")
	return nil
}

func nextShapeID(root *etree.Element) int {
	maxID := 0
	for _, c := range root.FindElements("//p:cNvPr") {
		if id := attrInt(c, "id"); id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}

// addRelationship 在 part 的关系部件中新增一条关系并返回其 Id。
func (d *Deck) addRelationship(part, relType, target string) (string, error) {
	relsName := relsPartFor(part)
	doc, err := d.doc(relsName)
	if err != nil {
		doc = etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		doc.CreateElement("Relationships").CreateAttr("xmlns", relsNS)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("关系部件 %s 无根元素", relsName)
	}
	maxID := 0
	for _, rel := range root.SelectElements("Relationship") {
		id := strings.TrimPrefix(rel.SelectAttrValue("Id", ""), "rId")
		if n, err := strconv.Atoi(id); err == nil && n > maxID {
			maxID = n
		}
	}
	relID := "rId" + strconv.Itoa(maxID+1)
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", relID)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	d.putDoc(relsName, doc)
	return relID, nil
}

// ensureDefaultContentType 确保 [Content_Types].xml 为扩展名登记了 Default 类型。
func (d *Deck) ensureDefaultContentType(ext, contentType string) error {
	doc, err := d.doc(contentTypesPart)
	if err != nil {
		return err
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("%w: %s 无根元素", ErrNotPPTX, contentTypesPart)
	}
	for _, def := range root.SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), ext) {
			return nil
		}
	}
	def := etree.NewElement("Default")
	def.CreateAttr("Extension", ext)
	def.CreateAttr("ContentType", contentType)
	root.InsertChildAt(0, def)
	d.markDirty(contentTypesPart)
	return nil
}

func relativeTarget(fromPart, toPart string) string {
	fromDir := strings.Split(path.Dir(fromPart), "/")
	to := strings.Split(toPart, "/")
	i := 0
	for i < len(fromDir) && i < len(to)-1 && fromDir[i] == to[i] {
		i++
	}
	parts := make([]string, 0, len(fromDir)-i+len(to)-i)
	for j := i; j < len(fromDir); j++ {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	return strings.Join(parts, "/")
}

func attrInt(e *etree.Element, key string) int {
	n, _ := strconv.Atoi(e.SelectAttrValue(key, "0"))
	return n
}
