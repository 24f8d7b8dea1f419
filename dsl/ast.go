package dsl

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"
)

// Document 是证书模板的根节点：
//
//	doc <Name> <Version> { meta {...} resources {...} canvas ... {...} }
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'doc' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Canvas returns the first canvas section, or nil.
func (d *Document) Canvas() *CanvasSection {
	for _, s := range d.Sections {
		if s.Canvas != nil {
			return s.Canvas
		}
	}
	return nil
}

// MetaBlocks 按出现顺序返回所有 meta 段落的内容，后出现的赋值覆盖先出现的。
func (d *Document) MetaBlocks() []*Block {
	var out []*Block
	for _, s := range d.Sections {
		if s.Meta != nil && s.Meta.Block != nil {
			out = append(out, s.Meta.Block)
		}
	}
	return out
}

// ResourceBlocks 按出现顺序返回所有 resources 段落的内容。
func (d *Document) ResourceBlocks() []*Block {
	var out []*Block
	for _, s := range d.Sections {
		if s.Resources != nil && s.Resources.Block != nil {
			out = append(out, s.Resources.Block)
		}
	}
	return out
}

// Section 是顶层段落之一。
type Section struct {
	Meta      *MetaSection      `parser:"  @@"`
	Resources *ResourcesSection `parser:"| @@"`
	Canvas    *CanvasSection    `parser:"| @@"`
}

// Kind returns "meta", "resources", "canvas" or "unknown".
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Resources != nil:
		return "resources"
	case s.Canvas != nil:
		return "canvas"
	}
	return "unknown"
}

type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

type ResourcesSection struct {
	Block *Block `parser:"'resources' @@"`
}

// CanvasSection 描述绘制面。Params 为头部参数，例如 background "bg.png" 或 size 1600 1131。
type CanvasSection struct {
	Params []*Lexeme `parser:"'canvas' @@*"`
	Block  *Block    `parser:"@@"`
}

// Block 是花括号包围的语句列表，语句之间以换行或分号分隔。
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Commands returns the command statements in order.
func (b *Block) Commands() []*Command {
	if b == nil {
		return nil
	}
	var out []*Command
	for _, st := range b.Statements {
		if st.Command != nil {
			out = append(out, st.Command)
		}
	}
	return out
}

// Assignments returns the key: value statements in order.
func (b *Block) Assignments() []*Assignment {
	if b == nil {
		return nil
	}
	var out []*Assignment
	for _, st := range b.Statements {
		if st.Assignment != nil {
			out = append(out, st.Assignment)
		}
	}
	return out
}

// Statement 是赋值、命令或裸字符串三者之一。
type Statement struct {
	Assignment *Assignment  `parser:"  @@"`
	Command    *Command     `parser:"| @@"`
	Text       *TextLiteral `parser:"| @@"`
}

type Assignment struct {
	Key   string `parser:"@Ident"`
	Value *Value `parser:"':' Newline* @@"`
}

// Command 是一条绘制或声明指令，例如 `text Body x 8% y 22% { "..." }`。
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Lexeme      `parser:"@@*"`
	Block *Block         `parser:"( Newline* @@ )?"`
}

type TextLiteral struct {
	Value StringLiteral `parser:"@String"`
}

// Value 是赋值右侧的取值。
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Array  *ArrayValue    `parser:"| @@"`
	Object *InlineObject  `parser:"| @@"`
	Expr   *Expression    `parser:"| @@"`
}

// ArrayValue 元素之间以逗号、分号或换行分隔。
type ArrayValue struct {
	Values []*Value `parser:"'[' Newline* ( @@ ( (',' | ';' | Newline+) Newline* @@ )* )? Newline* ']'"`
}

type InlineObject struct {
	Entries []*Assignment `parser:"'{' Newline* ( @@ Newline* ( (';' | Newline+) Newline* @@ Newline* )* )? Newline* '}'"`
}

// Lexeme 保留单个记号，供命令参数与表达式使用。String 记号的 Value 已去掉引号。
type Lexeme struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

func lexemeOf(tok lexer.Token) (Lexeme, error) {
	name, ok := tokens.names[tok.Type]
	if !ok {
		name = fmt.Sprintf("#%d", tok.Type)
	}
	value := tok.Value
	if tok.Type == tokens.str {
		s, err := strconv.Unquote(tok.Value)
		if err != nil {
			return Lexeme{}, fmt.Errorf("字符串 %s 无效: %w", tok.Value, err)
		}
		value = s
	}
	return Lexeme{Type: name, Value: value, Raw: tok.Value, Pos: tok.Pos}, nil
}

// Expression 保存未求值的原始记号，例如 data.footer。
type Expression struct {
	Parts []*Lexeme
}

// StringLiteral 在捕获时去掉引号并处理转义。
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("字符串字面量为空")
	}
	v, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(v)
	return nil
}
