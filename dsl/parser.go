// Package dsl 解析证书模板（.cert）。模板由 meta、resources 与 canvas 三类段落组成，
// 语法分析只产出 AST，取值的含义由 layout 包解释。
package dsl

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var documentParser = participle.MustBuild[Document](
	participle.Lexer(certLexer),
	participle.Elide(elided...),
)

// SyntaxError 描述模板中的语法错误位置。
type SyntaxError struct {
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: 模板语法错误: %s", e.File, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("第 %d 行第 %d 列: 模板语法错误: %s", e.Line, e.Column, e.Msg)
}

// Parse parses a template from r.
func Parse(r io.Reader) (*Document, error) {
	return wrap(documentParser.Parse("", r))
}

// ParseString parses a template from a string.
func ParseString(input string) (*Document, error) {
	return wrap(documentParser.ParseString("", input))
}

// ParseFile 读取并解析模板文件，错误位置带文件名。
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开模板 %s: %w", path, err)
	}
	defer f.Close()
	return wrap(documentParser.Parse(path, f))
}

func wrap(doc *Document, err error) (*Document, error) {
	if err == nil {
		return doc, nil
	}
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		return nil, &SyntaxError{File: pos.Filename, Line: pos.Line, Column: pos.Column, Msg: perr.Message()}
	}
	return nil, err
}

// Parse 使 Lexeme 成为语法原子：读取一个记号，遇到换行、花括号或分号时停止。
func (l *Lexeme) Parse(lex *lexer.PeekingLexer) error {
	tok := lex.Peek()
	if endsArgument(tok) {
		return participle.NextMatch
	}
	next, err := takeLexeme(lex)
	if err != nil {
		return err
	}
	*l = *next
	return nil
}

// nesting 跟踪表达式内未闭合的圆括号与方括号。
type nesting struct {
	paren, bracket int
}

func (n *nesting) track(raw string) {
	switch raw {
	case "(":
		n.paren++
	case ")":
		if n.paren > 0 {
			n.paren--
		}
	case "[":
		n.bracket++
	case "]":
		if n.bracket > 0 {
			n.bracket--
		}
	}
}

func (n nesting) top() bool { return n.paren == 0 && n.bracket == 0 }

// ends 判断 tok 是否结束当前表达式：顶层的换行、花括号、分号与逗号，以及未配对的右方括号。
func (n nesting) ends(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	switch tok.Type {
	case tokens.newline, tokens.lbrace, tokens.rbrace:
		return n.top()
	}
	switch {
	case isSymbol(tok, ";"), isSymbol(tok, ","):
		return n.top()
	case isSymbol(tok, "]"):
		return n.bracket == 0
	}
	return false
}

// Parse 收集记号直到表达式结束；一个记号都没有时让出给其他分支。
func (e *Expression) Parse(lex *lexer.PeekingLexer) error {
	var depth nesting
	var parts []*Lexeme
	for !depth.ends(lex.Peek()) {
		l, err := takeLexeme(lex)
		if err != nil {
			return err
		}
		depth.track(l.Raw)
		parts = append(parts, l)
	}
	if len(parts) == 0 {
		return participle.NextMatch
	}
	e.Parts = parts
	return nil
}

func takeLexeme(lex *lexer.PeekingLexer) (*Lexeme, error) {
	tok := lex.Next()
	if tok.EOF() {
		return nil, participle.NextMatch
	}
	l, err := lexemeOf(*tok)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func endsArgument(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	switch tok.Type {
	case tokens.newline, tokens.lbrace, tokens.rbrace:
		return true
	}
	return isSymbol(tok, ";")
}
