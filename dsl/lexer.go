package dsl

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"
)

// certLexer 切分证书模板。规则按顺序匹配：颜色必须先于 # 注释，
// 长度（带 px/pt/mm/in/% 后缀的数字，可为负）先于标识符。
var certLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Newline", Pattern: `\n+`},
	{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
	{Name: "LineComment", Pattern: `//[^\n]*`},
	{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})\b`},
	{Name: "HashComment", Pattern: `#[^\n]*`},
	{Name: "Number", Pattern: `-?(?:\d+\.\d+|\d+)(?:px|pt|mm|in|%)?`},
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
	{Name: "Symbol", Pattern: `[][(),.=+\-*/%<>!?;:]`},
	{Name: "LBrace", Pattern: `{`},
	{Name: "RBrace", Pattern: `}`},
})

// elided 是语法分析时丢弃的记号。
var elided = []string{"Whitespace", "LineComment", "BlockComment", "HashComment"}

// tokens 缓存语法分析中需要区分的记号类型。
var tokens = struct {
	names   map[lexer.TokenType]string
	newline lexer.TokenType
	lbrace  lexer.TokenType
	rbrace  lexer.TokenType
	symbol  lexer.TokenType
	str     lexer.TokenType
}{
	names:   tokenNames(certLexer.Symbols()),
	newline: tokenType("Newline"),
	lbrace:  tokenType("LBrace"),
	rbrace:  tokenType("RBrace"),
	symbol:  tokenType("Symbol"),
	str:     tokenType("String"),
}

func tokenNames(symbols map[string]lexer.TokenType) map[lexer.TokenType]string {
	names := make(map[lexer.TokenType]string, len(symbols))
	for name, tt := range symbols {
		names[tt] = name
	}
	return names
}

func tokenType(name string) lexer.TokenType {
	tt, ok := certLexer.Symbols()[name]
	if !ok {
		panic(fmt.Sprintf("dsl: 未定义记号 %s", name))
	}
	return tt
}

// isSymbol reports whether tok is the punctuation s.
func isSymbol(tok *lexer.Token, s string) bool {
	return tok.Type == tokens.symbol && tok.Value == s
}
