package lexer

import (
	"fmt"

	"github.com/gojinja/gojinja/syntax"
)

// TokenType is the closed set of lexical token kinds.
type TokenType int

const (
	// Template data (raw text between tags).
	TokenTemplateData TokenType = iota

	// Markup boundaries.
	TokenVariableStart // {{
	TokenVariableEnd   // }}
	TokenBlockStart    // {%
	TokenBlockEnd      // %}
	TokenCommentStart  // {#
	TokenCommentEnd    // #}

	// Identifiers and literals. Keywords (for, if, in, is, ...) are not
	// distinct token kinds: they arrive as TokenIdent and the parser
	// recognizes their lexeme.
	TokenIdent
	TokenString
	TokenInteger // fits in uint64
	TokenInt128  // larger integer literal, kept as decimal text
	TokenFloat

	// Operators.
	TokenPlus
	TokenMinus
	TokenMul
	TokenDiv
	TokenFloorDiv
	TokenMod
	TokenPow
	TokenTilde

	// Comparisons.
	TokenEq
	TokenNe
	TokenLt
	TokenLe
	TokenGt
	TokenGe

	TokenAssign

	// Punctuation.
	TokenDot
	TokenComma
	TokenColon
	TokenSemicolon
	TokenPipe
	TokenParenOpen
	TokenParenClose
	TokenBracketOpen
	TokenBracketClose
	TokenBraceOpen
	TokenBraceClose

	TokenEOF
)

var tokenTypeNames = map[TokenType]string{
	TokenTemplateData:  "TemplateData",
	TokenVariableStart: "VariableStart",
	TokenVariableEnd:   "VariableEnd",
	TokenBlockStart:    "BlockStart",
	TokenBlockEnd:      "BlockEnd",
	TokenCommentStart:  "CommentStart",
	TokenCommentEnd:    "CommentEnd",
	TokenIdent:         "Ident",
	TokenString:        "String",
	TokenInteger:       "Integer",
	TokenInt128:        "Int128",
	TokenFloat:         "Float",
	TokenPlus:          "Plus",
	TokenMinus:         "Minus",
	TokenMul:           "Mul",
	TokenDiv:           "Div",
	TokenFloorDiv:      "FloorDiv",
	TokenMod:           "Mod",
	TokenPow:           "Pow",
	TokenTilde:         "Tilde",
	TokenEq:            "Eq",
	TokenNe:            "Ne",
	TokenLt:            "Lt",
	TokenLe:            "Le",
	TokenGt:            "Gt",
	TokenGe:            "Ge",
	TokenAssign:        "Assign",
	TokenDot:           "Dot",
	TokenComma:         "Comma",
	TokenColon:         "Colon",
	TokenSemicolon:     "Semicolon",
	TokenPipe:          "Pipe",
	TokenParenOpen:     "ParenOpen",
	TokenParenClose:    "ParenClose",
	TokenBracketOpen:   "BracketOpen",
	TokenBracketClose:  "BracketClose",
	TokenBraceOpen:     "BraceOpen",
	TokenBraceClose:    "BraceClose",
	TokenEOF:           "EOF",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// Span is a location range in source code; 1-based lines, 0-based columns.
type Span = syntax.Span

// Token is an immutable lexical token.
type Token struct {
	Type  TokenType
	Value string // set for Ident, String, Integer, Int128, Float, TemplateData
	Span  Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type, t.Value)
}
