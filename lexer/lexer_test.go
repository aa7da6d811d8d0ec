package lexer

import "testing"

func TestLexerBasic(t *testing.T) {
	input := "Hello {{ name }}!"
	tokens, err := Tokenize(input, DefaultSyntax(), DefaultWhitespace())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []struct {
		typ   TokenType
		value string
	}{
		{TokenTemplateData, "Hello "},
		{TokenVariableStart, "{{"},
		{TokenIdent, "name"},
		{TokenVariableEnd, "}}"},
		{TokenTemplateData, "!"},
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}
	for i, exp := range expected {
		if tokens[i].Type != exp.typ || tokens[i].Value != exp.value {
			t.Errorf("token %d: expected %s(%q), got %s(%q)",
				i, exp.typ, exp.value, tokens[i].Type, tokens[i].Value)
		}
	}
}

func TestLexerBlockAndOperators(t *testing.T) {
	input := "{% if a == b and c >= 1 %}x{% endif %}"
	tokens, err := Tokenize(input, DefaultSyntax(), DefaultWhitespace())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var kinds []TokenType
	for _, tok := range tokens {
		kinds = append(kinds, tok.Type)
	}
	want := []TokenType{
		TokenBlockStart, TokenIdent, TokenIdent, TokenEq, TokenIdent,
		TokenIdent, TokenIdent, TokenGe, TokenInteger, TokenBlockEnd,
		TokenTemplateData, TokenBlockStart, TokenIdent, TokenBlockEnd,
	}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

func TestLexerTrimBlocks(t *testing.T) {
	ws := DefaultWhitespace()
	ws.TrimBlocks = true
	tokens, err := Tokenize("{% if true %}\nx{% endif %}\n", DefaultSyntax(), ws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tok := range tokens {
		if tok.Type == TokenTemplateData && tok.Value == "\nx" {
			t.Fatalf("expected leading newline after block-end to be trimmed, got %q", tok.Value)
		}
	}
}

func TestLexerWhitespaceControl(t *testing.T) {
	tokens, err := Tokenize("a   {%- if true -%}   b   {%- endif -%}   c", DefaultSyntax(), DefaultWhitespace())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tok := range tokens {
		if tok.Type != TokenTemplateData {
			continue
		}
		if tok.Value == "a   " || tok.Value == "   b   " {
			t.Errorf("expected surrounding whitespace to be stripped by '-' markers, got %q", tok.Value)
		}
	}
}

func TestLexerRawBlock(t *testing.T) {
	tokens, err := Tokenize("{% raw %}{{ not an expr }}{% endraw %}", DefaultSyntax(), DefaultWhitespace())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tok := range tokens {
		if tok.Type == TokenVariableStart {
			t.Fatalf("raw block should not lex its contents as markup, got %v", tokens)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	_, err := Tokenize(`{{ "unterminated }}`, DefaultSyntax(), DefaultWhitespace())
	if err == nil {
		t.Fatalf("expected an error for an unterminated string literal")
	}
}
