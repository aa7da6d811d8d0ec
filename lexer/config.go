package lexer

import "fmt"

// SyntaxConfig holds the delimiters and prefixes for template syntax.
// Any internally consistent choice of the six bracket delimiters (plus
// the two optional line prefixes) is accepted; see Validate.
type SyntaxConfig struct {
	BlockStart   string
	BlockEnd     string
	VarStart     string
	VarEnd       string
	CommentStart string
	CommentEnd   string

	LineStatementPrefix string
	LineCommentPrefix   string
}

// DefaultSyntax returns the default Jinja2 syntax configuration.
func DefaultSyntax() SyntaxConfig {
	return SyntaxConfig{
		BlockStart:   "{%",
		BlockEnd:     "%}",
		VarStart:     "{{",
		VarEnd:       "}}",
		CommentStart: "{#",
		CommentEnd:   "#}",
	}
}

// Validate rejects a syntax configuration the lexer could not tell apart:
// any two of the six bracket delimiters sharing a start string, or an
// empty start/end pair.
func (c SyntaxConfig) Validate() error {
	pairs := map[string]string{
		"block":   c.BlockStart,
		"var":     c.VarStart,
		"comment": c.CommentStart,
	}
	seen := map[string]string{}
	for name, start := range pairs {
		if start == "" {
			return fmt.Errorf("lexer: %s delimiter must not be empty", name)
		}
		if other, ok := seen[start]; ok {
			return fmt.Errorf("lexer: %s and %s delimiters both start with %q", name, other, start)
		}
		seen[start] = name
	}
	if c.BlockEnd == "" || c.VarEnd == "" || c.CommentEnd == "" {
		return fmt.Errorf("lexer: delimiter end markers must not be empty")
	}
	return nil
}

// WhitespaceConfig holds whitespace handling configuration.
type WhitespaceConfig struct {
	KeepTrailingNewline bool
	LstripBlocks        bool
	TrimBlocks          bool
}

// DefaultWhitespace returns the default whitespace configuration.
func DefaultWhitespace() WhitespaceConfig {
	return WhitespaceConfig{
		KeepTrailingNewline: false,
		LstripBlocks:        false,
		TrimBlocks:          false,
	}
}
