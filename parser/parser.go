package parser

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/gojinja/gojinja/ast"
	"github.com/gojinja/gojinja/lexer"
)

const maxRecursion = 150

var reservedNames = map[string]bool{
	"true": true, "True": true,
	"false": true, "False": true,
	"none": true, "None": true,
	"loop": true, "self": true,
}

// Span locates a token or node in its source template.
type Span = ast.Span

// statementTagNames lists every tag that can open a statement, used to
// build the "Jinja was looking for" suggestion list in error messages.
var statementTagNames = []string{
	"for", "if", "with", "set", "autoescape", "filter", "block",
	"extends", "include", "import", "from", "macro", "call",
	"continue", "break", "do",
}

// Error represents a parse error.
type Error struct {
	Kind   string
	Detail string
	Name   string
	Line   uint16
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Detail, e.Line)
}

// Result represents the result of parsing: either an AST or an error.
type Result struct {
	Template *ast.Template
	Err      *Error
}

// blockFrame tracks one currently-open block during parsing, so that a
// syntax error deep inside it can name the block that needs closing.
type blockFrame struct {
	openTag         string
	expectedEndTags []string
}

// Parser parses Jinja2 templates.
type Parser struct {
	tokens     []lexer.Token
	pos        int
	filename   string
	inMacro    bool
	inLoop     bool
	blocks     map[string]bool
	depth      int
	lastSpan   Span
	blockStack []blockFrame
}

// Parse parses a template string and returns the AST or an error.
func Parse(source, filename string, syntax lexer.SyntaxConfig, whitespace lexer.WhitespaceConfig) (*ast.Template, error) {
	tokens, err := lexer.Tokenize(source, syntax, whitespace)
	if err != nil {
		return nil, &Error{
			Kind:   "SyntaxError",
			Detail: err.Error(),
			Name:   filename,
			Line:   1,
		}
	}

	p := &Parser{
		tokens:   tokens,
		filename: filename,
		blocks:   make(map[string]bool),
	}

	tmpl, parseErr := p.parse()
	if parseErr != nil {
		return nil, parseErr
	}
	return tmpl, nil
}

// ParseDefault parses a template string using default config and returns the AST or an error.
func ParseDefault(source, filename string) Result {
	syntaxCfg := lexer.DefaultSyntax()
	whitespaceCfg := lexer.DefaultWhitespace()

	tmpl, err := Parse(source, filename, syntaxCfg, whitespaceCfg)
	if err != nil {
		if e, ok := err.(*Error); ok {
			return Result{Err: e}
		}
		return Result{Err: &Error{Kind: "ParseError", Detail: err.Error(), Name: filename}}
	}
	return Result{Template: tmpl}
}

func (p *Parser) parse() (*ast.Template, *Error) {
	// Root template always starts at 0:0
	span := Span{StartLine: 0, StartCol: 0, StartOffset: 0}
	children, err := p.subparse(func(tok lexer.Token) bool { return false }, false)
	if err != nil {
		return nil, err
	}
	return ast.NewTemplate(children, p.expandSpan(span)), nil
}

func (p *Parser) current() *lexer.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) advance() *lexer.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	tok := &p.tokens[p.pos]
	p.lastSpan = tok.Span
	p.pos++
	return tok
}

func (p *Parser) currentSpan() Span {
	if tok := p.current(); tok != nil {
		return tok.Span
	}
	return p.lastSpan
}

func (p *Parser) expandSpan(start Span) Span {
	return Span{
		StartLine:   start.StartLine,
		StartCol:    start.StartCol,
		StartOffset: start.StartOffset,
		EndLine:     p.lastSpan.EndLine,
		EndCol:      p.lastSpan.EndCol,
		EndOffset:   p.lastSpan.EndOffset,
	}
}

func (p *Parser) syntaxError(msg string) *Error {
	span := p.currentSpan()
	return &Error{
		Kind:   "SyntaxError",
		Detail: msg,
		Name:   p.filename,
		Line:   span.StartLine,
	}
}

func (p *Parser) unexpected(got string, expected string) *Error {
	return p.syntaxError(fmt.Sprintf("unexpected %s, expected %s", got, expected))
}

func (p *Parser) unexpectedEOF(expected string) *Error {
	return p.syntaxError(fmt.Sprintf("unexpected end of input, expected %s", expected))
}

// --- Open-block tracking and tag-error formatting ---

func (p *Parser) pushBlock(tag string, expectedEndTags []string) {
	p.blockStack = append(p.blockStack, blockFrame{openTag: tag, expectedEndTags: expectedEndTags})
}

func (p *Parser) popBlock() {
	p.blockStack = p.blockStack[:len(p.blockStack)-1]
}

func (p *Parser) setExpectedEndTags(tags []string) {
	if len(p.blockStack) > 0 {
		p.blockStack[len(p.blockStack)-1].expectedEndTags = tags
	}
}

func (p *Parser) innermostBlock() string {
	if len(p.blockStack) == 0 {
		return ""
	}
	return p.blockStack[len(p.blockStack)-1].openTag
}

func (p *Parser) expectedTagsHere() []string {
	expected := append([]string{}, statementTagNames...)
	if len(p.blockStack) > 0 {
		expected = append(expected, p.blockStack[len(p.blockStack)-1].expectedEndTags...)
	}
	return expected
}

func formatTagList(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = fmt.Sprintf("'%s'", t)
	}
	return strings.Join(parts, " or ")
}

func (p *Parser) unknownTagError(name string) *Error {
	msg := fmt.Sprintf("Encountered unknown tag '%s'. Jinja was looking for the following tags: %s.",
		name, formatTagList(p.expectedTagsHere()))
	if inner := p.innermostBlock(); inner != "" {
		msg += fmt.Sprintf(" The innermost block that needs to be closed is '%s'.", inner)
	}
	return p.syntaxError(msg)
}

func (p *Parser) unterminatedBlockError() *Error {
	if inner := p.innermostBlock(); inner != "" {
		return p.syntaxError(fmt.Sprintf(
			"Unexpected end of template. Jinja was looking for the following tags: %s. The innermost block that needs to be closed is '%s'.",
			formatTagList(p.expectedTagsHere()), inner))
	}
	return p.syntaxError("Unexpected end of template.")
}

func (p *Parser) expect(typ lexer.TokenType, expected string) (*lexer.Token, *Error) {
	tok := p.advance()
	if tok == nil {
		return nil, p.unexpectedEOF(expected)
	}
	if tok.Type != typ {
		return nil, p.unexpected(tokenDescription(tok), expected)
	}
	return tok, nil
}

func (p *Parser) expectIdent(expected string) (string, Span, *Error) {
	tok := p.advance()
	if tok == nil {
		return "", Span{}, p.unexpectedEOF(expected)
	}
	if tok.Type != lexer.TokenIdent {
		return "", Span{}, p.unexpected(tokenDescription(tok), expected)
	}
	return tok.Value, tok.Span, nil
}

func (p *Parser) expectKeyword(kw string, expected string) *Error {
	tok := p.advance()
	if tok == nil {
		return p.unexpectedEOF(expected)
	}
	if tok.Type != lexer.TokenIdent || tok.Value != kw {
		return p.unexpected(tokenDescription(tok), expected)
	}
	return nil
}

func (p *Parser) skip(typ lexer.TokenType) bool {
	if tok := p.current(); tok != nil && tok.Type == typ {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) skipKeyword(kw string) bool {
	if tok := p.current(); tok != nil && tok.Type == lexer.TokenIdent && tok.Value == kw {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matches(typ lexer.TokenType) bool {
	tok := p.current()
	return tok != nil && tok.Type == typ
}

func (p *Parser) matchesKeyword(kw string) bool {
	tok := p.current()
	return tok != nil && tok.Type == lexer.TokenIdent && tok.Value == kw
}

func (p *Parser) matchesAny(types ...lexer.TokenType) bool {
	tok := p.current()
	if tok == nil {
		return false
	}
	for _, t := range types {
		if tok.Type == t {
			return true
		}
	}
	return false
}

func (p *Parser) matchesAnyKeyword(keywords ...string) bool {
	tok := p.current()
	if tok == nil || tok.Type != lexer.TokenIdent {
		return false
	}
	for _, kw := range keywords {
		if tok.Value == kw {
			return true
		}
	}
	return false
}

func tokenDescription(tok *lexer.Token) string {
	switch tok.Type {
	case lexer.TokenIdent:
		return "identifier"
	case lexer.TokenString:
		return "string"
	case lexer.TokenInteger, lexer.TokenInt128:
		return "integer"
	case lexer.TokenFloat:
		return "float"
	case lexer.TokenBlockEnd:
		return "end of block"
	case lexer.TokenVariableEnd:
		return "end of variable block"
	default:
		return fmt.Sprintf("`%s`", tok.Value)
	}
}

// --- Expression Parsing ---

func (p *Parser) parseExpr() (ast.Expr, *Error) {
	p.depth++
	if p.depth > maxRecursion {
		return nil, p.syntaxError("template exceeds maximum recursion limits")
	}
	defer func() { p.depth-- }()
	return p.parseIfExpr()
}

func (p *Parser) parseExprNoIf() (ast.Expr, *Error) {
	return p.parseOr()
}

func (p *Parser) parseIfExpr() (ast.Expr, *Error) {
	span := p.lastSpan
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	for p.skipKeyword("if") {
		testExpr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		var falseExpr ast.Expr
		if p.skipKeyword("else") {
			falseExpr, err = p.parseIfExpr()
			if err != nil {
				return nil, err
			}
		}
		expr = &ast.IfExpr{
			TestExpr:  testExpr,
			TrueExpr:  expr,
			FalseExpr: falseExpr,
			Span_:     p.expandSpan(span),
		}
		span = p.lastSpan
	}
	return expr, nil
}

func (p *Parser) parseOr() (ast.Expr, *Error) {
	span := p.currentSpan()
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.skipKeyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: ast.BinOpScOr, Left: left, Right: right, Span_: p.expandSpan(span)}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, *Error) {
	span := p.currentSpan()
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.skipKeyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: ast.BinOpScAnd, Left: left, Right: right, Span_: p.expandSpan(span)}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, *Error) {
	span := p.currentSpan()
	if p.skipKeyword("not") {
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: ast.UnaryNot, Expr: expr, Span_: p.expandSpan(span)}, nil
	}
	return p.parseCompare()
}

// parseCompare builds a (possibly chained) comparison such as `a < b <= c`
// into a single ast.Compare node rather than nested BinOps.
func (p *Parser) parseCompare() (ast.Expr, *Error) {
	span := p.lastSpan
	left, err := p.parseMath1()
	if err != nil {
		return nil, err
	}

	var links []ast.CompareLink
	negations := make([]bool, 0)

	for {
		var op ast.BinOpKind
		negated := false

		tok := p.current()
		if tok == nil {
			break
		}

		switch tok.Type {
		case lexer.TokenEq:
			op = ast.BinOpEq
		case lexer.TokenNe:
			op = ast.BinOpNe
		case lexer.TokenLt:
			op = ast.BinOpLt
		case lexer.TokenLe:
			op = ast.BinOpLte
		case lexer.TokenGt:
			op = ast.BinOpGt
		case lexer.TokenGe:
			op = ast.BinOpGte
		case lexer.TokenIdent:
			if tok.Value == "in" {
				op = ast.BinOpIn
			} else if tok.Value == "not" {
				p.advance()
				if err := p.expectKeyword("in", "in"); err != nil {
					return nil, err
				}
				op = ast.BinOpIn
				negated = true
			} else {
				goto done
			}
		default:
			goto done
		}

		if !negated {
			p.advance()
		}

		right, err := p.parseMath1()
		if err != nil {
			return nil, err
		}
		links = append(links, ast.CompareLink{Op: op, Right: right})
		negations = append(negations, negated)
	}

done:
	if len(links) == 0 {
		return left, nil
	}

	// A negated membership link ("not in") can't be folded into a chain
	// alongside plain links without changing its truth table, so only
	// build a Compare chain when nothing in it is negated; otherwise
	// wrap each negated link individually, matching how `is not` is
	// handled for Test expressions.
	hasNegation := false
	for _, n := range negations {
		if n {
			hasNegation = true
			break
		}
	}
	if !hasNegation {
		return &ast.Compare{Left: left, Links: links, Span_: p.expandSpan(span)}, nil
	}

	expr := left
	for i, link := range links {
		cmp := &ast.BinOp{Op: link.Op, Left: expr, Right: link.Right, Span_: p.expandSpan(span)}
		if negations[i] {
			expr = &ast.UnaryOp{Op: ast.UnaryNot, Expr: cmp, Span_: p.expandSpan(span)}
		} else {
			expr = cmp
		}
	}
	return expr, nil
}

func (p *Parser) parseMath1() (ast.Expr, *Error) {
	span := p.currentSpan()
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOpKind
		switch {
		case p.skip(lexer.TokenPlus):
			op = ast.BinOpAdd
		case p.skip(lexer.TokenMinus):
			op = ast.BinOpSub
		default:
			return left, nil
		}
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right, Span_: p.expandSpan(span)}
	}
}

// parseConcat collects an entire run of `~`-joined operands into a single
// ast.Concat node instead of a left-leaning BinOp chain.
func (p *Parser) parseConcat() (ast.Expr, *Error) {
	span := p.currentSpan()
	left, err := p.parseMath2()
	if err != nil {
		return nil, err
	}
	if !p.matches(lexer.TokenTilde) {
		return left, nil
	}
	items := []ast.Expr{left}
	for p.skip(lexer.TokenTilde) {
		right, err := p.parseMath2()
		if err != nil {
			return nil, err
		}
		items = append(items, right)
	}
	return &ast.Concat{Items: items, Span_: p.expandSpan(span)}, nil
}

func (p *Parser) parseMath2() (ast.Expr, *Error) {
	span := p.currentSpan()
	left, err := p.parsePow()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOpKind
		switch {
		case p.skip(lexer.TokenMul):
			op = ast.BinOpMul
		case p.skip(lexer.TokenDiv):
			op = ast.BinOpDiv
		case p.skip(lexer.TokenFloorDiv):
			op = ast.BinOpFloorDiv
		case p.skip(lexer.TokenMod):
			op = ast.BinOpRem
		default:
			return left, nil
		}
		right, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right, Span_: p.expandSpan(span)}
	}
}

func (p *Parser) parsePow() (ast.Expr, *Error) {
	span := p.currentSpan()
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.skip(lexer.TokenPow) {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: ast.BinOpPow, Left: left, Right: right, Span_: p.expandSpan(span)}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, *Error) {
	span := p.currentSpan()
	expr, err := p.parseUnaryOnly()
	if err != nil {
		return nil, err
	}
	expr, err = p.parsePostfix(expr, span)
	if err != nil {
		return nil, err
	}
	return p.parseFilterExpr(expr)
}

func (p *Parser) parseUnaryOnly() (ast.Expr, *Error) {
	span := p.currentSpan()
	if p.skip(lexer.TokenMinus) {
		expr, err := p.parseUnaryOnly()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: ast.UnaryNeg, Expr: expr, Span_: p.expandSpan(span)}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePostfix(expr ast.Expr, span Span) (ast.Expr, *Error) {
	for {
		nextSpan := p.currentSpan()
		switch {
		case p.skip(lexer.TokenDot):
			name, _, err := p.expectIdent("identifier")
			if err != nil {
				return nil, err
			}
			expr = &ast.GetAttr{Expr: expr, Name: name, Span_: p.expandSpan(span)}

		case p.skip(lexer.TokenBracketOpen):
			var start, stop, step ast.Expr
			var isSlice bool
			var err *Error

			if !p.matches(lexer.TokenColon) {
				start, err = p.parseExpr()
				if err != nil {
					return nil, err
				}
			}
			if p.skip(lexer.TokenColon) {
				isSlice = true
				if !p.matchesAny(lexer.TokenBracketClose, lexer.TokenColon) {
					stop, err = p.parseExpr()
					if err != nil {
						return nil, err
					}
				}
				if p.skip(lexer.TokenColon) && !p.matches(lexer.TokenBracketClose) {
					step, err = p.parseExpr()
					if err != nil {
						return nil, err
					}
				}
			}
			if _, err := p.expect(lexer.TokenBracketClose, "`]`"); err != nil {
				return nil, err
			}

			if !isSlice {
				if start == nil {
					return nil, p.syntaxError("empty subscript")
				}
				expr = &ast.GetItem{Expr: expr, SubscriptExpr: start, Span_: p.expandSpan(span)}
			} else {
				expr = &ast.Slice{Expr: expr, Start: start, Stop: stop, Step: step, Span_: p.expandSpan(span)}
			}

		case p.matches(lexer.TokenParenOpen):
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.Call{Expr: expr, Args: args, Span_: p.expandSpan(span)}

		default:
			return expr, nil
		}
		span = nextSpan
	}
}

func (p *Parser) parseFilterExpr(expr ast.Expr) (ast.Expr, *Error) {
	for {
		switch {
		case p.skip(lexer.TokenPipe):
			name, span, err := p.expectIdent("identifier")
			if err != nil {
				return nil, err
			}
			var args []ast.CallArg
			if p.matches(lexer.TokenParenOpen) {
				args, err = p.parseArgs()
				if err != nil {
					return nil, err
				}
			}
			expr = &ast.Filter{Name: name, Expr: expr, Args: args, Span_: p.expandSpan(span)}

		case p.matchesKeyword("is"):
			p.advance()
			negated := p.skipKeyword("not")
			name, span, err := p.expectIdent("identifier")
			if err != nil {
				return nil, err
			}
			var args []ast.CallArg
			if p.matches(lexer.TokenParenOpen) {
				args, err = p.parseArgs()
				if err != nil {
					return nil, err
				}
			} else if p.matchesAny(lexer.TokenIdent, lexer.TokenString, lexer.TokenInteger,
				lexer.TokenInt128, lexer.TokenFloat, lexer.TokenPlus, lexer.TokenMinus,
				lexer.TokenBracketOpen, lexer.TokenBraceOpen) &&
				!p.matchesAnyKeyword("and", "or", "else", "is") {
				argSpan := p.currentSpan()
				argExpr, err := p.parseUnaryOnly()
				if err != nil {
					return nil, err
				}
				argExpr, err = p.parsePostfix(argExpr, argSpan)
				if err != nil {
					return nil, err
				}
				args = []ast.CallArg{{Kind: ast.CallArgPos, Value: argExpr}}
			}
			expr = &ast.Test{Name: name, Expr: expr, Args: args, Span_: p.expandSpan(span)}
			if negated {
				expr = &ast.UnaryOp{Op: ast.UnaryNot, Expr: expr, Span_: p.expandSpan(span)}
			}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.CallArg, *Error) {
	var args []ast.CallArg
	hasKwargs := false

	if _, err := p.expect(lexer.TokenParenOpen, "`(`"); err != nil {
		return nil, err
	}

	for {
		if p.skip(lexer.TokenParenClose) {
			break
		}
		if len(args) > 0 || hasKwargs {
			if _, err := p.expect(lexer.TokenComma, "`,`"); err != nil {
				return nil, err
			}
			if p.skip(lexer.TokenParenClose) {
				break
			}
		}

		// Check for splats
		var argType int // 0=regular, 1=splat, 2=kwargs_splat
		if p.skip(lexer.TokenPow) {
			argType = 2
		} else if p.skip(lexer.TokenMul) {
			argType = 1
		}

		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		switch argType {
		case 0:
			// Check for keyword argument
			if v, ok := expr.(*ast.Var); ok && p.skip(lexer.TokenAssign) {
				hasKwargs = true
				value, err := p.parseExprNoIf()
				if err != nil {
					return nil, err
				}
				args = append(args, ast.CallArg{Kind: ast.CallArgKwarg, Name: v.ID, Value: value})
			} else if hasKwargs {
				return nil, p.syntaxError("non-keyword arg after keyword arg")
			} else {
				args = append(args, ast.CallArg{Kind: ast.CallArgPos, Value: expr})
			}
		case 1:
			args = append(args, ast.CallArg{Kind: ast.CallArgPosSplat, Value: expr})
		case 2:
			args = append(args, ast.CallArg{Kind: ast.CallArgKwargSplat, Value: expr})
			hasKwargs = true
		}

		if len(args) > 2000 {
			return nil, p.syntaxError("Too many arguments in function call")
		}
	}

	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expr, *Error) {
	p.depth++
	if p.depth > maxRecursion {
		return nil, p.syntaxError("template exceeds maximum recursion limits")
	}
	defer func() { p.depth-- }()

	tok := p.advance()
	if tok == nil {
		return nil, p.unexpectedEOF("expression")
	}
	span := tok.Span

	switch tok.Type {
	case lexer.TokenIdent:
		switch tok.Value {
		case "true", "True":
			return &ast.Const{Value: true, Span_: span}, nil
		case "false", "False":
			return &ast.Const{Value: false, Span_: span}, nil
		case "none", "None":
			return &ast.Const{Value: nil, Span_: span}, nil
		default:
			return &ast.Var{ID: tok.Value, Span_: span}, nil
		}

	case lexer.TokenString:
		// Check for string concatenation
		val := tok.Value
		for p.matches(lexer.TokenString) {
			next := p.advance()
			val += next.Value
		}
		return &ast.Const{Value: val, Span_: p.expandSpan(span)}, nil

	case lexer.TokenInteger:
		// Parse as int64 first
		val, err := strconv.ParseInt(tok.Value, 0, 64)
		if err == nil {
			return &ast.Const{Value: val, Span_: span}, nil
		}
		// Overflow - parse as big.Int
		bi := new(big.Int)
		bi.SetString(tok.Value, 0)
		return &ast.Const{Value: &ast.BigInt{Int: bi}, Span_: span}, nil

	case lexer.TokenInt128:
		// Parse as big.Int
		bi := new(big.Int)
		bi.SetString(tok.Value, 0)
		return &ast.Const{Value: &ast.BigInt{Int: bi}, Span_: span}, nil

	case lexer.TokenFloat:
		val, _ := strconv.ParseFloat(tok.Value, 64)
		return &ast.Const{Value: val, Span_: span}, nil

	case lexer.TokenParenOpen:
		return p.parseTupleOrExpr(span)

	case lexer.TokenBracketOpen:
		return p.parseListExpr(span)

	case lexer.TokenBraceOpen:
		return p.parseMapExpr(span)

	default:
		return nil, p.syntaxError(fmt.Sprintf("unexpected %s", tokenDescription(tok)))
	}
}

func (p *Parser) parseTupleOrExpr(span Span) (ast.Expr, *Error) {
	// Empty parens is the empty tuple.
	if p.skip(lexer.TokenParenClose) {
		return &ast.Tuple{Items: nil, Span_: p.expandSpan(span)}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if p.matches(lexer.TokenComma) {
		items := []ast.Expr{expr}
		for {
			if p.skip(lexer.TokenParenClose) {
				break
			}
			if _, err := p.expect(lexer.TokenComma, "`,`"); err != nil {
				return nil, err
			}
			if p.skip(lexer.TokenParenClose) {
				break
			}
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return &ast.Tuple{Items: items, Span_: p.expandSpan(span)}, nil
	}

	if _, err := p.expect(lexer.TokenParenClose, "`)`"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parseListExpr(span Span) (ast.Expr, *Error) {
	var items []ast.Expr
	for {
		if p.skip(lexer.TokenBracketClose) {
			break
		}
		if len(items) > 0 {
			if _, err := p.expect(lexer.TokenComma, "`,`"); err != nil {
				return nil, err
			}
			if p.skip(lexer.TokenBracketClose) {
				break
			}
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &ast.List{Items: items, Span_: p.expandSpan(span)}, nil
}

func (p *Parser) parseMapExpr(span Span) (ast.Expr, *Error) {
	var keys, values []ast.Expr
	for {
		if p.skip(lexer.TokenBraceClose) {
			break
		}
		if len(keys) > 0 {
			if _, err := p.expect(lexer.TokenComma, "`,`"); err != nil {
				return nil, err
			}
			if p.skip(lexer.TokenBraceClose) {
				break
			}
		}
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenColon, "`:`"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		values = append(values, value)
	}
	return &ast.Map{Keys: keys, Values: values, Span_: p.expandSpan(span)}, nil
}

// --- Statement Parsing ---

func (p *Parser) parseStmt() (ast.Stmt, *Error) {
	p.depth++
	if p.depth > maxRecursion {
		return nil, p.syntaxError("template exceeds maximum recursion limits")
	}
	defer func() { p.depth-- }()

	tok := p.advance()
	if tok == nil {
		return nil, p.unexpectedEOF("block keyword")
	}
	span := tok.Span

	if tok.Type != lexer.TokenIdent {
		return nil, p.unexpected(tokenDescription(tok), "statement")
	}

	switch tok.Value {
	case "for":
		stmt, err := p.parseForStmt()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "if":
		stmt, err := p.parseIfCond()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "with":
		stmt, err := p.parseWithBlock()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "set":
		return p.parseSet(span)

	case "autoescape":
		stmt, err := p.parseAutoEscape()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "filter":
		stmt, err := p.parseFilterBlock()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "block":
		stmt, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "extends":
		stmt, err := p.parseExtends()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "include":
		stmt, err := p.parseInclude()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "import":
		stmt, err := p.parseImport()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "from":
		stmt, err := p.parseFromImport()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "macro":
		stmt, err := p.parseMacro()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "call":
		stmt, err := p.parseCallBlock(span)
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	case "continue":
		if !p.inLoop {
			return nil, p.syntaxError("'continue' must be placed inside a loop")
		}
		return &ast.Continue{Span_: p.expandSpan(span)}, nil

	case "break":
		if !p.inLoop {
			return nil, p.syntaxError("'break' must be placed inside a loop")
		}
		return &ast.Break{Span_: p.expandSpan(span)}, nil

	case "do":
		stmt, err := p.parseDo()
		if err != nil {
			return nil, err
		}
		stmt.Span_ = p.expandSpan(span)
		return stmt, nil

	default:
		return nil, p.unknownTagError(tok.Value)
	}
}

func (p *Parser) parseAssignName(dotted bool) (ast.Expr, *Error) {
	name, span, err := p.expectIdent("identifier")
	if err != nil {
		return nil, err
	}
	if reservedNames[name] {
		return nil, p.syntaxError(fmt.Sprintf("cannot assign to reserved variable name %s", name))
	}
	var result ast.Expr = &ast.Var{ID: name, Span_: span}

	if dotted {
		for p.skip(lexer.TokenDot) {
			attr, attrSpan, err := p.expectIdent("identifier")
			if err != nil {
				return nil, err
			}
			result = &ast.GetAttr{Expr: result, Name: attr, Span_: attrSpan}
		}
	}
	return result, nil
}

// parseAssignment parses a (possibly tuple-unpacking) assignment target.
func (p *Parser) parseAssignment(dotted bool) (ast.Expr, *Error) {
	span := p.currentSpan()
	var items []ast.Expr
	isTuple := false

	for {
		if len(items) > 0 {
			if _, err := p.expect(lexer.TokenComma, "`,`"); err != nil {
				return nil, err
			}
		}
		if p.matchesAny(lexer.TokenParenClose, lexer.TokenVariableEnd, lexer.TokenBlockEnd) ||
			p.matchesKeyword("in") {
			break
		}

		var item ast.Expr
		var err *Error
		if p.skip(lexer.TokenParenOpen) {
			item, err = p.parseAssignment(dotted)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenParenClose, "`)`"); err != nil {
				return nil, err
			}
		} else {
			item, err = p.parseAssignName(dotted)
			if err != nil {
				return nil, err
			}
		}
		items = append(items, item)

		if p.matches(lexer.TokenComma) {
			isTuple = true
		} else {
			break
		}
	}

	if !isTuple && len(items) == 1 {
		return items[0], nil
	}
	return &ast.Tuple{Items: items, Span_: p.expandSpan(span)}, nil
}

func (p *Parser) parseForStmt() (*ast.ForLoop, *Error) {
	oldInLoop := p.inLoop
	p.inLoop = true
	defer func() { p.inLoop = oldInLoop }()

	target, err := p.parseAssignment(false)
	if err != nil {
		return nil, err
	}

	if err := p.expectKeyword("in", "in"); err != nil {
		return nil, err
	}

	iter, err := p.parseExprNoIf()
	if err != nil {
		return nil, err
	}

	var filterExpr ast.Expr
	if p.skipKeyword("if") {
		filterExpr, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}

	recursive := p.skipKeyword("recursive")

	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	p.pushBlock("for", []string{"endfor", "else"})
	defer p.popBlock()

	body, err := p.subparse(func(tok lexer.Token) bool {
		return tok.Type == lexer.TokenIdent && (tok.Value == "endfor" || tok.Value == "else")
	}, true)
	if err != nil {
		return nil, err
	}

	var elseBody []ast.Stmt
	if p.skipKeyword("else") {
		if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
			return nil, err
		}
		p.setExpectedEndTags([]string{"endfor"})
		elseBody, err = p.subparse(func(tok lexer.Token) bool {
			return tok.Type == lexer.TokenIdent && tok.Value == "endfor"
		}, true)
		if err != nil {
			return nil, err
		}
	}
	p.advance() // consume endfor

	return &ast.ForLoop{
		Target:     target,
		Iter:       iter,
		FilterExpr: filterExpr,
		Recursive:  recursive,
		Body:       body,
		ElseBody:   elseBody,
	}, nil
}

func (p *Parser) parseIfCond() (*ast.IfCond, *Error) {
	expr, err := p.parseExprNoIf()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	p.pushBlock("if", []string{"endif", "elif", "else"})
	defer p.popBlock()

	trueBody, err := p.subparse(func(tok lexer.Token) bool {
		return tok.Type == lexer.TokenIdent && (tok.Value == "endif" || tok.Value == "else" || tok.Value == "elif")
	}, true)
	if err != nil {
		return nil, err
	}

	var falseBody []ast.Stmt
	tok := p.advance()
	if tok != nil && tok.Type == lexer.TokenIdent {
		switch tok.Value {
		case "else":
			if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
				return nil, err
			}
			p.setExpectedEndTags([]string{"endif"})
			falseBody, err = p.subparse(func(tok lexer.Token) bool {
				return tok.Type == lexer.TokenIdent && tok.Value == "endif"
			}, true)
			if err != nil {
				return nil, err
			}
			p.advance() // consume endif

		case "elif":
			span := tok.Span
			nested, err := p.parseIfCond()
			if err != nil {
				return nil, err
			}
			nested.Span_ = p.expandSpan(span)
			falseBody = []ast.Stmt{nested}
		}
	}

	return &ast.IfCond{
		Expr:      expr,
		TrueBody:  trueBody,
		FalseBody: falseBody,
	}, nil
}

func (p *Parser) parseWithBlock() (*ast.WithBlock, *Error) {
	var assignments []ast.Assignment

	for !p.matches(lexer.TokenBlockEnd) {
		if len(assignments) > 0 {
			if _, err := p.expect(lexer.TokenComma, "comma"); err != nil {
				return nil, err
			}
		}

		var target ast.Expr
		var err *Error
		if p.skip(lexer.TokenParenOpen) {
			target, err = p.parseAssignment(false)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenParenClose, "`)`"); err != nil {
				return nil, err
			}
		} else {
			target, err = p.parseAssignName(false)
			if err != nil {
				return nil, err
			}
		}

		if _, err := p.expect(lexer.TokenAssign, "assignment operator"); err != nil {
			return nil, err
		}

		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		assignments = append(assignments, ast.Assignment{Target: target, Value: value})
	}

	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	p.pushBlock("with", []string{"endwith"})
	defer p.popBlock()

	body, err := p.subparse(func(tok lexer.Token) bool {
		return tok.Type == lexer.TokenIdent && tok.Value == "endwith"
	}, true)
	if err != nil {
		return nil, err
	}
	p.advance() // consume endwith

	return &ast.WithBlock{Assignments: assignments, Body: body}, nil
}

func (p *Parser) parseSet(span Span) (ast.Stmt, *Error) {
	target, err := p.parseAssignment(true)
	if err != nil {
		return nil, err
	}

	// Check for set block ({% set x %}...{% endset %})
	if p.matchesAny(lexer.TokenBlockEnd, lexer.TokenPipe) {
		var filter ast.Expr
		if p.skip(lexer.TokenPipe) {
			filter, err = p.parseFilterChain()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
			return nil, err
		}

		p.pushBlock("set", []string{"endset"})
		defer p.popBlock()

		body, err := p.subparse(func(tok lexer.Token) bool {
			return tok.Type == lexer.TokenIdent && tok.Value == "endset"
		}, true)
		if err != nil {
			return nil, err
		}
		p.advance() // consume endset
		return &ast.SetBlock{
			Target: target,
			Filter: filter,
			Body:   body,
			Span_:  p.expandSpan(span),
		}, nil
	}

	// Regular set statement
	if _, err := p.expect(lexer.TokenAssign, "assignment operator"); err != nil {
		return nil, err
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	// Check for tuple assignment
	if p.skip(lexer.TokenComma) {
		tupleSpan := p.currentSpan()
		items := []ast.Expr{expr}
		for {
			if p.matches(lexer.TokenBlockEnd) {
				break
			}
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if !p.skip(lexer.TokenComma) {
				break
			}
		}
		expr = &ast.Tuple{Items: items, Span_: p.expandSpan(tupleSpan)}
	}

	return &ast.Set{Target: target, Expr: expr, Span_: p.expandSpan(span)}, nil
}

func (p *Parser) parseFilterChain() (ast.Expr, *Error) {
	var filter ast.Expr

	for !p.matches(lexer.TokenBlockEnd) {
		if filter != nil {
			if _, err := p.expect(lexer.TokenPipe, "`|`"); err != nil {
				return nil, err
			}
		}
		name, span, err := p.expectIdent("identifier")
		if err != nil {
			return nil, err
		}
		var args []ast.CallArg
		if p.matches(lexer.TokenParenOpen) {
			args, err = p.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		filter = &ast.Filter{Name: name, Expr: filter, Args: args, Span_: p.expandSpan(span)}
	}

	if filter == nil {
		return nil, p.syntaxError("expected a filter")
	}
	return filter, nil
}

func (p *Parser) parseAutoEscape() (*ast.AutoEscape, *Error) {
	enabled, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	p.pushBlock("autoescape", []string{"endautoescape"})
	defer p.popBlock()

	body, err := p.subparse(func(tok lexer.Token) bool {
		return tok.Type == lexer.TokenIdent && tok.Value == "endautoescape"
	}, true)
	if err != nil {
		return nil, err
	}
	p.advance() // consume endautoescape

	return &ast.AutoEscape{Enabled: enabled, Body: body}, nil
}

func (p *Parser) parseFilterBlock() (*ast.FilterBlock, *Error) {
	filter, err := p.parseFilterChain()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	p.pushBlock("filter", []string{"endfilter"})
	defer p.popBlock()

	body, err := p.subparse(func(tok lexer.Token) bool {
		return tok.Type == lexer.TokenIdent && tok.Value == "endfilter"
	}, true)
	if err != nil {
		return nil, err
	}
	p.advance() // consume endfilter

	return &ast.FilterBlock{Filter: filter, Body: body}, nil
}

func (p *Parser) parseBlock() (*ast.Block, *Error) {
	if p.inMacro {
		return nil, p.syntaxError("block tags in macros are not allowed")
	}
	oldInLoop := p.inLoop
	p.inLoop = false
	defer func() { p.inLoop = oldInLoop }()

	name, _, err := p.expectIdent("identifier")
	if err != nil {
		return nil, err
	}

	scoped := false
	required := false
	for !p.matches(lexer.TokenBlockEnd) {
		if p.skipKeyword("scoped") {
			scoped = true
			continue
		}
		if p.skipKeyword("required") {
			required = true
			continue
		}
		break
	}

	if p.blocks[name] {
		return nil, p.syntaxError(fmt.Sprintf("block '%s' defined twice", name))
	}
	p.blocks[name] = true

	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	p.pushBlock("block", []string{"endblock"})
	defer p.popBlock()

	body, err := p.subparse(func(tok lexer.Token) bool {
		return tok.Type == lexer.TokenIdent && tok.Value == "endblock"
	}, true)
	if err != nil {
		return nil, err
	}
	p.advance() // consume endblock

	// Check for optional trailing block name
	if tok := p.current(); tok != nil && tok.Type == lexer.TokenIdent {
		if tok.Value != name {
			return nil, p.syntaxError(fmt.Sprintf("mismatching name on block. Got `%s`, expected `%s`", tok.Value, name))
		}
		p.advance()
	}

	return &ast.Block{Name: name, Body: body, Scoped: scoped, Required: required}, nil
}

func (p *Parser) parseExtends() (*ast.Extends, *Error) {
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Extends{Name: name}, nil
}

func (p *Parser) parseInclude() (*ast.Include, *Error) {
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	withContext := true
	if w, skipped := p.skipContextMarker(); skipped {
		withContext = w
	}

	ignoreMissing := false
	if p.skipKeyword("ignore") {
		if err := p.expectKeyword("missing", "missing keyword"); err != nil {
			return nil, err
		}
		if w, skipped := p.skipContextMarker(); skipped {
			withContext = w
		}
		ignoreMissing = true
	}

	return &ast.Include{Name: name, IgnoreMissing: ignoreMissing, WithContext: withContext}, nil
}

func (p *Parser) parseImport() (*ast.Import, *Error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if err := p.expectKeyword("as", "as"); err != nil {
		return nil, err
	}

	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	withContext := false
	if w, skipped := p.skipContextMarker(); skipped {
		withContext = w
	}

	return &ast.Import{Expr: expr, Name: name, WithContext: withContext}, nil
}

func (p *Parser) parseFromImport() (*ast.FromImport, *Error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if err := p.expectKeyword("import", "import"); err != nil {
		return nil, err
	}

	var names []ast.ImportName
	withContext := false // from-import, like import, defaults to not sharing context
	for {
		if w, skipped := p.skipContextMarker(); skipped {
			withContext = w
			break
		}
		if p.matches(lexer.TokenBlockEnd) {
			break
		}
		if len(names) > 0 {
			if _, err := p.expect(lexer.TokenComma, "`,`"); err != nil {
				return nil, err
			}
		}
		if w, skipped := p.skipContextMarker(); skipped {
			withContext = w
			break
		}
		if p.matches(lexer.TokenBlockEnd) {
			break
		}

		name, err := p.parseAssignName(false)
		if err != nil {
			return nil, err
		}

		var alias ast.Expr
		if p.skipKeyword("as") {
			alias, err = p.parseAssignName(false)
			if err != nil {
				return nil, err
			}
		}

		names = append(names, ast.ImportName{Name: name, Alias: alias})
	}

	return &ast.FromImport{Expr: expr, Names: names, WithContext: withContext}, nil
}

// skipContextMarker consumes an optional `with context` / `without context`
// suffix, reporting whether context should be passed through.
func (p *Parser) skipContextMarker() (withContext bool, skipped bool) {
	if p.skipKeyword("with") {
		p.expectKeyword("context", "context")
		return true, true
	}
	if p.skipKeyword("without") {
		p.expectKeyword("context", "context")
		return false, true
	}
	return false, false
}

func (p *Parser) parseMacro() (*ast.Macro, *Error) {
	name, _, err := p.expectIdent("identifier")
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenParenOpen, "`(`"); err != nil {
		return nil, err
	}

	var args, defaults []ast.Expr
	if err := p.parseMacroArgsAndDefaults(&args, &defaults); err != nil {
		return nil, err
	}

	return p.parseMacroOrCallBlockBody(args, defaults, name)
}

func (p *Parser) parseMacroArgsAndDefaults(args, defaults *[]ast.Expr) *Error {
	for {
		if p.skip(lexer.TokenParenClose) {
			break
		}
		if len(*args) > 0 {
			if _, err := p.expect(lexer.TokenComma, "`,`"); err != nil {
				return err
			}
			if p.skip(lexer.TokenParenClose) {
				break
			}
		}

		arg, err := p.parseAssignName(false)
		if err != nil {
			return err
		}
		*args = append(*args, arg)

		if p.skip(lexer.TokenAssign) {
			def, err := p.parseExpr()
			if err != nil {
				return err
			}
			*defaults = append(*defaults, def)
		} else if len(*defaults) > 0 {
			if _, err := p.expect(lexer.TokenAssign, "`=`"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Parser) parseMacroOrCallBlockBody(args, defaults []ast.Expr, name string) (*ast.Macro, *Error) {
	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	oldInLoop := p.inLoop
	oldInMacro := p.inMacro
	p.inLoop = false
	p.inMacro = true
	defer func() {
		p.inLoop = oldInLoop
		p.inMacro = oldInMacro
	}()

	endKeyword := "endmacro"
	openTag := "macro"
	if name == "" {
		endKeyword = "endcall"
		openTag = "call"
		name = "caller"
	}

	p.pushBlock(openTag, []string{endKeyword})
	defer p.popBlock()

	body, err := p.subparse(func(tok lexer.Token) bool {
		return tok.Type == lexer.TokenIdent && tok.Value == endKeyword
	}, true)
	if err != nil {
		return nil, err
	}
	p.advance() // consume end keyword

	return &ast.Macro{Name: name, Args: args, Defaults: defaults, Body: body}, nil
}

func (p *Parser) parseCallBlock(span Span) (*ast.CallBlock, *Error) {
	var args, defaults []ast.Expr
	if p.skip(lexer.TokenParenOpen) {
		if err := p.parseMacroArgsAndDefaults(&args, &defaults); err != nil {
			return nil, err
		}
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	call, ok := expr.(*ast.Call)
	if !ok {
		return nil, p.syntaxError(fmt.Sprintf("expected call expression in call block, got %s", exprDescription(expr)))
	}
	callSpan := call.Span_

	macroDecl, err := p.parseMacroOrCallBlockBody(args, defaults, "")
	if err != nil {
		return nil, err
	}

	return &ast.CallBlock{
		Call:      call,
		CallSpan:  callSpan,
		MacroDecl: macroDecl,
		MacroSpan: p.expandSpan(span),
	}, nil
}

func (p *Parser) parseDo() (*ast.Do, *Error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	call, ok := expr.(*ast.Call)
	if !ok {
		return nil, p.syntaxError(fmt.Sprintf("expected call expression in do block, got %s", exprDescription(expr)))
	}

	return &ast.Do{Call: call, CallSpan: call.Span_}, nil
}

func exprDescription(e ast.Expr) string {
	switch e.(type) {
	case *ast.Var:
		return "variable"
	case *ast.Const:
		return "constant"
	case *ast.Call:
		return "call"
	case *ast.List:
		return "list literal"
	case *ast.Tuple:
		return "tuple literal"
	case *ast.Map:
		return "map literal"
	case *ast.Test:
		return "test expression"
	case *ast.Filter:
		return "filter expression"
	default:
		return "expression"
	}
}

// subparse consumes statements and template data until endCheck matches the
// current token (which is left unconsumed) or the token stream runs out.
// When requireClose is true, running out of tokens first is a syntax error
// naming the block that was left open; the root template passes false since
// reaching end-of-input there is success.
func (p *Parser) subparse(endCheck func(lexer.Token) bool, requireClose bool) ([]ast.Stmt, *Error) {
	var stmts []ast.Stmt

	for {
		tok := p.advance()
		if tok == nil {
			if requireClose {
				return nil, p.unterminatedBlockError()
			}
			break
		}

		switch tok.Type {
		case lexer.TokenTemplateData:
			stmts = append(stmts, &ast.EmitRaw{Raw: tok.Value, Span_: tok.Span})

		case lexer.TokenVariableStart:
			span := tok.Span
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, &ast.EmitExpr{Expr: expr, Span_: p.expandSpan(span)})
			if _, err := p.expect(lexer.TokenVariableEnd, "end of variable block"); err != nil {
				return nil, err
			}

		case lexer.TokenBlockStart:
			if current := p.current(); current == nil {
				if requireClose {
					return nil, p.unterminatedBlockError()
				}
				return nil, p.unexpectedEOF("block keyword")
			} else if endCheck(*current) {
				return stmts, nil
			}
			stmt, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
			if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
				return nil, err
			}

		default:
			// This shouldn't happen with well-formed lexer output
			return nil, p.syntaxError(fmt.Sprintf("unexpected token %s", tok.Type))
		}
	}

	return stmts, nil
}

// FormatResult formats a parse result for golden-file testing.
func FormatResult(r Result) string {
	if r.Err != nil {
		return fmt.Sprintf("Err(\n    Error {\n        kind: %s,\n        detail: %q,\n        name: %q,\n        line: %d,\n    },\n)",
			r.Err.Kind, r.Err.Detail, r.Err.Name, r.Err.Line)
	}
	return fmt.Sprintf("Ok(\n    %s,\n)", ast.Dump(r.Template, 1))
}
