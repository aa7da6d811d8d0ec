// Package ast defines the node model produced by the parser and walked
// by the optimizer and renderer.
package ast

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/gojinja/gojinja/lexer"
)

// Span locates a node in its source template.
type Span = lexer.Span

// Node is implemented by every AST node. Children exposes the direct
// descendants for generic walks and FindAll.
type Node interface {
	node()
	Span() Span
	Children() []Node
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

func stmtsToNodes(s []Stmt) []Node {
	out := make([]Node, 0, len(s))
	for _, n := range s {
		out = append(out, n)
	}
	return out
}

func exprsToNodes(e []Expr) []Node {
	out := make([]Node, 0, len(e))
	for _, n := range e {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// --- Statements ---

// Template is the root node of a parsed template.
type Template struct {
	Children_ []Stmt
	Span_      Span
}

func NewTemplate(children []Stmt, span Span) *Template { return &Template{children, span} }

func (t *Template) node()        {}
func (t *Template) stmt()        {}
func (t *Template) Span() Span   { return t.Span_ }
func (t *Template) Children() []Node { return stmtsToNodes(t.Children_) }
func (t *Template) Body() []Stmt     { return t.Children_ }

// EmitRaw outputs literal template text.
type EmitRaw struct {
	Raw  string
	Span_ Span
}

func NewEmitRaw(raw string, span Span) *EmitRaw { return &EmitRaw{raw, span} }

func (e *EmitRaw) node()         {}
func (e *EmitRaw) stmt()         {}
func (e *EmitRaw) Span() Span    { return e.Span_ }
func (e *EmitRaw) Children() []Node { return nil }

// EmitExpr outputs the string form of an expression.
type EmitExpr struct {
	Expr Expr
	Span_ Span
}

func NewEmitExpr(expr Expr, span Span) *EmitExpr { return &EmitExpr{expr, span} }

func (e *EmitExpr) node()         {}
func (e *EmitExpr) stmt()         {}
func (e *EmitExpr) Span() Span    { return e.Span_ }
func (e *EmitExpr) Children() []Node { return []Node{e.Expr} }

// ForLoop is a {% for %} statement.
type ForLoop struct {
	Target     Expr
	Iter       Expr
	FilterExpr Expr // optional
	Recursive  bool
	Body       []Stmt
	ElseBody   []Stmt
	Span_       Span
}

func (f *ForLoop) node()      {}
func (f *ForLoop) stmt()      {}
func (f *ForLoop) Span() Span { return f.Span_ }
func (f *ForLoop) Children() []Node {
	n := []Node{f.Target, f.Iter}
	if f.FilterExpr != nil {
		n = append(n, f.FilterExpr)
	}
	n = append(n, stmtsToNodes(f.Body)...)
	n = append(n, stmtsToNodes(f.ElseBody)...)
	return n
}

// IfCond is an if/elif/else statement.
type IfCond struct {
	Expr      Expr
	TrueBody  []Stmt
	FalseBody []Stmt
	Span_      Span
}

func (i *IfCond) node()      {}
func (i *IfCond) stmt()      {}
func (i *IfCond) Span() Span { return i.Span_ }
func (i *IfCond) Children() []Node {
	n := []Node{i.Expr}
	n = append(n, stmtsToNodes(i.TrueBody)...)
	n = append(n, stmtsToNodes(i.FalseBody)...)
	return n
}

// Assignment is a single target/value pair inside a with block.
type Assignment struct {
	Target Expr
	Value  Expr
}

// WithBlock is a {% with %} statement.
type WithBlock struct {
	Assignments []Assignment
	Body        []Stmt
	Span_        Span
}

func (w *WithBlock) node()      {}
func (w *WithBlock) stmt()      {}
func (w *WithBlock) Span() Span { return w.Span_ }
func (w *WithBlock) Children() []Node {
	var n []Node
	for _, a := range w.Assignments {
		n = append(n, a.Target, a.Value)
	}
	n = append(n, stmtsToNodes(w.Body)...)
	return n
}

// Set is a plain {% set x = ... %} assignment.
type Set struct {
	Target Expr
	Expr   Expr
	Span_   Span
}

func (s *Set) node()      {}
func (s *Set) stmt()      {}
func (s *Set) Span() Span { return s.Span_ }
func (s *Set) Children() []Node { return []Node{s.Target, s.Expr} }

// SetBlock is a block-form {% set x %}...{% endset %} capture.
type SetBlock struct {
	Target Expr
	Filter Expr // optional
	Body   []Stmt
	Span_   Span
}

func (s *SetBlock) node()      {}
func (s *SetBlock) stmt()      {}
func (s *SetBlock) Span() Span { return s.Span_ }
func (s *SetBlock) Children() []Node {
	n := []Node{s.Target}
	if s.Filter != nil {
		n = append(n, s.Filter)
	}
	return append(n, stmtsToNodes(s.Body)...)
}

// AutoEscape is a {% autoescape %} block.
type AutoEscape struct {
	Enabled Expr
	Body    []Stmt
	Span_    Span
}

func (a *AutoEscape) node()      {}
func (a *AutoEscape) stmt()      {}
func (a *AutoEscape) Span() Span { return a.Span_ }
func (a *AutoEscape) Children() []Node {
	return append([]Node{a.Enabled}, stmtsToNodes(a.Body)...)
}

// FilterBlock is a {% filter %} block.
type FilterBlock struct {
	Filter Expr
	Body   []Stmt
	Span_   Span
}

func (f *FilterBlock) node()      {}
func (f *FilterBlock) stmt()      {}
func (f *FilterBlock) Span() Span { return f.Span_ }
func (f *FilterBlock) Children() []Node {
	return append([]Node{f.Filter}, stmtsToNodes(f.Body)...)
}

// Block is a named, overridable {% block %}.
type Block struct {
	Name     string
	Body     []Stmt
	Scoped   bool
	Required bool
	Span_     Span
}

func (b *Block) node()      {}
func (b *Block) stmt()      {}
func (b *Block) Span() Span { return b.Span_ }
func (b *Block) Children() []Node { return stmtsToNodes(b.Body) }

// Extends is an {% extends %} statement.
type Extends struct {
	Name Expr
	Span_ Span
}

func (e *Extends) node()      {}
func (e *Extends) stmt()      {}
func (e *Extends) Span() Span { return e.Span_ }
func (e *Extends) Children() []Node { return []Node{e.Name} }

// Include is an {% include %} statement.
type Include struct {
	Name          Expr
	IgnoreMissing bool
	WithContext   bool
	Span_          Span
}

func (i *Include) node()      {}
func (i *Include) stmt()      {}
func (i *Include) Span() Span { return i.Span_ }
func (i *Include) Children() []Node { return []Node{i.Name} }

// Import is a whole-module {% import %} statement.
type Import struct {
	Expr        Expr
	Name        Expr
	WithContext bool
	Span_        Span
}

func (i *Import) node()      {}
func (i *Import) stmt()      {}
func (i *Import) Span() Span { return i.Span_ }
func (i *Import) Children() []Node { return []Node{i.Expr, i.Name} }

// ImportName is one imported name, with an optional alias, inside a
// {% from ... import ... %} statement.
type ImportName struct {
	Name  Expr
	Alias Expr // optional
}

// FromImport is a {% from ... import ... %} statement.
type FromImport struct {
	Expr        Expr
	Names       []ImportName
	WithContext bool
	Span_        Span
}

func (f *FromImport) node()      {}
func (f *FromImport) stmt()      {}
func (f *FromImport) Span() Span { return f.Span_ }
func (f *FromImport) Children() []Node {
	n := []Node{f.Expr}
	for _, nm := range f.Names {
		n = append(n, nm.Name)
		if nm.Alias != nil {
			n = append(n, nm.Alias)
		}
	}
	return n
}

// Macro is a {% macro %} definition.
type Macro struct {
	Name     string
	Args     []Expr
	Defaults []Expr
	Body     []Stmt
	Span_     Span
}

func (m *Macro) node()      {}
func (m *Macro) stmt()      {}
func (m *Macro) Span() Span { return m.Span_ }
func (m *Macro) Children() []Node {
	n := exprsToNodes(m.Args)
	n = append(n, exprsToNodes(m.Defaults)...)
	return append(n, stmtsToNodes(m.Body)...)
}

// CallBlock is a {% call %} statement.
type CallBlock struct {
	Call      *Call
	CallSpan  Span
	MacroDecl *Macro
	MacroSpan Span
	Span_      Span
}

func (c *CallBlock) node()      {}
func (c *CallBlock) stmt()      {}
func (c *CallBlock) Span() Span { return c.Span_ }
func (c *CallBlock) Children() []Node { return []Node{c.Call, c.MacroDecl} }

// Do evaluates an expression, most often a call, purely for effect.
type Do struct {
	Call     *Call
	CallSpan Span
	Span_     Span
}

func (d *Do) node()      {}
func (d *Do) stmt()      {}
func (d *Do) Span() Span { return d.Span_ }
func (d *Do) Children() []Node { return []Node{d.Call} }

// Continue is a loop-control {% continue %} statement.
type Continue struct{ Span_ Span }

func (c *Continue) node()         {}
func (c *Continue) stmt()         {}
func (c *Continue) Span() Span    { return c.Span_ }
func (c *Continue) Children() []Node { return nil }

// Break is a loop-control {% break %} statement.
type Break struct{ Span_ Span }

func (b *Break) node()         {}
func (b *Break) stmt()         {}
func (b *Break) Span() Span    { return b.Span_ }
func (b *Break) Children() []Node { return nil }

// ScopedContextModifier overrides variables for the duration of its body
// without introducing a syntactic with-block (used for loop filter scoping
// and similar internal rewrites).
type ScopedContextModifier struct {
	Overrides map[string]Expr
	Body      []Stmt
	Span_      Span
}

func (s *ScopedContextModifier) node()      {}
func (s *ScopedContextModifier) stmt()      {}
func (s *ScopedContextModifier) Span() Span { return s.Span_ }
func (s *ScopedContextModifier) Children() []Node {
	var n []Node
	for _, e := range s.Overrides {
		n = append(n, e)
	}
	return append(n, stmtsToNodes(s.Body)...)
}

// --- Expressions ---

// Var (a.k.a. Name) is a variable reference.
type Var struct {
	ID   string
	Span_ Span
}

func NewVar(id string, span Span) *Var { return &Var{id, span} }

func (v *Var) node()      {}
func (v *Var) expr()      {}
func (v *Var) Span() Span { return v.Span_ }
func (v *Var) Children() []Node { return nil }

// Const is a literal constant: string, int64, float64, bool, *BigInt, or nil.
type Const struct {
	Value interface{}
	Span_  Span
}

func NewConst(value interface{}, span Span) *Const { return &Const{value, span} }

func (c *Const) node()      {}
func (c *Const) expr()      {}
func (c *Const) Span() Span { return c.Span_ }
func (c *Const) Children() []Node { return nil }

// UnaryOpKind names a unary operator.
type UnaryOpKind int

const (
	UnaryNot UnaryOpKind = iota
	UnaryNeg
	UnaryPos
)

func (k UnaryOpKind) String() string {
	switch k {
	case UnaryNot:
		return "Not"
	case UnaryNeg:
		return "Neg"
	case UnaryPos:
		return "Pos"
	}
	return "?"
}

// UnaryOp applies a unary operator to an expression.
type UnaryOp struct {
	Op   UnaryOpKind
	Expr Expr
	Span_ Span
}

func NewUnaryOp(op UnaryOpKind, expr Expr, span Span) *UnaryOp { return &UnaryOp{op, expr, span} }

func (u *UnaryOp) node()      {}
func (u *UnaryOp) expr()      {}
func (u *UnaryOp) Span() Span { return u.Span_ }
func (u *UnaryOp) Children() []Node { return []Node{u.Expr} }

// BinOpKind names a binary operator, including chained comparisons
// (each comparison link in a Compare chain reuses these kinds).
type BinOpKind int

const (
	BinOpEq BinOpKind = iota
	BinOpNe
	BinOpLt
	BinOpLte
	BinOpGt
	BinOpGte
	BinOpScAnd
	BinOpScOr
	BinOpAdd
	BinOpSub
	BinOpMul
	BinOpDiv
	BinOpFloorDiv
	BinOpRem
	BinOpPow
	BinOpConcat
	BinOpIn
)

func (k BinOpKind) String() string {
	switch k {
	case BinOpEq:
		return "Eq"
	case BinOpNe:
		return "Ne"
	case BinOpLt:
		return "Lt"
	case BinOpLte:
		return "Lte"
	case BinOpGt:
		return "Gt"
	case BinOpGte:
		return "Gte"
	case BinOpScAnd:
		return "ScAnd"
	case BinOpScOr:
		return "ScOr"
	case BinOpAdd:
		return "Add"
	case BinOpSub:
		return "Sub"
	case BinOpMul:
		return "Mul"
	case BinOpDiv:
		return "Div"
	case BinOpFloorDiv:
		return "FloorDiv"
	case BinOpRem:
		return "Rem"
	case BinOpPow:
		return "Pow"
	case BinOpConcat:
		return "Concat"
	case BinOpIn:
		return "In"
	}
	return "?"
}

// IsComparison reports whether the operator belongs to a Compare chain
// rather than arithmetic/boolean combination.
func (k BinOpKind) IsComparison() bool {
	switch k {
	case BinOpEq, BinOpNe, BinOpLt, BinOpLte, BinOpGt, BinOpGte, BinOpIn:
		return true
	}
	return false
}

// BinOp is a binary operation (arithmetic, boolean, concat, membership).
type BinOp struct {
	Op    BinOpKind
	Left  Expr
	Right Expr
	Span_  Span
}

func NewBinOp(op BinOpKind, left, right Expr, span Span) *BinOp { return &BinOp{op, left, right, span} }

func (b *BinOp) node()      {}
func (b *BinOp) expr()      {}
func (b *BinOp) Span() Span { return b.Span_ }
func (b *BinOp) Children() []Node { return []Node{b.Left, b.Right} }

// CompareLink is one (operator, right-hand side) link of a chained
// comparison such as `a < b <= c`.
type CompareLink struct {
	Op    BinOpKind
	Right Expr
}

// Compare is a (possibly chained) comparison expression.
type Compare struct {
	Left  Expr
	Links []CompareLink
	Span_  Span
}

func (c *Compare) node()      {}
func (c *Compare) expr()      {}
func (c *Compare) Span() Span { return c.Span_ }
func (c *Compare) Children() []Node {
	n := []Node{c.Left}
	for _, l := range c.Links {
		n = append(n, l.Right)
	}
	return n
}

// IfExpr is the ternary `a if cond else b` conditional expression.
type IfExpr struct {
	TestExpr  Expr
	TrueExpr  Expr
	FalseExpr Expr // optional
	Span_      Span
}

func (i *IfExpr) node()      {}
func (i *IfExpr) expr()      {}
func (i *IfExpr) Span() Span { return i.Span_ }
func (i *IfExpr) Children() []Node {
	n := []Node{i.TestExpr, i.TrueExpr}
	if i.FalseExpr != nil {
		n = append(n, i.FalseExpr)
	}
	return n
}

// Filter applies a named filter to an optional operand with args/kwargs.
type Filter struct {
	Name string
	Expr Expr // optional: nil inside a FilterBlock's filter chain head
	Args []CallArg
	Span_ Span
}

func (f *Filter) node()      {}
func (f *Filter) expr()      {}
func (f *Filter) Span() Span { return f.Span_ }
func (f *Filter) Children() []Node {
	var n []Node
	if f.Expr != nil {
		n = append(n, f.Expr)
	}
	for _, a := range f.Args {
		n = append(n, a.Value)
	}
	return n
}

// Test applies a named test (`is <test>`) to an operand.
type Test struct {
	Name     string
	Expr     Expr
	Args     []CallArg
	Negated  bool
	Span_     Span
}

func (t *Test) node()      {}
func (t *Test) expr()      {}
func (t *Test) Span() Span { return t.Span_ }
func (t *Test) Children() []Node {
	n := []Node{t.Expr}
	for _, a := range t.Args {
		n = append(n, a.Value)
	}
	return n
}

// GetAttr is attribute access: expr.name.
type GetAttr struct {
	Expr Expr
	Name string
	Span_ Span
}

func (g *GetAttr) node()      {}
func (g *GetAttr) expr()      {}
func (g *GetAttr) Span() Span { return g.Span_ }
func (g *GetAttr) Children() []Node { return []Node{g.Expr} }

// GetItem is subscript access: expr[subscript].
type GetItem struct {
	Expr          Expr
	SubscriptExpr Expr
	Span_          Span
}

func (g *GetItem) node()      {}
func (g *GetItem) expr()      {}
func (g *GetItem) Span() Span { return g.Span_ }
func (g *GetItem) Children() []Node { return []Node{g.Expr, g.SubscriptExpr} }

// Slice is a start:stop:step subscript, each part optional.
type Slice struct {
	Expr  Expr
	Start Expr // optional
	Stop  Expr // optional
	Step  Expr // optional
	Span_  Span
}

func (s *Slice) node()      {}
func (s *Slice) expr()      {}
func (s *Slice) Span() Span { return s.Span_ }
func (s *Slice) Children() []Node {
	n := []Node{s.Expr}
	for _, e := range []Expr{s.Start, s.Stop, s.Step} {
		if e != nil {
			n = append(n, e)
		}
	}
	return n
}

// Call is a function or method call: expr(args...).
type Call struct {
	Expr Expr
	Args []CallArg
	Span_ Span
}

func (c *Call) node()      {}
func (c *Call) expr()      {}
func (c *Call) Span() Span { return c.Span_ }
func (c *Call) Children() []Node {
	n := []Node{c.Expr}
	for _, a := range c.Args {
		n = append(n, a.Value)
	}
	return n
}

// CallArgKind distinguishes positional, keyword, and splat arguments.
type CallArgKind int

const (
	CallArgPos CallArgKind = iota
	CallArgKwarg
	CallArgPosSplat
	CallArgKwargSplat
)

// CallArg is a single call argument.
type CallArg struct {
	Kind  CallArgKind
	Name  string // set when Kind == CallArgKwarg
	Value Expr
}

// List is a list/array literal.
type List struct {
	Items []Expr
	Span_  Span
}

func (l *List) node()      {}
func (l *List) expr()      {}
func (l *List) Span() Span { return l.Span_ }
func (l *List) Children() []Node { return exprsToNodes(l.Items) }

// Tuple is a tuple literal (written `(a, b)` or produced by a trailing
// comma in a parenthesized expression).
type Tuple struct {
	Items []Expr
	Span_  Span
}

func (t *Tuple) node()      {}
func (t *Tuple) expr()      {}
func (t *Tuple) Span() Span { return t.Span_ }
func (t *Tuple) Children() []Node { return exprsToNodes(t.Items) }

// Map is a dict literal.
type Map struct {
	Keys   []Expr
	Values []Expr
	Span_   Span
}

func (m *Map) node()      {}
func (m *Map) expr()      {}
func (m *Map) Span() Span { return m.Span_ }
func (m *Map) Children() []Node {
	n := exprsToNodes(m.Keys)
	return append(n, exprsToNodes(m.Values)...)
}

// Concat joins a run of `~`-concatenated expressions. Kept distinct from
// BinOp(BinOpConcat,...) chains so the optimizer can fold an arbitrarily
// long run in one pass.
type Concat struct {
	Items []Expr
	Span_  Span
}

func (c *Concat) node()      {}
func (c *Concat) expr()      {}
func (c *Concat) Span() Span { return c.Span_ }
func (c *Concat) Children() []Node { return exprsToNodes(c.Items) }

// BigInt wraps big.Int for integer constants too large for int64.
type BigInt struct {
	*big.Int
}

func (b *BigInt) String() string { return b.Int.String() }

// --- Generic walk helpers ---

// Walk visits n and every descendant in pre-order.
func Walk(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children() {
		Walk(c, visit)
	}
}

// FindAll returns every descendant of n (n itself included) assignable
// to T, in pre-order.
func FindAll[T Node](n Node) []T {
	var out []T
	Walk(n, func(node Node) {
		if t, ok := node.(T); ok {
			out = append(out, t)
		}
	})
	return out
}

// --- Debug dump ---

// FormatSpan renders a Span_ as "line:col-line:col".
func FormatSpan(s Span) string {
	return fmt.Sprintf(" @ %d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// Dump renders a node tree in an indented, field-labeled form, useful for
// golden-file tests and debugging macro expansion.
func Dump(n Node, indent int) string {
	ind := strings.Repeat("    ", indent)
	ind1 := strings.Repeat("    ", indent+1)
	ind2 := strings.Repeat("    ", indent+2)

	switch v := n.(type) {
	case *Template:
		return fmt.Sprintf("Template {\n%schildren: %s,\n%s}%s", ind1, dumpStmts(v.Children_, indent+1), ind, FormatSpan(v.Span_))
	case *EmitRaw:
		return fmt.Sprintf("EmitRaw {\n%sraw: %q,\n%s}%s", ind1, v.Raw, ind, FormatSpan(v.Span_))
	case *EmitExpr:
		return fmt.Sprintf("EmitExpr {\n%sexpr: %s,\n%s}%s", ind1, Dump(v.Expr, indent+1), ind, FormatSpan(v.Span_))
	case *ForLoop:
		var sb strings.Builder
		fmt.Fprintf(&sb, "ForLoop {\n%starget: %s,\n", ind1, Dump(v.Target, indent+1))
		fmt.Fprintf(&sb, "%siter: %s,\n", ind1, Dump(v.Iter, indent+1))
		if v.FilterExpr != nil {
			fmt.Fprintf(&sb, "%sfilter: %s,\n", ind1, Dump(v.FilterExpr, indent+1))
		}
		fmt.Fprintf(&sb, "%srecursive: %v,\n", ind1, v.Recursive)
		fmt.Fprintf(&sb, "%sbody: %s,\n", ind1, dumpStmts(v.Body, indent+1))
		fmt.Fprintf(&sb, "%selse: %s,\n", ind1, dumpStmts(v.ElseBody, indent+1))
		fmt.Fprintf(&sb, "%s}%s", ind, FormatSpan(v.Span_))
		return sb.String()
	case *IfCond:
		return fmt.Sprintf("IfCond {\n%sexpr: %s,\n%strue: %s,\n%sfalse: %s,\n%s}%s",
			ind1, Dump(v.Expr, indent+1), ind1, dumpStmts(v.TrueBody, indent+1), ind1, dumpStmts(v.FalseBody, indent+1), ind, FormatSpan(v.Span_))
	case *Block:
		return fmt.Sprintf("Block {\n%sname: %q,\n%sscoped: %v,\n%srequired: %v,\n%sbody: %s,\n%s}%s",
			ind1, v.Name, ind1, v.Scoped, ind1, v.Required, ind1, dumpStmts(v.Body, indent+1), ind, FormatSpan(v.Span_))
	case *Var:
		return fmt.Sprintf("Var(%q)%s", v.ID, FormatSpan(v.Span_))
	case *Const:
		return fmt.Sprintf("Const(%s)%s", formatConstValue(v.Value), FormatSpan(v.Span_))
	case *BinOp:
		return fmt.Sprintf("BinOp {\n%sop: %s,\n%sleft: %s,\n%sright: %s,\n%s}%s",
			ind1, v.Op, ind1, Dump(v.Left, indent+1), ind1, Dump(v.Right, indent+1), ind, FormatSpan(v.Span_))
	case *Filter:
		return fmt.Sprintf("Filter(%q)%s", v.Name, FormatSpan(v.Span_))
	case *Test:
		return fmt.Sprintf("Test(%q)%s", v.Name, FormatSpan(v.Span_))
	case *GetAttr:
		return fmt.Sprintf("GetAttr {\n%sexpr: %s,\n%sname: %q,\n%s}%s", ind1, Dump(v.Expr, indent+1), ind1, v.Name, ind, FormatSpan(v.Span_))
	case *Call:
		return fmt.Sprintf("Call {\n%sexpr: %s,\n%s}%s", ind1, Dump(v.Expr, indent+1), ind, FormatSpan(v.Span_))
	default:
		_ = ind2
		return fmt.Sprintf("<%T>", n)
	}
}

func formatConstValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "none"
	case *BigInt:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

func dumpStmts(stmts []Stmt, indent int) string {
	if len(stmts) == 0 {
		return "[]"
	}
	ind1 := strings.Repeat("    ", indent+1)
	ind := strings.Repeat("    ", indent)
	var sb strings.Builder
	sb.WriteString("[\n")
	for _, s := range stmts {
		sb.WriteString(ind1)
		sb.WriteString(Dump(s, indent+1))
		sb.WriteString(",\n")
	}
	sb.WriteString(ind)
	sb.WriteString("]")
	return sb.String()
}
