// Package optimizer implements constant folding over the parsed AST: any
// subexpression built entirely out of literals and pure operators (unary/
// binary arithmetic, chained comparison, concatenation, ternary selection)
// is replaced by the literal it would evaluate to. Nothing with a
// side effect or an environment dependency (calls, filters, tests,
// attribute/item access, variable lookups) is ever folded, so a folded
// template renders identically to the unfolded one — folding only removes
// redundant re-computation of the same literal arithmetic on every render.
package optimizer

import (
	"github.com/gojinja/gojinja/ast"
	"github.com/gojinja/gojinja/value"
)

// Optimize returns a new template whose body has its constant
// subexpressions folded into ast.Const nodes. Statement and expression
// nodes are rewritten in place, so the nodes of the input template are
// modified as well. It walks the same parent/child shape the
// renderer does (each node's Children()), but needs read/write access
// to replace a child, so it switches on concrete type rather than using
// the read-only Children() walk.
func Optimize(tmpl *ast.Template) *ast.Template {
	return ast.NewTemplate(foldStmts(tmpl.Body()), tmpl.Span())
}

func foldStmts(stmts []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = foldStmt(s)
	}
	return out
}

func foldStmt(s ast.Stmt) ast.Stmt {
	switch n := s.(type) {
	case *ast.EmitExpr:
		n.Expr = foldExpr(n.Expr)
	case *ast.ForLoop:
		n.Target = foldExpr(n.Target)
		n.Iter = foldExpr(n.Iter)
		if n.FilterExpr != nil {
			n.FilterExpr = foldExpr(n.FilterExpr)
		}
		n.Body = foldStmts(n.Body)
		n.ElseBody = foldStmts(n.ElseBody)
	case *ast.IfCond:
		n.Expr = foldExpr(n.Expr)
		n.TrueBody = foldStmts(n.TrueBody)
		n.FalseBody = foldStmts(n.FalseBody)
	case *ast.WithBlock:
		for i := range n.Assignments {
			n.Assignments[i].Target = foldExpr(n.Assignments[i].Target)
			n.Assignments[i].Value = foldExpr(n.Assignments[i].Value)
		}
		n.Body = foldStmts(n.Body)
	case *ast.Set:
		n.Target = foldExpr(n.Target)
		n.Expr = foldExpr(n.Expr)
	case *ast.SetBlock:
		n.Target = foldExpr(n.Target)
		if n.Filter != nil {
			n.Filter = foldExpr(n.Filter)
		}
		n.Body = foldStmts(n.Body)
	case *ast.AutoEscape:
		n.Enabled = foldExpr(n.Enabled)
		n.Body = foldStmts(n.Body)
	case *ast.FilterBlock:
		n.Filter = foldExpr(n.Filter)
		n.Body = foldStmts(n.Body)
	case *ast.Block:
		n.Body = foldStmts(n.Body)
	case *ast.Extends:
		n.Name = foldExpr(n.Name)
	case *ast.Include:
		n.Name = foldExpr(n.Name)
	case *ast.Import:
		n.Expr = foldExpr(n.Expr)
		n.Name = foldExpr(n.Name)
	case *ast.FromImport:
		n.Expr = foldExpr(n.Expr)
	case *ast.Macro:
		for i := range n.Defaults {
			n.Defaults[i] = foldExpr(n.Defaults[i])
		}
		n.Body = foldStmts(n.Body)
	case *ast.CallBlock:
		foldCallInPlace(n.Call)
		n.MacroDecl.Body = foldStmts(n.MacroDecl.Body)
	case *ast.Do:
		foldCallInPlace(n.Call)
	case *ast.ScopedContextModifier:
		for k, e := range n.Overrides {
			n.Overrides[k] = foldExpr(e)
		}
		n.Body = foldStmts(n.Body)
	}
	return s
}

func foldCallInPlace(c *ast.Call) {
	if c == nil {
		return
	}
	c.Expr = foldExpr(c.Expr)
	for i := range c.Args {
		c.Args[i].Value = foldExpr(c.Args[i].Value)
	}
}

func foldExpr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.UnaryOp:
		n.Expr = foldExpr(n.Expr)
		if c, ok := n.Expr.(*ast.Const); ok {
			if v, ok := foldUnary(n.Op, constToValue(c)); ok {
				if folded, ok := valueToConst(v, n.Span()); ok {
					return folded
				}
			}
		}
		return n

	case *ast.BinOp:
		n.Left = foldExpr(n.Left)
		n.Right = foldExpr(n.Right)
		lc, lok := n.Left.(*ast.Const)
		rc, rok := n.Right.(*ast.Const)
		if lok && rok && n.Op != ast.BinOpScAnd && n.Op != ast.BinOpScOr {
			if v, err := applyBinOp(n.Op, constToValue(lc), constToValue(rc)); err == nil {
				if folded, ok := valueToConst(v, n.Span()); ok {
					return folded
				}
			}
		}
		return n

	case *ast.Compare:
		n.Left = foldExpr(n.Left)
		allConst := isConst(n.Left)
		for i := range n.Links {
			n.Links[i].Right = foldExpr(n.Links[i].Right)
			allConst = allConst && isConst(n.Links[i].Right)
		}
		if allConst {
			if v, ok := foldCompare(n); ok {
				if folded, ok := valueToConst(v, n.Span()); ok {
					return folded
				}
			}
		}
		return n

	case *ast.IfExpr:
		n.TestExpr = foldExpr(n.TestExpr)
		n.TrueExpr = foldExpr(n.TrueExpr)
		if n.FalseExpr != nil {
			n.FalseExpr = foldExpr(n.FalseExpr)
		}
		if c, ok := n.TestExpr.(*ast.Const); ok {
			if constToValue(c).IsTrue() {
				return n.TrueExpr
			}
			if n.FalseExpr != nil {
				return n.FalseExpr
			}
		}
		return n

	case *ast.Concat:
		allConst := len(n.Items) > 0
		for i := range n.Items {
			n.Items[i] = foldExpr(n.Items[i])
			allConst = allConst && isConst(n.Items[i])
		}
		if allConst {
			result := constToValue(n.Items[0].(*ast.Const))
			for _, item := range n.Items[1:] {
				result = result.Concat(constToValue(item.(*ast.Const)))
			}
			if folded, ok := valueToConst(result, n.Span()); ok {
				return folded
			}
		}
		return n

	case *ast.Filter:
		if n.Expr != nil {
			n.Expr = foldExpr(n.Expr)
		}
		foldCallArgs(n.Args)
		return n

	case *ast.Test:
		n.Expr = foldExpr(n.Expr)
		foldCallArgs(n.Args)
		return n

	case *ast.GetAttr:
		n.Expr = foldExpr(n.Expr)
		return n

	case *ast.GetItem:
		n.Expr = foldExpr(n.Expr)
		n.SubscriptExpr = foldExpr(n.SubscriptExpr)
		return n

	case *ast.Slice:
		n.Expr = foldExpr(n.Expr)
		if n.Start != nil {
			n.Start = foldExpr(n.Start)
		}
		if n.Stop != nil {
			n.Stop = foldExpr(n.Stop)
		}
		if n.Step != nil {
			n.Step = foldExpr(n.Step)
		}
		return n

	case *ast.Call:
		foldCallInPlace(n)
		return n

	case *ast.List:
		for i := range n.Items {
			n.Items[i] = foldExpr(n.Items[i])
		}
		return n

	case *ast.Tuple:
		for i := range n.Items {
			n.Items[i] = foldExpr(n.Items[i])
		}
		return n

	case *ast.Map:
		for i := range n.Keys {
			n.Keys[i] = foldExpr(n.Keys[i])
		}
		for i := range n.Values {
			n.Values[i] = foldExpr(n.Values[i])
		}
		return n

	default:
		return e
	}
}

func foldCallArgs(args []ast.CallArg) {
	for i := range args {
		args[i].Value = foldExpr(args[i].Value)
	}
}

func isConst(e ast.Expr) bool {
	_, ok := e.(*ast.Const)
	return ok
}

// foldUnary mirrors the renderer's evalUnaryOp for the operators it
// actually supports (Not, Neg); an unsupported op is left unfolded so the
// renderer's own error path still fires at render time.
func foldUnary(op ast.UnaryOpKind, val value.Value) (value.Value, bool) {
	switch op {
	case ast.UnaryNot:
		return value.FromBool(!val.IsTrue()), true
	case ast.UnaryNeg:
		v, err := val.Neg()
		return v, err == nil
	default:
		return value.Value{}, false
	}
}

// foldCompare mirrors the renderer's evalCompare, short-circuiting at the
// first falsy link of a chained comparison.
func foldCompare(cmp *ast.Compare) (value.Value, bool) {
	left := constToValue(cmp.Left.(*ast.Const))
	for _, link := range cmp.Links {
		right := constToValue(link.Right.(*ast.Const))
		result, err := applyBinOp(link.Op, left, right)
		if err != nil {
			return value.Value{}, false
		}
		if !result.IsTrue() {
			return value.FromBool(false), true
		}
		left = right
	}
	return value.FromBool(true), true
}

// applyBinOp mirrors the renderer's applyBinOp (state.go), reimplemented
// here rather than imported to keep this package independent of the
// render-time State type; every case is a pure value.Value operation with
// no scope or environment dependency.
func applyBinOp(kind ast.BinOpKind, left, right value.Value) (value.Value, error) {
	switch kind {
	case ast.BinOpEq:
		return value.FromBool(left.Equal(right)), nil
	case ast.BinOpNe:
		return value.FromBool(!left.Equal(right)), nil
	case ast.BinOpLt:
		if cmp, ok := left.Compare(right); ok {
			return value.FromBool(cmp < 0), nil
		}
		return value.Value{}, errUncomparable
	case ast.BinOpLte:
		if cmp, ok := left.Compare(right); ok {
			return value.FromBool(cmp <= 0), nil
		}
		return value.Value{}, errUncomparable
	case ast.BinOpGt:
		if cmp, ok := left.Compare(right); ok {
			return value.FromBool(cmp > 0), nil
		}
		return value.Value{}, errUncomparable
	case ast.BinOpGte:
		if cmp, ok := left.Compare(right); ok {
			return value.FromBool(cmp >= 0), nil
		}
		return value.Value{}, errUncomparable
	case ast.BinOpAdd:
		return left.Add(right)
	case ast.BinOpSub:
		return left.Sub(right)
	case ast.BinOpMul:
		return left.Mul(right)
	case ast.BinOpDiv:
		return left.Div(right)
	case ast.BinOpFloorDiv:
		return left.FloorDiv(right)
	case ast.BinOpRem:
		return left.Rem(right)
	case ast.BinOpPow:
		return left.Pow(right)
	case ast.BinOpConcat:
		return left.Concat(right), nil
	case ast.BinOpIn:
		return value.FromBool(right.Contains(left)), nil
	default:
		return value.Value{}, errUnknownOp
	}
}

func constToValue(c *ast.Const) value.Value {
	switch v := c.Value.(type) {
	case nil:
		return value.None()
	case bool:
		return value.FromBool(v)
	case int64:
		return value.FromInt(v)
	case float64:
		return value.FromFloat(v)
	case string:
		return value.FromString(v)
	case *ast.BigInt:
		return value.FromBigInt(v.Int)
	default:
		return value.Undefined()
	}
}

// valueToConst reconstructs a literal Const from a folded Value, for the
// scalar kinds a Const can represent. Anything else (sequences, maps,
// big integers, objects) reports ok=false and the caller leaves the
// original expression node in place.
func valueToConst(v value.Value, span ast.Span) (*ast.Const, bool) {
	switch raw := v.Raw().(type) {
	case nil, bool, int64, float64, string:
		return ast.NewConst(raw, span), true
	default:
		return nil, false
	}
}

var (
	errUncomparable = fmtError("uncomparable values")
	errUnknownOp    = fmtError("unknown binary operator")
)

type simpleError string

func (e simpleError) Error() string { return string(e) }

func fmtError(msg string) error { return simpleError(msg) }
