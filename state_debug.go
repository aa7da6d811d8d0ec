package minijinja

import (
	"github.com/gojinja/gojinja/ast"
)

func (s *State) attachErrorInfo(err error, node ast.Node) error {
	if err == nil || s.env == nil || !s.env.debug {
		return err
	}
	templErr, ok := err.(*Error)
	if !ok {
		return err
	}
	if templErr.Name == "" {
		templErr.WithName(s.name)
	}
	if templErr.Source == "" {
		templErr.WithSource(s.source)
	}
	if templErr.Span == nil && node != nil {
		span := node.Span()
		templErr.WithSpan(span)
	}
	if templErr.DebugInfo == nil {
		templErr.WithDebugInfo(s.makeDebugInfo(node))
	}
	if templErr.Kind != ErrOutOfFuel && s.LowOnFuel() {
		templErr.Message += " (fuel budget nearly exhausted)"
	}
	return err
}

func (s *State) makeDebugInfo(node ast.Node) DebugInfo {
	referenced := map[string]struct{}{}
	if node != nil {
		switch typed := node.(type) {
		case ast.Expr:
			collectReferencedNamesExpr(typed, referenced)
		case ast.Stmt:
			collectReferencedNamesStmt(typed, referenced)
		}
	}

	locals := make(map[string]interface{}, len(referenced))
	for name := range referenced {
		val := s.Lookup(name)
		if !val.IsUndefined() {
			locals[name] = val.Raw()
		}
	}

	return DebugInfo{
		TemplateSource:   s.source,
		ReferencedLocals: locals,
	}
}

func collectReferencedNamesStmt(stmt ast.Stmt, referenced map[string]struct{}) {
	switch s := stmt.(type) {
	case *ast.EmitExpr:
		collectReferencedNamesExpr(s.Expr, referenced)
	case *ast.ForLoop:
		collectReferencedNamesExpr(s.Iter, referenced)
		if s.FilterExpr != nil {
			collectReferencedNamesExpr(s.FilterExpr, referenced)
		}
	case *ast.IfCond:
		collectReferencedNamesExpr(s.Expr, referenced)
	case *ast.WithBlock:
		for _, assignment := range s.Assignments {
			collectReferencedNamesExpr(assignment.Value, referenced)
		}
	case *ast.Set:
		collectReferencedNamesExpr(s.Expr, referenced)
	case *ast.SetBlock:
		if s.Filter != nil {
			collectReferencedNamesExpr(s.Filter, referenced)
		}
	case *ast.AutoEscape:
		collectReferencedNamesExpr(s.Enabled, referenced)
	case *ast.FilterBlock:
		collectReferencedNamesExpr(s.Filter, referenced)
	case *ast.Extends:
		collectReferencedNamesExpr(s.Name, referenced)
	case *ast.Include:
		collectReferencedNamesExpr(s.Name, referenced)
	case *ast.Import:
		collectReferencedNamesExpr(s.Expr, referenced)
	case *ast.FromImport:
		collectReferencedNamesExpr(s.Expr, referenced)
	case *ast.CallBlock:
		if s.Call != nil {
			collectReferencedNamesExpr(s.Call, referenced)
		}
	case *ast.Do:
		collectReferencedNamesExpr(s.Call, referenced)
	}
}

func collectReferencedNamesExpr(expr ast.Expr, referenced map[string]struct{}) {
	if expr == nil {
		return
	}

	switch e := expr.(type) {
	case *ast.Var:
		referenced[e.ID] = struct{}{}
	case *ast.Const:
		return
	case *ast.UnaryOp:
		collectReferencedNamesExpr(e.Expr, referenced)
	case *ast.BinOp:
		collectReferencedNamesExpr(e.Left, referenced)
		collectReferencedNamesExpr(e.Right, referenced)
	case *ast.Compare:
		collectReferencedNamesExpr(e.Left, referenced)
		for _, link := range e.Links {
			collectReferencedNamesExpr(link.Right, referenced)
		}
	case *ast.Concat:
		for _, item := range e.Items {
			collectReferencedNamesExpr(item, referenced)
		}
	case *ast.IfExpr:
		collectReferencedNamesExpr(e.TestExpr, referenced)
		collectReferencedNamesExpr(e.TrueExpr, referenced)
		if e.FalseExpr != nil {
			collectReferencedNamesExpr(e.FalseExpr, referenced)
		}
	case *ast.Filter:
		if e.Expr != nil {
			collectReferencedNamesExpr(e.Expr, referenced)
		}
		collectReferencedNamesCallArgs(e.Args, referenced)
	case *ast.Test:
		collectReferencedNamesExpr(e.Expr, referenced)
		collectReferencedNamesCallArgs(e.Args, referenced)
	case *ast.GetAttr:
		collectReferencedNamesExpr(e.Expr, referenced)
	case *ast.GetItem:
		collectReferencedNamesExpr(e.Expr, referenced)
		collectReferencedNamesExpr(e.SubscriptExpr, referenced)
	case *ast.Slice:
		collectReferencedNamesExpr(e.Expr, referenced)
		collectReferencedNamesExpr(e.Start, referenced)
		collectReferencedNamesExpr(e.Stop, referenced)
		collectReferencedNamesExpr(e.Step, referenced)
	case *ast.Call:
		collectReferencedNamesExpr(e.Expr, referenced)
		collectReferencedNamesCallArgs(e.Args, referenced)
	case *ast.List:
		for _, item := range e.Items {
			collectReferencedNamesExpr(item, referenced)
		}
	case *ast.Tuple:
		for _, item := range e.Items {
			collectReferencedNamesExpr(item, referenced)
		}
	case *ast.Map:
		for _, key := range e.Keys {
			collectReferencedNamesExpr(key, referenced)
		}
		for _, v := range e.Values {
			collectReferencedNamesExpr(v, referenced)
		}
	}
}

func collectReferencedNamesCallArgs(args []ast.CallArg, referenced map[string]struct{}) {
	for _, arg := range args {
		collectReferencedNamesExpr(arg.Value, referenced)
	}
}
