package parser

import (
	"testing"

	"github.com/gojinja/gojinja/ast"
)

func TestParserBasic(t *testing.T) {
	result := ParseDefault("Hello {{ name }}!", "test.html")
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	body := result.Template.Body()
	if len(body) != 3 {
		t.Fatalf("expected 3 children, got %d", len(body))
	}

	if raw, ok := body[0].(*ast.EmitRaw); !ok || raw.Raw != "Hello " {
		t.Errorf("expected EmitRaw 'Hello ', got %T %v", body[0], body[0])
	}

	if emit, ok := body[1].(*ast.EmitExpr); !ok {
		t.Errorf("expected EmitExpr, got %T", body[1])
	} else if v, ok := emit.Expr.(*ast.Var); !ok || v.ID != "name" {
		t.Errorf("expected Var 'name', got %T %v", emit.Expr, emit.Expr)
	}

	if raw, ok := body[2].(*ast.EmitRaw); !ok || raw.Raw != "!" {
		t.Errorf("expected EmitRaw '!', got %T %v", body[2], body[2])
	}
}

func TestParserIgnoresForeignDelimiters(t *testing.T) {
	source := "<% if show %><$ name $><% endif %>"
	result := ParseDefault(source, "custom.html")
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	body := result.Template.Body()
	if len(body) != 1 {
		t.Fatalf("expected a single raw-text child, got %d", len(body))
	}
	raw, ok := body[0].(*ast.EmitRaw)
	if !ok || raw.Raw != source {
		t.Errorf("expected EmitRaw %q, got %T %v", source, body[0], body[0])
	}
}

func TestParserUnpackTargetTuple(t *testing.T) {
	result := ParseDefault("{% set a, b = pair %}{{ a }}-{{ b }}", "unpack.html")
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	body := result.Template.Body()
	if len(body) == 0 {
		t.Fatal("expected at least one statement")
	}
	set, ok := body[0].(*ast.Set)
	if !ok {
		t.Fatalf("expected *ast.Set, got %T", body[0])
	}
	tuple, ok := set.Target.(*ast.Tuple)
	if !ok {
		t.Fatalf("expected a tuple assignment target, got %T", set.Target)
	}
	if len(tuple.Items) != 2 {
		t.Errorf("expected 2 unpack targets, got %d", len(tuple.Items))
	}
}

func TestParserMacroWithDefaults(t *testing.T) {
	result := ParseDefault(`{% macro input(name, value="", type="text") %}{% endmacro %}`, "macro.html")
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	body := result.Template.Body()
	macro, ok := body[0].(*ast.Macro)
	if !ok {
		t.Fatalf("expected *ast.Macro, got %T", body[0])
	}
	if macro.Name != "input" {
		t.Errorf("expected macro name 'input', got %q", macro.Name)
	}
	if len(macro.Args) != 3 {
		t.Errorf("expected 3 arguments, got %d", len(macro.Args))
	}
	if len(macro.Defaults) != 2 {
		t.Errorf("expected 2 default values, got %d", len(macro.Defaults))
	}
}
