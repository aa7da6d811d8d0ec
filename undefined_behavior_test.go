package minijinja

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gojinja/gojinja/value"
)

func renderSource(env *Environment, source string, ctx map[string]any) (string, error) {
	tmpl, err := env.TemplateFromString(source)
	if err != nil {
		return "", err
	}
	return tmpl.Render(ctx)
}

func expectRendered(t *testing.T, env *Environment, source string, ctx map[string]any, want string) {
	t.Helper()
	got, err := renderSource(env, source, ctx)
	if err != nil {
		t.Fatalf("unexpected render error for %q: %v", source, err)
	}
	if got != want {
		t.Fatalf("rendering %q: got %q, want %q", source, got, want)
	}
}

func expectErrorKind(t *testing.T, env *Environment, source string, ctx map[string]any, want ErrorKind) {
	t.Helper()
	_, err := renderSource(env, source, ctx)
	if err == nil {
		t.Fatalf("expected an error rendering %q", source)
	}
	var tmplErr *Error
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected a *Error rendering %q, got %T", source, err)
	}
	if tmplErr.Kind != want {
		t.Fatalf("rendering %q: got error kind %v, want %v", source, tmplErr.Kind, want)
	}
}

// echoUndefinedFilter registers a filter that asserts the engine is
// running under wantBehavior and that an undefined input already prints
// as the empty string, then passes the value through unchanged.
func echoUndefinedFilter(wantBehavior UndefinedBehavior) FilterFunc {
	return func(state *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
		if got := state.UndefinedBehavior(); got != wantBehavior {
			return value.Undefined(), fmt.Errorf("unexpected undefined behavior: %v", got)
		}
		if val.String() != "" {
			return value.Undefined(), fmt.Errorf("expected empty string, got %q", val.String())
		}
		return val, nil
	}
}

func TestUndefinedBehaviorLenient(t *testing.T) {
	env := NewEnvironment()
	env.AddFilter("echo", echoUndefinedFilter(UndefinedLenient))

	expectRendered(t, env, "<{{ true.missing_attribute }}>", nil, "<>")
	expectErrorKind(t, env, "{{ undefined.missing_attribute }}", nil, ErrUndefinedVar)
	expectRendered(t, env, "<{% for x in undefined %}...{% endfor %}>", nil, "<>")
	expectRendered(t, env, "{{ 'foo' is in(undefined) }}", nil, "false")
	expectRendered(t, env, "<{{ undefined }}>", nil, "<>")
	expectRendered(t, env, "{{ not undefined }}", nil, "true")
	expectRendered(t, env, "{{ undefined is undefined }}", nil, "true")
	expectRendered(t, env, "{{ x.foo is undefined }}", map[string]any{"x": map[string]any{}}, "true")
	expectRendered(t, env, "{{ undefined|list }}", nil, "[]")
	expectRendered(t, env, "<{{ undefined|echo }}>", nil, "<>")
	expectRendered(t, env, "{{ 42 in undefined }}", nil, "false")
}

func TestUndefinedBehaviorSemiStrict(t *testing.T) {
	env := NewEnvironment()
	env.SetUndefinedBehavior(UndefinedSemiStrict)

	expectErrorKind(t, env, "{{ true.missing_attribute }}", nil, ErrUndefinedVar)
	expectErrorKind(t, env, "{{ undefined.missing_attribute }}", nil, ErrUndefinedVar)
	expectErrorKind(t, env, "<{% for x in undefined %}...{% endfor %}>", nil, ErrUndefinedVar)
	expectErrorKind(t, env, "{{ 'foo' is in(undefined) }}", nil, ErrUndefinedVar)
	expectRendered(t, env, "<{% if undefined %}42{% endif %}>", nil, "<>")
	expectErrorKind(t, env, "<{{ undefined }}>", nil, ErrUndefinedVar)
	expectRendered(t, env, "{{ not undefined }}", nil, "true")
	expectRendered(t, env, "{{ undefined is undefined }}", nil, "true")
	expectRendered(t, env, "<{{ 42 if false }}>", nil, "<>")
	expectRendered(t, env, "{{ x.foo is undefined }}", map[string]any{"x": map[string]any{}}, "true")
	expectRendered(t, env, "<{% if x.foo %}...{% endif %}>", map[string]any{"x": map[string]any{}}, "<>")
	expectErrorKind(t, env, "{{ undefined|list }}", nil, ErrInvalidOperation)
	expectErrorKind(t, env, "{{ 42 in undefined }}", nil, ErrUndefinedVar)
}

func TestUndefinedBehaviorStrict(t *testing.T) {
	env := NewEnvironment()
	env.SetUndefinedBehavior(UndefinedStrict)

	expectErrorKind(t, env, "{{ true.missing_attribute }}", nil, ErrUndefinedVar)
	expectErrorKind(t, env, "{{ undefined.missing_attribute }}", nil, ErrUndefinedVar)
	expectErrorKind(t, env, "<{% for x in undefined %}...{% endfor %}>", nil, ErrUndefinedVar)
	expectErrorKind(t, env, "{{ 'foo' is in(undefined) }}", nil, ErrUndefinedVar)
	expectErrorKind(t, env, "<{% if undefined %}42{% endif %}>", nil, ErrUndefinedVar)
	expectErrorKind(t, env, "<{{ undefined }}>", nil, ErrUndefinedVar)
	expectErrorKind(t, env, "<{{ not undefined }}>", nil, ErrUndefinedVar)
	expectRendered(t, env, "{{ undefined is undefined }}", nil, "true")
	expectRendered(t, env, "<{{ 42 if false }}>", nil, "<>")
	expectRendered(t, env, "{{ x.foo is undefined }}", map[string]any{"x": map[string]any{}}, "true")
	expectErrorKind(t, env, "{% if x.foo %}...{% endif %}", map[string]any{"x": map[string]any{}}, ErrUndefinedVar)
	expectErrorKind(t, env, "{{ undefined|list }}", nil, ErrInvalidOperation)
	expectErrorKind(t, env, "{{ 42 in undefined }}", nil, ErrUndefinedVar)
}

func TestUndefinedBehaviorChainable(t *testing.T) {
	env := NewEnvironment()
	env.SetUndefinedBehavior(UndefinedChainable)
	env.AddFilter("echo", echoUndefinedFilter(UndefinedChainable))

	expectRendered(t, env, "<{{ true.missing_attribute }}>", nil, "<>")
	expectRendered(t, env, "<{{ undefined.missing_attribute }}>", nil, "<>")
	expectRendered(t, env, "<{% for x in undefined %}...{% endfor %}>", nil, "<>")
	expectRendered(t, env, "{{ x.foo is undefined }}", map[string]any{"x": map[string]any{}}, "true")
	expectRendered(t, env, "{{ 'foo' is in(undefined) }}", nil, "false")
	expectRendered(t, env, "<{{ undefined }}>", nil, "<>")
	expectRendered(t, env, "{{ not undefined }}", nil, "true")
	expectRendered(t, env, "{{ undefined is undefined }}", nil, "true")
	expectRendered(t, env, "{{ undefined|list }}", nil, "[]")
	expectRendered(t, env, "<{{ undefined|echo }}>", nil, "<>")
	expectRendered(t, env, "{{ 42 in undefined }}", nil, "false")
}
