package minijinja

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gojinja/gojinja/internal/testutil"
	"github.com/gojinja/gojinja/lexer"
)

func undefinedBehaviorFromSetting(name string) (UndefinedBehavior, bool) {
	switch name {
	case "", "lenient":
		return UndefinedLenient, true
	case "chainable":
		return UndefinedChainable, true
	case "semi_strict":
		return UndefinedSemiStrict, true
	case "strict":
		return UndefinedStrict, true
	default:
		return UndefinedLenient, false
	}
}

func errorKindFromName(name string) (ErrorKind, bool) {
	for kind := ErrSyntax; kind <= ErrAssertion; kind++ {
		if fmt.Sprintf("%s", kind) == errorKindLabel(name) {
			return kind, true
		}
	}
	return 0, false
}

// errorKindLabel turns the fixture's snake_case error-kind name into the
// human-readable label ErrorKind.String() produces, so testdata files
// can say "undefined_variable" instead of embedding a Go identifier.
func errorKindLabel(name string) string {
	switch name {
	case "undefined_variable":
		return "undefined variable"
	case "invalid_operation":
		return "invalid operation"
	case "unknown_filter":
		return "unknown filter"
	case "unknown_test":
		return "unknown test"
	case "unknown_function":
		return "unknown function"
	case "template_not_found":
		return "template not found"
	case "runtime_error":
		return "template runtime error"
	case "assertion_error":
		return "template assertion error"
	default:
		return name
	}
}

func TestGoldenFixtures(t *testing.T) {
	fixtures, paths, err := testutil.Glob("testdata/*.yaml")
	if err != nil {
		t.Fatalf("loading fixtures: %v", err)
	}
	if len(fixtures) == 0 {
		t.Fatal("no fixtures found under testdata/*.yaml")
	}

	for i, fixture := range fixtures {
		fixture := fixture
		t.Run(paths[i], func(t *testing.T) {
			for _, c := range fixture.Cases {
				c := c
				t.Run(c.Name, func(t *testing.T) {
					env := NewEnvironment()
					if c.Settings != nil {
						behavior, ok := undefinedBehaviorFromSetting(c.Settings.Undefined)
						if !ok {
							t.Fatalf("unknown undefined setting %q", c.Settings.Undefined)
						}
						env.SetUndefinedBehavior(behavior)
						if c.Settings.HasMarkers() {
							m := c.Settings.Markers
							syntax := lexer.SyntaxConfig{
								BlockStart:          m[0],
								BlockEnd:            m[1],
								VarStart:            m[2],
								VarEnd:              m[3],
								CommentStart:        m[4],
								CommentEnd:          m[5],
								LineStatementPrefix: c.Settings.LineStatementPrefix,
								LineCommentPrefix:   c.Settings.LineCommentPrefix,
							}
							if err := env.SetSyntax(syntax); err != nil {
								t.Fatalf("invalid syntax settings: %v", err)
							}
						}
					}

					tmpl, err := env.TemplateFromString(c.Template)
					if err != nil {
						if c.ExpectErrorKind == "" {
							t.Fatalf("unexpected parse error: %v", err)
						}
						assertFixtureErrorKind(t, err, c.ExpectErrorKind)
						return
					}

					got, err := tmpl.Render(c.Context)
					if c.ExpectErrorKind != "" {
						if err == nil {
							t.Fatalf("expected error kind %q, rendered %q instead", c.ExpectErrorKind, got)
						}
						assertFixtureErrorKind(t, err, c.ExpectErrorKind)
						return
					}
					if err != nil {
						t.Fatalf("unexpected render error: %v", err)
					}
					if got != c.Expected {
						t.Fatalf("rendering %q: got %q, want %q", c.Template, got, c.Expected)
					}
				})
			}
		})
	}
}

func assertFixtureErrorKind(t *testing.T, err error, wantName string) {
	t.Helper()
	var tmplErr *Error
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected a *Error, got %T: %v", err, err)
	}
	want, ok := errorKindFromName(wantName)
	if !ok {
		t.Fatalf("unknown expected error kind %q", wantName)
	}
	if tmplErr.Kind != want {
		t.Fatalf("got error kind %v, want %v", tmplErr.Kind, want)
	}
}
