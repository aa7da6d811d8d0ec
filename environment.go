package minijinja

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/gojinja/gojinja/ast"
	"github.com/gojinja/gojinja/lexer"
	"github.com/gojinja/gojinja/optimizer"
	"github.com/gojinja/gojinja/parser"
	"github.com/gojinja/gojinja/value"
)

// autoEscapeKind distinguishes the strategies an AutoEscape value can hold.
type autoEscapeKind int

const (
	autoEscapeKindNone autoEscapeKind = iota
	autoEscapeKindHTML
	autoEscapeKindJSON
	autoEscapeKindCustom
)

// AutoEscape determines the auto-escaping strategy applied to `{{ }}`
// output. It is a small value type rather than a bare int so it can carry
// a name for AutoEscapeCustom without an extra side channel.
type AutoEscape struct {
	kind autoEscapeKind
	name string
}

var (
	AutoEscapeNone = AutoEscape{kind: autoEscapeKindNone}
	AutoEscapeHTML = AutoEscape{kind: autoEscapeKindHTML}
	AutoEscapeJSON = AutoEscape{kind: autoEscapeKindJSON}
)

// AutoEscapeCustom names a caller-defined auto-escape strategy. The engine
// doesn't know how to apply it itself, so rendering under it is an error
// unless the caller's own Finalize/Filter hooks handle escaping instead.
func AutoEscapeCustom(name string) AutoEscape {
	return AutoEscape{kind: autoEscapeKindCustom, name: name}
}

func (a AutoEscape) IsNone() bool   { return a.kind == autoEscapeKindNone }
func (a AutoEscape) IsHTML() bool   { return a.kind == autoEscapeKindHTML }
func (a AutoEscape) IsJSON() bool   { return a.kind == autoEscapeKindJSON }
func (a AutoEscape) IsCustom() bool { return a.kind == autoEscapeKindCustom }

// CustomName returns the name passed to AutoEscapeCustom, if this is a
// custom strategy.
func (a AutoEscape) CustomName() (string, bool) {
	return a.name, a.kind == autoEscapeKindCustom
}

// defaultAutoEscape chooses an escaping format by file extension, extended
// with a `.json` rule: template names ending in a template-authoring
// suffix (`.j2`, `.jinja`, `.jinja2`) are checked against their underlying
// extension first, so `page.html.j2` still escapes as HTML.
func defaultAutoEscape(name string) AutoEscape {
	for _, suffix := range []string{".j2", ".jinja2", ".jinja"} {
		if strings.HasSuffix(name, suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xml", ".svg":
		return AutoEscapeHTML
	case ".json":
		return AutoEscapeJSON
	default:
		return AutoEscapeNone
	}
}

// UndefinedBehavior determines how undefined variables are handled,
// mirroring Jinja2's Undefined/ChainableUndefined/StrictUndefined split.
// It is an alias for value.UndefinedBehavior so the value package's own
// notion of undefined-ness and the renderer's access rules stay in sync.
type UndefinedBehavior = value.UndefinedBehavior

const (
	// UndefinedLenient renders undefined as empty, iterates it as empty,
	// and treats it as falsy, but still raises when an attribute/item is
	// accessed through an already-undefined value.
	UndefinedLenient = value.UndefinedLenient
	// UndefinedChainable additionally allows attribute/item access through
	// an undefined value without raising, returning undefined again so
	// long attribute chains resolve to undefined instead of erroring on
	// the first missing link.
	UndefinedChainable = value.UndefinedChainable
	// UndefinedSemiStrict raises whenever undefined is printed, iterated,
	// tested for membership, or chained into, but still allows undefined
	// in a boolean context (`{% if x %}`, `not x`).
	UndefinedSemiStrict = value.UndefinedSemiStrict
	// UndefinedStrict raises whenever undefined is used for anything
	// beyond an explicit `is defined`/`is undefined` check.
	UndefinedStrict = value.UndefinedStrict
)

// FilterFunc is the signature for filter functions.
// It receives the value to filter, the arguments, and the state.
type FilterFunc func(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error)

// TestFunc is the signature for test functions.
type TestFunc func(state *State, val value.Value, args []value.Value) (bool, error)

// FunctionFunc is the signature for global functions.
type FunctionFunc func(state *State, args []value.Value, kwargs map[string]value.Value) (value.Value, error)

// LoaderFunc is a function that loads template source by name. It
// satisfies the Loader interface via its Load method below, so it can
// be passed to SetLoader directly or wrapped by FuncLoader.
type LoaderFunc func(name string) (string, error)

// Load implements Loader.
func (f LoaderFunc) Load(name string) (string, error) { return f(name) }

// AutoEscapeFunc determines auto-escaping based on template name.
type AutoEscapeFunc func(name string) AutoEscape

// PathJoinCallback resolves a relative template name referenced from
// inside another template (e.g. `{% include "../x.html" %}`) against the
// name of the template doing the referencing.
type PathJoinCallback func(name, parent string) string

// Environment holds the configuration and templates.
type Environment struct {
	templates      map[string]*compiledTemplate
	templatesMu    sync.RWMutex
	filters        map[string]FilterFunc
	tests          map[string]TestFunc
	globals        map[string]value.Value
	functions      map[string]RegisteredCallable
	loader         Loader
	autoEscapeFunc AutoEscapeFunc
	pathJoin          PathJoinCallback
	syntaxConfig      lexer.SyntaxConfig
	wsConfig          lexer.WhitespaceConfig
	undefinedBehavior UndefinedBehavior
	debug             bool
	recursionLimit    int
	fuel              *uint64
	optimize          bool
	finalize          finalizeFunc
	getAttribute      GetAttributeFunc
	getItem           GetItemFunc
}

type compiledTemplate struct {
	name   string
	source string
	ast    *ast.Template
}

// NewEnvironment creates a new environment with default settings.
func NewEnvironment() *Environment {
	env := &Environment{
		templates: make(map[string]*compiledTemplate),
		filters:   make(map[string]FilterFunc),
		tests:     make(map[string]TestFunc),
		globals:   make(map[string]value.Value),
		functions: make(map[string]RegisteredCallable),
		autoEscapeFunc:    defaultAutoEscape,
		syntaxConfig:      lexer.DefaultSyntax(),
		wsConfig:          lexer.DefaultWhitespace(),
		undefinedBehavior: UndefinedLenient,
		recursionLimit:    maxRecursion,
		optimize:          true,
	}

	// Register default filters
	registerDefaultFilters(env)
	// Register default tests
	registerDefaultTests(env)
	// Register default functions
	registerDefaultFunctions(env)

	return env
}

// EmptyEnvironment creates an environment with no defaults.
func EmptyEnvironment() *Environment {
	return &Environment{
		templates: make(map[string]*compiledTemplate),
		filters:   make(map[string]FilterFunc),
		tests:     make(map[string]TestFunc),
		globals:   make(map[string]value.Value),
		functions: make(map[string]RegisteredCallable),
		autoEscapeFunc: func(name string) AutoEscape {
			return AutoEscapeNone
		},
		syntaxConfig:      lexer.DefaultSyntax(),
		wsConfig:          lexer.DefaultWhitespace(),
		undefinedBehavior: UndefinedLenient,
		recursionLimit:    maxRecursion,
		optimize:          true,
	}
}

// SetOptimize toggles constant folding of parsed templates (see the
// optimizer package). Enabled by default.
func (e *Environment) SetOptimize(on bool) {
	e.optimize = on
}

// compile parses source and, unless optimization has been disabled, runs
// the constant-folding pass over the resulting AST before it is cached or
// handed to a Template.
func (e *Environment) compile(name, source string) (*ast.Template, error) {
	tree, err := parser.Parse(source, name, e.syntaxConfig, e.wsConfig)
	if err != nil {
		return nil, err
	}
	if e.optimize {
		tree = optimizer.Optimize(tree)
	}
	return tree, nil
}

// AddTemplate adds a template from source.
func (e *Environment) AddTemplate(name, source string) error {
	tree, err := e.compile(name, source)
	if err != nil {
		return err
	}

	e.templatesMu.Lock()
	e.templates[name] = &compiledTemplate{
		name:   name,
		source: source,
		ast:    tree,
	}
	e.templatesMu.Unlock()
	return nil
}

// GetTemplate retrieves a template by name.
func (e *Environment) GetTemplate(name string) (*Template, error) {
	e.templatesMu.RLock()
	compiled, ok := e.templates[name]
	e.templatesMu.RUnlock()

	if ok {
		return &Template{
			env:      e,
			compiled: compiled,
		}, nil
	}

	// Try loader
	if e.loader != nil {
		source, err := e.loader.Load(name)
		if err != nil {
			return nil, WrapError(ErrTemplateNotFound, name, err)
		}
		if err := e.AddTemplate(name, source); err != nil {
			return nil, err
		}
		e.templatesMu.RLock()
		compiled = e.templates[name]
		e.templatesMu.RUnlock()
		return &Template{
			env:      e,
			compiled: compiled,
		}, nil
	}

	return nil, NewError(ErrTemplateNotFound, name)
}

// TemplateFromString creates a template from source without storing it.
func (e *Environment) TemplateFromString(source string) (*Template, error) {
	return e.TemplateFromNamedString("<string>", source)
}

// TemplateFromNamedString creates a template from source with a name without storing it.
func (e *Environment) TemplateFromNamedString(name, source string) (*Template, error) {
	tree, err := e.compile(name, source)
	if err != nil {
		return nil, err
	}

	return &Template{
		env: e,
		compiled: &compiledTemplate{
			name:   name,
			source: source,
			ast:    tree,
		},
	}, nil
}

// SetLoader sets the template loader.
func (e *Environment) SetLoader(loader Loader) {
	e.loader = loader
}

// AddFilter registers a filter function.
func (e *Environment) AddFilter(name string, f FilterFunc) {
	e.filters[name] = f
}

// AddTest registers a test function.
func (e *Environment) AddTest(name string, f TestFunc) {
	e.tests[name] = f
}

// AddFunction registers a global function. The function always receives
// the active Context as its *State parameter, so it needs no PassContext/
// PassEnvironment wrapping — the common case.
func (e *Environment) AddFunction(name string, f FunctionFunc) {
	e.functions[name] = RegisteredCallable{Mode: PassModeNone, Fn: f}
}

// AddRegisteredFunction registers a global function built with PassContext
// or PassEnvironment, letting it receive the Environment instead of (or
// alongside documenting) the render Context.
func (e *Environment) AddRegisteredFunction(name string, rc RegisteredCallable) {
	e.functions[name] = rc
}

// AddGlobal registers a global variable.
func (e *Environment) AddGlobal(name string, v value.Value) {
	e.globals[name] = v
}

// SetAutoEscapeFunc sets the auto-escape callback.
func (e *Environment) SetAutoEscapeFunc(f AutoEscapeFunc) {
	e.autoEscapeFunc = f
}

// SetSyntax sets the syntax configuration. It returns an error without
// changing the environment if the delimiters are ambiguous.
func (e *Environment) SetSyntax(config lexer.SyntaxConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	e.syntaxConfig = config
	return nil
}

// SetBlockDelimiters overrides the `{% %}` statement delimiters.
func (e *Environment) SetBlockDelimiters(start, end string) {
	e.syntaxConfig.BlockStart = start
	e.syntaxConfig.BlockEnd = end
}

// SetVariableDelimiters overrides the `{{ }}` expression delimiters.
func (e *Environment) SetVariableDelimiters(start, end string) {
	e.syntaxConfig.VarStart = start
	e.syntaxConfig.VarEnd = end
}

// SetCommentDelimiters overrides the `{# #}` comment delimiters.
func (e *Environment) SetCommentDelimiters(start, end string) {
	e.syntaxConfig.CommentStart = start
	e.syntaxConfig.CommentEnd = end
}

// SetLineStatementPrefix sets the prefix that turns a whole source line
// into a statement without needing block delimiters, e.g. "#" for `# for x in y`.
func (e *Environment) SetLineStatementPrefix(prefix string) {
	e.syntaxConfig.LineStatementPrefix = prefix
}

// SetLineCommentPrefix sets the prefix that turns the remainder of a
// source line into a comment, e.g. "##".
func (e *Environment) SetLineCommentPrefix(prefix string) {
	e.syntaxConfig.LineCommentPrefix = prefix
}

// SetWhitespace sets the whitespace configuration.
func (e *Environment) SetWhitespace(config lexer.WhitespaceConfig) {
	e.wsConfig = config
}

// SetUndefinedBehavior sets how undefined variables are handled.
func (e *Environment) SetUndefinedBehavior(behavior UndefinedBehavior) {
	e.undefinedBehavior = behavior
}

// SetPathJoinCallback sets the callback used to resolve a relative
// template name referenced by `{% include %}`/`{% extends %}`/`{% import
// %}` against the name of the template doing the referencing.
func (e *Environment) SetPathJoinCallback(f PathJoinCallback) {
	e.pathJoin = f
}

// joinPath resolves name relative to parent via the configured
// PathJoinCallback, or returns name unchanged if none is set.
func (e *Environment) joinPath(name, parent string) string {
	if e.pathJoin == nil {
		return name
	}
	return e.pathJoin(name, parent)
}

// SetFuel caps the number of AST node evaluations a single render may
// perform; exceeding it raises an ErrOutOfFuel error instead of letting
// a runaway template run unbounded. Pass nil to disable the cap (the
// default). The pointed-to value isn't read again after SetFuel returns.
func (e *Environment) SetFuel(fuel *uint64) {
	if fuel == nil {
		e.fuel = nil
		return
	}
	n := *fuel
	e.fuel = &n
}

// SetRecursionLimit caps the depth of extends/include/import/macro-call
// nesting a single render may reach.
func (e *Environment) SetRecursionLimit(limit int) {
	e.recursionLimit = limit
}

// SetDebug enables attaching template source and referenced-locals
// DebugInfo to rendering errors.
func (e *Environment) SetDebug(debug bool) {
	e.debug = debug
}

// Templates returns the names of every template currently cached.
func (e *Environment) Templates() []string {
	e.templatesMu.RLock()
	defer e.templatesMu.RUnlock()
	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	return names
}

// RemoveTemplate evicts a single cached template by name.
func (e *Environment) RemoveTemplate(name string) {
	e.templatesMu.Lock()
	delete(e.templates, name)
	e.templatesMu.Unlock()
}

// ClearTemplates evicts every cached template.
func (e *Environment) ClearTemplates() {
	e.templatesMu.Lock()
	e.templates = make(map[string]*compiledTemplate)
	e.templatesMu.Unlock()
}

// getFilter returns a filter by name.
func (e *Environment) getFilter(name string) (FilterFunc, bool) {
	f, ok := e.filters[name]
	return f, ok
}

// getTest returns a test by name.
func (e *Environment) getTest(name string) (TestFunc, bool) {
	t, ok := e.tests[name]
	return t, ok
}

// getFunction returns a registered function by name.
func (e *Environment) getFunction(name string) (RegisteredCallable, bool) {
	f, ok := e.functions[name]
	return f, ok
}

// resolveAttr resolves an attribute access, deferring to a custom
// SetGetAttribute hook when one is installed.
func (e *Environment) resolveAttr(val value.Value, name string) value.Value {
	if e.getAttribute != nil {
		return e.getAttribute(val, name)
	}
	return val.GetAttr(name)
}

// resolveItem resolves an item access, deferring to a custom SetGetItem
// hook when one is installed.
func (e *Environment) resolveItem(val, key value.Value) value.Value {
	if e.getItem != nil {
		return e.getItem(val, key)
	}
	return val.GetItem(key)
}

// applyFinalize runs val through the configured SetFinalize hook, if any,
// returning val unchanged when none is set.
func (e *Environment) applyFinalize(ctx *Context, val value.Value) (value.Value, error) {
	if e.finalize == nil {
		return val, nil
	}
	return e.finalize(ctx, val)
}

// getGlobal returns a global by name.
func (e *Environment) getGlobal(name string) (value.Value, bool) {
	v, ok := e.globals[name]
	return v, ok
}

// Template represents a compiled template.
type Template struct {
	env      *Environment
	compiled *compiledTemplate
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.compiled.name
}

// Source returns the template source.
func (t *Template) Source() string {
	return t.compiled.source
}

// Render renders the template with the given context.
func (t *Template) Render(ctx any) (string, error) {
	return t.RenderValue(value.FromAny(ctx))
}

// RenderValue renders the template with a Value context.
func (t *Template) RenderValue(ctx value.Value) (string, error) {
	state := newState(t.env, t.compiled.name, t.compiled.source, ctx)
	return state.eval(t.compiled.ast)
}

// EvalToState renders the template like Render, but also returns the
// State used for the render, so callers can inspect post-render details
// such as fuel consumption via State.FuelLevels.
func (t *Template) EvalToState(ctx any) (*State, error) {
	state := newState(t.env, t.compiled.name, t.compiled.source, value.FromAny(ctx))
	_, err := state.eval(t.compiled.ast)
	return state, err
}

// EscapeHTML escapes a string for HTML.
// This escapes <, >, &, ", ', and / using the same escape set as the reference Jinja2 autoescape extension.
func EscapeHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#x27;")
		case '/':
			b.WriteString("&#x2f;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
