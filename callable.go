package minijinja

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/gojinja/gojinja/value"
)

// PassMode records what extra argument, if any, a registered global
// function wants prepended when it's invoked: nothing (the common case —
// FunctionFunc already always receives the active Context as its *State
// parameter), the Context explicitly, or the owning Environment.
type PassMode int

const (
	PassModeNone PassMode = iota
	PassModeContext
	PassModeEnvironment
)

// EnvFunctionFunc is a global function that wants the owning Environment
// instead of the render Context — useful for helpers that need to look
// up other templates, filters, or configuration rather than the current
// scope (e.g. an "import_template" style helper).
type EnvFunctionFunc func(env *Environment, args []value.Value, kwargs map[string]value.Value) (value.Value, error)

// RegisteredCallable pairs a global function with its PassMode. AddFunction
// builds one of these with PassModeNone for an ordinary FunctionFunc;
// PassContext and PassEnvironment build one explicitly for the other two
// shapes.
type RegisteredCallable struct {
	Mode PassMode
	Fn   any
}

var (
	passModeMu    sync.RWMutex
	passModeTable = map[uintptr]PassMode{}
)

func recordPassMode(fn any, mode PassMode) {
	ptr := reflect.ValueOf(fn).Pointer()
	passModeMu.Lock()
	passModeTable[ptr] = mode
	passModeMu.Unlock()
}

// PassContext marks fn as wanting the active Context. FunctionFunc already
// has a *State (Context) parameter on every call, so this mainly exists to
// let call sites state that intent explicitly, matching the three-mode
// passArguments vocabulary used by filters and tests elsewhere.
func PassContext(fn FunctionFunc) RegisteredCallable {
	recordPassMode(fn, PassModeContext)
	return RegisteredCallable{Mode: PassModeContext, Fn: fn}
}

// PassEnvironment marks fn as wanting the owning Environment prepended
// instead of the render Context.
func PassEnvironment(fn EnvFunctionFunc) RegisteredCallable {
	recordPassMode(fn, PassModeEnvironment)
	return RegisteredCallable{Mode: PassModeEnvironment, Fn: fn}
}

// invoke calls the wrapped callable with whatever argument its PassMode
// demands.
func (rc RegisteredCallable) invoke(s *State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	switch rc.Mode {
	case PassModeEnvironment:
		fn, ok := rc.Fn.(EnvFunctionFunc)
		if !ok {
			return value.Undefined(), NewError(ErrAssertion, "function registered with PassEnvironment must have signature EnvFunctionFunc")
		}
		return fn(s.env, args, kwargs)
	default:
		fn, ok := rc.Fn.(FunctionFunc)
		if !ok {
			return value.Undefined(), NewError(ErrAssertion, "function registered with PassContext must have signature FunctionFunc")
		}
		return fn(s, args, kwargs)
	}
}

// finalizeFunc is the canonical, wrapped shape every SetFinalize callback
// is normalized to: given the active Context and an about-to-be-output
// value, return the value that should actually be written (and/or an
// error that aborts rendering).
type finalizeFunc func(ctx *Context, val value.Value) (value.Value, error)

// SetFinalize registers a callback every {{ expr }} output is passed
// through before it's escaped and written. fn must be one of three
// shapes:
//
//	func(value.Value) value.Value
//	func(*Environment, value.Value) value.Value
//	func(*Context, value.Value) value.Value
//
// each of which may additionally return a second error result. Any other
// shape fails fast with a TemplateAssertionError rather than being
// discovered the first time a template is rendered.
func (e *Environment) SetFinalize(fn any) error {
	wrapped, err := wrapFinalize(fn)
	if err != nil {
		return err
	}
	e.finalize = wrapped
	return nil
}

func wrapFinalize(fn any) (finalizeFunc, error) {
	switch f := fn.(type) {
	case func(value.Value) value.Value:
		return func(_ *Context, v value.Value) (value.Value, error) { return f(v), nil }, nil
	case func(value.Value) (value.Value, error):
		return func(_ *Context, v value.Value) (value.Value, error) { return f(v) }, nil
	case func(*Environment, value.Value) value.Value:
		return func(ctx *Context, v value.Value) (value.Value, error) { return f(ctx.env, v), nil }, nil
	case func(*Environment, value.Value) (value.Value, error):
		return func(ctx *Context, v value.Value) (value.Value, error) { return f(ctx.env, v) }, nil
	case func(*Context, value.Value) value.Value:
		return func(ctx *Context, v value.Value) (value.Value, error) { return f(ctx, v), nil }, nil
	case func(*Context, value.Value) (value.Value, error):
		return f, nil
	default:
		return nil, NewError(ErrAssertion, fmt.Sprintf("finalize function has unsupported signature %T", fn))
	}
}

// GetAttributeFunc overrides how `expr.name` resolves an attribute off a
// value, replacing value.Value.GetAttr for the duration of a render.
type GetAttributeFunc func(val value.Value, name string) value.Value

// GetItemFunc overrides how `expr[key]` resolves an item off a value,
// replacing value.Value.GetItem for the duration of a render.
type GetItemFunc func(val value.Value, key value.Value) value.Value

// SetGetAttribute installs a custom attribute-resolution hook, letting a
// host application intercept `.name` access (e.g. to expose computed
// properties or enforce an allow-list) instead of always falling through
// to value.Value's built-in attribute lookup.
func (e *Environment) SetGetAttribute(f GetAttributeFunc) {
	e.getAttribute = f
}

// SetGetItem installs a custom item-resolution hook, letting a host
// application intercept `[key]` access instead of always falling through
// to value.Value's built-in item lookup.
func (e *Environment) SetGetItem(f GetItemFunc) {
	e.getItem = f
}
