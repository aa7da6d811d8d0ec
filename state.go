package minijinja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gojinja/gojinja/ast"
	"github.com/gojinja/gojinja/value"
)

// Context is the render-time scope a callable registered with PassContext
// receives: scoped variable resolution, the active auto-escape strategy,
// and a handle back to the owning Environment. State already carries all
// of that (it's the renderer's own RenderContext), so Context is just an
// alias for it rather than a second, parallel type callers would need to
// convert between.
type Context = State

// State holds the evaluation state during template rendering.
type State struct {
	env          *Environment
	name         string
	source       string
	autoEscape   AutoEscape
	scopes       []map[string]value.Value
	blocks       map[string]*blockStack
	macros       map[string]*ast.Macro
	out          *strings.Builder
	depth        int
	currentBlock string                             // name of block currently being rendered
	loopRecurse  func(value.Value) (string, error) // for recursive loops
	fuel         *fuelTracker                       // nil when unlimited
	renderStack  []string                           // in-flight extends/include names, for cycle detection
	ctx          context.Context
}

// blockStack manages the inheritance chain for a single block
type blockStack struct {
	layers [][]ast.Stmt // stack of block implementations (child first)
	index  int             // current index in stack
}

// macroCallable wraps a macro for callable invocation
type macroCallable struct {
	macro *ast.Macro
	state *State
}

func (m *macroCallable) Call(_ value.State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return m.state.callMacroWithValues(m.macro, args, kwargs)
}

func (s *State) callMacroWithValues(macro *ast.Macro, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	s.depth++
	if s.depth > s.recursionLimit() {
		s.depth--
		return value.Undefined(), NewError(ErrInvalidOperation, "recursion limit exceeded")
	}
	defer func() { s.depth-- }()

	s.pushScope()
	defer s.popScope()

	// Bind arguments
	for i, arg := range macro.Args {
		if varArg, ok := arg.(*ast.Var); ok {
			// Check if provided as kwarg
			if val, ok := kwargs[varArg.ID]; ok {
				s.Set(varArg.ID, val)
				continue
			}
			// Check if provided as positional arg
			if i < len(args) {
				s.Set(varArg.ID, args[i])
			} else if i-len(macro.Args)+len(macro.Defaults) >= 0 {
				// Use default value
				defaultIdx := i - len(macro.Args) + len(macro.Defaults)
				if defaultIdx >= 0 && defaultIdx < len(macro.Defaults) {
					val, err := s.evalExpr(macro.Defaults[defaultIdx])
					if err != nil {
						return value.Undefined(), err
					}
					s.Set(varArg.ID, val)
				} else {
					s.Set(varArg.ID, value.Undefined())
				}
			} else {
				s.Set(varArg.ID, value.Undefined())
			}
		}
	}

	// Capture output
	oldOut := s.out
	s.out = &strings.Builder{}
	for _, stmt := range macro.Body {
		if err := s.evalStmt(stmt); err != nil {
			s.out = oldOut
			return value.Undefined(), err
		}
	}
	result := s.out.String()
	s.out = oldOut

	return value.FromSafeString(result), nil
}

// LoopState holds information about the current loop iteration.
type LoopState struct {
	Index     int   // 1-based index
	Index0    int   // 0-based index
	RevIndex  int   // reverse 1-based index
	RevIndex0 int   // reverse 0-based index
	First     bool  // is first iteration
	Last      bool  // is last iteration
	Length    int   // total length
	Depth     int   // nesting depth (1-based)
	Depth0    int   // nesting depth (0-based)
	Cycle     []value.Value // cycle values
}

// ToValue converts LoopState to a Value.
func (l *LoopState) ToValue() value.Value {
	m := map[string]value.Value{
		"index":     value.FromInt(int64(l.Index)),
		"index0":    value.FromInt(int64(l.Index0)),
		"revindex":  value.FromInt(int64(l.RevIndex)),
		"revindex0": value.FromInt(int64(l.RevIndex0)),
		"first":     value.FromBool(l.First),
		"last":      value.FromBool(l.Last),
		"length":    value.FromInt(int64(l.Length)),
		"depth":     value.FromInt(int64(l.Depth)),
		"depth0":    value.FromInt(int64(l.Depth0)),
	}
	return value.FromMap(m)
}

const maxRecursion = 500

func newState(env *Environment, name, source string, ctx value.Value) *State {
	// Initialize root scope with context
	rootScope := make(map[string]value.Value)
	if m, ok := ctx.AsMap(); ok {
		for k, v := range m {
			rootScope[k] = v
		}
	}

	st := &State{
		env:         env,
		name:        name,
		source:      source,
		autoEscape:  env.autoEscapeFunc(name),
		scopes:      []map[string]value.Value{rootScope},
		blocks:      make(map[string]*blockStack),
		macros:      make(map[string]*ast.Macro),
		out:         &strings.Builder{},
		renderStack: []string{name},
	}
	if env.fuel != nil {
		st.fuel = newFuelTracker(*env.fuel)
	}
	return st
}

// FuelLevels reports fuel consumed and remaining for this render, and
// whether fuel tracking is enabled at all (it's off by default).
func (s *State) FuelLevels() (consumed, remaining uint64, ok bool) {
	if s.fuel == nil {
		return 0, 0, false
	}
	return s.fuel.consumedFuel(), s.fuel.remainingFuel(), true
}

// LowOnFuel reports whether less than 10% of the configured fuel budget
// remains. Always false when fuel tracking is disabled.
func (s *State) LowOnFuel() bool {
	return s.fuel != nil && s.fuel.lowOn(10)
}

// AutoEscape reports the auto-escaping strategy in effect at the current
// point of rendering.
func (s *State) AutoEscape() AutoEscape {
	return s.autoEscape
}

// consumeFuel charges one unit of evaluation-step fuel, returning
// ErrOutOfFuel once the configured budget is exhausted. A no-op when fuel
// tracking is disabled.
func (s *State) consumeFuel() error {
	if s.fuel == nil {
		return nil
	}
	return s.fuel.consume(1)
}

// Name returns the name of the template currently being rendered.
func (s *State) Name() string {
	return s.name
}

// Context returns the Go context associated with this render.
func (s *State) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// UndefinedBehavior returns the owning Environment's configured
// UndefinedBehavior, exposed on State so filters/tests can adjust their
// handling of an undefined input without importing Environment directly.
func (s *State) UndefinedBehavior() UndefinedBehavior {
	return s.env.undefinedBehavior
}

// undefinedBehaviorPermitsAccess reports whether printing, iterating,
// filtering, or testing membership against an undefined value should
// quietly succeed (Lenient, Chainable) rather than raise (SemiStrict,
// Strict).
func (s *State) undefinedBehaviorPermitsAccess() bool {
	switch s.env.undefinedBehavior {
	case UndefinedLenient, UndefinedChainable:
		return true
	default:
		return false
	}
}

// undefinedBehaviorPermitsChain reports whether accessing an attribute or
// item through an already-undefined value should quietly return undefined
// again (Chainable) rather than raise (every other mode, including
// Lenient).
func (s *State) undefinedBehaviorPermitsChain() bool {
	return s.env.undefinedBehavior == UndefinedChainable
}

// undefinedBehaviorPermitsBool reports whether an undefined value may be
// used in a boolean context (`{% if x %}`, `not x`) without raising —
// true for every mode except Strict.
func (s *State) undefinedBehaviorPermitsBool() bool {
	return s.env.undefinedBehavior != UndefinedStrict
}

// checkUndefinedAccess raises TemplateRuntimeError kind ErrUndefinedVar if
// val is undefined and the current behavior doesn't permit printing,
// iterating, or testing membership against it.
func (s *State) checkUndefinedAccess(val value.Value) error {
	if !val.IsUndefined() || s.undefinedBehaviorPermitsAccess() {
		return nil
	}
	return NewError(ErrUndefinedVar, "encountered undefined value")
}

// checkUndefinedChain raises ErrUndefinedVar if val is undefined and the
// current behavior doesn't permit chaining an attribute/item access
// through it.
func (s *State) checkUndefinedChain(val value.Value) error {
	if !val.IsUndefined() || s.undefinedBehaviorPermitsChain() {
		return nil
	}
	return NewError(ErrUndefinedVar, "attempted to access an attribute or item of an undefined value")
}

// checkUndefinedBool raises ErrUndefinedVar if val is undefined and the
// current behavior is Strict.
func (s *State) checkUndefinedBool(val value.Value) error {
	if !val.IsUndefined() || s.undefinedBehaviorPermitsBool() {
		return nil
	}
	return NewError(ErrUndefinedVar, "undefined value used in a boolean context")
}

// Lookup looks up a variable in the current scope chain.
func (s *State) Lookup(name string) value.Value {
	// Search scopes from inner to outer
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i][name]; ok {
			return v
		}
	}

	// Check globals
	if v, ok := s.env.getGlobal(name); ok {
		return v
	}

	return value.Undefined()
}

// Set sets a variable in the current scope.
func (s *State) Set(name string, val value.Value) {
	s.scopes[len(s.scopes)-1][name] = val
}

// pushScope creates a new scope.
func (s *State) pushScope() {
	s.scopes = append(s.scopes, make(map[string]value.Value))
}

// popScope removes the current scope.
func (s *State) popScope() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// eval evaluates a template AST.
func (s *State) eval(tmpl *ast.Template) (string, error) {
	// First, check if this template extends another
	// If so, collect all blocks first, then process extends
	var extendsStmt *ast.Extends
	for _, stmt := range tmpl.Body() {
		if ext, ok := stmt.(*ast.Extends); ok {
			extendsStmt = ext
			break
		}
	}

	if extendsStmt != nil {
		// Collect all blocks from this (child) template first
		for _, stmt := range tmpl.Body() {
			if block, ok := stmt.(*ast.Block); ok {
				s.blocks[block.Name] = &blockStack{
					layers: [][]ast.Stmt{block.Body},
					index:  0,
				}
			}
			// Also process macros
			if macro, ok := stmt.(*ast.Macro); ok {
				s.macros[macro.Name] = macro
			}
		}
		// Now process extends
		if err := s.evalExtends(extendsStmt); err != nil && err != errExtendsExecuted {
			return "", s.attachErrorInfo(err, extendsStmt)
		}
		return s.out.String(), nil
	}

	// Non-extending template - evaluate normally
	for _, stmt := range tmpl.Body() {
		if err := s.evalStmt(stmt); err != nil {
			return "", s.attachErrorInfo(err, stmt)
		}
	}
	return s.out.String(), nil
}

func (s *State) evalStmt(stmt ast.Stmt) error {
	if err := s.consumeFuel(); err != nil {
		return err
	}
	switch st := stmt.(type) {
	case *ast.EmitRaw:
		s.out.WriteString(st.Raw)
		return nil

	case *ast.EmitExpr:
		val, err := s.evalExpr(st.Expr)
		if err != nil {
			return err
		}
		if err := s.checkUndefinedAccess(val); err != nil {
			return err
		}
		val, err = s.env.applyFinalize(s, val)
		if err != nil {
			return err
		}
		return s.writeValue(val)

	case *ast.ForLoop:
		return s.evalForLoop(st)

	case *ast.IfCond:
		return s.evalIfCond(st)

	case *ast.WithBlock:
		return s.evalWithBlock(st)

	case *ast.Set:
		return s.evalSet(st)

	case *ast.SetBlock:
		return s.evalSetBlock(st)

	case *ast.Block:
		return s.evalBlock(st)

	case *ast.Extends:
		return s.evalExtends(st)

	case *ast.Import:
		return s.evalImport(st)

	case *ast.FromImport:
		return s.evalFromImport(st)

	case *ast.Include:
		return s.evalInclude(st)

	case *ast.Macro:
		s.macros[st.Name] = st
		return nil

	case *ast.FilterBlock:
		return s.evalFilterBlock(st)

	case *ast.AutoEscape:
		return s.evalAutoEscape(st)

	case *ast.Do:
		_, err := s.evalCall(st.Call)
		return err

	case *ast.Continue:
		return errContinue

	case *ast.Break:
		return errBreak

	default:
		return fmt.Errorf("unsupported statement type: %T", stmt)
	}
}

// sentinel errors for loop control
var (
	errContinue = fmt.Errorf("continue")
	errBreak    = fmt.Errorf("break")
)

func (s *State) evalForLoop(loop *ast.ForLoop) error {
	iter, err := s.evalExpr(loop.Iter)
	if err != nil {
		return err
	}
	if err := s.checkUndefinedAccess(iter); err != nil {
		return err
	}

	items := iter.Iter()
	if items == nil {
		// Not iterable, execute else body
		if loop.ElseBody != nil {
			for _, stmt := range loop.ElseBody {
				if err := s.evalStmt(stmt); err != nil {
					return err
				}
			}
		}
		return nil
	}

	// Apply filter if present
	if loop.FilterExpr != nil {
		filtered := make([]value.Value, 0, len(items))
		s.pushScope()
		for _, item := range items {
			if err := s.unpackTarget(loop.Target, item); err != nil {
				s.popScope()
				return err
			}
			cond, err := s.evalExpr(loop.FilterExpr)
			if err != nil {
				s.popScope()
				return err
			}
			if cond.IsTrue() {
				filtered = append(filtered, item)
			}
		}
		s.popScope()
		items = filtered
	}

	if len(items) == 0 {
		// Execute else body
		if loop.ElseBody != nil {
			for _, stmt := range loop.ElseBody {
				if err := s.evalStmt(stmt); err != nil {
					return err
				}
			}
		}
		return nil
	}

	s.depth++
	if s.depth > s.recursionLimit() {
		s.depth--
		return NewError(ErrInvalidOperation, "recursion limit exceeded")
	}

	s.pushScope()
	defer func() {
		s.popScope()
		s.depth--
	}()

	// Set up recursive loop function if needed
	var oldRecurse func(value.Value) (string, error)
	if loop.Recursive {
		oldRecurse = s.loopRecurse
		s.loopRecurse = func(iterValue value.Value) (string, error) {
			nestedItems := iterValue.Iter()
			if nestedItems == nil {
				return "", nil
			}

			oldOut := s.out
			s.out = &strings.Builder{}
			
			for i, item := range nestedItems {
				if err := s.unpackTarget(loop.Target, item); err != nil {
					s.out = oldOut
					return "", err
				}

				loopState := &LoopState{
					Index:     i + 1,
					Index0:    i,
					RevIndex:  len(nestedItems) - i,
					RevIndex0: len(nestedItems) - i - 1,
					First:     i == 0,
					Last:      i == len(nestedItems)-1,
					Length:    len(nestedItems),
					Depth:     s.depth,
					Depth0:    s.depth - 1,
				}
				s.Set("loop", loopState.ToValue())
				
				for _, stmt := range loop.Body {
					err := s.evalStmt(stmt)
					if err == errContinue {
						break
					}
					if err == errBreak {
						result := s.out.String()
						s.out = oldOut
						return result, nil
					}
					if err != nil {
						s.out = oldOut
						return "", err
					}
				}
			}
			
			result := s.out.String()
			s.out = oldOut
			return result, nil
		}
		defer func() { s.loopRecurse = oldRecurse }()
	}

	for i, item := range items {
		if err := s.unpackTarget(loop.Target, item); err != nil {
			return err
		}

		// Set loop variable
		loopState := &LoopState{
			Index:     i + 1,
			Index0:    i,
			RevIndex:  len(items) - i,
			RevIndex0: len(items) - i - 1,
			First:     i == 0,
			Last:      i == len(items)-1,
			Length:    len(items),
			Depth:     s.depth,
			Depth0:    s.depth - 1,
		}
		s.Set("loop", loopState.ToValue())

		for _, stmt := range loop.Body {
			err := s.evalStmt(stmt)
			if err == errContinue {
				break
			}
			if err == errBreak {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// unpackTarget binds val to target, destructuring list/tuple targets
// element-by-element. A list/tuple target demands an exact arity match
// against the unpacked value; a mismatch raises a TemplateRuntimeError
// instead of silently padding with Undefined or dropping extras.
func (s *State) unpackTarget(target ast.Expr, val value.Value) error {
	switch t := target.(type) {
	case *ast.Var:
		s.Set(t.ID, val)
		return nil
	case *ast.List:
		return s.unpackSeq(t.Items, val)
	case *ast.Tuple:
		return s.unpackSeq(t.Items, val)
	case *ast.GetAttr:
		// Handle attribute assignment (e.g., ns.count = value)
		obj, err := s.evalExpr(t.Expr)
		if err != nil {
			return err
		}
		if mutableObj, ok := obj.AsMutableObject(); ok {
			mutableObj.SetAttr(t.Name, val)
		}
		return nil
	default:
		return nil
	}
}

func (s *State) unpackSeq(targets []ast.Expr, val value.Value) error {
	items, ok := val.AsSlice()
	if !ok {
		return NewError(ErrRuntime, fmt.Sprintf("cannot unpack non-sequence into %d names", len(targets)))
	}
	if len(items) < len(targets) {
		return NewError(ErrRuntime, fmt.Sprintf("not enough values to unpack (expected %d, got %d)", len(targets), len(items)))
	}
	if len(items) > len(targets) {
		return NewError(ErrRuntime, fmt.Sprintf("too many values to unpack (expected %d)", len(targets)))
	}
	for i, item := range targets {
		if err := s.unpackTarget(item, items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) evalIfCond(cond *ast.IfCond) error {
	val, err := s.evalExpr(cond.Expr)
	if err != nil {
		return err
	}
	if err := s.checkUndefinedBool(val); err != nil {
		return err
	}

	if val.IsTrue() {
		for _, stmt := range cond.TrueBody {
			if err := s.evalStmt(stmt); err != nil {
				return err
			}
		}
	} else if cond.FalseBody != nil {
		for _, stmt := range cond.FalseBody {
			if err := s.evalStmt(stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *State) evalWithBlock(block *ast.WithBlock) error {
	s.pushScope()
	defer s.popScope()

	for _, assign := range block.Assignments {
		val, err := s.evalExpr(assign.Value)
		if err != nil {
			return err
		}
		if err := s.unpackTarget(assign.Target, val); err != nil {
			return err
		}
	}

	for _, stmt := range block.Body {
		if err := s.evalStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) evalSet(set *ast.Set) error {
	val, err := s.evalExpr(set.Expr)
	if err != nil {
		return err
	}
	return s.unpackTarget(set.Target, val)
}

func (s *State) evalSetBlock(block *ast.SetBlock) error {
	// Capture output
	oldOut := s.out
	s.out = &strings.Builder{}
	for _, stmt := range block.Body {
		if err := s.evalStmt(stmt); err != nil {
			s.out = oldOut
			return err
		}
	}
	captured := s.out.String()
	s.out = oldOut

	result := value.FromString(captured)

	// Apply filter if present
	if block.Filter != nil {
		var err error
		result, err = s.applyFilter(block.Filter, result)
		if err != nil {
			return err
		}
	}

	return s.unpackTarget(block.Target, result)
}

func (s *State) evalExtends(ext *ast.Extends) error {
	nameVal, err := s.evalExpr(ext.Name)
	if err != nil {
		return err
	}

	name, ok := nameVal.AsString()
	if !ok {
		return NewError(ErrInvalidOperation, "extends name must be a string")
	}
	name = s.env.joinPath(name, s.name)

	// Load the parent template
	parentTmpl, err := s.env.GetTemplate(name)
	if err != nil {
		return err
	}

	for _, seen := range s.renderStack {
		if seen == name {
			return NewError(ErrCyclicReference, fmt.Sprintf("cyclic extends involving %q", name))
		}
	}
	s.renderStack = append(s.renderStack, name)
	defer func() { s.renderStack = s.renderStack[:len(s.renderStack)-1] }()

	s.depth++
	if s.depth > s.recursionLimit() {
		return NewError(ErrBadInclude, "recursion limit exceeded")
	}
	defer func() { s.depth-- }()

	// Check if parent also extends another template
	var parentExtendsStmt *ast.Extends
	for _, stmt := range parentTmpl.compiled.ast.Body() {
		if ext, ok := stmt.(*ast.Extends); ok {
			parentExtendsStmt = ext
			break
		}
	}

	// Collect parent blocks - add them as fallback layers
	for _, stmt := range parentTmpl.compiled.ast.Body() {
		if block, ok := stmt.(*ast.Block); ok {
			if bs, exists := s.blocks[block.Name]; exists {
				// Append parent block to the end (child is at index 0)
				bs.layers = append(bs.layers, block.Body)
			} else {
				// This is a parent-only block (no child override)
				s.blocks[block.Name] = &blockStack{
					layers: [][]ast.Stmt{block.Body},
					index:  0,
				}
			}
		}
		// Also collect macros from parent
		if macro, ok := stmt.(*ast.Macro); ok {
			if _, exists := s.macros[macro.Name]; !exists {
				s.macros[macro.Name] = macro
			}
		}
	}

	// If parent extends another template, process that first
	if parentExtendsStmt != nil {
		if err := s.evalExtends(parentExtendsStmt); err != nil && err != errExtendsExecuted {
			return err
		}
		return errExtendsExecuted
	}

	// Render the root parent template
	for _, stmt := range parentTmpl.compiled.ast.Body() {
		// Skip extends (already handled)
		if _, isExtends := stmt.(*ast.Extends); isExtends {
			continue
		}
		if err := s.evalStmt(stmt); err != nil {
			return err
		}
	}

	return errExtendsExecuted
}

// errExtendsExecuted signals that extends was executed
var errExtendsExecuted = fmt.Errorf("extends executed")

func (s *State) evalBlock(block *ast.Block) error {
	// When we encounter a block, render using the block stack. bs is nil, or
	// has exactly one layer, exactly when no template in the extends chain
	// overrode this block - that's the condition `required` forbids.
	bs := s.blocks[block.Name]
	overridden := bs != nil && len(bs.layers) > 1
	if block.Required && !overridden {
		return NewError(ErrEvalBlock, fmt.Sprintf("required block %q was not overridden", block.Name))
	}

	body := block.Body
	if bs != nil && len(bs.layers) > 0 {
		bs.index = 0
		body = bs.layers[0]
	}

	// Unscoped blocks (the default) don't see local variables live at the
	// point of the block tag, e.g. an enclosing for-loop's variables - only
	// globals and the root template scope. Scoped blocks inherit them.
	savedScopes := s.scopes
	if !block.Scoped {
		// Copy rather than reslice: reslicing would share the backing array
		// with savedScopes, and pushScope's append below would then
		// clobber the caller's outer scopes instead of allocating fresh.
		s.scopes = append([]map[string]value.Value{}, s.scopes[0])
	}

	oldBlock := s.currentBlock
	s.currentBlock = block.Name
	s.pushScope()
	for _, stmt := range body {
		if err := s.evalStmt(stmt); err != nil {
			s.popScope()
			s.currentBlock = oldBlock
			s.scopes = savedScopes
			return err
		}
	}
	s.popScope()
	s.currentBlock = oldBlock
	s.scopes = savedScopes
	return nil
}

func (s *State) evalInclude(inc *ast.Include) error {
	nameVal, err := s.evalExpr(inc.Name)
	if err != nil {
		return err
	}

	name, ok := nameVal.AsString()
	if !ok {
		return NewError(ErrInvalidOperation, "include name must be a string")
	}
	name = s.env.joinPath(name, s.name)

	tmpl, err := s.env.GetTemplate(name)
	if err != nil {
		if inc.IgnoreMissing {
			return nil
		}
		return err
	}

	for _, seen := range s.renderStack {
		if seen == tmpl.compiled.name {
			return NewError(ErrCyclicReference, fmt.Sprintf("cyclic include involving %q", tmpl.compiled.name))
		}
	}

	s.depth++
	if s.depth > s.recursionLimit() {
		s.depth--
		return NewError(ErrBadInclude, "recursion limit exceeded")
	}

	childState := &State{
		env:         s.env,
		name:        tmpl.compiled.name,
		source:      tmpl.compiled.source,
		autoEscape:  s.env.autoEscapeFunc(tmpl.compiled.name),
		blocks:      make(map[string]*blockStack),
		macros:      make(map[string]*ast.Macro),
		out:         s.out, // Share output
		depth:       s.depth,
		fuel:        s.fuel,
		renderStack: append(append([]string{}, s.renderStack...), tmpl.compiled.name),
	}
	if inc.WithContext {
		// Share the caller's scope chain, so the included template sees
		// every local variable currently in scope.
		childState.scopes = s.scopes
	} else {
		childState.scopes = []map[string]value.Value{make(map[string]value.Value)}
	}

	_, err = childState.eval(tmpl.compiled.ast)
	s.depth--
	return err
}

// recursionLimit returns the configured recursion cap, defaulting to the
// package constant when the environment wasn't built via NewEnvironment/
// EmptyEnvironment (so never had one assigned).
func (s *State) recursionLimit() int {
	if s.env.recursionLimit <= 0 {
		return maxRecursion
	}
	return s.env.recursionLimit
}

// moduleState returns the State a module's macros should close over: the
// importing state itself when the module was imported "with context", or a
// fresh state scoped only to globals otherwise.
func (s *State) moduleState(withContext bool) *State {
	if withContext {
		return s
	}
	return &State{
		env:        s.env,
		name:       s.name,
		source:     s.source,
		autoEscape: s.autoEscape,
		scopes:     []map[string]value.Value{make(map[string]value.Value)},
		blocks:     make(map[string]*blockStack),
		macros:     make(map[string]*ast.Macro),
		out:        &strings.Builder{},
		depth:      s.depth,
	}
}

func (s *State) evalImport(imp *ast.Import) error {
	// Evaluate the template path expression
	pathVal, err := s.evalExpr(imp.Expr)
	if err != nil {
		return err
	}

	path, ok := pathVal.AsString()
	if !ok {
		return NewError(ErrInvalidOperation, "import path must be a string")
	}
	path = s.env.joinPath(path, s.name)

	// Load and parse the template
	tmpl, err := s.env.GetTemplate(path)
	if err != nil {
		return err
	}

	// Create a module object with all macros from the template
	module := s.moduleState(imp.WithContext).createModule(tmpl.compiled.ast)

	// Get the alias name
	var aliasName string
	if varExpr, ok := imp.Name.(*ast.Var); ok {
		aliasName = varExpr.ID
	} else if constExpr, ok := imp.Name.(*ast.Const); ok {
		if name, ok := constExpr.Value.(string); ok {
			aliasName = name
		}
	}
	if aliasName == "" {
		return NewError(ErrInvalidOperation, "import alias must be a name")
	}

	// Set the module in current scope
	s.Set(aliasName, module)
	return nil
}

func (s *State) evalFromImport(frm *ast.FromImport) error {
	// Evaluate the template path expression
	pathVal, err := s.evalExpr(frm.Expr)
	if err != nil {
		return err
	}

	path, ok := pathVal.AsString()
	if !ok {
		return NewError(ErrInvalidOperation, "import path must be a string")
	}
	path = s.env.joinPath(path, s.name)

	// Load and parse the template
	tmpl, err := s.env.GetTemplate(path)
	if err != nil {
		return err
	}

	// Create a temporary state to collect macros
	module := s.moduleState(frm.WithContext).createModule(tmpl.compiled.ast)
	moduleMap, ok := module.AsMap()
	if !ok {
		moduleMap = make(map[string]value.Value)
	}

	// Import each named item
	for _, name := range frm.Names {
		var importName string
		if varExpr, ok := name.Name.(*ast.Var); ok {
			importName = varExpr.ID
		} else if constExpr, ok := name.Name.(*ast.Const); ok {
			if n, ok := constExpr.Value.(string); ok {
				importName = n
			}
		}
		if importName == "" {
			return NewError(ErrInvalidOperation, "import name must be an identifier")
		}

		// Get the alias (or use the same name)
		aliasName := importName
		if name.Alias != nil {
			if varExpr, ok := name.Alias.(*ast.Var); ok {
				aliasName = varExpr.ID
			} else if constExpr, ok := name.Alias.(*ast.Const); ok {
				if n, ok := constExpr.Value.(string); ok {
					aliasName = n
				}
			}
		}

		// Get the item from the module
		if item, exists := moduleMap[importName]; exists {
			s.Set(aliasName, item)
		} else {
			return NewError(ErrUndefinedVar, fmt.Sprintf("%s not found in %s", importName, path))
		}
	}

	return nil
}

func (s *State) createModule(tmpl *ast.Template) value.Value {
	// Collect all macros from the template
	macros := make(map[string]*ast.Macro)
	for _, stmt := range tmpl.Body() {
		if macro, ok := stmt.(*ast.Macro); ok {
			macros[macro.Name] = macro
		}
	}

	// Create a callable map for the module
	module := make(map[string]value.Value)
	for name, macro := range macros {
		// Create a macro callable
		module[name] = s.makeMacroCallable(macro)
	}

	return value.FromMap(module)
}

func (s *State) makeMacroCallable(macro *ast.Macro) value.Value {
	// Store a reference to the macro that can be called later
	// We use a special "callable" value type
	return value.FromCallable(&macroCallable{
		macro: macro,
		state: s,
	})
}

func (s *State) evalFilterBlock(block *ast.FilterBlock) error {
	// Capture output
	oldOut := s.out
	s.out = &strings.Builder{}
	for _, stmt := range block.Body {
		if err := s.evalStmt(stmt); err != nil {
			s.out = oldOut
			return err
		}
	}
	captured := s.out.String()
	s.out = oldOut

	result, err := s.applyFilter(block.Filter, value.FromString(captured))
	if err != nil {
		return err
	}

	return s.writeValue(result)
}

func (s *State) evalAutoEscape(ae *ast.AutoEscape) error {
	val, err := s.evalExpr(ae.Enabled)
	if err != nil {
		return err
	}

	oldEscape := s.autoEscape

	if b, ok := val.AsBool(); ok {
		if b {
			s.autoEscape = AutoEscapeHTML
		} else {
			s.autoEscape = AutoEscapeNone
		}
	} else if str, ok := val.AsString(); ok {
		switch str {
		case "html":
			s.autoEscape = AutoEscapeHTML
		case "json":
			s.autoEscape = AutoEscapeJSON
		case "none":
			s.autoEscape = AutoEscapeNone
		default:
			s.autoEscape = AutoEscapeCustom(str)
		}
	}

	for _, stmt := range ae.Body {
		if err := s.evalStmt(stmt); err != nil {
			s.autoEscape = oldEscape
			return err
		}
	}
	s.autoEscape = oldEscape
	return nil
}

// writeValue renders val to the output buffer, applying whatever escaping
// the current auto-escape strategy calls for.
func (s *State) writeValue(val value.Value) error {
	if val.IsUndefined() {
		return nil
	}

	switch {
	case s.autoEscape.IsHTML():
		str := val.String()
		if !val.IsSafe() {
			str = EscapeHTML(str)
		}
		s.out.WriteString(str)
	case s.autoEscape.IsJSON():
		encoded, err := json.Marshal(val.Raw())
		if err != nil {
			return NewError(ErrInvalidOperation, fmt.Sprintf("cannot JSON-encode value: %v", err))
		}
		s.out.Write(encoded)
	case s.autoEscape.IsCustom():
		name, _ := s.autoEscape.CustomName()
		return NewError(ErrInvalidOperation, fmt.Sprintf("no builtin handling for custom auto-escape %q", name))
	default:
		s.out.WriteString(val.String())
	}
	return nil
}

func (s *State) evalExpr(expr ast.Expr) (value.Value, error) {
	if err := s.consumeFuel(); err != nil {
		return value.Undefined(), err
	}
	switch e := expr.(type) {
	case *ast.Const:
		return s.evalConst(e), nil

	case *ast.Var:
		return s.Lookup(e.ID), nil

	case *ast.UnaryOp:
		return s.evalUnaryOp(e)

	case *ast.BinOp:
		return s.evalBinOp(e)

	case *ast.IfExpr:
		return s.evalIfExpr(e)

	case *ast.Filter:
		val, err := s.evalExpr(e.Expr)
		if err != nil {
			return value.Undefined(), err
		}
		return s.applyFilterCallArgs(e.Name, val, e.Args)

	case *ast.Test:
		return s.evalTest(e)

	case *ast.GetAttr:
		return s.evalGetAttr(e)

	case *ast.GetItem:
		return s.evalGetItem(e)

	case *ast.Call:
		return s.evalCall(e)

	case *ast.List:
		return s.evalList(e)

	case *ast.Map:
		return s.evalMap(e)

	case *ast.Slice:
		return s.evalSlice(e)

	case *ast.Compare:
		return s.evalCompare(e)

	case *ast.Concat:
		return s.evalConcat(e)

	case *ast.Tuple:
		return s.evalTuple(e)

	default:
		return value.Undefined(), fmt.Errorf("unsupported expression type: %T", expr)
	}
}

func (s *State) evalConst(c *ast.Const) value.Value {
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
	default:
		return value.FromAny(v)
	}
}

func (s *State) evalUnaryOp(op *ast.UnaryOp) (value.Value, error) {
	val, err := s.evalExpr(op.Expr)
	if err != nil {
		return value.Undefined(), err
	}

	switch op.Op {
	case ast.UnaryNot:
		if err := s.checkUndefinedBool(val); err != nil {
			return value.Undefined(), err
		}
		return value.FromBool(!val.IsTrue()), nil
	case ast.UnaryNeg:
		return val.Neg()
	default:
		return value.Undefined(), fmt.Errorf("unknown unary operator")
	}
}

func (s *State) evalBinOp(op *ast.BinOp) (value.Value, error) {
	// Short-circuit evaluation for and/or
	if op.Op == ast.BinOpScAnd {
		left, err := s.evalExpr(op.Left)
		if err != nil {
			return value.Undefined(), err
		}
		if !left.IsTrue() {
			return left, nil
		}
		return s.evalExpr(op.Right)
	}

	if op.Op == ast.BinOpScOr {
		left, err := s.evalExpr(op.Left)
		if err != nil {
			return value.Undefined(), err
		}
		if left.IsTrue() {
			return left, nil
		}
		return s.evalExpr(op.Right)
	}

	left, err := s.evalExpr(op.Left)
	if err != nil {
		return value.Undefined(), err
	}
	right, err := s.evalExpr(op.Right)
	if err != nil {
		return value.Undefined(), err
	}

	if op.Op == ast.BinOpIn {
		if err := s.checkUndefinedAccess(right); err != nil {
			return value.Undefined(), err
		}
	}

	return applyBinOp(op.Op, left, right)
}

// applyBinOp implements every non-short-circuiting binary operator. It is
// shared between evalBinOp and evalCompare, since a chained comparison like
// `a < b <= c` applies the same per-link operators BinOp uses.
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
		return value.Undefined(), fmt.Errorf("cannot compare %s and %s", left.Kind(), right.Kind())
	case ast.BinOpLte:
		if cmp, ok := left.Compare(right); ok {
			return value.FromBool(cmp <= 0), nil
		}
		return value.Undefined(), fmt.Errorf("cannot compare %s and %s", left.Kind(), right.Kind())
	case ast.BinOpGt:
		if cmp, ok := left.Compare(right); ok {
			return value.FromBool(cmp > 0), nil
		}
		return value.Undefined(), fmt.Errorf("cannot compare %s and %s", left.Kind(), right.Kind())
	case ast.BinOpGte:
		if cmp, ok := left.Compare(right); ok {
			return value.FromBool(cmp >= 0), nil
		}
		return value.Undefined(), fmt.Errorf("cannot compare %s and %s", left.Kind(), right.Kind())
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
		return value.Undefined(), fmt.Errorf("unknown binary operator: %v", kind)
	}
}

// evalCompare evaluates a (possibly chained) comparison such as `a < b <= c`,
// short-circuiting at the first falsy link the way Python-style chained
// comparisons do.
func (s *State) evalCompare(cmp *ast.Compare) (value.Value, error) {
	left, err := s.evalExpr(cmp.Left)
	if err != nil {
		return value.Undefined(), err
	}
	for _, link := range cmp.Links {
		right, err := s.evalExpr(link.Right)
		if err != nil {
			return value.Undefined(), err
		}
		if link.Op == ast.BinOpIn {
			if err := s.checkUndefinedAccess(right); err != nil {
				return value.Undefined(), err
			}
		}
		result, err := applyBinOp(link.Op, left, right)
		if err != nil {
			return value.Undefined(), err
		}
		if !result.IsTrue() {
			return value.FromBool(false), nil
		}
		left = right
	}
	return value.FromBool(true), nil
}

// evalConcat implements the `~` string-concatenation operator folded across
// an arbitrarily long chain of operands.
func (s *State) evalConcat(c *ast.Concat) (value.Value, error) {
	if len(c.Items) == 0 {
		return value.FromString(""), nil
	}
	result, err := s.evalExpr(c.Items[0])
	if err != nil {
		return value.Undefined(), err
	}
	for _, item := range c.Items[1:] {
		next, err := s.evalExpr(item)
		if err != nil {
			return value.Undefined(), err
		}
		result = result.Concat(next)
	}
	return result, nil
}

// evalTuple evaluates a tuple literal. Tuples render and index like lists;
// they are distinguished in the AST only so the parser can tell `(x)` from
// `(x,)` and allow tuple-unpacking targets.
func (s *State) evalTuple(t *ast.Tuple) (value.Value, error) {
	items := make([]value.Value, len(t.Items))
	for i, item := range t.Items {
		v, err := s.evalExpr(item)
		if err != nil {
			return value.Undefined(), err
		}
		items[i] = v
	}
	return value.FromSlice(items), nil
}

func (s *State) evalIfExpr(ie *ast.IfExpr) (value.Value, error) {
	cond, err := s.evalExpr(ie.TestExpr)
	if err != nil {
		return value.Undefined(), err
	}

	if cond.IsTrue() {
		return s.evalExpr(ie.TrueExpr)
	}

	if ie.FalseExpr != nil {
		return s.evalExpr(ie.FalseExpr)
	}
	return value.Undefined(), nil
}

func (s *State) evalTest(test *ast.Test) (value.Value, error) {
	val, err := s.evalExpr(test.Expr)
	if err != nil {
		return value.Undefined(), err
	}

	var args []value.Value
	for _, arg := range test.Args {
		if arg.Kind == ast.CallArgPos {
			v, err := s.evalExpr(arg.Value)
			if err != nil {
				return value.Undefined(), err
			}
			args = append(args, v)
		}
	}

	testFn, ok := s.env.getTest(test.Name)
	if !ok {
		return value.Undefined(), NewError(ErrUnknownTest, test.Name).WithSpan(test.Span())
	}

	result, err := testFn(s, val, args)
	if err != nil {
		return value.Undefined(), err
	}

	return value.FromBool(result), nil
}

func (s *State) evalGetAttr(ga *ast.GetAttr) (value.Value, error) {
	val, err := s.evalExpr(ga.Expr)
	if err != nil {
		return value.Undefined(), err
	}
	if err := s.checkUndefinedChain(val); err != nil {
		return value.Undefined(), err
	}
	if val.IsUndefined() {
		return val, nil
	}
	return s.env.resolveAttr(val, ga.Name), nil
}

func (s *State) evalGetItem(gi *ast.GetItem) (value.Value, error) {
	val, err := s.evalExpr(gi.Expr)
	if err != nil {
		return value.Undefined(), err
	}
	if err := s.checkUndefinedChain(val); err != nil {
		return value.Undefined(), err
	}
	if val.IsUndefined() {
		return val, nil
	}
	key, err := s.evalExpr(gi.SubscriptExpr)
	if err != nil {
		return value.Undefined(), err
	}
	return s.env.resolveItem(val, key), nil
}

func (s *State) evalCall(call *ast.Call) (value.Value, error) {
	// Check if it's a function call
	if v, ok := call.Expr.(*ast.Var); ok {
		// Check for super() call
		if v.ID == "super" {
			return s.evalSuper()
		}

		// Check for loop() recursive call
		if v.ID == "loop" && s.loopRecurse != nil {
			if len(call.Args) != 1 {
				return value.Undefined(), NewError(ErrInvalidOperation, "loop() takes exactly 1 argument")
			}
			arg, err := s.evalExpr(call.Args[0].Value)
			if err != nil {
				return value.Undefined(), err
			}
			result, err := s.loopRecurse(arg)
			if err != nil {
				return value.Undefined(), err
			}
			return value.FromSafeString(result), nil
		}

		// Check for macro
		if macro, ok := s.macros[v.ID]; ok {
			return s.callMacroWithArgs(macro, call.Args)
		}

		// Check for function
		if rc, ok := s.env.getFunction(v.ID); ok {
			args, kwargs, err := s.evalCallArgs(call.Args)
			if err != nil {
				return value.Undefined(), err
			}
			return rc.invoke(s, args, kwargs)
		}

		// Check if variable is callable
		val := s.Lookup(v.ID)
		if callable, ok := val.AsCallable(); ok {
			args, kwargs, err := s.evalCallArgs(call.Args)
			if err != nil {
				return value.Undefined(), err
			}
			return callable.Call(s, args, kwargs)
		}
	}

	// Evaluate the expression to get a callable
	expr, err := s.evalExpr(call.Expr)
	if err != nil {
		return value.Undefined(), err
	}

	// Check if it's a callable value
	if callable, ok := expr.AsCallable(); ok {
		args, kwargs, err := s.evalCallArgs(call.Args)
		if err != nil {
			return value.Undefined(), err
		}
		return callable.Call(s, args, kwargs)
	}

	// Check if it's a method call on a map or object (like module.macro()
	// or cycler.next()).
	if getAttr, ok := call.Expr.(*ast.GetAttr); ok {
		obj, err := s.evalExpr(getAttr.Expr)
		if err != nil {
			return value.Undefined(), err
		}
		args, kwargs, err := s.evalCallArgs(call.Args)
		if err != nil {
			return value.Undefined(), err
		}
		if methodObj, ok := obj.AsObject(); ok {
			if mc, ok := methodObj.(value.MethodCallable); ok {
				result, err := mc.CallMethod(s, getAttr.Name, args, kwargs)
				if !errors.Is(err, value.ErrUnknownMethod) {
					return result, err
				}
			}
		}
		attr := obj.GetAttr(getAttr.Name)
		if callable, ok := attr.AsCallable(); ok {
			return callable.Call(s, args, kwargs)
		}
	}

	return value.Undefined(), NewError(ErrUnknownFunction, "unknown callable").WithSpan(call.Span())
}

func (s *State) evalSuper() (value.Value, error) {
	if s.currentBlock == "" {
		return value.Undefined(), NewError(ErrInvalidOperation, "super() can only be used inside a block")
	}

	bs := s.blocks[s.currentBlock]
	if bs == nil || bs.index+1 >= len(bs.layers) {
		return value.Undefined(), NewError(ErrInvalidOperation, "no parent block exists")
	}

	// Move to the parent block
	bs.index++
	defer func() { bs.index-- }()

	// Capture output
	oldOut := s.out
	s.out = &strings.Builder{}

	s.pushScope()
	for _, stmt := range bs.layers[bs.index] {
		if err := s.evalStmt(stmt); err != nil {
			s.popScope()
			s.out = oldOut
			return value.Undefined(), err
		}
	}
	s.popScope()

	result := s.out.String()
	s.out = oldOut
	return value.FromSafeString(result), nil
}

func (s *State) evalCallArgs(callArgs []ast.CallArg) ([]value.Value, map[string]value.Value, error) {
	var args []value.Value
	kwargs := make(map[string]value.Value)
	for _, arg := range callArgs {
		val, err := s.evalExpr(arg.Value)
		if err != nil {
			return nil, nil, err
		}
		switch arg.Kind {
		case ast.CallArgPos:
			args = append(args, val)
		case ast.CallArgKwarg:
			kwargs[arg.Name] = val
		}
	}
	return args, kwargs, nil
}

func (s *State) callMacroWithArgs(macro *ast.Macro, callArgs []ast.CallArg) (value.Value, error) {
	s.pushScope()
	defer s.popScope()

	// Separate positional and keyword arguments
	var posArgs []value.Value
	kwargs := make(map[string]value.Value)
	for _, arg := range callArgs {
		val, err := s.evalExpr(arg.Value)
		if err != nil {
			return value.Undefined(), err
		}
		if arg.Kind == ast.CallArgKwarg {
			kwargs[arg.Name] = val
		} else {
			posArgs = append(posArgs, val)
		}
	}

	// Bind arguments
	for i, arg := range macro.Args {
		if varArg, ok := arg.(*ast.Var); ok {
			// Check if provided as kwarg
			if val, ok := kwargs[varArg.ID]; ok {
				s.Set(varArg.ID, val)
				continue
			}
			// Check if provided as positional arg
			if i < len(posArgs) {
				s.Set(varArg.ID, posArgs[i])
			} else if i-len(macro.Args)+len(macro.Defaults) >= 0 {
				// Use default value
				defaultIdx := i - len(macro.Args) + len(macro.Defaults)
				if defaultIdx >= 0 && defaultIdx < len(macro.Defaults) {
					val, err := s.evalExpr(macro.Defaults[defaultIdx])
					if err != nil {
						return value.Undefined(), err
					}
					s.Set(varArg.ID, val)
				} else {
					s.Set(varArg.ID, value.Undefined())
				}
			} else {
				s.Set(varArg.ID, value.Undefined())
			}
		}
	}

	// Capture output
	oldOut := s.out
	s.out = &strings.Builder{}
	for _, stmt := range macro.Body {
		if err := s.evalStmt(stmt); err != nil {
			s.out = oldOut
			return value.Undefined(), err
		}
	}
	result := s.out.String()
	s.out = oldOut

	return value.FromSafeString(result), nil
}

func (s *State) evalList(list *ast.List) (value.Value, error) {
	items := make([]value.Value, len(list.Items))
	for i, item := range list.Items {
		var err error
		items[i], err = s.evalExpr(item)
		if err != nil {
			return value.Undefined(), err
		}
	}
	return value.FromSlice(items), nil
}

func (s *State) evalMap(m *ast.Map) (value.Value, error) {
	result := make(map[string]value.Value)
	for i := range m.Keys {
		key, err := s.evalExpr(m.Keys[i])
		if err != nil {
			return value.Undefined(), err
		}
		val, err := s.evalExpr(m.Values[i])
		if err != nil {
			return value.Undefined(), err
		}
		keyStr, ok := key.AsString()
		if !ok {
			keyStr = key.String()
		}
		result[keyStr] = val
	}
	return value.FromMap(result), nil
}

func (s *State) evalSlice(sl *ast.Slice) (value.Value, error) {
	val, err := s.evalExpr(sl.Expr)
	if err != nil {
		return value.Undefined(), err
	}

	var start, stop *int64
	var step int64 = 1

	if sl.Start != nil {
		v, err := s.evalExpr(sl.Start)
		if err != nil {
			return value.Undefined(), err
		}
		if i, ok := v.AsInt(); ok {
			start = &i
		}
	}

	if sl.Stop != nil {
		v, err := s.evalExpr(sl.Stop)
		if err != nil {
			return value.Undefined(), err
		}
		if i, ok := v.AsInt(); ok {
			stop = &i
		}
	}

	if sl.Step != nil {
		v, err := s.evalExpr(sl.Step)
		if err != nil {
			return value.Undefined(), err
		}
		if i, ok := v.AsInt(); ok {
			step = i
		}
	}

	return s.sliceValue(val, start, stop, step)
}

func (s *State) sliceValue(val value.Value, start, stop *int64, step int64) (value.Value, error) {
	if step == 0 {
		return value.Undefined(), fmt.Errorf("slice step cannot be zero")
	}

	switch {
	case val.Kind() == value.KindSeq:
		items, _ := val.AsSlice()
		return value.FromSlice(sliceSlice(items, start, stop, step)), nil
	case val.Kind() == value.KindString:
		str, _ := val.AsString()
		runes := []rune(str)
		result := sliceRunes(runes, start, stop, step)
		if val.IsSafe() {
			return value.FromSafeString(string(result)), nil
		}
		return value.FromString(string(result)), nil
	default:
		return value.Undefined(), fmt.Errorf("cannot slice %s", val.Kind())
	}
}

func sliceSlice(items []value.Value, start, stop *int64, step int64) []value.Value {
	length := int64(len(items))
	s, e := resolveSliceIndices(length, start, stop, step)

	var result []value.Value
	if step > 0 {
		for i := s; i < e; i += step {
			result = append(result, items[i])
		}
	} else {
		for i := s; i > e; i += step {
			result = append(result, items[i])
		}
	}
	return result
}

func sliceRunes(runes []rune, start, stop *int64, step int64) []rune {
	length := int64(len(runes))
	s, e := resolveSliceIndices(length, start, stop, step)

	var result []rune
	if step > 0 {
		for i := s; i < e; i += step {
			result = append(result, runes[i])
		}
	} else {
		for i := s; i > e; i += step {
			result = append(result, runes[i])
		}
	}
	return result
}

func resolveSliceIndices(length int64, start, stop *int64, step int64) (int64, int64) {
	var s, e int64

	if step > 0 {
		if start == nil {
			s = 0
		} else {
			s = normalizeIndex(*start, length)
		}
		if stop == nil {
			e = length
		} else {
			e = normalizeIndex(*stop, length)
		}
		if s < 0 {
			s = 0
		}
		if e > length {
			e = length
		}
	} else {
		if start == nil {
			s = length - 1
		} else {
			s = normalizeIndex(*start, length)
		}
		if stop == nil {
			e = -1
		} else {
			e = normalizeIndex(*stop, length)
		}
		if s >= length {
			s = length - 1
		}
		if e < -1 {
			e = -1
		}
	}

	return s, e
}

func normalizeIndex(idx, length int64) int64 {
	if idx < 0 {
		idx = length + idx
	}
	return idx
}

func (s *State) applyFilter(filterExpr ast.Expr, val value.Value) (value.Value, error) {
	switch f := filterExpr.(type) {
	case *ast.Filter:
		return s.applyFilterCallArgs(f.Name, val, f.Args)
	case *ast.Var:
		return s.applyFilterCallArgs(f.ID, val, nil)
	default:
		return value.Undefined(), fmt.Errorf("invalid filter expression")
	}
}

func (s *State) applyFilterCallArgs(name string, val value.Value, callArgs []ast.CallArg) (value.Value, error) {
	filterFn, ok := s.env.getFilter(name)
	if !ok {
		return value.Undefined(), NewError(ErrUnknownFilter, name)
	}

	var args []value.Value
	kwargs := make(map[string]value.Value)
	for _, arg := range callArgs {
		v, err := s.evalExpr(arg.Value)
		if err != nil {
			return value.Undefined(), err
		}
		if arg.Kind == ast.CallArgKwarg {
			kwargs[arg.Name] = v
		} else {
			args = append(args, v)
		}
	}

	return filterFn(s, val, args, kwargs)
}
