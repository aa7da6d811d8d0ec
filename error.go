package minijinja

import (
	"fmt"
	"strings"

	"github.com/gojinja/gojinja/ast"
)

// ErrorKind describes the type of error.
type ErrorKind int

const (
	ErrSyntax ErrorKind = iota
	ErrUndefinedVar
	ErrUnknownFilter
	ErrUnknownTest
	ErrUnknownFunction
	ErrInvalidOperation
	ErrTemplateNotFound
	ErrBadEscape
	ErrUnknownBlock
	ErrMissingArgument
	ErrTooManyArguments
	ErrBadInclude
	ErrOutOfFuel
	ErrEvalBlock
	ErrCyclicReference
	ErrNotImplemented
	ErrRuntime
	ErrAssertion
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrUndefinedVar:
		return "undefined variable"
	case ErrUnknownFilter:
		return "unknown filter"
	case ErrUnknownTest:
		return "unknown test"
	case ErrUnknownFunction:
		return "unknown function"
	case ErrInvalidOperation:
		return "invalid operation"
	case ErrTemplateNotFound:
		return "template not found"
	case ErrBadEscape:
		return "bad escape"
	case ErrUnknownBlock:
		return "unknown block"
	case ErrMissingArgument:
		return "missing argument"
	case ErrTooManyArguments:
		return "too many arguments"
	case ErrBadInclude:
		return "bad include"
	case ErrOutOfFuel:
		return "out of fuel"
	case ErrEvalBlock:
		return "cannot evaluate block"
	case ErrCyclicReference:
		return "cyclic reference"
	case ErrNotImplemented:
		return "not implemented"
	case ErrRuntime:
		return "template runtime error"
	case ErrAssertion:
		return "template assertion error"
	default:
		return "error"
	}
}

// DebugInfo carries the extra context attached to an Error when the
// owning Environment has debug mode enabled: the full template source
// plus whatever local variables were referenced by the failing node.
type DebugInfo struct {
	TemplateSource   string
	ReferencedLocals map[string]interface{}
}

// Error represents an error that occurred during template processing.
type Error struct {
	Kind      ErrorKind
	Message   string
	Span      *ast.Span
	Name      string // template name
	Source    string // template source (for error display)
	DebugInfo *DebugInfo
	cause     error
}

func (e *Error) Error() string {
	var b strings.Builder
	switch {
	case e.Name != "" && e.Span != nil:
		fmt.Fprintf(&b, "%s: %s (in %s:%d)", e.Kind, e.Message, e.Name, e.Span.StartLine)
	case e.Span != nil:
		fmt.Fprintf(&b, "%s: %s (at line %d)", e.Kind, e.Message, e.Span.StartLine)
	default:
		fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	}
	for cause := e.cause; cause != nil; {
		fmt.Fprintf(&b, "\ncaused by: %s", cause.Error())
		wrapped, ok := cause.(*Error)
		if !ok {
			break
		}
		cause = wrapped.cause
	}
	return b.String()
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates a new error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError creates a new error with an underlying cause.
func WrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// WithSpan adds span information to an error.
func (e *Error) WithSpan(span ast.Span) *Error {
	e.Span = &span
	return e
}

// WithName adds template name to an error.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

// WithSource adds source to an error.
func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

// WithDebugInfo attaches referenced-locals context to the error.
func (e *Error) WithDebugInfo(info DebugInfo) *Error {
	e.DebugInfo = &info
	return e
}

// DebugDisplay renders a caret-annotated view of the failing source line
// for callers that print diagnostics to a terminal.
func (e *Error) DebugDisplay() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if e.Name != "" {
		fmt.Fprintf(&b, "\n  --> %s", e.Name)
		if e.Span != nil {
			fmt.Fprintf(&b, ":%d:%d", e.Span.StartLine, e.Span.StartCol)
		}
	}
	if e.Span != nil && e.Source != "" {
		lines := strings.Split(e.Source, "\n")
		lineNo := int(e.Span.StartLine)
		if lineNo >= 1 && lineNo <= len(lines) {
			src := lines[lineNo-1]
			b.WriteString("\n   |\n")
			fmt.Fprintf(&b, "%3d| %s\n", lineNo, src)
			caretCol := int(e.Span.StartCol)
			if caretCol < 0 {
				caretCol = 0
			}
			b.WriteString("   | ")
			b.WriteString(strings.Repeat(" ", caretCol))
			width := 1
			if e.Span.SingleLine() {
				if n := e.Span.Len(); n > 0 {
					width = n
				}
			}
			b.WriteString(strings.Repeat("^", width))
		}
	}
	if e.DebugInfo != nil && len(e.DebugInfo.ReferencedLocals) > 0 {
		b.WriteString("\nReferenced variables:")
		for name, val := range e.DebugInfo.ReferencedLocals {
			fmt.Fprintf(&b, "\n  %s = %v", name, val)
		}
	}
	return b.String()
}
