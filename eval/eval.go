// Package eval defines the boundary between the template engine and the
// expression language.
//
// The engine treats the text inside {{ ... }} and tag arguments as an opaque
// unit. An Evaluator gives that text meaning. The engine only requires the
// returned values to fit the data.Value contract; which operators, literals
// and functions an expression may use is entirely the evaluator's business.
package eval

import (
	"fmt"

	"github.com/etianen/moody-templates/data"
)

// Evaluator evaluates the expression text found in template markers.
//
// vars holds the render scope flattened into a single map, innermost
// bindings winning. Implementations must be safe for concurrent use,
// and must report failures as *Error so the engine can tell an expression
// problem from its own template errors.
type Evaluator interface {
	Eval(expr string, vars map[string]data.Value) (data.Value, error)
}

// EvalFunc adapts an ordinary function to the Evaluator interface.
type EvalFunc func(expr string, vars map[string]data.Value) (data.Value, error)

func (f EvalFunc) Eval(expr string, vars map[string]data.Value) (data.Value, error) {
	return f(expr, vars)
}

// Error reports a failure raised by an expression evaluator. The engine
// attaches template position information when it propagates one.
type Error struct {
	Expr string // the expression text that failed
	Err  error  // the evaluator's own account of the failure
}

// Errorf creates an evaluator Error for the given expression.
func Errorf(expr string, format string, args ...interface{}) error {
	return &Error{Expr: expr, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error evaluating %q: %v", e.Expr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
