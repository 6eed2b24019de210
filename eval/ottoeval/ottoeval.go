// Package ottoeval evaluates template expressions as JavaScript using the
// otto interpreter.
//
// The contract matches the default Starlark evaluator where JavaScript
// allows: template variables become the global environment, a reference to
// an unbound variable evaluates to undefined rather than failing, and the
// safe() and escape() helpers are installed. JavaScript reserves the word
// "default", so that helper is absent here; use the || operator with a
// bound variable, or a conditional, instead.
//
// Safe values cross the boundary as objects carrying a __safe property, so
// string operations on them behave as object operations would. Mark values
// safe at the point of use rather than operating on them.
package ottoeval

import (
	"fmt"
	"strings"

	"github.com/robertkrimen/otto"

	"github.com/etianen/moody-templates/data"
	"github.com/etianen/moody-templates/eval"
	"github.com/etianen/moody-templates/render"
)

// Evaluator evaluates expressions as JavaScript. Each evaluation runs in a
// fresh interpreter, so expressions cannot observe one another and the
// evaluator is safe for concurrent use.
type Evaluator struct{}

var _ eval.Evaluator = (*Evaluator)(nil)

// New returns a JavaScript expression evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Eval implements eval.Evaluator.
func (e *Evaluator) Eval(expr string, vars map[string]data.Value) (data.Value, error) {
	var vm = otto.New()
	if err := installHelpers(vm); err != nil {
		return nil, &eval.Error{Expr: expr, Err: err}
	}
	for name, val := range vars {
		if err := vm.Set(name, toOtto(val)); err != nil {
			return nil, &eval.Error{Expr: expr, Err: err}
		}
	}
	// Parenthesized so an object literal parses as an expression, not a
	// block.
	value, err := vm.Run("(" + expr + ")")
	if err != nil {
		if isReferenceError(err) {
			return data.Undefined{}, nil
		}
		return nil, &eval.Error{Expr: expr, Err: err}
	}
	val, err := fromOtto(value)
	if err != nil {
		return nil, &eval.Error{Expr: expr, Err: err}
	}
	return val, nil
}

// isReferenceError reports whether the error is a JavaScript reference
// error, which is how an unbound variable surfaces.
func isReferenceError(err error) bool {
	return strings.HasPrefix(err.Error(), "ReferenceError:")
}

func installHelpers(vm *otto.Otto) error {
	if err := vm.Set("safe", safeHelper); err != nil {
		return err
	}
	return vm.Set("escape", escapeHelper)
}

func safeHelper(call otto.FunctionCall) otto.Value {
	return safeValue(call, helperString(call.Argument(0)))
}

// escapeHelper escapes its argument for HTML. The result is already escaped,
// so it comes back marked safe and is not escaped again.
func escapeHelper(call otto.FunctionCall) otto.Value {
	return safeValue(call, render.HTMLEscapeString(helperString(call.Argument(0))))
}

// safeValue wraps s in the object form that crosses the boundary back as a
// safe string.
func safeValue(call otto.FunctionCall, s string) otto.Value {
	obj, err := call.Otto.Object("({})")
	if err != nil {
		return otto.UndefinedValue()
	}
	if err := obj.Set("__safe", s); err != nil {
		return otto.UndefinedValue()
	}
	value, err := otto.ToValue(obj)
	if err != nil {
		return otto.UndefinedValue()
	}
	return value
}

// helperString is the text a template would print for the value.
func helperString(value otto.Value) string {
	v, err := fromOtto(value)
	if err != nil {
		s, _ := value.ToString()
		return s
	}
	return v.String()
}

// toOtto converts a template data value into a form otto can bind.
func toOtto(v data.Value) interface{} {
	switch v := v.(type) {
	case nil, data.Undefined:
		return otto.UndefinedValue()
	case data.Null:
		return otto.NullValue()
	case data.Bool:
		return bool(v)
	case data.Int:
		return int64(v)
	case data.Float:
		return float64(v)
	case data.String:
		return string(v)
	case data.Safe:
		return map[string]interface{}{"__safe": string(v)}
	case data.List:
		var items = make([]interface{}, len(v))
		for i, item := range v {
			items[i] = toOtto(item)
		}
		return items
	case data.Map:
		var m = make(map[string]interface{}, len(v))
		for key, val := range v {
			m[key] = toOtto(val)
		}
		return m
	}
	return v.String()
}

// fromOtto converts an evaluation result back into a template data value.
func fromOtto(value otto.Value) (v data.Value, err error) {
	switch {
	case value.IsUndefined():
		return data.Undefined{}, nil
	case value.IsNull():
		return data.Null{}, nil
	}
	if obj := value.Object(); obj != nil {
		if safe, err := obj.Get("__safe"); err == nil && safe.IsString() {
			s, _ := safe.ToString()
			return data.Safe(s), nil
		}
	}
	exported, err := value.Export()
	if err != nil {
		return nil, err
	}
	// data.New panics on values it cannot convert, such as functions.
	defer func() {
		if e := recover(); e != nil {
			v, err = nil, fmt.Errorf("%v", e)
		}
	}()
	return data.New(exported), nil
}
