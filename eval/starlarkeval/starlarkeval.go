// Package starlarkeval evaluates template expressions as Starlark
// expressions.
//
// Template variables become the expression's global environment. Free
// identifiers with no binding evaluate to an undefined value that is falsy,
// prints as nothing and absorbs attribute access, so a template never fails
// just because a variable is missing. Three helpers are available in every
// expression: safe(x) marks a value as exempt from autoescaping, escape(x)
// escapes it for HTML immediately and marks the result safe, and
// default(x, fallback) substitutes fallback when x is undefined or None.
package starlarkeval

import (
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/etianen/moody-templates/data"
	"github.com/etianen/moody-templates/eval"
	"github.com/etianen/moody-templates/render"
)

// Evaluator evaluates expressions with Starlark. It is stateless apart from
// its helper functions and safe for concurrent use.
type Evaluator struct {
	predeclared starlark.StringDict
}

var _ eval.Evaluator = (*Evaluator)(nil)

// New returns an evaluator with the standard helpers installed.
func New() *Evaluator {
	return &Evaluator{predeclared: starlark.StringDict{
		"safe":    starlark.NewBuiltin("safe", safeBuiltin),
		"escape":  starlark.NewBuiltin("escape", escapeBuiltin),
		"default": starlark.NewBuiltin("default", defaultBuiltin),
	}}
}

// Eval implements eval.Evaluator.
func (e *Evaluator) Eval(expr string, vars map[string]data.Value) (data.Value, error) {
	var env = make(starlark.StringDict, len(vars)+len(e.predeclared))
	for name, builtin := range e.predeclared {
		env[name] = builtin
	}
	for name, val := range vars {
		env[name] = toStarlark(val)
	}
	if err := bindFree(expr, env); err != nil {
		return nil, &eval.Error{Expr: expr, Err: err}
	}
	var thread = &starlark.Thread{Name: "template expression"}
	v, err := starlark.Eval(thread, "<expr>", expr, env)
	if err != nil {
		return nil, &eval.Error{Expr: expr, Err: err}
	}
	return fromStarlark(v), nil
}

// bindFree parses the expression and binds every free identifier that has
// no binding in env, and is not a Starlark builtin, to the undefined value.
func bindFree(expr string, env starlark.StringDict) error {
	parsed, err := syntax.ParseExpr("<expr>", expr, 0)
	if err != nil {
		return err
	}
	for _, name := range freeIdents(parsed) {
		if _, bound := env[name]; bound {
			continue
		}
		if _, ok := starlark.Universe[name]; ok {
			continue
		}
		env[name] = undefined{}
	}
	return nil
}

// freeIdents lists the identifiers an expression refers to. Attribute names
// and keyword argument names are not references. Identifiers bound inside
// the expression itself, by a comprehension or a lambda, may be listed too;
// binding those in the environment is harmless since the local binding
// shadows it.
func freeIdents(expr syntax.Expr) []string {
	var skip = map[*syntax.Ident]bool{}
	var seen = map[string]bool{}
	var names []string
	syntax.Walk(expr, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.DotExpr:
			skip[n.Name] = true
		case *syntax.CallExpr:
			for _, arg := range n.Args {
				if binary, ok := arg.(*syntax.BinaryExpr); ok && binary.Op == syntax.EQ {
					if ident, ok := binary.X.(*syntax.Ident); ok {
						skip[ident] = true
					}
				}
			}
		case *syntax.Ident:
			if !skip[n] && !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		}
		return true
	})
	return names
}

func safeBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs("safe", args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	if s, ok := value.(safeString); ok {
		return s, nil
	}
	return safeString(asString(value)), nil
}

func escapeBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs("escape", args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	// The result is already escaped, so it is safe; returning a plain
	// string would get it escaped a second time under autoescaping.
	return safeString(render.HTMLEscapeString(asString(value))), nil
}

func defaultBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value, fallback starlark.Value
	if err := starlark.UnpackPositionalArgs("default", args, kwargs, 2, &value, &fallback); err != nil {
		return nil, err
	}
	switch value.(type) {
	case undefined, starlark.NoneType:
		return fallback, nil
	}
	return value, nil
}
