// Package render holds the runtime that compiled templates execute against:
// the output writer, the variable scope stack and the escaping routines.
package render

import (
	"io"

	"github.com/etianen/moody-templates/data"
	"github.com/etianen/moody-templates/errortypes"
	"github.com/etianen/moody-templates/eval"
)

// Step is a single compiled rendering operation. A compiled template is a
// sequence of steps run in order against one Context.
type Step func(*Context) error

// Run executes steps in order, stopping at the first error.
func Run(ctx *Context, steps []Step) error {
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// IncludeFunc resolves a template name at render time and runs that template
// against the given context. Loaders install one on the templates they
// compile; a context without one fails any include with NotFoundError.
type IncludeFunc func(ctx *Context, name string) error

// Context carries the state of one render. A fresh Context is created per
// render, which is what makes a compiled template safe to execute from
// several goroutines at once.
type Context struct {
	wr      io.Writer
	vars    scope
	eval    eval.Evaluator
	include IncludeFunc
}

// NewContext returns a render context writing to wr. The frames, outermost
// first, seed the variable scopes; a nil frame becomes an empty one. The
// innermost scope is always a fresh one of the context's own, so rendering
// never writes into a seed frame.
func NewContext(wr io.Writer, evaluator eval.Evaluator, include IncludeFunc, frames ...data.Map) *Context {
	return &Context{
		wr:      wr,
		vars:    newScope(frames...),
		eval:    evaluator,
		include: include,
	}
}

// Write writes directly to the render output, implementing io.Writer.
func (c *Context) Write(p []byte) (int, error) {
	return c.wr.Write(p)
}

// WriteString writes s to the render output.
func (c *Context) WriteString(s string) error {
	_, err := io.WriteString(c.wr, s)
	return err
}

// WriteEscaped writes s to the render output with HTML escaping applied.
func (c *Context) WriteEscaped(s string) error {
	return HTMLEscape(c.wr, s)
}

// Eval hands expr to the expression evaluator along with the current
// variable bindings.
func (c *Context) Eval(expr string) (data.Value, error) {
	if c.eval == nil {
		return nil, eval.Errorf(expr, "no expression evaluator configured")
	}
	return c.eval.Eval(expr, c.vars.flatten())
}

// PushScope adds an empty innermost scope.
func (c *Context) PushScope() {
	c.vars.push()
}

// PopScope discards the innermost scope.
func (c *Context) PopScope() {
	c.vars.pop()
}

// Set binds name to v in the innermost scope.
func (c *Context) Set(name string, v data.Value) {
	c.vars.set(name, v)
}

// Lookup resolves name against the scopes, innermost first, returning
// Undefined when it is bound nowhere.
func (c *Context) Lookup(name string) data.Value {
	return c.vars.lookup(name)
}

// Include renders the named template in place.
func (c *Context) Include(name string) error {
	if c.include == nil {
		return errortypes.NewNotFoundError(name)
	}
	return c.include(c, name)
}

// SwapWriter redirects the render output to w, returning the previous
// writer so the caller can restore it. Tags use this to capture the output
// of a body.
func (c *Context) SwapWriter(w io.Writer) io.Writer {
	var old = c.wr
	c.wr = w
	return old
}
