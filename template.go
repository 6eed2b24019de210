package moody

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/etianen/moody-templates/data"
	"github.com/etianen/moody-templates/eval"
	"github.com/etianen/moody-templates/render"
)

// Template is a compiled template, ready to render. A Template is immutable
// and safe for concurrent use; every Execute call renders against its own
// context.
type Template struct {
	name      string
	steps     []render.Step
	evaluator eval.Evaluator
	globals   data.Map
	include   render.IncludeFunc
}

// Name returns the name the template was compiled under.
func (t *Template) Name() string {
	return t.name
}

// Execute renders the template with the given data, writing the output to
// wr. The data may be nil, a data.Map, or any map or struct that data.New
// can convert.
func (t *Template) Execute(wr io.Writer, obj interface{}) (err error) {
	defer t.errRecover(&err)
	vars, err := dataMap(obj)
	if err != nil {
		return err
	}
	var ctx = render.NewContext(wr, t.evaluator, t.include, t.globals, vars)
	return render.Run(ctx, t.steps)
}

// Render renders the template to a string.
func (t *Template) Render(obj interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, obj); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func dataMap(obj interface{}) (data.Map, error) {
	switch obj := obj.(type) {
	case nil:
		return data.Map{}, nil
	case data.Map:
		return obj, nil
	}
	if m, ok := data.New(obj).(data.Map); ok {
		return m, nil
	}
	return nil, fmt.Errorf("the template data must be a map or a struct, got %T", obj)
}

// errRecover is the handler that turns panics raised during rendering into
// error returns.
func (t *Template) errRecover(errp *error) {
	if e := recover(); e != nil {
		switch e := e.(type) {
		case runtime.Error:
			*errp = fmt.Errorf("template %s: %v\n%v", t.name, e, string(debug.Stack()))
		case error:
			*errp = e
		default:
			*errp = fmt.Errorf("template %s: %v", t.name, e)
		}
	}
}
