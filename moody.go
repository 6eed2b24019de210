package moody

import (
	"sync"

	"github.com/etianen/moody-templates/eval"
	"github.com/etianen/moody-templates/eval/starlarkeval"
	"github.com/etianen/moody-templates/parse"
	"github.com/etianen/moody-templates/tag"
)

var defaultEvaluator struct {
	once sync.Once
	eval eval.Evaluator
}

// DefaultEvaluator returns the expression evaluator used when none is
// configured: a Starlark evaluator with the standard helpers installed.
func DefaultEvaluator() eval.Evaluator {
	defaultEvaluator.once.Do(func() {
		defaultEvaluator.eval = starlarkeval.New()
	})
	return defaultEvaluator.eval
}

// Compile compiles template source with the default settings: the built-in
// tags, the default evaluator and autoescaping on. Use a Loader for
// templates that extend or include others.
func Compile(source string) (*Template, error) {
	return CompileNamed("template", source)
}

// CompileNamed compiles template source under the given name, which is what
// error messages report.
func CompileNamed(name, source string) (*Template, error) {
	var registry = tag.NewRegistry()
	tree, err := parse.Parse(name, source, registry)
	if err != nil {
		return nil, err
	}
	resolved, err := resolveInheritance(name, tree, nil)
	if err != nil {
		return nil, err
	}
	steps, err := compileTree(name, resolved, registry, true)
	if err != nil {
		return nil, err
	}
	return &Template{
		name:      name,
		steps:     steps,
		evaluator: DefaultEvaluator(),
	}, nil
}

// Render compiles source and renders it with the given data in one step.
func Render(source string, obj interface{}) (string, error) {
	tmpl, err := Compile(source)
	if err != nil {
		return "", err
	}
	return tmpl.Render(obj)
}
