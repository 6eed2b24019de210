package moody

import (
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/etianen/moody-templates/ast"
	"github.com/etianen/moody-templates/data"
	"github.com/etianen/moody-templates/errortypes"
	"github.com/etianen/moody-templates/eval"
	"github.com/etianen/moody-templates/parse"
	"github.com/etianen/moody-templates/render"
	"github.com/etianen/moody-templates/tag"
	"github.com/fsnotify/fsnotify"
)

// Loader compiles templates on demand from an ordered list of sources and
// caches the result. Configure a loader before first use; the cache itself
// is safe for concurrent Load calls.
type Loader struct {
	sources    []Source
	registry   *tag.Registry
	evaluator  eval.Evaluator
	globals    data.Map
	autoescape *bool
	err        error

	mu        sync.RWMutex
	templates map[string]*Template
	trees     map[string]*ast.ListNode

	watcher *fsnotify.Watcher
}

// NewLoader returns a loader that loads templates from the given sources,
// trying them in order.
func NewLoader(sources ...Source) *Loader {
	return &Loader{
		sources:   sources,
		registry:  tag.NewRegistry(),
		globals:   make(data.Map),
		templates: map[string]*Template{},
		trees:     map[string]*ast.ListNode{},
	}
}

// WithRegistry sets the tag registry used to parse and compile templates.
func (l *Loader) WithRegistry(registry *tag.Registry) *Loader {
	l.registry = registry
	return l
}

// WithEvaluator sets the expression evaluator compiled templates use.
func (l *Loader) WithEvaluator(evaluator eval.Evaluator) *Loader {
	l.evaluator = evaluator
	return l
}

// WithAutoescape forces autoescaping on or off for every template this loader
// compiles, overriding the by-extension default.
func (l *Loader) WithAutoescape(on bool) *Loader {
	l.autoescape = &on
	return l
}

// AddGlobals merges the given variables into the set visible to every
// template this loader compiles. Redefining a global is an error, reported
// by the next Load.
func (l *Loader) AddGlobals(globals data.Map) *Loader {
	for k, v := range globals {
		if existing, ok := l.globals[k]; ok {
			l.err = fmt.Errorf("global %q already defined as %v", k, existing)
			return l
		}
		l.globals[k] = v
	}
	return l
}

// Load returns the template for the first of the given names that exists.
// Compiled templates are cached; if none of the names exist the returned
// NotFoundError reports every name tried.
func (l *Loader) Load(names ...string) (*Template, error) {
	if l.err != nil {
		return nil, l.err
	}
	if len(names) == 0 {
		return nil, errors.New("no template names given")
	}
	for _, name := range names {
		l.mu.RLock()
		tmpl, cached := l.templates[name]
		l.mu.RUnlock()
		if cached {
			return tmpl, nil
		}
		tmpl, ok, err := l.compile(name)
		if err != nil {
			return nil, err
		}
		if ok {
			return tmpl, nil
		}
	}
	return nil, errortypes.NewNotFoundError(names...)
}

// ClearCache drops every cached template, forcing the next Load to re-read
// and re-compile. The file watcher calls this on any change.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.templates = map[string]*Template{}
	l.trees = map[string]*ast.ListNode{}
	l.mu.Unlock()
}

// compile parses, resolves and compiles one template, reporting ok == false
// when no source has it.
func (l *Loader) compile(name string) (*Template, bool, error) {
	tree, ok, err := l.tree(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	resolved, err := resolveInheritance(name, tree, l.parentTree)
	if err != nil {
		return nil, false, err
	}
	steps, err := compileTree(name, resolved, l.registry, l.autoescapeFor(name))
	if err != nil {
		return nil, false, err
	}
	var tmpl = &Template{
		name:      name,
		steps:     steps,
		evaluator: l.eval(),
		globals:   l.globals,
		include:   l.include,
	}
	l.mu.Lock()
	l.templates[name] = tmpl
	l.mu.Unlock()
	return tmpl, true, nil
}

// tree returns the parsed but unresolved tree for name, reading through the
// sources in order.
func (l *Loader) tree(name string) (*ast.ListNode, bool, error) {
	l.mu.RLock()
	tree, cached := l.trees[name]
	l.mu.RUnlock()
	if cached {
		return tree, true, nil
	}
	for _, source := range l.sources {
		content, ok, err := source.Load(name)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		tree, err := parse.Parse(name, content, l.registry)
		if err != nil {
			return nil, false, err
		}
		l.mu.Lock()
		l.trees[name] = tree
		l.mu.Unlock()
		return tree, true, nil
	}
	return nil, false, nil
}

// parentTree loads the tree for a parent template named by an extends tag.
func (l *Loader) parentTree(name string) (*ast.ListNode, error) {
	tree, ok, err := l.tree(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errortypes.NewNotFoundError(name)
	}
	return tree, nil
}

// include renders another template into an in-progress render, sharing the
// caller's scopes behind a fresh innermost frame.
func (l *Loader) include(ctx *render.Context, name string) error {
	tmpl, err := l.Load(name)
	if err != nil {
		return err
	}
	ctx.PushScope()
	defer ctx.PopScope()
	return render.Run(ctx, tmpl.steps)
}

func (l *Loader) eval() eval.Evaluator {
	if l.evaluator != nil {
		return l.evaluator
	}
	return DefaultEvaluator()
}

func (l *Loader) autoescapeFor(name string) bool {
	if l.autoescape != nil {
		return *l.autoescape
	}
	return autoescapeName(name)
}

// autoescapeName reports whether templates with this name escape output by
// default, decided by file extension.
func autoescapeName(name string) bool {
	switch path.Ext(name) {
	case ".html", ".htm", ".xml", ".xhtml":
		return true
	}
	return false
}
