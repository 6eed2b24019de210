// Package tag defines the registry through which the parser recognizes
// {% ... %} markers, along with the built-in tag set.
//
// A tag owns everything between its opening marker and its end marker. The
// built-in tags parse into the engine's own node types and need no compile
// behavior of their own; registered custom tags supply both a parse and a
// compile function, and their parse results travel through the tree wrapped
// in ast.CustomNode.
package tag

import (
	"sort"

	"github.com/etianen/moody-templates/ast"
	"github.com/etianen/moody-templates/render"
)

// Cursor is the view of the parser given to tag parse functions.
type Cursor interface {
	// ParseUntil consumes nodes until one of the named end tags is reached,
	// returning the body along with the name and argument text of the end
	// tag that closed it.
	ParseUntil(ends ...string) (body *ast.ListNode, end string, args string, err error)

	// TemplateName returns the name of the template being parsed.
	TemplateName() string
}

// Compiler is the view of the template compiler given to tag compile
// functions.
type Compiler interface {
	// CompileBody compiles a node sequence into a single step.
	CompileBody(body *ast.ListNode) (render.Step, error)

	// Autoescape reports whether output compiled at this point escapes by
	// default.
	Autoescape() bool

	// TemplateName returns the name of the template that defined the nodes
	// being compiled.
	TemplateName() string
}

// ParseFunc builds the node for one tag invocation. args is the raw text
// between the tag name and the closing marker, trimmed; pos is the line the
// tag starts on. Errors are reported at the tag's position.
type ParseFunc func(c Cursor, args string, pos ast.Pos) (ast.Node, error)

// CompileFunc compiles a node produced by a tag's ParseFunc into a single
// render step.
type CompileFunc func(c Compiler, node *ast.CustomNode) (render.Step, error)

// Definition describes one registered tag.
type Definition struct {
	Name    string
	Parse   ParseFunc
	Compile CompileFunc // nil for built-in tags, which compile by node type
}

// Registry maps tag names to their definitions. Configure a registry before
// handing it to a loader; it is not safe to mutate one that parsers are
// already using.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns a registry preloaded with the built-in tags.
func NewRegistry() *Registry {
	var r = &Registry{defs: make(map[string]Definition)}
	for _, def := range builtins {
		r.Register(def)
	}
	return r
}

// Register adds def to the registry, replacing any existing definition with
// the same name.
func (r *Registry) Register(def Definition) {
	if def.Name == "" || def.Parse == nil {
		panic("tag: Register requires a name and a parse function")
	}
	r.defs[def.Name] = def
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	var def, ok = r.defs[name]
	return def, ok
}

// Names returns the registered tag names, sorted.
func (r *Registry) Names() []string {
	var names = make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
