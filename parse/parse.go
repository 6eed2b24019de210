// Package parse converts template source into its in-memory representation.
//
// The scanner recognizes three marker forms: {{ ... }} for output, {% ... %}
// for tags and {# ... #} for comments. Everything else is plain text, emitted
// verbatim. The parser gives markers structure, dispatching each tag through
// a registry; the text inside an output marker or after a tag name is opaque
// here and stays opaque until an evaluator sees it at render time.
package parse

import (
	"fmt"
	"runtime"
	"strings"
	"unicode"

	"github.com/etianen/moody-templates/ast"
	"github.com/etianen/moody-templates/errortypes"
	"github.com/etianen/moody-templates/tag"
)

// parser holds the state of a single parse.
type parser struct {
	name     string
	registry *tag.Registry
	lex      *lexer     // lexer provides a sequence of tokens
	cur      item       // most recent token, for error positions
	expected [][]string // stack of end tag sets awaited by open tags
}

var _ tag.Cursor = (*parser)(nil)

// Parse converts template source into a node sequence, dispatching tags
// through the registry. Errors are of type *errortypes.SyntaxError, carrying
// the template name and position.
func Parse(name, text string, registry *tag.Registry) (node *ast.ListNode, err error) {
	if registry == nil {
		panic("parse: nil tag registry")
	}
	var p = &parser{
		name:     name,
		registry: registry,
		lex:      lex(name, text),
	}
	defer p.recover(&err)
	node, _, _ = p.parseUntil()
	p.lex = nil
	return node, nil
}

// ParseUntil implements tag.Cursor, consuming nodes until one of the named
// end tags is reached.
func (p *parser) ParseUntil(ends ...string) (*ast.ListNode, string, string, error) {
	if len(ends) == 0 {
		panic("parse: ParseUntil requires at least one end tag")
	}
	var list, end, args = p.parseUntil(ends...)
	return list, end, args, nil
}

// TemplateName implements tag.Cursor.
func (p *parser) TemplateName() string {
	return p.name
}

// parseUntil accumulates nodes until it reaches one of the given end tags,
// or EOF if none are given. It reports which end tag closed the list and
// that tag's argument text.
func (p *parser) parseUntil(ends ...string) (*ast.ListNode, string, string) {
	if len(ends) > 0 {
		p.expected = append(p.expected, ends)
		defer func() { p.expected = p.expected[:len(p.expected)-1] }()
	}
	var list *ast.ListNode
	for {
		var it = p.next()
		if list == nil {
			list = &ast.ListNode{Pos: ast.Pos(it.line)}
		}
		switch it.typ {
		case itemText:
			list.Nodes = append(list.Nodes, &ast.TextNode{Pos: ast.Pos(it.line), Text: []byte(it.val)})
		case itemOutput:
			var expr = strings.TrimSpace(it.val)
			if expr == "" {
				p.errorf("missing expression in output marker")
			}
			list.Nodes = append(list.Nodes, &ast.OutputNode{Pos: ast.Pos(it.line), Expr: expr})
		case itemComment:
			// comments render nothing
		case itemTag:
			var name, args = splitTag(it.val)
			if name == "" {
				p.errorf("missing tag name")
			}
			if contains(ends, name) {
				return list, name, args
			}
			list.Nodes = append(list.Nodes, p.parseTag(list, it, name, args))
		case itemEOF:
			if len(ends) > 0 {
				p.errorf("unexpected end of template: expected %s", tagList(ends))
			}
			return list, "", ""
		case itemError:
			p.errorfAt(it, "%s", it.val)
		}
	}
}

// parseTag dispatches one tag invocation through the registry. enclosing is
// the list built so far for the current frame, used to validate extends
// placement.
func (p *parser) parseTag(enclosing *ast.ListNode, it item, name, args string) ast.Node {
	var def, ok = p.registry.Lookup(name)
	if !ok {
		if len(p.expected) > 0 && p.anyFrameExpects(name) {
			p.errorfAt(it, "unexpected %s, expected %s",
				tagString(name), tagList(p.expected[len(p.expected)-1]))
		}
		if isEndName(name) {
			p.errorfAt(it, "unmatched %s", tagString(name))
		}
		p.errorfAt(it, "unknown tag %q", name)
	}
	node, err := def.Parse(p, args, ast.Pos(it.line))
	if err != nil {
		p.errorfAt(it, "%s", err)
	}
	if def.Compile != nil {
		node = &ast.CustomNode{Pos: ast.Pos(it.line), Name: name, Node: node}
	}
	if _, isExtends := node.(*ast.ExtendsNode); isExtends {
		p.checkExtends(enclosing, it)
	}
	return node
}

// checkExtends enforces the placement rules for the extends tag: top level
// only, before any content, at most once.
func (p *parser) checkExtends(enclosing *ast.ListNode, it item) {
	if len(p.expected) > 0 {
		p.errorfAt(it, "extends must appear at the top level of the template")
	}
	for _, node := range enclosing.Nodes {
		switch n := node.(type) {
		case *ast.TextNode:
			if !allSpace(string(n.Text)) {
				p.errorfAt(it, "extends must come before any template content")
			}
		case *ast.ExtendsNode:
			p.errorfAt(it, "a template may only have one extends tag")
		default:
			p.errorfAt(it, "extends must come before any template content")
		}
	}
}

// anyFrameExpects reports whether any open tag is waiting for the given end
// tag name.
func (p *parser) anyFrameExpects(name string) bool {
	for i := len(p.expected) - 1; i >= 0; i-- {
		if contains(p.expected[i], name) {
			return true
		}
	}
	return false
}

// next returns the next token.
func (p *parser) next() item {
	p.cur = p.lex.nextItem()
	return p.cur
}

// recover is the handler that turns panics into returns from the top level
// of Parse.
func (p *parser) recover(errp *error) {
	if e := recover(); e != nil {
		if _, ok := e.(runtime.Error); ok {
			panic(e)
		}
		if p.lex != nil {
			p.lex.drain()
			p.lex = nil
		}
		*errp = e.(error)
	}
}

// errorf formats the error at the current token and terminates processing.
func (p *parser) errorf(format string, args ...interface{}) {
	p.errorfAt(p.cur, format, args...)
}

// errorfAt formats the error at the given token and terminates processing.
func (p *parser) errorfAt(it item, format string, args ...interface{}) {
	panic(errortypes.NewSyntaxErrorf(p.name, it.line, p.lex.columnNumber(it.pos), format, args...))
}

// splitTag splits a tag marker's contents into the tag name and its argument
// text.
func splitTag(val string) (name, args string) {
	val = strings.TrimSpace(val)
	if i := strings.IndexFunc(val, unicode.IsSpace); i != -1 {
		return val[:i], strings.TrimSpace(val[i:])
	}
	return val, ""
}

// isEndName reports whether name looks like a terminator, for better error
// messages on stray end tags.
func isEndName(name string) bool {
	return strings.HasPrefix(name, "end") || name == "elif" || name == "else" || name == "empty"
}

func tagString(name string) string {
	return fmt.Sprintf("{%% %s %%}", name)
}

// tagList formats a set of tag names for an error message, e.g.
// "{% elif %}, {% else %} or {% endif %}".
func tagList(names []string) string {
	var quoted = make([]string, len(names))
	for i, name := range names {
		quoted[i] = tagString(name)
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
}

func contains(names []string, name string) bool {
	for _, x := range names {
		if x == name {
			return true
		}
	}
	return false
}

func allSpace(str string) bool {
	for _, ch := range str {
		if !unicode.IsSpace(ch) {
			return false
		}
	}
	return true
}
