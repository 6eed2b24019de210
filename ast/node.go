// Package ast contains definitions for the in-memory representation of a
// parsed template.
package ast

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Node represents any singular piece of a template.  For example, a sequence
// of plain text or an output marker.
type Node interface {
	String() string // String returns the template source representation of this node.
	Position() Pos  // line in the template source that this node starts on
}

// ParentNode is any Node that has descendent nodes.
type ParentNode interface {
	Node
	Children() []Node
}

// Pos is a 1-based line number in the template source from which a node was
// parsed.  Lines survive inheritance resolution, where nodes from several
// sources are merged into one tree, so they are what error messages report.
type Pos int

// Position returns this position.  It is implemented as a method so that Nodes
// may embed a Pos and fulfill this part of the Node interface for free.
func (p Pos) Position() Pos {
	return p
}

// ListNode holds a sequence of nodes.
type ListNode struct {
	Pos
	Nodes []Node // The element nodes in lexical order.
}

func (n *ListNode) String() string {
	b := new(bytes.Buffer)
	for _, node := range n.Nodes {
		fmt.Fprint(b, node)
	}
	return b.String()
}

func (n *ListNode) Children() []Node {
	return n.Nodes
}

type TextNode struct {
	Pos
	Text []byte // The text; may span newlines.
}

func (n *TextNode) String() string {
	return string(n.Text)
}

// OutputNode prints the value of an expression, e.g. {{ name }}.  Raw output,
// written {% print name %}, bypasses autoescaping.
type OutputNode struct {
	Pos
	Expr string // expression text, handed to the evaluator verbatim
	Raw  bool
}

func (n *OutputNode) String() string {
	if n.Raw {
		return "{% print " + n.Expr + " %}"
	}
	return "{{ " + n.Expr + " }}"
}

// IfNode is a chain of {% if %} / {% elif %} / {% else %} branches.  The
// branches are in source order; an else branch, if present, is last.
type IfNode struct {
	Pos
	Branches []*IfBranchNode
}

func (n *IfNode) String() string {
	var b bytes.Buffer
	for i, branch := range n.Branches {
		switch {
		case i == 0:
			fmt.Fprintf(&b, "{%% if %s %%}", branch.Cond)
		case branch.Cond == "":
			b.WriteString("{% else %}")
		default:
			fmt.Fprintf(&b, "{%% elif %s %%}", branch.Cond)
		}
		b.WriteString(branch.Body.String())
	}
	b.WriteString("{% endif %}")
	return b.String()
}

func (n *IfNode) Children() []Node {
	var nodes []Node
	for _, branch := range n.Branches {
		nodes = append(nodes, branch)
	}
	return nodes
}

// IfBranchNode is one branch of an IfNode.  An empty Cond marks the else
// branch.
type IfBranchNode struct {
	Pos
	Cond string
	Body *ListNode
}

func (n *IfBranchNode) String() string {
	return n.Body.String()
}

func (n *IfBranchNode) Children() []Node {
	return []Node{n.Body}
}

// ForNode loops the body over the elements of an expression's value, e.g.
// {% for item in items %}.  The Empty body, if present, runs instead when the
// value has no elements.
type ForNode struct {
	Pos
	Vars  []string // loop variable names; multiple names unpack each element
	Expr  string
	Body  *ListNode
	Empty *ListNode // nil if there is no {% empty %} clause
}

func (n *ForNode) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "{%% for %s in %s %%}%s", strings.Join(n.Vars, ", "), n.Expr, n.Body)
	if n.Empty != nil {
		fmt.Fprintf(&b, "{%% empty %%}%s", n.Empty)
	}
	b.WriteString("{% endfor %}")
	return b.String()
}

func (n *ForNode) Children() []Node {
	if n.Empty == nil {
		return []Node{n.Body}
	}
	return []Node{n.Body, n.Empty}
}

// BlockNode is a named region that templates extending this one may override.
// Origin records the name of the template that defined this version of the
// block, so that errors raised inside an inherited block report the right
// source.
type BlockNode struct {
	Pos
	Name   string
	Origin string
	Body   *ListNode
}

func (n *BlockNode) String() string {
	return fmt.Sprintf("{%% block %s %%}%s{%% endblock %%}", n.Name, n.Body)
}

func (n *BlockNode) Children() []Node {
	return []Node{n.Body}
}

// SuperNode, written {% super %} inside an overriding block, stands for the
// content of the block being overridden.  Inheritance resolution replaces it;
// one that survives to compilation renders nothing.
type SuperNode struct {
	Pos
}

func (n *SuperNode) String() string {
	return "{% super %}"
}

// ExtendsNode declares the parent of this template.  It may only appear once,
// before any content.  Inheritance resolution consumes it.
type ExtendsNode struct {
	Pos
	Name string
}

func (n *ExtendsNode) String() string {
	return "{% extends " + strconv.Quote(n.Name) + " %}"
}

// AutoescapeNode overrides the autoescaping mode for its body.
type AutoescapeNode struct {
	Pos
	On   bool
	Body *ListNode
}

func (n *AutoescapeNode) String() string {
	var mode = "off"
	if n.On {
		mode = "on"
	}
	return fmt.Sprintf("{%% autoescape %s %%}%s{%% endautoescape %%}", mode, n.Body)
}

func (n *AutoescapeNode) Children() []Node {
	return []Node{n.Body}
}

// SetNode binds the value of an expression to one or more names in the
// current scope, e.g. {% set user.name.title() as title %}.
type SetNode struct {
	Pos
	Expr  string
	Names []string // multiple names unpack the value's elements
}

func (n *SetNode) String() string {
	return fmt.Sprintf("{%% set %s as %s %%}", n.Expr, strings.Join(n.Names, ", "))
}

// IncludeNode renders another template in place.  The template name is an
// expression evaluated at render time.
type IncludeNode struct {
	Pos
	Expr string
}

func (n *IncludeNode) String() string {
	return "{% include " + n.Expr + " %}"
}

// CustomNode wraps the parse result of a tag registered with a compile
// function of its own.  The wrapped node is opaque to the rest of the engine:
// inheritance resolution does not descend into it.
type CustomNode struct {
	Pos
	Name string
	Node Node
}

func (n *CustomNode) String() string {
	return n.Node.String()
}
