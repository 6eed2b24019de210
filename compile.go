package moody

import (
	"fmt"
	"sort"

	"github.com/etianen/moody-templates/ast"
	"github.com/etianen/moody-templates/data"
	"github.com/etianen/moody-templates/errortypes"
	"github.com/etianen/moody-templates/render"
	"github.com/etianen/moody-templates/tag"
)

// compiler converts a resolved tree into render steps. The name and
// autoescape fields track lexical state during the walk: name follows block
// origins so that runtime errors report the template that defined the
// failing line, and autoescape follows {% autoescape %} tags.
type compiler struct {
	name       string
	registry   *tag.Registry
	autoescape bool
}

var _ tag.Compiler = (*compiler)(nil)

// compileTree compiles a resolved template tree into its step sequence.
func compileTree(name string, tree *ast.ListNode, registry *tag.Registry, autoescape bool) ([]render.Step, error) {
	var c = &compiler{name: name, registry: registry, autoescape: autoescape}
	return c.compileList(tree)
}

// CompileBody implements tag.Compiler.
func (c *compiler) CompileBody(body *ast.ListNode) (render.Step, error) {
	steps, err := c.compileList(body)
	if err != nil {
		return nil, err
	}
	return func(ctx *render.Context) error {
		return render.Run(ctx, steps)
	}, nil
}

// Autoescape implements tag.Compiler.
func (c *compiler) Autoescape() bool {
	return c.autoescape
}

// TemplateName implements tag.Compiler.
func (c *compiler) TemplateName() string {
	return c.name
}

func (c *compiler) compileList(list *ast.ListNode) ([]render.Step, error) {
	var steps = make([]render.Step, 0, len(list.Nodes))
	for _, node := range list.Nodes {
		step, err := c.compileNode(node)
		if err != nil {
			return nil, err
		}
		if step != nil {
			steps = append(steps, step)
		}
	}
	return steps, nil
}

func (c *compiler) compileNode(node ast.Node) (render.Step, error) {
	switch n := node.(type) {
	case *ast.TextNode:
		return c.compileText(n), nil
	case *ast.OutputNode:
		return c.compileOutput(n), nil
	case *ast.IfNode:
		return c.compileIf(n)
	case *ast.ForNode:
		return c.compileFor(n)
	case *ast.BlockNode:
		return c.compileBlock(n)
	case *ast.SuperNode:
		// super tags are spliced away during inheritance resolution; one in
		// a template without a parent renders nothing
		return nil, nil
	case *ast.AutoescapeNode:
		return c.compileAutoescape(n)
	case *ast.SetNode:
		return c.compileSet(n), nil
	case *ast.IncludeNode:
		return c.compileInclude(n), nil
	case *ast.CustomNode:
		return c.compileCustom(n)
	case *ast.ListNode:
		return c.CompileBody(n)
	case *ast.ExtendsNode:
		return nil, fmt.Errorf("template %s: extends was not resolved; compile templates through a loader", c.name)
	}
	return nil, fmt.Errorf("template %s: unknown node type %T", c.name, node)
}

func (c *compiler) compileText(n *ast.TextNode) render.Step {
	var text = n.Text
	return func(ctx *render.Context) error {
		_, err := ctx.Write(text)
		return err
	}
}

func (c *compiler) compileOutput(n *ast.OutputNode) render.Step {
	var name, line = c.name, int(n.Pos)
	var expr = n.Expr
	var escape = c.autoescape && !n.Raw
	return func(ctx *render.Context) error {
		val, err := ctx.Eval(expr)
		if err != nil {
			return errortypes.NewRenderError(name, line, err)
		}
		if _, safe := val.(data.Safe); escape && !safe {
			return ctx.WriteEscaped(val.String())
		}
		return ctx.WriteString(val.String())
	}
}

func (c *compiler) compileIf(n *ast.IfNode) (render.Step, error) {
	var name = c.name
	type branch struct {
		cond string
		line int
		body render.Step
	}
	var branches = make([]branch, len(n.Branches))
	for i, b := range n.Branches {
		body, err := c.CompileBody(b.Body)
		if err != nil {
			return nil, err
		}
		branches[i] = branch{b.Cond, int(b.Pos), body}
	}
	return func(ctx *render.Context) error {
		for _, b := range branches {
			if b.cond == "" {
				return b.body(ctx)
			}
			val, err := ctx.Eval(b.cond)
			if err != nil {
				return errortypes.NewRenderError(name, b.line, err)
			}
			if val.Truthy() {
				return b.body(ctx)
			}
		}
		return nil
	}, nil
}

func (c *compiler) compileFor(n *ast.ForNode) (render.Step, error) {
	var name, line = c.name, int(n.Pos)
	var vars, expr = n.Vars, n.Expr
	body, err := c.CompileBody(n.Body)
	if err != nil {
		return nil, err
	}
	var empty render.Step
	if n.Empty != nil {
		if empty, err = c.CompileBody(n.Empty); err != nil {
			return nil, err
		}
	}
	return func(ctx *render.Context) error {
		val, err := ctx.Eval(expr)
		if err != nil {
			return errortypes.NewRenderError(name, line, err)
		}
		elements, ok := elementsOf(val)
		if !ok {
			return errortypes.NewIterationErrorf(name, line, "cannot iterate over %s (%T)", expr, val)
		}
		if len(elements) == 0 {
			if empty != nil {
				return empty(ctx)
			}
			return nil
		}
		// Each iteration binds the loop variables in a scope of its own,
		// popped again whether the body succeeds or not.
		for _, element := range elements {
			ctx.PushScope()
			err := bindLoopVars(ctx, vars, element, name, line)
			if err == nil {
				err = body(ctx)
			}
			ctx.PopScope()
			if err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// bindLoopVars binds a loop element to the loop variables in the current
// scope, unpacking the element when there is more than one variable.
func bindLoopVars(ctx *render.Context, vars []string, element data.Value, name string, line int) error {
	if len(vars) == 1 {
		ctx.Set(vars[0], element)
		return nil
	}
	items, ok := element.(data.List)
	if !ok {
		return errortypes.NewIterationErrorf(name, line, "cannot unpack %T into %d variables", element, len(vars))
	}
	if len(items) != len(vars) {
		return errortypes.NewIterationErrorf(name, line, "cannot unpack %d values into %d variables", len(items), len(vars))
	}
	for i, varName := range vars {
		ctx.Set(varName, items[i])
	}
	return nil
}

// elementsOf lists the elements a loop visits for a value. Undefined and
// null iterate zero times. Maps iterate their keys in sorted order, so that
// rendering is deterministic. Strings iterate their characters.
func elementsOf(val data.Value) ([]data.Value, bool) {
	switch val := val.(type) {
	case data.List:
		return val, true
	case data.Map:
		var keys = make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var elements = make([]data.Value, len(keys))
		for i, k := range keys {
			elements[i] = data.String(k)
		}
		return elements, true
	case data.String:
		var elements = make([]data.Value, 0, len(val))
		for _, r := range val {
			elements = append(elements, data.String(string(r)))
		}
		return elements, true
	case data.Undefined, data.Null:
		return nil, true
	}
	return nil, false
}

func (c *compiler) compileBlock(n *ast.BlockNode) (render.Step, error) {
	var saved = c.name
	if n.Origin != "" {
		c.name = n.Origin
	}
	body, err := c.CompileBody(n.Body)
	c.name = saved
	return body, err
}

func (c *compiler) compileAutoescape(n *ast.AutoescapeNode) (render.Step, error) {
	var saved = c.autoescape
	c.autoescape = n.On
	body, err := c.CompileBody(n.Body)
	c.autoescape = saved
	return body, err
}

func (c *compiler) compileSet(n *ast.SetNode) render.Step {
	var name, line = c.name, int(n.Pos)
	var expr, names = n.Expr, n.Names
	return func(ctx *render.Context) error {
		val, err := ctx.Eval(expr)
		if err != nil {
			return errortypes.NewRenderError(name, line, err)
		}
		if len(names) == 1 {
			ctx.Set(names[0], val)
			return nil
		}
		items, ok := val.(data.List)
		if !ok {
			return errortypes.NewIterationErrorf(name, line, "cannot unpack %T into %d variables", val, len(names))
		}
		if len(items) != len(names) {
			return errortypes.NewIterationErrorf(name, line, "cannot unpack %d values into %d variables", len(items), len(names))
		}
		for i, varName := range names {
			ctx.Set(varName, items[i])
		}
		return nil
	}
}

func (c *compiler) compileInclude(n *ast.IncludeNode) render.Step {
	var name, line = c.name, int(n.Pos)
	var expr = n.Expr
	return func(ctx *render.Context) error {
		val, err := ctx.Eval(expr)
		if err != nil {
			return errortypes.NewRenderError(name, line, err)
		}
		return ctx.Include(val.String())
	}
}

func (c *compiler) compileCustom(n *ast.CustomNode) (render.Step, error) {
	def, ok := c.registry.Lookup(n.Name)
	if !ok || def.Compile == nil {
		return nil, fmt.Errorf("template %s: no compiler for tag %q", c.name, n.Name)
	}
	return def.Compile(c, n)
}
