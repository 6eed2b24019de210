package tag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/etianen/moody-templates/ast"
)

// The built-in tags parse into the engine's core node types, so they carry no
// CompileFunc; the compiler handles them by node type.
var builtins = []Definition{
	{Name: "if", Parse: parseIf},
	{Name: "for", Parse: parseFor},
	{Name: "block", Parse: parseBlock},
	{Name: "super", Parse: parseSuper},
	{Name: "extends", Parse: parseExtends},
	{Name: "autoescape", Parse: parseAutoescape},
	{Name: "set", Parse: parseSet},
	{Name: "print", Parse: parsePrint},
	{Name: "include", Parse: parseInclude},
}

var (
	forArgs = regexp.MustCompile(`^(.+?)\s+in\s+(.+)$`)
	setArgs = regexp.MustCompile(`^(.+?)\s+as\s+(.+)$`)
	ident   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// parseNames splits a comma separated name list, validating each name.
func parseNames(s string) ([]string, error) {
	var names []string
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if !ident.MatchString(name) {
			return nil, fmt.Errorf("%q is not a valid variable name", name)
		}
		names = append(names, name)
	}
	return names, nil
}

func parseIf(c Cursor, args string, pos ast.Pos) (ast.Node, error) {
	if args == "" {
		return nil, fmt.Errorf("if tag requires a condition")
	}
	var node = &ast.IfNode{Pos: pos}
	var cond = args
	for {
		body, end, endArgs, err := c.ParseUntil("elif", "else", "endif")
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, &ast.IfBranchNode{Pos: pos, Cond: cond, Body: body})
		switch end {
		case "endif":
			return node, nil
		case "elif":
			if endArgs == "" {
				return nil, fmt.Errorf("elif tag requires a condition")
			}
			cond = endArgs
		case "else":
			if endArgs != "" {
				return nil, fmt.Errorf("else tag takes no arguments")
			}
			body, _, _, err := c.ParseUntil("endif")
			if err != nil {
				return nil, err
			}
			node.Branches = append(node.Branches, &ast.IfBranchNode{Pos: pos, Body: body})
			return node, nil
		}
	}
}

func parseFor(c Cursor, args string, pos ast.Pos) (ast.Node, error) {
	var match = forArgs.FindStringSubmatch(args)
	if match == nil {
		return nil, fmt.Errorf("expected 'for NAME in EXPRESSION', got 'for %s'", args)
	}
	names, err := parseNames(match[1])
	if err != nil {
		return nil, err
	}
	var node = &ast.ForNode{Pos: pos, Vars: names, Expr: match[2]}
	body, end, _, err := c.ParseUntil("empty", "endfor")
	if err != nil {
		return nil, err
	}
	node.Body = body
	if end == "empty" {
		if node.Empty, _, _, err = c.ParseUntil("endfor"); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func parseBlock(c Cursor, args string, pos ast.Pos) (ast.Node, error) {
	var name = strings.TrimSpace(args)
	if name == "" || len(strings.Fields(name)) != 1 {
		return nil, fmt.Errorf("block tag requires a single name, got %q", args)
	}
	body, _, endArgs, err := c.ParseUntil("endblock")
	if err != nil {
		return nil, err
	}
	// {% endblock NAME %} is allowed if the name matches
	if endArgs != "" && endArgs != name {
		return nil, fmt.Errorf("mismatched block names: %q closed by %q", name, endArgs)
	}
	return &ast.BlockNode{Pos: pos, Name: name, Origin: c.TemplateName(), Body: body}, nil
}

func parseSuper(c Cursor, args string, pos ast.Pos) (ast.Node, error) {
	if args != "" {
		return nil, fmt.Errorf("super tag takes no arguments")
	}
	return &ast.SuperNode{Pos: pos}, nil
}

func parseExtends(c Cursor, args string, pos ast.Pos) (ast.Node, error) {
	name, ok := unquote(args)
	if !ok {
		return nil, fmt.Errorf("extends tag requires a quoted template name, got %q", args)
	}
	return &ast.ExtendsNode{Pos: pos, Name: name}, nil
}

func parseAutoescape(c Cursor, args string, pos ast.Pos) (ast.Node, error) {
	var on bool
	switch args {
	case "on":
		on = true
	case "off":
	default:
		return nil, fmt.Errorf("autoescape mode must be 'on' or 'off', got %q", args)
	}
	body, _, _, err := c.ParseUntil("endautoescape")
	if err != nil {
		return nil, err
	}
	return &ast.AutoescapeNode{Pos: pos, On: on, Body: body}, nil
}

func parseSet(c Cursor, args string, pos ast.Pos) (ast.Node, error) {
	var match = setArgs.FindStringSubmatch(args)
	if match == nil {
		return nil, fmt.Errorf("expected 'set EXPRESSION as NAME', got 'set %s'", args)
	}
	names, err := parseNames(match[2])
	if err != nil {
		return nil, err
	}
	return &ast.SetNode{Pos: pos, Expr: match[1], Names: names}, nil
}

func parsePrint(c Cursor, args string, pos ast.Pos) (ast.Node, error) {
	if args == "" {
		return nil, fmt.Errorf("print tag requires an expression")
	}
	return &ast.OutputNode{Pos: pos, Expr: args, Raw: true}, nil
}

func parseInclude(c Cursor, args string, pos ast.Pos) (ast.Node, error) {
	if args == "" {
		return nil, fmt.Errorf("include tag requires an expression")
	}
	return &ast.IncludeNode{Pos: pos, Expr: args}, nil
}

// unquote strips one level of matched single or double quotes. It is
// stricter than an expression: extends references are static names, resolved
// before the template can ever render.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	var q = s[0]
	if (q != '"' && q != '\'') || s[len(s)-1] != q {
		return "", false
	}
	var inner = s[1 : len(s)-1]
	if strings.ContainsRune(inner, rune(q)) {
		return "", false
	}
	return inner, true
}
