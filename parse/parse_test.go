package parse

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/etianen/moody-templates/ast"
	"github.com/etianen/moody-templates/errortypes"
	"github.com/etianen/moody-templates/render"
	"github.com/etianen/moody-templates/tag"
)

// parseTests parse the input and compare the canonical source rendering of
// the resulting tree.
var parseTests = []struct {
	name   string
	input  string
	output string
}{
	{"empty", "", ""},
	{"text", "Hello world", "Hello world"},
	{"output", "{{name}}", "{{ name }}"},
	{"print", "{%print name%}", "{% print name %}"},
	{"comment dropped", "a{# note #}b", "ab"},
	{"whitespace preserved", "  a  {{ x }}\n", "  a  {{ x }}\n"},
	{"lone braces", "a { b } c", "a { b } c"},
	{"if", "{%if check%}yes{%endif%}", "{% if check %}yes{% endif %}"},
	{"if else", "{% if check %}yes{% else %}no{% endif %}",
		"{% if check %}yes{% else %}no{% endif %}"},
	{"if elif else", "{% if a %}1{% elif b %}2{% else %}3{% endif %}",
		"{% if a %}1{% elif b %}2{% else %}3{% endif %}"},
	{"nested if", "{% if a %}{% if b %}x{% endif %}{% endif %}",
		"{% if a %}{% if b %}x{% endif %}{% endif %}"},
	{"for", "{% for item in items %}{{ item }}{% endfor %}",
		"{% for item in items %}{{ item }}{% endfor %}"},
	{"for empty", "{% for x in xs %}a{% empty %}b{% endfor %}",
		"{% for x in xs %}a{% empty %}b{% endfor %}"},
	{"for unpack", "{% for k,v in user.items() %}{{k}}{% endfor %}",
		"{% for k, v in user.items() %}{{ k }}{% endfor %}"},
	{"block", "{% block title %}Hi{% endblock %}",
		"{% block title %}Hi{% endblock %}"},
	{"block named end", "{% block title %}Hi{% endblock title %}",
		"{% block title %}Hi{% endblock %}"},
	{"super", "{% block a %}{% super %}!{% endblock %}",
		"{% block a %}{% super %}!{% endblock %}"},
	{"extends", `{% extends "base.html" %}content`,
		`{% extends "base.html" %}content`},
	{"extends single quotes", "{% extends 'base.html' %}",
		`{% extends "base.html" %}`},
	{"extends after whitespace", "\n  {% extends 'base.html' %}",
		"\n  " + `{% extends "base.html" %}`},
	{"extends after comment", "{# layout #}{% extends 'base.html' %}",
		`{% extends "base.html" %}`},
	{"autoescape", "{% autoescape off %}{{ html }}{% endautoescape %}",
		"{% autoescape off %}{{ html }}{% endautoescape %}"},
	{"set", "{% set user.name as name %}", "{% set user.name as name %}"},
	{"set unpack", "{% set pair as a,b %}", "{% set pair as a, b %}"},
	{"include", "{% include nav_template %}", "{% include nav_template %}"},
}

func TestParse(t *testing.T) {
	for _, test := range parseTests {
		node, err := Parse(test.name, test.input, tag.NewRegistry())
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		if str := node.String(); str != test.output {
			t.Errorf("%s: got %q, expected %q", test.name, str, test.output)
		}
	}
}

func TestParseTree(t *testing.T) {
	node, err := Parse("t", "{% for k, v in user.items() %}{{ k }}{% empty %}none{% endfor %}", tag.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	forNode, ok := node.Nodes[0].(*ast.ForNode)
	if !ok {
		t.Fatalf("expected a for node, got %T", node.Nodes[0])
	}
	if !reflect.DeepEqual(forNode.Vars, []string{"k", "v"}) {
		t.Errorf("vars: got %v", forNode.Vars)
	}
	if forNode.Expr != "user.items()" {
		t.Errorf("expr: got %q", forNode.Expr)
	}
	if forNode.Body.String() != "{{ k }}" {
		t.Errorf("body: got %q", forNode.Body)
	}
	if forNode.Empty == nil || forNode.Empty.String() != "none" {
		t.Errorf("empty clause: got %v", forNode.Empty)
	}
}

func TestParseBlockOrigin(t *testing.T) {
	node, err := Parse("base.html", "{% block title %}x{% endblock %}", tag.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	block := node.Nodes[0].(*ast.BlockNode)
	if block.Origin != "base.html" {
		t.Errorf("origin: got %q, expected %q", block.Origin, "base.html")
	}
}

func TestParsePositions(t *testing.T) {
	node, err := Parse("t", "a\n{{ x }}\n{% if y %}\nb{% endif %}", tag.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var lines []int
	for _, n := range node.Nodes {
		lines = append(lines, int(n.Position()))
	}
	// text "a\n" opens on line 1, {{ x }} on 2, text "\n" on 2, {% if %} on 3
	if expected := []int{1, 2, 2, 3}; !reflect.DeepEqual(lines, expected) {
		t.Errorf("positions: got %v, expected %v", lines, expected)
	}
}

func TestParseCustomTag(t *testing.T) {
	var endArgs string
	var registry = tag.NewRegistry()
	registry.Register(tag.Definition{
		Name: "upper",
		Parse: func(c tag.Cursor, args string, pos ast.Pos) (ast.Node, error) {
			body, _, closeArgs, err := c.ParseUntil("endupper")
			if err != nil {
				return nil, err
			}
			endArgs = closeArgs
			return body, nil
		},
		Compile: func(c tag.Compiler, node *ast.CustomNode) (render.Step, error) {
			return nil, nil
		},
	})
	node, err := Parse("t", "{% upper %}shout{% endupper loud %}", registry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	custom, ok := node.Nodes[0].(*ast.CustomNode)
	if !ok {
		t.Fatalf("expected a custom node, got %T", node.Nodes[0])
	}
	if custom.Name != "upper" {
		t.Errorf("name: got %q", custom.Name)
	}
	if custom.Node.String() != "shout" {
		t.Errorf("wrapped node: got %q", custom.Node)
	}
	if endArgs != "loud" {
		t.Errorf("end tag args: got %q, expected %q", endArgs, "loud")
	}
}

var parseErrorTests = []struct {
	name  string
	input string
	msg   string
	line  int
}{
	{"unclosed marker", "hi\n{{ name", "unclosed output marker", 2},
	{"empty output", "{{ }}", "missing expression in output marker", 1},
	{"empty tag", "{% %}", "missing tag name", 1},
	{"unknown tag", "{% bogus %}", `unknown tag "bogus"`, 1},
	{"unclosed if", "{% if x %}a",
		"unexpected end of template: expected {% elif %}, {% else %} or {% endif %}", 1},
	{"unclosed for multiline", "a\nb\n{% for x in xs %}\nc",
		"unexpected end of template: expected {% empty %} or {% endfor %}", 4},
	{"stray endif", "a{% endif %}", "unmatched {% endif %}", 1},
	{"wrong end inside if", "{% if x %}{% endfor %}", "unmatched {% endfor %}", 1},
	{"mismatched nesting", "{% for x in xs %}{% if y %}{% endfor %}",
		"unexpected {% endfor %}, expected {% elif %}, {% else %} or {% endif %}", 1},
	{"extends not first", "content{% extends 'a.html' %}",
		"extends must come before any template content", 1},
	{"extends twice", "{% extends 'a' %}{% extends 'b' %}",
		"a template may only have one extends tag", 1},
	{"extends nested", "{% if x %}{% extends 'a' %}{% endif %}",
		"extends must appear at the top level", 1},
	{"extends unquoted", "{% extends base %}", "quoted template name", 1},
	{"if without condition", "{% if %}x{% endif %}", "if tag requires a condition", 1},
	{"elif without condition", "{% if a %}x{% elif %}y{% endif %}",
		"elif tag requires a condition", 1},
	{"else with args", "{% if a %}x{% else b %}y{% endif %}",
		"else tag takes no arguments", 1},
	{"bad for", "{% for x %}a{% endfor %}", "expected 'for NAME in EXPRESSION'", 1},
	{"bad loop variable", "{% for 1x in xs %}a{% endfor %}", "not a valid variable name", 1},
	{"block mismatch", "{% block a %}x{% endblock b %}",
		`mismatched block names: "a" closed by "b"`, 1},
	{"super args", "{% super junk %}", "super tag takes no arguments", 1},
	{"autoescape mode", "{% autoescape maybe %}x{% endautoescape %}",
		"autoescape mode must be 'on' or 'off'", 1},
	{"bad set", "{% set expr %}", "expected 'set EXPRESSION as NAME'", 1},
}

func TestParseErrors(t *testing.T) {
	for _, test := range parseErrorTests {
		_, err := Parse(test.name, test.input, tag.NewRegistry())
		if err == nil {
			t.Errorf("%s: expected an error, got none", test.name)
			continue
		}
		var syntaxErr *errortypes.SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Errorf("%s: expected a syntax error, got %T: %v", test.name, err, err)
			continue
		}
		if !strings.Contains(err.Error(), test.msg) {
			t.Errorf("%s: error %q does not contain %q", test.name, err, test.msg)
		}
		if syntaxErr.Line() != test.line {
			t.Errorf("%s: error on line %d, expected %d", test.name, syntaxErr.Line(), test.line)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("page.html", "line one\n  {{ broken", tag.NewRegistry())
	var syntaxErr *errortypes.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected a syntax error, got %T: %v", err, err)
	}
	if syntaxErr.Template() != "page.html" || syntaxErr.Line() != 2 || syntaxErr.Col() != 3 {
		t.Errorf("got %s:%d:%d, expected page.html:2:3",
			syntaxErr.Template(), syntaxErr.Line(), syntaxErr.Col())
	}
}
