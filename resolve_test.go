package moody

import (
	"errors"
	"testing"

	"github.com/etianen/moody-templates/ast"
	"github.com/etianen/moody-templates/errortypes"
	"github.com/etianen/moody-templates/parse"
	"github.com/etianen/moody-templates/tag"
)

// parseAll parses a set of named template sources and returns a load
// callback over them.
func parseAll(t *testing.T, templates map[string]string) (map[string]*ast.ListNode, func(string) (*ast.ListNode, error)) {
	t.Helper()
	var registry = tag.NewRegistry()
	var trees = map[string]*ast.ListNode{}
	for name, source := range templates {
		tree, err := parse.Parse(name, source, registry)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		trees[name] = tree
	}
	return trees, func(name string) (*ast.ListNode, error) {
		tree, ok := trees[name]
		if !ok {
			return nil, errortypes.NewNotFoundError(name)
		}
		return tree, nil
	}
}

var resolveTests = []struct {
	name      string
	templates map[string]string
	output    string
}{

	{"no inheritance", map[string]string{
		"page.html": `Hello {{ name }}`,
	}, `Hello {{ name }}`},

	{"override a block", map[string]string{
		"base.html": `<title>{% block title %}Base{% endblock %}</title>`,
		"page.html": `{% extends "base.html" %}{% block title %}Page{% endblock %}`,
	}, `<title>{% block title %}Page{% endblock %}</title>`},

	{"inherit a block", map[string]string{
		"base.html": `<title>{% block title %}Base{% endblock %}</title>`,
		"page.html": `{% extends "base.html" %}`,
	}, `<title>{% block title %}Base{% endblock %}</title>`},

	{"content outside blocks is discarded", map[string]string{
		"base.html": `[{% block body %}{% endblock %}]`,
		"page.html": `{% extends "base.html" %}ignored {% block body %}kept{% endblock %} ignored`,
	}, `[{% block body %}kept{% endblock %}]`},

	{"super splices the overridden content", map[string]string{
		"base.html": `{% block title %}Base{% endblock %}`,
		"page.html": `{% extends "base.html" %}{% block title %}{% super %} and more{% endblock %}`,
	}, `{% block title %}Base and more{% endblock %}`},

	{"super may appear more than once", map[string]string{
		"base.html": `{% block title %}x{% endblock %}`,
		"page.html": `{% extends "base.html" %}{% block title %}{% super %}.{% super %}{% endblock %}`,
	}, `{% block title %}x.x{% endblock %}`},

	{"super inside an if", map[string]string{
		"base.html": `{% block title %}Base{% endblock %}`,
		"page.html": `{% extends "base.html" %}{% block title %}{% if long %}{% super %}!{% else %}short{% endif %}{% endblock %}`,
	}, `{% block title %}{% if long %}Base!{% else %}short{% endif %}{% endblock %}`},

	{"override a nested block", map[string]string{
		"base.html": `{% block outer %}A{% block inner %}B{% endblock %}C{% endblock %}`,
		"page.html": `{% extends "base.html" %}{% block inner %}X{% endblock %}`,
	}, `{% block outer %}A{% block inner %}X{% endblock %}C{% endblock %}`},

	{"super keeps nested overrides", map[string]string{
		"base.html": `{% block outer %}A{% block inner %}B{% endblock %}C{% endblock %}`,
		"page.html": `{% extends "base.html" %}{% block outer %}[{% super %}]{% endblock %}{% block inner %}X{% endblock %}`,
	}, `{% block outer %}[A{% block inner %}X{% endblock %}C]{% endblock %}`},

	{"three levels", map[string]string{
		"base.html": `<{% block body %}base{% endblock %}>`,
		"mid.html":  `{% extends "base.html" %}{% block body %}mid {% super %}{% endblock %}`,
		"page.html": `{% extends "mid.html" %}{% block body %}page {% super %}{% endblock %}`,
	}, `<{% block body %}page mid base{% endblock %}>`},

	{"override skips a level", map[string]string{
		"base.html": `<{% block body %}base{% endblock %}>`,
		"mid.html":  `{% extends "base.html" %}unrelated`,
		"page.html": `{% extends "mid.html" %}{% block body %}page{% endblock %}`,
	}, `<{% block body %}page{% endblock %}>`},

	{"middle level inherited unchanged", map[string]string{
		"base.html": `<{% block body %}base{% endblock %}>`,
		"mid.html":  `{% extends "base.html" %}{% block body %}mid{% endblock %}`,
		"page.html": `{% extends "mid.html" %}`,
	}, `<{% block body %}mid{% endblock %}>`},

	{"blocks inside structure", map[string]string{
		"base.html": `{% for item in items %}{% block row %}{{ item }}{% endblock %}{% endfor %}`,
		"page.html": `{% extends "base.html" %}{% block row %}* {{ item }}{% endblock %}`,
	}, `{% for item in items %}{% block row %}* {{ item }}{% endblock %}{% endfor %}`},

	{"first definition of a duplicated block wins", map[string]string{
		"base.html": `{% block title %}Base{% endblock %}`,
		"page.html": `{% extends "base.html" %}{% block title %}first{% endblock %}{% block title %}second{% endblock %}`,
	}, `{% block title %}first{% endblock %}`},
}

func TestResolveInheritance(t *testing.T) {
	for _, test := range resolveTests {
		var trees, load = parseAll(t, test.templates)
		resolved, err := resolveInheritance("page.html", trees["page.html"], load)
		if err != nil {
			t.Errorf("%s: %s", test.name, err)
			continue
		}
		if output := resolved.String(); output != test.output {
			t.Errorf("%s:\nexpected\n\t%s\ngot\n\t%s", test.name, test.output, output)
		}
	}
}

func TestResolveSharesUntouchedSubtrees(t *testing.T) {
	var trees, load = parseAll(t, map[string]string{
		"base.html": `{% block title %}Base{% endblock %}{% block footer %}Footer{% endblock %}`,
		"page.html": `{% extends "base.html" %}{% block title %}Page{% endblock %}`,
	})
	resolved, err := resolveInheritance("page.html", trees["page.html"], load)
	if err != nil {
		t.Fatal(err)
	}
	var base = trees["base.html"]
	if base.Nodes[1] != resolved.Nodes[1] {
		t.Error("expected the untouched footer block to be shared with the parent tree")
	}
	if base.Nodes[0] == resolved.Nodes[0] {
		t.Error("expected the overridden title block to be a new node")
	}
	if base.String() != `{% block title %}Base{% endblock %}{% block footer %}Footer{% endblock %}` {
		t.Error("resolution modified the parent tree")
	}
}

func TestResolveBlockOrigin(t *testing.T) {
	var trees, load = parseAll(t, map[string]string{
		"base.html": `{% block title %}Base{% endblock %}{% block footer %}Footer{% endblock %}`,
		"page.html": `{% extends "base.html" %}{% block title %}Page{% endblock %}`,
	})
	resolved, err := resolveInheritance("page.html", trees["page.html"], load)
	if err != nil {
		t.Fatal(err)
	}
	if origin := resolved.Nodes[0].(*ast.BlockNode).Origin; origin != "page.html" {
		t.Errorf("overriding block origin = %q, expected %q", origin, "page.html")
	}
	if origin := resolved.Nodes[1].(*ast.BlockNode).Origin; origin != "base.html" {
		t.Errorf("inherited block origin = %q, expected %q", origin, "base.html")
	}
}

func TestResolveCircular(t *testing.T) {
	var tests = []struct {
		name      string
		templates map[string]string
		chain     []string
	}{
		{"self", map[string]string{
			"a.html": `{% extends "a.html" %}`,
		}, []string{"a.html", "a.html"}},
		{"mutual", map[string]string{
			"a.html": `{% extends "b.html" %}`,
			"b.html": `{% extends "a.html" %}`,
		}, []string{"a.html", "b.html", "a.html"}},
		{"longer cycle", map[string]string{
			"a.html": `{% extends "b.html" %}`,
			"b.html": `{% extends "c.html" %}`,
			"c.html": `{% extends "b.html" %}`,
		}, []string{"a.html", "b.html", "c.html", "b.html"}},
	}
	for _, test := range tests {
		var trees, load = parseAll(t, test.templates)
		_, err := resolveInheritance("a.html", trees["a.html"], load)
		var circErr *errortypes.CircularError
		if !errors.As(err, &circErr) {
			t.Errorf("%s: expected a circular inheritance error, got %v", test.name, err)
			continue
		}
		var chain = circErr.Chain()
		if len(chain) != len(test.chain) {
			t.Errorf("%s: chain = %v, expected %v", test.name, chain, test.chain)
			continue
		}
		for i := range chain {
			if chain[i] != test.chain[i] {
				t.Errorf("%s: chain = %v, expected %v", test.name, chain, test.chain)
				break
			}
		}
	}
}

func TestResolveMissingParent(t *testing.T) {
	var trees, load = parseAll(t, map[string]string{
		"page.html": `{% extends "missing.html" %}`,
	})
	_, err := resolveInheritance("page.html", trees["page.html"], load)
	var notFound *errortypes.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected a not found error, got %v", err)
	}
	if len(notFound.Names()) != 1 || notFound.Names()[0] != "missing.html" {
		t.Errorf("not found error names = %v", notFound.Names())
	}
}

func TestResolveWithoutLoader(t *testing.T) {
	var trees, _ = parseAll(t, map[string]string{
		"page.html": `{% extends "base.html" %}`,
	})
	_, err := resolveInheritance("page.html", trees["page.html"], nil)
	var notFound *errortypes.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected a not found error, got %v", err)
	}
}
