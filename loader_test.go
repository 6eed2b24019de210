package moody

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/etianen/moody-templates/data"
	"github.com/etianen/moody-templates/errortypes"
	"github.com/etianen/moody-templates/eval/ottoeval"
)

func mustRender(t *testing.T, loader *Loader, name string, obj interface{}) string {
	t.Helper()
	tmpl, err := loader.Load(name)
	if err != nil {
		t.Fatalf("%s: %s", name, err)
	}
	output, err := tmpl.Render(obj)
	if err != nil {
		t.Fatalf("%s: %s", name, err)
	}
	return output
}

func TestLoaderMemorySource(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"page.txt": `Hello {{ name }}!`,
	})
	if output := mustRender(t, loader, "page.txt", data.Map{"name": data.String("World")}); output != "Hello World!" {
		t.Errorf("rendered %q", output)
	}
}

func TestLoaderNotFound(t *testing.T) {
	var loader = NewLoader(MemorySource{})
	_, err := loader.Load("a.html", "b.html")
	var notFound *errortypes.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected a not found error, got %v", err)
	}
	if names := notFound.Names(); len(names) != 2 || names[0] != "a.html" || names[1] != "b.html" {
		t.Errorf("names = %v", names)
	}
	if msg := err.Error(); msg != `template not found: tried "a.html", "b.html"` {
		t.Errorf("message = %q", msg)
	}
}

func TestLoaderNoNames(t *testing.T) {
	if _, err := NewLoader(MemorySource{}).Load(); err == nil {
		t.Error("expected an error for a Load call without names")
	}
}

func TestLoaderSourceOrder(t *testing.T) {
	var loader = NewLoader(
		MemorySource{"shared.txt": `first`},
		MemorySource{"shared.txt": `second`, "only.txt": `fallback`},
	)
	if output := mustRender(t, loader, "shared.txt", nil); output != "first" {
		t.Errorf("rendered %q, expected the first source to win", output)
	}
	if output := mustRender(t, loader, "only.txt", nil); output != "fallback" {
		t.Errorf("rendered %q", output)
	}
}

func TestLoaderNameFallback(t *testing.T) {
	var loader = NewLoader(MemorySource{"b.txt": `b`})
	tmpl, err := loader.Load("a.txt", "b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Name() != "b.txt" {
		t.Errorf("loaded %q, expected %q", tmpl.Name(), "b.txt")
	}
}

func TestLoaderCaching(t *testing.T) {
	var loader = NewLoader(MemorySource{"page.txt": `cached`})
	first, err := loader.Load("page.txt")
	if err != nil {
		t.Fatal(err)
	}
	second, err := loader.Load("page.txt")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected the second Load to return the cached template")
	}
	loader.ClearCache()
	third, err := loader.Load("page.txt")
	if err != nil {
		t.Fatal(err)
	}
	if first == third {
		t.Error("expected ClearCache to force a recompile")
	}
}

func TestLoaderInheritance(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"base.html": `<title>{% block title %}Site{% endblock %}</title><body>{% block body %}{% endblock %}</body>`,
		"page.html": `{% extends "base.html" %}{% block title %}{% super %} - Page{% endblock %}{% block body %}Hello {{ name }}{% endblock %}`,
	})
	var output = mustRender(t, loader, "page.html", data.Map{"name": data.String("Bob")})
	var expected = `<title>Site - Page</title><body>Hello Bob</body>`
	if output != expected {
		t.Errorf("rendered\n\t%q\nexpected\n\t%q", output, expected)
	}
}

func TestLoaderCircularInheritance(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"a.html": `{% extends "b.html" %}`,
		"b.html": `{% extends "a.html" %}`,
	})
	_, err := loader.Load("a.html")
	var circErr *errortypes.CircularError
	if !errors.As(err, &circErr) {
		t.Fatalf("expected a circular inheritance error, got %v", err)
	}
}

func TestLoaderMissingParent(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"page.html": `{% extends "missing.html" %}`,
	})
	_, err := loader.Load("page.html")
	var notFound *errortypes.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected a not found error, got %v", err)
	}
}

func TestLoaderInclude(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"page.txt":    `[{% include "partial.txt" %}] {{ x }}`,
		"partial.txt": `{% set 1 as x %}hi {{ name }}`,
	})
	var output = mustRender(t, loader, "page.txt", data.Map{"name": data.String("Bob")})
	// The included template sees the caller's variables, but names it sets
	// stay in its own scope.
	if output != "[hi Bob] " {
		t.Errorf("rendered %q", output)
	}
}

func TestLoaderIncludeDynamicName(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"page.txt": `{% include which + ".txt" %}`,
		"a.txt":    `aye`,
		"b.txt":    `bee`,
	})
	if output := mustRender(t, loader, "page.txt", data.Map{"which": data.String("b")}); output != "bee" {
		t.Errorf("rendered %q", output)
	}
}

func TestLoaderIncludeMissing(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"page.txt": `{% include "missing.txt" %}`,
	})
	tmpl, err := loader.Load("page.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, err = tmpl.Render(nil)
	var notFound *errortypes.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected a not found error, got %v", err)
	}
}

func TestLoaderGlobals(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"page.txt": `{{ site }} {{ name }}`,
	}).AddGlobals(data.Map{"site": data.String("moody"), "name": data.String("global")})
	if output := mustRender(t, loader, "page.txt", nil); output != "moody global" {
		t.Errorf("rendered %q", output)
	}
	// Template data shadows globals.
	if output := mustRender(t, loader, "page.txt", data.Map{"name": data.String("local")}); output != "moody local" {
		t.Errorf("rendered %q", output)
	}
}

func TestLoaderDuplicateGlobal(t *testing.T) {
	var loader = NewLoader(MemorySource{"page.txt": `x`}).
		AddGlobals(data.Map{"site": data.String("one")}).
		AddGlobals(data.Map{"site": data.String("two")})
	_, err := loader.Load("page.txt")
	if err == nil || !strings.Contains(err.Error(), `global "site" already defined`) {
		t.Errorf("expected a duplicate global error, got %v", err)
	}
}

func TestLoaderAutoescapeByExtension(t *testing.T) {
	var templates = MemorySource{
		"page.html":  `{{ content }}`,
		"page.htm":   `{{ content }}`,
		"page.xml":   `{{ content }}`,
		"page.txt":   `{{ content }}`,
		"page":       `{{ content }}`,
		"mail.html":  `{% autoescape off %}{{ content }}{% endautoescape %}`,
		"safe.html":  `{{ safe(content) }}`,
		"print.html": `{% print content %}`,
	}
	var vars = data.Map{"content": data.String("<b>")}
	var tests = []struct {
		name   string
		output string
	}{
		{"page.html", "&lt;b&gt;"},
		{"page.htm", "&lt;b&gt;"},
		{"page.xml", "&lt;b&gt;"},
		{"page.txt", "<b>"},
		{"page", "<b>"},
		{"mail.html", "<b>"},
		{"safe.html", "<b>"},
		{"print.html", "<b>"},
	}
	for _, test := range tests {
		var loader = NewLoader(templates)
		if output := mustRender(t, loader, test.name, vars); output != test.output {
			t.Errorf("%s: rendered %q, expected %q", test.name, output, test.output)
		}
	}
}

func TestLoaderWithAutoescape(t *testing.T) {
	var templates = MemorySource{
		"page.html": `{{ content }}`,
		"page.txt":  `{{ content }}`,
	}
	var vars = data.Map{"content": data.String("<b>")}
	var tests = []struct {
		name   string
		on     bool
		output string
	}{
		{"page.html", false, "<b>"},
		{"page.txt", true, "&lt;b&gt;"},
	}
	for _, test := range tests {
		var loader = NewLoader(templates).WithAutoescape(test.on)
		if output := mustRender(t, loader, test.name, vars); output != test.output {
			t.Errorf("%s with autoescape %v: rendered %q, expected %q", test.name, test.on, output, test.output)
		}
	}
}

func TestLoaderWithEvaluator(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"page.txt": `{{ name.toUpperCase() + '!' }}`,
	}).WithEvaluator(ottoeval.New())
	if output := mustRender(t, loader, "page.txt", data.Map{"name": data.String("bob")}); output != "BOB!" {
		t.Errorf("rendered %q", output)
	}
}

func TestLoaderSyntaxError(t *testing.T) {
	var loader = NewLoader(MemorySource{
		"broken.html": "ok\n{% if %}",
	})
	_, err := loader.Load("broken.html")
	var syntaxErr *errortypes.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected a syntax error, got %v", err)
	}
	if syntaxErr.Template() != "broken.html" || syntaxErr.Line() != 2 {
		t.Errorf("error at %s:%d, expected broken.html:2", syntaxErr.Template(), syntaxErr.Line())
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderDirectorySource(t *testing.T) {
	var dir = t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "base.html"), `<h1>{% block title %}{% endblock %}</h1>`)
	mustWriteFile(t, filepath.Join(dir, "pages", "index.html"), `{% extends "base.html" %}{% block title %}Home{% endblock %}`)
	var loader = NewLoader(DirectorySource{Dir: dir})
	if output := mustRender(t, loader, "pages/index.html", nil); output != "<h1>Home</h1>" {
		t.Errorf("rendered %q", output)
	}
	if _, err := loader.Load("pages/missing.html"); err == nil {
		t.Error("expected a not found error")
	}
}

func TestDirectorySourceNames(t *testing.T) {
	var dir = t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "page.txt"), `ok`)
	var source = DirectorySource{Dir: dir}
	if _, ok, err := source.Load("page.txt"); !ok || err != nil {
		t.Errorf("Load(page.txt) = %v, %v", ok, err)
	}
	if _, ok, err := source.Load("missing.txt"); ok || err != nil {
		t.Errorf("Load(missing.txt) = %v, %v", ok, err)
	}
	for _, name := range []string{"../page.txt", "/etc/passwd", "a/../../page.txt", ""} {
		if _, _, err := source.Load(name); err == nil {
			t.Errorf("Load(%q): expected an error", name)
		}
	}
}

func TestWatchFilesNoop(t *testing.T) {
	var loader = NewLoader(MemorySource{"page.txt": `x`})
	if loader.WatchFiles(false) != loader {
		t.Error("WatchFiles must return its loader")
	}
	// Watching a loader with no directory sources starts cleanly.
	loader.WatchFiles(true)
	if output := mustRender(t, loader, "page.txt", nil); output != "x" {
		t.Errorf("rendered %q", output)
	}
}
