/*
Package moody compiles and renders moody templates.

Template source mixes plain text with three kinds of marker:

  {{ expression }}    print the value of an expression
  {% tag ... %}       control flow and other tags
  {# a comment #}     removed from the output

Text outside markers is reproduced exactly, whitespace included. The engine
does not interpret expressions itself; they are handed, verbatim, to a
pluggable expression evaluator at render time. The default evaluator runs
them as Starlark expressions over the template data, failing soft: a missing
variable renders as empty output rather than failing the whole template.

Usage example

Compile and render in one step:

  html, err := moody.Render("Hello {{ name }}!", data.Map{"name": data.String("world")})

Or keep the compiled form and render it many times; a compiled Template is
safe for concurrent use:

  tmpl, err := moody.Compile("{% for p in people %}<li>{{ p.name }}</li>{% endfor %}")
  err = tmpl.Execute(w, obj)

Template loaders

In a web application the templates live in files, extend a base layout and
include one another. A Loader compiles them on demand and caches the result:

  loader := moody.NewLoader(moody.DirectorySource{Dir: "app/views"}).
      WatchFiles(mode == "dev").  // drop the cache when template files change (in dev)
      AddGlobals(data.Map{"site": data.String("Acme")})

  tmpl, err := loader.Load("account/overview.html")
  err = tmpl.Execute(resp, obj)

Load accepts several names and uses the first that exists, so callers can
give fallbacks: loader.Load("account/custom.html", "account/default.html").

Templates named with an ".html", ".htm", ".xml" or ".xhtml" extension escape
printed values for HTML. {% autoescape off %} ... {% endautoescape %} and
{% print expression %} opt out of escaping, and values marked safe with
data.MarkSafe are never escaped. Templates compiled with Compile escape by
default regardless of name.

Template inheritance

A template declares its parent with {% extends "base.html" %}, which must be
the first thing in the file. The parent lays out the document and marks the
overridable regions:

  <title>{% block title %}Untitled{% endblock %}</title>

A child template supplies only blocks; inside an overriding block,
{% super %} stands for the content being overridden. Chains of any length
are resolved when the template is loaded, not on every render.

The built-in tags are if/elif/else, for with an optional empty clause and
tuple unpacking, set ... as, include, autoescape, block/super/extends and
print. Custom tags can be registered on a tag.Registry and installed on a
loader with WithRegistry.
*/
package moody
