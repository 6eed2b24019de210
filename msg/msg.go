// Package msg supplies translated text to templates through the trans tag.
//
// {% trans %}Hello{% endtrans %} renders the translation of "Hello" for the
// locale the tag was built with, or the source text unchanged when no
// translation exists. The tag body is the message id, so it must be plain
// text; leading and trailing whitespace is not part of the id.
//
// Register one trans tag per locale:
//
//	provider, err := pomsg.Dir("messages")
//	registry := tag.NewRegistry()
//	registry.Register(msg.Tag(provider, "de"))
package msg

import (
	"errors"
	"strings"

	"github.com/etianen/moody-templates/ast"
	"github.com/etianen/moody-templates/render"
	"github.com/etianen/moody-templates/tag"
)

// Provider resolves message bundles by locale.
type Provider interface {
	// Bundle returns the messages for a locale, given as language or
	// language_TERRITORY. A nil bundle means no translations exist for the
	// locale and source text should be rendered.
	Bundle(locale string) Bundle
}

// Bundle is the set of messages for one locale.
type Bundle interface {
	// Locale returns the locale the bundle serves.
	Locale() string

	// Message returns the translation of the message with the given id,
	// reporting ok == false when the id has no translation.
	Message(id string) (translation string, ok bool)
}

// messageNode carries a trans tag's message id through the parse tree.
type messageNode struct {
	ast.Pos
	ID string
}

func (n *messageNode) String() string {
	return "{% trans %}" + n.ID + "{% endtrans %}"
}

// Tag returns the trans tag definition for one locale. Translations are
// resolved when the template is compiled, so a change of locale means a
// separate registry and loader.
func Tag(provider Provider, locale string) tag.Definition {
	var bundle Bundle
	if provider != nil {
		bundle = provider.Bundle(locale)
	}
	return tag.Definition{
		Name: "trans",
		Parse: func(c tag.Cursor, args string, pos ast.Pos) (ast.Node, error) {
			if args != "" {
				return nil, errors.New("trans tag takes no arguments")
			}
			body, _, _, err := c.ParseUntil("endtrans")
			if err != nil {
				return nil, err
			}
			id, err := messageID(body)
			if err != nil {
				return nil, err
			}
			return &messageNode{Pos: pos, ID: id}, nil
		},
		Compile: func(c tag.Compiler, node *ast.CustomNode) (render.Step, error) {
			var text = node.Node.(*messageNode).ID
			if bundle != nil {
				if translation, ok := bundle.Message(text); ok {
					text = translation
				}
			}
			return func(ctx *render.Context) error {
				return ctx.WriteString(text)
			}, nil
		},
	}
}

// messageID extracts the message id from a trans tag body.
func messageID(body *ast.ListNode) (string, error) {
	if len(body.Nodes) != 1 {
		return "", errors.New("trans tag body must be a single run of plain text")
	}
	text, ok := body.Nodes[0].(*ast.TextNode)
	if !ok {
		return "", errors.New("trans tag body must be plain text")
	}
	var id = strings.TrimSpace(string(text.Text))
	if id == "" {
		return "", errors.New("trans tag body is empty")
	}
	return id, nil
}
