// Package pomsg loads message bundles for the trans tag from gettext .po
// files, one file per locale. Messages are looked up by their source text,
// the way gettext intends; entries left untranslated in the file render
// their source text. Plural forms are not read, since the trans tag carries
// no plural variable.
package pomsg

import (
	"io"
	"os"
	"path"
	"strings"

	"github.com/robfig/gettext/po"
	"golang.org/x/text/language"

	"github.com/etianen/moody-templates/msg"
)

// FileOpener opens the po file for a locale. Open returns a nil ReadCloser,
// without an error, when no file exists for the locale.
type FileOpener interface {
	Open(locale string) (io.ReadCloser, error)
}

type provider struct {
	bundles map[string]msg.Bundle
}

// Load reads a po file for each of the given locales through opener. A
// locale whose own file is missing is read from progressively more general
// forms of the locale name; a locale with no file under any form is skipped,
// so its templates render source text.
func Load(opener FileOpener, locales []string) (msg.Provider, error) {
	var prov = provider{bundles: make(map[string]msg.Bundle)}
	for _, locale := range locales {
		r, err := opener.Open(locale)
		if err != nil {
			return nil, err
		}
		if r == nil {
			tag, err := language.Parse(locale)
			if err != nil {
				return nil, err
			}
			for _, fallback := range fallbacks(tag) {
				r, err = opener.Open(fallback.String())
				if err != nil {
					return nil, err
				}
				if r != nil {
					break
				}
			}
			if r == nil {
				continue
			}
		}
		file, err := po.Parse(r)
		r.Close()
		if err != nil {
			return nil, err
		}
		prov.bundles[locale] = newBundle(locale, file)
	}
	return prov, nil
}

// Dir returns a provider reading <locale>.po files from dirname, e.g.
// messages/de.po and messages/de_CH.po.
func Dir(dirname string) (msg.Provider, error) {
	entries, err := os.ReadDir(dirname)
	if err != nil {
		return nil, err
	}
	var locales []string
	for _, entry := range entries {
		var name = entry.Name()
		if !entry.IsDir() && strings.HasSuffix(name, ".po") {
			locales = append(locales, strings.TrimSuffix(name, ".po"))
		}
	}
	return Load(dirFileOpener{dirname}, locales)
}

type dirFileOpener struct {
	dirname string
}

func (o dirFileOpener) Open(locale string) (io.ReadCloser, error) {
	f, err := os.Open(path.Join(o.dirname, locale+".po"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Bundle implements msg.Provider, falling back to more general forms of the
// locale when it has no bundle of its own.
func (p provider) Bundle(locale string) msg.Bundle {
	if bundle, ok := p.bundles[locale]; ok {
		return bundle
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil
	}
	for _, fallback := range fallbacks(tag) {
		if bundle, ok := p.bundles[fallback.String()]; ok {
			return bundle
		}
	}
	return nil
}

type bundle struct {
	locale   string
	messages map[string]string
}

// newBundle indexes the translated messages of a po file by source text.
// The header entry and untranslated entries are left out, so looking them
// up reports no translation.
func newBundle(locale string, file po.File) *bundle {
	var messages = make(map[string]string, len(file.Messages))
	for _, message := range file.Messages {
		if message.Id == "" || len(message.Str) == 0 || message.Str[0] == "" {
			continue
		}
		messages[message.Id] = message.Str[0]
	}
	return &bundle{locale: locale, messages: messages}
}

func (b *bundle) Locale() string { return b.locale }

// Message implements msg.Bundle.
func (b *bundle) Message(id string) (string, bool) {
	var translation, ok = b.messages[id]
	return translation, ok
}
