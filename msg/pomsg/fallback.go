package pomsg

import "golang.org/x/text/language"

// fallbacks lists the tags to try in place of a locale, ordered from most
// to least specific, ending with the bare language. The language package
// reports an unset region as ZZ and an unset script as Zzzz.
func fallbacks(tag language.Tag) []language.Tag {
	var result []language.Tag
	var lang, script, region = tag.Raw()
	if region.String() != "ZZ" {
		t, _ := language.Compose(lang, script, region)
		result = append(result, t)
	}
	if script.String() != "Zzzz" {
		t, _ := language.Compose(lang, script)
		result = append(result, t)
	}
	t, _ := language.Compose(lang)
	return append(result, t)
}
