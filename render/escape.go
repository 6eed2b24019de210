package render

import (
	"io"
	"strings"
)

var (
	htmlQuot = []byte("&#34;") // shorter than "&quot;"
	htmlApos = []byte("&#39;") // shorter than "&apos;" and apos was not in HTML until HTML5
	htmlAmp  = []byte("&amp;")
	htmlLt   = []byte("&lt;")
	htmlGt   = []byte("&gt;")
)

// HTMLEscape writes str to w with the characters significant to HTML
// replaced by entities, without making copies of the unescaped runs.
func HTMLEscape(w io.Writer, str string) error {
	last := 0
	for i := 0; i < len(str); i++ {
		var html []byte
		switch str[i] {
		case '"':
			html = htmlQuot
		case '\'':
			html = htmlApos
		case '&':
			html = htmlAmp
		case '<':
			html = htmlLt
		case '>':
			html = htmlGt
		default:
			continue
		}
		if _, err := io.WriteString(w, str[last:i]); err != nil {
			return err
		}
		if _, err := w.Write(html); err != nil {
			return err
		}
		last = i + 1
	}
	_, err := io.WriteString(w, str[last:])
	return err
}

// HTMLEscapeString returns the escaped form of str.
func HTMLEscapeString(str string) string {
	if !strings.ContainsAny(str, `"'&<>`) {
		return str
	}
	var b strings.Builder
	HTMLEscape(&b, str)
	return b.String()
}
