package parse

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Lexer design from text/template

// Tokens ---------------------------------------------------------------------

// item represents a token or text string returned from the scanner.
type item struct {
	typ  itemType // The type of this item.
	pos  int      // The starting position, in bytes, of this item in the input string.
	line int      // The 1-based line the item starts on.
	val  string   // The value of this item.
}

func (i item) String() string {
	switch {
	case i.typ == itemEOF:
		return "EOF"
	case i.typ == itemError:
		return i.val
	case len(i.val) > 20:
		return fmt.Sprintf("%s: %.20q...", i.typ, i.val)
	}
	return fmt.Sprintf("%s: %q", i.typ, i.val)
}

// itemType identifies the type of lexical items.
type itemType int

// All items.
//
// Marker items carry only the text between the delimiters: what an
// expression or a tag argument means is not the scanner's business.
const (
	itemError   itemType = iota // error occurred; value is the text of the error
	itemEOF                     // end of input
	itemText                    // plain text between markers
	itemOutput                  // the expression inside {{ ... }}
	itemTag                     // the contents of {% ... %}: a tag name and its arguments
	itemComment                 // the contents of {# ... #}; dropped by the parser
)

var itemNames = map[itemType]string{
	itemError:   "error",
	itemEOF:     "EOF",
	itemText:    "text",
	itemOutput:  "output",
	itemTag:     "tag",
	itemComment: "comment",
}

func (t itemType) String() string {
	if name, ok := itemNames[t]; ok {
		return name
	}
	return fmt.Sprintf("item(%d)", int(t))
}

// Lexer ----------------------------------------------------------------------

const eof = -1

// The marker delimiter pairs.
const (
	leftOutput   = "{{"
	rightOutput  = "}}"
	leftTag      = "{%"
	rightTag     = "%}"
	leftComment  = "{#"
	rightComment = "#}"
)

// stateFn represents the state of the lexer as a function that returns the
// next state.
type stateFn func(*lexer) stateFn

// lexer holds the state of the lexical scanning.
//
// Based on the lexer from the "text/template" package.
// See http://www.youtube.com/watch?v=HxaD_trXwRE
//
// The scan is total: malformed input is reported as an itemError and ends
// the item stream, it never fails to terminate. A closing delimiter with no
// marker open is plain text.
type lexer struct {
	name      string    // the name of the input; used only during errors.
	input     string    // the string being scanned.
	state     stateFn   // the next lexing function to enter.
	pos       int       // current position in the input.
	start     int       // start position of this item.
	width     int       // width of last rune read from input.
	line      int       // 1-based line of pos.
	startLine int       // line of start.
	items     chan item // channel of scanned items.
}

// nextItem returns the next item from the input.
func (l *lexer) nextItem() item {
	return <-l.items
}

// drain runs the remaining input out of the lexer, releasing its goroutine.
// Called when parsing aborts before reaching EOF.
func (l *lexer) drain() {
	for range l.items {
	}
}

// lex creates a new scanner for the input string.
func lex(name, input string) *lexer {
	l := &lexer{
		name:      name,
		input:     input,
		items:     make(chan item),
		state:     lexText,
		line:      1,
		startLine: 1,
	}
	go l.run()
	return l
}

// run runs the state machine for the lexer.
func (l *lexer) run() {
	for l.state != nil {
		l.state = l.state(l)
	}
	close(l.items)
}

// next returns the next rune in the input.
func (l *lexer) next() (r rune) {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, l.width = utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += l.width
	if r == '\n' {
		l.line++
	}
	return r
}

// peek returns but does not consume the next rune in the input.
func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

// backup steps back one rune. Can only be called once per call of next.
func (l *lexer) backup() {
	l.pos -= l.width
	if l.width > 0 && l.pos < len(l.input) && l.input[l.pos] == '\n' {
		l.line--
	}
}

// emit passes an item back to the client.
func (l *lexer) emit(t itemType) {
	l.items <- item{t, l.start, l.startLine, l.input[l.start:l.pos]}
	l.start = l.pos
	l.startLine = l.line
}

// emitText emits any text accumulated since the last item, verbatim. Unlike
// many template languages there is no whitespace trimming: what surrounds a
// marker is output exactly as written.
func (l *lexer) emitText() {
	if l.pos > l.start {
		l.emit(itemText)
	}
}

// lineNumber reports which line pos is on. Only used for error reporting, so
// the count is computed on demand.
func (l *lexer) lineNumber(pos int) int {
	return 1 + strings.Count(l.input[:pos], "\n")
}

// columnNumber reports which column of its line pos is on.
func (l *lexer) columnNumber(pos int) int {
	if n := strings.LastIndex(l.input[:pos], "\n"); n != -1 {
		return pos - n
	}
	return pos + 1
}

// errorf returns an error item at the given position and terminates the scan
// by passing back a nil pointer that will be the next state, terminating
// l.nextItem.
func (l *lexer) errorf(pos, line int, format string, args ...interface{}) stateFn {
	l.items <- item{itemError, pos, line, fmt.Sprintf(format, args...)}
	return nil
}

// State functions ------------------------------------------------------------

// lexText scans plain text until a marker opens or the input ends.
func lexText(l *lexer) stateFn {
	for {
		switch r := l.next(); r {
		case '{':
			var marker stateFn
			switch l.peekByte() {
			case '{':
				marker = markerState(itemOutput, leftOutput, rightOutput)
			case '%':
				marker = markerState(itemTag, leftTag, rightTag)
			case '#':
				marker = markerState(itemComment, leftComment, rightComment)
			}
			if marker != nil {
				l.backup()
				l.emitText()
				return marker
			}
			// a lone brace is plain text
		case eof:
			l.emitText()
			l.emit(itemEOF)
			return nil
		}
	}
}

// peekByte returns the byte at the scan position without consuming it, or 0
// at end of input. The marker delimiters are ASCII, so byte checks suffice.
func (l *lexer) peekByte() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

// markerState returns the state function that scans one whole marker. The
// opening delimiter has not yet been consumed. The first occurrence of the
// closing delimiter ends the marker; delimiters do not nest.
func markerState(typ itemType, open, close string) stateFn {
	return func(l *lexer) stateFn {
		var markerPos, markerLine = l.pos, l.line
		l.pos += len(open)
		var i = strings.Index(l.input[l.pos:], close)
		if i < 0 {
			return l.errorf(markerPos, markerLine, "unclosed %s marker", typ)
		}
		var inner = l.input[l.pos : l.pos+i]
		l.items <- item{typ, markerPos, markerLine, inner}
		l.line += strings.Count(inner, "\n")
		l.pos += i + len(close)
		l.start = l.pos
		l.startLine = l.line
		return lexText
	}
}
