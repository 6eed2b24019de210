// Package errortypes defines the error kinds reported while compiling and
// rendering templates.
package errortypes

import (
	"errors"
	"fmt"
	"strings"
)

// TemplateError extends the error interface to add details on the template
// position where the error occurred. A zero Line or Col means the position is
// unknown at that granularity.
type TemplateError interface {
	error
	Template() string
	Line() int
	Col() int
}

// IsTemplateError identifies whether any error in err's chain carries a
// template position.
func IsTemplateError(err error) bool {
	return ToTemplateError(err) != nil
}

// ToTemplateError converts the input error to a TemplateError if possible, or
// nil if not. Wrapped errors are unwrapped via errors.As.
func ToTemplateError(err error) TemplateError {
	var te TemplateError
	if errors.As(err, &te) {
		return te
	}
	return nil
}

// position is the common part of positioned errors.
type position struct {
	template string
	line     int
	col      int
}

func (p *position) Template() string { return p.template }
func (p *position) Line() int        { return p.line }
func (p *position) Col() int         { return p.col }

// at returns the "name:line:col" prefix, dropping unknown parts.
func (p *position) at() string {
	switch {
	case p.line == 0:
		return p.template
	case p.col == 0:
		return fmt.Sprintf("%s:%d", p.template, p.line)
	}
	return fmt.Sprintf("%s:%d:%d", p.template, p.line, p.col)
}

var _ TemplateError = &SyntaxError{}

// SyntaxError is returned when template source is malformed: an unterminated
// marker, an unknown or mismatched tag, a misplaced extends.
type SyntaxError struct {
	position
	msg string
}

// NewSyntaxErrorf creates a SyntaxError at the given template position.
func NewSyntaxErrorf(template string, line, col int, format string, args ...interface{}) error {
	return &SyntaxError{
		position: position{template, line, col},
		msg:      fmt.Sprintf(format, args...),
	}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s", e.at(), e.msg)
}

var _ TemplateError = &NotFoundError{}

// NotFoundError is returned when a template name can not be resolved, either
// by a loader or by an extends reference.
type NotFoundError struct {
	names []string
}

// NewNotFoundError creates a NotFoundError listing every name that was tried.
func NewNotFoundError(names ...string) error {
	return &NotFoundError{names: names}
}

func (e *NotFoundError) Error() string {
	if len(e.names) == 1 {
		return fmt.Sprintf("template not found: %q", e.names[0])
	}
	quoted := make([]string, len(e.names))
	for i, name := range e.names {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	return "template not found: tried " + strings.Join(quoted, ", ")
}

// Names returns the template names that failed to resolve, in the order tried.
func (e *NotFoundError) Names() []string { return e.names }

func (e *NotFoundError) Template() string {
	if len(e.names) == 0 {
		return ""
	}
	return e.names[0]
}

func (e *NotFoundError) Line() int { return 0 }
func (e *NotFoundError) Col() int  { return 0 }

var _ TemplateError = &CircularError{}

// CircularError is returned when a chain of extends references revisits a
// template that is already part of the chain.
type CircularError struct {
	chain []string
}

// NewCircularError creates a CircularError from the extends chain, leaf first.
// The final element is the template that closed the cycle.
func NewCircularError(chain ...string) error {
	return &CircularError{chain: chain}
}

func (e *CircularError) Error() string {
	return "circular template inheritance: " + strings.Join(e.chain, " -> ")
}

// Chain returns the extends chain that formed the cycle, leaf first.
func (e *CircularError) Chain() []string { return e.chain }

func (e *CircularError) Template() string {
	if len(e.chain) == 0 {
		return ""
	}
	return e.chain[0]
}

func (e *CircularError) Line() int { return 0 }
func (e *CircularError) Col() int  { return 0 }

var _ TemplateError = &IterationError{}

// IterationError is returned when a for tag's expression does not produce a
// value that can be iterated.
type IterationError struct {
	position
	msg string
}

// NewIterationErrorf creates an IterationError at the given template line.
func NewIterationErrorf(template string, line int, format string, args ...interface{}) error {
	return &IterationError{
		position: position{template: template, line: line},
		msg:      fmt.Sprintf(format, args...),
	}
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("%s: %s", e.at(), e.msg)
}

var _ TemplateError = &RenderError{}

// RenderError wraps an error raised while executing a compiled template,
// qualifying it with the template position. The underlying error, typically
// from the expression evaluator, is available via errors.Unwrap.
type RenderError struct {
	position
	err error
}

// NewRenderError qualifies err with the given template line.
func NewRenderError(template string, line int, err error) error {
	return &RenderError{
		position: position{template: template, line: line},
		err:      err,
	}
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %v", e.at(), e.err)
}

func (e *RenderError) Unwrap() error { return e.err }
