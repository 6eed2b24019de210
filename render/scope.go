package render

import "github.com/etianen/moody-templates/data"

type scope []data.Map // a stack of variable scopes

// newScope stacks the seed frames and tops them with a fresh empty scope,
// so a set at the top level of a render lands in render-local state rather
// than in a frame the caller still holds.
func newScope(frames ...data.Map) scope {
	var s = make(scope, 0, len(frames)+1)
	for _, frame := range frames {
		if frame == nil {
			frame = make(data.Map)
		}
		s = append(s, frame)
	}
	return append(s, make(data.Map))
}

// push creates a new scope
func (s *scope) push() {
	*s = append(*s, make(data.Map))
}

// pop discards the last scope pushed.
func (s *scope) pop() {
	*s = (*s)[:len(*s)-1]
}

// set adds a new binding to the deepest scope
func (s scope) set(k string, v data.Value) {
	s[len(s)-1][k] = v
}

// lookup checks the variable scopes, deepest out, for the given key
func (s scope) lookup(k string) data.Value {
	for i := range s {
		var elem = s[len(s)-i-1]
		if val, ok := elem[k]; ok {
			return val
		}
	}
	return data.Undefined{}
}

// flatten folds the stack into a single map for the expression evaluator,
// deeper bindings shadowing outer ones.
func (s scope) flatten() map[string]data.Value {
	var m = make(map[string]data.Value)
	for _, frame := range s {
		for k, v := range frame {
			m[k] = v
		}
	}
	return m
}
