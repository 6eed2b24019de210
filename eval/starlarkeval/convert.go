package starlarkeval

import (
	"fmt"
	"sort"
	"strconv"

	"go.starlark.net/starlark"

	"github.com/etianen/moody-templates/data"
)

// undefined stands for a variable with no binding. It is falsy, and it
// absorbs attribute access, calls and indexing, so that a chain like
// user.name.title() evaluates to undefined instead of failing when user is
// missing.
type undefined struct{}

var _ starlark.Value = undefined{}
var _ starlark.HasAttrs = undefined{}
var _ starlark.Callable = undefined{}
var _ starlark.Mapping = undefined{}

func (undefined) String() string       { return "undefined" }
func (undefined) Type() string         { return "undefined" }
func (undefined) Freeze()              {}
func (undefined) Truth() starlark.Bool { return starlark.False }
func (undefined) Hash() (uint32, error) {
	return 0, nil
}
func (undefined) Attr(name string) (starlark.Value, error) { return undefined{}, nil }
func (undefined) AttrNames() []string                      { return nil }
func (undefined) Name() string                             { return "undefined" }
func (undefined) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return undefined{}, nil
}
func (undefined) Get(v starlark.Value) (starlark.Value, bool, error) {
	return undefined{}, true, nil
}

// mapValue adapts a data.Map for Starlark. Template authors address fields
// with dot access, user.name, as well as indexing, user["name"]. A missing
// field reached by dot access is undefined; a missing key reached by
// indexing is an error, as it would be for a Starlark dict. The dict-style
// methods items, keys, values and get are provided, and iteration visits
// keys in sorted order.
type mapValue struct {
	m data.Map
}

var _ starlark.Value = mapValue{}
var _ starlark.Mapping = mapValue{}
var _ starlark.HasAttrs = mapValue{}
var _ starlark.Sequence = mapValue{}
var _ starlark.IterableMapping = mapValue{}

func (v mapValue) String() string       { return v.m.String() }
func (v mapValue) Type() string         { return "map" }
func (v mapValue) Freeze()              {}
func (v mapValue) Truth() starlark.Bool { return starlark.Bool(v.m.Truthy()) }
func (v mapValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: map")
}
func (v mapValue) Len() int { return len(v.m) }

func (v mapValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	key, ok := starlark.AsString(k)
	if !ok {
		return nil, false, nil
	}
	val, found := v.m[key]
	if !found {
		return nil, false, nil
	}
	return toStarlark(val), true, nil
}

// Attr resolves dot access: map entries first, then the dict-style methods
// items, keys, values and get. An entry shadows a method of the same name.
func (v mapValue) Attr(name string) (starlark.Value, error) {
	if val, ok := v.m[name]; ok {
		return toStarlark(val), nil
	}
	switch name {
	case "items", "keys", "values", "get":
		return starlark.NewBuiltin(name, v.method).BindReceiver(v), nil
	}
	return undefined{}, nil
}

func (v mapValue) AttrNames() []string {
	return append(v.keys(), "get", "items", "keys", "values")
}

func (v mapValue) method(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var recv = b.Receiver().(mapValue)
	switch b.Name() {
	case "items":
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		return starlark.NewList(tupleValues(recv.Items())), nil
	case "keys":
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		var keys = recv.keys()
		var elems = make([]starlark.Value, len(keys))
		for i, key := range keys {
			elems[i] = starlark.String(key)
		}
		return starlark.NewList(elems), nil
	case "values":
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		var keys = recv.keys()
		var elems = make([]starlark.Value, len(keys))
		for i, key := range keys {
			elems[i] = toStarlark(recv.m[key])
		}
		return starlark.NewList(elems), nil
	}
	var key string
	var fallback starlark.Value = starlark.None
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &key, &fallback); err != nil {
		return nil, err
	}
	if val, ok := recv.m[key]; ok {
		return toStarlark(val), nil
	}
	return fallback, nil
}

func tupleValues(items []starlark.Tuple) []starlark.Value {
	var elems = make([]starlark.Value, len(items))
	for i, item := range items {
		elems[i] = item
	}
	return elems
}

func (v mapValue) Iterate() starlark.Iterator {
	return &keyIterator{keys: v.keys()}
}

func (v mapValue) Items() []starlark.Tuple {
	var items = make([]starlark.Tuple, 0, len(v.m))
	for _, key := range v.keys() {
		items = append(items, starlark.Tuple{starlark.String(key), toStarlark(v.m[key])})
	}
	return items
}

func (v mapValue) keys() []string {
	var keys = make([]string, 0, len(v.m))
	for key := range v.m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type keyIterator struct {
	keys []string
	i    int
}

func (it *keyIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.keys) {
		return false
	}
	*p = starlark.String(it.keys[it.i])
	it.i++
	return true
}

func (it *keyIterator) Done() {}

// safeString is a string the template engine will not escape. The safe()
// and escape() helpers produce one; it converts back to data.Safe on the
// way out.
type safeString string

var _ starlark.Value = safeString("")

func (s safeString) String() string        { return strconv.Quote(string(s)) }
func (s safeString) Type() string          { return "safe" }
func (s safeString) Freeze()               {}
func (s safeString) Truth() starlark.Bool  { return starlark.Bool(len(s) > 0) }
func (s safeString) Hash() (uint32, error) { return starlark.String(s).Hash() }

// toStarlark converts a template data value into its Starlark form.
func toStarlark(v data.Value) starlark.Value {
	switch v := v.(type) {
	case nil, data.Undefined:
		return undefined{}
	case data.Null:
		return starlark.None
	case data.Bool:
		return starlark.Bool(v)
	case data.Int:
		return starlark.MakeInt64(int64(v))
	case data.Float:
		return starlark.Float(v)
	case data.String:
		return starlark.String(v)
	case data.Safe:
		return safeString(v)
	case data.List:
		var elems = make([]starlark.Value, len(v))
		for i, elem := range v {
			elems[i] = toStarlark(elem)
		}
		return starlark.NewList(elems)
	case data.Map:
		return mapValue{v}
	}
	return starlark.String(v.String())
}

// fromStarlark converts an evaluation result back into a template data
// value.
func fromStarlark(v starlark.Value) data.Value {
	switch v := v.(type) {
	case undefined:
		return data.Undefined{}
	case mapValue:
		return v.m
	case starlark.NoneType:
		return data.Null{}
	case starlark.Bool:
		return data.Bool(v)
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return data.Int(i)
		}
		f, _ := starlark.AsFloat(v)
		return data.Float(f)
	case starlark.Float:
		return data.Float(v)
	case starlark.String:
		return data.String(v)
	case safeString:
		return data.Safe(v)
	case starlark.Tuple:
		var list = make(data.List, len(v))
		for i, elem := range v {
			list[i] = fromStarlark(elem)
		}
		return list
	case *starlark.List:
		var list = make(data.List, v.Len())
		for i := 0; i < v.Len(); i++ {
			list[i] = fromStarlark(v.Index(i))
		}
		return list
	case *starlark.Dict:
		var m = make(data.Map, v.Len())
		for _, item := range v.Items() {
			m[asString(item[0])] = fromStarlark(item[1])
		}
		return m
	case starlark.Iterable:
		var list data.List
		var iter = v.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			list = append(list, fromStarlark(elem))
		}
		return list
	}
	return data.String(v.String())
}

// asString returns the text a template would print for a Starlark value.
func asString(v starlark.Value) string {
	if s, ok := v.(safeString); ok {
		return string(s)
	}
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return fromStarlark(v).String()
}
