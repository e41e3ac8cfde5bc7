package tree

// Package tree defines the generic decoded value model shared by sources,
// the schema matcher and the validator. A decoded value is one of:
//
//	nil | bool | string | int64 | float64 | []any | *tree.Map
//
// Map preserves key insertion order so that schemas declared in an event
// log keep their property declaration order end to end.

// Map is a string-keyed mapping that remembers insertion order.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// FromPairs builds a Map from alternating key/value arguments. It panics on
// an odd argument count or a non-string key; it is intended for literals in
// tests and tooling, not for decoding paths.
func FromPairs(pairs ...any) *Map {
	if len(pairs)%2 != 0 {
		panic("tree.FromPairs: odd number of arguments")
	}
	m := NewMap()
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			panic("tree.FromPairs: key must be a string")
		}
		m.Set(k, pairs[i+1])
	}
	return m
}

// Set stores v under k. A repeated key keeps its original position and the
// latest value wins, mirroring how JSON decoders treat duplicate keys.
func (m *Map) Set(k string, v any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, seen := m.values[k]; !seen {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// Get returns the value stored under k.
func (m *Map) Get(k string) (any, bool) {
	if m == nil || m.values == nil {
		return nil, false
	}
	v, ok := m.values[k]
	return v, ok
}

// Has reports whether k is present.
func (m *Map) Has(k string) bool {
	_, ok := m.Get(k)
	return ok
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// GetString returns the value under k when it is a string.
func (m *Map) GetString(k string) (string, bool) {
	v, ok := m.Get(k)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetMap returns the value under k when it is a *Map.
func (m *Map) GetMap(k string) (*Map, bool) {
	v, ok := m.Get(k)
	if !ok {
		return nil, false
	}
	mm, ok := v.(*Map)
	return mm, ok
}

// IsInteger reports whether v is an integral number: an int64, or a float64
// with no fractional part.
func IsInteger(v any) bool {
	switch n := v.(type) {
	case int64:
		return true
	case float64:
		return n == float64(int64(n))
	default:
		return false
	}
}

// IsNumber reports whether v is a decoded number.
func IsNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	default:
		return false
	}
}

// AsInt extracts an int from an integral decoded number.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// KindOf names the decoded kind of v for error messages: "string",
// "integer", "number", "boolean", "null", "object" or "array".
func KindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case int64:
		return "integer"
	case float64:
		if IsInteger(v) {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case *Map:
		return "object"
	default:
		return "unknown"
	}
}
