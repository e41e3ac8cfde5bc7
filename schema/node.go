package schema

// Package schema holds the in-memory representation of the JSON Schema
// subset an event log may declare: type/properties/required/
// additionalProperties/items/$defs/$ref and the string/integer/number/
// boolean primitives. Nodes are pure data; matching and reference
// resolution live with the validator that owns the registry.

// Kind identifies a node variant.
type Kind int

const (
	KindObject Kind = iota
	KindArray
	KindPrimitive
	KindRef
	KindAny
)

// Node is the root variant interface.
type Node interface {
	Kind() Kind
}

// PrimType enumerates primitive value types.
type PrimType string

const (
	TypeString  PrimType = "string"
	TypeInteger PrimType = "integer"
	TypeNumber  PrimType = "number"
	TypeBoolean PrimType = "boolean"
)

// AdditionalMode is the policy for object keys outside Properties.
type AdditionalMode int

const (
	AdditionalAllow  AdditionalMode = iota // omitted policy: permissive
	AdditionalForbid                       // additionalProperties: false
	AdditionalSchema                       // additionalProperties: {...}
)

// Additional couples the mode with its schema when Mode is AdditionalSchema.
type Additional struct {
	Mode AdditionalMode
	Node Node
}

// Property is a named object member schema. Declaration order is preserved
// so violations are reported deterministically in pre-order.
type Property struct {
	Name string
	Node Node
}

// Object represents a mapping schema. An Object with no Properties and no
// Required entries accepts any mapping ("any structured value").
type Object struct {
	Properties []Property
	Required   []string
	Additional Additional
	Defs       map[string]Node // local $defs scope for the subtree

	index map[string]int // lazily built Name -> Properties position
}

func (o *Object) Kind() Kind { return KindObject }

// Property returns the schema declared for name, if any.
func (o *Object) Property(name string) (Node, bool) {
	if o.index == nil {
		o.index = make(map[string]int, len(o.Properties))
		for i, p := range o.Properties {
			o.index[p.Name] = i
		}
	}
	i, ok := o.index[name]
	if !ok {
		return nil, false
	}
	return o.Properties[i].Node, true
}

// Requires reports whether name is in the required set.
func (o *Object) Requires(name string) bool {
	for _, r := range o.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Array represents a sequence schema; Items applies to every element.
type Array struct {
	Items Node
}

func (a *Array) Kind() Kind { return KindArray }

// Primitive represents a scalar type check.
type Primitive struct {
	Type PrimType
}

func (p *Primitive) Kind() Kind { return KindPrimitive }

// Ref is an unresolved reference of the form "#/$defs/<target>". Target is
// the raw tag; it resolves against the nearest enclosing $defs scope first
// and otherwise against the registry by its name@version reading.
type Ref struct {
	Target string
}

func (r *Ref) Kind() Kind { return KindRef }

// Any accepts every value. It represents a schema with no "type" keyword.
type Any struct{}

func (Any) Kind() Kind { return KindAny }

// IsDeclarer reports whether n describes a type-declaring type: an object
// schema that declares properties "name" and "schema" and requires both.
// The test is structural; no type name is consulted.
func IsDeclarer(n Node) bool {
	o, ok := n.(*Object)
	if !ok {
		return false
	}
	if _, ok := o.Property("name"); !ok {
		return false
	}
	if _, ok := o.Property("schema"); !ok {
		return false
	}
	return o.Requires("name") && o.Requires("schema")
}

// Equal reports structural equality of two nodes. Property order matters;
// required sets and $defs do not.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Object:
		y := b.(*Object)
		if len(x.Properties) != len(y.Properties) {
			return false
		}
		for i := range x.Properties {
			if x.Properties[i].Name != y.Properties[i].Name {
				return false
			}
			if !Equal(x.Properties[i].Node, y.Properties[i].Node) {
				return false
			}
		}
		if !sameStringSet(x.Required, y.Required) {
			return false
		}
		if x.Additional.Mode != y.Additional.Mode {
			return false
		}
		if x.Additional.Mode == AdditionalSchema && !Equal(x.Additional.Node, y.Additional.Node) {
			return false
		}
		if len(x.Defs) != len(y.Defs) {
			return false
		}
		for k, v := range x.Defs {
			w, ok := y.Defs[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case *Array:
		return Equal(x.Items, b.(*Array).Items)
	case *Primitive:
		return x.Type == b.(*Primitive).Type
	case *Ref:
		return x.Target == b.(*Ref).Target
	case Any:
		return true
	default:
		return false
	}
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
