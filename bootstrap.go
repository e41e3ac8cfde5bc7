package esml

import "github.com/reoring/esml/schema"

// BootstrapName and BootstrapVersion identify the one type every conforming
// validator knows before reading a single record: the root type-declaring
// type. Its schema is a compiled-in constant, never parsed from input; the
// first record of a well-formed stream must declare exactly this identity
// with exactly this schema, which is the fixed point that breaks the
// self-description cycle.
const (
	BootstrapName    = "core.TypeDeclared"
	BootstrapVersion = 1
)

// BootstrapID returns the seed identity.
func BootstrapID() TypeID {
	return TypeID{Name: BootstrapName, Version: BootstrapVersion, HasVersion: true}
}

// BootstrapSeed returns a fresh copy of the seed schema: the payload shape
// of a type declaration. "log" is the free-text annotation; "parent" links
// a subsequent version to the version it derives from.
func BootstrapSeed() schema.Node {
	return &schema.Object{
		Properties: []schema.Property{
			{Name: "name", Node: &schema.Primitive{Type: schema.TypeString}},
			{Name: "version", Node: &schema.Primitive{Type: schema.TypeInteger}},
			{Name: "schema", Node: &schema.Object{}},
			{Name: "parent", Node: &schema.Primitive{Type: schema.TypeInteger}},
			{Name: "log", Node: &schema.Primitive{Type: schema.TypeString}},
		},
		Required:   []string{"name", "version", "schema"},
		Additional: schema.Additional{Mode: schema.AdditionalForbid},
	}
}
