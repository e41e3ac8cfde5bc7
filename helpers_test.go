package esml_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reoring/esml/schema"
	"github.com/reoring/esml/tree"
)

// seedSchemaValue is the JSON-shaped rendition of the built-in seed.
func seedSchemaValue() *tree.Map {
	return tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs(
			"name", tree.FromPairs("type", "string"),
			"version", tree.FromPairs("type", "integer"),
			"schema", tree.FromPairs("type", "object"),
			"parent", tree.FromPairs("type", "integer"),
			"log", tree.FromPairs("type", "string"),
		),
		"required", []any{"name", "version", "schema"},
		"additionalProperties", false,
	)
}

// seedRecord is the exact bootstrap self-declaration every stream opens with.
func seedRecord() *tree.Map {
	return tree.FromPairs(
		"type", "core.TypeDeclared@1",
		"data", tree.FromPairs(
			"name", "core.TypeDeclared",
			"version", int64(1),
			"schema", seedSchemaValue(),
		),
	)
}

// declRecord builds a core.TypeDeclared event registering name@version.
// extra appends additional payload pairs (e.g. "parent", int64(1)).
func declRecord(name string, version int64, schemaVal any, extra ...any) *tree.Map {
	pairs := []any{
		"name", name,
		"version", version,
		"schema", schemaVal,
	}
	pairs = append(pairs, extra...)
	return tree.FromPairs(
		"type", "core.TypeDeclared@1",
		"data", tree.FromPairs(pairs...),
	)
}

// eventRecord builds an ordinary event record.
func eventRecord(tag string, data any) *tree.Map {
	return tree.FromPairs("type", tag, "data", data)
}

func mustCompile(t *testing.T, v any) schema.Node {
	t.Helper()
	n, err := schema.Compile(v)
	require.NoError(t, err)
	return n
}
