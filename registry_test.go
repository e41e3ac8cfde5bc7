package esml_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reoring/esml"
	"github.com/reoring/esml/tree"
)

func intp(v int) *int { return &v }

func addressSchema(t *testing.T) *tree.Map {
	t.Helper()
	return tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs(
			"street", tree.FromPairs("type", "string"),
			"city", tree.FromPairs("type", "string"),
		),
		"required", []any{"street", "city"},
	)
}

func TestRegistry_FirstVersionNeedsNoParent(t *testing.T) {
	reg := esml.NewRegistry()
	res, iss := reg.Register(esml.Declaration{
		Name:    "common.struct.Address",
		Version: 1,
		Schema:  mustCompile(t, addressSchema(t)),
	})
	require.Empty(t, iss)
	require.Equal(t, "common.struct.Address@1", res.ID.String())
	require.Nil(t, res.Parent)
	require.False(t, res.NoOp)
	require.True(t, reg.Has(esml.TypeID{Name: "common.struct.Address", Version: 1, HasVersion: true}))
}

func TestRegistry_SubsequentVersionRequiresRegisteredParent(t *testing.T) {
	reg := esml.NewRegistry()
	_, iss := reg.Register(esml.Declaration{Name: "N", Version: 1, Schema: mustCompile(t, addressSchema(t))})
	require.Empty(t, iss)

	// missing parent on a non-first version
	_, iss = reg.Register(esml.Declaration{Name: "N", Version: 2, Schema: mustCompile(t, addressSchema(t))})
	require.NotEmpty(t, iss)
	require.Equal(t, esml.CodeLineageViolation, iss[0].Code)
	require.Equal(t, "/parent", iss[0].Path)

	// unknown parent
	_, iss = reg.Register(esml.Declaration{Name: "N", Version: 3, Parent: intp(5), Schema: mustCompile(t, addressSchema(t))})
	require.NotEmpty(t, iss)
	require.Equal(t, esml.CodeUnknownParent, iss[0].Code)

	// valid chain
	res, iss := reg.Register(esml.Declaration{Name: "N", Version: 2, Parent: intp(1), Schema: mustCompile(t, addressSchema(t))})
	require.Empty(t, iss)
	require.Equal(t, intp(1), res.Parent)
}

func TestRegistry_FirstVersionWithParentIsRejected(t *testing.T) {
	reg := esml.NewRegistry()
	_, iss := reg.Register(esml.Declaration{Name: "N", Version: 1, Parent: intp(1), Schema: mustCompile(t, addressSchema(t))})
	require.NotEmpty(t, iss)
	require.Equal(t, esml.CodeUnknownParent, iss[0].Code)
}

func TestRegistry_DuplicateVersion(t *testing.T) {
	reg := esml.NewRegistry()
	node := mustCompile(t, addressSchema(t))
	_, iss := reg.Register(esml.Declaration{Name: "N", Version: 1, Schema: node})
	require.Empty(t, iss)

	// identical redeclaration is an accepted no-op
	res, iss := reg.Register(esml.Declaration{Name: "N", Version: 1, Schema: mustCompile(t, addressSchema(t))})
	require.Empty(t, iss)
	require.True(t, res.NoOp)

	// differing schema at the same identity is rejected
	other := mustCompile(t, tree.FromPairs("type", "string"))
	_, iss = reg.Register(esml.Declaration{Name: "N", Version: 1, Schema: other})
	require.NotEmpty(t, iss)
	require.Equal(t, esml.CodeDuplicateVersion, iss[0].Code)
}

func TestRegistry_VersionlessLookupSeesLatest(t *testing.T) {
	reg := esml.NewRegistry()
	v1 := mustCompile(t, tree.FromPairs("type", "string"))
	v2 := mustCompile(t, tree.FromPairs("type", "integer"))
	_, iss := reg.Register(esml.Declaration{Name: "N", Version: 1, Schema: v1})
	require.Empty(t, iss)

	n, ok := reg.ResolveType("N", 0, false)
	require.True(t, ok)
	require.Equal(t, v1, n)

	_, iss = reg.Register(esml.Declaration{Name: "N", Version: 2, Parent: intp(1), Schema: v2})
	require.Empty(t, iss)

	n, ok = reg.ResolveType("N", 0, false)
	require.True(t, ok)
	require.Equal(t, v2, n)

	// exact lookups keep seeing old versions: they are never evicted
	n, ok = reg.ResolveType("N", 1, true)
	require.True(t, ok)
	require.Equal(t, v1, n)

	_, ok = reg.ResolveType("N", 9, true)
	require.False(t, ok)
	_, ok = reg.ResolveType("M", 0, false)
	require.False(t, ok)
}

func TestRegistry_Snapshot(t *testing.T) {
	reg := esml.NewRegistry()
	_, _ = reg.Register(esml.Declaration{Name: "b.B", Version: 1, Schema: mustCompile(t, addressSchema(t))})
	_, _ = reg.Register(esml.Declaration{Name: "a.A", Version: 1, Schema: mustCompile(t, addressSchema(t))})
	_, _ = reg.Register(esml.Declaration{Name: "a.A", Version: 2, Parent: intp(1), Schema: mustCompile(t, addressSchema(t))})

	snap := reg.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "a.A", snap[0].Name)
	require.Equal(t, "b.B", snap[1].Name)
	require.Len(t, snap[0].Versions, 2)
	require.Equal(t, 1, snap[0].Versions[0].Version)
	require.Equal(t, 2, snap[0].Versions[1].Version)
	require.Equal(t, intp(1), snap[0].Versions[1].Parent)
}
