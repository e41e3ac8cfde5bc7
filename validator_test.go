package esml_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reoring/esml"
	"github.com/reoring/esml/source"
	"github.com/reoring/esml/tree"
)

func TestValidator_SeedOnlyStream(t *testing.T) {
	rep, err := esml.ValidateAll(context.Background(), []any{seedRecord()})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Total)
	require.Equal(t, 1, rep.Accepted)
	require.Zero(t, rep.Rejected)
	require.Len(t, rep.Registry, 1)
	require.Equal(t, esml.BootstrapName, rep.Registry[0].Name)
	require.True(t, rep.Registry[0].Versions[0].Declarer)

	res := rep.Results[0]
	require.True(t, res.Accepted)
	require.True(t, res.Declaration)
	require.Equal(t, "core.TypeDeclared@1", res.Declared.String())
}

func TestValidator_MissingBootstrapAbortsWithoutReport(t *testing.T) {
	cases := []struct {
		name  string
		first any
	}{
		{"ordinary event first", eventRecord("event.Foo@1", tree.NewMap())},
		{"not an object", "hello"},
		{"wrong identity", tree.FromPairs(
			"type", "core.TypeDeclared@1",
			"data", tree.FromPairs(
				"name", "something.Else",
				"version", int64(1),
				"schema", seedSchemaValue(),
			),
		)},
		{"differing schema", tree.FromPairs(
			"type", "core.TypeDeclared@1",
			"data", tree.FromPairs(
				"name", "core.TypeDeclared",
				"version", int64(1),
				"schema", tree.FromPairs("type", "object"),
			),
		)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rep, err := esml.ValidateAll(context.Background(), []any{c.first, seedRecord()})
			require.Nil(t, rep)
			require.Error(t, err)
			iss, ok := esml.AsIssues(err)
			require.True(t, ok)
			require.Equal(t, esml.CodeMissingBootstrap, iss[0].Code)
		})
	}
}

func TestValidator_FeedAfterAbortFails(t *testing.T) {
	v := esml.NewValidator()
	_, err := v.Feed(context.Background(), "garbage", -1)
	require.Error(t, err)
	require.Equal(t, esml.StateAborted, v.State())

	_, err = v.Feed(context.Background(), seedRecord(), -1)
	require.Error(t, err)
	require.Nil(t, v.Finish())
}

func TestValidator_DeclareBeforeUse(t *testing.T) {
	address := declRecord("common.struct.Address", 1, tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs(
			"street", tree.FromPairs("type", "string"),
			"city", tree.FromPairs("type", "string"),
			"zip", tree.FromPairs("type", "string"),
		),
		"required", []any{"street", "city", "zip"},
	))
	use := eventRecord("event.CustomerRegistered@1", tree.FromPairs(
		"home", tree.FromPairs("street", "main", "city", "berlin", "zip", "10115"),
	))

	rep, err := esml.ValidateAll(context.Background(), []any{seedRecord(), address, use})
	require.NoError(t, err)
	require.Equal(t, 2, rep.Accepted)
	require.Equal(t, 1, rep.Rejected)

	res := rep.Results[2]
	require.False(t, res.Accepted)
	require.Equal(t, esml.CodeDeclareBeforeUse, res.ErrorKind)

	// registering the event type ahead of its use flips the outcome, and
	// nothing else changes
	custReg := declRecord("event.CustomerRegistered", 1, tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs("home", tree.FromPairs("$ref", "#/$defs/common.struct.Address@1")),
		"required", []any{"home"},
	))
	rep2, err := esml.ValidateAll(context.Background(), []any{seedRecord(), address, custReg, use})
	require.NoError(t, err)
	require.Zero(t, rep2.Rejected)
	require.Equal(t, 4, rep2.Accepted)
}

func TestValidator_UnknownParentLineage(t *testing.T) {
	node := tree.FromPairs("type", "object")
	stream := []any{
		seedRecord(),
		declRecord("order.Event", 1, node),
		declRecord("order.Event", 2, node, "parent", int64(1)),
		declRecord("order.Event", 3, node, "parent", int64(5)),
	}
	rep, err := esml.ValidateAll(context.Background(), stream)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Accepted)

	res := rep.Results[3]
	require.False(t, res.Accepted)
	require.Equal(t, esml.CodeLineageViolation, res.ErrorKind)
	require.Equal(t, esml.CodeUnknownParent, res.Issues[0].Code)
	require.Equal(t, "/data/parent", res.Issues[0].Path)
}

func TestValidator_SchemaViolationPathAndDetail(t *testing.T) {
	decl := declRecord("event.Measured", 1, tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs("x", tree.FromPairs("type", "string")),
		"required", []any{"x"},
	))
	bad := eventRecord("event.Measured@1", tree.FromPairs("x", int64(42)))

	rep, err := esml.ValidateAll(context.Background(), []any{seedRecord(), decl, bad})
	require.NoError(t, err)

	res := rep.Results[2]
	require.False(t, res.Accepted)
	require.Equal(t, esml.CodeSchemaViolation, res.ErrorKind)
	require.Equal(t, "/data/x", res.Issues[0].Path)
	require.Equal(t, "string", res.Issues[0].Params["expected"])
	require.Equal(t, "integer", res.Issues[0].Params["found"])
}

func TestValidator_IdempotentRedeclaration(t *testing.T) {
	node := tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs("x", tree.FromPairs("type", "string")),
	)
	rep, err := esml.ValidateAll(context.Background(), []any{
		seedRecord(),
		declRecord("audit.Entry", 1, node),
		declRecord("audit.Entry", 1, node),
	})
	require.NoError(t, err)
	require.Equal(t, 3, rep.Accepted)
	require.True(t, rep.Results[2].NoOp)
	require.Len(t, rep.Registry, 2) // seed + audit.Entry, no duplicate entry

	differing := declRecord("audit.Entry", 1, tree.FromPairs("type", "string"))
	rep2, err := esml.ValidateAll(context.Background(), []any{
		seedRecord(),
		declRecord("audit.Entry", 1, node),
		differing,
	})
	require.NoError(t, err)
	res := rep2.Results[2]
	require.False(t, res.Accepted)
	require.Equal(t, esml.CodeLineageViolation, res.ErrorKind)
	require.Equal(t, esml.CodeDuplicateVersion, res.Issues[0].Code)
}

func TestValidator_RejectionLeavesRegistryUnchanged(t *testing.T) {
	v := esml.NewValidator()
	_, err := v.Feed(context.Background(), seedRecord(), -1)
	require.NoError(t, err)

	// declaration with an unresolvable $ref must not register anything
	res, err := v.Feed(context.Background(), declRecord("order.Placed", 1, tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs("addr", tree.FromPairs("$ref", "#/$defs/common.struct.Address@1")),
	)), -1)
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Equal(t, esml.CodeRefUnresolved, res.ErrorKind)
	require.Equal(t, "/data/schema/properties/addr", res.Issues[0].Path)
	require.False(t, v.Registry().Has(esml.TypeID{Name: "order.Placed", Version: 1, HasVersion: true}))

	// later records still process
	res, err = v.Feed(context.Background(), declRecord("order.Placed", 1, tree.FromPairs("type", "object")), -1)
	require.NoError(t, err)
	require.True(t, res.Accepted)
}

func TestValidator_ForwardSelfReferenceIsAccepted(t *testing.T) {
	rep, err := esml.ValidateAll(context.Background(), []any{
		seedRecord(),
		declRecord("graph.Node", 1, tree.FromPairs(
			"type", "object",
			"properties", tree.FromPairs(
				"label", tree.FromPairs("type", "string"),
				"next", tree.FromPairs("$ref", "#/$defs/graph.Node@1"),
			),
			"required", []any{"label"},
		)),
		eventRecord("graph.Node@1", tree.FromPairs(
			"label", "a",
			"next", tree.FromPairs("label", "b"),
		)),
	})
	require.NoError(t, err)
	require.Zero(t, rep.Rejected)
}

func TestValidator_DynamicDeclarerDispatch(t *testing.T) {
	// a non-reserved type whose schema requires name and schema becomes a
	// declarer purely by shape
	metaDecl := declRecord("meta.SchemaDeclared", 1, tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs(
			"name", tree.FromPairs("type", "string"),
			"version", tree.FromPairs("type", "integer"),
			"schema", tree.FromPairs("type", "object"),
		),
		"required", []any{"name", "version", "schema"},
	))
	viaMeta := tree.FromPairs(
		"type", "meta.SchemaDeclared@1",
		"data", tree.FromPairs(
			"name", "shop.Item",
			"version", int64(1),
			"schema", tree.FromPairs(
				"type", "object",
				"properties", tree.FromPairs("sku", tree.FromPairs("type", "string")),
				"required", []any{"sku"},
			),
		),
	)
	use := eventRecord("shop.Item@1", tree.FromPairs("sku", "A-1"))

	rep, err := esml.ValidateAll(context.Background(), []any{seedRecord(), metaDecl, viaMeta, use})
	require.NoError(t, err)
	require.Zero(t, rep.Rejected)

	require.True(t, rep.Results[2].Declaration)
	require.Equal(t, "shop.Item@1", rep.Results[2].Declared.String())
	require.False(t, rep.Results[3].Declaration)
}

func TestValidator_OpaquePassthrough(t *testing.T) {
	build := func(ns string) []any {
		return []any{
			seedRecord(),
			declRecord(ns+".Thing", 1, tree.FromPairs(
				"type", "object",
				"properties", tree.FromPairs("x", tree.FromPairs("type", "string")),
				"required", []any{"x"},
			)),
			eventRecord(ns+".Thing@1", tree.FromPairs("x", "ok")),
			eventRecord(ns+".Thing@1", tree.FromPairs("x", int64(1))),
		}
	}
	repA, err := esml.ValidateAll(context.Background(), build("alpha"))
	require.NoError(t, err)
	repB, err := esml.ValidateAll(context.Background(), build("omega.deep"))
	require.NoError(t, err)

	require.Equal(t, repA.Accepted, repB.Accepted)
	require.Equal(t, repA.Rejected, repB.Rejected)
	for i := range repA.Results {
		require.Equal(t, repA.Results[i].Accepted, repB.Results[i].Accepted)
		require.Equal(t, repA.Results[i].ErrorKind, repB.Results[i].ErrorKind)
	}
}

func TestValidator_RelaxingAdditionalPropertiesKeepsAcceptance(t *testing.T) {
	strict := tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs("x", tree.FromPairs("type", "string")),
		"required", []any{"x"},
		"additionalProperties", false,
	)
	relaxed := tree.FromPairs(
		"type", "object",
		"properties", tree.FromPairs("x", tree.FromPairs("type", "string")),
		"required", []any{"x"},
		"additionalProperties", true,
	)
	value := tree.FromPairs("x", "hello")

	rep, err := esml.ValidateAll(context.Background(), []any{
		seedRecord(),
		declRecord("cfg.Entry", 1, strict),
		eventRecord("cfg.Entry@1", value),
		declRecord("cfg.Entry", 2, relaxed, "parent", int64(1)),
		eventRecord("cfg.Entry@2", value),
	})
	require.NoError(t, err)
	require.Zero(t, rep.Rejected, "monotonic relaxation never breaks prior acceptance")
}

func TestValidator_MalformedEventsDoNotStopThePass(t *testing.T) {
	rep, err := esml.ValidateAll(context.Background(), []any{
		seedRecord(),
		tree.FromPairs("type", "order.Placed@1"), // no data
		tree.FromPairs("data", tree.NewMap()),    // no type
		eventRecord("bad@tag@1", tree.NewMap()),
		declRecord("order.Placed", 1, tree.FromPairs("type", "object")),
	})
	require.NoError(t, err)
	require.Equal(t, 2, rep.Accepted)
	require.Equal(t, 3, rep.Rejected)
	for _, i := range []int{1, 2, 3} {
		require.Equal(t, esml.CodeMalformedEvent, rep.Results[i].ErrorKind)
	}
}

func TestValidator_VersionlessUseResolvesLatest(t *testing.T) {
	rep, err := esml.ValidateAll(context.Background(), []any{
		seedRecord(),
		declRecord("m.E", 1, tree.FromPairs(
			"type", "object",
			"properties", tree.FromPairs("x", tree.FromPairs("type", "string")),
			"required", []any{"x"},
		)),
		declRecord("m.E", 2, tree.FromPairs(
			"type", "object",
			"properties", tree.FromPairs("x", tree.FromPairs("type", "integer")),
			"required", []any{"x"},
		), "parent", int64(1)),
		eventRecord("m.E", tree.FromPairs("x", int64(3))), // latest = v2
		eventRecord("m.E@1", tree.FromPairs("x", "s")),    // old version stays usable
	})
	require.NoError(t, err)
	require.Zero(t, rep.Rejected)
}

func TestValidateSource_JSONStream(t *testing.T) {
	input := `{"type":"core.TypeDeclared@1","data":{"name":"core.TypeDeclared","version":1,"schema":` +
		`{"type":"object","properties":{"name":{"type":"string"},"version":{"type":"integer"},` +
		`"schema":{"type":"object"},"parent":{"type":"integer"},"log":{"type":"string"}},` +
		`"required":["name","version","schema"],"additionalProperties":false}}}` + "\n" +
		`{"type":"core.TypeDeclared@1","data":{"name":"order.Placed","version":1,` +
		`"schema":{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}}}` + "\n" +
		`{"type":"order.Placed@1","data":{"id":"o-1"}}` + "\n"

	rep, err := esml.ValidateSource(context.Background(), source.JSONBytes([]byte(input)))
	require.NoError(t, err)
	require.Equal(t, 3, rep.Total)
	require.Zero(t, rep.Rejected)
	require.Equal(t, int64(0), rep.Results[0].Offset)
	require.Positive(t, rep.Results[1].Offset)
}

func TestValidateSource_MidStreamDecodeError(t *testing.T) {
	input := `{"type":"core.TypeDeclared@1","data":{"name":"core.TypeDeclared","version":1,"schema":` +
		`{"type":"object","properties":{"name":{"type":"string"},"version":{"type":"integer"},` +
		`"schema":{"type":"object"},"parent":{"type":"integer"},"log":{"type":"string"}},` +
		`"required":["name","version","schema"],"additionalProperties":false}}}` + "\n" +
		`{nope`

	rep, err := esml.ValidateSource(context.Background(), source.JSONBytes([]byte(input)))
	require.NoError(t, err)
	require.Equal(t, 2, rep.Total)
	require.Equal(t, 1, rep.Accepted)
	require.Equal(t, esml.CodeParseError, rep.Results[1].ErrorKind)
}

func TestReport_SummaryAndJSONL(t *testing.T) {
	rep, err := esml.ValidateAll(context.Background(), []any{
		seedRecord(),
		declRecord("m.E", 1, tree.FromPairs(
			"type", "object",
			"properties", tree.FromPairs("x", tree.FromPairs("type", "string")),
			"required", []any{"x"},
		)),
		eventRecord("m.E@1", tree.FromPairs("x", int64(1))),
	})
	require.NoError(t, err)

	sum := rep.Summary()
	require.Contains(t, sum, "Total records: 3")
	require.Contains(t, sum, "Accepted: 2")
	require.Contains(t, sum, "Rejected: 1")
	require.Contains(t, sum, "core.TypeDeclared@1")
	require.Contains(t, sum, "[declarer]")
	require.Contains(t, sum, "Failures:")

	var buf bytes.Buffer
	require.NoError(t, rep.WriteJSONL(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4) // 3 records + summary
	require.Contains(t, lines[0], `"declared":"core.TypeDeclared@1"`)
	require.Contains(t, lines[2], `"error":"schema_violation"`)
	require.Contains(t, lines[3], `"summary":true`)
	require.Contains(t, lines[3], rep.PassID)
}
