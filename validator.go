package esml

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reoring/esml/i18n"
	"github.com/reoring/esml/schema"
	"github.com/reoring/esml/source"
	"github.com/reoring/esml/tree"
)

// State is the orchestrator state.
type State int

const (
	StateAwaitingBootstrap State = iota
	StateStreaming
	StateCompleted
	StateAborted
)

// ValidateOpt bundles validation options.
type ValidateOpt struct {
	// Logger receives per-record debug events and a pass-level summary.
	// Nil disables logging.
	Logger *zerolog.Logger
	// FailFast stops ValidateAll/ValidateSource after the first rejected
	// record. Feed is unaffected.
	FailFast bool
}

// Validator replays a record sequence against one Registry instance. The
// pass is strictly sequential: each accepted declaration changes what every
// later record is validated against, so records are fed one at a time in
// stream order and each record either commits its registry mutation or
// leaves the registry untouched.
type Validator struct {
	state  State
	reg    *Registry
	log    zerolog.Logger
	passID string

	results      []Result
	accepted     int
	rejected     int
	declarations int
	events       int
	typeCounts   map[string]int
}

// NewValidator returns a validator in AwaitingBootstrap with an empty
// registry. The last option wins, mirroring the variadic-options style of
// the rest of the API.
func NewValidator(opts ...ValidateOpt) *Validator {
	var opt ValidateOpt
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	log := zerolog.Nop()
	if opt.Logger != nil {
		log = *opt.Logger
	}
	id := uuid.NewString()
	return &Validator{
		reg:        NewRegistry(),
		log:        log.With().Str("pass_id", id).Logger(),
		passID:     id,
		typeCounts: make(map[string]int),
	}
}

// State returns the current orchestrator state.
func (v *Validator) State() State { return v.state }

// Registry exposes the pass's registry, primarily for lineage queries.
func (v *Validator) Registry() *Registry { return v.reg }

// PassID returns the identifier stamped on the report and log events.
func (v *Validator) PassID() string { return v.passID }

// Feed validates the next record. The returned error is non-nil only on
// the fatal paths: a first record that is not the exact bootstrap
// self-declaration, or feeding after the pass aborted. Every other failure
// is recorded in the returned Result and processing may continue.
func (v *Validator) Feed(ctx context.Context, value any, offset int64) (Result, error) {
	switch v.state {
	case StateAborted:
		return Result{}, Issues{{Code: CodeMissingBootstrap, Message: "pass aborted"}}
	case StateCompleted:
		return Result{}, Issues{{Code: CodeParseError, Message: "pass already finished"}}
	case StateAwaitingBootstrap:
		res, err := v.feedBootstrap(value, offset)
		if err != nil {
			v.state = StateAborted
			v.log.Error().Err(err).Msg("bootstrap record rejected, pass aborted")
			return Result{}, err
		}
		v.state = StateStreaming
		v.record(res)
		return res, nil
	default:
		res := v.feedStreaming(value, offset)
		v.record(res)
		return res, nil
	}
}

// Finish closes the pass and builds the report. It returns nil when the
// pass aborted before streaming.
func (v *Validator) Finish() *Report {
	if v.state == StateAborted {
		return nil
	}
	v.state = StateCompleted
	rep := &Report{
		PassID:       v.passID,
		Results:      v.results,
		Total:        len(v.results),
		Accepted:     v.accepted,
		Rejected:     v.rejected,
		Declarations: v.declarations,
		Events:       v.events,
		Registry:     v.reg.Snapshot(),
		TypeCounts:   v.typeCounts,
	}
	v.log.Info().
		Int("total", rep.Total).
		Int("accepted", rep.Accepted).
		Int("rejected", rep.Rejected).
		Msg("validation pass completed")
	return rep
}

// ValidateAll feeds every value in order and finishes the pass.
func ValidateAll(ctx context.Context, values []any, opts ...ValidateOpt) (*Report, error) {
	var opt ValidateOpt
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	v := NewValidator(opt)
	for _, val := range values {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := v.Feed(ctx, val, -1)
		if err != nil {
			return nil, err
		}
		if opt.FailFast && !res.Accepted {
			break
		}
	}
	return v.Finish(), nil
}

// ValidateSource feeds every record a RecordSource yields. A decode error
// mid-stream is recorded as a parse_error rejection for that position and
// ends the pass there, since the remaining bytes cannot be resynchronized.
func ValidateSource(ctx context.Context, src source.RecordSource, opts ...ValidateOpt) (*Report, error) {
	var opt ValidateOpt
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	v := NewValidator(opt)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		val, off, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if v.state == StateAwaitingBootstrap {
				return nil, Issues{{Code: CodeMissingBootstrap, Message: i18n.T(CodeMissingBootstrap, nil), Hint: err.Error(), Cause: err, Offset: off}}
			}
			v.record(rejected(len(v.results), TypeID{}, off, Issues{{
				Code:    CodeParseError,
				Message: i18n.T(CodeParseError, nil),
				Hint:    err.Error(),
				Cause:   err,
				Offset:  off,
			}}))
			break
		}
		res, err := v.Feed(ctx, val, off)
		if err != nil {
			return nil, err
		}
		if opt.FailFast && !res.Accepted {
			break
		}
	}
	return v.Finish(), nil
}

func (v *Validator) record(res Result) {
	v.results = append(v.results, res)
	if res.Accepted {
		v.accepted++
		if res.Declaration {
			v.declarations++
		} else {
			v.events++
		}
	} else {
		v.rejected++
	}
	if res.Type.Name != "" {
		v.typeCounts[res.Type.String()]++
	}
	ev := v.log.Debug().Int("index", res.Index).Str("type", res.Type.String()).Bool("accepted", res.Accepted)
	if !res.Accepted {
		ev = ev.Str("error", res.ErrorKind).Err(res.Issues)
	}
	ev.Msg("record validated")
}

// feedBootstrap enforces the one circular step: the record must declare the
// seed identity with a schema structurally equal to the compiled-in seed,
// checked against the seed itself before the empty registry is consulted.
func (v *Validator) feedBootstrap(value any, offset int64) (Result, error) {
	fatal := func(hint string, cause Issues) error {
		iss := Issues{{
			Code:    CodeMissingBootstrap,
			Message: i18n.T(CodeMissingBootstrap, nil),
			Hint:    hint,
			Offset:  offset,
		}}
		return append(iss, cause...)
	}

	ev, iss := EventFromValue(value, offset)
	if len(iss) > 0 {
		return Result{}, fatal("first record is not a well-formed event", iss)
	}
	if ev.Type.Name != BootstrapName || (ev.Type.HasVersion && ev.Type.Version != BootstrapVersion) {
		return Result{}, fatal(fmt.Sprintf("first record must declare %s, got %s", BootstrapID(), ev.Type), nil)
	}
	seed := BootstrapSeed()
	if miss := Match(ev.Data, seed, nil); len(miss) > 0 {
		return Result{}, fatal("first record does not match the bootstrap declaration shape", miss.Rebase("/data"))
	}

	m := ev.Data.(*tree.Map)
	name, _ := m.GetString("name")
	ver, verOK := intField(m, "version")
	if name != BootstrapName || !verOK || ver != BootstrapVersion {
		return Result{}, fatal(fmt.Sprintf("first record must declare identity %s", BootstrapID()), nil)
	}
	if m.Has("parent") {
		return Result{}, fatal("the bootstrap declaration has no parent", nil)
	}
	rawSchema, _ := m.Get("schema")
	node, err := schema.Compile(rawSchema)
	if err != nil {
		return Result{}, fatal("bootstrap schema does not compile", compileIssues(err, "/data/schema"))
	}
	if !schema.Equal(node, seed) {
		return Result{}, fatal("bootstrap schema differs from the built-in seed", nil)
	}

	res, riss := v.reg.Register(Declaration{Name: BootstrapName, Version: BootstrapVersion, Schema: seed})
	if len(riss) > 0 {
		// unreachable on an empty registry
		return Result{}, fatal("bootstrap registration failed", riss.Rebase("/data"))
	}
	declared := res.ID
	return Result{
		Index:       0,
		Type:        ev.Type,
		Accepted:    true,
		Declaration: true,
		Declared:    &declared,
		Offset:      offset,
	}, nil
}

func (v *Validator) feedStreaming(value any, offset int64) Result {
	index := len(v.results)
	ev, iss := EventFromValue(value, offset)
	if len(iss) > 0 {
		return rejected(index, TypeID{}, offset, iss)
	}

	entry, ok := v.reg.lookup(ev.Type.Name, ev.Type.Version, ev.Type.HasVersion)
	if !ok {
		return rejected(index, ev.Type, offset, Issues{{
			Path:    "/type",
			Code:    CodeDeclareBeforeUse,
			Message: i18n.T(CodeDeclareBeforeUse, nil),
			Hint:    fmt.Sprintf("type %s used before declaration", ev.Type),
			Offset:  offset,
		}})
	}

	// The record payload validates against the registered schema of its
	// declared type in both branches; only declarer-capable types then go
	// on to mutate the registry.
	if miss := Match(ev.Data, entry.node, v.reg); len(miss) > 0 {
		return rejected(index, ev.Type, offset, miss.Rebase("/data"))
	}

	if entry.declarer {
		return v.applyDeclaration(index, ev, offset)
	}
	return Result{Index: index, Type: ev.Type, Accepted: true, Offset: offset}
}

// applyDeclaration extracts the declaration payload, compiles and
// ref-checks the declared schema, and registers the new identity. The
// registry is mutated only when every step succeeds.
func (v *Validator) applyDeclaration(index int, ev Event, offset int64) Result {
	m, ok := ev.Data.(*tree.Map)
	if !ok {
		// declarer schemas require name and schema, so Match already
		// guarantees a mapping; kept as a guard for hand-built registries
		return rejected(index, ev.Type, offset, Issues{{
			Path:    "/data",
			Code:    CodeSchemaViolation,
			Message: "declaration payload must be an object",
		}})
	}

	name, ok := m.GetString("name")
	if !ok {
		return rejected(index, ev.Type, offset, Issues{{
			Path:    "/data/name",
			Code:    CodeSchemaViolation,
			Message: "declared \"name\" must be a string",
		}})
	}
	if id, err := ParseTypeTag(name); err != nil || id.HasVersion {
		return rejected(index, ev.Type, offset, Issues{{
			Path:    "/data/name",
			Code:    CodeSchemaViolation,
			Message: fmt.Sprintf("declared name %q is not a bare qualified name", name),
		}})
	}

	version, ok := intField(m, "version")
	if !ok || version < 1 {
		return rejected(index, ev.Type, offset, Issues{{
			Path:    "/data/version",
			Code:    CodeSchemaViolation,
			Message: "declared \"version\" must be a positive integer",
		}})
	}

	var parent *int
	if m.Has("parent") {
		p, ok := intField(m, "parent")
		if !ok || p < 1 {
			return rejected(index, ev.Type, offset, Issues{{
				Path:    "/data/parent",
				Code:    CodeLineageViolation,
				Message: "declared \"parent\" must be a positive integer version",
			}})
		}
		parent = &p
	}

	rawSchema, ok := m.Get("schema")
	if !ok {
		return rejected(index, ev.Type, offset, Issues{{
			Path:    "/data/schema",
			Code:    CodeSchemaViolation,
			Message: "declaration must carry a \"schema\" object",
		}})
	}
	node, err := schema.Compile(rawSchema)
	if err != nil {
		return rejected(index, ev.Type, offset, compileIssues(err, "/data/schema"))
	}

	self := TypeID{Name: name, Version: version, HasVersion: true}
	if riss := checkRefs(node, v.reg, self); len(riss) > 0 {
		return rejected(index, ev.Type, offset, riss.Rebase("/data/schema"))
	}

	annotation, _ := m.GetString("log")
	res, riss := v.reg.Register(Declaration{
		Name:       name,
		Version:    version,
		Parent:     parent,
		Schema:     node,
		Annotation: annotation,
	})
	if len(riss) > 0 {
		return rejected(index, ev.Type, offset, riss.Rebase("/data"))
	}

	declared := res.ID
	return Result{
		Index:       index,
		Type:        ev.Type,
		Accepted:    true,
		Declaration: true,
		Declared:    &declared,
		Parent:      res.Parent,
		NoOp:        res.NoOp,
		Offset:      offset,
	}
}

func rejected(index int, id TypeID, offset int64, iss Issues) Result {
	return Result{
		Index:     index,
		Type:      id,
		Offset:    offset,
		ErrorKind: classify(iss),
		Issues:    iss,
	}
}

// classify folds fine-grained issue codes into the report-level error kind.
func classify(iss Issues) string {
	if len(iss) == 0 {
		return ""
	}
	switch iss[0].Code {
	case CodeDuplicateVersion, CodeUnknownParent, CodeLineageViolation:
		return CodeLineageViolation
	case CodeInvalidType, CodeRequired, CodeUnknownKey, CodeSchemaViolation:
		return CodeSchemaViolation
	default:
		return iss[0].Code
	}
}

func compileIssues(err error, base string) Issues {
	ce, ok := err.(*schema.CompileError)
	if !ok {
		return Issues{{Path: base, Code: CodeSchemaViolation, Message: err.Error(), Cause: err}}
	}
	return Issues{{
		Path:    base + ce.Path,
		Code:    CodeSchemaViolation,
		Message: ce.Message,
		Cause:   ce,
	}}
}

func intField(m *tree.Map, key string) (int, bool) {
	val, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	return tree.AsInt(val)
}
