package esml

import (
	"fmt"
	"sort"

	"github.com/reoring/esml/i18n"
	"github.com/reoring/esml/schema"
)

// Declaration is the semantic payload of an accepted type-declaring
// record, extracted after the record validated against its declarer's
// schema.
type Declaration struct {
	Name       string
	Version    int
	Parent     *int // nil when the payload named no parent version
	Schema     schema.Node
	Annotation string
}

// RegisterResult reports the outcome of an accepted registration.
type RegisterResult struct {
	ID       TypeID
	Parent   *int
	Declarer bool
	NoOp     bool // identical redeclaration of an existing identity
}

type versionEntry struct {
	version  int
	parent   *int
	node     schema.Node
	declarer bool
}

type typeEntry struct {
	versions []*versionEntry // registration order
	byVer    map[int]*versionEntry
}

// Registry maps qualified names to their declared versions. It is owned by
// one validation pass: mutated only by accepted declarations, in stream
// order, and read when ordinary events are validated. It implements
// Resolver, so $refs see exactly the versions declared so far.
type Registry struct {
	names map[string]*typeEntry
	order []string // first-registration order of names
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]*typeEntry)}
}

// Register applies the tree rule: the first version of a name needs no
// parent; every later version must name exactly one already-registered
// version of the same name. Redeclaring an identity is a no-op when the
// schema and parent are identical and a duplicate_version otherwise.
// Issue paths are payload-relative ("/parent", "/version").
func (r *Registry) Register(decl Declaration) (RegisterResult, Issues) {
	te := r.names[decl.Name]

	if te != nil {
		if existing, ok := te.byVer[decl.Version]; ok {
			if schema.Equal(existing.node, decl.Schema) && sameParent(existing.parent, decl.Parent) {
				return RegisterResult{
					ID:       TypeID{Name: decl.Name, Version: decl.Version, HasVersion: true},
					Parent:   existing.parent,
					Declarer: existing.declarer,
					NoOp:     true,
				}, nil
			}
			return RegisterResult{}, Issues{{
				Path:    "/version",
				Code:    CodeDuplicateVersion,
				Message: i18n.T(CodeDuplicateVersion, nil),
				Hint:    fmt.Sprintf("%s@%d is already declared with a different schema", decl.Name, decl.Version),
			}}
		}
	}

	first := te == nil || len(te.versions) == 0
	if first {
		if decl.Parent != nil {
			return RegisterResult{}, Issues{{
				Path:    "/parent",
				Code:    CodeUnknownParent,
				Message: i18n.T(CodeUnknownParent, nil),
				Hint:    fmt.Sprintf("%s@%d names parent version %d but no version of %s is declared", decl.Name, decl.Version, *decl.Parent, decl.Name),
			}}
		}
	} else {
		if decl.Parent == nil {
			return RegisterResult{}, Issues{{
				Path:    "/parent",
				Code:    CodeLineageViolation,
				Message: i18n.T(CodeLineageViolation, nil),
				Hint:    fmt.Sprintf("%s already has declared versions; %s@%d must name a parent version", decl.Name, decl.Name, decl.Version),
			}}
		}
		if _, ok := te.byVer[*decl.Parent]; !ok {
			return RegisterResult{}, Issues{{
				Path:    "/parent",
				Code:    CodeUnknownParent,
				Message: i18n.T(CodeUnknownParent, nil),
				Hint:    fmt.Sprintf("parent version %d of %s is not declared", *decl.Parent, decl.Name),
			}}
		}
	}

	if te == nil {
		te = &typeEntry{byVer: make(map[int]*versionEntry)}
		r.names[decl.Name] = te
		r.order = append(r.order, decl.Name)
	}
	entry := &versionEntry{
		version:  decl.Version,
		parent:   decl.Parent,
		node:     decl.Schema,
		declarer: schema.IsDeclarer(decl.Schema),
	}
	te.versions = append(te.versions, entry)
	te.byVer[decl.Version] = entry

	return RegisterResult{
		ID:       TypeID{Name: decl.Name, Version: decl.Version, HasVersion: true},
		Parent:   decl.Parent,
		Declarer: entry.declarer,
	}, nil
}

// ResolveType implements Resolver. A lookup without a version resolves to
// the latest registered version of the name at this point in the stream.
func (r *Registry) ResolveType(name string, version int, hasVersion bool) (schema.Node, bool) {
	e, ok := r.lookup(name, version, hasVersion)
	if !ok {
		return nil, false
	}
	return e.node, true
}

func (r *Registry) lookup(name string, version int, hasVersion bool) (*versionEntry, bool) {
	te, ok := r.names[name]
	if !ok || len(te.versions) == 0 {
		return nil, false
	}
	if !hasVersion {
		return te.versions[len(te.versions)-1], true
	}
	e, ok := te.byVer[version]
	return e, ok
}

// Has reports whether the exact identity (or, for a bare name, any version)
// is registered.
func (r *Registry) Has(id TypeID) bool {
	_, ok := r.lookup(id.Name, id.Version, id.HasVersion)
	return ok
}

// Lineage returns the lineage view over this registry.
func (r *Registry) Lineage() *Lineage { return &Lineage{reg: r} }

// VersionInfo is one registered version in a snapshot.
type VersionInfo struct {
	Version  int  `json:"version"`
	Parent   *int `json:"parent,omitempty"`
	Declarer bool `json:"declarer,omitempty"`
}

// TypeVersions lists the versions of one name in registration order.
type TypeVersions struct {
	Name     string        `json:"name"`
	Versions []VersionInfo `json:"versions"`
}

// Snapshot exports the registry, names sorted, versions in registration
// order.
func (r *Registry) Snapshot() []TypeVersions {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	out := make([]TypeVersions, 0, len(names))
	for _, name := range names {
		te := r.names[name]
		tv := TypeVersions{Name: name, Versions: make([]VersionInfo, 0, len(te.versions))}
		for _, e := range te.versions {
			tv.Versions = append(tv.Versions, VersionInfo{Version: e.version, Parent: e.parent, Declarer: e.declarer})
		}
		out = append(out, tv)
	}
	return out
}

func sameParent(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
