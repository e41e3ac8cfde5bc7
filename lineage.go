package esml

// Lineage is a read-only view over the registry's per-name version trees.
// Every non-root version has exactly one parent by construction (Register
// enforces the tree rule), so each name forms a forest rooted at its
// independently first-declared versions. Branching is permitted; merging is
// structurally impossible because a declaration carries a single parent
// field. Registered versions are never evicted, so references to old
// versions stay resolvable for the lifetime of the pass.
type Lineage struct {
	reg *Registry
}

// Ancestors returns the version chain from the root to the given version,
// inclusive. It returns nil when the identity is not registered.
func (l *Lineage) Ancestors(name string, version int) []int {
	te, ok := l.reg.names[name]
	if !ok {
		return nil
	}
	e, ok := te.byVer[version]
	if !ok {
		return nil
	}
	var chain []int
	for e != nil {
		chain = append(chain, e.version)
		if e.parent == nil {
			break
		}
		e = te.byVer[*e.parent]
	}
	// reverse to root-first order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// IsDescendant reports whether descendant is reachable from ancestor by
// following parent links, including the trivial case of the same version.
func (l *Lineage) IsDescendant(name string, ancestor, descendant int) bool {
	te, ok := l.reg.names[name]
	if !ok {
		return false
	}
	e, ok := te.byVer[descendant]
	if !ok {
		return false
	}
	if _, ok := te.byVer[ancestor]; !ok {
		return false
	}
	for e != nil {
		if e.version == ancestor {
			return true
		}
		if e.parent == nil {
			return false
		}
		e = te.byVer[*e.parent]
	}
	return false
}

// Roots returns the first-declared versions of name, in registration order.
func (l *Lineage) Roots(name string) []int {
	te, ok := l.reg.names[name]
	if !ok {
		return nil
	}
	var roots []int
	for _, e := range te.versions {
		if e.parent == nil {
			roots = append(roots, e.version)
		}
	}
	return roots
}
