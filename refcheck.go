package esml

import (
	"fmt"
	"sort"

	"github.com/reoring/esml/i18n"
	"github.com/reoring/esml/schema"
)

// checkRefs walks a newly compiled schema and verifies that every $ref is
// resolvable: against the nearest enclosing $defs scope, against the
// registry, or against the identity being declared (a forward-looking
// self-reference). A declaration with an unresolvable reference is rejected
// before it can reach the registry. Paths are schema-relative.
func checkRefs(n schema.Node, r Resolver, self TypeID) Issues {
	w := &refWalker{resolver: r, self: self}
	return w.walk(n, nil, "")
}

type refWalker struct {
	resolver Resolver
	self     TypeID
}

func (w *refWalker) walk(n schema.Node, scopes []defsScope, path string) Issues {
	var iss Issues
	switch node := n.(type) {
	case *schema.Object:
		if node.Defs != nil {
			scopes = append(scopes[:len(scopes):len(scopes)], node.Defs)
			names := make([]string, 0, len(node.Defs))
			for name := range node.Defs {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				iss = AppendIssues(iss, w.walk(node.Defs[name], scopes, path+"/$defs/"+name)...)
			}
		}
		for _, prop := range node.Properties {
			iss = AppendIssues(iss, w.walk(prop.Node, scopes, path+"/properties/"+prop.Name)...)
		}
		if node.Additional.Mode == schema.AdditionalSchema {
			iss = AppendIssues(iss, w.walk(node.Additional.Node, scopes, path+"/additionalProperties")...)
		}
	case *schema.Array:
		iss = AppendIssues(iss, w.walk(node.Items, scopes, path+"/items")...)
	case *schema.Ref:
		iss = AppendIssues(iss, w.check(node, scopes, path)...)
	}
	return iss
}

func (w *refWalker) check(ref *schema.Ref, scopes []defsScope, path string) Issues {
	for i := len(scopes) - 1; i >= 0; i-- {
		if _, ok := scopes[i][ref.Target]; ok {
			return nil
		}
	}
	id, err := ParseTypeTag(ref.Target)
	if err != nil {
		return Issues{{
			Path:    orRoot(path),
			Code:    CodeRefUnresolved,
			Message: i18n.T(CodeRefUnresolved, nil),
			Hint:    fmt.Sprintf("$ref target %q is neither a $defs entry nor a type tag", ref.Target),
			Cause:   err,
		}}
	}
	if w.resolver != nil {
		if _, ok := w.resolver.ResolveType(id.Name, id.Version, id.HasVersion); ok {
			return nil
		}
	}
	if id.Name == w.self.Name && (!id.HasVersion || id.Version == w.self.Version) {
		return nil
	}
	return Issues{{
		Path:    orRoot(path),
		Code:    CodeRefUnresolved,
		Message: i18n.T(CodeRefUnresolved, nil),
		Hint:    fmt.Sprintf("$ref target %q not declared", ref.Target),
		Params:  map[string]any{"target": ref.Target},
	}}
}
