package esml

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/reoring/esml/i18n"
	"github.com/reoring/esml/schema"
	"github.com/reoring/esml/tree"
)

// Resolver supplies registered schemas to the matcher for $ref targets that
// no enclosing $defs scope defines. The Registry implements it; lookups see
// only versions declared earlier in the stream.
type Resolver interface {
	ResolveType(name string, version int, hasVersion bool) (schema.Node, bool)
}

// Match checks a decoded value against a schema node. Issues are reported
// deterministically in pre-order: required properties in declared order,
// then properties in declared order, then unknown keys sorted, then array
// elements by index. All issues are collected; callers that only need the
// first failing path take the head of the slice.
func Match(value any, n schema.Node, r Resolver) Issues {
	mc := &matchCtx{resolver: r}
	return mc.match(value, n, nil, "")
}

type matchCtx struct {
	resolver Resolver
}

type defsScope = map[string]schema.Node

func (mc *matchCtx) match(v any, n schema.Node, scopes []defsScope, path string) Issues {
	switch node := n.(type) {
	case schema.Any:
		return nil
	case *schema.Primitive:
		return matchPrimitive(v, node, path)
	case *schema.Array:
		return mc.matchArray(v, node, scopes, path)
	case *schema.Object:
		return mc.matchObject(v, node, scopes, path)
	case *schema.Ref:
		resolved, rscopes, iss := mc.resolveRef(node, scopes, path)
		if len(iss) > 0 {
			return iss
		}
		return mc.match(v, resolved, rscopes, path)
	default:
		return Issues{{Path: orRoot(path), Code: CodeSchemaViolation, Message: "unknown schema node"}}
	}
}

func matchPrimitive(v any, p *schema.Primitive, path string) Issues {
	ok := false
	switch p.Type {
	case schema.TypeString:
		_, ok = v.(string)
	case schema.TypeBoolean:
		_, ok = v.(bool)
	case schema.TypeInteger:
		ok = tree.IsInteger(v)
	case schema.TypeNumber:
		ok = tree.IsNumber(v)
	}
	if ok {
		return nil
	}
	expected := string(p.Type)
	found := tree.KindOf(v)
	return Issues{{
		Path:    orRoot(path),
		Code:    CodeInvalidType,
		Message: i18n.T(CodeInvalidType, nil),
		Hint:    fmt.Sprintf("expected %s, found %s", expected, found),
		Params:  map[string]any{"expected": expected, "found": found},
	}}
}

func (mc *matchCtx) matchArray(v any, a *schema.Array, scopes []defsScope, path string) Issues {
	arr, ok := v.([]any)
	if !ok {
		return Issues{{
			Path:    orRoot(path),
			Code:    CodeInvalidType,
			Message: i18n.T(CodeInvalidType, nil),
			Hint:    fmt.Sprintf("expected array, found %s", tree.KindOf(v)),
			Params:  map[string]any{"expected": "array", "found": tree.KindOf(v)},
		}}
	}
	var iss Issues
	for i, el := range arr {
		iss = AppendIssues(iss, mc.match(el, a.Items, scopes, path+"/"+strconv.Itoa(i))...)
	}
	return iss
}

func (mc *matchCtx) matchObject(v any, o *schema.Object, scopes []defsScope, path string) Issues {
	m, ok := v.(*tree.Map)
	if !ok {
		return Issues{{
			Path:    orRoot(path),
			Code:    CodeInvalidType,
			Message: i18n.T(CodeInvalidType, nil),
			Hint:    fmt.Sprintf("expected object, found %s", tree.KindOf(v)),
			Params:  map[string]any{"expected": "object", "found": tree.KindOf(v)},
		}}
	}
	if o.Defs != nil {
		// full slice expression: sibling branches must not share growth
		scopes = append(scopes[:len(scopes):len(scopes)], o.Defs)
	}

	var iss Issues
	for _, req := range o.Required {
		if !m.Has(req) {
			iss = AppendIssues(iss, Issue{
				Path:    path + "/" + req,
				Code:    CodeRequired,
				Message: i18n.T(CodeRequired, nil),
				Params:  map[string]any{"key": req},
			})
		}
	}
	for _, prop := range o.Properties {
		if val, ok := m.Get(prop.Name); ok {
			iss = AppendIssues(iss, mc.match(val, prop.Node, scopes, path+"/"+prop.Name)...)
		}
	}

	// unknown keys in sorted order for reproducible output
	var unknown []string
	for _, k := range m.Keys() {
		if _, known := o.Property(k); !known {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		switch o.Additional.Mode {
		case schema.AdditionalForbid:
			iss = AppendIssues(iss, Issue{
				Path:    path + "/" + k,
				Code:    CodeUnknownKey,
				Message: i18n.T(CodeUnknownKey, nil),
				Params:  map[string]any{"key": k},
			})
		case schema.AdditionalSchema:
			val, _ := m.Get(k)
			iss = AppendIssues(iss, mc.match(val, o.Additional.Node, scopes, path+"/"+k)...)
		}
	}
	return iss
}

// resolveRef follows a reference chain until it lands on a non-ref node.
// The nearest enclosing $defs scope wins; otherwise the target's
// name@version reading is resolved against the registry, which carries its
// own root scope. A chain that revisits a target is unresolvable.
func (mc *matchCtx) resolveRef(ref *schema.Ref, scopes []defsScope, path string) (schema.Node, []defsScope, Issues) {
	seen := map[string]struct{}{}
	node := schema.Node(ref)
	for {
		r, ok := node.(*schema.Ref)
		if !ok {
			return node, scopes, nil
		}
		next, nextScopes, iss := mc.resolveOnce(r, scopes, path, seen)
		if len(iss) > 0 {
			return nil, nil, iss
		}
		node, scopes = next, nextScopes
	}
}

func (mc *matchCtx) resolveOnce(r *schema.Ref, scopes []defsScope, path string, seen map[string]struct{}) (schema.Node, []defsScope, Issues) {
	for i := len(scopes) - 1; i >= 0; i-- {
		if n, ok := scopes[i][r.Target]; ok {
			key := "defs:" + strconv.Itoa(i) + ":" + r.Target
			if _, dup := seen[key]; dup {
				return nil, nil, refCycle(r.Target, path)
			}
			seen[key] = struct{}{}
			// the definition site sees its own scope and everything above it
			return n, scopes[:i+1], nil
		}
	}
	id, err := ParseTypeTag(r.Target)
	if err != nil {
		return nil, nil, Issues{{
			Path:    orRoot(path),
			Code:    CodeRefUnresolved,
			Message: i18n.T(CodeRefUnresolved, nil),
			Hint:    fmt.Sprintf("$ref target %q is neither a $defs entry nor a type tag", r.Target),
			Cause:   err,
		}}
	}
	if mc.resolver != nil {
		if n, ok := mc.resolver.ResolveType(id.Name, id.Version, id.HasVersion); ok {
			key := "reg:" + id.String()
			if _, dup := seen[key]; dup {
				return nil, nil, refCycle(r.Target, path)
			}
			seen[key] = struct{}{}
			// registered schemas resolve in their own root scope
			return n, nil, nil
		}
	}
	return nil, nil, Issues{{
		Path:    orRoot(path),
		Code:    CodeRefUnresolved,
		Message: i18n.T(CodeRefUnresolved, nil),
		Hint:    fmt.Sprintf("$ref target %q not declared", r.Target),
		Params:  map[string]any{"target": r.Target},
	}}
}

func refCycle(target, path string) Issues {
	return Issues{{
		Path:    orRoot(path),
		Code:    CodeRefUnresolved,
		Message: i18n.T(CodeRefUnresolved, nil),
		Hint:    fmt.Sprintf("$ref cycle through %q", target),
		Params:  map[string]any{"target": target},
	}}
}

func orRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
