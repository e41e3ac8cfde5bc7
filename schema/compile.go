package schema

import (
	"fmt"
	"strings"

	"github.com/reoring/esml/tree"
)

// RefPrefix is the only supported $ref form: a path into a $defs scope or
// into the registry by type tag.
const RefPrefix = "#/$defs/"

// CompileError describes a malformed schema value. Path is relative to the
// schema root ("/properties/x/items", ...).
type CompileError struct {
	Path    string
	Message string
}

func (e *CompileError) Error() string {
	if e.Path == "" {
		return "schema: " + e.Message
	}
	return fmt.Sprintf("schema: %s at %s", e.Message, e.Path)
}

// Compile turns a decoded generic tree into a Node. Unknown keywords are
// ignored; an unsupported "type" or a structurally broken keyword is an
// error. References are compiled but not resolved here: resolution happens
// at validation time against the $defs scope and the registry.
func Compile(v any) (Node, error) {
	return compile(v, "")
}

func compile(v any, path string) (Node, error) {
	m, ok := v.(*tree.Map)
	if !ok {
		return nil, &CompileError{Path: path, Message: fmt.Sprintf("schema must be an object, got %s", tree.KindOf(v))}
	}

	if rv, ok := m.Get("$ref"); ok {
		ref, ok := rv.(string)
		if !ok || !strings.HasPrefix(ref, RefPrefix) || len(ref) == len(RefPrefix) {
			return nil, &CompileError{Path: path + "/$ref", Message: fmt.Sprintf("unsupported $ref %q", rv)}
		}
		return &Ref{Target: ref[len(RefPrefix):]}, nil
	}

	defs, err := compileDefs(m, path)
	if err != nil {
		return nil, err
	}

	tv, hasType := m.Get("type")
	if !hasType {
		// No "type": matches anything. A $defs block here scopes no
		// subtree, so it is dropped.
		return Any{}, nil
	}
	ts, ok := tv.(string)
	if !ok {
		return nil, &CompileError{Path: path + "/type", Message: fmt.Sprintf("\"type\" must be a string, got %s", tree.KindOf(tv))}
	}

	switch ts {
	case "object":
		return compileObject(m, defs, path)
	case "array":
		return compileArray(m, path)
	case "string", "integer", "number", "boolean":
		return &Primitive{Type: PrimType(ts)}, nil
	default:
		return nil, &CompileError{Path: path + "/type", Message: fmt.Sprintf("unsupported type %q", ts)}
	}
}

func compileObject(m *tree.Map, defs map[string]Node, path string) (Node, error) {
	obj := &Object{Defs: defs}

	if pv, ok := m.Get("properties"); ok {
		pm, ok := pv.(*tree.Map)
		if !ok {
			return nil, &CompileError{Path: path + "/properties", Message: "\"properties\" must be an object"}
		}
		for _, k := range pm.Keys() {
			sub, _ := pm.Get(k)
			node, err := compile(sub, path+"/properties/"+k)
			if err != nil {
				return nil, err
			}
			obj.Properties = append(obj.Properties, Property{Name: k, Node: node})
		}
	}

	if rv, ok := m.Get("required"); ok {
		rl, ok := rv.([]any)
		if !ok {
			return nil, &CompileError{Path: path + "/required", Message: "\"required\" must be an array of strings"}
		}
		for i, e := range rl {
			s, ok := e.(string)
			if !ok {
				return nil, &CompileError{Path: fmt.Sprintf("%s/required/%d", path, i), Message: "\"required\" must be an array of strings"}
			}
			obj.Required = append(obj.Required, s)
		}
	}

	if av, ok := m.Get("additionalProperties"); ok {
		switch ap := av.(type) {
		case bool:
			if ap {
				obj.Additional = Additional{Mode: AdditionalAllow}
			} else {
				obj.Additional = Additional{Mode: AdditionalForbid}
			}
		case *tree.Map:
			node, err := compile(ap, path+"/additionalProperties")
			if err != nil {
				return nil, err
			}
			obj.Additional = Additional{Mode: AdditionalSchema, Node: node}
		default:
			return nil, &CompileError{Path: path + "/additionalProperties", Message: "\"additionalProperties\" must be a boolean or an object"}
		}
	}

	return obj, nil
}

func compileArray(m *tree.Map, path string) (Node, error) {
	arr := &Array{Items: Any{}}
	if iv, ok := m.Get("items"); ok {
		node, err := compile(iv, path+"/items")
		if err != nil {
			return nil, err
		}
		arr.Items = node
	}
	return arr, nil
}

func compileDefs(m *tree.Map, path string) (map[string]Node, error) {
	dv, ok := m.Get("$defs")
	if !ok {
		return nil, nil
	}
	dm, ok := dv.(*tree.Map)
	if !ok {
		return nil, &CompileError{Path: path + "/$defs", Message: "\"$defs\" must be an object"}
	}
	defs := make(map[string]Node, dm.Len())
	for _, k := range dm.Keys() {
		sub, _ := dm.Get(k)
		node, err := compile(sub, path+"/$defs/"+k)
		if err != nil {
			return nil, err
		}
		defs[k] = node
	}
	return defs, nil
}
