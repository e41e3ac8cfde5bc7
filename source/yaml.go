package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/reoring/esml/tree"
)

// YAMLReader wraps an io.Reader over a YAML rendition of the log: a single
// document holding a sequence of mappings, or one mapping per document.
// Byte offsets are not available for YAML; Next reports -1.
func YAMLReader(r io.Reader) RecordSource {
	return &yamlSource{dec: yaml.NewDecoder(r)}
}

// YAMLBytes wraps a byte slice of YAML input.
func YAMLBytes(b []byte) RecordSource { return YAMLReader(bytes.NewReader(b)) }

type yamlSource struct {
	dec     *yaml.Decoder
	pending []*yaml.Node
}

func (s *yamlSource) Next() (any, int64, error) {
	for len(s.pending) == 0 {
		var doc yaml.Node
		if err := s.dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, -1, io.EOF
			}
			return nil, -1, fmt.Errorf("yaml: %w", err)
		}
		if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		if root.Kind == yaml.SequenceNode {
			s.pending = append(s.pending, root.Content...)
		} else {
			s.pending = append(s.pending, root)
		}
	}
	n := s.pending[0]
	s.pending = s.pending[1:]
	v, err := nodeToValue(n)
	if err != nil {
		return nil, -1, err
	}
	return v, -1, nil
}

func nodeToValue(n *yaml.Node) (any, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return nodeToValue(n.Alias)
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeToValue(n.Content[0])
	case yaml.MappingNode:
		m := tree.NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind == yaml.AliasNode && k.Alias != nil {
				k = k.Alias
			}
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("yaml: line %d: mapping key must be a scalar", k.Line)
			}
			v, err := nodeToValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, v)
		}
		return m, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeToValue(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		return scalarToValue(n)
	default:
		return nil, fmt.Errorf("yaml: line %d: unsupported node kind", n.Line)
	}
}

func scalarToValue(n *yaml.Node) (any, error) {
	switch n.Tag {
	case "!!str":
		return n.Value, nil
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("yaml: line %d: bad integer %q", n.Line, n.Value)
		}
		return i, nil
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("yaml: line %d: bad float %q", n.Line, n.Value)
		}
		return f, nil
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return nil, fmt.Errorf("yaml: line %d: bad boolean %q", n.Line, n.Value)
		}
		return b, nil
	case "!!null":
		return nil, nil
	default:
		// unknown or custom tags decode as their string form
		return n.Value, nil
	}
}
