package properties

// Package properties projects a validated configuration event stream into
// a java-properties-style key/value view. It is a downstream consumer: it
// replays config.* events from an already-validated log and never touches
// the type registry.

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/reoring/esml"
	"github.com/reoring/esml/source"
	"github.com/reoring/esml/tree"
)

const (
	typePropertySet     = "config.PropertySet"
	typePropertyRemoved = "config.PropertyRemoved"
	typePropertyRenamed = "config.PropertyRenamed"
)

// Projection holds the latest value (and optional comment) per key.
type Projection struct {
	props    map[string]string
	comments map[string]string
}

// Project replays the stream. When configID is non-empty, events carrying a
// different config_id are skipped. Records that are not config.* events
// (declarations, other domains, malformed leftovers) are ignored, so the
// projector can run over any validated log.
func Project(src source.RecordSource, configID string) (*Projection, error) {
	p := &Projection{
		props:    make(map[string]string),
		comments: make(map[string]string),
	}
	for {
		val, _, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return p, nil
			}
			return nil, err
		}
		m, ok := val.(*tree.Map)
		if !ok {
			continue
		}
		tag, ok := m.GetString("type")
		if !ok {
			continue
		}
		id, err := esml.ParseTypeTag(tag)
		if err != nil {
			continue
		}
		data, ok := m.GetMap("data")
		if !ok {
			continue
		}
		if configID != "" {
			if cid, ok := data.GetString("config_id"); ok && cid != configID {
				continue
			}
		}
		p.apply(id.Name, data)
	}
}

func (p *Projection) apply(name string, data *tree.Map) {
	switch name {
	case typePropertySet:
		key, ok := data.GetString("key")
		if !ok {
			return
		}
		val, _ := data.Get("value")
		p.props[key] = stringify(val)
		if c, ok := data.GetString("comment"); ok && c != "" {
			p.comments[key] = c
		} else {
			// a set without a comment drops any previous comment
			delete(p.comments, key)
		}
	case typePropertyRemoved:
		key, ok := data.GetString("key")
		if !ok {
			return
		}
		delete(p.props, key)
		delete(p.comments, key)
	case typePropertyRenamed:
		oldKey, ok1 := data.GetString("old_key")
		newKey, ok2 := data.GetString("new_key")
		if !ok1 || !ok2 {
			return
		}
		if v, ok := p.props[oldKey]; ok {
			delete(p.props, oldKey)
			p.props[newKey] = v
		}
		if c, ok := p.comments[oldKey]; ok {
			delete(p.comments, oldKey)
			p.comments[newKey] = c
		}
	}
}

// Keys returns the projected keys in sorted order.
func (p *Projection) Keys() []string {
	keys := make([]string, 0, len(p.props))
	for k := range p.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the projected value for key.
func (p *Projection) Value(key string) (string, bool) {
	v, ok := p.props[key]
	return v, ok
}

// Comment returns the comment attached to key, if any.
func (p *Projection) Comment(key string) (string, bool) {
	c, ok := p.comments[key]
	return c, ok
}

// WriteTo renders "key=value" lines, comments first, keys sorted.
func (p *Projection) WriteTo(w io.Writer) (int64, error) {
	b := &strings.Builder{}
	for _, key := range p.Keys() {
		if c, ok := p.comments[key]; ok {
			fmt.Fprintf(b, "# %s\n", c)
		}
		fmt.Fprintf(b, "%s=%s\n", key, p.props[key])
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// stringify keeps strings as-is and JSON-encodes everything else so no
// information is lost in the flat rendition.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
