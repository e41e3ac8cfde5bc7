package source

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/reoring/esml/tree"
)

// JSONReader wraps an io.Reader over concatenated JSON values. Objects may
// be pretty-printed or single-line; whitespace between them is the only
// separator.
func JSONReader(r io.Reader) RecordSource {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &jsonSource{dec: dec}
}

// JSONBytes wraps a byte slice of concatenated JSON values.
func JSONBytes(b []byte) RecordSource { return JSONReader(bytes.NewReader(b)) }

type jsonSource struct {
	dec *json.Decoder
}

func (s *jsonSource) Next() (any, int64, error) {
	off := s.dec.InputOffset()
	tok, err := s.dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, off, io.EOF
		}
		return nil, off, fmt.Errorf("json: %w", err)
	}
	v, err := s.decodeValue(tok)
	if err != nil {
		return nil, off, err
	}
	return v, off, nil
}

func (s *jsonSource) decodeValue(tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return s.decodeObject()
		case '[':
			return s.decodeArray()
		default:
			return nil, fmt.Errorf("json: unexpected delimiter %q", t.String())
		}
	case string:
		return t, nil
	case json.Number:
		return decodeNumber(t)
	case bool:
		return t, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("json: unexpected token %v", tok)
	}
}

func (s *jsonSource) decodeObject() (any, error) {
	m := tree.NewMap()
	for s.dec.More() {
		keyTok, err := s.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("json: object key is not a string: %v", keyTok)
		}
		valTok, err := s.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		val, err := s.decodeValue(valTok)
		if err != nil {
			return nil, err
		}
		m.Set(key, val)
	}
	if _, err := s.dec.Token(); err != nil { // consume '}'
		return nil, fmt.Errorf("json: %w", err)
	}
	return m, nil
}

func (s *jsonSource) decodeArray() (any, error) {
	arr := []any{}
	for s.dec.More() {
		tok, err := s.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		v, err := s.decodeValue(tok)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	if _, err := s.dec.Token(); err != nil { // consume ']'
		return nil, fmt.Errorf("json: %w", err)
	}
	return arr, nil
}

func decodeNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("json: bad number %q: %w", s, err)
	}
	return f, nil
}
