package esml

import (
	"fmt"

	"github.com/reoring/esml/tree"
)

// Event is one decoded record of the log: a mapping with exactly the keys
// "type" (a type tag) and "data" (any decoded value).
type Event struct {
	Type   TypeID
	Data   any
	Offset int64 // byte offset of the record in its source, -1 when unknown
}

// EventFromValue checks the record envelope. Any failure here is a
// malformed_event: a missing type or data key, a non-string type, or a type
// tag with no parseable name/version.
func EventFromValue(v any, offset int64) (Event, Issues) {
	m, ok := v.(*tree.Map)
	if !ok {
		return Event{}, Issues{{
			Code:    CodeMalformedEvent,
			Path:    "",
			Message: fmt.Sprintf("record must be an object, got %s", tree.KindOf(v)),
			Offset:  offset,
		}}
	}
	tv, ok := m.Get("type")
	if !ok {
		return Event{}, Issues{{
			Code:    CodeMalformedEvent,
			Path:    "",
			Message: "record must have \"type\" and \"data\"",
			Offset:  offset,
		}}
	}
	if !m.Has("data") {
		return Event{}, Issues{{
			Code:    CodeMalformedEvent,
			Path:    "",
			Message: "record must have \"type\" and \"data\"",
			Offset:  offset,
		}}
	}
	tag, ok := tv.(string)
	if !ok {
		return Event{}, Issues{{
			Code:    CodeMalformedEvent,
			Path:    "/type",
			Message: fmt.Sprintf("\"type\" must be a string, got %s", tree.KindOf(tv)),
			Offset:  offset,
		}}
	}
	id, err := ParseTypeTag(tag)
	if err != nil {
		return Event{}, Issues{{
			Code:    CodeMalformedEvent,
			Path:    "/type",
			Message: err.Error(),
			Cause:   err,
			Offset:  offset,
		}}
	}
	data, _ := m.Get("data")
	return Event{Type: id, Data: data, Offset: offset}, nil
}
