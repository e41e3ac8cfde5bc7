package source

// Package source decodes event logs into the generic tree values the
// validator consumes. Two renditions are supported and the validator is
// indifferent to which: JSON objects concatenated without delimiters (the
// canonical .esml layout) and YAML, either a top-level sequence of mappings
// or a multi-document stream.

// RecordSource yields decoded records in file order. Next returns the
// decoded value and the byte offset of the record in its input (-1 when the
// rendition cannot provide one). io.EOF signals a clean end of input.
type RecordSource interface {
	Next() (any, int64, error)
}
