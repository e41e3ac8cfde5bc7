package esml

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	// Pass-level / record-level outcomes.
	CodeMissingBootstrap = "missing_bootstrap"
	CodeDeclareBeforeUse = "declare_before_use"
	CodeLineageViolation = "lineage_violation"
	CodeDuplicateVersion = "duplicate_version"
	CodeUnknownParent    = "unknown_parent"
	CodeMalformedEvent   = "malformed_event"

	// Schema matching.
	CodeSchemaViolation = "schema_violation"
	CodeInvalidType     = "invalid_type"
	CodeRequired        = "required"
	CodeUnknownKey      = "unknown_key"
	CodeRefUnresolved   = "ref_unresolved"

	// Input decoding.
	CodeParseError = "parse_error"
)

// Issue represents a single validation entry.
type Issue struct {
	Path    string // JSON Pointer (for example: /data/address/zip).
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints, expected/found pairs, etc.
	Cause   error  // Optional: underlying error.
	Offset  int64  // Byte offset in the input source (-1 when unknown).
	// Params carries structured parameters (e.g., {"expected":"string",
	// "found":"integer"}) for i18n and report rendering.
	Params map[string]any
}

// Issues is a collection of validation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. schema_violation at /data/x
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// HasCode reports whether any issue carries the given code.
func (iss Issues) HasCode(code string) bool {
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

// Rebase prefixes every issue path with base so that child issues reported
// against "/x" surface as "<base>/x".
func (iss Issues) Rebase(base string) Issues {
	if len(iss) == 0 || base == "" {
		return iss
	}
	out := make(Issues, len(iss))
	for i, it := range iss {
		p := it.Path
		switch {
		case p == "" || p == "/":
			p = base
		case p[0] == '/':
			p = base + p
		default:
			p = base + "/" + p
		}
		it.Path = p
		out[i] = it
	}
	return out
}
