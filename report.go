package esml

import (
	"fmt"
	"io"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// Result is the outcome for one record, in stream order.
type Result struct {
	Index    int
	Type     TypeID // zero when the type tag was unparseable
	Offset   int64
	Accepted bool

	// Declaration outcomes.
	Declaration bool
	Declared    *TypeID // identity registered by this record
	Parent      *int    // lineage parent assigned to the new version
	NoOp        bool    // identical redeclaration, registry unchanged

	// Rejection outcomes.
	ErrorKind string // one of the error taxonomy codes
	Issues    Issues
}

// Report is the pass-level output: one Result per input record plus the
// final registry snapshot and summary counters.
type Report struct {
	PassID       string
	Results      []Result
	Total        int
	Accepted     int
	Rejected     int
	Declarations int // accepted type-declaring records
	Events       int // accepted ordinary records
	Registry     []TypeVersions
	TypeCounts   map[string]int // tag -> records carrying that tag
}

// Summary renders the human-readable pass summary.
func (r *Report) Summary() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Total records: %d\n", r.Total)
	fmt.Fprintf(b, "Accepted: %d\n", r.Accepted)
	fmt.Fprintf(b, "Rejected: %d\n", r.Rejected)
	fmt.Fprintf(b, "Type-declaring records: %d\n", r.Declarations)
	fmt.Fprintf(b, "Ordinary records: %d\n", r.Events)

	if len(r.Registry) > 0 {
		fmt.Fprintf(b, "Declared types (unique): %d\n", r.declaredVersionCount())
		b.WriteString("Registry:\n")
		for _, tv := range r.Registry {
			for _, vi := range tv.Versions {
				line := fmt.Sprintf("  - %s@%d", tv.Name, vi.Version)
				if vi.Parent != nil {
					line += fmt.Sprintf(" (parent %d)", *vi.Parent)
				}
				if vi.Declarer {
					line += " [declarer]"
				}
				b.WriteString(line + "\n")
			}
		}
	}

	if len(r.TypeCounts) > 0 {
		b.WriteString("Record counts by type:\n")
		tags := make([]string, 0, len(r.TypeCounts))
		for tag := range r.TypeCounts {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			fmt.Fprintf(b, "  - %s: %d\n", tag, r.TypeCounts[tag])
		}
	}

	if r.Rejected > 0 {
		b.WriteString("Failures:\n")
		for _, res := range r.Results {
			if res.Accepted {
				continue
			}
			fmt.Fprintf(b, "  - record %d (%s): %s\n", res.Index, tagOrPlaceholder(res.Type), renderIssue(res.Issues))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Report) declaredVersionCount() int {
	n := 0
	for _, tv := range r.Registry {
		n += len(tv.Versions)
	}
	return n
}

// jsonlResult is the wire shape of one Result line.
type jsonlResult struct {
	Index    int    `json:"index"`
	Type     string `json:"type,omitempty"`
	Accepted bool   `json:"accepted"`
	Declared string `json:"declared,omitempty"`
	Parent   *int   `json:"parent,omitempty"`
	NoOp     bool   `json:"noop,omitempty"`
	Error    string `json:"error,omitempty"`
	Path     string `json:"path,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Offset   int64  `json:"offset,omitempty"`
}

// jsonlSummary is the wire shape of the trailing summary line.
type jsonlSummary struct {
	Summary      bool           `json:"summary"`
	PassID       string         `json:"pass_id"`
	Total        int            `json:"total"`
	Accepted     int            `json:"accepted"`
	Rejected     int            `json:"rejected"`
	Declarations int            `json:"declarations"`
	Events       int            `json:"events"`
	Registry     []TypeVersions `json:"registry,omitempty"`
}

// WriteJSONL writes one JSON line per record followed by a summary line.
func (r *Report) WriteJSONL(w io.Writer) error {
	for _, res := range r.Results {
		line := jsonlResult{
			Index:    res.Index,
			Accepted: res.Accepted,
			Parent:   res.Parent,
			NoOp:     res.NoOp,
			Error:    res.ErrorKind,
		}
		if res.Type.Name != "" {
			line.Type = res.Type.String()
		}
		if res.Declared != nil {
			line.Declared = res.Declared.String()
		}
		if res.Offset >= 0 {
			line.Offset = res.Offset
		}
		if len(res.Issues) > 0 {
			line.Path = res.Issues[0].Path
			line.Detail = issueDetail(res.Issues[0])
		}
		if err := writeJSONLine(w, line); err != nil {
			return err
		}
	}
	return writeJSONLine(w, jsonlSummary{
		Summary:      true,
		PassID:       r.PassID,
		Total:        r.Total,
		Accepted:     r.Accepted,
		Rejected:     r.Rejected,
		Declarations: r.Declarations,
		Events:       r.Events,
		Registry:     r.Registry,
	})
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func renderIssue(iss Issues) string {
	if len(iss) == 0 {
		return "rejected"
	}
	it := iss[0]
	s := it.Code
	if it.Path != "" && it.Path != "/" {
		s += " at " + it.Path
	}
	if d := issueDetail(it); d != "" {
		s += ": " + d
	}
	return s
}

func issueDetail(it Issue) string {
	if it.Hint != "" {
		return it.Hint
	}
	return it.Message
}

func tagOrPlaceholder(id TypeID) string {
	if id.Name == "" {
		return "<malformed>"
	}
	return id.String()
}
