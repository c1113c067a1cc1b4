package types

// Row is a single result record keyed by column name.
type Row = map[string]any

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type ForeignKey struct {
	ConstrainedColumns []string `json:"constrained_columns"`
	ReferredTable      string   `json:"referred_table"`
	ReferredColumns    []string `json:"referred_columns"`
}

type TableSchema struct {
	Columns     []Column     `json:"columns"`
	PrimaryKeys []string     `json:"primary_keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Snapshot is an immutable description of the tables visible to the
// pipeline. It is built wholesale and replaced atomically on refresh,
// never patched in place.
type Snapshot struct {
	Tables map[string]TableSchema `json:"tables"`
}

// TableNames returns the table names of the snapshot in no particular order.
func (s *Snapshot) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	return names
}

// Empty reports whether the snapshot describes no tables at all.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Tables) == 0
}

// ErrorInfo carries the typed error of a failed pipeline run.
type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PipelineResult is the single stable envelope returned for every request
// outcome. Exactly one of Data / Error is populated: a success always
// carries Data (possibly empty) and Query, a failure always carries Error.
type PipelineResult struct {
	Success       bool       `json:"success"`
	Query         string     `json:"query,omitempty"`
	OriginalQuery string     `json:"original_query,omitempty"`
	WasDebugged   bool       `json:"was_debugged,omitempty"`
	Data          []Row      `json:"data"`
	Summary       string     `json:"summary,omitempty"`
	Message       string     `json:"message,omitempty"`
	RecordCount   *int       `json:"record_count,omitempty"`
	Error         *ErrorInfo `json:"error,omitempty"`
	Mock          bool       `json:"mock,omitempty"`
}
