package reconcile

import "github.com/schemati/schemati/internal/llm"

// PageResult is the reconciled outcome for one page. It is mutated only
// by the reconciler during a single merge pass and is immutable once
// returned.
type PageResult struct {
	PageNumber       int               `json:"page_number"`
	TitleBlock       *llm.TitleBlock   `json:"title_block,omitempty"`
	ProcessLines     []llm.ProcessLine `json:"process_lines,omitempty"`
	Instruments      []llm.Instrument  `json:"instruments,omitempty"`
	Equipment        []llm.Equipment   `json:"equipment,omitempty"`
	Valves           []llm.Valve       `json:"valves,omitempty"`
	Annotations      []llm.Annotation  `json:"annotations,omitempty"`
	WarningsAndNotes []string          `json:"warnings_and_notes,omitempty"`
}

// PageFailure records a page whose pipeline failed without aborting the
// document.
type PageFailure struct {
	PageNumber int    `json:"page_number"`
	Error      string `json:"error"`
}

// DocumentResult aggregates per-page outcomes for one document, page
// results in page-number order.
type DocumentResult struct {
	Path     string        `json:"path,omitempty"`
	Pages    []PageResult  `json:"pages"`
	Failures []PageFailure `json:"failures,omitempty"`
}
