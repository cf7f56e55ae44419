package llm

import "context"

// TitleBlock holds the drawing's identification fields. Absent fields
// stay empty and are omitted from JSON, never null-filled.
type TitleBlock struct {
	DocumentTitle  string            `json:"document_title,omitempty"`
	DocumentNumber string            `json:"document_number,omitempty"`
	Revision       string            `json:"revision,omitempty"`
	Project        string            `json:"project,omitempty"`
	DrawnBy        string            `json:"drawn_by,omitempty"`
	CheckedBy      string            `json:"checked_by,omitempty"`
	ApprovedBy     string            `json:"approved_by,omitempty"`
	Date           string            `json:"date,omitempty"`
	Client         string            `json:"client,omitempty"`
	SheetNumber    string            `json:"sheet_number,omitempty"`
	TotalSheets    string            `json:"total_sheets,omitempty"`
	OtherFields    map[string]string `json:"other_fields,omitempty"`
}

// ProcessLine is one piping line observed on the diagram.
type ProcessLine struct {
	LineNumber string `json:"line_number,omitempty"`
	LineSize   string `json:"line_size,omitempty"`
	FluidType  string `json:"fluid_type,omitempty"`
	SpecCode   string `json:"spec_code,omitempty"`
	Insulation string `json:"insulation,omitempty"`
	Tracing    string `json:"tracing,omitempty"`
	Service    string `json:"service,omitempty"`
}

// Instrument is one instrument bubble/tag.
type Instrument struct {
	Tag         string   `json:"tag,omitempty"`
	Type        string   `json:"type,omitempty"`
	Location    string   `json:"location,omitempty"`
	Function    string   `json:"function,omitempty"`
	ConnectedTo []string `json:"connected_to,omitempty"`
}

// Equipment is one tagged equipment item (vessel, pump, exchanger...).
type Equipment struct {
	Tag            string   `json:"tag,omitempty"`
	Type           string   `json:"type,omitempty"`
	Service        string   `json:"service,omitempty"`
	Capacity       string   `json:"capacity,omitempty"`
	ConnectedLines []string `json:"connected_lines,omitempty"`
}

// Valve is one valve symbol with its tag and operator.
type Valve struct {
	Tag            string   `json:"tag,omitempty"`
	Type           string   `json:"type,omitempty"`
	Operator       string   `json:"operator,omitempty"`
	Position       string   `json:"position,omitempty"`
	ConnectedLines []string `json:"connected_lines,omitempty"`
}

// Annotation is free text on the drawing that is not a tagged entity.
type Annotation struct {
	Text                string `json:"text,omitempty"`
	LocationDescription string `json:"location_description,omitempty"`
}

// PageEntities is the normalized shape we want from the model for one
// page image or page fragment.
type PageEntities struct {
	TitleBlock       *TitleBlock   `json:"title_block,omitempty"`
	ProcessLines     []ProcessLine `json:"process_lines,omitempty"`
	Instruments      []Instrument  `json:"instruments,omitempty"`
	Equipment        []Equipment   `json:"equipment,omitempty"`
	Valves           []Valve       `json:"valves,omitempty"`
	Annotations      []Annotation  `json:"annotations,omitempty"`
	WarningsAndNotes []string      `json:"warnings_and_notes,omitempty"`
}

// Empty reports whether the model found nothing on the fragment.
func (p PageEntities) Empty() bool {
	return p.TitleBlock == nil &&
		len(p.ProcessLines) == 0 &&
		len(p.Instruments) == 0 &&
		len(p.Equipment) == 0 &&
		len(p.Valves) == 0 &&
		len(p.Annotations) == 0 &&
		len(p.WarningsAndNotes) == 0
}

// PageExtractor is the interface the pipeline depends on. The image is
// an encoded PNG/JPEG of one fragment; the prompt is the fixed system
// prompt. The raw model JSON is returned for archival alongside the
// decoded entities.
type PageExtractor interface {
	ExtractPage(ctx context.Context, imageBytes []byte, prompt string) (PageEntities, []byte /*rawJSON*/, error)
}
