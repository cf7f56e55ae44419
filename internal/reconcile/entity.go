package reconcile

import (
	"strings"

	"github.com/schemati/schemati/constants"
	"github.com/schemati/schemati/internal/document"
	"github.com/schemati/schemati/internal/llm"
)

// listSep joins list-valued attributes (connected tags/lines) into a
// single attribute string so the merge stays a flat key/value union.
const listSep = "; "

// Entity is the tagged-variant form every extraction category is folded
// into for reconciliation: a kind tag, the tag text (may be empty for
// annotations), a flat attribute map, and the bounding box of the
// fragment it was observed in.
type Entity struct {
	Kind   constants.EntityKind
	Tag    string
	Attrs  map[string]string
	Source document.BBox
}

// titleBlockOtherPrefix namespaces free-form title block fields so they
// cannot collide with the fixed ones.
const titleBlockOtherPrefix = "other_fields."

// Flatten converts one fragment's raw extraction bundle into entities
// tagged with the fragment's bounding box. Empty attribute values are
// dropped here so that the merge only ever sees observed values.
func Flatten(pe llm.PageEntities, src document.BBox) []Entity {
	var out []Entity

	for _, l := range pe.ProcessLines {
		out = append(out, Entity{
			Kind: constants.KindProcessLine,
			Tag:  l.LineNumber,
			Attrs: attrs(map[string]string{
				"line_size":  l.LineSize,
				"fluid_type": l.FluidType,
				"spec_code":  l.SpecCode,
				"insulation": l.Insulation,
				"tracing":    l.Tracing,
				"service":    l.Service,
			}),
			Source: src,
		})
	}
	for _, i := range pe.Instruments {
		out = append(out, Entity{
			Kind: constants.KindInstrument,
			Tag:  i.Tag,
			Attrs: attrs(map[string]string{
				"type":         i.Type,
				"location":     i.Location,
				"function":     i.Function,
				"connected_to": strings.Join(i.ConnectedTo, listSep),
			}),
			Source: src,
		})
	}
	for _, e := range pe.Equipment {
		out = append(out, Entity{
			Kind: constants.KindEquipment,
			Tag:  e.Tag,
			Attrs: attrs(map[string]string{
				"type":            e.Type,
				"service":         e.Service,
				"capacity":        e.Capacity,
				"connected_lines": strings.Join(e.ConnectedLines, listSep),
			}),
			Source: src,
		})
	}
	for _, v := range pe.Valves {
		out = append(out, Entity{
			Kind: constants.KindValve,
			Tag:  v.Tag,
			Attrs: attrs(map[string]string{
				"type":            v.Type,
				"operator":        v.Operator,
				"position":        v.Position,
				"connected_lines": strings.Join(v.ConnectedLines, listSep),
			}),
			Source: src,
		})
	}
	for _, a := range pe.Annotations {
		out = append(out, Entity{
			Kind: constants.KindAnnotation,
			Attrs: attrs(map[string]string{
				"text":                 a.Text,
				"location_description": a.LocationDescription,
			}),
			Source: src,
		})
	}
	if tb := pe.TitleBlock; tb != nil {
		for field, value := range map[string]string{
			"document_title":  tb.DocumentTitle,
			"document_number": tb.DocumentNumber,
			"revision":        tb.Revision,
			"project":         tb.Project,
			"drawn_by":        tb.DrawnBy,
			"checked_by":      tb.CheckedBy,
			"approved_by":     tb.ApprovedBy,
			"date":            tb.Date,
			"client":          tb.Client,
			"sheet_number":    tb.SheetNumber,
			"total_sheets":    tb.TotalSheets,
		} {
			if value == "" {
				continue
			}
			out = append(out, Entity{
				Kind:   constants.KindTitleBlockField,
				Tag:    field,
				Attrs:  map[string]string{"value": value},
				Source: src,
			})
		}
		for name, value := range tb.OtherFields {
			if value == "" {
				continue
			}
			out = append(out, Entity{
				Kind:   constants.KindTitleBlockField,
				Tag:    titleBlockOtherPrefix + name,
				Attrs:  map[string]string{"value": value},
				Source: src,
			})
		}
	}
	return out
}

func attrs(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

// assemble* rebuild the typed wire shapes from merged entities.

func assembleProcessLine(e Entity) llm.ProcessLine {
	return llm.ProcessLine{
		LineNumber: e.Tag,
		LineSize:   e.Attrs["line_size"],
		FluidType:  e.Attrs["fluid_type"],
		SpecCode:   e.Attrs["spec_code"],
		Insulation: e.Attrs["insulation"],
		Tracing:    e.Attrs["tracing"],
		Service:    e.Attrs["service"],
	}
}

func assembleInstrument(e Entity) llm.Instrument {
	return llm.Instrument{
		Tag:         e.Tag,
		Type:        e.Attrs["type"],
		Location:    e.Attrs["location"],
		Function:    e.Attrs["function"],
		ConnectedTo: splitList(e.Attrs["connected_to"]),
	}
}

func assembleEquipment(e Entity) llm.Equipment {
	return llm.Equipment{
		Tag:            e.Tag,
		Type:           e.Attrs["type"],
		Service:        e.Attrs["service"],
		Capacity:       e.Attrs["capacity"],
		ConnectedLines: splitList(e.Attrs["connected_lines"]),
	}
}

func assembleValve(e Entity) llm.Valve {
	return llm.Valve{
		Tag:            e.Tag,
		Type:           e.Attrs["type"],
		Operator:       e.Attrs["operator"],
		Position:       e.Attrs["position"],
		ConnectedLines: splitList(e.Attrs["connected_lines"]),
	}
}

// assembleTitleBlock folds merged title block field entities back into
// the fixed wire shape.
func assembleTitleBlock(fields []Entity) *llm.TitleBlock {
	if len(fields) == 0 {
		return nil
	}
	tb := &llm.TitleBlock{}
	for _, e := range fields {
		value := e.Attrs["value"]
		if strings.HasPrefix(e.Tag, titleBlockOtherPrefix) {
			if tb.OtherFields == nil {
				tb.OtherFields = make(map[string]string)
			}
			tb.OtherFields[strings.TrimPrefix(e.Tag, titleBlockOtherPrefix)] = value
			continue
		}
		switch e.Tag {
		case "document_title":
			tb.DocumentTitle = value
		case "document_number":
			tb.DocumentNumber = value
		case "revision":
			tb.Revision = value
		case "project":
			tb.Project = value
		case "drawn_by":
			tb.DrawnBy = value
		case "checked_by":
			tb.CheckedBy = value
		case "approved_by":
			tb.ApprovedBy = value
		case "date":
			tb.Date = value
		case "client":
			tb.Client = value
		case "sheet_number":
			tb.SheetNumber = value
		case "total_sheets":
			tb.TotalSheets = value
		}
	}
	return tb
}
