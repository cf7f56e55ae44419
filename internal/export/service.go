package export

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/schemati/schemati/internal/reconcile"
)

// Service turns a reconciled document result into an XLSX workbook,
// one sheet per entity category.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

type sheetDef struct {
	name    string
	headers []string
	widths  []float64
	rows    func(page reconcile.PageResult) [][]any
}

var sheets = []sheetDef{
	{
		name:    "Title Blocks",
		headers: []string{"Page", "Document Title", "Document Number", "Revision", "Project", "Drawn By", "Checked By", "Approved By", "Date", "Client", "Sheet", "Total Sheets", "Other Fields"},
		widths:  []float64{6, 36, 20, 10, 24, 14, 14, 14, 12, 20, 8, 12, 40},
		rows: func(p reconcile.PageResult) [][]any {
			tb := p.TitleBlock
			if tb == nil {
				return nil
			}
			return [][]any{{
				p.PageNumber, tb.DocumentTitle, tb.DocumentNumber, tb.Revision,
				tb.Project, tb.DrawnBy, tb.CheckedBy, tb.ApprovedBy,
				tb.Date, tb.Client, tb.SheetNumber, tb.TotalSheets,
				joinFields(tb.OtherFields),
			}}
		},
	},
	{
		name:    "Process Lines",
		headers: []string{"Page", "Line Number", "Line Size", "Fluid Type", "Spec Code", "Insulation", "Tracing", "Service"},
		widths:  []float64{6, 28, 12, 12, 12, 12, 12, 28},
		rows: func(p reconcile.PageResult) [][]any {
			var out [][]any
			for _, l := range p.ProcessLines {
				out = append(out, []any{p.PageNumber, l.LineNumber, l.LineSize, l.FluidType, l.SpecCode, l.Insulation, l.Tracing, l.Service})
			}
			return out
		},
	},
	{
		name:    "Instruments",
		headers: []string{"Page", "Tag", "Type", "Location", "Function", "Connected To"},
		widths:  []float64{6, 18, 18, 14, 28, 40},
		rows: func(p reconcile.PageResult) [][]any {
			var out [][]any
			for _, i := range p.Instruments {
				out = append(out, []any{p.PageNumber, i.Tag, i.Type, i.Location, i.Function, strings.Join(i.ConnectedTo, "; ")})
			}
			return out
		},
	},
	{
		name:    "Equipment",
		headers: []string{"Page", "Tag", "Type", "Service", "Capacity", "Connected Lines"},
		widths:  []float64{6, 18, 18, 28, 14, 40},
		rows: func(p reconcile.PageResult) [][]any {
			var out [][]any
			for _, e := range p.Equipment {
				out = append(out, []any{p.PageNumber, e.Tag, e.Type, e.Service, e.Capacity, strings.Join(e.ConnectedLines, "; ")})
			}
			return out
		},
	},
	{
		name:    "Valves",
		headers: []string{"Page", "Tag", "Type", "Operator", "Position", "Connected Lines"},
		widths:  []float64{6, 18, 18, 14, 12, 40},
		rows: func(p reconcile.PageResult) [][]any {
			var out [][]any
			for _, v := range p.Valves {
				out = append(out, []any{p.PageNumber, v.Tag, v.Type, v.Operator, v.Position, strings.Join(v.ConnectedLines, "; ")})
			}
			return out
		},
	},
	{
		name:    "Annotations",
		headers: []string{"Page", "Text", "Location"},
		widths:  []float64{6, 72, 32},
		rows: func(p reconcile.PageResult) [][]any {
			var out [][]any
			for _, a := range p.Annotations {
				out = append(out, []any{p.PageNumber, a.Text, a.LocationDescription})
			}
			return out
		},
	},
	{
		name:    "Warnings",
		headers: []string{"Page", "Warning"},
		widths:  []float64{6, 96},
		rows: func(p reconcile.PageResult) [][]any {
			var out [][]any
			for _, w := range p.WarningsAndNotes {
				out = append(out, []any{p.PageNumber, w})
			}
			return out
		},
	},
	{
		name:    "Failed Pages",
		headers: []string{"Page", "Error"},
		widths:  []float64{6, 96},
		rows:    nil, // filled from result.Failures, not per page
	},
}

// ExportXLSX renders the document result into workbook bytes.
func (s *Service) ExportXLSX(result reconcile.DocumentResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	totalRows := 0

	for si, def := range sheets {
		if si == 0 {
			// excelize always creates "Sheet1"; rename it in place.
			if err := f.SetSheetName("Sheet1", def.name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(def.name); err != nil {
				return nil, fmt.Errorf("create sheet %s: %w", def.name, err)
			}
		}

		for i, h := range def.headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(def.name, cell, h)
		}
		for i, w := range def.widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			_ = f.SetColWidth(def.name, col, col, w)
		}

		row := 2
		writeRow := func(vals []any) {
			for col, v := range vals {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(def.name, cell, v)
			}
			row++
			totalRows++
		}

		if def.rows != nil {
			for _, page := range result.Pages {
				for _, vals := range def.rows(page) {
					writeRow(vals)
				}
			}
		} else {
			for _, fl := range result.Failures {
				writeRow([]any{fl.PageNumber, fl.Error})
			}
		}
	}

	idx, _ := f.GetSheetIndex(sheets[0].name)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"path", result.Path,
		"pages", len(result.Pages),
		"rows", totalRows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func joinFields(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, k+"="+v)
	}
	// deterministic output for tests and diffs
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
