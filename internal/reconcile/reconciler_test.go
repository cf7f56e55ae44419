package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemati/schemati/internal/document"
	"github.com/schemati/schemati/internal/llm"
)

const (
	pageW = 2048
	pageH = 1024
)

// The standard two-column layout: left tile, right tile, 102px shared.
var (
	leftBox  = document.BBox{X0: 0, Y0: 0, X1: 1024, Y1: 1024}
	rightBox = document.BBox{X0: 922, Y0: 0, X1: 2048, Y1: 1024}
)

func newTestReconciler() *Reconciler {
	return NewReconciler(nil, nil)
}

func TestMergeCollapsesTagVariants(t *testing.T) {
	frags := []FragmentEntities{
		{
			Box: leftBox,
			Entities: llm.PageEntities{Instruments: []llm.Instrument{
				{Tag: "PT-101", Type: "pressure transmitter"},
			}},
		},
		{
			Box: rightBox,
			Entities: llm.PageEntities{Instruments: []llm.Instrument{
				{Tag: "PT101", Location: "field"},
			}},
		},
	}

	res := newTestReconciler().MergePage(1, pageW, pageH, frags)
	require.Len(t, res.Instruments, 1)

	got := res.Instruments[0]
	// the right tile's center is closer to the page center, its tag text wins
	assert.Equal(t, "PT101", got.Tag)
	// attributes union across the duplicates
	assert.Equal(t, "pressure transmitter", got.Type)
	assert.Equal(t, "field", got.Location)
}

func TestMergeConflictPrefersCentralFragment(t *testing.T) {
	frags := []FragmentEntities{
		{
			Box: leftBox,
			Entities: llm.PageEntities{Valves: []llm.Valve{
				{Tag: "XV-200", Position: "open"},
			}},
		},
		{
			Box: rightBox,
			Entities: llm.PageEntities{Valves: []llm.Valve{
				{Tag: "XV-200", Position: "closed"},
			}},
		},
	}

	res := newTestReconciler().MergePage(1, pageW, pageH, frags)
	require.Len(t, res.Valves, 1)
	assert.Equal(t, "closed", res.Valves[0].Position)
}

func TestMergeConflictTieBreaksLexicographically(t *testing.T) {
	// identical boxes, so distance ties and the smaller value wins
	frags := []FragmentEntities{
		{
			Box: leftBox,
			Entities: llm.PageEntities{Equipment: []llm.Equipment{
				{Tag: "TK-205", Service: "buffer storage"},
			}},
		},
		{
			Box: leftBox,
			Entities: llm.PageEntities{Equipment: []llm.Equipment{
				{Tag: "TK-205", Service: "acid storage"},
			}},
		},
	}

	res := newTestReconciler().MergePage(1, pageW, pageH, frags)
	require.Len(t, res.Equipment, 1)
	assert.Equal(t, "acid storage", res.Equipment[0].Service)
}

func TestMergeIsIdempotent(t *testing.T) {
	frags := []FragmentEntities{
		{
			Box: leftBox,
			Entities: llm.PageEntities{
				Instruments: []llm.Instrument{
					{Tag: "FT-300", Type: "flow transmitter", ConnectedTo: []string{"4\"-PW-001", "4\"-PW-002"}},
				},
				ProcessLines: []llm.ProcessLine{
					{LineNumber: "4\"-PW-001", LineSize: "4\"", FluidType: "PW"},
				},
			},
		},
	}
	r := newTestReconciler()

	first := r.MergePage(1, pageW, pageH, frags)
	again := r.MergePage(1, pageW, pageH, []FragmentEntities{{
		Box: leftBox,
		Entities: llm.PageEntities{
			Instruments:  first.Instruments,
			ProcessLines: first.ProcessLines,
		},
	}})

	assert.Equal(t, first.Instruments, again.Instruments)
	assert.Equal(t, first.ProcessLines, again.ProcessLines)
}

func TestMergeTitleBlockFields(t *testing.T) {
	frags := []FragmentEntities{
		{
			Box: leftBox,
			Entities: llm.PageEntities{TitleBlock: &llm.TitleBlock{
				DocumentNumber: "PID-001",
				Revision:       "B",
			}},
		},
		{
			Box: rightBox,
			Entities: llm.PageEntities{TitleBlock: &llm.TitleBlock{
				DocumentTitle: "Cooling Water System",
				Revision:      "A",
				OtherFields:   map[string]string{"scale": "NTS"},
			}},
		},
	}

	res := newTestReconciler().MergePage(1, pageW, pageH, frags)
	require.NotNil(t, res.TitleBlock)
	assert.Equal(t, "PID-001", res.TitleBlock.DocumentNumber)
	assert.Equal(t, "Cooling Water System", res.TitleBlock.DocumentTitle)
	// closer fragment wins the revision conflict
	assert.Equal(t, "A", res.TitleBlock.Revision)
	assert.Equal(t, map[string]string{"scale": "NTS"}, res.TitleBlock.OtherFields)
}

func TestAnnotationsDedupeExactOnly(t *testing.T) {
	frags := []FragmentEntities{
		{
			Box: leftBox,
			Entities: llm.PageEntities{Annotations: []llm.Annotation{
				{Text: "SLOPE 1:100", LocationDescription: "bottom left"},
				{Text: "NOTE 3 APPLIES", LocationDescription: "top"},
			}},
		},
		{
			Box: rightBox,
			Entities: llm.PageEntities{Annotations: []llm.Annotation{
				{Text: "SLOPE 1:100", LocationDescription: "bottom left"}, // exact duplicate
				{Text: "SLOPE 1:100", LocationDescription: "bottom right"},
			}},
		},
	}

	res := newTestReconciler().MergePage(1, pageW, pageH, frags)
	require.Len(t, res.Annotations, 3)
	assert.Equal(t, "NOTE 3 APPLIES", res.Annotations[1].Text)
}

func TestWarningsUnionIncludesFragmentNotes(t *testing.T) {
	frags := []FragmentEntities{
		{
			Box:      leftBox,
			Entities: llm.PageEntities{WarningsAndNotes: []string{"tag partially clipped at tile edge"}},
		},
		{
			Box:   rightBox,
			Notes: []string{"extraction failed for fragment (922,0,2048,1024): timeout"},
		},
		{
			Box:      leftBox,
			Entities: llm.PageEntities{WarningsAndNotes: []string{"tag partially clipped at tile edge"}},
		},
	}

	res := newTestReconciler().MergePage(1, pageW, pageH, frags)
	require.Len(t, res.WarningsAndNotes, 2)
	assert.Contains(t, res.WarningsAndNotes, "tag partially clipped at tile edge")
	assert.Contains(t, res.WarningsAndNotes[1], "extraction failed")
}

func TestUntaggedEntitiesNeverMerge(t *testing.T) {
	frags := []FragmentEntities{
		{
			Box: leftBox,
			Entities: llm.PageEntities{Equipment: []llm.Equipment{
				{Tag: "", Type: "tank"},
				{Tag: "  ", Type: "pump"},
			}},
		},
	}

	res := newTestReconciler().MergePage(1, pageW, pageH, frags)
	assert.Len(t, res.Equipment, 2)
}

func TestResultSortedByTag(t *testing.T) {
	frags := []FragmentEntities{
		{
			Box: leftBox,
			Entities: llm.PageEntities{Instruments: []llm.Instrument{
				{Tag: "TT-900"},
				{Tag: "FT-100"},
				{Tag: "PT-500"},
			}},
		},
	}

	res := newTestReconciler().MergePage(7, pageW, pageH, frags)
	require.Len(t, res.Instruments, 3)
	assert.Equal(t, 7, res.PageNumber)
	assert.Equal(t, "FT-100", res.Instruments[0].Tag)
	assert.Equal(t, "PT-500", res.Instruments[1].Tag)
	assert.Equal(t, "TT-900", res.Instruments[2].Tag)
}

func TestMergeEmptyFragments(t *testing.T) {
	res := newTestReconciler().MergePage(1, pageW, pageH, nil)
	assert.Equal(t, 1, res.PageNumber)
	assert.Nil(t, res.TitleBlock)
	assert.Empty(t, res.Instruments)
}
