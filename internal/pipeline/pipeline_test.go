package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemati/schemati/internal/common"
	"github.com/schemati/schemati/internal/document"
	"github.com/schemati/schemati/internal/fragment"
	"github.com/schemati/schemati/internal/llm"
	"github.com/schemati/schemati/internal/reconcile"
)

// fakeExtractor returns canned entities per image payload and fails for
// payloads registered as broken.
type fakeExtractor struct {
	mu       sync.Mutex
	entities map[string]llm.PageEntities // keyed by payload string
	broken   map[string]error
	calls    int
}

func (f *fakeExtractor) ExtractPage(_ context.Context, imageBytes []byte, _ string) (llm.PageEntities, []byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	key := string(imageBytes)
	if err, ok := f.broken[key]; ok {
		return llm.PageEntities{}, nil, err
	}
	if pe, ok := f.entities[key]; ok {
		return pe, nil, nil
	}
	return llm.PageEntities{}, nil, nil
}

func pngPage(t *testing.T, number, size int) *document.Page {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, size, size))))
	return document.NewPage(number, buf.Bytes())
}

func instruments(tags ...string) llm.PageEntities {
	pe := llm.PageEntities{}
	for _, tag := range tags {
		pe.Instruments = append(pe.Instruments, llm.Instrument{Tag: tag})
	}
	return pe
}

func TestExtractAllContainsFragmentFailure(t *testing.T) {
	frags := []document.PageFragment{
		{PageNumber: 1, Content: []byte("a"), Box: document.BBox{X1: 10, Y1: 10}},
		{PageNumber: 1, Content: []byte("b"), Box: document.BBox{X0: 10, X1: 20, Y1: 10}},
		{PageNumber: 1, Content: []byte("c"), Box: document.BBox{X0: 20, X1: 30, Y1: 10}},
	}
	ext := &fakeExtractor{
		entities: map[string]llm.PageEntities{
			"a": instruments("PT-101"),
			"c": instruments("FT-300"),
		},
		broken: map[string]error{
			"b": common.NewExtractionError("model call", errors.New("timeout")),
		},
	}

	fe := NewFragmentExtractor(ext, "prompt", 2, nil)
	results := fe.ExtractAll(context.Background(), frags)

	require.Len(t, results, 3)
	// results stay in fragment order regardless of completion order
	assert.Equal(t, "PT-101", results[0].Entities.Instruments[0].Tag)
	assert.Equal(t, "FT-300", results[2].Entities.Instruments[0].Tag)

	failed := results[1]
	assert.True(t, failed.Entities.Empty())
	require.Len(t, failed.Notes, 1)
	assert.Contains(t, failed.Notes[0], "extraction failed")
	assert.Equal(t, frags[1].Box, failed.Box)

	assert.Equal(t, 3, ext.calls)
	assert.False(t, AllFailed(results))
}

func TestAllFailed(t *testing.T) {
	ok := reconcile.FragmentEntities{Entities: instruments("PT-1")}
	bad := reconcile.FragmentEntities{Notes: []string{"extraction failed"}}

	assert.False(t, AllFailed(nil))
	assert.False(t, AllFailed([]reconcile.FragmentEntities{ok}))
	assert.False(t, AllFailed([]reconcile.FragmentEntities{bad, ok}))
	assert.True(t, AllFailed([]reconcile.FragmentEntities{bad, bad}))
}

func newPagePipeline(t *testing.T, ext llm.PageExtractor) *PagePipeline {
	t.Helper()
	tiler, err := fragment.NewTiler(fragment.Config{TileWidth: 1024, TileHeight: 1024}, nil)
	require.NoError(t, err)
	fe := NewFragmentExtractor(ext, "prompt", 2, nil)
	return NewPagePipeline(tiler, fe, reconcile.NewReconciler(nil, nil), nil)
}

func TestPagePipelineHappyPath(t *testing.T) {
	page := pngPage(t, 1, 32)
	ext := &fakeExtractor{
		entities: map[string]llm.PageEntities{
			string(page.Content): instruments("PT-101"),
		},
	}

	res, err := newPagePipeline(t, ext).Run(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PageNumber)
	require.Len(t, res.Instruments, 1)
	assert.Equal(t, "PT-101", res.Instruments[0].Tag)
}

func TestPagePipelineFailsWhenEveryFragmentFails(t *testing.T) {
	page := pngPage(t, 2, 32)
	ext := &fakeExtractor{
		broken: map[string]error{
			string(page.Content): errors.New("boom"),
		},
	}

	_, err := newPagePipeline(t, ext).Run(context.Background(), page)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPageProcessing)
}

func TestPagePipelineUndecodablePage(t *testing.T) {
	page := document.NewPage(1, []byte("garbage"))

	_, err := newPagePipeline(t, &fakeExtractor{}).Run(context.Background(), page)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPageProcessing)
}

// fakeLoader serves a prebuilt document or an error.
type fakeLoader struct {
	doc *document.Document
	err error
}

func (f *fakeLoader) LoadDocument(context.Context, string) (*document.Document, error) {
	return f.doc, f.err
}

func TestProcessDocumentIsolatesPageFailures(t *testing.T) {
	p1 := pngPage(t, 1, 16)
	p2 := pngPage(t, 2, 24)
	p3 := pngPage(t, 3, 32)
	loader := &fakeLoader{doc: &document.Document{
		Path:  "unit.pdf",
		Pages: []*document.Page{p1, p2, p3},
	}}
	ext := &fakeExtractor{
		entities: map[string]llm.PageEntities{
			string(p1.Content): instruments("PT-101"),
			string(p3.Content): instruments("FT-300"),
		},
		broken: map[string]error{
			string(p2.Content): errors.New("model unavailable"),
		},
	}

	proc := NewProcessor(loader, newPagePipeline(t, ext), 3, nil)
	result, err := proc.ProcessDocument(context.Background(), "unit.pdf")
	require.NoError(t, err)

	require.Len(t, result.Pages, 2)
	assert.Equal(t, 1, result.Pages[0].PageNumber)
	assert.Equal(t, 3, result.Pages[1].PageNumber)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].PageNumber)
	assert.Contains(t, result.Failures[0].Error, "extraction failed")
}

func TestProcessDocumentLoadFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("pdftoppm: not found")}
	proc := NewProcessor(loader, newPagePipeline(t, &fakeExtractor{}), 2, nil)

	_, err := proc.ProcessDocument(context.Background(), "missing.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.pdf")
}
