package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schemati/schemati/internal/common"
	"github.com/schemati/schemati/internal/document"
	"github.com/schemati/schemati/internal/fragment"
	"github.com/schemati/schemati/internal/reconcile"
)

// PagePipeline runs one page through tiler -> filter -> extractor ->
// reconciler.
type PagePipeline struct {
	tiler      *fragment.Tiler
	extractor  *FragmentExtractor
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

// NewPagePipeline builds the per-page pipeline. Tiler construction has
// already validated the fragment configuration, so this cannot fail.
func NewPagePipeline(tiler *fragment.Tiler, extractor *FragmentExtractor, reconciler *reconcile.Reconciler, logger *slog.Logger) *PagePipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &PagePipeline{
		tiler:      tiler,
		extractor:  extractor,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Run produces the reconciled result for one page. Errors returned here
// are page-level (undecodable image, every fragment failed); the caller
// records them as per-page failures and moves on.
func (p *PagePipeline) Run(ctx context.Context, page *document.Page) (reconcile.PageResult, error) {
	frags, err := p.tiler.TilePage(page)
	if err != nil {
		return reconcile.PageResult{}, err
	}
	if len(frags) == 0 {
		// Every tile was filtered as blank; an empty page result is a
		// valid outcome, not an error.
		p.logger.Info("page.blank", "page", page.Number)
		return reconcile.PageResult{PageNumber: page.Number}, nil
	}

	results := p.extractor.ExtractAll(ctx, frags)
	if AllFailed(results) {
		return reconcile.PageResult{}, common.NewPageProcessingError(
			fmt.Sprintf("page %d: extraction failed for all %d fragments", page.Number, len(results)), nil)
	}

	img, err := page.Image()
	if err != nil {
		return reconcile.PageResult{}, common.NewPageProcessingError(fmt.Sprintf("page %d", page.Number), err)
	}
	b := img.Bounds()
	return p.reconciler.MergePage(page.Number, b.Dx(), b.Dy(), results), nil
}
