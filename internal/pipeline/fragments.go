package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schemati/schemati/internal/document"
	"github.com/schemati/schemati/internal/llm"
	"github.com/schemati/schemati/internal/reconcile"
)

// FragmentExtractor invokes the external extraction function once per
// retained fragment. Calls for the same page run concurrently up to the
// worker limit; completions are unordered, so each call writes only its
// own slot and the join happens before anything downstream sees the
// results. A failed call becomes an empty bundle plus a note — it never
// aborts sibling fragments.
type FragmentExtractor struct {
	extractor llm.PageExtractor
	prompt    string
	workers   int
	logger    *slog.Logger
}

func NewFragmentExtractor(extractor llm.PageExtractor, prompt string, workers int, logger *slog.Logger) *FragmentExtractor {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FragmentExtractor{
		extractor: extractor,
		prompt:    prompt,
		workers:   workers,
		logger:    logger,
	}
}

// ExtractAll runs extraction for every fragment and joins the results
// in fragment order.
func (fe *FragmentExtractor) ExtractAll(ctx context.Context, frags []document.PageFragment) []reconcile.FragmentEntities {
	start := time.Now()

	results := make([]reconcile.FragmentEntities, len(frags))
	sem := make(chan struct{}, fe.workers)
	var wg sync.WaitGroup

	for i, frag := range frags {
		wg.Add(1)
		go func(i int, frag document.PageFragment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entities, _, err := fe.extractor.ExtractPage(ctx, frag.Content, fe.prompt)
			if err != nil {
				fe.logger.Warn("fragments.extract_failed",
					"page", frag.PageNumber,
					"box", frag.Box.String(),
					"error", err,
				)
				results[i] = reconcile.FragmentEntities{
					Box:   frag.Box,
					Notes: []string{fmt.Sprintf("extraction failed for fragment %s: %v", frag.Box, err)},
				}
				return
			}
			results[i] = reconcile.FragmentEntities{Box: frag.Box, Entities: entities}
		}(i, frag)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if len(r.Notes) > 0 && r.Entities.Empty() {
			failed++
		}
	}
	fe.logger.Info("fragments.ok",
		"fragments", len(frags),
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results
}

// AllFailed reports whether every fragment call failed, which makes the
// page a failure rather than an empty success.
func AllFailed(results []reconcile.FragmentEntities) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if len(r.Notes) == 0 || !r.Entities.Empty() {
			return false
		}
	}
	return true
}
