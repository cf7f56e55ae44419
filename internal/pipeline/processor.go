package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schemati/schemati/internal/document"
	"github.com/schemati/schemati/internal/reconcile"
)

// DocumentLoader abstracts page rendering so the processor can be
// tested without pdftoppm on the machine.
type DocumentLoader interface {
	LoadDocument(ctx context.Context, path string) (*document.Document, error)
}

// Processor drives a whole document: render pages, run each page
// through the page pipeline, assemble the document result. A failed
// page becomes a failure record; only a failed load fails the job.
type Processor struct {
	loader  DocumentLoader
	page    *PagePipeline
	workers int
	logger  *slog.Logger
}

func NewProcessor(loader DocumentLoader, page *PagePipeline, workers int, logger *slog.Logger) *Processor {
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		loader:  loader,
		page:    page,
		workers: workers,
		logger:  logger,
	}
}

// ProcessDocument processes every page of the document at path. Pages
// run concurrently up to the worker limit; each worker writes only its
// own slot, and results are assembled in page order after the join.
func (p *Processor) ProcessDocument(ctx context.Context, path string) (reconcile.DocumentResult, error) {
	start := time.Now()
	p.logger.Info("processor.start", "path", path)

	doc, err := p.loader.LoadDocument(ctx, path)
	if err != nil {
		p.logger.Error("processor.load_failed", "path", path, "error", err)
		return reconcile.DocumentResult{}, fmt.Errorf("load document %s: %w", path, err)
	}

	type slot struct {
		result  reconcile.PageResult
		failure *reconcile.PageFailure
	}
	slots := make([]slot, len(doc.Pages))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, pg := range doc.Pages {
		wg.Add(1)
		go func(i int, pg *document.Page) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := p.page.Run(ctx, pg)
			if err != nil {
				p.logger.Warn("processor.page_failed",
					"path", path,
					"page", pg.Number,
					"error", err,
				)
				slots[i] = slot{failure: &reconcile.PageFailure{
					PageNumber: pg.Number,
					Error:      err.Error(),
				}}
				return
			}
			slots[i] = slot{result: res}
		}(i, pg)
	}
	wg.Wait()

	out := reconcile.DocumentResult{Path: path}
	for _, s := range slots {
		if s.failure != nil {
			out.Failures = append(out.Failures, *s.failure)
			continue
		}
		out.Pages = append(out.Pages, s.result)
	}

	p.logger.Info("processor.ok",
		"path", path,
		"pages", len(out.Pages),
		"failures", len(out.Failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
