// Package extraction coordinates the document pipeline with job
// bookkeeping: submit a path, run it, persist the result.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/schemati/schemati/constants"
	"github.com/schemati/schemati/internal/async"
	"github.com/schemati/schemati/internal/common"
	"github.com/schemati/schemati/internal/pipeline"
	"github.com/schemati/schemati/internal/reconcile"
	"github.com/schemati/schemati/internal/store"
)

// ErrInFlight is returned by Submit when the path already has a queued
// or running job. The watcher fires multiple events per file drop;
// re-submitting while the first job is active would double the work.
var ErrInFlight = errors.New("job already in flight for path")

type Service struct {
	store     *store.Store
	processor *pipeline.Processor
	logger    *slog.Logger
}

func NewService(st *store.Store, proc *pipeline.Processor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, processor: proc, logger: logger}
}

// Submit registers a queued job for path and returns it. The caller
// enqueues the returned job on the worker queue. A path whose most
// recent job is still queued or running is rejected with ErrInFlight;
// completed and failed paths may be resubmitted.
func (s *Service) Submit(ctx context.Context, path string) (async.Job, error) {
	prev, err := s.store.FindJobByPath(ctx, path)
	switch {
	case err == nil:
		if prev.Status == constants.JobStatusQueued || prev.Status == constants.JobStatusRunning {
			return async.Job{}, fmt.Errorf("%w: %s (job %s is %s)", ErrInFlight, path, prev.ID, prev.Status)
		}
	case !errors.Is(err, common.ErrNotFound):
		return async.Job{}, err
	}

	job, err := s.store.CreateJob(ctx, path)
	if err != nil {
		return async.Job{}, err
	}
	return async.Job{
		JobID:       job.ID,
		Path:        job.Path,
		SubmittedAt: job.CreatedAt,
	}, nil
}

// HandleJob runs one job to completion. Only a document that cannot be
// loaded at all fails the job; per-page failures ride along in the
// stored result.
func (s *Service) HandleJob(ctx context.Context, job async.Job) error {
	start := time.Now()

	if err := s.store.SetStatus(ctx, job.JobID, constants.JobStatusRunning, ""); err != nil {
		return err
	}

	result, err := s.processor.ProcessDocument(ctx, job.Path)
	if err != nil {
		if serr := s.store.SetStatus(ctx, job.JobID, constants.JobStatusFailed, err.Error()); serr != nil {
			s.logger.Error("extraction.status_update_failed", "job_id", job.JobID, "error", serr)
		}
		return err
	}

	if err := s.store.SaveResult(ctx, job.JobID, result); err != nil {
		if serr := s.store.SetStatus(ctx, job.JobID, constants.JobStatusFailed, err.Error()); serr != nil {
			s.logger.Error("extraction.status_update_failed", "job_id", job.JobID, "error", serr)
		}
		return err
	}

	s.logger.Info("extraction.job_ok",
		"job_id", job.JobID,
		"path", job.Path,
		"pages", len(result.Pages),
		"page_failures", len(result.Failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Result fetches the stored result for a job.
func (s *Service) Result(ctx context.Context, jobID string) (reconcile.DocumentResult, error) {
	return s.store.GetResult(ctx, jobID)
}
