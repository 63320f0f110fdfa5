package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/cloudratio/advisor-report-backend/internal/aggregate"
	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/report"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

var errCancelled = errors.New("render job cancelled")

type renderOutcome struct {
	artifacts  []model.RenderArtifact
	waitReport *WaitReport
	cancelled  bool
	err        error
}

// StartWorkers runs the worker pool until the context ends. Each worker
// processes one job at a time; rendering is heavy enough that fan-out within
// a job buys nothing.
func (o *Orchestrator) StartWorkers(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		group.Go(func() error {
			o.runWorker(groupCtx, worker)
			return nil
		})
	}
	return group.Wait()
}

func (o *Orchestrator) runWorker(ctx context.Context, worker int) {
	log.Infof("render worker %d started", worker)
	for {
		select {
		case <-ctx.Done():
			log.Infof("render worker %d stopping", worker)
			return
		case jobID := <-o.queue:
			o.processJob(ctx, jobID)
		}
	}
}

// processJob claims one job and runs it under the timeout policy: the soft
// timeout cancels the render context for a graceful stop, and the hard
// timeout abandons the attempt outright and fails the job.
func (o *Orchestrator) processJob(ctx context.Context, jobID string) {
	job, err := model.GetRenderJobByID(jobID)
	if err != nil {
		log.Errorf("unable to load render job %s: %v", jobID, err)
		return
	}
	if job.State != types.JobStatePending {
		// Cancelled or claimed since it was enqueued.
		return
	}
	if err := job.MarkProcessing(); err != nil {
		if err != model.ErrStaleTransition {
			log.Errorf("unable to claim render job %s: %v", jobID, err)
		}
		return
	}
	defer o.clearCancel(job.ID)
	log.Infof("render job %s processing, attempt %d", job.ID, job.Attempts)

	cfg := config.GetConfig()
	softCtx, cancel := context.WithTimeout(ctx, cfg.RenderSoftTimeout())
	defer cancel()

	outcomes := make(chan *renderOutcome, 1)
	go func() { outcomes <- o.renderJob(softCtx, &job) }()

	select {
	case outcome := <-outcomes:
		o.settle(&job, outcome)
	case <-time.After(cfg.RenderHardTimeout()):
		cancel()
		hardTimeouts.Inc()
		o.failJob(&job, fmt.Sprintf("hard timeout: render exceeded %s", cfg.RenderHardTimeout()))
	}
}

// renderJob runs one attempt end to end: aggregate, render markup, then the
// browser snapshot for the paginated output. Every attempt re-reads the
// aggregation; nothing is carried over from a previous try.
func (o *Orchestrator) renderJob(ctx context.Context, job *model.RenderJob) *renderOutcome {
	if o.cancelRequested(job.ID) {
		return &renderOutcome{cancelled: true}
	}

	window := aggregate.Window{Start: job.WindowStart, End: job.WindowEnd}
	engine := aggregate.GetEngine()
	snapshot, err := engine.Summary(job.RecordSetID, window)
	if err != nil {
		return &renderOutcome{err: err}
	}
	trend, err := engine.Trend(job.RecordSetID, window, types.GranularityWeek)
	if err != nil {
		return &renderOutcome{err: err}
	}

	html, err := report.Render(report.Data{Snapshot: snapshot, Trend: trend})
	if err != nil {
		return &renderOutcome{err: types.Fatal("render report markup", err)}
	}

	outcome := &renderOutcome{}
	if hasKind(job, types.OutputHTML) {
		artifact, err := o.emitter.Emit(ctx, job, types.OutputHTML, html, false)
		if err != nil {
			outcome.err = err
			return outcome
		}
		outcome.artifacts = append(outcome.artifacts, *artifact)
	}

	if hasKind(job, types.OutputPDF) {
		if o.cancelRequested(job.ID) {
			outcome.cancelled = true
			return outcome
		}
		pdf, waitReport, err := o.snapshotPDF(ctx, job, html)
		outcome.waitReport = waitReport
		if err != nil {
			if errors.Is(err, errCancelled) {
				outcome.cancelled = true
			} else {
				outcome.err = err
			}
			return outcome
		}
		if ctx.Err() != nil {
			outcome.err = types.Transient("render pdf", ctx.Err())
			return outcome
		}
		degraded := waitReport != nil && waitReport.Degraded
		if degraded {
			degradedRenders.Inc()
		}
		artifact, err := o.emitter.Emit(ctx, job, types.OutputPDF, pdf, degraded)
		if err != nil {
			outcome.err = err
			return outcome
		}
		outcome.artifacts = append(outcome.artifacts, *artifact)
	}
	return outcome
}

// snapshotPDF checks a browser out of the pool, loads the markup and runs the
// wait phases before printing. A degraded wait still prints; the caller flags
// the artifact.
func (o *Orchestrator) snapshotPDF(ctx context.Context, job *model.RenderJob, html []byte) ([]byte, *WaitReport, error) {
	browser, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer o.pool.Release(browser)

	cfg := config.GetConfig()
	page, cleanup, err := browser.OpenReport(ctx, html, cfg.ViewportWidth, cfg.ViewportHeight)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	waitReport, stopped := RunWaitPhases(ctx, page, DefaultWaitPhases(cfg), func() bool {
		return o.cancelRequested(job.ID)
	})
	if stopped {
		return nil, waitReport, errCancelled
	}

	pdf, err := PrintPDF(ctx, page)
	if err != nil {
		return nil, waitReport, err
	}
	return pdf, waitReport, nil
}

// settle applies the outcome of an attempt to the job row and publishes the
// resulting state.
func (o *Orchestrator) settle(job *model.RenderJob, outcome *renderOutcome) {
	if outcome.cancelled || o.cancelRequested(job.ID) {
		if err := job.FinishCancelled(); err != nil && err != model.ErrStaleTransition {
			log.Errorf("unable to cancel render job %s: %v", job.ID, err)
			return
		}
		jobsCancelled.Inc()
		log.Infof("render job %s cancelled at a phase boundary", job.ID)
		o.publish(job, outcome.artifacts)
		return
	}

	if outcome.err == nil {
		var summary datatypes.JSON
		if outcome.waitReport != nil {
			encoded, err := json.Marshal(outcome.waitReport)
			if err != nil {
				log.Errorf("unable to encode wait summary for job %s: %v", job.ID, err)
			} else {
				summary = datatypes.JSON(encoded)
			}
		}
		if err := job.MarkCompleted(summary); err != nil {
			if err != model.ErrStaleTransition {
				log.Errorf("unable to complete render job %s: %v", job.ID, err)
			}
			return
		}
		jobsCompleted.Inc()
		log.Infof("render job %s completed with %d artifact(s)", job.ID, len(outcome.artifacts))
		o.publish(job, outcome.artifacts)
		return
	}

	cfg := config.GetConfig()
	if types.IsTransient(outcome.err) && job.Attempts < cfg.RenderMaxAttempts {
		if err := job.Requeue(outcome.err.Error()); err != nil {
			if err != model.ErrStaleTransition {
				log.Errorf("unable to requeue render job %s: %v", job.ID, err)
			}
			return
		}
		jobsRetried.Inc()
		log.Warnf("render job %s attempt %d failed, will retry: %v", job.ID, job.Attempts, outcome.err)
		o.publish(job, nil)
		o.scheduleRetry(job.ID, job.Attempts)
		return
	}
	o.failJob(job, outcome.err.Error())
}

func (o *Orchestrator) failJob(job *model.RenderJob, reason string) {
	if err := job.MarkFailed(reason); err != nil && err != model.ErrStaleTransition {
		log.Errorf("unable to mark render job %s failed: %v", job.ID, err)
		return
	}
	jobsFailed.Inc()
	log.Errorf("render job %s failed permanently: %s", job.ID, reason)
	o.publish(job, nil)
}

func hasKind(job *model.RenderJob, kind types.OutputKind) bool {
	for _, k := range job.OutputKinds {
		if k == string(kind) {
			return true
		}
	}
	return false
}
