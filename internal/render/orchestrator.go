package render

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/cloudratio/advisor-report-backend/internal/aggregate"
	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/logging"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/storage"
	"github.com/cloudratio/advisor-report-backend/internal/types"
	"github.com/cloudratio/advisor-report-backend/internal/utils"
)

var log *logrus.Logger = logging.GetLogger()

// ErrJobFinished means a cancel arrived after the job already reached a
// terminal state.
var ErrJobFinished = errors.New("render job already finished")

const queueDepth = 256

// Orchestrator owns the render job state machine: it creates jobs, feeds the
// worker pool, applies the retry policy and publishes state events. All job
// row transitions go through it or its workers.
type Orchestrator struct {
	queue   chan string
	pool    *BrowserPool
	emitter *Emitter

	notifyMu sync.Mutex
	notify   func(types.ReportEventMsg)

	cancelMu  sync.Mutex
	cancelled map[string]struct{}
}

var orchestrator *Orchestrator = nil

func GetOrchestrator() *Orchestrator {
	if orchestrator == nil {
		cfg := config.GetConfig()
		orchestrator = NewOrchestrator(
			NewBrowserPool(cfg.BrowserPoolSize, cfg.BrowserBinPath, cfg.BrowserHeadless),
			NewEmitter(storage.GetStore()),
		)
	}
	return orchestrator
}

func NewOrchestrator(pool *BrowserPool, emitter *Emitter) *Orchestrator {
	return &Orchestrator{
		queue:     make(chan string, queueDepth),
		pool:      pool,
		emitter:   emitter,
		cancelled: make(map[string]struct{}),
	}
}

// SetNotify installs the callback that publishes job state events, typically
// onto the reports topic. Jobs run fine without one.
func (o *Orchestrator) SetNotify(notify func(types.ReportEventMsg)) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	o.notify = notify
}

// normalizeKinds dedupes and orders the requested outputs so submissions
// asking for the same set compare equal in the active-job lookup. An empty
// request means both outputs.
func normalizeKinds(kinds []types.OutputKind) pq.StringArray {
	if len(kinds) == 0 {
		kinds = []types.OutputKind{types.OutputHTML, types.OutputPDF}
	}
	values := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		values = append(values, string(kind))
	}
	values = utils.Unique(values)
	sort.Strings(values)
	return pq.StringArray(values)
}

// Submit creates a pending job for the record set and enqueues it. While a
// job for the same record set and output kinds is still live, the duplicate
// submission attaches to it instead: the caller gets the live job back with
// attached=true and polls the same job id.
func (o *Orchestrator) Submit(recordSetID string, kinds []types.OutputKind, window aggregate.Window) (*model.RenderJob, bool, error) {
	normalized := normalizeKinds(kinds)

	if _, err := model.GetRecordSetByID(recordSetID); err != nil {
		return nil, false, fmt.Errorf("unknown record set %s: %v", recordSetID, err)
	}

	existing, found, err := model.GetActiveRenderJob(recordSetID, normalized)
	if err != nil {
		return nil, false, err
	}
	if found {
		jobsAttached.Inc()
		log.Infof("render submission attached to active job %s", existing.ID)
		return &existing, true, nil
	}

	job := &model.RenderJob{
		ID:          uuid.New().String(),
		RecordSetID: recordSetID,
		OutputKinds: normalized,
		State:       types.JobStatePending,
		WindowStart: window.Start,
		WindowEnd:   window.End,
	}
	if err := job.CreateRenderJob(); err != nil {
		return nil, false, err
	}
	if !o.enqueue(job.ID) {
		// Full queue is backpressure. Withdraw the job so the caller's retry
		// does not pile up pending rows nothing will ever drain.
		if cancelErr := job.MarkCancelled(); cancelErr != nil && cancelErr != model.ErrStaleTransition {
			log.Errorf("unable to withdraw render job %s from full queue: %v", job.ID, cancelErr)
		}
		return nil, false, types.Transient("enqueue render job", fmt.Errorf("render queue is full"))
	}
	jobsSubmitted.Inc()
	log.Infof("render job %s submitted for record set %s (%v)", job.ID, recordSetID, normalized)
	return job, false, nil
}

// Cancel withdraws a job. A pending job leaves the queue with no side
// effects. A processing job is only flagged here; the worker lands the cancel
// at the next phase boundary.
func (o *Orchestrator) Cancel(jobID string) error {
	job, err := model.GetRenderJobByID(jobID)
	if err != nil {
		return err
	}
	switch job.State {
	case types.JobStatePending:
		if err := job.MarkCancelled(); err != nil {
			if err == model.ErrStaleTransition {
				// A worker claimed it in between, take the cooperative path.
				o.requestCancel(jobID)
				return nil
			}
			return err
		}
		jobsCancelled.Inc()
		o.publish(&job, nil)
		return nil
	case types.JobStateProcessing:
		o.requestCancel(jobID)
		return nil
	default:
		return fmt.Errorf("render job %s is already %s: %w", jobID, job.State, ErrJobFinished)
	}
}

// Recover requeues work found in the database at startup: pending jobs that
// never reached the in-memory queue, and processing jobs orphaned by a
// crashed worker.
func (o *Orchestrator) Recover() error {
	cfg := config.GetConfig()

	stale, err := model.GetStaleProcessingJobs(time.Now().UTC().Add(-cfg.RenderHardTimeout()))
	if err != nil {
		return err
	}
	for i := range stale {
		job := &stale[i]
		if job.Attempts >= cfg.RenderMaxAttempts {
			o.failJob(job, fmt.Sprintf("interrupted by restart with all %d attempts used", job.Attempts))
			continue
		}
		if err := job.Requeue("interrupted by restart"); err != nil && err != model.ErrStaleTransition {
			log.Errorf("unable to requeue stale render job %s: %v", job.ID, err)
		}
	}

	pending, err := model.GetPendingRenderJobs()
	if err != nil {
		return err
	}
	requeued := 0
	for i := range pending {
		if o.enqueue(pending[i].ID) {
			requeued++
		} else {
			log.Warnf("render queue full during recovery, job %s stays pending", pending[i].ID)
		}
	}
	if requeued > 0 {
		log.Infof("requeued %d render job(s) after restart", requeued)
	}
	return nil
}

// Shutdown closes the browser pool. Call it after the workers have stopped.
func (o *Orchestrator) Shutdown() {
	o.pool.Close()
}

func (o *Orchestrator) enqueue(jobID string) bool {
	select {
	case o.queue <- jobID:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) scheduleRetry(jobID string, attempt int) {
	cfg := config.GetConfig()
	delay := computeBackoff(attempt, cfg.RenderRetryBase(), cfg.RenderRetryCap())
	log.Infof("render job %s retry scheduled in %s (attempt %d used)", jobID, delay, attempt)
	o.enqueueAfter(jobID, delay, cfg.RenderRetryBase())
}

func (o *Orchestrator) enqueueAfter(jobID string, delay time.Duration, retryDelay time.Duration) {
	time.AfterFunc(delay, func() {
		if !o.enqueue(jobID) {
			log.Warnf("render queue full, retry of job %s pushed out by %s", jobID, retryDelay)
			o.enqueueAfter(jobID, retryDelay, retryDelay)
		}
	})
}

// computeBackoff doubles the base for every attempt already used, capped at
// limit.
func computeBackoff(attempt int, base time.Duration, limit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	if backoff > limit {
		backoff = limit
	}
	return backoff
}

func (o *Orchestrator) requestCancel(jobID string) {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	o.cancelled[jobID] = struct{}{}
}

func (o *Orchestrator) cancelRequested(jobID string) bool {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	_, ok := o.cancelled[jobID]
	return ok
}

func (o *Orchestrator) clearCancel(jobID string) {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	delete(o.cancelled, jobID)
}

func (o *Orchestrator) publish(job *model.RenderJob, artifacts []model.RenderArtifact) {
	o.notifyMu.Lock()
	notify := o.notify
	o.notifyMu.Unlock()
	if notify == nil {
		return
	}
	msg := types.ReportEventMsg{
		Job_id:        job.ID,
		Record_set_id: job.RecordSetID,
		State:         string(job.State),
		Attempts:      job.Attempts,
	}
	for _, artifact := range artifacts {
		msg.Artifacts = append(msg.Artifacts, types.ArtifactRef{
			Kind:         string(artifact.Kind),
			Storage_key:  artifact.StorageKey,
			Content_hash: artifact.ContentHash,
			Byte_size:    artifact.ByteSize,
			Degraded:     artifact.Degraded,
		})
	}
	notify(msg)
}
