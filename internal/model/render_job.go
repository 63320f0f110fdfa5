package model

import (
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	database "github.com/cloudratio/advisor-report-backend/internal/db"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

// ErrStaleTransition means the job row was not in the state the transition
// requires, usually because another worker or a cancel got there first.
var ErrStaleTransition = errors.New("render job state changed underneath")

type RenderJob struct {
	ID            string         `gorm:"type:uuid;primaryKey"`
	RecordSetID   string         `gorm:"type:uuid;index"`
	RecordSet     RecordSet      `gorm:"foreignKey:RecordSetID"`
	OutputKinds   pq.StringArray `gorm:"type:text[]"`
	State         types.JobState `gorm:"type:text;index"`
	Attempts      int            `gorm:"not null;default:0"`
	FailureReason string         `gorm:"type:text"`
	WindowStart   time.Time      `gorm:"type:timestamp"`
	WindowEnd     time.Time      `gorm:"type:timestamp"`
	WaitSummary   datatypes.JSON
	CreatedAt     time.Time
	StartedAt     *time.Time       `gorm:"type:timestamp"`
	CompletedAt   *time.Time       `gorm:"type:timestamp"`
	Artifacts     []RenderArtifact `gorm:"foreignKey:JobID"`
}

func (j *RenderJob) CreateRenderJob() error {
	db := database.GetDB()
	result := db.Create(j)
	if result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	return nil
}

// MarkProcessing claims a pending job for a worker. The guard on the current
// state keeps a cancelled or already-claimed job from being picked up twice.
func (j *RenderJob) MarkProcessing() error {
	db := database.GetDB()
	now := time.Now().UTC()
	result := db.Model(&RenderJob{}).
		Where("id = ? AND state = ?", j.ID, types.JobStatePending).
		Updates(map[string]interface{}{
			"state":      types.JobStateProcessing,
			"started_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	j.State = types.JobStateProcessing
	j.StartedAt = &now
	j.Attempts++
	return nil
}

func (j *RenderJob) MarkCompleted(waitSummary datatypes.JSON) error {
	return j.finish(types.JobStateCompleted, "", waitSummary)
}

func (j *RenderJob) MarkFailed(reason string) error {
	return j.finish(types.JobStateFailed, reason, nil)
}

func (j *RenderJob) finish(state types.JobState, reason string, waitSummary datatypes.JSON) error {
	db := database.GetDB()
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"state":          state,
		"failure_reason": reason,
		"completed_at":   now,
	}
	if waitSummary != nil {
		updates["wait_summary"] = waitSummary
	}
	result := db.Model(&RenderJob{}).
		Where("id = ? AND state = ?", j.ID, types.JobStateProcessing).
		Updates(updates)
	if result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	j.State = state
	j.FailureReason = reason
	j.CompletedAt = &now
	return nil
}

// Requeue puts a processing job back to pending for a retry attempt. This is
// the only legal path from processing back to pending.
func (j *RenderJob) Requeue(reason string) error {
	db := database.GetDB()
	result := db.Model(&RenderJob{}).
		Where("id = ? AND state = ?", j.ID, types.JobStateProcessing).
		Updates(map[string]interface{}{
			"state":          types.JobStatePending,
			"failure_reason": reason,
		})
	if result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	j.State = types.JobStatePending
	j.FailureReason = reason
	return nil
}

// MarkCancelled takes a pending job out of the queue before it has side
// effects in flight.
func (j *RenderJob) MarkCancelled() error {
	return j.cancel(types.JobStatePending)
}

// FinishCancelled lands a cooperative cancel of a processing job. Workers call
// this at a phase boundary after observing the cancel request.
func (j *RenderJob) FinishCancelled() error {
	return j.cancel(types.JobStateProcessing)
}

func (j *RenderJob) cancel(from types.JobState) error {
	db := database.GetDB()
	now := time.Now().UTC()
	result := db.Model(&RenderJob{}).
		Where("id = ? AND state = ?", j.ID, from).
		Updates(map[string]interface{}{
			"state":        types.JobStateCancelled,
			"completed_at": now,
		})
	if result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	j.State = types.JobStateCancelled
	j.CompletedAt = &now
	return nil
}

func GetRenderJobByID(id string) (RenderJob, error) {
	db := database.GetDB()
	var job RenderJob
	result := db.Preload("Artifacts").First(&job, "id = ?", id)
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			dbError.Inc()
		}
		return job, result.Error
	}
	return job, nil
}

// GetActiveRenderJob finds a live job for the record set with the same
// normalized output kinds, so duplicate submissions attach to it instead of
// spawning a second render.
func GetActiveRenderJob(recordSetID string, outputKinds pq.StringArray) (RenderJob, bool, error) {
	db := database.GetDB()
	var job RenderJob
	result := db.Where("record_set_id = ? AND output_kinds = ? AND state IN ?",
		recordSetID, outputKinds, []types.JobState{types.JobStatePending, types.JobStateProcessing}).
		First(&job)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return job, false, nil
		}
		dbError.Inc()
		return job, false, result.Error
	}
	return job, true, nil
}

// GetPendingRenderJobs lists jobs to requeue after a restart, oldest first.
func GetPendingRenderJobs() ([]RenderJob, error) {
	db := database.GetDB()
	var jobs []RenderJob
	result := db.Where("state = ?", types.JobStatePending).Order("created_at").Find(&jobs)
	if result.Error != nil {
		dbError.Inc()
		return nil, result.Error
	}
	return jobs, nil
}

// GetStaleProcessingJobs finds jobs a crashed worker left behind: still marked
// processing but started before the cutoff.
func GetStaleProcessingJobs(cutoff time.Time) ([]RenderJob, error) {
	db := database.GetDB()
	var jobs []RenderJob
	result := db.Where("state = ? AND started_at < ?", types.JobStateProcessing, cutoff).
		Order("started_at").Find(&jobs)
	if result.Error != nil {
		dbError.Inc()
		return nil, result.Error
	}
	return jobs, nil
}

// GetExpiredRenderJobs lists terminal jobs whose completion predates the
// cutoff, artifacts preloaded so the caller can release their storage.
func GetExpiredRenderJobs(cutoff time.Time) ([]RenderJob, error) {
	db := database.GetDB()
	var jobs []RenderJob
	terminal := []types.JobState{types.JobStateCompleted, types.JobStateFailed, types.JobStateCancelled}
	result := db.Preload("Artifacts").
		Where("state IN ? AND completed_at < ?", terminal, cutoff).
		Order("completed_at").Find(&jobs)
	if result.Error != nil {
		dbError.Inc()
		return nil, result.Error
	}
	return jobs, nil
}

func DeleteRenderJob(id string) error {
	db := database.GetDB()
	if result := db.Where("job_id = ?", id).Delete(&RenderArtifact{}); result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	if result := db.Delete(&RenderJob{}, "id = ?", id); result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	return nil
}
