package model

import (
	"time"

	"gorm.io/gorm/clause"

	database "github.com/cloudratio/advisor-report-backend/internal/db"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

type RenderArtifact struct {
	ID          uint             `gorm:"primaryKey;not null;autoIncrement"`
	JobID       string           `gorm:"type:uuid;uniqueIndex:idx_render_artifacts_job_kind"`
	Kind        types.OutputKind `gorm:"type:text;uniqueIndex:idx_render_artifacts_job_kind"`
	StorageKey  string           `gorm:"type:text"`
	ContentHash string           `gorm:"type:text"`
	ByteSize    int64            `gorm:"not null;default:0"`
	Degraded    bool             `gorm:"not null;default:false"`
	CreatedAt   time.Time
}

// CreateRenderArtifact upserts on (job_id, kind) so a retried render that
// reaches emission again overwrites its own earlier row instead of
// duplicating it.
func (a *RenderArtifact) CreateRenderArtifact() error {
	db := database.GetDB()
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"storage_key", "content_hash", "byte_size", "degraded"}),
	}).Create(a)

	if result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	return nil
}

// CountArtifactsByStorageKey reports how many artifact rows still reference a
// storage key. Keys are content addressed and shared between jobs that
// rendered identical bytes, so a stored object is only safe to delete once
// this reaches zero.
func CountArtifactsByStorageKey(key string) (int64, error) {
	db := database.GetDB()
	var count int64
	result := db.Model(&RenderArtifact{}).Where("storage_key = ?", key).Count(&count)
	if result.Error != nil {
		dbError.Inc()
		return 0, result.Error
	}
	return count, nil
}

func GetArtifactsForJob(jobID string) ([]RenderArtifact, error) {
	db := database.GetDB()
	var artifacts []RenderArtifact
	result := db.Where("job_id = ?", jobID).Order("kind").Find(&artifacts)
	if result.Error != nil {
		dbError.Inc()
		return nil, result.Error
	}
	return artifacts, nil
}
