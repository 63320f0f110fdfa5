package housekeeper

import (
	"context"
	"time"

	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/logging"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/storage"
)

// DeleteExpiredRenderJobs removes terminal render jobs that completed before
// the configured retention period, together with any stored artifact objects
// no surviving job still references.
func DeleteExpiredRenderJobs() {
	cfg := config.GetConfig()
	log := logging.GetLogger()
	store := storage.GetStore()
	ctx := context.Background()

	cutoff := time.Now().UTC().AddDate(0, 0, -cfg.DataRetentionDays)
	jobs, err := model.GetExpiredRenderJobs(cutoff)
	if err != nil {
		log.Errorf("Unable to list expired render jobs: %v", err)
		return
	}

	deleted := 0
	for _, job := range jobs {
		keys := make([]string, 0, len(job.Artifacts))
		for _, artifact := range job.Artifacts {
			keys = append(keys, artifact.StorageKey)
		}

		if err := model.DeleteRenderJob(job.ID); err != nil {
			log.Errorf("Unable to delete render job %s: %v", job.ID, err)
			continue
		}
		deleted++

		for _, key := range keys {
			count, err := model.CountArtifactsByStorageKey(key)
			if err != nil {
				log.Errorf("Unable to count references for artifact %s: %v", key, err)
				continue
			}
			if count > 0 {
				// A newer job rendered identical bytes and shares the key.
				continue
			}
			if err := store.Delete(ctx, key); err != nil {
				log.Errorf("Unable to delete artifact object %s: %v", key, err)
			}
		}
	}

	log.Infof("Housekeeper removed %d render job(s) completed before %s", deleted, cutoff.Format("2006-01-02"))
}
