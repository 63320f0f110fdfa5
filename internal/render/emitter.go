package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/storage"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

var outputContentTypes = map[types.OutputKind]string{
	types.OutputHTML: "text/html; charset=utf-8",
	types.OutputPDF:  "application/pdf",
}

var outputExtensions = map[types.OutputKind]string{
	types.OutputHTML: "html",
	types.OutputPDF:  "pdf",
}

// Emitter writes rendered outputs to storage under content-addressed keys and
// records the artifact row. Re-emitting identical bytes hits the same key, so
// a retried job never duplicates a delivery.
type Emitter struct {
	store   storage.Store
	persist func(*model.RenderArtifact) error
}

func NewEmitter(store storage.Store) *Emitter {
	return &Emitter{
		store:   store,
		persist: func(a *model.RenderArtifact) error { return a.CreateRenderArtifact() },
	}
}

// ArtifactKey derives the storage key for a rendered output from its content
// hash.
func ArtifactKey(recordSetID string, kind types.OutputKind, contentHash string) string {
	return fmt.Sprintf("reports/%s/%s.%s", recordSetID, contentHash, outputExtensions[kind])
}

// Emit stores one rendered output and upserts its artifact record. A storage
// failure comes back transient so the orchestrator retries it; everything else
// is fatal.
func (e *Emitter) Emit(ctx context.Context, job *model.RenderJob, kind types.OutputKind, data []byte, degraded bool) (*model.RenderArtifact, error) {
	if len(data) == 0 {
		return nil, types.Fatal(fmt.Sprintf("emit %s artifact", kind), fmt.Errorf("rendered output is empty"))
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	key := ArtifactKey(job.RecordSetID, kind, hash)

	exists, err := e.store.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		artifactsDeduped.Inc()
	} else {
		if err := e.store.Put(ctx, key, data, outputContentTypes[kind]); err != nil {
			return nil, err
		}
	}

	artifact := &model.RenderArtifact{
		JobID:       job.ID,
		Kind:        kind,
		StorageKey:  key,
		ContentHash: hash,
		ByteSize:    int64(len(data)),
		Degraded:    degraded,
	}
	if err := e.persist(artifact); err != nil {
		return nil, types.Transient("record artifact", err)
	}
	artifactsEmitted.Inc()
	return artifact, nil
}
