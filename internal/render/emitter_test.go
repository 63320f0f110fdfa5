package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/storage"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

func testEmitter(store storage.Store) (*Emitter, *[]model.RenderArtifact) {
	persisted := []model.RenderArtifact{}
	emitter := &Emitter{
		store: store,
		persist: func(a *model.RenderArtifact) error {
			persisted = append(persisted, *a)
			return nil
		},
	}
	return emitter, &persisted
}

func TestEmitStoresContentAddressed(t *testing.T) {
	store := storage.NewMemoryStore()
	emitter, persisted := testEmitter(store)

	job := &model.RenderJob{ID: "job-1", RecordSetID: "set-1"}
	data := []byte("<html><body>report</body></html>")
	sum := sha256.Sum256(data)
	expected_hash := hex.EncodeToString(sum[:])
	expected_key := fmt.Sprintf("reports/set-1/%s.html", expected_hash)

	artifact, err := emitter.Emit(context.Background(), job, types.OutputHTML, data, false)
	if err != nil {
		t.Fatal(err)
	}

	if artifact.StorageKey != expected_key {
		t.Errorf("storage key = %s, expected %s", artifact.StorageKey, expected_key)
	}
	if artifact.ContentHash != expected_hash {
		t.Errorf("content hash = %s, expected %s", artifact.ContentHash, expected_hash)
	}
	if artifact.ByteSize != int64(len(data)) {
		t.Errorf("byte size = %d, expected %d", artifact.ByteSize, len(data))
	}
	if artifact.Degraded {
		t.Error("artifact should not be degraded")
	}

	stored, contentType, err := store.Get(context.Background(), expected_key)
	if err != nil {
		t.Fatal(err)
	}
	if string(stored) != string(data) {
		t.Error("stored bytes differ from emitted bytes")
	}
	if contentType != "text/html; charset=utf-8" {
		t.Errorf("content type = %s", contentType)
	}
	if len(*persisted) != 1 {
		t.Fatalf("expected 1 persisted artifact, got %d", len(*persisted))
	}
}

func TestEmitIdenticalBytesLandOnSameKey(t *testing.T) {
	store := storage.NewMemoryStore()
	emitter, persisted := testEmitter(store)

	data := []byte("%PDF-1.7 fake")
	first, err := emitter.Emit(context.Background(), &model.RenderJob{ID: "job-1", RecordSetID: "set-1"}, types.OutputPDF, data, false)
	if err != nil {
		t.Fatal(err)
	}
	// A retried job re-emitting identical bytes must not write a second copy.
	second, err := emitter.Emit(context.Background(), &model.RenderJob{ID: "job-1", RecordSetID: "set-1"}, types.OutputPDF, data, false)
	if err != nil {
		t.Fatal(err)
	}

	if first.StorageKey != second.StorageKey {
		t.Errorf("same bytes produced different keys: %s vs %s", first.StorageKey, second.StorageKey)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored object, got %d", store.Len())
	}
	if len(*persisted) != 2 {
		t.Errorf("artifact record should be upserted on each emit, got %d", len(*persisted))
	}
}

func TestEmitDistinctBytesGetDistinctKeys(t *testing.T) {
	store := storage.NewMemoryStore()
	emitter, _ := testEmitter(store)

	job := &model.RenderJob{ID: "job-1", RecordSetID: "set-1"}
	first, err := emitter.Emit(context.Background(), job, types.OutputPDF, []byte("revision one"), false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := emitter.Emit(context.Background(), job, types.OutputPDF, []byte("revision two"), false)
	if err != nil {
		t.Fatal(err)
	}
	if first.StorageKey == second.StorageKey {
		t.Error("different bytes must not collide on one key")
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 stored objects, got %d", store.Len())
	}
}

func TestEmitDegradedFlagCarries(t *testing.T) {
	store := storage.NewMemoryStore()
	emitter, persisted := testEmitter(store)

	artifact, err := emitter.Emit(context.Background(), &model.RenderJob{ID: "job-1", RecordSetID: "set-1"}, types.OutputPDF, []byte("best effort"), true)
	if err != nil {
		t.Fatal(err)
	}
	if !artifact.Degraded {
		t.Error("degraded flag lost on artifact")
	}
	if !(*persisted)[0].Degraded {
		t.Error("degraded flag lost on persisted record")
	}
}

func TestEmitRejectsEmptyOutput(t *testing.T) {
	store := storage.NewMemoryStore()
	emitter, _ := testEmitter(store)

	_, err := emitter.Emit(context.Background(), &model.RenderJob{ID: "job-1", RecordSetID: "set-1"}, types.OutputPDF, nil, false)
	if err == nil {
		t.Fatal("empty output must not be emitted")
	}
	if types.IsTransient(err) {
		t.Error("empty output is not retryable")
	}
	if store.Len() != 0 {
		t.Error("nothing should reach storage")
	}
}

func TestArtifactKey(t *testing.T) {
	key := ArtifactKey("6a1f8c3e", types.OutputPDF, "abc123")
	if key != "reports/6a1f8c3e/abc123.pdf" {
		t.Errorf("unexpected key %s", key)
	}
}
