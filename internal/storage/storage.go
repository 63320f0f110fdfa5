package storage

import (
	"context"
	"errors"

	"github.com/cloudratio/advisor-report-backend/internal/config"
)

// ErrNotFound is returned when no artifact lives under the requested key.
var ErrNotFound = errors.New("artifact not found")

// Store holds rendered artifacts under content-addressed keys. Writing the
// same key twice always carries identical bytes, so Put never needs
// read-modify-write semantics.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

var store Store = nil

func GetStore() Store {
	if store == nil {
		cfg := config.GetConfig()
		switch cfg.StorageBackend {
		case "s3":
			store = NewS3Store()
		default:
			store = NewMemoryStore()
		}
	}
	return store
}
