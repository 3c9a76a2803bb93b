package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/visaflow/visaflow-backend/internal/clients/gcp"
	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/types"
)

// CleanupService deletes stale blobs after a write has displaced them.
// Deletion is best effort: failures are logged and counted but never
// returned, so a flaky storage backend cannot block persistence.
type CleanupService interface {
	DestroyAll(ctx context.Context, refs []types.FileRef) int
}

type cleanupService struct {
	log         *logger.Logger
	blobService gcp.BlobService
	maxInFlight int
}

func NewCleanupService(baseLog *logger.Logger, blobService gcp.BlobService) CleanupService {
	serviceLog := baseLog.With("service", "CleanupService")
	return &cleanupService{
		log:         serviceLog,
		blobService: blobService,
		maxInFlight: 8,
	}
}

// DestroyAll issues a delete per ref and returns how many succeeded.
func (cs *cleanupService) DestroyAll(ctx context.Context, refs []types.FileRef) int {
	if len(refs) == 0 {
		return 0
	}

	var (
		mu        sync.Mutex
		succeeded int
	)

	g := &errgroup.Group{}
	g.SetLimit(cs.maxInFlight)

	for _, ref := range refs {
		ref := ref
		if ref.ID == "" {
			continue
		}
		g.Go(func() error {
			if err := cs.blobService.Destroy(ctx, ref.ID); err != nil {
				cs.log.Warn("stale blob delete failed", "key", ref.ID, "error", err)
				return nil
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if succeeded < len(refs) {
		cs.log.Warn("stale blob cleanup incomplete", "requested", len(refs), "succeeded", succeeded)
	} else {
		cs.log.Debug("stale blob cleanup complete", "count", succeeded)
	}
	return succeeded
}
