package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/visaflow/visaflow-backend/internal/apperr"
	"github.com/visaflow/visaflow-backend/internal/clients/gcp"
	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/types"
)

// StagedFile is a multipart upload written to local disk by the HTTP layer,
// waiting to be pushed to blob storage.
type StagedFile struct {
	Path         string
	OriginalName string
}

// UploadService pushes a request's staged files to blob storage. Uploads
// run concurrently; any single failure fails the whole batch, but fields
// already in flight are allowed to finish and the staged copies of
// successful uploads are released either way.
type UploadService interface {
	UploadAll(ctx context.Context, scope string, staged map[string]StagedFile) (map[string]types.FileRef, error)
}

type uploadService struct {
	log         *logger.Logger
	blobService gcp.BlobService
	maxInFlight int
}

func NewUploadService(baseLog *logger.Logger, blobService gcp.BlobService) UploadService {
	serviceLog := baseLog.With("service", "UploadService")
	return &uploadService{
		log:         serviceLog,
		blobService: blobService,
		maxInFlight: 8,
	}
}

func (us *uploadService) UploadAll(ctx context.Context, scope string, staged map[string]StagedFile) (map[string]types.FileRef, error) {
	if len(staged) == 0 {
		return map[string]types.FileRef{}, nil
	}

	var (
		mu       sync.Mutex
		uploaded = make(map[string]types.FileRef, len(staged))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(us.maxInFlight)

	for field, sf := range staged {
		field, sf := field, sf
		g.Go(func() error {
			key := storageKey(scope, field, sf.OriginalName)
			ref, err := us.blobService.Upload(gctx, sf.Path, key)
			if err != nil {
				us.log.Error("document upload failed", "field", field, "key", key, "error", err)
				return apperr.Wrap(apperr.KindUpload, fmt.Sprintf("failed to upload document %q", field), err)
			}
			if err := os.Remove(sf.Path); err != nil {
				us.log.Warn("failed to remove staged file", "path", sf.Path, "error", err)
			}
			mu.Lock()
			uploaded[field] = ref
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uploaded, nil
}

// storageKey namespaces every blob under the application's scope so files
// from different applications never collide.
func storageKey(scope, field, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("visa/%s/%s-%d%s", slugify(scope), field, time.Now().UnixNano(), ext)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unscoped"
	}
	return b.String()
}
