package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/visaflow/visaflow-backend/internal/apperr"
	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/types"
)

type fakeBlobService struct {
	mu        sync.Mutex
	uploaded  []string
	destroyed []string
	failKeys  string
}

func (f *fakeBlobService) Upload(ctx context.Context, localPath, key string) (types.FileRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKeys != "" && strings.Contains(key, f.failKeys) {
		return types.FileRef{}, fmt.Errorf("simulated storage outage")
	}
	f.uploaded = append(f.uploaded, key)
	return types.FileRef{URL: f.PublicURL(key), ID: key}, nil
}

func (f *fakeBlobService) Destroy(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKeys != "" && strings.Contains(key, f.failKeys) {
		return fmt.Errorf("simulated storage outage")
	}
	f.destroyed = append(f.destroyed, key)
	return nil
}

func (f *fakeBlobService) PublicURL(key string) string {
	return "https://storage.example.com/" + key
}

func stageFiles(t *testing.T, fields ...string) map[string]StagedFile {
	t.Helper()
	dir := t.TempDir()
	out := make(map[string]StagedFile, len(fields))
	for i, field := range fields {
		path := filepath.Join(dir, fmt.Sprintf("staged-%d.pdf", i))
		if err := os.WriteFile(path, []byte("content"), 0o600); err != nil {
			t.Fatalf("write staged file: %v", err)
		}
		out[field] = StagedFile{Path: path, OriginalName: "scan.pdf"}
	}
	return out
}

func TestUploadAllUploadsEveryFieldAndReleasesStaging(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	blob := &fakeBlobService{}
	svc := NewUploadService(log, blob)

	staged := stageFiles(t, "primaryTraveler_passportCopy", "primaryTraveler_bankStatement")
	refs, err := svc.UploadAll(context.Background(), "Anika@Example.com", staged)
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("ref count: want=2 got=%d", len(refs))
	}
	for field, ref := range refs {
		if !strings.HasPrefix(ref.ID, "visa/anika-example.com/"+field+"-") {
			t.Fatalf("key namespace: got=%s", ref.ID)
		}
		if !strings.HasSuffix(ref.ID, ".pdf") {
			t.Fatalf("key must carry the original extension: got=%s", ref.ID)
		}
	}
	for _, sf := range staged {
		if _, err := os.Stat(sf.Path); !os.IsNotExist(err) {
			t.Fatalf("staged copy %s must be released after upload", sf.Path)
		}
	}
}

func TestUploadAllSingleFailureIsFatalAndNamesField(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	blob := &fakeBlobService{failKeys: "bankStatement"}
	svc := NewUploadService(log, blob)

	staged := stageFiles(t, "primaryTraveler_passportCopy", "primaryTraveler_bankStatement")
	_, err = svc.UploadAll(context.Background(), "anika@example.com", staged)
	if !apperr.IsKind(err, apperr.KindUpload) {
		t.Fatalf("error kind: want=%v got=%v (%v)", apperr.KindUpload, apperr.KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "primaryTraveler_bankStatement") {
		t.Fatalf("error must name the failing field, got=%v", err)
	}
}

func TestUploadAllEmptyBatchIsNoop(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	blob := &fakeBlobService{}
	svc := NewUploadService(log, blob)

	refs, err := svc.UploadAll(context.Background(), "anika@example.com", nil)
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("refs: want empty, got=%v", refs)
	}
	if len(blob.uploaded) != 0 {
		t.Fatalf("no upload expected, got=%v", blob.uploaded)
	}
}

func TestDestroyAllIsBestEffort(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	blob := &fakeBlobService{failKeys: "gone"}
	svc := NewCleanupService(log, blob)

	refs := []types.FileRef{
		{ID: "visa/a/one"},
		{ID: "visa/a/gone"},
		{ID: "visa/a/two"},
	}
	succeeded := svc.DestroyAll(context.Background(), refs)
	if succeeded != 2 {
		t.Fatalf("succeeded: want=2 got=%d", succeeded)
	}
	if len(blob.destroyed) != 2 {
		t.Fatalf("destroy calls that succeeded: want=2 got=%d", len(blob.destroyed))
	}
}
