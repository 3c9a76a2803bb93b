package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/visaflow/visaflow-backend/internal/types"
)

// fakeStore backs both repo fakes so preloads see sub-traveler writes.
type fakeStore struct {
	mu   sync.Mutex
	apps map[uuid.UUID]*types.VisaApplication
	subs map[uuid.UUID]*types.SubTraveler
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		apps: map[uuid.UUID]*types.VisaApplication{},
		subs: map[uuid.UUID]*types.SubTraveler{},
	}
}

func (fs *fakeStore) assembled(app *types.VisaApplication) *types.VisaApplication {
	out := *app
	out.TravelerFields = app.TravelerFields.Clone()
	out.SubTravelers = nil
	for _, st := range fs.subs {
		if st.VisaApplicationID == app.ID {
			cp := *st
			cp.TravelerFields = st.TravelerFields.Clone()
			out.SubTravelers = append(out.SubTravelers, cp)
		}
	}
	sort.Slice(out.SubTravelers, func(i, j int) bool {
		return out.SubTravelers[i].Position < out.SubTravelers[j].Position
	})
	return &out
}

type fakeVisaRepo struct {
	store *fakeStore
}

func (r *fakeVisaRepo) Create(ctx context.Context, tx *gorm.DB, app *types.VisaApplication) (*types.VisaApplication, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *app
	cp.TravelerFields = app.TravelerFields.Clone()
	cp.SubTravelers = nil
	r.store.apps[app.ID] = &cp
	return app, nil
}

func (r *fakeVisaRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.VisaApplication, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	app, ok := r.store.apps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.store.assembled(app), nil
}

func (r *fakeVisaRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.VisaApplication, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, app := range r.store.apps {
		if app.Email == email {
			return r.store.assembled(app), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeVisaRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.VisaApplication, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*types.VisaApplication
	for _, app := range r.store.apps {
		out = append(out, r.store.assembled(app))
	}
	return out, nil
}

func (r *fakeVisaRepo) Save(ctx context.Context, tx *gorm.DB, app *types.VisaApplication) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.apps[app.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.TravelerFields = app.TravelerFields.Clone()
	return nil
}

func (r *fakeVisaRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.apps, id)
	for subID, st := range r.store.subs {
		if st.VisaApplicationID == id {
			delete(r.store.subs, subID)
		}
	}
	return nil
}

type fakeSubRepo struct {
	store *fakeStore
}

func (r *fakeSubRepo) CreateMany(ctx context.Context, tx *gorm.DB, travelers []*types.SubTraveler) ([]*types.SubTraveler, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, st := range travelers {
		cp := *st
		cp.TravelerFields = st.TravelerFields.Clone()
		r.store.subs[st.ID] = &cp
	}
	return travelers, nil
}

func (r *fakeSubRepo) GetByVisaAndID(ctx context.Context, tx *gorm.DB, visaID, id uuid.UUID) (*types.SubTraveler, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st, ok := r.store.subs[id]
	if !ok || st.VisaApplicationID != visaID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *st
	cp.TravelerFields = st.TravelerFields.Clone()
	return &cp, nil
}

func (r *fakeSubRepo) Save(ctx context.Context, tx *gorm.DB, traveler *types.SubTraveler) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *traveler
	cp.TravelerFields = traveler.TravelerFields.Clone()
	r.store.subs[traveler.ID] = &cp
	return nil
}

func (r *fakeSubRepo) DeleteByVisaAndID(ctx context.Context, tx *gorm.DB, visaID, id uuid.UUID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st, ok := r.store.subs[id]
	if !ok || st.VisaApplicationID != visaID {
		return 0, nil
	}
	delete(r.store.subs, id)
	return 1, nil
}

// fakeUploadService mints a unique ref per field without touching disk.
type fakeUploadService struct {
	mu      sync.Mutex
	counter int
	scopes  []string
	failOn  string
}

func (f *fakeUploadService) UploadAll(ctx context.Context, scope string, staged map[string]StagedFile) (map[string]types.FileRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes = append(f.scopes, scope)
	out := make(map[string]types.FileRef, len(staged))
	for field := range staged {
		if f.failOn != "" && field == f.failOn {
			return nil, fmt.Errorf("upload failed for %s", field)
		}
		f.counter++
		key := fmt.Sprintf("visa/%s/%s-%d", scope, field, f.counter)
		out[field] = types.FileRef{URL: "https://storage.example.com/" + key, ID: key}
	}
	return out, nil
}

type fakeCleanupService struct {
	mu        sync.Mutex
	destroyed []types.FileRef
	onDestroy func()
}

func (f *fakeCleanupService) DestroyAll(ctx context.Context, refs []types.FileRef) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onDestroy != nil {
		f.onDestroy()
	}
	f.destroyed = append(f.destroyed, refs...)
	return len(refs)
}

func (f *fakeCleanupService) destroyedIDs() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]bool{}
	for _, r := range f.destroyed {
		out[r.ID] = true
	}
	return out
}

type fakeCacheService struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	deletes int
}

func newFakeCacheService() *fakeCacheService {
	return &fakeCacheService{entries: map[string][]byte{}}
}

func (f *fakeCacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = []byte("set")
	return nil
}

func (f *fakeCacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	return false, nil
}

func (f *fakeCacheService) DeletePattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range f.entries {
		if strings.HasPrefix(k, prefix) {
			delete(f.entries, k)
		}
	}
	return nil
}

func (f *fakeCacheService) Close() error { return nil }
