package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/visaflow/visaflow-backend/internal/apperr"
	"github.com/visaflow/visaflow-backend/internal/clients/redis"
	"github.com/visaflow/visaflow-backend/internal/documents"
	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/repos"
	"github.com/visaflow/visaflow-backend/internal/types"
)

const (
	visaCacheTTL     = 5 * time.Minute
	visaCachePattern = "visa:*"
	visaListCacheKey = "visa:list"
)

type PrimaryTravelerInput struct {
	GivenName string         `json:"givenName"`
	Surname   string         `json:"surname"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email"`
	Address   string         `json:"address"`
	Notes     string         `json:"notes"`
	VisaType  types.VisaType `json:"visaType"`
}

type CreateVisaInput struct {
	Primary      PrimaryTravelerInput         `json:"primaryTraveler"`
	SubTravelers []documents.TravelerAddition `json:"subTravelers"`
	Files        map[string]StagedFile        `json:"-"`
}

type UpdateVisaInput struct {
	Primary              *documents.TravelerPatch     `json:"primaryTraveler"`
	SubTravelerUpdates   []documents.TravelerUpdate   `json:"subTravelerUpdates"`
	SubTravelerAdditions []documents.TravelerAddition `json:"subTravelerAdditions"`
	Files                map[string]StagedFile        `json:"-"`
}

type UpdateSubTravelerInput struct {
	Patch documents.TravelerPatch `json:"data"`
	Files map[string]StagedFile   `json:"-"`
}

// VisaService owns the visa application lifecycle: assembling new
// applications, merging updates into the traveler list, and keeping blob
// storage consistent with the persisted document refs.
type VisaService interface {
	Create(ctx context.Context, input CreateVisaInput) (*types.VisaApplication, error)
	GetAll(ctx context.Context) ([]*types.VisaApplication, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.VisaApplication, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateVisaInput) (*types.VisaApplication, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetSubTraveler(ctx context.Context, visaID, subID uuid.UUID) (*types.SubTraveler, error)
	UpdateSubTraveler(ctx context.Context, visaID, subID uuid.UUID, input UpdateSubTravelerInput) (*types.SubTraveler, error)
	DeleteSubTraveler(ctx context.Context, visaID, subID uuid.UUID) error
}

type visaService struct {
	db             *gorm.DB
	log            *logger.Logger
	visaRepo       repos.VisaApplicationRepo
	subRepo        repos.SubTravelerRepo
	uploadService  UploadService
	cleanupService CleanupService
	cache          redis.CacheService
}

func NewVisaService(
	db *gorm.DB,
	baseLog *logger.Logger,
	visaRepo repos.VisaApplicationRepo,
	subRepo repos.SubTravelerRepo,
	uploadService UploadService,
	cleanupService CleanupService,
	cache redis.CacheService,
) VisaService {
	serviceLog := baseLog.With("service", "VisaService")
	return &visaService{
		db:             db,
		log:            serviceLog,
		visaRepo:       visaRepo,
		subRepo:        subRepo,
		uploadService:  uploadService,
		cleanupService: cleanupService,
		cache:          cache,
	}
}

func (s *visaService) Create(ctx context.Context, input CreateVisaInput) (*types.VisaApplication, error) {
	if err := validateTravelerScalars("primary traveler", input.Primary.GivenName, input.Primary.Surname,
		input.Primary.Phone, input.Primary.Email, input.Primary.Address, input.Primary.VisaType); err != nil {
		return nil, err
	}
	for _, a := range input.SubTravelers {
		if err := validateTravelerScalars(fmt.Sprintf("sub-traveler %q", a.TempID),
			a.GivenName, a.Surname, a.Phone, a.Email, a.Address, a.VisaType); err != nil {
			return nil, err
		}
	}

	existing, err := s.visaRepo.GetByEmail(ctx, nil, input.Primary.Email)
	switch {
	case err == nil:
		return s.appendToExisting(ctx, existing, input)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fresh application
	default:
		return nil, apperr.Wrap(apperr.KindInternal, "failed to look up application by email", err)
	}

	uploaded, err := s.uploadService.UploadAll(ctx, input.Primary.Email, input.Files)
	if err != nil {
		return nil, err
	}
	docs, err := documents.GroupUploads(uploaded)
	if err != nil {
		return nil, err
	}

	app := &types.VisaApplication{
		ID: uuid.New(),
		TravelerFields: types.TravelerFields{
			GivenName: input.Primary.GivenName,
			Surname:   input.Primary.Surname,
			Phone:     input.Primary.Phone,
			Email:     input.Primary.Email,
			Address:   input.Primary.Address,
			Notes:     input.Primary.Notes,
			VisaType:  input.Primary.VisaType,
		},
	}
	documents.ApplyDocuments(&app.TravelerFields, docs.Primary, s.log)
	documents.NormalizeBuckets(&app.TravelerFields)

	res, err := documents.ReconcileSubTravelers(app.ID, nil, nil, input.SubTravelers, docs, s.log)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(tx *gorm.DB) error {
		if _, err := s.visaRepo.Create(ctx, tx, app); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to create application", err)
		}
		if _, err := s.subRepo.CreateMany(ctx, tx, subPointers(res.SubTravelers, res.AddedIDs)); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to create sub-travelers", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx)
	s.log.Info("application created", "application_id", app.ID, "sub_travelers", len(res.SubTravelers))
	return s.reload(ctx, app.ID)
}

// appendToExisting handles creation against an already-registered email:
// new sub-travelers merge into the existing application, the existing
// primary traveler and its documents stay untouched.
func (s *visaService) appendToExisting(ctx context.Context, app *types.VisaApplication, input CreateVisaInput) (*types.VisaApplication, error) {
	if len(input.SubTravelers) == 0 {
		return nil, apperr.New(apperr.KindConflict,
			fmt.Sprintf("an application already exists for %s and no new sub-travelers were supplied", app.Email))
	}

	// only files addressed to new sub-travelers are relevant here; anything
	// targeting the existing primary traveler would orphan a blob
	staged := make(map[string]StagedFile, len(input.Files))
	for field, sf := range input.Files {
		parsed, err := documents.ParseFieldName(field)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "invalid document field name", err)
		}
		if parsed.Scope.Kind != documents.ScopeNew {
			s.log.Warn("ignoring non-sub-traveler upload on duplicate-email create", "field", field)
			continue
		}
		staged[field] = sf
	}

	uploaded, err := s.uploadService.UploadAll(ctx, app.Email, staged)
	if err != nil {
		return nil, err
	}
	docs, err := documents.GroupUploads(uploaded)
	if err != nil {
		return nil, err
	}

	res, err := documents.ReconcileSubTravelers(app.ID, app.SubTravelers, nil, input.SubTravelers, docs, s.log)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(tx *gorm.DB) error {
		if _, err := s.subRepo.CreateMany(ctx, tx, subPointers(res.SubTravelers, res.AddedIDs)); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to append sub-travelers", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx)
	s.log.Info("sub-travelers appended to existing application",
		"application_id", app.ID, "appended", len(res.AddedIDs))
	return s.reload(ctx, app.ID)
}

func (s *visaService) GetAll(ctx context.Context) ([]*types.VisaApplication, error) {
	if s.cache != nil {
		var cached []*types.VisaApplication
		if hit, err := s.cache.Get(ctx, visaListCacheKey, &cached); err != nil {
			s.log.Warn("cache read failed", "key", visaListCacheKey, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	apps, err := s.visaRepo.GetAll(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list applications", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, visaListCacheKey, apps, visaCacheTTL); err != nil {
			s.log.Warn("cache write failed", "key", visaListCacheKey, "error", err)
		}
	}
	return apps, nil
}

func (s *visaService) GetByID(ctx context.Context, id uuid.UUID) (*types.VisaApplication, error) {
	cacheKey := "visa:id:" + id.String()
	if s.cache != nil {
		var cached types.VisaApplication
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			s.log.Warn("cache read failed", "key", cacheKey, "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	app, err := s.visaRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("application %s not found", id))
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load application", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, app, visaCacheTTL); err != nil {
			s.log.Warn("cache write failed", "key", cacheKey, "error", err)
		}
	}
	return app, nil
}

func (s *visaService) Update(ctx context.Context, id uuid.UUID, input UpdateVisaInput) (*types.VisaApplication, error) {
	if input.Primary != nil {
		if err := validateTravelerPatch("primary traveler", *input.Primary); err != nil {
			return nil, err
		}
	}
	for _, u := range input.SubTravelerUpdates {
		if err := validateTravelerPatch(fmt.Sprintf("sub-traveler %s", u.SubTravelerID), u.Patch); err != nil {
			return nil, err
		}
	}
	for _, a := range input.SubTravelerAdditions {
		if err := validateTravelerScalars(fmt.Sprintf("sub-traveler %q", a.TempID),
			a.GivenName, a.Surname, a.Phone, a.Email, a.Address, a.VisaType); err != nil {
			return nil, err
		}
	}

	app, err := s.visaRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("application %s not found", id))
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load application", err)
	}

	// uploads are namespaced under the email the application will carry
	// after the patch; a takeover of another application's email is a
	// conflict, caught here before any blob is written
	email := app.Email
	if input.Primary != nil && input.Primary.Email != nil && *input.Primary.Email != app.Email {
		email = *input.Primary.Email
		other, err := s.visaRepo.GetByEmail(ctx, nil, email)
		switch {
		case err == nil && other.ID != app.ID:
			return nil, apperr.New(apperr.KindConflict,
				fmt.Sprintf("an application already exists for %s", email))
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, apperr.Wrap(apperr.KindInternal, "failed to look up application by email", err)
		}
	}

	uploaded, err := s.uploadService.UploadAll(ctx, email, input.Files)
	if err != nil {
		return nil, err
	}
	docs, err := documents.GroupUploads(uploaded)
	if err != nil {
		return nil, err
	}

	oldPrimary := app.TravelerFields.Clone()
	newPrimary := app.TravelerFields.Clone()
	if input.Primary != nil {
		documents.ApplyPatch(&newPrimary, *input.Primary)
	}
	documents.ApplyDocuments(&newPrimary, docs.Primary, s.log)
	documents.NormalizeBuckets(&newPrimary)

	res, err := documents.ReconcileSubTravelers(app.ID, app.SubTravelers,
		input.SubTravelerUpdates, input.SubTravelerAdditions, docs, s.log)
	if err != nil {
		return nil, err
	}

	stale := documents.CollectTravelerStale(&oldPrimary, &newPrimary)
	stale = append(stale, res.Stale...)

	app.TravelerFields = newPrimary
	err = s.transact(ctx, func(tx *gorm.DB) error {
		if err := s.visaRepo.Save(ctx, tx, app); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.KindConflict,
					fmt.Sprintf("an application already exists for %s", app.Email))
			}
			return apperr.Wrap(apperr.KindInternal, "failed to save application", err)
		}
		for i := range res.SubTravelers {
			st := res.SubTravelers[i]
			if !res.ChangedIDs[st.ID] {
				continue
			}
			if err := s.subRepo.Save(ctx, tx, &st); err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to save sub-traveler", err)
			}
		}
		if _, err := s.subRepo.CreateMany(ctx, tx, subPointers(res.SubTravelers, res.AddedIDs)); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to create sub-travelers", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cleanupService.DestroyAll(ctx, stale)
	s.invalidateCache(ctx)
	s.log.Info("application updated", "application_id", app.ID,
		"changed_sub_travelers", len(res.ChangedIDs), "added_sub_travelers", len(res.AddedIDs), "stale_refs", len(stale))
	return s.reload(ctx, app.ID)
}

func (s *visaService) Delete(ctx context.Context, id uuid.UUID) error {
	app, err := s.visaRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, fmt.Sprintf("application %s not found", id))
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load application", err)
	}

	refs := documents.AllRefs(&app.TravelerFields)
	for i := range app.SubTravelers {
		refs = append(refs, documents.AllRefs(&app.SubTravelers[i].TravelerFields)...)
	}

	// blobs go first; record removal proceeds even when some deletes fail
	s.cleanupService.DestroyAll(ctx, refs)

	err = s.transact(ctx, func(tx *gorm.DB) error {
		if err := s.visaRepo.Delete(ctx, tx, id); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to delete application", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateCache(ctx)
	s.log.Info("application deleted", "application_id", id, "blob_refs", len(refs))
	return nil
}

func (s *visaService) GetSubTraveler(ctx context.Context, visaID, subID uuid.UUID) (*types.SubTraveler, error) {
	st, err := s.subRepo.GetByVisaAndID(ctx, nil, visaID, subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("sub-traveler %s not found", subID))
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load sub-traveler", err)
	}
	return st, nil
}

func (s *visaService) UpdateSubTraveler(ctx context.Context, visaID, subID uuid.UUID, input UpdateSubTravelerInput) (*types.SubTraveler, error) {
	if err := validateTravelerPatch(fmt.Sprintf("sub-traveler %s", subID), input.Patch); err != nil {
		return nil, err
	}

	app, err := s.visaRepo.GetByID(ctx, nil, visaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("application %s not found", visaID))
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load application", err)
	}
	st, err := s.subRepo.GetByVisaAndID(ctx, nil, visaID, subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("sub-traveler %s not found", subID))
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load sub-traveler", err)
	}

	uploaded, err := s.uploadService.UploadAll(ctx, app.Email, input.Files)
	if err != nil {
		return nil, err
	}
	docs, err := documents.GroupUploads(uploaded)
	if err != nil {
		return nil, err
	}
	if len(docs.Primary) > 0 || len(docs.New) > 0 {
		return nil, apperr.New(apperr.KindValidation, "uploaded documents must target the addressed sub-traveler")
	}
	for docID := range docs.Existing {
		if docID != subID {
			return nil, apperr.New(apperr.KindValidation, "uploaded documents must target the addressed sub-traveler")
		}
	}

	old := st.TravelerFields.Clone()
	merged := st.TravelerFields.Clone()
	documents.ApplyPatch(&merged, input.Patch)
	documents.ApplyDocuments(&merged, docs.Existing[subID], s.log)
	documents.NormalizeBuckets(&merged)
	stale := documents.CollectTravelerStale(&old, &merged)

	st.TravelerFields = merged
	err = s.transact(ctx, func(tx *gorm.DB) error {
		if err := s.subRepo.Save(ctx, tx, st); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to save sub-traveler", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cleanupService.DestroyAll(ctx, stale)
	s.invalidateCache(ctx)
	s.log.Info("sub-traveler updated", "application_id", visaID, "sub_traveler_id", subID, "stale_refs", len(stale))
	return st, nil
}

func (s *visaService) DeleteSubTraveler(ctx context.Context, visaID, subID uuid.UUID) error {
	st, err := s.subRepo.GetByVisaAndID(ctx, nil, visaID, subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, fmt.Sprintf("sub-traveler %s not found", subID))
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load sub-traveler", err)
	}

	s.cleanupService.DestroyAll(ctx, documents.AllRefs(&st.TravelerFields))

	var affected int64
	err = s.transact(ctx, func(tx *gorm.DB) error {
		n, err := s.subRepo.DeleteByVisaAndID(ctx, tx, visaID, subID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to delete sub-traveler", err)
		}
		affected = n
		return nil
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.New(apperr.KindNotFound, fmt.Sprintf("sub-traveler %s not found", subID))
	}

	s.invalidateCache(ctx)
	s.log.Info("sub-traveler deleted", "application_id", visaID, "sub_traveler_id", subID)
	return nil
}

// transact runs fn inside a transaction when a database is attached and
// directly otherwise, letting repo fakes run the same code path.
func (s *visaService) transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *visaService) reload(ctx context.Context, id uuid.UUID) (*types.VisaApplication, error) {
	app, err := s.visaRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to reload application", err)
	}
	return app, nil
}

func (s *visaService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, visaCachePattern); err != nil {
		s.log.Warn("cache invalidation failed", "pattern", visaCachePattern, "error", err)
	}
}

func subPointers(all []types.SubTraveler, added map[uuid.UUID]bool) []*types.SubTraveler {
	out := make([]*types.SubTraveler, 0, len(added))
	for i := range all {
		if added[all[i].ID] {
			out = append(out, &all[i])
		}
	}
	return out
}

func validateTravelerScalars(label, givenName, surname, phone, email, address string, vt types.VisaType) error {
	missing := ""
	switch {
	case givenName == "":
		missing = "givenName"
	case surname == "":
		missing = "surname"
	case phone == "":
		missing = "phone"
	case email == "":
		missing = "email"
	case address == "":
		missing = "address"
	}
	if missing != "" {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("%s is missing required field %s", label, missing))
	}
	if vt != types.VisaTypeNone && !vt.Valid() {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("%s has unknown visaType %q", label, vt))
	}
	return nil
}

// validateTravelerPatch rejects a patch before anything is uploaded or
// mutated. An unknown visaType would otherwise register as a type switch
// and tear down the active document bucket.
func validateTravelerPatch(label string, p documents.TravelerPatch) error {
	if p.VisaType != nil && *p.VisaType != types.VisaTypeNone && !(*p.VisaType).Valid() {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("%s has unknown visaType %q", label, *p.VisaType))
	}
	return nil
}
