package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/types"
)

type VisaApplicationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, app *types.VisaApplication) (*types.VisaApplication, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.VisaApplication, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.VisaApplication, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.VisaApplication, error)
	Save(ctx context.Context, tx *gorm.DB, app *types.VisaApplication) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type visaApplicationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVisaApplicationRepo(db *gorm.DB, baseLog *logger.Logger) VisaApplicationRepo {
	repoLog := baseLog.With("repo", "VisaApplicationRepo")
	return &visaApplicationRepo{db: db, log: repoLog}
}

func (r *visaApplicationRepo) Create(ctx context.Context, tx *gorm.DB, app *types.VisaApplication) (*types.VisaApplication, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(app).Error; err != nil {
		return nil, err
	}
	return app, nil
}

func (r *visaApplicationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.VisaApplication, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.VisaApplication
	if err := transaction.WithContext(ctx).
		Preload("SubTravelers", func(db *gorm.DB) *gorm.DB {
			return db.Order("sub_traveler.position ASC")
		}).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *visaApplicationRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.VisaApplication, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.VisaApplication
	if err := transaction.WithContext(ctx).
		Preload("SubTravelers", func(db *gorm.DB) *gorm.DB {
			return db.Order("sub_traveler.position ASC")
		}).
		Where("email = ?", email).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *visaApplicationRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.VisaApplication, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.VisaApplication
	if err := transaction.WithContext(ctx).
		Preload("SubTravelers", func(db *gorm.DB) *gorm.DB {
			return db.Order("sub_traveler.position ASC")
		}).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Save writes the primary traveler columns only; sub-traveler rows are
// owned by SubTravelerRepo so a save never cascades unintended writes.
func (r *visaApplicationRepo) Save(ctx context.Context, tx *gorm.DB, app *types.VisaApplication) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Omit("SubTravelers").
		Save(app).Error
}

func (r *visaApplicationRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.VisaApplication{}).Error
}
