package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/types"
)

type SubTravelerRepo interface {
	CreateMany(ctx context.Context, tx *gorm.DB, travelers []*types.SubTraveler) ([]*types.SubTraveler, error)
	GetByVisaAndID(ctx context.Context, tx *gorm.DB, visaID, id uuid.UUID) (*types.SubTraveler, error)
	Save(ctx context.Context, tx *gorm.DB, traveler *types.SubTraveler) error
	DeleteByVisaAndID(ctx context.Context, tx *gorm.DB, visaID, id uuid.UUID) (int64, error)
}

type subTravelerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubTravelerRepo(db *gorm.DB, baseLog *logger.Logger) SubTravelerRepo {
	repoLog := baseLog.With("repo", "SubTravelerRepo")
	return &subTravelerRepo{db: db, log: repoLog}
}

func (r *subTravelerRepo) CreateMany(ctx context.Context, tx *gorm.DB, travelers []*types.SubTraveler) ([]*types.SubTraveler, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(travelers) == 0 {
		return []*types.SubTraveler{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&travelers).Error; err != nil {
		return nil, err
	}
	return travelers, nil
}

func (r *subTravelerRepo) GetByVisaAndID(ctx context.Context, tx *gorm.DB, visaID, id uuid.UUID) (*types.SubTraveler, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.SubTraveler
	if err := transaction.WithContext(ctx).
		Where("visa_application_id = ? AND id = ?", visaID, id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *subTravelerRepo) Save(ctx context.Context, tx *gorm.DB, traveler *types.SubTraveler) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Save(traveler).Error
}

// DeleteByVisaAndID scopes the delete to the parent application so a
// mismatched pair removes nothing. The affected count lets the caller
// distinguish not-found from deleted.
func (r *subTravelerRepo) DeleteByVisaAndID(ctx context.Context, tx *gorm.DB, visaID, id uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("visa_application_id = ? AND id = ?", visaID, id).
		Delete(&types.SubTraveler{})
	return res.RowsAffected, res.Error
}
