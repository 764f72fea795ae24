package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seglab/segcase-backend/internal/pkg/logger"
	"github.com/seglab/segcase-backend/internal/types"
)

// CaseRepo scopes every read and write by the owning radiologist. A lookup
// for somebody else's case behaves exactly like a lookup for a case that does
// not exist.
type CaseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, c *types.Case) error
	GetOwned(ctx context.Context, tx *gorm.DB, caseID, ownerID uuid.UUID) (*types.Case, error)
	ListOwned(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.Case, error)
	Update(ctx context.Context, tx *gorm.DB, c *types.Case) error
	// ClaimStatus conditionally moves an owned case to a new status: the
	// update only lands when the stored status still equals from. Returns
	// false when another writer got there first.
	ClaimStatus(ctx context.Context, tx *gorm.DB, caseID, ownerID uuid.UUID, from, to types.CaseStatus) (bool, error)
	DeleteOwned(ctx context.Context, tx *gorm.DB, caseID, ownerID uuid.UUID) error
}

type caseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaseRepo(db *gorm.DB, baseLog *logger.Logger) CaseRepo {
	repoLog := baseLog.With("repo", "CaseRepo")
	return &caseRepo{db: db, log: repoLog}
}

func (cr *caseRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return cr.db
}

func (cr *caseRepo) Create(ctx context.Context, tx *gorm.DB, c *types.Case) error {
	return cr.conn(tx).WithContext(ctx).Create(c).Error
}

func (cr *caseRepo) GetOwned(ctx context.Context, tx *gorm.DB, caseID, ownerID uuid.UUID) (*types.Case, error) {
	var c types.Case
	if err := cr.conn(tx).WithContext(ctx).
		Where("id = ? AND radiologist_id = ?", caseID, ownerID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (cr *caseRepo) ListOwned(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.Case, error) {
	var cases []*types.Case
	if err := cr.conn(tx).WithContext(ctx).
		Where("radiologist_id = ?", ownerID).
		Order("created_at DESC").
		Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

func (cr *caseRepo) Update(ctx context.Context, tx *gorm.DB, c *types.Case) error {
	return cr.conn(tx).WithContext(ctx).Save(c).Error
}

func (cr *caseRepo) ClaimStatus(ctx context.Context, tx *gorm.DB, caseID, ownerID uuid.UUID, from, to types.CaseStatus) (bool, error) {
	res := cr.conn(tx).WithContext(ctx).
		Model(&types.Case{}).
		Where("id = ? AND radiologist_id = ? AND status = ?", caseID, ownerID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (cr *caseRepo) DeleteOwned(ctx context.Context, tx *gorm.DB, caseID, ownerID uuid.UUID) error {
	return cr.conn(tx).WithContext(ctx).
		Where("id = ? AND radiologist_id = ?", caseID, ownerID).
		Delete(&types.Case{}).Error
}
