package repository

import (
	"context"

	"github.com/cartdotfun/settlement-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DealRepository defines the interface for Deal data access
type DealRepository interface {
	Upsert(ctx context.Context, deal *models.Deal) error
	GetByID(ctx context.Context, id string) (*models.Deal, error)
	FindByParty(ctx context.Context, address string, page, pageSize int) ([]*models.Deal, int64, error)
	FindByState(ctx context.Context, state string) ([]*models.Deal, error)
	GetAll(ctx context.Context) ([]*models.Deal, error)
}

// dealRepository implements DealRepository
type dealRepository struct {
	db *gorm.DB
}

// NewDealRepository creates a new DealRepository instance
func NewDealRepository(db *gorm.DB) DealRepository {
	return &dealRepository{db: db}
}

// Upsert writes the full deal row, inserting or replacing by id.
func (r *dealRepository) Upsert(ctx context.Context, deal *models.Deal) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"state", "result_ref", "judgment_ref", "child_ids", "updated_at",
			}),
		}).
		Create(deal).Error
}

// GetByID retrieves a deal by id
func (r *dealRepository) GetByID(ctx context.Context, id string) (*models.Deal, error) {
	var deal models.Deal
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// FindByParty lists deals where the address is buyer or seller, paginated
func (r *dealRepository) FindByParty(ctx context.Context, address string, page, pageSize int) ([]*models.Deal, int64, error) {
	var deals []*models.Deal
	var total int64

	query := r.db.WithContext(ctx).Where("buyer = ? OR seller = ?", address, address)

	if err := query.Model(&models.Deal{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&deals).Error

	return deals, total, err
}

// FindByState lists deals in a lifecycle state
func (r *dealRepository) FindByState(ctx context.Context, state string) ([]*models.Deal, error) {
	var deals []*models.Deal
	err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("created_at DESC").
		Find(&deals).Error
	return deals, err
}

// GetAll lists every deal row, used for boot recovery
func (r *dealRepository) GetAll(ctx context.Context) ([]*models.Deal, error) {
	var deals []*models.Deal
	err := r.db.WithContext(ctx).Find(&deals).Error
	return deals, err
}
