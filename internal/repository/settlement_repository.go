package repository

import (
	"context"

	"github.com/cartdotfun/settlement-backend/internal/models"

	"gorm.io/gorm"
)

// SettlementRepository defines the interface for cross-chain settlement data access
type SettlementRepository interface {
	Create(ctx context.Context, settlement *models.CrossChainSettlement) error
	GetByExternalID(ctx context.Context, externalID string) (*models.CrossChainSettlement, error)
	FindByAgent(ctx context.Context, agent string, page, pageSize int) ([]*models.CrossChainSettlement, int64, error)
	GetAll(ctx context.Context) ([]*models.CrossChainSettlement, error)
}

// settlementRepository implements SettlementRepository
type settlementRepository struct {
	db *gorm.DB
}

// NewSettlementRepository creates a new SettlementRepository instance
func NewSettlementRepository(db *gorm.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

// Create inserts a settlement record. The external id is the primary key, so
// a duplicate insert fails and the caller can treat it as a replay.
func (r *settlementRepository) Create(ctx context.Context, settlement *models.CrossChainSettlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

// GetByExternalID retrieves a settlement by its source-chain identifier
func (r *settlementRepository) GetByExternalID(ctx context.Context, externalID string) (*models.CrossChainSettlement, error) {
	var settlement models.CrossChainSettlement
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&settlement).Error
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

// FindByAgent lists settlements debited from an agent with pagination
func (r *settlementRepository) FindByAgent(ctx context.Context, agent string, page, pageSize int) ([]*models.CrossChainSettlement, int64, error) {
	var settlements []*models.CrossChainSettlement
	var total int64

	query := r.db.WithContext(ctx).Where("agent = ?", agent)

	if err := query.Model(&models.CrossChainSettlement{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&settlements).Error

	return settlements, total, err
}

// GetAll lists every settlement row, used for boot recovery of the replay set
func (r *settlementRepository) GetAll(ctx context.Context) ([]*models.CrossChainSettlement, error) {
	var settlements []*models.CrossChainSettlement
	err := r.db.WithContext(ctx).Find(&settlements).Error
	return settlements, err
}
