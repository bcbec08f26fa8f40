package repository

import (
	"context"

	"github.com/cartdotfun/settlement-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceRepository defines the interface for Balance data access
type BalanceRepository interface {
	Upsert(ctx context.Context, balance *models.Balance) error
	Get(ctx context.Context, owner, asset string) (*models.Balance, error)
	FindByOwner(ctx context.Context, owner string) ([]*models.Balance, error)
	GetAll(ctx context.Context) ([]*models.Balance, error)
}

// balanceRepository implements BalanceRepository
type balanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository creates a new BalanceRepository instance
func NewBalanceRepository(db *gorm.DB) BalanceRepository {
	return &balanceRepository{db: db}
}

// Upsert writes the balance row for (owner, asset), inserting or replacing.
func (r *balanceRepository) Upsert(ctx context.Context, balance *models.Balance) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "asset"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(balance).Error
}

// Get retrieves the balance row for (owner, asset)
func (r *balanceRepository) Get(ctx context.Context, owner, asset string) (*models.Balance, error) {
	var balance models.Balance
	err := r.db.WithContext(ctx).
		Where("owner = ? AND asset = ?", owner, asset).
		First(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// FindByOwner lists all asset balances held by an owner
func (r *balanceRepository) FindByOwner(ctx context.Context, owner string) ([]*models.Balance, error) {
	var balances []*models.Balance
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("asset ASC").
		Find(&balances).Error
	return balances, err
}

// GetAll lists every balance row, used for boot recovery
func (r *balanceRepository) GetAll(ctx context.Context) ([]*models.Balance, error) {
	var balances []*models.Balance
	err := r.db.WithContext(ctx).Find(&balances).Error
	return balances, err
}
