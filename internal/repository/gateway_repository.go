package repository

import (
	"context"

	"github.com/cartdotfun/settlement-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GatewayRepository defines the interface for Gateway data access
type GatewayRepository interface {
	Upsert(ctx context.Context, gateway *models.Gateway) error
	GetBySlug(ctx context.Context, slug string) (*models.Gateway, error)
	FindByProvider(ctx context.Context, provider string) ([]*models.Gateway, error)
	GetAll(ctx context.Context) ([]*models.Gateway, error)
}

// gatewayRepository implements GatewayRepository
type gatewayRepository struct {
	db *gorm.DB
}

// NewGatewayRepository creates a new GatewayRepository instance
func NewGatewayRepository(db *gorm.DB) GatewayRepository {
	return &gatewayRepository{db: db}
}

// Upsert writes the gateway row, inserting or replacing by slug.
func (r *gatewayRepository) Upsert(ctx context.Context, gateway *models.Gateway) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price_per_request", "active", "updated_at",
			}),
		}).
		Create(gateway).Error
}

// GetBySlug retrieves a gateway by slug
func (r *gatewayRepository) GetBySlug(ctx context.Context, slug string) (*models.Gateway, error) {
	var gateway models.Gateway
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&gateway).Error
	if err != nil {
		return nil, err
	}
	return &gateway, nil
}

// FindByProvider lists all gateways registered by a provider
func (r *gatewayRepository) FindByProvider(ctx context.Context, provider string) ([]*models.Gateway, error) {
	var gateways []*models.Gateway
	err := r.db.WithContext(ctx).
		Where("provider = ?", provider).
		Order("created_at DESC").
		Find(&gateways).Error
	return gateways, err
}

// GetAll lists every gateway row, used for boot recovery
func (r *gatewayRepository) GetAll(ctx context.Context) ([]*models.Gateway, error) {
	var gateways []*models.Gateway
	err := r.db.WithContext(ctx).Find(&gateways).Error
	return gateways, err
}
