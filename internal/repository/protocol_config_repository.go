package repository

import (
	"context"

	"github.com/cartdotfun/settlement-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProtocolConfigRepository defines the interface for protocol parameter storage
type ProtocolConfigRepository interface {
	Set(ctx context.Context, key, value, updatedBy string) error
	Get(ctx context.Context, key string) (string, error)
	GetAll(ctx context.Context) (map[string]string, error)
}

// protocolConfigRepository implements ProtocolConfigRepository
type protocolConfigRepository struct {
	db *gorm.DB
}

// NewProtocolConfigRepository creates a new ProtocolConfigRepository instance
func NewProtocolConfigRepository(db *gorm.DB) ProtocolConfigRepository {
	return &protocolConfigRepository{db: db}
}

// Set writes a config value, inserting or replacing by key
func (r *protocolConfigRepository) Set(ctx context.Context, key, value, updatedBy string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "config_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"config_value", "updated_by", "updated_at",
			}),
		}).
		Create(&models.ProtocolConfig{
			ConfigKey:   key,
			ConfigValue: value,
			UpdatedBy:   updatedBy,
		}).Error
}

// Get retrieves a single config value by key
func (r *protocolConfigRepository) Get(ctx context.Context, key string) (string, error) {
	var cfg models.ProtocolConfig
	err := r.db.WithContext(ctx).Where("config_key = ?", key).First(&cfg).Error
	if err != nil {
		return "", err
	}
	return cfg.ConfigValue, nil
}

// GetAll returns every stored config value keyed by name
func (r *protocolConfigRepository) GetAll(ctx context.Context) (map[string]string, error) {
	var rows []models.ProtocolConfig
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.ConfigKey] = row.ConfigValue
	}
	return values, nil
}
