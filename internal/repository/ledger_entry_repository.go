package repository

import (
	"context"

	"github.com/cartdotfun/settlement-backend/internal/models"

	"gorm.io/gorm"
)

// LedgerEntryRepository defines the interface for LedgerEntry data access
type LedgerEntryRepository interface {
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByOwner(ctx context.Context, owner string, page, pageSize int) ([]*models.LedgerEntry, int64, error)
	FindByRef(ctx context.Context, ref string) ([]*models.LedgerEntry, error)
}

// ledgerEntryRepository implements LedgerEntryRepository
type ledgerEntryRepository struct {
	db *gorm.DB
}

// NewLedgerEntryRepository creates a new LedgerEntryRepository instance
func NewLedgerEntryRepository(db *gorm.DB) LedgerEntryRepository {
	return &ledgerEntryRepository{db: db}
}

// Create appends a journal entry. Entries are append-only.
func (r *ledgerEntryRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByOwner lists an owner's journal entries with pagination
func (r *ledgerEntryRepository) FindByOwner(ctx context.Context, owner string, page, pageSize int) ([]*models.LedgerEntry, int64, error) {
	var entries []*models.LedgerEntry
	var total int64

	query := r.db.WithContext(ctx).Where("owner = ?", owner)

	if err := query.Model(&models.LedgerEntry{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&entries).Error

	return entries, total, err
}

// FindByRef lists every entry tied to a deal, session or external id
func (r *ledgerEntryRepository) FindByRef(ctx context.Context, ref string) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("ref = ?", ref).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
