package repository

import (
	"context"

	"github.com/cartdotfun/settlement-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository defines the interface for Session data access
type SessionRepository interface {
	Upsert(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	FindByAgent(ctx context.Context, agent string, page, pageSize int) ([]*models.Session, int64, error)
	FindByProvider(ctx context.Context, provider string, page, pageSize int) ([]*models.Session, int64, error)
	CountByAgent(ctx context.Context, agent string) (int64, error)
	GetAll(ctx context.Context) ([]*models.Session, error)
}

// sessionRepository implements SessionRepository
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Upsert writes the full session row, inserting or replacing by id.
func (r *sessionRepository) Upsert(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"used", "state", "expires_at", "updated_at",
			}),
		}).
		Create(session).Error
}

// GetByID retrieves a session by id
func (r *sessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByAgent lists an agent's sessions with pagination
func (r *sessionRepository) FindByAgent(ctx context.Context, agent string, page, pageSize int) ([]*models.Session, int64, error) {
	return r.findByColumn(ctx, "agent", agent, page, pageSize)
}

// FindByProvider lists a provider's sessions with pagination
func (r *sessionRepository) FindByProvider(ctx context.Context, provider string, page, pageSize int) ([]*models.Session, int64, error) {
	return r.findByColumn(ctx, "provider", provider, page, pageSize)
}

func (r *sessionRepository) findByColumn(ctx context.Context, column, value string, page, pageSize int) ([]*models.Session, int64, error) {
	var sessions []*models.Session
	var total int64

	query := r.db.WithContext(ctx).Where(column+" = ?", value)

	if err := query.Model(&models.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&sessions).Error

	return sessions, total, err
}

// CountByAgent counts sessions ever opened by an agent. Used to seed the
// agent's id-derivation nonce at boot.
func (r *sessionRepository) CountByAgent(ctx context.Context, agent string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("agent = ?", agent).
		Count(&count).Error
	return count, err
}

// GetAll lists every session row, used for boot recovery
func (r *sessionRepository) GetAll(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session
	err := r.db.WithContext(ctx).Find(&sessions).Error
	return sessions, err
}
