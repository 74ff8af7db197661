package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// ErrAttemptNotFound is returned when no attempt session matches.
var ErrAttemptNotFound = errors.New("attempt session not found")

// AttemptSessionRepository persists in-progress and finished attempt sessions.
type AttemptSessionRepository interface {
	Create(ctx context.Context, session *models.AttemptSession) error
	Get(ctx context.Context, id string) (models.AttemptSession, error)
	Save(ctx context.Context, session *models.AttemptSession) error
	FindOpen(ctx context.Context, userID, assessmentID string) (models.AttemptSession, error)
	ListOpen(ctx context.Context) ([]models.AttemptSession, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AttemptSession, error)
}

type attemptSessionRepository struct {
	db *gorm.DB
}

// NewAttemptSessionRepository constructs the gorm-backed repository.
func NewAttemptSessionRepository(db *gorm.DB) AttemptSessionRepository {
	return &attemptSessionRepository{db: db}
}

func (r *attemptSessionRepository) Create(ctx context.Context, session *models.AttemptSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *attemptSessionRepository) Get(ctx context.Context, id string) (models.AttemptSession, error) {
	var session models.AttemptSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	return session, translate(err)
}

func (r *attemptSessionRepository) Save(ctx context.Context, session *models.AttemptSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *attemptSessionRepository) FindOpen(ctx context.Context, userID, assessmentID string) (models.AttemptSession, error) {
	var session models.AttemptSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ? AND status = ?", userID, assessmentID, models.AttemptStatusInProgress).
		Order("started_at DESC").
		First(&session).Error
	return session, translate(err)
}

func (r *attemptSessionRepository) ListOpen(ctx context.Context) ([]models.AttemptSession, error) {
	var sessions []models.AttemptSession
	err := r.db.WithContext(ctx).
		Where("status = ?", models.AttemptStatusInProgress).
		Order("started_at ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *attemptSessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.AttemptSession, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var sessions []models.AttemptSession
	err := query.Find(&sessions).Error
	return sessions, err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAttemptNotFound
	}
	return err
}
