package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"gorm.io/gorm"
)

type ParticipationRepo interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*model.Participation, error)
	ListByUser(ctx context.Context, userID string, afterJoinedAt time.Time, afterID uuid.UUID, limit int) ([]*model.Participation, error)
}

type participationRepo struct{ db *gorm.DB }

func NewParticipationRepo(db *gorm.DB) ParticipationRepo {
	return &participationRepo{db: db}
}

func (r *participationRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*model.Participation, error) {
	var out []*model.Participation
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("joined_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *participationRepo) ListByUser(ctx context.Context, userID string, afterJoinedAt time.Time, afterID uuid.UUID, limit int) ([]*model.Participation, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !afterJoinedAt.IsZero() {
		q = q.Where("(joined_at, id) < (?, ?)", afterJoinedAt, afterID)
	}
	var out []*model.Participation
	err := q.Order("joined_at DESC, id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
