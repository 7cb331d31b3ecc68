package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"gorm.io/gorm"
)

type ChatRepo interface {
	Create(ctx context.Context, m *model.ChatMessage) error
	ListByConversation(ctx context.Context, space, conversationID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.ChatMessage, error)
}

type chatRepo struct{ db *gorm.DB }

func NewChatRepo(db *gorm.DB) ChatRepo {
	return &chatRepo{db: db}
}

func (r *chatRepo) Create(ctx context.Context, m *model.ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *chatRepo) ListByConversation(ctx context.Context, space, conversationID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.ChatMessage, error) {
	q := r.db.WithContext(ctx).
		Where("space = ? AND conversation_id = ?", space, conversationID)
	if !afterCreatedAt.IsZero() {
		q = q.Where("(created_at, id) < (?, ?)", afterCreatedAt, afterID)
	}
	var out []*model.ChatMessage
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
