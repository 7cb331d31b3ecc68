package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"gorm.io/gorm"
)

type NotificationRepo interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]*model.Notification, error)
	List(ctx context.Context, userID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, userID string, id uuid.UUID) (bool, error)
	ExistsForSession(ctx context.Context, sessionID uuid.UUID, notifType string) (bool, error)
	ListDecidedWithoutNotification(ctx context.Context, since time.Time) ([]*model.SessionRequest, error)
}

type notificationRepo struct{ db *gorm.DB }

func NewNotificationRepo(db *gorm.DB) NotificationRepo {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) ListUnread(ctx context.Context, userID string) ([]*model.Notification, error) {
	var out []*model.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND read = ?", userID, false).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *notificationRepo) List(ctx context.Context, userID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !afterCreatedAt.IsZero() {
		q = q.Where("(created_at, id) < (?, ?)", afterCreatedAt, afterID)
	}
	var out []*model.Notification
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips read false -> true. Returns false when the notification is
// already read or does not belong to userID; marking twice is harmless.
func (r *notificationRepo) MarkRead(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND user_id = ? AND read = ?", id, userID, false).
		Update("read", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExistsForSession reports whether a notification of notifType was already
// written for sessionID. Queue redeliveries use this to stay idempotent.
func (r *notificationRepo) ExistsForSession(ctx context.Context, sessionID uuid.UUID, notifType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("session_id = ? AND type = ?", sessionID, notifType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListDecidedWithoutNotification finds sessions decided after since that have
// no matching notification row. The reconcile sweep re-emits those.
func (r *notificationRepo) ListDecidedWithoutNotification(ctx context.Context, since time.Time) ([]*model.SessionRequest, error) {
	var out []*model.SessionRequest
	err := r.db.WithContext(ctx).
		Model(&model.SessionRequest{}).
		Joins("LEFT JOIN notifications ON notifications.session_id = session_requests.id AND notifications.type IN (?, ?)",
			model.NotificationSessionApproved, model.NotificationSessionRejected).
		Where("session_requests.status IN (?, ?)", model.SessionStatusApproved, model.SessionStatusRejected).
		Where("session_requests.updated_at >= ?", since).
		Where("notifications.id IS NULL").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
