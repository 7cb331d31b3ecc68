package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"github.com/tutorhub/tutorhub/internal/modules/repo"
	"github.com/tutorhub/tutorhub/internal/pkg/paging"
	"github.com/tutorhub/tutorhub/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationService interface {
	Deliver(ctx context.Context, ev NotificationEvent) error
	ListUnread(ctx context.Context, userID string) ([]*model.Notification, error)
	List(ctx context.Context, in ListNotificationsInput) (*ListNotificationsOutput, error)
	MarkRead(ctx context.Context, userID string, id uuid.UUID) error
	Reconcile(ctx context.Context, since time.Time) (int, error)
}

type notificationService struct {
	r   repo.NotificationRepo
	hub *realtime.Hub
	log *zap.Logger
}

func NewNotificationService(r repo.NotificationRepo, hub *realtime.Hub, log *zap.Logger) NotificationService {
	return &notificationService{r: r, hub: hub, log: log}
}

// Deliver persists a notification and pushes it to the recipient's realtime
// channel. Redelivered decision events are detected by (session, type) and
// skipped, so the queue's at-least-once delivery stays exactly-once here.
func (s *notificationService) Deliver(ctx context.Context, ev NotificationEvent) error {
	if ev.UserID == "" {
		return errors.New("notification has no recipient")
	}

	if ev.SessionID != nil {
		exists, err := s.r.ExistsForSession(ctx, *ev.SessionID, ev.Type)
		if err != nil {
			return err
		}
		if exists {
			s.log.Debug("skipping duplicate notification",
				zap.String("session_id", ev.SessionID.String()),
				zap.String("type", ev.Type))
			return nil
		}
	}

	n := &model.Notification{
		UserID:    ev.UserID,
		Title:     ev.Title,
		Message:   ev.Message,
		Type:      ev.Type,
		SessionID: ev.SessionID,
		RoomID:    ev.RoomID,
	}
	if err := s.r.Create(ctx, n); err != nil {
		return err
	}

	if err := s.hub.Publish(ctx, realtime.NotifyChannel(ev.UserID), n); err != nil {
		// The row is already durable; realtime delivery is best effort.
		s.log.Warn("realtime notification publish failed",
			zap.String("user_id", ev.UserID), zap.Error(err))
	}
	return nil
}

func (s *notificationService) ListUnread(ctx context.Context, userID string) ([]*model.Notification, error) {
	return s.r.ListUnread(ctx, userID)
}

type ListNotificationsInput struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor"`
}

type ListNotificationsOutput struct {
	Items      []*model.Notification `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
	HasMore    bool                  `json:"has_more"`
}

func (s *notificationService) List(ctx context.Context, in ListNotificationsInput) (*ListNotificationsOutput, error) {
	if in.Limit <= 0 {
		in.Limit = 20
	}

	var afterT time.Time
	var afterID uuid.UUID
	var err error
	if in.Cursor != "" {
		afterT, afterID, err = paging.DecodeCursor(in.Cursor)
		if err != nil {
			return nil, err
		}
	}

	items, err := s.r.List(ctx, in.UserID, afterT, afterID, in.Limit+1)
	if err != nil {
		return nil, err
	}

	out := &ListNotificationsOutput{Items: items}
	if len(items) > in.Limit {
		out.Items = items[:in.Limit]
		out.HasMore = true
		last := out.Items[len(out.Items)-1]
		out.NextCursor = paging.EncodeCursor(last.CreatedAt, last.ID)
	}
	return out, nil
}

// MarkRead flips the read flag. Marking an already-read notification is not
// an error; the flag only moves false -> true.
func (s *notificationService) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	updated, err := s.r.MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !updated {
		// Distinguish "already read" from "not yours / missing".
		n, err := s.r.GetByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if n.UserID != userID {
			return ErrForbidden
		}
	}
	return nil
}

// Reconcile re-emits notifications for sessions decided after since that
// never got one, repairing lost queue messages. Returns the repair count.
func (s *notificationService) Reconcile(ctx context.Context, since time.Time) (int, error) {
	missed, err := s.r.ListDecidedWithoutNotification(ctx, since)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, req := range missed {
		ev := NotificationEvent{
			UserID:    req.RequesterID,
			SessionID: &req.ID,
		}
		switch req.Status {
		case model.SessionStatusApproved:
			ev.Title = "Session approved"
			ev.Message = fmt.Sprintf("%s approved your session on %q", req.TeacherName, req.Topic)
			ev.Type = model.NotificationSessionApproved
			ev.RoomID = req.RoomID
		case model.SessionStatusRejected:
			ev.Title = "Session rejected"
			ev.Message = fmt.Sprintf("Your session on %q was rejected: %s", req.Topic, req.RejectionReason)
			ev.Type = model.NotificationSessionRejected
		default:
			continue
		}

		if err := s.Deliver(ctx, ev); err != nil {
			s.log.Error("reconcile delivery failed",
				zap.String("session_id", req.ID.String()), zap.Error(err))
			continue
		}
		repaired++
	}

	if repaired > 0 {
		s.log.Info("reconciled missed notifications", zap.Int("count", repaired))
	}
	return repaired, nil
}
