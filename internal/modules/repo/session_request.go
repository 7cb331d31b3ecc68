package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRequestRepo interface {
	Create(ctx context.Context, s *model.SessionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.SessionRequest, error)
	GetByMeetingCode(ctx context.Context, code string) (*model.SessionRequest, error)
	MeetingCodeExists(ctx context.Context, code string) (bool, error)
	ListPendingByTeacher(ctx context.Context, teacherID string) ([]*model.SessionRequest, error)
	ListByRequester(ctx context.Context, requesterID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.SessionRequest, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, updates map[string]interface{}) (bool, error)
	AppendParticipant(ctx context.Context, id uuid.UUID, p *model.Participation) error
}

type sessionRequestRepo struct{ db *gorm.DB }

func NewSessionRequestRepo(db *gorm.DB) SessionRequestRepo {
	return &sessionRequestRepo{db: db}
}

func (r *sessionRequestRepo) Create(ctx context.Context, s *model.SessionRequest) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.SessionRequest, error) {
	var s model.SessionRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRequestRepo) GetByMeetingCode(ctx context.Context, code string) (*model.SessionRequest, error) {
	var s model.SessionRequest
	err := r.db.WithContext(ctx).Where("meeting_code = ?", code).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRequestRepo) MeetingCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.SessionRequest{}).
		Where("meeting_code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *sessionRequestRepo) ListPendingByTeacher(ctx context.Context, teacherID string) ([]*model.SessionRequest, error) {
	var out []*model.SessionRequest
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND status = ?", teacherID, model.SessionStatusPending).
		Order("requested_date ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRequestRepo) ListByRequester(ctx context.Context, requesterID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.SessionRequest, error) {
	q := r.db.WithContext(ctx).Where("requester_id = ?", requesterID)
	if !afterCreatedAt.IsZero() {
		q = q.Where("(created_at, id) < (?, ?)", afterCreatedAt, afterID)
	}
	var out []*model.SessionRequest
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionStatus performs a compare-and-swap on the status column. It
// returns false when the row was not in fromStatus, so concurrent deciders
// cannot both win.
func (r *sessionRequestRepo) TransitionStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = toStatus
	res := r.db.WithContext(ctx).
		Model(&model.SessionRequest{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendParticipant records a join: adds the display name to the session's
// participant set and inserts the participation row. Both writes are
// idempotent, so re-joining the same session is a no-op.
func (r *sessionRequestRepo) AppendParticipant(ctx context.Context, id uuid.UUID, p *model.Participation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s model.SessionRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&s).Error; err != nil {
			return err
		}

		if !s.HasParticipant(p.DisplayName) {
			s.Participants = append(s.Participants, p.DisplayName)
			if err := tx.Model(&model.SessionRequest{}).
				Where("id = ?", id).
				Update("participants", s.Participants).Error; err != nil {
				return err
			}
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(p).Error
	})
}
