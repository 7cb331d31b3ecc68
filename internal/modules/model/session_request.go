package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Session request lifecycle. Transitions are monotonic:
// pending -> approved | rejected, approved -> ended. Nothing returns to pending.
const (
	SessionStatusPending  = "pending"
	SessionStatusApproved = "approved"
	SessionStatusRejected = "rejected"
	SessionStatusEnded    = "ended"
)

type SessionRequest struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequesterID   string    `gorm:"type:text;not null;index" json:"requester_id"`
	RequesterName string    `gorm:"type:text;not null" json:"requester_name"`
	TeacherID     string    `gorm:"type:text;not null;index:ix_session_requests_teacher_status,priority:1" json:"teacher_id"`
	TeacherName   string    `gorm:"type:text" json:"teacher_name"`

	Topic         string    `gorm:"type:text;not null" json:"topic"`
	Description   string    `gorm:"type:text" json:"description"`
	RequestedDate time.Time `gorm:"not null" json:"requested_date"`

	Status          string `gorm:"type:text;not null;default:'pending';check:status IN ('pending','approved','rejected','ended');index:ix_session_requests_teacher_status,priority:2" json:"status"`
	MeetingCode     string `gorm:"type:text;not null;uniqueIndex" json:"meeting_code"`
	RoomID          string `gorm:"type:text" json:"room_id,omitempty"`
	RejectionReason string `gorm:"type:text" json:"rejection_reason,omitempty"`

	// Display names of everyone who joined, set semantics enforced on append.
	Participants datatypes.JSONSlice[string] `gorm:"type:jsonb" swaggertype:"array,string" json:"participants"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// SessionRequest <-> Participation
	Participations []Participation `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (SessionRequest) TableName() string { return "session_requests" }

func (r *SessionRequest) IsPending() bool  { return r.Status == SessionStatusPending }
func (r *SessionRequest) IsApproved() bool { return r.Status == SessionStatusApproved }
func (r *SessionRequest) IsEnded() bool    { return r.Status == SessionStatusEnded }

// HasParticipant reports whether name already joined.
func (r *SessionRequest) HasParticipant(name string) bool {
	for _, p := range r.Participants {
		if p == name {
			return true
		}
	}
	return false
}
