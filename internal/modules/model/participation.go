package model

import (
	"time"

	"github.com/google/uuid"
)

// Participation is the auditable join event: who joined which session, when.
// One record per (session, user); repeat joins do not append.
type Participation struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SessionID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_participation_session_user,priority:1" json:"session_id"`
	UserID      string    `gorm:"type:text;not null;uniqueIndex:uq_participation_session_user,priority:2" json:"user_id"`
	DisplayName string    `gorm:"type:text;not null" json:"display_name"`
	Topic       string    `gorm:"type:text" json:"topic"`
	TeacherName string    `gorm:"type:text" json:"teacher_name"`

	JoinedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"joined_at"`

	// Participation <-> SessionRequest
	Session *SessionRequest `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Participation) TableName() string { return "participations" }
