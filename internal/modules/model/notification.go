package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationSessionApproved = "session_approved"
	NotificationSessionRejected = "session_rejected"
	NotificationSessionStarted  = "session_started"
	NotificationSessionEnded    = "session_ended"
)

// Notification is immutable except for the read flag, which only goes false -> true.
type Notification struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID  string    `gorm:"type:text;not null;index:ix_notifications_user_read,priority:1" json:"user_id"`
	Title   string    `gorm:"type:text;not null" json:"title"`
	Message string    `gorm:"type:text;not null" json:"message"`
	Type    string    `gorm:"type:text;not null;check:type IN ('session_approved','session_rejected','session_started','session_ended')" json:"type"`

	SessionID *uuid.UUID `gorm:"type:uuid;index" json:"session_id,omitempty"`
	RoomID    string     `gorm:"type:text" json:"room_id,omitempty"`

	Read bool `gorm:"not null;default:false;index:ix_notifications_user_read,priority:2" json:"read"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Notification) TableName() string { return "notifications" }
