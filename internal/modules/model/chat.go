package model

import (
	"time"

	"github.com/google/uuid"
)

// Two independent conversation spaces share the same deterministic-id convention.
const (
	ChatSpacePrivate = "private"
	ChatSpaceCareer  = "career"
)

// ChatMessage is append-only; messages are never edited or deleted.
type ChatMessage struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Space          string    `gorm:"type:text;not null;default:'private';check:space IN ('private','career');index:ix_chat_messages_space_conversation,priority:1" json:"space"`
	ConversationID string    `gorm:"type:text;not null;index:ix_chat_messages_space_conversation,priority:2" json:"conversation_id"`

	SenderID   string `gorm:"type:text;not null" json:"sender_id"`
	SenderName string `gorm:"type:text;not null" json:"sender_name"`
	IsTeacher  bool   `gorm:"not null;default:false" json:"is_teacher"`
	Text       string `gorm:"type:text;not null" json:"text"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
