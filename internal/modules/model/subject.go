package model

import (
	"time"

	"github.com/google/uuid"
)

type Subject struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:text;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Subject <-> Chapter
	Chapters []Chapter `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Subject) TableName() string { return "subjects" }

type Chapter struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubjectID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_chapter_subject_position,priority:1" json:"subject_id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Position  int       `gorm:"not null;uniqueIndex:uq_chapter_subject_position,priority:2" json:"position"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Chapter <-> Subject
	Subject *Subject `gorm:"foreignKey:SubjectID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// Chapter <-> Material
	Materials []Material `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Chapter) TableName() string { return "chapters" }

const (
	MaterialKindDocument = "document"
	MaterialKindVideo    = "video"
)

// Material is a study document or video stored in object storage.
type Material struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ChapterID uuid.UUID `gorm:"type:uuid;not null;index" json:"chapter_id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Kind      string    `gorm:"type:text;not null;check:kind IN ('document','video')" json:"kind"`

	S3Key string `gorm:"type:text;not null" json:"-"`
	MIME  string `gorm:"type:text" json:"mime"`
	SizeB int64  `gorm:"not null;default:0" json:"size_bytes"`

	UploadedBy string `gorm:"type:text;not null" json:"uploaded_by"`
	ViewCount  int64  `gorm:"not null;default:0" json:"view_count"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Material <-> Chapter
	Chapter *Chapter `gorm:"foreignKey:ChapterID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Material) TableName() string { return "materials" }
