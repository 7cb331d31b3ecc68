package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"gorm.io/gorm"
)

type SubjectRepo interface {
	CreateSubject(ctx context.Context, s *model.Subject) error
	ListSubjects(ctx context.Context) ([]*model.Subject, error)
	CreateChapter(ctx context.Context, c *model.Chapter) error
	ListChapters(ctx context.Context, subjectID uuid.UUID) ([]*model.Chapter, error)
	CreateMaterial(ctx context.Context, m *model.Material) error
	GetMaterial(ctx context.Context, id uuid.UUID) (*model.Material, error)
	ListMaterialsByChapter(ctx context.Context, chapterID uuid.UUID) ([]*model.Material, error)
	IncrementViewCount(ctx context.Context, id uuid.UUID) error
}

type subjectRepo struct{ db *gorm.DB }

func NewSubjectRepo(db *gorm.DB) SubjectRepo {
	return &subjectRepo{db: db}
}

func (r *subjectRepo) CreateSubject(ctx context.Context, s *model.Subject) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *subjectRepo) ListSubjects(ctx context.Context) ([]*model.Subject, error) {
	var out []*model.Subject
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *subjectRepo) CreateChapter(ctx context.Context, c *model.Chapter) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *subjectRepo) ListChapters(ctx context.Context, subjectID uuid.UUID) ([]*model.Chapter, error) {
	var out []*model.Chapter
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("position ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *subjectRepo) CreateMaterial(ctx context.Context, m *model.Material) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *subjectRepo) GetMaterial(ctx context.Context, id uuid.UUID) (*model.Material, error) {
	var m model.Material
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *subjectRepo) ListMaterialsByChapter(ctx context.Context, chapterID uuid.UUID) ([]*model.Material, error) {
	var out []*model.Material
	err := r.db.WithContext(ctx).
		Where("chapter_id = ?", chapterID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *subjectRepo) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Material{}).
		Where("id = ?", id).
		Update("view_count", gorm.Expr("view_count + 1")).Error
}
