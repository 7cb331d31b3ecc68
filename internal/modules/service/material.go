package service

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/infra/blob"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"github.com/tutorhub/tutorhub/internal/modules/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MaterialService interface {
	CreateSubject(ctx context.Context, name, description string) (*model.Subject, error)
	ListSubjects(ctx context.Context) ([]*model.Subject, error)
	CreateChapter(ctx context.Context, subjectID uuid.UUID, title string, position int) (*model.Chapter, error)
	ListChapters(ctx context.Context, subjectID uuid.UUID) ([]*model.Chapter, error)
	Upload(ctx context.Context, in UploadMaterialInput) (*model.Material, error)
	Get(ctx context.Context, id uuid.UUID) (*MaterialOutput, error)
	ListByChapter(ctx context.Context, chapterID uuid.UUID) ([]*model.Material, error)
}

type materialService struct {
	r   repo.SubjectRepo
	s3  *blob.S3Deps
	cfg *config.Config
	log *zap.Logger
}

func NewMaterialService(r repo.SubjectRepo, s3 *blob.S3Deps, cfg *config.Config, log *zap.Logger) MaterialService {
	return &materialService{r: r, s3: s3, cfg: cfg, log: log}
}

func (s *materialService) CreateSubject(ctx context.Context, name, description string) (*model.Subject, error) {
	if name == "" {
		return nil, errors.New("subject name is required")
	}
	sub := &model.Subject{Name: name, Description: description}
	if err := s.r.CreateSubject(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *materialService) ListSubjects(ctx context.Context) ([]*model.Subject, error) {
	return s.r.ListSubjects(ctx)
}

func (s *materialService) CreateChapter(ctx context.Context, subjectID uuid.UUID, title string, position int) (*model.Chapter, error) {
	if title == "" {
		return nil, errors.New("chapter title is required")
	}
	c := &model.Chapter{SubjectID: subjectID, Title: title, Position: position}
	if err := s.r.CreateChapter(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *materialService) ListChapters(ctx context.Context, subjectID uuid.UUID) ([]*model.Chapter, error) {
	return s.r.ListChapters(ctx, subjectID)
}

type UploadMaterialInput struct {
	ChapterID  uuid.UUID
	Title      string
	Kind       string
	UploadedBy string
	File       *multipart.FileHeader
}

func (s *materialService) Upload(ctx context.Context, in UploadMaterialInput) (*model.Material, error) {
	if in.Title == "" {
		return nil, errors.New("material title is required")
	}
	if in.Kind != model.MaterialKindDocument && in.Kind != model.MaterialKindVideo {
		return nil, errors.New("unknown material kind")
	}
	if in.File == nil {
		return nil, errors.New("file is required")
	}

	meta, err := s.s3.UploadFormFile(ctx, "materials/"+in.ChapterID.String(), in.File)
	if err != nil {
		return nil, err
	}

	m := &model.Material{
		ChapterID:  in.ChapterID,
		Title:      in.Title,
		Kind:       in.Kind,
		S3Key:      meta.Key,
		MIME:       meta.MIME,
		SizeB:      meta.SizeB,
		UploadedBy: in.UploadedBy,
	}
	if err := s.r.CreateMaterial(ctx, m); err != nil {
		// The object is orphaned if this fails; best effort cleanup.
		if delErr := s.s3.DeleteObject(ctx, meta.Key); delErr != nil {
			s.log.Warn("orphaned material object",
				zap.String("s3_key", meta.Key), zap.Error(delErr))
		}
		return nil, err
	}
	return m, nil
}

type MaterialOutput struct {
	Material *model.Material `json:"material"`
	URL      string          `json:"url"`
}

// Get returns the material with a presigned download URL and bumps its view
// counter.
func (s *materialService) Get(ctx context.Context, id uuid.UUID) (*MaterialOutput, error) {
	m, err := s.r.GetMaterial(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	expires := time.Duration(s.cfg.S3.PresignExpireSec) * time.Second
	url, err := s.s3.PresignGet(ctx, m.S3Key, expires)
	if err != nil {
		return nil, err
	}

	if err := s.r.IncrementViewCount(ctx, id); err != nil {
		s.log.Warn("view count increment failed",
			zap.String("material_id", id.String()), zap.Error(err))
	}
	return &MaterialOutput{Material: m, URL: url}, nil
}

func (s *materialService) ListByChapter(ctx context.Context, chapterID uuid.UUID) ([]*model.Material, error) {
	return s.r.ListMaterialsByChapter(ctx, chapterID)
}
