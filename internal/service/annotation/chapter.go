package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"marginalia/internal/config"
	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	annotationRepo "marginalia/internal/domain/repositories/annotation"
	annotationSvc "marginalia/internal/domain/services/annotation"
)

// chapterService implements the ChapterService interface
type chapterService struct {
	chapterRepo annotationRepo.ChapterRepository
	sanitizer   *HTMLSanitizer
	logger      *slog.Logger
}

// NewChapterService creates a new chapter service
func NewChapterService(
	chapterRepo annotationRepo.ChapterRepository,
	sanitizer *HTMLSanitizer,
	logger *slog.Logger,
) annotationSvc.ChapterService {
	return &chapterService{
		chapterRepo: chapterRepo,
		sanitizer:   sanitizer,
		logger:      logger,
	}
}

// GetChapter retrieves chapter content
func (s *chapterService) GetChapter(ctx context.Context, scope models.Scope) (*models.Chapter, error) {
	if err := validateScope(scope); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return s.chapterRepo.GetChapter(ctx, scope)
}

// PutChapter sanitizes and stores chapter content. Replacing content that
// already has comments is allowed; their positions are relocated on load.
func (s *chapterService) PutChapter(ctx context.Context, req *annotationSvc.PutChapterRequest) (*models.Chapter, error) {
	if err := s.validatePutRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	chapter := &models.Chapter{
		CourseID:     req.Scope.CourseID,
		ChapterIndex: req.Scope.ChapterIndex,
		Title:        strings.TrimSpace(req.Title),
		Content:      s.sanitizer.Sanitize(req.Content),
		UpdatedAt:    time.Now(),
	}

	if err := s.chapterRepo.Upsert(ctx, chapter); err != nil {
		return nil, err
	}

	s.logger.Info("chapter stored",
		"scope", req.Scope.String(),
		"content_bytes", len(chapter.Content),
	)

	return chapter, nil
}

// validatePutRequest validates a chapter ingest request
func (s *chapterService) validatePutRequest(req *annotationSvc.PutChapterRequest) error {
	if err := validateScope(req.Scope); err != nil {
		return err
	}
	return validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.RuneLength(0, config.MaxChapterTitleLength)),
		validation.Field(&req.Content,
			validation.Required,
			validation.Length(1, config.MaxChapterContentLength),
		),
	)
}
