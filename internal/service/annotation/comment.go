package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"marginalia/internal/config"
	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	"marginalia/internal/domain/repositories"
	annotationRepo "marginalia/internal/domain/repositories/annotation"
	annotationSvc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/highlight"
)

// commentService implements the CommentService interface
type commentService struct {
	commentRepo annotationRepo.CommentRepository
	txManager   repositories.TransactionManager
	logger      *slog.Logger
	now         func() time.Time
}

// NewCommentService creates a new comment service
func NewCommentService(
	commentRepo annotationRepo.CommentRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) annotationSvc.CommentService {
	return &commentService{
		commentRepo: commentRepo,
		txManager:   txManager,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateComment validates and persists a new comment
func (s *commentService) CreateComment(ctx context.Context, req *annotationSvc.CreateCommentRequest) (*models.Comment, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	highlightID := req.HighlightID
	if highlightID == "" {
		highlightID = highlight.NewHighlightID()
	}

	now := s.now()
	comment := &models.Comment{
		UserID:       req.UserID,
		CourseID:     req.Scope.CourseID,
		ChapterIndex: req.Scope.ChapterIndex,
		CommentText:  strings.TrimSpace(req.CommentText),
		SelectedText: req.SelectedText,
		Position:     req.Position,
		HighlightID:  highlightID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, persistenceError("create", err)
	}

	s.logger.Info("comment created",
		"id", comment.ID,
		"scope", req.Scope.String(),
		"highlight_id", comment.HighlightID,
		"user_id", req.UserID,
	)

	return comment, nil
}

// ListComments returns a user's comments on a chapter, oldest first
func (s *commentService) ListComments(ctx context.Context, scope models.Scope, userID string) ([]models.Comment, error) {
	if err := validateScope(scope); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	comments, err := s.commentRepo.ListByScope(ctx, scope, userID)
	if err != nil {
		return nil, persistenceError("list", err)
	}

	// Stores do not guarantee order
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})

	return comments, nil
}

// GetComment retrieves one of the user's comments
func (s *commentService) GetComment(ctx context.Context, scope models.Scope, userID, commentID string) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, scope, commentID)
	if err != nil {
		return nil, persistenceError("get", err)
	}

	// Other users' comments are reported as missing
	if comment.UserID != userID {
		return nil, fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
	}

	return comment, nil
}

// UpdateComment changes the comment text
func (s *commentService) UpdateComment(ctx context.Context, scope models.Scope, userID, commentID string, req *annotationSvc.UpdateCommentRequest) (*models.Comment, error) {
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var updated *models.Comment
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		comment, err := s.GetComment(txCtx, scope, userID, commentID)
		if err != nil {
			return err
		}

		comment.CommentText = strings.TrimSpace(req.CommentText)
		comment.UpdatedAt = s.now()
		if err := s.commentRepo.UpdateText(txCtx, scope, comment.ID, comment.CommentText, comment.UpdatedAt); err != nil {
			return persistenceError("update", err)
		}

		updated = comment
		return nil
	})
	if err != nil {
		return nil, persistenceError("update", err)
	}

	s.logger.Info("comment updated",
		"id", commentID,
		"scope", scope.String(),
		"user_id", userID,
	)

	return updated, nil
}

// DeleteComment removes one of the user's comments
func (s *commentService) DeleteComment(ctx context.Context, scope models.Scope, userID, commentID string) error {
	// Verify ownership first
	if _, err := s.GetComment(ctx, scope, userID, commentID); err != nil {
		return err
	}

	if err := s.commentRepo.Delete(ctx, scope, commentID); err != nil {
		return persistenceError("delete", err)
	}

	s.logger.Info("comment deleted",
		"id", commentID,
		"scope", scope.String(),
		"user_id", userID,
	)

	return nil
}

// validateCreateRequest validates a create comment request
func (s *commentService) validateCreateRequest(req *annotationSvc.CreateCommentRequest) error {
	if err := validateScope(req.Scope); err != nil {
		return err
	}
	return validation.ValidateStruct(req,
		validation.Field(&req.UserID, validation.Required),
		validation.Field(&req.CommentText,
			validation.Required,
			validation.RuneLength(1, config.MaxCommentLength),
			validation.By(notBlank),
		),
		validation.Field(&req.SelectedText,
			validation.Required,
			validation.RuneLength(1, config.MaxSelectedTextLength),
		),
		validation.Field(&req.Position, validation.By(validatePosition)),
	)
}

// validateUpdateRequest validates an update comment request
func (s *commentService) validateUpdateRequest(req *annotationSvc.UpdateCommentRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.CommentText,
			validation.Required,
			validation.RuneLength(1, config.MaxCommentLength),
			validation.By(notBlank),
		),
	)
}

func validateScope(scope models.Scope) error {
	return validation.ValidateStruct(&scope,
		validation.Field(&scope.CourseID, validation.Required, validation.Length(1, config.MaxCourseIDLength)),
		validation.Field(&scope.ChapterIndex, validation.Min(0)),
	)
}

func validatePosition(value interface{}) error {
	pos, ok := value.(models.Position)
	if !ok {
		return fmt.Errorf("position must be an object")
	}
	if pos.StartOffset < 0 {
		return fmt.Errorf("start_offset must not be negative")
	}
	if pos.EndOffset <= pos.StartOffset {
		return fmt.Errorf("end_offset must be greater than start_offset")
	}
	return nil
}

func notBlank(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("cannot be blank")
	}
	return nil
}
