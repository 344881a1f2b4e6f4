package annotation

import (
	"context"

	"marginalia/internal/domain/models/annotation"
)

// CommentService handles comment business logic
type CommentService interface {
	// CreateComment validates and persists a new comment
	CreateComment(ctx context.Context, req *CreateCommentRequest) (*annotation.Comment, error)

	// ListComments returns a user's comments on a chapter, oldest first
	ListComments(ctx context.Context, scope annotation.Scope, userID string) ([]annotation.Comment, error)

	// GetComment retrieves one of the user's comments
	GetComment(ctx context.Context, scope annotation.Scope, userID, commentID string) (*annotation.Comment, error)

	// UpdateComment changes the comment text (the anchor is immutable)
	UpdateComment(ctx context.Context, scope annotation.Scope, userID, commentID string, req *UpdateCommentRequest) (*annotation.Comment, error)

	// DeleteComment removes one of the user's comments
	DeleteComment(ctx context.Context, scope annotation.Scope, userID, commentID string) error
}

// ChapterService handles chapter content ingestion and retrieval
type ChapterService interface {
	// GetChapter retrieves chapter content
	GetChapter(ctx context.Context, scope annotation.Scope) (*annotation.Chapter, error)

	// PutChapter sanitizes and stores chapter content
	PutChapter(ctx context.Context, req *PutChapterRequest) (*annotation.Chapter, error)
}

// CreateCommentRequest represents a comment creation request
type CreateCommentRequest struct {
	Scope        annotation.Scope    `json:"-"` // Set by handler from the URL
	UserID       string              `json:"-"` // Set by handler from auth context
	CommentText  string              `json:"comment_text"`
	SelectedText string              `json:"selected_text"`
	Position     annotation.Position `json:"position"`
	HighlightID  string              `json:"highlight_id,omitempty"` // Generated when empty
}

// UpdateCommentRequest represents a comment edit
type UpdateCommentRequest struct {
	CommentText string `json:"comment_text"`
}

// PutChapterRequest represents chapter content ingestion
type PutChapterRequest struct {
	Scope   annotation.Scope `json:"-"`
	Title   string           `json:"title"`
	Content string           `json:"content"` // HTML fragment, sanitized before storage
}
