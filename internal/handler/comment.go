package handler

import (
	"log/slog"
	"net/http"

	models "marginalia/internal/domain/models/annotation"
	annotationSvc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/httputil"
	"marginalia/internal/service/annotation"
)

// CommentHandler handles comment HTTP requests. When the user has the
// chapter open, writes go through their session so highlights stay in step
// with the store; otherwise they go straight to the comment service.
type CommentHandler struct {
	commentService annotationSvc.CommentService
	sessions       *annotation.SessionRegistry
	logger         *slog.Logger
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(commentService annotationSvc.CommentService, sessions *annotation.SessionRegistry, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		sessions:       sessions,
		logger:         logger,
	}
}

// createCommentBody is the comment creation payload. Without a position the
// comment is anchored to the session's current selection.
type createCommentBody struct {
	CommentText  string           `json:"comment_text"`
	SelectedText string           `json:"selected_text,omitempty"`
	Position     *models.Position `json:"position,omitempty"`
	HighlightID  string           `json:"highlight_id,omitempty"`
}

// ListComments lists the user's comments on a chapter, oldest first
// GET /api/courses/{courseId}/chapters/{chapter}/comments
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		handleError(w, err)
		return
	}

	comments, err := h.commentService.ListComments(r.Context(), scope, httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, comments)
}

// CreateComment creates a comment
// POST /api/courses/{courseId}/chapters/{chapter}/comments
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		handleError(w, err)
		return
	}
	userID := httputil.GetUserID(r)

	var body createCommentBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Position == nil {
		session, err := h.sessions.Current(userID, scope)
		if err != nil {
			handleError(w, err)
			return
		}
		comment, err := session.CreateComment(r.Context(), body.CommentText)
		if err != nil {
			handleError(w, err)
			return
		}
		httputil.RespondJSON(w, http.StatusCreated, comment)
		return
	}

	// Position encoded by the client
	comment, err := h.commentService.CreateComment(r.Context(), &annotationSvc.CreateCommentRequest{
		Scope:        scope,
		UserID:       userID,
		CommentText:  body.CommentText,
		SelectedText: body.SelectedText,
		Position:     *body.Position,
		HighlightID:  body.HighlightID,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	if session, err := h.sessions.Current(userID, scope); err == nil {
		if _, err := session.LoadComments(r.Context()); err != nil {
			h.logger.Warn("session not refreshed after create", "error", err)
		}
	}

	httputil.RespondJSON(w, http.StatusCreated, comment)
}

// GetComment retrieves a comment
// GET /api/courses/{courseId}/chapters/{chapter}/comments/{id}
func (h *CommentHandler) GetComment(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		handleError(w, err)
		return
	}

	comment, err := h.commentService.GetComment(r.Context(), scope, httputil.GetUserID(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, comment)
}

// UpdateComment changes a comment's text
// PATCH /api/courses/{courseId}/chapters/{chapter}/comments/{id}
func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		handleError(w, err)
		return
	}
	userID := httputil.GetUserID(r)

	var req annotationSvc.UpdateCommentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var comment *models.Comment
	if session, sessErr := h.sessions.Current(userID, scope); sessErr == nil {
		comment, err = session.EditComment(r.Context(), r.PathValue("id"), req.CommentText)
	} else {
		comment, err = h.commentService.UpdateComment(r.Context(), scope, userID, r.PathValue("id"), &req)
	}
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, comment)
}

// DeleteComment deletes a comment and its highlight
// DELETE /api/courses/{courseId}/chapters/{chapter}/comments/{id}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		handleError(w, err)
		return
	}
	userID := httputil.GetUserID(r)

	if session, sessErr := h.sessions.Current(userID, scope); sessErr == nil {
		_, err = session.DeleteComment(r.Context(), r.PathValue("id"))
	} else {
		err = h.commentService.DeleteComment(r.Context(), scope, userID, r.PathValue("id"))
	}
	if err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
