package handler

import (
	"log/slog"
	"net/http"

	annotationSvc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/httputil"
)

// ChapterHandler handles chapter content HTTP requests
type ChapterHandler struct {
	chapterService annotationSvc.ChapterService
	logger         *slog.Logger
}

// NewChapterHandler creates a new chapter handler
func NewChapterHandler(chapterService annotationSvc.ChapterService, logger *slog.Logger) *ChapterHandler {
	return &ChapterHandler{
		chapterService: chapterService,
		logger:         logger,
	}
}

// GetChapter returns stored chapter content without highlights
// GET /api/courses/{courseId}/chapters/{chapter}
func (h *ChapterHandler) GetChapter(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		handleError(w, err)
		return
	}

	chapter, err := h.chapterService.GetChapter(r.Context(), scope)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chapter)
}

// PutChapter stores chapter content
// PUT /api/courses/{courseId}/chapters/{chapter}
func (h *ChapterHandler) PutChapter(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var req annotationSvc.PutChapterRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Scope = scope

	chapter, err := h.chapterService.PutChapter(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chapter)
}
