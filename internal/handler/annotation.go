package handler

import (
	"log/slog"
	"net/http"

	"marginalia/internal/anchor"
	"marginalia/internal/httputil"
	"marginalia/internal/service/annotation"
)

// AnnotationHandler drives a user's reading session: opening a chapter,
// tracking the selection and interacting with highlights.
type AnnotationHandler struct {
	sessions *annotation.SessionRegistry
	logger   *slog.Logger
}

// NewAnnotationHandler creates a new annotation handler
func NewAnnotationHandler(sessions *annotation.SessionRegistry, logger *slog.Logger) *AnnotationHandler {
	return &AnnotationHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// OpenChapter opens a chapter in the user's session and returns it with its
// highlights restored
// GET /api/courses/{courseId}/chapters/{chapter}/annotated
func (h *AnnotationHandler) OpenChapter(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		handleError(w, err)
		return
	}

	session := h.sessions.Session(httputil.GetUserID(r))
	report, err := session.Open(r.Context(), scope)
	if err != nil {
		handleError(w, err)
		return
	}

	view, err := session.View()
	if err != nil {
		handleError(w, err)
		return
	}
	view.Restore = report

	if len(report.Skipped) > 0 {
		h.logger.Info("chapter opened with unrestored highlights",
			"course_id", scope.CourseID,
			"chapter", scope.ChapterIndex,
			"skipped", len(report.Skipped),
		)
	}

	httputil.RespondJSON(w, http.StatusOK, view)
}

// UpdateSelection records the user's native selection
// POST /api/courses/{courseId}/chapters/{chapter}/selection
func (h *AnnotationHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current(w, r)
	if !ok {
		return
	}

	var ev anchor.SelectionEvent
	if err := httputil.ParseJSON(w, r, &ev); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snapshot, err := session.Select(ev)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, snapshot)
}

// ClearSelection discards the pending selection
// DELETE /api/courses/{courseId}/chapters/{chapter}/selection
func (h *AnnotationHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current(w, r)
	if !ok {
		return
	}

	session.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

type activateBody struct {
	Rect *anchor.Rect `json:"rect,omitempty"`
}

// ActivateHighlight activates a highlight and returns its comment
// POST /api/courses/{courseId}/chapters/{chapter}/highlights/{highlightId}/activate
func (h *AnnotationHandler) ActivateHighlight(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current(w, r)
	if !ok {
		return
	}

	var body activateBody
	if r.ContentLength != 0 {
		if err := httputil.ParseJSON(w, r, &body); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	active, err := session.Activate(r.PathValue("highlightId"), body.Rect)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, active)
}

type hoverBody struct {
	On bool `json:"on"`
}

// HoverHighlight sets or clears the hover style on a highlight
// POST /api/courses/{courseId}/chapters/{chapter}/highlights/{highlightId}/hover
func (h *AnnotationHandler) HoverHighlight(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current(w, r)
	if !ok {
		return
	}

	var body hoverBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := session.Hover(r.PathValue("highlightId"), body.On); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeactivateHighlight resets every highlight to the resting style
// DELETE /api/courses/{courseId}/chapters/{chapter}/highlights/active
func (h *AnnotationHandler) DeactivateHighlight(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current(w, r)
	if !ok {
		return
	}

	session.Deactivate()
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnnotationHandler) current(w http.ResponseWriter, r *http.Request) (*annotation.Session, bool) {
	scope, err := parseScope(r)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	session, err := h.sessions.Current(httputil.GetUserID(r), scope)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return session, true
}
