package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	"marginalia/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var conflictErr *domain.ConflictError

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflictErr):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), map[string]interface{}{
			"resource_type": conflictErr.ResourceType,
			"resource_id":   conflictErr.ResourceID,
		})
	case errors.Is(err, domain.ErrEncoding), errors.Is(err, domain.ErrDecoding):
		httputil.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrStaleScope), errors.Is(err, domain.ErrNotMounted):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPersistence):
		httputil.RespondError(w, http.StatusBadGateway, "comment store unavailable")
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseScope reads the course and chapter from the URL path
func parseScope(r *http.Request) (models.Scope, error) {
	courseID := r.PathValue("courseId")
	if courseID == "" {
		return models.Scope{}, fmt.Errorf("%w: course ID is required", domain.ErrValidation)
	}

	chapter, err := strconv.Atoi(r.PathValue("chapter"))
	if err != nil || chapter < 0 {
		return models.Scope{}, fmt.Errorf("%w: chapter must be a non-negative integer", domain.ErrValidation)
	}

	return models.Scope{CourseID: courseID, ChapterIndex: chapter}, nil
}
