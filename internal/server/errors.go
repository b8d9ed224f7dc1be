package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/me/drill/internal/practice"
	"github.com/me/drill/internal/records"
	"github.com/me/drill/internal/runner"
	"github.com/me/drill/internal/store"
	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

var codeStatus = map[model.ErrorCode]int{
	model.ErrValidation:     http.StatusBadRequest,
	model.ErrNotFound:       http.StatusNotFound,
	model.ErrConflict:       http.StatusConflict,
	model.ErrUnauthorized:   http.StatusUnauthorized,
	model.ErrForbidden:      http.StatusForbidden,
	model.ErrRateLimited:    http.StatusTooManyRequests,
	model.ErrNotImplemented: http.StatusNotImplemented,
	model.ErrInternal:       http.StatusInternalServerError,
}

// classify maps a service error to an HTTP status and API error.
func classify(err error) (int, *model.APIError) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status, ok := codeStatus[apiErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, apiErr
	}

	switch {
	case errors.Is(err, records.ErrNotFound),
		errors.Is(err, practice.ErrSessionNotFound):
		return http.StatusNotFound, &model.APIError{Code: model.ErrNotFound, Message: err.Error()}
	case errors.Is(err, srs.ErrEmptyCandidateSet):
		return http.StatusNotFound, &model.APIError{Code: model.ErrNotFound, Message: "no records match filter"}
	case errors.Is(err, practice.ErrNoCurrentRecord):
		return http.StatusConflict, &model.APIError{Code: model.ErrConflict, Message: "no current record; call next first or pass an id"}
	case errors.Is(err, srs.ErrInvalidOutcome),
		errors.Is(err, runner.ErrUnsupportedLanguage):
		return http.StatusBadRequest, &model.APIError{Code: model.ErrValidation, Message: err.Error()}
	case errors.Is(err, store.ErrSessionsUnsupported):
		return http.StatusNotImplemented, &model.APIError{Code: model.ErrNotImplemented, Message: err.Error()}
	}
	return http.StatusInternalServerError, model.NewInternalError(err)
}

// respondErr writes err using classify and logs server-side failures.
func (s *Server) respondErr(w http.ResponseWriter, reqID string, err error) {
	status, apiErr := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		s.logger.Error("request failed", "request_id", reqID, "error", err)
	}
	respondError(w, reqID, status, apiErr)
}

func invalidBody(w http.ResponseWriter, reqID string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, reqID, http.StatusRequestEntityTooLarge, &model.APIError{
			Code:    model.ErrValidation,
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	respondError(w, reqID, http.StatusBadRequest, &model.APIError{
		Code:    model.ErrValidation,
		Message: "invalid JSON body: " + err.Error(),
	})
}
