package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

func mapDomainError(err error) (status int, code string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrUplineCycle):
		return http.StatusUnprocessableEntity, "upline_cycle"
	case errors.Is(err, domain.ErrNotEligible):
		return http.StatusUnprocessableEntity, "not_eligible"
	case errors.Is(err, domain.ErrParticipantSuspended):
		return http.StatusUnprocessableEntity, "participant_suspended"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrConfigurationMissing), errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusServiceUnavailable, "plan_configuration_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail maps err, logs it and writes the error envelope.
func fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code := mapDomainError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && code == "internal_error" {
		message = "internal error"
	}
	logHTTPOperationError(r.Context(), operation, status, code, message, err)
	writeError(w, status, code, message, requestIDFromContext(r.Context()))
}
