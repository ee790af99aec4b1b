package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/careslot/careslot/internal/schedule"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the schedule error taxonomy onto HTTP. SlotConflict
// and QuotaExceeded are expected, user-recoverable outcomes and keep their
// own codes so clients can react (re-pick a slot vs. show a hard error).
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrProviderNotFound),
		errors.Is(err, schedule.ErrClinicNotFound),
		errors.Is(err, schedule.ErrAppointmentNotFound),
		errors.Is(err, schedule.ErrBlockNotFound),
		errors.Is(err, schedule.ErrRuleNotFound),
		errors.Is(err, schedule.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, schedule.ErrProviderUnavailable):
		writeError(w, http.StatusForbidden, "provider_unavailable", "this booking page is currently closed")
	case errors.Is(err, schedule.ErrQuotaExceeded):
		writeError(w, http.StatusForbidden, "quota_exceeded", "the provider cannot accept new patients this month")
	case errors.Is(err, schedule.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "this slot was just taken, please pick another")
	case errors.Is(err, schedule.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
