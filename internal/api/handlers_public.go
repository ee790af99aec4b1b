package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/schedule"
)

type bookingRequest struct {
	ClinicID       string          `json:"clinicId,omitempty"`
	Date           string          `json:"date"`
	TimeSlot       string          `json:"timeSlot"`
	FullName       string          `json:"fullName"`
	WhatsappNumber string          `json:"whatsappNumber"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	FormAnswers    json.RawMessage `json:"formAnswers,omitempty"`
}

type bookingResponse struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	Status        string    `json:"status"`
	Date          string    `json:"date"`
	TimeSlot      string    `json:"timeSlot"`
	EditLink      string    `json:"editLink"`
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func getAvailabilityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "date query parameter is required")
			return
		}
		clinicID, err := parseOptionalUUID(r.URL.Query().Get("clinic_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "clinic_id must be a uuid")
			return
		}

		day, err := svc.ResolveAvailability(r.Context(), slug, clinicID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, day)
	}
}

func createBookingHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		var req bookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
			return
		}
		clinicID, err := parseOptionalUUID(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "clinicId must be a uuid")
			return
		}

		conf, err := svc.Book(r.Context(), schedule.BookingRequest{
			ProviderSlug:   slug,
			ClinicID:       clinicID,
			Date:           req.Date,
			TimeSlot:       req.TimeSlot,
			FullName:       req.FullName,
			WhatsAppNumber: req.WhatsappNumber,
			Email:          optionalString(req.Email),
			Phone:          optionalString(req.Phone),
			Reason:         req.Reason,
			FormAnswers:    req.FormAnswers,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, bookingResponse{
			AppointmentID: conf.AppointmentID,
			Status:        string(conf.Status),
			Date:          req.Date,
			TimeSlot:      req.TimeSlot,
			EditLink:      conf.EditLink,
		})
	}
}

func getAppointmentByTokenHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "editToken")
		detail, err := svc.GetByEditToken(r.Context(), token)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentDetailView(detail))
	}
}

func cancelByTokenHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "editToken")

		var req cancelRequest
		if r.Body != nil {
			// Body is optional for a cancel.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		appt, err := svc.CancelByEditToken(r.Context(), token, req.Reason)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentView(appt))
	}
}
