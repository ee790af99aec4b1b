package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/schedule"
)

type ruleRequest struct {
	ClinicID            string `json:"clinicId,omitempty"`
	DayOfWeek           int    `json:"dayOfWeek"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	SlotDurationMinutes int    `json:"slotDurationMinutes,omitempty"`
	IsActive            *bool  `json:"isActive,omitempty"`
}

type blockRequest struct {
	ClinicID  string `json:"clinicId,omitempty"`
	Date      string `json:"date"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	IsAllDay  bool   `json:"isAllDay"`
	Reason    string `json:"reason,omitempty"`
}

type statusUpdateRequest struct {
	Status       string `json:"status"`
	CancelReason string `json:"cancelReason,omitempty"`
}

func authedProvider(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := ProviderID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing provider identity")
	}
	return id, ok
}

func upsertRuleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := authedProvider(w, r)
		if !ok {
			return
		}

		var req ruleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
			return
		}
		clinicID, err := parseOptionalUUID(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "clinicId must be a uuid")
			return
		}
		active := true
		if req.IsActive != nil {
			active = *req.IsActive
		}

		rule, err := svc.UpsertRule(r.Context(), providerID, schedule.RuleUpsert{
			ClinicID:     clinicID,
			DayOfWeek:    req.DayOfWeek,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
			SlotDuration: req.SlotDurationMinutes,
			IsActive:     active,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newRuleView(rule))
	}
}

func listRulesHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := authedProvider(w, r)
		if !ok {
			return
		}
		rules, err := svc.ListRules(r.Context(), providerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		views := make([]ruleView, 0, len(rules))
		for i := range rules {
			views = append(views, newRuleView(&rules[i]))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func createBlockHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := authedProvider(w, r)
		if !ok {
			return
		}

		var req blockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
			return
		}
		clinicID, err := parseOptionalUUID(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "clinicId must be a uuid")
			return
		}

		block, err := svc.CreateBlock(r.Context(), providerID, schedule.BlockedPeriod{
			ClinicID:  clinicID,
			Date:      req.Date,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			IsAllDay:  req.IsAllDay,
			Reason:    req.Reason,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newBlockView(block))
	}
}

func deleteBlockHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := authedProvider(w, r)
		if !ok {
			return
		}
		blockID, err := uuid.Parse(chi.URLParam(r, "blockID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "block id must be a uuid")
			return
		}
		if err := svc.DeleteBlock(r.Context(), providerID, blockID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listBlocksHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := authedProvider(w, r)
		if !ok {
			return
		}
		blocks, err := svc.ListBlocks(r.Context(), providerID, r.URL.Query().Get("from"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		views := make([]blockView, 0, len(blocks))
		for i := range blocks {
			views = append(views, newBlockView(&blocks[i]))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func listAppointmentsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := authedProvider(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		appts, err := svc.ListAppointments(r.Context(), providerID, q.Get("date"), limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		views := make([]appointmentDetailResponse, 0, len(appts))
		for i := range appts {
			views = append(views, appointmentDetailView(&appts[i]))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func updateStatusHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := authedProvider(w, r)
		if !ok {
			return
		}
		appointmentID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "appointment id must be a uuid")
			return
		}

		var req statusUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), providerID, appointmentID, schedule.AppointmentStatus(req.Status), req.CancelReason)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentView(appt))
	}
}
