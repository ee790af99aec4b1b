package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/schedule"
)

// The schedule domain structs carry no wire tags, so each handler maps
// them through these view types.

type appointmentView struct {
	ID           uuid.UUID  `json:"id"`
	ClinicID     *uuid.UUID `json:"clinicId,omitempty"`
	Date         string     `json:"date"`
	TimeSlot     string     `json:"timeSlot"`
	EndTime      string     `json:"endTime"`
	Duration     int        `json:"durationMinutes"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	CancelReason string     `json:"cancelReason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type patientView struct {
	FullName       string  `json:"fullName"`
	WhatsAppNumber string  `json:"whatsappNumber"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
}

type providerView struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Timezone string `json:"timezone"`
}

type appointmentDetailResponse struct {
	appointmentView
	Patient  *patientView  `json:"patient,omitempty"`
	Provider *providerView `json:"provider,omitempty"`
}

type ruleView struct {
	ID           uuid.UUID  `json:"id"`
	ClinicID     *uuid.UUID `json:"clinicId,omitempty"`
	DayOfWeek    int        `json:"dayOfWeek"`
	StartTime    string     `json:"startTime"`
	EndTime      string     `json:"endTime"`
	SlotDuration int        `json:"slotDurationMinutes"`
	IsActive     bool       `json:"isActive"`
}

type blockView struct {
	ID        uuid.UUID  `json:"id"`
	ClinicID  *uuid.UUID `json:"clinicId,omitempty"`
	Date      string     `json:"date"`
	StartTime string     `json:"startTime,omitempty"`
	EndTime   string     `json:"endTime,omitempty"`
	IsAllDay  bool       `json:"isAllDay"`
	Reason    string     `json:"reason,omitempty"`
}

func newAppointmentView(a *schedule.Appointment) appointmentView {
	return appointmentView{
		ID:           a.ID,
		ClinicID:     a.ClinicID,
		Date:         a.Date,
		TimeSlot:     a.TimeSlot,
		EndTime:      a.EndTime,
		Duration:     a.Duration,
		Status:       string(a.Status),
		Reason:       a.Reason,
		CancelReason: a.CancelReason,
		CreatedAt:    a.CreatedAt,
	}
}

func appointmentDetailView(d *schedule.AppointmentDetail) appointmentDetailResponse {
	resp := appointmentDetailResponse{appointmentView: newAppointmentView(&d.Appointment)}
	if d.Patient != nil {
		resp.Patient = &patientView{
			FullName:       d.Patient.FullName,
			WhatsAppNumber: d.Patient.WhatsAppNumber,
			Email:          d.Patient.Email,
			Phone:          d.Patient.Phone,
		}
	}
	if d.Provider != nil {
		resp.Provider = &providerView{
			Name:     d.Provider.Name,
			Slug:     d.Provider.Slug,
			Timezone: d.Provider.Timezone,
		}
	}
	return resp
}

func newRuleView(r *schedule.AvailabilityRule) ruleView {
	return ruleView{
		ID:           r.ID,
		ClinicID:     r.ClinicID,
		DayOfWeek:    r.DayOfWeek,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		SlotDuration: r.SlotDuration,
		IsActive:     r.IsActive,
	}
}

func newBlockView(b *schedule.BlockedPeriod) blockView {
	return blockView{
		ID:        b.ID,
		ClinicID:  b.ClinicID,
		Date:      b.Date,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		IsAllDay:  b.IsAllDay,
		Reason:    b.Reason,
	}
}
