package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/events"
)

// UpdateStatus executes a provider-initiated status transition. Cancelling
// frees the slot: the outbox event makes other browsing clients see it
// reappear and triggers the patient's cancellation notification.
func (s *Service) UpdateStatus(ctx context.Context, providerID, appointmentID uuid.UUID, to AppointmentStatus, cancelReason string) (*Appointment, error) {
	switch to {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}

	detail, err := s.repo.GetAppointmentDetail(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	// Cross-tenant appointment IDs look like unknown ones.
	if detail.ProviderID != providerID {
		return nil, ErrAppointmentNotFound
	}

	if !detail.CanTransitionTo(to) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appointmentID, []AppointmentStatus{detail.Status}, to, cancelReason)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.enqueueStatusEvent(ctx, detail, detail.Status, to, cancelReason, "provider")

	return updated, nil
}

// GetByEditToken is the patient self-service read.
func (s *Service) GetByEditToken(ctx context.Context, token string) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentByEditToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load appointment by token: %w", err)
	}
	return detail, nil
}

// CancelByEditToken is the patient self-service cancellation: holding the
// capability token is the entire authorization.
func (s *Service) CancelByEditToken(ctx context.Context, token, reason string) (*Appointment, error) {
	detail, err := s.repo.GetAppointmentByEditToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load appointment by token: %w", err)
	}

	if !detail.CanTransitionTo(StatusCancelled) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, detail.ID, []AppointmentStatus{StatusPending, StatusConfirmed}, StatusCancelled, reason)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.enqueueStatusEvent(ctx, detail, detail.Status, StatusCancelled, reason, "patient")

	return updated, nil
}

// enqueueStatusEvent records the transition in the outbox. Failures are
// logged and swallowed: the status change itself is already durable, and
// notification delivery is best-effort by contract.
func (s *Service) enqueueStatusEvent(ctx context.Context, detail *AppointmentDetail, from, to AppointmentStatus, cancelReason, actor string) {
	var ev PendingEvent

	if to == StatusCancelled {
		payload := events.AppointmentCancelledV1{
			AppointmentID: detail.ID.String(),
			ProviderID:    detail.ProviderID.String(),
			Date:          detail.Date,
			TimeSlot:      detail.TimeSlot,
			CancelReason:  cancelReason,
			CancelledBy:   actor,
		}
		if detail.Provider != nil {
			payload.ProviderSlug = detail.Provider.Slug
			payload.ProviderName = detail.Provider.Name
			payload.ProviderEmail = detail.Provider.Email
			payload.ProviderPlan = string(detail.Provider.Plan)
		}
		if detail.Patient != nil {
			payload.PatientName = detail.Patient.FullName
			payload.PatientWhatsApp = detail.Patient.WhatsAppNumber
			if detail.Patient.Email != nil {
				payload.PatientEmail = *detail.Patient.Email
			}
		}
		ev = PendingEvent{Type: events.TypeAppointmentCancelled, Payload: payload}
	} else {
		payload := events.AppointmentStatusChangedV1{
			AppointmentID: detail.ID.String(),
			ProviderID:    detail.ProviderID.String(),
			Date:          detail.Date,
			TimeSlot:      detail.TimeSlot,
			OldStatus:     string(from),
			NewStatus:     string(to),
		}
		if detail.Provider != nil {
			payload.ProviderSlug = detail.Provider.Slug
		}
		ev = PendingEvent{Type: events.TypeAppointmentStatusChanged, Payload: payload}
	}

	if err := s.repo.InsertEvent(ctx, detail.ProviderID, ev); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", detail.ID.String()).
			Str("event_type", ev.Type).
			Msg("failed to enqueue status event")
	}
}
