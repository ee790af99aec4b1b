package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/events"
	"github.com/careslot/careslot/internal/metrics"
	redisclient "github.com/careslot/careslot/internal/redis"
	"github.com/careslot/careslot/internal/schedule"
)

// Service turns outbox entries into notifications and realtime events, and
// delivers reminder sweeps. Every channel is best-effort: failures are
// logged, never propagated back into the booking path.
type Service struct {
	email    EmailSender
	whatsapp WhatsAppSender
	realtime redisclient.Publisher
	logger   zerolog.Logger
	metrics  *metrics.BookingMetrics
}

func NewService(email EmailSender, whatsapp WhatsAppSender, realtime redisclient.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		email:    email,
		whatsapp: whatsapp,
		realtime: realtime,
		logger:   logger,
	}
}

func (s *Service) WithMetrics(m *metrics.BookingMetrics) *Service {
	s.metrics = m
	return s
}

// SendersFromConfig builds the configured delivery channels. An unconfigured
// channel comes back as a nil interface, which Service treats as disabled.
// The concrete constructors return nil pointers, and a nil pointer assigned
// straight into an interface parameter is non-nil to the == check, so the
// conversion must happen here.
func SendersFromConfig(cfg config.Config, logger zerolog.Logger) (EmailSender, WhatsAppSender) {
	var email EmailSender
	if s := NewSendGridSender(SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFrom,
		FromName:  cfg.SendGridName,
	}, logger); s != nil {
		email = s
	}

	var whatsapp WhatsAppSender
	if s := NewHTTPWhatsAppSender(cfg.WhatsAppBaseURL, cfg.WhatsAppToken, logger); s != nil {
		whatsapp = s
	}
	return email, whatsapp
}

// Handle implements events.Handler. Unparseable payloads are dropped rather
// than retried forever; delivery failures inside a handled event are logged
// and swallowed because the booking is already durable.
func (s *Service) Handle(ctx context.Context, entry events.Entry) error {
	switch entry.Type {
	case events.TypeBookingCompleted:
		var ev events.BookingCompletedV1
		if err := json.Unmarshal(entry.Payload, &ev); err != nil {
			s.logger.Error().Err(err).Str("event_id", entry.ID.String()).Msg("dropping malformed booking event")
			return nil
		}
		s.handleBookingCompleted(ctx, ev)

	case events.TypeAppointmentCancelled:
		var ev events.AppointmentCancelledV1
		if err := json.Unmarshal(entry.Payload, &ev); err != nil {
			s.logger.Error().Err(err).Str("event_id", entry.ID.String()).Msg("dropping malformed cancellation event")
			return nil
		}
		s.handleAppointmentCancelled(ctx, ev)

	case events.TypeAppointmentStatusChanged:
		var ev events.AppointmentStatusChangedV1
		if err := json.Unmarshal(entry.Payload, &ev); err != nil {
			s.logger.Error().Err(err).Str("event_id", entry.ID.String()).Msg("dropping malformed status event")
			return nil
		}
		s.handleStatusChanged(ctx, ev)

	default:
		s.logger.Warn().Str("event_type", entry.Type).Msg("unknown outbox event type, dropping")
	}

	s.metrics.ObserveOutboxDelivery(entry.Type, "handled")
	return nil
}

func (s *Service) handleBookingCompleted(ctx context.Context, ev events.BookingCompletedV1) {
	// patient confirmation
	if s.whatsapp != nil && ev.PatientWhatsApp != "" {
		body := fmt.Sprintf("Hi %s, your appointment with %s on %s at %s is booked. Manage it here: %s",
			ev.PatientName, ev.ProviderName, ev.Date, ev.TimeSlot, ev.EditLink)
		if err := s.whatsapp.SendMessage(ctx, ev.PatientWhatsApp, body); err != nil {
			s.logger.Error().Err(err).Str("appointment_id", ev.AppointmentID).Msg("patient whatsapp confirmation failed")
		}
	}
	if s.email != nil && ev.PatientEmail != "" {
		msg := EmailMessage{
			To:      ev.PatientEmail,
			ToName:  ev.PatientName,
			Subject: fmt.Sprintf("Appointment confirmed: %s at %s", ev.Date, ev.TimeSlot),
			Body: fmt.Sprintf("Hi %s,\n\nYour appointment with %s on %s at %s is booked.\n\nManage your appointment: %s\n",
				ev.PatientName, ev.ProviderName, ev.Date, ev.TimeSlot, ev.EditLink),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error().Err(err).Str("appointment_id", ev.AppointmentID).Msg("patient email confirmation failed")
		}
	}

	// provider alert, plan-gated
	if s.email != nil && ev.ProviderEmail != "" && schedule.Plan(ev.ProviderPlan) == schedule.PlanPro {
		msg := EmailMessage{
			To:      ev.ProviderEmail,
			ToName:  ev.ProviderName,
			Subject: fmt.Sprintf("New booking: %s at %s", ev.Date, ev.TimeSlot),
			Body: fmt.Sprintf("%s booked %s at %s.\nReason: %s\n",
				ev.PatientName, ev.Date, ev.TimeSlot, ev.Reason),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error().Err(err).Str("appointment_id", ev.AppointmentID).Msg("provider alert failed")
		}
	}

	// other browsing clients see the slot disappear immediately
	s.publish(ctx, redisclient.BookingChannel(ev.ProviderSlug), redisclient.RealtimeEvent{
		Type: "slot_taken",
		Data: map[string]string{"date": ev.Date, "time": ev.TimeSlot},
	})
	s.publish(ctx, redisclient.DashboardChannel(ev.ProviderID), redisclient.RealtimeEvent{
		Type: "appointment_created",
		Data: map[string]string{
			"appointment_id": ev.AppointmentID,
			"date":           ev.Date,
			"time":           ev.TimeSlot,
			"patient":        ev.PatientName,
		},
	})
}

func (s *Service) handleAppointmentCancelled(ctx context.Context, ev events.AppointmentCancelledV1) {
	if s.whatsapp != nil && ev.PatientWhatsApp != "" && ev.CancelledBy == "provider" {
		body := fmt.Sprintf("Hi %s, your appointment with %s on %s at %s was cancelled.",
			ev.PatientName, ev.ProviderName, ev.Date, ev.TimeSlot)
		if ev.CancelReason != "" {
			body += " Reason: " + ev.CancelReason
		}
		if err := s.whatsapp.SendMessage(ctx, ev.PatientWhatsApp, body); err != nil {
			s.logger.Error().Err(err).Str("appointment_id", ev.AppointmentID).Msg("cancellation whatsapp failed")
		}
	}
	if s.email != nil && ev.ProviderEmail != "" && ev.CancelledBy == "patient" && schedule.Plan(ev.ProviderPlan) == schedule.PlanPro {
		msg := EmailMessage{
			To:      ev.ProviderEmail,
			ToName:  ev.ProviderName,
			Subject: fmt.Sprintf("Booking cancelled: %s at %s", ev.Date, ev.TimeSlot),
			Body:    fmt.Sprintf("%s cancelled their appointment on %s at %s.\n", ev.PatientName, ev.Date, ev.TimeSlot),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error().Err(err).Str("appointment_id", ev.AppointmentID).Msg("cancellation provider alert failed")
		}
	}

	// the slot is free again
	s.publish(ctx, redisclient.BookingChannel(ev.ProviderSlug), redisclient.RealtimeEvent{
		Type: "slot_freed",
		Data: map[string]string{"date": ev.Date, "time": ev.TimeSlot},
	})
	s.publish(ctx, redisclient.DashboardChannel(ev.ProviderID), redisclient.RealtimeEvent{
		Type: "appointment_cancelled",
		Data: map[string]string{"appointment_id": ev.AppointmentID, "cancelled_by": ev.CancelledBy},
	})
}

func (s *Service) handleStatusChanged(ctx context.Context, ev events.AppointmentStatusChangedV1) {
	s.publish(ctx, redisclient.DashboardChannel(ev.ProviderID), redisclient.RealtimeEvent{
		Type: "appointment_status_changed",
		Data: map[string]string{
			"appointment_id": ev.AppointmentID,
			"old_status":     ev.OldStatus,
			"new_status":     ev.NewStatus,
		},
	})
}

func (s *Service) publish(ctx context.Context, channel string, event redisclient.RealtimeEvent) {
	if s.realtime == nil {
		return
	}
	if err := s.realtime.Publish(ctx, channel, event); err != nil {
		s.logger.Error().Err(err).Str("channel", channel).Str("type", event.Type).Msg("realtime publish failed")
	}
}

// SendReminder implements schedule.ReminderSender.
func (s *Service) SendReminder(ctx context.Context, appt schedule.AppointmentDetail, kind schedule.ReminderKind) error {
	if appt.Patient == nil {
		return fmt.Errorf("reminder for appointment %s: no patient attached", appt.ID)
	}

	providerName := ""
	if appt.Provider != nil {
		providerName = appt.Provider.Name
	}

	var lead string
	if kind == schedule.Reminder24h {
		lead = "tomorrow"
	} else {
		lead = "in one hour"
	}
	body := fmt.Sprintf("Hi %s, a reminder: your appointment with %s is %s, on %s at %s.",
		appt.Patient.FullName, providerName, lead, appt.Date, appt.TimeSlot)

	var whatsappErr, emailErr error
	sentAny := false

	if s.whatsapp != nil && appt.Patient.WhatsAppNumber != "" {
		whatsappErr = s.whatsapp.SendMessage(ctx, appt.Patient.WhatsAppNumber, body)
		sentAny = sentAny || whatsappErr == nil
	}
	if s.email != nil && appt.Patient.Email != nil && *appt.Patient.Email != "" {
		emailErr = s.email.Send(ctx, EmailMessage{
			To:      *appt.Patient.Email,
			ToName:  appt.Patient.FullName,
			Subject: fmt.Sprintf("Appointment reminder: %s at %s", appt.Date, appt.TimeSlot),
			Body:    body,
		})
		sentAny = sentAny || emailErr == nil
	}

	if !sentAny {
		if whatsappErr != nil {
			return whatsappErr
		}
		if emailErr != nil {
			return emailErr
		}
		return fmt.Errorf("no reminder channel available for appointment %s", appt.ID)
	}
	return nil
}
