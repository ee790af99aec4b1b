package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/events"
	redisclient "github.com/careslot/careslot/internal/redis"
	"github.com/careslot/careslot/internal/schedule"
)

type fakeEmail struct {
	sent []EmailMessage
	err  error
}

func (f *fakeEmail) Send(_ context.Context, msg EmailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeWhatsApp struct {
	to     []string
	bodies []string
	err    error
}

func (f *fakeWhatsApp) SendMessage(_ context.Context, to, body string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.bodies = append(f.bodies, body)
	return nil
}

type fakePublisher struct {
	channels []string
	events   []redisclient.RealtimeEvent
}

func (f *fakePublisher) Publish(_ context.Context, channel string, event redisclient.RealtimeEvent) error {
	f.channels = append(f.channels, channel)
	f.events = append(f.events, event)
	return nil
}

func entryFor(t *testing.T, eventType string, payload any) events.Entry {
	t.Helper()
	store := events.NewMemoryStore()
	id, err := store.Insert(context.Background(), uuid.New(), eventType, payload)
	require.NoError(t, err)
	pending, err := store.FetchPending(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, id, pending[0].ID)
	return pending[0]
}

func TestHandleBookingCompletedFanOut(t *testing.T) {
	email := &fakeEmail{}
	wa := &fakeWhatsApp{}
	pub := &fakePublisher{}
	svc := NewService(email, wa, pub, zerolog.Nop())

	providerID := uuid.NewString()
	entry := entryFor(t, events.TypeBookingCompleted, events.BookingCompletedV1{
		AppointmentID:   uuid.NewString(),
		ProviderID:      providerID,
		ProviderSlug:    "dr-demo",
		ProviderName:    "Dr. Demo",
		ProviderEmail:   "demo@careslot.test",
		ProviderPlan:    string(schedule.PlanPro),
		Date:            "2026-09-15",
		TimeSlot:        "09:00",
		EndTime:         "09:30",
		PatientName:     "Ana Lima",
		PatientEmail:    "ana@example.com",
		PatientWhatsApp: "+5511999990000",
		EditLink:        "https://careslot.test/appointments/tok",
	})

	require.NoError(t, svc.Handle(context.Background(), entry))

	// patient gets whatsapp and email, pro provider gets the alert
	require.Len(t, wa.to, 1)
	assert.Equal(t, "+5511999990000", wa.to[0])
	assert.Contains(t, wa.bodies[0], "Dr. Demo")
	assert.Contains(t, wa.bodies[0], "https://careslot.test/appointments/tok")

	require.Len(t, email.sent, 2)
	assert.Equal(t, "ana@example.com", email.sent[0].To)
	assert.Equal(t, "demo@careslot.test", email.sent[1].To)
	assert.Contains(t, email.sent[1].Subject, "New booking")

	// slot_taken on the public channel, appointment_created on the dashboard
	require.Len(t, pub.channels, 2)
	assert.Equal(t, redisclient.BookingChannel("dr-demo"), pub.channels[0])
	assert.Equal(t, "slot_taken", pub.events[0].Type)
	assert.Equal(t, redisclient.DashboardChannel(providerID), pub.channels[1])
	assert.Equal(t, "appointment_created", pub.events[1].Type)
}

func TestHandleBookingCompletedFreePlanSkipsProviderAlert(t *testing.T) {
	email := &fakeEmail{}
	svc := NewService(email, &fakeWhatsApp{}, nil, zerolog.Nop())

	entry := entryFor(t, events.TypeBookingCompleted, events.BookingCompletedV1{
		ProviderEmail:   "demo@careslot.test",
		ProviderPlan:    string(schedule.PlanFree),
		PatientName:     "Ana Lima",
		PatientEmail:    "ana@example.com",
		PatientWhatsApp: "+5511999990000",
	})

	require.NoError(t, svc.Handle(context.Background(), entry))
	require.Len(t, email.sent, 1)
	assert.Equal(t, "ana@example.com", email.sent[0].To)
}

func TestHandleDeliveryFailureIsSwallowed(t *testing.T) {
	email := &fakeEmail{err: errors.New("sendgrid 500")}
	wa := &fakeWhatsApp{err: errors.New("gateway timeout")}
	svc := NewService(email, wa, nil, zerolog.Nop())

	entry := entryFor(t, events.TypeBookingCompleted, events.BookingCompletedV1{
		PatientEmail:    "ana@example.com",
		PatientWhatsApp: "+5511999990000",
	})

	// the booking is durable, channel failures must not force a retry loop
	assert.NoError(t, svc.Handle(context.Background(), entry))
}

func TestHandleMalformedPayloadIsDropped(t *testing.T) {
	svc := NewService(&fakeEmail{}, &fakeWhatsApp{}, nil, zerolog.Nop())
	entry := events.Entry{
		ID:      uuid.New(),
		Type:    events.TypeBookingCompleted,
		Payload: []byte("{not json"),
	}
	assert.NoError(t, svc.Handle(context.Background(), entry))
}

func TestHandleCancellationByProviderNotifiesPatient(t *testing.T) {
	email := &fakeEmail{}
	wa := &fakeWhatsApp{}
	pub := &fakePublisher{}
	svc := NewService(email, wa, pub, zerolog.Nop())

	entry := entryFor(t, events.TypeAppointmentCancelled, events.AppointmentCancelledV1{
		ProviderSlug:    "dr-demo",
		ProviderName:    "Dr. Demo",
		ProviderEmail:   "demo@careslot.test",
		ProviderPlan:    string(schedule.PlanPro),
		Date:            "2026-09-15",
		TimeSlot:        "09:00",
		PatientName:     "Ana Lima",
		PatientWhatsApp: "+5511999990000",
		CancelReason:    "clinic closed",
		CancelledBy:     "provider",
	})

	require.NoError(t, svc.Handle(context.Background(), entry))

	require.Len(t, wa.bodies, 1)
	assert.Contains(t, wa.bodies[0], "was cancelled")
	assert.Contains(t, wa.bodies[0], "clinic closed")
	// provider cancelled, so no alert back to the provider
	assert.Empty(t, email.sent)
	require.Len(t, pub.events, 2)
	assert.Equal(t, "slot_freed", pub.events[0].Type)
}

func TestHandleCancellationByPatientAlertsProProvider(t *testing.T) {
	email := &fakeEmail{}
	wa := &fakeWhatsApp{}
	svc := NewService(email, wa, nil, zerolog.Nop())

	entry := entryFor(t, events.TypeAppointmentCancelled, events.AppointmentCancelledV1{
		ProviderEmail:   "demo@careslot.test",
		ProviderPlan:    string(schedule.PlanPro),
		Date:            "2026-09-15",
		TimeSlot:        "09:00",
		PatientName:     "Ana Lima",
		PatientWhatsApp: "+5511999990000",
		CancelledBy:     "patient",
	})

	require.NoError(t, svc.Handle(context.Background(), entry))
	// patients who cancel themselves do not get a whatsapp about it
	assert.Empty(t, wa.bodies)
	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].Subject, "Booking cancelled")
}

func TestHandleStatusChangedPublishesDashboardEvent(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewService(nil, nil, pub, zerolog.Nop())

	providerID := uuid.NewString()
	entry := entryFor(t, events.TypeAppointmentStatusChanged, events.AppointmentStatusChangedV1{
		AppointmentID: uuid.NewString(),
		ProviderID:    providerID,
		OldStatus:     "confirmed",
		NewStatus:     "completed",
	})

	require.NoError(t, svc.Handle(context.Background(), entry))
	require.Len(t, pub.channels, 1)
	assert.Equal(t, redisclient.DashboardChannel(providerID), pub.channels[0])
	assert.Equal(t, "appointment_status_changed", pub.events[0].Type)
}

func TestSendReminderBodies(t *testing.T) {
	email := &fakeEmail{}
	wa := &fakeWhatsApp{}
	svc := NewService(email, wa, nil, zerolog.Nop())

	patientEmail := "ana@example.com"
	detail := schedule.AppointmentDetail{
		Appointment: schedule.Appointment{
			ID:       uuid.New(),
			Date:     "2026-09-15",
			TimeSlot: "09:00",
		},
		Patient: &schedule.Patient{
			FullName:       "Ana Lima",
			WhatsAppNumber: "+5511999990000",
			Email:          &patientEmail,
		},
		Provider: &schedule.Provider{Name: "Dr. Demo"},
	}

	require.NoError(t, svc.SendReminder(context.Background(), detail, schedule.Reminder24h))
	require.Len(t, wa.bodies, 1)
	assert.Contains(t, wa.bodies[0], "tomorrow")
	require.Len(t, email.sent, 1)
	assert.True(t, strings.HasPrefix(email.sent[0].Subject, "Appointment reminder"))

	require.NoError(t, svc.SendReminder(context.Background(), detail, schedule.Reminder1h))
	require.Len(t, wa.bodies, 2)
	assert.Contains(t, wa.bodies[1], "in one hour")
}

func TestSendReminderPartialFailureStillCounts(t *testing.T) {
	email := &fakeEmail{err: errors.New("sendgrid down")}
	wa := &fakeWhatsApp{}
	svc := NewService(email, wa, nil, zerolog.Nop())

	patientEmail := "ana@example.com"
	detail := schedule.AppointmentDetail{
		Appointment: schedule.Appointment{ID: uuid.New(), Date: "2026-09-15", TimeSlot: "09:00"},
		Patient: &schedule.Patient{
			FullName:       "Ana Lima",
			WhatsAppNumber: "+5511999990000",
			Email:          &patientEmail,
		},
	}

	// whatsapp went out, so the sweep may set the flag
	assert.NoError(t, svc.SendReminder(context.Background(), detail, schedule.Reminder1h))
}

func TestSendReminderAllChannelsFailed(t *testing.T) {
	waErr := errors.New("gateway timeout")
	svc := NewService(&fakeEmail{err: errors.New("sendgrid down")}, &fakeWhatsApp{err: waErr}, nil, zerolog.Nop())

	detail := schedule.AppointmentDetail{
		Appointment: schedule.Appointment{ID: uuid.New(), Date: "2026-09-15", TimeSlot: "09:00"},
		Patient: &schedule.Patient{
			FullName:       "Ana Lima",
			WhatsAppNumber: "+5511999990000",
		},
	}

	err := svc.SendReminder(context.Background(), detail, schedule.Reminder1h)
	assert.ErrorIs(t, err, waErr)
}

func TestSendReminderWithoutPatient(t *testing.T) {
	svc := NewService(&fakeEmail{}, &fakeWhatsApp{}, nil, zerolog.Nop())
	err := svc.SendReminder(context.Background(), schedule.AppointmentDetail{
		Appointment: schedule.Appointment{ID: uuid.New()},
	}, schedule.Reminder24h)
	assert.Error(t, err)
}

func TestSendersFromConfigUnconfiguredChannelsAreDisabled(t *testing.T) {
	email, whatsapp := SendersFromConfig(config.Config{}, zerolog.Nop())

	// must be nil interfaces, not interfaces wrapping nil pointers
	assert.True(t, email == nil)
	assert.True(t, whatsapp == nil)

	svc := NewService(email, whatsapp, nil, zerolog.Nop())

	// delivering an event with both channels down must not dereference
	// anything, just log and move on
	entry := entryFor(t, events.TypeBookingCompleted, events.BookingCompletedV1{
		PatientName:     "Ana Lima",
		PatientEmail:    "ana@example.com",
		PatientWhatsApp: "+5511999990000",
	})
	assert.NoError(t, svc.Handle(context.Background(), entry))

	patientEmail := "ana@example.com"
	err := svc.SendReminder(context.Background(), schedule.AppointmentDetail{
		Appointment: schedule.Appointment{ID: uuid.New(), Date: "2026-09-15", TimeSlot: "09:00"},
		Patient: &schedule.Patient{
			FullName:       "Ana Lima",
			WhatsAppNumber: "+5511999990000",
			Email:          &patientEmail,
		},
	}, schedule.Reminder1h)
	assert.Error(t, err)
}

func TestSendersFromConfigConfiguredChannels(t *testing.T) {
	email, whatsapp := SendersFromConfig(config.Config{
		SendGridAPIKey:  "SG.key",
		SendGridFrom:    "bookings@careslot.test",
		SendGridName:    "CareSlot",
		WhatsAppBaseURL: "https://wa.careslot.test",
		WhatsAppToken:   "tok",
	}, zerolog.Nop())
	assert.NotNil(t, email)
	assert.NotNil(t, whatsapp)
}
