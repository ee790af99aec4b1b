package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/careslot/internal/events"
)

func TestBook_HappyPath(t *testing.T) {
	svc, repo, _ := newTestService(t)

	email := "maria@example.com"
	conf, err := svc.Book(context.Background(), BookingRequest{
		ProviderSlug:   "dr-demo",
		Date:           openDate,
		TimeSlot:       "09:00",
		FullName:       "Maria Silva",
		WhatsAppNumber: "+5511999990001",
		Email:          &email,
		Reason:         "checkup",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, conf.AppointmentID)
	assert.Equal(t, StatusPending, conf.Status)
	assert.Contains(t, conf.EditLink, "https://careslot.test/appointments/")

	appt, err := repo.GetAppointmentByID(context.Background(), conf.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", appt.TimeSlot)
	assert.Equal(t, "09:30", appt.EndTime)
	assert.Equal(t, 30, appt.Duration)
}

func TestBook_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)

	cases := []struct {
		name string
		req  BookingRequest
	}{
		{"missing name", BookingRequest{ProviderSlug: "dr-demo", Date: openDate, TimeSlot: "09:00", WhatsAppNumber: "+551199"}},
		{"missing whatsapp", BookingRequest{ProviderSlug: "dr-demo", Date: openDate, TimeSlot: "09:00", FullName: "Maria"}},
		{"bad date", BookingRequest{ProviderSlug: "dr-demo", Date: "tomorrow", TimeSlot: "09:00", FullName: "Maria", WhatsAppNumber: "+551199"}},
		{"bad time", BookingRequest{ProviderSlug: "dr-demo", Date: openDate, TimeSlot: "9am", FullName: "Maria", WhatsAppNumber: "+551199"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Book(context.Background(), c.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestBook_ClosedDay(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Book(context.Background(), BookingRequest{
		ProviderSlug:   "dr-demo",
		Date:           closedDate,
		TimeSlot:       "09:00",
		FullName:       "Maria Silva",
		WhatsAppNumber: "+5511999990001",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBook_InactiveProvider(t *testing.T) {
	svc, repo, provider := newTestService(t)

	provider.IsActive = false
	repo.AddProvider(provider)

	_, err := svc.Book(context.Background(), BookingRequest{
		ProviderSlug:   "dr-demo",
		Date:           openDate,
		TimeSlot:       "09:00",
		FullName:       "Maria Silva",
		WhatsAppNumber: "+5511999990001",
	})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestBook_QuotaNewVsReturningPatient(t *testing.T) {
	svc, repo, provider := newTestService(t)

	provider.Plan = PlanFree
	provider.MaxPatientsPerMonth = 1
	provider.CurrentMonthPatients = 0
	repo.AddProvider(provider)

	// first new patient fills the quota
	_, err := svc.Book(context.Background(), BookingRequest{
		ProviderSlug:   "dr-demo",
		Date:           openDate,
		TimeSlot:       "09:00",
		FullName:       "Maria Silva",
		WhatsAppNumber: "+5511999990001",
	})
	require.NoError(t, err)

	// second new patient is rejected
	_, err = svc.Book(context.Background(), BookingRequest{
		ProviderSlug:   "dr-demo",
		Date:           openDate,
		TimeSlot:       "09:30",
		FullName:       "Joana Souza",
		WhatsAppNumber: "+5511999990002",
	})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// the returning patient still books at the limit
	_, err = svc.Book(context.Background(), BookingRequest{
		ProviderSlug:   "dr-demo",
		Date:           openDate,
		TimeSlot:       "10:00",
		FullName:       "Maria Silva",
		WhatsAppNumber: "+5511999990001",
	})
	assert.NoError(t, err)
}

func TestBook_SlotConflict(t *testing.T) {
	svc, _, _ := newTestService(t)

	bookSlot(t, svc, "09:00", "+5511999990001")

	_, err := svc.Book(context.Background(), BookingRequest{
		ProviderSlug:   "dr-demo",
		Date:           openDate,
		TimeSlot:       "09:00",
		FullName:       "Joana Souza",
		WhatsAppNumber: "+5511999990002",
	})
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestBook_ConcurrentSingleWinner(t *testing.T) {
	svc, _, _ := newTestService(t)

	const racers = 20
	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Book(context.Background(), BookingRequest{
				ProviderSlug:   "dr-demo",
				Date:           openDate,
				TimeSlot:       "11:00",
				FullName:       "Racer",
				WhatsAppNumber: uuid.NewString(),
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotConflict):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won, "exactly one booking wins the slot")
	assert.Equal(t, racers-1, lost)
}

func TestBook_WritesOutboxEvent(t *testing.T) {
	svc, repo, provider := newTestService(t)

	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	pending, err := repo.Outbox().FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	entry := pending[0]
	assert.Equal(t, events.TypeBookingCompleted, entry.Type)
	assert.Equal(t, provider.ID, entry.ProviderID)

	var payload events.BookingCompletedV1
	require.NoError(t, json.Unmarshal(entry.Payload, &payload))
	assert.Equal(t, conf.AppointmentID.String(), payload.AppointmentID)
	assert.Equal(t, openDate, payload.Date)
	assert.Equal(t, "09:00", payload.TimeSlot)
	assert.Equal(t, conf.EditLink, payload.EditLink)
}

func TestBook_RebookAfterCancel(t *testing.T) {
	svc, repo, _ := newTestService(t)

	conf := bookSlot(t, svc, "10:30", "+5511999990001")

	appt, err := repo.GetAppointmentByID(context.Background(), conf.AppointmentID)
	require.NoError(t, err)
	_, err = svc.CancelByEditToken(context.Background(), appt.EditToken, "")
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), BookingRequest{
		ProviderSlug:   "dr-demo",
		Date:           openDate,
		TimeSlot:       "10:30",
		FullName:       "Joana Souza",
		WhatsAppNumber: "+5511999990002",
	})
	assert.NoError(t, err)
}

func TestBook_RejectsOffGridSlot(t *testing.T) {
	svc, _, _ := newTestService(t)

	for _, slot := range []string{"09:15", "03:30", "12:00"} {
		_, err := svc.Book(context.Background(), BookingRequest{
			ProviderSlug:   "dr-demo",
			Date:           openDate,
			TimeSlot:       slot,
			FullName:       "Maria Silva",
			WhatsAppNumber: "+5511999990001",
		})
		assert.ErrorIs(t, err, ErrInvalidInput, "slot %s", slot)
	}
}

func TestBook_RejectsPastSlot(t *testing.T) {
	svc, repo, provider := newTestService(t)

	// open the clock's own weekday so "today" has a rule
	_, err := repo.UpsertAvailabilityRule(context.Background(), provider.ID, RuleUpsert{
		DayOfWeek:    4,
		StartTime:    "09:00",
		EndTime:      "12:00",
		SlotDuration: 30,
		IsActive:     true,
	})
	require.NoError(t, err)
	today := fixedNow().Format(DateLayout)

	book := func(slot string) error {
		_, err := svc.Book(context.Background(), BookingRequest{
			ProviderSlug:   "dr-demo",
			Date:           today,
			TimeSlot:       slot,
			FullName:       "Maria Silva",
			WhatsAppNumber: "+5511999990001",
		})
		return err
	}

	assert.ErrorIs(t, book("09:30"), ErrInvalidInput)
	// a slot starting exactly at now is already gone
	assert.ErrorIs(t, book("10:00"), ErrInvalidInput)
	assert.NoError(t, book("10:30"))
}

func TestBook_RejectsBlockedSlot(t *testing.T) {
	svc, _, provider := newTestService(t)

	_, err := svc.CreateBlock(context.Background(), provider.ID, BlockedPeriod{
		Date:      openDate,
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), BookingRequest{
		ProviderSlug:   "dr-demo",
		Date:           openDate,
		TimeSlot:       "10:30",
		FullName:       "Maria Silva",
		WhatsAppNumber: "+5511999990001",
	})
	assert.ErrorIs(t, err, ErrSlotConflict)

	// half-open interval: the slot starting at the block's end is bookable
	bookSlot(t, svc, "11:00", "+5511999990002")
	bookSlot(t, svc, "09:00", "+5511999990003")
}
