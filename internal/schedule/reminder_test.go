package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReminderSender struct {
	sent []struct {
		ID   uuid.UUID
		Kind ReminderKind
	}
	err error
}

func (f *fakeReminderSender) SendReminder(_ context.Context, appt AppointmentDetail, kind ReminderKind) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, struct {
		ID   uuid.UUID
		Kind ReminderKind
	}{appt.ID, kind})
	return nil
}

func newTestSweep(t *testing.T, repo *MemoryRepository, at time.Time) (*ReminderSweep, *fakeReminderSender) {
	t.Helper()
	sender := &fakeReminderSender{}
	sweep := NewReminderSweep(repo, sender, zerolog.Nop())
	sweep.now = func() time.Time { return at }
	return sweep, sender
}

func TestReminderSweep_24hWindow(t *testing.T) {
	svc, repo, _ := newTestService(t)
	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	// the evening before the appointment
	sweep, sender := newTestSweep(t, repo, time.Date(2026, 9, 14, 20, 0, 0, 0, time.UTC))

	require.NoError(t, sweep.Run(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, conf.AppointmentID, sender.sent[0].ID)
	assert.Equal(t, Reminder24h, sender.sent[0].Kind)

	// second run is a no-op, the flag is already set
	require.NoError(t, sweep.Run(context.Background()))
	assert.Len(t, sender.sent, 1)
}

func TestReminderSweep_1hWindow(t *testing.T) {
	svc, repo, _ := newTestService(t)
	early := bookSlot(t, svc, "09:00", "+5511999990001")
	bookSlot(t, svc, "11:00", "+5511999990002")

	// 08:30 on the day: 09:00 falls in (08:30, 09:30], 11:00 does not
	sweep, sender := newTestSweep(t, repo, time.Date(2026, 9, 15, 8, 30, 0, 0, time.UTC))

	require.NoError(t, sweep.Run(context.Background()))

	var oneHourIDs []uuid.UUID
	for _, s := range sender.sent {
		if s.Kind == Reminder1h {
			oneHourIDs = append(oneHourIDs, s.ID)
		}
	}
	require.Len(t, oneHourIDs, 1)
	assert.Equal(t, early.AppointmentID, oneHourIDs[0])
}

func TestReminderSweep_1hBoundaries(t *testing.T) {
	svc, repo, _ := newTestService(t)
	bookSlot(t, svc, "09:30", "+5511999990001")

	// slot exactly one hour out is included
	sweep, sender := newTestSweep(t, repo, time.Date(2026, 9, 15, 8, 30, 0, 0, time.UTC))
	require.NoError(t, sweep.Run(context.Background()))
	count1h := 0
	for _, s := range sender.sent {
		if s.Kind == Reminder1h {
			count1h++
		}
	}
	assert.Equal(t, 1, count1h)

	// a slot starting exactly now gets nothing
	svc2, repo2, _ := newTestService(t)
	bookSlot(t, svc2, "09:30", "+5511999990001")
	sweep2, sender2 := newTestSweep(t, repo2, time.Date(2026, 9, 15, 9, 30, 0, 0, time.UTC))
	require.NoError(t, sweep2.Run(context.Background()))
	for _, s := range sender2.sent {
		assert.NotEqual(t, Reminder1h, s.Kind)
	}
}

func TestReminderSweep_FailedSendStillSetsFlag(t *testing.T) {
	svc, repo, _ := newTestService(t)
	bookSlot(t, svc, "09:00", "+5511999990001")

	sweep, sender := newTestSweep(t, repo, time.Date(2026, 9, 14, 20, 0, 0, 0, time.UTC))
	sender.err = errors.New("whatsapp gateway down")

	require.NoError(t, sweep.Run(context.Background()))
	assert.Empty(t, sender.sent)

	// delivery recovers, but the attempt is not repeated
	sender.err = nil
	require.NoError(t, sweep.Run(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestReminderSweep_ProviderTimezone(t *testing.T) {
	svc, repo, provider := newTestService(t)
	provider.Timezone = "America/Sao_Paulo"
	repo.AddProvider(provider)

	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	// 01:00 UTC on the 15th is still the evening of the 14th in Sao Paulo,
	// so the appointment on the 15th is "tomorrow" locally.
	sweep, sender := newTestSweep(t, repo, time.Date(2026, 9, 15, 1, 0, 0, 0, time.UTC))

	require.NoError(t, sweep.Run(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, conf.AppointmentID, sender.sent[0].ID)
	assert.Equal(t, Reminder24h, sender.sent[0].Kind)
}

func TestReminderSweep_SkipsTerminalStatuses(t *testing.T) {
	svc, repo, provider := newTestService(t)
	conf := bookSlot(t, svc, "09:00", "+5511999990001")
	_, err := svc.UpdateStatus(context.Background(), provider.ID, conf.AppointmentID, StatusCancelled, "")
	require.NoError(t, err)

	sweep, sender := newTestSweep(t, repo, time.Date(2026, 9, 14, 20, 0, 0, 0, time.UTC))
	require.NoError(t, sweep.Run(context.Background()))
	assert.Empty(t, sender.sent)
}
