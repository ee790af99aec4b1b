package schedule

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/careslot/internal/events"
)

func TestUpdateStatus_ConfirmThenComplete(t *testing.T) {
	svc, _, provider := newTestService(t)
	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	appt, err := svc.UpdateStatus(context.Background(), provider.ID, conf.AppointmentID, StatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)

	appt, err = svc.UpdateStatus(context.Background(), provider.ID, conf.AppointmentID, StatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, appt.Status)
}

func TestUpdateStatus_TerminalFrozen(t *testing.T) {
	svc, _, provider := newTestService(t)
	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	_, err := svc.UpdateStatus(context.Background(), provider.ID, conf.AppointmentID, StatusCancelled, "no show")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), provider.ID, conf.AppointmentID, StatusConfirmed, "")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc, _, provider := newTestService(t)
	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	_, err := svc.UpdateStatus(context.Background(), provider.ID, conf.AppointmentID, "snoozed", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateStatus_CrossTenantLooksNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), conf.AppointmentID, StatusConfirmed, "")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestUpdateStatus_CancelWritesOutboxEvent(t *testing.T) {
	svc, repo, provider := newTestService(t)
	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	// skip past the booking event
	pending, err := repo.Outbox().FetchPending(context.Background(), 10)
	require.NoError(t, err)
	for _, e := range pending {
		_, err := repo.Outbox().MarkDelivered(context.Background(), e.ID)
		require.NoError(t, err)
	}

	_, err = svc.UpdateStatus(context.Background(), provider.ID, conf.AppointmentID, StatusCancelled, "emergency")
	require.NoError(t, err)

	pending, err = repo.Outbox().FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, events.TypeAppointmentCancelled, pending[0].Type)
}

func TestGetByEditToken(t *testing.T) {
	svc, repo, _ := newTestService(t)
	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	appt, err := repo.GetAppointmentByID(context.Background(), conf.AppointmentID)
	require.NoError(t, err)

	detail, err := svc.GetByEditToken(context.Background(), appt.EditToken)
	require.NoError(t, err)
	assert.Equal(t, conf.AppointmentID, detail.ID)
	require.NotNil(t, detail.Patient)
	assert.Equal(t, "Maria Silva", detail.Patient.FullName)

	_, err = svc.GetByEditToken(context.Background(), "bogus-token")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelByEditToken(t *testing.T) {
	svc, repo, _ := newTestService(t)
	conf := bookSlot(t, svc, "09:00", "+5511999990001")

	appt, err := repo.GetAppointmentByID(context.Background(), conf.AppointmentID)
	require.NoError(t, err)

	cancelled, err := svc.CancelByEditToken(context.Background(), appt.EditToken, "cant make it")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "cant make it", cancelled.CancelReason)

	// cancelling twice is a stale transition
	_, err = svc.CancelByEditToken(context.Background(), appt.EditToken, "again")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}
