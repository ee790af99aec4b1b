package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertRule(t *testing.T) {
	svc, _, provider := newTestService(t)

	rule, err := svc.UpsertRule(context.Background(), provider.ID, RuleUpsert{
		DayOfWeek: 3,
		StartTime: "08:00",
		EndTime:   "13:00",
		IsActive:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, rule.SlotDuration, "duration defaults to 30")

	// same weekday writes over the existing rule
	updated, err := svc.UpsertRule(context.Background(), provider.ID, RuleUpsert{
		DayOfWeek:    3,
		StartTime:    "10:00",
		EndTime:      "14:00",
		SlotDuration: 60,
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, rule.ID, updated.ID)
	assert.Equal(t, "10:00", updated.StartTime)
	assert.Equal(t, 60, updated.SlotDuration)

	rules, err := svc.ListRules(context.Background(), provider.ID)
	require.NoError(t, err)
	assert.Len(t, rules, 2) // the fixture Tuesday rule plus this one
}

func TestUpsertRule_Validation(t *testing.T) {
	svc, _, provider := newTestService(t)

	cases := []struct {
		name string
		cmd  RuleUpsert
	}{
		{"bad weekday", RuleUpsert{DayOfWeek: 7, StartTime: "09:00", EndTime: "12:00"}},
		{"duration too short", RuleUpsert{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", SlotDuration: 10}},
		{"duration too long", RuleUpsert{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", SlotDuration: 180}},
		{"inverted window", RuleUpsert{DayOfWeek: 1, StartTime: "14:00", EndTime: "09:00"}},
		{"bad clock", RuleUpsert{DayOfWeek: 1, StartTime: "9am", EndTime: "12:00"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.UpsertRule(context.Background(), provider.ID, c.cmd)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCreateBlock(t *testing.T) {
	svc, _, provider := newTestService(t)

	block, err := svc.CreateBlock(context.Background(), provider.ID, BlockedPeriod{
		Date:      openDate,
		StartTime: "10:00",
		EndTime:   "11:00",
		Reason:    "lunch meeting",
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ID, block.ProviderID)

	// all-day blocks carry no times
	allDay, err := svc.CreateBlock(context.Background(), provider.ID, BlockedPeriod{
		Date:      closedDate,
		StartTime: "10:00",
		EndTime:   "11:00",
		IsAllDay:  true,
	})
	require.NoError(t, err)
	assert.Empty(t, allDay.StartTime)
	assert.Empty(t, allDay.EndTime)

	blocks, err := svc.ListBlocks(context.Background(), provider.ID, "")
	require.NoError(t, err)
	assert.Len(t, blocks, 2)
}

func TestCreateBlock_Validation(t *testing.T) {
	svc, _, provider := newTestService(t)

	_, err := svc.CreateBlock(context.Background(), provider.ID, BlockedPeriod{
		Date:      openDate,
		StartTime: "11:00",
		EndTime:   "10:00",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateBlock(context.Background(), provider.ID, BlockedPeriod{Date: "someday", IsAllDay: true})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteBlock(t *testing.T) {
	svc, _, provider := newTestService(t)

	block, err := svc.CreateBlock(context.Background(), provider.ID, BlockedPeriod{
		Date:     openDate,
		IsAllDay: true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBlock(context.Background(), provider.ID, block.ID))
	assert.ErrorIs(t, svc.DeleteBlock(context.Background(), provider.ID, block.ID), ErrBlockNotFound)
}

func TestListAppointments(t *testing.T) {
	svc, _, provider := newTestService(t)

	bookSlot(t, svc, "09:00", "+5511999990001")
	bookSlot(t, svc, "09:30", "+5511999990002")
	bookSlot(t, svc, "10:00", "+5511999990003")

	appts, err := svc.ListAppointments(context.Background(), provider.ID, openDate, 2, 0)
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "09:00", appts[0].TimeSlot)
	require.NotNil(t, appts[0].Patient)

	rest, err := svc.ListAppointments(context.Background(), provider.ID, openDate, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "10:00", rest[0].TimeSlot)
}
