package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/metrics"
)

// ReminderSender delivers one reminder to the patient. Implementations are
// best-effort; a failure never causes a retry of the same reminder.
type ReminderSender interface {
	SendReminder(ctx context.Context, appt AppointmentDetail, kind ReminderKind) error
}

// ReminderSweep is the hourly batch that catches appointments crossing the
// 24h and 1h thresholds. Idempotence comes from the per-appointment flags,
// not from locking: overlapping runs are wasteful but never double-send.
type ReminderSweep struct {
	repo    Repository
	sender  ReminderSender
	logger  zerolog.Logger
	metrics *metrics.BookingMetrics

	now func() time.Time
}

func NewReminderSweep(repo Repository, sender ReminderSender, logger zerolog.Logger) *ReminderSweep {
	return &ReminderSweep{
		repo:   repo,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

func (s *ReminderSweep) WithMetrics(m *metrics.BookingMetrics) *ReminderSweep {
	s.metrics = m
	return s
}

// Run executes one sweep. Thresholds are evaluated in each provider's own
// timezone; the candidate window is padded a day on both sides so no zone
// can fall outside it.
func (s *ReminderSweep) Run(ctx context.Context) error {
	now := s.now()

	dates := make([]string, 0, 4)
	for offset := -1; offset <= 2; offset++ {
		dates = append(dates, now.AddDate(0, 0, offset).Format(DateLayout))
	}

	candidates, err := s.repo.FindReminderCandidates(ctx, dates)
	if err != nil {
		return fmt.Errorf("find reminder candidates: %w", err)
	}

	var sent24, sent1 int
	for _, c := range candidates {
		loc := time.UTC
		if c.Provider != nil {
			loc = c.Provider.Location()
		}
		local := now.In(loc)
		today := local.Format(DateLayout)
		tomorrow := local.AddDate(0, 0, 1).Format(DateLayout)

		if !c.ReminderSent24h && c.Date == tomorrow {
			if s.dispatch(ctx, c, Reminder24h) {
				sent24++
			}
		}

		if !c.ReminderSent1h && c.Date == today {
			slotMin, err := ParseClock(c.TimeSlot)
			if err != nil {
				continue
			}
			nowMin := clockOf(local)
			if slotMin > nowMin && slotMin <= nowMin+60 {
				if s.dispatch(ctx, c, Reminder1h) {
					sent1++
				}
			}
		}
	}

	s.logger.Info().
		Int("candidates", len(candidates)).
		Int("sent_24h", sent24).
		Int("sent_1h", sent1).
		Msg("reminder sweep complete")

	return nil
}

// dispatch sets the idempotence flag before attempting delivery. The flag is
// set even when the send fails: one attempt per appointment per threshold,
// never a retry storm.
func (s *ReminderSweep) dispatch(ctx context.Context, appt AppointmentDetail, kind ReminderKind) bool {
	if err := s.repo.MarkReminderSent(ctx, appt.ID, kind); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("kind", string(kind)).
			Msg("failed to set reminder flag, skipping send")
		return false
	}

	if err := s.sender.SendReminder(ctx, appt, kind); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("kind", string(kind)).
			Msg("reminder delivery failed")
		s.metrics.ObserveReminder(string(kind), "failed")
		return false
	}

	s.metrics.ObserveReminder(string(kind), "sent")
	return true
}
