package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ResolveAvailability classifies every candidate slot of one provider day.
// Read-only: safe to call unboundedly and concurrently.
func (s *Service) ResolveAvailability(ctx context.Context, slug string, clinicID *uuid.UUID, date string) (*DayAvailability, error) {
	provider, err := s.repo.GetProviderBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}

	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	if clinicID != nil {
		if err := s.checkClinic(ctx, provider.ID, *clinicID); err != nil {
			return nil, err
		}
	}

	weekday := int(day.Weekday())

	rule, err := s.repo.GetActiveRule(ctx, provider.ID, clinicID, weekday)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			s.metrics.ObserveAvailability("closed")
			return &DayAvailability{Date: date, Slots: []Slot{}, IsAvailable: false}, nil
		}
		return nil, fmt.Errorf("load availability rule: %w", err)
	}

	startMin, err := ParseClock(rule.StartTime)
	if err != nil {
		return nil, fmt.Errorf("rule start time: %w", err)
	}
	endMin, err := ParseClock(rule.EndTime)
	if err != nil {
		return nil, fmt.Errorf("rule end time: %w", err)
	}

	starts := SlotStarts(startMin, endMin, rule.SlotDuration)

	blocks, err := s.repo.ListBlockedPeriodsForDate(ctx, provider.ID, clinicID, date)
	if err != nil {
		return nil, fmt.Errorf("load blocked periods: %w", err)
	}

	booked, err := s.bookedMinutes(ctx, provider.ID, date)
	if err != nil {
		return nil, err
	}

	now := s.now().In(provider.Location())
	today := now.Format(DateLayout)
	nowMin := clockOf(now)

	slots := make([]Slot, 0, len(starts))
	anyAvailable := false
	for _, m := range starts {
		slot := Slot{Time: FormatClock(m)}

		slot.IsBlocked = minuteBlocked(m, blocks)
		_, slot.IsBooked = booked[m]

		// A slot starting exactly at "now" counts as past, closing the race
		// window against last-second bookings.
		if date < today || (date == today && m <= nowMin) {
			slot.IsPast = true
		}

		slot.IsAvailable = !slot.IsBlocked && !slot.IsBooked && !slot.IsPast
		if slot.IsAvailable {
			anyAvailable = true
		}
		slots = append(slots, slot)
	}

	if anyAvailable {
		s.metrics.ObserveAvailability("open")
	} else {
		s.metrics.ObserveAvailability("full")
	}

	return &DayAvailability{Date: date, Slots: slots, IsAvailable: anyAvailable}, nil
}

// minuteBlocked applies the half-open [start, end) interval rule: a slot
// starting exactly at a block's end time is not blocked.
func minuteBlocked(minute int, blocks []BlockedPeriod) bool {
	for _, b := range blocks {
		if b.IsAllDay {
			return true
		}
		blockStart, err := ParseClock(b.StartTime)
		if err != nil {
			continue
		}
		blockEnd, err := ParseClock(b.EndTime)
		if err != nil {
			continue
		}
		if minute >= blockStart && minute < blockEnd {
			return true
		}
	}
	return false
}

func (s *Service) bookedMinutes(ctx context.Context, providerID uuid.UUID, date string) (map[int]struct{}, error) {
	appts, err := s.repo.ListActiveAppointmentsForDate(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	booked := make(map[int]struct{}, len(appts))
	for _, a := range appts {
		m, err := ParseClock(a.TimeSlot)
		if err != nil {
			continue
		}
		booked[m] = struct{}{}
	}
	return booked, nil
}

func (s *Service) checkClinic(ctx context.Context, providerID, clinicID uuid.UUID) error {
	clinic, err := s.repo.GetClinicByID(ctx, clinicID)
	if err != nil {
		return fmt.Errorf("load clinic: %w", err)
	}
	// Cross-tenant clinic IDs are indistinguishable from unknown ones.
	if clinic.ProviderID != providerID {
		return ErrClinicNotFound
	}
	return nil
}
