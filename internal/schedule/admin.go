package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Provider-facing CRUD over the rule and block stores. Pure data paths; the
// only logic is validation and tenant scoping.

func (s *Service) UpsertRule(ctx context.Context, providerID uuid.UUID, cmd RuleUpsert) (*AvailabilityRule, error) {
	if cmd.DayOfWeek < 0 || cmd.DayOfWeek > 6 {
		return nil, fmt.Errorf("%w: day of week must be 0-6", ErrInvalidInput)
	}
	if cmd.SlotDuration == 0 {
		cmd.SlotDuration = 30
	}
	if cmd.SlotDuration < 15 || cmd.SlotDuration > 120 {
		return nil, fmt.Errorf("%w: slot duration must be 15-120 minutes", ErrInvalidInput)
	}

	startMin, err := ParseClock(cmd.StartTime)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClock(cmd.EndTime)
	if err != nil {
		return nil, err
	}
	if startMin >= endMin {
		return nil, fmt.Errorf("%w: start time must be before end time", ErrInvalidInput)
	}

	if cmd.ClinicID != nil {
		if err := s.checkClinic(ctx, providerID, *cmd.ClinicID); err != nil {
			return nil, err
		}
	}

	rule, err := s.repo.UpsertAvailabilityRule(ctx, providerID, cmd)
	if err != nil {
		return nil, fmt.Errorf("upsert availability rule: %w", err)
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context, providerID uuid.UUID) ([]AvailabilityRule, error) {
	rules, err := s.repo.ListAvailabilityRules(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return rules, nil
}

func (s *Service) CreateBlock(ctx context.Context, providerID uuid.UUID, block BlockedPeriod) (*BlockedPeriod, error) {
	if _, err := ParseDate(block.Date); err != nil {
		return nil, err
	}
	if !block.IsAllDay {
		startMin, err := ParseClock(block.StartTime)
		if err != nil {
			return nil, err
		}
		endMin, err := ParseClock(block.EndTime)
		if err != nil {
			return nil, err
		}
		if startMin >= endMin {
			return nil, fmt.Errorf("%w: block start must be before block end", ErrInvalidInput)
		}
	} else {
		block.StartTime = ""
		block.EndTime = ""
	}

	if block.ClinicID != nil {
		if err := s.checkClinic(ctx, providerID, *block.ClinicID); err != nil {
			return nil, err
		}
	}

	block.ProviderID = providerID
	created, err := s.repo.CreateBlockedPeriod(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("create blocked period: %w", err)
	}
	return created, nil
}

func (s *Service) DeleteBlock(ctx context.Context, providerID, blockID uuid.UUID) error {
	if err := s.repo.DeleteBlockedPeriod(ctx, providerID, blockID); err != nil {
		return fmt.Errorf("delete blocked period: %w", err)
	}
	return nil
}

func (s *Service) ListBlocks(ctx context.Context, providerID uuid.UUID, fromDate string) ([]BlockedPeriod, error) {
	if fromDate != "" {
		if _, err := ParseDate(fromDate); err != nil {
			return nil, err
		}
	}
	blocks, err := s.repo.ListBlockedPeriods(ctx, providerID, fromDate)
	if err != nil {
		return nil, fmt.Errorf("list blocked periods: %w", err)
	}
	return blocks, nil
}

func (s *Service) ListAppointments(ctx context.Context, providerID uuid.UUID, date string, limit, offset int) ([]AppointmentDetail, error) {
	if date != "" {
		if _, err := ParseDate(date); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListAppointmentsForProvider(ctx, providerID, date, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}
