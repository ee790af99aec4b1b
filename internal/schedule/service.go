package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/events"
	"github.com/careslot/careslot/internal/metrics"
	redisclient "github.com/careslot/careslot/internal/redis"
)

// Service implements the booking core: availability resolution, the booking
// transaction, status transitions and patient self-service.
type Service struct {
	repo    Repository
	locker  redisclient.Locker
	cfg     config.Config
	logger  zerolog.Logger
	metrics *metrics.BookingMetrics

	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// WithMetrics attaches Prometheus instrumentation. Nil-safe if never called.
func (s *Service) WithMetrics(m *metrics.BookingMetrics) *Service {
	s.metrics = m
	return s
}

// BookingRequest is the public booking submission.
type BookingRequest struct {
	ProviderSlug   string
	ClinicID       *uuid.UUID
	Date           string
	TimeSlot       string
	FullName       string
	WhatsAppNumber string
	Email          *string
	Phone          *string
	Reason         string
	FormAnswers    json.RawMessage
}

// BookingConfirmation is returned to the patient on a won booking.
type BookingConfirmation struct {
	AppointmentID uuid.UUID
	Status        AppointmentStatus
	EditLink      string
}

func (r *BookingRequest) validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.WhatsAppNumber) == "" {
		return fmt.Errorf("%w: whatsapp number is required", ErrInvalidInput)
	}
	if _, err := ParseDate(r.Date); err != nil {
		return err
	}
	if _, err := ParseClock(r.TimeSlot); err != nil {
		return err
	}
	return nil
}

// Book durably and exclusively claims one slot for one patient. Concurrent
// requests for the same (provider, date, timeSlot) are serialized by a Redis
// slot lock, and the storage layer independently enforces single-winner via
// its uniqueness guarantee, so losers always surface ErrSlotConflict.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*BookingConfirmation, error) {
	started := time.Now()
	conf, err := s.book(ctx, req)
	s.metrics.ObserveBooking(bookingOutcome(err), time.Since(started).Seconds())
	return conf, err
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*BookingConfirmation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	provider, err := s.repo.GetProviderBySlug(ctx, req.ProviderSlug)
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}

	if req.ClinicID != nil {
		if err := s.checkClinic(ctx, provider.ID, *req.ClinicID); err != nil {
			return nil, err
		}
	}

	now := s.now().In(provider.Location())

	// Precondition a: booking surface open.
	if !provider.SubscriptionOpen(now) {
		return nil, ErrProviderUnavailable
	}

	// Precondition b: monthly new-patient quota. Returning patients do not
	// create roster rows, so they pass even at the limit.
	month := MonthKey(now)
	if !provider.QuotaRemaining(month) {
		_, err := s.repo.GetPatientByWhatsApp(ctx, provider.ID, req.WhatsAppNumber)
		if errors.Is(err, ErrPatientNotFound) {
			return nil, ErrQuotaExceeded
		}
		if err != nil {
			return nil, fmt.Errorf("load patient: %w", err)
		}
	}

	// Precondition c, fast path: the repository re-checks atomically inside
	// the transaction, this read only fails obvious losers early.
	requestedMin, _ := ParseClock(req.TimeSlot)
	booked, err := s.bookedMinutes(ctx, provider.ID, req.Date)
	if err != nil {
		return nil, err
	}
	if _, taken := booked[requestedMin]; taken {
		return nil, ErrSlotConflict
	}

	intent, err := s.buildIntent(ctx, provider, req, month)
	if err != nil {
		return nil, err
	}

	var record *BookingRecord
	claim := func(claimCtx context.Context) error {
		rec, err := s.repo.Book(claimCtx, *intent)
		if err != nil {
			return err
		}
		record = rec
		return nil
	}

	if s.locker != nil {
		err = s.locker.WithSlotLock(ctx, provider.ID, req.Date, req.TimeSlot, claim)
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// someone else is mid-booking on this exact slot; from the
			// client's view that is a lost race
			return nil, ErrSlotConflict
		}
	} else {
		err = claim(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("provider", provider.Slug).
		Str("date", req.Date).
		Str("time_slot", req.TimeSlot).
		Str("appointment_id", record.Appointment.ID.String()).
		Bool("new_patient", record.NewPatient).
		Msg("appointment booked")

	return &BookingConfirmation{
		AppointmentID: record.Appointment.ID,
		Status:        record.Appointment.Status,
		EditLink:      s.editLink(record.Appointment.EditToken),
	}, nil
}

// buildIntent assembles the atomic write: patient upsert, appointment row,
// optional intake answers and the booking.completed outbox event.
func (s *Service) buildIntent(ctx context.Context, provider *Provider, req BookingRequest, month string) (*BookingIntent, error) {
	day, _ := ParseDate(req.Date)

	rule, err := s.repo.GetActiveRule(ctx, provider.ID, req.ClinicID, int(day.Weekday()))
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return nil, fmt.Errorf("%w: provider has no availability on this day", ErrInvalidInput)
		}
		return nil, fmt.Errorf("load availability rule: %w", err)
	}

	startMin, _ := ParseClock(req.TimeSlot)
	if err := s.checkSlotOpen(ctx, provider, rule, req, startMin); err != nil {
		return nil, err
	}
	endTime := FormatClock(startMin + rule.SlotDuration)

	apptToken := NewEditToken()
	apptID := uuid.New()

	intent := &BookingIntent{
		AppointmentID: apptID,
		Provider:      provider,
		ClinicID:      req.ClinicID,
		Date:          req.Date,
		TimeSlot:      req.TimeSlot,
		EndTime:       endTime,
		Duration:      rule.SlotDuration,
		Reason:        req.Reason,
		Patient: PatientUpsert{
			FullName:        req.FullName,
			Email:           req.Email,
			Phone:           req.Phone,
			WhatsAppNumber:  req.WhatsAppNumber,
			EditToken:       NewEditToken(),
			EditTokenExpiry: s.now().Add(s.cfg.EditTokenTTL),
		},
		EditToken:  apptToken,
		QuotaMonth: month,
	}

	if len(req.FormAnswers) > 0 {
		intent.FormAnswers = req.FormAnswers
		template, err := s.repo.GetDefaultFormTemplate(ctx, provider.ID)
		if err == nil {
			intent.FormTemplateID = &template.ID
		}
		// answers are kept even when no template is configured
	}

	clinicID := ""
	if req.ClinicID != nil {
		clinicID = req.ClinicID.String()
	}
	email := ""
	if req.Email != nil {
		email = *req.Email
	}

	intent.OutboxEvents = []PendingEvent{{
		Type: events.TypeBookingCompleted,
		Payload: events.BookingCompletedV1{
			AppointmentID:   apptID.String(),
			ProviderID:      provider.ID.String(),
			ProviderSlug:    provider.Slug,
			ProviderName:    provider.Name,
			ProviderEmail:   provider.Email,
			ProviderPlan:    string(provider.Plan),
			ClinicID:        clinicID,
			Date:            req.Date,
			TimeSlot:        req.TimeSlot,
			EndTime:         endTime,
			Reason:          req.Reason,
			PatientName:     req.FullName,
			PatientEmail:    email,
			PatientWhatsApp: req.WhatsAppNumber,
			EditLink:        s.editLink(apptToken),
		},
	}}

	return intent, nil
}

// checkSlotOpen enforces the same slot classification the public page shows.
// The ledger's uniqueness guarantee only covers double-booking; off-grid,
// past and blocked slots have to be rejected here or a direct POST could
// claim them.
func (s *Service) checkSlotOpen(ctx context.Context, provider *Provider, rule *AvailabilityRule, req BookingRequest, startMin int) error {
	ruleStart, err := ParseClock(rule.StartTime)
	if err != nil {
		return fmt.Errorf("rule start time: %w", err)
	}
	ruleEnd, err := ParseClock(rule.EndTime)
	if err != nil {
		return fmt.Errorf("rule end time: %w", err)
	}

	onGrid := false
	for _, m := range SlotStarts(ruleStart, ruleEnd, rule.SlotDuration) {
		if m == startMin {
			onGrid = true
			break
		}
	}
	if !onGrid {
		return fmt.Errorf("%w: time slot is not on the schedule for this day", ErrInvalidInput)
	}

	// A slot starting exactly at "now" counts as past, same cutoff as the
	// resolver.
	now := s.now().In(provider.Location())
	today := now.Format(DateLayout)
	if req.Date < today || (req.Date == today && startMin <= clockOf(now)) {
		return fmt.Errorf("%w: time slot is in the past", ErrInvalidInput)
	}

	blocks, err := s.repo.ListBlockedPeriodsForDate(ctx, provider.ID, req.ClinicID, req.Date)
	if err != nil {
		return fmt.Errorf("load blocked periods: %w", err)
	}
	if minuteBlocked(startMin, blocks) {
		return ErrSlotConflict
	}
	return nil
}

func (s *Service) editLink(token string) string {
	return fmt.Sprintf("%s/appointments/%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), token)
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
