package schedule

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PatientUpsert carries the patient contact fields of a booking. Identity
// within a provider's roster is (WhatsAppNumber, provider); repeat bookings
// reuse the record and refresh its capability token.
type PatientUpsert struct {
	FullName        string
	Email           *string
	Phone           *string
	WhatsAppNumber  string
	EditToken       string
	EditTokenExpiry time.Time
}

// BookingIntent is the fully validated input of the atomic booking write.
// The repository commits patient upsert, quota increment, appointment
// insert, intake answers and outbox rows as one unit.
type BookingIntent struct {
	// AppointmentID is pre-generated by the caller so the outbox payload can
	// reference it before the insert happens.
	AppointmentID uuid.UUID

	Provider  *Provider
	ClinicID  *uuid.UUID
	Date      string
	TimeSlot  string
	EndTime   string
	Duration  int
	Reason    string
	Patient   PatientUpsert
	EditToken string // appointment-level capability token

	FormTemplateID *uuid.UUID
	FormAnswers    json.RawMessage

	QuotaMonth string // YYYY-MM the increment belongs to

	OutboxEvents []PendingEvent
}

// PendingEvent is an outbox row to write in the booking transaction.
type PendingEvent struct {
	Type    string
	Payload any
}

// BookingRecord is the durable result of a won booking.
type BookingRecord struct {
	Appointment *Appointment
	Patient     *Patient
	NewPatient  bool
}

// RuleUpsert is the typed update command for upsert-by-day rule writes.
type RuleUpsert struct {
	ClinicID     *uuid.UUID
	DayOfWeek    int
	StartTime    string
	EndTime      string
	SlotDuration int
	IsActive     bool
}

// ReminderKind selects which idempotence flag a sweep send is guarded by.
type ReminderKind string

const (
	Reminder24h ReminderKind = "24h"
	Reminder1h  ReminderKind = "1h"
)

// Repository contains all storage interactions needed by the services. Two
// implementations exist: Postgres for real deployments and in-memory for
// fixture mode and tests, chosen at startup.
type Repository interface {
	// Providers and clinics
	GetProviderBySlug(ctx context.Context, slug string) (*Provider, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)

	// Availability rules (upsert-by-day keeps at most one active rule per
	// provider/clinic/weekday)
	UpsertAvailabilityRule(ctx context.Context, providerID uuid.UUID, cmd RuleUpsert) (*AvailabilityRule, error)
	ListAvailabilityRules(ctx context.Context, providerID uuid.UUID) ([]AvailabilityRule, error)
	GetActiveRule(ctx context.Context, providerID uuid.UUID, clinicID *uuid.UUID, dayOfWeek int) (*AvailabilityRule, error)

	// Blocked periods
	CreateBlockedPeriod(ctx context.Context, block BlockedPeriod) (*BlockedPeriod, error)
	DeleteBlockedPeriod(ctx context.Context, providerID, id uuid.UUID) error
	ListBlockedPeriods(ctx context.Context, providerID uuid.UUID, fromDate string) ([]BlockedPeriod, error)
	ListBlockedPeriodsForDate(ctx context.Context, providerID uuid.UUID, clinicID *uuid.UUID, date string) ([]BlockedPeriod, error)

	// Appointment reads
	ListActiveAppointmentsForDate(ctx context.Context, providerID uuid.UUID, date string) ([]Appointment, error)
	ListAppointmentsForProvider(ctx context.Context, providerID uuid.UUID, date string, limit, offset int) ([]AppointmentDetail, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	GetAppointmentByEditToken(ctx context.Context, token string) (*AppointmentDetail, error)

	// Status transitions, compare-and-swap on the current status
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus, cancelReason string) (*Appointment, error)

	// Patient roster
	GetPatientByWhatsApp(ctx context.Context, providerID uuid.UUID, whatsappNumber string) (*Patient, error)

	// Intake forms
	GetDefaultFormTemplate(ctx context.Context, providerID uuid.UUID) (*FormTemplate, error)

	// Book atomically claims the slot. Losing a concurrent race surfaces
	// ErrSlotConflict; an exhausted new-patient quota ErrQuotaExceeded.
	Book(ctx context.Context, intent BookingIntent) (*BookingRecord, error)

	// Reminder sweep support: appointments on the given dates that still
	// have at least one reminder flag unset, hydrated with patient and
	// provider.
	FindReminderCandidates(ctx context.Context, dates []string) ([]AppointmentDetail, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, kind ReminderKind) error

	// Outbox rows outside the booking transaction (status changes)
	InsertEvent(ctx context.Context, providerID uuid.UUID, ev PendingEvent) error
}
