package schedule

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// UnlimitedPatients is the quota sentinel for plans without a monthly cap.
const UnlimitedPatients = -1

// Provider is the tenant. Subscription and quota fields are owned by the
// billing system; the booking path only reads them.
type Provider struct {
	ID                    uuid.UUID
	Slug                  string
	Name                  string
	Email                 string
	IsActive              bool
	Plan                  Plan
	MaxPatientsPerMonth   int    // UnlimitedPatients means no cap
	CurrentMonthPatients  int
	QuotaMonth            string // YYYY-MM the counter belongs to
	SubscriptionExpiresAt *time.Time
	GracePeriodDays       int
	Timezone              string // IANA name, all rule/slot times are local to it
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Clinic struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Name       string
	Address    string
	IsActive   bool
	CreatedAt  time.Time
}

// AvailabilityRule is a recurring weekly open window. A nil ClinicID means
// the rule applies to every clinic of the provider. At most one active rule
// exists per (provider, clinic, weekday); writes are upsert-by-day.
type AvailabilityRule struct {
	ID           uuid.UUID
	ProviderID   uuid.UUID
	ClinicID     *uuid.UUID
	DayOfWeek    int    // 0 = Sunday .. 6 = Saturday
	StartTime    string // HH:MM
	EndTime      string // HH:MM
	SlotDuration int    // minutes, 15-120
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BlockedPeriod is a one-off exclusion overriding the recurring rule.
type BlockedPeriod struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	ClinicID   *uuid.UUID
	Date       string // YYYY-MM-DD
	StartTime  string // HH:MM, empty when IsAllDay
	EndTime    string // HH:MM, empty when IsAllDay
	IsAllDay   bool
	Reason     string
	CreatedAt  time.Time
}

type Patient struct {
	ID                  uuid.UUID
	FullName            string
	Email               *string
	Phone               *string
	WhatsAppNumber      string
	CreatedByProviderID uuid.UUID
	EditToken           string
	EditTokenExpiry     time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Appointment struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	ClinicID        *uuid.UUID
	PatientID       uuid.UUID
	Date            string // YYYY-MM-DD
	TimeSlot        string // HH:MM slot start
	EndTime         string // HH:MM, derived = TimeSlot + Duration
	Duration        int    // minutes
	Status          AppointmentStatus
	Reason          string
	Notes           string
	CancelReason    string
	EditToken       string
	ReminderSent24h bool
	ReminderSent1h  bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AppointmentDetail is an appointment hydrated with its patient and provider.
type AppointmentDetail struct {
	Appointment
	Patient  *Patient
	Provider *Provider
}

type FormTemplate struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Name       string
	Fields     json.RawMessage
	IsDefault  bool
	IsActive   bool
	CreatedAt  time.Time
}

type FormSubmission struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	TemplateID    *uuid.UUID
	Answers       json.RawMessage
	CreatedAt     time.Time
}

// Slot is one candidate start time with its resolved status.
type Slot struct {
	Time        string `json:"time"`
	IsAvailable bool   `json:"isAvailable"`
	IsBlocked   bool   `json:"isBlocked"`
	IsBooked    bool   `json:"isBooked"`
	IsPast      bool   `json:"isPast"`
}

// DayAvailability is the resolver output for one provider day.
type DayAvailability struct {
	Date        string `json:"date"`
	Slots       []Slot `json:"slots"`
	IsAvailable bool   `json:"isAvailable"`
}

// CanTransitionTo reports whether a provider-driven status change is legal.
// Cancelled and completed are terminal.
func (a *Appointment) CanTransitionTo(to AppointmentStatus) bool {
	switch a.Status {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled || to == StatusCompleted
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted
	default:
		return false
	}
}

// Location resolves the provider's IANA timezone, falling back to UTC when
// the column is empty or unparseable.
func (p *Provider) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SubscriptionOpen reports whether the booking surface is open: the provider
// is active and the subscription, if it expires at all, has not lapsed past
// its grace period.
func (p *Provider) SubscriptionOpen(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.SubscriptionExpiresAt == nil {
		return true
	}
	deadline := p.SubscriptionExpiresAt.AddDate(0, 0, p.GracePeriodDays)
	return !now.After(deadline)
}

// QuotaRemaining reports whether a new patient may still be added this month.
// The counter resets implicitly when the stored month key is stale.
func (p *Provider) QuotaRemaining(month string) bool {
	if p.MaxPatientsPerMonth == UnlimitedPatients {
		return true
	}
	count := p.CurrentMonthPatients
	if p.QuotaMonth != month {
		count = 0
	}
	return count < p.MaxPatientsPerMonth
}
