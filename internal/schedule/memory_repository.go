package schedule

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/events"
)

// MemoryRepository is the in-memory storage driver. It backs fixture mode
// and the service-level tests; the mutex gives it the same single-winner
// booking guarantee the Postgres partial unique index provides.
type MemoryRepository struct {
	mu sync.RWMutex

	providers    map[uuid.UUID]Provider
	clinics      map[uuid.UUID]Clinic
	rules        map[uuid.UUID]AvailabilityRule
	blocks       map[uuid.UUID]BlockedPeriod
	appointments map[uuid.UUID]Appointment
	patients     map[uuid.UUID]Patient
	templates    map[uuid.UUID]FormTemplate
	submissions  map[uuid.UUID]FormSubmission

	outbox *events.MemoryStore
}

func NewMemoryRepository(outbox *events.MemoryStore) *MemoryRepository {
	if outbox == nil {
		outbox = events.NewMemoryStore()
	}
	return &MemoryRepository{
		providers:    make(map[uuid.UUID]Provider),
		clinics:      make(map[uuid.UUID]Clinic),
		rules:        make(map[uuid.UUID]AvailabilityRule),
		blocks:       make(map[uuid.UUID]BlockedPeriod),
		appointments: make(map[uuid.UUID]Appointment),
		patients:     make(map[uuid.UUID]Patient),
		templates:    make(map[uuid.UUID]FormTemplate),
		submissions:  make(map[uuid.UUID]FormSubmission),
		outbox:       outbox,
	}
}

// Outbox exposes the store the dispatcher polls in memory mode.
func (r *MemoryRepository) Outbox() *events.MemoryStore {
	return r.outbox
}

// Fixture helpers; providers and clinics have no CRUD surface in the core.

func (r *MemoryRepository) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.providers[p.ID] = p
}

func (r *MemoryRepository) AddClinic(c Clinic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.clinics[c.ID] = c
}

func (r *MemoryRepository) AddFormTemplate(t FormTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.templates[t.ID] = t
}

// Providers and clinics

func (r *MemoryRepository) GetProviderBySlug(_ context.Context, slug string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if strings.EqualFold(p.Slug, slug) {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrProviderNotFound
}

func (r *MemoryRepository) GetProviderByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	cp := p
	return &cp, nil
}

func (r *MemoryRepository) GetClinicByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	cp := c
	return &cp, nil
}

// Availability rules

func clinicKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func (r *MemoryRepository) UpsertAvailabilityRule(_ context.Context, providerID uuid.UUID, cmd RuleUpsert) (*AvailabilityRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, rule := range r.rules {
		if rule.ProviderID == providerID && rule.DayOfWeek == cmd.DayOfWeek && clinicKey(rule.ClinicID) == clinicKey(cmd.ClinicID) {
			rule.StartTime = cmd.StartTime
			rule.EndTime = cmd.EndTime
			rule.SlotDuration = cmd.SlotDuration
			rule.IsActive = cmd.IsActive
			rule.UpdatedAt = now
			r.rules[id] = rule
			cp := rule
			return &cp, nil
		}
	}

	rule := AvailabilityRule{
		ID:           uuid.New(),
		ProviderID:   providerID,
		ClinicID:     cmd.ClinicID,
		DayOfWeek:    cmd.DayOfWeek,
		StartTime:    cmd.StartTime,
		EndTime:      cmd.EndTime,
		SlotDuration: cmd.SlotDuration,
		IsActive:     cmd.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.rules[rule.ID] = rule
	cp := rule
	return &cp, nil
}

func (r *MemoryRepository) ListAvailabilityRules(_ context.Context, providerID uuid.UUID) ([]AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rules []AvailabilityRule
	for _, rule := range r.rules {
		if rule.ProviderID == providerID {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].DayOfWeek < rules[j].DayOfWeek })
	return rules, nil
}

func (r *MemoryRepository) GetActiveRule(_ context.Context, providerID uuid.UUID, clinicID *uuid.UUID, dayOfWeek int) (*AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// A clinic-specific rule beats the provider-wide (nil clinic) rule.
	var global *AvailabilityRule
	for _, rule := range r.rules {
		if rule.ProviderID != providerID || rule.DayOfWeek != dayOfWeek || !rule.IsActive {
			continue
		}
		if rule.ClinicID == nil {
			cp := rule
			global = &cp
			continue
		}
		if clinicID != nil && *rule.ClinicID == *clinicID {
			cp := rule
			return &cp, nil
		}
	}
	if global != nil {
		return global, nil
	}
	return nil, ErrRuleNotFound
}

// Blocked periods

func (r *MemoryRepository) CreateBlockedPeriod(_ context.Context, block BlockedPeriod) (*BlockedPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	block.ID = uuid.New()
	block.CreatedAt = time.Now()
	r.blocks[block.ID] = block
	cp := block
	return &cp, nil
}

func (r *MemoryRepository) DeleteBlockedPeriod(_ context.Context, providerID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	block, ok := r.blocks[id]
	if !ok || block.ProviderID != providerID {
		return ErrBlockNotFound
	}
	delete(r.blocks, id)
	return nil
}

func (r *MemoryRepository) ListBlockedPeriods(_ context.Context, providerID uuid.UUID, fromDate string) ([]BlockedPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var blocks []BlockedPeriod
	for _, b := range r.blocks {
		if b.ProviderID != providerID {
			continue
		}
		if fromDate != "" && b.Date < fromDate {
			continue
		}
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Date != blocks[j].Date {
			return blocks[i].Date < blocks[j].Date
		}
		return blocks[i].StartTime < blocks[j].StartTime
	})
	return blocks, nil
}

func (r *MemoryRepository) ListBlockedPeriodsForDate(_ context.Context, providerID uuid.UUID, clinicID *uuid.UUID, date string) ([]BlockedPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var blocks []BlockedPeriod
	for _, b := range r.blocks {
		if b.ProviderID != providerID || b.Date != date {
			continue
		}
		// provider-wide blocks always apply; clinic blocks only to their clinic
		if b.ClinicID != nil && clinicID != nil && *b.ClinicID != *clinicID {
			continue
		}
		if b.ClinicID != nil && clinicID == nil {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Appointments

func (r *MemoryRepository) ListActiveAppointmentsForDate(_ context.Context, providerID uuid.UUID, date string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var appts []Appointment
	for _, a := range r.appointments {
		if a.ProviderID == providerID && a.Date == date && a.Status != StatusCancelled {
			appts = append(appts, a)
		}
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].TimeSlot < appts[j].TimeSlot })
	return appts, nil
}

func (r *MemoryRepository) ListAppointmentsForProvider(_ context.Context, providerID uuid.UUID, date string, limit, offset int) ([]AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var appts []Appointment
	for _, a := range r.appointments {
		if a.ProviderID != providerID {
			continue
		}
		if date != "" && a.Date != date {
			continue
		}
		appts = append(appts, a)
	}
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].TimeSlot < appts[j].TimeSlot
	})

	if offset >= len(appts) {
		return nil, nil
	}
	appts = appts[offset:]
	if limit > 0 && len(appts) > limit {
		appts = appts[:limit]
	}

	details := make([]AppointmentDetail, len(appts))
	for i, a := range appts {
		details[i] = r.hydrateLocked(a)
	}
	return details, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := a
	return &cp, nil
}

func (r *MemoryRepository) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	detail := r.hydrateLocked(a)
	return &detail, nil
}

func (r *MemoryRepository) GetAppointmentByEditToken(_ context.Context, token string) (*AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.appointments {
		if a.EditToken == token {
			detail := r.hydrateLocked(a)
			return &detail, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) hydrateLocked(a Appointment) AppointmentDetail {
	detail := AppointmentDetail{Appointment: a}
	if p, ok := r.patients[a.PatientID]; ok {
		cp := p
		detail.Patient = &cp
	}
	if prov, ok := r.providers[a.ProviderID]; ok {
		cp := prov
		detail.Provider = &cp
	}
	return detail
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus, cancelReason string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	matched := false
	for _, f := range from {
		if a.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrInvalidStatusTransition
	}

	a.Status = to
	if to == StatusCancelled {
		a.CancelReason = cancelReason
	}
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	cp := a
	return &cp, nil
}

// Patients

func (r *MemoryRepository) GetPatientByWhatsApp(_ context.Context, providerID uuid.UUID, whatsappNumber string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.findPatientLocked(providerID, whatsappNumber)
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) findPatientLocked(providerID uuid.UUID, whatsappNumber string) (Patient, bool) {
	for _, p := range r.patients {
		if p.CreatedByProviderID == providerID && p.WhatsAppNumber == whatsappNumber {
			return p, true
		}
	}
	return Patient{}, false
}

// Forms

func (r *MemoryRepository) GetDefaultFormTemplate(_ context.Context, providerID uuid.UUID) (*FormTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.templates {
		if t.ProviderID == providerID && t.IsDefault && t.IsActive {
			cp := t
			return &cp, nil
		}
	}
	return nil, ErrTemplateNotFound
}

// Booking transaction

func (r *MemoryRepository) Book(ctx context.Context, intent BookingIntent) (*BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, ok := r.providers[intent.Provider.ID]
	if !ok {
		return nil, ErrProviderNotFound
	}

	// conflict check and insert under one lock, the in-memory analogue of
	// the partial unique index
	for _, a := range r.appointments {
		if a.ProviderID == provider.ID && a.Date == intent.Date && a.TimeSlot == intent.TimeSlot && a.Status != StatusCancelled {
			return nil, ErrSlotConflict
		}
	}

	now := time.Now()

	patient, exists := r.findPatientLocked(provider.ID, intent.Patient.WhatsAppNumber)
	newPatient := !exists
	if exists {
		patient.FullName = intent.Patient.FullName
		if intent.Patient.Email != nil {
			patient.Email = intent.Patient.Email
		}
		if intent.Patient.Phone != nil {
			patient.Phone = intent.Patient.Phone
		}
		patient.EditToken = intent.Patient.EditToken
		patient.EditTokenExpiry = intent.Patient.EditTokenExpiry
		patient.UpdatedAt = now
	} else {
		if !provider.QuotaRemaining(intent.QuotaMonth) {
			return nil, ErrQuotaExceeded
		}
		patient = Patient{
			ID:                  uuid.New(),
			FullName:            intent.Patient.FullName,
			Email:               intent.Patient.Email,
			Phone:               intent.Patient.Phone,
			WhatsAppNumber:      intent.Patient.WhatsAppNumber,
			CreatedByProviderID: provider.ID,
			EditToken:           intent.Patient.EditToken,
			EditTokenExpiry:     intent.Patient.EditTokenExpiry,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if provider.QuotaMonth != intent.QuotaMonth {
			provider.QuotaMonth = intent.QuotaMonth
			provider.CurrentMonthPatients = 0
		}
		provider.CurrentMonthPatients++
		r.providers[provider.ID] = provider
	}
	r.patients[patient.ID] = patient

	apptID := intent.AppointmentID
	if apptID == uuid.Nil {
		apptID = uuid.New()
	}
	appt := Appointment{
		ID:         apptID,
		ProviderID: provider.ID,
		ClinicID:   intent.ClinicID,
		PatientID:  patient.ID,
		Date:       intent.Date,
		TimeSlot:   intent.TimeSlot,
		EndTime:    intent.EndTime,
		Duration:   intent.Duration,
		Status:     StatusPending,
		Reason:     intent.Reason,
		EditToken:  intent.EditToken,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.appointments[appt.ID] = appt

	if len(intent.FormAnswers) > 0 {
		sub := FormSubmission{
			ID:            uuid.New(),
			AppointmentID: appt.ID,
			TemplateID:    intent.FormTemplateID,
			Answers:       intent.FormAnswers,
			CreatedAt:     now,
		}
		r.submissions[sub.ID] = sub
	}

	for _, ev := range intent.OutboxEvents {
		if _, err := r.outbox.Insert(ctx, provider.ID, ev.Type, ev.Payload); err != nil {
			return nil, err
		}
	}

	apptCopy := appt
	patientCopy := patient
	return &BookingRecord{
		Appointment: &apptCopy,
		Patient:     &patientCopy,
		NewPatient:  newPatient,
	}, nil
}

// Reminder sweep

func (r *MemoryRepository) FindReminderCandidates(_ context.Context, dates []string) ([]AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		wanted[d] = struct{}{}
	}

	var details []AppointmentDetail
	for _, a := range r.appointments {
		if a.Status == StatusCancelled || a.Status == StatusCompleted {
			continue
		}
		if a.ReminderSent24h && a.ReminderSent1h {
			continue
		}
		if _, ok := wanted[a.Date]; !ok {
			continue
		}
		details = append(details, r.hydrateLocked(a))
	}
	sort.Slice(details, func(i, j int) bool {
		if details[i].Date != details[j].Date {
			return details[i].Date < details[j].Date
		}
		return details[i].TimeSlot < details[j].TimeSlot
	})
	return details, nil
}

func (r *MemoryRepository) MarkReminderSent(_ context.Context, id uuid.UUID, kind ReminderKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	switch kind {
	case Reminder24h:
		a.ReminderSent24h = true
	case Reminder1h:
		a.ReminderSent1h = true
	}
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return nil
}

// Outbox

func (r *MemoryRepository) InsertEvent(ctx context.Context, providerID uuid.UUID, ev PendingEvent) error {
	_, err := r.outbox.Insert(ctx, providerID, ev.Type, ev.Payload)
	return err
}
