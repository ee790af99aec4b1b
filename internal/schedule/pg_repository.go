package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/careslot/internal/events"
)

// uniqueViolation is the SQLSTATE raised by the partial unique index on
// (provider_id, date, time_slot) for non-cancelled rows; it is how a losing
// concurrent booking surfaces.
const uniqueViolation = "23505"

type PgRepository struct {
	pool   *pgxpool.Pool
	outbox *events.PgStore
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, outbox: events.NewPgStore(pool)}
}

// Helpers

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Email,
		&p.IsActive,
		&p.Plan,
		&p.MaxPatientsPerMonth,
		&p.CurrentMonthPatients,
		&p.QuotaMonth,
		&p.SubscriptionExpiresAt,
		&p.GracePeriodDays,
		&p.Timezone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

const providerColumns = `id, slug, name, email, is_active, plan, max_patients_per_month,
	current_month_patients, quota_month, subscription_expires_at, grace_period_days,
	timezone, created_at, updated_at`

func scanRule(row pgx.Row) (*AvailabilityRule, error) {
	var r AvailabilityRule
	err := row.Scan(
		&r.ID,
		&r.ProviderID,
		&r.ClinicID,
		&r.DayOfWeek,
		&r.StartTime,
		&r.EndTime,
		&r.SlotDuration,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &r, nil
}

const ruleColumns = `id, provider_id, clinic_id, day_of_week,
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	slot_duration_minutes, is_active, created_at, updated_at`

func scanBlock(row pgx.Row) (*BlockedPeriod, error) {
	var b BlockedPeriod
	var startTime, endTime *string
	err := row.Scan(
		&b.ID,
		&b.ProviderID,
		&b.ClinicID,
		&b.Date,
		&startTime,
		&endTime,
		&b.IsAllDay,
		&b.Reason,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	if startTime != nil {
		b.StartTime = *startTime
	}
	if endTime != nil {
		b.EndTime = *endTime
	}
	return &b, nil
}

const blockColumns = `id, provider_id, clinic_id, to_char(date, 'YYYY-MM-DD'),
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	is_all_day, reason, created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.ClinicID,
		&a.PatientID,
		&a.Date,
		&a.TimeSlot,
		&a.EndTime,
		&a.Duration,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.CancelReason,
		&a.EditToken,
		&a.ReminderSent24h,
		&a.ReminderSent1h,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

const appointmentColumns = `id, provider_id, clinic_id, patient_id,
	to_char(date, 'YYYY-MM-DD'), to_char(time_slot, 'HH24:MI'),
	to_char(end_time, 'HH24:MI'), duration_minutes, status,
	reason, notes, cancel_reason, edit_token,
	reminder_sent_24h, reminder_sent_1h, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.Email,
		&p.Phone,
		&p.WhatsAppNumber,
		&p.CreatedByProviderID,
		&p.EditToken,
		&p.EditTokenExpiry,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

const patientColumns = `id, full_name, email, phone, whatsapp_number,
	created_by_provider_id, edit_token, edit_token_expiry, created_at, updated_at`

// Providers and clinics

func (r *PgRepository) GetProviderBySlug(ctx context.Context, slug string) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE lower(slug) = lower($1)
	`, slug)
	return scanProvider(row)
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	var c Clinic
	err := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, name, address, is_active, created_at
		FROM clinics
		WHERE id = $1
	`, id).Scan(&c.ID, &c.ProviderID, &c.Name, &c.Address, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Availability rules

func (r *PgRepository) UpsertAvailabilityRule(ctx context.Context, providerID uuid.UUID, cmd RuleUpsert) (*AvailabilityRule, error) {
	// last write wins per (provider, clinic, weekday); the unique index
	// treats NULL clinic_id as its own key via COALESCE
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_rules
			(id, provider_id, clinic_id, day_of_week, start_time, end_time, slot_duration_minutes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::time, $6::time, $7, $8, now(), now())
		ON CONFLICT (provider_id, COALESCE(clinic_id, '00000000-0000-0000-0000-000000000000'::uuid), day_of_week)
		DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING `+ruleColumns+`
	`, uuid.New(), providerID, cmd.ClinicID, cmd.DayOfWeek, cmd.StartTime, cmd.EndTime, cmd.SlotDuration, cmd.IsActive)
	return scanRule(row)
}

func (r *PgRepository) ListAvailabilityRules(ctx context.Context, providerID uuid.UUID) ([]AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE provider_id = $1
		ORDER BY day_of_week
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *PgRepository) GetActiveRule(ctx context.Context, providerID uuid.UUID, clinicID *uuid.UUID, dayOfWeek int) (*AvailabilityRule, error) {
	// clinic-specific rule first, provider-wide rule as fallback
	row := r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE provider_id = $1
		  AND day_of_week = $2
		  AND is_active
		  AND (clinic_id = $3 OR clinic_id IS NULL)
		ORDER BY clinic_id NULLS LAST
		LIMIT 1
	`, providerID, dayOfWeek, clinicID)
	return scanRule(row)
}

// Blocked periods

func (r *PgRepository) CreateBlockedPeriod(ctx context.Context, block BlockedPeriod) (*BlockedPeriod, error) {
	var start, end *string
	if !block.IsAllDay {
		start = &block.StartTime
		end = &block.EndTime
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO blocked_periods
			(id, provider_id, clinic_id, date, start_time, end_time, is_all_day, reason, created_at)
		VALUES ($1, $2, $3, $4::date, $5::time, $6::time, $7, $8, now())
		RETURNING `+blockColumns+`
	`, uuid.New(), block.ProviderID, block.ClinicID, block.Date, start, end, block.IsAllDay, block.Reason)
	return scanBlock(row)
}

func (r *PgRepository) DeleteBlockedPeriod(ctx context.Context, providerID, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `
		DELETE FROM blocked_periods
		WHERE id = $1 AND provider_id = $2
	`, id, providerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) ListBlockedPeriods(ctx context.Context, providerID uuid.UUID, fromDate string) ([]BlockedPeriod, error) {
	query := `
		SELECT ` + blockColumns + `
		FROM blocked_periods
		WHERE provider_id = $1
	`
	args := []any{providerID}
	if fromDate != "" {
		query += ` AND date >= $2::date`
		args = append(args, fromDate)
	}
	query += ` ORDER BY date, start_time NULLS FIRST`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []BlockedPeriod
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

func (r *PgRepository) ListBlockedPeriodsForDate(ctx context.Context, providerID uuid.UUID, clinicID *uuid.UUID, date string) ([]BlockedPeriod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM blocked_periods
		WHERE provider_id = $1
		  AND date = $2::date
		  AND (clinic_id IS NULL OR clinic_id = $3)
	`, providerID, date, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []BlockedPeriod
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

// Appointments

func (r *PgRepository) ListActiveAppointmentsForDate(ctx context.Context, providerID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND date = $2::date
		  AND status <> 'cancelled'
		ORDER BY time_slot
	`, providerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *a)
	}
	return appts, rows.Err()
}

func (r *PgRepository) ListAppointmentsForProvider(ctx context.Context, providerID uuid.UUID, date string, limit, offset int) ([]AppointmentDetail, error) {
	query := `
		SELECT ` + apptPatientColumns + `
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.provider_id = $1
	`
	args := []any{providerID}
	if date != "" {
		query += ` AND a.date = $2::date`
		args = append(args, date)
	}
	query += fmt.Sprintf(` ORDER BY a.date, a.time_slot LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return r.queryDetail(ctx, `a.id = $1`, id)
}

func (r *PgRepository) GetAppointmentByEditToken(ctx context.Context, token string) (*AppointmentDetail, error) {
	return r.queryDetail(ctx, `a.edit_token = $1`, token)
}

func (r *PgRepository) queryDetail(ctx context.Context, where string, arg any) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+fullDetailColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN providers pr ON pr.id = a.provider_id
		WHERE `+where+`
	`, arg)
	return scanFullDetail(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus, cancelReason string) (*Appointment, error) {
	fromStrs := make([]string, len(from))
	for i, f := range from {
		fromStrs[i] = string(f)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancel_reason = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancel_reason END,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($4)
		RETURNING `+appointmentColumns+`
	`, id, string(to), cancelReason, fromStrs)

	appt, err := scanAppointment(row)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}

	// no row updated: distinguish a missing appointment from a stale status
	if _, loadErr := r.GetAppointmentByID(ctx, id); loadErr != nil {
		return nil, loadErr
	}
	return nil, ErrInvalidStatusTransition
}

// Patients

func (r *PgRepository) GetPatientByWhatsApp(ctx context.Context, providerID uuid.UUID, whatsappNumber string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE created_by_provider_id = $1 AND whatsapp_number = $2
	`, providerID, whatsappNumber)
	return scanPatient(row)
}

// Forms

func (r *PgRepository) GetDefaultFormTemplate(ctx context.Context, providerID uuid.UUID) (*FormTemplate, error) {
	var t FormTemplate
	err := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, name, fields, is_default, is_active, created_at
		FROM form_templates
		WHERE provider_id = $1 AND is_default AND is_active
		LIMIT 1
	`, providerID).Scan(&t.ID, &t.ProviderID, &t.Name, &t.Fields, &t.IsDefault, &t.IsActive, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Booking transaction

// Book commits the patient upsert, the quota increment, the appointment
// insert, the intake answers and the outbox rows as one transaction. The
// partial unique index arbitrates concurrent writers: the loser's insert
// fails with a unique violation that maps to ErrSlotConflict.
func (r *PgRepository) Book(ctx context.Context, intent BookingIntent) (*BookingRecord, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	record, err := r.bookInTx(ctx, tx, intent)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}
	return record, nil
}

func (r *PgRepository) bookInTx(ctx context.Context, tx pgx.Tx, intent BookingIntent) (*BookingRecord, error) {
	providerID := intent.Provider.ID

	// the provider row is the quota arbiter; lock it so two first-time
	// patients cannot both slip under the cap
	provider, err := scanProvider(tx.QueryRow(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE id = $1
		FOR UPDATE
	`, providerID))
	if err != nil {
		return nil, fmt.Errorf("lock provider row: %w", err)
	}

	patient, err := scanPatient(tx.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE created_by_provider_id = $1 AND whatsapp_number = $2
		FOR UPDATE
	`, providerID, intent.Patient.WhatsAppNumber))

	newPatient := false
	switch {
	case err == nil:
		patient, err = scanPatient(tx.QueryRow(ctx, `
			UPDATE patients
			SET full_name = $2,
			    email = COALESCE($3, email),
			    phone = COALESCE($4, phone),
			    edit_token = $5,
			    edit_token_expiry = $6,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+patientColumns+`
		`, patient.ID, intent.Patient.FullName, intent.Patient.Email, intent.Patient.Phone,
			intent.Patient.EditToken, intent.Patient.EditTokenExpiry))
		if err != nil {
			return nil, fmt.Errorf("refresh patient: %w", err)
		}

	case errors.Is(err, ErrPatientNotFound):
		if !provider.QuotaRemaining(intent.QuotaMonth) {
			return nil, ErrQuotaExceeded
		}
		newPatient = true
		patient, err = scanPatient(tx.QueryRow(ctx, `
			INSERT INTO patients
				(id, full_name, email, phone, whatsapp_number, created_by_provider_id,
				 edit_token, edit_token_expiry, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			RETURNING `+patientColumns+`
		`, uuid.New(), intent.Patient.FullName, intent.Patient.Email, intent.Patient.Phone,
			intent.Patient.WhatsAppNumber, providerID,
			intent.Patient.EditToken, intent.Patient.EditTokenExpiry))
		if err != nil {
			return nil, fmt.Errorf("insert patient: %w", err)
		}

		// month rollover resets the counter implicitly
		_, err = tx.Exec(ctx, `
			UPDATE providers
			SET current_month_patients = CASE WHEN quota_month = $2 THEN current_month_patients + 1 ELSE 1 END,
			    quota_month = $2,
			    updated_at = now()
			WHERE id = $1
		`, providerID, intent.QuotaMonth)
		if err != nil {
			return nil, fmt.Errorf("increment patient quota: %w", err)
		}

	default:
		return nil, fmt.Errorf("load patient: %w", err)
	}

	apptID := intent.AppointmentID
	if apptID == uuid.Nil {
		apptID = uuid.New()
	}
	appt, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, provider_id, clinic_id, patient_id, date, time_slot, end_time,
			 duration_minutes, status, reason, notes, cancel_reason, edit_token,
			 reminder_sent_24h, reminder_sent_1h, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, $7::time, $8, 'pending', $9, '', '', $10, false, false, now(), now())
		RETURNING `+appointmentColumns+`
	`, apptID, providerID, intent.ClinicID, patient.ID, intent.Date, intent.TimeSlot,
		intent.EndTime, intent.Duration, intent.Reason, intent.EditToken))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if len(intent.FormAnswers) > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO form_submissions (id, appointment_id, template_id, answers, created_at)
			VALUES ($1, $2, $3, $4, now())
		`, uuid.New(), appt.ID, intent.FormTemplateID, intent.FormAnswers)
		if err != nil {
			return nil, fmt.Errorf("insert form submission: %w", err)
		}
	}

	for _, ev := range intent.OutboxEvents {
		if _, err := events.InsertTx(ctx, tx, providerID, ev.Type, ev.Payload); err != nil {
			return nil, err
		}
	}

	return &BookingRecord{
		Appointment: appt,
		Patient:     patient,
		NewPatient:  newPatient,
	}, nil
}

// Reminder sweep

func (r *PgRepository) FindReminderCandidates(ctx context.Context, dates []string) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+fullDetailColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN providers pr ON pr.id = a.provider_id
		WHERE a.status IN ('pending', 'confirmed')
		  AND a.date = ANY($1::date[])
		  AND (NOT a.reminder_sent_24h OR NOT a.reminder_sent_1h)
		ORDER BY a.date, a.time_slot
	`, dates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []AppointmentDetail
	for rows.Next() {
		d, err := scanFullDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, rows.Err()
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, kind ReminderKind) error {
	column := "reminder_sent_24h"
	if kind == Reminder1h {
		column = "reminder_sent_1h"
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET `+column+` = true,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Outbox

func (r *PgRepository) InsertEvent(ctx context.Context, providerID uuid.UUID, ev PendingEvent) error {
	_, err := r.outbox.Insert(ctx, providerID, ev.Type, ev.Payload)
	return err
}

// Joined column lists for hydrated reads. Keep in sync with scanDetail and
// scanFullDetail.

const apptPatientColumns = `a.id, a.provider_id, a.clinic_id, a.patient_id,
	to_char(a.date, 'YYYY-MM-DD'), to_char(a.time_slot, 'HH24:MI'),
	to_char(a.end_time, 'HH24:MI'), a.duration_minutes, a.status,
	a.reason, a.notes, a.cancel_reason, a.edit_token,
	a.reminder_sent_24h, a.reminder_sent_1h, a.created_at, a.updated_at,
	p.id, p.full_name, p.email, p.phone, p.whatsapp_number,
	p.created_by_provider_id, p.edit_token, p.edit_token_expiry, p.created_at, p.updated_at`

const fullDetailColumns = apptPatientColumns + `,
	pr.id, pr.slug, pr.name, pr.email, pr.is_active, pr.plan, pr.max_patients_per_month,
	pr.current_month_patients, pr.quota_month, pr.subscription_expires_at, pr.grace_period_days,
	pr.timezone, pr.created_at, pr.updated_at`

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var p Patient
	if err := row.Scan(
		&d.ID, &d.ProviderID, &d.ClinicID, &d.PatientID,
		&d.Date, &d.TimeSlot, &d.EndTime, &d.Duration, &d.Status,
		&d.Reason, &d.Notes, &d.CancelReason, &d.EditToken,
		&d.ReminderSent24h, &d.ReminderSent1h, &d.CreatedAt, &d.UpdatedAt,
		&p.ID, &p.FullName, &p.Email, &p.Phone, &p.WhatsAppNumber,
		&p.CreatedByProviderID, &p.EditToken, &p.EditTokenExpiry, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	d.Patient = &p
	return &d, nil
}

func scanFullDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var p Patient
	var pr Provider
	if err := row.Scan(
		&d.ID, &d.ProviderID, &d.ClinicID, &d.PatientID,
		&d.Date, &d.TimeSlot, &d.EndTime, &d.Duration, &d.Status,
		&d.Reason, &d.Notes, &d.CancelReason, &d.EditToken,
		&d.ReminderSent24h, &d.ReminderSent1h, &d.CreatedAt, &d.UpdatedAt,
		&p.ID, &p.FullName, &p.Email, &p.Phone, &p.WhatsAppNumber,
		&p.CreatedByProviderID, &p.EditToken, &p.EditTokenExpiry, &p.CreatedAt, &p.UpdatedAt,
		&pr.ID, &pr.Slug, &pr.Name, &pr.Email, &pr.IsActive, &pr.Plan, &pr.MaxPatientsPerMonth,
		&pr.CurrentMonthPatients, &pr.QuotaMonth, &pr.SubscriptionExpiresAt, &pr.GracePeriodDays,
		&pr.Timezone, &pr.CreatedAt, &pr.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	d.Patient = &p
	d.Provider = &pr
	return &d, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
