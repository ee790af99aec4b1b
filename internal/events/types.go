package events

// Versioned event types carried through the outbox. Dispatchers switch on
// these, so renaming one is a wire change.
const (
	TypeBookingCompleted         = "booking.completed.v1"
	TypeAppointmentCancelled     = "appointment.cancelled.v1"
	TypeAppointmentStatusChanged = "appointment.status_changed.v1"
)

// BookingCompletedV1 is written in the same transaction as the appointment
// insert. It carries everything the dispatcher needs so delivery never has
// to read the database again.
type BookingCompletedV1 struct {
	AppointmentID   string `json:"appointment_id"`
	ProviderID      string `json:"provider_id"`
	ProviderSlug    string `json:"provider_slug"`
	ProviderName    string `json:"provider_name"`
	ProviderEmail   string `json:"provider_email"`
	ProviderPlan    string `json:"provider_plan"`
	ClinicID        string `json:"clinic_id,omitempty"`
	Date            string `json:"date"`
	TimeSlot        string `json:"time_slot"`
	EndTime         string `json:"end_time"`
	Reason          string `json:"reason,omitempty"`
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email,omitempty"`
	PatientWhatsApp string `json:"patient_whatsapp"`
	EditLink        string `json:"edit_link"`
}

// AppointmentCancelledV1 triggers the cancellation notification and frees
// the slot on the public booking channel.
type AppointmentCancelledV1 struct {
	AppointmentID   string `json:"appointment_id"`
	ProviderID      string `json:"provider_id"`
	ProviderSlug    string `json:"provider_slug"`
	ProviderName    string `json:"provider_name"`
	ProviderEmail   string `json:"provider_email"`
	ProviderPlan    string `json:"provider_plan"`
	Date            string `json:"date"`
	TimeSlot        string `json:"time_slot"`
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email,omitempty"`
	PatientWhatsApp string `json:"patient_whatsapp"`
	CancelReason    string `json:"cancel_reason,omitempty"`
	CancelledBy     string `json:"cancelled_by"` // provider or patient
}

// AppointmentStatusChangedV1 covers the non-cancellation transitions shown
// on the provider dashboard.
type AppointmentStatusChangedV1 struct {
	AppointmentID string `json:"appointment_id"`
	ProviderID    string `json:"provider_id"`
	ProviderSlug  string `json:"provider_slug"`
	Date          string `json:"date"`
	TimeSlot      string `json:"time_slot"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
}
