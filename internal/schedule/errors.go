package schedule

import "errors"

// Sentinel errors for every caller-distinguishable outcome. The HTTP layer
// maps these to response codes with errors.Is, so wrap them rather than
// replacing them.
var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrClinicNotFound      = errors.New("clinic not found")
	ErrRuleNotFound        = errors.New("availability rule not found")
	ErrBlockNotFound       = errors.New("blocked period not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrTemplateNotFound    = errors.New("form template not found")

	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable means the booking surface is closed: provider
	// inactive or subscription lapsed past its grace period.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrQuotaExceeded means the provider's monthly new-patient cap is
	// reached; returning patients still book fine.
	ErrQuotaExceeded = errors.New("patient quota exceeded")

	// ErrSlotConflict means another booking already holds the slot. Clients
	// recover by re-resolving availability and picking again.
	ErrSlotConflict = errors.New("slot already booked")

	ErrInvalidStatusTransition = errors.New("invalid status transition")
)
