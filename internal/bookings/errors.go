package bookings

import "errors"

var (
	ErrPlanExpired       = errors.New("bookings: plan expired")
	ErrContactRequired   = errors.New("bookings: email or phone required")
	ErrNameRequired      = errors.New("bookings: name required")
	ErrInvalidEmail      = errors.New("bookings: invalid email")
	ErrDisposableEmail   = errors.New("bookings: disposable email")
	ErrInvalidPhone      = errors.New("bookings: invalid phone")
	ErrInvalidWindow     = errors.New("bookings: invalid time window")
	ErrStartInPast       = errors.New("bookings: start must be in the future")
	ErrOutsideHours      = errors.New("bookings: outside working hours")
	ErrSameDayConflict   = errors.New("bookings: patient already booked that day")
	ErrSlotTaken         = errors.New("bookings: slot already taken")
	ErrBookingInProgress = errors.New("bookings: booking in progress")
	ErrPatientNotFound   = errors.New("bookings: patient not found")
	ErrNoUpcoming        = errors.New("bookings: no upcoming appointment")
	ErrWithinCutoff      = errors.New("bookings: within modification cutoff")
	ErrInvalidAction     = errors.New("bookings: invalid action")
	ErrConcurrentChange  = errors.New("bookings: appointment changed concurrently")
)

// IsValidation reports whether err is a caller mistake rather than a store
// failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrContactRequired, ErrNameRequired, ErrInvalidEmail, ErrDisposableEmail,
		ErrInvalidPhone, ErrInvalidWindow, ErrStartInPast, ErrOutsideHours,
		ErrSameDayConflict, ErrNoUpcoming, ErrWithinCutoff, ErrInvalidAction,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
