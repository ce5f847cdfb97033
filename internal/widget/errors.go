package widget

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/clinic-booking-widget/internal/bookings"
	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type apiError struct {
	status  int
	code    string
	message string
}

// Patient lookups share one vague message so callers cannot probe which
// contacts belong to patients.
const patientNotFoundMessage = "We couldn't find a booking with those details."

var errorTable = []struct {
	target error
	apiError
}{
	{bookings.ErrPlanExpired, apiError{http.StatusForbidden, "plan_expired", "Online booking is currently unavailable for this clinic. Please contact the clinic directly."}},
	{bookings.ErrContactRequired, apiError{http.StatusBadRequest, "contact_required", "Please provide an email address or phone number."}},
	{bookings.ErrNameRequired, apiError{http.StatusBadRequest, "name_required", "Please tell us your name."}},
	{bookings.ErrDisposableEmail, apiError{http.StatusBadRequest, "disposable_email", "Please use a permanent email address."}},
	{bookings.ErrInvalidEmail, apiError{http.StatusBadRequest, "invalid_email", "That email address doesn't look right."}},
	{bookings.ErrInvalidPhone, apiError{http.StatusBadRequest, "invalid_phone", "Please enter a valid 10-digit phone number."}},
	{bookings.ErrInvalidWindow, apiError{http.StatusBadRequest, "invalid_window", "Please choose a valid start and end time."}},
	{bookings.ErrStartInPast, apiError{http.StatusBadRequest, "start_in_past", "That time has already passed. Please pick another."}},
	{bookings.ErrOutsideHours, apiError{http.StatusBadRequest, "outside_hours", "That time is outside the clinic's hours."}},
	{bookings.ErrSameDayConflict, apiError{http.StatusBadRequest, "already_booked_today", "You already have an appointment on that day."}},
	{bookings.ErrSlotTaken, apiError{http.StatusConflict, "slot_taken", "That time was just booked. Please pick another."}},
	{bookings.ErrBookingInProgress, apiError{http.StatusConflict, "booking_in_progress", "We're still processing your last request. Please try again in a moment."}},
	{bookings.ErrConcurrentChange, apiError{http.StatusConflict, "conflict", "Your appointment changed while we were updating it. Please try again."}},
	{bookings.ErrPatientNotFound, apiError{http.StatusNotFound, "patient_not_found", patientNotFoundMessage}},
	{bookings.ErrNoUpcoming, apiError{http.StatusBadRequest, "no_upcoming_appointment", "There's no upcoming appointment to change."}},
	{bookings.ErrWithinCutoff, apiError{http.StatusBadRequest, "within_cutoff", "Appointments starting within 2 hours can't be changed online. Please contact the clinic directly."}},
	{bookings.ErrInvalidAction, apiError{http.StatusBadRequest, "invalid_action", "Action must be modify or cancel."}},
	{clinic.ErrTenantNotFound, apiError{http.StatusNotFound, "tenant_not_found", "This clinic could not be found."}},
	{clinic.ErrLocationNotFound, apiError{http.StatusNotFound, "location_not_found", "That location could not be found."}},
	{clinic.ErrAgentNotFound, apiError{http.StatusNotFound, "agent_not_found", "That provider could not be found."}},
}

var internalError = apiError{http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again."}

// classify maps a domain error to its HTTP shape. Unknown errors are 500.
func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError
		}
	}
	return internalError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}
