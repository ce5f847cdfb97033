package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
)

// Kind names what happened.
type Kind string

const (
	KindBookingCreated   Kind = "booking.created"
	KindBookingModified  Kind = "booking.modified"
	KindBookingCancelled Kind = "booking.cancelled"
	KindHandoff          Kind = "conversation.handoff"
)

// Event is everything the fan-out needs to notify patients and staff without
// reading the database again. It is the queue payload.
type Event struct {
	ID            string                   `json:"id"`
	Kind          Kind                     `json:"kind"`
	TenantID      string                   `json:"tenant_id"`
	TenantName    string                   `json:"tenant_name"`
	Timezone      string                   `json:"timezone"`
	PlanTier      clinic.PlanTier          `json:"plan_tier"`
	Staff         clinic.NotificationPrefs `json:"staff"`
	ClinicEmail   string                   `json:"clinic_email,omitempty"`
	ClinicPhone   string                   `json:"clinic_phone,omitempty"`
	PatientName   string                   `json:"patient_name,omitempty"`
	PatientEmail  string                   `json:"patient_email,omitempty"`
	PatientPhone  string                   `json:"patient_phone,omitempty"`
	AppointmentID string                   `json:"appointment_id,omitempty"`
	Start         time.Time                `json:"start,omitempty"`
	End           time.Time                `json:"end,omitempty"`
	Note          string                   `json:"note,omitempty"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// NewTenantEvent fills the tenant half of an event.
func NewTenantEvent(kind Kind, tenant *clinic.Tenant, now time.Time) Event {
	evt := Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: now.UTC(),
	}
	if tenant != nil {
		evt.TenantID = tenant.ID
		evt.TenantName = tenant.Name
		evt.Timezone = tenant.Timezone
		evt.PlanTier = tenant.PlanTier
		evt.Staff = tenant.Notifications
		evt.ClinicEmail = tenant.ContactEmail
		evt.ClinicPhone = tenant.ContactPhone
	}
	return evt
}

func (e Event) location() *time.Location {
	return clinic.LoadLocation(e.Timezone)
}

func (e Event) when() string {
	if e.Start.IsZero() {
		return ""
	}
	return e.Start.In(e.location()).Format("Monday, January 2 at 3:04 PM")
}

func (e Event) whenShort() string {
	if e.Start.IsZero() {
		return ""
	}
	return e.Start.In(e.location()).Format("Mon 1/2 3:04PM")
}
