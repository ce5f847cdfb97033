package notify

import (
	"fmt"
	"html"
	"strings"
)

func renderEmail(evt Event, audience Audience) EmailMessage {
	clinicName := evt.TenantName
	if clinicName == "" {
		clinicName = "the clinic"
	}
	patient := evt.PatientName
	if patient == "" {
		patient = "A patient"
	}
	when := evt.when()

	var subject, body string
	switch {
	case evt.Kind == KindHandoff:
		subject = "Conversation needs a team member"
		body = fmt.Sprintf("A visitor on the %s booking widget asked for help from staff.\n\nMessage: %s", clinicName, evt.Note)
	case audience == AudienceStaff && evt.Kind == KindBookingCreated:
		subject = fmt.Sprintf("New appointment - %s", patient)
		body = fmt.Sprintf("%s booked %s.\nEmail: %s\nPhone: %s", patient, when, evt.PatientEmail, evt.PatientPhone)
	case audience == AudienceStaff && evt.Kind == KindBookingModified:
		subject = fmt.Sprintf("Appointment moved - %s", patient)
		body = fmt.Sprintf("%s moved their appointment to %s.", patient, when)
	case audience == AudienceStaff && evt.Kind == KindBookingCancelled:
		subject = fmt.Sprintf("Appointment cancelled - %s", patient)
		body = fmt.Sprintf("%s cancelled their appointment on %s.", patient, when)
	case evt.Kind == KindBookingCreated:
		subject = fmt.Sprintf("Your appointment at %s", clinicName)
		body = fmt.Sprintf("Hi %s,\n\nYou're booked for %s at %s.", patient, when, clinicName)
	case evt.Kind == KindBookingModified:
		subject = fmt.Sprintf("Your appointment at %s has moved", clinicName)
		body = fmt.Sprintf("Hi %s,\n\nYour appointment is now %s at %s.", patient, when, clinicName)
	default:
		subject = fmt.Sprintf("Your appointment at %s is cancelled", clinicName)
		body = fmt.Sprintf("Hi %s,\n\nYour appointment on %s at %s has been cancelled.", patient, when, clinicName)
	}
	if audience == AudiencePatient && evt.ClinicPhone != "" {
		body += fmt.Sprintf("\n\nQuestions? Call us at %s.", evt.ClinicPhone)
	}

	return EmailMessage{
		Subject: subject,
		Body:    body,
		HTML:    fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;"><p>%s</p></div>`, strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")),
	}
}

func renderSMS(evt Event, audience Audience) string {
	when := evt.whenShort()
	switch {
	case evt.Kind == KindHandoff:
		return fmt.Sprintf("Widget visitor needs staff: %s", truncate(evt.Note, 100))
	case audience == AudienceStaff:
		return fmt.Sprintf("%s: %s %s (%s)", evt.Kind, evt.PatientName, when, evt.PatientPhone)
	case evt.Kind == KindBookingCreated:
		return fmt.Sprintf("%s: you're booked for %s. Reply STOP to opt out.", evt.TenantName, when)
	case evt.Kind == KindBookingModified:
		return fmt.Sprintf("%s: your appointment moved to %s.", evt.TenantName, when)
	default:
		return fmt.Sprintf("%s: your appointment on %s is cancelled.", evt.TenantName, when)
	}
}
