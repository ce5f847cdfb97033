package notify

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
	"github.com/wolfman30/clinic-booking-widget/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

var notifyTracer = otel.Tracer("widget.internal.notify")

// SMSSender sends SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Audience is who a delivery is for.
type Audience string

const (
	AudiencePatient Audience = "patient"
	AudienceStaff   Audience = "staff"
)

// Delivery is one message to one recipient.
type Delivery struct {
	Channel  Channel
	Audience Audience
	To       string
}

// Plan lists the deliveries evt is entitled to under the tenant's tier:
// basic gets patient email, pro adds patient SMS, premium adds staff email
// and SMS. Hand-offs go to staff only and need pro or above.
func Plan(evt Event) []Delivery {
	var out []Delivery
	tier := evt.PlanTier

	if evt.Kind != KindHandoff {
		if evt.PatientEmail != "" {
			out = append(out, Delivery{Channel: ChannelEmail, Audience: AudiencePatient, To: evt.PatientEmail})
		}
		if evt.PatientPhone != "" && tier.AtLeast(clinic.PlanPro) {
			out = append(out, Delivery{Channel: ChannelSMS, Audience: AudiencePatient, To: evt.PatientPhone})
		}
	}

	staffTier := clinic.PlanPremium
	if evt.Kind == KindHandoff {
		staffTier = clinic.PlanPro
	}
	if !tier.AtLeast(staffTier) {
		return out
	}
	if evt.Staff.EmailEnabled {
		for _, to := range evt.Staff.GetEmailRecipients() {
			out = append(out, Delivery{Channel: ChannelEmail, Audience: AudienceStaff, To: to})
		}
	}
	if evt.Staff.SMSEnabled {
		for _, to := range evt.Staff.GetSMSRecipients() {
			out = append(out, Delivery{Channel: ChannelSMS, Audience: AudienceStaff, To: to})
		}
	}
	return out
}

// Service delivers events over email and SMS.
type Service struct {
	email   EmailSender
	sms     SMSSender
	metrics *metrics.WidgetMetrics
	logger  *logging.Logger
}

// NewService creates a notification service. Either sender may be nil, in
// which case that channel is logged and skipped.
func NewService(email EmailSender, sms SMSSender, m *metrics.WidgetMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:   email,
		sms:     sms,
		metrics: m,
		logger:  logger,
	}
}

// Notify delivers evt synchronously. It satisfies the engine's notifier for
// setups without a queue.
func (s *Service) Notify(ctx context.Context, evt Event) error {
	return s.Fanout(ctx, evt)
}

// Fanout sends every delivery Plan allows. Each failure is logged and counted;
// the returned error only summarizes how many failed.
func (s *Service) Fanout(ctx context.Context, evt Event) error {
	ctx, span := notifyTracer.Start(ctx, "notify.fanout")
	defer span.End()
	span.SetAttributes(
		attribute.String("widget.tenant_id", evt.TenantID),
		attribute.String("widget.event_kind", string(evt.Kind)),
		attribute.String("widget.plan_tier", string(evt.PlanTier)),
	)

	deliveries := Plan(evt)
	if len(deliveries) == 0 {
		s.logger.Debug("notify: nothing to deliver", "tenant_id", evt.TenantID, "kind", string(evt.Kind))
		return nil
	}

	var errs []error
	for _, d := range deliveries {
		err := s.deliver(ctx, evt, d)
		switch {
		case errors.Is(err, errSenderMissing):
			s.metrics.ObserveNotification(string(d.Channel), "skipped")
			s.logger.Warn("notify: sender not configured, skipping",
				"channel", string(d.Channel), "audience", string(d.Audience), "tenant_id", evt.TenantID)
		case err != nil:
			s.metrics.ObserveNotification(string(d.Channel), "failed")
			s.logger.Error("notify: delivery failed",
				"error", err, "channel", string(d.Channel), "audience", string(d.Audience),
				"to", d.To, "tenant_id", evt.TenantID, "appointment_id", evt.AppointmentID)
			errs = append(errs, err)
		default:
			s.metrics.ObserveNotification(string(d.Channel), "sent")
			s.logger.Info("notify: delivered",
				"channel", string(d.Channel), "audience", string(d.Audience),
				"to", d.To, "tenant_id", evt.TenantID, "kind", string(evt.Kind))
		}
	}

	span.SetAttributes(attribute.Int("widget.deliveries", len(deliveries)), attribute.Int("widget.failures", len(errs)))
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

var errSenderMissing = errors.New("notify: sender not configured")

func (s *Service) deliver(ctx context.Context, evt Event, d Delivery) error {
	switch d.Channel {
	case ChannelEmail:
		if s.email == nil {
			return errSenderMissing
		}
		msg := renderEmail(evt, d.Audience)
		msg.To = d.To
		msg.Tag = string(evt.Kind)
		if d.Audience == AudiencePatient {
			msg.ToName = evt.PatientName
			msg.ReplyTo = evt.ClinicEmail
		}
		return s.email.Send(ctx, msg)
	case ChannelSMS:
		if s.sms == nil {
			return errSenderMissing
		}
		return s.sms.SendSMS(ctx, d.To, renderSMS(evt, d.Audience))
	default:
		return fmt.Errorf("notify: unknown channel %q", d.Channel)
	}
}

// StubSMSSender is a no-op sender for testing.
type StubSMSSender struct {
	logger *logging.Logger
}

// NewStubSMSSender creates a stub SMS sender.
func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

// SendSMS logs but doesn't send.
func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub SMS sender: would send", "to", to, "body_preview", truncate(body, 50))
	return nil
}

// truncate keeps at most maxLen runes.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

var _ SMSSender = (*StubSMSSender)(nil)
