package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
)

type mockEmailSender struct {
	mu     sync.Mutex
	sent   []EmailMessage
	failOn string
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && msg.To == m.failOn {
		return errors.New("mock email error")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type smsCall struct{ to, body string }

type mockSMSSender struct {
	mu     sync.Mutex
	sent   []smsCall
	failOn string
}

func (m *mockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && to == m.failOn {
		return errors.New("mock SMS error")
	}
	m.sent = append(m.sent, smsCall{to, body})
	return nil
}

func bookingEvent(tier clinic.PlanTier) Event {
	return Event{
		ID:           "evt-1",
		Kind:         KindBookingCreated,
		TenantID:     "tenant-1",
		TenantName:   "Glow Clinic",
		Timezone:     "America/New_York",
		PlanTier:     tier,
		ClinicEmail:  "front@glow.example",
		PatientName:  "Jane Doe",
		PatientEmail: "jane@example.com",
		PatientPhone: "5125550100",
		Staff: clinic.NotificationPrefs{
			EmailEnabled:    true,
			EmailRecipients: []string{"owner@glow.example"},
			SMSEnabled:      true,
			SMSRecipients:   []string{"+15125550199"},
		},
		AppointmentID: "appt-1",
		Start:         time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
		End:           time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC),
	}
}

func TestPlanTierGating(t *testing.T) {
	tests := []struct {
		name string
		tier clinic.PlanTier
		kind Kind
		want []Delivery
	}{
		{
			name: "basic gets patient email only",
			tier: clinic.PlanBasic,
			kind: KindBookingCreated,
			want: []Delivery{
				{Channel: ChannelEmail, Audience: AudiencePatient, To: "jane@example.com"},
			},
		},
		{
			name: "pro adds patient sms",
			tier: clinic.PlanPro,
			kind: KindBookingModified,
			want: []Delivery{
				{Channel: ChannelEmail, Audience: AudiencePatient, To: "jane@example.com"},
				{Channel: ChannelSMS, Audience: AudiencePatient, To: "5125550100"},
			},
		},
		{
			name: "premium adds staff",
			tier: clinic.PlanPremium,
			kind: KindBookingCancelled,
			want: []Delivery{
				{Channel: ChannelEmail, Audience: AudiencePatient, To: "jane@example.com"},
				{Channel: ChannelSMS, Audience: AudiencePatient, To: "5125550100"},
				{Channel: ChannelEmail, Audience: AudienceStaff, To: "owner@glow.example"},
				{Channel: ChannelSMS, Audience: AudienceStaff, To: "+15125550199"},
			},
		},
		{
			name: "handoff on basic goes nowhere",
			tier: clinic.PlanBasic,
			kind: KindHandoff,
			want: nil,
		},
		{
			name: "handoff on pro goes to staff only",
			tier: clinic.PlanPro,
			kind: KindHandoff,
			want: []Delivery{
				{Channel: ChannelEmail, Audience: AudienceStaff, To: "owner@glow.example"},
				{Channel: ChannelSMS, Audience: AudienceStaff, To: "+15125550199"},
			},
		},
		{
			name: "unknown tier ranks as basic",
			tier: clinic.PlanTier("legacy"),
			kind: KindBookingCreated,
			want: []Delivery{
				{Channel: ChannelEmail, Audience: AudiencePatient, To: "jane@example.com"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := bookingEvent(tt.tier)
			evt.Kind = tt.kind
			assert.Equal(t, tt.want, Plan(evt))
		})
	}
}

func TestPlanSkipsDisabledStaffChannels(t *testing.T) {
	evt := bookingEvent(clinic.PlanPremium)
	evt.Staff.SMSEnabled = false
	evt.PatientPhone = ""

	got := Plan(evt)
	require.Len(t, got, 2)
	assert.Equal(t, AudiencePatient, got[0].Audience)
	assert.Equal(t, Delivery{Channel: ChannelEmail, Audience: AudienceStaff, To: "owner@glow.example"}, got[1])
}

func TestFanoutDeliversAndRenders(t *testing.T) {
	email := &mockEmailSender{}
	sms := &mockSMSSender{}
	svc := NewService(email, sms, nil, nil)

	require.NoError(t, svc.Fanout(context.Background(), bookingEvent(clinic.PlanPremium)))

	require.Len(t, email.sent, 2)
	patient := email.sent[0]
	assert.Equal(t, "jane@example.com", patient.To)
	assert.Equal(t, "Jane Doe", patient.ToName)
	assert.Equal(t, "front@glow.example", patient.ReplyTo)
	assert.Equal(t, "booking.created", patient.Tag)
	assert.Contains(t, patient.Subject, "Glow Clinic")
	assert.Contains(t, patient.Body, "Tuesday, June 10 at 10:00 AM", "rendered in the clinic zone")

	staff := email.sent[1]
	assert.Equal(t, "owner@glow.example", staff.To)
	assert.Empty(t, staff.ReplyTo)
	assert.True(t, strings.HasPrefix(staff.Subject, "New appointment"))

	require.Len(t, sms.sent, 2)
	assert.Equal(t, "5125550100", sms.sent[0].to)
	assert.Contains(t, sms.sent[0].body, "Tue 6/10 10:00AM")
}

func TestFanoutCollectsFailures(t *testing.T) {
	email := &mockEmailSender{failOn: "jane@example.com"}
	sms := &mockSMSSender{failOn: "+15125550199"}
	svc := NewService(email, sms, nil, nil)

	err := svc.Fanout(context.Background(), bookingEvent(clinic.PlanPremium))
	require.Error(t, err)
	assert.Equal(t, "notify: 2 notification(s) failed", err.Error())

	assert.Len(t, email.sent, 1, "staff email still sent")
	assert.Len(t, sms.sent, 1, "patient sms still sent")
}

func TestFanoutWithoutSendersLogsAndContinues(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)
	assert.NoError(t, svc.Fanout(context.Background(), bookingEvent(clinic.PlanPremium)))
}

func TestNotifyIsFanout(t *testing.T) {
	email := &mockEmailSender{}
	svc := NewService(email, nil, nil, nil)
	require.NoError(t, svc.Notify(context.Background(), bookingEvent(clinic.PlanBasic)))
	assert.Len(t, email.sent, 1)
}

func TestNewTenantEvent(t *testing.T) {
	tenant := &clinic.Tenant{
		ID:           "t-1",
		Name:         "Glow",
		Timezone:     "America/Chicago",
		PlanTier:     clinic.PlanPro,
		ContactEmail: "hi@glow.example",
		ContactPhone: "+15125550000",
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	evt := NewTenantEvent(KindBookingCancelled, tenant, now)

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, KindBookingCancelled, evt.Kind)
	assert.Equal(t, "t-1", evt.TenantID)
	assert.Equal(t, clinic.PlanPro, evt.PlanTier)
	assert.Equal(t, "hi@glow.example", evt.ClinicEmail)
	assert.Equal(t, time.UTC, evt.OccurredAt.Location())
}

func TestStubSMSSender(t *testing.T) {
	assert.NoError(t, NewStubSMSSender(nil).SendSMS(context.Background(), "+15125550100", "hello"))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héllo...", truncate("héllo wörld", 5))
	out := truncate("日本語のメッセージ", 3)
	assert.Equal(t, "日本語...", out)
	assert.True(t, utf8.ValidString(out))
}
