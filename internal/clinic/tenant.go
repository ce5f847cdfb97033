package clinic

import (
	"strings"
	"time"
)

// PlanTier is the subscription level of a tenant.
type PlanTier string

const (
	PlanBasic   PlanTier = "basic"
	PlanPro     PlanTier = "pro"
	PlanPremium PlanTier = "premium"
)

// Rank orders tiers so callers can gate on "at least" a tier. Unknown tiers
// rank as basic.
func (p PlanTier) Rank() int {
	switch PlanTier(strings.ToLower(string(p))) {
	case PlanPremium:
		return 3
	case PlanPro:
		return 2
	default:
		return 1
	}
}

// AtLeast reports whether p is the same as or above other.
func (p PlanTier) AtLeast(other PlanTier) bool {
	return p.Rank() >= other.Rank()
}

// NotificationPrefs holds where a clinic wants staff notifications delivered.
type NotificationPrefs struct {
	EmailEnabled    bool     `json:"email_enabled"`
	EmailRecipients []string `json:"email_recipients,omitempty"`

	SMSEnabled    bool     `json:"sms_enabled"`
	SMSRecipients []string `json:"sms_recipients,omitempty"`
}

// GetSMSRecipients returns the configured SMS recipients with blanks and
// duplicates removed.
func (n *NotificationPrefs) GetSMSRecipients() []string {
	return dedupe(n.SMSRecipients)
}

// GetEmailRecipients returns the configured email recipients with blanks and
// duplicates removed.
func (n *NotificationPrefs) GetEmailRecipients() []string {
	return dedupe(n.EmailRecipients)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Tenant is a clinic using the widget.
type Tenant struct {
	ID            string            `json:"id"`
	Slug          string            `json:"slug"`
	Name          string            `json:"name"`
	Timezone      string            `json:"timezone"` // e.g., "America/New_York"
	BusinessHours BusinessHours     `json:"business_hours"`
	PlanTier      PlanTier          `json:"plan_tier"`
	PlanExpiresAt *time.Time        `json:"plan_expires_at,omitempty"` // nil never expires
	Notifications NotificationPrefs `json:"notifications"`
	ContactEmail  string            `json:"contact_email,omitempty"`
	ContactPhone  string            `json:"contact_phone,omitempty"`
}

// Location is an optional sub-scope of a tenant with its own hours.
type Location struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	Name           string         `json:"name"`
	BusinessHours  *BusinessHours `json:"business_hours,omitempty"`
	InsuranceNotes string         `json:"insurance_notes,omitempty"`
}

// Agent is a named assistant bound to zero or one location.
type Agent struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	LocationID    string         `json:"location_id,omitempty"`
	Name          string         `json:"name"`
	BusinessHours *BusinessHours `json:"business_hours,omitempty"`
}

// PlanExpired reports whether the plan expiry is at or before now.
func (t *Tenant) PlanExpired(now time.Time) bool {
	if t == nil || t.PlanExpiresAt == nil {
		return false
	}
	return !now.Before(*t.PlanExpiresAt)
}

// Location returns the tenant's time zone.
func (t *Tenant) Location() *time.Location {
	if t == nil {
		return time.UTC
	}
	return LoadLocation(t.Timezone)
}

// EffectiveHours picks the schedule that governs availability: the agent's own
// hours, then the location's, then the tenant default. A nil or empty override
// defers to the next level.
func EffectiveHours(tenant *Tenant, location *Location, agent *Agent) BusinessHours {
	if agent != nil && agent.BusinessHours.HasAnyHours() {
		return *agent.BusinessHours
	}
	if location != nil && location.BusinessHours.HasAnyHours() {
		return *location.BusinessHours
	}
	if tenant == nil {
		return BusinessHours{}
	}
	return tenant.BusinessHours
}
