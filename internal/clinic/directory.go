package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTenantNotFound   = errors.New("clinic: tenant not found")
	ErrLocationNotFound = errors.New("clinic: location not found")
	ErrAgentNotFound    = errors.New("clinic: agent not found")
)

// Directory resolves tenants and their sub-scopes. Lookups are always scoped
// to a tenant so one clinic can never read another's locations or agents.
type Directory interface {
	TenantBySlug(ctx context.Context, slug string) (*Tenant, error)
	Location(ctx context.Context, tenantID, locationID string) (*Location, error)
	Agent(ctx context.Context, tenantID, agentID string) (*Agent, error)
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory reads tenants from Postgres.
type PostgresDirectory struct {
	db rowQuerier
}

// NewPostgresDirectory builds a directory over a pgx pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("clinic: pgx pool required")
	}
	return &PostgresDirectory{db: pool}
}

func newPostgresDirectoryWithQuerier(db rowQuerier) *PostgresDirectory {
	if db == nil {
		panic("clinic: querier required")
	}
	return &PostgresDirectory{db: db}
}

const selectTenantBySlug = `
	SELECT id, slug, name, timezone, business_hours, plan_tier, plan_expires_at,
	       notification_prefs, contact_email, contact_phone
	FROM tenants
	WHERE slug = $1
`

// TenantBySlug loads a tenant by its normalized slug.
func (d *PostgresDirectory) TenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	var (
		t         Tenant
		hoursJSON []byte
		prefsJSON []byte
		expiresAt *time.Time
		tier      string
		email     *string
		phone     *string
	)
	err := d.db.QueryRow(ctx, selectTenantBySlug, slug).Scan(
		&t.ID, &t.Slug, &t.Name, &t.Timezone, &hoursJSON, &tier, &expiresAt,
		&prefsJSON, &email, &phone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("clinic: get tenant: %w", err)
	}
	if err := unmarshalOptional(hoursJSON, &t.BusinessHours); err != nil {
		return nil, fmt.Errorf("clinic: decode tenant hours: %w", err)
	}
	if err := unmarshalOptional(prefsJSON, &t.Notifications); err != nil {
		return nil, fmt.Errorf("clinic: decode notification prefs: %w", err)
	}
	t.PlanTier = PlanTier(tier)
	t.PlanExpiresAt = expiresAt
	t.ContactEmail = deref(email)
	t.ContactPhone = deref(phone)
	return &t, nil
}

const selectLocation = `
	SELECT id, tenant_id, name, business_hours, insurance_notes
	FROM locations
	WHERE tenant_id = $1 AND id = $2
`

// Location loads a location that belongs to tenantID.
func (d *PostgresDirectory) Location(ctx context.Context, tenantID, locationID string) (*Location, error) {
	if _, err := uuid.Parse(locationID); err != nil {
		return nil, ErrLocationNotFound
	}
	var (
		loc       Location
		hoursJSON []byte
		notes     *string
	)
	err := d.db.QueryRow(ctx, selectLocation, tenantID, locationID).Scan(
		&loc.ID, &loc.TenantID, &loc.Name, &hoursJSON, &notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("clinic: get location: %w", err)
	}
	if len(hoursJSON) > 0 {
		var hours BusinessHours
		if err := json.Unmarshal(hoursJSON, &hours); err != nil {
			return nil, fmt.Errorf("clinic: decode location hours: %w", err)
		}
		loc.BusinessHours = &hours
	}
	loc.InsuranceNotes = deref(notes)
	return &loc, nil
}

const selectAgent = `
	SELECT id, tenant_id, location_id, name, business_hours
	FROM agents
	WHERE tenant_id = $1 AND id = $2
`

// Agent loads an agent that belongs to tenantID.
func (d *PostgresDirectory) Agent(ctx context.Context, tenantID, agentID string) (*Agent, error) {
	if _, err := uuid.Parse(agentID); err != nil {
		return nil, ErrAgentNotFound
	}
	var (
		agent      Agent
		locationID *string
		hoursJSON  []byte
	)
	err := d.db.QueryRow(ctx, selectAgent, tenantID, agentID).Scan(
		&agent.ID, &agent.TenantID, &locationID, &agent.Name, &hoursJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("clinic: get agent: %w", err)
	}
	if len(hoursJSON) > 0 {
		var hours BusinessHours
		if err := json.Unmarshal(hoursJSON, &hours); err != nil {
			return nil, fmt.Errorf("clinic: decode agent hours: %w", err)
		}
		agent.BusinessHours = &hours
	}
	agent.LocationID = deref(locationID)
	return &agent, nil
}

const upsertTenant = `
	INSERT INTO tenants (id, slug, name, timezone, business_hours, plan_tier, plan_expires_at,
	                     notification_prefs, contact_email, contact_phone)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (slug) DO UPDATE SET
		name = EXCLUDED.name,
		timezone = EXCLUDED.timezone,
		business_hours = EXCLUDED.business_hours,
		plan_tier = EXCLUDED.plan_tier,
		plan_expires_at = EXCLUDED.plan_expires_at,
		notification_prefs = EXCLUDED.notification_prefs,
		contact_email = EXCLUDED.contact_email,
		contact_phone = EXCLUDED.contact_phone
`

// SaveTenant inserts or updates a tenant keyed by slug. Used by seeding tools.
func (d *PostgresDirectory) SaveTenant(ctx context.Context, t *Tenant) error {
	hours, err := json.Marshal(t.BusinessHours)
	if err != nil {
		return fmt.Errorf("clinic: marshal hours: %w", err)
	}
	prefs, err := json.Marshal(t.Notifications)
	if err != nil {
		return fmt.Errorf("clinic: marshal notification prefs: %w", err)
	}
	_, err = d.db.Exec(ctx, upsertTenant,
		t.ID, t.Slug, t.Name, t.Timezone, hours, string(t.PlanTier), t.PlanExpiresAt,
		prefs, nullable(t.ContactEmail), nullable(t.ContactPhone),
	)
	if err != nil {
		return fmt.Errorf("clinic: save tenant: %w", err)
	}
	return nil
}

const insertLocation = `
	INSERT INTO locations (id, tenant_id, name, business_hours, insurance_notes)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING
`

// SaveLocation inserts a location if it does not exist yet.
func (d *PostgresDirectory) SaveLocation(ctx context.Context, loc *Location) error {
	hours, err := marshalOptional(loc.BusinessHours)
	if err != nil {
		return fmt.Errorf("clinic: marshal location hours: %w", err)
	}
	if _, err := d.db.Exec(ctx, insertLocation, loc.ID, loc.TenantID, loc.Name, hours, nullable(loc.InsuranceNotes)); err != nil {
		return fmt.Errorf("clinic: save location: %w", err)
	}
	return nil
}

const insertAgent = `
	INSERT INTO agents (id, tenant_id, location_id, name, business_hours)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING
`

// SaveAgent inserts an agent if it does not exist yet.
func (d *PostgresDirectory) SaveAgent(ctx context.Context, agent *Agent) error {
	hours, err := marshalOptional(agent.BusinessHours)
	if err != nil {
		return fmt.Errorf("clinic: marshal agent hours: %w", err)
	}
	if _, err := d.db.Exec(ctx, insertAgent, agent.ID, agent.TenantID, nullable(agent.LocationID), agent.Name, hours); err != nil {
		return fmt.Errorf("clinic: save agent: %w", err)
	}
	return nil
}

func unmarshalOptional(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func marshalOptional(hours *BusinessHours) ([]byte, error) {
	if hours == nil {
		return nil, nil
	}
	return json.Marshal(hours)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
