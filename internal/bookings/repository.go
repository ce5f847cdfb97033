package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintPatientDay  = "appointments_patient_day_uniq"
	constraintTenantStart = "appointments_tenant_start_uniq"
)

// Patient is a person who has booked through a tenant's widget.
type Patient struct {
	ID        string
	TenantID  string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Appointment is a booked [Start, End) window.
type Appointment struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"-"`
	PatientID string    `json:"-"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	LocalDay  string    `json:"-"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NewAppointment is the input for Store.CreateAppointment. LocalDay is the
// start's calendar date in the tenant zone ("2006-01-02").
type NewAppointment struct {
	TenantID string
	Name     string
	Contact  Contact
	Start    time.Time
	End      time.Time
	LocalDay string
}

// Store persists patients and appointments.
type Store interface {
	FindPatient(ctx context.Context, tenantID string, contact Contact) (*Patient, error)
	CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, *Patient, error)
	ListUpcoming(ctx context.Context, tenantID, patientID string, now time.Time) ([]Appointment, error)
	BookedStarts(ctx context.Context, tenantID string, from, to time.Time) ([]time.Time, error)
	Cancel(ctx context.Context, tenantID, appointmentID string, cutoff time.Time) (*Appointment, error)
	Reschedule(ctx context.Context, tenantID, appointmentID string, start, end time.Time, localDay string, cutoff time.Time) (*Appointment, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgPool interface {
	dbtx
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store on pgx.
type PostgresStore struct {
	db pgPool
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithPool(db pgPool) *PostgresStore {
	if db == nil {
		panic("bookings: pool required")
	}
	return &PostgresStore{db: db}
}

const (
	selectPatientByEmail = `
		SELECT id, tenant_id, full_name, COALESCE(email, ''), COALESCE(phone, ''), created_at
		FROM patients
		WHERE tenant_id = $1 AND lower(email) = lower($2)
	`
	selectPatientByPhone = `
		SELECT id, tenant_id, full_name, COALESCE(email, ''), COALESCE(phone, ''), created_at
		FROM patients
		WHERE tenant_id = $1 AND phone_digits = $2
	`
	insertPatient = `
		INSERT INTO patients (id, tenant_id, full_name, email, phone, phone_digits)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`
	selectSameDay = `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE tenant_id = $1 AND patient_id = $2 AND local_day = $3 AND status <> 'cancelled'
		)
	`
	insertAppointment = `
		INSERT INTO appointments (id, tenant_id, patient_id, start_time, end_time, local_day, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	selectUpcoming = `
		SELECT id, tenant_id, patient_id, start_time, end_time, local_day::text, status, created_at, updated_at
		FROM appointments
		WHERE tenant_id = $1 AND patient_id = $2 AND status <> 'cancelled' AND start_time > $3
		ORDER BY start_time ASC
	`
	selectBookedStarts = `
		SELECT start_time
		FROM appointments
		WHERE tenant_id = $1 AND status <> 'cancelled' AND start_time >= $2 AND start_time < $3
		ORDER BY start_time ASC
	`
	cancelAppointment = `
		UPDATE appointments
		SET status = 'cancelled', updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status <> 'cancelled' AND start_time >= $3
		RETURNING id, tenant_id, patient_id, start_time, end_time, local_day::text, status, created_at, updated_at
	`
	rescheduleAppointment = `
		UPDATE appointments
		SET start_time = $3, end_time = $4, local_day = $5, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status <> 'cancelled' AND start_time >= $6
		RETURNING id, tenant_id, patient_id, start_time, end_time, local_day::text, status, created_at, updated_at
	`
)

// FindPatient resolves a patient by case-insensitive email first, then by
// phone digits.
func (s *PostgresStore) FindPatient(ctx context.Context, tenantID string, contact Contact) (*Patient, error) {
	return findPatient(ctx, s.db, tenantID, contact)
}

func findPatient(ctx context.Context, q dbtx, tenantID string, contact Contact) (*Patient, error) {
	if contact.Email != "" {
		p, err := scanPatient(q.QueryRow(ctx, selectPatientByEmail, tenantID, contact.Email))
		if err == nil || !errors.Is(err, ErrPatientNotFound) {
			return p, err
		}
	}
	if contact.Phone != "" {
		return scanPatient(q.QueryRow(ctx, selectPatientByPhone, tenantID, PhoneDigits(contact.Phone)))
	}
	return nil, ErrPatientNotFound
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Email, &p.Phone, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("bookings: get patient: %w", err)
	}
	return &p, nil
}

// CreateAppointment resolves or inserts the patient and books the window in a
// single transaction. The partial unique indexes on appointments make the
// one-per-day and one-per-slot rules hold under concurrency. The same-day
// pre-check only catches the common sequential case early.
func (s *PostgresStore) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, *Patient, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("bookings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	patient, err := resolvePatient(ctx, tx, in)
	if err != nil {
		return nil, nil, err
	}

	var taken bool
	if err := tx.QueryRow(ctx, selectSameDay, in.TenantID, patient.ID, in.LocalDay).Scan(&taken); err != nil {
		return nil, nil, fmt.Errorf("bookings: check same day: %w", err)
	}
	if taken {
		return nil, nil, ErrSameDayConflict
	}

	appt := &Appointment{
		ID:        uuid.NewString(),
		TenantID:  in.TenantID,
		PatientID: patient.ID,
		Start:     in.Start.UTC(),
		End:       in.End.UTC(),
		LocalDay:  in.LocalDay,
		Status:    StatusScheduled,
	}
	err = tx.QueryRow(ctx, insertAppointment,
		appt.ID, appt.TenantID, appt.PatientID, appt.Start, appt.End, appt.LocalDay, string(appt.Status),
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return nil, nil, mapUniqueViolation(err, "insert appointment")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, mapUniqueViolation(err, "commit")
	}
	return appt, patient, nil
}

func resolvePatient(ctx context.Context, tx pgx.Tx, in NewAppointment) (*Patient, error) {
	patient, err := findPatient(ctx, tx, in.TenantID, in.Contact)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}

	p := &Patient{
		ID:       uuid.NewString(),
		TenantID: in.TenantID,
		Name:     in.Name,
		Email:    in.Contact.Email,
		Phone:    in.Contact.Phone,
	}
	err = tx.QueryRow(ctx, insertPatient,
		p.ID, p.TenantID, p.Name, nullable(p.Email), nullable(p.Phone), nullable(PhoneDigits(p.Phone)),
	).Scan(&p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent request inserted the same contact first.
		return findPatient(ctx, tx, in.TenantID, in.Contact)
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: insert patient: %w", err)
	}
	return p, nil
}

// ListUpcoming returns the patient's non-cancelled appointments that start
// after now, earliest first.
func (s *PostgresStore) ListUpcoming(ctx context.Context, tenantID, patientID string, now time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, selectUpcoming, tenantID, patientID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("bookings: list upcoming: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: list upcoming rows: %w", err)
	}
	return out, nil
}

// BookedStarts returns start instants of active appointments in [from, to).
func (s *PostgresStore) BookedStarts(ctx context.Context, tenantID string, from, to time.Time) ([]time.Time, error) {
	rows, err := s.db.Query(ctx, selectBookedStarts, tenantID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("bookings: booked starts: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var start time.Time
		if err := rows.Scan(&start); err != nil {
			return nil, fmt.Errorf("bookings: scan booked start: %w", err)
		}
		out = append(out, start)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: booked starts rows: %w", err)
	}
	return out, nil
}

// Cancel marks the appointment cancelled if it still starts at or after cutoff.
// ErrConcurrentChange means another request moved or cancelled it first.
func (s *PostgresStore) Cancel(ctx context.Context, tenantID, appointmentID string, cutoff time.Time) (*Appointment, error) {
	appt, err := scanAppointment(s.db.QueryRow(ctx, cancelAppointment, tenantID, appointmentID, cutoff.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConcurrentChange
	}
	return appt, err
}

// Reschedule moves the appointment if it still starts at or after cutoff.
func (s *PostgresStore) Reschedule(ctx context.Context, tenantID, appointmentID string, start, end time.Time, localDay string, cutoff time.Time) (*Appointment, error) {
	appt, err := scanAppointment(s.db.QueryRow(ctx, rescheduleAppointment,
		tenantID, appointmentID, start.UTC(), end.UTC(), localDay, cutoff.UTC(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConcurrentChange
	}
	if err != nil {
		return nil, mapUniqueViolation(err, "reschedule")
	}
	return appt, nil
}

// scanAppointment passes pgx.ErrNoRows through unwrapped so callers can
// decide what a missing row means.
func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.PatientID, &a.Start, &a.End, &a.LocalDay, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("bookings: scan appointment: %w", err)
	}
	a.Status = Status(status)
	return &a, nil
}

func mapUniqueViolation(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case constraintPatientDay:
			return ErrSameDayConflict
		case constraintTenantStart:
			return ErrSlotTaken
		}
	}
	return fmt.Errorf("bookings: %s: %w", op, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
