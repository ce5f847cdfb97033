package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking-widget/internal/availability"
	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
	"github.com/wolfman30/clinic-booking-widget/internal/notify"
	"github.com/wolfman30/clinic-booking-widget/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

var bookingsTracer = otel.Tracer("widget.internal.bookings")

// DefaultCutoff is the minimum lead time for changing an appointment.
const DefaultCutoff = 2 * time.Hour

// notifyTimeout bounds the enqueue after a committed write.
const notifyTimeout = 2 * time.Second

// Notifier hands booking events to the notification fan-out. Implementations
// must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, evt notify.Event) error
}

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	SlotLength  time.Duration
	HorizonDays int
	Cutoff      time.Duration
	Now         func() time.Time
	Locker      Locker
	Notifier    Notifier
	Metrics     *metrics.WidgetMetrics
	Logger      *logging.Logger
}

// Engine runs availability, create, verify and modify for a tenant.
type Engine struct {
	dir         clinic.Directory
	store       Store
	locker      Locker
	notifier    Notifier
	metrics     *metrics.WidgetMetrics
	logger      *logging.Logger
	slotLength  time.Duration
	horizonDays int
	cutoff      time.Duration
	now         func() time.Time
}

// NewEngine wires the engine to its directory and store.
func NewEngine(dir clinic.Directory, store Store, opts Options) *Engine {
	if dir == nil {
		panic("bookings: directory required")
	}
	if store == nil {
		panic("bookings: store required")
	}
	e := &Engine{
		dir:         dir,
		store:       store,
		locker:      opts.Locker,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		slotLength:  opts.SlotLength,
		horizonDays: opts.HorizonDays,
		cutoff:      opts.Cutoff,
		now:         opts.Now,
	}
	if e.locker == nil {
		e.locker = noopLocker{}
	}
	if e.logger == nil {
		e.logger = logging.Default()
	}
	if e.slotLength <= 0 {
		e.slotLength = availability.DefaultSlotLength
	}
	if e.horizonDays <= 0 {
		e.horizonDays = availability.DefaultHorizonDays
	}
	if e.cutoff <= 0 {
		e.cutoff = DefaultCutoff
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// AvailabilityQuery selects one of three modes: a single Date, the next Days
// open days, or the next Count slots (default 8).
type AvailabilityQuery struct {
	LocationID string
	AgentID    string
	Date       *availability.Date
	Count      int
	Days       int
}

// AvailabilityResult carries Slots or Days depending on the mode.
type AvailabilityResult struct {
	Slots []availability.Slot
	Days  []availability.Day
}

// Availability computes open slots for tenant, optionally narrowed to a
// location or agent. It never checks plan expiry because it has no side
// effects.
func (e *Engine) Availability(ctx context.Context, tenant *clinic.Tenant, q AvailabilityQuery) (*AvailabilityResult, error) {
	ctx, span := e.start(ctx, "bookings.availability", tenant)
	defer span.End()
	started := e.now()

	params, err := e.params(ctx, tenant, q.LocationID, q.AgentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := &AvailabilityResult{}
	switch {
	case q.Date != nil:
		out.Slots = availability.ForDate(params, *q.Date)
	case q.Days > 0:
		out.Days = availability.NextOpenDays(params, q.Days)
	default:
		count := q.Count
		if count <= 0 {
			count = availability.DefaultNextCount
		}
		out.Slots = availability.NextSlots(params, count)
	}
	span.SetAttributes(attribute.Int("widget.slots", len(out.Slots)), attribute.Int("widget.days", len(out.Days)))
	e.metrics.ObserveLatency("availability", e.now().Sub(started))
	return out, nil
}

func (e *Engine) params(ctx context.Context, tenant *clinic.Tenant, locationID, agentID string) (availability.Params, error) {
	hours, err := e.hours(ctx, tenant, locationID, agentID)
	if err != nil {
		return availability.Params{}, err
	}
	now := e.now()
	loc := tenant.Location()
	from := now.In(loc)
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	booked, err := e.store.BookedStarts(ctx, tenant.ID, from, from.AddDate(0, 0, e.horizonDays+1))
	if err != nil {
		return availability.Params{}, err
	}
	return availability.Params{
		Hours:       hours,
		Location:    loc,
		Booked:      booked,
		Now:         now,
		SlotLength:  e.slotLength,
		HorizonDays: e.horizonDays,
	}, nil
}

// hours resolves agent > location > tenant. An agent assigned to a location
// inherits that location's hours when no location is named.
func (e *Engine) hours(ctx context.Context, tenant *clinic.Tenant, locationID, agentID string) (clinic.BusinessHours, error) {
	var (
		location *clinic.Location
		agent    *clinic.Agent
		err      error
	)
	if agentID != "" {
		agent, err = e.dir.Agent(ctx, tenant.ID, agentID)
		if err != nil {
			return clinic.BusinessHours{}, err
		}
		if locationID == "" {
			locationID = agent.LocationID
		}
	}
	if locationID != "" {
		location, err = e.dir.Location(ctx, tenant.ID, locationID)
		if err != nil {
			return clinic.BusinessHours{}, err
		}
	}
	return clinic.EffectiveHours(tenant, location, agent), nil
}

// CreateRequest asks for a new appointment in [Start, End).
type CreateRequest struct {
	Name       string
	Contact    Contact
	Start      time.Time
	End        time.Time
	LocationID string
	AgentID    string
}

// Booking is a created appointment together with the resolved patient.
type Booking struct {
	Appointment Appointment
	Patient     Patient
}

// Create validates the request, books the window and queues notifications.
func (e *Engine) Create(ctx context.Context, tenant *clinic.Tenant, req CreateRequest) (booking *Booking, err error) {
	ctx, span := e.start(ctx, "bookings.create", tenant)
	defer span.End()
	defer e.observe(span, "create", e.now(), &err)

	now := e.now()
	if tenant.PlanExpired(now) {
		return nil, ErrPlanExpired
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	contact, err := req.Contact.Normalize()
	if err != nil {
		return nil, err
	}
	if err := e.checkWindow(ctx, tenant, req.Start, req.End, req.LocationID, req.AgentID); err != nil {
		return nil, err
	}

	localDay := req.Start.In(tenant.Location()).Format("2006-01-02")
	in := NewAppointment{
		TenantID: tenant.ID,
		Name:     name,
		Contact:  contact,
		Start:    req.Start,
		End:      req.End,
		LocalDay: localDay,
	}

	var (
		appt    *Appointment
		patient *Patient
	)
	err = e.locker.WithLock(ctx, bookingLockKey(tenant.ID, contact, localDay), func(ctx context.Context) error {
		var createErr error
		appt, patient, createErr = e.store.CreateAppointment(ctx, in)
		return createErr
	})
	if err != nil {
		if errors.Is(err, errLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	e.logger.Info("appointment created",
		"tenant_id", tenant.ID,
		"patient_id", patient.ID,
		"appointment_id", appt.ID,
		"start", appt.Start,
	)
	e.publish(ctx, tenant, notify.KindBookingCreated, patient, appt)
	return &Booking{Appointment: *appt, Patient: *patient}, nil
}

func (e *Engine) checkWindow(ctx context.Context, tenant *clinic.Tenant, start, end time.Time, locationID, agentID string) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return ErrInvalidWindow
	}
	if !start.After(e.now()) {
		return ErrStartInPast
	}
	hours, err := e.hours(ctx, tenant, locationID, agentID)
	if err != nil {
		return err
	}
	params := availability.Params{Hours: hours, Location: tenant.Location()}
	if !availability.Fits(params, start, end) {
		return ErrOutsideHours
	}
	return nil
}

// VerifyResult reports whether the contact belongs to a known patient.
// Appointments are future, non-cancelled and earliest first.
type VerifyResult struct {
	Found        bool
	PatientName  string
	Appointments []Appointment
}

// Verify looks up the patient behind contact. An unknown contact is a result,
// not an error.
func (e *Engine) Verify(ctx context.Context, tenant *clinic.Tenant, contact Contact) (result *VerifyResult, err error) {
	ctx, span := e.start(ctx, "bookings.verify", tenant)
	defer span.End()
	defer e.observe(span, "verify", e.now(), &err)

	now := e.now()
	if tenant.PlanExpired(now) {
		return nil, ErrPlanExpired
	}
	contact, err = contact.Normalize()
	if err != nil {
		return nil, err
	}
	patient, err := e.store.FindPatient(ctx, tenant.ID, contact)
	if errors.Is(err, ErrPatientNotFound) {
		return &VerifyResult{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	upcoming, err := e.upcoming(ctx, tenant.ID, patient.ID, now)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Found: true, PatientName: patient.Name, Appointments: upcoming}, nil
}

// upcoming lists the patient's future appointments that still hold a slot.
func (e *Engine) upcoming(ctx context.Context, tenantID, patientID string, now time.Time) ([]Appointment, error) {
	appts, err := e.store.ListUpcoming(ctx, tenantID, patientID, now)
	if err != nil {
		return nil, err
	}
	out := appts[:0]
	for _, a := range appts {
		if a.Status.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

// Action is the mutation requested by Modify.
type Action string

const (
	ActionModify Action = "modify"
	ActionCancel Action = "cancel"
)

// ModifyRequest changes the patient's nearest upcoming appointment. Start and
// End are required for ActionModify only.
type ModifyRequest struct {
	Contact    Contact
	Action     Action
	Start      time.Time
	End        time.Time
	LocationID string
	AgentID    string
}

// ModifyResult holds the appointment before and after the change.
type ModifyResult struct {
	Action      Action
	Previous    Appointment
	Appointment Appointment
}

// Modify cancels or reschedules the nearest future appointment. Either action
// is refused when that appointment starts within the cutoff.
func (e *Engine) Modify(ctx context.Context, tenant *clinic.Tenant, req ModifyRequest) (result *ModifyResult, err error) {
	ctx, span := e.start(ctx, "bookings.modify", tenant)
	defer span.End()
	defer e.observe(span, "modify", e.now(), &err)
	span.SetAttributes(attribute.String("widget.action", string(req.Action)))

	now := e.now()
	if tenant.PlanExpired(now) {
		return nil, ErrPlanExpired
	}
	contact, err := req.Contact.Normalize()
	if err != nil {
		return nil, err
	}
	switch req.Action {
	case ActionCancel:
	case ActionModify:
		if req.Start.IsZero() || req.End.IsZero() {
			return nil, ErrInvalidWindow
		}
	default:
		return nil, ErrInvalidAction
	}

	patient, err := e.store.FindPatient(ctx, tenant.ID, contact)
	if err != nil {
		return nil, err
	}
	upcoming, err := e.upcoming(ctx, tenant.ID, patient.ID, now)
	if err != nil {
		return nil, err
	}
	if len(upcoming) == 0 {
		return nil, ErrNoUpcoming
	}
	nearest := upcoming[0]
	if nearest.Start.Sub(now) < e.cutoff {
		return nil, ErrWithinCutoff
	}
	cutoffAt := now.Add(e.cutoff)

	var (
		updated *Appointment
		kind    notify.Kind
	)
	switch req.Action {
	case ActionCancel:
		if !nearest.Status.CanTransition(StatusCancelled) {
			return nil, ErrConcurrentChange
		}
		updated, err = e.store.Cancel(ctx, tenant.ID, nearest.ID, cutoffAt)
		kind = notify.KindBookingCancelled
	case ActionModify:
		if err := e.checkWindow(ctx, tenant, req.Start, req.End, req.LocationID, req.AgentID); err != nil {
			return nil, err
		}
		localDay := req.Start.In(tenant.Location()).Format("2006-01-02")
		updated, err = e.store.Reschedule(ctx, tenant.ID, nearest.ID, req.Start, req.End, localDay, cutoffAt)
		kind = notify.KindBookingModified
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("appointment updated",
		"tenant_id", tenant.ID,
		"patient_id", patient.ID,
		"appointment_id", updated.ID,
		"action", string(req.Action),
	)
	e.publish(ctx, tenant, kind, patient, updated)
	return &ModifyResult{Action: req.Action, Previous: nearest, Appointment: *updated}, nil
}

// publish queues a notification. Failures are logged and never undo the
// booking change that triggered them.
func (e *Engine) publish(ctx context.Context, tenant *clinic.Tenant, kind notify.Kind, patient *Patient, appt *Appointment) {
	if e.notifier == nil {
		return
	}
	evt := notify.NewTenantEvent(kind, tenant, e.now())
	evt.PatientName = patient.Name
	evt.PatientEmail = patient.Email
	evt.PatientPhone = patient.Phone
	evt.AppointmentID = appt.ID
	evt.Start = appt.Start
	evt.End = appt.End
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := e.notifier.Notify(notifyCtx, evt); err != nil {
		e.logger.Warn("notification enqueue failed",
			"error", err,
			"tenant_id", tenant.ID,
			"appointment_id", appt.ID,
			"kind", string(kind),
		)
	}
}

func (e *Engine) start(ctx context.Context, name string, tenant *clinic.Tenant) (context.Context, trace.Span) {
	ctx, span := bookingsTracer.Start(ctx, name)
	if tenant != nil {
		span.SetAttributes(
			attribute.String("widget.tenant_id", tenant.ID),
			attribute.String("widget.tenant_slug", tenant.Slug),
		)
	}
	return ctx, span
}

func (e *Engine) observe(span trace.Span, operation string, started time.Time, errp *error) {
	err := *errp
	if err != nil {
		span.RecordError(err)
	}
	e.metrics.ObserveBooking(operation, Outcome(err))
	e.metrics.ObserveLatency(operation, e.now().Sub(started))
}

// Outcome is a low-cardinality label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPlanExpired):
		return "plan_expired"
	case errors.Is(err, ErrSameDayConflict):
		return "same_day"
	case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrBookingInProgress), errors.Is(err, ErrConcurrentChange):
		return "conflict"
	case errors.Is(err, ErrWithinCutoff):
		return "within_cutoff"
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, clinic.ErrLocationNotFound), errors.Is(err, clinic.ErrAgentNotFound):
		return "not_found"
	case IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}
