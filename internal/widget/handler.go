// Package widget serves the public booking widget API. Every route runs
// behind the widget signature middleware and resolves its tenant from the
// verified slug.
package widget

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking-widget/internal/availability"
	"github.com/wolfman30/clinic-booking-widget/internal/bookings"
	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
	"github.com/wolfman30/clinic-booking-widget/internal/conversation"
	"github.com/wolfman30/clinic-booking-widget/internal/notify"
	"github.com/wolfman30/clinic-booking-widget/internal/tenancy"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

//go:embed assets/widget.js
var widgetJS []byte

const (
	maxBodyBytes  = 64 << 10
	maxSlotCount  = 50
	defaultDaysK  = 7
	slotLabelTime = "Monday, January 2 at 3:04 PM"
	notifyTimeout = 2 * time.Second
)

// Engine is the booking surface the widget needs.
type Engine interface {
	Availability(ctx context.Context, tenant *clinic.Tenant, q bookings.AvailabilityQuery) (*bookings.AvailabilityResult, error)
	Create(ctx context.Context, tenant *clinic.Tenant, req bookings.CreateRequest) (*bookings.Booking, error)
	Verify(ctx context.Context, tenant *clinic.Tenant, contact bookings.Contact) (*bookings.VerifyResult, error)
	Modify(ctx context.Context, tenant *clinic.Tenant, req bookings.ModifyRequest) (*bookings.ModifyResult, error)
}

// Config wires a Handler. Counters and Notifier are optional.
type Config struct {
	Directory   clinic.Directory
	Engine      Engine
	Guard       *conversation.Guard
	Counters    conversation.CounterStore
	Notifier    bookings.Notifier
	HorizonDays int
	Now         func() time.Time
	Logger      *logging.Logger
}

// Handler serves /api/widget/{slug}/...
type Handler struct {
	dir         clinic.Directory
	engine      Engine
	guard       *conversation.Guard
	counters    conversation.CounterStore
	notifier    bookings.Notifier
	horizonDays int
	now         func() time.Time
	validate    *validator.Validate
	logger      *logging.Logger
}

// NewHandler panics when the directory, engine or guard is missing.
func NewHandler(cfg Config) *Handler {
	if cfg.Directory == nil || cfg.Engine == nil || cfg.Guard == nil {
		panic("widget: directory, engine and guard are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = availability.DefaultHorizonDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		dir:         cfg.Directory,
		engine:      cfg.Engine,
		guard:       cfg.Guard,
		counters:    cfg.Counters,
		notifier:    cfg.Notifier,
		horizonDays: cfg.HorizonDays,
		now:         cfg.Now,
		validate:    v,
		logger:      cfg.Logger,
	}
}

// LoadTenant resolves the verified slug to a tenant. It must run after the
// signature middleware.
func (h *Handler) LoadTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug, ok := tenancy.SlugFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusForbidden, "invalid_signature", "This widget is not authorized for this clinic.")
			return
		}
		tenant, err := h.dir.TenantBySlug(r.Context(), slug)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithTenant(r.Context(), tenant)))
	})
}

// AppointmentView is an appointment rendered in the tenant's zone.
type AppointmentView struct {
	ID     string `json:"id"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Label  string `json:"label"`
	Status string `json:"status"`
}

func viewOf(appt bookings.Appointment, loc *time.Location) AppointmentView {
	return AppointmentView{
		ID:     appt.ID,
		Start:  appt.Start.In(loc).Format(time.RFC3339),
		End:    appt.End.In(loc).Format(time.RFC3339),
		Label:  appt.Start.In(loc).Format(slotLabelTime),
		Status: string(appt.Status),
	}
}

// GetAvailability handles GET /availability.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	tenant := mustTenant(r)
	q := r.URL.Query()
	query := bookings.AvailabilityQuery{
		LocationID: strings.TrimSpace(q.Get("location_id")),
		AgentID:    strings.TrimSpace(q.Get("agent_id")),
	}

	switch {
	case q.Get("date") != "":
		date, err := availability.ParseDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must look like 2025-06-09.")
			return
		}
		query.Date = &date
	case q.Get("mode") == "days":
		days := defaultDaysK
		if raw := q.Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > h.horizonDays {
				writeError(w, http.StatusBadRequest, "invalid_days", fmt.Sprintf("days must be between 1 and %d.", h.horizonDays))
				return
			}
			days = n
		}
		query.Days = days
	case q.Get("count") != "":
		n, err := strconv.Atoi(q.Get("count"))
		if err != nil || n < 1 || n > maxSlotCount {
			writeError(w, http.StatusBadRequest, "invalid_count", fmt.Sprintf("count must be between 1 and %d.", maxSlotCount))
			return
		}
		query.Count = n
	}

	if err := checkScopeIDs(query.LocationID, query.AgentID); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.engine.Availability(r.Context(), tenant, query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if query.Days > 0 {
		days := res.Days
		if days == nil {
			days = []availability.Day{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"days": days})
		return
	}
	slots := res.Slots
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// CreateBookingRequest is the body of POST /bookings.
type CreateBookingRequest struct {
	Name       string    `json:"name" validate:"required,max=120"`
	Email      string    `json:"email" validate:"required_without=Phone,max=254"`
	Phone      string    `json:"phone" validate:"required_without=Email,max=32"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	LocationID string    `json:"location_id" validate:"omitempty,max=64"`
	AgentID    string    `json:"agent_id" validate:"omitempty,max=64"`
}

// CreateBooking handles POST /bookings.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	tenant := mustTenant(r)
	var req CreateBookingRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := checkScopeIDs(req.LocationID, req.AgentID); err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.engine.Create(r.Context(), tenant, bookings.CreateRequest{
		Name:       req.Name,
		Contact:    bookings.Contact{Email: req.Email, Phone: req.Phone},
		Start:      req.Start,
		End:        req.End,
		LocationID: req.LocationID,
		AgentID:    req.AgentID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view := viewOf(booking.Appointment, tenant.Location())
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":          true,
		"message":     "You're booked for " + view.Label + ".",
		"appointment": view,
	})
}

// ContactRequest is the body of POST /bookings/verify.
type ContactRequest struct {
	Email string `json:"email" validate:"required_without=Phone,max=254"`
	Phone string `json:"phone" validate:"required_without=Email,max=32"`
}

// VerifyPatient handles POST /bookings/verify.
func (h *Handler) VerifyPatient(w http.ResponseWriter, r *http.Request) {
	tenant := mustTenant(r)
	var req ContactRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.Verify(r.Context(), tenant, bookings.Contact{Email: req.Email, Phone: req.Phone})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !res.Found {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "message": patientNotFoundMessage})
		return
	}
	loc := tenant.Location()
	views := make([]AppointmentView, 0, len(res.Appointments))
	for _, appt := range res.Appointments {
		views = append(views, viewOf(appt, loc))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"patient_name": res.PatientName,
		"appointments": views,
	})
}

// ModifyBookingRequest is the body of POST /bookings/modify.
type ModifyBookingRequest struct {
	Email      string    `json:"email" validate:"required_without=Phone,max=254"`
	Phone      string    `json:"phone" validate:"required_without=Email,max=32"`
	Action     string    `json:"action" validate:"required,oneof=modify cancel"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	LocationID string    `json:"location_id" validate:"omitempty,max=64"`
	AgentID    string    `json:"agent_id" validate:"omitempty,max=64"`
}

// ModifyBooking handles POST /bookings/modify.
func (h *Handler) ModifyBooking(w http.ResponseWriter, r *http.Request) {
	tenant := mustTenant(r)
	var req ModifyBookingRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := checkScopeIDs(req.LocationID, req.AgentID); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.engine.Modify(r.Context(), tenant, bookings.ModifyRequest{
		Contact:    bookings.Contact{Email: req.Email, Phone: req.Phone},
		Action:     bookings.Action(req.Action),
		Start:      req.Start,
		End:        req.End,
		LocationID: req.LocationID,
		AgentID:    req.AgentID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view := viewOf(res.Appointment, tenant.Location())
	message := "Your appointment on " + viewOf(res.Previous, tenant.Location()).Label + " has been cancelled."
	if res.Action == bookings.ActionModify {
		message = "Your appointment has been moved to " + view.Label + "."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"message":     message,
		"appointment": view,
	})
}

// ScreenRequest is the body of POST /chat/screen.
type ScreenRequest struct {
	Message               string                 `json:"message" validate:"max=4000"`
	History               []conversation.Message `json:"history" validate:"max=200,dive"`
	FailedUnclearAttempts int                    `json:"failed_unclear_attempts"`
	ConversationID        string                 `json:"conversation_id" validate:"omitempty,max=128"`
}

// ScreenMessage handles POST /chat/screen. The guard verdict is always a 200;
// only a malformed body is an error.
func (h *Handler) ScreenMessage(w http.ResponseWriter, r *http.Request) {
	tenant := mustTenant(r)
	var req ScreenRequest
	if !h.decode(w, r, &req) {
		return
	}

	res := h.guard.ScreenSession(r.Context(), h.counters, tenant.ID, req.ConversationID, conversation.Turn{
		Message:               req.Message,
		History:               req.History,
		FailedUnclearAttempts: req.FailedUnclearAttempts,
	})
	if res.Handoff {
		h.handoff(r.Context(), tenant, req.ConversationID, req.Message, res.Escalation)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handoff(ctx context.Context, tenant *clinic.Tenant, conversationID, message string, reason conversation.EscalationType) {
	if h.notifier == nil {
		return
	}
	evt := notify.NewTenantEvent(notify.KindHandoff, tenant, h.now())
	safe, _ := conversation.RedactForStaff(message)
	evt.Note = fmt.Sprintf("Chat escalation (%s): %s", reason, safe)
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := h.notifier.Notify(notifyCtx, evt); err != nil {
		h.logger.Warn("handoff notification failed",
			"error", err,
			"tenant_id", tenant.ID,
			"conversation_id", conversationID,
		)
	}
}

// WidgetJS serves the embeddable loader script.
func (h *Handler) WidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(widgetJS)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON.")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Request is invalid."
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required_without":
		return "Please provide an email address or phone number."
	case "required":
		return fe.Field() + " is required."
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param() + "."
	case "max":
		return fe.Field() + " is too long."
	default:
		return fe.Field() + " is invalid."
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classify(err)
	if apiErr.status >= http.StatusInternalServerError {
		slug, _ := tenancy.SlugFromContext(r.Context())
		h.logger.Error("widget request failed",
			"error", err,
			"tenant_slug", slug,
			"path", r.URL.Path,
		)
	}
	writeError(w, apiErr.status, apiErr.code, apiErr.message)
}

// checkScopeIDs rejects ids that cannot name a row, so they surface as not
// found instead of a database cast error.
func checkScopeIDs(locationID, agentID string) error {
	if locationID != "" {
		if _, err := uuid.Parse(locationID); err != nil {
			return clinic.ErrLocationNotFound
		}
	}
	if agentID != "" {
		if _, err := uuid.Parse(agentID); err != nil {
			return clinic.ErrAgentNotFound
		}
	}
	return nil
}

func mustTenant(r *http.Request) *clinic.Tenant {
	tenant, ok := tenancy.TenantFromContext(r.Context())
	if !ok {
		panic("widget: handler mounted without LoadTenant")
	}
	return tenant
}
