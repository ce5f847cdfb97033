package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
	"github.com/wolfman30/clinic-booking-widget/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-widget/internal/widgetauth"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

// WidgetTokenHandler issues embed tokens for existing tenants.
type WidgetTokenHandler struct {
	signer  *widgetauth.Signer
	dir     clinic.Directory
	baseURL string
	logger  *logging.Logger
}

// NewWidgetTokenHandler creates the admin token endpoint. baseURL is where
// the API and widget.js are served publicly.
func NewWidgetTokenHandler(signer *widgetauth.Signer, dir clinic.Directory, baseURL string, logger *logging.Logger) *WidgetTokenHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WidgetTokenHandler{
		signer:  signer,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// WidgetTokenRequest is the body of POST /admin/widget/tokens.
type WidgetTokenRequest struct {
	Slug string `json:"slug"`
}

// WidgetTokenResponse carries the token and a ready-to-paste snippet.
type WidgetTokenResponse struct {
	Slug         string `json:"slug"`
	Token        string `json:"token"`
	EmbedSnippet string `json:"embed_snippet"`
}

// Issue handles POST /admin/widget/tokens.
func (h *WidgetTokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req WidgetTokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON.")
		return
	}
	slug := widgetauth.NormalizeSlug(req.Slug)
	if slug == "" {
		jsonError(w, http.StatusBadRequest, "slug_required", "slug is required.")
		return
	}

	tenant, err := h.dir.TenantBySlug(r.Context(), slug)
	if errors.Is(err, clinic.ErrTenantNotFound) {
		jsonError(w, http.StatusNotFound, "tenant_not_found", "No clinic uses that slug.")
		return
	}
	if err != nil {
		h.logger.Error("tenant lookup failed", "error", err, "tenant_slug", slug)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Something went wrong.")
		return
	}

	token, err := h.signer.Issue(tenant.Slug)
	if errors.Is(err, widgetauth.ErrSecretMissing) {
		jsonError(w, http.StatusServiceUnavailable, "signing_disabled", "Widget signing is not configured.")
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_slug", err.Error())
		return
	}

	actor := ""
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok {
		actor = claims.Subject
	}
	h.logger.Info("widget token issued", "tenant_slug", tenant.Slug, "tenant_id", tenant.ID, "actor", actor)

	writeJSON(w, http.StatusOK, WidgetTokenResponse{
		Slug:         tenant.Slug,
		Token:        token,
		EmbedSnippet: h.snippet(tenant.Slug, token),
	})
}

func (h *WidgetTokenHandler) snippet(slug, token string) string {
	return fmt.Sprintf(`<script src="%s/widget.js" data-clinic="%s" data-signature="%s" async></script>`,
		html.EscapeString(h.baseURL), html.EscapeString(slug), html.EscapeString(token))
}
