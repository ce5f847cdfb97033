package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking-widget/internal/tenancy"
	"github.com/wolfman30/clinic-booking-widget/internal/widgetauth"
)

// WidgetSignatureHeader carries the widget token. The sig query parameter is
// accepted for script embeds that cannot set headers.
const WidgetSignatureHeader = "X-Widget-Signature"

// WidgetSignature verifies the token for the {slug} route parameter on every
// request and stores the normalized slug in the request context. It runs
// before any tenant lookup so an unsigned caller learns nothing about which
// slugs exist.
func WidgetSignature(signer *widgetauth.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := chi.URLParam(r, "slug")
			token := strings.TrimSpace(r.Header.Get(WidgetSignatureHeader))
			if token == "" {
				token = strings.TrimSpace(r.URL.Query().Get("sig"))
			}
			if signer == nil || !signer.Verify(slug, token) {
				writeError(w, http.StatusForbidden, "invalid_signature", "This widget is not authorized for this clinic.")
				return
			}
			ctx := tenancy.WithSlug(r.Context(), widgetauth.NormalizeSlug(slug))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
