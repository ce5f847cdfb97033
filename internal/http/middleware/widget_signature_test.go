package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking-widget/internal/tenancy"
	"github.com/wolfman30/clinic-booking-widget/internal/widgetauth"
)

func signedRouter(signer *widgetauth.Signer, gotSlug *string) http.Handler {
	r := chi.NewRouter()
	r.With(WidgetSignature(signer)).Get("/api/widget/{slug}/availability", func(w http.ResponseWriter, r *http.Request) {
		*gotSlug, _ = tenancy.SlugFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestWidgetSignature(t *testing.T) {
	signer := widgetauth.NewSigner("s3cret")
	token, err := signer.Issue("glow")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other, _ := signer.Issue("other")
	tampered := token[:len(token)-1] + "0"
	if tampered == token {
		tampered = token[:len(token)-1] + "1"
	}

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantSlug string
	}{
		{name: "header", path: "/api/widget/glow/availability", header: token, wantCode: http.StatusOK, wantSlug: "glow"},
		{name: "query", path: "/api/widget/glow/availability?sig=" + token, wantCode: http.StatusOK, wantSlug: "glow"},
		{name: "slug case folds", path: "/api/widget/GLOW/availability", header: token, wantCode: http.StatusOK, wantSlug: "glow"},
		{name: "missing", path: "/api/widget/glow/availability", wantCode: http.StatusForbidden},
		{name: "other tenant token", path: "/api/widget/glow/availability", header: other, wantCode: http.StatusForbidden},
		{name: "tampered", path: "/api/widget/glow/availability", header: tampered, wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSlug string
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(WidgetSignatureHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			signedRouter(signer, &gotSlug).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if gotSlug != tt.wantSlug {
				t.Fatalf("expected slug %q, got %q", tt.wantSlug, gotSlug)
			}
		})
	}
}

func TestWidgetSignatureWithoutSecret(t *testing.T) {
	var gotSlug string
	req := httptest.NewRequest(http.MethodGet, "/api/widget/glow/availability", nil)
	req.Header.Set(WidgetSignatureHeader, "anything")
	rec := httptest.NewRecorder()
	signedRouter(widgetauth.NewSigner(""), &gotSlug).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
