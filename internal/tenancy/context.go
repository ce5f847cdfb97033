// Package tenancy carries the verified widget tenant through a request.
package tenancy

import (
	"context"

	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
)

type ctxKey string

const (
	slugKey   ctxKey = "widget.tenant_slug"
	tenantKey ctxKey = "widget.tenant"
)

// WithSlug stores a slug whose signature has been verified.
func WithSlug(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, slugKey, slug)
}

// SlugFromContext extracts the verified slug if present.
func SlugFromContext(ctx context.Context) (string, bool) {
	slug, ok := ctx.Value(slugKey).(string)
	return slug, ok && slug != ""
}

// WithTenant stores the tenant resolved from the verified slug.
func WithTenant(ctx context.Context, tenant *clinic.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, tenant)
}

// TenantFromContext extracts the resolved tenant if present.
func TenantFromContext(ctx context.Context) (*clinic.Tenant, bool) {
	tenant, ok := ctx.Value(tenantKey).(*clinic.Tenant)
	return tenant, ok && tenant != nil
}
