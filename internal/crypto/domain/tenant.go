package domain

import "context"

type tenantKey struct{}

// WithTenant returns a context scoped to tenantID. Key resolution uses this
// tenant; the empty tenant is the single-tenant bucket.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFromContext returns the tenant stored by WithTenant, or the empty tenant.
func TenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantKey{}).(string)
	return tenantID
}
