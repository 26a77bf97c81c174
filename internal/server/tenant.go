package server

import (
	"context"
	"net/http"
)

type tenantContextKey struct{}

// DefaultTenantID is used when no X-Tenant-ID header is present, so a
// single-tenant deployment works without any header plumbing.
const DefaultTenantID = "default"

// TenantMiddleware resolves the tenant from the X-Tenant-ID header and
// injects it into the request context. Identity verification happens at
// the gateway in front of this service; here the header is trusted.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-ID")
		if tenantID == "" {
			tenantID = DefaultTenantID
		}
		ctx := context.WithValue(r.Context(), tenantContextKey{}, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTenantID retrieves the tenant ID from context, falling back to the
// default tenant when the middleware is not present.
func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantContextKey{}).(string); ok && tenantID != "" {
		return tenantID
	}
	return DefaultTenantID
}
