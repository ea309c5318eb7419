// Package tenant resolves the workspace a request belongs to.
package tenant

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

type ctxKey string

const (
	Header          = "X-Tenant-ID"
	tenantCtxKey    = ctxKey("tenant")
	DefaultTenantID = "default"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Middleware stores the tenant from the X-Tenant-ID header in the request context.
// A missing header selects fallback; a malformed one is rejected with 400.
func Middleware(fallback string) func(http.Handler) http.Handler {
	if fallback == "" {
		fallback = DefaultTenantID
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(Header))
			if id == "" {
				id = fallback
			}
			if !validID.MatchString(id) {
				http.Error(w, `{"error":"invalid_tenant"}`, http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), id)))
		})
	}
}

func WithTenant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantCtxKey, id)
}

// FromContext returns the request tenant.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantCtxKey).(string)
	return id, ok && id != ""
}
