package middleware

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/rpattn/salesingest/internal/auth"
	"github.com/rpattn/salesingest/internal/domain"
	"github.com/rpattn/salesingest/internal/repository"
)

// TenantMiddleware resolves the request tenant, blocks suspended tenants and
// attaches the tenant scope to the request context.
func TenantMiddleware(tenants repository.TenantRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := auth.TenantIDFromRequest(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
				return
			}

			tenant, err := tenants.GetByID(r.Context(), tenantID)
			switch {
			case errors.Is(err, domain.ErrTenantNotFound):
				writeError(w, http.StatusNotFound, "Company not found", tenantID.String())
				return
			case err != nil:
				log.Printf("[HTTP] failed to load tenant %s: %v", tenantID, err)
				writeError(w, http.StatusInternalServerError, "Internal server error", "")
				return
			case !tenant.Active:
				writeError(w, http.StatusForbidden, "Company is suspended. Uploads are blocked.", domain.ErrTenantInactive.Error())
				return
			}

			ctx := auth.ContextWithTenantID(r.Context(), tenant.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{"error": message, "details": details})
}
