package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"vpn-console/devserver/internal/repository"
	"vpn-console/devserver/internal/service"
)

// writeDetail writes the same {"detail": ...} body the API handlers use.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// BearerAuth resolves the Authorization header into a service.Principal.
func BearerAuth(repo repository.Repository, tokens *service.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := ""
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
			if token == "" {
				writeDetail(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			p, err := service.Authenticate(r.Context(), repo, tokens, token)
			if err != nil {
				if service.IsAuth(err) {
					writeDetail(w, http.StatusUnauthorized, err.Error())
					return
				}
				writeDetail(w, http.StatusInternalServerError, "internal error")
				return
			}
			ctx := service.ContextWithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after BearerAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := service.PrincipalFromContext(r.Context())
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !p.IsAdmin() {
			writeDetail(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
