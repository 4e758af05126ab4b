package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"auctiondesk.app/internal/access"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withSession requires a valid session token and attaches its principal.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="auctiondesk"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		principal, err := a.access.Authenticate(r.Context(), token)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		ctx := access.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// caller returns the session email. A client-supplied email must name the same
// account; otherwise the request is rejected with 403.
func caller(w http.ResponseWriter, r *http.Request, supplied string) (string, bool) {
	principal, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return "", false
	}
	supplied = strings.TrimSpace(supplied)
	if supplied != "" && supplied != principal.Email {
		writeError(w, r, http.StatusForbidden, "Unauthorized")
		return "", false
	}
	return principal.Email, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
