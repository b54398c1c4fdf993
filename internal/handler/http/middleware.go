package http

import (
	"net/http"
	"strings"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/auth"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/middleware"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "okul_session"

// ContentTypeJSON enforces that write requests with a body have
// Content-Type: application/json. Bodyless actions such as logout pass.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		write := r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch
		if write && r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// TokenValidator adapts the JWT manager to the auth middleware.
func TokenValidator(tokens *auth.JWTManager) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		c, err := tokens.Validate(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{Subject: c.Subject, Role: string(c.Role), SchoolID: c.SchoolID}, nil
	}
}

// actorFrom returns the session actor stored by the auth middleware.
func actorFrom(r *http.Request) (domain.Actor, error) {
	c, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return domain.Actor{}, apperrors.Unauthorized("authentication required")
	}
	return domain.Actor{ID: c.Subject, Type: domain.ActorType(c.Role), SchoolID: c.SchoolID}, nil
}
