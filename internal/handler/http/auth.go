package http

import (
	"log/slog"
	"net/http"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/httputil"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/middleware"
)

// AuthHandler handles sign-in endpoints.
type AuthHandler struct {
	service      *service.AuthService
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, secureCookie: secureCookie, logger: logger}
}

// --- Request DTOs ---

// LoginRequest is the JSON request body for administrator and director login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifySchoolRequest is the JSON request body for the parent school password.
type VerifySchoolRequest struct {
	Password string `json:"password" validate:"required,notblank"`
}

// --- Handlers ---

// AdminLogin handles POST /api/auth/admin/login
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	sess, err := h.service.AdminLogin(r.Context(), req.Email, req.Password, middleware.ClientIP(r))
	h.respond(w, r, sess, err)
}

// DirectorLogin handles POST /api/auth/director/login
func (h *AuthHandler) DirectorLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	sess, err := h.service.DirectorLogin(r.Context(), req.Email, req.Password, middleware.ClientIP(r))
	h.respond(w, r, sess, err)
}

// VerifySchool handles POST /api/auth/parent/verify
func (h *AuthHandler) VerifySchool(w http.ResponseWriter, r *http.Request) {
	var req VerifySchoolRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	sess, err := h.service.VerifySchoolPassword(r.Context(), req.Password, middleware.ClientIP(r))
	h.respond(w, r, sess, err)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) respond(w http.ResponseWriter, r *http.Request, sess *service.Session, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sess})
}
