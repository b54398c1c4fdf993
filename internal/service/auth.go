package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/audit"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/auth"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

// AdminCredentials is the single administrator account configured for the
// deployment.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

// Session is a signed login token and the actor it stands for.
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Actor     domain.Actor   `json:"actor"`
	School    *SchoolSummary `json:"school,omitempty"`
}

// SchoolSummary is the part of a school shown to a signed-in parent or
// director.
type SchoolSummary struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	DeliveryType domain.DeliveryType `json:"deliveryType"`
}

// AuthService signs in administrators, directors and parents.
type AuthService struct {
	store   repository.Store
	tokens  *auth.JWTManager
	hasher  *auth.Hasher
	limiter auth.LoginLimiter
	admin   AdminCredentials
	audit   *audit.Logger
	logger  *slog.Logger
}

// NewAuthService creates a new auth service. A nil limiter disables parent
// lockouts.
func NewAuthService(
	store repository.Store,
	tokens *auth.JWTManager,
	hasher *auth.Hasher,
	limiter auth.LoginLimiter,
	admin AdminCredentials,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if limiter == nil {
		limiter = auth.NoLimit{}
	}
	return &AuthService{
		store:   store,
		tokens:  tokens,
		hasher:  hasher,
		limiter: limiter,
		admin:   admin,
		audit:   auditLog,
		logger:  logger,
	}
}

func badCredentials() error {
	return apperrors.Unauthorized("invalid email or password")
}

// AdminLogin checks the configured administrator credentials.
func (s *AuthService) AdminLogin(ctx context.Context, email, password, clientIP string) (*Session, error) {
	if s.admin.Email == "" || s.admin.PasswordHash == "" {
		return nil, apperrors.ServiceUnavailable("administrator login is not configured")
	}
	if !strings.EqualFold(strings.TrimSpace(email), s.admin.Email) || !s.hasher.Verify(password, s.admin.PasswordHash) {
		s.logFailure(ctx, domain.ActorAdmin, clientIP)
		return nil, badCredentials()
	}
	return s.issue(ctx, domain.Actor{ID: "admin", Type: domain.ActorAdmin}, nil, clientIP)
}

// DirectorLogin signs in the director of an active school.
func (s *AuthService) DirectorLogin(ctx context.Context, email, password, clientIP string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, badCredentials()
	}

	school, err := s.store.Schools().GetByDirectorEmail(ctx, email)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("find director: %w", err)
	}
	if school == nil || !school.IsActive || !s.hasher.Verify(password, school.DirectorPasswordHash) {
		s.logFailure(ctx, domain.ActorDirector, clientIP)
		return nil, badCredentials()
	}

	actor := domain.Actor{ID: "director-" + school.ID, Type: domain.ActorDirector, SchoolID: school.ID}
	return s.issue(ctx, actor, school, clientIP)
}

// VerifySchoolPassword opens a parent session for the active school using
// password. Repeated failures from one client IP block it for a while; the
// block end is reported in the error details.
func (s *AuthService) VerifySchoolPassword(ctx context.Context, password, clientIP string) (*Session, error) {
	key := clientIP
	if key == "" {
		key = "unknown"
	}

	decision, err := s.limiter.Check(ctx, key)
	if err != nil {
		s.limiterUnavailable(ctx, err)
	} else if !decision.Allowed {
		return nil, blocked(decision)
	}

	normalized, err := auth.NormalizeSchoolPassword(password)
	if err != nil {
		return nil, apperrors.InvalidInput("password is required")
	}

	school, err := s.store.Schools().GetActiveByPassword(ctx, normalized)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("find school by password: %w", err)
		}
		s.logFailure(ctx, domain.ActorParent, clientIP)
		decision, lerr := s.limiter.RecordFailure(ctx, key)
		if lerr != nil {
			s.limiterUnavailable(ctx, lerr)
		} else if !decision.Allowed {
			return nil, blocked(decision)
		}
		return nil, apperrors.Unauthorized("invalid school password")
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.limiterUnavailable(ctx, err)
	}

	actor := domain.Actor{ID: "parent-" + uuid.New().String(), Type: domain.ActorParent, SchoolID: school.ID}
	return s.issue(ctx, actor, school, clientIP)
}

// Authenticate validates a session token and returns its actor.
func (s *AuthService) Authenticate(token string) (domain.Actor, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return domain.Actor{}, apperrors.Unauthorized("invalid or expired session")
	}
	return claims.Actor(), nil
}

func (s *AuthService) issue(ctx context.Context, actor domain.Actor, school *domain.School, clientIP string) (*Session, error) {
	token, expires, err := s.tokens.Generate(actor)
	if err != nil {
		return nil, err
	}

	s.audit.RecordBestEffort(ctx, s.store.Logs(), actor, audit.Entry{
		Action:   domain.ActionLogin,
		Entity:   loginEntity(actor),
		EntityID: loginEntityID(actor),
		Details:  &domain.LoginDetails{Role: actor.Type, ClientIP: clientIP},
	})

	sess := &Session{Token: token, ExpiresAt: expires, Actor: actor}
	if school != nil {
		sess.School = &SchoolSummary{ID: school.ID, Name: school.Name, DeliveryType: school.DeliveryType}
	}
	return sess, nil
}

func loginEntity(actor domain.Actor) string {
	if actor.SchoolID != "" {
		return domain.EntitySchool
	}
	return domain.EntityAdmin
}

func loginEntityID(actor domain.Actor) string {
	if actor.SchoolID != "" {
		return actor.SchoolID
	}
	return actor.ID
}

func (s *AuthService) logFailure(ctx context.Context, role domain.ActorType, clientIP string) {
	logger.WithContext(ctx, s.logger).WarnContext(ctx, "login failed",
		slog.String("role", string(role)),
		slog.String("client_ip", clientIP),
	)
}

func (s *AuthService) limiterUnavailable(ctx context.Context, err error) {
	logger.WithContext(ctx, s.logger).ErrorContext(ctx, "login limiter unavailable",
		slog.String("error", err.Error()),
	)
}

func blocked(d auth.Decision) error {
	return apperrors.TooManyRequests("too many failed attempts, try again later").
		WithDetail("blockedUntil", d.BlockedUntil.UTC().Format(time.RFC3339))
}
