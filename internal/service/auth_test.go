package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/auth"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

func newAuthService(t *testing.T, env *testEnv, limiter auth.LoginLimiter) *AuthService {
	t.Helper()
	hash, err := env.hasher.Hash("admin-secret")
	require.NoError(t, err)
	return NewAuthService(
		env.store,
		auth.NewJWTManager("test-secret-with-enough-length", time.Hour),
		env.hasher,
		limiter,
		AdminCredentials{Email: "admin@okultedarik.com", PasswordHash: hash},
		env.audit,
		newTestLogger(),
	)
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env, nil)
	ctx := context.Background()

	sess, err := svc.AdminLogin(ctx, " Admin@OkulTedarik.com ", "admin-secret", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, domain.ActorAdmin, sess.Actor.Type)
	assert.Nil(t, sess.School)

	actor, err := svc.Authenticate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.Actor, actor)

	logs := env.logs(t, repository.LogFilter{Action: domain.ActionLogin})
	require.Len(t, logs, 1)
	assert.Equal(t, domain.EntityAdmin, logs[0].Entity)
	assert.Equal(t, "10.0.0.1", logs[0].Details.(*domain.LoginDetails).ClientIP)

	_, err = svc.AdminLogin(ctx, "admin@okultedarik.com", "wrong", "10.0.0.1")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestDirectorLogin(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	svc := newAuthService(t, env, nil)
	ctx := context.Background()

	require.NoError(t, env.catalog.SetDirectorCredentials(ctx, adminActor, c.school.ID, DirectorCredentials{
		Email: "mudur@okul.k12.tr", Password: "mudur-sifre",
	}))

	sess, err := svc.DirectorLogin(ctx, "MUDUR@okul.k12.tr", "mudur-sifre", "")
	require.NoError(t, err)
	assert.Equal(t, domain.ActorDirector, sess.Actor.Type)
	assert.Equal(t, c.school.ID, sess.Actor.SchoolID)
	require.NotNil(t, sess.School)
	assert.Equal(t, c.school.Name, sess.School.Name)

	_, err = svc.DirectorLogin(ctx, "mudur@okul.k12.tr", "yanlis", "")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	_, err = svc.DirectorLogin(ctx, "kimse@okul.k12.tr", "mudur-sifre", "")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	inactive := false
	_, err = env.catalog.UpdateSchool(ctx, adminActor, c.school.ID, SchoolUpdate{IsActive: &inactive})
	require.NoError(t, err)
	_, err = svc.DirectorLogin(ctx, "mudur@okul.k12.tr", "mudur-sifre", "")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestVerifySchoolPassword(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliveryCargo, "1")
	svc := newAuthService(t, env, nil)

	sess, err := svc.VerifySchoolPassword(context.Background(), " pass1 ", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, domain.ActorParent, sess.Actor.Type)
	assert.Equal(t, c.school.ID, sess.Actor.SchoolID)
	assert.Equal(t, domain.DeliveryCargo, sess.School.DeliveryType)

	_, err = svc.VerifySchoolPassword(context.Background(), "", "10.0.0.1")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestVerifySchoolPassword_BlocksAfterFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog(t, domain.DeliverySchool, "1")

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	limiter := auth.NewRedisLimiter(client, auth.LimiterConfig{MaxFailures: 3, Window: time.Minute, Block: 15 * time.Minute})
	svc := newAuthService(t, env, limiter)
	ctx := context.Background()

	for range 2 {
		_, err := svc.VerifySchoolPassword(ctx, "WRONG", "10.0.0.9")
		assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	}

	_, err := svc.VerifySchoolPassword(ctx, "WRONG", "10.0.0.9")
	require.True(t, errors.Is(err, apperrors.ErrTooManyRequests))
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	until, perr := time.Parse(time.RFC3339, appErr.Details["blockedUntil"])
	require.NoError(t, perr)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), until, 5*time.Second)

	_, err = svc.VerifySchoolPassword(ctx, "PASS1", "10.0.0.9")
	assert.True(t, errors.Is(err, apperrors.ErrTooManyRequests))

	_, err = svc.VerifySchoolPassword(ctx, "PASS1", "10.0.0.10")
	require.NoError(t, err)
}

func TestVerifySchoolPassword_SuccessResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog(t, domain.DeliverySchool, "1")

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	limiter := auth.NewRedisLimiter(client, auth.LimiterConfig{MaxFailures: 2, Window: time.Minute, Block: time.Minute})
	svc := newAuthService(t, env, limiter)
	ctx := context.Background()

	_, err := svc.VerifySchoolPassword(ctx, "WRONG", "10.0.0.9")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	_, err = svc.VerifySchoolPassword(ctx, "PASS1", "10.0.0.9")
	require.NoError(t, err)
	_, err = svc.VerifySchoolPassword(ctx, "WRONG", "10.0.0.9")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestVerifySchoolPassword_LimiterDownFailsOpen(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog(t, domain.DeliverySchool, "1")

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	svc := newAuthService(t, env, auth.NewRedisLimiter(client, auth.DefaultLimiterConfig()))
	mr.Close()

	_, err := svc.VerifySchoolPassword(context.Background(), "PASS1", "10.0.0.9")
	require.NoError(t, err)
}

func TestAuthenticate_RejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env, nil)

	_, err := svc.Authenticate("not-a-token")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}
