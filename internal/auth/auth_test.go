package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
)

// ---------------------------------------------------------------------------
// JWT
// ---------------------------------------------------------------------------

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	actor := domain.Actor{ID: "dir-1", Type: domain.ActorDirector, SchoolID: "school-1"}

	token, expires, err := m.Generate(actor)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTManager("a", time.Hour).Generate(domain.Actor{ID: "admin", Type: domain.ActorAdmin})
	require.NoError(t, err)

	_, err = NewJWTManager("b", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	token, _, err := m.Generate(domain.Actor{ID: "admin", Type: domain.ActorAdmin})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsSystemRole(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, _, err := m.Generate(domain.SystemActor)
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// ---------------------------------------------------------------------------
// Passwords
// ---------------------------------------------------------------------------

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("s3cret!")
	require.NoError(t, err)

	assert.True(t, h.Verify("s3cret!", hash))
	assert.False(t, h.Verify("wrong", hash))
	assert.False(t, h.Verify("s3cret!", ""))
}

func TestGenerateSchoolPassword(t *testing.T) {
	p, err := GenerateSchoolPassword()
	require.NoError(t, err)

	assert.Len(t, p, SchoolPasswordLength)
	for _, r := range p {
		assert.Contains(t, schoolPasswordAlphabet, string(r))
	}
}

func TestNormalizeSchoolPassword(t *testing.T) {
	p, err := NormalizeSchoolPassword("  ataturk2026 ")
	require.NoError(t, err)
	assert.Equal(t, "ATATURK2026", p)

	_, err = NormalizeSchoolPassword("   ")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Redis limiter
// ---------------------------------------------------------------------------

func setupLimiter(t *testing.T, cfg LimiterConfig) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, cfg), mr
}

func TestRedisLimiter_BlocksAfterThreshold(t *testing.T) {
	l, _ := setupLimiter(t, LimiterConfig{MaxFailures: 3, Window: time.Minute, Block: 10 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.RecordFailure(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := l.RecordFailure(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), d.BlockedUntil, 5*time.Second)

	d, err = l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = l.Check(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_BlockExpires(t *testing.T) {
	l, mr := setupLimiter(t, LimiterConfig{MaxFailures: 1, Window: time.Minute, Block: time.Minute})
	ctx := context.Background()

	_, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	d, err := l.Check(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_WindowResetsCounter(t *testing.T) {
	l, mr := setupLimiter(t, LimiterConfig{MaxFailures: 2, Window: time.Minute, Block: time.Hour})
	ctx := context.Background()

	_, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	d, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_Reset(t *testing.T) {
	l, mr := setupLimiter(t, LimiterConfig{MaxFailures: 1, Window: time.Minute, Block: time.Hour})
	ctx := context.Background()

	_, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	require.NoError(t, l.Reset(ctx, "ip"))

	assert.False(t, mr.Exists(blockKeyPrefix+"ip"))
	d, err := l.Check(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
