package sequence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository/memory"
)

type stubSource struct {
	last   string
	err    error
	prefix string
}

func (s *stubSource) MaxWithPrefix(_ context.Context, _ domain.NumberField, prefix string) (string, error) {
	s.prefix = prefix
	return s.last, s.err
}

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, 3, 15, 12, 0, 0, 0, time.UTC) }
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheme_Format(t *testing.T) {
	assert.Equal(t, "ORD-2026-00001", OrderNumber.Format(2026, 1))
	assert.Equal(t, "INV-2026-000042", InvoiceNumber.Format(2026, 42))
	assert.Equal(t, "TT-2026-00007", DeliveryDocument.Format(2026, 7))
}

func TestNext_StartsAtOne(t *testing.T) {
	src := &stubSource{}
	g := NewGenerator(discard(), WithClock(fixedClock(2026)))

	got, err := g.Next(context.Background(), src, OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00001", got)
	assert.Equal(t, "ORD-2026-", src.prefix)
}

func TestNext_IncrementsLast(t *testing.T) {
	g := NewGenerator(discard(), WithClock(fixedClock(2026)))

	got, err := g.Next(context.Background(), &stubSource{last: "INV-2026-000041"}, InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000042", got)
}

func TestNext_OutgrowsPadding(t *testing.T) {
	g := NewGenerator(discard(), WithClock(fixedClock(2026)))

	got, err := g.Next(context.Background(), &stubSource{last: "ORD-2026-99999"}, OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-100000", got)
}

func TestNext_ResetsEachYear(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	for i, number := range []string{"ORD-2025-00041", "ORD-2025-00042"} {
		require.NoError(t, store.Orders().Create(ctx, &domain.Order{
			ID: string(rune('a' + i)), OrderNumber: number, Status: domain.StatusCancelled,
		}))
	}

	g2025 := NewGenerator(discard(), WithClock(fixedClock(2025)))
	got, err := g2025.Next(ctx, store.Orders(), OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2025-00043", got)

	g2026 := NewGenerator(discard(), WithClock(fixedClock(2026)))
	got, err = g2026.Next(ctx, store.Orders(), OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00001", got)
}

func TestNext_MonotonicOverPersistedNumbers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	g := NewGenerator(discard(), WithClock(fixedClock(2026)))

	var prev string
	for i := 0; i < 12; i++ {
		number, err := g.Next(ctx, store.Orders(), OrderNumber)
		require.NoError(t, err)
		if prev != "" {
			assert.Greater(t, number, prev)
		}
		require.NoError(t, store.Orders().Create(ctx, &domain.Order{
			ID: number, OrderNumber: number, Status: domain.StatusCancelled,
		}))
		prev = number
	}
	assert.Equal(t, "ORD-2026-00012", prev)
}

func TestNext_SourceErrorWithoutFallback(t *testing.T) {
	g := NewGenerator(discard(), WithClock(fixedClock(2026)))

	_, err := g.Next(context.Background(), &stubSource{err: errors.New("db down")}, OrderNumber)
	assert.Error(t, err)
}

func TestNext_FallbackIsOutsideRegularSeries(t *testing.T) {
	g := NewGenerator(discard(), WithClock(fixedClock(2026)), WithFallback(true))

	got, err := g.Next(context.Background(), &stubSource{err: errors.New("db down")}, OrderNumber)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "ORD-2026-T"))
}

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultAttempts, func() error {
		calls++
		if calls < 3 {
			return repository.ErrDuplicateNumber
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, func() error {
		calls++
		return repository.ErrDuplicateNumber
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateNumber)
	assert.Equal(t, 2, calls)
}

func TestRetry_PassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), DefaultAttempts, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
