package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

func TestDirectorDashboard(t *testing.T) {
	env := newTestEnv(t)
	c1 := env.seedCatalog(t, domain.DeliverySchool, "1")
	c2 := env.seedCatalog(t, domain.DeliverySchool, "2")
	reports := NewReportService(env.store, env.orders, env.commissions, newTestLogger())

	env.placeOrder(t, c1, "Ali", domain.StatusPaid)
	env.placeOrder(t, c1, "Veli")
	env.placeOrder(t, c2, "Can", domain.StatusPaid)

	d, err := reports.DirectorDashboard(context.Background(), directorOf(c1))
	require.NoError(t, err)

	assert.Equal(t, c1.school.Name, d.School.Name)
	assert.Equal(t, 2, d.Orders.Total)
	assert.Equal(t, 1, d.Orders.ByStatus[domain.StatusPaid])
	assert.Equal(t, 1, d.Orders.ByStatus[domain.StatusNew])
	assert.Contains(t, d.Orders.ByStatus, domain.StatusRefunded)
	assert.Len(t, d.RecentOrders, 2)
	for _, o := range d.RecentOrders {
		assert.Equal(t, c1.school.ID, o.SchoolID)
	}
	assert.Equal(t, "25.00", d.Commission.TotalCommission.StringFixed(2))

	_, err = reports.DirectorDashboard(context.Background(), adminActor)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestAdminDashboard(t *testing.T) {
	env := newTestEnv(t)
	c1 := env.seedCatalog(t, domain.DeliverySchool, "1")
	c2 := env.seedCatalog(t, domain.DeliverySchool, "2")
	reports := NewReportService(env.store, env.orders, env.commissions, newTestLogger())

	o := env.placeOrder(t, c1, "Ali")
	env.placeOrder(t, c2, "Veli", domain.StatusPaid)
	_, err := env.cancels.RequestCancellation(context.Background(), parentOf(c1), o.ID, "vazgeçtik")
	require.NoError(t, err)

	d, err := reports.AdminDashboard(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Orders.Total)
	assert.Equal(t, 2, d.ActiveSchools)
	assert.Equal(t, 1, d.PendingCancelRequests)
	assert.Len(t, d.RecentOrders, 2)

	_, err = reports.AdminDashboard(context.Background(), directorOf(c1))
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestListLogs(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	reports := NewReportService(env.store, env.orders, env.commissions, newTestLogger())
	env.placeOrder(t, c, "Ali", domain.StatusPaid)

	logs, total, err := reports.ListLogs(context.Background(), adminActor, repository.LogFilter{Entity: domain.EntityOrder})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.ActionStatusChange, logs[0].Action)
	assert.Equal(t, domain.ActionCreate, logs[1].Action)

	_, _, err = reports.ListLogs(context.Background(), directorOf(c), repository.LogFilter{})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}
