package waybills

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/BearBump/FreightBox/internal/broker/messages"
	"github.com/BearBump/FreightBox/internal/cache/rediscache"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/storage"
	"github.com/BearBump/FreightBox/internal/storage/memfreight"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestDashboard_ScopedByRole(t *testing.T) {
	store := memfreight.New()
	d := memfreight.SeedDemo(store)
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	svc := New(store, nil, 0, &fakeClock{now: now})

	put := func(status models.WaybillStatus, src, dst uint64, created time.Time) {
		store.PutWaybill(&models.Waybill{Status: status, SrcDepartmentID: src, DstDepartmentID: dst, CreatedAt: created})
	}
	put(models.WaybillStatusCreated, d.BranchA, d.BranchB, now)
	put(models.WaybillStatusCreated, d.BranchA, d.BranchB, now.Add(-24*time.Hour))
	put(models.WaybillStatusArrived, d.BranchA, d.BranchB, now.Add(-48*time.Hour))
	put(models.WaybillStatusCreated, d.BranchB, d.BranchA, now)

	ctx := context.Background()
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertTransportOut(ctx, &models.TransportOut{
			Status: models.TransportOutStatusReady, SrcDepartmentID: d.BranchA, DstDepartmentID: d.GoodsYard,
		}); err != nil {
			return err
		}
		return tx.InsertTransportOut(ctx, &models.TransportOut{
			Status: models.TransportOutStatusOnTheWay, SrcDepartmentID: d.GoodsYard, DstDepartmentID: d.BranchB,
		})
	}))

	branchA := models.NewActor(&models.User{ID: 1, DepartmentID: d.BranchA, DepartmentInBranchGroup: true})
	got, err := svc.Dashboard(ctx, branchA)
	require.NoError(t, err)
	require.Equal(t, Dashboard{CreatedToday: 1, WaitingDeparture: 1}, got)

	branchB := models.NewActor(&models.User{ID: 2, DepartmentID: d.BranchB, DepartmentInBranchGroup: true})
	got, err = svc.Dashboard(ctx, branchB)
	require.NoError(t, err)
	require.Equal(t, Dashboard{CreatedToday: 1, WaitingArrival: 1, WaitingSignFor: 1}, got)

	admin := models.NewActor(&models.User{ID: 3, DepartmentID: d.HQ, Administrator: true})
	got, err = svc.Dashboard(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, Dashboard{CreatedToday: 2, WaitingDeparture: 1, WaitingArrival: 1, WaitingSignFor: 1}, got)
}

func TestApplyRoutedEvent_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store := memfreight.New()
	w := store.PutWaybill(&models.Waybill{Status: models.WaybillStatusCreated, CargoName: "boxes"})
	svc := New(store, rediscache.New(mr.Addr()), time.Minute, nil)
	ctx := context.Background()

	got, err := svc.GetWaybill(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, models.WaybillStatusCreated, got.Status)

	// снимок в кэше устарел, пока не пришло событие
	w.Status = models.WaybillStatusDropped
	store.PutWaybill(w)
	got, err = svc.GetWaybill(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, models.WaybillStatusCreated, got.Status)

	require.NoError(t, svc.ApplyRoutedEvent(ctx, messages.WaybillRouted{WaybillID: w.ID}))
	got, err = svc.GetWaybill(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, models.WaybillStatusDropped, got.Status)
}

func TestForgetWaybills_NextReadGoesToStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store := memfreight.New()
	w := store.PutWaybill(&models.Waybill{Status: models.WaybillStatusSignedFor, CargoPriceStatus: models.CargoPriceStatusNotPaid})
	svc := New(store, rediscache.New(mr.Addr()), time.Minute, nil)
	ctx := context.Background()

	_, err := svc.GetWaybill(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(fmt.Sprintf("waybill:%d:current", w.ID)))

	w.CargoPriceStatus = models.CargoPriceStatusPaid
	store.PutWaybill(w)
	require.NoError(t, svc.ForgetWaybills(ctx, []uint64{w.ID, 9999}))
	require.False(t, mr.Exists(fmt.Sprintf("waybill:%d:current", w.ID)))

	got, err := svc.GetWaybill(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, models.CargoPriceStatusPaid, got.CargoPriceStatus)
}
