package actions

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/broker/messages"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/services/access"
	"github.com/BearBump/FreightBox/internal/storage/memfreight"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	actionsmocks "github.com/BearBump/FreightBox/internal/services/actions/mocks"
)

const topic = "waybill.routed"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type harness struct {
	t     *testing.T
	store *memfreight.Store
	demo  memfreight.Demo
	clock *fakeClock
	pub   *actionsmocks.MockPublisher
	exec  *Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memfreight.New()
	demo := memfreight.SeedDemo(store)
	clk := &fakeClock{now: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)}
	pub := &actionsmocks.MockPublisher{}
	pub.On("Publish", mock.Anything, topic, mock.Anything, mock.Anything).Return(nil).Maybe()
	resolver := access.NewResolver(store, access.DefaultUserTTL, access.DefaultSettingsTTL, clk)
	return &harness{
		t:     t,
		store: store,
		demo:  demo,
		clock: clk,
		pub:   pub,
		exec:  NewExecutor(store, resolver, pub, topic, clk),
	}
}

func (h *harness) run(user uint64, op Operation) (Result, error) {
	return h.exec.Run(context.Background(), models.Principal{ID: user}, op)
}

func (h *harness) mustRun(user uint64, op Operation) Result {
	h.t.Helper()
	res, err := h.run(user, op)
	require.NoError(h.t, err)
	return res
}

func (h *harness) waybill(id uint64) *models.Waybill {
	h.t.Helper()
	ws, err := h.store.GetWaybillsByIDs(context.Background(), []uint64{id})
	require.NoError(h.t, err)
	require.Len(h.t, ws, 1)
	return ws[0]
}

// fixture stores a waybill from branch A to branch B in the given status.
func (h *harness) fixture(status models.WaybillStatus, mutate ...func(w *models.Waybill)) *models.Waybill {
	vip := h.demo.VIPCustomer
	w := &models.Waybill{
		Status:           status,
		SrcDepartmentID:  h.demo.BranchA,
		DstDepartmentID:  h.demo.BranchB,
		SrcCustomerID:    &vip,
		SrcCustomerName:  "VIP sender",
		SrcCustomerPhone: "100",
		DstCustomerName:  "bob",
		DstCustomerPhone: "200",
		CargoName:        "boxes",
		CargoNum:         1,
		CargoVolume:      1,
		CargoWeight:      1,
		CargoPrice:       1000,
		CargoHandlingFee: 2,
		CargoPriceStatus: models.CargoPriceStatusNotPaid,
		Fee:              50,
		FeeType:          models.FeeTypeNow,
		CreatedAt:        h.clock.now,
	}
	for _, m := range mutate {
		m(w)
	}
	return h.store.PutWaybill(w)
}

func (h *harness) input() models.WaybillInput {
	vip := h.demo.VIPCustomer
	return models.WaybillInput{
		DstDepartmentID:  h.demo.BranchB,
		SrcCustomerID:    &vip,
		SrcCustomerName:  "VIP sender",
		SrcCustomerPhone: "100",
		DstCustomerName:  "bob",
		DstCustomerPhone: "200",
		CargoName:        "boxes",
		CargoNum:         2,
		CargoVolume:      0.5,
		CargoWeight:      10,
		CargoPrice:       1000,
		Fee:              50,
		FeeType:          models.FeeTypeNow,
	}
}

func requireKind(t *testing.T, want apperr.Kind, err error) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, apperr.KindOf(err), err.Error())
	e, _ := apperr.As(err)
	return e
}

func TestCreateWaybill(t *testing.T) {
	h := newHarness(t)

	res := h.mustRun(h.demo.BranchAUser, &CreateWaybill{Input: h.input()})
	require.Equal(t, "Operation successful", res.Message)
	id := res.Extra["waybill_id"].(uint64)
	require.Equal(t, h.waybill(id).FullID(), res.Extra["waybill_full_id"])

	w := h.waybill(id)
	require.Equal(t, models.WaybillStatusCreated, w.Status)
	require.Equal(t, h.demo.BranchA, w.SrcDepartmentID)
	require.Equal(t, int64(2), w.CargoHandlingFee)
	require.Equal(t, models.CargoPriceStatusNotPaid, w.CargoPriceStatus)

	routings, err := h.store.ListWaybillRoutings(context.Background(), id, 0, 0)
	require.NoError(t, err)
	require.Len(t, routings, 1)
	require.Equal(t, models.WaybillStatusCreated, routings[0].OperationType)
	require.Equal(t, h.demo.BranchAUser, routings[0].UserID)

	h.pub.AssertCalled(t, "Publish", mock.Anything, topic, messages.WaybillRouted{WaybillID: id}.Key(), mock.Anything)
}

func TestCreateWaybill_Rules(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name   string
		user   uint64
		mutate func(in *models.WaybillInput)
		kind   apperr.Kind
	}{
		{"missing cargo name", h.demo.BranchAUser, func(in *models.WaybillInput) { in.CargoName = " " }, apperr.KindMalformedInput},
		{"fee below minimum", h.demo.BranchAUser, func(in *models.WaybillInput) { in.Fee = 0 }, apperr.KindMalformedInput},
		{"too light", h.demo.BranchAUser, func(in *models.WaybillInput) { in.CargoWeight = 0.05 }, apperr.KindMalformedInput},
		{"volume is NaN", h.demo.BranchAUser, func(in *models.WaybillInput) { in.CargoVolume = math.NaN() }, apperr.KindMalformedInput},
		{"weight is infinite", h.demo.BranchAUser, func(in *models.WaybillInput) { in.CargoWeight = math.Inf(1) }, apperr.KindMalformedInput},
		{"to itself", h.demo.BranchAUser, func(in *models.WaybillInput) { in.DstDepartmentID = h.demo.BranchA }, apperr.KindMalformedInput},
		{"dst does not accept", h.demo.BranchAUser, func(in *models.WaybillInput) { in.DstDepartmentID = h.demo.HQ }, apperr.KindMalformedInput},
		{"deduction above price", h.demo.BranchAUser, func(in *models.WaybillInput) {
			in.FeeType = models.FeeTypeDeduction
			in.Fee = 2000
		}, apperr.KindMalformedInput},
		{"unknown customer", h.demo.BranchAUser, func(in *models.WaybillInput) {
			missing := uint64(9999)
			in.DstCustomerID = &missing
		}, apperr.KindNotFound},
		{"yard cannot ship", h.demo.YardUser, func(in *models.WaybillInput) {}, apperr.KindUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := h.input()
			tc.mutate(&in)
			_, err := h.run(tc.user, &CreateWaybill{Input: in})
			requireKind(t, tc.kind, err)
		})
	}

	n, err := h.store.CountWaybills(context.Background(), models.WaybillFilter{})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRun_PermissionAndSession(t *testing.T) {
	h := newHarness(t)
	clerk := h.store.PutUser(&models.User{Name: "clerk", DepartmentID: h.demo.BranchA, Enabled: true,
		Permissions: []string{models.PermManageSignFor}})

	_, err := h.run(clerk.ID, &CreateWaybill{Input: h.input()})
	e := requireKind(t, apperr.KindUnauthorized, err)
	require.Contains(t, e.Message, models.PermManageWaybill)

	_, err = h.run(0, &CreateWaybill{Input: h.input()})
	requireKind(t, apperr.KindUnauthorized, err)
}

func TestRun_ForgetsSnapshotsOfWrittenWaybills(t *testing.T) {
	h := newHarness(t)
	d := h.demo
	snaps := &actionsmocks.MockSnapshots{}
	h.exec.WithSnapshots(snaps)

	w := signedFor(h)
	payee := models.Payee{Name: "p", Phone: "1", BankName: "b", BankNum: "2", CredentialNum: "3"}

	// загрузка в рейс не пишет маршрутных записей, но меняет статус
	loaded := h.fixture(models.WaybillStatusCreated)
	snaps.On("ForgetWaybills", mock.Anything, []uint64{loaded.ID}).Return(nil).Once()
	h.mustRun(d.BranchAUser, &CreateTransportOut{
		TruckID: d.Truck, DriverName: "Ivan", DriverPhone: "900", DstDepartmentID: d.GoodsYard, WaybillIDs: []uint64{loaded.ID},
	})

	snaps.On("ForgetWaybills", mock.Anything, []uint64{w.ID}).Return(nil).Twice()
	cppID := h.mustRun(d.BranchBUser, &CreateCargoPricePayment{Payee: payee, WaybillIDs: []uint64{w.ID}}).Extra["cpp_id"].(uint64)
	h.mustRun(d.BranchBUser, &DropCargoPricePayment{CargoPricePaymentID: cppID})

	// ошибка кэша не откатывает операцию
	snaps.On("ForgetWaybills", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()
	h.mustRun(d.BranchAUser, &CreateWaybill{Input: h.input()})

	// неудачная операция ничего не сбрасывает
	_, err := h.run(d.BranchAUser, &ReviewDepartmentPayment{IDs: []uint64{9999}})
	require.Error(t, err)

	snaps.AssertExpectations(t)
	snaps.AssertNumberOfCalls(t, "ForgetWaybills", 4)
}

func TestRun_PublishFailureDoesNotFail(t *testing.T) {
	h := newHarness(t)
	pub := &actionsmocks.MockPublisher{}
	pub.On("Publish", mock.Anything, topic, mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()
	h.exec.publisher = pub

	res := h.mustRun(h.demo.BranchAUser, &CreateWaybill{Input: h.input()})
	require.NotZero(t, res.Extra["waybill_id"])
	pub.AssertExpectations(t)
}

func TestDropWaybill(t *testing.T) {
	h := newHarness(t)
	created := h.fixture(models.WaybillStatusCreated)
	loaded := h.fixture(models.WaybillStatusLoaded)

	_, err := h.run(h.demo.BranchAUser, &DropWaybill{WaybillID: created.ID})
	requireKind(t, apperr.KindMalformedInput, err)

	_, err = h.run(h.demo.BranchBUser, &DropWaybill{WaybillID: created.ID, Reason: "typo"})
	requireKind(t, apperr.KindUnauthorized, err)

	_, err = h.run(h.demo.BranchAUser, &DropWaybill{WaybillID: 9999, Reason: "typo"})
	requireKind(t, apperr.KindNotFound, err)

	_, err = h.run(h.demo.BranchAUser, &DropWaybill{WaybillID: loaded.ID, Reason: "typo"})
	e := requireKind(t, apperr.KindInvalidState, err)
	require.Equal(t, []string{"Created"}, e.Extra["required_status"])
	require.Equal(t, `Only waybills in "Created" status can be dropped, this one is "Loaded".`, e.Message)
	require.Equal(t, models.WaybillStatusLoaded, h.waybill(loaded.ID).Status)

	h.mustRun(h.demo.BranchAUser, &DropWaybill{WaybillID: created.ID, Reason: "typo"})
	got := h.waybill(created.ID)
	require.Equal(t, models.WaybillStatusDropped, got.Status)
	require.Equal(t, "typo", got.DropReason)
}

func TestEditWaybill_OnlyCreated(t *testing.T) {
	h := newHarness(t)
	created := h.fixture(models.WaybillStatusCreated)
	loaded := h.fixture(models.WaybillStatusLoaded)

	in := h.input()
	in.CargoName = "crates"
	in.CargoPrice = 0
	h.mustRun(h.demo.BranchAUser, &EditWaybill{WaybillID: created.ID, Input: in})
	got := h.waybill(created.ID)
	require.Equal(t, "crates", got.CargoName)
	require.Equal(t, models.CargoPriceStatusNo, got.CargoPriceStatus)
	require.Zero(t, got.CargoHandlingFee)

	_, err := h.run(h.demo.BranchAUser, &EditWaybill{WaybillID: loaded.ID, Input: in})
	requireKind(t, apperr.KindInvalidState, err)
	require.Equal(t, "boxes", h.waybill(loaded.ID).CargoName)
}

// shipment drives a fresh waybill from branch A all the way to Arrived at branch B.
func shipment(h *harness) uint64 {
	h.t.Helper()
	d := h.demo
	id := h.mustRun(d.BranchAUser, &CreateWaybill{Input: h.input()}).Extra["waybill_id"].(uint64)

	first := h.mustRun(d.BranchAUser, &CreateTransportOut{
		TruckID: d.Truck, DriverName: "Ivan", DriverPhone: "900", DstDepartmentID: d.GoodsYard, WaybillIDs: []uint64{id},
	}).Extra["transport_out_id"].(uint64)
	require.Equal(h.t, models.WaybillStatusLoaded, h.waybill(id).Status)

	h.mustRun(d.BranchAUser, &StartTransportOut{TransportOutID: first})
	require.Equal(h.t, models.WaybillStatusDeparted, h.waybill(id).Status)
	h.mustRun(d.YardUser, &ConfirmArrival{TransportOutID: first})
	require.Equal(h.t, models.WaybillStatusGoodsYardArrived, h.waybill(id).Status)

	second := h.mustRun(d.YardUser, &CreateTransportOut{
		TruckID: d.Truck, DriverName: "Ivan", DriverPhone: "900", DstDepartmentID: d.BranchB, WaybillIDs: []uint64{id},
	}).Extra["transport_out_id"].(uint64)
	require.Equal(h.t, models.WaybillStatusGoodsYardLoaded, h.waybill(id).Status)

	h.mustRun(d.YardUser, &StartTransportOut{TransportOutID: second})
	require.Equal(h.t, models.WaybillStatusGoodsYardDeparted, h.waybill(id).Status)
	h.mustRun(d.BranchBUser, &ConfirmArrival{TransportOutID: second})
	require.Equal(h.t, models.WaybillStatusArrived, h.waybill(id).Status)
	return id
}

func TestShipment_FullPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := shipment(h)

	w := h.waybill(id)
	require.NotNil(t, w.ArrivalTime)
	require.True(t, w.ArrivalTime.Equal(h.clock.now))

	h.mustRun(h.demo.BranchBUser, &ConfirmSignFor{WaybillIDs: []uint64{id}, Name: "bob", CredentialNum: "4510"})
	w = h.waybill(id)
	require.Equal(t, models.WaybillStatusSignedFor, w.Status)
	require.Equal(t, "bob", w.SignForCustomerName)
	require.NotNil(t, w.SignForTime)

	routings, err := h.store.ListWaybillRoutings(ctx, id, 0, 0)
	require.NoError(t, err)
	var path []models.WaybillStatus
	for _, r := range routings {
		path = append(path, r.OperationType)
	}
	require.Equal(t, []models.WaybillStatus{
		models.WaybillStatusCreated,
		models.WaybillStatusDeparted,
		models.WaybillStatusGoodsYardArrived,
		models.WaybillStatusGoodsYardDeparted,
		models.WaybillStatusArrived,
		models.WaybillStatusSignedFor,
	}, path)
	require.NotNil(t, routings[1].Info.TransportOutID)

	arrived, err := h.store.SearchTransportOuts(ctx, models.TransportOutFilter{
		Statuses: []models.TransportOutStatus{models.TransportOutStatusArrived},
	})
	require.NoError(t, err)
	require.Len(t, arrived, 2)
	for _, trip := range arrived {
		require.NotNil(t, trip.StartTime)
		require.NotNil(t, trip.EndTime)
	}

	// каждое событие маршрута уходит в kafka
	var published int
	for _, c := range h.pub.Calls {
		var msg messages.WaybillRouted
		require.NoError(t, json.Unmarshal(c.Arguments.Get(3).([]byte), &msg))
		if msg.WaybillID == id {
			published++
		}
	}
	require.Equal(t, len(routings), published)
}

func TestConfirmSignFor_Rules(t *testing.T) {
	h := newHarness(t)
	arrived := h.fixture(models.WaybillStatusArrived)
	departed := h.fixture(models.WaybillStatusGoodsYardDeparted)

	_, err := h.run(h.demo.BranchBUser, &ConfirmSignFor{WaybillIDs: []uint64{arrived.ID}, Name: "bob"})
	requireKind(t, apperr.KindMalformedInput, err)

	_, err = h.run(h.demo.BranchAUser, &ConfirmSignFor{WaybillIDs: []uint64{arrived.ID}, Name: "bob", CredentialNum: "1"})
	requireKind(t, apperr.KindUnauthorized, err)

	_, err = h.run(h.demo.BranchBUser, &ConfirmSignFor{WaybillIDs: []uint64{arrived.ID, 9999}, Name: "bob", CredentialNum: "1"})
	e := requireKind(t, apperr.KindNotFound, err)
	require.Equal(t, []uint64{9999}, e.Extra["missing_ids"])

	// одна неподходящая накладная отменяет всю пачку
	_, err = h.run(h.demo.BranchBUser, &ConfirmSignFor{WaybillIDs: []uint64{arrived.ID, departed.ID}, Name: "bob", CredentialNum: "1"})
	requireKind(t, apperr.KindInvalidState, err)
	require.Equal(t, models.WaybillStatusArrived, h.waybill(arrived.ID).Status)
}

func TestReturnWaybill(t *testing.T) {
	h := newHarness(t)
	orig := h.fixture(models.WaybillStatusArrived)

	_, err := h.run(h.demo.BranchBUser, &ReturnWaybill{WaybillID: orig.ID, Fee: 10, FeeType: models.FeeTypeDeduction})
	requireKind(t, apperr.KindMalformedInput, err)
	_, err = h.run(h.demo.BranchAUser, &ReturnWaybill{WaybillID: orig.ID, Fee: 10, FeeType: models.FeeTypeNow})
	requireKind(t, apperr.KindUnauthorized, err)

	res := h.mustRun(h.demo.BranchBUser, &ReturnWaybill{WaybillID: orig.ID, Fee: 10, FeeType: models.FeeTypeSignFor})
	retID := res.Extra["return_waybill_id"].(uint64)

	require.Equal(t, models.WaybillStatusReturned, h.waybill(orig.ID).Status)
	ret := h.waybill(retID)
	require.Equal(t, models.WaybillStatusCreated, ret.Status)
	require.Equal(t, h.demo.BranchB, ret.SrcDepartmentID)
	require.Equal(t, h.demo.BranchA, ret.DstDepartmentID)
	require.Equal(t, "bob", ret.SrcCustomerName)
	require.Equal(t, &h.demo.VIPCustomer, ret.DstCustomerID)
	require.Equal(t, int64(10), ret.Fee)
	require.Equal(t, &orig.ID, ret.ReturnWaybillID)
	require.Equal(t, "YF"+orig.FullID(), res.Extra["return_waybill_full_id"])

	routings, err := h.store.ListWaybillRoutings(context.Background(), orig.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, routings, 1)
	require.Equal(t, &retID, routings[0].Info.ReturnWaybillID)

	_, err = h.run(h.demo.BranchBUser, &ReturnWaybill{WaybillID: orig.ID, Fee: 10, FeeType: models.FeeTypeSignFor})
	requireKind(t, apperr.KindInvalidState, err)
}

func TestCreateTransportOut_Rules(t *testing.T) {
	h := newHarness(t)
	d := h.demo
	created := h.fixture(models.WaybillStatusCreated)
	foreign := h.fixture(models.WaybillStatusCreated, func(w *models.Waybill) {
		w.SrcDepartmentID, w.DstDepartmentID = d.BranchB, d.BranchA
	})
	disabled := h.store.PutTruck(&models.Truck{NumberPlate: "B002BB"})

	base := func() *CreateTransportOut {
		return &CreateTransportOut{TruckID: d.Truck, DriverName: "Ivan", DriverPhone: "900", DstDepartmentID: d.GoodsYard}
	}
	cases := []struct {
		name string
		op   func(op *CreateTransportOut)
		kind apperr.Kind
	}{
		{"no driver", func(op *CreateTransportOut) { op.DriverName = "" }, apperr.KindMalformedInput},
		{"unknown truck", func(op *CreateTransportOut) { op.TruckID = 9999 }, apperr.KindNotFound},
		{"disabled truck", func(op *CreateTransportOut) { op.TruckID = disabled.ID }, apperr.KindInvalidState},
		{"branch to branch", func(op *CreateTransportOut) { op.DstDepartmentID = d.BranchB }, apperr.KindMalformedInput},
		{"foreign waybill", func(op *CreateTransportOut) { op.WaybillIDs = []uint64{created.ID, foreign.ID} }, apperr.KindUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op := base()
			tc.op(op)
			_, err := h.run(d.BranchAUser, op)
			requireKind(t, tc.kind, err)
		})
	}
	require.Equal(t, models.WaybillStatusCreated, h.waybill(created.ID).Status)

	// на складе в рейс берут только накладные до пункта назначения рейса
	atYard := h.fixture(models.WaybillStatusGoodsYardArrived)
	_, err := h.run(d.YardUser, &CreateTransportOut{
		TruckID: d.Truck, DriverName: "Ivan", DriverPhone: "900", DstDepartmentID: d.BranchA, WaybillIDs: []uint64{atYard.ID},
	})
	requireKind(t, apperr.KindMalformedInput, err)
}

func TestSetAndDropTransportOut(t *testing.T) {
	h := newHarness(t)
	d := h.demo
	ctx := context.Background()
	w1 := h.fixture(models.WaybillStatusCreated)
	w2 := h.fixture(models.WaybillStatusCreated)

	tripID := h.mustRun(d.BranchAUser, &CreateTransportOut{
		TruckID: d.Truck, DriverName: "Ivan", DriverPhone: "900", DstDepartmentID: d.GoodsYard, WaybillIDs: []uint64{w1.ID},
	}).Extra["transport_out_id"].(uint64)

	_, err := h.run(d.BranchBUser, &SetTransportOutWaybills{TransportOutID: tripID, WaybillIDs: []uint64{w2.ID}})
	requireKind(t, apperr.KindUnauthorized, err)

	h.mustRun(d.BranchAUser, &SetTransportOutWaybills{TransportOutID: tripID, WaybillIDs: []uint64{w2.ID}})
	require.Equal(t, models.WaybillStatusCreated, h.waybill(w1.ID).Status)
	require.Equal(t, models.WaybillStatusLoaded, h.waybill(w2.ID).Status)
	members, err := h.store.ListTransportOutWaybills(ctx, tripID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, w2.ID, members[0].ID)

	h.mustRun(d.BranchAUser, &DropTransportOut{TransportOutID: tripID})
	require.Equal(t, models.WaybillStatusCreated, h.waybill(w2.ID).Status)
	_, err = h.store.GetTransportOut(ctx, tripID)
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = h.run(d.BranchAUser, &DropTransportOut{TransportOutID: tripID})
	requireKind(t, apperr.KindNotFound, err)
}

func TestStartTransportOut_MixedStatusesLeaveEverythingUntouched(t *testing.T) {
	h := newHarness(t)
	d := h.demo
	ctx := context.Background()
	w1 := h.fixture(models.WaybillStatusCreated)
	w2 := h.fixture(models.WaybillStatusCreated)

	tripID := h.mustRun(d.BranchAUser, &CreateTransportOut{
		TruckID: d.Truck, DriverName: "Ivan", DriverPhone: "900", DstDepartmentID: d.GoodsYard, WaybillIDs: []uint64{w1.ID, w2.ID},
	}).Extra["transport_out_id"].(uint64)

	// кто-то откатил накладную мимо рейса
	broken := h.waybill(w2.ID)
	broken.Status = models.WaybillStatusCreated
	h.store.PutWaybill(broken)

	_, err := h.run(d.BranchAUser, &StartTransportOut{TransportOutID: tripID})
	requireKind(t, apperr.KindInvalidState, err)

	trip, err := h.store.GetTransportOut(ctx, tripID)
	require.NoError(t, err)
	require.Equal(t, models.TransportOutStatusReady, trip.Status)
	require.Nil(t, trip.StartTime)
	require.Equal(t, models.WaybillStatusLoaded, h.waybill(w1.ID).Status)

	_, err = h.run(d.BranchAUser, &DropTransportOut{TransportOutID: tripID})
	requireKind(t, apperr.KindInvalidState, err)
}

func TestStartTransportOut_Rules(t *testing.T) {
	h := newHarness(t)
	d := h.demo

	empty := h.mustRun(d.BranchAUser, &CreateTransportOut{
		TruckID: d.Truck, DriverName: "Ivan", DriverPhone: "900", DstDepartmentID: d.GoodsYard,
	}).Extra["transport_out_id"].(uint64)
	_, err := h.run(d.BranchAUser, &StartTransportOut{TransportOutID: empty})
	requireKind(t, apperr.KindInvalidState, err)

	w := h.fixture(models.WaybillStatusCreated)
	tripID := h.mustRun(d.BranchAUser, &CreateTransportOut{
		TruckID: d.Truck, DriverName: "Ivan", DriverPhone: "900", DstDepartmentID: d.GoodsYard, WaybillIDs: []uint64{w.ID},
	}).Extra["transport_out_id"].(uint64)

	_, err = h.run(d.YardUser, &StartTransportOut{TransportOutID: tripID})
	requireKind(t, apperr.KindUnauthorized, err)
	_, err = h.run(d.YardUser, &ConfirmArrival{TransportOutID: tripID})
	e := requireKind(t, apperr.KindInvalidState, err)
	require.Equal(t, []string{"OnTheWay"}, e.Extra["required_status"])

	h.mustRun(d.BranchAUser, &StartTransportOut{TransportOutID: tripID})
	_, err = h.run(d.BranchAUser, &StartTransportOut{TransportOutID: tripID})
	requireKind(t, apperr.KindInvalidState, err)
	_, err = h.run(d.BranchBUser, &ConfirmArrival{TransportOutID: tripID})
	requireKind(t, apperr.KindUnauthorized, err)
}

// settle runs a statement through review, payment and settlement.
func settle(h *harness, src, dst uint64) Result {
	h.t.Helper()
	d := h.demo
	payer := map[uint64]uint64{d.BranchA: d.BranchAUser, d.BranchB: d.BranchBUser}[src]
	dpID := h.mustRun(payer, &CreateDepartmentPayment{PaymentDate: h.clock.now, SrcDepartmentID: src, DstDepartmentID: dst}).
		Extra["dp_id"].(uint64)
	h.mustRun(d.Admin, &ReviewDepartmentPayment{IDs: []uint64{dpID}})
	h.mustRun(payer, &PayDepartmentPayment{IDs: []uint64{dpID}})
	return h.mustRun(d.Admin, &SettleDepartmentPayment{IDs: []uint64{dpID}})
}

func TestSettleDepartmentPayment_AccruesOnce(t *testing.T) {
	h := newHarness(t)
	d := h.demo
	shipment(h)

	res := settle(h, d.BranchA, d.HQ)
	require.Equal(t, int64(50), res.Extra["score_credited"])
	require.Equal(t, h.clock.now.Format(time.DateTime), res.Extra["dp_settle_accounts_time"])
	require.Equal(t, int64(50), h.store.Customer(d.VIPCustomer).Score)

	logs := h.store.ScoreLogs()
	require.Len(t, logs, 1)
	require.Equal(t, models.ScoreLogRemarkSettlement, logs[0].Remark)
	require.True(t, logs[0].IncOrDec)
	require.Equal(t, d.Admin, logs[0].UserID)

	// вторая ведомость с той же накладной баллы не удваивает
	res = settle(h, d.BranchA, d.GoodsYard)
	require.Equal(t, int64(0), res.Extra["score_credited"])
	require.Equal(t, int64(50), h.store.Customer(d.VIPCustomer).Score)
	require.Len(t, h.store.ScoreLogs(), 1)
}

func TestSettleDepartmentPayment_RatioRoundsUp(t *testing.T) {
	h := newHarness(t)
	settings := models.DefaultSettings()
	settings.CustomerScoreRatio = 0.07
	h.store.PutSettings(settings)
	shipment(h)

	res := settle(h, h.demo.BranchA, h.demo.HQ)
	// ceil(50 * 0.07) = ceil(3.5)
	require.Equal(t, int64(4), res.Extra["score_credited"])
}

func TestDepartmentPayment_Guards(t *testing.T) {
	h := newHarness(t)
	d := h.demo
	create := &CreateDepartmentPayment{PaymentDate: h.clock.now, SrcDepartmentID: d.BranchA, DstDepartmentID: d.HQ}
	dpID := h.mustRun(d.BranchAUser, create).Extra["dp_id"].(uint64)

	_, err := h.run(d.BranchAUser, &CreateDepartmentPayment{PaymentDate: h.clock.now.Add(-time.Hour), SrcDepartmentID: d.BranchA, DstDepartmentID: d.HQ})
	e := requireKind(t, apperr.KindInvalidState, err)
	require.Equal(t, "2024-05-02", e.Extra["payment_date"])

	_, err = h.run(d.BranchAUser, &CreateDepartmentPayment{PaymentDate: h.clock.now.AddDate(0, 0, 1), SrcDepartmentID: d.BranchA, DstDepartmentID: d.HQ})
	requireKind(t, apperr.KindMalformedInput, err)

	_, err = h.run(d.Admin, &PayDepartmentPayment{IDs: []uint64{dpID}})
	requireKind(t, apperr.KindUnauthorized, err)
	_, err = h.run(d.BranchAUser, &PayDepartmentPayment{IDs: []uint64{dpID}})
	requireKind(t, apperr.KindInvalidState, err)
	_, err = h.run(d.Admin, &SettleDepartmentPayment{IDs: []uint64{dpID}})
	requireKind(t, apperr.KindInvalidState, err)

	h.mustRun(d.BranchAUser, &ModifyDepartmentPaymentRemark{DepartmentPaymentID: dpID, Side: RemarkSideSrc, Text: " paid in cash "})
	_, err = h.run(d.BranchAUser, &ModifyDepartmentPaymentRemark{DepartmentPaymentID: dpID, Side: RemarkSideDst, Text: "x"})
	requireKind(t, apperr.KindUnauthorized, err)
	p, err := h.store.GetDepartmentPayment(context.Background(), dpID)
	require.NoError(t, err)
	require.Equal(t, "paid in cash", p.SrcRemark)

	h.mustRun(d.Admin, &ReviewDepartmentPayment{IDs: []uint64{dpID}})
	_, err = h.run(d.BranchAUser, &DropDepartmentPayment{IDs: []uint64{dpID}})
	requireKind(t, apperr.KindInvalidState, err)

	_, err = h.run(d.Admin, &ReviewDepartmentPayment{IDs: []uint64{dpID, 9999}})
	requireKind(t, apperr.KindNotFound, err)
}

func TestDropDepartmentPayment(t *testing.T) {
	h := newHarness(t)
	d := h.demo
	dpID := h.mustRun(d.BranchAUser, &CreateDepartmentPayment{PaymentDate: h.clock.now, SrcDepartmentID: d.BranchA, DstDepartmentID: d.HQ}).
		Extra["dp_id"].(uint64)

	h.mustRun(d.BranchAUser, &DropDepartmentPayment{IDs: []uint64{dpID}})
	_, err := h.store.GetDepartmentPayment(context.Background(), dpID)
	require.ErrorIs(t, err, models.ErrNotFound)

	// после удаления ведомость за тот же день можно создать заново
	h.mustRun(d.BranchAUser, &CreateDepartmentPayment{PaymentDate: h.clock.now, SrcDepartmentID: d.BranchA, DstDepartmentID: d.HQ})
}

func signedFor(h *harness) *models.Waybill {
	return h.fixture(models.WaybillStatusSignedFor, func(w *models.Waybill) {
		now := h.clock.now
		w.SignForTime = &now
	})
}

func TestCargoPricePayment_Lifecycle(t *testing.T) {
	h := newHarness(t)
	d := h.demo
	ctx := context.Background()
	w1, w2 := signedFor(h), signedFor(h)
	payee := models.Payee{Name: "VIP sender", Phone: "100", BankName: "Bank", BankNum: "4000", CredentialNum: "4510"}

	_, err := h.run(d.BranchBUser, &CreateCargoPricePayment{Payee: models.Payee{Name: "x"}, WaybillIDs: []uint64{w1.ID}})
	e := requireKind(t, apperr.KindMalformedInput, err)
	require.Equal(t, "payee_phone", e.Extra["field"])

	cppID := h.mustRun(d.BranchBUser, &CreateCargoPricePayment{Payee: payee, WaybillIDs: []uint64{w1.ID}}).Extra["cpp_id"].(uint64)
	require.Equal(t, &cppID, h.waybill(w1.ID).CargoPricePaymentID)

	_, err = h.run(d.BranchBUser, &CreateCargoPricePayment{Payee: payee, WaybillIDs: []uint64{w1.ID}})
	requireKind(t, apperr.KindInvalidState, err)

	h.mustRun(d.BranchBUser, &SetCargoPricePaymentWaybills{CargoPricePaymentID: cppID, WaybillIDs: []uint64{w1.ID, w2.ID}})
	members, err := h.store.ListCargoPricePaymentWaybills(ctx, cppID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	_, err = h.run(d.Admin, &SubmitCargoPricePayment{CargoPricePaymentID: cppID})
	requireKind(t, apperr.KindUnauthorized, err)
	h.mustRun(d.BranchBUser, &SubmitCargoPricePayment{CargoPricePaymentID: cppID})

	_, err = h.run(d.BranchBUser, &SetCargoPricePaymentWaybills{CargoPricePaymentID: cppID, WaybillIDs: []uint64{w1.ID}})
	requireKind(t, apperr.KindInvalidState, err)

	_, err = h.run(d.Admin, &RejectCargoPricePayment{CargoPricePaymentID: cppID})
	requireKind(t, apperr.KindMalformedInput, err)
	h.mustRun(d.Admin, &RejectCargoPricePayment{CargoPricePaymentID: cppID, Reason: "wrong bank"})
	p, err := h.store.GetCargoPricePayment(ctx, cppID)
	require.NoError(t, err)
	require.Equal(t, models.CargoPricePaymentStatusRejected, p.Status)
	require.Equal(t, "wrong bank", p.RejectReason)

	h.mustRun(d.BranchBUser, &SetCargoPricePaymentWaybills{CargoPricePaymentID: cppID, WaybillIDs: []uint64{w1.ID}})
	require.Nil(t, h.waybill(w2.ID).CargoPricePaymentID)
	h.mustRun(d.BranchBUser, &SubmitCargoPricePayment{CargoPricePaymentID: cppID})

	_, err = h.run(d.Admin, &PayCargoPricePayment{CargoPricePaymentID: cppID})
	requireKind(t, apperr.KindInvalidState, err)
	require.Equal(t, models.CargoPriceStatusNotPaid, h.waybill(w1.ID).CargoPriceStatus)

	h.mustRun(d.Admin, &ReviewCargoPricePayment{CargoPricePaymentID: cppID})
	p, err = h.store.GetCargoPricePayment(ctx, cppID)
	require.NoError(t, err)
	require.Empty(t, p.RejectReason)

	res := h.mustRun(d.Admin, &PayCargoPricePayment{CargoPricePaymentID: cppID})
	require.Equal(t, h.clock.now.Format(time.DateTime), res.Extra["cpp_settle_accounts_time"])
	require.Equal(t, int64(1000-2), res.Extra["total"])
	require.Equal(t, models.CargoPriceStatusPaid, h.waybill(w1.ID).CargoPriceStatus)
	require.Equal(t, models.CargoPriceStatusNotPaid, h.waybill(w2.ID).CargoPriceStatus)

	_, err = h.run(d.BranchBUser, &DropCargoPricePayment{CargoPricePaymentID: cppID})
	requireKind(t, apperr.KindInvalidState, err)
}

func TestCargoPricePayment_Drop(t *testing.T) {
	h := newHarness(t)
	d := h.demo
	w := signedFor(h)
	notSigned := h.fixture(models.WaybillStatusArrived)
	payee := models.Payee{Name: "p", Phone: "1", BankName: "b", BankNum: "2", CredentialNum: "3"}

	_, err := h.run(d.BranchBUser, &CreateCargoPricePayment{Payee: payee, WaybillIDs: []uint64{notSigned.ID}})
	requireKind(t, apperr.KindInvalidState, err)
	_, err = h.run(d.BranchAUser, &CreateCargoPricePayment{Payee: payee, WaybillIDs: []uint64{w.ID}})
	requireKind(t, apperr.KindUnauthorized, err)

	cppID := h.mustRun(d.BranchBUser, &CreateCargoPricePayment{Payee: payee, WaybillIDs: []uint64{w.ID}}).Extra["cpp_id"].(uint64)
	_, err = h.run(d.YardUser, &DropCargoPricePayment{CargoPricePaymentID: cppID})
	requireKind(t, apperr.KindUnauthorized, err)

	h.mustRun(d.BranchBUser, &DropCargoPricePayment{CargoPricePaymentID: cppID})
	require.Nil(t, h.waybill(w.ID).CargoPricePaymentID)
}
