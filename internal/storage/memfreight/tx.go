package memfreight

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/storage"
	"github.com/samber/lo"
)

// memTx works on a private copy of the state, so reads need no locking.
type memTx struct {
	st *state
}

var _ storage.Tx = (*memTx)(nil)

func (t *memTx) GetDepartments(_ context.Context, ids []uint64) ([]*models.Department, error) {
	out := make([]*models.Department, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if d, ok := t.st.departments[id]; ok {
			out = append(out, cloneDepartment(d))
		}
	}
	return out, nil
}

func (t *memTx) GetCustomers(_ context.Context, ids []uint64) ([]*models.Customer, error) {
	out := make([]*models.Customer, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if c, ok := t.st.customers[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) GetTruck(_ context.Context, id uint64) (*models.Truck, error) {
	tr, ok := t.st.trucks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

func (t *memTx) GetWaybills(_ context.Context, ids []uint64) ([]*models.Waybill, error) {
	return t.st.waybillsByIDs(ids), nil
}

func (t *memTx) InsertWaybill(_ context.Context, w *models.Waybill) error {
	w.ID = t.st.nextID()
	t.st.waybills[w.ID] = cloneWaybill(w)
	return nil
}

func (t *memTx) UpdateWaybill(_ context.Context, w *models.Waybill) error {
	if _, ok := t.st.waybills[w.ID]; !ok {
		return models.ErrNotFound
	}
	t.st.waybills[w.ID] = cloneWaybill(w)
	return nil
}

func (t *memTx) InsertRoutings(_ context.Context, rs []*models.WaybillRouting) error {
	for _, r := range rs {
		r.ID = t.st.nextID()
		t.st.routings = append(t.st.routings, cloneRouting(r))
	}
	return nil
}

func (t *memTx) GetTransportOut(_ context.Context, id uint64) (*models.TransportOut, error) {
	return t.st.transportOut(id)
}

func (t *memTx) ListTransportOutWaybills(_ context.Context, id uint64) ([]*models.Waybill, error) {
	return t.st.waybillsByIDs(t.st.transportOutWaybills[id]), nil
}

func (t *memTx) InsertTransportOut(_ context.Context, to *models.TransportOut) error {
	to.ID = t.st.nextID()
	t.st.transportOuts[to.ID] = cloneTransportOut(to)
	return nil
}

func (t *memTx) UpdateTransportOut(_ context.Context, to *models.TransportOut) error {
	if _, ok := t.st.transportOuts[to.ID]; !ok {
		return models.ErrNotFound
	}
	t.st.transportOuts[to.ID] = cloneTransportOut(to)
	return nil
}

func (t *memTx) SetTransportOutWaybills(_ context.Context, id uint64, waybillIDs []uint64) error {
	if _, ok := t.st.transportOuts[id]; !ok {
		return models.ErrNotFound
	}
	t.st.transportOutWaybills[id] = append([]uint64(nil), lo.Uniq(waybillIDs)...)
	return nil
}

func (t *memTx) DeleteTransportOut(_ context.Context, id uint64) error {
	delete(t.st.transportOuts, id)
	delete(t.st.transportOutWaybills, id)
	return nil
}

func (t *memTx) GetDepartmentPayments(_ context.Context, ids []uint64) ([]*models.DepartmentPayment, error) {
	out := make([]*models.DepartmentPayment, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if p, ok := t.st.departmentPayments[id]; ok {
			out = append(out, cloneDepartmentPayment(p))
		}
	}
	return out, nil
}

func (t *memTx) ListDepartmentPaymentWaybills(_ context.Context, id uint64) ([]*models.Waybill, error) {
	return t.st.waybillsByIDs(t.st.departmentPaymentWaybills[id]), nil
}

func (t *memTx) DepartmentPaymentExists(_ context.Context, srcID, dstID uint64, day time.Time) (bool, error) {
	return t.st.departmentPaymentExists(srcID, dstID, day), nil
}

func (t *memTx) StatementWaybillIDs(_ context.Context, srcID uint64, day time.Time) ([]uint64, error) {
	from, to := storage.DayRange(day)
	in := func(ts *time.Time) bool {
		return ts != nil && !ts.Before(from) && ts.Before(to)
	}

	picked := map[uint64]struct{}{}
	started := models.TransportOutStartedStatuses()
	for toID, trip := range t.st.transportOuts {
		if trip.SrcDepartmentID != srcID {
			continue
		}
		if !lo.Contains(started, trip.Status) || !in(trip.StartTime) {
			continue
		}
		for _, wid := range t.st.transportOutWaybills[toID] {
			w, ok := t.st.waybills[wid]
			if ok && w.SrcDepartmentID == srcID && w.FeeType == models.FeeTypeNow {
				picked[wid] = struct{}{}
			}
		}
	}
	for id, w := range t.st.waybills {
		if w.DstDepartmentID == srcID && w.Status == models.WaybillStatusSignedFor && in(w.SignForTime) {
			picked[id] = struct{}{}
		}
	}

	out := lo.Keys(picked)
	slices.Sort(out)
	return out, nil
}

func (t *memTx) InsertDepartmentPayment(_ context.Context, p *models.DepartmentPayment, waybillIDs []uint64) error {
	if t.st.departmentPaymentExists(p.SrcDepartmentID, p.DstDepartmentID, p.PaymentDate) {
		return models.ErrAlreadyExists
	}
	p.ID = t.st.nextID()
	t.st.departmentPayments[p.ID] = cloneDepartmentPayment(p)
	t.st.departmentPaymentWaybills[p.ID] = append([]uint64(nil), lo.Uniq(waybillIDs)...)
	return nil
}

func (t *memTx) UpdateDepartmentPayment(_ context.Context, p *models.DepartmentPayment) error {
	if _, ok := t.st.departmentPayments[p.ID]; !ok {
		return models.ErrNotFound
	}
	t.st.departmentPayments[p.ID] = cloneDepartmentPayment(p)
	return nil
}

func (t *memTx) DeleteDepartmentPayments(_ context.Context, ids []uint64) error {
	for _, id := range ids {
		delete(t.st.departmentPayments, id)
		delete(t.st.departmentPaymentWaybills, id)
	}
	return nil
}

func (t *memTx) GetCargoPricePayment(_ context.Context, id uint64) (*models.CargoPricePayment, error) {
	return t.st.cargoPricePayment(id)
}

func (t *memTx) ListCargoPricePaymentWaybills(_ context.Context, id uint64) ([]*models.Waybill, error) {
	return t.st.cargoPricePaymentWaybills(id), nil
}

func (t *memTx) InsertCargoPricePayment(_ context.Context, p *models.CargoPricePayment) error {
	p.ID = t.st.nextID()
	t.st.cargoPricePayments[p.ID] = cloneCargoPricePayment(p)
	return nil
}

func (t *memTx) UpdateCargoPricePayment(_ context.Context, p *models.CargoPricePayment) error {
	if _, ok := t.st.cargoPricePayments[p.ID]; !ok {
		return models.ErrNotFound
	}
	t.st.cargoPricePayments[p.ID] = cloneCargoPricePayment(p)
	return nil
}

func (t *memTx) DeleteCargoPricePayment(_ context.Context, id uint64) error {
	for _, w := range t.st.waybills {
		if w.CargoPricePaymentID != nil && *w.CargoPricePaymentID == id {
			w.CargoPricePaymentID = nil
		}
	}
	delete(t.st.cargoPricePayments, id)
	return nil
}

func (t *memTx) InsertScoreLogs(_ context.Context, logs []*models.CustomerScoreLog) ([]*models.CustomerScoreLog, error) {
	seen := map[uint64]struct{}{}
	for _, l := range t.st.scoreLogs {
		if l.WaybillID != nil {
			seen[*l.WaybillID] = struct{}{}
		}
	}

	inserted := make([]*models.CustomerScoreLog, 0, len(logs))
	for _, l := range logs {
		if l.WaybillID != nil {
			if _, dup := seen[*l.WaybillID]; dup {
				continue
			}
			seen[*l.WaybillID] = struct{}{}
		}
		l.ID = t.st.nextID()
		t.st.scoreLogs = append(t.st.scoreLogs, cloneScoreLog(l))
		inserted = append(inserted, l)
	}
	return inserted, nil
}

func (t *memTx) AddCustomerScore(_ context.Context, customerID uint64, delta int64) error {
	c, ok := t.st.customers[customerID]
	if !ok {
		return models.ErrNotFound
	}
	c.Score += delta
	return nil
}

func (s *state) waybillsByIDs(ids []uint64) []*models.Waybill {
	out := make([]*models.Waybill, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if w, ok := s.waybills[id]; ok {
			out = append(out, cloneWaybill(w))
		}
	}
	return out
}

func (s *state) transportOut(id uint64) (*models.TransportOut, error) {
	to, ok := s.transportOuts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneTransportOut(to), nil
}

func (s *state) cargoPricePayment(id uint64) (*models.CargoPricePayment, error) {
	p, ok := s.cargoPricePayments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneCargoPricePayment(p), nil
}

func (s *state) cargoPricePaymentWaybills(id uint64) []*models.Waybill {
	var out []*models.Waybill
	for _, w := range s.waybills {
		if w.CargoPricePaymentID != nil && *w.CargoPricePaymentID == id {
			out = append(out, cloneWaybill(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) departmentPaymentExists(srcID, dstID uint64, day time.Time) bool {
	d, _ := storage.DayRange(day)
	for _, p := range s.departmentPayments {
		pd, _ := storage.DayRange(p.PaymentDate)
		if p.SrcDepartmentID == srcID && p.DstDepartmentID == dstID && pd.Equal(d) {
			return true
		}
	}
	return false
}
