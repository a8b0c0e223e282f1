package memfreight

import (
	"context"
	"sort"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/samber/lo"
)

func (s *Store) GetWaybillsByIDs(_ context.Context, ids []uint64) ([]*models.Waybill, error) {
	var out []*models.Waybill
	s.read(func(st *state) { out = st.waybillsByIDs(ids) })
	return out, nil
}

func (s *Store) SearchWaybills(_ context.Context, f models.WaybillFilter) ([]*models.Waybill, error) {
	var out []*models.Waybill
	s.read(func(st *state) {
		out = page(st.filterWaybills(f), f.Limit, f.Offset)
	})
	return out, nil
}

func (s *Store) CountWaybills(_ context.Context, f models.WaybillFilter) (int, error) {
	var n int
	s.read(func(st *state) { n = len(st.filterWaybills(f)) })
	return n, nil
}

func (s *Store) ListWaybillRoutings(_ context.Context, waybillID uint64, limit, offset int) ([]*models.WaybillRouting, error) {
	var out []*models.WaybillRouting
	s.read(func(st *state) {
		for _, r := range st.routings {
			if r.WaybillID == waybillID {
				out = append(out, cloneRouting(r))
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].Time.Before(out[j].Time)
	})
	return page(out, limit, offset), nil
}

func (s *Store) GetTransportOut(_ context.Context, id uint64) (*models.TransportOut, error) {
	var (
		out *models.TransportOut
		err error
	)
	s.read(func(st *state) { out, err = st.transportOut(id) })
	return out, err
}

func (s *Store) ListTransportOutWaybills(_ context.Context, id uint64) ([]*models.Waybill, error) {
	var out []*models.Waybill
	s.read(func(st *state) { out = st.waybillsByIDs(st.transportOutWaybills[id]) })
	return out, nil
}

func (s *Store) SearchTransportOuts(_ context.Context, f models.TransportOutFilter) ([]*models.TransportOut, error) {
	var out []*models.TransportOut
	s.read(func(st *state) { out = page(st.filterTransportOuts(f), f.Limit, f.Offset) })
	return out, nil
}

func (s *Store) CountTransportOuts(_ context.Context, f models.TransportOutFilter) (int, error) {
	var n int
	s.read(func(st *state) { n = len(st.filterTransportOuts(f)) })
	return n, nil
}

func (s *Store) GetDepartmentPayment(_ context.Context, id uint64) (*models.DepartmentPayment, error) {
	var out *models.DepartmentPayment
	s.read(func(st *state) {
		if p, ok := st.departmentPayments[id]; ok {
			out = cloneDepartmentPayment(p)
		}
	})
	if out == nil {
		return nil, models.ErrNotFound
	}
	return out, nil
}

func (s *Store) ListDepartmentPaymentWaybills(_ context.Context, id uint64) ([]*models.Waybill, error) {
	var out []*models.Waybill
	s.read(func(st *state) { out = st.waybillsByIDs(st.departmentPaymentWaybills[id]) })
	return out, nil
}

func (s *Store) GetCargoPricePayment(_ context.Context, id uint64) (*models.CargoPricePayment, error) {
	var (
		out *models.CargoPricePayment
		err error
	)
	s.read(func(st *state) { out, err = st.cargoPricePayment(id) })
	return out, err
}

func (s *Store) ListCargoPricePaymentWaybills(_ context.Context, id uint64) ([]*models.Waybill, error) {
	var out []*models.Waybill
	s.read(func(st *state) { out = st.cargoPricePaymentWaybills(id) })
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id uint64) (*models.User, error) {
	var out *models.User
	s.read(func(st *state) {
		u, ok := st.users[id]
		if !ok {
			return
		}
		out = cloneUser(u)
		if d, ok := st.departments[u.DepartmentID]; ok {
			out.DepartmentIsGoodsYard = d.IsGoodsYard
			if d.ParentID != nil {
				if parent, ok := st.departments[*d.ParentID]; ok {
					out.DepartmentInBranchGroup = parent.IsBranchGroup
				}
			}
		}
	})
	if out == nil {
		return nil, models.ErrNotFound
	}
	return out, nil
}

func (s *Store) GetSettings(_ context.Context) (models.Settings, error) {
	var out models.Settings
	s.read(func(st *state) { out = st.settings })
	return out, nil
}

func (s *Store) ListDepartments(_ context.Context) ([]*models.Department, error) {
	var out []*models.Department
	s.read(func(st *state) {
		for _, d := range st.departments {
			out = append(out, cloneDepartment(d))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// filterWaybills returns matches newest first.
func (st *state) filterWaybills(f models.WaybillFilter) []*models.Waybill {
	var out []*models.Waybill
	for _, w := range st.waybills {
		if len(f.IDs) > 0 && !lo.Contains(f.IDs, w.ID) {
			continue
		}
		if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, w.Status) {
			continue
		}
		if f.SrcDepartmentID != nil && w.SrcDepartmentID != *f.SrcDepartmentID {
			continue
		}
		if f.DstDepartmentID != nil && w.DstDepartmentID != *f.DstDepartmentID {
			continue
		}
		if f.CreatedFrom != nil && w.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && !w.CreatedAt.Before(*f.CreatedTo) {
			continue
		}
		out = append(out, cloneWaybill(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (st *state) filterTransportOuts(f models.TransportOutFilter) []*models.TransportOut {
	var out []*models.TransportOut
	for _, t := range st.transportOuts {
		if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, t.Status) {
			continue
		}
		if f.SrcDepartmentID != nil && t.SrcDepartmentID != *f.SrcDepartmentID {
			continue
		}
		if f.DstDepartmentID != nil && t.DstDepartmentID != *f.DstDepartmentID {
			continue
		}
		out = append(out, cloneTransportOut(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	if items == nil {
		return []T{}
	}
	return items
}
