// Package memfreight is an in-memory, transactional store. It backs tests and
// the "memory" storage mode of freight-api.
package memfreight

import (
	"context"
	"sync"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/storage"
)

type state struct {
	seq uint64

	settings    models.Settings
	departments map[uint64]*models.Department
	users       map[uint64]*models.User
	customers   map[uint64]*models.Customer
	trucks      map[uint64]*models.Truck

	waybills map[uint64]*models.Waybill
	routings []*models.WaybillRouting

	transportOuts        map[uint64]*models.TransportOut
	transportOutWaybills map[uint64][]uint64

	departmentPayments        map[uint64]*models.DepartmentPayment
	departmentPaymentWaybills map[uint64][]uint64

	cargoPricePayments map[uint64]*models.CargoPricePayment

	scoreLogs []*models.CustomerScoreLog
}

func newState() *state {
	return &state{
		settings:                  models.DefaultSettings(),
		departments:               map[uint64]*models.Department{},
		users:                     map[uint64]*models.User{},
		customers:                 map[uint64]*models.Customer{},
		trucks:                    map[uint64]*models.Truck{},
		waybills:                  map[uint64]*models.Waybill{},
		transportOuts:             map[uint64]*models.TransportOut{},
		transportOutWaybills:      map[uint64][]uint64{},
		departmentPayments:        map[uint64]*models.DepartmentPayment{},
		departmentPaymentWaybills: map[uint64][]uint64{},
		cargoPricePayments:        map[uint64]*models.CargoPricePayment{},
	}
}

func (s *state) nextID() uint64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	c := &state{
		seq:                       s.seq,
		settings:                  s.settings,
		departments:               make(map[uint64]*models.Department, len(s.departments)),
		users:                     make(map[uint64]*models.User, len(s.users)),
		customers:                 make(map[uint64]*models.Customer, len(s.customers)),
		trucks:                    make(map[uint64]*models.Truck, len(s.trucks)),
		waybills:                  make(map[uint64]*models.Waybill, len(s.waybills)),
		routings:                  make([]*models.WaybillRouting, 0, len(s.routings)),
		transportOuts:             make(map[uint64]*models.TransportOut, len(s.transportOuts)),
		transportOutWaybills:      make(map[uint64][]uint64, len(s.transportOutWaybills)),
		departmentPayments:        make(map[uint64]*models.DepartmentPayment, len(s.departmentPayments)),
		departmentPaymentWaybills: make(map[uint64][]uint64, len(s.departmentPaymentWaybills)),
		cargoPricePayments:        make(map[uint64]*models.CargoPricePayment, len(s.cargoPricePayments)),
		scoreLogs:                 make([]*models.CustomerScoreLog, 0, len(s.scoreLogs)),
	}
	for id, v := range s.departments {
		c.departments[id] = cloneDepartment(v)
	}
	for id, v := range s.users {
		c.users[id] = cloneUser(v)
	}
	for id, v := range s.customers {
		cp := *v
		c.customers[id] = &cp
	}
	for id, v := range s.trucks {
		cp := *v
		c.trucks[id] = &cp
	}
	for id, v := range s.waybills {
		c.waybills[id] = cloneWaybill(v)
	}
	for _, v := range s.routings {
		c.routings = append(c.routings, cloneRouting(v))
	}
	for id, v := range s.transportOuts {
		c.transportOuts[id] = cloneTransportOut(v)
	}
	for id, v := range s.transportOutWaybills {
		c.transportOutWaybills[id] = append([]uint64(nil), v...)
	}
	for id, v := range s.departmentPayments {
		c.departmentPayments[id] = cloneDepartmentPayment(v)
	}
	for id, v := range s.departmentPaymentWaybills {
		c.departmentPaymentWaybills[id] = append([]uint64(nil), v...)
	}
	for id, v := range s.cargoPricePayments {
		c.cargoPricePayments[id] = cloneCargoPricePayment(v)
	}
	for _, v := range s.scoreLogs {
		c.scoreLogs = append(c.scoreLogs, cloneScoreLog(v))
	}
	return c
}

// Store serialises transactions: InTx runs fn on a private copy of the state
// and swaps it in only when fn returns nil.
type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &memTx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

func (s *Store) write(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

func (s *Store) PutSettings(v models.Settings) {
	s.write(func(st *state) { st.settings = v })
}

// PutDepartment stores d, assigning an id when d.ID is zero.
func (s *Store) PutDepartment(d *models.Department) *models.Department {
	s.write(func(st *state) {
		if d.ID == 0 {
			d.ID = st.nextID()
		}
		st.departments[d.ID] = cloneDepartment(d)
	})
	return d
}

func (s *Store) PutUser(u *models.User) *models.User {
	s.write(func(st *state) {
		if u.ID == 0 {
			u.ID = st.nextID()
		}
		st.users[u.ID] = cloneUser(u)
	})
	return u
}

func (s *Store) PutCustomer(c *models.Customer) *models.Customer {
	s.write(func(st *state) {
		if c.ID == 0 {
			c.ID = st.nextID()
		}
		cp := *c
		st.customers[c.ID] = &cp
	})
	return c
}

func (s *Store) PutTruck(t *models.Truck) *models.Truck {
	s.write(func(st *state) {
		if t.ID == 0 {
			t.ID = st.nextID()
		}
		cp := *t
		st.trucks[t.ID] = &cp
	})
	return t
}

// PutWaybill stores w as is, bypassing every rule. Handy for fixtures.
func (s *Store) PutWaybill(w *models.Waybill) *models.Waybill {
	s.write(func(st *state) {
		if w.ID == 0 {
			w.ID = st.nextID()
		}
		st.waybills[w.ID] = cloneWaybill(w)
	})
	return w
}

func (s *Store) Customer(id uint64) *models.Customer {
	var out *models.Customer
	s.read(func(st *state) {
		if c, ok := st.customers[id]; ok {
			cp := *c
			out = &cp
		}
	})
	return out
}

func (s *Store) ScoreLogs() []*models.CustomerScoreLog {
	var out []*models.CustomerScoreLog
	s.read(func(st *state) {
		for _, l := range st.scoreLogs {
			out = append(out, cloneScoreLog(l))
		}
	})
	return out
}
