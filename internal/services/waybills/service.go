// Package waybills is the read side: lookups, searches and the dashboard.
package waybills

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/broker/messages"
	"github.com/BearBump/FreightBox/internal/cache"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/storage"
	"github.com/pkg/errors"
)

const maxIDs = 1000

type Repository interface {
	GetWaybillsByIDs(ctx context.Context, ids []uint64) ([]*models.Waybill, error)
	SearchWaybills(ctx context.Context, f models.WaybillFilter) ([]*models.Waybill, error)
	CountWaybills(ctx context.Context, f models.WaybillFilter) (int, error)
	ListWaybillRoutings(ctx context.Context, waybillID uint64, limit, offset int) ([]*models.WaybillRouting, error)

	GetTransportOut(ctx context.Context, id uint64) (*models.TransportOut, error)
	ListTransportOutWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error)
	SearchTransportOuts(ctx context.Context, f models.TransportOutFilter) ([]*models.TransportOut, error)
	CountTransportOuts(ctx context.Context, f models.TransportOutFilter) (int, error)

	GetDepartmentPayment(ctx context.Context, id uint64) (*models.DepartmentPayment, error)
	ListDepartmentPaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error)
	GetCargoPricePayment(ctx context.Context, id uint64) (*models.CargoPricePayment, error)
	ListCargoPricePaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error)
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration
	clock      cache.Clock
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration, clock cache.Clock) *Service {
	if clock == nil {
		clock = cache.SystemClock{}
	}
	return &Service{repo: repo, cache: c, currentTTL: currentTTL, clock: clock}
}

func (s *Service) cached() bool {
	return s.cache != nil && s.currentTTL > 0
}

func (s *Service) GetWaybillsByIDs(ctx context.Context, ids []uint64) ([]*models.Waybill, error) {
	if len(ids) == 0 {
		return []*models.Waybill{}, nil
	}
	if len(ids) > maxIDs {
		return nil, apperr.Malformed("Too many ids (max %d).", maxIDs)
	}

	// Снимок накладной кэшируется целиком; ошибки кэша считаем промахом.
	miss := make([]uint64, 0, len(ids))
	got := make(map[uint64]*models.Waybill, len(ids))

	if s.cached() {
		for _, id := range ids {
			b, ok, err := s.cache.Get(ctx, currentKey(id))
			if err != nil || !ok {
				miss = append(miss, id)
				continue
			}
			var w models.Waybill
			if json.Unmarshal(b, &w) != nil {
				miss = append(miss, id)
				continue
			}
			got[id] = &w
		}
	} else {
		miss = ids
	}

	if len(miss) > 0 {
		fromDB, err := s.repo.GetWaybillsByIDs(ctx, miss)
		if err != nil {
			return nil, err
		}
		for _, w := range fromDB {
			got[w.ID] = w
			s.remember(ctx, w)
		}
	}

	out := make([]*models.Waybill, 0, len(ids))
	for _, id := range ids {
		if w, ok := got[id]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Service) GetWaybill(ctx context.Context, id uint64) (*models.Waybill, error) {
	ws, err := s.GetWaybillsByIDs(ctx, []uint64{id})
	if err != nil {
		return nil, err
	}
	if len(ws) == 0 {
		return nil, apperr.NotFound("The waybill does not exist!")
	}
	return ws[0], nil
}

func (s *Service) remember(ctx context.Context, w *models.Waybill) {
	if !s.cached() {
		return
	}
	b, _ := json.Marshal(w)
	_ = s.cache.Set(ctx, currentKey(w.ID), b, s.currentTTL)
}

// ForgetWaybills drops the snapshots of ids; the next read goes to the store.
func (s *Service) ForgetWaybills(ctx context.Context, ids []uint64) error {
	if !s.cached() {
		return nil
	}
	for _, id := range ids {
		if err := s.cache.Delete(ctx, currentKey(id)); err != nil {
			return errors.Wrapf(err, "forget waybill %d", id)
		}
	}
	return nil
}

type WaybillPage struct {
	Items []*models.Waybill `json:"items"`
	Total int               `json:"total"`
}

func (s *Service) SearchWaybills(ctx context.Context, f models.WaybillFilter) (WaybillPage, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return WaybillPage{}, apperr.Malformed("Invalid paging.")
	}
	items, err := s.repo.SearchWaybills(ctx, f)
	if err != nil {
		return WaybillPage{}, err
	}
	total, err := s.repo.CountWaybills(ctx, f)
	if err != nil {
		return WaybillPage{}, err
	}
	return WaybillPage{Items: items, Total: total}, nil
}

func (s *Service) ListWaybillRoutings(ctx context.Context, waybillID uint64, limit, offset int) ([]*models.WaybillRouting, error) {
	if waybillID == 0 {
		return nil, apperr.Malformed("waybill_id is required")
	}
	return s.repo.ListWaybillRoutings(ctx, waybillID, limit, offset)
}

type TransportOutView struct {
	*models.TransportOut
	Summary  models.TransportOutSummary `json:"summary"`
	Waybills []*models.Waybill          `json:"waybills,omitempty"`
}

func (s *Service) GetTransportOut(ctx context.Context, id uint64) (*TransportOutView, error) {
	t, err := s.repo.GetTransportOut(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.NotFound("The transport out does not exist!")
	}
	if err != nil {
		return nil, err
	}
	ws, err := s.repo.ListTransportOutWaybills(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TransportOutView{TransportOut: t, Summary: models.SummarizeTransportOut(ws), Waybills: ws}, nil
}

type TransportOutPage struct {
	Items []*TransportOutView `json:"items"`
	Total int                 `json:"total"`
}

// SearchTransportOuts returns trips with their summaries, without member lists.
func (s *Service) SearchTransportOuts(ctx context.Context, f models.TransportOutFilter) (TransportOutPage, error) {
	ts, err := s.repo.SearchTransportOuts(ctx, f)
	if err != nil {
		return TransportOutPage{}, err
	}
	total, err := s.repo.CountTransportOuts(ctx, f)
	if err != nil {
		return TransportOutPage{}, err
	}
	page := TransportOutPage{Items: make([]*TransportOutView, 0, len(ts)), Total: total}
	for _, t := range ts {
		ws, err := s.repo.ListTransportOutWaybills(ctx, t.ID)
		if err != nil {
			return TransportOutPage{}, err
		}
		page.Items = append(page.Items, &TransportOutView{TransportOut: t, Summary: models.SummarizeTransportOut(ws)})
	}
	return page, nil
}

type DepartmentPaymentView struct {
	*models.DepartmentPayment
	Totals   models.DepartmentPaymentTotals `json:"totals"`
	Waybills []*models.Waybill             `json:"waybills"`
}

func (s *Service) GetDepartmentPayment(ctx context.Context, id uint64) (*DepartmentPaymentView, error) {
	p, err := s.repo.GetDepartmentPayment(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.NotFound("The department payment does not exist!")
	}
	if err != nil {
		return nil, err
	}
	ws, err := s.repo.ListDepartmentPaymentWaybills(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DepartmentPaymentView{
		DepartmentPayment: p,
		Totals:            models.DepartmentPaymentTotalsOf(ws, p.SrcDepartmentID),
		Waybills:          ws,
	}, nil
}

type CargoPricePaymentView struct {
	*models.CargoPricePayment
	Totals   models.CargoPricePaymentTotals `json:"totals"`
	Waybills []*models.Waybill             `json:"waybills"`
}

func (s *Service) GetCargoPricePayment(ctx context.Context, id uint64) (*CargoPricePaymentView, error) {
	p, err := s.repo.GetCargoPricePayment(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.NotFound("The cargo price payment does not exist!")
	}
	if err != nil {
		return nil, err
	}
	ws, err := s.repo.ListCargoPricePaymentWaybills(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CargoPricePaymentView{CargoPricePayment: p, Totals: models.CargoPricePaymentTotalsOf(ws), Waybills: ws}, nil
}

type Dashboard struct {
	CreatedToday     int `json:"created_today"`
	WaitingDeparture int `json:"waiting_departure"`
	WaitingArrival   int `json:"waiting_arrival"`
	WaitingSignFor   int `json:"waiting_sign_for"`
}

// Dashboard counts the work in front of the actor's department. Administrators
// and company users see the whole network.
func (s *Service) Dashboard(ctx context.Context, a *models.Actor) (Dashboard, error) {
	var dept *uint64
	if a.Role == models.UserRoleBranch || a.Role == models.UserRoleGoodsYard {
		id := a.DepartmentID
		dept = &id
	}
	from, to := storage.DayRange(s.clock.Now())

	var (
		d   Dashboard
		err error
	)
	if d.CreatedToday, err = s.repo.CountWaybills(ctx, models.WaybillFilter{
		SrcDepartmentID: dept, CreatedFrom: &from, CreatedTo: &to,
	}); err != nil {
		return Dashboard{}, err
	}
	if d.WaitingDeparture, err = s.repo.CountTransportOuts(ctx, models.TransportOutFilter{
		Statuses: []models.TransportOutStatus{models.TransportOutStatusReady}, SrcDepartmentID: dept,
	}); err != nil {
		return Dashboard{}, err
	}
	if d.WaitingArrival, err = s.repo.CountTransportOuts(ctx, models.TransportOutFilter{
		Statuses: []models.TransportOutStatus{models.TransportOutStatusOnTheWay}, DstDepartmentID: dept,
	}); err != nil {
		return Dashboard{}, err
	}
	if d.WaitingSignFor, err = s.repo.CountWaybills(ctx, models.WaybillFilter{
		Statuses: []models.WaybillStatus{models.WaybillStatusArrived}, DstDepartmentID: dept,
	}); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// ApplyRoutedEvent refreshes the cached snapshot of the routed waybill.
func (s *Service) ApplyRoutedEvent(ctx context.Context, msg messages.WaybillRouted) error {
	if msg.WaybillID == 0 {
		return errors.New("waybill_id is required")
	}
	if !s.cached() {
		return nil
	}
	ws, err := s.repo.GetWaybillsByIDs(ctx, []uint64{msg.WaybillID})
	if err != nil {
		return err
	}
	if len(ws) == 0 {
		return s.cache.Delete(ctx, currentKey(msg.WaybillID))
	}
	s.remember(ctx, ws[0])
	return nil
}

func currentKey(id uint64) string {
	return fmt.Sprintf("waybill:%d:current", id)
}
