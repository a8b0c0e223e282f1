// Package planner creates the daily department statements in the background.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/cache"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/services/actions"
	"github.com/BearBump/FreightBox/internal/storage"
	"github.com/pkg/errors"
)

type Store interface {
	ListDepartments(ctx context.Context) ([]*models.Department, error)
	InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error
}

// Guard is a once-per-window lock; the Redis rate limiter with limit 1.
type Guard interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
	Release(ctx context.Context, key string) error
}

const guardWindow = 26 * time.Hour

var errNothingToSettle = errors.New("nothing to settle")

type Planner struct {
	store Store
	guard Guard
	clock cache.Clock

	settlementDepartmentID uint64
	interval               time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalCreated        atomic.Int64
	totalSkipped        atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(store Store, guard Guard, settlementDepartmentID uint64) *Planner {
	return &Planner{
		store: store, guard: guard, clock: cache.SystemClock{},
		settlementDepartmentID: settlementDepartmentID,
		interval:               time.Minute,
		triggerCh:              make(chan struct{}, 1),
		startedAtUnixNano:      time.Now().UTC().UnixNano(),
	}
}

func (p *Planner) WithSettings(interval time.Duration, clock cache.Clock) *Planner {
	if interval > 0 {
		p.interval = interval
	}
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Trigger forces an immediate cycle (best-effort, non-blocking).
func (p *Planner) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles   int64      `json:"totalCycles"`
	TotalCreated  int64      `json:"totalCreated"`
	TotalSkipped  int64      `json:"totalSkipped"`
	TotalErrors   int64      `json:"totalErrors"`
	LastError     string     `json:"lastError,omitempty"`
}

func (p *Planner) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalCycles:  p.totalCycles.Load(),
		TotalCreated: p.totalCreated.Load(),
		TotalSkipped: p.totalSkipped.Load(),
		TotalErrors:  p.totalErrors.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Planner) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.RunOnce(ctx)
		case <-p.triggerCh:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce creates yesterday's statements and returns how many were created.
func (p *Planner) RunOnce(ctx context.Context) int {
	now := p.clock.Now().UTC()
	p.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())
	p.totalCycles.Add(1)

	deps, err := p.store.ListDepartments(ctx)
	if err != nil {
		p.fail(errors.Wrap(err, "list departments"))
		return 0
	}

	today, _ := storage.DayRange(now)
	day := today.AddDate(0, 0, -1)

	created := 0
	for _, d := range deps {
		if !d.EnableSrc || d.ID == p.settlementDepartmentID {
			continue
		}
		ok, err := p.planOne(ctx, d.ID, day, now)
		if err != nil {
			p.fail(err)
			slog.Error("plan statement", "src_department_id", d.ID, "day", day.Format(time.DateOnly), "error", err.Error())
			continue
		}
		if ok {
			created++
		}
	}
	p.totalCreated.Add(int64(created))
	return created
}

func (p *Planner) planOne(ctx context.Context, src uint64, day, now time.Time) (bool, error) {
	key := fmt.Sprintf("plan:%d:%d:%s", src, p.settlementDepartmentID, day.Format("20060102"))
	if p.guard != nil {
		allowed, _, err := p.guard.Allow(ctx, key, 1, guardWindow)
		if err != nil {
			return false, err
		}
		if !allowed {
			p.totalSkipped.Add(1)
			return false, nil
		}
	}

	var paymentID uint64
	err := p.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		dp, ids, err := actions.CreateStatement(ctx, tx, src, p.settlementDepartmentID, day, now)
		if err != nil {
			return err
		}
		// пустую ведомость не сохраняем
		if len(ids) == 0 {
			return errNothingToSettle
		}
		paymentID = dp.ID
		return nil
	})
	switch {
	case err == nil:
		slog.Info("statement created", "department_payment_id", paymentID, "src_department_id", src, "day", day.Format(time.DateOnly))
		return true, nil
	case errors.Is(err, errNothingToSettle), apperr.KindOf(err) == apperr.KindInvalidState:
		p.totalSkipped.Add(1)
		return false, nil
	default:
		if p.guard != nil {
			_ = p.guard.Release(ctx, key)
		}
		return false, err
	}
}

func (p *Planner) fail(err error) {
	p.totalErrors.Add(1)
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}
