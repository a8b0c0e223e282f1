// Package actions runs guarded state transitions: every operation validates
// under row locks, then commits, in one store transaction.
package actions

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/broker/messages"
	"github.com/BearBump/FreightBox/internal/cache"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/storage"
)

const defaultMessage = "Operation successful"

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error
}

type ActorResolver interface {
	Actor(ctx context.Context, p models.Principal) (*models.Actor, error)
	Settings(ctx context.Context) (models.Settings, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Snapshots drops cached copies of waybills. Other instances catch up through WaybillRouted events.
type Snapshots interface {
	ForgetWaybills(ctx context.Context, ids []uint64) error
}

// Env is what an operation sees while it runs.
type Env struct {
	Tx       storage.Tx
	Actor    *models.Actor
	Settings models.Settings
	Now      time.Time

	routed []*models.WaybillRouting
}

// route records that w reached status. The executor writes the rows after Commit.
func (e *Env) route(w *models.Waybill, status models.WaybillStatus, info models.RoutingInfo) {
	e.routed = append(e.routed, &models.WaybillRouting{
		WaybillID:     w.ID,
		Time:          e.Now,
		OperationType: status,
		DepartmentID:  e.Actor.DepartmentID,
		UserID:        e.Actor.UserID,
		Info:          info,
	})
}

type Result struct {
	Message string
	Extra   map[string]any
}

// Operation is one guarded transition. Validate must not write; Commit may
// rely on whatever Validate loaded. An Operation value serves one Run.
type Operation interface {
	Permission() string
	Validate(ctx context.Context, env *Env) error
	Commit(ctx context.Context, env *Env) (Result, error)
}

type Executor struct {
	store     Store
	actors    ActorResolver
	publisher Publisher
	topic     string
	clock     cache.Clock
	snapshots Snapshots
}

// NewExecutor builds an executor. publisher may be nil, events are then dropped.
func NewExecutor(store Store, actors ActorResolver, publisher Publisher, topic string, clock cache.Clock) *Executor {
	if clock == nil {
		clock = cache.SystemClock{}
	}
	return &Executor{
		store:     store,
		actors:    actors,
		publisher: publisher,
		topic:     topic,
		clock:     clock,
	}
}

// WithSnapshots makes Run forget the snapshots of every waybill an operation wrote.
func (e *Executor) WithSnapshots(s Snapshots) *Executor {
	e.snapshots = s
	return e
}

func (e *Executor) Run(ctx context.Context, p models.Principal, op Operation) (Result, error) {
	actor, err := e.actors.Actor(ctx, p)
	if err != nil {
		return Result{}, err
	}
	if perm := op.Permission(); perm != "" && !actor.Can(perm) {
		return Result{}, apperr.Unauthorized("You do not have the %q permission.", perm)
	}
	settings, err := e.actors.Settings(ctx)
	if err != nil {
		return Result{}, err
	}

	var (
		res     Result
		routed  []*models.WaybillRouting
		written []uint64
	)
	err = e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		wt := &writeTracker{Tx: tx}
		env := &Env{Tx: wt, Actor: actor, Settings: settings, Now: e.clock.Now().UTC()}
		if err := op.Validate(ctx, env); err != nil {
			return err
		}
		r, err := op.Commit(ctx, env)
		if err != nil {
			return err
		}
		if len(env.routed) > 0 {
			if err := tx.InsertRoutings(ctx, env.routed); err != nil {
				return err
			}
		}
		res, routed, written = r, env.routed, wt.written()
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.forget(ctx, written)
	e.publish(ctx, routed)
	if res.Message == "" {
		res.Message = defaultMessage
	}
	return res, nil
}

func (e *Executor) forget(ctx context.Context, ids []uint64) {
	if e.snapshots == nil || len(ids) == 0 {
		return
	}
	if err := e.snapshots.ForgetWaybills(ctx, ids); err != nil {
		slog.Warn("forget waybill snapshots", "waybill_ids", ids, "err", err)
	}
}

// publish is best effort: the transition is already committed.
func (e *Executor) publish(ctx context.Context, routed []*models.WaybillRouting) {
	if e.publisher == nil {
		return
	}
	for _, r := range routed {
		msg := messages.NewWaybillRouted(r)
		b, err := json.Marshal(msg)
		if err != nil {
			slog.Error("marshal waybill routed", "waybill_id", r.WaybillID, "err", err)
			continue
		}
		if err := e.publisher.Publish(ctx, e.topic, msg.Key(), b); err != nil {
			slog.Warn("publish waybill routed", "waybill_id", r.WaybillID, "status", r.OperationType.String(), "err", err)
		}
	}
}
