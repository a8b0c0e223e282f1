package actions

import (
	"context"
	"strings"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/samber/lo"
)

// Branches ship to the goods yard, the goods yard ships on to branches.
// Which actions apply to a trip's waybills depends on who runs the trip.
type tripActions struct {
	load, unload, depart models.WaybillAction
}

func tripActionsFor(a *models.Actor) tripActions {
	if a.IsGoodsYard() {
		return tripActions{models.WaybillActionGoodsYardLoad, models.WaybillActionGoodsYardUnload, models.WaybillActionGoodsYardDepart}
	}
	return tripActions{models.WaybillActionLoad, models.WaybillActionUnload, models.WaybillActionDepart}
}

func loadTransportOut(ctx context.Context, env *Env, id uint64) (*models.TransportOut, error) {
	if id == 0 {
		return nil, apperr.Malformed("Invalid request format!")
	}
	t, err := env.Tx.GetTransportOut(ctx, id)
	if err != nil {
		return nil, notFound(err, "The transport out does not exist!")
	}
	return t, nil
}

func requireTripSource(env *Env, t *models.TransportOut) error {
	if t.SrcDepartmentID != env.Actor.DepartmentID {
		return apperr.Unauthorized("Cross-department operation on transport out is prohibited!")
	}
	return nil
}

func requireReady(t *models.TransportOut, verb string) error {
	if t.Status != models.TransportOutStatusReady {
		return apperr.InvalidState(`Only transport outs in "%s" status can be %s.`, models.TransportOutStatusReady, verb).
			With("required_status", []string{models.TransportOutStatusReady.String()})
	}
	return nil
}

// checkLoadable returns the status w moves to when loaded onto a trip to dstID.
func checkLoadable(env *Env, dstID uint64, w *models.Waybill) (models.WaybillStatus, error) {
	acts := tripActionsFor(env.Actor)
	if env.Actor.IsGoodsYard() {
		if w.DstDepartmentID != dstID {
			return 0, apperr.Malformed("Waybill %s goes to another department.", w.FullID())
		}
	} else if w.SrcDepartmentID != env.Actor.DepartmentID {
		return 0, apperr.Unauthorized("Waybill %s was not shipped by the current department.", w.FullID())
	}
	return transition(models.WaybillTransitions, "waybills", w.Status, acts.load)
}

type CreateTransportOut struct {
	TruckID         uint64
	DriverName      string
	DriverPhone     string
	DstDepartmentID uint64
	WaybillIDs      []uint64

	ws []*models.Waybill
	to []models.WaybillStatus
}

func (op *CreateTransportOut) Permission() string { return models.PermManageTransportOut }

func (op *CreateTransportOut) Validate(ctx context.Context, env *Env) error {
	op.DriverName = strings.TrimSpace(op.DriverName)
	op.DriverPhone = strings.TrimSpace(op.DriverPhone)
	if op.TruckID == 0 || op.DstDepartmentID == 0 || op.DriverName == "" || op.DriverPhone == "" {
		return apperr.Malformed("Invalid request format!")
	}
	if op.DstDepartmentID == env.Actor.DepartmentID {
		return apperr.Malformed("The destination department cannot be the departure department.")
	}

	truck, err := env.Tx.GetTruck(ctx, op.TruckID)
	if err != nil {
		return notFound(err, "The truck does not exist!")
	}
	if !truck.Enabled {
		return apperr.InvalidState("Truck %s is disabled.", truck.NumberPlate)
	}

	dst, err := loadDepartment(ctx, env, op.DstDepartmentID)
	if err != nil {
		return err
	}
	if env.Actor.IsGoodsYard() {
		if !dst.EnableDst || dst.IsGoodsYard {
			return apperr.Malformed("Department %q does not accept waybills.", dst.Name)
		}
	} else if !dst.IsGoodsYard {
		return apperr.Malformed("Transport outs from a branch go to the goods yard.")
	}

	ws, err := loadWaybills(ctx, env, op.WaybillIDs)
	if err != nil {
		return err
	}
	for _, w := range ws {
		to, err := checkLoadable(env, op.DstDepartmentID, w)
		if err != nil {
			return err
		}
		op.to = append(op.to, to)
	}
	op.ws = ws
	return nil
}

func (op *CreateTransportOut) Commit(ctx context.Context, env *Env) (Result, error) {
	t := &models.TransportOut{
		Status:          models.TransportOutStatusReady,
		TruckID:         op.TruckID,
		DriverName:      op.DriverName,
		DriverPhone:     op.DriverPhone,
		SrcDepartmentID: env.Actor.DepartmentID,
		DstDepartmentID: op.DstDepartmentID,
		CreatedAt:       env.Now,
	}
	if err := env.Tx.InsertTransportOut(ctx, t); err != nil {
		return Result{}, err
	}
	for i, w := range op.ws {
		w.Status = op.to[i]
		if err := env.Tx.UpdateWaybill(ctx, w); err != nil {
			return Result{}, err
		}
	}
	ids := lo.Map(op.ws, func(w *models.Waybill, _ int) uint64 { return w.ID })
	if err := env.Tx.SetTransportOutWaybills(ctx, t.ID, ids); err != nil {
		return Result{}, err
	}
	return Result{Extra: map[string]any{"transport_out_id": t.ID, "transport_out_full_id": t.FullID()}}, nil
}

// SetTransportOutWaybills replaces the members of a Ready trip: dropped
// waybills unload, new ones load.
type SetTransportOutWaybills struct {
	TransportOutID uint64
	WaybillIDs     []uint64

	t       *models.TransportOut
	changed []*models.Waybill
}

func (op *SetTransportOutWaybills) Permission() string { return models.PermManageTransportOut }

func (op *SetTransportOutWaybills) Validate(ctx context.Context, env *Env) error {
	t, err := loadTransportOut(ctx, env, op.TransportOutID)
	if err != nil {
		return err
	}
	if err := requireTripSource(env, t); err != nil {
		return err
	}
	if err := requireReady(t, "modified"); err != nil {
		return err
	}

	current, err := env.Tx.ListTransportOutWaybills(ctx, t.ID)
	if err != nil {
		return err
	}
	currentIDs := lo.Map(current, func(w *models.Waybill, _ int) uint64 { return w.ID })
	removedIDs, addedIDs := lo.Difference(currentIDs, lo.Uniq(op.WaybillIDs))

	acts := tripActionsFor(env.Actor)
	for _, w := range current {
		if !lo.Contains(removedIDs, w.ID) {
			continue
		}
		to, err := transition(models.WaybillTransitions, "waybills", w.Status, acts.unload)
		if err != nil {
			return err
		}
		w.Status = to
		op.changed = append(op.changed, w)
	}

	added, err := loadWaybills(ctx, env, addedIDs)
	if err != nil {
		return err
	}
	for _, w := range added {
		to, err := checkLoadable(env, t.DstDepartmentID, w)
		if err != nil {
			return err
		}
		w.Status = to
		op.changed = append(op.changed, w)
	}
	op.t = t
	return nil
}

func (op *SetTransportOutWaybills) Commit(ctx context.Context, env *Env) (Result, error) {
	for _, w := range op.changed {
		if err := env.Tx.UpdateWaybill(ctx, w); err != nil {
			return Result{}, err
		}
	}
	if err := env.Tx.SetTransportOutWaybills(ctx, op.t.ID, lo.Uniq(op.WaybillIDs)); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

type StartTransportOut struct {
	TransportOutID uint64

	t        *models.TransportOut
	tripTo   models.TransportOutStatus
	ws       []*models.Waybill
	waybills models.WaybillStatus
}

func (op *StartTransportOut) Permission() string { return models.PermManageTransportOut }

func (op *StartTransportOut) Validate(ctx context.Context, env *Env) error {
	t, err := loadTransportOut(ctx, env, op.TransportOutID)
	if err != nil {
		return err
	}
	if err := requireTripSource(env, t); err != nil {
		return err
	}
	tripTo, err := transition(models.TransportOutTransitions, "transport outs", t.Status, models.TransportOutActionStart)
	if err != nil {
		return err
	}
	ws, err := env.Tx.ListTransportOutWaybills(ctx, t.ID)
	if err != nil {
		return err
	}
	if len(ws) == 0 {
		return apperr.InvalidState("The transport out has no waybills.")
	}
	status, err := uniformStatus(ws)
	if err != nil {
		return err
	}
	to, err := transition(models.WaybillTransitions, "waybills", status, tripActionsFor(env.Actor).depart)
	if err != nil {
		return err
	}
	op.t, op.tripTo, op.ws, op.waybills = t, tripTo, ws, to
	return nil
}

func (op *StartTransportOut) Commit(ctx context.Context, env *Env) (Result, error) {
	now := env.Now
	op.t.Status = op.tripTo
	op.t.StartTime = &now
	if err := env.Tx.UpdateTransportOut(ctx, op.t); err != nil {
		return Result{}, err
	}
	tripID := op.t.ID
	for _, w := range op.ws {
		w.Status = op.waybills
		if err := env.Tx.UpdateWaybill(ctx, w); err != nil {
			return Result{}, err
		}
		env.route(w, w.Status, models.RoutingInfo{TransportOutID: &tripID})
	}
	return Result{}, nil
}

// DropTransportOut unloads the members of a Ready trip and deletes it.
type DropTransportOut struct {
	TransportOutID uint64

	t  *models.TransportOut
	ws []*models.Waybill
	to models.WaybillStatus
}

func (op *DropTransportOut) Permission() string { return models.PermManageTransportOut }

func (op *DropTransportOut) Validate(ctx context.Context, env *Env) error {
	t, err := loadTransportOut(ctx, env, op.TransportOutID)
	if err != nil {
		return err
	}
	if err := requireTripSource(env, t); err != nil {
		return err
	}
	if err := requireReady(t, "deleted"); err != nil {
		return err
	}
	ws, err := env.Tx.ListTransportOutWaybills(ctx, t.ID)
	if err != nil {
		return err
	}
	if len(ws) > 0 {
		status, err := uniformStatus(ws)
		if err != nil {
			return err
		}
		if op.to, err = transition(models.WaybillTransitions, "waybills", status, tripActionsFor(env.Actor).unload); err != nil {
			return err
		}
	}
	op.t, op.ws = t, ws
	return nil
}

func (op *DropTransportOut) Commit(ctx context.Context, env *Env) (Result, error) {
	for _, w := range op.ws {
		w.Status = op.to
		if err := env.Tx.UpdateWaybill(ctx, w); err != nil {
			return Result{}, err
		}
	}
	if err := env.Tx.DeleteTransportOut(ctx, op.t.ID); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

// ConfirmArrival lands a trip at its destination. At the goods yard the
// waybills wait for the next trip, at a branch they are ready for sign-for.
type ConfirmArrival struct {
	TransportOutID uint64

	t      *models.TransportOut
	tripTo models.TransportOutStatus
	ws     []*models.Waybill
	to     models.WaybillStatus
}

func (op *ConfirmArrival) Permission() string { return models.PermManageArrival }

func (op *ConfirmArrival) Validate(ctx context.Context, env *Env) error {
	t, err := loadTransportOut(ctx, env, op.TransportOutID)
	if err != nil {
		return err
	}
	if t.DstDepartmentID != env.Actor.DepartmentID {
		return apperr.Unauthorized("Cross-department operation on transport out is prohibited!")
	}
	tripTo, err := transition(models.TransportOutTransitions, "transport outs", t.Status, models.TransportOutActionArrive)
	if err != nil {
		return err
	}
	ws, err := env.Tx.ListTransportOutWaybills(ctx, t.ID)
	if err != nil {
		return err
	}
	status, err := uniformStatus(ws)
	if err != nil {
		return err
	}
	action := models.WaybillActionArrive
	if env.Actor.IsGoodsYard() {
		action = models.WaybillActionGoodsYardArrive
	}
	to, err := transition(models.WaybillTransitions, "waybills", status, action)
	if err != nil {
		return err
	}
	op.t, op.tripTo, op.ws, op.to = t, tripTo, ws, to
	return nil
}

func (op *ConfirmArrival) Commit(ctx context.Context, env *Env) (Result, error) {
	now := env.Now
	op.t.Status = op.tripTo
	op.t.EndTime = &now
	if err := env.Tx.UpdateTransportOut(ctx, op.t); err != nil {
		return Result{}, err
	}
	for _, w := range op.ws {
		w.Status = op.to
		if op.to == models.WaybillStatusArrived {
			w.ArrivalTime = &now
		}
		if err := env.Tx.UpdateWaybill(ctx, w); err != nil {
			return Result{}, err
		}
		env.route(w, w.Status, models.RoutingInfo{})
	}
	return Result{}, nil
}
