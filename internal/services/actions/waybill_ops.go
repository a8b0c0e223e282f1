package actions

import (
	"context"
	"math"
	"strings"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/samber/lo"
)

const (
	minCargoNum    = 1
	minCargoVolume = 0.01
	minCargoWeight = 0.1
	minFee         = 1
)

// validateWaybillInput checks in against the actor's department as the source.
func validateWaybillInput(ctx context.Context, env *Env, in models.WaybillInput) error {
	for _, f := range []struct{ name, value string }{
		{"src_customer_name", in.SrcCustomerName},
		{"src_customer_phone", in.SrcCustomerPhone},
		{"dst_customer_name", in.DstCustomerName},
		{"dst_customer_phone", in.DstCustomerPhone},
		{"cargo_name", in.CargoName},
	} {
		if strings.TrimSpace(f.value) == "" {
			return apperr.Malformed("Field %s is required.", f.name).With("field", f.name)
		}
	}
	switch {
	case !in.FeeType.Valid():
		return apperr.Malformed("Unknown fee type.")
	case in.CargoNum < minCargoNum:
		return apperr.Malformed("Cargo quantity must be at least %d.", minCargoNum)
	case !(in.CargoVolume >= minCargoVolume) || math.IsInf(in.CargoVolume, 0):
		return apperr.Malformed("Cargo volume must be at least %.2f.", minCargoVolume)
	case !(in.CargoWeight >= minCargoWeight) || math.IsInf(in.CargoWeight, 0):
		return apperr.Malformed("Cargo weight must be at least %.1f.", minCargoWeight)
	case in.Fee < minFee:
		return apperr.Malformed("Freight fee must be at least %d.", minFee)
	case in.CargoPrice < 0:
		return apperr.Malformed("Cargo price cannot be negative.")
	case in.DstDepartmentID == env.Actor.DepartmentID:
		return apperr.Malformed("The destination department cannot be the departure department.")
	}

	src, err := loadDepartment(ctx, env, env.Actor.DepartmentID)
	if err != nil {
		return err
	}
	if !src.EnableSrc {
		return apperr.Unauthorized("The current department cannot ship waybills.")
	}
	dst, err := loadDepartment(ctx, env, in.DstDepartmentID)
	if err != nil {
		return err
	}
	if !dst.EnableDst {
		return apperr.Malformed("Department %q does not accept waybills.", dst.Name)
	}

	if in.FeeType == models.FeeTypeDeduction {
		if !dst.EnableCargoPrice {
			return apperr.Malformed("Department %q does not collect cargo price, the fee cannot be deducted.", dst.Name)
		}
		if in.Fee > in.CargoPrice {
			return apperr.Malformed("A deducted fee cannot exceed the cargo price.")
		}
	}

	var customerIDs []uint64
	if in.SrcCustomerID != nil {
		customerIDs = append(customerIDs, *in.SrcCustomerID)
	}
	if in.DstCustomerID != nil {
		customerIDs = append(customerIDs, *in.DstCustomerID)
	}
	customerIDs = lo.Uniq(customerIDs)
	if len(customerIDs) == 0 {
		return nil
	}
	customers, err := env.Tx.GetCustomers(ctx, customerIDs)
	if err != nil {
		return err
	}
	if len(customers) != len(customerIDs) {
		return apperr.NotFound("The customer does not exist!")
	}
	for _, c := range customers {
		if !c.Enabled {
			return apperr.Malformed("Customer %q is disabled.", c.Name)
		}
	}
	return nil
}

type CreateWaybill struct {
	Input models.WaybillInput
}

func (op *CreateWaybill) Permission() string { return models.PermManageWaybill }

func (op *CreateWaybill) Validate(ctx context.Context, env *Env) error {
	return validateWaybillInput(ctx, env, op.Input)
}

func (op *CreateWaybill) Commit(ctx context.Context, env *Env) (Result, error) {
	w := &models.Waybill{
		Status:          models.WaybillStatusCreated,
		SrcDepartmentID: env.Actor.DepartmentID,
		CreatedAt:       env.Now,
	}
	op.Input.Apply(w, env.Settings.HandlingFeeRatio)
	if err := env.Tx.InsertWaybill(ctx, w); err != nil {
		return Result{}, err
	}
	env.route(w, models.WaybillStatusCreated, models.RoutingInfo{})
	return Result{Extra: map[string]any{"waybill_id": w.ID, "waybill_full_id": w.FullID()}}, nil
}

type EditWaybill struct {
	WaybillID uint64
	Input     models.WaybillInput

	w *models.Waybill
}

func (op *EditWaybill) Permission() string { return models.PermManageWaybill }

func (op *EditWaybill) Validate(ctx context.Context, env *Env) error {
	w, err := loadWaybill(ctx, env, op.WaybillID)
	if err != nil {
		return err
	}
	if w.SrcDepartmentID != env.Actor.DepartmentID {
		return apperr.Unauthorized("Cross-department modification of waybills is prohibited!")
	}
	if w.Status != models.WaybillStatusCreated {
		return apperr.InvalidState(`Only waybills in "Created" status can be modified.`).
			With("required_status", []string{models.WaybillStatusCreated.String()})
	}
	if err := validateWaybillInput(ctx, env, op.Input); err != nil {
		return err
	}
	op.w = w
	return nil
}

func (op *EditWaybill) Commit(ctx context.Context, env *Env) (Result, error) {
	op.Input.Apply(op.w, env.Settings.HandlingFeeRatio)
	if err := env.Tx.UpdateWaybill(ctx, op.w); err != nil {
		return Result{}, err
	}
	return Result{Extra: map[string]any{"waybill_id": op.w.ID}}, nil
}

type DropWaybill struct {
	WaybillID uint64
	Reason    string

	w  *models.Waybill
	to models.WaybillStatus
}

func (op *DropWaybill) Permission() string { return models.PermManageWaybill }

func (op *DropWaybill) Validate(ctx context.Context, env *Env) error {
	op.Reason = strings.TrimSpace(op.Reason)
	if op.Reason == "" {
		return apperr.Malformed("Invalid request format!")
	}
	w, err := loadWaybill(ctx, env, op.WaybillID)
	if err != nil {
		return err
	}
	if w.SrcDepartmentID != env.Actor.DepartmentID {
		return apperr.Unauthorized("Cross-department voiding of waybills is prohibited!")
	}
	to, err := transition(models.WaybillTransitions, "waybills", w.Status, models.WaybillActionDrop)
	if err != nil {
		return err
	}
	op.w, op.to = w, to
	return nil
}

func (op *DropWaybill) Commit(ctx context.Context, env *Env) (Result, error) {
	op.w.Status = op.to
	op.w.DropReason = op.Reason
	if err := env.Tx.UpdateWaybill(ctx, op.w); err != nil {
		return Result{}, err
	}
	env.route(op.w, op.to, models.RoutingInfo{})
	return Result{}, nil
}

// ReturnWaybill sends an arrived waybill back: the original becomes Returned
// and a new waybill with swapped parties starts from Created.
type ReturnWaybill struct {
	WaybillID uint64
	Fee       int64
	FeeType   models.FeeType

	w  *models.Waybill
	to models.WaybillStatus
}

func (op *ReturnWaybill) Permission() string { return models.PermManageWaybill }

func (op *ReturnWaybill) Validate(ctx context.Context, env *Env) error {
	if op.FeeType != models.FeeTypeSignFor && op.FeeType != models.FeeTypeNow {
		return apperr.Malformed("A return waybill is paid on sign-for or now.")
	}
	if op.Fee < minFee {
		return apperr.Malformed("Freight fee must be at least %d.", minFee)
	}
	w, err := loadWaybill(ctx, env, op.WaybillID)
	if err != nil {
		return err
	}
	if w.DstDepartmentID != env.Actor.DepartmentID {
		return apperr.Unauthorized("Only the arrival department can return a waybill.")
	}
	to, err := transition(models.WaybillTransitions, "waybills", w.Status, models.WaybillActionReturn)
	if err != nil {
		return err
	}
	op.w, op.to = w, to
	return nil
}

func (op *ReturnWaybill) Commit(ctx context.Context, env *Env) (Result, error) {
	orig := op.w
	ret := &models.Waybill{
		Status:          models.WaybillStatusCreated,
		SrcDepartmentID: orig.DstDepartmentID,
		DstDepartmentID: orig.SrcDepartmentID,

		SrcCustomerID:            orig.DstCustomerID,
		SrcCustomerName:          orig.DstCustomerName,
		SrcCustomerPhone:         orig.DstCustomerPhone,
		SrcCustomerCredentialNum: orig.DstCustomerCredentialNum,
		SrcCustomerAddress:       orig.DstCustomerAddress,

		DstCustomerID:            orig.SrcCustomerID,
		DstCustomerName:          orig.SrcCustomerName,
		DstCustomerPhone:         orig.SrcCustomerPhone,
		DstCustomerCredentialNum: orig.SrcCustomerCredentialNum,
		DstCustomerAddress:       orig.SrcCustomerAddress,

		CargoName:        orig.CargoName,
		CargoNum:         orig.CargoNum,
		CargoVolume:      orig.CargoVolume,
		CargoWeight:      orig.CargoWeight,
		CargoPriceStatus: models.CargoPriceStatusNo,

		Fee:     op.Fee,
		FeeType: op.FeeType,

		ReturnWaybillID: &orig.ID,
		CreatedAt:       env.Now,
	}
	if err := env.Tx.InsertWaybill(ctx, ret); err != nil {
		return Result{}, err
	}

	orig.Status = op.to
	if err := env.Tx.UpdateWaybill(ctx, orig); err != nil {
		return Result{}, err
	}
	env.route(orig, op.to, models.RoutingInfo{ReturnWaybillID: &ret.ID})
	env.route(ret, models.WaybillStatusCreated, models.RoutingInfo{})

	return Result{Extra: map[string]any{"return_waybill_id": ret.ID, "return_waybill_full_id": ret.FullID()}}, nil
}

type ConfirmSignFor struct {
	WaybillIDs    []uint64
	Name          string
	CredentialNum string

	ws []*models.Waybill
}

func (op *ConfirmSignFor) Permission() string { return models.PermManageSignFor }

func (op *ConfirmSignFor) Validate(ctx context.Context, env *Env) error {
	op.Name = strings.TrimSpace(op.Name)
	op.CredentialNum = strings.TrimSpace(op.CredentialNum)
	if len(op.WaybillIDs) == 0 || op.Name == "" || op.CredentialNum == "" {
		return apperr.Malformed("Invalid request format!")
	}
	ws, err := loadWaybills(ctx, env, op.WaybillIDs)
	if err != nil {
		return err
	}
	for _, w := range ws {
		if w.DstDepartmentID != env.Actor.DepartmentID {
			return apperr.Unauthorized("Waybill %s is not addressed to the current department.", w.FullID())
		}
		if _, err := transition(models.WaybillTransitions, "waybills", w.Status, models.WaybillActionSignFor); err != nil {
			return err
		}
	}
	op.ws = ws
	return nil
}

func (op *ConfirmSignFor) Commit(ctx context.Context, env *Env) (Result, error) {
	now := env.Now
	for _, w := range op.ws {
		w.Status = models.WaybillStatusSignedFor
		w.SignForCustomerName = op.Name
		w.SignForCustomerCredentialNum = op.CredentialNum
		w.SignForTime = &now
		if err := env.Tx.UpdateWaybill(ctx, w); err != nil {
			return Result{}, err
		}
		env.route(w, w.Status, models.RoutingInfo{})
	}
	return Result{}, nil
}
