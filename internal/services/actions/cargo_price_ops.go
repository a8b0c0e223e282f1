package actions

import (
	"context"
	"strings"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/samber/lo"
)

func loadCargoPricePayment(ctx context.Context, env *Env, id uint64) (*models.CargoPricePayment, error) {
	if id == 0 {
		return nil, apperr.Malformed("Invalid request format!")
	}
	p, err := env.Tx.GetCargoPricePayment(ctx, id)
	if err != nil {
		return nil, notFound(err, "The cargo price payment does not exist!")
	}
	return p, nil
}

// requireEditable lets only the creator touch a Created or Rejected payment.
func requireEditable(env *Env, p *models.CargoPricePayment, verb string) error {
	if p.CreateUserID != env.Actor.UserID {
		return apperr.Unauthorized("Only the creator can %s this cargo price payment.", verb)
	}
	if !p.Status.Editable() {
		required := []string{models.CargoPricePaymentStatusCreated.String(), models.CargoPricePaymentStatusRejected.String()}
		return apperr.InvalidState(`Only cargo price payments in "%s" status can be %s, this one is "%s".`,
			strings.Join(required, `" or "`), pastTense(verb), p.Status).
			With("required_status", required)
	}
	return nil
}

// checkPayable verifies each waybill may join payment paymentID (0 for a new one).
func checkPayable(env *Env, ws []*models.Waybill, paymentID uint64) error {
	for _, w := range ws {
		switch {
		case w.DstDepartmentID != env.Actor.DepartmentID:
			return apperr.Unauthorized("Waybill %s is not addressed to the current department.", w.FullID())
		case w.Status != models.WaybillStatusSignedFor:
			return apperr.InvalidState(`Only waybills in "%s" status can be paid out, this one is "%s".`,
				models.WaybillStatusSignedFor, w.Status).
				With("required_status", []string{models.WaybillStatusSignedFor.String()})
		case w.CargoPriceStatus != models.CargoPriceStatusNotPaid:
			return apperr.InvalidState("Waybill %s has no unpaid cargo price.", w.FullID())
		case w.CargoPricePaymentID != nil && *w.CargoPricePaymentID != paymentID:
			return apperr.InvalidState("Waybill %s already belongs to another cargo price payment.", w.FullID())
		}
	}
	return nil
}

func attach(ctx context.Context, env *Env, ws []*models.Waybill, paymentID *uint64) error {
	for _, w := range ws {
		w.CargoPricePaymentID = paymentID
		if err := env.Tx.UpdateWaybill(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

type CreateCargoPricePayment struct {
	Payee      models.Payee
	WaybillIDs []uint64

	ws []*models.Waybill
}

func (op *CreateCargoPricePayment) Permission() string { return models.PermManageCargoPricePayment }

func (op *CreateCargoPricePayment) Validate(ctx context.Context, env *Env) error {
	if err := validatePayee(&op.Payee); err != nil {
		return err
	}
	if len(op.WaybillIDs) == 0 {
		return apperr.Malformed("Select at least one waybill.")
	}
	ws, err := loadWaybills(ctx, env, op.WaybillIDs)
	if err != nil {
		return err
	}
	if err := checkPayable(env, ws, 0); err != nil {
		return err
	}
	op.ws = ws
	return nil
}

func validatePayee(p *models.Payee) error {
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"payee_name", &p.Name},
		{"payee_phone", &p.Phone},
		{"payee_bank_name", &p.BankName},
		{"payee_bank_num", &p.BankNum},
		{"payee_credential_num", &p.CredentialNum},
	} {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return apperr.Malformed("Field %s is required.", f.name).With("field", f.name)
		}
	}
	return nil
}

func (op *CreateCargoPricePayment) Commit(ctx context.Context, env *Env) (Result, error) {
	p := &models.CargoPricePayment{
		Status:       models.CargoPricePaymentStatusCreated,
		CreateUserID: env.Actor.UserID,
		Payee:        op.Payee,
		CreatedAt:    env.Now,
	}
	if err := env.Tx.InsertCargoPricePayment(ctx, p); err != nil {
		return Result{}, err
	}
	if err := attach(ctx, env, op.ws, &p.ID); err != nil {
		return Result{}, err
	}
	return Result{Extra: map[string]any{"cpp_id": p.ID}}, nil
}

type SetCargoPricePaymentWaybills struct {
	CargoPricePaymentID uint64
	WaybillIDs          []uint64

	p                *models.CargoPricePayment
	removed, current []*models.Waybill
}

func (op *SetCargoPricePaymentWaybills) Permission() string {
	return models.PermManageCargoPricePayment
}

func (op *SetCargoPricePaymentWaybills) Validate(ctx context.Context, env *Env) error {
	p, err := loadCargoPricePayment(ctx, env, op.CargoPricePaymentID)
	if err != nil {
		return err
	}
	if err := requireEditable(env, p, "modify"); err != nil {
		return err
	}
	ws, err := loadWaybills(ctx, env, op.WaybillIDs)
	if err != nil {
		return err
	}
	if err := checkPayable(env, ws, p.ID); err != nil {
		return err
	}
	before, err := env.Tx.ListCargoPricePaymentWaybills(ctx, p.ID)
	if err != nil {
		return err
	}
	keep := lo.Map(ws, func(w *models.Waybill, _ int) uint64 { return w.ID })
	op.removed = lo.Filter(before, func(w *models.Waybill, _ int) bool { return !lo.Contains(keep, w.ID) })
	op.p, op.current = p, ws
	return nil
}

func (op *SetCargoPricePaymentWaybills) Commit(ctx context.Context, env *Env) (Result, error) {
	if err := attach(ctx, env, op.removed, nil); err != nil {
		return Result{}, err
	}
	if err := attach(ctx, env, op.current, &op.p.ID); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

type DropCargoPricePayment struct {
	CargoPricePaymentID uint64

	p *models.CargoPricePayment
}

func (op *DropCargoPricePayment) Permission() string { return models.PermManageCargoPricePayment }

func (op *DropCargoPricePayment) Validate(ctx context.Context, env *Env) error {
	p, err := loadCargoPricePayment(ctx, env, op.CargoPricePaymentID)
	if err != nil {
		return err
	}
	if err := requireEditable(env, p, "delete"); err != nil {
		return err
	}
	op.p = p
	return nil
}

// Commit relies on the store detaching the member waybills.
func (op *DropCargoPricePayment) Commit(ctx context.Context, env *Env) (Result, error) {
	if err := env.Tx.DeleteCargoPricePayment(ctx, op.p.ID); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

type SubmitCargoPricePayment struct {
	CargoPricePaymentID uint64

	p  *models.CargoPricePayment
	to models.CargoPricePaymentStatus
}

func (op *SubmitCargoPricePayment) Permission() string { return models.PermManageCargoPricePayment }

func (op *SubmitCargoPricePayment) Validate(ctx context.Context, env *Env) error {
	p, err := loadCargoPricePayment(ctx, env, op.CargoPricePaymentID)
	if err != nil {
		return err
	}
	if p.CreateUserID != env.Actor.UserID {
		return apperr.Unauthorized("Only the creator can submit this cargo price payment.")
	}
	to, err := transition(models.CargoPricePaymentTransitions, "cargo price payments", p.Status, models.CargoPricePaymentActionSubmit)
	if err != nil {
		return err
	}
	ws, err := env.Tx.ListCargoPricePaymentWaybills(ctx, p.ID)
	if err != nil {
		return err
	}
	if len(ws) == 0 {
		return apperr.InvalidState("The cargo price payment has no waybills.")
	}
	op.p, op.to = p, to
	return nil
}

func (op *SubmitCargoPricePayment) Commit(ctx context.Context, env *Env) (Result, error) {
	op.p.Status = op.to
	if err := env.Tx.UpdateCargoPricePayment(ctx, op.p); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

type ReviewCargoPricePayment struct {
	CargoPricePaymentID uint64

	p  *models.CargoPricePayment
	to models.CargoPricePaymentStatus
}

func (op *ReviewCargoPricePayment) Permission() string { return models.PermReviewCargoPricePayment }

func (op *ReviewCargoPricePayment) Validate(ctx context.Context, env *Env) error {
	p, err := loadCargoPricePayment(ctx, env, op.CargoPricePaymentID)
	if err != nil {
		return err
	}
	to, err := transition(models.CargoPricePaymentTransitions, "cargo price payments", p.Status, models.CargoPricePaymentActionReview)
	if err != nil {
		return err
	}
	op.p, op.to = p, to
	return nil
}

func (op *ReviewCargoPricePayment) Commit(ctx context.Context, env *Env) (Result, error) {
	op.p.Status = op.to
	op.p.RejectReason = ""
	if err := env.Tx.UpdateCargoPricePayment(ctx, op.p); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

type RejectCargoPricePayment struct {
	CargoPricePaymentID uint64
	Reason              string

	p  *models.CargoPricePayment
	to models.CargoPricePaymentStatus
}

func (op *RejectCargoPricePayment) Permission() string { return models.PermReviewCargoPricePayment }

func (op *RejectCargoPricePayment) Validate(ctx context.Context, env *Env) error {
	op.Reason = strings.TrimSpace(op.Reason)
	if op.Reason == "" {
		return apperr.Malformed("Field reject_reason is required.").With("field", "reject_reason")
	}
	p, err := loadCargoPricePayment(ctx, env, op.CargoPricePaymentID)
	if err != nil {
		return err
	}
	to, err := transition(models.CargoPricePaymentTransitions, "cargo price payments", p.Status, models.CargoPricePaymentActionReject)
	if err != nil {
		return err
	}
	op.p, op.to = p, to
	return nil
}

func (op *RejectCargoPricePayment) Commit(ctx context.Context, env *Env) (Result, error) {
	op.p.Status = op.to
	op.p.RejectReason = op.Reason
	if err := env.Tx.UpdateCargoPricePayment(ctx, op.p); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

// PayCargoPricePayment pays the payee and marks every member's cargo price Paid.
type PayCargoPricePayment struct {
	CargoPricePaymentID uint64

	p  *models.CargoPricePayment
	to models.CargoPricePaymentStatus
	ws []*models.Waybill
}

func (op *PayCargoPricePayment) Permission() string { return models.PermReviewCargoPricePayment }

func (op *PayCargoPricePayment) Validate(ctx context.Context, env *Env) error {
	p, err := loadCargoPricePayment(ctx, env, op.CargoPricePaymentID)
	if err != nil {
		return err
	}
	to, err := transition(models.CargoPricePaymentTransitions, "cargo price payments", p.Status, models.CargoPricePaymentActionPay)
	if err != nil {
		return err
	}
	ws, err := env.Tx.ListCargoPricePaymentWaybills(ctx, p.ID)
	if err != nil {
		return err
	}
	op.p, op.to, op.ws = p, to, ws
	return nil
}

func (op *PayCargoPricePayment) Commit(ctx context.Context, env *Env) (Result, error) {
	now := env.Now
	op.p.Status = op.to
	op.p.SettleAccountsTime = &now
	if err := env.Tx.UpdateCargoPricePayment(ctx, op.p); err != nil {
		return Result{}, err
	}
	for _, w := range op.ws {
		w.CargoPriceStatus = models.CargoPriceStatusPaid
		if err := env.Tx.UpdateWaybill(ctx, w); err != nil {
			return Result{}, err
		}
	}
	extra := settleTimeExtra("cpp", now)
	extra["total"] = models.CargoPricePaymentTotalsOf(op.ws).Final
	return Result{Extra: extra}, nil
}
