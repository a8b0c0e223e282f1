package actions

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/storage"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// CreateStatement inserts the Created statement src owes dst for day, with its
// waybills picked automatically. A statement that already exists is InvalidState.
func CreateStatement(ctx context.Context, tx storage.Tx, src, dst uint64, day, now time.Time) (*models.DepartmentPayment, []uint64, error) {
	dayStart, _ := storage.DayRange(day)
	exists, err := tx.DepartmentPaymentExists(ctx, src, dst, dayStart)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, statementExists(dayStart)
	}
	ids, err := tx.StatementWaybillIDs(ctx, src, dayStart)
	if err != nil {
		return nil, nil, err
	}
	p := &models.DepartmentPayment{
		Status:          models.DepartmentPaymentStatusCreated,
		PaymentDate:     dayStart,
		SrcDepartmentID: src,
		DstDepartmentID: dst,
		CreatedAt:       now,
	}
	if err := tx.InsertDepartmentPayment(ctx, p, ids); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, nil, statementExists(dayStart)
		}
		return nil, nil, err
	}
	return p, ids, nil
}

func statementExists(day time.Time) error {
	return apperr.InvalidState("The department payment for %s already exists.", day.Format(time.DateOnly)).
		With("payment_date", day.Format(time.DateOnly))
}

// loadDepartmentPayments returns the payments in ids order. Any missing id is NotFound.
func loadDepartmentPayments(ctx context.Context, env *Env, ids []uint64) ([]*models.DepartmentPayment, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, apperr.Malformed("Invalid request format!")
	}
	ps, err := env.Tx.GetDepartmentPayments(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(ps) != len(ids) {
		found := lo.Map(ps, func(p *models.DepartmentPayment, _ int) uint64 { return p.ID })
		missing, _ := lo.Difference(ids, found)
		return nil, apperr.NotFound("There are non-existent department payments in the request!").With("missing_ids", missing)
	}
	byID := lo.KeyBy(ps, func(p *models.DepartmentPayment) uint64 { return p.ID })
	return lo.Map(ids, func(id uint64, _ int) *models.DepartmentPayment { return byID[id] }), nil
}

// moveDepartmentPayments checks that every payment accepts action and returns the target status.
func moveDepartmentPayments(ps []*models.DepartmentPayment, action models.DepartmentPaymentAction) (models.DepartmentPaymentStatus, error) {
	var to models.DepartmentPaymentStatus
	for _, p := range ps {
		next, err := transition(models.DepartmentPaymentTransitions, "department payments", p.Status, action)
		if err != nil {
			return 0, err
		}
		to = next
	}
	return to, nil
}

type CreateDepartmentPayment struct {
	PaymentDate     time.Time
	SrcDepartmentID uint64
	DstDepartmentID uint64
}

func (op *CreateDepartmentPayment) Permission() string { return models.PermManageDepartmentPayment }

func (op *CreateDepartmentPayment) Validate(ctx context.Context, env *Env) error {
	if op.PaymentDate.IsZero() || op.SrcDepartmentID == 0 || op.DstDepartmentID == 0 {
		return apperr.Malformed("Invalid request format!")
	}
	if op.SrcDepartmentID == op.DstDepartmentID {
		return apperr.Malformed("The paying department cannot be the receiving department.")
	}
	if op.PaymentDate.After(env.Now) {
		return apperr.Malformed("A department payment cannot cover a future day.")
	}
	if _, err := loadDepartment(ctx, env, op.SrcDepartmentID); err != nil {
		return err
	}
	if _, err := loadDepartment(ctx, env, op.DstDepartmentID); err != nil {
		return err
	}
	return nil
}

func (op *CreateDepartmentPayment) Commit(ctx context.Context, env *Env) (Result, error) {
	p, ids, err := CreateStatement(ctx, env.Tx, op.SrcDepartmentID, op.DstDepartmentID, op.PaymentDate, env.Now)
	if err != nil {
		return Result{}, err
	}
	return Result{Extra: map[string]any{"dp_id": p.ID, "dp_full_id": p.FullID(), "waybill_count": len(ids)}}, nil
}

const (
	RemarkSideSrc = "src"
	RemarkSideDst = "dst"
)

type ModifyDepartmentPaymentRemark struct {
	DepartmentPaymentID uint64
	Side                string
	Text                string

	p *models.DepartmentPayment
}

func (op *ModifyDepartmentPaymentRemark) Permission() string { return models.PermManageDepartmentPayment }

func (op *ModifyDepartmentPaymentRemark) Validate(ctx context.Context, env *Env) error {
	if op.DepartmentPaymentID == 0 || (op.Side != RemarkSideSrc && op.Side != RemarkSideDst) {
		return apperr.Malformed("Invalid request format!")
	}
	ps, err := loadDepartmentPayments(ctx, env, []uint64{op.DepartmentPaymentID})
	if err != nil {
		return err
	}
	p := ps[0]
	if p.Status == models.DepartmentPaymentStatusSettled {
		return apperr.InvalidState("The remark of a settled department payment cannot be modified.")
	}
	owner := p.SrcDepartmentID
	if op.Side == RemarkSideDst {
		owner = p.DstDepartmentID
	}
	if owner != env.Actor.DepartmentID {
		return apperr.Unauthorized("Only the %s department can modify this remark.", op.Side)
	}
	op.p = p
	return nil
}

func (op *ModifyDepartmentPaymentRemark) Commit(ctx context.Context, env *Env) (Result, error) {
	text := strings.TrimSpace(op.Text)
	if op.Side == RemarkSideSrc {
		op.p.SrcRemark = text
	} else {
		op.p.DstRemark = text
	}
	if err := env.Tx.UpdateDepartmentPayment(ctx, op.p); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

type DropDepartmentPayment struct {
	IDs []uint64
}

func (op *DropDepartmentPayment) Permission() string { return models.PermManageDepartmentPayment }

func (op *DropDepartmentPayment) Validate(ctx context.Context, env *Env) error {
	ps, err := loadDepartmentPayments(ctx, env, op.IDs)
	if err != nil {
		return err
	}
	for _, p := range ps {
		if p.Status != models.DepartmentPaymentStatusCreated {
			return apperr.InvalidState(`Only department payments in "%s" status can be deleted, this one is "%s".`,
				models.DepartmentPaymentStatusCreated, p.Status).
				With("required_status", []string{models.DepartmentPaymentStatusCreated.String()})
		}
	}
	return nil
}

func (op *DropDepartmentPayment) Commit(ctx context.Context, env *Env) (Result, error) {
	if err := env.Tx.DeleteDepartmentPayments(ctx, lo.Uniq(op.IDs)); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

type ReviewDepartmentPayment struct {
	IDs []uint64

	ps []*models.DepartmentPayment
	to models.DepartmentPaymentStatus
}

func (op *ReviewDepartmentPayment) Permission() string { return models.PermReviewDepartmentPayment }

func (op *ReviewDepartmentPayment) Validate(ctx context.Context, env *Env) error {
	ps, err := loadDepartmentPayments(ctx, env, op.IDs)
	if err != nil {
		return err
	}
	op.to, err = moveDepartmentPayments(ps, models.DepartmentPaymentActionReview)
	op.ps = ps
	return err
}

func (op *ReviewDepartmentPayment) Commit(ctx context.Context, env *Env) (Result, error) {
	for _, p := range op.ps {
		p.Status = op.to
		if err := env.Tx.UpdateDepartmentPayment(ctx, p); err != nil {
			return Result{}, err
		}
	}
	return Result{}, nil
}

type PayDepartmentPayment struct {
	IDs []uint64

	ps []*models.DepartmentPayment
	to models.DepartmentPaymentStatus
}

func (op *PayDepartmentPayment) Permission() string { return models.PermManageDepartmentPayment }

func (op *PayDepartmentPayment) Validate(ctx context.Context, env *Env) error {
	ps, err := loadDepartmentPayments(ctx, env, op.IDs)
	if err != nil {
		return err
	}
	for _, p := range ps {
		if p.SrcDepartmentID != env.Actor.DepartmentID {
			return apperr.Unauthorized("Only the paying department can confirm payment %s.", p.FullID())
		}
	}
	op.to, err = moveDepartmentPayments(ps, models.DepartmentPaymentActionPay)
	op.ps = ps
	return err
}

func (op *PayDepartmentPayment) Commit(ctx context.Context, env *Env) (Result, error) {
	for _, p := range op.ps {
		p.Status = op.to
		if err := env.Tx.UpdateDepartmentPayment(ctx, p); err != nil {
			return Result{}, err
		}
	}
	return Result{}, nil
}

// SettleDepartmentPayment closes paid statements and credits VIP senders with
// score for the fees the paying department collected.
type SettleDepartmentPayment struct {
	IDs []uint64

	ps []*models.DepartmentPayment
	to models.DepartmentPaymentStatus
}

func (op *SettleDepartmentPayment) Permission() string { return models.PermReviewDepartmentPayment }

func (op *SettleDepartmentPayment) Validate(ctx context.Context, env *Env) error {
	ps, err := loadDepartmentPayments(ctx, env, op.IDs)
	if err != nil {
		return err
	}
	op.to, err = moveDepartmentPayments(ps, models.DepartmentPaymentActionSettle)
	op.ps = ps
	return err
}

func (op *SettleDepartmentPayment) Commit(ctx context.Context, env *Env) (Result, error) {
	now := env.Now
	var credited int64
	for _, p := range op.ps {
		p.Status = op.to
		p.SettleAccountsTime = &now
		if err := env.Tx.UpdateDepartmentPayment(ctx, p); err != nil {
			return Result{}, err
		}
		n, err := accrueScores(ctx, env, p)
		if err != nil {
			return Result{}, err
		}
		credited += n
	}
	extra := settleTimeExtra("dp", now)
	extra["score_credited"] = credited
	return Result{Extra: extra}, nil
}

// accrueScores writes the score logs for p and returns the score actually added.
// Waybills that already carry a log are skipped by the store.
func accrueScores(ctx context.Context, env *Env, p *models.DepartmentPayment) (int64, error) {
	ws, err := env.Tx.ListDepartmentPaymentWaybills(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	senderIDs := lo.Uniq(lo.FilterMap(ws, func(w *models.Waybill, _ int) (uint64, bool) {
		if w.SrcCustomerID == nil {
			return 0, false
		}
		return *w.SrcCustomerID, true
	}))
	if len(senderIDs) == 0 {
		return 0, nil
	}
	customers, err := env.Tx.GetCustomers(ctx, senderIDs)
	if err != nil {
		return 0, err
	}
	vip := make(map[uint64]bool, len(customers))
	for _, c := range customers {
		vip[c.ID] = c.IsVIP
	}

	changes := models.ScoreChanges(p, ws, vip, env.Settings.CustomerScoreRatio)
	if len(changes) == 0 {
		return 0, nil
	}
	logs := lo.Map(changes, func(c models.ScoreChange, _ int) *models.CustomerScoreLog {
		waybillID := c.WaybillID
		return &models.CustomerScoreLog{
			CustomerID: c.CustomerID,
			IncOrDec:   true,
			Score:      c.Score,
			Remark:     models.ScoreLogRemarkSettlement,
			WaybillID:  &waybillID,
			UserID:     env.Actor.UserID,
			CreatedAt:  env.Now,
		}
	})
	inserted, err := env.Tx.InsertScoreLogs(ctx, logs)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, l := range inserted {
		if err := env.Tx.AddCustomerScore(ctx, l.CustomerID, l.Score); err != nil {
			return 0, err
		}
		total += l.Score
	}
	return total, nil
}
