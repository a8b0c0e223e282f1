package pgfreight

import (
	"context"
	"time"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const departmentPaymentColumns = `id, status, payment_date, src_department_id, dst_department_id, src_remark, dst_remark, created_at, settle_accounts_time`

func scanDepartmentPayment(row pgx.Row) (*models.DepartmentPayment, error) {
	var p models.DepartmentPayment
	var status int16
	if err := row.Scan(
		&p.ID, &status, &p.PaymentDate, &p.SrcDepartmentID, &p.DstDepartmentID,
		&p.SrcRemark, &p.DstRemark, &p.CreatedAt, &p.SettleAccountsTime,
	); err != nil {
		return nil, err
	}
	p.Status = models.DepartmentPaymentStatus(status)
	return &p, nil
}

func (s *Storage) GetDepartmentPayment(ctx context.Context, id uint64) (*models.DepartmentPayment, error) {
	p, err := scanDepartmentPayment(s.db.QueryRow(ctx, `SELECT `+departmentPaymentColumns+` FROM department_payments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select department payment")
	}
	return p, nil
}

func (s *Storage) ListDepartmentPaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error) {
	return listDepartmentPaymentWaybills(ctx, s.db, id, false)
}

func (t *pgTx) GetDepartmentPayments(ctx context.Context, ids []uint64) ([]*models.DepartmentPayment, error) {
	if len(ids) == 0 {
		return []*models.DepartmentPayment{}, nil
	}
	rows, err := t.tx.Query(ctx, `
SELECT `+departmentPaymentColumns+`
FROM department_payments
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE`, lo.Uniq(ids))
	if err != nil {
		return nil, errors.Wrap(err, "select department payments")
	}
	defer rows.Close()

	out := []*models.DepartmentPayment{}
	for rows.Next() {
		p, err := scanDepartmentPayment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan department payment")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (t *pgTx) ListDepartmentPaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error) {
	return listDepartmentPaymentWaybills(ctx, t.tx, id, true)
}

func (t *pgTx) DepartmentPaymentExists(ctx context.Context, srcID, dstID uint64, day time.Time) (bool, error) {
	d, _ := storage.DayRange(day)
	var exists bool
	err := t.tx.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM department_payments
  WHERE src_department_id = $1 AND dst_department_id = $2 AND payment_date = $3
)`, srcID, dstID, d).Scan(&exists)
	return exists, errors.Wrap(err, "check department payment")
}

func (t *pgTx) StatementWaybillIDs(ctx context.Context, srcID uint64, day time.Time) ([]uint64, error) {
	from, to := storage.DayRange(day)
	started := lo.Map(models.TransportOutStartedStatuses(), func(s models.TransportOutStatus, _ int) int16 { return int16(s) })

	rows, err := t.tx.Query(ctx, `
SELECT w.id
FROM waybills w
JOIN transport_out_waybills tw ON tw.waybill_id = w.id
JOIN transport_outs t ON t.id = tw.transport_out_id
WHERE t.src_department_id = $1
  AND t.status = ANY($2)
  AND t.start_time >= $3 AND t.start_time < $4
  AND w.src_department_id = $1
  AND w.fee_type = $5
UNION
SELECT id
FROM waybills
WHERE dst_department_id = $1
  AND status = $6
  AND sign_for_time >= $3 AND sign_for_time < $4
ORDER BY 1
`, srcID, started, from, to, int16(models.FeeTypeNow), int16(models.WaybillStatusSignedFor))
	if err != nil {
		return nil, errors.Wrap(err, "select statement waybills")
	}
	defer rows.Close()

	out := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan statement waybill")
		}
		out = append(out, id)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (t *pgTx) InsertDepartmentPayment(ctx context.Context, p *models.DepartmentPayment, waybillIDs []uint64) error {
	d, _ := storage.DayRange(p.PaymentDate)
	err := t.tx.QueryRow(ctx, `
INSERT INTO department_payments (status, payment_date, src_department_id, dst_department_id, src_remark, dst_remark, created_at, settle_accounts_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (src_department_id, dst_department_id, payment_date) DO NOTHING
RETURNING id
`, int16(p.Status), d, p.SrcDepartmentID, p.DstDepartmentID, p.SrcRemark, p.DstRemark,
		p.CreatedAt.UTC(), p.SettleAccountsTime).Scan(&p.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrAlreadyExists
	}
	if err != nil {
		return errors.Wrap(err, "insert department payment")
	}
	if len(waybillIDs) == 0 {
		return nil
	}

	_, err = t.tx.Exec(ctx, `
INSERT INTO department_payment_waybills (department_payment_id, waybill_id)
SELECT $1, unnest($2::BIGINT[])
`, p.ID, lo.Uniq(waybillIDs))
	return errors.Wrap(err, "insert department payment waybills")
}

func (t *pgTx) UpdateDepartmentPayment(ctx context.Context, p *models.DepartmentPayment) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE department_payments
SET status = $2, src_remark = $3, dst_remark = $4, settle_accounts_time = $5
WHERE id = $1
`, p.ID, int16(p.Status), p.SrcRemark, p.DstRemark, p.SettleAccountsTime)
	if err != nil {
		return errors.Wrap(err, "update department payment")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteDepartmentPayments(ctx context.Context, ids []uint64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM department_payments WHERE id = ANY($1)`, ids)
	return errors.Wrap(err, "delete department payments")
}

const cargoPricePaymentColumns = `id, status, create_user_id, payee_name, payee_phone, payee_bank_name, payee_bank_num, payee_credential_num, reject_reason, created_at, settle_accounts_time`

func getCargoPricePayment(ctx context.Context, q querier, id uint64, lock bool) (*models.CargoPricePayment, error) {
	var p models.CargoPricePayment
	var status int16
	err := q.QueryRow(ctx, `SELECT `+cargoPricePaymentColumns+` FROM cargo_price_payments WHERE id = $1`+forUpdate(lock, ""), id).Scan(
		&p.ID, &status, &p.CreateUserID,
		&p.Payee.Name, &p.Payee.Phone, &p.Payee.BankName, &p.Payee.BankNum, &p.Payee.CredentialNum,
		&p.RejectReason, &p.CreatedAt, &p.SettleAccountsTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select cargo price payment")
	}
	p.Status = models.CargoPricePaymentStatus(status)
	return &p, nil
}

func (s *Storage) GetCargoPricePayment(ctx context.Context, id uint64) (*models.CargoPricePayment, error) {
	return getCargoPricePayment(ctx, s.db, id, false)
}

func (s *Storage) ListCargoPricePaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error) {
	return listCargoPricePaymentWaybills(ctx, s.db, id, false)
}

func (t *pgTx) GetCargoPricePayment(ctx context.Context, id uint64) (*models.CargoPricePayment, error) {
	return getCargoPricePayment(ctx, t.tx, id, true)
}

func (t *pgTx) ListCargoPricePaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error) {
	return listCargoPricePaymentWaybills(ctx, t.tx, id, true)
}

func (t *pgTx) InsertCargoPricePayment(ctx context.Context, p *models.CargoPricePayment) error {
	err := t.tx.QueryRow(ctx, `
INSERT INTO cargo_price_payments (
  status, create_user_id,
  payee_name, payee_phone, payee_bank_name, payee_bank_num, payee_credential_num,
  reject_reason, created_at, settle_accounts_time
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id
`, int16(p.Status), p.CreateUserID,
		p.Payee.Name, p.Payee.Phone, p.Payee.BankName, p.Payee.BankNum, p.Payee.CredentialNum,
		p.RejectReason, p.CreatedAt.UTC(), p.SettleAccountsTime).Scan(&p.ID)
	return errors.Wrap(err, "insert cargo price payment")
}

func (t *pgTx) UpdateCargoPricePayment(ctx context.Context, p *models.CargoPricePayment) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE cargo_price_payments
SET status = $2,
    payee_name = $3, payee_phone = $4, payee_bank_name = $5, payee_bank_num = $6, payee_credential_num = $7,
    reject_reason = $8, settle_accounts_time = $9
WHERE id = $1
`, p.ID, int16(p.Status),
		p.Payee.Name, p.Payee.Phone, p.Payee.BankName, p.Payee.BankNum, p.Payee.CredentialNum,
		p.RejectReason, p.SettleAccountsTime)
	if err != nil {
		return errors.Wrap(err, "update cargo price payment")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteCargoPricePayment detaches the member waybills through ON DELETE SET NULL.
func (t *pgTx) DeleteCargoPricePayment(ctx context.Context, id uint64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cargo_price_payments WHERE id = $1`, id)
	return errors.Wrap(err, "delete cargo price payment")
}
