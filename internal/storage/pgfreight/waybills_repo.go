package pgfreight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// waybillWriteColumns follow the order of waybillArgs.
var waybillWriteColumns = []string{
	"status", "src_department_id", "dst_department_id",
	"src_customer_id", "src_customer_name", "src_customer_phone", "src_customer_credential_num", "src_customer_address",
	"dst_customer_id", "dst_customer_name", "dst_customer_phone", "dst_customer_credential_num", "dst_customer_address",
	"cargo_name", "cargo_num", "cargo_volume", "cargo_weight",
	"cargo_price", "cargo_handling_fee", "cargo_price_status",
	"fee", "fee_type", "customer_remark", "company_remark",
	"sign_for_customer_name", "sign_for_customer_credential_num", "drop_reason",
	"return_waybill_id", "cargo_price_payment_id",
	"created_at", "arrival_time", "sign_for_time",
}

var (
	waybillColumns   = "w.id, w." + strings.Join(waybillWriteColumns, ", w.")
	insertWaybillSQL string
	updateWaybillSQL string
)

func init() {
	ph := make([]string, len(waybillWriteColumns))
	set := make([]string, len(waybillWriteColumns))
	for i, c := range waybillWriteColumns {
		ph[i] = fmt.Sprintf("$%d", i+1)
		set[i] = fmt.Sprintf("%s = $%d", c, i+2)
	}
	insertWaybillSQL = "INSERT INTO waybills (" + strings.Join(waybillWriteColumns, ", ") +
		") VALUES (" + strings.Join(ph, ", ") + ") RETURNING id"
	updateWaybillSQL = "UPDATE waybills SET " + strings.Join(set, ", ") + " WHERE id = $1"
}

func waybillArgs(w *models.Waybill) []any {
	return []any{
		int16(w.Status), w.SrcDepartmentID, w.DstDepartmentID,
		w.SrcCustomerID, w.SrcCustomerName, w.SrcCustomerPhone, w.SrcCustomerCredentialNum, w.SrcCustomerAddress,
		w.DstCustomerID, w.DstCustomerName, w.DstCustomerPhone, w.DstCustomerCredentialNum, w.DstCustomerAddress,
		w.CargoName, w.CargoNum, w.CargoVolume, w.CargoWeight,
		w.CargoPrice, w.CargoHandlingFee, int16(w.CargoPriceStatus),
		w.Fee, int16(w.FeeType), w.CustomerRemark, w.CompanyRemark,
		w.SignForCustomerName, w.SignForCustomerCredentialNum, w.DropReason,
		w.ReturnWaybillID, w.CargoPricePaymentID,
		w.CreatedAt.UTC(), w.ArrivalTime, w.SignForTime,
	}
}

func scanWaybill(row pgx.Row) (*models.Waybill, error) {
	var w models.Waybill
	var status, cargoPriceStatus, feeType int16
	if err := row.Scan(
		&w.ID, &status, &w.SrcDepartmentID, &w.DstDepartmentID,
		&w.SrcCustomerID, &w.SrcCustomerName, &w.SrcCustomerPhone, &w.SrcCustomerCredentialNum, &w.SrcCustomerAddress,
		&w.DstCustomerID, &w.DstCustomerName, &w.DstCustomerPhone, &w.DstCustomerCredentialNum, &w.DstCustomerAddress,
		&w.CargoName, &w.CargoNum, &w.CargoVolume, &w.CargoWeight,
		&w.CargoPrice, &w.CargoHandlingFee, &cargoPriceStatus,
		&w.Fee, &feeType, &w.CustomerRemark, &w.CompanyRemark,
		&w.SignForCustomerName, &w.SignForCustomerCredentialNum, &w.DropReason,
		&w.ReturnWaybillID, &w.CargoPricePaymentID,
		&w.CreatedAt, &w.ArrivalTime, &w.SignForTime,
	); err != nil {
		return nil, err
	}
	w.Status = models.WaybillStatus(status)
	w.CargoPriceStatus = models.CargoPriceStatus(cargoPriceStatus)
	w.FeeType = models.FeeType(feeType)
	return &w, nil
}

func collectWaybills(rows pgx.Rows, err error) ([]*models.Waybill, error) {
	if err != nil {
		return nil, errors.Wrap(err, "select waybills")
	}
	defer rows.Close()

	out := []*models.Waybill{}
	for rows.Next() {
		w, err := scanWaybill(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan waybill")
		}
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func getWaybills(ctx context.Context, q querier, ids []uint64, lock bool) ([]*models.Waybill, error) {
	if len(ids) == 0 {
		return []*models.Waybill{}, nil
	}
	return collectWaybills(q.Query(ctx, `
SELECT `+waybillColumns+`
FROM waybills w
WHERE w.id = ANY($1)
ORDER BY w.id`+forUpdate(lock, ""), lo.Uniq(ids)))
}

func listTransportOutWaybills(ctx context.Context, q querier, id uint64, lock bool) ([]*models.Waybill, error) {
	return collectWaybills(q.Query(ctx, `
SELECT `+waybillColumns+`
FROM waybills w
JOIN transport_out_waybills tw ON tw.waybill_id = w.id
WHERE tw.transport_out_id = $1
ORDER BY w.id`+forUpdate(lock, "w"), id))
}

func listDepartmentPaymentWaybills(ctx context.Context, q querier, id uint64, lock bool) ([]*models.Waybill, error) {
	return collectWaybills(q.Query(ctx, `
SELECT `+waybillColumns+`
FROM waybills w
JOIN department_payment_waybills dw ON dw.waybill_id = w.id
WHERE dw.department_payment_id = $1
ORDER BY w.id`+forUpdate(lock, "w"), id))
}

func listCargoPricePaymentWaybills(ctx context.Context, q querier, id uint64, lock bool) ([]*models.Waybill, error) {
	return collectWaybills(q.Query(ctx, `
SELECT `+waybillColumns+`
FROM waybills w
WHERE w.cargo_price_payment_id = $1
ORDER BY w.id`+forUpdate(lock, ""), id))
}

func (s *Storage) GetWaybillsByIDs(ctx context.Context, ids []uint64) ([]*models.Waybill, error) {
	return getWaybills(ctx, s.db, ids, false)
}

func waybillWhere(f models.WaybillFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(f.IDs) > 0 {
		add("w.id = ANY($%d)", f.IDs)
	}
	if len(f.Statuses) > 0 {
		add("w.status = ANY($%d)", lo.Map(f.Statuses, func(s models.WaybillStatus, _ int) int16 { return int16(s) }))
	}
	if f.SrcDepartmentID != nil {
		add("w.src_department_id = $%d", *f.SrcDepartmentID)
	}
	if f.DstDepartmentID != nil {
		add("w.dst_department_id = $%d", *f.DstDepartmentID)
	}
	if f.CreatedFrom != nil {
		add("w.created_at >= $%d", f.CreatedFrom.UTC())
	}
	if f.CreatedTo != nil {
		add("w.created_at < $%d", f.CreatedTo.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (s *Storage) SearchWaybills(ctx context.Context, f models.WaybillFilter) ([]*models.Waybill, error) {
	limit, offset := normalizePage(f.Limit, f.Offset)
	where, args := waybillWhere(f)
	args = append(args, limit, offset)
	return collectWaybills(s.db.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM waybills w
%s
ORDER BY w.id DESC
LIMIT $%d OFFSET $%d
`, waybillColumns, where, len(args)-1, len(args)), args...))
}

func (s *Storage) CountWaybills(ctx context.Context, f models.WaybillFilter) (int, error) {
	where, args := waybillWhere(f)
	var n int
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM waybills w "+where, args...).Scan(&n)
	return n, errors.Wrap(err, "count waybills")
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Storage) ListWaybillRoutings(ctx context.Context, waybillID uint64, limit, offset int) ([]*models.WaybillRouting, error) {
	limit, offset = normalizePage(limit, offset)

	rows, err := s.db.Query(ctx, `
SELECT id, waybill_id, time, operation_type, department_id, user_id, operation_info
FROM waybill_routings
WHERE waybill_id = $1
ORDER BY time ASC, id ASC
LIMIT $2 OFFSET $3
`, waybillID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select routings")
	}
	defer rows.Close()

	out := []*models.WaybillRouting{}
	for rows.Next() {
		var r models.WaybillRouting
		var op int16
		var info []byte
		if err := rows.Scan(&r.ID, &r.WaybillID, &r.Time, &op, &r.DepartmentID, &r.UserID, &info); err != nil {
			return nil, errors.Wrap(err, "scan routing")
		}
		r.OperationType = models.WaybillStatus(op)
		if len(info) > 0 {
			if err := json.Unmarshal(info, &r.Info); err != nil {
				return nil, errors.Wrap(err, "decode operation_info")
			}
		}
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (t *pgTx) GetWaybills(ctx context.Context, ids []uint64) ([]*models.Waybill, error) {
	return getWaybills(ctx, t.tx, ids, true)
}

func (t *pgTx) InsertWaybill(ctx context.Context, w *models.Waybill) error {
	err := t.tx.QueryRow(ctx, insertWaybillSQL, waybillArgs(w)...).Scan(&w.ID)
	return errors.Wrap(err, "insert waybill")
}

func (t *pgTx) UpdateWaybill(ctx context.Context, w *models.Waybill) error {
	tag, err := t.tx.Exec(ctx, updateWaybillSQL, append([]any{w.ID}, waybillArgs(w)...)...)
	if err != nil {
		return errors.Wrap(err, "update waybill")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertRoutings(ctx context.Context, rs []*models.WaybillRouting) error {
	for _, r := range rs {
		info, err := json.Marshal(r.Info)
		if err != nil {
			return errors.Wrap(err, "encode operation_info")
		}
		err = t.tx.QueryRow(ctx, `
INSERT INTO waybill_routings (waybill_id, time, operation_type, department_id, user_id, operation_info)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, r.WaybillID, r.Time.UTC(), int16(r.OperationType), r.DepartmentID, r.UserID, info).Scan(&r.ID)
		if err != nil {
			return errors.Wrap(err, "insert routing")
		}
	}
	return nil
}
