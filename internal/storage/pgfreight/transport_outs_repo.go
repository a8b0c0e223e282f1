package pgfreight

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const transportOutColumns = `id, status, truck_id, driver_name, driver_phone, src_department_id, dst_department_id, created_at, start_time, end_time`

func scanTransportOut(row pgx.Row) (*models.TransportOut, error) {
	var t models.TransportOut
	var status int16
	if err := row.Scan(
		&t.ID, &status, &t.TruckID, &t.DriverName, &t.DriverPhone,
		&t.SrcDepartmentID, &t.DstDepartmentID, &t.CreatedAt, &t.StartTime, &t.EndTime,
	); err != nil {
		return nil, err
	}
	t.Status = models.TransportOutStatus(status)
	return &t, nil
}

func getTransportOut(ctx context.Context, q querier, id uint64, lock bool) (*models.TransportOut, error) {
	t, err := scanTransportOut(q.QueryRow(ctx, `SELECT `+transportOutColumns+` FROM transport_outs WHERE id = $1`+forUpdate(lock, ""), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select transport out")
	}
	return t, nil
}

func (s *Storage) GetTransportOut(ctx context.Context, id uint64) (*models.TransportOut, error) {
	return getTransportOut(ctx, s.db, id, false)
}

func (s *Storage) ListTransportOutWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error) {
	return listTransportOutWaybills(ctx, s.db, id, false)
}

func transportOutWhere(f models.TransportOutFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", lo.Map(f.Statuses, func(s models.TransportOutStatus, _ int) int16 { return int16(s) }))
	}
	if f.SrcDepartmentID != nil {
		add("src_department_id = $%d", *f.SrcDepartmentID)
	}
	if f.DstDepartmentID != nil {
		add("dst_department_id = $%d", *f.DstDepartmentID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (s *Storage) SearchTransportOuts(ctx context.Context, f models.TransportOutFilter) ([]*models.TransportOut, error) {
	limit, offset := normalizePage(f.Limit, f.Offset)
	where, args := transportOutWhere(f)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM transport_outs
%s
ORDER BY id DESC
LIMIT $%d OFFSET $%d
`, transportOutColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, errors.Wrap(err, "select transport outs")
	}
	defer rows.Close()

	out := []*models.TransportOut{}
	for rows.Next() {
		t, err := scanTransportOut(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan transport out")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) CountTransportOuts(ctx context.Context, f models.TransportOutFilter) (int, error) {
	where, args := transportOutWhere(f)
	var n int
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM transport_outs "+where, args...).Scan(&n)
	return n, errors.Wrap(err, "count transport outs")
}

func (t *pgTx) GetTransportOut(ctx context.Context, id uint64) (*models.TransportOut, error) {
	return getTransportOut(ctx, t.tx, id, true)
}

func (t *pgTx) ListTransportOutWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error) {
	return listTransportOutWaybills(ctx, t.tx, id, true)
}

func (t *pgTx) InsertTransportOut(ctx context.Context, to *models.TransportOut) error {
	err := t.tx.QueryRow(ctx, `
INSERT INTO transport_outs (status, truck_id, driver_name, driver_phone, src_department_id, dst_department_id, created_at, start_time, end_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id
`, int16(to.Status), to.TruckID, to.DriverName, to.DriverPhone, to.SrcDepartmentID, to.DstDepartmentID,
		to.CreatedAt.UTC(), to.StartTime, to.EndTime).Scan(&to.ID)
	return errors.Wrap(err, "insert transport out")
}

func (t *pgTx) UpdateTransportOut(ctx context.Context, to *models.TransportOut) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE transport_outs
SET status = $2, truck_id = $3, driver_name = $4, driver_phone = $5,
    dst_department_id = $6, start_time = $7, end_time = $8
WHERE id = $1
`, to.ID, int16(to.Status), to.TruckID, to.DriverName, to.DriverPhone, to.DstDepartmentID, to.StartTime, to.EndTime)
	if err != nil {
		return errors.Wrap(err, "update transport out")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (t *pgTx) SetTransportOutWaybills(ctx context.Context, id uint64, waybillIDs []uint64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM transport_out_waybills WHERE transport_out_id = $1`, id); err != nil {
		return errors.Wrap(err, "clear transport out waybills")
	}
	if len(waybillIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
INSERT INTO transport_out_waybills (transport_out_id, waybill_id)
SELECT $1, unnest($2::BIGINT[])
`, id, lo.Uniq(waybillIDs))
	return errors.Wrap(err, "insert transport out waybills")
}

func (t *pgTx) DeleteTransportOut(ctx context.Context, id uint64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM transport_outs WHERE id = $1`, id)
	return errors.Wrap(err, "delete transport out")
}
