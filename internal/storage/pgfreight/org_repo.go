package pgfreight

import (
	"context"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const departmentColumns = `id, name, parent_id, unit_price, enable_src, enable_dst, enable_cargo_price, is_branch_group, is_goods_yard`

func queryDepartments(ctx context.Context, q querier, sql string, args ...any) ([]*models.Department, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select departments")
	}
	defer rows.Close()

	out := []*models.Department{}
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(
			&d.ID, &d.Name, &d.ParentID, &d.UnitPrice,
			&d.EnableSrc, &d.EnableDst, &d.EnableCargoPrice, &d.IsBranchGroup, &d.IsGoodsYard,
		); err != nil {
			return nil, errors.Wrap(err, "scan department")
		}
		out = append(out, &d)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	return queryDepartments(ctx, s.db, `SELECT `+departmentColumns+` FROM departments ORDER BY id`)
}

func (s *Storage) GetSettings(ctx context.Context) (models.Settings, error) {
	var st models.Settings
	err := s.db.QueryRow(ctx, `
SELECT company_name, handling_fee_ratio, customer_score_ratio
FROM settings
WHERE id = 1
`).Scan(&st.CompanyName, &st.HandlingFeeRatio, &st.CustomerScoreRatio)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, errors.Wrap(err, "select settings")
	}
	return st, nil
}

// GetUser also resolves the flags the role is derived from.
func (s *Storage) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `
SELECT u.id, u.name, u.department_id, u.enabled, u.administrator, u.permissions,
       d.is_goods_yard, COALESCE(p.is_branch_group, FALSE)
FROM users u
JOIN departments d ON d.id = u.department_id
LEFT JOIN departments p ON p.id = d.parent_id
WHERE u.id = $1
`, id).Scan(
		&u.ID, &u.Name, &u.DepartmentID, &u.Enabled, &u.Administrator, &u.Permissions,
		&u.DepartmentIsGoodsYard, &u.DepartmentInBranchGroup,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return &u, nil
}

func (t *pgTx) GetDepartments(ctx context.Context, ids []uint64) ([]*models.Department, error) {
	if len(ids) == 0 {
		return []*models.Department{}, nil
	}
	return queryDepartments(ctx, t.tx, `
SELECT `+departmentColumns+`
FROM departments
WHERE id = ANY($1)
ORDER BY id
FOR SHARE`, lo.Uniq(ids))
}

func (t *pgTx) GetCustomers(ctx context.Context, ids []uint64) ([]*models.Customer, error) {
	if len(ids) == 0 {
		return []*models.Customer{}, nil
	}
	rows, err := t.tx.Query(ctx, `
SELECT id, name, phone, enabled, is_vip, score
FROM customers
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE`, lo.Uniq(ids))
	if err != nil {
		return nil, errors.Wrap(err, "select customers")
	}
	defer rows.Close()

	out := []*models.Customer{}
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Enabled, &c.IsVIP, &c.Score); err != nil {
			return nil, errors.Wrap(err, "scan customer")
		}
		out = append(out, &c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (t *pgTx) GetTruck(ctx context.Context, id uint64) (*models.Truck, error) {
	var tr models.Truck
	err := t.tx.QueryRow(ctx, `SELECT id, number_plate, enabled FROM trucks WHERE id = $1 FOR SHARE`, id).
		Scan(&tr.ID, &tr.NumberPlate, &tr.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select truck")
	}
	return &tr, nil
}

func (t *pgTx) InsertScoreLogs(ctx context.Context, logs []*models.CustomerScoreLog) ([]*models.CustomerScoreLog, error) {
	inserted := make([]*models.CustomerScoreLog, 0, len(logs))
	for _, l := range logs {
		err := t.tx.QueryRow(ctx, `
INSERT INTO customer_score_logs (customer_id, inc_or_dec, score, remark, waybill_id, user_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (waybill_id) DO NOTHING
RETURNING id
`, l.CustomerID, l.IncOrDec, l.Score, l.Remark, l.WaybillID, l.UserID, l.CreatedAt.UTC()).Scan(&l.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "insert score log")
		}
		inserted = append(inserted, l)
	}
	return inserted, nil
}

func (t *pgTx) AddCustomerScore(ctx context.Context, customerID uint64, delta int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE customers SET score = score + $2 WHERE id = $1`, customerID, delta)
	if err != nil {
		return errors.Wrap(err, "update customer score")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
