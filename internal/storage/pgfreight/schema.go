package pgfreight

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS settings (
  id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
  company_name TEXT NOT NULL,
  handling_fee_ratio DOUBLE PRECISION NOT NULL CHECK (handling_fee_ratio > 0 AND handling_fee_ratio <= 1),
  customer_score_ratio DOUBLE PRECISION NOT NULL CHECK (customer_score_ratio >= 0)
)`,
		`INSERT INTO settings (id, company_name, handling_fee_ratio, customer_score_ratio)
VALUES (1, 'FreightBox', 0.002, 1)
ON CONFLICT (id) DO NOTHING`,
		`
CREATE TABLE IF NOT EXISTS departments (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  parent_id BIGINT NULL REFERENCES departments(id),
  unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
  enable_src BOOLEAN NOT NULL DEFAULT FALSE,
  enable_dst BOOLEAN NOT NULL DEFAULT FALSE,
  enable_cargo_price BOOLEAN NOT NULL DEFAULT FALSE,
  is_branch_group BOOLEAN NOT NULL DEFAULT FALSE,
  is_goods_yard BOOLEAN NOT NULL DEFAULT FALSE
)`,
		`
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  department_id BIGINT NOT NULL REFERENCES departments(id),
  enabled BOOLEAN NOT NULL DEFAULT TRUE,
  administrator BOOLEAN NOT NULL DEFAULT FALSE,
  permissions TEXT[] NOT NULL DEFAULT '{}'
)`,
		`
CREATE TABLE IF NOT EXISTS customers (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL UNIQUE,
  enabled BOOLEAN NOT NULL DEFAULT TRUE,
  is_vip BOOLEAN NOT NULL DEFAULT FALSE,
  score BIGINT NOT NULL DEFAULT 0
)`,
		`
CREATE TABLE IF NOT EXISTS trucks (
  id BIGSERIAL PRIMARY KEY,
  number_plate TEXT NOT NULL UNIQUE,
  enabled BOOLEAN NOT NULL DEFAULT TRUE
)`,
		`
CREATE TABLE IF NOT EXISTS cargo_price_payments (
  id BIGSERIAL PRIMARY KEY,
  status SMALLINT NOT NULL,
  create_user_id BIGINT NOT NULL REFERENCES users(id),
  payee_name TEXT NOT NULL,
  payee_phone TEXT NOT NULL,
  payee_bank_name TEXT NOT NULL,
  payee_bank_num TEXT NOT NULL,
  payee_credential_num TEXT NOT NULL,
  reject_reason TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  settle_accounts_time TIMESTAMPTZ NULL
)`,
		`
CREATE TABLE IF NOT EXISTS waybills (
  id BIGSERIAL PRIMARY KEY,
  status SMALLINT NOT NULL,
  src_department_id BIGINT NOT NULL REFERENCES departments(id),
  dst_department_id BIGINT NOT NULL REFERENCES departments(id),
  src_customer_id BIGINT NULL REFERENCES customers(id),
  src_customer_name TEXT NOT NULL,
  src_customer_phone TEXT NOT NULL,
  src_customer_credential_num TEXT NOT NULL DEFAULT '',
  src_customer_address TEXT NOT NULL DEFAULT '',
  dst_customer_id BIGINT NULL REFERENCES customers(id),
  dst_customer_name TEXT NOT NULL,
  dst_customer_phone TEXT NOT NULL,
  dst_customer_credential_num TEXT NOT NULL DEFAULT '',
  dst_customer_address TEXT NOT NULL DEFAULT '',
  cargo_name TEXT NOT NULL,
  cargo_num INTEGER NOT NULL,
  cargo_volume DOUBLE PRECISION NOT NULL,
  cargo_weight DOUBLE PRECISION NOT NULL,
  cargo_price BIGINT NOT NULL DEFAULT 0,
  cargo_handling_fee BIGINT NOT NULL DEFAULT 0,
  cargo_price_status SMALLINT NOT NULL,
  fee BIGINT NOT NULL,
  fee_type SMALLINT NOT NULL,
  customer_remark TEXT NOT NULL DEFAULT '',
  company_remark TEXT NOT NULL DEFAULT '',
  sign_for_customer_name TEXT NOT NULL DEFAULT '',
  sign_for_customer_credential_num TEXT NOT NULL DEFAULT '',
  drop_reason TEXT NOT NULL DEFAULT '',
  return_waybill_id BIGINT NULL REFERENCES waybills(id),
  cargo_price_payment_id BIGINT NULL REFERENCES cargo_price_payments(id) ON DELETE SET NULL,
  created_at TIMESTAMPTZ NOT NULL,
  arrival_time TIMESTAMPTZ NULL,
  sign_for_time TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_waybills_src_status ON waybills(src_department_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_waybills_dst_status ON waybills(dst_department_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_waybills_sign_for_time ON waybills(sign_for_time)`,
		`CREATE INDEX IF NOT EXISTS idx_waybills_cargo_price_payment_id ON waybills(cargo_price_payment_id)`,
		`
CREATE TABLE IF NOT EXISTS transport_outs (
  id BIGSERIAL PRIMARY KEY,
  status SMALLINT NOT NULL,
  truck_id BIGINT NOT NULL REFERENCES trucks(id),
  driver_name TEXT NOT NULL,
  driver_phone TEXT NOT NULL,
  src_department_id BIGINT NOT NULL REFERENCES departments(id),
  dst_department_id BIGINT NOT NULL REFERENCES departments(id),
  created_at TIMESTAMPTZ NOT NULL,
  start_time TIMESTAMPTZ NULL,
  end_time TIMESTAMPTZ NULL
)`,
		`
CREATE TABLE IF NOT EXISTS transport_out_waybills (
  transport_out_id BIGINT NOT NULL REFERENCES transport_outs(id) ON DELETE CASCADE,
  waybill_id BIGINT NOT NULL REFERENCES waybills(id),
  PRIMARY KEY (transport_out_id, waybill_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_transport_out_waybills_waybill_id ON transport_out_waybills(waybill_id)`,
		`
CREATE TABLE IF NOT EXISTS waybill_routings (
  id BIGSERIAL PRIMARY KEY,
  waybill_id BIGINT NOT NULL REFERENCES waybills(id),
  time TIMESTAMPTZ NOT NULL,
  operation_type SMALLINT NOT NULL,
  department_id BIGINT NOT NULL REFERENCES departments(id),
  user_id BIGINT NOT NULL REFERENCES users(id),
  operation_info JSONB NOT NULL DEFAULT '{}'
)`,
		`CREATE INDEX IF NOT EXISTS idx_waybill_routings_waybill_id_time ON waybill_routings(waybill_id, time)`,
		`
CREATE TABLE IF NOT EXISTS department_payments (
  id BIGSERIAL PRIMARY KEY,
  status SMALLINT NOT NULL,
  payment_date DATE NOT NULL,
  src_department_id BIGINT NOT NULL REFERENCES departments(id),
  dst_department_id BIGINT NOT NULL REFERENCES departments(id),
  src_remark TEXT NOT NULL DEFAULT '',
  dst_remark TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  settle_accounts_time TIMESTAMPTZ NULL,
  UNIQUE (src_department_id, dst_department_id, payment_date)
)`,
		`
CREATE TABLE IF NOT EXISTS department_payment_waybills (
  department_payment_id BIGINT NOT NULL REFERENCES department_payments(id) ON DELETE CASCADE,
  waybill_id BIGINT NOT NULL REFERENCES waybills(id),
  PRIMARY KEY (department_payment_id, waybill_id)
)`,
		// Один лог на накладную: повторное закрытие ведомости не начисляет баллы дважды.
		`
CREATE TABLE IF NOT EXISTS customer_score_logs (
  id BIGSERIAL PRIMARY KEY,
  customer_id BIGINT NOT NULL REFERENCES customers(id),
  inc_or_dec BOOLEAN NOT NULL,
  score BIGINT NOT NULL CHECK (score >= 1),
  remark TEXT NOT NULL,
  waybill_id BIGINT NULL UNIQUE REFERENCES waybills(id),
  user_id BIGINT NOT NULL REFERENCES users(id),
  created_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
