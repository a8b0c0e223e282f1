// Package storage declares the unit of work guarded operations run in.
// pgfreight implements it on PostgreSQL, memfreight in memory.
package storage

import (
	"context"
	"time"

	"github.com/BearBump/FreightBox/internal/models"
)

// Tx is one database transaction. Reads lock the rows they return until the
// transaction ends. Getters of a single row return models.ErrNotFound;
// getters of id lists silently omit missing ids.
type Tx interface {
	GetDepartments(ctx context.Context, ids []uint64) ([]*models.Department, error)
	GetCustomers(ctx context.Context, ids []uint64) ([]*models.Customer, error)
	GetTruck(ctx context.Context, id uint64) (*models.Truck, error)

	GetWaybills(ctx context.Context, ids []uint64) ([]*models.Waybill, error)
	InsertWaybill(ctx context.Context, w *models.Waybill) error
	UpdateWaybill(ctx context.Context, w *models.Waybill) error
	InsertRoutings(ctx context.Context, rs []*models.WaybillRouting) error

	GetTransportOut(ctx context.Context, id uint64) (*models.TransportOut, error)
	ListTransportOutWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error)
	InsertTransportOut(ctx context.Context, t *models.TransportOut) error
	UpdateTransportOut(ctx context.Context, t *models.TransportOut) error
	SetTransportOutWaybills(ctx context.Context, id uint64, waybillIDs []uint64) error
	DeleteTransportOut(ctx context.Context, id uint64) error

	GetDepartmentPayments(ctx context.Context, ids []uint64) ([]*models.DepartmentPayment, error)
	ListDepartmentPaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error)
	DepartmentPaymentExists(ctx context.Context, srcID, dstID uint64, day time.Time) (bool, error)
	// StatementWaybillIDs picks the waybills srcID settles for day: prepaid waybills
	// that left on a trip started that day, and waybills signed for at srcID that day.
	StatementWaybillIDs(ctx context.Context, srcID uint64, day time.Time) ([]uint64, error)
	// InsertDepartmentPayment returns models.ErrAlreadyExists for a duplicate (src, dst, date).
	InsertDepartmentPayment(ctx context.Context, p *models.DepartmentPayment, waybillIDs []uint64) error
	UpdateDepartmentPayment(ctx context.Context, p *models.DepartmentPayment) error
	DeleteDepartmentPayments(ctx context.Context, ids []uint64) error

	GetCargoPricePayment(ctx context.Context, id uint64) (*models.CargoPricePayment, error)
	ListCargoPricePaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error)
	InsertCargoPricePayment(ctx context.Context, p *models.CargoPricePayment) error
	UpdateCargoPricePayment(ctx context.Context, p *models.CargoPricePayment) error
	DeleteCargoPricePayment(ctx context.Context, id uint64) error

	// InsertScoreLogs skips logs whose waybill already has one and returns the inserted ones.
	InsertScoreLogs(ctx context.Context, logs []*models.CustomerScoreLog) ([]*models.CustomerScoreLog, error)
	AddCustomerScore(ctx context.Context, customerID uint64, delta int64) error
}

// DayRange returns [start, end) of the UTC day containing t.
func DayRange(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
