package mocks

import (
	"context"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func waybillsArg(args mock.Arguments) []*models.Waybill {
	if v := args.Get(0); v != nil {
		return v.([]*models.Waybill)
	}
	return nil
}

func (m *MockRepository) GetWaybillsByIDs(ctx context.Context, ids []uint64) ([]*models.Waybill, error) {
	args := m.Called(ctx, ids)
	return waybillsArg(args), args.Error(1)
}

func (m *MockRepository) SearchWaybills(ctx context.Context, f models.WaybillFilter) ([]*models.Waybill, error) {
	args := m.Called(ctx, f)
	return waybillsArg(args), args.Error(1)
}

func (m *MockRepository) CountWaybills(ctx context.Context, f models.WaybillFilter) (int, error) {
	args := m.Called(ctx, f)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListWaybillRoutings(ctx context.Context, waybillID uint64, limit, offset int) ([]*models.WaybillRouting, error) {
	args := m.Called(ctx, waybillID, limit, offset)
	var out []*models.WaybillRouting
	if v := args.Get(0); v != nil {
		out = v.([]*models.WaybillRouting)
	}
	return out, args.Error(1)
}

func (m *MockRepository) GetTransportOut(ctx context.Context, id uint64) (*models.TransportOut, error) {
	args := m.Called(ctx, id)
	var t *models.TransportOut
	if v := args.Get(0); v != nil {
		t = v.(*models.TransportOut)
	}
	return t, args.Error(1)
}

func (m *MockRepository) ListTransportOutWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error) {
	args := m.Called(ctx, id)
	return waybillsArg(args), args.Error(1)
}

func (m *MockRepository) SearchTransportOuts(ctx context.Context, f models.TransportOutFilter) ([]*models.TransportOut, error) {
	args := m.Called(ctx, f)
	var out []*models.TransportOut
	if v := args.Get(0); v != nil {
		out = v.([]*models.TransportOut)
	}
	return out, args.Error(1)
}

func (m *MockRepository) CountTransportOuts(ctx context.Context, f models.TransportOutFilter) (int, error) {
	args := m.Called(ctx, f)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetDepartmentPayment(ctx context.Context, id uint64) (*models.DepartmentPayment, error) {
	args := m.Called(ctx, id)
	var p *models.DepartmentPayment
	if v := args.Get(0); v != nil {
		p = v.(*models.DepartmentPayment)
	}
	return p, args.Error(1)
}

func (m *MockRepository) ListDepartmentPaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error) {
	args := m.Called(ctx, id)
	return waybillsArg(args), args.Error(1)
}

func (m *MockRepository) GetCargoPricePayment(ctx context.Context, id uint64) (*models.CargoPricePayment, error) {
	args := m.Called(ctx, id)
	var p *models.CargoPricePayment
	if v := args.Get(0); v != nil {
		p = v.(*models.CargoPricePayment)
	}
	return p, args.Error(1)
}

func (m *MockRepository) ListCargoPricePaymentWaybills(ctx context.Context, id uint64) ([]*models.Waybill, error) {
	args := m.Called(ctx, id)
	return waybillsArg(args), args.Error(1)
}
