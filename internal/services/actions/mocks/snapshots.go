package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSnapshots struct {
	mock.Mock
}

func (m *MockSnapshots) ForgetWaybills(ctx context.Context, ids []uint64) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}
