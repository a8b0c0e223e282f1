package mocks

import (
	"context"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	args := m.Called(ctx, id)
	var u *models.User
	if v := args.Get(0); v != nil {
		u = v.(*models.User)
	}
	return u, args.Error(1)
}

func (m *MockRepository) GetSettings(ctx context.Context) (models.Settings, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Settings), args.Error(1)
}
