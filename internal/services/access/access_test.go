package access

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/cache/rediscache"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accessmocks "github.com/BearBump/FreightBox/internal/services/access/mocks"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestResolver_ActorCachedForUserTTL(t *testing.T) {
	repo := &accessmocks.MockRepository{}
	clk := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	r := NewResolver(repo, DefaultUserTTL, DefaultSettingsTTL, clk)
	ctx := context.Background()

	u := &models.User{ID: 7, Name: "clerk", DepartmentID: 3, Enabled: true, DepartmentInBranchGroup: true,
		Permissions: []string{models.PermManageWaybill}}
	repo.On("GetUser", mock.Anything, uint64(7)).Return(u, nil).Twice()

	a, err := r.Actor(ctx, models.Principal{ID: 7})
	require.NoError(t, err)
	require.Equal(t, models.UserRoleBranch, a.Role)
	require.True(t, a.Can(models.PermManageWaybill))
	require.False(t, a.Can(models.PermReviewDepartmentPayment))

	clk.now = clk.now.Add(30 * time.Second)
	_, err = r.Actor(ctx, models.Principal{ID: 7})
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetUser", 1)

	clk.now = clk.now.Add(time.Minute)
	_, err = r.Actor(ctx, models.Principal{ID: 7})
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetUser", 2)
}

func TestResolver_RejectsUnknownAndDisabled(t *testing.T) {
	repo := &accessmocks.MockRepository{}
	r := NewResolver(repo, DefaultUserTTL, DefaultSettingsTTL, nil)
	ctx := context.Background()

	repo.On("GetUser", mock.Anything, uint64(1)).Return(nil, models.ErrNotFound)
	repo.On("GetUser", mock.Anything, uint64(2)).Return(&models.User{ID: 2, Name: "gone"}, nil)
	repo.On("GetUser", mock.Anything, uint64(3)).Return(nil, errors.New("db down"))

	_, err := r.Actor(ctx, models.Principal{})
	require.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = r.Actor(ctx, models.Principal{ID: 1})
	require.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = r.Actor(ctx, models.Principal{ID: 2})
	require.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = r.Actor(ctx, models.Principal{ID: 3})
	require.Error(t, err)
	require.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestResolver_SettingsCached(t *testing.T) {
	repo := &accessmocks.MockRepository{}
	clk := &fakeClock{now: time.Now()}
	r := NewResolver(repo, DefaultUserTTL, DefaultSettingsTTL, clk)

	repo.On("GetSettings", mock.Anything).Return(models.DefaultSettings(), nil).Once()

	for i := 0; i < 3; i++ {
		s, err := r.Settings(context.Background())
		require.NoError(t, err)
		require.Equal(t, 0.002, s.HandlingFeeRatio)
	}
	repo.AssertExpectations(t)
}

func TestSessionStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewSessionStore(rediscache.New(mr.Addr()))
	ctx := context.Background()

	_, err := s.Principal(ctx, "")
	require.ErrorIs(t, err, ErrNoSession)
	_, err = s.Principal(ctx, "abc")
	require.ErrorIs(t, err, ErrNoSession)

	p := models.Principal{ID: 5, Name: "clerk", DepartmentID: 2}
	require.NoError(t, s.Save(ctx, "abc", p, time.Hour))
	require.True(t, mr.Exists("session:abc"))

	got, err := s.Principal(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, p, got)

	mr.FastForward(2 * time.Hour)
	_, err = s.Principal(ctx, "abc")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSessionStore_Garbage(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewSessionStore(rediscache.New(mr.Addr()))
	require.NoError(t, mr.Set("session:x", "not json"))

	_, err := s.Principal(context.Background(), "x")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoSession)
}
