// Package access turns a session principal into an acting user.
package access

import (
	"context"
	"time"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/cache"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/pkg/errors"
)

const (
	DefaultUserTTL     = time.Minute
	DefaultSettingsTTL = 3 * time.Hour
)

type Repository interface {
	GetUser(ctx context.Context, id uint64) (*models.User, error)
	GetSettings(ctx context.Context) (models.Settings, error)
}

// Resolver caches users and the global settings in process.
// Permission changes take effect within userTTL.
type Resolver struct {
	users    *cache.ReadThrough[uint64, *models.User]
	settings *cache.ReadThrough[struct{}, models.Settings]
}

func NewResolver(repo Repository, userTTL, settingsTTL time.Duration, clock cache.Clock) *Resolver {
	return &Resolver{
		users: cache.NewReadThrough(userTTL, clock, func(ctx context.Context, id uint64) (*models.User, error) {
			return repo.GetUser(ctx, id)
		}),
		settings: cache.NewReadThrough(settingsTTL, clock, func(ctx context.Context, _ struct{}) (models.Settings, error) {
			return repo.GetSettings(ctx)
		}),
	}
}

func (r *Resolver) Actor(ctx context.Context, p models.Principal) (*models.Actor, error) {
	if p.ID == 0 {
		return nil, apperr.Unauthorized("Please log in first.")
	}
	u, err := r.users.Get(ctx, p.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.Unauthorized("The user does not exist.")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	if !u.Enabled {
		return nil, apperr.Unauthorized("The user %q is disabled.", u.Name)
	}
	return models.NewActor(u), nil
}

func (r *Resolver) Settings(ctx context.Context) (models.Settings, error) {
	s, err := r.settings.Get(ctx, struct{}{})
	if err != nil {
		return models.Settings{}, errors.Wrap(err, "load settings")
	}
	return s, nil
}

// ForgetUser drops the cached user, e.g. after its permissions changed.
func (r *Resolver) ForgetUser(id uint64) {
	r.users.Forget(id)
}
