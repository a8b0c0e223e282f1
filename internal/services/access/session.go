package access

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/FreightBox/internal/cache"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/pkg/errors"
)

var ErrNoSession = errors.New("no session")

// SessionStore keeps the logged in principal under session:<id>.
// Whoever logs users in writes it, the API only reads.
type SessionStore struct {
	c cache.BytesCache
}

func NewSessionStore(c cache.BytesCache) *SessionStore {
	return &SessionStore{c: c}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (s *SessionStore) Principal(ctx context.Context, sessionID string) (models.Principal, error) {
	if sessionID == "" {
		return models.Principal{}, ErrNoSession
	}
	b, ok, err := s.c.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return models.Principal{}, err
	}
	if !ok {
		return models.Principal{}, ErrNoSession
	}
	var p models.Principal
	if err := json.Unmarshal(b, &p); err != nil {
		return models.Principal{}, errors.Wrap(err, "decode session")
	}
	if p.ID == 0 {
		return models.Principal{}, ErrNoSession
	}
	return p, nil
}

func (s *SessionStore) Save(ctx context.Context, sessionID string, p models.Principal, ttl time.Duration) error {
	b, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return s.c.Set(ctx, sessionKey(sessionID), b, ttl)
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.c.Delete(ctx, sessionKey(sessionID))
}
