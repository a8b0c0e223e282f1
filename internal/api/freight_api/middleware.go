package freight_api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/services/access"
	"github.com/pkg/errors"
)

type principalKey struct{}

func principalFrom(ctx context.Context) models.Principal {
	p, _ := ctx.Value(principalKey{}).(models.Principal)
	return p
}

// withSession resolves the session cookie into the principal or answers 401.
func (a *FreightAPI) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sid string
		if c, err := r.Cookie(a.opts.CookieName); err == nil {
			sid = c.Value
		}
		p, err := a.sessions.Principal(r.Context(), sid)
		if errors.Is(err, access.ErrNoSession) {
			writeMessage(w, http.StatusUnauthorized, "Please log in first.")
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// rateLimited caps actions per user per minute. Redis failures let the request through.
func (a *FreightAPI) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.rl == nil || a.opts.ActionsPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		p := principalFrom(r.Context())
		key := fmt.Sprintf("rl:actions:%d:%s", p.ID, a.clock.Now().UTC().Format("200601021504"))
		allowed, n, err := a.rl.Allow(r.Context(), key, a.opts.ActionsPerMinute, 70*time.Second)
		if err != nil {
			slog.Warn("action rate limit", "user_id", p.ID, "error", err.Error())
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			slog.Warn("rate limit exceeded", "user_id", p.ID, "count", n)
			writeMessage(w, http.StatusTooManyRequests, "Too many requests, please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
