// Package freight_api is the JSON HTTP surface: guarded actions and read endpoints.
package freight_api

import (
	"context"
	"net/http"
	"time"

	"github.com/BearBump/FreightBox/internal/cache"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/services/actions"
	"github.com/BearBump/FreightBox/internal/services/waybills"
	"github.com/go-chi/chi/v5"
)

type Runner interface {
	Run(ctx context.Context, p models.Principal, op actions.Operation) (actions.Result, error)
}

type Sessions interface {
	Principal(ctx context.Context, sessionID string) (models.Principal, error)
}

type Actors interface {
	Actor(ctx context.Context, p models.Principal) (*models.Actor, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Options struct {
	CookieName       string
	ActionsPerMinute int64
}

type FreightAPI struct {
	exec     Runner
	reads    *waybills.Service
	sessions Sessions
	actors   Actors
	rl       RateLimiter
	clock    cache.Clock
	opts     Options
}

// New wires the API. rl may be nil, actions are then not limited.
func New(exec Runner, reads *waybills.Service, sessions Sessions, actors Actors, rl RateLimiter, opts Options) *FreightAPI {
	if opts.CookieName == "" {
		opts.CookieName = "sessionid"
	}
	return &FreightAPI{
		exec: exec, reads: reads, sessions: sessions, actors: actors, rl: rl,
		clock: cache.SystemClock{},
		opts:  opts,
	}
}

// Routes mounts everything under /api.
func (a *FreightAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(a.withSession)

		r.Get("/dashboard", a.dashboard)
		r.Get("/waybills", a.searchWaybills)
		r.Get("/waybills/{id}", a.getWaybill)
		r.Get("/waybills/{id}/routings", a.listRoutings)
		r.Get("/transport_outs", a.searchTransportOuts)
		r.Get("/transport_outs/{id}", a.getTransportOut)
		r.Get("/department_payments/{id}", a.getDepartmentPayment)
		r.Get("/cargo_price_payments/{id}", a.getCargoPricePayment)

		r.Group(func(r chi.Router) {
			r.Use(a.rateLimited)

			r.Post("/waybill/create", a.action(createWaybill))
			r.Post("/waybill/edit", a.action(editWaybill))
			r.Post("/waybill/drop", a.action(dropWaybill))
			r.Post("/waybill/return", a.action(returnWaybill))
			r.Post("/waybill/sign_for", a.action(confirmSignFor))

			r.Post("/transport_out/create", a.action(createTransportOut))
			r.Post("/transport_out/set_waybills", a.action(setTransportOutWaybills))
			r.Post("/transport_out/start", a.action(startTransportOut))
			r.Post("/transport_out/drop", a.action(dropTransportOut))
			r.Post("/transport_out/arrival", a.action(confirmArrival))

			r.Post("/department_payment/create", a.action(createDepartmentPayment))
			r.Post("/department_payment/modify_remark", a.action(modifyDepartmentPaymentRemark))
			r.Post("/department_payment/drop", a.action(dropDepartmentPayment))
			r.Post("/department_payment/review", a.action(reviewDepartmentPayment))
			r.Post("/department_payment/pay", a.action(payDepartmentPayment))
			r.Post("/department_payment/settle", a.action(settleDepartmentPayment))

			r.Post("/cargo_price_payment/create", a.action(createCargoPricePayment))
			r.Post("/cargo_price_payment/set_waybills", a.action(setCargoPricePaymentWaybills))
			r.Post("/cargo_price_payment/drop", a.action(dropCargoPricePayment))
			r.Post("/cargo_price_payment/submit", a.action(submitCargoPricePayment))
			r.Post("/cargo_price_payment/review", a.action(reviewCargoPricePayment))
			r.Post("/cargo_price_payment/reject", a.action(rejectCargoPricePayment))
			r.Post("/cargo_price_payment/pay", a.action(payCargoPricePayment))
		})
	})
	return r
}

// action parses the form into an operation and runs it as the session user.
func (a *FreightAPI) action(build func(v *values) actions.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request format!")
			return
		}
		v := formValues(r)
		op := build(v)
		if v.err != nil {
			writeError(w, r, v.err)
			return
		}
		res, err := a.exec.Run(r.Context(), principalFrom(r.Context()), op)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeResult(w, res)
	}
}
