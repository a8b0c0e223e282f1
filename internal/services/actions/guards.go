package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// transition looks action up in t. A miss names the status the action needs.
func transition[S comparable, A comparable](t *models.TransitionTable[S, A], what string, from S, action A) (S, error) {
	to, ok := t.Next(from, action)
	if ok {
		return to, nil
	}
	required := lo.Map(t.Sources(action), func(s S, _ int) string { return fmt.Sprint(s) })
	return to, apperr.InvalidState(`Only %s in "%s" status can be %s, this one is "%s".`,
		what, strings.Join(required, `" or "`), pastTense(fmt.Sprint(action)), fmt.Sprint(from)).
		With("required_status", required)
}

var pastTenses = map[string]string{
	"load":              "loaded",
	"unload":            "unloaded",
	"depart":            "dispatched",
	"goods_yard_arrive": "confirmed as arrived",
	"goods_yard_load":   "loaded",
	"goods_yard_unload": "unloaded",
	"goods_yard_depart": "dispatched",
	"arrive":            "confirmed as arrived",
	"sign_for":          "signed for",
	"return":            "returned",
	"drop":              "dropped",
	"start":             "dispatched",
	"review":            "reviewed",
	"pay":               "confirmed for payment",
	"settle":            "settled",
	"submit":            "submitted",
	"reject":            "rejected",
	"modify":            "modified",
	"delete":            "deleted",
}

func pastTense(action string) string {
	if p, ok := pastTenses[action]; ok {
		return p
	}
	return strings.ReplaceAll(action, "_", " ")
}

// loadWaybills returns the waybills in ids order. Any missing id is NotFound.
func loadWaybills(ctx context.Context, env *Env, ids []uint64) ([]*models.Waybill, error) {
	ids = lo.Uniq(ids)
	ws, err := env.Tx.GetWaybills(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(ws) != len(ids) {
		found := lo.Map(ws, func(w *models.Waybill, _ int) uint64 { return w.ID })
		missing, _ := lo.Difference(ids, found)
		return nil, apperr.NotFound("There are non-existent waybills in the request!").With("missing_ids", missing)
	}
	byID := lo.KeyBy(ws, func(w *models.Waybill) uint64 { return w.ID })
	return lo.Map(ids, func(id uint64, _ int) *models.Waybill { return byID[id] }), nil
}

func loadWaybill(ctx context.Context, env *Env, id uint64) (*models.Waybill, error) {
	if id == 0 {
		return nil, apperr.Malformed("Invalid request format!")
	}
	ws, err := env.Tx.GetWaybills(ctx, []uint64{id})
	if err != nil {
		return nil, err
	}
	if len(ws) == 0 {
		return nil, apperr.NotFound("The waybill does not exist!")
	}
	return ws[0], nil
}

// uniformStatus is the single status all ws share.
func uniformStatus(ws []*models.Waybill) (models.WaybillStatus, error) {
	statuses := lo.Uniq(lo.Map(ws, func(w *models.Waybill, _ int) models.WaybillStatus { return w.Status }))
	if len(statuses) != 1 {
		return 0, apperr.InvalidState("There are waybills with abnormal status in this transport out!").
			With("statuses", lo.Map(statuses, func(s models.WaybillStatus, _ int) string { return s.String() }))
	}
	return statuses[0], nil
}

func loadDepartment(ctx context.Context, env *Env, id uint64) (*models.Department, error) {
	ds, err := env.Tx.GetDepartments(ctx, []uint64{id})
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return nil, apperr.NotFound("The department does not exist!")
	}
	return ds[0], nil
}

// notFound turns the storage sentinel into a user-facing error.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, models.ErrNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

func settleTimeExtra(prefix string, t time.Time) map[string]any {
	return map[string]any{
		prefix + "_settle_accounts_time":           t.Format(time.DateTime),
		prefix + "_settle_accounts_time_timestamp": float64(t.UnixMilli()) / 1000,
	}
}
