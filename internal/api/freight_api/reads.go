package freight_api

import (
	"net/http"
	"strconv"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Malformed("Invalid id.")
	}
	return id, nil
}

func paging(v *values) (int, int) {
	limit, offset := int(v.int("limit")), int(v.int("offset"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (a *FreightAPI) dashboard(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actors.Actor(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := a.reads.Dashboard(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *FreightAPI) searchWaybills(w http.ResponseWriter, r *http.Request) {
	v := queryValues(r)
	f := models.WaybillFilter{
		IDs:             v.ids("ids"),
		Statuses:        lo.Map(v.codes("status"), func(s uint64, _ int) models.WaybillStatus { return models.WaybillStatus(s) }),
		SrcDepartmentID: v.optUint("src_department_id"),
		DstDepartmentID: v.optUint("dst_department_id"),
		CreatedFrom:     v.optDate("created_from"),
		CreatedTo:       v.optDate("created_to"),
	}
	// created_to включает весь день
	if f.CreatedTo != nil {
		to := f.CreatedTo.AddDate(0, 0, 1)
		f.CreatedTo = &to
	}
	f.Limit, f.Offset = paging(v)
	if v.err != nil {
		writeError(w, r, v.err)
		return
	}
	page, err := a.reads.SearchWaybills(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *FreightAPI) getWaybill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wb, err := a.reads.GetWaybill(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wb)
}

func (a *FreightAPI) listRoutings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v := queryValues(r)
	limit, offset := paging(v)
	if v.err != nil {
		writeError(w, r, v.err)
		return
	}
	rs, err := a.reads.ListWaybillRoutings(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rs})
}

func (a *FreightAPI) searchTransportOuts(w http.ResponseWriter, r *http.Request) {
	v := queryValues(r)
	f := models.TransportOutFilter{
		Statuses:        lo.Map(v.codes("status"), func(s uint64, _ int) models.TransportOutStatus { return models.TransportOutStatus(s) }),
		SrcDepartmentID: v.optUint("src_department_id"),
		DstDepartmentID: v.optUint("dst_department_id"),
	}
	f.Limit, f.Offset = paging(v)
	if v.err != nil {
		writeError(w, r, v.err)
		return
	}
	page, err := a.reads.SearchTransportOuts(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *FreightAPI) getTransportOut(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := a.reads.GetTransportOut(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *FreightAPI) getDepartmentPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.reads.GetDepartmentPayment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *FreightAPI) getCargoPricePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.reads.GetCargoPricePayment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
