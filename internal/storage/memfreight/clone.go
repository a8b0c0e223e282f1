package memfreight

import (
	"time"

	"github.com/BearBump/FreightBox/internal/models"
)

func cloneU64(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDepartment(d *models.Department) *models.Department {
	cp := *d
	cp.ParentID = cloneU64(d.ParentID)
	return &cp
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.Permissions = append([]string(nil), u.Permissions...)
	return &cp
}

func cloneWaybill(w *models.Waybill) *models.Waybill {
	cp := *w
	cp.SrcCustomerID = cloneU64(w.SrcCustomerID)
	cp.DstCustomerID = cloneU64(w.DstCustomerID)
	cp.ReturnWaybillID = cloneU64(w.ReturnWaybillID)
	cp.CargoPricePaymentID = cloneU64(w.CargoPricePaymentID)
	cp.ArrivalTime = cloneTime(w.ArrivalTime)
	cp.SignForTime = cloneTime(w.SignForTime)
	return &cp
}

func cloneRouting(r *models.WaybillRouting) *models.WaybillRouting {
	cp := *r
	cp.Info.TransportOutID = cloneU64(r.Info.TransportOutID)
	cp.Info.ReturnWaybillID = cloneU64(r.Info.ReturnWaybillID)
	return &cp
}

func cloneTransportOut(t *models.TransportOut) *models.TransportOut {
	cp := *t
	cp.StartTime = cloneTime(t.StartTime)
	cp.EndTime = cloneTime(t.EndTime)
	return &cp
}

func cloneDepartmentPayment(p *models.DepartmentPayment) *models.DepartmentPayment {
	cp := *p
	cp.SettleAccountsTime = cloneTime(p.SettleAccountsTime)
	return &cp
}

func cloneCargoPricePayment(p *models.CargoPricePayment) *models.CargoPricePayment {
	cp := *p
	cp.SettleAccountsTime = cloneTime(p.SettleAccountsTime)
	return &cp
}

func cloneScoreLog(l *models.CustomerScoreLog) *models.CustomerScoreLog {
	cp := *l
	cp.WaybillID = cloneU64(l.WaybillID)
	return &cp
}
