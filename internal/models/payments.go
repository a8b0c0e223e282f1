package models

import (
	"fmt"
	"time"
)

type DepartmentPaymentStatus int16

const (
	DepartmentPaymentStatusCreated DepartmentPaymentStatus = iota
	DepartmentPaymentStatusReviewed
	DepartmentPaymentStatusPaid
	DepartmentPaymentStatusSettled
)

func (s DepartmentPaymentStatus) String() string {
	switch s {
	case DepartmentPaymentStatusCreated:
		return "Created"
	case DepartmentPaymentStatusReviewed:
		return "Reviewed"
	case DepartmentPaymentStatusPaid:
		return "Paid"
	case DepartmentPaymentStatusSettled:
		return "Settled"
	}
	return fmt.Sprintf("DepartmentPaymentStatus(%d)", int16(s))
}

type DepartmentPaymentAction string

const (
	DepartmentPaymentActionReview DepartmentPaymentAction = "review"
	DepartmentPaymentActionPay    DepartmentPaymentAction = "pay"
	DepartmentPaymentActionSettle DepartmentPaymentAction = "settle"
)

type departmentPaymentTransition = Transition[DepartmentPaymentStatus, DepartmentPaymentAction]

var DepartmentPaymentTransitions = NewTransitionTable(
	departmentPaymentTransition{DepartmentPaymentStatusCreated, DepartmentPaymentActionReview, DepartmentPaymentStatusReviewed},
	departmentPaymentTransition{DepartmentPaymentStatusReviewed, DepartmentPaymentActionPay, DepartmentPaymentStatusPaid},
	departmentPaymentTransition{DepartmentPaymentStatusPaid, DepartmentPaymentActionSettle, DepartmentPaymentStatusSettled},
)

// DepartmentPayment is the daily freight statement a department pays to another one.
type DepartmentPayment struct {
	ID     uint64                  `json:"id"`
	Status DepartmentPaymentStatus `json:"status"`

	PaymentDate     time.Time `json:"payment_date"`
	SrcDepartmentID uint64    `json:"src_department_id"`
	DstDepartmentID uint64    `json:"dst_department_id"`

	SrcRemark string `json:"src_remark"`
	DstRemark string `json:"dst_remark"`

	CreatedAt          time.Time  `json:"created_at"`
	SettleAccountsTime *time.Time `json:"settle_accounts_time"`
}

func (p *DepartmentPayment) FullID() string {
	return fmt.Sprintf("%s%03d%03d", p.PaymentDate.Format("20060102"), p.SrcDepartmentID, p.DstDepartmentID)
}

type DepartmentPaymentTotals struct {
	FeeNow     int64 `json:"fee_now"`
	FeeSignFor int64 `json:"fee_sign_for"`
	CargoPrice int64 `json:"cargo_price"`
}

// DepartmentPaymentTotalsOf sums what srcDepartmentID owes for the given waybills.
func DepartmentPaymentTotalsOf(ws []*Waybill, srcDepartmentID uint64) DepartmentPaymentTotals {
	var t DepartmentPaymentTotals
	for _, w := range ws {
		if w.SrcDepartmentID == srcDepartmentID && w.FeeType == FeeTypeNow {
			t.FeeNow += w.Fee
		}
		if w.DstDepartmentID == srcDepartmentID {
			if w.FeeType == FeeTypeSignFor {
				t.FeeSignFor += w.Fee
			}
			t.CargoPrice += w.CargoPrice
		}
	}
	return t
}

// ScoreChange is the score a VIP sender earns for one settled waybill.
type ScoreChange struct {
	CustomerID uint64
	WaybillID  uint64
	Score      int64
}

// ScoreChanges lists the accruals for settling p. Only waybills whose sender is
// in vip count, and only the fee the paying department actually collected:
// prepaid fees at the source, sign-for and deduction fees at the destination.
func ScoreChanges(p *DepartmentPayment, ws []*Waybill, vip map[uint64]bool, ratio float64) []ScoreChange {
	var out []ScoreChange
	for _, w := range ws {
		if w.SrcCustomerID == nil || !vip[*w.SrcCustomerID] {
			continue
		}
		collected := false
		switch w.FeeType {
		case FeeTypeNow:
			collected = p.SrcDepartmentID == w.SrcDepartmentID
		case FeeTypeSignFor, FeeTypeDeduction:
			collected = p.SrcDepartmentID == w.DstDepartmentID
		}
		if !collected {
			continue
		}
		score := CeilMul(w.Fee, ratio)
		if score < 1 {
			continue
		}
		out = append(out, ScoreChange{CustomerID: *w.SrcCustomerID, WaybillID: w.ID, Score: score})
	}
	return out
}

type CargoPricePaymentStatus int16

const (
	CargoPricePaymentStatusCreated CargoPricePaymentStatus = iota
	CargoPricePaymentStatusSubmitted
	CargoPricePaymentStatusReviewed
	CargoPricePaymentStatusPaid
	CargoPricePaymentStatusRejected
)

func (s CargoPricePaymentStatus) String() string {
	switch s {
	case CargoPricePaymentStatusCreated:
		return "Created"
	case CargoPricePaymentStatusSubmitted:
		return "Submitted"
	case CargoPricePaymentStatusReviewed:
		return "Reviewed"
	case CargoPricePaymentStatusPaid:
		return "Paid"
	case CargoPricePaymentStatusRejected:
		return "Rejected"
	}
	return fmt.Sprintf("CargoPricePaymentStatus(%d)", int16(s))
}

// Editable reports whether the creator may still change or drop the payment.
func (s CargoPricePaymentStatus) Editable() bool {
	return s == CargoPricePaymentStatusCreated || s == CargoPricePaymentStatusRejected
}

type CargoPricePaymentAction string

const (
	CargoPricePaymentActionSubmit CargoPricePaymentAction = "submit"
	CargoPricePaymentActionReview CargoPricePaymentAction = "review"
	CargoPricePaymentActionReject CargoPricePaymentAction = "reject"
	CargoPricePaymentActionPay    CargoPricePaymentAction = "pay"
)

type cargoPricePaymentTransition = Transition[CargoPricePaymentStatus, CargoPricePaymentAction]

var CargoPricePaymentTransitions = NewTransitionTable(
	cargoPricePaymentTransition{CargoPricePaymentStatusCreated, CargoPricePaymentActionSubmit, CargoPricePaymentStatusSubmitted},
	cargoPricePaymentTransition{CargoPricePaymentStatusRejected, CargoPricePaymentActionSubmit, CargoPricePaymentStatusSubmitted},
	cargoPricePaymentTransition{CargoPricePaymentStatusSubmitted, CargoPricePaymentActionReview, CargoPricePaymentStatusReviewed},
	cargoPricePaymentTransition{CargoPricePaymentStatusSubmitted, CargoPricePaymentActionReject, CargoPricePaymentStatusRejected},
	cargoPricePaymentTransition{CargoPricePaymentStatusReviewed, CargoPricePaymentActionPay, CargoPricePaymentStatusPaid},
)

type Payee struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	BankName      string `json:"bank_name"`
	BankNum       string `json:"bank_num"`
	CredentialNum string `json:"credential_num"`
}

// CargoPricePayment pays collected cargo prices out to the sender's payee.
type CargoPricePayment struct {
	ID           uint64                  `json:"id"`
	Status       CargoPricePaymentStatus `json:"status"`
	CreateUserID uint64                  `json:"create_user_id"`
	Payee        Payee                   `json:"payee"`
	RejectReason string                  `json:"reject_reason"`

	CreatedAt          time.Time  `json:"created_at"`
	SettleAccountsTime *time.Time `json:"settle_accounts_time"`
}

type CargoPricePaymentTotals struct {
	CargoPrice       int64 `json:"cargo_price"`
	DeductionFee     int64 `json:"deduction_fee"`
	CargoHandlingFee int64 `json:"cargo_handling_fee"`
	Final            int64 `json:"final"`
}

func CargoPricePaymentTotalsOf(ws []*Waybill) CargoPricePaymentTotals {
	var t CargoPricePaymentTotals
	for _, w := range ws {
		t.CargoPrice += w.CargoPrice
		t.CargoHandlingFee += w.CargoHandlingFee
		if w.FeeType == FeeTypeDeduction {
			t.DeductionFee += w.Fee
		}
	}
	t.Final = t.CargoPrice - t.DeductionFee - t.CargoHandlingFee
	return t
}
