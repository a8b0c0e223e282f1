package models

import (
	"fmt"
	"time"
)

type WaybillStatus int16

const (
	WaybillStatusCreated WaybillStatus = iota
	WaybillStatusLoaded
	WaybillStatusDeparted
	WaybillStatusGoodsYardArrived
	WaybillStatusGoodsYardLoaded
	WaybillStatusGoodsYardDeparted
	WaybillStatusArrived
	WaybillStatusSignedFor
	WaybillStatusReturned
	WaybillStatusDropped
)

var waybillStatusNames = map[WaybillStatus]string{
	WaybillStatusCreated:           "Created",
	WaybillStatusLoaded:            "Loaded",
	WaybillStatusDeparted:          "Departed",
	WaybillStatusGoodsYardArrived:  "GoodsYardArrived",
	WaybillStatusGoodsYardLoaded:   "GoodsYardLoaded",
	WaybillStatusGoodsYardDeparted: "GoodsYardDeparted",
	WaybillStatusArrived:           "Arrived",
	WaybillStatusSignedFor:         "SignedFor",
	WaybillStatusReturned:          "Returned",
	WaybillStatusDropped:           "Dropped",
}

func (s WaybillStatus) String() string {
	if n, ok := waybillStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("WaybillStatus(%d)", int16(s))
}

func (s WaybillStatus) Valid() bool {
	_, ok := waybillStatusNames[s]
	return ok
}

type WaybillAction string

const (
	WaybillActionLoad            WaybillAction = "load"
	WaybillActionUnload          WaybillAction = "unload"
	WaybillActionDepart          WaybillAction = "depart"
	WaybillActionGoodsYardArrive WaybillAction = "goods_yard_arrive"
	WaybillActionGoodsYardLoad   WaybillAction = "goods_yard_load"
	WaybillActionGoodsYardUnload WaybillAction = "goods_yard_unload"
	WaybillActionGoodsYardDepart WaybillAction = "goods_yard_depart"
	WaybillActionArrive          WaybillAction = "arrive"
	WaybillActionSignFor         WaybillAction = "sign_for"
	WaybillActionReturn          WaybillAction = "return"
	WaybillActionDrop            WaybillAction = "drop"
)

type waybillTransition = Transition[WaybillStatus, WaybillAction]

// WaybillTransitions is the shipment path. Branch -> goods yard -> branch,
// with Dropped and Returned as the only side exits.
var WaybillTransitions = NewTransitionTable(
	waybillTransition{WaybillStatusCreated, WaybillActionLoad, WaybillStatusLoaded},
	waybillTransition{WaybillStatusLoaded, WaybillActionUnload, WaybillStatusCreated},
	waybillTransition{WaybillStatusLoaded, WaybillActionDepart, WaybillStatusDeparted},
	waybillTransition{WaybillStatusDeparted, WaybillActionGoodsYardArrive, WaybillStatusGoodsYardArrived},
	waybillTransition{WaybillStatusGoodsYardArrived, WaybillActionGoodsYardLoad, WaybillStatusGoodsYardLoaded},
	waybillTransition{WaybillStatusGoodsYardLoaded, WaybillActionGoodsYardUnload, WaybillStatusGoodsYardArrived},
	waybillTransition{WaybillStatusGoodsYardLoaded, WaybillActionGoodsYardDepart, WaybillStatusGoodsYardDeparted},
	waybillTransition{WaybillStatusGoodsYardDeparted, WaybillActionArrive, WaybillStatusArrived},
	waybillTransition{WaybillStatusArrived, WaybillActionSignFor, WaybillStatusSignedFor},
	waybillTransition{WaybillStatusArrived, WaybillActionReturn, WaybillStatusReturned},
	waybillTransition{WaybillStatusCreated, WaybillActionDrop, WaybillStatusDropped},
)

type FeeType int16

const (
	FeeTypeSignFor FeeType = iota
	FeeTypeNow
	FeeTypeDeduction
)

func (t FeeType) Valid() bool {
	return t == FeeTypeSignFor || t == FeeTypeNow || t == FeeTypeDeduction
}

func (t FeeType) String() string {
	switch t {
	case FeeTypeSignFor:
		return "SignFor"
	case FeeTypeNow:
		return "Now"
	case FeeTypeDeduction:
		return "Deduction"
	}
	return fmt.Sprintf("FeeType(%d)", int16(t))
}

type CargoPriceStatus int16

const (
	CargoPriceStatusNo CargoPriceStatus = iota
	CargoPriceStatusNotPaid
	CargoPriceStatusPaid
)

type Waybill struct {
	ID     uint64        `json:"id"`
	Status WaybillStatus `json:"status"`

	SrcDepartmentID uint64 `json:"src_department_id"`
	DstDepartmentID uint64 `json:"dst_department_id"`

	SrcCustomerID            *uint64 `json:"src_customer_id"`
	SrcCustomerName          string  `json:"src_customer_name"`
	SrcCustomerPhone         string  `json:"src_customer_phone"`
	SrcCustomerCredentialNum string  `json:"src_customer_credential_num"`
	SrcCustomerAddress       string  `json:"src_customer_address"`

	DstCustomerID            *uint64 `json:"dst_customer_id"`
	DstCustomerName          string  `json:"dst_customer_name"`
	DstCustomerPhone         string  `json:"dst_customer_phone"`
	DstCustomerCredentialNum string  `json:"dst_customer_credential_num"`
	DstCustomerAddress       string  `json:"dst_customer_address"`

	CargoName        string           `json:"cargo_name"`
	CargoNum         int32            `json:"cargo_num"`
	CargoVolume      float64          `json:"cargo_volume"`
	CargoWeight      float64          `json:"cargo_weight"`
	CargoPrice       int64            `json:"cargo_price"`
	CargoHandlingFee int64            `json:"cargo_handling_fee"`
	CargoPriceStatus CargoPriceStatus `json:"cargo_price_status"`

	Fee     int64   `json:"fee"`
	FeeType FeeType `json:"fee_type"`

	CustomerRemark string `json:"customer_remark"`
	CompanyRemark  string `json:"company_remark"`

	SignForCustomerName          string `json:"sign_for_customer_name"`
	SignForCustomerCredentialNum string `json:"sign_for_customer_credential_num"`
	DropReason                   string `json:"drop_reason"`

	// ReturnWaybillID points at the original waybill when this one is its return.
	ReturnWaybillID     *uint64 `json:"return_waybill_id"`
	CargoPricePaymentID *uint64 `json:"cargo_price_payment_id"`

	CreatedAt   time.Time  `json:"created_at"`
	ArrivalTime *time.Time `json:"arrival_time"`
	SignForTime *time.Time `json:"sign_for_time"`
}

// FullID is the number printed on the waybill.
func (w *Waybill) FullID() string {
	if w.ReturnWaybillID != nil {
		return fmt.Sprintf("YF%08d", *w.ReturnWaybillID)
	}
	return fmt.Sprintf("%08d", w.ID)
}

// WaybillInput is the editable part of a waybill.
type WaybillInput struct {
	DstDepartmentID uint64

	SrcCustomerID            *uint64
	SrcCustomerName          string
	SrcCustomerPhone         string
	SrcCustomerCredentialNum string
	SrcCustomerAddress       string

	DstCustomerID            *uint64
	DstCustomerName          string
	DstCustomerPhone         string
	DstCustomerCredentialNum string
	DstCustomerAddress       string

	CargoName   string
	CargoNum    int32
	CargoVolume float64
	CargoWeight float64
	CargoPrice  int64

	Fee     int64
	FeeType FeeType

	CustomerRemark string
	CompanyRemark  string
}

// Apply copies the input onto w and recomputes the derived money fields.
func (in WaybillInput) Apply(w *Waybill, handlingFeeRatio float64) {
	w.DstDepartmentID = in.DstDepartmentID
	w.SrcCustomerID = in.SrcCustomerID
	w.SrcCustomerName = in.SrcCustomerName
	w.SrcCustomerPhone = in.SrcCustomerPhone
	w.SrcCustomerCredentialNum = in.SrcCustomerCredentialNum
	w.SrcCustomerAddress = in.SrcCustomerAddress
	w.DstCustomerID = in.DstCustomerID
	w.DstCustomerName = in.DstCustomerName
	w.DstCustomerPhone = in.DstCustomerPhone
	w.DstCustomerCredentialNum = in.DstCustomerCredentialNum
	w.DstCustomerAddress = in.DstCustomerAddress
	w.CargoName = in.CargoName
	w.CargoNum = in.CargoNum
	w.CargoVolume = in.CargoVolume
	w.CargoWeight = in.CargoWeight
	w.CargoPrice = in.CargoPrice
	w.Fee = in.Fee
	w.FeeType = in.FeeType
	w.CustomerRemark = in.CustomerRemark
	w.CompanyRemark = in.CompanyRemark

	w.CargoHandlingFee = HandlingFee(in.CargoPrice, handlingFeeRatio)
	if in.CargoPrice > 0 {
		w.CargoPriceStatus = CargoPriceStatusNotPaid
	} else {
		w.CargoPriceStatus = CargoPriceStatusNo
	}
}

type WaybillFilter struct {
	IDs             []uint64
	Statuses        []WaybillStatus
	SrcDepartmentID *uint64
	DstDepartmentID *uint64
	CreatedFrom     *time.Time
	CreatedTo       *time.Time

	Limit  int
	Offset int
}

// RoutingInfo is the operation detail stored with a routing row.
type RoutingInfo struct {
	TransportOutID  *uint64 `json:"transport_out_id,omitempty"`
	ReturnWaybillID *uint64 `json:"return_waybill_id,omitempty"`
}

// WaybillRouting is one entry of a waybill's history.
type WaybillRouting struct {
	ID            uint64        `json:"id"`
	WaybillID     uint64        `json:"waybill_id"`
	Time          time.Time     `json:"time"`
	OperationType WaybillStatus `json:"operation_type"`
	DepartmentID  uint64        `json:"department_id"`
	UserID        uint64        `json:"user_id"`
	Info          RoutingInfo   `json:"info"`
}
