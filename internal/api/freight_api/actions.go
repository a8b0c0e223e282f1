package freight_api

import (
	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/services/actions"
)

func waybillInput(v *values) models.WaybillInput {
	return models.WaybillInput{
		DstDepartmentID: v.uint("dst_department_id"),

		SrcCustomerID:            v.optUint("src_customer_id"),
		SrcCustomerName:          v.str("src_customer_name"),
		SrcCustomerPhone:         v.str("src_customer_phone"),
		SrcCustomerCredentialNum: v.str("src_customer_credential_num"),
		SrcCustomerAddress:       v.str("src_customer_address"),

		DstCustomerID:            v.optUint("dst_customer_id"),
		DstCustomerName:          v.str("dst_customer_name"),
		DstCustomerPhone:         v.str("dst_customer_phone"),
		DstCustomerCredentialNum: v.str("dst_customer_credential_num"),
		DstCustomerAddress:       v.str("dst_customer_address"),

		CargoName:   v.str("cargo_name"),
		CargoNum:    v.int32("cargo_num"),
		CargoVolume: v.float("cargo_volume"),
		CargoWeight: v.float("cargo_weight"),
		CargoPrice:  v.int("cargo_price"),

		Fee:     v.int("fee"),
		FeeType: models.FeeType(v.int("fee_type")),

		CustomerRemark: v.str("customer_remark"),
		CompanyRemark:  v.str("company_remark"),
	}
}

func createWaybill(v *values) actions.Operation {
	return &actions.CreateWaybill{Input: waybillInput(v)}
}

func editWaybill(v *values) actions.Operation {
	return &actions.EditWaybill{WaybillID: v.uint("waybill_id"), Input: waybillInput(v)}
}

func dropWaybill(v *values) actions.Operation {
	return &actions.DropWaybill{WaybillID: v.uint("waybill_id"), Reason: v.str("drop_reason")}
}

func returnWaybill(v *values) actions.Operation {
	return &actions.ReturnWaybill{
		WaybillID: v.uint("waybill_id"),
		Fee:       v.int("fee"),
		FeeType:   models.FeeType(v.int("fee_type")),
	}
}

func confirmSignFor(v *values) actions.Operation {
	return &actions.ConfirmSignFor{
		WaybillIDs:    v.ids("sign_for_waybill_ids"),
		Name:          v.str("sign_for_name"),
		CredentialNum: v.str("sign_for_credential_num"),
	}
}

func createTransportOut(v *values) actions.Operation {
	return &actions.CreateTransportOut{
		TruckID:         v.uint("truck_id"),
		DriverName:      v.str("driver_name"),
		DriverPhone:     v.str("driver_phone"),
		DstDepartmentID: v.uint("dst_department_id"),
		WaybillIDs:      v.ids("waybill_ids"),
	}
}

func setTransportOutWaybills(v *values) actions.Operation {
	return &actions.SetTransportOutWaybills{TransportOutID: v.uint("transport_out_id"), WaybillIDs: v.ids("waybill_ids")}
}

func startTransportOut(v *values) actions.Operation {
	return &actions.StartTransportOut{TransportOutID: v.uint("transport_out_id")}
}

func dropTransportOut(v *values) actions.Operation {
	return &actions.DropTransportOut{TransportOutID: v.uint("transport_out_id")}
}

func confirmArrival(v *values) actions.Operation {
	return &actions.ConfirmArrival{TransportOutID: v.uint("transport_out_id")}
}

func createDepartmentPayment(v *values) actions.Operation {
	return &actions.CreateDepartmentPayment{
		PaymentDate:     v.date("payment_date"),
		SrcDepartmentID: v.uint("src_department_id"),
		DstDepartmentID: v.uint("dst_department_id"),
	}
}

func modifyDepartmentPaymentRemark(v *values) actions.Operation {
	return &actions.ModifyDepartmentPaymentRemark{
		DepartmentPaymentID: v.uint("dp_id"),
		Side:                v.str("remark_dept_type"),
		Text:                v.str("remark_text"),
	}
}

func dropDepartmentPayment(v *values) actions.Operation {
	return &actions.DropDepartmentPayment{IDs: v.ids("dp_ids")}
}

func reviewDepartmentPayment(v *values) actions.Operation {
	return &actions.ReviewDepartmentPayment{IDs: v.ids("dp_ids")}
}

func payDepartmentPayment(v *values) actions.Operation {
	return &actions.PayDepartmentPayment{IDs: v.ids("dp_ids")}
}

func settleDepartmentPayment(v *values) actions.Operation {
	return &actions.SettleDepartmentPayment{IDs: v.ids("dp_ids")}
}

func createCargoPricePayment(v *values) actions.Operation {
	return &actions.CreateCargoPricePayment{
		Payee: models.Payee{
			Name:          v.str("payee_name"),
			Phone:         v.str("payee_phone"),
			BankName:      v.str("payee_bank_name"),
			BankNum:       v.str("payee_bank_num"),
			CredentialNum: v.str("payee_credential_num"),
		},
		WaybillIDs: v.ids("waybill_ids"),
	}
}

func setCargoPricePaymentWaybills(v *values) actions.Operation {
	return &actions.SetCargoPricePaymentWaybills{CargoPricePaymentID: v.uint("cpp_id"), WaybillIDs: v.ids("waybill_ids")}
}

func dropCargoPricePayment(v *values) actions.Operation {
	return &actions.DropCargoPricePayment{CargoPricePaymentID: v.uint("cpp_id")}
}

func submitCargoPricePayment(v *values) actions.Operation {
	return &actions.SubmitCargoPricePayment{CargoPricePaymentID: v.uint("cpp_id")}
}

func reviewCargoPricePayment(v *values) actions.Operation {
	return &actions.ReviewCargoPricePayment{CargoPricePaymentID: v.uint("cpp_id")}
}

func rejectCargoPricePayment(v *values) actions.Operation {
	return &actions.RejectCargoPricePayment{CargoPricePaymentID: v.uint("cpp_id"), Reason: v.str("reject_reason")}
}

func payCargoPricePayment(v *values) actions.Operation {
	return &actions.PayCargoPricePayment{CargoPricePaymentID: v.uint("cpp_id")}
}
