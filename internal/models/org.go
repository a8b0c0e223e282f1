package models

import "time"

type Settings struct {
	CompanyName        string
	HandlingFeeRatio   float64
	CustomerScoreRatio float64
}

func DefaultSettings() Settings {
	return Settings{
		CompanyName:        "FreightBox",
		HandlingFeeRatio:   0.002,
		CustomerScoreRatio: 1,
	}
}

type Department struct {
	ID        uint64
	Name      string
	ParentID  *uint64
	UnitPrice float64

	EnableSrc        bool
	EnableDst        bool
	EnableCargoPrice bool
	IsBranchGroup    bool
	IsGoodsYard      bool
}

type Customer struct {
	ID      uint64
	Name    string
	Phone   string
	Enabled bool
	IsVIP   bool
	Score   int64
}

type CustomerScoreLog struct {
	ID         uint64
	CustomerID uint64
	IncOrDec   bool
	Score      int64
	Remark     string
	WaybillID  *uint64
	UserID     uint64
	CreatedAt  time.Time
}

const ScoreLogRemarkSettlement = "Waybill Settlement"

type UserRole string

const (
	UserRoleAdministrator UserRole = "administrator"
	UserRoleCompany       UserRole = "company"
	UserRoleBranch        UserRole = "branch"
	UserRoleGoodsYard     UserRole = "goods_yard"
)

const (
	PermManageWaybill           = "manage_waybill"
	PermManageTransportOut      = "manage_transport_out"
	PermManageArrival           = "manage_arrival"
	PermManageSignFor           = "manage_sign_for"
	PermManageDepartmentPayment = "manage_department_payment"
	PermReviewDepartmentPayment = "review_department_payment"
	PermManageCargoPricePayment = "manage_cargo_price_payment"
	PermReviewCargoPricePayment = "review_cargo_price_payment"
)

func AllPermissions() []string {
	return []string{
		PermManageWaybill,
		PermManageTransportOut,
		PermManageArrival,
		PermManageSignFor,
		PermManageDepartmentPayment,
		PermReviewDepartmentPayment,
		PermManageCargoPricePayment,
		PermReviewCargoPricePayment,
	}
}

type User struct {
	ID            uint64
	Name          string
	DepartmentID  uint64
	Enabled       bool
	Administrator bool
	Permissions   []string

	// Filled from the user's department when loaded.
	DepartmentIsGoodsYard   bool
	DepartmentInBranchGroup bool
}

func (u *User) Role() UserRole {
	switch {
	case u.Administrator:
		return UserRoleAdministrator
	case u.DepartmentIsGoodsYard:
		return UserRoleGoodsYard
	case u.DepartmentInBranchGroup:
		return UserRoleBranch
	default:
		return UserRoleCompany
	}
}

// Principal is what the session stores about the logged in user.
type Principal struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	DepartmentID uint64 `json:"department_id"`
}

// Actor is a resolved principal: who is acting, from which department, with which rights.
type Actor struct {
	UserID       uint64
	Name         string
	DepartmentID uint64
	Role         UserRole
	permissions  map[string]struct{}
}

func NewActor(u *User) *Actor {
	perms := make(map[string]struct{}, len(u.Permissions))
	for _, p := range u.Permissions {
		perms[p] = struct{}{}
	}
	return &Actor{
		UserID:       u.ID,
		Name:         u.Name,
		DepartmentID: u.DepartmentID,
		Role:         u.Role(),
		permissions:  perms,
	}
}

func (a *Actor) Can(perm string) bool {
	_, ok := a.permissions[perm]
	return ok
}

func (a *Actor) IsGoodsYard() bool {
	return a.Role == UserRoleGoodsYard
}
