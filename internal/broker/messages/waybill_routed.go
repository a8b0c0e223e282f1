package messages

import (
	"strconv"
	"time"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/google/uuid"
)

// WaybillRouted is published once per routing row, after the transaction that wrote it committed.
type WaybillRouted struct {
	EventID      string    `json:"event_id"`
	WaybillID    uint64    `json:"waybill_id"`
	Status       int16     `json:"status"`
	StatusName   string    `json:"status_name"`
	DepartmentID uint64    `json:"department_id"`
	UserID       uint64    `json:"user_id"`
	Time         time.Time `json:"time"`

	TransportOutID  *uint64 `json:"transport_out_id,omitempty"`
	ReturnWaybillID *uint64 `json:"return_waybill_id,omitempty"`
}

func NewWaybillRouted(r *models.WaybillRouting) WaybillRouted {
	return WaybillRouted{
		EventID:         uuid.NewString(),
		WaybillID:       r.WaybillID,
		Status:          int16(r.OperationType),
		StatusName:      r.OperationType.String(),
		DepartmentID:    r.DepartmentID,
		UserID:          r.UserID,
		Time:            r.Time,
		TransportOutID:  r.Info.TransportOutID,
		ReturnWaybillID: r.Info.ReturnWaybillID,
	}
}

// Key partitions events by waybill.
func (m WaybillRouted) Key() []byte {
	return []byte(strconv.FormatUint(m.WaybillID, 10))
}
