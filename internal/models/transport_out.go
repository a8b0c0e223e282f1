package models

import (
	"fmt"
	"time"
)

type TransportOutStatus int16

const (
	TransportOutStatusReady TransportOutStatus = iota
	TransportOutStatusOnTheWay
	TransportOutStatusArrived
)

func (s TransportOutStatus) String() string {
	switch s {
	case TransportOutStatusReady:
		return "Ready"
	case TransportOutStatusOnTheWay:
		return "OnTheWay"
	case TransportOutStatusArrived:
		return "Arrived"
	}
	return fmt.Sprintf("TransportOutStatus(%d)", int16(s))
}

type TransportOutAction string

const (
	TransportOutActionStart  TransportOutAction = "start"
	TransportOutActionArrive TransportOutAction = "arrive"
)

type transportOutTransition = Transition[TransportOutStatus, TransportOutAction]

var TransportOutTransitions = NewTransitionTable(
	transportOutTransition{TransportOutStatusReady, TransportOutActionStart, TransportOutStatusOnTheWay},
	transportOutTransition{TransportOutStatusOnTheWay, TransportOutActionArrive, TransportOutStatusArrived},
)

// TransportOutStartedStatuses are the statuses of a trip that has left its source.
func TransportOutStartedStatuses() []TransportOutStatus {
	return []TransportOutStatus{TransportOutStatusOnTheWay, TransportOutStatusArrived}
}

type Truck struct {
	ID          uint64
	NumberPlate string
	Enabled     bool
}

type TransportOut struct {
	ID     uint64             `json:"id"`
	Status TransportOutStatus `json:"status"`

	TruckID     uint64 `json:"truck_id"`
	DriverName  string `json:"driver_name"`
	DriverPhone string `json:"driver_phone"`

	SrcDepartmentID uint64 `json:"src_department_id"`
	DstDepartmentID uint64 `json:"dst_department_id"`

	CreatedAt time.Time  `json:"created_at"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

func (t *TransportOut) FullID() string {
	return fmt.Sprintf("SN%08d", t.ID)
}

type TransportOutFilter struct {
	Statuses        []TransportOutStatus
	SrcDepartmentID *uint64
	DstDepartmentID *uint64

	Limit  int
	Offset int
}

type TransportOutSummary struct {
	WaybillCount int     `json:"waybill_count"`
	CargoNum     int64   `json:"cargo_num"`
	CargoVolume  float64 `json:"cargo_volume"`
	CargoWeight  float64 `json:"cargo_weight"`
}

func SummarizeTransportOut(ws []*Waybill) TransportOutSummary {
	var s TransportOutSummary
	for _, w := range ws {
		s.WaybillCount++
		s.CargoNum += int64(w.CargoNum)
		s.CargoVolume += w.CargoVolume
		s.CargoWeight += w.CargoWeight
	}
	return s
}
