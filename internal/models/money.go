package models

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// CeilMul returns ceil(amount * ratio). Decimal math keeps 100 * 0.07 at 7.
func CeilMul(amount int64, ratio float64) int64 {
	if amount == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(ratio)).Ceil().IntPart()
}

// HandlingFee is the fee charged for collecting cargoPrice on the sender's behalf.
func HandlingFee(cargoPrice int64, ratio float64) int64 {
	return CeilMul(cargoPrice, ratio)
}
