package billing

import (
	"time"

	"github.com/parkyard/parkyard/internal/money"
)

// Quote is the breakdown of a computed charge.
type Quote struct {
	Amount          money.Amount `json:"amount"`
	ElapsedMinutes  int64        `json:"elapsedMinutes"`
	BillableMinutes int64        `json:"billableMinutes"`
	Blocks          int64        `json:"blocks"`
}

// ElapsedMinutes counts every started minute between entry and exit.
// A zero-length stay is 0 minutes.
func ElapsedMinutes(entry, exit time.Time) (int64, error) {
	if exit.Before(entry) {
		return 0, ErrInvalidInterval
	}
	d := exit.Sub(entry)
	minutes := int64(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return minutes, nil
}

// Compute prices a stay. The method passed in is the snapshot frozen on the
// stay, so deactivated methods still price their historical entries.
func Compute(method *Method, entry, exit time.Time, vt VehicleType) (Quote, error) {
	if method == nil {
		return Quote{}, ErrMethodNotFound
	}
	elapsed, err := ElapsedMinutes(entry, exit)
	if err != nil {
		return Quote{}, err
	}
	unit, err := method.UnitPrice(vt)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{ElapsedMinutes: elapsed}

	switch method.Category {
	case CategoryFixed:
		q.Amount = unit
	case CategoryPerHour, CategoryPerMinute:
		if method.BlockMinutes <= 0 {
			return Quote{}, ErrInvalidMethod.Wrapf("block length must be greater than zero")
		}
		billable := elapsed - int64(method.ToleranceMinutes)
		if billable <= 0 {
			return q, nil
		}
		block := int64(method.BlockMinutes)
		q.BillableMinutes = billable
		q.Blocks = (billable + block - 1) / block
		q.Amount = unit.Mul(q.Blocks)
	default:
		return Quote{}, ErrInvalidMethod.Wrapf("unknown category %q", method.Category)
	}

	if q.Amount.IsNegative() {
		return Quote{}, ErrNegativeAmount
	}
	return q, nil
}

// ComputeAmount returns only the charge of Compute.
func ComputeAmount(method *Method, entry, exit time.Time, vt VehicleType) (money.Amount, error) {
	q, err := Compute(method, entry, exit, vt)
	if err != nil {
		return 0, err
	}
	return q.Amount, nil
}
