package vehicles

import (
	"regexp"
	"strings"
	"time"

	"github.com/parkyard/parkyard/internal/billing"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/shared"
)

// Status is the lifecycle of a stay.
type Status string

const (
	StatusInside  Status = "INSIDE"
	StatusExited  Status = "EXITED"
	StatusDeleted Status = "DELETED"
)

// Stay is one vehicle's visit to the lot. Method is the billing method as it
// was at entry; exit pricing always uses this snapshot.
type Stay struct {
	ID              int64               `json:"id"`
	Plate           string              `json:"plate"`
	VehicleType     billing.VehicleType `json:"vehicleType"`
	BillingMethodID int64               `json:"billingMethodId"`
	Method          billing.Method      `json:"billingMethod"`
	EntryTime       time.Time           `json:"entryTime"`
	ExitTime        *time.Time          `json:"exitTime"`
	Status          Status              `json:"status"`
	OperatorID      int64               `json:"operatorId"`
	Operator        string              `json:"operator"`
	Observation     string              `json:"observation,omitempty"`
	DeletedAt       *time.Time          `json:"deletedAt,omitempty"`
	DeleteReason    string              `json:"deleteReason,omitempty"`
	Permanent       bool                `json:"permanent,omitempty"`
	TransactionID   *int64              `json:"transactionId,omitempty"`
}

// EntryInput registers a vehicle entering the lot.
type EntryInput struct {
	Plate           string              `json:"plate" validate:"required,max=10"`
	VehicleType     billing.VehicleType `json:"vehicleType" validate:"required,oneof=CAR MOTORCYCLE LARGE"`
	BillingMethodID int64               `json:"billingMethodId" validate:"required,gt=0"`
	Observation     string              `json:"observation" validate:"max=500"`
}

// ExitInput commits a vehicle exit.
type ExitInput struct {
	PaymentMethod  ledger.PaymentMethod `json:"paymentMethod" validate:"required"`
	Discount       money.Amount         `json:"discount"`
	AmountReceived money.Amount         `json:"amountReceived"`
	IdempotencyKey string               `json:"-"`
}

// Calculation is the read-only quote for a stay.
type Calculation struct {
	StayID         int64         `json:"stayId"`
	At             time.Time     `json:"at"`
	Quote          billing.Quote `json:"quote"`
	Amount         money.Amount  `json:"amount"`
	ElapsedMinutes int64         `json:"elapsedMinutes"`
	Display        string        `json:"display"`
}

// ExitResult is returned by CommitExit.
type ExitResult struct {
	Stay        Stay               `json:"stay"`
	Transaction ledger.Transaction `json:"transaction"`
	Quote       billing.Quote      `json:"quote"`
}

var plateRe = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z0-9][0-9]{2}$`)

// NormalizePlate upper-cases the plate and strips separators. Both the old
// ABC1234 layout and the Mercosul ABC1D23 layout are accepted.
func NormalizePlate(raw string) (string, error) {
	plate := strings.ToUpper(strings.TrimSpace(raw))
	plate = strings.NewReplacer("-", "", " ", "", ".", "").Replace(plate)
	if !plateRe.MatchString(plate) {
		return "", ErrInvalidPlate.Wrapf("%q", raw)
	}
	return plate, nil
}

var (
	// ErrStayNotFound is returned for unknown stays.
	ErrStayNotFound = shared.NewError(shared.KindNotFound, "STAY_NOT_FOUND", "vehicle stay not found")
	// ErrAlreadyInside is returned when the plate already has an INSIDE stay.
	ErrAlreadyInside = shared.NewError(shared.KindStateConflict, "PLATE_ALREADY_INSIDE", "vehicle with this plate is already inside")
	// ErrNotInside is returned for exit or delete on a stay that is not INSIDE.
	ErrNotInside = shared.NewError(shared.KindStateConflict, "STAY_NOT_INSIDE", "vehicle is not inside the lot")
	// ErrNotRestorable is returned when restoring a stay that was not soft-deleted or was deleted permanently.
	ErrNotRestorable = shared.NewError(shared.KindStateConflict, "STAY_NOT_RESTORABLE", "vehicle cannot be returned to the lot")
	// ErrInvalidPlate is returned for malformed plates.
	ErrInvalidPlate = shared.NewError(shared.KindValidation, "INVALID_PLATE", "invalid plate")
)
