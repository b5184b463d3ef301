package billing

import (
	"strings"
	"time"

	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/shared"
)

// Category enumerates pricing policies.
type Category string

const (
	CategoryFixed     Category = "FIXED"
	CategoryPerHour   Category = "PER_HOUR"
	CategoryPerMinute Category = "PER_MINUTE"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryFixed, CategoryPerHour, CategoryPerMinute:
		return true
	default:
		return false
	}
}

// VehicleType selects the unit price column.
type VehicleType string

const (
	VehicleCar        VehicleType = "CAR"
	VehicleMotorcycle VehicleType = "MOTORCYCLE"
	// VehicleLarge extends the price table; it uses the same algorithm.
	VehicleLarge VehicleType = "LARGE"
)

// Valid reports whether v is a known vehicle type.
func (v VehicleType) Valid() bool {
	switch v {
	case VehicleCar, VehicleMotorcycle, VehicleLarge:
		return true
	default:
		return false
	}
}

// Method is a named pricing policy. Methods are never hard-deleted.
type Method struct {
	ID               int64        `json:"id"`
	Title            string       `json:"title"`
	Category         Category     `json:"category"`
	ToleranceMinutes int          `json:"toleranceMinutes"`
	BlockMinutes     int          `json:"blockMinutes"`
	CarPrice         money.Amount `json:"carPrice"`
	MotoPrice        money.Amount `json:"motoPrice"`
	LargePrice       money.Amount `json:"largePrice"`
	IsActive         bool         `json:"isActive"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// UnitPrice returns the per-block (or fixed) price for a vehicle type.
func (m Method) UnitPrice(vt VehicleType) (money.Amount, error) {
	switch vt {
	case VehicleCar:
		return m.CarPrice, nil
	case VehicleMotorcycle:
		return m.MotoPrice, nil
	case VehicleLarge:
		return m.LargePrice, nil
	default:
		return 0, ErrUnknownVehicleType.Wrapf("%q", vt)
	}
}

// MethodInput carries the editable fields of a method.
type MethodInput struct {
	Title            string       `json:"title" validate:"required,max=80"`
	Category         Category     `json:"category" validate:"required,oneof=FIXED PER_HOUR PER_MINUTE"`
	ToleranceMinutes int          `json:"toleranceMinutes" validate:"min=0"`
	BlockMinutes     int          `json:"blockMinutes" validate:"min=0"`
	CarPrice         money.Amount `json:"carPrice"`
	MotoPrice        money.Amount `json:"motoPrice"`
	LargePrice       money.Amount `json:"largePrice"`
}

// Normalize trims the title and zeroes fields FIXED methods ignore.
func (in MethodInput) Normalize() MethodInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.Category == CategoryFixed {
		in.ToleranceMinutes = 0
		in.BlockMinutes = 0
	}
	return in
}

// Validate checks the input independently of storage.
func (in MethodInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrInvalidMethod.Wrapf("title required")
	}
	if !in.Category.Valid() {
		return ErrInvalidMethod.Wrapf("unknown category %q", in.Category)
	}
	if in.ToleranceMinutes < 0 {
		return ErrInvalidMethod.Wrapf("tolerance cannot be negative")
	}
	if in.Category != CategoryFixed && in.BlockMinutes <= 0 {
		return ErrInvalidMethod.Wrapf("block length must be greater than zero")
	}
	if in.CarPrice.IsNegative() || in.MotoPrice.IsNegative() || in.LargePrice.IsNegative() {
		return ErrInvalidMethod.Wrapf("prices cannot be negative")
	}
	return nil
}

var (
	// ErrInvalidInterval is returned when exit precedes entry.
	ErrInvalidInterval = shared.NewError(shared.KindValidation, "INVALID_INTERVAL", "billing: exit time precedes entry time")
	// ErrMethodNotFound is returned for unknown methods.
	ErrMethodNotFound = shared.NewError(shared.KindNotFound, "METHOD_NOT_FOUND", "billing: method not found")
	// ErrMethodInactive is returned when assigning a deactivated method to a new entry.
	ErrMethodInactive = shared.NewError(shared.KindStateConflict, "METHOD_INACTIVE", "billing: method is deactivated")
	// ErrMethodAlreadyActive is returned when reactivating an active method.
	ErrMethodAlreadyActive = shared.NewError(shared.KindStateConflict, "METHOD_ALREADY_ACTIVE", "billing: method already active")
	// ErrDuplicateTitle is returned when another active method uses the title.
	ErrDuplicateTitle = shared.NewError(shared.KindStateConflict, "METHOD_DUPLICATE_TITLE", "billing: an active method already uses this title")
	// ErrInvalidMethod is returned for incoherent method definitions.
	ErrInvalidMethod = shared.NewError(shared.KindValidation, "INVALID_METHOD", "billing: invalid method")
	// ErrUnknownVehicleType is returned for vehicle types outside the price table.
	ErrUnknownVehicleType = shared.NewError(shared.KindValidation, "UNKNOWN_VEHICLE_TYPE", "billing: unknown vehicle type")
	// ErrNegativeAmount signals a broken invariant; it is never expected.
	ErrNegativeAmount = shared.NewError(shared.KindInternal, "NEGATIVE_CHARGE", "billing: computed a negative charge")
)
