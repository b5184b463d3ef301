// Package products holds the small product catalog sold at the cash desk and
// books product sales against the open cash session.
package products

import (
	"strings"
	"time"

	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/shared"
)

// Product is a catalog entry with its on-hand quantity.
type Product struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	UnitPrice money.Amount `json:"unitPrice"`
	Quantity  int          `json:"quantity"`
	IsActive  bool         `json:"isActive"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// ProductInput carries the fields of a new product.
type ProductInput struct {
	Name      string       `json:"name" validate:"required,max=120"`
	UnitPrice money.Amount `json:"unitPrice"`
	Quantity  int          `json:"quantity" validate:"gte=0"`
}

// Normalize trims the name.
func (in *ProductInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

// Validate checks the business rules the struct tags cannot express.
func (in ProductInput) Validate() error {
	if in.Name == "" {
		return ErrInvalidProduct.Wrapf("name required")
	}
	if in.UnitPrice.IsNegative() {
		return ErrInvalidProduct.Wrapf("unit price cannot be negative")
	}
	if in.Quantity < 0 {
		return ErrInvalidProduct.Wrapf("quantity cannot be negative")
	}
	return nil
}

// SaleInput describes a product sale at the desk.
type SaleInput struct {
	Quantity       int                  `json:"quantity" validate:"gt=0"`
	PaymentMethod  ledger.PaymentMethod `json:"paymentMethod" validate:"required"`
	Discount       money.Amount         `json:"discount"`
	AmountReceived money.Amount         `json:"amountReceived"`
}

// SaleResult is the product after the sale and the booked transaction.
type SaleResult struct {
	Product     Product            `json:"product"`
	Transaction ledger.Transaction `json:"transaction"`
}

var (
	// ErrProductNotFound is returned for unknown products.
	ErrProductNotFound = shared.NewError(shared.KindNotFound, "PRODUCT_NOT_FOUND", "product not found")
	// ErrProductInactive is returned when selling a deactivated product.
	ErrProductInactive = shared.NewError(shared.KindStateConflict, "PRODUCT_INACTIVE", "product is deactivated")
	// ErrInsufficientStock is returned when the requested quantity exceeds the
	// stock not already reserved by sales in progress.
	ErrInsufficientStock = shared.NewError(shared.KindStateConflict, "INSUFFICIENT_STOCK", "insufficient stock")
	// ErrInvalidProduct is returned for malformed catalog input.
	ErrInvalidProduct = shared.NewError(shared.KindValidation, "INVALID_PRODUCT", "invalid product")
	// ErrInvalidQuantity is returned for non-positive sale quantities.
	ErrInvalidQuantity = shared.NewError(shared.KindValidation, "INVALID_QUANTITY", "quantity must be greater than zero")
)
