package ledger

import (
	"strings"
	"time"

	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/shared"
)

// PaymentMethod is how money entered or left the till.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentPix    PaymentMethod = "PIX"
	PaymentDebit  PaymentMethod = "DEBIT"
	PaymentCredit PaymentMethod = "CREDIT"
)

// PaymentMethods lists the recognized methods in display order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentPix, PaymentDebit, PaymentCredit}

// ParsePaymentMethod normalises user input.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	pm := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	if !pm.Valid() {
		return "", ErrUnknownPaymentMethod.Wrapf("%q", raw)
	}
	return pm, nil
}

// Valid reports whether pm is recognized.
func (pm PaymentMethod) Valid() bool {
	switch pm {
	case PaymentCash, PaymentPix, PaymentDebit, PaymentCredit:
		return true
	default:
		return false
	}
}

// Type tags the transaction variant.
type Type string

const (
	TypeVehicleExit Type = "VEHICLE_EXIT"
	TypeProductSale Type = "PRODUCT_SALE"
	TypeExpense     Type = "EXPENSE"
)

// Transaction is a money movement stamped with the session open when it happened.
type Transaction struct {
	ID              int64         `json:"id"`
	Type            Type          `json:"type"`
	SessionID       int64         `json:"sessionId"`
	OperatorID      int64         `json:"operatorId"`
	Operator        string        `json:"operator"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	OriginalAmount  money.Amount  `json:"originalAmount"`
	DiscountAmount  money.Amount  `json:"discountAmount"`
	FinalAmount     money.Amount  `json:"finalAmount"`
	AmountReceived  money.Amount  `json:"amountReceived"`
	ChangeGiven     money.Amount  `json:"changeGiven"`
	TransactionDate time.Time     `json:"transactionDate"`
	Description     string        `json:"description,omitempty"`
	Reference       *int64        `json:"reference,omitempty"`
	Quantity        int           `json:"quantity,omitempty"`
	DeletedAt       *time.Time    `json:"deletedAt,omitempty"`
	Permanent       bool          `json:"permanent,omitempty"`
}

// Deleted reports whether the transaction was soft-deleted.
func (t Transaction) Deleted() bool {
	return t.DeletedAt != nil
}

// Draft carries the caller-supplied fields of a new transaction.
type Draft struct {
	Type           Type
	SessionID      int64
	Operator       shared.Operator
	PaymentMethod  PaymentMethod
	OriginalAmount money.Amount
	DiscountAmount money.Amount
	AmountReceived money.Amount
	Description    string
	Reference      *int64
	Quantity       int
	At             time.Time
}

var (
	// ErrInsufficientPayment is returned when the tendered amount is below the final amount.
	ErrInsufficientPayment = shared.NewError(shared.KindValidation, "INSUFFICIENT_PAYMENT", "amount received is below the amount due")
	// ErrInvalidAmount is returned for negative amounts.
	ErrInvalidAmount = shared.NewError(shared.KindValidation, "INVALID_AMOUNT", "amounts cannot be negative")
	// ErrUnknownPaymentMethod is returned when a new transaction names an unrecognized method.
	ErrUnknownPaymentMethod = shared.NewError(shared.KindValidation, "UNKNOWN_PAYMENT_METHOD", "unknown payment method")
	// ErrUnknownType is returned for transaction types outside the variant set.
	ErrUnknownType = shared.NewError(shared.KindValidation, "UNKNOWN_TRANSACTION_TYPE", "unknown transaction type")
	// ErrExpenseDescription is returned for expenses without a description.
	ErrExpenseDescription = shared.NewError(shared.KindValidation, "EXPENSE_DESCRIPTION_REQUIRED", "expense description required")
	// ErrTransactionNotFound is returned for unknown transaction ids.
	ErrTransactionNotFound = shared.NewError(shared.KindNotFound, "TRANSACTION_NOT_FOUND", "transaction not found")
	// ErrAlreadyDeleted is returned when deleting a transaction twice.
	ErrAlreadyDeleted = shared.NewError(shared.KindStateConflict, "TRANSACTION_ALREADY_DELETED", "transaction already deleted")
	// ErrLedgerIntegrity signals totals that do not reconcile even after accounting for warnings.
	ErrLedgerIntegrity = shared.NewError(shared.KindInternal, "LEDGER_INTEGRITY", "ledger totals do not reconcile")
)
