package ledger

import (
	"strings"
	"time"

	"github.com/parkyard/parkyard/internal/money"
)

// Settlement is the money breakdown of a sale before it is persisted.
type Settlement struct {
	FinalAmount money.Amount `json:"finalAmount"`
	ChangeGiven money.Amount `json:"changeGiven"`
}

// Settle applies the discount and computes the change. It is pure and safe to
// call on every keystroke while the operator edits the fields.
func Settle(original, discount, received money.Amount) (Settlement, error) {
	if original.IsNegative() || discount.IsNegative() || received.IsNegative() {
		return Settlement{}, ErrInvalidAmount
	}
	final := original.Sub(discount).ClampZero()
	if received < final {
		return Settlement{}, ErrInsufficientPayment.WithDetails(map[string]any{
			"finalAmount":    final.String(),
			"amountReceived": received.String(),
		})
	}
	return Settlement{FinalAmount: final, ChangeGiven: received.Sub(final)}, nil
}

// NewTransaction validates a draft and fills the derived amounts.
// Expenses are outflows: the received amount is the final amount and no
// change is given.
func NewTransaction(d Draft) (Transaction, error) {
	if !d.PaymentMethod.Valid() {
		return Transaction{}, ErrUnknownPaymentMethod.Wrapf("%q", d.PaymentMethod)
	}
	received := d.AmountReceived
	switch d.Type {
	case TypeVehicleExit, TypeProductSale:
	case TypeExpense:
		if strings.TrimSpace(d.Description) == "" {
			return Transaction{}, ErrExpenseDescription
		}
		if d.OriginalAmount.IsZero() {
			return Transaction{}, ErrInvalidAmount.Wrapf("expense amount must be greater than zero")
		}
		received = d.OriginalAmount.Sub(d.DiscountAmount).ClampZero()
	default:
		return Transaction{}, ErrUnknownType.Wrapf("%q", d.Type)
	}
	st, err := Settle(d.OriginalAmount, d.DiscountAmount, received)
	if err != nil {
		return Transaction{}, err
	}
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	return Transaction{
		Type:            d.Type,
		SessionID:       d.SessionID,
		OperatorID:      d.Operator.ID,
		Operator:        d.Operator.Username,
		PaymentMethod:   d.PaymentMethod,
		OriginalAmount:  d.OriginalAmount,
		DiscountAmount:  d.DiscountAmount,
		FinalAmount:     st.FinalAmount,
		AmountReceived:  received,
		ChangeGiven:     st.ChangeGiven,
		TransactionDate: at,
		Description:     strings.TrimSpace(d.Description),
		Reference:       d.Reference,
		Quantity:        d.Quantity,
	}, nil
}
