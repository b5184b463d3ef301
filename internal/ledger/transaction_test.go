package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/shared"
)

func TestSettleComputesChange(t *testing.T) {
	st, err := Settle(money.MustParse("23.50"), money.Zero, money.MustParse("30.00"))
	require.NoError(t, err)
	require.Equal(t, money.MustParse("23.50"), st.FinalAmount)
	require.Equal(t, money.MustParse("6.50"), st.ChangeGiven)

	_, err = Settle(money.MustParse("23.50"), money.Zero, money.MustParse("20.00"))
	require.ErrorIs(t, err, ErrInsufficientPayment)
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestSettleClampsDiscount(t *testing.T) {
	st, err := Settle(money.MustParse("10.00"), money.MustParse("12.00"), money.Zero)
	require.NoError(t, err)
	require.True(t, st.FinalAmount.IsZero())
	require.True(t, st.ChangeGiven.IsZero())

	_, err = Settle(money.MustParse("10.00"), money.FromCents(-1), money.MustParse("10.00"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNewTransactionRejectsBeforePersistence(t *testing.T) {
	_, err := NewTransaction(Draft{
		Type:           TypeVehicleExit,
		PaymentMethod:  PaymentCash,
		OriginalAmount: money.MustParse("23.50"),
		AmountReceived: money.MustParse("20.00"),
	})
	require.ErrorIs(t, err, ErrInsufficientPayment)

	tx, err := NewTransaction(Draft{
		Type:           TypeVehicleExit,
		SessionID:      3,
		Operator:       shared.Operator{ID: 1, Username: "ana"},
		PaymentMethod:  PaymentCash,
		OriginalAmount: money.MustParse("25.00"),
		DiscountAmount: money.MustParse("1.50"),
		AmountReceived: money.MustParse("30.00"),
	})
	require.NoError(t, err)
	require.Equal(t, money.MustParse("23.50"), tx.FinalAmount)
	require.Equal(t, money.MustParse("6.50"), tx.ChangeGiven)
	require.Equal(t, "ana", tx.Operator)
	require.False(t, tx.TransactionDate.IsZero())
}

func TestNewTransactionValidatesVariant(t *testing.T) {
	_, err := NewTransaction(Draft{Type: TypeProductSale, PaymentMethod: "BOLETO", OriginalAmount: 100})
	require.ErrorIs(t, err, ErrUnknownPaymentMethod)

	_, err = NewTransaction(Draft{Type: "REFUND", PaymentMethod: PaymentPix})
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = NewTransaction(Draft{Type: TypeExpense, PaymentMethod: PaymentCash, OriginalAmount: 500})
	require.ErrorIs(t, err, ErrExpenseDescription)

	_, err = NewTransaction(Draft{Type: TypeExpense, PaymentMethod: PaymentCash, Description: "troco"})
	require.ErrorIs(t, err, ErrInvalidAmount)

	expense, err := NewTransaction(Draft{Type: TypeExpense, PaymentMethod: PaymentCash, OriginalAmount: 500, Description: " gelo "})
	require.NoError(t, err)
	require.Equal(t, money.MustParse("5.00"), expense.FinalAmount)
	require.Equal(t, expense.FinalAmount, expense.AmountReceived)
	require.True(t, expense.ChangeGiven.IsZero())
	require.Equal(t, "gelo", expense.Description)
}

func TestParsePaymentMethod(t *testing.T) {
	pm, err := ParsePaymentMethod(" pix ")
	require.NoError(t, err)
	require.Equal(t, PaymentPix, pm)

	_, err = ParsePaymentMethod("cheque")
	require.ErrorIs(t, err, ErrUnknownPaymentMethod)
}
