package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/money"
)

func session(initial string) cashsession.Session {
	return cashsession.Session{ID: 1, State: cashsession.StateOpen, InitialValue: money.MustParse(initial)}
}

func tx(id int64, typ Type, pm PaymentMethod, amount string) Transaction {
	return Transaction{ID: id, Type: typ, SessionID: 1, PaymentMethod: pm, FinalAmount: money.MustParse(amount)}
}

func TestAggregateScenario(t *testing.T) {
	totals, err := Aggregate(session("100.00"), []Transaction{
		tx(1, TypeVehicleExit, PaymentCash, "15.00"),
		tx(2, TypeProductSale, PaymentPix, "8.00"),
		tx(3, TypeExpense, PaymentCash, "5.00"),
	})
	require.NoError(t, err)
	require.Equal(t, money.MustParse("118.00"), totals.FinalValue)
	require.Equal(t, money.MustParse("15.00"), totals.ByMethod[PaymentCash])
	require.Equal(t, money.MustParse("8.00"), totals.ByMethod[PaymentPix])
	require.Equal(t, money.MustParse("5.00"), totals.ExpensesByMethod[PaymentCash])
	require.Equal(t, money.MustParse("15.00"), totals.VehicleTotal)
	require.Equal(t, money.MustParse("8.00"), totals.ProductTotal)
	require.Equal(t, money.MustParse("5.00"), totals.ExpenseTotal)
	require.Equal(t, 3, totals.Transactions)
	require.Empty(t, totals.Warnings)
	require.True(t, totals.Reconciles())
}

func TestAggregateSkipsDeleted(t *testing.T) {
	deletedAt := time.Now()
	gone := tx(2, TypeVehicleExit, PaymentDebit, "40.00")
	gone.DeletedAt = &deletedAt

	totals, err := Aggregate(session("0.00"), []Transaction{
		tx(1, TypeVehicleExit, PaymentDebit, "10.00"),
		gone,
	})
	require.NoError(t, err)
	require.Equal(t, money.MustParse("10.00"), totals.VehicleTotal)
	require.Equal(t, money.MustParse("10.00"), totals.FinalValue)
	require.Equal(t, 1, totals.Transactions)
}

func TestAggregateSurfacesUnrecognizedMethods(t *testing.T) {
	totals, err := Aggregate(session("0.00"), []Transaction{
		tx(1, TypeVehicleExit, PaymentCash, "10.00"),
		tx(2, TypeProductSale, "VOUCHER", "4.00"),
		tx(3, TypeExpense, "", "1.00"),
		tx(4, "REFUND", PaymentCash, "2.00"),
	})
	require.NoError(t, err)
	require.Len(t, totals.Warnings, 3)
	require.Equal(t, WarningUnrecognizedPaymentMethod, totals.Warnings[0].Code)
	require.Equal(t, int64(2), totals.Warnings[0].TransactionID)
	require.Equal(t, WarningUnknownType, totals.Warnings[2].Code)

	require.Equal(t, money.MustParse("4.00"), totals.ProductTotal)
	require.Equal(t, money.MustParse("13.00"), totals.FinalValue)
	require.False(t, totals.Reconciles())
}

func TestAggregateReconcilesRandomSets(t *testing.T) {
	rng := rand.New(rand.NewSource(20260501))
	types := []Type{TypeVehicleExit, TypeProductSale, TypeExpense}
	for round := 0; round < 300; round++ {
		n := rng.Intn(60)
		txs := make([]Transaction, 0, n)
		var expectIn, expectOut money.Amount
		for i := 0; i < n; i++ {
			item := Transaction{
				ID:            int64(i + 1),
				Type:          types[rng.Intn(len(types))],
				PaymentMethod: PaymentMethods[rng.Intn(len(PaymentMethods))],
				FinalAmount:   money.FromCents(int64(rng.Intn(100000))),
			}
			if rng.Intn(10) == 0 {
				now := time.Now()
				item.DeletedAt = &now
			} else if item.Type == TypeExpense {
				expectOut = expectOut.Add(item.FinalAmount)
			} else {
				expectIn = expectIn.Add(item.FinalAmount)
			}
			txs = append(txs, item)
		}
		initial := money.FromCents(int64(rng.Intn(50000)))
		totals, err := Aggregate(cashsession.Session{ID: 1, InitialValue: initial}, txs)
		require.NoError(t, err)
		require.Empty(t, totals.Warnings)
		require.Equal(t, totals.VehicleTotal.Add(totals.ProductTotal), sumMap(totals.ByMethod))
		require.Equal(t, totals.ExpenseTotal, sumMap(totals.ExpensesByMethod))
		require.Equal(t, expectIn, totals.VehicleTotal.Add(totals.ProductTotal))
		require.Equal(t, expectOut, totals.ExpenseTotal)
		require.Equal(t, initial.Add(expectIn).Sub(expectOut), totals.FinalValue)
	}
}
