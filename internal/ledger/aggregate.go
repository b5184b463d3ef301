package ledger

import (
	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/money"
)

// WarningUnrecognizedPaymentMethod flags a transaction whose payment method
// is outside the known set. Its amount still counts toward the type total.
const WarningUnrecognizedPaymentMethod = "UNRECOGNIZED_PAYMENT_METHOD"

// WarningUnknownType flags a transaction of an unknown variant; it is not counted.
const WarningUnknownType = "UNKNOWN_TRANSACTION_TYPE"

// Warning is a data-integrity finding surfaced with the totals.
type Warning struct {
	Code          string        `json:"code"`
	TransactionID int64         `json:"transactionId"`
	Type          Type          `json:"type"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Amount        money.Amount  `json:"amount"`
}

// SessionTotals is the folded view of one session's transactions.
type SessionTotals struct {
	SessionID        int64                          `json:"sessionId"`
	InitialValue     money.Amount                   `json:"initialValue"`
	ByMethod         map[PaymentMethod]money.Amount `json:"byMethod"`
	ExpensesByMethod map[PaymentMethod]money.Amount `json:"expensesByMethod"`
	VehicleTotal     money.Amount                   `json:"vehicleTotal"`
	ProductTotal     money.Amount                   `json:"productTotal"`
	ExpenseTotal     money.Amount                   `json:"expenseTotal"`
	FinalValue       money.Amount                   `json:"finalValue"`
	Transactions     int                            `json:"transactions"`
	Warnings         []Warning                      `json:"warnings,omitempty"`
}

// Aggregate folds txs into totals. It always starts from scratch and skips
// soft-deleted transactions.
//
// sum(ByMethod) equals VehicleTotal+ProductTotal, and sum(ExpensesByMethod)
// equals ExpenseTotal, whenever Warnings is empty. Each warning accounts for
// exactly the gap it leaves; anything else yields ErrLedgerIntegrity.
func Aggregate(session cashsession.Session, txs []Transaction) (SessionTotals, error) {
	totals := SessionTotals{
		SessionID:        session.ID,
		InitialValue:     session.InitialValue,
		ByMethod:         map[PaymentMethod]money.Amount{},
		ExpensesByMethod: map[PaymentMethod]money.Amount{},
	}
	var unrecognizedIn, unrecognizedOut money.Amount

	for _, tx := range txs {
		if tx.Deleted() {
			continue
		}
		var byMethod map[PaymentMethod]money.Amount
		switch tx.Type {
		case TypeVehicleExit:
			totals.VehicleTotal = totals.VehicleTotal.Add(tx.FinalAmount)
			byMethod = totals.ByMethod
		case TypeProductSale:
			totals.ProductTotal = totals.ProductTotal.Add(tx.FinalAmount)
			byMethod = totals.ByMethod
		case TypeExpense:
			totals.ExpenseTotal = totals.ExpenseTotal.Add(tx.FinalAmount)
			byMethod = totals.ExpensesByMethod
		default:
			totals.Warnings = append(totals.Warnings, warningFor(WarningUnknownType, tx))
			continue
		}
		totals.Transactions++
		if !tx.PaymentMethod.Valid() {
			totals.Warnings = append(totals.Warnings, warningFor(WarningUnrecognizedPaymentMethod, tx))
			if tx.Type == TypeExpense {
				unrecognizedOut = unrecognizedOut.Add(tx.FinalAmount)
			} else {
				unrecognizedIn = unrecognizedIn.Add(tx.FinalAmount)
			}
			continue
		}
		byMethod[tx.PaymentMethod] = byMethod[tx.PaymentMethod].Add(tx.FinalAmount)
	}

	totals.FinalValue = totals.InitialValue.
		Add(totals.VehicleTotal).
		Add(totals.ProductTotal).
		Sub(totals.ExpenseTotal)

	inflow := sumMap(totals.ByMethod).Add(unrecognizedIn)
	outflow := sumMap(totals.ExpensesByMethod).Add(unrecognizedOut)
	if inflow != totals.VehicleTotal.Add(totals.ProductTotal) || outflow != totals.ExpenseTotal {
		return totals, ErrLedgerIntegrity.Wrapf("session %d: inflow %s outflow %s", session.ID, inflow, outflow)
	}
	return totals, nil
}

// Reconciles reports whether the per-method maps add up to the type totals.
func (t SessionTotals) Reconciles() bool {
	return sumMap(t.ByMethod) == t.VehicleTotal.Add(t.ProductTotal) &&
		sumMap(t.ExpensesByMethod) == t.ExpenseTotal
}

func sumMap(m map[PaymentMethod]money.Amount) money.Amount {
	var total money.Amount
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}

func warningFor(code string, tx Transaction) Warning {
	return Warning{
		Code:          code,
		TransactionID: tx.ID,
		Type:          tx.Type,
		PaymentMethod: tx.PaymentMethod,
		Amount:        tx.FinalAmount,
	}
}
