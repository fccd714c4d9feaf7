package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/models"
)

// EventForBalance is a balance movement with the minimal information needed
// to fold it.
type EventForBalance struct {
	Period        string // YYYY-MM
	Kind          models.BalanceEventKind
	Amount        decimal.Decimal // positive; Kind carries the direction
	TransactionID int64
}

// PeriodBalance is the folded balance for one period.
type PeriodBalance struct {
	Opening       decimal.Decimal
	RentAllocated decimal.Decimal
	Expenses      decimal.Decimal
	PaymentsOut   decimal.Decimal
	Closing       decimal.Decimal

	// LastTransactionID is the last event's transaction in or before the period.
	LastTransactionID *int64
}

// FoldBalance computes the balance for period from an owner's events.
//
// Algorithm:
// - Events in earlier periods fold into the opening balance
// - Events in the period fill the allocation, expense and payment accumulators
// - Events in later periods are ignored
// - closing = opening + allocated − expenses − payments
func FoldBalance(events []EventForBalance, period string) PeriodBalance {
	var b PeriodBalance
	for i := range events {
		e := events[i]
		if e.Period > period {
			continue
		}
		amount := e.Amount.Abs()

		if e.Period < period {
			b.Opening = b.Opening.Add(signed(e.Kind, amount))
		} else {
			switch e.Kind {
			case models.EventAllocation:
				b.RentAllocated = b.RentAllocated.Add(amount)
			case models.EventExpense:
				b.Expenses = b.Expenses.Add(amount)
			case models.EventPayment:
				b.PaymentsOut = b.PaymentsOut.Add(amount)
			}
		}

		id := e.TransactionID
		b.LastTransactionID = &id
	}

	b.Closing = b.Opening.Add(b.RentAllocated).Sub(b.Expenses).Sub(b.PaymentsOut)
	return b
}

func signed(kind models.BalanceEventKind, amount decimal.Decimal) decimal.Decimal {
	switch kind {
	case models.EventAllocation:
		return amount
	case models.EventExpense, models.EventPayment:
		return amount.Neg()
	}
	return decimal.Zero
}
