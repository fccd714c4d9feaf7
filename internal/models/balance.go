package models

import "github.com/shopspring/decimal"

// BalanceEventKind is the closed set of balance movements.
type BalanceEventKind string

const (
	// EventAllocation credits the owner with the net share of rent.
	EventAllocation BalanceEventKind = "allocation"
	// EventExpense debits the owner for a property expense.
	EventExpense BalanceEventKind = "expense"
	// EventPayment debits the owner for money paid out to them.
	EventPayment BalanceEventKind = "payment"
)

// BalanceEvent is one append-only movement on an owner's balance.
type BalanceEvent struct {
	ID         int64
	OwnerID    int64
	PropertyID int64

	// Period is the balance month, formatted YYYY-MM.
	Period string

	Kind BalanceEventKind

	// Amount is always positive; Kind carries the direction.
	Amount decimal.Decimal

	// TransactionID is the ledger row that caused the event. Set by the store.
	TransactionID int64

	CreatedAt int64
}

// BeneficiaryBalance is the folded balance of one owner on one property for one month.
type BeneficiaryBalance struct {
	OwnerID    int64
	PropertyID int64
	Period     string

	// OpeningBalance is the closing balance of all earlier periods.
	OpeningBalance decimal.Decimal

	RentAllocated decimal.Decimal
	Expenses      decimal.Decimal
	PaymentsOut   decimal.Decimal

	// Balance = OpeningBalance + RentAllocated - Expenses - PaymentsOut.
	Balance decimal.Decimal

	LastTransactionID *int64
}

// NetChange is the movement within the period.
func (b *BeneficiaryBalance) NetChange() decimal.Decimal {
	return b.RentAllocated.Sub(b.Expenses).Sub(b.PaymentsOut)
}

// Overdrawn reports whether the owner currently owes the agency.
func (b *BeneficiaryBalance) Overdrawn() bool {
	return b.Balance.IsNegative()
}

// PaymentDue reports whether the balance has reached the payout threshold.
func (b *BeneficiaryBalance) PaymentDue(threshold decimal.Decimal) bool {
	return b.Balance.IsPositive() && b.Balance.GreaterThanOrEqual(threshold)
}
