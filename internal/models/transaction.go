package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of ledger entry kinds.
type TransactionType string

const (
	TypePayment    TransactionType = "payment"
	TypeInvoice    TransactionType = "invoice"
	TypeFee        TransactionType = "fee"
	TypeExpense    TransactionType = "expense"
	TypeAdjustment TransactionType = "adjustment"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypePayment, TypeInvoice, TypeFee, TypeExpense, TypeAdjustment:
		return true
	}
	return false
}

// TransactionSource records where a transaction entered the system.
type TransactionSource string

const (
	SourceHistoricalImport  TransactionSource = "historical_import"
	SourceSpreadsheetImport TransactionSource = "spreadsheet_import"
	SourceBankImport        TransactionSource = "bank_import"
	SourceManualEntry       TransactionSource = "manual_entry"
	SourceCommissionSplit   TransactionSource = "commission_split"
)

// Valid reports whether s is one of the known sources.
func (s TransactionSource) Valid() bool {
	switch s {
	case SourceHistoricalImport, SourceSpreadsheetImport, SourceBankImport, SourceManualEntry, SourceCommissionSplit:
		return true
	}
	return false
}

// Beneficiary types carried on transactions.
const (
	BeneficiaryOwner      = "beneficiary"
	BeneficiaryAgency     = "agency"
	BeneficiaryContractor = "contractor"
)

// Categories with ledger meaning.
const (
	CategoryRent            = "rent"
	CategoryRentalPayment   = "rental_payment"
	CategoryOwnerAllocation = "owner_allocation"
	CategoryManagementFee   = "management_fee"
)

// TransactionDraft is a parsed but unresolved row. It is never persisted as-is.
type TransactionDraft struct {
	// Date is the transaction date (time component is always midnight UTC).
	Date time.Time

	// Amount is the signed amount as given by the source.
	Amount decimal.Decimal

	// Description is either supplied or synthesized by the parser.
	Description string

	// Type is supplied, normalized from a synonym, or inferred.
	Type TransactionType

	Category    string
	Subcategory string

	// Raw reference strings, matched later by the resolver.
	PropertyRef string
	CustomerRef string
	LeaseRef    string

	// PaymentSourceCode is the canonical vocabulary code (OLD_ACCOUNT, PAYPROP, CALMONY).
	PaymentSourceCode string

	BeneficiaryType string

	// IncomingAmount is the gross amount when the row describes an incoming payment.
	IncomingAmount *decimal.Decimal

	BankReference    string
	PaymentMethod    string
	CounterpartyName string
	Source           TransactionSource
	Notes            string
}

// Transaction is a persisted ledger row. Rows are never updated; corrections
// are new rows.
type Transaction struct {
	// ID is assigned by the store on insert.
	ID int64

	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Type        TransactionType
	Category    string
	Subcategory string

	// Optional links into the entity graph.
	PropertyID *int64
	CustomerID *int64
	LeaseID    *int64

	BeneficiaryType string
	PaymentSourceID *int64

	// IncomingTransactionID links a derived row back to the gross payment it came from.
	IncomingTransactionID *int64

	// Commission fields are populated on incoming rows and their derived rows.
	IncomingAmount   *decimal.Decimal
	CommissionRate   *decimal.Decimal
	CommissionAmount *decimal.Decimal
	NetToOwnerAmount *decimal.Decimal

	Source           TransactionSource
	BankReference    string
	PaymentMethod    string
	CounterpartyName string
	Notes            string

	// BatchID groups rows from one import session.
	BatchID string

	// CreatedBy is the actor that committed the row.
	CreatedBy string

	// CreatedAt is the Unix timestamp of insertion.
	CreatedAt int64
}

// Period returns the balance month (YYYY-MM) the transaction falls into.
func (t *Transaction) Period() string {
	return PeriodOf(t.Date)
}

// PeriodOf formats a date as a balance period key.
func PeriodOf(date time.Time) string {
	return date.Format("2006-01")
}

// Fingerprint is the identity used for duplicate detection.
type Fingerprint struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Type        TransactionType
	PropertyID  *int64
	CustomerID  *int64
}

// Key returns a stable string form of the fingerprint.
func (f Fingerprint) Key() string {
	return strings.Join([]string{
		f.Date.Format("2006-01-02"),
		f.Amount.String(),
		f.Description,
		string(f.Type),
		idOrNull(f.PropertyID),
		idOrNull(f.CustomerID),
	}, "|")
}

func idOrNull(id *int64) string {
	if id == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *id)
}
