package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property is a managed rental unit.
type Property struct {
	ID int64

	// Name is the display name used in spreadsheets (e.g., "Flat 1 - 3 West Gate").
	Name string

	AddressLine1 string
	AddressLine2 string
	City         string
	Postcode     string

	// CommissionRate is the agency commission in percent. Nil means the default rate applies.
	CommissionRate *decimal.Decimal

	// OwnerID is the direct owner link. When nil the owner assignment table is consulted.
	OwnerID *int64
}

// Customer is a tenant, owner or contractor.
type Customer struct {
	ID    int64
	Name  string
	Email string

	// IsPropertyOwner marks customers that may receive owner allocations.
	IsPropertyOwner bool
}

// Lease binds a customer to a property for a period.
type Lease struct {
	ID         int64
	Reference  string
	PropertyID int64
	CustomerID int64
	StartDate  time.Time

	// EndDate is nil for open-ended leases.
	EndDate *time.Time

	MonthlyRent decimal.Decimal
}

// Payment source vocabulary codes.
const (
	PaymentSourceOldAccount = "OLD_ACCOUNT"
	PaymentSourcePayProp    = "PAYPROP"
	PaymentSourceCalmony    = "CALMONY"
)

// PaymentSource is a named account money arrives through.
type PaymentSource struct {
	ID   int64
	Code string
	Name string
}
