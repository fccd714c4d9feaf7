package models

import "time"

// ReviewStatus is the outcome of staging one row for human review.
type ReviewStatus string

const (
	StatusValidationError    ReviewStatus = "VALIDATION_ERROR"
	StatusAmbiguousProperty  ReviewStatus = "AMBIGUOUS_PROPERTY"
	StatusAmbiguousCustomer  ReviewStatus = "AMBIGUOUS_CUSTOMER"
	StatusAmbiguousLease     ReviewStatus = "AMBIGUOUS_LEASE"
	StatusMissingProperty    ReviewStatus = "MISSING_PROPERTY"
	StatusMissingCustomer    ReviewStatus = "MISSING_CUSTOMER"
	StatusMissingLease       ReviewStatus = "MISSING_LEASE"
	StatusPotentialDuplicate ReviewStatus = "POTENTIAL_DUPLICATE"
	StatusPerfect            ReviewStatus = "PERFECT"
)

// IsAmbiguous reports whether the status requires a human selection.
func (s ReviewStatus) IsAmbiguous() bool {
	switch s {
	case StatusAmbiguousProperty, StatusAmbiguousCustomer, StatusAmbiguousLease:
		return true
	}
	return false
}

// IsMissing reports whether a given reference matched nothing.
func (s ReviewStatus) IsMissing() bool {
	switch s {
	case StatusMissingProperty, StatusMissingCustomer, StatusMissingLease:
		return true
	}
	return false
}

// PropertyCandidate is a ranked property match.
type PropertyCandidate struct {
	PropertyID int64
	Name       string
	Address    string
	Score      int
}

// CustomerCandidate is a ranked customer match.
type CustomerCandidate struct {
	CustomerID int64
	Name       string
	Email      string
	Score      int
}

// LeaseCandidate is a ranked lease match.
type LeaseCandidate struct {
	LeaseID   int64
	Reference string
	StartDate time.Time
	EndDate   *time.Time
	Score     int
}

// DuplicateScope is where a duplicate was found.
type DuplicateScope string

const (
	DuplicateNone     DuplicateScope = "none"
	DuplicatePaste    DuplicateScope = "paste"
	DuplicateBatch    DuplicateScope = "batch"
	DuplicateDatabase DuplicateScope = "database"
)

// DuplicateVerdict is the duplicate detector's answer for one row.
type DuplicateVerdict struct {
	Scope DuplicateScope

	// ExistingTransactionID is set for batch and database scopes.
	ExistingTransactionID *int64
}

// ReviewItem is one staged row. It lives only for the duration of a review session.
type ReviewItem struct {
	// Line is the 1-based line number in the original input.
	Line int

	// Raw is the original text of the row.
	Raw string

	Status ReviewStatus

	// Draft is nil for rows that failed to parse.
	Draft *TransactionDraft

	PropertyCandidates []PropertyCandidate
	CustomerCandidates []CustomerCandidate
	LeaseCandidates    []LeaseCandidate
	Duplicate          DuplicateVerdict

	// Selections, auto-filled for single candidates and overridable by the reviewer.
	PropertyID      *int64
	CustomerID      *int64
	LeaseID         *int64
	PaymentSourceID *int64

	// SkipDuplicate defaults to true for duplicates. Setting it false imports the row anyway.
	SkipDuplicate bool

	// Note is appended to the transaction notes on commit.
	Note string

	// Error describes why the row is a VALIDATION_ERROR.
	Error string

	// ErrorKind classifies Error.
	ErrorKind ErrorKind

	// Fatal marks the single item standing in for an input that could not be
	// read at all. It carries no row and is never counted as processed.
	Fatal bool
}

// ReviewTotals summarizes a queue by status class.
type ReviewTotals struct {
	Total       int
	Perfect     int
	NeedsReview int
	HasIssues   int
}

// ReviewQueue is the staged result of one upload.
type ReviewQueue struct {
	BatchID string
	Items   []ReviewItem
	Totals  ReviewTotals
}
