package models

// SkipCounts tallies skipped duplicates per scope.
type SkipCounts struct {
	Paste    int
	Batch    int
	Database int
}

// ImportResult is the outcome of committing a review queue.
type ImportResult struct {
	BatchID           string
	TotalProcessed    int
	SuccessfulImports int
	FailedImports     int
	SkippedByLevel    SkipCounts

	// DerivedEntries counts owner allocation and agency fee rows created.
	DerivedEntries int

	Errors   []RowIssue
	Skipped  []RowIssue
	Warnings []RowIssue

	// Overdrawn lists balances that went negative during the commit.
	Overdrawn []BeneficiaryBalance
}

// Posting is the unit the ledger store writes atomically: a primary
// transaction, its optional balance event, and any derived rows.
type Posting struct {
	// Primary is inserted unless it already has an ID.
	Primary *Transaction

	// PrimaryEvent, when set, is appended for the primary row.
	PrimaryEvent *BalanceEvent

	Derived []DerivedEntry
}

// DerivedEntry is a row computed from the primary transaction.
type DerivedEntry struct {
	Transaction *Transaction

	// Event, when set, is appended for the derived row.
	Event *BalanceEvent
}

// BatchInfo summarizes a persisted import batch.
type BatchInfo struct {
	BatchID   string
	Rows      int
	FirstDate string
	LastDate  string
	CreatedAt int64
}
