// Package models defines the core domain models for rentledger.
//
// # Import pipeline
//
// Raw rows are parsed into a TransactionDraft, matched against the entity
// graph (Property, Customer, Lease) to produce ranked candidates, checked for
// duplicates, and staged as a ReviewItem inside a ReviewQueue. Confirmed items
// become Transaction rows.
//
// # Ledger
//
// Transactions are append-only. A rent payment bound to a property with an
// owner produces two derived rows (owner allocation and agency fee) linked
// back through IncomingTransactionID. Owner balances are not stored as
// mutable snapshots: each relevant posting appends a BalanceEvent, and a
// BeneficiaryBalance is folded from those events on read.
//
// # Conventions
//
//  1. Money is shopspring/decimal, never float64
//  2. Entity and transaction IDs are int64 assigned by the store
//  3. Batch IDs are UUID strings
//  4. Relationships use IDs instead of pointers to other models
package models
