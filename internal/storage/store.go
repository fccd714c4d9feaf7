// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/rentledger/internal/models"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// PropertyStore looks up properties for resolution.
type PropertyStore interface {
	GetProperty(ctx context.Context, id int64) (*models.Property, error)

	// FindPropertiesByName returns properties whose name equals name, ignoring case.
	FindPropertiesByName(ctx context.Context, name string) ([]models.Property, error)

	// ListProperties returns every property ordered by ID.
	ListProperties(ctx context.Context) ([]models.Property, error)
}

// CustomerStore looks up customers for resolution.
type CustomerStore interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)

	// FindCustomersByEmail returns customers whose email equals email, ignoring case.
	FindCustomersByEmail(ctx context.Context, email string) ([]models.Customer, error)

	// ListCustomers returns every customer ordered by ID.
	ListCustomers(ctx context.Context) ([]models.Customer, error)

	// ListPropertyOwners returns customers flagged as property owners, ordered by ID.
	ListPropertyOwners(ctx context.Context) ([]models.Customer, error)
}

// LeaseStore looks up leases for resolution.
type LeaseStore interface {
	// FindLeaseByReference returns ErrNotFound when no lease has the reference.
	FindLeaseByReference(ctx context.Context, reference string) (*models.Lease, error)

	// ListLeasesFor returns leases shared by the property and customer, newest start first.
	ListLeasesFor(ctx context.Context, propertyID, customerID int64) ([]models.Lease, error)
}

// PaymentSourceStore maps vocabulary codes to stored payment sources.
type PaymentSourceStore interface {
	// FindPaymentSourceByCode returns ErrNotFound when the code has no record.
	FindPaymentSourceByCode(ctx context.Context, code string) (*models.PaymentSource, error)
}

// OwnerResolver finds the owner of a property, using the direct owner link
// first and the owner assignment table second.
type OwnerResolver interface {
	// OwnerOf returns ErrNotFound when the property has no owner.
	OwnerOf(ctx context.Context, propertyID int64) (*models.Customer, error)
}

// TransactionStore supports duplicate queries and batch reads.
type TransactionStore interface {
	// FindDuplicate returns the ID of a persisted transaction with the same
	// fingerprint. An empty batchID searches every batch.
	FindDuplicate(ctx context.Context, fp models.Fingerprint, batchID string) (int64, bool, error)

	// ListUnsplitRentPayments returns positive rent payments with a property
	// and no derived rows, oldest first.
	ListUnsplitRentPayments(ctx context.Context) ([]models.Transaction, error)

	// ListDerived returns rows whose IncomingTransactionID is id.
	ListDerived(ctx context.Context, id int64) ([]models.Transaction, error)

	// ListBatches returns the most recent import batches.
	ListBatches(ctx context.Context, limit int) ([]models.BatchInfo, error)
}

// LedgerStore writes postings and reads balance events.
type LedgerStore interface {
	// Post writes the posting in one database transaction. IDs are assigned
	// to every inserted row and event.
	Post(ctx context.Context, posting *models.Posting) error

	// ListBalanceEvents returns events for an owner and property, oldest first.
	ListBalanceEvents(ctx context.Context, ownerID, propertyID int64) ([]models.BalanceEvent, error)
}

// EntityWriter creates the entity graph the resolver matches against.
type EntityWriter interface {
	CreateProperty(ctx context.Context, p *models.Property) error
	CreateCustomer(ctx context.Context, c *models.Customer) error
	CreateLease(ctx context.Context, l *models.Lease) error
	CreatePaymentSource(ctx context.Context, ps *models.PaymentSource) error

	// AssignOwner records customerID as an owner of propertyID.
	AssignOwner(ctx context.Context, propertyID, customerID int64) error
}

// Store is the full persistence surface used by the service layer.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	PropertyStore
	CustomerStore
	LeaseStore
	PaymentSourceStore
	OwnerResolver
	TransactionStore
	LedgerStore
	EntityWriter

	// Close releases any resources held by the store.
	Close() error
}
