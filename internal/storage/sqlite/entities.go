package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/storage"
)

const propertyColumns = "id, name, address_line1, address_line2, city, postcode, commission_rate, owner_id"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	p := &models.Property{}
	var rate decimal.NullDecimal
	var owner sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &p.AddressLine1, &p.AddressLine2, &p.City, &p.Postcode, &rate, &owner); err != nil {
		return nil, err
	}
	p.CommissionRate = decimalPtr(rate)
	p.OwnerID = int64Ptr(owner)
	return p, nil
}

// CreateProperty inserts a property and sets its ID.
func (s *SQLiteStore) CreateProperty(ctx context.Context, p *models.Property) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO properties (name, address_line1, address_line2, city, postcode, commission_rate, owner_id) VALUES (?, ?, ?, ?, ?, ?, ?)",
		p.Name, p.AddressLine1, p.AddressLine2, p.City, p.Postcode, nullDecimal(p.CommissionRate), nullInt64(p.OwnerID),
	)
	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read property id: %w", err)
	}
	return nil
}

// GetProperty retrieves a property by ID.
func (s *SQLiteStore) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	p, err := scanProperty(s.db.QueryRowContext(ctx,
		"SELECT "+propertyColumns+" FROM properties WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("property %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return p, nil
}

// FindPropertiesByName returns properties whose name matches ignoring case.
func (s *SQLiteStore) FindPropertiesByName(ctx context.Context, name string) ([]models.Property, error) {
	return s.queryProperties(ctx,
		"SELECT "+propertyColumns+" FROM properties WHERE LOWER(TRIM(name)) = ? ORDER BY id",
		strings.ToLower(strings.TrimSpace(name)))
}

// ListProperties returns all properties ordered by ID.
func (s *SQLiteStore) ListProperties(ctx context.Context) ([]models.Property, error) {
	return s.queryProperties(ctx, "SELECT "+propertyColumns+" FROM properties ORDER BY id")
}

func (s *SQLiteStore) queryProperties(ctx context.Context, query string, args ...any) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", err)
	}
	return properties, nil
}

const customerColumns = "id, name, email, is_property_owner"

func scanCustomer(row rowScanner) (*models.Customer, error) {
	c := &models.Customer{}
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.IsPropertyOwner); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCustomer inserts a customer and sets its ID.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO customers (name, email, is_property_owner) VALUES (?, ?, ?)",
		c.Name, c.Email, c.IsPropertyOwner,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read customer id: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by ID.
func (s *SQLiteStore) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// FindCustomersByEmail returns customers whose email matches ignoring case.
func (s *SQLiteStore) FindCustomersByEmail(ctx context.Context, email string) ([]models.Customer, error) {
	return s.queryCustomers(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE email != '' AND LOWER(email) = ? ORDER BY id",
		strings.ToLower(strings.TrimSpace(email)))
}

// ListCustomers returns all customers ordered by ID.
func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return s.queryCustomers(ctx, "SELECT "+customerColumns+" FROM customers ORDER BY id")
}

// ListPropertyOwners returns customers flagged as owners.
func (s *SQLiteStore) ListPropertyOwners(ctx context.Context) ([]models.Customer, error) {
	return s.queryCustomers(ctx, "SELECT "+customerColumns+" FROM customers WHERE is_property_owner = 1 ORDER BY id")
}

func (s *SQLiteStore) queryCustomers(ctx context.Context, query string, args ...any) ([]models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}
	return customers, nil
}

// AssignOwner records an OWNER assignment for a property.
func (s *SQLiteStore) AssignOwner(ctx context.Context, propertyID, customerID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO property_owners (property_id, customer_id, ownership_type) VALUES (?, ?, 'OWNER')",
		propertyID, customerID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign owner: %w", err)
	}
	return nil
}

// OwnerOf returns the property's direct owner, falling back to the first
// OWNER assignment.
func (s *SQLiteStore) OwnerOf(ctx context.Context, propertyID int64) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.email, c.is_property_owner
		FROM properties p JOIN customers c ON c.id = p.owner_id
		WHERE p.id = ?`, propertyID))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get property owner: %w", err)
	}

	c, err = scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.email, c.is_property_owner
		FROM property_owners po JOIN customers c ON c.id = po.customer_id
		WHERE po.property_id = ? AND po.ownership_type = 'OWNER'
		ORDER BY c.id LIMIT 1`, propertyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("owner of property %d: %w", propertyID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assigned owner: %w", err)
	}
	return c, nil
}

const leaseColumns = "id, reference, property_id, customer_id, start_date, end_date, monthly_rent"

func scanLease(row rowScanner) (*models.Lease, error) {
	l := &models.Lease{}
	var start string
	var end sql.NullString
	if err := row.Scan(&l.ID, &l.Reference, &l.PropertyID, &l.CustomerID, &start, &end, &l.MonthlyRent); err != nil {
		return nil, err
	}
	var err error
	if l.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if l.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateLease inserts a lease and sets its ID.
func (s *SQLiteStore) CreateLease(ctx context.Context, l *models.Lease) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO leases (reference, property_id, customer_id, start_date, end_date, monthly_rent) VALUES (?, ?, ?, ?, ?, ?)",
		l.Reference, l.PropertyID, l.CustomerID, l.StartDate.Format(dateLayout), nullDate(l.EndDate), l.MonthlyRent.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read lease id: %w", err)
	}
	return nil
}

// FindLeaseByReference retrieves a lease by its exact reference.
func (s *SQLiteStore) FindLeaseByReference(ctx context.Context, reference string) (*models.Lease, error) {
	l, err := scanLease(s.db.QueryRowContext(ctx,
		"SELECT "+leaseColumns+" FROM leases WHERE reference = ?", strings.TrimSpace(reference)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lease %q: %w", reference, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}
	return l, nil
}

// ListLeasesFor returns the leases a property and customer share, newest start first.
func (s *SQLiteStore) ListLeasesFor(ctx context.Context, propertyID, customerID int64) ([]models.Lease, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+leaseColumns+" FROM leases WHERE property_id = ? AND customer_id = ? ORDER BY start_date DESC, id DESC",
		propertyID, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query leases: %w", err)
	}
	defer rows.Close()

	var leases []models.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lease: %w", err)
		}
		leases = append(leases, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leases: %w", err)
	}
	return leases, nil
}

// CreatePaymentSource inserts a payment source and sets its ID.
func (s *SQLiteStore) CreatePaymentSource(ctx context.Context, ps *models.PaymentSource) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO payment_sources (code, name) VALUES (?, ?)",
		ps.Code, ps.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment source: %w", err)
	}
	if ps.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read payment source id: %w", err)
	}
	return nil
}

// FindPaymentSourceByCode retrieves a payment source by vocabulary code.
func (s *SQLiteStore) FindPaymentSourceByCode(ctx context.Context, code string) (*models.PaymentSource, error) {
	ps := &models.PaymentSource{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, code, name FROM payment_sources WHERE code = ?", code,
	).Scan(&ps.ID, &ps.Code, &ps.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment source %q: %w", code, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment source: %w", err)
	}
	return ps, nil
}
