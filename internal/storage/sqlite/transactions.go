package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/models"
)

const transactionColumns = `id, transaction_date, amount, description, transaction_type, category, subcategory,
	property_id, customer_id, lease_id, beneficiary_type, payment_source_id, incoming_transaction_id,
	incoming_transaction_amount, commission_rate, commission_amount, net_to_owner_amount,
	source, bank_reference, payment_method, counterparty_name, notes, batch_id, created_by, created_at`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var (
		date                                     string
		propertyID, customerID, leaseID          sql.NullInt64
		paymentSourceID, incomingID              sql.NullInt64
		incomingAmount, rate, commission, netOwn decimal.NullDecimal
	)
	err := row.Scan(
		&t.ID, &date, &t.Amount, &t.Description, &t.Type, &t.Category, &t.Subcategory,
		&propertyID, &customerID, &leaseID, &t.BeneficiaryType, &paymentSourceID, &incomingID,
		&incomingAmount, &rate, &commission, &netOwn,
		&t.Source, &t.BankReference, &t.PaymentMethod, &t.CounterpartyName, &t.Notes, &t.BatchID, &t.CreatedBy, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	t.PropertyID = int64Ptr(propertyID)
	t.CustomerID = int64Ptr(customerID)
	t.LeaseID = int64Ptr(leaseID)
	t.PaymentSourceID = int64Ptr(paymentSourceID)
	t.IncomingTransactionID = int64Ptr(incomingID)
	t.IncomingAmount = decimalPtr(incomingAmount)
	t.CommissionRate = decimalPtr(rate)
	t.CommissionAmount = decimalPtr(commission)
	t.NetToOwnerAmount = decimalPtr(netOwn)
	return t, nil
}

// insertTransaction writes t inside tx and sets its ID.
func insertTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			transaction_date, amount, description, transaction_type, category, subcategory,
			property_id, customer_id, lease_id, beneficiary_type, payment_source_id, incoming_transaction_id,
			incoming_transaction_amount, commission_rate, commission_amount, net_to_owner_amount,
			source, bank_reference, payment_method, counterparty_name, notes, batch_id, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date.Format(dateLayout), t.Amount.String(), t.Description, string(t.Type), t.Category, t.Subcategory,
		nullInt64(t.PropertyID), nullInt64(t.CustomerID), nullInt64(t.LeaseID), t.BeneficiaryType,
		nullInt64(t.PaymentSourceID), nullInt64(t.IncomingTransactionID),
		nullDecimal(t.IncomingAmount), nullDecimal(t.CommissionRate), nullDecimal(t.CommissionAmount), nullDecimal(t.NetToOwnerAmount),
		string(t.Source), t.BankReference, t.PaymentMethod, t.CounterpartyName, t.Notes, t.BatchID, t.CreatedBy, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read transaction id: %w", err)
	}
	return nil
}

// FindDuplicate looks for a persisted row with the same fingerprint.
// Property and customer use IS so that NULL matches NULL.
func (s *SQLiteStore) FindDuplicate(ctx context.Context, fp models.Fingerprint, batchID string) (int64, bool, error) {
	query := `
		SELECT id FROM transactions
		WHERE transaction_date = ? AND amount = ? AND description = ? AND transaction_type = ?
		  AND property_id IS ? AND customer_id IS ?`
	args := []any{
		fp.Date.Format(dateLayout), fp.Amount.String(), fp.Description, string(fp.Type),
		nullInt64(fp.PropertyID), nullInt64(fp.CustomerID),
	}
	if batchID != "" {
		query += " AND batch_id = ?"
		args = append(args, batchID)
	}
	query += " ORDER BY id LIMIT 1"

	var id int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query duplicates: %w", err)
	}
	return id, true, nil
}

// ListUnsplitRentPayments returns rent payments that never had their
// commission split applied.
func (s *SQLiteStore) ListUnsplitRentPayments(ctx context.Context) ([]models.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.transaction_type IN ('payment', 'invoice')
		  AND t.category IN ('rent', 'rental_payment')
		  AND CAST(t.amount AS REAL) > 0
		  AND t.property_id IS NOT NULL
		  AND t.incoming_transaction_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM transactions d WHERE d.incoming_transaction_id = t.id)
		ORDER BY t.transaction_date, t.id`)
}

// ListDerived returns rows derived from the given incoming transaction.
func (s *SQLiteStore) ListDerived(ctx context.Context, id int64) ([]models.Transaction, error) {
	return s.queryTransactions(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE incoming_transaction_id = ? ORDER BY id", id)
}

func (s *SQLiteStore) queryTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

// ListBatches summarizes the most recent import batches. Derived rows are
// not counted.
func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]models.BatchInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, COUNT(*), MIN(transaction_date), MAX(transaction_date), MIN(created_at)
		FROM transactions
		WHERE batch_id != '' AND incoming_transaction_id IS NULL
		GROUP BY batch_id
		ORDER BY MIN(created_at) DESC, batch_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []models.BatchInfo
	for rows.Next() {
		var b models.BatchInfo
		if err := rows.Scan(&b.BatchID, &b.Rows, &b.FirstDate, &b.LastDate, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate batches: %w", err)
	}
	return batches, nil
}
