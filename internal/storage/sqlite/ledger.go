package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/rentledger/internal/models"
)

// Post writes the primary row, its derived rows and their balance events in
// a single transaction. Nothing is written if any insert fails.
func (s *SQLiteStore) Post(ctx context.Context, posting *models.Posting) error {
	if posting == nil || posting.Primary == nil {
		return fmt.Errorf("posting has no primary transaction")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	primary := posting.Primary
	if primary.ID == 0 {
		if err := insertTransaction(ctx, tx, primary); err != nil {
			return err
		}
	}
	if posting.PrimaryEvent != nil {
		posting.PrimaryEvent.TransactionID = primary.ID
		if err := insertEvent(ctx, tx, posting.PrimaryEvent); err != nil {
			return err
		}
	}

	for _, d := range posting.Derived {
		incomingID := primary.ID
		d.Transaction.IncomingTransactionID = &incomingID
		if d.Transaction.BatchID == "" {
			d.Transaction.BatchID = primary.BatchID
		}
		if err := insertTransaction(ctx, tx, d.Transaction); err != nil {
			return fmt.Errorf("failed to insert derived row: %w", err)
		}
		if d.Event != nil {
			d.Event.TransactionID = d.Transaction.ID
			if err := insertEvent(ctx, tx, d.Event); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, e *models.BalanceEvent) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO balance_events (owner_id, property_id, period, kind, amount, transaction_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.OwnerID, e.PropertyID, e.Period, string(e.Kind), e.Amount.Abs().String(), e.TransactionID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert balance event: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read balance event id: %w", err)
	}
	return nil
}

// ListBalanceEvents returns an owner's events on a property in posting order.
func (s *SQLiteStore) ListBalanceEvents(ctx context.Context, ownerID, propertyID int64) ([]models.BalanceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, property_id, period, kind, amount, transaction_id, created_at
		FROM balance_events
		WHERE owner_id = ? AND property_id = ?
		ORDER BY period, id`, ownerID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance events: %w", err)
	}
	defer rows.Close()

	var events []models.BalanceEvent
	for rows.Next() {
		var e models.BalanceEvent
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.PropertyID, &e.Period, &e.Kind, &e.Amount, &e.TransactionID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balance events: %w", err)
	}
	return events, nil
}
