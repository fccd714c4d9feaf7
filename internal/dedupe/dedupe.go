// Package dedupe classifies transaction drafts as duplicates within the
// current upload, the current batch, or the whole store.
package dedupe

import (
	"context"
	"fmt"

	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/storage"
)

// Detector checks fingerprints for one upload. It is not safe for
// concurrent use; calls must be made in row order.
type Detector struct {
	store   storage.TransactionStore
	batchID string
	seen    map[string]struct{}
}

// NewDetector creates a detector for one upload within batchID.
func NewDetector(store storage.TransactionStore, batchID string) *Detector {
	return &Detector{store: store, batchID: batchID, seen: make(map[string]struct{})}
}

// Check returns the first scope in which fp is already present: the upload
// itself, then the batch, then the store. Rows without a property are never
// duplicates and are not remembered.
func (d *Detector) Check(ctx context.Context, fp models.Fingerprint) (models.DuplicateVerdict, error) {
	if fp.PropertyID == nil {
		return models.DuplicateVerdict{Scope: models.DuplicateNone}, nil
	}

	key := fp.Key()
	if _, ok := d.seen[key]; ok {
		return models.DuplicateVerdict{Scope: models.DuplicatePaste}, nil
	}
	d.seen[key] = struct{}{}

	if d.batchID != "" {
		id, found, err := d.store.FindDuplicate(ctx, fp, d.batchID)
		if err != nil {
			return models.DuplicateVerdict{}, fmt.Errorf("failed to check batch duplicates: %w", err)
		}
		if found {
			return models.DuplicateVerdict{Scope: models.DuplicateBatch, ExistingTransactionID: &id}, nil
		}
	}

	id, found, err := d.store.FindDuplicate(ctx, fp, "")
	if err != nil {
		return models.DuplicateVerdict{}, fmt.Errorf("failed to check global duplicates: %w", err)
	}
	if found {
		return models.DuplicateVerdict{Scope: models.DuplicateDatabase, ExistingTransactionID: &id}, nil
	}
	return models.DuplicateVerdict{Scope: models.DuplicateNone}, nil
}

// Fingerprint builds the duplicate identity of a draft with its resolved links.
func Fingerprint(draft *models.TransactionDraft, propertyID, customerID *int64) models.Fingerprint {
	return models.Fingerprint{
		Date:        draft.Date,
		Amount:      draft.Amount,
		Description: draft.Description,
		Type:        draft.Type,
		PropertyID:  propertyID,
		CustomerID:  customerID,
	}
}
