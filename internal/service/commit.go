package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/rentledger/internal/metrics"
	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/review"
)

type balanceKey struct {
	owner, property int64
	period          string
}

// Commit persists review items. Rows are independent: a failed row is
// reported in the result and never aborts the batch.
func (s *ImportService) Commit(ctx context.Context, batchID string, items []models.ReviewItem) (*models.ImportResult, error) {
	result := &models.ImportResult{BatchID: batchID}
	actor := s.actors.Actor(ctx)

	latest := make(map[balanceKey]models.BeneficiaryBalance)
	var order []balanceKey

	for i := range items {
		item := &items[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if item.Fatal {
			result.Errors = append(result.Errors, models.RowIssue{
				Line: item.Line, Raw: item.Raw, Kind: models.ErrParse, Message: item.Error,
			})
			continue
		}
		result.TotalProcessed++

		switch {
		case item.Status == models.StatusValidationError || item.Draft == nil:
			kind := item.ErrorKind
			if kind == "" {
				kind = models.ErrParse
			}
			msg := item.Error
			if msg == "" {
				msg = "row failed validation"
			}
			fail(result, item, kind, errors.New(msg))

		case isDuplicate(item) && item.SkipDuplicate:
			skip(result, item)

		case review.Unresolved(item) != "":
			fail(result, item, models.ErrAmbiguous, errors.New(review.Unresolved(item)))

		default:
			for _, w := range missingReferences(item) {
				result.Warnings = append(result.Warnings, models.RowIssue{
					Line: item.Line, Raw: item.Raw, Kind: models.ErrReferenceNotFound, Message: w,
				})
			}

			outcome, err := s.deriver.Post(ctx, s.transactionFor(item, batchID, actor))
			if err != nil {
				slog.Error("Failed to persist row", "batch_id", batchID, "line", item.Line, "error", err)
				fail(result, item, models.ErrPersistence, err)
				continue
			}

			result.SuccessfulImports++
			metrics.RowsTotal.WithLabelValues("imported").Inc()
			result.DerivedEntries += len(outcome.Derived)
			countDerived(outcome.Derived)
			for _, w := range outcome.Warnings {
				result.Warnings = append(result.Warnings, models.RowIssue{
					Line: item.Line, Raw: item.Raw, Kind: models.ErrReferenceNotFound, Message: w,
				})
			}

			if b := outcome.Balance; b != nil {
				key := balanceKey{b.OwnerID, b.PropertyID, b.Period}
				if _, seen := latest[key]; !seen {
					order = append(order, key)
				}
				latest[key] = *b
			}
		}
	}

	for _, key := range order {
		if b := latest[key]; b.Overdrawn() {
			result.Overdrawn = append(result.Overdrawn, b)
			metrics.OverdrawnTotal.Inc()
			slog.Warn("Owner balance overdrawn",
				"owner_id", b.OwnerID,
				"property_id", b.PropertyID,
				"period", b.Period,
				"balance", b.Balance.StringFixed(2),
			)
		}
	}

	slog.Info("Import committed",
		"batch_id", batchID,
		"processed", result.TotalProcessed,
		"imported", result.SuccessfulImports,
		"failed", result.FailedImports,
		"skipped", len(result.Skipped),
		"derived", result.DerivedEntries,
	)
	return result, nil
}

func isDuplicate(item *models.ReviewItem) bool {
	return item.Duplicate.Scope != "" && item.Duplicate.Scope != models.DuplicateNone
}

func fail(result *models.ImportResult, item *models.ReviewItem, kind models.ErrorKind, err error) {
	result.FailedImports++
	result.Errors = append(result.Errors, models.NewRowError(kind, item.Line, item.Raw, err).Issue())
	metrics.RowsTotal.WithLabelValues("failed").Inc()
}

func skip(result *models.ImportResult, item *models.ReviewItem) {
	switch item.Duplicate.Scope {
	case models.DuplicatePaste:
		result.SkippedByLevel.Paste++
	case models.DuplicateBatch:
		result.SkippedByLevel.Batch++
	case models.DuplicateDatabase:
		result.SkippedByLevel.Database++
	}

	msg := fmt.Sprintf("duplicate within %s", item.Duplicate.Scope)
	if id := item.Duplicate.ExistingTransactionID; id != nil {
		msg = fmt.Sprintf("duplicate of transaction %d (%s)", *id, item.Duplicate.Scope)
	}
	result.Skipped = append(result.Skipped, models.RowIssue{
		Line: item.Line, Raw: item.Raw, Kind: models.ErrDuplicate, Message: msg,
	})
	metrics.RowsTotal.WithLabelValues("skipped").Inc()
}

// missingReferences lists references that were given but matched nothing.
// Such rows import without the link.
func missingReferences(item *models.ReviewItem) []string {
	d := item.Draft
	var out []string
	if d.PropertyRef != "" && item.PropertyID == nil && len(item.PropertyCandidates) == 0 {
		out = append(out, fmt.Sprintf("property %q not found; imported without property", d.PropertyRef))
	}
	if d.CustomerRef != "" && item.CustomerID == nil && len(item.CustomerCandidates) == 0 {
		out = append(out, fmt.Sprintf("customer %q not found; imported without customer", d.CustomerRef))
	}
	if d.LeaseRef != "" && item.LeaseID == nil && len(item.LeaseCandidates) == 0 {
		out = append(out, fmt.Sprintf("lease %q not found; imported without lease", d.LeaseRef))
	}
	return out
}

func (s *ImportService) transactionFor(item *models.ReviewItem, batchID, actor string) *models.Transaction {
	d := item.Draft
	return &models.Transaction{
		Date:             d.Date,
		Amount:           d.Amount,
		Description:      d.Description,
		Type:             d.Type,
		Category:         d.Category,
		Subcategory:      d.Subcategory,
		PropertyID:       item.PropertyID,
		CustomerID:       item.CustomerID,
		LeaseID:          item.LeaseID,
		BeneficiaryType:  d.BeneficiaryType,
		PaymentSourceID:  item.PaymentSourceID,
		IncomingAmount:   d.IncomingAmount,
		Source:           d.Source,
		BankReference:    d.BankReference,
		PaymentMethod:    d.PaymentMethod,
		CounterpartyName: d.CounterpartyName,
		Notes:            joinNotes(d.Notes, item.Note),
		BatchID:          batchID,
		CreatedBy:        actor,
	}
}
