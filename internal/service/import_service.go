// Package service implements the import workflow: validate, review, confirm
// and commit, plus balance queries and retroactive commission splits.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/calculator"
	"github.com/mmynk/rentledger/internal/importer"
	"github.com/mmynk/rentledger/internal/ledger"
	"github.com/mmynk/rentledger/internal/metrics"
	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/resolver"
	"github.com/mmynk/rentledger/internal/review"
	"github.com/mmynk/rentledger/internal/storage"
)

// ErrSessionNotFound is returned when a batch has no review session.
var ErrSessionNotFound = errors.New("review session not found")

// ActorProvider names the user committing an import.
type ActorProvider interface {
	Actor(ctx context.Context) string
}

// Options configures an ImportService.
type Options struct {
	// DefaultCommissionRate applies to properties without a rate. Nil means 15.
	DefaultCommissionRate *decimal.Decimal

	// ResolveWorkers bounds concurrent resolution during review.
	ResolveWorkers int

	// Actors supplies createdBy. Nil records "system".
	Actors ActorProvider
}

type systemActor struct{}

func (systemActor) Actor(context.Context) string { return "system" }

// ImportService runs imports against a storage backend.
type ImportService struct {
	store    storage.Store
	builder  *review.Builder
	deriver  *ledger.Deriver
	sessions *review.Sessions
	actors   ActorProvider
}

// NewImportService creates an ImportService with the given storage backend.
func NewImportService(store storage.Store, opts Options) *ImportService {
	actors := opts.Actors
	if actors == nil {
		actors = systemActor{}
	}
	rate := calculator.DefaultCommissionRate
	if opts.DefaultCommissionRate != nil {
		rate = *opts.DefaultCommissionRate
	}
	r := resolver.New(store, store, store, store)
	return &ImportService{
		store:    store,
		builder:  review.NewBuilder(r, store, store, opts.ResolveWorkers),
		deriver:  ledger.NewDeriver(store, store, store, rate),
		sessions: review.NewSessions(),
		actors:   actors,
	}
}

// Validate parses CSV input without side effects. A nil columns map reads
// the column names from the first line.
func (s *ImportService) Validate(raw string, columns map[string]int) *importer.ParseResult {
	return importer.ParseCSV(raw, columns)
}

// ValidateJSON parses a JSON import envelope without side effects.
func (s *ImportService) ValidateJSON(data []byte) (*importer.ParseResult, error) {
	return importer.ParseJSON(data)
}

// ResolveAndReview builds the review queue for parsed rows and keeps it as
// a session until confirmed. An empty batchID gets a new UUID.
func (s *ImportService) ResolveAndReview(ctx context.Context, parsed *importer.ParseResult, batchID string, paymentSourceID *int64) (*models.ReviewQueue, error) {
	if batchID == "" {
		batchID = uuid.New().String()
	}
	queue, err := s.builder.Build(ctx, parsed, batchID, paymentSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to build review queue: %w", err)
	}

	for _, item := range queue.Items {
		metrics.ReviewStatusTotal.WithLabelValues(string(item.Status)).Inc()
		if item.Duplicate.Scope != models.DuplicateNone {
			metrics.DuplicatesTotal.WithLabelValues(string(item.Duplicate.Scope)).Inc()
		}
	}

	s.sessions.Put(queue)
	return queue, nil
}

// Review returns the stored queue for a batch.
func (s *ImportService) Review(batchID string) (*models.ReviewQueue, error) {
	queue, ok := s.sessions.Get(batchID)
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrSessionNotFound)
	}
	return queue, nil
}

// Confirm applies reviewer selections to a session and commits it. The
// session ends once committed.
func (s *ImportService) Confirm(ctx context.Context, batchID string, confirmations []review.Confirmation) (*models.ImportResult, error) {
	queue, ok := s.sessions.Get(batchID)
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrSessionNotFound)
	}
	items, err := review.Apply(queue, confirmations)
	if err != nil {
		return nil, err
	}
	if err := s.builder.ResolveSelectedLeases(ctx, items); err != nil {
		return nil, err
	}
	result, err := s.Commit(ctx, batchID, items)
	if err != nil {
		return nil, err
	}
	s.sessions.Delete(batchID)
	return result, nil
}

// BatchSummary counts a pending session's items by status.
func (s *ImportService) BatchSummary(batchID string) (map[models.ReviewStatus]int, error) {
	summary, ok := s.sessions.Summary(batchID)
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrSessionNotFound)
	}
	return summary, nil
}

// RecentBatches lists persisted batches, newest first.
func (s *ImportService) RecentBatches(ctx context.Context, limit int) ([]models.BatchInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListBatches(ctx, limit)
}

// Balance folds an owner's balance on a property for period (YYYY-MM).
func (s *ImportService) Balance(ctx context.Context, ownerID, propertyID int64, period string) (*models.BeneficiaryBalance, error) {
	if !validPeriod(period) {
		return nil, fmt.Errorf("period must be YYYY-MM, got %q", period)
	}
	return s.deriver.Balance(ctx, ownerID, propertyID, period)
}

func validPeriod(period string) bool {
	if len(period) != 7 || period[4] != '-' {
		return false
	}
	for i, r := range period {
		if i != 4 && (r < '0' || r > '9') {
			return false
		}
	}
	return period[5:] >= "01" && period[5:] <= "12"
}

// SplitReport is the outcome of a retroactive commission split.
type SplitReport struct {
	DryRun     bool
	Candidates int
	Split      int
	Derived    int
	Warnings   []string
	Failed     []string
}

// SplitExistingRentPayments derives owner allocations and agency fees for
// persisted rent payments that were imported before splitting existed. A
// dry run plans every split and writes nothing.
func (s *ImportService) SplitExistingRentPayments(ctx context.Context, dryRun bool) (*SplitReport, error) {
	payments, err := s.store.ListUnsplitRentPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsplit payments: %w", err)
	}

	report := &SplitReport{DryRun: dryRun, Candidates: len(payments)}
	for i := range payments {
		t := &payments[i]
		if dryRun {
			posting, warnings, err := s.deriver.Plan(ctx, t)
			if err != nil {
				report.Failed = append(report.Failed, fmt.Sprintf("transaction %d: %v", t.ID, err))
				continue
			}
			report.Warnings = append(report.Warnings, prefixAll(t.ID, warnings)...)
			if len(posting.Derived) > 0 {
				report.Split++
				report.Derived += len(posting.Derived)
			}
			continue
		}

		outcome, err := s.deriver.Post(ctx, t)
		if err != nil {
			slog.Error("Retroactive split failed", "transaction_id", t.ID, "error", err)
			report.Failed = append(report.Failed, fmt.Sprintf("transaction %d: %v", t.ID, err))
			continue
		}
		report.Warnings = append(report.Warnings, prefixAll(t.ID, outcome.Warnings)...)
		if len(outcome.Derived) > 0 {
			report.Split++
			report.Derived += len(outcome.Derived)
			countDerived(outcome.Derived)
		}
	}

	slog.Info("Retroactive split finished",
		"dry_run", dryRun,
		"candidates", report.Candidates,
		"split", report.Split,
		"failed", len(report.Failed),
	)
	return report, nil
}

func prefixAll(id int64, messages []string) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, fmt.Sprintf("transaction %d: %s", id, m))
	}
	return out
}

func countDerived(derived []*models.Transaction) {
	for _, t := range derived {
		metrics.DerivedTotal.WithLabelValues(t.Category).Inc()
	}
}

func joinNotes(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}
