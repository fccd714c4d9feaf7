// Package review stages parsed rows for human confirmation. Each row is
// resolved, checked for duplicates and given a status; the queue is kept in
// a session keyed by batch ID until it is confirmed.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/rentledger/internal/dedupe"
	"github.com/mmynk/rentledger/internal/importer"
	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/resolver"
	"github.com/mmynk/rentledger/internal/storage"
)

// DefaultWorkers bounds concurrent row resolution.
const DefaultWorkers = 4

// Builder turns a ParseResult into a ReviewQueue.
type Builder struct {
	resolver       *resolver.Resolver
	transactions   storage.TransactionStore
	paymentSources storage.PaymentSourceStore
	workers        int
}

// NewBuilder creates a Builder. workers <= 0 uses DefaultWorkers.
func NewBuilder(r *resolver.Resolver, transactions storage.TransactionStore, paymentSources storage.PaymentSourceStore, workers int) *Builder {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Builder{resolver: r, transactions: transactions, paymentSources: paymentSources, workers: workers}
}

// Build resolves every row concurrently, then checks duplicates and assigns
// statuses in row order so that the in-upload fingerprint set sees rows in
// the order they were given. paymentSourceID is the default for rows that
// name no payment source.
func (b *Builder) Build(ctx context.Context, parsed *importer.ParseResult, batchID string, paymentSourceID *int64) (*models.ReviewQueue, error) {
	queue := &models.ReviewQueue{BatchID: batchID}

	if parsed.Fatal != nil {
		queue.Items = []models.ReviewItem{{
			Line:      parsed.Fatal.Line,
			Raw:       parsed.Fatal.Raw,
			Status:    models.StatusValidationError,
			Error:     parsed.Fatal.Error(),
			ErrorKind: models.ErrParse,
			Duplicate: models.DuplicateVerdict{Scope: models.DuplicateNone},
			Fatal:     true,
		}}
		queue.Totals = Totals(queue.Items)
		return queue, nil
	}

	items := make([]models.ReviewItem, len(parsed.Rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, row := range parsed.Rows {
		items[i] = models.ReviewItem{Line: row.Line, Raw: row.Raw, Draft: row.Draft}
		if row.Err != nil {
			items[i].Error = row.Err.Err.Error()
			items[i].ErrorKind = row.Err.Kind
			continue
		}
		g.Go(func() error {
			return b.resolveItem(gctx, &items[i], paymentSourceID)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	detector := dedupe.NewDetector(b.transactions, batchID)
	for i := range items {
		item := &items[i]
		item.Duplicate = models.DuplicateVerdict{Scope: models.DuplicateNone}
		if item.Error == "" {
			AutoSelect(item)
			verdict, err := detector.Check(ctx, dedupe.Fingerprint(item.Draft, item.PropertyID, item.CustomerID))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", item.Line, err)
			}
			item.Duplicate = verdict
		}
		item.Status = Classify(item)
		item.SkipDuplicate = item.Duplicate.Scope != models.DuplicateNone
	}

	queue.Items = items
	queue.Totals = Totals(items)
	slog.Info("Review queue built",
		"batch_id", batchID,
		"rows", queue.Totals.Total,
		"perfect", queue.Totals.Perfect,
		"needs_review", queue.Totals.NeedsReview,
		"has_issues", queue.Totals.HasIssues,
	)
	return queue, nil
}

// ResolveSelectedLeases links leases for items whose property and customer
// are both selected but which carry no lease candidates, as happens when the
// reviewer settles an ambiguous reference. A lease is linked only when one
// candidate ranks strictly first; otherwise the row stays unlinked.
func (b *Builder) ResolveSelectedLeases(ctx context.Context, items []models.ReviewItem) error {
	for i := range items {
		item := &items[i]
		if item.Draft == nil || item.Fatal || item.LeaseID != nil || len(item.LeaseCandidates) > 0 ||
			item.PropertyID == nil || item.CustomerID == nil {
			continue
		}
		leases, err := b.resolver.ResolveLease(ctx, item.Draft.LeaseRef, item.PropertyID, item.CustomerID, item.Draft.Date)
		if err != nil {
			return fmt.Errorf("line %d: failed to resolve lease: %w", item.Line, err)
		}
		if len(leases) == 1 || (len(leases) > 1 && leases[0].Score > leases[1].Score) {
			item.LeaseCandidates = leases
			id := leases[0].LeaseID
			item.LeaseID = &id
		}
	}
	return nil
}

func (b *Builder) resolveItem(ctx context.Context, item *models.ReviewItem, defaultSource *int64) error {
	res, err := b.resolver.Resolve(ctx, item.Draft)
	if err != nil {
		return fmt.Errorf("line %d: failed to resolve references: %w", item.Line, err)
	}
	item.PropertyCandidates = res.Properties
	item.CustomerCandidates = res.Customers
	item.LeaseCandidates = res.Leases

	code := item.Draft.PaymentSourceCode
	if code == "" {
		if defaultSource != nil {
			id := *defaultSource
			item.PaymentSourceID = &id
		}
		return nil
	}

	ps, err := b.paymentSources.FindPaymentSourceByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		item.Error = fmt.Sprintf("payment source %s is not configured", code)
		item.ErrorKind = models.ErrConfiguration
		return nil
	}
	if err != nil {
		return fmt.Errorf("line %d: failed to look up payment source: %w", item.Line, err)
	}
	item.PaymentSourceID = &ps.ID
	return nil
}
