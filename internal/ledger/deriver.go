// Package ledger turns confirmed transactions into postings: the commission
// split of incoming rent and the balance events that drive owner balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/calculator"
	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/storage"
)

// ErrOwnerNotFound means a posting needed an owner and none was resolved.
var ErrOwnerNotFound = errors.New("no owner resolved for property")

// Deriver plans and writes postings.
type Deriver struct {
	properties  storage.PropertyStore
	owners      storage.OwnerResolver
	store       storage.LedgerStore
	defaultRate decimal.Decimal
}

// NewDeriver creates a Deriver. defaultRate applies to properties without
// their own rate; zero is a valid rate.
func NewDeriver(properties storage.PropertyStore, owners storage.OwnerResolver, store storage.LedgerStore, defaultRate decimal.Decimal) *Deriver {
	return &Deriver{properties: properties, owners: owners, store: store, defaultRate: defaultRate}
}

// Outcome describes what a posting wrote.
type Outcome struct {
	Primary  *models.Transaction
	Derived  []*models.Transaction
	Warnings []string

	// Balance is the owner's balance after the posting, when one was affected.
	Balance *models.BeneficiaryBalance
}

// IsIncoming reports whether t is a gross payment subject to commission,
// and returns the gross amount.
func IsIncoming(t *models.Transaction) (decimal.Decimal, bool) {
	if t.IncomingTransactionID != nil {
		return decimal.Zero, false
	}
	if t.IncomingAmount != nil && t.IncomingAmount.IsPositive() {
		return *t.IncomingAmount, true
	}
	if (t.Type == models.TypePayment || t.Type == models.TypeInvoice) &&
		(t.Category == models.CategoryRent || t.Category == models.CategoryRentalPayment) &&
		t.Amount.IsPositive() {
		return t.Amount, true
	}
	return decimal.Zero, false
}

func isExpense(t *models.Transaction) bool {
	return t.Type == models.TypeExpense || t.BeneficiaryType == models.BeneficiaryContractor
}

func isOwnerPayment(t *models.Transaction) bool {
	return t.BeneficiaryType == models.BeneficiaryOwner &&
		t.Category != models.CategoryOwnerAllocation &&
		t.IncomingTransactionID == nil
}

// Plan builds the posting for t without writing anything. Missing owners
// are warnings: the primary row is still posted on its own.
func (d *Deriver) Plan(ctx context.Context, t *models.Transaction) (*models.Posting, []string, error) {
	posting := &models.Posting{Primary: t}
	var warnings []string

	if gross, ok := IsIncoming(t); ok {
		derived, warning, err := d.split(ctx, t, gross)
		if err != nil {
			return nil, nil, err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		posting.Derived = derived
		return posting, warnings, nil
	}

	var kind models.BalanceEventKind
	switch {
	case isExpense(t):
		kind = models.EventExpense
	case isOwnerPayment(t):
		kind = models.EventPayment
	default:
		return posting, nil, nil
	}

	if t.PropertyID == nil {
		return posting, []string{fmt.Sprintf("%s has no property; owner balance not updated", kind)}, nil
	}
	owner, err := d.ownerOf(ctx, *t.PropertyID)
	if errors.Is(err, ErrOwnerNotFound) {
		return posting, []string{fmt.Sprintf("%s on property %d: %v; owner balance not updated", kind, *t.PropertyID, err)}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	posting.PrimaryEvent = &models.BalanceEvent{
		OwnerID:    owner.ID,
		PropertyID: *t.PropertyID,
		Period:     t.Period(),
		Kind:       kind,
		Amount:     t.Amount.Abs(),
	}
	return posting, nil, nil
}

// split derives the owner allocation and agency fee rows for an incoming payment.
func (d *Deriver) split(ctx context.Context, t *models.Transaction, gross decimal.Decimal) ([]models.DerivedEntry, string, error) {
	if t.PropertyID == nil {
		return nil, "incoming payment has no property; commission split skipped", nil
	}
	property, err := d.properties.GetProperty(ctx, *t.PropertyID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get property: %w", err)
	}
	owner, err := d.ownerOf(ctx, property.ID)
	if errors.Is(err, ErrOwnerNotFound) {
		return nil, fmt.Sprintf("property %q: %v; commission split skipped", property.Name, err), nil
	}
	if err != nil {
		return nil, "", err
	}

	rate := d.defaultRate
	if property.CommissionRate != nil {
		rate = *property.CommissionRate
	}
	split, err := calculator.SplitCommission(gross, rate)
	if err != nil {
		return nil, "", fmt.Errorf("failed to split commission: %w", err)
	}

	t.IncomingAmount = &split.Gross
	t.CommissionRate = &split.Rate
	t.CommissionAmount = &split.Commission
	t.NetToOwnerAmount = &split.OwnerShare

	allocation := d.derivedRow(t, split)
	allocation.Amount = split.OwnerShare.Neg()
	allocation.Type = models.TypePayment
	allocation.Category = models.CategoryOwnerAllocation
	allocation.BeneficiaryType = models.BeneficiaryOwner
	allocation.CustomerID = &owner.ID
	allocation.Description = "Owner Allocation - " + property.Name

	fee := d.derivedRow(t, split)
	fee.Amount = split.Commission.Neg()
	fee.Type = models.TypeFee
	fee.Category = models.CategoryManagementFee
	fee.BeneficiaryType = models.BeneficiaryAgency
	fee.Description = fmt.Sprintf("Management Fee - %s%% - %s", split.Rate.String(), property.Name)
	if b, err := calculator.BreakdownCommission(split.Commission, calculator.DefaultManagementRate, calculator.DefaultServiceRate); err == nil {
		fee.Notes += fmt.Sprintf(" | management %s, service %s", b.Management.StringFixed(2), b.Service.StringFixed(2))
	}

	return []models.DerivedEntry{
		{
			Transaction: allocation,
			Event: &models.BalanceEvent{
				OwnerID:    owner.ID,
				PropertyID: property.ID,
				Period:     t.Period(),
				Kind:       models.EventAllocation,
				Amount:     split.OwnerShare,
			},
		},
		{Transaction: fee},
	}, "", nil
}

func (d *Deriver) derivedRow(t *models.Transaction, split calculator.CommissionSplit) *models.Transaction {
	return &models.Transaction{
		Date:             t.Date,
		PropertyID:       t.PropertyID,
		LeaseID:          t.LeaseID,
		PaymentSourceID:  t.PaymentSourceID,
		IncomingAmount:   &split.Gross,
		CommissionRate:   &split.Rate,
		CommissionAmount: &split.Commission,
		NetToOwnerAmount: &split.OwnerShare,
		Source:           models.SourceCommissionSplit,
		BatchID:          t.BatchID,
		CreatedBy:        t.CreatedBy,
		Notes:            strings.TrimSpace("Derived from incoming payment " + t.Description),
	}
}

func (d *Deriver) ownerOf(ctx context.Context, propertyID int64) (*models.Customer, error) {
	owner, err := d.owners.OwnerOf(ctx, propertyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner: %w", err)
	}
	return owner, nil
}

// Post plans and writes a posting atomically, then folds the affected
// owner balance.
func (d *Deriver) Post(ctx context.Context, t *models.Transaction) (*Outcome, error) {
	posting, warnings, err := d.Plan(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := d.store.Post(ctx, posting); err != nil {
		return nil, err
	}

	out := &Outcome{Primary: posting.Primary, Warnings: warnings}
	for _, entry := range posting.Derived {
		out.Derived = append(out.Derived, entry.Transaction)
	}

	if event := affectedEvent(posting); event != nil {
		balance, err := d.Balance(ctx, event.OwnerID, event.PropertyID, event.Period)
		if err != nil {
			// The posting is committed; a failed read only loses the alert.
			slog.Warn("Failed to fold balance after posting", "owner_id", event.OwnerID, "property_id", event.PropertyID, "error", err)
		} else {
			out.Balance = balance
		}
	}
	return out, nil
}

func affectedEvent(p *models.Posting) *models.BalanceEvent {
	if p.PrimaryEvent != nil {
		return p.PrimaryEvent
	}
	for _, entry := range p.Derived {
		if entry.Event != nil {
			return entry.Event
		}
	}
	return nil
}

// Balance folds an owner's events on a property into the balance for period.
func (d *Deriver) Balance(ctx context.Context, ownerID, propertyID int64, period string) (*models.BeneficiaryBalance, error) {
	events, err := d.store.ListBalanceEvents(ctx, ownerID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list balance events: %w", err)
	}

	forBalance := make([]calculator.EventForBalance, 0, len(events))
	for _, e := range events {
		forBalance = append(forBalance, calculator.EventForBalance{
			Period:        e.Period,
			Kind:          e.Kind,
			Amount:        e.Amount,
			TransactionID: e.TransactionID,
		})
	}
	folded := calculator.FoldBalance(forBalance, period)

	return &models.BeneficiaryBalance{
		OwnerID:           ownerID,
		PropertyID:        propertyID,
		Period:            period,
		OpeningBalance:    folded.Opening,
		RentAllocated:     folded.RentAllocated,
		Expenses:          folded.Expenses,
		PaymentsOut:       folded.PaymentsOut,
		Balance:           folded.Closing,
		LastTransactionID: folded.LastTransactionID,
	}, nil
}
