package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/review"
	"github.com/mmynk/rentledger/internal/storage/sqlite"
)

type fixture struct {
	svc    *ImportService
	store  *sqlite.SQLiteStore
	owner  *models.Customer
	tenant *models.Customer
	flat   *models.Property
}

type staticActor string

func (a staticActor) Actor(context.Context) string { return string(a) }

func setupService(t *testing.T) *fixture {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "rentledger-service-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	f := &fixture{store: store}
	f.svc = NewImportService(store, Options{Actors: staticActor("clerk")})

	f.owner = &models.Customer{Name: "Olivia Owner", Email: "olivia@example.com", IsPropertyOwner: true}
	require.NoError(t, f.svc.CreateCustomer(ctx, f.owner))
	f.tenant = &models.Customer{Name: "Jane Doe", Email: "jane.doe@example.com"}
	require.NoError(t, f.svc.CreateCustomer(ctx, f.tenant))
	require.NoError(t, f.svc.CreateCustomer(ctx, &models.Customer{Name: "John Smith", Email: "jsmith@example.com"}))
	require.NoError(t, f.svc.CreateCustomer(ctx, &models.Customer{Name: "Jane Smith", Email: "jane.s@example.com"}))

	f.flat = &models.Property{Name: "Flat 1", AddressLine1: "3 West Gate", Postcode: "LS1 4AB", OwnerID: &f.owner.ID}
	require.NoError(t, f.svc.CreateProperty(ctx, f.flat))
	return f
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

const header = "transaction_date,amount,description,transaction_type,category,property_reference,customer_reference\n"

func (f *fixture) review(t *testing.T, csv, batchID string) *models.ReviewQueue {
	t.Helper()
	parsed := f.svc.Validate(csv, nil)
	queue, err := f.svc.ResolveAndReview(context.Background(), parsed, batchID, nil)
	require.NoError(t, err)
	return queue
}

func TestImportRentEndToEnd(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	queue := f.review(t, header+"2024-01-15,1000.00,January rent,payment,rent,Flat 1,Jane Doe\n", "batch-1")
	require.Len(t, queue.Items, 1)
	item := queue.Items[0]
	assert.Equal(t, models.StatusPerfect, item.Status)
	require.NotNil(t, item.PropertyID)
	require.NotNil(t, item.CustomerID)
	assert.Equal(t, f.flat.ID, *item.PropertyID)
	assert.Equal(t, f.tenant.ID, *item.CustomerID)
	assert.Equal(t, models.ReviewTotals{Total: 1, Perfect: 1}, queue.Totals)

	result, err := f.svc.Confirm(ctx, "batch-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulImports)
	assert.Equal(t, 0, result.FailedImports)
	assert.Equal(t, 2, result.DerivedEntries)
	assert.Empty(t, result.Overdrawn)

	batches, err := f.svc.RecentBatches(ctx, 5)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "batch-1", batches[0].BatchID)

	unsplit, err := f.store.ListUnsplitRentPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsplit)

	balance, err := f.svc.Balance(ctx, f.owner.ID, f.flat.ID, "2024-01")
	require.NoError(t, err)
	assert.True(t, balance.RentAllocated.Equal(decimal.NewFromInt(850)), "allocated %s", balance.RentAllocated)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(850)), "balance %s", balance.Balance)

	// Confirmed sessions are closed.
	_, err = f.svc.Review("batch-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDerivedRowsAreExact(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.review(t, header+"2024-01-15,1000.00,January rent,payment,rent,Flat 1,Jane Doe\n", "batch-1")
	_, err := f.svc.Confirm(ctx, "batch-1", nil)
	require.NoError(t, err)

	id, found, err := f.store.FindDuplicate(ctx, models.Fingerprint{
		Date: day(t, "2024-01-15"), Amount: decimal.NewFromInt(1000), Description: "January rent",
		Type: models.TypePayment, PropertyID: &f.flat.ID, CustomerID: &f.tenant.ID,
	}, "")
	require.NoError(t, err)
	require.True(t, found)

	derived, err := f.store.ListDerived(ctx, id)
	require.NoError(t, err)
	require.Len(t, derived, 2)

	amounts := map[string]decimal.Decimal{}
	for _, d := range derived {
		amounts[d.Category] = d.Amount
		assert.Equal(t, "clerk", d.CreatedBy)
		assert.Equal(t, models.SourceCommissionSplit, d.Source)
		if d.Category == models.CategoryManagementFee {
			assert.Nil(t, d.CustomerID, "agency fee must not be linked to the tenant")
		} else {
			require.NotNil(t, d.CustomerID)
			assert.Equal(t, f.owner.ID, *d.CustomerID)
		}
	}
	assert.True(t, amounts[models.CategoryOwnerAllocation].Equal(decimal.NewFromInt(-850)))
	assert.True(t, amounts[models.CategoryManagementFee].Equal(decimal.NewFromInt(-150)))

	sum := amounts[models.CategoryOwnerAllocation].Add(amounts[models.CategoryManagementFee]).Neg()
	assert.True(t, sum.Equal(decimal.NewFromInt(1000)))
}

func TestZeroDefaultCommissionRate(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	zero := decimal.Zero
	svc := NewImportService(f.store, Options{DefaultCommissionRate: &zero})

	parsed := svc.Validate(header+"2024-01-15,1000.00,January rent,payment,rent,Flat 1,Jane Doe\n", nil)
	_, err := svc.ResolveAndReview(ctx, parsed, "batch-zero", nil)
	require.NoError(t, err)
	result, err := svc.Confirm(ctx, "batch-zero", nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessfulImports)

	balance, err := svc.Balance(ctx, f.owner.ID, f.flat.ID, "2024-01")
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(1000)), "balance %s", balance.Balance)
}

func TestAmbiguousCustomerNeedsSelection(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	queue := f.review(t, header+"2024-01-20,500,Part rent,payment,rent,Flat 1,J Smith\n", "batch-amb")
	require.Len(t, queue.Items, 1)
	item := queue.Items[0]
	assert.Equal(t, models.StatusAmbiguousCustomer, item.Status)
	require.Len(t, item.CustomerCandidates, 2)
	assert.Equal(t, 95, item.CustomerCandidates[0].Score)
	assert.Equal(t, 95, item.CustomerCandidates[1].Score)
	assert.Equal(t, 1, queue.Totals.NeedsReview)

	summary, err := f.svc.BatchSummary("batch-amb")
	require.NoError(t, err)
	assert.Equal(t, 1, summary[models.StatusAmbiguousCustomer])

	result, err := f.svc.Commit(ctx, "batch-amb", queue.Items)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessfulImports)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.ErrAmbiguous, result.Errors[0].Kind)
	assert.Equal(t, 2, result.Errors[0].Line)

	chosen := item.CustomerCandidates[1].CustomerID
	result, err = f.svc.Confirm(ctx, "batch-amb", []review.Confirmation{{Line: 2, CustomerID: &chosen}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulImports)
}

func TestSelectedCustomerGetsLease(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	queue := f.review(t, header+"2024-01-20,500,Part rent,payment,rent,Flat 1,J Smith\n", "batch-lease")
	item := queue.Items[0]
	require.Len(t, item.CustomerCandidates, 2)
	assert.Empty(t, item.LeaseCandidates)

	chosen := item.CustomerCandidates[0].CustomerID
	lease := &models.Lease{Reference: "L-100", PropertyID: f.flat.ID, CustomerID: chosen, StartDate: day(t, "2024-01-01")}
	require.NoError(t, f.svc.CreateLease(ctx, lease))

	pending, err := f.svc.Review("batch-lease")
	require.NoError(t, err)
	items, err := review.Apply(pending, []review.Confirmation{{Line: 2, CustomerID: &chosen}})
	require.NoError(t, err)
	require.NoError(t, f.svc.builder.ResolveSelectedLeases(ctx, items))
	require.NotNil(t, items[0].LeaseID)
	assert.Equal(t, lease.ID, *items[0].LeaseID)

	result, err := f.svc.Confirm(ctx, "batch-lease", []review.Confirmation{{Line: 2, CustomerID: &chosen}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulImports)
	assert.Empty(t, result.Warnings)
}

func TestDuplicateScopes(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	row := "2024-01-15,1000.00,January rent,payment,rent,Flat 1,Jane Doe\n"

	t.Run("paste", func(t *testing.T) {
		queue := f.review(t, header+row+row, "batch-1")
		require.Len(t, queue.Items, 2)
		assert.Equal(t, models.DuplicateNone, queue.Items[0].Duplicate.Scope)
		assert.Equal(t, models.DuplicatePaste, queue.Items[1].Duplicate.Scope)
		assert.Equal(t, models.StatusPotentialDuplicate, queue.Items[1].Status)
		assert.True(t, queue.Items[1].SkipDuplicate)

		result, err := f.svc.Confirm(ctx, "batch-1", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.SuccessfulImports)
		assert.Equal(t, models.SkipCounts{Paste: 1}, result.SkippedByLevel)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, models.ErrDuplicate, result.Skipped[0].Kind)
	})

	t.Run("batch", func(t *testing.T) {
		queue := f.review(t, header+row, "batch-1")
		require.Len(t, queue.Items, 1)
		assert.Equal(t, models.DuplicateBatch, queue.Items[0].Duplicate.Scope)
		require.NotNil(t, queue.Items[0].Duplicate.ExistingTransactionID)

		result, err := f.svc.Confirm(ctx, "batch-1", nil)
		require.NoError(t, err)
		assert.Equal(t, models.SkipCounts{Batch: 1}, result.SkippedByLevel)
	})

	t.Run("database", func(t *testing.T) {
		queue := f.review(t, header+row, "batch-2")
		assert.Equal(t, models.DuplicateDatabase, queue.Items[0].Duplicate.Scope)

		result, err := f.svc.Confirm(ctx, "batch-2", nil)
		require.NoError(t, err)
		assert.Equal(t, models.SkipCounts{Database: 1}, result.SkippedByLevel)
		assert.Equal(t, 0, result.SuccessfulImports)
	})

	t.Run("override imports anyway", func(t *testing.T) {
		f.review(t, header+row, "batch-3")
		keep := false
		result, err := f.svc.Confirm(ctx, "batch-3", []review.Confirmation{{Line: 2, SkipDuplicate: &keep}})
		require.NoError(t, err)
		assert.Equal(t, 1, result.SuccessfulImports)
	})
}

func TestUnresolvedPropertyIsNeverDuplicate(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	row := "2024-02-01,75.00,Garden service,expense,,Unknown Rd,\n"

	queue := f.review(t, header+row+row, "batch-unk")
	require.Len(t, queue.Items, 2)
	for _, item := range queue.Items {
		assert.Equal(t, models.StatusMissingProperty, item.Status)
		assert.Equal(t, models.DuplicateNone, item.Duplicate.Scope)
	}

	result, err := f.svc.Confirm(ctx, "batch-unk", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessfulImports)
	assert.Equal(t, models.SkipCounts{}, result.SkippedByLevel)
	assert.NotEmpty(t, result.Warnings)
	assert.Equal(t, models.ErrReferenceNotFound, result.Warnings[0].Kind)
}

func TestMissingAmountHeaderIsFatal(t *testing.T) {
	f := setupService(t)

	parsed := f.svc.Validate("transaction_date,description\n2024-01-15,Rent\n", nil)
	require.NotNil(t, parsed.Fatal)
	assert.Equal(t, 0, parsed.Valid())

	queue, err := f.svc.ResolveAndReview(context.Background(), parsed, "batch-bad", nil)
	require.NoError(t, err)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, models.StatusValidationError, queue.Items[0].Status)
	assert.Contains(t, queue.Items[0].Error, "amount")
	assert.True(t, queue.Items[0].Fatal)
	assert.Equal(t, 1, queue.Totals.HasIssues)

	result, err := f.svc.Confirm(context.Background(), "batch-bad", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalProcessed)
	assert.Equal(t, 0, result.FailedImports)
	assert.Equal(t, 0, result.SuccessfulImports)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "amount")
}

func TestRowErrorsDoNotAbortBatch(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	queue := f.review(t, header+
		"not-a-date,10,Bad,payment,,Flat 1,Jane Doe\n"+
		"2024-03-01,20,Good,fee,,Flat 1,Jane Doe\n", "batch-mixed")
	require.Len(t, queue.Items, 2)
	assert.Equal(t, models.StatusValidationError, queue.Items[0].Status)
	assert.Equal(t, models.StatusPerfect, queue.Items[1].Status)

	result, err := f.svc.Confirm(ctx, "batch-mixed", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalProcessed)
	assert.Equal(t, 1, result.SuccessfulImports)
	assert.Equal(t, 1, result.FailedImports)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.ErrParse, result.Errors[0].Kind)
	assert.Equal(t, 2, result.Errors[0].Line)
	assert.Contains(t, result.Errors[0].Raw, "not-a-date")
}

func TestUnconfiguredPaymentSource(t *testing.T) {
	f := setupService(t)

	csv := "transaction_date,amount,property_reference,payment_source\n2024-01-05,10,Flat 1,PAYPROP\n"
	queue := f.review(t, csv, "batch-ps")
	require.Len(t, queue.Items, 1)
	assert.Equal(t, models.StatusValidationError, queue.Items[0].Status)
	assert.Equal(t, models.ErrConfiguration, queue.Items[0].ErrorKind)

	require.NoError(t, f.svc.CreatePaymentSource(context.Background(), &models.PaymentSource{Code: models.PaymentSourcePayProp, Name: "PayProp"}))
	queue = f.review(t, csv, "batch-ps")
	require.NotNil(t, queue.Items[0].PaymentSourceID)
	assert.NotEqual(t, models.StatusValidationError, queue.Items[0].Status)
}

func TestOverdrawnOwnerIsReported(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.review(t, header+
		"2024-01-15,1000.00,January rent,payment,rent,Flat 1,Jane Doe\n"+
		"2024-01-25,-1000.00,Boiler replacement,expense,repairs,Flat 1,\n", "batch-od")
	result, err := f.svc.Confirm(ctx, "batch-od", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessfulImports)

	require.Len(t, result.Overdrawn, 1)
	od := result.Overdrawn[0]
	assert.Equal(t, f.owner.ID, od.OwnerID)
	assert.True(t, od.Balance.Equal(decimal.NewFromInt(-150)), "balance %s", od.Balance)

	feb, err := f.svc.Balance(ctx, f.owner.ID, f.flat.ID, "2024-02")
	require.NoError(t, err)
	assert.True(t, feb.OpeningBalance.Equal(decimal.NewFromInt(-150)))
	assert.True(t, feb.Overdrawn())

	_, err = f.svc.Balance(ctx, f.owner.ID, f.flat.ID, "2024-13")
	assert.Error(t, err)
}

func TestSplitExistingRentPayments(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	garage := &models.Property{Name: "Garage 4"}
	require.NoError(t, f.svc.CreateProperty(ctx, garage))

	// Imported while the garage had no owner: persisted without a split.
	f.review(t, header+"2024-04-01,200,Garage rent,payment,rent,Garage 4,Jane Doe\n", "batch-g")
	result, err := f.svc.Confirm(ctx, "batch-g", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.DerivedEntries)
	require.NotEmpty(t, result.Warnings)

	require.NoError(t, f.svc.AssignOwner(ctx, garage.ID, f.owner.ID))

	dry, err := f.svc.SplitExistingRentPayments(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, dry.Candidates)
	assert.Equal(t, 1, dry.Split)
	assert.Equal(t, 2, dry.Derived)

	unsplit, err := f.store.ListUnsplitRentPayments(ctx)
	require.NoError(t, err)
	require.Len(t, unsplit, 1, "dry run must not write")

	report, err := f.svc.SplitExistingRentPayments(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Split)
	assert.Empty(t, report.Failed)

	balance, err := f.svc.Balance(ctx, f.owner.ID, garage.ID, "2024-04")
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(170)), "balance %s", balance.Balance)

	again, err := f.svc.SplitExistingRentPayments(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Candidates)
}

func TestAssignOwnerRequiresOwnerFlag(t *testing.T) {
	f := setupService(t)
	err := f.svc.AssignOwner(context.Background(), f.flat.ID, f.tenant.ID)
	assert.Error(t, err)
}
