package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/storage"
)

// graph is an in-memory entity store.
type graph struct {
	properties []models.Property
	customers  []models.Customer
	leases     []models.Lease
}

func (g *graph) GetProperty(_ context.Context, id int64) (*models.Property, error) {
	for _, p := range g.properties {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("property %d: %w", id, storage.ErrNotFound)
}

func (g *graph) FindPropertiesByName(_ context.Context, name string) ([]models.Property, error) {
	var out []models.Property
	for _, p := range g.properties {
		if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *graph) ListProperties(context.Context) ([]models.Property, error) {
	return g.properties, nil
}

func (g *graph) GetCustomer(_ context.Context, id int64) (*models.Customer, error) {
	for _, c := range g.customers {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("customer %d: %w", id, storage.ErrNotFound)
}

func (g *graph) FindCustomersByEmail(_ context.Context, email string) ([]models.Customer, error) {
	var out []models.Customer
	for _, c := range g.customers {
		if c.Email != "" && strings.EqualFold(c.Email, email) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *graph) ListCustomers(context.Context) ([]models.Customer, error) {
	return g.customers, nil
}

func (g *graph) ListPropertyOwners(context.Context) ([]models.Customer, error) {
	var out []models.Customer
	for _, c := range g.customers {
		if c.IsPropertyOwner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *graph) FindLeaseByReference(_ context.Context, ref string) (*models.Lease, error) {
	for _, l := range g.leases {
		if l.Reference == ref {
			return &l, nil
		}
	}
	return nil, fmt.Errorf("lease %q: %w", ref, storage.ErrNotFound)
}

func (g *graph) ListLeasesFor(_ context.Context, propertyID, customerID int64) ([]models.Lease, error) {
	var out []models.Lease
	for _, l := range g.leases {
		if l.PropertyID == propertyID && l.CustomerID == customerID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (g *graph) OwnerOf(_ context.Context, propertyID int64) (*models.Customer, error) {
	p, err := g.GetProperty(context.Background(), propertyID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID == nil {
		return nil, fmt.Errorf("owner of %d: %w", propertyID, storage.ErrNotFound)
	}
	return g.GetCustomer(context.Background(), *p.OwnerID)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

func newGraph() *graph {
	return &graph{
		customers: []models.Customer{
			{ID: 1, Name: "Olivia Owner", Email: "olivia.owner@example.com", IsPropertyOwner: true},
			{ID: 2, Name: "Jane Doe", Email: "jane.doe@example.com"},
			{ID: 3, Name: "John Smith", Email: "john.smith@example.com"},
			{ID: 4, Name: "Jane Smith", Email: "jsmith@example.com"},
			{ID: 5, Name: "Bob Smithers", Email: "bob@example.com"},
			{ID: 6, Name: "Oscar Landlord", Email: "lettings.oscar@example.com", IsPropertyOwner: true},
		},
		properties: []models.Property{
			{ID: 1, Name: "Flat 1", AddressLine1: "3 West Gate", Postcode: "LS1 4AB", OwnerID: ptr(int64(1))},
			{ID: 2, Name: "Flat 10", AddressLine1: "3 West Gate", Postcode: "LS1 4AB"},
			{ID: 3, Name: "Garage 4", AddressLine1: "Mill Lane", Postcode: "HX7 8AA"},
		},
		leases: []models.Lease{
			{ID: 1, Reference: "LEASE-2023", PropertyID: 1, CustomerID: 2, StartDate: day("2023-01-01"), EndDate: ptr(day("2023-12-31"))},
			{ID: 2, Reference: "LEASE-2024", PropertyID: 1, CustomerID: 2, StartDate: day("2024-02-01"), EndDate: ptr(day("2024-12-31"))},
		},
	}
}

func newResolver(g *graph) *Resolver {
	return New(g, g, g, g)
}

func TestResolveProperty(t *testing.T) {
	r := newResolver(newGraph())
	ctx := context.Background()

	t.Run("exact name short-circuits", func(t *testing.T) {
		got, err := r.ResolveProperty(ctx, "flat 1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].PropertyID)
		assert.Equal(t, 100, got[0].Score)
	})

	t.Run("address and postcode containment", func(t *testing.T) {
		got, err := r.ResolveProperty(ctx, "West Gate")
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, c := range got {
			assert.Equal(t, 80, c.Score)
		}
		assert.Equal(t, int64(1), got[0].PropertyID, "ties break by id")

		got, err = r.ResolveProperty(ctx, "hx7 8aa")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, models.PropertyCandidate{PropertyID: 3, Name: "Garage 4", Address: "Mill Lane HX7 8AA", Score: 70}, got[0])
	})

	t.Run("name containment scored by overlap", func(t *testing.T) {
		got, err := r.ResolveProperty(ctx, "Garage 4B")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(3), got[0].PropertyID)
		assert.Equal(t, 88, got[0].Score)
	})

	t.Run("unknown reference has no candidates", func(t *testing.T) {
		got, err := r.ResolveProperty(ctx, "Unknown Rd")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("candidates are capped", func(t *testing.T) {
		g := newGraph()
		for i := 0; i < 8; i++ {
			g.properties = append(g.properties, models.Property{ID: int64(10 + i), Name: fmt.Sprintf("Unit %d", i), AddressLine1: "Canal Wharf"})
		}
		got, err := newResolver(g).ResolveProperty(ctx, "canal wharf")
		require.NoError(t, err)
		assert.Len(t, got, MaxCandidates)
	})
}

func TestResolveCustomer(t *testing.T) {
	r := newResolver(newGraph())
	ctx := context.Background()

	tests := []struct {
		name      string
		ref       string
		wantIDs   []int64
		wantScore []int
	}{
		{name: "J Smith is ambiguous", ref: "J Smith", wantIDs: []int64{3, 4}, wantScore: []int{95, 95}},
		{name: "numeric id", ref: "2", wantIDs: []int64{2}, wantScore: []int{100}},
		{name: "email", ref: "JOHN.SMITH@example.com", wantIDs: []int64{3}, wantScore: []int{100}},
		{name: "title stripped", ref: "Mrs. Jane Doe", wantIDs: []int64{2}, wantScore: []int{100}},
		{name: "one typo", ref: "Jane Dooe", wantIDs: []int64{2, 4}, wantScore: []int{95, 75}},
		{name: "email local part", ref: "lettings", wantIDs: []int64{6}, wantScore: []int{90}},
		{name: "partial email local part", ref: "lettings manager", wantIDs: []int64{6}, wantScore: []int{85}},
		{name: "nothing", ref: "Zebedee", wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveCustomer(ctx, tt.ref, "", nil)
			require.NoError(t, err)
			var ids []int64
			var scores []int
			for _, c := range got {
				ids = append(ids, c.CustomerID)
				scores = append(scores, c.Score)
			}
			assert.Equal(t, tt.wantIDs, ids)
			if tt.wantScore != nil {
				assert.Equal(t, tt.wantScore, scores)
			}
		})
	}
}

func TestResolveCustomerOwnerFallback(t *testing.T) {
	r := newResolver(newGraph())
	ctx := context.Background()

	t.Run("owner of the resolved property", func(t *testing.T) {
		props := []models.PropertyCandidate{{PropertyID: 1, Score: 100}}
		got, err := r.ResolveCustomer(ctx, "", models.BeneficiaryOwner, props)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].CustomerID)
		assert.Equal(t, 95, got[0].Score)
	})

	t.Run("all owners without a property", func(t *testing.T) {
		got, err := r.ResolveCustomer(ctx, "Mr Landlord Trust", models.BeneficiaryOwner, nil)
		require.NoError(t, err)
		require.Len(t, got, 2, "the weak token match on Oscar merges with his fallback entry")
		assert.Equal(t, int64(1), got[0].CustomerID)
		assert.Equal(t, int64(6), got[1].CustomerID)
		assert.Equal(t, 80, got[0].Score)
		assert.Equal(t, 80, got[1].Score)
	})

	t.Run("strong match suppresses fallback", func(t *testing.T) {
		got, err := r.ResolveCustomer(ctx, "Jane Doe", models.BeneficiaryOwner, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(2), got[0].CustomerID)
	})
}

func TestResolveLease(t *testing.T) {
	r := newResolver(newGraph())
	ctx := context.Background()
	prop, cust := ptr(int64(1)), ptr(int64(2))

	tests := []struct {
		name      string
		ref       string
		date      string
		wantIDs   []int64
		wantScore []int
	}{
		{name: "exact reference", ref: "LEASE-2023", date: "2030-01-01", wantIDs: []int64{1}, wantScore: []int{100}},
		{name: "in term", date: "2024-06-01", wantIDs: []int64{2}, wantScore: []int{100}},
		{name: "days before start", date: "2024-01-17", wantIDs: []int64{2, 1}, wantScore: []int{80, 75}},
		{name: "just before start", date: "2024-01-27", wantIDs: []int64{2, 1}, wantScore: []int{90, 65}},
		{name: "arrears after end", date: "2025-02-14", wantIDs: []int64{2}, wantScore: []int{55}},
		{name: "fallback when nothing scores", date: "2026-01-01", wantIDs: []int64{2, 1}, wantScore: []int{50, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveLease(ctx, tt.ref, prop, cust, day(tt.date))
			require.NoError(t, err)
			var ids []int64
			var scores []int
			for _, c := range got {
				ids = append(ids, c.LeaseID)
				scores = append(scores, c.Score)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantScore, scores)
		})
	}

	t.Run("requires property and customer", func(t *testing.T) {
		got, err := r.ResolveLease(ctx, "", prop, nil, day("2024-06-01"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestResolveIsDeterministic(t *testing.T) {
	r := newResolver(newGraph())
	draft := &models.TransactionDraft{Date: day("2024-06-01"), PropertyRef: "West Gate", CustomerRef: "J Smith"}

	first, err := r.Resolve(context.Background(), draft)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Resolve(context.Background(), draft)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTokenScore(t *testing.T) {
	assert.Equal(t, 95, tokenScore([]string{"smith"}, []string{"john", "smith"}))
	assert.Equal(t, 75, tokenScore([]string{"jane", "porter"}, []string{"jane", "doe"}))
	assert.Equal(t, 0, tokenScore([]string{"smith"}, []string{"smithers"}))
	assert.Equal(t, 0, tokenScore(nil, []string{"jane"}))
}
