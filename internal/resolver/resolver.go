// Package resolver matches the free-text references of a transaction draft
// against stored properties, customers and leases, producing ranked
// candidate lists. Results are deterministic for a fixed store.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/storage"
)

// Resolver reads the entity graph through its store ports.
type Resolver struct {
	properties storage.PropertyStore
	customers  storage.CustomerStore
	leases     storage.LeaseStore
	owners     storage.OwnerResolver
}

// New creates a Resolver.
func New(properties storage.PropertyStore, customers storage.CustomerStore, leases storage.LeaseStore, owners storage.OwnerResolver) *Resolver {
	return &Resolver{properties: properties, customers: customers, leases: leases, owners: owners}
}

// Resolution holds the candidates for one draft.
type Resolution struct {
	Properties []models.PropertyCandidate
	Customers  []models.CustomerCandidate
	Leases     []models.LeaseCandidate
}

// Resolve matches all references of a draft. Lease matching uses the
// property and customer only when each resolved to a single candidate.
func (r *Resolver) Resolve(ctx context.Context, draft *models.TransactionDraft) (*Resolution, error) {
	res := &Resolution{}
	var err error

	if res.Properties, err = r.ResolveProperty(ctx, draft.PropertyRef); err != nil {
		return nil, err
	}
	if res.Customers, err = r.ResolveCustomer(ctx, draft.CustomerRef, draft.BeneficiaryType, res.Properties); err != nil {
		return nil, err
	}

	var propertyID, customerID *int64
	if len(res.Properties) == 1 {
		propertyID = &res.Properties[0].PropertyID
	}
	if len(res.Customers) == 1 {
		customerID = &res.Customers[0].CustomerID
	}
	if res.Leases, err = r.ResolveLease(ctx, draft.LeaseRef, propertyID, customerID, draft.Date); err != nil {
		return nil, err
	}
	return res, nil
}

// ResolveProperty ranks properties against ref.
func (r *Resolver) ResolveProperty(ctx context.Context, ref string) ([]models.PropertyCandidate, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	exact, err := r.properties.FindPropertiesByName(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to match property name: %w", err)
	}
	if len(exact) > 0 {
		candidates := make([]models.PropertyCandidate, 0, len(exact))
		for _, p := range exact {
			candidates = append(candidates, propertyCandidate(p, scoreExact))
		}
		return rankProperties(candidates), nil
	}

	all, err := r.properties.ListProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	search := strings.ToLower(ref)
	var candidates []models.PropertyCandidate
	for _, p := range all {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if containsEither(name, search) {
			if score := overlapScore(search, name); score > minOverlapScore {
				candidates = append(candidates, propertyCandidate(p, score))
			}
		}
		if containsEither(strings.ToLower(strings.TrimSpace(p.AddressLine1)), search) {
			candidates = append(candidates, propertyCandidate(p, scoreAddress))
		}
		if containsEither(strings.ToLower(strings.TrimSpace(p.Postcode)), search) {
			candidates = append(candidates, propertyCandidate(p, scorePostcode))
		}
	}
	return rankProperties(candidates), nil
}

func propertyCandidate(p models.Property, score int) models.PropertyCandidate {
	address := strings.TrimSpace(strings.Join([]string{p.AddressLine1, p.Postcode}, " "))
	return models.PropertyCandidate{PropertyID: p.ID, Name: p.Name, Address: address, Score: score}
}

// rankProperties keeps the best score per property, orders by score then
// ID, and caps the list.
func rankProperties(in []models.PropertyCandidate) []models.PropertyCandidate {
	best := make(map[int64]int, len(in))
	var out []models.PropertyCandidate
	for _, c := range in {
		if i, seen := best[c.PropertyID]; seen {
			if c.Score > out[i].Score {
				out[i].Score = c.Score
			}
			continue
		}
		best[c.PropertyID] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PropertyID < out[j].PropertyID
	})
	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}

// ResolveCustomer ranks customers against ref. For owner payments with no
// strong match, property owners are offered as fallbacks.
func (r *Resolver) ResolveCustomer(ctx context.Context, ref, beneficiaryType string, properties []models.PropertyCandidate) ([]models.CustomerCandidate, error) {
	ref = strings.TrimSpace(ref)
	candidates, err := r.matchCustomers(ctx, ref)
	if err != nil {
		return nil, err
	}

	if isOwnerPayment(beneficiaryType) && !hasStrongMatch(candidates) {
		owners, err := r.ownerFallback(ctx, properties)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, owners...)
	}
	return rankCustomers(candidates), nil
}

func (r *Resolver) matchCustomers(ctx context.Context, ref string) ([]models.CustomerCandidate, error) {
	if ref == "" {
		return nil, nil
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		c, err := r.customers.GetCustomer(ctx, id)
		if err == nil {
			return []models.CustomerCandidate{customerCandidate(*c, scoreExact)}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to get customer by id: %w", err)
		}
	}

	if strings.Contains(ref, "@") {
		byEmail, err := r.customers.FindCustomersByEmail(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to match customer email: %w", err)
		}
		if len(byEmail) > 0 {
			out := make([]models.CustomerCandidate, 0, len(byEmail))
			for _, c := range byEmail {
				out = append(out, customerCandidate(c, scoreExact))
			}
			return out, nil
		}
	}

	all, err := r.customers.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	stripped := stripTitle(ref)
	var exact []models.CustomerCandidate
	for _, c := range all {
		if stripTitle(c.Name) == stripped {
			exact = append(exact, customerCandidate(c, scoreExact))
		}
	}
	if len(exact) > 0 {
		return exact, nil
	}

	searchTokens := tokens(stripped)
	var out []models.CustomerCandidate
	for _, c := range all {
		if score := scoreCustomer(stripped, searchTokens, c); score > 0 {
			out = append(out, customerCandidate(c, score))
		}
	}
	return out, nil
}

// scoreCustomer tries token, substring and email matching in that order.
func scoreCustomer(search string, searchTokens []string, c models.Customer) int {
	name := stripTitle(c.Name)
	if score := tokenScore(searchTokens, tokens(name)); score > 0 {
		return score
	}
	if containsEither(name, search) {
		if score := overlapScore(search, name); score > minOverlapScore {
			return score
		}
	}

	local, _, found := strings.Cut(strings.ToLower(c.Email), "@")
	if !found || local == "" || len(searchTokens) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range searchTokens {
		if strings.Contains(local, tok) {
			hits++
		}
	}
	switch {
	case hits == len(searchTokens):
		return scoreEmailAll
	case hits > 0:
		return scoreEmailSome
	}
	return 0
}

func isOwnerPayment(beneficiaryType string) bool {
	switch strings.ToLower(beneficiaryType) {
	case models.BeneficiaryOwner, "owner":
		return true
	}
	return false
}

func hasStrongMatch(candidates []models.CustomerCandidate) bool {
	for _, c := range candidates {
		if c.Score >= scoreEmailAll {
			return true
		}
	}
	return false
}

// ownerFallback offers the owner of a single resolved property, or every
// flagged owner when no single property resolved.
func (r *Resolver) ownerFallback(ctx context.Context, properties []models.PropertyCandidate) ([]models.CustomerCandidate, error) {
	if len(properties) == 1 {
		owner, err := r.owners.OwnerOf(ctx, properties[0].PropertyID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get property owner: %w", err)
		}
		return []models.CustomerCandidate{customerCandidate(*owner, scoreOwnerOfProp)}, nil
	}

	owners, err := r.customers.ListPropertyOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list property owners: %w", err)
	}
	out := make([]models.CustomerCandidate, 0, len(owners))
	for _, o := range owners {
		out = append(out, customerCandidate(o, scoreAnyOwner))
	}
	return out, nil
}

func customerCandidate(c models.Customer, score int) models.CustomerCandidate {
	return models.CustomerCandidate{CustomerID: c.ID, Name: c.Name, Email: c.Email, Score: score}
}

func rankCustomers(in []models.CustomerCandidate) []models.CustomerCandidate {
	best := make(map[int64]int, len(in))
	var out []models.CustomerCandidate
	for _, c := range in {
		if i, seen := best[c.CustomerID]; seen {
			if c.Score > out[i].Score {
				out[i].Score = c.Score
			}
			continue
		}
		best[c.CustomerID] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}

// ResolveLease ranks leases. An exact reference wins outright; otherwise the
// leases shared by a resolved property and customer are scored by how the
// transaction date sits against each term.
func (r *Resolver) ResolveLease(ctx context.Context, ref string, propertyID, customerID *int64, date time.Time) ([]models.LeaseCandidate, error) {
	ref = strings.TrimSpace(ref)
	if ref != "" {
		l, err := r.leases.FindLeaseByReference(ctx, ref)
		if err == nil {
			return []models.LeaseCandidate{leaseCandidate(*l, scoreExact)}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to match lease reference: %w", err)
		}
	}
	if propertyID == nil || customerID == nil {
		return nil, nil
	}

	shared, err := r.leases.ListLeasesFor(ctx, *propertyID, *customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leases: %w", err)
	}

	var out []models.LeaseCandidate
	for _, l := range shared {
		if score := leaseScore(l, date); score > 0 {
			out = append(out, leaseCandidate(l, score))
		}
	}
	if len(out) == 0 {
		for i := 0; i < len(shared) && i < 3; i++ {
			out = append(out, leaseCandidate(shared[i], scoreFallbackLease))
		}
	}
	return rankLeases(out), nil
}

// leaseScore is 100 inside the term, decays from 90 to 80 over the 30 days
// before the start, and from 85 to 55 over the 90 days after the end.
func leaseScore(l models.Lease, date time.Time) int {
	if date.Before(l.StartDate) {
		daysBefore := daysBetween(date, l.StartDate)
		if daysBefore <= 30 {
			return max(80, 90-10*(daysBefore/10))
		}
		return 0
	}
	if l.EndDate == nil || !date.After(*l.EndDate) {
		return scoreExact
	}
	daysAfter := daysBetween(*l.EndDate, date)
	if daysAfter <= 90 {
		return max(55, 85-10*(daysAfter/10))
	}
	return 0
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func leaseCandidate(l models.Lease, score int) models.LeaseCandidate {
	return models.LeaseCandidate{LeaseID: l.ID, Reference: l.Reference, StartDate: l.StartDate, EndDate: l.EndDate, Score: score}
}

// rankLeases deduplicates while keeping the newest-start-first order for
// equal scores.
func rankLeases(in []models.LeaseCandidate) []models.LeaseCandidate {
	seen := make(map[int64]bool, len(in))
	var out []models.LeaseCandidate
	for _, c := range in {
		if seen[c.LeaseID] {
			continue
		}
		seen[c.LeaseID] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}
