package review

import "github.com/mmynk/rentledger/internal/models"

// leaseAmbiguous reports whether the lease candidates need a human choice.
// A single top candidate at 100 settles it. Without a lease reference the
// lease is inferred silently, so it is never ambiguous.
func leaseAmbiguous(item *models.ReviewItem) bool {
	if item.Draft == nil || item.Draft.LeaseRef == "" {
		return false
	}
	return len(item.LeaseCandidates) > 1 && !uniqueTop(item.LeaseCandidates)
}

func uniqueTop(leases []models.LeaseCandidate) bool {
	if len(leases) == 0 {
		return false
	}
	return leases[0].Score == 100 && (len(leases) == 1 || leases[1].Score < 100)
}

// Classify assigns the highest-priority status that applies to item.
func Classify(item *models.ReviewItem) models.ReviewStatus {
	draft := item.Draft
	switch {
	case item.Error != "" || draft == nil:
		return models.StatusValidationError
	case len(item.PropertyCandidates) > 1:
		return models.StatusAmbiguousProperty
	case len(item.CustomerCandidates) > 1:
		return models.StatusAmbiguousCustomer
	case leaseAmbiguous(item):
		return models.StatusAmbiguousLease
	case draft.PropertyRef != "" && len(item.PropertyCandidates) == 0:
		return models.StatusMissingProperty
	case draft.CustomerRef != "" && len(item.CustomerCandidates) == 0:
		return models.StatusMissingCustomer
	case draft.LeaseRef != "" && len(item.LeaseCandidates) == 0:
		return models.StatusMissingLease
	case item.Duplicate.Scope != models.DuplicateNone && item.Duplicate.Scope != "":
		return models.StatusPotentialDuplicate
	}
	return models.StatusPerfect
}

// AutoSelect fills selections that need no human choice.
func AutoSelect(item *models.ReviewItem) {
	if item.PropertyID == nil && len(item.PropertyCandidates) == 1 {
		id := item.PropertyCandidates[0].PropertyID
		item.PropertyID = &id
	}
	if item.CustomerID == nil && len(item.CustomerCandidates) == 1 {
		id := item.CustomerCandidates[0].CustomerID
		item.CustomerID = &id
	}
	if item.LeaseID == nil && len(item.LeaseCandidates) > 0 && !leaseAmbiguous(item) {
		leases := item.LeaseCandidates
		if len(leases) == 1 || leases[0].Score > leases[1].Score {
			id := leases[0].LeaseID
			item.LeaseID = &id
		}
	}
}

// Totals counts a queue by status class.
func Totals(items []models.ReviewItem) models.ReviewTotals {
	totals := models.ReviewTotals{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case models.StatusPerfect:
			totals.Perfect++
		case models.StatusAmbiguousProperty, models.StatusAmbiguousCustomer, models.StatusAmbiguousLease,
			models.StatusPotentialDuplicate:
			totals.NeedsReview++
		case models.StatusMissingProperty, models.StatusMissingCustomer, models.StatusMissingLease,
			models.StatusValidationError:
			totals.HasIssues++
		}
	}
	return totals
}

// Unresolved returns the reason an item cannot be committed as selected,
// or "" when it can. Every ambiguous reference needs a selection, not only
// the one that set the status.
func Unresolved(item *models.ReviewItem) string {
	switch {
	case len(item.PropertyCandidates) > 1 && item.PropertyID == nil:
		return "property reference is ambiguous; select a property"
	case len(item.CustomerCandidates) > 1 && item.CustomerID == nil:
		return "customer reference is ambiguous; select a customer"
	case leaseAmbiguous(item) && item.LeaseID == nil:
		return "lease reference is ambiguous; select a lease"
	}
	return ""
}
