// Package calculator holds the pure money arithmetic of the ledger: the
// commission split of a gross payment and the fold of balance movements.
package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// DefaultCommissionRate applies when a property has no rate of its own.
	DefaultCommissionRate = decimal.NewFromInt(15)

	// Statement breakdown of the commission, in percent of gross.
	DefaultManagementRate = decimal.NewFromInt(10)
	DefaultServiceRate    = decimal.NewFromInt(5)

	hundred = decimal.NewFromInt(100)
)

// CommissionSplit is the division of one gross payment.
type CommissionSplit struct {
	Gross      decimal.Decimal
	Rate       decimal.Decimal
	Commission decimal.Decimal
	OwnerShare decimal.Decimal
}

// SplitCommission divides a gross payment between the agency and the owner.
// Based on: commission = round(gross × rate / 100, 2, half-up); owner = gross − commission.
// The owner share is never rounded on its own, so the two parts always sum to gross.
func SplitCommission(gross, rate decimal.Decimal) (CommissionSplit, error) {
	if gross.IsNegative() {
		return CommissionSplit{}, fmt.Errorf("gross amount cannot be negative: %s", gross)
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return CommissionSplit{}, fmt.Errorf("commission rate must be between 0 and 100: %s", rate)
	}

	// shopspring Round is half away from zero, which is half-up for positive values.
	commission := gross.Mul(rate).Shift(-2).Round(2)
	return CommissionSplit{
		Gross:      gross,
		Rate:       rate,
		Commission: commission,
		OwnerShare: gross.Sub(commission),
	}, nil
}

// FeeBreakdown splits a commission into its management and service parts
// for statements. Management is rounded; service is the remainder, so the
// parts always sum to the commission.
type FeeBreakdown struct {
	Management decimal.Decimal
	Service    decimal.Decimal
}

// BreakdownCommission apportions commission between management and service
// fees in the ratio of their rates.
func BreakdownCommission(commission, managementRate, serviceRate decimal.Decimal) (FeeBreakdown, error) {
	total := managementRate.Add(serviceRate)
	if !total.IsPositive() {
		return FeeBreakdown{}, fmt.Errorf("fee rates must sum to a positive value")
	}
	if managementRate.IsNegative() || serviceRate.IsNegative() {
		return FeeBreakdown{}, fmt.Errorf("fee rates cannot be negative")
	}

	management := commission.Mul(managementRate).Div(total).Round(2)
	return FeeBreakdown{
		Management: management,
		Service:    commission.Sub(management),
	}, nil
}
