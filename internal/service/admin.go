package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/models"
)

// CreateProperty adds a property to the entity graph.
func (s *ImportService) CreateProperty(ctx context.Context, p *models.Property) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("property name is required")
	}
	if r := p.CommissionRate; r != nil && (r.IsNegative() || r.GreaterThan(decimal.NewFromInt(100))) {
		return fmt.Errorf("commission rate must be between 0 and 100, got %s", r)
	}
	return s.store.CreateProperty(ctx, p)
}

// CreateCustomer adds a tenant or owner.
func (s *ImportService) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("customer name is required")
	}
	return s.store.CreateCustomer(ctx, c)
}

// CreateLease adds a lease between a property and a customer.
func (s *ImportService) CreateLease(ctx context.Context, l *models.Lease) error {
	if strings.TrimSpace(l.Reference) == "" {
		return errors.New("lease reference is required")
	}
	if l.StartDate.IsZero() {
		return errors.New("lease start date is required")
	}
	if l.EndDate != nil && l.EndDate.Before(l.StartDate) {
		return errors.New("lease end date is before its start date")
	}
	return s.store.CreateLease(ctx, l)
}

// CreatePaymentSource records the account behind a payment source code.
func (s *ImportService) CreatePaymentSource(ctx context.Context, ps *models.PaymentSource) error {
	switch ps.Code {
	case models.PaymentSourceOldAccount, models.PaymentSourcePayProp, models.PaymentSourceCalmony:
	default:
		return fmt.Errorf("unknown payment source code %q", ps.Code)
	}
	return s.store.CreatePaymentSource(ctx, ps)
}

// AssignOwner records an owner for a property without a direct owner link.
func (s *ImportService) AssignOwner(ctx context.Context, propertyID, customerID int64) error {
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if !c.IsPropertyOwner {
		return fmt.Errorf("customer %d is not a property owner", customerID)
	}
	if _, err := s.store.GetProperty(ctx, propertyID); err != nil {
		return err
	}
	return s.store.AssignOwner(ctx, propertyID, customerID)
}
