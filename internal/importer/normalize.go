package importer

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/models"
)

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []struct {
	layout  string
	pattern string
}{
	{"2006-01-02", "yyyy-MM-dd"},
	{"02/01/2006", "dd/MM/yyyy"},
	{"01/02/2006", "MM/dd/yyyy"},
	{"02-01-2006", "dd-MM-yyyy"},
	{"2006/01/02", "yyyy/MM/dd"},
}

// ParseDate parses s with the first matching supported layout.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, f := range dateLayouts {
		if t, err := time.Parse(f.layout, s); err == nil {
			return t, nil
		}
	}
	patterns := make([]string, len(dateLayouts))
	for i, f := range dateLayouts {
		patterns[i] = f.pattern
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q, tried formats: %s", s, strings.Join(patterns, ", "))
}

var amountReplacer = strings.NewReplacer(",", "", "$", "", "£", "", " ", "")

// ParseAmount parses a money amount, ignoring thousands separators and currency symbols.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := amountReplacer.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

var (
	expenseFragments = []string{"maintenance", "repair", "contractor", "upkeep", "expense"}

	typeSynonyms = map[string]models.TransactionType{
		"cost":                   models.TypeExpense,
		"expenditure":            models.TypeExpense,
		"service_payment":        models.TypeExpense,
		"rent":                   models.TypePayment,
		"rental":                 models.TypePayment,
		"rental_payment":         models.TypePayment,
		"parking":                models.TypePayment,
		"owner_payment":          models.TypePayment,
		"payment_to_beneficiary": models.TypePayment,
		"commission":             models.TypeFee,
		"service_fee":            models.TypeFee,
		"management_fee":         models.TypeFee,
	}
)

// NormalizeType maps a free-text transaction type onto the closed enum.
func NormalizeType(s string) (models.TransactionType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	for _, fragment := range expenseFragments {
		if strings.Contains(key, fragment) {
			return models.TypeExpense, nil
		}
	}
	if t, ok := typeSynonyms[key]; ok {
		return t, nil
	}
	if t := models.TransactionType(key); t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unrecognized transaction type %q", s)
}

// InferType picks a type for rows that do not state one.
func InferType(incoming *decimal.Decimal, beneficiaryType string, amount decimal.Decimal) models.TransactionType {
	if incoming != nil {
		return models.TypePayment
	}
	switch beneficiaryType {
	case models.BeneficiaryOwner:
		return models.TypePayment
	case models.BeneficiaryContractor:
		return models.TypeExpense
	}
	if amount.IsNegative() {
		return models.TypePayment
	}
	return models.TypeInvoice
}

// NormalizeSource maps the source column, falling back to historical_import.
func NormalizeSource(s string) models.TransactionSource {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return models.SourceHistoricalImport
	}
	src := models.TransactionSource(key)
	if !src.Valid() || src == models.SourceCommissionSplit {
		slog.Warn("Unknown transaction source, using default", "source", s, "default", models.SourceHistoricalImport)
		return models.SourceHistoricalImport
	}
	return src
}

// NormalizePaymentSource maps a payment source code onto the vocabulary.
// BANK is an alias for CALMONY.
func NormalizePaymentSource(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	code = strings.NewReplacer(" ", "_", "-", "_").Replace(code)
	switch code {
	case models.PaymentSourceOldAccount, models.PaymentSourcePayProp, models.PaymentSourceCalmony:
		return code, nil
	case "BANK":
		return models.PaymentSourceCalmony, nil
	}
	return "", fmt.Errorf("unknown payment source %q, expected one of %s, %s, %s (or BANK)",
		s, models.PaymentSourceOldAccount, models.PaymentSourcePayProp, models.PaymentSourceCalmony)
}
