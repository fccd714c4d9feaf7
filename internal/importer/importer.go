// Package importer turns raw CSV or JSON input into transaction drafts.
//
// Parsing never touches storage. Row failures are collected on the
// ParseResult; only a missing required column fails the whole input.
package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mmynk/rentledger/internal/models"
)

// Recognized column names. Header matching is case-insensitive.
const (
	ColDate            = "transaction_date"
	ColAmount          = "amount"
	ColDescription     = "description"
	ColType            = "transaction_type"
	ColCategory        = "category"
	ColSubcategory     = "subcategory"
	ColProperty        = "property_reference"
	ColCustomer        = "customer_reference"
	ColLease           = "lease_reference"
	ColBankReference   = "bank_reference"
	ColPaymentMethod   = "payment_method"
	ColCounterparty    = "counterparty_name"
	ColBeneficiaryType = "beneficiary_type"
	ColIncomingAmount  = "incoming_transaction_amount"
	ColPaymentSource   = "payment_source"
	ColSource          = "source"
	ColNotes           = "notes"
)

var requiredColumns = []string{ColDate, ColAmount}

// HeaderError is the only batch-fatal parse failure.
type HeaderError struct {
	Missing []string
	Line    int
	Raw     string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("line %d: missing required column(s) %s (raw: %q)", e.Line, strings.Join(e.Missing, ", "), e.Raw)
}

// ParsedRow is one input row: either a draft or a row error.
type ParsedRow struct {
	Line  int
	Raw   string
	Draft *models.TransactionDraft
	Err   *models.RowError
}

// ParseResult is the outcome of parsing one upload.
type ParseResult struct {
	Rows  []ParsedRow
	Fatal *HeaderError

	// SourceDescription is the JSON envelope's description, if any.
	SourceDescription string
}

// Valid counts rows that produced a draft.
func (r *ParseResult) Valid() int {
	n := 0
	for _, row := range r.Rows {
		if row.Draft != nil {
			n++
		}
	}
	return n
}

// Failed counts rows that produced an error.
func (r *ParseResult) Failed() int {
	return len(r.Rows) - r.Valid()
}

// ColumnMap builds a lower-cased column name to index map from header cells.
func ColumnMap(headers []string) map[string]int {
	columns := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	return columns
}

func missingColumns(columns map[string]int) []string {
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// ParseCSV parses CSV input. When columns is nil the first line is the header;
// otherwise every line is data and columns maps names to indexes.
func ParseCSV(input string, columns map[string]int) *ParseResult {
	result := &ParseResult{}
	reader := csv.NewReader(strings.NewReader(input))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	if columns == nil {
		headers, err := reader.Read()
		if errors.Is(err, io.EOF) {
			result.Fatal = &HeaderError{Missing: requiredColumns, Line: 1}
			return result
		}
		if err != nil {
			result.Fatal = &HeaderError{Missing: requiredColumns, Line: 1, Raw: firstLine(input)}
			return result
		}
		columns = ColumnMap(headers)
		if missing := missingColumns(columns); len(missing) > 0 {
			result.Fatal = &HeaderError{Missing: missing, Line: 1, Raw: firstLine(input)}
			return result
		}
	} else {
		normalized := make(map[string]int, len(columns))
		for name, idx := range columns {
			normalized[strings.ToLower(strings.TrimSpace(name))] = idx
		}
		columns = normalized
		if missing := missingColumns(columns); len(missing) > 0 {
			result.Fatal = &HeaderError{Missing: missing}
			return result
		}
	}

	for {
		start := reader.InputOffset()
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		raw := strings.TrimRight(input[start:reader.InputOffset()], "\r\n")
		raw = strings.TrimLeft(raw, "\r\n")

		line := 0
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.StartLine
			}
			result.Rows = append(result.Rows, ParsedRow{
				Line: line, Raw: raw,
				Err: models.NewRowError(models.ErrParse, line, raw, fmt.Errorf("malformed CSV row: %w", err)),
			})
			continue
		}
		line, _ = reader.FieldPos(0)

		if isBlank(record) {
			continue
		}

		draft, err := parseDraft(csvFields(record, columns))
		if err != nil {
			result.Rows = append(result.Rows, ParsedRow{
				Line: line, Raw: raw,
				Err: models.NewRowError(models.ErrParse, line, raw, err),
			})
			continue
		}
		result.Rows = append(result.Rows, ParsedRow{Line: line, Raw: raw, Draft: draft})
	}

	return result
}

// ParseJSON parses a {source_description, transactions: [...]} document.
// Line numbers are 1-based positions in the transactions array.
func ParseJSON(data []byte) (*ParseResult, error) {
	var envelope struct {
		SourceDescription string           `json:"source_description"`
		Transactions      []map[string]any `json:"transactions"`
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode JSON import: %w", err)
	}

	result := &ParseResult{SourceDescription: envelope.SourceDescription}
	for i, obj := range envelope.Transactions {
		line := i + 1
		rawBytes, _ := json.Marshal(obj)
		raw := string(rawBytes)

		lowered := make(map[string]any, len(obj))
		for k, v := range obj {
			lowered[strings.ToLower(strings.TrimSpace(k))] = v
		}

		draft, err := parseDraft(func(name string) string {
			return stringify(lowered[name])
		})
		if err != nil {
			result.Rows = append(result.Rows, ParsedRow{
				Line: line, Raw: raw,
				Err: models.NewRowError(models.ErrParse, line, raw, err),
			})
			continue
		}
		result.Rows = append(result.Rows, ParsedRow{Line: line, Raw: raw, Draft: draft})
	}
	return result, nil
}

// fields returns the trimmed value of a named column, or "" when absent.
type fields func(name string) string

func csvFields(record []string, columns map[string]int) fields {
	return func(name string) string {
		if idx, ok := columns[name]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func parseDraft(get fields) (*models.TransactionDraft, error) {
	dateStr := get(ColDate)
	if dateStr == "" {
		return nil, fmt.Errorf("%s is required", ColDate)
	}
	date, err := ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	amountStr := get(ColAmount)
	if amountStr == "" {
		return nil, fmt.Errorf("%s is required", ColAmount)
	}
	amount, err := ParseAmount(amountStr)
	if err != nil {
		return nil, err
	}

	draft := &models.TransactionDraft{
		Date:             date,
		Amount:           amount,
		Description:      get(ColDescription),
		Category:         strings.ToLower(get(ColCategory)),
		Subcategory:      get(ColSubcategory),
		PropertyRef:      get(ColProperty),
		CustomerRef:      get(ColCustomer),
		LeaseRef:         get(ColLease),
		BeneficiaryType:  normalizeBeneficiary(get(ColBeneficiaryType)),
		BankReference:    get(ColBankReference),
		PaymentMethod:    get(ColPaymentMethod),
		CounterpartyName: get(ColCounterparty),
		Source:           NormalizeSource(get(ColSource)),
		Notes:            get(ColNotes),
	}

	if s := get(ColIncomingAmount); s != "" {
		incoming, err := ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ColIncomingAmount, err)
		}
		draft.IncomingAmount = &incoming
	}

	if s := get(ColType); s != "" {
		if draft.Type, err = NormalizeType(s); err != nil {
			return nil, err
		}
	} else {
		draft.Type = InferType(draft.IncomingAmount, draft.BeneficiaryType, draft.Amount)
	}

	if s := get(ColPaymentSource); s != "" {
		if draft.PaymentSourceCode, err = NormalizePaymentSource(s); err != nil {
			return nil, err
		}
	}

	if draft.Description == "" {
		draft.Description = describe(draft)
	}
	return draft, nil
}

func normalizeBeneficiary(s string) string {
	s = strings.ToLower(s)
	if s == "owner" {
		return models.BeneficiaryOwner
	}
	return s
}

// describe synthesizes a description: bank reference, then counterparty,
// then "<Type> - <property> - <customer> - <amount>".
func describe(d *models.TransactionDraft) string {
	if d.BankReference != "" {
		return d.BankReference
	}
	if d.CounterpartyName != "" {
		return d.CounterpartyName
	}
	parts := []string{cases.Title(language.English).String(string(d.Type))}
	if d.PropertyRef != "" {
		parts = append(parts, d.PropertyRef)
	}
	if d.CustomerRef != "" {
		parts = append(parts, d.CustomerRef)
	}
	parts = append(parts, d.Amount.Abs().StringFixed(2))
	return strings.Join(parts, " - ")
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func firstLine(input string) string {
	line, _, _ := strings.Cut(input, "\n")
	return strings.TrimRight(line, "\r")
}
