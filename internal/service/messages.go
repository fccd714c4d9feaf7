package service

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/review"
)

// ImportInput carries raw rows. JSON takes precedence over CSV; CSV input
// starts with a header line.
type ImportInput struct {
	CSV  string          `json:"csv,omitempty"`
	JSON json.RawMessage `json:"json,omitempty"`
}

type ValidateRequest struct {
	ImportInput
}

type ValidateResponse struct {
	SourceDescription string            `json:"source_description,omitempty"`
	ValidRows         int               `json:"valid_rows"`
	FailedRows        int               `json:"failed_rows"`
	Fatal             string            `json:"fatal,omitempty"`
	Issues            []models.RowIssue `json:"issues,omitempty"`
}

type ReviewRequest struct {
	ImportInput
	BatchID         string `json:"batch_id,omitempty"`
	PaymentSourceID *int64 `json:"payment_source_id,omitempty"`
}

type ReviewResponse struct {
	Queue *models.ReviewQueue `json:"queue"`
}

type ConfirmRequest struct {
	BatchID       string                `json:"batch_id"`
	Confirmations []review.Confirmation `json:"confirmations,omitempty"`
}

type ConfirmResponse struct {
	Result *models.ImportResult `json:"result"`
}

type GetBalanceRequest struct {
	OwnerID    int64  `json:"owner_id"`
	PropertyID int64  `json:"property_id"`
	Period     string `json:"period"`

	// PaymentThreshold, when set, decides PaymentDue.
	PaymentThreshold *decimal.Decimal `json:"payment_threshold,omitempty"`
}

type GetBalanceResponse struct {
	Balance    *models.BeneficiaryBalance `json:"balance"`
	Overdrawn  bool                       `json:"overdrawn"`
	PaymentDue bool                       `json:"payment_due"`
}

type SplitExistingRequest struct {
	DryRun bool `json:"dry_run"`
}

type SplitExistingResponse struct {
	Report *SplitReport `json:"report"`
}

type BatchSummaryRequest struct {
	BatchID string `json:"batch_id"`
}

type BatchSummaryResponse struct {
	Counts map[models.ReviewStatus]int `json:"counts"`
}

type RecentBatchesRequest struct {
	Limit int `json:"limit,omitempty"`
}

type RecentBatchesResponse struct {
	Batches []models.BatchInfo `json:"batches"`
}

type AssignOwnerRequest struct {
	PropertyID int64 `json:"property_id"`
	CustomerID int64 `json:"customer_id"`
}

type AssignOwnerResponse struct{}
