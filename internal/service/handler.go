package service

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/importer"
	"github.com/mmynk/rentledger/internal/models"
	"github.com/mmynk/rentledger/internal/storage"
)

// ImportServiceName is the fully-qualified name of the import RPC service.
const ImportServiceName = "rentledger.v1.ImportService"

const (
	ValidateProcedure            = "/" + ImportServiceName + "/Validate"
	ReviewProcedure              = "/" + ImportServiceName + "/Review"
	ConfirmProcedure             = "/" + ImportServiceName + "/Confirm"
	GetBalanceProcedure          = "/" + ImportServiceName + "/GetBalance"
	SplitExistingProcedure       = "/" + ImportServiceName + "/SplitExisting"
	BatchSummaryProcedure        = "/" + ImportServiceName + "/BatchSummary"
	RecentBatchesProcedure       = "/" + ImportServiceName + "/RecentBatches"
	CreatePropertyProcedure      = "/" + ImportServiceName + "/CreateProperty"
	CreateCustomerProcedure      = "/" + ImportServiceName + "/CreateCustomer"
	CreateLeaseProcedure         = "/" + ImportServiceName + "/CreateLease"
	CreatePaymentSourceProcedure = "/" + ImportServiceName + "/CreatePaymentSource"
	AssignOwnerProcedure         = "/" + ImportServiceName + "/AssignOwner"
)

// NewImportServiceHandler builds an HTTP handler for the import RPCs and
// returns the path to mount it on.
func NewImportServiceHandler(svc *ImportService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ValidateProcedure, connect.NewUnaryHandler(ValidateProcedure, svc.handleValidate, opts...))
	mux.Handle(ReviewProcedure, connect.NewUnaryHandler(ReviewProcedure, svc.handleReview, opts...))
	mux.Handle(ConfirmProcedure, connect.NewUnaryHandler(ConfirmProcedure, svc.handleConfirm, opts...))
	mux.Handle(GetBalanceProcedure, connect.NewUnaryHandler(GetBalanceProcedure, svc.handleGetBalance, opts...))
	mux.Handle(SplitExistingProcedure, connect.NewUnaryHandler(SplitExistingProcedure, svc.handleSplitExisting, opts...))
	mux.Handle(BatchSummaryProcedure, connect.NewUnaryHandler(BatchSummaryProcedure, svc.handleBatchSummary, opts...))
	mux.Handle(RecentBatchesProcedure, connect.NewUnaryHandler(RecentBatchesProcedure, svc.handleRecentBatches, opts...))
	mux.Handle(CreatePropertyProcedure, connect.NewUnaryHandler(CreatePropertyProcedure, svc.handleCreateProperty, opts...))
	mux.Handle(CreateCustomerProcedure, connect.NewUnaryHandler(CreateCustomerProcedure, svc.handleCreateCustomer, opts...))
	mux.Handle(CreateLeaseProcedure, connect.NewUnaryHandler(CreateLeaseProcedure, svc.handleCreateLease, opts...))
	mux.Handle(CreatePaymentSourceProcedure, connect.NewUnaryHandler(CreatePaymentSourceProcedure, svc.handleCreatePaymentSource, opts...))
	mux.Handle(AssignOwnerProcedure, connect.NewUnaryHandler(AssignOwnerProcedure, svc.handleAssignOwner, opts...))

	return "/" + ImportServiceName + "/", mux
}

// toConnectError maps service errors onto Connect codes. Errors that are
// not lookups or sessions are treated as bad input with code.
func toConnectError(err error, code connect.Code) error {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(code, err)
}

func (s *ImportService) parseInput(in ImportInput) (*importer.ParseResult, error) {
	if len(in.JSON) > 0 {
		return s.ValidateJSON(in.JSON)
	}
	if in.CSV == "" {
		return nil, errors.New("csv or json input is required")
	}
	return s.Validate(in.CSV, nil), nil
}

func (s *ImportService) handleValidate(ctx context.Context, req *connect.Request[ValidateRequest]) (*connect.Response[ValidateResponse], error) {
	parsed, err := s.parseInput(req.Msg.ImportInput)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	resp := &ValidateResponse{
		SourceDescription: parsed.SourceDescription,
		ValidRows:         parsed.Valid(),
		FailedRows:        parsed.Failed(),
	}
	if parsed.Fatal != nil {
		resp.Fatal = parsed.Fatal.Error()
	}
	for _, row := range parsed.Rows {
		if row.Err != nil {
			resp.Issues = append(resp.Issues, row.Err.Issue())
		}
	}
	return connect.NewResponse(resp), nil
}

func (s *ImportService) handleReview(ctx context.Context, req *connect.Request[ReviewRequest]) (*connect.Response[ReviewResponse], error) {
	parsed, err := s.parseInput(req.Msg.ImportInput)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	queue, err := s.ResolveAndReview(ctx, parsed, req.Msg.BatchID, req.Msg.PaymentSourceID)
	if err != nil {
		return nil, toConnectError(err, connect.CodeInternal)
	}
	return connect.NewResponse(&ReviewResponse{Queue: queue}), nil
}

func (s *ImportService) handleConfirm(ctx context.Context, req *connect.Request[ConfirmRequest]) (*connect.Response[ConfirmResponse], error) {
	if req.Msg.BatchID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("batch_id is required"))
	}
	result, err := s.Confirm(ctx, req.Msg.BatchID, req.Msg.Confirmations)
	if err != nil {
		return nil, toConnectError(err, connect.CodeInvalidArgument)
	}
	return connect.NewResponse(&ConfirmResponse{Result: result}), nil
}

func (s *ImportService) handleGetBalance(ctx context.Context, req *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error) {
	balance, err := s.Balance(ctx, req.Msg.OwnerID, req.Msg.PropertyID, req.Msg.Period)
	if err != nil {
		return nil, toConnectError(err, connect.CodeInvalidArgument)
	}
	resp := &GetBalanceResponse{Balance: balance, Overdrawn: balance.Overdrawn()}
	if t := req.Msg.PaymentThreshold; t != nil {
		resp.PaymentDue = balance.PaymentDue(*t)
	} else {
		resp.PaymentDue = balance.PaymentDue(decimal.NewFromInt(1))
	}
	return connect.NewResponse(resp), nil
}

func (s *ImportService) handleSplitExisting(ctx context.Context, req *connect.Request[SplitExistingRequest]) (*connect.Response[SplitExistingResponse], error) {
	report, err := s.SplitExistingRentPayments(ctx, req.Msg.DryRun)
	if err != nil {
		return nil, toConnectError(err, connect.CodeInternal)
	}
	return connect.NewResponse(&SplitExistingResponse{Report: report}), nil
}

func (s *ImportService) handleBatchSummary(ctx context.Context, req *connect.Request[BatchSummaryRequest]) (*connect.Response[BatchSummaryResponse], error) {
	counts, err := s.BatchSummary(req.Msg.BatchID)
	if err != nil {
		return nil, toConnectError(err, connect.CodeInvalidArgument)
	}
	return connect.NewResponse(&BatchSummaryResponse{Counts: counts}), nil
}

func (s *ImportService) handleRecentBatches(ctx context.Context, req *connect.Request[RecentBatchesRequest]) (*connect.Response[RecentBatchesResponse], error) {
	batches, err := s.RecentBatches(ctx, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(err, connect.CodeInternal)
	}
	return connect.NewResponse(&RecentBatchesResponse{Batches: batches}), nil
}

func (s *ImportService) handleCreateProperty(ctx context.Context, req *connect.Request[models.Property]) (*connect.Response[models.Property], error) {
	if err := s.CreateProperty(ctx, req.Msg); err != nil {
		return nil, toConnectError(err, connect.CodeInvalidArgument)
	}
	return connect.NewResponse(req.Msg), nil
}

func (s *ImportService) handleCreateCustomer(ctx context.Context, req *connect.Request[models.Customer]) (*connect.Response[models.Customer], error) {
	if err := s.CreateCustomer(ctx, req.Msg); err != nil {
		return nil, toConnectError(err, connect.CodeInvalidArgument)
	}
	return connect.NewResponse(req.Msg), nil
}

func (s *ImportService) handleCreateLease(ctx context.Context, req *connect.Request[models.Lease]) (*connect.Response[models.Lease], error) {
	if err := s.CreateLease(ctx, req.Msg); err != nil {
		return nil, toConnectError(err, connect.CodeInvalidArgument)
	}
	return connect.NewResponse(req.Msg), nil
}

func (s *ImportService) handleCreatePaymentSource(ctx context.Context, req *connect.Request[models.PaymentSource]) (*connect.Response[models.PaymentSource], error) {
	if err := s.CreatePaymentSource(ctx, req.Msg); err != nil {
		return nil, toConnectError(err, connect.CodeInvalidArgument)
	}
	return connect.NewResponse(req.Msg), nil
}

func (s *ImportService) handleAssignOwner(ctx context.Context, req *connect.Request[AssignOwnerRequest]) (*connect.Response[AssignOwnerResponse], error) {
	if err := s.AssignOwner(ctx, req.Msg.PropertyID, req.Msg.CustomerID); err != nil {
		return nil, toConnectError(err, connect.CodeInvalidArgument)
	}
	return connect.NewResponse(&AssignOwnerResponse{}), nil
}
