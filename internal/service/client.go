package service

import (
	"context"

	"connectrpc.com/connect"
)

// ImportServiceClient calls the import RPCs over Connect.
type ImportServiceClient struct {
	validate      *connect.Client[ValidateRequest, ValidateResponse]
	review        *connect.Client[ReviewRequest, ReviewResponse]
	confirm       *connect.Client[ConfirmRequest, ConfirmResponse]
	getBalance    *connect.Client[GetBalanceRequest, GetBalanceResponse]
	splitExisting *connect.Client[SplitExistingRequest, SplitExistingResponse]
	batchSummary  *connect.Client[BatchSummaryRequest, BatchSummaryResponse]
	recentBatches *connect.Client[RecentBatchesRequest, RecentBatchesResponse]
}

// NewImportServiceClient creates a client for the service at baseURL.
func NewImportServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ImportServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &ImportServiceClient{
		validate:      connect.NewClient[ValidateRequest, ValidateResponse](httpClient, baseURL+ValidateProcedure, opts...),
		review:        connect.NewClient[ReviewRequest, ReviewResponse](httpClient, baseURL+ReviewProcedure, opts...),
		confirm:       connect.NewClient[ConfirmRequest, ConfirmResponse](httpClient, baseURL+ConfirmProcedure, opts...),
		getBalance:    connect.NewClient[GetBalanceRequest, GetBalanceResponse](httpClient, baseURL+GetBalanceProcedure, opts...),
		splitExisting: connect.NewClient[SplitExistingRequest, SplitExistingResponse](httpClient, baseURL+SplitExistingProcedure, opts...),
		batchSummary:  connect.NewClient[BatchSummaryRequest, BatchSummaryResponse](httpClient, baseURL+BatchSummaryProcedure, opts...),
		recentBatches: connect.NewClient[RecentBatchesRequest, RecentBatchesResponse](httpClient, baseURL+RecentBatchesProcedure, opts...),
	}
}

func (c *ImportServiceClient) Validate(ctx context.Context, req *connect.Request[ValidateRequest]) (*connect.Response[ValidateResponse], error) {
	return c.validate.CallUnary(ctx, req)
}

func (c *ImportServiceClient) Review(ctx context.Context, req *connect.Request[ReviewRequest]) (*connect.Response[ReviewResponse], error) {
	return c.review.CallUnary(ctx, req)
}

func (c *ImportServiceClient) Confirm(ctx context.Context, req *connect.Request[ConfirmRequest]) (*connect.Response[ConfirmResponse], error) {
	return c.confirm.CallUnary(ctx, req)
}

func (c *ImportServiceClient) GetBalance(ctx context.Context, req *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error) {
	return c.getBalance.CallUnary(ctx, req)
}

func (c *ImportServiceClient) SplitExisting(ctx context.Context, req *connect.Request[SplitExistingRequest]) (*connect.Response[SplitExistingResponse], error) {
	return c.splitExisting.CallUnary(ctx, req)
}

func (c *ImportServiceClient) BatchSummary(ctx context.Context, req *connect.Request[BatchSummaryRequest]) (*connect.Response[BatchSummaryResponse], error) {
	return c.batchSummary.CallUnary(ctx, req)
}

func (c *ImportServiceClient) RecentBatches(ctx context.Context, req *connect.Request[RecentBatchesRequest]) (*connect.Response[RecentBatchesResponse], error) {
	return c.recentBatches.CallUnary(ctx, req)
}
