package application

import (
	"context"

	"github.com/tripline/booking-system/approval-service/domain"
)

const defaultPendingLimit = 50

// ListPendingQuery represents the query for approvals awaiting a decision
type ListPendingQuery struct {
	Limit int `json:"limit,omitempty"`
}

// ListPendingResponse holds the pending approvals, newest first
type ListPendingResponse struct {
	Approvals []*ApprovalView `json:"approvals"`
	Count     int             `json:"count"`
}

// ListPending use case
type ListPending struct {
	approvalRepository domain.ApprovalRepository
}

// NewListPending creates a new ListPending use case
func NewListPending(approvalRepository domain.ApprovalRepository) *ListPending {
	return &ListPending{approvalRepository: approvalRepository}
}

// Execute lists pending approvals. Expiry is evaluated lazily by the
// repository at read time, so expired records never appear here even before
// a timeout sweep has run.
func (uc *ListPending) Execute(ctx context.Context, query *ListPendingQuery) (*ListPendingResponse, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultPendingLimit
	}

	approvals, err := uc.approvalRepository.FindPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	views := make([]*ApprovalView, 0, len(approvals))
	for _, approval := range approvals {
		views = append(views, toView(approval))
	}

	return &ListPendingResponse{
		Approvals: views,
		Count:     len(views),
	}, nil
}
