package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tripline/booking-system/approval-service/domain"
	"github.com/tripline/booking-system/shared/models"
)

// GetApprovalQuery represents the query to get an approval request
type GetApprovalQuery struct {
	ApprovalID string `json:"approval_id"`
}

// ApprovalView is the read model returned to callers. The callback token is
// deliberately absent: it must never leave the service.
type ApprovalView struct {
	ApprovalID  string     `json:"approval_id"`
	SubjectRef  string     `json:"subject_ref"`
	RequestedBy string     `json:"requested_by"`
	Status      string     `json:"status"`
	Decision    string     `json:"decision,omitempty"`
	Comments    string     `json:"comments,omitempty"`
	DecidedBy   string     `json:"decided_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// GetApproval use case
type GetApproval struct {
	approvalRepository domain.ApprovalRepository
}

// NewGetApproval creates a new GetApproval use case
func NewGetApproval(approvalRepository domain.ApprovalRepository) *GetApproval {
	return &GetApproval{approvalRepository: approvalRepository}
}

// Execute fetches one approval request
func (uc *GetApproval) Execute(ctx context.Context, query *GetApprovalQuery) (*ApprovalView, error) {
	if query.ApprovalID == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "approval ID is required")
	}

	approval, err := uc.approvalRepository.FindByID(ctx, models.ID(query.ApprovalID))
	if err != nil {
		return nil, err
	}

	return toView(approval), nil
}

func toView(approval *domain.ApprovalRequest) *ApprovalView {
	return &ApprovalView{
		ApprovalID:  approval.ID.String(),
		SubjectRef:  approval.SubjectRef,
		RequestedBy: approval.RequestedBy,
		Status:      string(approval.Status),
		Decision:    string(approval.Decision),
		Comments:    approval.Comments,
		DecidedBy:   approval.DecidedBy,
		DecidedAt:   approval.DecidedAt,
		ExpiresAt:   approval.ExpiresAt,
		CreatedAt:   approval.Timestamps.CreatedAt,
		UpdatedAt:   approval.Timestamps.UpdatedAt,
	}
}
