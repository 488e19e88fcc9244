package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tripline/booking-system/approval-service/domain"
	"github.com/tripline/booking-system/shared/events"
)

// RequestApprovalCommand represents the command to register a suspended
// workflow awaiting a human decision
type RequestApprovalCommand struct {
	CallbackToken  string `json:"callback_token"`
	SubjectRef     string `json:"subject_ref"`
	RequestedBy    string `json:"requested_by"`
	TimeoutSeconds int64  `json:"timeout_seconds,omitempty"`
}

// RequestApprovalResponse represents the response after registering
type RequestApprovalResponse struct {
	ApprovalID string    `json:"approval_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// RequestApproval use case
type RequestApproval struct {
	approvalRepository domain.ApprovalRepository
	eventPublisher     events.Publisher
	defaultTimeout     time.Duration
}

// NewRequestApproval creates a new RequestApproval use case
func NewRequestApproval(
	approvalRepository domain.ApprovalRepository,
	eventPublisher events.Publisher,
	defaultTimeout time.Duration,
) *RequestApproval {
	return &RequestApproval{
		approvalRepository: approvalRepository,
		eventPublisher:     eventPublisher,
		defaultTimeout:     defaultTimeout,
	}
}

// Execute registers the approval request with status pending
func (uc *RequestApproval) Execute(ctx context.Context, cmd *RequestApprovalCommand) (*RequestApprovalResponse, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrapf(ErrInvalidRequest, "%v", err)
	}

	timeout := uc.defaultTimeout
	if cmd.TimeoutSeconds > 0 {
		timeout = time.Duration(cmd.TimeoutSeconds) * time.Second
	}

	approval, err := domain.CreateApprovalRequest(cmd.CallbackToken, cmd.SubjectRef, cmd.RequestedBy, timeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create approval request")
	}

	if err := uc.approvalRepository.Create(ctx, approval); err != nil {
		return nil, errors.Wrap(err, "failed to save approval request")
	}

	if err := uc.eventPublisher.Publish(ctx, approval.Events()...); err != nil {
		return nil, errors.Wrap(err, "failed to publish events")
	}

	return &RequestApprovalResponse{
		ApprovalID: approval.ID.String(),
		ExpiresAt:  approval.ExpiresAt,
	}, nil
}

func (uc *RequestApproval) validateCommand(cmd *RequestApprovalCommand) error {
	if cmd.CallbackToken == "" {
		return errors.New("callback token is required")
	}

	if cmd.SubjectRef == "" {
		return errors.New("subject reference is required")
	}

	return nil
}
