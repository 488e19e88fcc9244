package application

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/tripline/booking-system/approval-service/domain"
	"github.com/tripline/booking-system/shared/events"
	"github.com/tripline/booking-system/shared/models"
	"github.com/tripline/booking-system/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Sentinel errors distinguishing the failure classes of decision submission
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrCallbackInvocation = errors.New("failed to resume workflow")
)

// SubmitDecisionCommand represents an approver's decision
type SubmitDecisionCommand struct {
	ApprovalID string `json:"approval_id"`
	Decision   string `json:"decision"`
	Comments   string `json:"comments,omitempty"`
	DecidedBy  string `json:"decided_by,omitempty"`
}

// SubmitDecisionResponse is returned to the decision submitter
type SubmitDecisionResponse struct {
	Message    string `json:"message"`
	ApprovalID string `json:"approval_id"`
	Decision   string `json:"decision"`
}

// decisionOutput is the payload handed to the resumed execution
type decisionOutput struct {
	ApprovalID string `json:"approval_id"`
	Decision   string `json:"decision"`
	Comments   string `json:"comments,omitempty"`
	DecidedBy  string `json:"decided_by,omitempty"`
}

// SubmitDecision use case. The single entry point decision-makers call to
// resume a suspended workflow.
type SubmitDecision struct {
	approvalRepository domain.ApprovalRepository
	resumer            domain.WorkflowResumer
	eventPublisher     events.Publisher
	now                func() time.Time
}

// NewSubmitDecision creates a new SubmitDecision use case
func NewSubmitDecision(
	approvalRepository domain.ApprovalRepository,
	resumer domain.WorkflowResumer,
	eventPublisher events.Publisher,
) *SubmitDecision {
	return &SubmitDecision{
		approvalRepository: approvalRepository,
		resumer:            resumer,
		eventPublisher:     eventPublisher,
		now:                time.Now,
	}
}

// Execute validates the decision, resumes the suspended execution, then
// persists the terminal status. Each stage short-circuits on failure.
func (uc *SubmitDecision) Execute(ctx context.Context, cmd *SubmitDecisionCommand) (*SubmitDecisionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "SubmitDecision.Execute")
	defer span.End()

	decision, err := uc.validateCommand(cmd)
	if err != nil {
		return nil, err
	}

	approvalID := models.ID(cmd.ApprovalID)
	approval, err := uc.approvalRepository.FindByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	if err := uc.validateState(approval, now); err != nil {
		uc.recordOutcome(ctx, "conflict")
		return nil, err
	}

	// Resume the suspended execution before touching the record. If resume
	// fails the status stays pending so a retried submission can succeed.
	output := decisionOutput{
		ApprovalID: cmd.ApprovalID,
		Decision:   string(decision),
		Comments:   cmd.Comments,
		DecidedBy:  cmd.DecidedBy,
	}
	if err := uc.resumer.Resume(ctx, approval.CallbackToken, output); err != nil {
		uc.recordOutcome(ctx, "resume_failed")
		return nil, errors.Wrapf(ErrCallbackInvocation, "%v", err)
	}

	if err := approval.Decide(decision, cmd.Comments, cmd.DecidedBy, now); err != nil {
		// The execution has already resumed; report success and leave the
		// record for out-of-band reconciliation.
		log.Printf("approval %s: resume succeeded but state transition failed: %v", cmd.ApprovalID, err)
		return uc.successResponse(cmd.ApprovalID, decision), nil
	}

	if err := uc.approvalRepository.Transition(ctx, approval); err != nil {
		log.Printf("approval %s: resume succeeded but persisting %s failed: %v", cmd.ApprovalID, approval.Status, err)
		return uc.successResponse(cmd.ApprovalID, decision), nil
	}

	if err := uc.eventPublisher.Publish(ctx, approval.Events()...); err != nil {
		log.Printf("approval %s: failed to publish decision events: %v", cmd.ApprovalID, err)
	}

	uc.recordOutcome(ctx, string(decision))
	return uc.successResponse(cmd.ApprovalID, decision), nil
}

func (uc *SubmitDecision) validateCommand(cmd *SubmitDecisionCommand) (domain.Decision, error) {
	if cmd.ApprovalID == "" {
		return "", errors.Wrap(ErrInvalidRequest, "approval ID is required")
	}

	decision, err := domain.ParseDecision(cmd.Decision)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidRequest, "%v", err)
	}

	return decision, nil
}

func (uc *SubmitDecision) validateState(approval *domain.ApprovalRequest, now time.Time) error {
	if approval.Status != domain.ApprovalStatusPending {
		return &domain.AlreadyDecidedError{ApprovalID: approval.ID, Status: approval.Status}
	}

	if approval.IsExpired(now) {
		return domain.ErrApprovalExpired
	}

	return nil
}

func (uc *SubmitDecision) successResponse(approvalID string, decision domain.Decision) *SubmitDecisionResponse {
	return &SubmitDecisionResponse{
		Message:    "decision recorded",
		ApprovalID: approvalID,
		Decision:   string(decision),
	}
}

func (uc *SubmitDecision) recordOutcome(ctx context.Context, outcome string) {
	telemetry.RecordCounter(ctx, "approval_decisions_total", "Approval decision submissions", 1,
		attribute.String("outcome", outcome),
	)
}
