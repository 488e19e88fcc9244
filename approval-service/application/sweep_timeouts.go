package application

import (
	"context"
	"log"
	"time"

	"github.com/tripline/booking-system/approval-service/domain"
	"github.com/tripline/booking-system/shared/events"
)

const sweepBatchSize = 100

// SweepTimeoutsResponse reports the result of one sweep pass
type SweepTimeoutsResponse struct {
	TimedOut  int      `json:"timed_out"`
	Failed    int      `json:"failed"`
	Approvals []string `json:"approvals,omitempty"`
}

// SweepTimeouts transitions expired pending approvals to timeout. The store
// TTL eventually removes records regardless; this pass is the proactive,
// caller-scheduled handling of requests nobody decided in time.
type SweepTimeouts struct {
	approvalRepository domain.ApprovalRepository
	eventPublisher     events.Publisher
	now                func() time.Time
}

// NewSweepTimeouts creates a new SweepTimeouts use case
func NewSweepTimeouts(
	approvalRepository domain.ApprovalRepository,
	eventPublisher events.Publisher,
) *SweepTimeouts {
	return &SweepTimeouts{
		approvalRepository: approvalRepository,
		eventPublisher:     eventPublisher,
		now:                time.Now,
	}
}

// Execute runs one sweep pass. Each record is handled independently; a
// failure transitioning one does not stop the rest.
func (uc *SweepTimeouts) Execute(ctx context.Context) (*SweepTimeoutsResponse, error) {
	expired, err := uc.approvalRepository.FindExpiredPending(ctx, sweepBatchSize)
	if err != nil {
		return nil, err
	}

	response := &SweepTimeoutsResponse{}
	now := uc.now()

	for _, approval := range expired {
		if err := approval.MarkTimedOut(now); err != nil {
			// A concurrent decision or sweep got there first
			continue
		}

		if err := uc.approvalRepository.Transition(ctx, approval); err != nil {
			log.Printf("approval %s: failed to persist timeout: %v", approval.ID, err)
			response.Failed++
			continue
		}

		if err := uc.eventPublisher.Publish(ctx, approval.Events()...); err != nil {
			log.Printf("approval %s: failed to publish timeout event: %v", approval.ID, err)
		}

		response.TimedOut++
		response.Approvals = append(response.Approvals, approval.ID.String())
	}

	return response, nil
}
