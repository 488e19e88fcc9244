package application

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tripline/booking-system/approval-service/domain"
	"github.com/tripline/booking-system/approval-service/mocks"
)

func pendingApproval(t *testing.T, ttl time.Duration) *domain.ApprovalRequest {
	t.Helper()
	approval, err := domain.CreateApprovalRequest("task-token-abc", "booking-123", "traveler@example.com", ttl)
	assert.NoError(t, err)
	approval.ClearEvents()
	return approval
}

func TestSubmitDecision_Execute(t *testing.T) {
	t.Run("approve shortly after creation", func(t *testing.T) {
		approval := pendingApproval(t, time.Hour)
		createdAt := approval.Timestamps.CreatedAt
		decidedAt := createdAt.Add(10 * time.Second)

		repo := mocks.NewMockApprovalRepository(t)
		resumer := mocks.NewMockWorkflowResumer(t)
		publisher := mocks.NewMockPublisher(t)

		repo.On("FindByID", mock.Anything, approval.ID).Return(approval, nil).Once()
		resumer.On("Resume", mock.Anything, "task-token-abc", mock.Anything).Return(nil).Once()
		repo.On("Transition", mock.Anything, approval).Return(nil).Once()
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

		uc := NewSubmitDecision(repo, resumer, publisher)
		uc.now = func() time.Time { return decidedAt }

		resp, err := uc.Execute(context.Background(), &SubmitDecisionCommand{
			ApprovalID: approval.ID.String(),
			Decision:   "approved",
			Comments:   "within budget",
			DecidedBy:  "manager@example.com",
		})

		assert.NoError(t, err)
		assert.Equal(t, approval.ID.String(), resp.ApprovalID)
		assert.Equal(t, "approved", resp.Decision)
		assert.Equal(t, domain.ApprovalStatusApproved, approval.Status)
		assert.Equal(t, decidedAt, *approval.DecidedAt)
	})

	t.Run("expired approval conflicts without resuming", func(t *testing.T) {
		approval := pendingApproval(t, time.Hour)

		repo := mocks.NewMockApprovalRepository(t)
		resumer := mocks.NewMockWorkflowResumer(t)
		publisher := mocks.NewMockPublisher(t)

		repo.On("FindByID", mock.Anything, approval.ID).Return(approval, nil).Once()

		uc := NewSubmitDecision(repo, resumer, publisher)
		uc.now = func() time.Time { return approval.ExpiresAt.Add(time.Second) }

		resp, err := uc.Execute(context.Background(), &SubmitDecisionCommand{
			ApprovalID: approval.ID.String(),
			Decision:   "approved",
		})

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, domain.ErrApprovalExpired)
		assert.Equal(t, domain.ApprovalStatusPending, approval.Status)
		resumer.AssertNotCalled(t, "Resume", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("second decision conflicts as already decided", func(t *testing.T) {
		approval := pendingApproval(t, time.Hour)
		assert.NoError(t, approval.Decide(domain.DecisionApproved, "", "first", time.Now()))

		repo := mocks.NewMockApprovalRepository(t)
		resumer := mocks.NewMockWorkflowResumer(t)
		publisher := mocks.NewMockPublisher(t)

		repo.On("FindByID", mock.Anything, approval.ID).Return(approval, nil).Once()

		uc := NewSubmitDecision(repo, resumer, publisher)

		resp, err := uc.Execute(context.Background(), &SubmitDecisionCommand{
			ApprovalID: approval.ID.String(),
			Decision:   "rejected",
		})

		assert.Nil(t, resp)
		var alreadyDecided *domain.AlreadyDecidedError
		assert.ErrorAs(t, err, &alreadyDecided)
		assert.Equal(t, domain.ApprovalStatusApproved, alreadyDecided.Status)
		resumer.AssertNotCalled(t, "Resume", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("resume failure leaves approval pending", func(t *testing.T) {
		approval := pendingApproval(t, time.Hour)

		repo := mocks.NewMockApprovalRepository(t)
		resumer := mocks.NewMockWorkflowResumer(t)
		publisher := mocks.NewMockPublisher(t)

		repo.On("FindByID", mock.Anything, approval.ID).Return(approval, nil).Once()
		resumer.On("Resume", mock.Anything, "task-token-abc", mock.Anything).
			Return(errors.New("task token no longer valid")).Once()

		uc := NewSubmitDecision(repo, resumer, publisher)

		resp, err := uc.Execute(context.Background(), &SubmitDecisionCommand{
			ApprovalID: approval.ID.String(),
			Decision:   "approved",
		})

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrCallbackInvocation)
		// Status untouched so a retried submission can still succeed
		assert.Equal(t, domain.ApprovalStatusPending, approval.Status)
		repo.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything)
	})

	t.Run("persist failure after successful resume still succeeds", func(t *testing.T) {
		approval := pendingApproval(t, time.Hour)

		repo := mocks.NewMockApprovalRepository(t)
		resumer := mocks.NewMockWorkflowResumer(t)
		publisher := mocks.NewMockPublisher(t)

		repo.On("FindByID", mock.Anything, approval.ID).Return(approval, nil).Once()
		resumer.On("Resume", mock.Anything, "task-token-abc", mock.Anything).Return(nil).Once()
		repo.On("Transition", mock.Anything, approval).
			Return(errors.New("store unavailable")).Once()

		uc := NewSubmitDecision(repo, resumer, publisher)

		resp, err := uc.Execute(context.Background(), &SubmitDecisionCommand{
			ApprovalID: approval.ID.String(),
			Decision:   "rejected",
		})

		assert.NoError(t, err)
		assert.Equal(t, "rejected", resp.Decision)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("unknown approval id", func(t *testing.T) {
		repo := mocks.NewMockApprovalRepository(t)
		resumer := mocks.NewMockWorkflowResumer(t)
		publisher := mocks.NewMockPublisher(t)

		repo.On("FindByID", mock.Anything, mock.Anything).
			Return(nil, domain.ErrNotFound).Once()

		uc := NewSubmitDecision(repo, resumer, publisher)

		resp, err := uc.Execute(context.Background(), &SubmitDecisionCommand{
			ApprovalID: "missing-id",
			Decision:   "approved",
		})

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name string
			cmd  *SubmitDecisionCommand
		}{
			{
				name: "missing approval id",
				cmd:  &SubmitDecisionCommand{Decision: "approved"},
			},
			{
				name: "unknown decision value",
				cmd:  &SubmitDecisionCommand{ApprovalID: "some-id", Decision: "maybe"},
			},
			{
				name: "missing decision",
				cmd:  &SubmitDecisionCommand{ApprovalID: "some-id"},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := mocks.NewMockApprovalRepository(t)
				resumer := mocks.NewMockWorkflowResumer(t)
				publisher := mocks.NewMockPublisher(t)

				uc := NewSubmitDecision(repo, resumer, publisher)

				resp, err := uc.Execute(context.Background(), tt.cmd)

				assert.Nil(t, resp)
				assert.ErrorIs(t, err, ErrInvalidRequest)
				repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
			})
		}
	})
}
