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

func TestSweepTimeouts_Execute(t *testing.T) {
	t.Run("expired approvals transition to timeout", func(t *testing.T) {
		first := pendingApproval(t, time.Hour)
		second := pendingApproval(t, 2*time.Hour)
		after := second.ExpiresAt.Add(time.Minute)

		repo := mocks.NewMockApprovalRepository(t)
		publisher := mocks.NewMockPublisher(t)

		repo.On("FindExpiredPending", mock.Anything, sweepBatchSize).
			Return([]*domain.ApprovalRequest{first, second}, nil).Once()
		repo.On("Transition", mock.Anything, first).Return(nil).Once()
		repo.On("Transition", mock.Anything, second).Return(nil).Once()
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Twice()

		uc := NewSweepTimeouts(repo, publisher)
		uc.now = func() time.Time { return after }

		resp, err := uc.Execute(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 2, resp.TimedOut)
		assert.Equal(t, 0, resp.Failed)
		assert.Equal(t, domain.ApprovalStatusTimeout, first.Status)
		assert.Equal(t, domain.ApprovalStatusTimeout, second.Status)
	})

	t.Run("one failed transition does not stop the sweep", func(t *testing.T) {
		first := pendingApproval(t, time.Hour)
		second := pendingApproval(t, time.Hour)
		after := second.ExpiresAt.Add(time.Minute)

		repo := mocks.NewMockApprovalRepository(t)
		publisher := mocks.NewMockPublisher(t)

		repo.On("FindExpiredPending", mock.Anything, sweepBatchSize).
			Return([]*domain.ApprovalRequest{first, second}, nil).Once()
		repo.On("Transition", mock.Anything, first).
			Return(errors.New("conditional write lost")).Once()
		repo.On("Transition", mock.Anything, second).Return(nil).Once()
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

		uc := NewSweepTimeouts(repo, publisher)
		uc.now = func() time.Time { return after }

		resp, err := uc.Execute(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, resp.TimedOut)
		assert.Equal(t, 1, resp.Failed)
	})

	t.Run("record decided concurrently is skipped", func(t *testing.T) {
		decided := pendingApproval(t, time.Hour)
		after := decided.ExpiresAt.Add(time.Minute)
		assert.NoError(t, decided.Decide(domain.DecisionApproved, "", "someone", time.Now()))

		repo := mocks.NewMockApprovalRepository(t)
		publisher := mocks.NewMockPublisher(t)

		repo.On("FindExpiredPending", mock.Anything, sweepBatchSize).
			Return([]*domain.ApprovalRequest{decided}, nil).Once()

		uc := NewSweepTimeouts(repo, publisher)
		uc.now = func() time.Time { return after }

		resp, err := uc.Execute(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 0, resp.TimedOut)
		repo.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything)
	})
}
