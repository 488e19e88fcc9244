package infrastructure

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/tripline/booking-system/approval-service/domain"
)

func TestApprovalMapper_RoundTrip(t *testing.T) {
	repo := &PostgresApprovalRepository{}

	t.Run("pending request", func(t *testing.T) {
		approval, err := domain.CreateApprovalRequest("token-xyz", "booking-42", "traveler@example.com", time.Hour)
		assert.NoError(t, err)

		restored, err := repo.toDomain(repo.toPostgres(approval))
		assert.NoError(t, err)

		assert.Equal(t, approval.ID, restored.ID)
		assert.Equal(t, approval.CallbackToken, restored.CallbackToken)
		assert.Equal(t, approval.SubjectRef, restored.SubjectRef)
		assert.Equal(t, approval.RequestedBy, restored.RequestedBy)
		assert.Equal(t, approval.Status, restored.Status)
		assert.Equal(t, approval.Decision, restored.Decision)
		assert.Equal(t, approval.Comments, restored.Comments)
		assert.Equal(t, approval.DecidedBy, restored.DecidedBy)
		assert.Equal(t, approval.DecidedAt, restored.DecidedAt)
		assert.Equal(t, approval.ExpiresAt, restored.ExpiresAt)
		assert.Equal(t, approval.TTLEpoch, restored.TTLEpoch)
		assert.Equal(t, approval.Timestamps.CreatedAt, restored.Timestamps.CreatedAt)
		assert.Equal(t, approval.Timestamps.UpdatedAt, restored.Timestamps.UpdatedAt)
	})

	t.Run("decided request keeps decision fields", func(t *testing.T) {
		approval, err := domain.CreateApprovalRequest("token-xyz", "booking-42", "traveler@example.com", time.Hour)
		assert.NoError(t, err)
		now := time.Now()
		assert.NoError(t, approval.Decide(domain.DecisionRejected, "over budget", "manager@example.com", now))

		restored, err := repo.toDomain(repo.toPostgres(approval))
		assert.NoError(t, err)

		assert.Equal(t, domain.ApprovalStatusRejected, restored.Status)
		assert.Equal(t, domain.DecisionRejected, restored.Decision)
		assert.Equal(t, "over budget", restored.Comments)
		assert.Equal(t, "manager@example.com", restored.DecidedBy)
		assert.Equal(t, now, *restored.DecidedAt)
	})
}

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		isThrottle bool
	}{
		{
			name:       "insufficient resources class",
			err:        &pq.Error{Code: "53200"},
			isThrottle: true,
		},
		{
			name:       "too many connections",
			err:        &pq.Error{Code: "53300"},
			isThrottle: true,
		},
		{
			name:       "cannot connect now",
			err:        &pq.Error{Code: "57P03"},
			isThrottle: true,
		},
		{
			name:       "unique violation",
			err:        &pq.Error{Code: "23505"},
			isThrottle: false,
		},
		{
			name:       "plain error",
			err:        assert.AnError,
			isThrottle: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyStoreError(tt.err, "op failed")
			assert.Equal(t, tt.isThrottle, IsThrottle(classified))
		})
	}
}
