package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tripline/booking-system/shared/events"
)

func TestCreateApprovalRequest(t *testing.T) {
	tests := []struct {
		name          string
		callbackToken string
		subjectRef    string
		requestedBy   string
		ttl           time.Duration
		expectedError bool
	}{
		{
			name:          "successful creation",
			callbackToken: "token-123",
			subjectRef:    "booking-456",
			requestedBy:   "traveler@example.com",
			ttl:           time.Hour,
			expectedError: false,
		},
		{
			name:          "missing callback token",
			callbackToken: "",
			subjectRef:    "booking-456",
			ttl:           time.Hour,
			expectedError: true,
		},
		{
			name:          "missing subject reference",
			callbackToken: "token-123",
			subjectRef:    "",
			ttl:           time.Hour,
			expectedError: true,
		},
		{
			name:          "non-positive ttl",
			callbackToken: "token-123",
			subjectRef:    "booking-456",
			ttl:           0,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approval, err := CreateApprovalRequest(tt.callbackToken, tt.subjectRef, tt.requestedBy, tt.ttl)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, approval)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, ApprovalStatusPending, approval.Status)
			assert.Empty(t, approval.Decision)
			assert.Nil(t, approval.DecidedAt)
			assert.False(t, approval.ID.IsEmpty())
			assert.True(t, approval.ExpiresAt.After(time.Now()))
			assert.Greater(t, approval.TTLEpoch, approval.ExpiresAt.Unix())

			evts := approval.Events()
			assert.Len(t, evts, 1)
			assert.Equal(t, events.ApprovalRequestedEvent, evts[0].EventType)
		})
	}
}

func TestApprovalRequest_IsExpired_Monotonic(t *testing.T) {
	approval, err := CreateApprovalRequest("token", "subject", "requester", time.Hour)
	assert.NoError(t, err)

	boundary := approval.ExpiresAt

	assert.False(t, approval.IsExpired(boundary.Add(-time.Second)))

	// Once expired at some reading, every later reading stays expired
	firstExpired := boundary.Add(time.Second)
	assert.True(t, approval.IsExpired(firstExpired))
	for _, later := range []time.Time{
		firstExpired.Add(time.Minute),
		firstExpired.Add(24 * time.Hour),
		firstExpired.Add(365 * 24 * time.Hour),
	} {
		assert.True(t, approval.IsExpired(later))
	}
}

func TestApprovalRequest_Decide(t *testing.T) {
	t.Run("approve pending request", func(t *testing.T) {
		approval, _ := CreateApprovalRequest("token", "subject", "requester", time.Hour)
		approval.ClearEvents()
		now := time.Now()

		err := approval.Decide(DecisionApproved, "looks good", "manager@example.com", now)

		assert.NoError(t, err)
		assert.Equal(t, ApprovalStatusApproved, approval.Status)
		assert.Equal(t, DecisionApproved, approval.Decision)
		assert.Equal(t, "looks good", approval.Comments)
		assert.Equal(t, "manager@example.com", approval.DecidedBy)
		assert.Equal(t, now, *approval.DecidedAt)

		evts := approval.Events()
		assert.Len(t, evts, 1)
		assert.Equal(t, events.ApprovalDecidedEvent, evts[0].EventType)
	})

	t.Run("reject pending request", func(t *testing.T) {
		approval, _ := CreateApprovalRequest("token", "subject", "requester", time.Hour)
		now := time.Now()

		err := approval.Decide(DecisionRejected, "", "manager@example.com", now)

		assert.NoError(t, err)
		assert.Equal(t, ApprovalStatusRejected, approval.Status)
	})

	t.Run("second decision conflicts", func(t *testing.T) {
		approval, _ := CreateApprovalRequest("token", "subject", "requester", time.Hour)
		now := time.Now()

		assert.NoError(t, approval.Decide(DecisionApproved, "", "a", now))

		err := approval.Decide(DecisionRejected, "", "b", now.Add(time.Second))

		var alreadyDecided *AlreadyDecidedError
		assert.ErrorAs(t, err, &alreadyDecided)
		assert.Equal(t, ApprovalStatusApproved, alreadyDecided.Status)
		// Transition out of pending is one-way
		assert.Equal(t, ApprovalStatusApproved, approval.Status)
		assert.Equal(t, "a", approval.DecidedBy)
	})

	t.Run("expired request cannot be decided", func(t *testing.T) {
		approval, _ := CreateApprovalRequest("token", "subject", "requester", time.Hour)

		err := approval.Decide(DecisionApproved, "", "a", approval.ExpiresAt.Add(time.Second))

		assert.ErrorIs(t, err, ErrApprovalExpired)
		assert.Equal(t, ApprovalStatusPending, approval.Status)
	})
}

func TestApprovalRequest_MarkTimedOut(t *testing.T) {
	t.Run("expired pending request times out", func(t *testing.T) {
		approval, _ := CreateApprovalRequest("token", "subject", "requester", time.Hour)
		approval.ClearEvents()

		err := approval.MarkTimedOut(approval.ExpiresAt.Add(time.Minute))

		assert.NoError(t, err)
		assert.Equal(t, ApprovalStatusTimeout, approval.Status)
		assert.Len(t, approval.Events(), 1)
		assert.Equal(t, events.ApprovalTimeoutEvent, approval.Events()[0].EventType)
	})

	t.Run("unexpired request is left pending", func(t *testing.T) {
		approval, _ := CreateApprovalRequest("token", "subject", "requester", time.Hour)

		err := approval.MarkTimedOut(time.Now())

		assert.Error(t, err)
		assert.Equal(t, ApprovalStatusPending, approval.Status)
	})

	t.Run("decided request cannot time out", func(t *testing.T) {
		approval, _ := CreateApprovalRequest("token", "subject", "requester", time.Hour)
		assert.NoError(t, approval.Decide(DecisionApproved, "", "a", time.Now()))

		err := approval.MarkTimedOut(approval.ExpiresAt.Add(time.Minute))

		var alreadyDecided *AlreadyDecidedError
		assert.ErrorAs(t, err, &alreadyDecided)
		assert.Equal(t, ApprovalStatusApproved, approval.Status)
	})
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		raw           string
		expected      Decision
		expectedError bool
	}{
		{raw: "approved", expected: DecisionApproved},
		{raw: "rejected", expected: DecisionRejected},
		{raw: "APPROVED", expectedError: true},
		{raw: "maybe", expectedError: true},
		{raw: "", expectedError: true},
	}

	for _, tt := range tests {
		t.Run("decision "+tt.raw, func(t *testing.T) {
			decision, err := ParseDecision(tt.raw)
			if tt.expectedError {
				assert.ErrorIs(t, err, ErrInvalidDecision)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, decision)
		})
	}
}
