package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/tripline/booking-system/shared/events"
	"github.com/tripline/booking-system/shared/models"
)

// ApprovalStatus represents the status of an approval request
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusExpired  ApprovalStatus = "expired"
	ApprovalStatusTimeout  ApprovalStatus = "timeout"
)

// IsTerminal reports whether the status can never change again.
// Every transition out of pending is one-way.
func (s ApprovalStatus) IsTerminal() bool {
	return s != ApprovalStatusPending
}

// Decision is the value an approver submits
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseDecision validates a submitted decision value
func ParseDecision(raw string) (Decision, error) {
	switch Decision(raw) {
	case DecisionApproved, DecisionRejected:
		return Decision(raw), nil
	}
	return "", ErrInvalidDecision
}

// Status returns the terminal approval status a decision maps to
func (d Decision) Status() ApprovalStatus {
	if d == DecisionApproved {
		return ApprovalStatusApproved
	}
	return ApprovalStatusRejected
}

// Sentinel errors for the approval registry
var (
	ErrNotFound         = errors.New("approval request not found")
	ErrApprovalExpired  = errors.New("approval request has expired")
	ErrInvalidDecision  = errors.New("decision must be approved or rejected")
	ErrStoreUnavailable = errors.New("approval store unavailable")
)

// AlreadyDecidedError reports a transition attempt against a record that has
// already left pending. It carries the prior status so callers can produce a
// precise conflict message.
type AlreadyDecidedError struct {
	ApprovalID models.ID
	Status     ApprovalStatus
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("approval %s already %s", e.ApprovalID, e.Status)
}

// gcRetention is how long terminal records stay in the store before the TTL
// mechanism removes them.
const gcRetention = 7 * 24 * time.Hour

// ApprovalRequest aggregate root. A durable record of a suspended workflow
// awaiting a human decision.
type ApprovalRequest struct {
	ID            models.ID
	CallbackToken string
	SubjectRef    string
	RequestedBy   string
	Status        ApprovalStatus
	Decision      Decision
	Comments      string
	DecidedBy     string
	DecidedAt     *time.Time
	ExpiresAt     time.Time
	TTLEpoch      int64
	Timestamps    models.Timestamps

	events []*events.Event
}

// CreateApprovalRequest factory method
func CreateApprovalRequest(callbackToken, subjectRef, requestedBy string, ttl time.Duration) (*ApprovalRequest, error) {
	if callbackToken == "" {
		return nil, errors.New("callback token is required")
	}
	if subjectRef == "" {
		return nil, errors.New("subject reference is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}

	now := time.Now()
	approval := &ApprovalRequest{
		ID:            models.GenerateUUID(),
		CallbackToken: callbackToken,
		SubjectRef:    subjectRef,
		RequestedBy:   requestedBy,
		Status:        ApprovalStatusPending,
		ExpiresAt:     now.Add(ttl),
		TTLEpoch:      now.Add(gcRetention).Unix(),
		Timestamps:    models.NewTimestamps(),
	}

	event := events.NewEvent(approval.ID, events.ApprovalRequestedEvent, ApprovalRequestedData{
		ApprovalID:  approval.ID,
		SubjectRef:  approval.SubjectRef,
		RequestedBy: approval.RequestedBy,
		ExpiresAt:   approval.ExpiresAt,
	})

	approval.recordEvent(event)
	return approval, nil
}

// IsExpired reports whether the request's decision window has passed.
// Monotonic for a fixed record: once true at some instant it stays true.
func (a *ApprovalRequest) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// Decide applies a decision, moving the request to its terminal status.
// The caller validates the pending precondition and expiry before the resume
// call; Decide re-checks them so the aggregate can never transition twice.
func (a *ApprovalRequest) Decide(decision Decision, comments, decidedBy string, now time.Time) error {
	if a.Status != ApprovalStatusPending {
		return &AlreadyDecidedError{ApprovalID: a.ID, Status: a.Status}
	}
	if a.IsExpired(now) {
		return ErrApprovalExpired
	}

	a.Status = decision.Status()
	a.Decision = decision
	a.Comments = comments
	a.DecidedBy = decidedBy
	a.DecidedAt = &now
	a.Timestamps = a.Timestamps.Update()

	event := events.NewEvent(a.ID, events.ApprovalDecidedEvent, ApprovalDecidedData{
		ApprovalID: a.ID,
		SubjectRef: a.SubjectRef,
		Decision:   a.Decision,
		DecidedBy:  a.DecidedBy,
		DecidedAt:  now,
	})

	a.recordEvent(event)
	return nil
}

// MarkTimedOut transitions an expired pending request to timeout
func (a *ApprovalRequest) MarkTimedOut(now time.Time) error {
	if a.Status != ApprovalStatusPending {
		return &AlreadyDecidedError{ApprovalID: a.ID, Status: a.Status}
	}
	if !a.IsExpired(now) {
		return errors.New("approval request has not expired yet")
	}

	a.Status = ApprovalStatusTimeout
	a.Timestamps = a.Timestamps.Update()

	event := events.NewEvent(a.ID, events.ApprovalTimeoutEvent, ApprovalTimeoutData{
		ApprovalID: a.ID,
		SubjectRef: a.SubjectRef,
		ExpiredAt:  a.ExpiresAt,
	})

	a.recordEvent(event)
	return nil
}

// Events returns domain events
func (a *ApprovalRequest) Events() []*events.Event {
	return a.events
}

// ClearEvents clears domain events
func (a *ApprovalRequest) ClearEvents() {
	a.events = make([]*events.Event, 0)
}

func (a *ApprovalRequest) recordEvent(event *events.Event) {
	a.events = append(a.events, event)
}

// Event Data Structures
type ApprovalRequestedData struct {
	ApprovalID  models.ID `json:"approval_id"`
	SubjectRef  string    `json:"subject_ref"`
	RequestedBy string    `json:"requested_by"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ApprovalDecidedData struct {
	ApprovalID models.ID `json:"approval_id"`
	SubjectRef string    `json:"subject_ref"`
	Decision   Decision  `json:"decision"`
	DecidedBy  string    `json:"decided_by"`
	DecidedAt  time.Time `json:"decided_at"`
}

type ApprovalTimeoutData struct {
	ApprovalID models.ID `json:"approval_id"`
	SubjectRef string    `json:"subject_ref"`
	ExpiredAt  time.Time `json:"expired_at"`
}

// ApprovalRepository interface. Transition must be an atomic conditional
// write keyed on status=pending so of two concurrent decisions at most one
// succeeds; the loser gets the conflict error derived from the decided row.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *ApprovalRequest) error
	FindByID(ctx context.Context, id models.ID) (*ApprovalRequest, error)
	Transition(ctx context.Context, approval *ApprovalRequest) error
	FindPending(ctx context.Context, limit int) ([]*ApprovalRequest, error)
	FindExpiredPending(ctx context.Context, limit int) ([]*ApprovalRequest, error)
}

// WorkflowResumer resumes the suspended durable execution identified by a
// callback token.
type WorkflowResumer interface {
	Resume(ctx context.Context, callbackToken string, output interface{}) error
}
