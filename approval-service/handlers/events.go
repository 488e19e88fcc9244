package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tripline/booking-system/approval-service/application"
	"github.com/tripline/booking-system/shared/events"
)

// ApprovalEventHandlers handles approval-related events arriving on the queue
type ApprovalEventHandlers struct {
	requestApproval *application.RequestApproval
}

// NewApprovalEventHandlers creates new approval event handlers
func NewApprovalEventHandlers(requestApproval *application.RequestApproval) *ApprovalEventHandlers {
	return &ApprovalEventHandlers{
		requestApproval: requestApproval,
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *ApprovalEventHandlers) HandlerID() string {
	return "approval-service-event-handler"
}

// Handle implements the events.EventHandler interface
func (h *ApprovalEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.ApprovalRequestedEvent:
		return h.HandleApprovalRequested(ctx, event)
	default:
		// Unknown event type, ignore
		return nil
	}
}

// HandleApprovalRequested registers an approval for a workflow that suspended
// elsewhere and announced itself with its callback token.
func (h *ApprovalEventHandlers) HandleApprovalRequested(ctx context.Context, event *events.Event) error {
	var data ApprovalRequestedIntakeData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse approval requested data")
	}

	// Our own notification events carry no token; only external intake does
	if data.CallbackToken == "" {
		return nil
	}

	cmd := &application.RequestApprovalCommand{
		CallbackToken:  data.CallbackToken,
		SubjectRef:     data.SubjectRef,
		RequestedBy:    data.RequestedBy,
		TimeoutSeconds: data.TimeoutSeconds,
	}

	if _, err := h.requestApproval.Execute(ctx, cmd); err != nil {
		fmt.Printf("Failed to register approval for subject %s: %v\n", data.SubjectRef, err)
		return err // Leave the message on the queue for redelivery
	}

	return nil
}

// parseEventData parses event data into the specified struct
func (h *ApprovalEventHandlers) parseEventData(event *events.Event, target interface{}) error {
	jsonData, err := json.Marshal(event.Data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event data")
	}

	if err := json.Unmarshal(jsonData, target); err != nil {
		return errors.Wrap(err, "failed to unmarshal event data")
	}

	return nil
}

// ApprovalRequestedIntakeData is the payload suspended workflows publish
type ApprovalRequestedIntakeData struct {
	CallbackToken  string `json:"callback_token"`
	SubjectRef     string `json:"subject_ref"`
	RequestedBy    string `json:"requested_by"`
	TimeoutSeconds int64  `json:"timeout_seconds,omitempty"`
}
