package saga

import (
	"context"
	"fmt"
	"log"

	"github.com/tripline/booking-system/shared/events"
	"github.com/tripline/booking-system/shared/models"
)

// Journal persists execution snapshots for observability and audit.
// The orchestrator treats journal failures as non-fatal: the saga outcome
// does not depend on the snapshot being written.
type Journal interface {
	Record(ctx context.Context, exec *Execution) error
}

// SagaError is the structured outcome of a failed saga: the original step
// failure plus the full compensation report.
type SagaError struct {
	ExecutionID   models.ID
	Saga          string
	Step          string
	Status        ExecutionStatus
	Original      error
	Compensations []CompensationOutcome
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("saga %s (execution %s) failed at step %q: %v", e.Saga, e.ExecutionID, e.Step, e.Original)
}

func (e *SagaError) Unwrap() error {
	return e.Original
}

// Result is the outcome of a successful saga run.
type Result struct {
	ExecutionID models.ID
	Status      ExecutionStatus
	StepResults map[string]map[string]interface{}
}

// Orchestrator sequences saga steps, records completions into a
// compensation stack, and drives compensation on any step failure.
// It is stateless between executions; all per-run state lives in the
// Execution it creates.
type Orchestrator struct {
	invoker   Invoker
	publisher events.Publisher
	journal   Journal
}

// OrchestratorOption configures optional collaborators.
type OrchestratorOption func(*Orchestrator)

// WithPublisher attaches an event publisher for saga lifecycle events.
func WithPublisher(p events.Publisher) OrchestratorOption {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithJournal attaches an execution journal.
func WithJournal(j Journal) OrchestratorOption {
	return func(o *Orchestrator) { o.journal = j }
}

// NewOrchestrator creates an orchestrator around a step invoker.
func NewOrchestrator(invoker Invoker, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{invoker: invoker}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs the definition's steps in order. Each successful step is
// recorded before the next one starts. On any failure forward progress
// stops immediately, recorded steps are unwound in reverse, and a SagaError
// with the original failure and every compensation outcome is returned.
// Terminal executions are never resumed; a retry uses a new execution ID.
func (o *Orchestrator) Execute(ctx context.Context, def Definition, input map[string]interface{}) (*Result, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	exec := NewExecution(KindSaga, def.Name, input)
	o.record(ctx, exec)
	o.publish(ctx, events.NewEvent(exec.ID, events.SagaStartedEvent, sagaStartedData{
		ExecutionID: exec.ID,
		Saga:        def.Name,
		Steps:       len(def.Steps),
	}))

	stack := NewCompensationStack()

	for i, step := range def.Steps {
		exec.CurrentStep = i
		exec.Timestamps = exec.Timestamps.Update()

		payload, err := step.Payload(exec)
		if err != nil {
			return nil, o.fail(ctx, exec, def, step, stack, err)
		}

		result, err := o.invoker.Invoke(ctx, step.Operation, payload)
		if err != nil {
			return nil, o.fail(ctx, exec, def, step, stack, err)
		}

		exec.Results[step.Name] = result

		var compPayload map[string]interface{}
		if step.CompensationPayload != nil {
			compPayload = step.CompensationPayload(exec)
		}

		stack.Record(StepRecord{
			Name:                step.Name,
			Operation:           step.Operation,
			Request:             payload,
			Result:              result,
			Compensation:        step.Compensation,
			CompensationPayload: compPayload,
			CompletedAt:         exec.Timestamps.UpdatedAt,
		})
	}

	// Overall success: the stack is discarded, never unwound.
	exec.Status = ExecutionSucceeded
	exec.Timestamps = exec.Timestamps.Update()
	o.record(ctx, exec)
	o.publish(ctx, events.NewEvent(exec.ID, events.SagaCompletedEvent, sagaCompletedData{
		ExecutionID: exec.ID,
		Saga:        def.Name,
	}))

	return &Result{
		ExecutionID: exec.ID,
		Status:      ExecutionSucceeded,
		StepResults: exec.Results,
	}, nil
}

// fail stops forward progress, unwinds the stack and builds the failure
// report. Compensation is best effort; failed compensations are surfaced
// for operator action, not retried.
func (o *Orchestrator) fail(ctx context.Context, exec *Execution, def Definition, step StepDefinition, stack *CompensationStack, cause error) error {
	exec.Status = ExecutionCompensating
	exec.Timestamps = exec.Timestamps.Update()
	o.record(ctx, exec)

	outcomes := stack.Unwind(ctx, o.invoker)

	exec.Status = ExecutionFailed
	if AnyFailed(outcomes) {
		exec.Status = ExecutionCompensationFailed
	}
	exec.Timestamps = exec.Timestamps.Update()
	o.record(ctx, exec)

	o.publish(ctx,
		events.NewEvent(exec.ID, events.SagaFailedEvent, sagaFailedData{
			ExecutionID: exec.ID,
			Saga:        def.Name,
			Step:        step.Name,
			Reason:      cause.Error(),
		}),
		events.NewEvent(exec.ID, events.SagaCompensatedEvent, sagaCompensatedData{
			ExecutionID: exec.ID,
			Saga:        def.Name,
			Outcomes:    outcomes,
		}),
	)

	return &SagaError{
		ExecutionID:   exec.ID,
		Saga:          def.Name,
		Step:          step.Name,
		Status:        exec.Status,
		Original:      cause,
		Compensations: outcomes,
	}
}

func (o *Orchestrator) record(ctx context.Context, exec *Execution) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(ctx, exec); err != nil {
		log.Printf("Failed to journal execution %s: %v", exec.ID, err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, evts ...*events.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, evts...); err != nil {
		log.Printf("Failed to publish saga events: %v", err)
	}
}

// Saga lifecycle event payloads.
type sagaStartedData struct {
	ExecutionID models.ID `json:"execution_id"`
	Saga        string    `json:"saga"`
	Steps       int       `json:"steps"`
}

type sagaCompletedData struct {
	ExecutionID models.ID `json:"execution_id"`
	Saga        string    `json:"saga"`
}

type sagaFailedData struct {
	ExecutionID models.ID `json:"execution_id"`
	Saga        string    `json:"saga"`
	Step        string    `json:"step"`
	Reason      string    `json:"reason"`
}

type sagaCompensatedData struct {
	ExecutionID models.ID             `json:"execution_id"`
	Saga        string                `json:"saga"`
	Outcomes    []CompensationOutcome `json:"outcomes"`
}
