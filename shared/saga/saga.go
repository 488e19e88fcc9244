package saga

import (
	"github.com/pkg/errors"
	"github.com/tripline/booking-system/shared/models"
)

// WorkflowKind distinguishes straight-through sagas from workflows that
// suspend awaiting an external decision.
type WorkflowKind string

const (
	KindSaga     WorkflowKind = "saga"
	KindApproval WorkflowKind = "approval"
)

// ExecutionStatus represents the lifecycle state of one workflow execution.
type ExecutionStatus string

const (
	ExecutionRunning            ExecutionStatus = "running"
	ExecutionSuspended          ExecutionStatus = "suspended"
	ExecutionCompensating       ExecutionStatus = "compensating"
	ExecutionSucceeded          ExecutionStatus = "succeeded"
	ExecutionFailed             ExecutionStatus = "failed"
	ExecutionCompensationFailed ExecutionStatus = "compensation_failed"
)

// IsTerminal reports whether an execution can never progress again.
// A failed saga is retried under a fresh execution ID, never resumed.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionSucceeded, ExecutionFailed, ExecutionCompensationFailed:
		return true
	}
	return false
}

// Execution is one run of a workflow. It is owned by the orchestrator for
// its lifetime; persisted snapshots belong to the execution journal.
type Execution struct {
	ID          models.ID
	Kind        WorkflowKind
	Name        string
	Status      ExecutionStatus
	CurrentStep int
	Input       map[string]interface{}
	Results     map[string]map[string]interface{}
	Timestamps  models.Timestamps
}

// NewExecution creates a running execution with a fresh ID.
func NewExecution(kind WorkflowKind, name string, input map[string]interface{}) *Execution {
	return &Execution{
		ID:          models.GenerateUUID(),
		Kind:        kind,
		Name:        name,
		Status:      ExecutionRunning,
		CurrentStep: 0,
		Input:       input,
		Results:     make(map[string]map[string]interface{}),
		Timestamps:  models.NewTimestamps(),
	}
}

// Result returns the recorded result of a previously completed step.
func (e *Execution) Result(step string) map[string]interface{} {
	return e.Results[step]
}

// PayloadBuilder builds a step's request payload. It may reference the
// execution input and the results of prior steps.
type PayloadBuilder func(exec *Execution) (map[string]interface{}, error)

// CompensationPayloadBuilder builds the minimal payload (identifiers only)
// handed to a step's compensating operation.
type CompensationPayloadBuilder func(exec *Execution) map[string]interface{}

// StepDefinition describes one forward step of a saga. The step sequence is
// configuration handed to the orchestrator, not code inside it, so the same
// machinery serves different sagas.
type StepDefinition struct {
	Name                string
	Operation           string
	Compensation        string // compensating operation name, empty for non-reversible steps
	Payload             PayloadBuilder
	CompensationPayload CompensationPayloadBuilder
}

// Definition is an ordered step sequence with a saga name.
type Definition struct {
	Name  string
	Steps []StepDefinition
}

// Validate checks the definition is runnable.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("saga name is required")
	}
	if len(d.Steps) == 0 {
		return errors.New("saga requires at least one step")
	}
	for i, step := range d.Steps {
		if step.Name == "" {
			return errors.Errorf("step %d: name is required", i)
		}
		if step.Operation == "" {
			return errors.Errorf("step %q: operation is required", step.Name)
		}
		if step.Payload == nil {
			return errors.Errorf("step %q: payload builder is required", step.Name)
		}
	}
	return nil
}
