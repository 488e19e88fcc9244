package saga

import (
	"context"
	"time"
)

// CompensationStatus classifies the outcome of one compensation attempt.
type CompensationStatus string

const (
	CompensationSucceeded CompensationStatus = "compensated"
	CompensationFailed    CompensationStatus = "compensation_failed"
	CompensationSkipped   CompensationStatus = "skipped_no_compensator"
)

// StepRecord is one completed forward action. Records are appended in order,
// never mutated, and consumed when compensation for the step completes or
// discarded on overall success.
type StepRecord struct {
	Name                string
	Operation           string
	Request             map[string]interface{}
	Result              map[string]interface{}
	Compensation        string
	CompensationPayload map[string]interface{}
	CompletedAt         time.Time
}

// CompensationOutcome reports what happened to one recorded step during
// unwind. Outcomes appear in the order compensation was attempted, which is
// the reverse of completion order.
type CompensationOutcome struct {
	Step      string             `json:"step"`
	Operation string             `json:"operation,omitempty"`
	Status    CompensationStatus `json:"status"`
	Error     string             `json:"error,omitempty"`
}

// CompensationStack is the per-execution ledger of completed steps and
// their paired undo operations.
type CompensationStack struct {
	records []StepRecord
}

// NewCompensationStack creates an empty ledger.
func NewCompensationStack() *CompensationStack {
	return &CompensationStack{records: make([]StepRecord, 0)}
}

// Record appends a completed step.
func (s *CompensationStack) Record(rec StepRecord) {
	s.records = append(s.records, rec)
}

// Len returns the number of recorded steps awaiting compensation.
func (s *CompensationStack) Len() int {
	return len(s.records)
}

// Unwind pops records in strict reverse order and invokes each one's paired
// compensating operation with its minimal identifier payload — never the
// original full request. Attempts are independent: a failure compensating
// one step does not stop the walk, and no failed compensation is retried;
// all outcomes are collected for the final failure report.
func (s *CompensationStack) Unwind(ctx context.Context, invoker Invoker) []CompensationOutcome {
	outcomes := make([]CompensationOutcome, 0, len(s.records))

	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]

		if rec.Compensation == "" {
			outcomes = append(outcomes, CompensationOutcome{
				Step:   rec.Name,
				Status: CompensationSkipped,
			})
			continue
		}

		outcome := CompensationOutcome{
			Step:      rec.Name,
			Operation: rec.Compensation,
			Status:    CompensationSucceeded,
		}

		if _, err := invoker.Invoke(ctx, rec.Compensation, rec.CompensationPayload); err != nil {
			outcome.Status = CompensationFailed
			outcome.Error = err.Error()
		}

		outcomes = append(outcomes, outcome)
	}

	s.records = nil
	return outcomes
}

// AnyFailed reports whether some compensation attempt failed.
func AnyFailed(outcomes []CompensationOutcome) bool {
	for _, o := range outcomes {
		if o.Status == CompensationFailed {
			return true
		}
	}
	return false
}
