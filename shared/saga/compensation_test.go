package saga

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompensationStack_Unwind_ReverseOrder(t *testing.T) {
	invoker := NewFuncInvoker()
	var called []string
	undo := func(name string) OperationFunc {
		return func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
			called = append(called, name)
			return map[string]interface{}{}, nil
		}
	}
	invoker.Register("undo_a", undo("undo_a"))
	invoker.Register("undo_b", undo("undo_b"))
	invoker.Register("undo_c", undo("undo_c"))

	stack := NewCompensationStack()
	stack.Record(StepRecord{Name: "a", Compensation: "undo_a"})
	stack.Record(StepRecord{Name: "b", Compensation: "undo_b"})
	stack.Record(StepRecord{Name: "c", Compensation: "undo_c"})
	require.Equal(t, 3, stack.Len())

	outcomes := stack.Unwind(context.Background(), invoker)

	assert.Equal(t, []string{"undo_c", "undo_b", "undo_a"}, called)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "c", outcomes[0].Step)
	assert.Equal(t, "b", outcomes[1].Step)
	assert.Equal(t, "a", outcomes[2].Step)
	assert.Equal(t, 0, stack.Len())
}

func TestCompensationStack_Unwind_FailureDoesNotStopWalk(t *testing.T) {
	invoker := NewFuncInvoker()
	var called []string
	invoker.Register("undo_a", func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		called = append(called, "undo_a")
		return map[string]interface{}{}, nil
	})
	invoker.Register("undo_b", func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		called = append(called, "undo_b")
		return nil, errors.New("refund rejected")
	})

	stack := NewCompensationStack()
	stack.Record(StepRecord{Name: "a", Compensation: "undo_a"})
	stack.Record(StepRecord{Name: "b", Compensation: "undo_b"})

	outcomes := stack.Unwind(context.Background(), invoker)

	assert.Equal(t, []string{"undo_b", "undo_a"}, called)
	require.Len(t, outcomes, 2)
	assert.Equal(t, CompensationFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Error, "refund rejected")
	assert.Equal(t, CompensationSucceeded, outcomes[1].Status)
	assert.True(t, AnyFailed(outcomes))
}

func TestCompensationStack_Unwind_SkipsStepsWithoutCompensator(t *testing.T) {
	invoker := NewFuncInvoker()
	invoker.Register("undo_a", func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{}, nil
	})

	stack := NewCompensationStack()
	stack.Record(StepRecord{Name: "a", Compensation: "undo_a"})
	stack.Record(StepRecord{Name: "notify"}) // non-reversible step

	outcomes := stack.Unwind(context.Background(), invoker)

	require.Len(t, outcomes, 2)
	assert.Equal(t, "notify", outcomes[0].Step)
	assert.Equal(t, CompensationSkipped, outcomes[0].Status)
	assert.Empty(t, outcomes[0].Operation)
	assert.Equal(t, CompensationSucceeded, outcomes[1].Status)
	assert.False(t, AnyFailed(outcomes))
}

func TestCompensationStack_Unwind_SendsMinimalPayload(t *testing.T) {
	invoker := NewFuncInvoker()
	var got map[string]interface{}
	invoker.Register("undo_a", func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		got = payload
		return map[string]interface{}{}, nil
	})

	stack := NewCompensationStack()
	stack.Record(StepRecord{
		Name:         "a",
		Operation:    "do_a",
		Request:      map[string]interface{}{"flight_number": "FL-1", "seats": 2},
		Result:       map[string]interface{}{"reservation_id": "res-1"},
		Compensation: "undo_a",
		CompensationPayload: map[string]interface{}{
			"reservation_id": "res-1",
		},
	})

	stack.Unwind(context.Background(), invoker)

	// The compensator receives identifiers only, never the original request
	assert.Equal(t, map[string]interface{}{"reservation_id": "res-1"}, got)
}

func TestCompensationStack_Unwind_Empty(t *testing.T) {
	stack := NewCompensationStack()
	outcomes := stack.Unwind(context.Background(), NewFuncInvoker())
	assert.Empty(t, outcomes)
}
