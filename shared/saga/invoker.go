package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrInvocationEmpty is returned when a remote operation produces a
	// malformed or empty response.
	ErrInvocationEmpty = errors.New("operation returned an empty response")

	// ErrUnknownOperation is returned when an operation name does not
	// resolve to a reachable function.
	ErrUnknownOperation = errors.New("unknown operation")
)

// StepError is a business-level failure reported by a remote operation:
// the transport succeeded but the operation itself declined the request.
type StepError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("operation %s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Invoker invokes a named remote operation with a structured payload and
// returns the unwrapped structured result. Retry policy does not live here;
// idempotency of the remote operation is enforced by the operation itself
// via a caller-supplied idempotency key.
type Invoker interface {
	Invoke(ctx context.Context, operation string, payload map[string]interface{}) (map[string]interface{}, error)
}

// responseEnvelope is the HTTP-style wrapper some operations respond with.
// Body may be a JSON object or a string containing encoded JSON.
type responseEnvelope struct {
	StatusCode *int            `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

// UnwrapResponse normalizes a raw operation response. Enveloped responses
// with an embedded non-2xx status become a StepError carrying the embedded
// message; bare objects pass through untouched.
func UnwrapResponse(operation string, raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.Wrapf(ErrInvocationEmpty, "operation %s", operation)
	}

	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrapf(ErrInvocationEmpty, "operation %s: %v", operation, err)
	}

	if env.StatusCode == nil {
		// Bare result, no transport envelope.
		var result map[string]interface{}
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, errors.Wrapf(ErrInvocationEmpty, "operation %s: %v", operation, err)
		}
		return result, nil
	}

	body, err := decodeEnvelopeBody(env.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrInvocationEmpty, "operation %s: %v", operation, err)
	}

	if *env.StatusCode < 200 || *env.StatusCode >= 300 {
		message := "operation failed"
		if m, ok := body["message"].(string); ok && m != "" {
			message = m
		}
		return nil, &StepError{
			Operation:  operation,
			StatusCode: *env.StatusCode,
			Message:    message,
		}
	}

	return body, nil
}

// decodeEnvelopeBody handles both object bodies and string-encoded JSON
// bodies (the API-gateway proxy convention).
func decodeEnvelopeBody(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		raw = json.RawMessage(asString)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// OperationFunc is an in-process operation implementation.
type OperationFunc func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)

// FuncInvoker dispatches operations to registered in-process functions.
// Used for local runs and tests in place of the remote invoker.
type FuncInvoker struct {
	mu  sync.RWMutex
	ops map[string]OperationFunc
}

// NewFuncInvoker creates an empty function invoker.
func NewFuncInvoker() *FuncInvoker {
	return &FuncInvoker{ops: make(map[string]OperationFunc)}
}

// Register binds an operation name to a function.
func (i *FuncInvoker) Register(name string, fn OperationFunc) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ops[name] = fn
}

// Invoke implements Invoker.
func (i *FuncInvoker) Invoke(ctx context.Context, operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	i.mu.RLock()
	fn, ok := i.ops[operation]
	i.mu.RUnlock()

	if !ok {
		return nil, errors.Wrap(ErrUnknownOperation, operation)
	}

	result, err := fn(ctx, payload)
	if err != nil {
		return nil, err
	}

	if result == nil {
		return nil, errors.Wrapf(ErrInvocationEmpty, "operation %s", operation)
	}

	return result, nil
}
