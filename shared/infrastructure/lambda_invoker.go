package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/pkg/errors"
	"github.com/tripline/booking-system/shared/saga"
)

// LambdaClient is the subset of the Lambda API the invoker needs.
type LambdaClient interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

var _ saga.Invoker = (*LambdaInvoker)(nil)

// LambdaInvoker implements the step invoker contract over AWS Lambda.
// Operation names resolve to function names; responses are unwrapped from
// the {statusCode, body} proxy envelope when present. No retries happen at
// this layer — retry policy belongs to the orchestrator's callers.
type LambdaInvoker struct {
	client LambdaClient
}

// NewLambdaInvoker creates an invoker around an existing client.
func NewLambdaInvoker(client LambdaClient) *LambdaInvoker {
	return &LambdaInvoker{client: client}
}

// NewLambdaInvokerFromConfig builds the client from the default AWS config
// (works with LocalStack when AWS_ENDPOINT_URL is set).
func NewLambdaInvokerFromConfig(ctx context.Context) (*LambdaInvoker, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return &LambdaInvoker{client: lambda.NewFromConfig(cfg)}, nil
}

// Invoke implements saga.Invoker.
func (i *LambdaInvoker) Invoke(ctx context.Context, operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal payload for operation %s", operation)
	}

	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: &operation,
		Payload:      body,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to invoke operation %s", operation)
	}

	if out.FunctionError != nil {
		return nil, errors.Errorf("operation %s raised %s: %s", operation, *out.FunctionError, string(out.Payload))
	}

	return saga.UnwrapResponse(operation, out.Payload)
}
