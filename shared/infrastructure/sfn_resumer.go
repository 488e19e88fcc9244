package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/pkg/errors"
)

// SFNClient is the subset of the Step Functions API the resumer needs.
type SFNClient interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
}

// SFNResumer resumes a suspended durable execution by delivering the
// decision output against its callback token. The token is the only
// credential; the resume call is at-least-once from the caller's view and
// must stay idempotent on the platform side.
type SFNResumer struct {
	client SFNClient
}

// NewSFNResumer creates a resumer around an existing client.
func NewSFNResumer(client SFNClient) *SFNResumer {
	return &SFNResumer{client: client}
}

// NewSFNResumerFromConfig builds the client from the default AWS config.
func NewSFNResumerFromConfig(ctx context.Context) (*SFNResumer, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return &SFNResumer{client: sfn.NewFromConfig(cfg)}, nil
}

// Resume delivers the output payload to the execution waiting on the token.
func (r *SFNResumer) Resume(ctx context.Context, callbackToken string, output interface{}) error {
	body, err := json.Marshal(output)
	if err != nil {
		return errors.Wrap(err, "failed to marshal resume output")
	}

	_, err = r.client.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(callbackToken),
		Output:    aws.String(string(body)),
	})
	if err != nil {
		return errors.Wrap(err, "failed to resume execution")
	}

	return nil
}
