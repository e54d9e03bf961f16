package cloudstack

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// stackCapabilities are always granted, matching what templates with IAM
// resources or macros require.
var stackCapabilities = []types.Capability{
	types.CapabilityCapabilityIam,
	types.CapabilityCapabilityNamedIam,
	types.CapabilityCapabilityAutoExpand,
}

// cloudFormationClient is the subset of the CloudFormation client the
// adapter needs.
type cloudFormationClient interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// AWSStackAPI implements StackAPI against AWS CloudFormation.
type AWSStackAPI struct {
	client cloudFormationClient
}

// NewAWSStackAPI builds the adapter from the ambient AWS configuration
// (environment, shared config, instance role).
func NewAWSStackAPI(ctx context.Context) (*AWSStackAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return &AWSStackAPI{client: cloudformation.NewFromConfig(cfg)}, nil
}

// Describe implements StackAPI.
func (a *AWSStackAPI) Describe(ctx context.Context, stackName string) (*StackInfo, error) {
	out, err := a.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		// CloudFormation reports a missing stack as a ValidationError
		// with this message, not as a typed not-found error.
		if strings.Contains(err.Error(), "does not exist") {
			return nil, ErrStackNotFound
		}
		return nil, fmt.Errorf("describing stack %s: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, ErrStackNotFound
	}

	stack := out.Stacks[0]
	outputs := make(map[string]string, len(stack.Outputs))
	for _, o := range stack.Outputs {
		if o.OutputKey != nil && o.OutputValue != nil {
			outputs[*o.OutputKey] = *o.OutputValue
		}
	}
	return &StackInfo{
		Status:  string(stack.StackStatus),
		Outputs: outputs,
	}, nil
}

// Create implements StackAPI.
func (a *AWSStackAPI) Create(ctx context.Context, stackName string, template Template) error {
	input := &cloudformation.CreateStackInput{
		StackName:    aws.String(stackName),
		Capabilities: stackCapabilities,
	}
	if template.Body != "" {
		input.TemplateBody = aws.String(template.Body)
	} else {
		input.TemplateURL = aws.String(template.URL)
	}

	if _, err := a.client.CreateStack(ctx, input); err != nil {
		return fmt.Errorf("creating stack %s: %w", stackName, err)
	}
	return nil
}

// Update implements StackAPI.
func (a *AWSStackAPI) Update(ctx context.Context, stackName string, template Template) error {
	input := &cloudformation.UpdateStackInput{
		StackName:    aws.String(stackName),
		Capabilities: stackCapabilities,
	}
	if template.Body != "" {
		input.TemplateBody = aws.String(template.Body)
	} else {
		input.TemplateURL = aws.String(template.URL)
	}

	if _, err := a.client.UpdateStack(ctx, input); err != nil {
		// "No updates are to be performed." is a ValidationError, not a
		// typed error; it means the stack is already converged.
		if strings.Contains(err.Error(), "No updates are to be performed") {
			return ErrNoUpdate
		}
		return fmt.Errorf("updating stack %s: %w", stackName, err)
	}
	return nil
}
