package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadAWSConfig loads the default AWS config. AWS_REGION falls back to
// us-east-1 and AWS_ENDPOINT_OVERRIDE points every client at a local
// emulator such as LocalStack or DynamoDB Local.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1" // default fallback
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_OVERRIDE"); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg, nil
}
