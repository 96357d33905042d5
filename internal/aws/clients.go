package aws

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients bundles the service clients the api and worker share.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

// NewAWSClients loads AWS config and returns concrete service clients that implement our interfaces.
func NewAWSClients(ctx context.Context) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return ClientsFromConfig(cfg), nil
}

// ClientsFromConfig builds the clients from an already loaded config.
func ClientsFromConfig(cfg sdkaws.Config) *AWSClients {
	return &AWSClients{
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		SQS:        sqs.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}
}
