package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-paid-orderflow/internal/aws"
	"github.com/imrishuroy/go-paid-orderflow/internal/config"
	"github.com/imrishuroy/go-paid-orderflow/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNewLogger(cfg.ServiceName+"-worker", cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}
	p := NewProcessor(clients, cfg.ProductsTable, cfg.OrdersTable, cfg.LowStockNamespace, logger)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if cfg.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_id":"local-order-1","items":[{"product_id":"local-product-1","quantity":1}]}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{MessageId: "local-1", Body: testBody},
			},
		}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local handler error", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}
