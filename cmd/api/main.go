package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-paid-orderflow/internal/aws"
	"github.com/imrishuroy/go-paid-orderflow/internal/checkout"
	"github.com/imrishuroy/go-paid-orderflow/internal/config"
	"github.com/imrishuroy/go-paid-orderflow/internal/handlers"
	"github.com/imrishuroy/go-paid-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-paid-orderflow/internal/logging"
	"github.com/imrishuroy/go-paid-orderflow/internal/metrics"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
	"github.com/imrishuroy/go-paid-orderflow/internal/payment"
	"github.com/imrishuroy/go-paid-orderflow/internal/products"
	"github.com/imrishuroy/go-paid-orderflow/internal/validation"
)

func setupRouter(cfg config.Config, clients *aws.AWSClients, logger *zap.Logger) *gin.Engine {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("paid_orderflow", reg)

	orderStore := orders.NewStore(clients.DynamoDB, cfg.OrdersTable)
	tracer := otel.Tracer(cfg.ServiceName)

	wf := checkout.New(checkout.Deps{
		Verifier:  payment.NewVerifier(payment.StaticSecret(cfg.PaymentSecret)),
		Products:  products.NewStore(clients.DynamoDB, cfg.ProductsTable),
		Orders:    orderStore,
		Claims:    idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		DB:        clients.DynamoDB,
		Publisher: newPublisher(cfg, clients, logger),
		Metrics:   m,
		Tracer:    tracer,
		TxTimeout: cfg.TxTimeout,
	})

	return handlers.NewRouter(handlers.RouterConfig{
		Handlers: handlers.HandlerConfig{
			Workflow:  wf,
			Orders:    orderStore,
			Validator: validation.New(),
		},
		Logger:  logger,
		Tracer:  tracer,
		Metrics: m,
	})
}

// newPublisher returns nil when no queue is configured; the workflow then
// skips the order.paid event.
func newPublisher(cfg config.Config, clients *aws.AWSClients, logger *zap.Logger) checkout.EventPublisher {
	if cfg.QueueURL == "" {
		logger.Warn("ORDERS_QUEUE_URL not set; order.paid events disabled")
		return nil
	}
	return aws.NewPublisher(clients.SQS, cfg.QueueURL)
}

func main() {
	cfg := config.Load()
	logger := logging.MustNewLogger(cfg.ServiceName, cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	if !cfg.RunLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	r := setupRouter(cfg, clients, logger)

	// if RUN_LOCAL is true, run local HTTP server for development.
	if cfg.RunLocal {
		runLocal(cfg.HTTPAddr, r, logger)
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		// ProxyWithContext keeps the authorizer context reachable from handlers
		return adapter.ProxyWithContext(ctx, req)
	})
}

func runLocal(addr string, h http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("running local server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
