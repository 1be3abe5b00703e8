package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/akylbek/payment-system/order-reconciler/internal/api"
	"github.com/akylbek/payment-system/order-reconciler/internal/config"
	"github.com/akylbek/payment-system/order-reconciler/internal/events"
	"github.com/akylbek/payment-system/order-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/order-reconciler/internal/idempotency"
	"github.com/akylbek/payment-system/order-reconciler/internal/metrics"
	"github.com/akylbek/payment-system/order-reconciler/internal/repository"
	"github.com/akylbek/payment-system/order-reconciler/internal/service"
	"github.com/akylbek/payment-system/order-reconciler/internal/telemetry"
)

const (
	serviceName    = "order-reconciler"
	serviceVersion = "1.0.0"
)

func main() {
	cfg := config.Load()

	err := telemetry.Init(telemetry.Options{
		ServiceName:  serviceName,
		Version:      serviceVersion,
		OTLPEndpoint: cfg.JaegerEndpoint,
		LogLevel:     cfg.LogLevel,
		SampleRatio:  cfg.TraceSampleRatio,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		telemetry.Logger.Fatal("Order Reconciler stopped", zap.Error(err))
	}
	telemetry.Logger.Info("Server exited")
}

// run wires every dependency and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	db, err := openPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewReconciliationRepository(db)
	if err := repo.InitDB(); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	defer redisClient.Close()

	nc, err := nats.Connect(cfg.NatsURL,
		nats.Name(serviceName),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	// Keyed by merchant reference so one order's events stay ordered.
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    events.TopicReconciled,
		Balancer: &kafka.Hash{},
	}
	defer kafkaWriter.Close()

	store, err := idempotency.New(cfg.IdempotencyDBPath)
	if err != nil {
		return fmt.Errorf("open idempotency store: %w", err)
	}
	defer store.Close()

	gw := gateway.NewNATSClient(nc, cfg.GatewaySubjectPrefix, cfg.GatewayTimeout)
	orchestrator := service.NewOrchestrator(
		gw,
		gw,
		repo,
		repository.NewRedisOrderLock(redisClient, cfg.LockTTL),
		events.NewKafkaPublisher(kafkaWriter),
		service.NewRetryOrchestrator(gw, gw,
			service.WithMaxRetries(cfg.RetryMax),
			service.WithBackoff(cfg.RetryBackoff),
		),
	)
	go orchestrator.ConsumeReconcileRequests(ctx, cfg.KafkaBrokers)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(orchestrator, repo, store),
	}
	grpcServer, healthServer := newHealthServer()

	errCh := make(chan error, 2)
	go func() {
		telemetry.Logger.Info("Order Reconciler starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			errCh <- fmt.Errorf("listen for gRPC: %w", err)
			return
		}
		telemetry.Logger.Info("gRPC health server starting", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	telemetry.Logger.Info("Shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	return nil
}

func openPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func newHealthServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	return grpcServer, healthServer
}
