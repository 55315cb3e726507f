package main

import (
	"context"
	stdlog "log"

	"github.com/gabapcia/meshgate/internal/config"
	"github.com/gabapcia/meshgate/internal/events"
	"github.com/gabapcia/meshgate/internal/handlers/cli"
	"github.com/gabapcia/meshgate/internal/handlers/rest"
	enginerpc "github.com/gabapcia/meshgate/internal/infra/engine/rpc"
	"github.com/gabapcia/meshgate/internal/infra/storage/memory"
	redisstorage "github.com/gabapcia/meshgate/internal/infra/storage/redis"
	"github.com/gabapcia/meshgate/internal/notifications"
	"github.com/gabapcia/meshgate/internal/pkg/logger"
	"github.com/gabapcia/meshgate/internal/pkg/resilience/retry"
	"github.com/gabapcia/meshgate/internal/pkg/telemetry"
	transporthttp "github.com/gabapcia/meshgate/internal/pkg/transport/http"
	"github.com/gabapcia/meshgate/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/meshgate/internal/pkg/validation"
	"github.com/gabapcia/meshgate/internal/subscriptions"
	"github.com/gabapcia/meshgate/internal/transactions"
)

const serviceName = "meshgate"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("failed to load configuration: %v", err)
	}

	// telemetry first so the logger picks up the OTEL bridge
	if cfg.TelemetryEnabled {
		shutdown, err := telemetry.Init(ctx, serviceName)
		if err != nil {
			stdlog.Fatalf("failed to initialize telemetry: %v", err)
		}
		defer shutdown(ctx)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel)); err != nil {
		stdlog.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	validation.Init()

	// storage backend
	var (
		eventStorage events.EventStorage
		subStorage   subscriptions.SubscriptionStorage
	)
	if cfg.UsesRedis() {
		redisClient, err := redisstorage.NewClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal(ctx, "failed to connect to redis", "error", err)
		}
		defer redisClient.Close()

		eventStorage = redisClient
		subStorage = redisClient
	} else {
		store := memory.NewStore()
		eventStorage = store
		subStorage = store
	}

	// webhook delivery and handshake
	webhookClient := transporthttp.NewClient(
		transporthttp.WithTimeout(cfg.NotificationDeliveryTimeout),
		transporthttp.WithRetryMax(cfg.NotificationMaxRetries),
		transporthttp.WithRetryWaitMin(cfg.NotificationRetryWaitMin),
		transporthttp.WithRetryWaitMax(cfg.NotificationRetryWaitMax),
		transporthttp.WithCheckRetry(transporthttp.RetryOnNonSuccess),
	)
	handshakeRetry := retry.New(
		retry.WithAttempts(cfg.HandshakeMaxAttempts),
		retry.WithDelay(cfg.HandshakeRetryInterval),
		retry.WithFixedDelay(),
	)
	dispatcher := notifications.New(webhookClient, handshakeRetry)

	// domain services
	subsService := subscriptions.New(subStorage, dispatcher, subscriptions.WithTTL(cfg.SubscriptionTTL))
	eventsService := events.New(eventStorage, subsService, dispatcher)
	txService := transactions.New(eventsService, subsService)

	// procedure engine
	rpcConn := jsonrpc.NewClient(transporthttp.NewClient().StandardClient(), cfg.EngineRPCEndpoint)
	eng, err := enginerpc.NewClient(ctx, rpcConn, enginerpc.WithPollInterval(cfg.EnginePollInterval))
	if err != nil {
		logger.Fatal(ctx, "failed to connect to the procedure engine", "error", err)
	}

	server := rest.NewServer(cfg.HTTPAddr, eng, txService, eventsService, subsService)

	if err := cli.Run(ctx, server, dispatcher); err != nil {
		logger.Fatal(ctx, "meshgate exited with an error", "error", err)
	}
}
