// Command server runs the Pix lifecycle engine: the Kafka command consumer,
// the expiration sweepers and the ops HTTP surface. All wiring is explicit
// so swapping a store or gateway is a one-line change here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pixcore/internal/dict"
	"pixcore/internal/events"
	"pixcore/internal/infraction"
	infractionmodels "pixcore/internal/infraction/models"
	infractionstore "pixcore/internal/infraction/store"
	"pixcore/internal/lifecycle"
	"pixcore/internal/lifecycle/dispatcher"
	"pixcore/internal/lifecycle/sweeper"
	"pixcore/internal/ops"
	"pixcore/internal/pixkey"
	pixkeymodels "pixcore/internal/pixkey/models"
	pixkeystore "pixcore/internal/pixkey/store"
	"pixcore/internal/platform/config"
	"pixcore/internal/platform/httpserver"
	"pixcore/internal/platform/kafka"
	"pixcore/internal/platform/logger"
	"pixcore/internal/platform/metrics"
	platformredis "pixcore/internal/platform/redis"
	"pixcore/internal/refund"
	refundmodels "pixcore/internal/refund/models"
	refundstore "pixcore/internal/refund/store"
	"pixcore/pkg/platform/keylock"
	"pixcore/pkg/platform/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	// Stores: Postgres when a DSN is configured, in-memory otherwise.
	var (
		db             *sql.DB
		keyRepo        lifecycle.Repository[*pixkeymodels.Key]
		infractionRepo lifecycle.Repository[*infractionmodels.Infraction]
		refundRepo     refund.Store
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := applySchemas(ctx, db); err != nil {
			return fmt.Errorf("apply schemas: %w", err)
		}
		keyRepo = pixkeystore.NewPostgres(db)
		infractionRepo = infractionstore.NewPostgres(db)
		refundRepo = refundstore.NewPostgres(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		keyRepo = pixkeystore.NewMemory()
		infractionRepo = infractionstore.NewMemory()
		refundRepo = refundstore.NewMemory()
	}

	// Per-entity serialization: a Redis lease when configured (required for
	// multi-instance deployments), an in-process mutex otherwise.
	var locker keylock.Locker = keylock.NewMutex()
	redisClient, err := platformredis.New(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = keylock.NewRedisLease(redisClient.Client, "pixcore")
	} else {
		log.Warn("no redis URL configured, using in-process locks (single instance only)")
	}

	// Kafka: command intake, event emission, dead-letter routing.
	allTopics := append([]string{}, cfg.Kafka.CommandTopics...)
	allTopics = append(allTopics, cfg.Kafka.EventTopic, cfg.Kafka.DeadLetterTopic)
	if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, 3, allTopics...); err != nil {
		return fmt.Errorf("ensure topics: %w", err)
	}
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, kafka.WithProducerLogger(log))
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	defer producer.Close()
	emitter := events.NewKafkaEmitter(producer, cfg.Kafka.EventTopic)

	// One registry client backs all three gateway ports.
	registry := dict.NewClient(cfg.RegistryBaseURL, dict.WithAPIKey(cfg.RegistryAPIKey))

	keyEngine := lifecycle.New(
		pixkey.NewDescriptor(registry, pixkey.Windows{
			Ownership:   cfg.Sweep.OwnershipWindow,
			Portability: cfg.Sweep.PortabilityWindow,
			Inbound:     cfg.Sweep.InboundWindow,
		}),
		keyRepo, locker,
		lifecycle.WithLogger[*pixkeymodels.Key](log),
		lifecycle.WithEmitter[*pixkeymodels.Key](emitter),
		lifecycle.WithMetrics[*pixkeymodels.Key](m),
		lifecycle.WithGatewayTimeout[*pixkeymodels.Key](cfg.GatewayTimeout),
	)
	infractionEngine := lifecycle.New(
		infraction.NewDescriptor(registry),
		infractionRepo, locker,
		lifecycle.WithLogger[*infractionmodels.Infraction](log),
		lifecycle.WithEmitter[*infractionmodels.Infraction](emitter),
		lifecycle.WithMetrics[*infractionmodels.Infraction](m),
		lifecycle.WithGatewayTimeout[*infractionmodels.Infraction](cfg.GatewayTimeout),
	)
	refundEngine := lifecycle.New(
		refund.NewDescriptor(registry, refundRepo),
		refundRepo, locker,
		lifecycle.WithLogger[*refundmodels.Refund](log),
		lifecycle.WithEmitter[*refundmodels.Refund](emitter),
		lifecycle.WithMetrics[*refundmodels.Refund](m),
		lifecycle.WithGatewayTimeout[*refundmodels.Refund](cfg.GatewayTimeout),
	)

	keyService := pixkey.NewService(keyEngine)
	infractionService := infraction.NewService(infractionEngine)
	refundService := refund.NewService(refundEngine)

	disp := dispatcher.New(
		dispatcher.NewKafkaDeadLetter(producer, cfg.Kafka.DeadLetterTopic),
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(m),
	)
	disp.Register(pixkey.Kind, keyService)
	disp.Register(infraction.Kind, infractionService)
	disp.Register(refund.Kind, refundService)

	consumer, err := kafka.NewConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.Group, cfg.Kafka.CommandTopics, disp,
		kafka.WithConsumerLogger(log),
	)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	keySweeper := sweeper.New(pixkey.Kind, keyService, sweeper.ListerFor(keyRepo),
		[]sweeper.Rule{
			{States: []lifecycle.State{pixkeymodels.StatePending}, Cutoff: cfg.Sweep.PendingKeyTTL},
			{States: []lifecycle.State{pixkeymodels.StateOwnershipPending}, Cutoff: cfg.Sweep.OwnershipWindow},
			{States: []lifecycle.State{pixkeymodels.StatePortabilityPending}, Cutoff: cfg.Sweep.PortabilityWindow},
			{States: []lifecycle.State{pixkeymodels.StateClaimPending}, Cutoff: cfg.Sweep.InboundWindow},
		},
		sweeper.WithLogger(log),
		sweeper.WithMetrics(m),
		sweeper.WithConcurrency(cfg.Sweep.Concurrency),
	)
	refundSweeper := sweeper.New(refund.Kind, refundService, sweeper.ListerFor[*refundmodels.Refund](refundRepo),
		[]sweeper.Rule{
			{States: []lifecycle.State{refundmodels.StateOpenPending}, Cutoff: cfg.Sweep.RefundOpenTTL},
		},
		sweeper.WithLogger(log),
		sweeper.WithMetrics(m),
		sweeper.WithConcurrency(cfg.Sweep.Concurrency),
	)

	opsHandler := ops.New(ops.WithLogger(log))
	opsHandler.RegisterFamily(pixkey.Kind, ops.ListerFor(keyRepo))
	opsHandler.RegisterFamily(infraction.Kind, ops.ListerFor(infractionRepo))
	opsHandler.RegisterFamily(refund.Kind, ops.ListerFor[*refundmodels.Refund](refundRepo))
	if db != nil {
		opsHandler.RegisterCheck("postgres", db.PingContext)
	}
	if redisClient != nil {
		opsHandler.RegisterCheck("redis", redisClient.Health)
	}
	server := httpserver.New(cfg.Addr, opsHandler.Router())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("command consumer starting",
			"brokers", cfg.Kafka.Brokers,
			"topics", cfg.Kafka.CommandTopics,
		)
		return consumer.Run(ctx)
	})
	g.Go(func() error {
		log.Info("ops server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Sweep.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				keySweeper.Sweep(ctx)
				refundSweeper.Sweep(ctx)
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		consumer.Close()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func applySchemas(ctx context.Context, db *sql.DB) error {
	for _, schema := range []string{pixkeystore.Schema, infractionstore.Schema, refundstore.Schema} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}
