package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/nmarkelov/simshop/internal/convstate"
	"github.com/nmarkelov/simshop/internal/db"
	"github.com/nmarkelov/simshop/internal/events"
	"github.com/nmarkelov/simshop/internal/handlers"
	"github.com/nmarkelov/simshop/internal/logger"
	"github.com/nmarkelov/simshop/internal/metrics"
	"github.com/nmarkelov/simshop/internal/notify"
	"github.com/nmarkelov/simshop/internal/repository/postgres"
	"github.com/nmarkelov/simshop/internal/service/catalog"
	"github.com/nmarkelov/simshop/internal/service/fulfillment"
	"github.com/nmarkelov/simshop/internal/service/ledger"
	"github.com/nmarkelov/simshop/internal/service/listing"
	"github.com/nmarkelov/simshop/internal/service/order"
	"github.com/nmarkelov/simshop/internal/service/recharge"
	"github.com/nmarkelov/simshop/internal/service/redeem"
)

type convStore interface {
	Set(ctx context.Context, accountID int64, state convstate.State) error
	Get(ctx context.Context, accountID int64) (convstate.State, error)
	Clear(ctx context.Context, accountID int64) error
}

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	processor *fulfillment.Processor
	logger    logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log := logger.New(c.Environment, c.LogLevel)

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Metrics and event publishing
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	publisher := events.NewNoOp()
	if c.NatsURL != "" {
		publisher, err = events.NewNATSPublisher(c.NatsURL, log)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to nats. Err: %w", err)
		}
	}

	notifier := notify.NewNoOp()
	if c.BotToken != "" {
		notifier = notify.NewTelegram(c.BotToken, log)
	}

	var conv convStore = convstate.NoOp{}
	if c.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		conv = convstate.NewStore(redisClient, c.ConvStateTTL)
	}

	// Initialize services
	accountService := ledger.NewService(ledger.Config{ReferralBonus: c.ReferralBonus}, storage, m, publisher)
	orderService := order.NewService(order.Config{FulfillmentWait: c.FulfillmentWait}, storage, m, publisher, notifier, log)
	rechargeService := recharge.NewService(recharge.Config{AdminIDs: c.AdminIDs}, storage, m, publisher, notifier)
	redeemService := redeem.NewService(storage, m, publisher)
	listingService := listing.NewService(listing.Config{AdminIDs: c.AdminIDs}, storage, notifier)
	catalogService := catalog.NewService(storage)

	processor := fulfillment.New(fulfillment.Config{
		ProviderAddr: c.ProviderAddr,
		ProviderKey:  c.ProviderKey,
		Country:      c.ProviderCountry,
	}, log, m, orderService)

	mux := handlers.NewRouter(
		handlers.Config{
			ServiceToken: c.ServiceToken,
			AdminToken:   c.AdminToken,
		},
		accountService,
		orderService,
		rechargeService,
		redeemService,
		listingService,
		catalogService,
		conv,
		registry,
		log,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		processor:  processor,
		logger:     log,
	}, nil
}

// Run starts the http server and the fulfillment processor; both stop
// gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	processorStopped := s.processor.Process(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-processorStopped

	return err
}
