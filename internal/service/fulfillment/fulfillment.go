package fulfillment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nmarkelov/simshop/internal/logger"
	"github.com/nmarkelov/simshop/internal/metrics"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/service/provider"
)

const (
	defaultCountWorkers    = 10               // Number of workers polling activations
	defaultProduceInterval = 10 * time.Second // Interval for fetching awaiting orders
	defaultSweepInterval   = 30 * time.Second // Interval for refunding expired orders
	defaultBatchSize       = 100
)

type providerClient interface {
	RequestNumber(ctx context.Context, service string, country string) (provider.Activation, error)
	PollCode(ctx context.Context, activationID string) (string, error)
	Release(ctx context.Context, activationID string) error
}

type orderService interface {
	ListAwaiting(ctx context.Context, limit int) ([]models.Order, error)
	ListExpired(ctx context.Context, limit int) ([]models.Order, error)
	Fulfill(ctx context.Context, orderID uuid.UUID, proof string) (models.Order, error)
	Expire(ctx context.Context, orderID uuid.UUID) (models.Order, error)
	SetExternalID(ctx context.Context, orderID uuid.UUID, externalID string) (models.Order, error)
}

type Config struct {
	ProviderAddr string
	ProviderKey  string

	// Upstream country id used for all activations
	Country string
}

type Processor struct {
	consumer *Consumer
	producer *Producer
	sweeper  *Sweeper
}

func New(config Config, logger logger.Logger, m *metrics.Metrics, orderService orderService) *Processor {
	client := provider.NewClient(config.ProviderAddr, config.ProviderKey, logger)

	return &Processor{
		consumer: &Consumer{
			countWorkers: defaultCountWorkers,
			country:      config.Country,
			client:       client,
			orderService: orderService,
			metrics:      m,
			logger:       logger,
		},
		producer: &Producer{
			interval:     defaultProduceInterval,
			batchSize:    defaultBatchSize,
			orderService: orderService,
			logger:       logger,
		},
		sweeper: &Sweeper{
			interval:     defaultSweepInterval,
			batchSize:    defaultBatchSize,
			orderService: orderService,
			logger:       logger,
		},
	}
}

func (p *Processor) Process(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	orderChan := make(chan models.Order)

	producerStopped := p.producer.Produce(ctx, orderChan)
	consumerStopped := p.consumer.Consume(ctx, orderChan)
	sweeperStopped := p.sweeper.Sweep(ctx)

	go func() {
		defer close(idleStopped)
		defer close(orderChan)
		<-producerStopped
		<-consumerStopped
		<-sweeperStopped
		p.consumer.logger.Debug("Fulfillment processor stopped")
	}()

	return idleStopped
}
