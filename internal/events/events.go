package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nmarkelov/simshop/internal/logger"
)

const (
	SubjectLedgerTransaction = "ledger.transaction"
	SubjectOrderCreated      = "orders.created"
	SubjectOrderCompleted    = "orders.completed"
	SubjectRechargeDecided   = "recharges.decided"
)

// Publisher emits service events for external consumers (audit pipelines,
// the bot layer). Publishing is fire-and-forget: a failure is logged and
// never affects the state transition that produced the event.
type Publisher interface {
	Publish(subject string, event any)
}

type natsPublisher struct {
	conn   *nats.Conn
	logger logger.Logger
}

func NewNATSPublisher(url string, l logger.Logger) (Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &natsPublisher{conn: conn, logger: l}, nil
}

func (p *natsPublisher) Publish(subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", "subject", subject, "error", err)
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

type noopPublisher struct{}

// NewNoOp returns a publisher that drops every event, used when no NATS url
// is configured
func NewNoOp() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(string, any) {}
