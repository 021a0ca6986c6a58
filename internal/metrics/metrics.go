package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service counters. Label values are kept low-cardinality:
// statuses and reasons only, never account or order ids.
type Metrics struct {
	OrdersCreated    prometheus.Counter
	OrdersCompleted  *prometheus.CounterVec // label: status (fulfilled, cancelled, refunded)
	LedgerOps        *prometheus.CounterVec // labels: type, reason
	RedeemClaims     *prometheus.CounterVec // label: outcome (ok, limit_reached, already_claimed, not_found)
	RechargeDecided  *prometheus.CounterVec // label: status (approved, declined)
	ProviderFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "simshop_orders_created_total",
			Help: "Orders created (debit + reservation succeeded).",
		}),
		OrdersCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simshop_orders_completed_total",
			Help: "Orders that left awaiting_fulfillment, by final status.",
		}, []string{"status"}),
		LedgerOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simshop_ledger_operations_total",
			Help: "Balance mutations applied, by type and reason.",
		}, []string{"type", "reason"}),
		RedeemClaims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simshop_redeem_claims_total",
			Help: "Redeem code claim attempts, by outcome.",
		}, []string{"outcome"}),
		RechargeDecided: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simshop_recharge_decided_total",
			Help: "Recharge requests decided by an admin, by status.",
		}, []string{"status"}),
		ProviderFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "simshop_provider_failures_total",
			Help: "Failed or timed out provider adapter calls.",
		}),
	}
}

// NewNoOp returns metrics backed by a throwaway registry, for tests and for
// callers that don't care about scraping.
func NewNoOp() *Metrics {
	return New(prometheus.NewRegistry())
}
