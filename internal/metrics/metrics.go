// Package metrics exposes the Prometheus instrumentation shared by the
// wallet daemon and the audit consumer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts the queries issued by pkg/walletservice, labeled
	// by chain and query kind (balance, nonce, gas_price). Broadcast
	// submissions are not counted.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_wallet_queries_total",
		Help: "Total number of quorum queries issued",
	}, []string{"chain", "kind"})

	// QueryOutcomesTotal counts terminal classifications, labeled by the
	// same dimensions plus the outcome class.
	QueryOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_wallet_query_outcomes_total",
		Help: "Total number of quorum query outcomes by class",
	}, []string{"chain", "kind", "class"})

	// RetriesTotal counts retry rounds spent, split by class (Case A/B/C).
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_wallet_retries_total",
		Help: "Total number of retry rounds spent per query class",
	}, []string{"chain", "kind", "case"})

	// EndpointFailuresTotal counts recoverable failures per endpoint.
	EndpointFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_wallet_endpoint_failures_total",
		Help: "Total number of recoverable endpoint failures",
	}, []string{"chain", "endpoint"})

	// WatcherBalance tracks the last balance returned by
	// walletservice.BalanceOf for a chain+address, converted to ether.
	WatcherBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quorum_wallet_watched_balance",
		Help: "Last balance returned for an address, in ether",
	}, []string{"chain", "address"})

	// WatcherHealthy reports 1 when the most recent watcher poll succeeded,
	// 0 when it returned any error.
	WatcherHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quorum_wallet_watcher_healthy",
		Help: "Whether the balance watcher's last poll succeeded",
	}, []string{"chain", "address"})

	// AuditConsumerLag tracks pending (unacked) JetStream messages known
	// to the audit consumer.
	AuditConsumerLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quorum_wallet_audit_consumer_pending",
		Help: "Number of pending outcome messages awaiting audit persistence",
	})
)
