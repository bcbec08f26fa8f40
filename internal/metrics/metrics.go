package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Database connection metrics
	// ============================================
	DBConnectionPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_db_connection_pool_size",
		Help: "Database connection pool size",
	})

	DBConnectionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_db_connection_active",
		Help: "Number of active database connections",
	})

	DBConnectionIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_db_connection_idle",
		Help: "Number of idle database connections",
	})

	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// NATS connection and message metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"subject"},
	)

	NATSPublishFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_nats_publish_failed_total",
			Help: "Total number of NATS publish failures",
		},
		[]string{"subject"},
	)

	// ============================================
	// Vault ledger metrics
	// ============================================
	LedgerEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_ledger_entries_total",
			Help: "Total number of vault ledger entries by kind",
		},
		[]string{"kind"},
	)

	DepositsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_deposits_total",
		Help: "Total number of deposits credited to the vault",
	})

	WithdrawalsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_withdrawals_total",
		Help: "Total number of withdrawals debited from the vault",
	})

	// ============================================
	// Escrow metrics
	// ============================================
	DealTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_deal_transitions_total",
			Help: "Total number of escrow deal events by kind",
		},
		[]string{"event"},
	)

	OpenDeals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_open_deals",
		Help: "Number of escrow deals not yet in a terminal state",
	})

	// ============================================
	// Session metrics
	// ============================================
	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_session_events_total",
			Help: "Total number of metered session events by kind",
		},
		[]string{"event"},
	)

	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_open_sessions",
		Help: "Number of sessions currently in the ACTIVE state",
	})

	RegisteredGateways = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_registered_gateways",
		Help: "Number of gateway slugs ever registered",
	})

	// ============================================
	// Cross-chain settlement metrics
	// ============================================
	CrossChainSettlements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_crosschain_settlements_total",
		Help: "Total number of cross-chain settlements processed",
	})

	CrossChainReplaysRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_crosschain_replays_rejected_total",
		Help: "Total number of cross-chain settlements rejected as replays",
	})

	// ============================================
	// HTTP metrics
	// ============================================
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_http_request_duration_seconds",
			Help:    "HTTP request duration by method, route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
