// Package metrics provides Prometheus instrumentation for the FixMarket platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixmarket",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fixmarket",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// --- Matching metrics ---

	OrdersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "orders_created_total",
		Help:      "Total orders posted by customers.",
	})

	OrdersMatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "orders_matched_total",
		Help:      "Total orders matched to a winning bid.",
	})

	OrdersCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "orders_completed_total",
		Help:      "Total orders confirmed completed by customers.",
	})

	OrdersCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "orders_cancelled_total",
		Help:      "Total orders cancelled by customers.",
	})

	BidsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "bids_submitted_total",
		Help:      "Total bids submitted by providers.",
	})

	BidsWithdrawnTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "bids_withdrawn_total",
		Help:      "Total bids withdrawn by providers.",
	})

	BidsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "bids_expired_total",
		Help:      "Total bids expired by the background sweep.",
	})

	// TimeToMatchSeconds observes how long orders wait for a winning bid.
	TimeToMatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fixmarket",
		Name:      "time_to_match_seconds",
		Help:      "Time from order creation to bid acceptance in seconds.",
		Buckets:   []float64{60, 300, 900, 3600, 14400, 43200, 86400, 259200},
	})

	// --- Reputation metrics ---

	ReviewsIngestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "reviews_ingested_total",
		Help:      "Total reviews ingested.",
	})

	ProvidersBlockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "providers_blocked_total",
		Help:      "Total provider blocks applied (manual and automatic).",
	})

	ProvidersWarnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Name:      "providers_warned_total",
		Help:      "Total provider warnings recorded.",
	})

	// WebhookDeliveriesTotal counts webhook delivery attempts by result.
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixmarket",
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook deliveries by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fixmarket",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixmarket", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixmarket", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixmarket", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixmarket", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// DBWaitDuration tracks total time waited for connections.
	DBWaitDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixmarket", Name: "db_wait_duration_seconds_total",
		Help: "Total time waited for connections in seconds.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixmarket", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		OrdersCreatedTotal,
		OrdersMatchedTotal,
		OrdersCompletedTotal,
		OrdersCancelledTotal,
		BidsSubmittedTotal,
		BidsWithdrawnTotal,
		BidsExpiredTotal,
		TimeToMatchSeconds,
		ReviewsIngestedTotal,
		ProvidersBlockedTotal,
		ProvidersWarnedTotal,
		WebhookDeliveriesTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
