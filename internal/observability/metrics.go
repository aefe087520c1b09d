// Package observability provides metrics and tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsCreated counts accepted contest entries.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dailyshot_posts_created_total",
		Help: "Total number of contest posts created",
	})

	// PostsDeleted counts posts removed by their authors.
	PostsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dailyshot_posts_deleted_total",
		Help: "Total number of contest posts deleted",
	})

	// VoteToggles counts vote toggles by resulting state.
	VoteToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dailyshot_vote_toggles_total",
		Help: "Total number of vote toggles by resulting state",
	}, []string{"state"})

	// WinnerResolutions counts resolution attempts by outcome.
	WinnerResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dailyshot_winner_resolutions_total",
		Help: "Total number of winner resolution attempts by outcome",
	}, []string{"status"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dailyshot_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dailyshot_cache_lookups_total",
		Help: "Cache-aside lookups by result",
	}, []string{"result"})

	// WebSocketConnectionsTotal is the gauge of live feed connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dailyshot_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dailyshot_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})

	// EventsPublished counts domain events by type and sink.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dailyshot_events_published_total",
		Help: "Domain events published by type and sink",
	}, []string{"event_type", "sink"})
)
