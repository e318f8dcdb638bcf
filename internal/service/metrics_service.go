package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// caching, campaign dispatch and gamification awards.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dispatchTotal   *prometheus.CounterVec
	tickDuration    *prometheus.HistogramVec
	activeTimers    prometheus.Gauge
	badgesAwarded   prometheus.Counter
	pointsAwarded   *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
	sentCount      uint64
	failedCount    uint64
}

// MetricsSnapshot is a JSON-friendly summary of process counters.
type MetricsSnapshot struct {
	CacheHitRatio  float64   `json:"cache_hit_ratio"`
	CacheHits      uint64    `json:"cache_hits"`
	CacheMisses    uint64    `json:"cache_misses"`
	MessagesSent   uint64    `json:"messages_sent"`
	MessagesFailed uint64    `json:"messages_failed"`
	Goroutines     int       `json:"goroutines"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dispatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_messages_total",
		Help: "Campaign messages by outcome",
	}, []string{"rule", "status"})

	tickDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campaign_tick_duration_seconds",
		Help:    "Duration of one campaign rule evaluation",
		Buckets: []float64{.05, .1, .5, 1, 5, 15, 60, 300},
	}, []string{"rule"})

	activeTimers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campaign_active_timers",
		Help: "Campaign timers currently installed",
	})

	badgesAwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gamification_badges_awarded_total",
		Help: "Badges awarded to students",
	})

	pointsAwarded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_points_awarded_total",
		Help: "Points credited to students by event type",
	}, []string{"event"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dispatchTotal, tickDuration, activeTimers, badgesAwarded, pointsAwarded, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dispatchTotal:   dispatchTotal,
		tickDuration:    tickDuration,
		activeTimers:    activeTimers,
		badgesAwarded:   badgesAwarded,
		pointsAwarded:   pointsAwarded,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordDispatch counts one campaign message outcome.
func (m *MetricsService) RecordDispatch(rule string, sent bool) {
	if m == nil {
		return
	}
	status := "sent"
	if sent {
		atomic.AddUint64(&m.sentCount, 1)
	} else {
		status = "failed"
		atomic.AddUint64(&m.failedCount, 1)
	}
	m.dispatchTotal.WithLabelValues(rule, status).Inc()
}

// ObserveTick records how long a rule evaluation took.
func (m *MetricsService) ObserveTick(rule string, duration time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.WithLabelValues(rule).Observe(duration.Seconds())
}

// SetActiveTimers publishes the installed timer count.
func (m *MetricsService) SetActiveTimers(n int) {
	if m == nil {
		return
	}
	m.activeTimers.Set(float64(n))
}

// RecordAward counts badges and points granted by one processed event.
func (m *MetricsService) RecordAward(eventType string, badges, points int) {
	if m == nil {
		return
	}
	if badges > 0 {
		m.badgesAwarded.Add(float64(badges))
	}
	if points > 0 {
		m.pointsAwarded.WithLabelValues(eventType).Add(float64(points))
	}
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return MetricsSnapshot{
		CacheHitRatio:  ratio,
		CacheHits:      hits,
		CacheMisses:    misses,
		MessagesSent:   atomic.LoadUint64(&m.sentCount),
		MessagesFailed: atomic.LoadUint64(&m.failedCount),
		Goroutines:     runtime.NumGoroutine(),
		GeneratedAt:    time.Now().UTC(),
	}
}
