// Package metrics provides Prometheus metrics for the merit engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the engine exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Award path
	awardsTotal       *prometheus.CounterVec
	pointsAwarded     *prometheus.CounterVec
	awardLatency      prometheus.Histogram
	awardErrors       *prometheus.CounterVec
	invariantFailures *prometheus.CounterVec
	dedupeCacheHits   prometheus.Counter
	dedupeCacheSize   prometheus.Gauge

	// Streaks
	streakTransitions *prometheus.CounterVec
	sheltersGranted   prometheus.Counter
	streakRollovers   prometheus.Counter

	// Seasons and leagues
	seasonTransitions *prometheus.CounterVec
	leagueMoves       *prometheus.CounterVec
	leagueRunDuration prometheus.Histogram
	leaderboardBuilds prometheus.Counter

	// Async ingestion
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueRejected     prometheus.Counter
	workerCount       prometheus.Gauge
	workerRetries     prometheus.Counter
	workerLatency     prometheus.Histogram
	workerFailures    prometheus.Counter
	storeQueryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "merit",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.awardsTotal = m.counterVec("awards_total", "Award outcomes by status and skip reason", "status", "reason")
	m.pointsAwarded = m.counterVec("points_awarded_total", "Points credited to season totals", "role")
	m.awardLatency = m.histogram("award_latency_milliseconds", "End-to-end Award latency in milliseconds")
	m.awardErrors = m.counterVec("award_errors_total", "Award failures by error class", "class")
	m.invariantFailures = m.counterVec("invariant_violations_total", "Invariant violations by entity", "entity")
	m.dedupeCacheHits = m.counter("dedupe_cache_hits_total", "Duplicate source keys answered from the in-process cache")
	m.dedupeCacheSize = m.gauge("dedupe_cache_size", "Entries in the committed source key cache")

	m.streakTransitions = m.counterVec("streak_transitions_total", "Streak continuity outcomes", "transition")
	m.sheltersGranted = m.counter("shelters_granted_total", "Shelter credits granted")
	m.streakRollovers = m.counter("streak_rollover_resets_total", "Streaks reset by the daily rollover job")

	m.seasonTransitions = m.counterVec("season_transitions_total", "Season status transitions", "to")
	m.leagueMoves = m.counterVec("league_moves_total", "League movements by direction", "role", "direction")
	m.leagueRunDuration = m.histogram("league_assignment_duration_milliseconds", "League assignment run duration")
	m.leaderboardBuilds = m.counter("leaderboard_builds_total", "Leaderboards computed on request")

	m.queueSize = m.gauge("queue_size", "Queued async award requests")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the async award queue")
	m.queueRejected = m.counter("queue_rejected_total", "Async awards rejected due to backpressure")
	m.workerCount = m.gauge("worker_count", "Award workers running")
	m.workerRetries = m.counter("worker_retries_total", "Transient award retries performed by workers")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency per award")
	m.workerFailures = m.counter("worker_failures_total", "Queued awards that failed after retries")
	m.storeQueryLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", "op")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by route, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Goroutines running")
}

// RecordAward counts an award outcome. reason is empty for applied awards.
func RecordAward(status, reason string) {
	globalManager.awardsTotal.WithLabelValues(status, reason).Inc()
}

// RecordPointsAwarded adds to the per-role points counter.
func RecordPointsAwarded(role string, points int64) {
	if points > 0 {
		globalManager.pointsAwarded.WithLabelValues(role).Add(float64(points))
	}
}

// RecordAwardLatency observes one Award call.
func RecordAwardLatency(ms float64) {
	globalManager.awardLatency.Observe(ms)
}

// RecordAwardError counts failures by class (configuration, transient, invariant, internal).
func RecordAwardError(class string) {
	globalManager.awardErrors.WithLabelValues(class).Inc()
}

// RecordInvariantViolation counts a violated invariant.
func RecordInvariantViolation(entity string) {
	globalManager.invariantFailures.WithLabelValues(entity).Inc()
}

// RecordDedupeCacheHit counts a duplicate answered without touching the store.
func RecordDedupeCacheHit() {
	globalManager.dedupeCacheHits.Inc()
}

// UpdateDedupeCacheSize sets the cache size gauge.
func UpdateDedupeCacheSize(n int64) {
	globalManager.dedupeCacheSize.Set(float64(n))
}

// RecordStreakTransition counts a continuity outcome (extended, same_day, sheltered, reset, started).
func RecordStreakTransition(transition string) {
	globalManager.streakTransitions.WithLabelValues(transition).Inc()
}

// RecordSheltersGranted counts granted shelters.
func RecordSheltersGranted(n int) {
	globalManager.sheltersGranted.Add(float64(n))
}

// RecordStreakRolloverResets counts streaks reset by the rollover job.
func RecordStreakRolloverResets(n int) {
	globalManager.streakRollovers.Add(float64(n))
}

// RecordSeasonTransition counts a season status change.
func RecordSeasonTransition(to string) {
	globalManager.seasonTransitions.WithLabelValues(to).Inc()
}

// RecordLeagueMove counts a promotion or demotion.
func RecordLeagueMove(role, direction string) {
	globalManager.leagueMoves.WithLabelValues(role, direction).Inc()
}

// RecordLeagueRunDuration observes a league assignment run.
func RecordLeagueRunDuration(ms float64) {
	globalManager.leagueRunDuration.Observe(ms)
}

// RecordLeaderboardBuild counts a computed leaderboard.
func RecordLeaderboardBuild() {
	globalManager.leaderboardBuilds.Inc()
}

// UpdateQueueSize sets the queued award gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a backpressure rejection.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerCount sets the running worker gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerRetry counts one transient retry.
func RecordWorkerRetry() {
	globalManager.workerRetries.Inc()
}

// RecordWorkerLatency observes worker processing time.
func RecordWorkerLatency(ms float64) {
	globalManager.workerLatency.Observe(ms)
}

// RecordWorkerFailure counts a queued award given up on.
func RecordWorkerFailure() {
	globalManager.workerFailures.Inc()
}

// RecordStoreLatency observes a store operation.
func RecordStoreLatency(op string, ms float64) {
	globalManager.storeQueryLatency.WithLabelValues(op).Observe(ms)
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry backing /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
