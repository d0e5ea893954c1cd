// Package metrics implements the metrics & log sink (spec component C12):
// standard Prometheus counters/histograms for scraping, plus a bounded
// in-memory latency sampler backing the bespoke JSON /metrics snapshot
// that demands exact percentiles (spec.md §6).
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates both the Prometheus registry and the bounded sample
// windows used to compute exact p50/p95/p99.
type Metrics struct {
	Registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	errorsTotal      prometheus.Counter
	rateLimitedTotal prometheus.Counter
	chatBusyTotal    prometheus.Counter
	plansSavedTotal  prometheus.Counter
	httpLatency      *prometheus.HistogramVec

	start time.Time

	mu                sync.Mutex
	overall           *sampleWindow
	chat              *sampleWindow
	byPath            map[string]int64
	byStatus          map[int]int64
	chatInflight      int64
	maxChatInflight   int64
	lastPlanID        string
	rateLimitedCount  int64
	chatBusyCount     int64
	plansSavedCount   int64
}

// OverallWindowSize and ChatWindowSize match spec.md §5's histogram
// window caps.
const (
	OverallWindowSize = 5000
	ChatWindowSize    = 2000
)

// sampleWindow is a fixed-capacity ring buffer of raw latency samples.
type sampleWindow struct {
	samples []float64
	next    int
	full    bool
}

func newSampleWindow(cap int) *sampleWindow {
	return &sampleWindow{samples: make([]float64, cap)}
}

func (w *sampleWindow) add(v float64) {
	w.samples[w.next] = v
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
}

func (w *sampleWindow) count() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}

func (w *sampleWindow) percentile(p float64) float64 {
	n := w.count()
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, w.samples[:n])
	sort.Float64s(sorted)
	idx := int(p * float64(n-1))
	return sorted[idx]
}

// New constructs a Metrics instance and registers its Prometheus
// collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		start:    time.Now(),
		overall:  newSampleWindow(OverallWindowSize),
		chat:     newSampleWindow(ChatWindowSize),
		byPath:   make(map[string]int64),
		byStatus: make(map[int]int64),
	}

	factory := promauto.With(reg)
	m.requestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "aicore_requests_total",
		Help: "Total HTTP requests handled by the front door.",
	}, []string{"path", "method"})
	m.errorsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "aicore_errors_total",
		Help: "Total requests that resulted in a 5xx response.",
	})
	m.rateLimitedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "aicore_rate_limited_total",
		Help: "Total requests rejected by the rate limiter.",
	})
	m.chatBusyTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "aicore_chat_busy_total",
		Help: "Total /chat requests rejected due to the concurrency cap.",
	})
	m.plansSavedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "aicore_plans_saved_total",
		Help: "Total checkpoint saves performed by the orchestrator.",
	})
	m.httpLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aicore_http_request_duration_ms",
		Help:    "HTTP request latency in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	}, []string{"path", "status"})

	return m
}

// RecordRequest records one completed HTTP request's outcome.
func (m *Metrics) RecordRequest(path, method string, status int, latencyMS float64) {
	m.requestsTotal.WithLabelValues(path, method).Inc()
	m.httpLatency.WithLabelValues(path, statusBucket(status)).Observe(latencyMS)
	if status >= 500 {
		m.errorsTotal.Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.overall.add(latencyMS)
	m.byPath[path]++
	m.byStatus[status]++
}

// RecordRateLimited records one 429 rejection.
func (m *Metrics) RecordRateLimited() {
	m.rateLimitedTotal.Inc()
	m.mu.Lock()
	m.rateLimitedCount++
	m.mu.Unlock()
}

// RecordChatBusy records one 503 BUSY rejection.
func (m *Metrics) RecordChatBusy() {
	m.chatBusyTotal.Inc()
	m.mu.Lock()
	m.chatBusyCount++
	m.mu.Unlock()
}

// RecordPlanSaved records a checkpoint save and the plan id it saved.
func (m *Metrics) RecordPlanSaved(planID string) {
	m.plansSavedTotal.Inc()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPlanID = planID
	m.plansSavedCount++
}

// RecordChatLatency records one completed /chat turn's total latency.
func (m *Metrics) RecordChatLatency(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat.add(ms)
}

// ChatInflightInc/Dec track the in-flight concurrency gauge.
func (m *Metrics) ChatInflightInc() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatInflight++
	if m.chatInflight > m.maxChatInflight {
		m.maxChatInflight = m.chatInflight
	}
	return m.chatInflight
}

func (m *Metrics) ChatInflightDec() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chatInflight > 0 {
		m.chatInflight--
	}
}

// Snapshot is the JSON shape returned by GET /metrics (spec.md §6).
type Snapshot struct {
	OK                bool           `json:"ok"`
	UptimeS           float64        `json:"uptime_s"`
	RequestsTotal     int64          `json:"requests_total"`
	ErrorsTotal       int64          `json:"errors_total"`
	RateLimitedTotal  int64          `json:"rate_limited_total"`
	ByPath            map[string]int64 `json:"by_path"`
	ByStatus          map[string]int64 `json:"by_status"`
	LatencyMSP50      float64        `json:"latency_ms_p50"`
	LatencyMSP95      float64        `json:"latency_ms_p95"`
	LatencyMSP99      float64        `json:"latency_ms_p99"`
	LatencySamples    int            `json:"latency_samples"`
	ChatP95MS         float64        `json:"chat_p95_ms"`
	ChatSamples       int            `json:"chat_samples"`
	ChatInflight      int64          `json:"chat_inflight"`
	MaxChatInflight   int64          `json:"max_chat_inflight"`
	ChatBusyTotal     int64          `json:"chat_busy_total"`
	PlansSavedTotal   int64          `json:"plans_saved_total,omitempty"`
	LastPlanID        string         `json:"last_plan_id,omitempty"`
	WarmupStarted     bool           `json:"warmup_started"`
	WarmupDone        bool           `json:"warmup_done"`
	WarmupOK          bool           `json:"warmup_ok"`
	WarmupMS          int64          `json:"warmup_ms"`
	WarmupError       string         `json:"warmup_error,omitempty"`
}

// WarmupInfo is the subset of llm.WarmupStatus the snapshot needs,
// decoupled here to avoid an import cycle with package llm.
type WarmupInfo struct {
	Started bool
	Done    bool
	OK      bool
	MS      int64
	Error   string
}

// Snapshot computes the current metrics snapshot.
func (m *Metrics) Snapshot(warmup WarmupInfo) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPath := make(map[string]int64, len(m.byPath))
	for k, v := range m.byPath {
		byPath[k] = v
	}
	byStatus := make(map[string]int64, len(m.byStatus))
	var requestsTotal, errorsTotal int64
	for k, v := range m.byStatus {
		byStatus[statusBucket(k)] += v
		requestsTotal += v
		if k >= 500 {
			errorsTotal += v
		}
	}

	return Snapshot{
		OK:               true,
		UptimeS:          time.Since(m.start).Seconds(),
		RequestsTotal:    requestsTotal,
		ErrorsTotal:      errorsTotal,
		RateLimitedTotal: m.rateLimitedCount,
		ByPath:           byPath,
		ByStatus:         byStatus,
		LatencyMSP50:     m.overall.percentile(0.50),
		LatencyMSP95:     m.overall.percentile(0.95),
		LatencyMSP99:     m.overall.percentile(0.99),
		LatencySamples:   m.overall.count(),
		ChatP95MS:        m.chat.percentile(0.95),
		ChatSamples:      m.chat.count(),
		ChatInflight:     m.chatInflight,
		MaxChatInflight:  m.maxChatInflight,
		ChatBusyTotal:    m.chatBusyCount,
		PlansSavedTotal:  m.plansSavedCount,
		LastPlanID:       m.lastPlanID,
		WarmupStarted:    warmup.Started,
		WarmupDone:       warmup.Done,
		WarmupOK:         warmup.OK,
		WarmupMS:         warmup.MS,
		WarmupError:      warmup.Error,
	}
}

func statusBucket(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
