package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/briefly-ai/briefly/config"
)

// Telemetry tracks pipeline runs, stage timings and LLM usage. It satisfies
// the orchestrator's event sink and backs the /metrics endpoint.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu      sync.RWMutex
	metrics *Metrics

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	llmRequests   *prometheus.CounterVec
	fetchesTotal  *prometheus.CounterVec
}

// Metrics is an in-process snapshot of run statistics.
type Metrics struct {
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	AverageRunTime time.Duration

	StageExecutions   map[string]int64
	StageAverageTimes map[string]time.Duration

	LLMRequests map[string]int64
}

// New creates a Telemetry instance and registers its Prometheus collectors
// on the default registry.
func New(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			StageExecutions:   make(map[string]int64),
			StageAverageTimes: make(map[string]time.Duration),
			LLMRequests:       make(map[string]int64),
		},
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "briefly_runs_total",
			Help: "Brief pipeline runs by outcome.",
		}, []string{"status"}),
		runDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefly_run_duration_seconds",
			Help:    "End-to-end brief pipeline run duration.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		stageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "briefly_stage_duration_seconds",
			Help:    "Per-stage pipeline duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		llmRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "briefly_llm_requests_total",
			Help: "LLM calls by model tier and outcome.",
		}, []string{"tier", "status"}),
		fetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "briefly_source_fetches_total",
			Help: "Source fetch attempts by outcome.",
		}, []string{"status"}),
	}

	if cfg.Enabled && cfg.PeriodicLogs {
		go t.startMetricsCollection()
	}
	return t
}

// StageEntered records a stage-entry event. Seq increases monotonically
// within a run, so interleaved logs from concurrent runs stay ordered.
func (t *Telemetry) StageEntered(runID string, seq int, stage string, at time.Time) {
	if !t.config.Enabled {
		return
	}
	t.logger.Printf("Stage Enter: run=%s seq=%d stage=%s", runID, seq, stage)
}

// StageExited records a stage-exit event and the stage duration.
func (t *Telemetry) StageExited(runID string, seq int, stage string, at time.Time, took time.Duration, err error) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	t.metrics.StageExecutions[stage]++
	n := t.metrics.StageExecutions[stage]
	if n == 1 {
		t.metrics.StageAverageTimes[stage] = took
	} else {
		total := t.metrics.StageAverageTimes[stage] * time.Duration(n-1)
		t.metrics.StageAverageTimes[stage] = (total + took) / time.Duration(n)
	}
	t.mu.Unlock()

	t.stageDuration.WithLabelValues(stage).Observe(took.Seconds())
	if err != nil {
		t.logger.Printf("Stage Exit: run=%s seq=%d stage=%s took=%v err=%v", runID, seq, stage, took, err)
		return
	}
	t.logger.Printf("Stage Exit: run=%s seq=%d stage=%s took=%v", runID, seq, stage, took)
}

// RecordRun records one completed pipeline run.
func (t *Telemetry) RecordRun(runID, topic string, took time.Duration, success bool) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	t.metrics.TotalRuns++
	if success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}
	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunTime = took
	} else {
		total := t.metrics.AverageRunTime * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunTime = (total + took) / time.Duration(t.metrics.TotalRuns)
	}
	t.mu.Unlock()

	status := "success"
	if !success {
		status = "error"
	}
	t.runsTotal.WithLabelValues(status).Inc()
	t.runDuration.Observe(took.Seconds())
	t.logger.Printf("Run: id=%s success=%t duration=%v topic=%q", runID, success, took, topic)
}

// RecordLLMRequest records one model call by tier.
func (t *Telemetry) RecordLLMRequest(tier string, took time.Duration, err error) {
	if !t.config.Enabled {
		return
	}
	t.mu.Lock()
	t.metrics.LLMRequests[tier]++
	t.mu.Unlock()

	status := "success"
	if err != nil {
		status = "error"
	}
	t.llmRequests.WithLabelValues(tier, status).Inc()
}

// RecordFetch records one source fetch attempt.
func (t *Telemetry) RecordFetch(err error) {
	if !t.config.Enabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	t.fetchesTotal.WithLabelValues(status).Inc()
}

// GetMetrics returns a copy of the current metrics.
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := *t.metrics
	m.StageExecutions = make(map[string]int64, len(t.metrics.StageExecutions))
	m.StageAverageTimes = make(map[string]time.Duration, len(t.metrics.StageAverageTimes))
	m.LLMRequests = make(map[string]int64, len(t.metrics.LLMRequests))
	for k, v := range t.metrics.StageExecutions {
		m.StageExecutions[k] = v
	}
	for k, v := range t.metrics.StageAverageTimes {
		m.StageAverageTimes[k] = v
	}
	for k, v := range t.metrics.LLMRequests {
		m.LLMRequests[k] = v
	}
	return m
}

func (t *Telemetry) startMetricsCollection() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m := t.GetMetrics()
		t.logger.Printf("Metrics Snapshot: runs=%d/%d avg=%v", m.SuccessfulRuns, m.TotalRuns, m.AverageRunTime)
	}
}

// Shutdown logs a final report.
func (t *Telemetry) Shutdown() {
	m := t.GetMetrics()
	if m.TotalRuns == 0 {
		return
	}
	t.logger.Printf("Final Report: runs=%d success=%.2f%% avg=%v",
		m.TotalRuns, float64(m.SuccessfulRuns)/float64(m.TotalRuns)*100, m.AverageRunTime)
}
