package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gamebook"

// Metrics набор метрик сервиса в собственном реестре.
// Все методы допускают nil-получатель, чтобы компоненты в тестах работали без метрик.
type Metrics struct {
	registry *prometheus.Registry

	autosaveFlushes  *prometheus.CounterVec
	pagesFlushed     *prometheus.CounterVec
	flushDuration    prometheus.Histogram
	diceChecks       *prometheus.CounterVec
	choicesCommitted *prometheus.CounterVec
	editorSessions   prometheus.Gauge
	playSessions     prometheus.Gauge
	playEventsFailed prometheus.Counter
}

// New создает реестр и регистрирует в нем метрики.
// Мы используем promauto.With(registry), а не глобальный prometheus.DefaultRegistry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		autosaveFlushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autosave_flushes_total",
			Help:      "Total number of autosave flush cycles, partitioned by result.",
		}, []string{"result"}),
		pagesFlushed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autosave_pages_flushed_total",
			Help:      "Total number of page updates issued by autosave, partitioned by result.",
		}, []string{"result"}),
		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "autosave_flush_duration_seconds",
			Help:      "Duration of autosave flush cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		diceChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dice_checks_total",
			Help:      "Total number of resolved skill checks, partitioned by check type and result.",
		}, []string{"check_type", "result"}),
		choicesCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "play_choices_total",
			Help:      "Total number of committed reader choices.",
		}, []string{"preview"}),
		editorSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_sessions_active",
			Help:      "Number of open editor sessions.",
		}),
		playSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "play_sessions_active",
			Help:      "Number of play sessions held in memory.",
		}),
		playEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "play_events_publish_failed_total",
			Help:      "Total number of play events that could not be published.",
		}),
	}
}

// Registry возвращает реестр (нужен тестам и /metrics).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler отдает метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveFlush фиксирует цикл автосохранения.
func (m *Metrics) ObserveFlush(ok bool, succeeded, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.autosaveFlushes.WithLabelValues(resultLabel(ok)).Inc()
	m.pagesFlushed.WithLabelValues("success").Add(float64(succeeded))
	m.pagesFlushed.WithLabelValues("failure").Add(float64(failed))
	m.flushDuration.Observe(d.Seconds())
}

// ObserveDiceCheck фиксирует разрешенную проверку.
func (m *Metrics) ObserveDiceCheck(checkType string, success bool) {
	if m == nil {
		return
	}
	if checkType == "" {
		checkType = "none"
	}
	m.diceChecks.WithLabelValues(checkType, resultLabel(success)).Inc()
}

// ObserveChoice фиксирует примененный выбор читателя.
func (m *Metrics) ObserveChoice(preview bool) {
	if m == nil {
		return
	}
	label := "false"
	if preview {
		label = "true"
	}
	m.choicesCommitted.WithLabelValues(label).Inc()
}

func (m *Metrics) SetEditorSessions(n int) {
	if m == nil {
		return
	}
	m.editorSessions.Set(float64(n))
}

func (m *Metrics) SetPlaySessions(n int) {
	if m == nil {
		return
	}
	m.playSessions.Set(float64(n))
}

func (m *Metrics) IncPlayEventFailures() {
	if m == nil {
		return
	}
	m.playEventsFailed.Inc()
}
