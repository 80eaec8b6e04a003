package monitor

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/mevml/arbscan/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the live counter set exported on /api/metrics.
type Metrics struct {
	registry *prometheus.Registry

	Parsed     prometheus.Counter
	Viable     prometheus.Counter
	Honeypots  prometheus.Counter
	Stored     prometheus.Counter
	QueueDepth prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Parsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbscan_opportunities_parsed_total",
			Help: "Opportunities reconstructed from the scanner stream.",
		}),
		Viable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbscan_opportunities_viable_total",
			Help: "Opportunities that passed the viability threshold.",
		}),
		Honeypots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbscan_honeypots_detected_total",
			Help: "Opportunities short-circuited on honeypot risk.",
		}),
		Stored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbscan_opportunities_stored_total",
			Help: "Scored opportunities handed to the store.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbscan_pipeline_queue_depth",
			Help: "Completed opportunities waiting for the consumer.",
		}),
	}
	m.registry.MustRegister(m.Parsed, m.Viable, m.Honeypots, m.Stored, m.QueueDepth)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Monitor logs a performance report from persisted history on a fixed
// cadence. It only reads aggregates, it never touches the live queue.
type Monitor struct {
	ctx      context.Context
	wg       sync.WaitGroup
	store    *store.Store
	interval time.Duration
	log      *log.Logger
}

func NewMonitor(ctx context.Context, s *store.Store, interval time.Duration, logger *log.Logger) *Monitor {
	return &Monitor{
		ctx:      ctx,
		store:    s,
		interval: interval,
		log:      logger,
	}
}

func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.report()
}

func (m *Monitor) Stop() {
	m.wg.Wait()
}

func (m *Monitor) report() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			perf, err := m.store.Performance()
			if err != nil {
				m.log.Printf("performance metrics err: %v", err)
				continue
			}
			m.log.Printf("performance: total %d, viable %d, honeypots %d, avg profit $%.2f, model accuracy %.2f%%, execution success %.2f%%",
				perf.Total, perf.Viable, perf.Honeypots, perf.AvgProfit,
				perf.Accuracy*100, perf.SuccessRate*100)
		case <-m.ctx.Done():
			return
		}
	}
}
