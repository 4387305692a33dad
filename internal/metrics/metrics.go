// Package metrics exports relay and catalog telemetry to Prometheus. The
// Prometheus type satisfies the observer interfaces declared by the stamps
// and catalog plugins, so those packages never import client_golang.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stampboard"

// Prometheus records relay and catalog metrics.
type Prometheus struct {
	channels        prometheus.Gauge
	connections     prometheus.Counter
	relayed         prometheus.Counter
	deliveries      prometheus.Counter
	evictions       prometheus.Counter
	opDuration      *prometheus.HistogramVec
	opResults       *prometheus.CounterVec
	ingestedBytes   prometheus.Counter
	listedResources prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_channels",
			Help:      "Realtime channels currently registered with the relay.",
		}),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_connections_total",
			Help:      "Realtime channels registered since start.",
		}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_messages_total",
			Help:      "Messages dispatched by the relay.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_messages_total",
			Help:      "Per-channel deliveries queued by the relay.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_channels_total",
			Help:      "Channels dropped because their outbound queue was full.",
		}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_operation_duration_seconds",
			Help:      "Latency of catalog listing and ingestion calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		opResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_operations_total",
			Help:      "Catalog listing and ingestion calls by result.",
		}, []string{"operation", "result"}),
		ingestedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_bytes_total",
			Help:      "Bytes of source images stored into the media store.",
		}),
		listedResources: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "listed_resources",
			Help:      "Number of resources returned per listing.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 75, 100},
		}),
	}

	collectors := []prometheus.Collector{
		p.channels, p.connections, p.relayed, p.deliveries, p.evictions,
		p.opDuration, p.opResults, p.ingestedBytes, p.listedResources,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return p, nil
}

// Handler serves the metrics gathered by g. A nil g uses the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// --- relay observer ---

// ChannelRegistered tracks a new channel and the resulting registry size.
func (p *Prometheus) ChannelRegistered(total int) {
	p.connections.Inc()
	p.channels.Set(float64(total))
}

// ChannelUnregistered tracks the registry size after a channel left.
func (p *Prometheus) ChannelUnregistered(total int) {
	p.channels.Set(float64(total))
}

// ChannelEvicted counts slow consumers dropped by the relay.
func (p *Prometheus) ChannelEvicted() {
	p.evictions.Inc()
}

// MessageRelayed counts a dispatched message and its recipients.
func (p *Prometheus) MessageRelayed(recipients int) {
	p.relayed.Inc()
	p.deliveries.Add(float64(recipients))
}

// --- catalog observer ---

// RecordListing tracks a catalog listing call.
func (p *Prometheus) RecordListing(duration time.Duration, count int, err error) {
	p.opDuration.WithLabelValues("list").Observe(duration.Seconds())
	if err != nil {
		p.opResults.WithLabelValues("list", "error").Inc()
		return
	}
	p.opResults.WithLabelValues("list", "ok").Inc()
	p.listedResources.Observe(float64(count))
}

// RecordIngestion tracks an ingestion call.
func (p *Prometheus) RecordIngestion(duration time.Duration, size int64, err error) {
	p.opDuration.WithLabelValues("ingest").Observe(duration.Seconds())
	if err != nil {
		p.opResults.WithLabelValues("ingest", "error").Inc()
		return
	}
	p.opResults.WithLabelValues("ingest", "ok").Inc()
	p.ingestedBytes.Add(float64(size))
}
