/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the prometheus surface. It carries its own registry so
// multiple instances can coexist in one process (tests spin several).
type Metrics struct {
	reg          *prometheus.Registry
	events       *prometheus.CounterVec
	writeLatency prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: `threatview`,
			Name:      `events_total`,
			Help:      `Canonical events published, by decoy service.`,
		}, []string{`service`}),
		writeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: `threatview`,
			Name:      `store_write_seconds`,
			Help:      `Event store insert latency.`,
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	m.reg.MustRegister(m.events, m.writeLatency)
	return m
}

// IncEvent counts one published event for a service.
func (m *Metrics) IncEvent(svc string) {
	m.events.WithLabelValues(svc).Inc()
}

// ObserveStoreWrite records one store insert duration.
func (m *Metrics) ObserveStoreWrite(d time.Duration) {
	m.writeLatency.Observe(d.Seconds())
}

// RegisterSessionGauge exposes a decoy's live session count.
func (m *Metrics) RegisterSessionGauge(svc string, fn func() int64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   `threatview`,
		Name:        `sessions_active`,
		Help:        `Live sessions per decoy service.`,
		ConstLabels: prometheus.Labels{`service`: svc},
	}, func() float64 { return float64(fn()) }))
}

// RegisterSinkDrops exposes one bus sink's cumulative drop counter.
func (m *Metrics) RegisterSinkDrops(sink string, fn func() uint64) {
	m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   `threatview`,
		Name:        `sink_drops_total`,
		Help:        `Events dropped per bus sink.`,
		ConstLabels: prometheus.Labels{`sink`: sink},
	}, func() float64 { return float64(fn()) }))
}

// RegisterSubscriberGauge exposes the live hub subscriber count.
func (m *Metrics) RegisterSubscriberGauge(fn func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: `threatview`,
		Name:      `subscribers`,
		Help:      `Connected live stream subscribers.`,
	}, func() float64 { return float64(fn()) }))
}

// Handler serves the registry in the standard exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
