/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package metrics exposes prometheus metrics for builds and rebuilds.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the rebuild collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	regenerateTotal      prometheus.Counter
	regenerateErrorTotal prometheus.Counter
	affectedPots         prometheus.Histogram
	renderDuration       prometheus.Histogram
	cacheWriteErrorTotal *prometheus.CounterVec
	updateTotal          *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		regenerateTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "potter_regenerate_total",
				Help: "Number of resource regenerations.",
			},
		),
		regenerateErrorTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "potter_regenerate_error_total",
				Help: "Number of resource regenerations that failed.",
			},
		),
		affectedPots: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "potter_regenerate_affected_pots",
				Help:    "Number of resource pots re-rendered per regeneration.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		renderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "potter_render_duration_seconds",
				Help:    "Time taken to render the affected resource pots.",
				Buckets: prometheus.DefBuckets,
			},
		),
		cacheWriteErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "potter_cache_write_error_total",
				Help: "Number of persistent cache writes that failed, by cache kind.",
			},
			[]string{"kind"},
		),
		updateTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "potter_update_total",
				Help: "Number of incremental updates by outcome.",
			},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(
		m.regenerateTotal,
		m.regenerateErrorTotal,
		m.affectedPots,
		m.renderDuration,
		m.cacheWriteErrorTotal,
		m.updateTotal,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Regenerated records a finished regeneration.
func (m *Metrics) Regenerated(pots int, err error) {
	if m == nil {
		return
	}
	m.regenerateTotal.Inc()
	if err != nil {
		m.regenerateErrorTotal.Inc()
		return
	}
	m.affectedPots.Observe(float64(pots))
}

// RenderDuration records how long rendering took.
func (m *Metrics) RenderDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.Observe(d.Seconds())
}

// CacheWriteFailed counts a failed cache write of the given kind.
func (m *Metrics) CacheWriteFailed(kind string) {
	if m == nil {
		return
	}
	m.cacheWriteErrorTotal.WithLabelValues(kind).Inc()
}

// Updated counts an incremental update by outcome.
func (m *Metrics) Updated(outcome string) {
	if m == nil {
		return
	}
	m.updateTotal.WithLabelValues(outcome).Inc()
}
