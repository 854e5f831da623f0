// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolve outcome label values.
const (
	outcomeArchive   = "archive"
	outcomeDirectory = "directory"
	outcomeAddon     = "addon"
	outcomeMiss      = "miss"
	outcomeRejected  = "rejected"
)

// Metrics holds Prometheus collectors for one filesystem. A nil *Metrics
// records nothing.
type Metrics struct {
	resolves       *prometheus.CounterVec
	copies         *prometheus.CounterVec
	writes         *prometheus.CounterVec
	archivesLoaded *prometheus.CounterVec
	searchEntries  prometheus.Gauge
	addonPool      prometheus.Gauge
}

// NewMetrics registers filesystem collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		resolves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakfs_resolves_total",
				Help: "Total number of read resolutions by outcome",
			},
			[]string{"outcome"},
		),
		copies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakfs_copies_total",
				Help: "Total number of copy-on-demand operations by result",
			},
			[]string{"result"},
		),
		writes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakfs_writes_total",
				Help: "Total number of files opened for write by mode",
			},
			[]string{"mode"},
		),
		archivesLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakfs_archives_loaded_total",
				Help: "Total number of archives opened during discovery by extension",
			},
			[]string{"ext"},
		),
		searchEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pakfs_search_entries",
				Help: "Number of entries on the active search list",
			},
		),
		addonPool: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pakfs_addon_pool_entries",
				Help: "Number of archives held in the addon pool",
			},
		),
	}
}

func (m *Metrics) resolved(outcome string) {
	if m != nil {
		m.resolves.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) copied(ok bool) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "error"
	}
	m.copies.WithLabelValues(result).Inc()
}

func (m *Metrics) wrote(mode Mode) {
	if m != nil {
		m.writes.WithLabelValues(mode.String()).Inc()
	}
}

func (m *Metrics) archiveLoaded(ext string) {
	if m != nil {
		m.archivesLoaded.WithLabelValues(ext).Inc()
	}
}

// setLists records current list sizes.
func (m *Metrics) setLists(search, pool int) {
	if m != nil {
		m.searchEntries.Set(float64(search))
		m.addonPool.Set(float64(pool))
	}
}
