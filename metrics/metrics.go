// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics registers the Prometheus collectors the rest of the
// module reports to. Scraping and exposition are the embedding
// application's concern; this package only owns the registration
// pattern so synctask, realm, and vault have somewhere real to report
// counts without inventing their own wrapper each time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of collectors shared across one node.
type Metrics struct {
	SyncRounds       prometheus.Counter
	SyncFailures     prometheus.Counter
	PendingDepth     prometheus.Gauge
	HeatComputations prometheus.Counter
	CryptoFailures   prometheus.Counter
	EventsAppended   prometheus.Counter
	EventsDelivered  prometheus.Counter
}

// New registers a fresh Metrics set against reg. Passing a nil registry
// is not supported; callers that don't want metrics should use
// prometheus.NewRegistry() and discard it, not pass nil, so that every
// component can assume Metrics is non-nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		SyncRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indra_sync_rounds_total",
			Help: "Total number of sync rounds driven by the sync task.",
		}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indra_sync_failures_total",
			Help: "Total number of sync rounds that failed transiently.",
		}),
		PendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indra_pending_delivery_depth",
			Help: "Sum of pending-delivery queue depths across all realms and peers.",
		}),
		HeatComputations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indra_heat_computations_total",
			Help: "Total number of vault.Heat evaluations.",
		}),
		CryptoFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indra_crypto_failures_total",
			Help: "Total number of signature or decryption failures on inbound envelopes.",
		}),
		EventsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indra_realm_events_appended_total",
			Help: "Total number of interface events appended across all realms.",
		}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indra_realm_events_delivered_total",
			Help: "Total number of interface events acknowledged as delivered.",
		}),
	}

	collectors := []prometheus.Collector{
		m.SyncRounds, m.SyncFailures, m.PendingDepth,
		m.HeatComputations, m.CryptoFailures,
		m.EventsAppended, m.EventsDelivered,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewForTest returns a Metrics backed by a private registry, for use in
// unit tests that don't want to collide with a process-wide default
// registry.
func NewForTest() *Metrics {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}
