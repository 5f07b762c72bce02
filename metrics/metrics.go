// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package metrics exposes probe and trace counters as Prometheus collectors
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "hoptrace"

// Metrics records what tracers do. It implements traceroute.MetricsRecorder.
type Metrics struct {
	probesSent     *prometheus.CounterVec
	probesAnswered *prometheus.CounterVec
	probeRTT       prometheus.Histogram
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

// New initializes the metric collectors. They still need to be registered,
// see Collectors and NewRegistry.
func New() *Metrics {
	return &Metrics{
		probesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_sent_total",
				Help:      "Total number of probes sent, by protocol.",
			},
			[]string{"protocol"},
		),
		probesAnswered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_total",
				Help:      "Total number of probes by outcome: reply, timeout or no_data.",
			},
			[]string{"outcome"},
		),
		probeRTT: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "probe_rtt_seconds",
				Help:      "Round trip time of answered probes in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of finished traces, by termination.",
			},
			[]string{"termination"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of finished traces in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
	}
}

// Collectors returns all metric collectors
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.probesSent,
		m.probesAnswered,
		m.probeRTT,
		m.runs,
		m.runDuration,
	}
}

// NewRegistry returns a registry holding the collectors of m plus the Go
// runtime and process collectors
func NewRegistry(m *Metrics) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry.MustRegister(m.Collectors()...)
	return registry
}

// ProbeSent counts a probe handed to the network
func (m *Metrics) ProbeSent(protocol string) {
	m.probesSent.WithLabelValues(protocol).Inc()
}

// ProbeAnswered counts the outcome of a probe, rtt is only observed for replies
func (m *Metrics) ProbeAnswered(kind string, rtt time.Duration) {
	m.probesAnswered.WithLabelValues(kind).Inc()
	if kind == "reply" {
		m.probeRTT.Observe(rtt.Seconds())
	}
}

// RunFinished counts a finished trace
func (m *Metrics) RunFinished(termination string, duration time.Duration) {
	m.runs.WithLabelValues(termination).Inc()
	m.runDuration.Observe(duration.Seconds())
}
