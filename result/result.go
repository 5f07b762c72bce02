// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package result holds the JSON representation of a finished trace
package result

import (
	"encoding/base64"
	"math"

	"github.com/google/uuid"
)

// Probe statuses
const (
	StatusReply   = "reply"
	StatusTimeout = "timeout"
	StatusNoData  = "no_data"
)

type (
	// Results is everything produced by a single trace
	Results struct {
		RunID       string      `json:"run_id"`
		Params      Params      `json:"params"`
		Source      Source      `json:"source"`
		Destination Destination `json:"destination"`
		Hops        []*Hop      `json:"hops"`
		Termination string      `json:"termination"`
		Stats       Stats       `json:"stats"`
	}

	// Params echoes the parameters the trace ran with
	Params struct {
		Protocol               string `json:"protocol"`
		Hostname               string `json:"hostname"`
		Port                   int    `json:"port"`
		MaxTTL                 int    `json:"max_ttl"`
		TimeoutMs              int64  `json:"timeout_ms"`
		ProbesPerHop           int    `json:"probes_per_hop"`
		MaxConsecutiveTimeouts int    `json:"max_consecutive_timeouts"`
	}

	// Source describes the local end of the trace
	Source struct {
		IP       string `json:"ip,omitempty"`
		PublicIP string `json:"public_ip,omitempty"`
	}

	// Destination describes the target
	Destination struct {
		Hostname   string   `json:"hostname"`
		IP         string   `json:"ip"`
		Port       int      `json:"port,omitempty"`
		ReverseDns []string `json:"reverse_dns,omitempty"`
	}

	// Hop is one TTL of the trace
	Hop struct {
		TTL     int      `json:"ttl"`
		IPs     []string `json:"ips"`
		Probes  []Probe  `json:"probes"`
		Reached bool     `json:"reached"`
		// ReverseDns maps a responder IP to its PTR names
		ReverseDns map[string][]string `json:"reverse_dns,omitempty"`
	}

	// Probe is the outcome of one probe, RTTMs is only set for replies
	Probe struct {
		Status string  `json:"status"`
		RTTMs  float64 `json:"rtt_ms,omitempty"`
	}

	// Stats summarizes the hops
	Stats struct {
		HopCount    int      `json:"hop_count"`
		ProbesSent  int      `json:"probes_sent"`
		Replies     int      `json:"replies"`
		Timeouts    int      `json:"timeouts"`
		NoData      int      `json:"no_data"`
		LossPercent float64  `json:"loss_percent"`
		RTT         RTTStats `json:"rtt_ms"`
	}

	// RTTStats are computed over replies only
	RTTStats struct {
		Min float64 `json:"min"`
		Avg float64 `json:"avg"`
		Max float64 `json:"max"`
	}
)

// newRunID returns a random UUID, base64 encoded to keep it short
func newRunID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// NewResults returns empty Results with a fresh run ID
func NewResults() *Results {
	return &Results{
		RunID: newRunID(),
		Hops:  []*Hop{},
	}
}

// Normalize computes Stats from the hops. HopCount is the TTL of the last hop
// that had a responder.
func (r *Results) Normalize() {
	var stats Stats
	var rttSum float64
	stats.RTT.Min = math.Inf(1)

	for _, hop := range r.Hops {
		if len(hop.IPs) > 0 {
			stats.HopCount = hop.TTL
		}
		for _, probe := range hop.Probes {
			stats.ProbesSent++
			switch probe.Status {
			case StatusReply:
				stats.Replies++
				rttSum += probe.RTTMs
				stats.RTT.Min = math.Min(stats.RTT.Min, probe.RTTMs)
				stats.RTT.Max = math.Max(stats.RTT.Max, probe.RTTMs)
			case StatusTimeout:
				stats.Timeouts++
			default:
				stats.NoData++
			}
		}
	}

	if stats.Replies == 0 {
		stats.RTT.Min = 0
	} else {
		stats.RTT.Avg = rttSum / float64(stats.Replies)
	}
	if stats.ProbesSent > 0 {
		stats.LossPercent = 100 * float64(stats.ProbesSent-stats.Replies) / float64(stats.ProbesSent)
	}
	r.Stats = stats
}
