// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/DataDog/datadog-hoptrace/common"
)

// MarkerKind tells what happened to a probe
type MarkerKind int

const (
	// MarkerReply is a probe answered by a usable ICMP message
	MarkerReply MarkerKind = iota
	// MarkerTimeout is a probe whose read deadline passed
	MarkerTimeout
	// MarkerNoData is a probe that got an unrelated frame or a transport error
	MarkerNoData
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerReply:
		return "reply"
	case MarkerTimeout:
		return "timeout"
	default:
		return "no_data"
	}
}

// ProbeMarker is the per-probe entry of a hop
type ProbeMarker struct {
	Kind MarkerKind
	// RTT is only meaningful for MarkerReply
	RTT time.Duration
}

func (m ProbeMarker) String() string {
	if m.Kind != MarkerReply {
		return "*"
	}
	return fmt.Sprintf("%.2f ms", common.ConvertDurationToMs(m.RTT))
}

// HopResult is what a single TTL produced
type HopResult struct {
	TTL int
	// Addrs are the distinct responders in first-seen order
	Addrs   []netip.Addr
	Probes  []ProbeMarker
	Reached bool
}

func (h *HopResult) addAddr(addr netip.Addr) {
	if !addr.IsValid() || slices.Contains(h.Addrs, addr) {
		return
	}
	h.Addrs = append(h.Addrs, addr)
}

// AddrsString joins the responders with spaces, or returns "*" when nobody answered
func (h HopResult) AddrsString() string {
	if len(h.Addrs) == 0 {
		return "*"
	}
	parts := make([]string, len(h.Addrs))
	for i, addr := range h.Addrs {
		parts[i] = addr.String()
	}
	return strings.Join(parts, " ")
}

// MarkersString joins the probe markers with spaces
func (h HopResult) MarkersString() string {
	parts := make([]string, len(h.Probes))
	for i, m := range h.Probes {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}

// String renders the hop as a console line
func (h HopResult) String() string {
	line := fmt.Sprintf("%-4d %-15s %s", h.TTL, h.AddrsString(), h.MarkersString())
	if h.Reached {
		line += " (target reached)"
	}
	return line
}

func (h HopResult) outcome() HopOutcome {
	timeouts := 0
	for _, m := range h.Probes {
		switch m.Kind {
		case MarkerReply:
			return HopReplied
		case MarkerTimeout:
			timeouts++
		}
	}
	if len(h.Probes) > 0 && timeouts == len(h.Probes) {
		return HopTimedOut
	}
	return HopInconclusive
}
