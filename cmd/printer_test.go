// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DataDog/datadog-hoptrace/result"
	"github.com/DataDog/datadog-hoptrace/traceroute"
)

func TestPrinterHops(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf}

	params := traceroute.NewParams("example.com")
	p.TraceStarted(traceroute.Target{Hostname: "example.com", Addr: netip.MustParseAddr("93.184.216.34")}, params)
	p.HopDone(traceroute.HopResult{
		TTL:   1,
		Addrs: []netip.Addr{netip.MustParseAddr("192.0.2.1")},
		Probes: []traceroute.ProbeMarker{
			{Kind: traceroute.MarkerReply, RTT: 1234 * time.Microsecond},
			{Kind: traceroute.MarkerTimeout},
			{Kind: traceroute.MarkerReply, RTT: 2 * time.Millisecond},
		},
	})
	p.HopDone(traceroute.HopResult{
		TTL:    2,
		Probes: []traceroute.ProbeMarker{{Kind: traceroute.MarkerTimeout}, {Kind: traceroute.MarkerNoData}, {Kind: traceroute.MarkerTimeout}},
	})
	p.HopDone(traceroute.HopResult{
		TTL:     3,
		Addrs:   []netip.Addr{netip.MustParseAddr("93.184.216.34")},
		Probes:  []traceroute.ProbeMarker{{Kind: traceroute.MarkerReply, RTT: 15 * time.Millisecond}},
		Reached: true,
	})

	expected := "traceroute to example.com (93.184.216.34), 30 hops max, 2000 ms timeout\n" +
		"\n" +
		"1    192.0.2.1       1.23 ms * 2.00 ms\n" +
		"2    *               * * *\n" +
		"3    93.184.216.34   15.00 ms (target reached)\n"
	assert.Equal(t, expected, buf.String())
}

func TestPrinterFinished(t *testing.T) {
	tests := []struct {
		termination traceroute.Termination
		expected    string
	}{
		{traceroute.TerminationTargetReached, ""},
		{traceroute.TerminationMaxHops, "\nTarget not reached within the maximum number of hops (30).\n"},
		{traceroute.TerminationConsecutiveTimeouts, "Too many consecutive timeouts (10), stopping the trace.\n"},
		{traceroute.TerminationInterrupted, "\nTrace interrupted by user.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.termination.String(), func(t *testing.T) {
			var buf bytes.Buffer
			results := &result.Results{
				Params:      result.Params{MaxTTL: 30, MaxConsecutiveTimeouts: 10},
				Termination: tt.termination.String(),
			}
			(&printer{w: &buf}).Finished(results)
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestPrinterFailed(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "privileges",
			err:      fmt.Errorf("start: %w", &traceroute.PrivilegeError{Err: syscall.EPERM}),
			expected: "Error: raw sockets require elevated privileges, run as root or grant CAP_NET_RAW\n",
		},
		{
			name:     "dns",
			err:      &traceroute.DNSError{Host: "nonexistent.invalid", Err: errors.New("no such host")},
			expected: "Error: could not resolve host nonexistent.invalid\n",
		},
		{
			name:     "other",
			err:      &traceroute.InvalidParamsError{Field: "queries", Err: errors.New("11 is not in [1, 10]")},
			expected: "Error: invalid queries: 11 is not in [1, 10]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			(&printer{w: &buf}).Failed(tt.err)
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}
