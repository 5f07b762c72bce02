// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/DataDog/datadog-hoptrace/result"
	"github.com/DataDog/datadog-hoptrace/traceroute"
)

// printer renders a trace the way traceroute(8) does, one line per hop as
// soon as the hop is done
type printer struct {
	w io.Writer
}

var _ traceroute.Observer = &printer{}

func (p *printer) TraceStarted(target traceroute.Target, params traceroute.Params) {
	fmt.Fprintf(p.w, "traceroute to %s (%s), %d hops max, %d ms timeout\n\n",
		target.Hostname, target.Addr, params.MaxTTL, params.Timeout.Milliseconds())
}

func (p *printer) HopDone(hop traceroute.HopResult) {
	fmt.Fprintln(p.w, hop.String())
}

// Finished prints why the trace stopped. Reaching the target needs no
// comment, the last hop line says it.
func (p *printer) Finished(results *result.Results) {
	switch results.Termination {
	case traceroute.TerminationMaxHops.String():
		fmt.Fprintf(p.w, "\nTarget not reached within the maximum number of hops (%d).\n", results.Params.MaxTTL)
	case traceroute.TerminationConsecutiveTimeouts.String():
		fmt.Fprintf(p.w, "Too many consecutive timeouts (%d), stopping the trace.\n", results.Params.MaxConsecutiveTimeouts)
	case traceroute.TerminationInterrupted.String():
		fmt.Fprintln(p.w, "\nTrace interrupted by user.")
	}
}

// Failed prints a fatal error as a single human readable line
func (p *printer) Failed(err error) {
	var privilegeErr *traceroute.PrivilegeError
	var dnsErr *traceroute.DNSError
	switch {
	case errors.As(err, &privilegeErr):
		fmt.Fprintln(p.w, "Error: raw sockets require elevated privileges, run as root or grant CAP_NET_RAW")
	case errors.As(err, &dnsErr):
		fmt.Fprintf(p.w, "Error: could not resolve host %s\n", dnsErr.Host)
	default:
		fmt.Fprintf(p.w, "Error: %s\n", err)
	}
}
