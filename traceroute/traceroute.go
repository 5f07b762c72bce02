// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"context"
	"net/netip"
	"sync"

	"github.com/DataDog/datadog-hoptrace/common"
	"github.com/DataDog/datadog-hoptrace/localaddr"
	"github.com/DataDog/datadog-hoptrace/log"
	"github.com/DataDog/datadog-hoptrace/packets"
	"github.com/DataDog/datadog-hoptrace/publicip"
	"github.com/DataDog/datadog-hoptrace/result"
)

// Observer follows a trace run by Traceroute while it progresses
type Observer interface {
	// TraceStarted is called once the target is resolved, before the first probe
	TraceStarted(target Target, params Params)
	// HopDone is called for every hop, in TTL order
	HopDone(hop HopResult)
}

// Traceroute runs complete traces and turns them into result.Results
type Traceroute struct {
	tracer          *Tracer
	publicIPFetcher publicip.Fetcher
	sourceAddrFn    func(dst netip.Addr) (netip.Addr, error)
}

// NewTraceroute returns a Traceroute probing through the system network
func NewTraceroute(opts ...Option) *Traceroute {
	return newTraceroute(NewTracer(packets.SystemNetwork{}, opts...), publicip.NewPublicIPFetcher())
}

func newTraceroute(tracer *Tracer, fetcher publicip.Fetcher) *Traceroute {
	return &Traceroute{
		tracer:          tracer,
		publicIPFetcher: fetcher,
		sourceAddrFn:    localaddr.SourceAddrFor,
	}
}

// RunTraceroute traces params.Hostname to completion
func (t *Traceroute) RunTraceroute(ctx context.Context, params Params) (*result.Results, error) {
	return t.Trace(ctx, params, nil)
}

// Trace traces params.Hostname to completion, reporting progress to observer
// when it is not nil. Cancelling ctx stops the trace early: the hops probed
// so far are returned with the interrupted termination and no error. A
// socket failure mid-trace returns the hops probed so far, with the error
// termination, alongside the error.
func (t *Traceroute) Trace(ctx context.Context, params Params, observer Observer) (*result.Results, error) {
	run, err := t.tracer.Start(ctx, params)
	if err != nil {
		return nil, err
	}
	defer run.Close()

	results := result.NewResults()
	results.Params = resultParams(params)
	results.Destination = result.Destination{
		Hostname: params.Hostname,
		IP:       run.Target().Addr.String(),
	}
	if params.Protocol != common.ProtocolICMP {
		results.Destination.Port = params.Port
	}

	var wg sync.WaitGroup
	var publicIP netip.Addr
	if params.CollectSourcePublicIP {
		log.Trace("collect public ip")
		wg.Add(1)
		go func() {
			defer wg.Done()
			ip, err := t.publicIPFetcher.GetIP(ctx)
			if err != nil {
				log.Debugf("Error getting IP: %s", err)
				return
			}
			publicIP = ip
		}()
	}

	if src, err := t.sourceAddrFn(run.Target().Addr); err != nil {
		log.Debugf("failed to find the source address towards %s: %s", run.Target().Addr, err)
	} else {
		results.Source.IP = src.String()
	}

	if observer != nil {
		observer.TraceStarted(run.Target(), params)
	}
	for run.Next() {
		hop := run.Hop()
		if observer != nil {
			observer.HopDone(hop)
		}
		results.Hops = append(results.Hops, resultHop(hop))
	}
	wg.Wait()

	if publicIP.IsValid() {
		results.Source.PublicIP = publicIP.String()
	}
	results.Termination = run.Termination().String()
	if err := run.Err(); err != nil {
		results.Normalize()
		return results, err
	}
	if params.ReverseDns {
		results.EnrichWithReverseDns(ctx)
	}
	results.Normalize()
	return results, nil
}

func resultParams(params Params) result.Params {
	return result.Params{
		Protocol:               string(params.Protocol),
		Hostname:               params.Hostname,
		Port:                   params.Port,
		MaxTTL:                 params.MaxTTL,
		TimeoutMs:              params.Timeout.Milliseconds(),
		ProbesPerHop:           params.ProbesPerHop,
		MaxConsecutiveTimeouts: params.MaxConsecutiveTimeouts,
	}
}

func resultHop(hop HopResult) *result.Hop {
	h := &result.Hop{
		TTL:     hop.TTL,
		IPs:     make([]string, 0, len(hop.Addrs)),
		Probes:  make([]result.Probe, 0, len(hop.Probes)),
		Reached: hop.Reached,
	}
	for _, addr := range hop.Addrs {
		h.IPs = append(h.IPs, addr.String())
	}
	for _, marker := range hop.Probes {
		probe := result.Probe{Status: marker.Kind.String()}
		if marker.Kind == MarkerReply {
			probe.RTTMs = common.ConvertDurationToMs(marker.RTT)
		}
		h.Probes = append(h.Probes, probe)
	}
	return h
}
