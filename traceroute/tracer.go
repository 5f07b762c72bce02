// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"context"
	"fmt"
	"math/rand"
	"net/netip"
	"time"

	"github.com/google/gopacket/layers"

	"github.com/DataDog/datadog-hoptrace/common"
	"github.com/DataDog/datadog-hoptrace/log"
	"github.com/DataDog/datadog-hoptrace/packets"
)

// aLongTimeAgo is a read deadline that has already passed
var aLongTimeAgo = time.Unix(1, 0)

// frameBufferSize fits any ICMP message we care about plus its IPv4 header
const frameBufferSize = 1500

// Clock is the source of send and receive timestamps
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// MetricsRecorder is notified of probe and run events
type MetricsRecorder interface {
	ProbeSent(protocol string)
	ProbeAnswered(kind string, rtt time.Duration)
	RunFinished(termination string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ProbeSent(string)                    {}
func (noopMetrics) ProbeAnswered(string, time.Duration) {}
func (noopMetrics) RunFinished(string, time.Duration)   {}

// Tracer starts traces over a packets.Network
type Tracer struct {
	network  packets.Network
	resolver Resolver
	clock    Clock
	metrics  MetricsRecorder
	// newEchoID picks the ICMP identifier of a run
	newEchoID func() uint16
}

// Option configures a Tracer
type Option func(*Tracer)

// WithResolver replaces the DNS resolver
func WithResolver(resolver Resolver) Option {
	return func(t *Tracer) {
		t.resolver = resolver
	}
}

// WithClock replaces the clock used to time probes
func WithClock(clock Clock) Option {
	return func(t *Tracer) {
		t.clock = clock
	}
}

// WithMetrics registers a MetricsRecorder
func WithMetrics(metrics MetricsRecorder) Option {
	return func(t *Tracer) {
		t.metrics = metrics
	}
}

// NewTracer returns a Tracer acquiring its sockets from network
func NewTracer(network packets.Network, opts ...Option) *Tracer {
	t := &Tracer{
		network:  network,
		resolver: defaultResolver,
		clock:    systemClock{},
		metrics:  noopMetrics{},
		newEchoID: func() uint16 {
			return uint16(rand.Intn(1 << 16))
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start validates params, resolves the target and opens the receive socket.
// Hops are then produced one at a time by Run.Next. On error nothing is left
// open.
func (t *Tracer) Start(ctx context.Context, params Params) (*Run, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	target, err := resolveTarget(ctx, t.resolver, params.Hostname)
	if err != nil {
		return nil, err
	}
	log.Debugf("resolved %s to %s", params.Hostname, target.Addr)

	source, err := t.network.OpenSource()
	if err != nil {
		if packets.IsPermissionError(err) {
			return nil, &PrivilegeError{Err: err}
		}
		return nil, &CapabilityError{Op: "open the ICMP receive socket", Err: err}
	}

	r := &Run{
		ctx:     ctx,
		tracer:  t,
		params:  params,
		target:  target,
		source:  source,
		parser:  packets.NewFrameParser(),
		buf:     make([]byte, frameBufferSize),
		state:   NewTraceState(),
		echoID:  t.newEchoID(),
		started: t.clock.Now(),
	}
	r.stopAfterFunc = context.AfterFunc(ctx, func() {
		// unblock a pending read, it's fine if the source is already closed
		_ = source.SetReadDeadline(aLongTimeAgo)
	})
	return r, nil
}

// Run is a trace in progress. It is a finite sequence of hops that can only
// be iterated once:
//
//	for run.Next() {
//		hop := run.Hop()
//	}
//	if err := run.Err(); err != nil { ... }
//
// Run is not safe for concurrent use.
type Run struct {
	ctx    context.Context
	tracer *Tracer
	params Params
	target Target

	source        packets.Source
	stopAfterFunc func() bool
	parser        *packets.FrameParser
	buf           []byte

	state   TraceState
	echoID  uint16
	hop     HopResult
	err     error
	done    bool
	closed  bool
	started time.Time
}

// Target returns the resolved destination
func (r *Run) Target() Target {
	return r.target
}

// Params returns the parameters the run was started with
func (r *Run) Params() Params {
	return r.params
}

// Hop returns the hop produced by the last successful call to Next
func (r *Run) Hop() HopResult {
	return r.hop
}

// Err returns the error that stopped the run, if any. Cancellation is not an error.
func (r *Run) Err() error {
	return r.err
}

// Termination returns why the run stopped, TerminationNone while it is running
func (r *Run) Termination() Termination {
	return r.state.Termination
}

// Next probes the next TTL. It returns false once the trace is over, the
// reason being available through Termination and Err.
func (r *Run) Next() bool {
	if r.done {
		return false
	}
	if r.ctx.Err() != nil {
		r.finish(TerminationInterrupted)
		return false
	}
	if r.state.TTL > r.params.MaxTTL {
		r.finish(TerminationMaxHops)
		return false
	}

	hop, err := r.probeHop(r.state.TTL)
	if err != nil {
		if r.ctx.Err() != nil {
			r.finish(TerminationInterrupted)
			return false
		}
		r.err = err
		r.finish(TerminationError)
		return false
	}

	if hop.Reached {
		r.hop = hop
		r.finish(TerminationTargetReached)
		return true
	}
	if r.state.RecordHop(hop.outcome(), r.params.MaxConsecutiveTimeouts) {
		log.Debugf("giving up after %d consecutive silent hops", r.state.ConsecutiveTimeouts)
		r.finish(TerminationConsecutiveTimeouts)
		return false
	}

	r.hop = hop
	r.state.TTL++
	return true
}

// Close releases the receive socket. It is safe to call more than once and
// after the run finished on its own.
func (r *Run) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.stopAfterFunc()
	return r.source.Close()
}

func (r *Run) finish(termination Termination) {
	r.done = true
	r.state.Termination = termination
	r.tracer.metrics.RunFinished(termination.String(), r.tracer.clock.Now().Sub(r.started))
	if err := r.Close(); err != nil {
		log.Debugf("failed to close the receive socket: %s", err)
	}
}

func (r *Run) probeHop(ttl int) (HopResult, error) {
	sink, err := r.tracer.network.OpenSink(r.params.Protocol, uint8(ttl))
	if err != nil {
		if packets.IsPermissionError(err) {
			return HopResult{}, &PrivilegeError{Err: err}
		}
		return HopResult{}, &CapabilityError{Op: fmt.Sprintf("open the send socket for TTL %d", ttl), Err: err}
	}
	defer sink.Close()

	hop := HopResult{TTL: ttl}
	for i := 0; i < r.params.ProbesPerHop; i++ {
		if err := r.ctx.Err(); err != nil {
			return hop, err
		}
		marker, reached := r.probe(sink, &hop)
		if err := r.ctx.Err(); err != nil {
			return hop, err
		}
		hop.Probes = append(hop.Probes, marker)
		r.tracer.metrics.ProbeAnswered(marker.Kind.String(), marker.RTT)
		if reached {
			hop.Reached = true
			break
		}
	}
	return hop, nil
}

// probe sends one probe and reads one frame. It reports whether the target answered.
func (r *Run) probe(sink packets.Sink, hop *HopResult) (ProbeMarker, bool) {
	noData := ProbeMarker{Kind: MarkerNoData}
	seq := r.state.NextSeq()

	sent := r.tracer.clock.Now()
	payload, dst := r.buildProbe(seq, sent)
	r.tracer.metrics.ProbeSent(string(r.params.Protocol))
	if err := sink.Send(payload, dst); err != nil {
		log.Warnf("TTL %d: failed to send probe %d: %s", hop.TTL, seq, err)
		return noData, false
	}

	if err := r.source.SetReadDeadline(sent.Add(r.params.Timeout)); err != nil {
		log.Warnf("TTL %d: failed to set the read deadline: %s", hop.TTL, err)
		return noData, false
	}
	// the deadline above could have replaced the one set on cancellation
	if r.ctx.Err() != nil {
		return noData, false
	}

	n, from, err := r.source.ReadFrom(r.buf)
	received := r.tracer.clock.Now()
	if err != nil {
		if packets.IsTimeout(err) {
			log.Tracef("TTL %d: probe %d timed out", hop.TTL, seq)
			return ProbeMarker{Kind: MarkerTimeout}, false
		}
		log.Warnf("TTL %d: failed to read reply to probe %d: %s", hop.TTL, seq, err)
		return noData, false
	}

	rtt := received.Sub(sent)
	reply, reached := r.classify(r.buf[:n], from, seq)
	if !reply {
		return noData, false
	}
	if reached {
		hop.addAddr(r.target.Addr)
	} else {
		hop.addAddr(r.sender(from))
	}
	return ProbeMarker{Kind: MarkerReply, RTT: rtt}, reached
}

func (r *Run) buildProbe(seq uint16, sent time.Time) ([]byte, netip.AddrPort) {
	if r.params.Protocol == common.ProtocolICMP {
		return packets.NewEchoRequest(r.echoID, seq, packets.TimestampPayload(sent)), netip.AddrPortFrom(r.target.Addr, 0)
	}
	return []byte{}, netip.AddrPortFrom(r.target.Addr, uint16(r.params.Port))
}

// sender prefers the socket level peer address and falls back on the IPv4 header
func (r *Run) sender(from netip.Addr) netip.Addr {
	if from.IsValid() || !r.parser.HasIPHeader() {
		return from
	}
	addr, _ := common.UnmappedAddrFromSlice(r.parser.IP4.SrcIP)
	return addr
}

// classify decides whether frame answers probe seq. reply is false for
// frames that belong to someone else, reached is true when the target
// itself answered.
func (r *Run) classify(frame []byte, from netip.Addr, seq uint16) (reply bool, reached bool) {
	if err := r.parser.Parse(frame); err != nil {
		log.Debugf("ignoring undecodable frame from %s: %s", from, err)
		return false, false
	}
	sender := r.sender(from)

	switch {
	case r.parser.IsTTLExceeded():
		return r.quotesProbe(seq), false
	case r.parser.IsDestinationUnreachable():
		if sender != r.target.Addr || !r.quotesProbe(seq) {
			return false, false
		}
		return true, true
	case r.parser.IsEchoReply():
		ok := r.params.Protocol == common.ProtocolICMP &&
			sender == r.target.Addr &&
			r.parser.ICMP4.Id == r.echoID &&
			r.parser.ICMP4.Seq == seq
		return ok, ok
	default:
		log.Tracef("ignoring ICMP type %d from %s", r.parser.Type(), sender)
		return false, false
	}
}

// quotesProbe checks that the datagram quoted by an ICMP error is our probe
func (r *Run) quotesProbe(seq uint16) bool {
	dgram, err := r.parser.GetEmbeddedDatagram()
	if err != nil {
		log.Tracef("ignoring ICMP error: %s", err)
		return false
	}
	if dgram.Dst != r.target.Addr {
		return false
	}
	switch r.params.Protocol {
	case common.ProtocolICMP:
		return dgram.Protocol == layers.IPProtocolICMPv4 && dgram.EchoID == r.echoID && dgram.EchoSeq == seq
	default:
		return dgram.Protocol == layers.IPProtocolUDP && dgram.DstPort == uint16(r.params.Port)
	}
}
