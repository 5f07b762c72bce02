// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package simnet is an in-memory packets.Network. Replies are scripted per
// TTL and probe, built as real ICMP frames, passed through the receive
// filter of the Linux source and delivered on a fake clock so traces run
// instantly and deterministically.
package simnet

import (
	"errors"
	"net"
	"net/netip"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"golang.org/x/net/bpf"

	"github.com/DataDog/datadog-hoptrace/common"
	"github.com/DataDog/datadog-hoptrace/packets"
	"github.com/DataDog/datadog-hoptrace/testutils"
)

// ReplyKind is what the simulated network does with a probe
type ReplyKind int

const (
	// Silent drops the probe, the read times out
	Silent ReplyKind = iota
	// TimeExceeded is a router dropping the probe on TTL expiry
	TimeExceeded
	// PortUnreachable is the target refusing a UDP probe
	PortUnreachable
	// EchoReply is the target answering an ICMP echo probe
	EchoReply
	// Foreign is a time exceeded message quoting a datagram we did not send
	Foreign
	// SendError makes Sink.Send fail
	SendError
	// ReadError makes the next Source.ReadFrom fail with a non timeout error
	ReadError
	// Redirect is an ICMP redirect from a router, unrelated to the trace
	Redirect
	// EchoRequest is somebody else's ping, dropped by the receive filter
	EchoRequest
)

// ErrSimulated is returned for SendError and ReadError
var ErrSimulated = errors.New("simulated transport failure")

// Reply scripts the answer to one probe
type Reply struct {
	Kind ReplyKind
	From netip.Addr
	RTT  time.Duration
}

// Script returns the reply for the probe-th probe (0 based) sent with ttl
type Script func(ttl uint8, probe int) Reply

// Path scripts a network where hop i (1 based) is routers[i-1], every probe
// is answered after rtt and the last router is the target
func Path(target netip.Addr, protocol common.Protocol, rtt time.Duration, routers ...netip.Addr) Script {
	return func(ttl uint8, _ int) Reply {
		if int(ttl) > len(routers) {
			return Reply{Kind: Silent}
		}
		from := routers[ttl-1]
		if from != target {
			return Reply{Kind: TimeExceeded, From: from, RTT: rtt}
		}
		if protocol == common.ProtocolICMP {
			return Reply{Kind: EchoReply, From: target, RTT: rtt}
		}
		return Reply{Kind: PortUnreachable, From: target, RTT: rtt}
	}
}

// Clock is a manually advanced clock
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to an arbitrary fixed instant
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

// Stats counts what the code under test did with the network
type Stats struct {
	SourcesOpened int
	SourcesClosed int
	SinksOpened   int
	SinksClosed   int
	// TTLs lists the TTL of every sink opened, in order
	TTLs       []uint8
	ProbesSent int
}

type pendingFrame struct {
	data    []byte
	from    netip.Addr
	rtt     time.Duration
	readErr error
}

// Network implements packets.Network
type Network struct {
	t      testing.TB
	Local  netip.Addr
	Clock  *Clock
	Script Script

	// StripIPHeader delivers frames starting at the ICMP header
	StripIPHeader bool
	// OpenSourceErr is returned by OpenSource when set
	OpenSourceErr error
	// OpenSinkErr is called by OpenSink, a non nil error is returned as is
	OpenSinkErr func(ttl uint8) error
	// BeforeRead is called at the start of every Source.ReadFrom
	BeforeRead func(ttl uint8, probe int)

	filter *bpf.VM

	mu       sync.Mutex
	stats    Stats
	probes   map[uint8]int
	pending  []pendingFrame
	deadline time.Time
	lastTTL  uint8
	lastIdx  int
}

var _ packets.Network = &Network{}

// New returns a simulated network driven by script
func New(t testing.TB, script Script) *Network {
	return &Network{
		t:      t,
		Local:  netip.MustParseAddr("10.0.0.2"),
		Clock:  NewClock(),
		Script: script,
		filter: receiveFilter(t),
		probes: make(map[uint8]int),
	}
}

func receiveFilter(t testing.TB) *bpf.VM {
	raw, err := packets.ICMPReplyFilter()
	if err != nil {
		t.Fatalf("failed to assemble the receive filter: %s", err)
	}
	insns, ok := bpf.Disassemble(raw)
	if !ok {
		t.Fatalf("failed to disassemble the receive filter")
	}
	vm, err := bpf.NewVM(insns)
	if err != nil {
		t.Fatalf("failed to load the receive filter: %s", err)
	}
	return vm
}

// filtered reports whether the receive filter drops frame
func (n *Network) filtered(frame []byte) bool {
	kept, err := n.filter.Run(frame)
	if err != nil {
		n.t.Fatalf("receive filter failed: %s", err)
	}
	return kept == 0
}

// Stats returns a snapshot of the counters
func (n *Network) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.stats
	s.TTLs = append([]uint8{}, n.stats.TTLs...)
	return s
}

// OpenSource implements packets.Network
func (n *Network) OpenSource() (packets.Source, error) {
	if n.OpenSourceErr != nil {
		return nil, n.OpenSourceErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stats.SourcesOpened++
	return &source{net: n}, nil
}

// OpenSink implements packets.Network
func (n *Network) OpenSink(_ common.Protocol, ttl uint8) (packets.Sink, error) {
	if n.OpenSinkErr != nil {
		if err := n.OpenSinkErr(ttl); err != nil {
			return nil, err
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stats.SinksOpened++
	n.stats.TTLs = append(n.stats.TTLs, ttl)
	return &sink{net: n, ttl: ttl}, nil
}

type sink struct {
	net    *Network
	ttl    uint8
	closed bool
}

func (s *sink) Send(payload []byte, dst netip.AddrPort) error {
	n := s.net
	n.mu.Lock()
	idx := n.probes[s.ttl]
	n.probes[s.ttl] = idx + 1
	n.stats.ProbesSent++
	n.lastTTL, n.lastIdx = s.ttl, idx
	n.mu.Unlock()

	reply := n.Script(s.ttl, idx)
	if reply.Kind == SendError {
		return ErrSimulated
	}
	frame := n.buildFrame(reply, s.ttl, payload, dst)
	if frame.data == nil && frame.readErr == nil {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, frame)
	return nil
}

func (s *sink) Close() error {
	n := s.net
	n.mu.Lock()
	defer n.mu.Unlock()
	if !s.closed {
		s.closed = true
		n.stats.SinksClosed++
	}
	return nil
}

func (n *Network) buildFrame(reply Reply, ttl uint8, payload []byte, dst netip.AddrPort) pendingFrame {
	isEcho := len(payload) >= packets.EchoHeaderLen && payload[0] == layers.ICMPv4TypeEchoRequest
	var id, seq uint16
	var quoted []byte
	if isEcho {
		id = uint16(payload[4])<<8 | uint16(payload[5])
		seq = uint16(payload[6])<<8 | uint16(payload[7])
		quoted = testutils.QuotedEcho(n.t, n.Local, dst.Addr(), ttl, id, seq)
	} else {
		quoted = testutils.QuotedUDP(n.t, n.Local, dst.Addr(), ttl, dst.Port())
	}

	var data []byte
	switch reply.Kind {
	case TimeExceeded:
		data = testutils.TTLExceeded(n.t, reply.From, n.Local, quoted)
	case PortUnreachable:
		data = testutils.PortUnreachable(n.t, reply.From, n.Local, quoted)
	case EchoReply:
		data = testutils.EchoReply(n.t, reply.From, n.Local, id, seq)
	case Foreign:
		other := testutils.QuotedUDP(n.t, n.Local, netip.MustParseAddr("198.51.100.77"), ttl, 53)
		data = testutils.TTLExceeded(n.t, reply.From, n.Local, other)
	case Redirect:
		typeCode := layers.CreateICMPv4TypeCode(layers.ICMPv4TypeRedirect, layers.ICMPv4CodeHost)
		data = testutils.ICMPFrame(n.t, reply.From, n.Local, typeCode, 0, 0, quoted)
	case EchoRequest:
		typeCode := layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)
		data = testutils.ICMPFrame(n.t, reply.From, n.Local, typeCode, 0x4242, 1, nil)
	case ReadError:
		return pendingFrame{readErr: ErrSimulated, rtt: reply.RTT}
	default:
		return pendingFrame{}
	}
	if n.filtered(data) {
		return pendingFrame{}
	}
	if n.StripIPHeader {
		data = testutils.StripIPHeader(data)
	}
	return pendingFrame{data: data, from: reply.From, rtt: reply.RTT}
}

type source struct {
	net    *Network
	closed bool
}

func (s *source) SetReadDeadline(t time.Time) error {
	n := s.net
	n.mu.Lock()
	defer n.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	n.deadline = t
	return nil
}

func (s *source) ReadFrom(buf []byte) (int, netip.Addr, error) {
	n := s.net
	if n.BeforeRead != nil {
		n.mu.Lock()
		ttl, idx := n.lastTTL, n.lastIdx
		n.mu.Unlock()
		n.BeforeRead(ttl, idx)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if s.closed {
		return 0, netip.Addr{}, net.ErrClosed
	}

	now := n.Clock.Now()
	if !n.deadline.IsZero() && !now.Before(n.deadline) {
		return 0, netip.Addr{}, os.ErrDeadlineExceeded
	}
	if len(n.pending) == 0 {
		n.Clock.set(n.deadline)
		return 0, netip.Addr{}, os.ErrDeadlineExceeded
	}

	frame := n.pending[0]
	n.pending = n.pending[1:]
	if !n.deadline.IsZero() && now.Add(frame.rtt).After(n.deadline) {
		n.Clock.set(n.deadline)
		return 0, netip.Addr{}, os.ErrDeadlineExceeded
	}
	n.Clock.Advance(frame.rtt)
	if frame.readErr != nil {
		return 0, netip.Addr{}, frame.readErr
	}
	return copy(buf, frame.data), frame.from, nil
}

func (s *source) Close() error {
	n := s.net
	n.mu.Lock()
	defer n.mu.Unlock()
	if !s.closed {
		s.closed = true
		n.stats.SourcesClosed++
	}
	return nil
}
