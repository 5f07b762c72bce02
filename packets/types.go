// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package packets holds the socket capabilities a trace needs (a raw ICMP
// receive socket and per-hop send sockets) together with the wire helpers to
// build probes and decode the ICMP messages that come back
package packets

import (
	"net/netip"
	"time"

	"github.com/DataDog/datadog-hoptrace/common"
)

//go:generate mockgen -source=types.go -destination=mock_packets.go -package=packets

// Source is the receive capability: a socket bound to ICMP that is shared by
// every probe of a trace
type Source interface {
	// SetReadDeadline bounds the next ReadFrom call. Reads past the deadline
	// fail with an error matching os.ErrDeadlineExceeded.
	SetReadDeadline(t time.Time) error
	// ReadFrom reads one frame into buf and reports who sent it. The frame
	// starts at the IPv4 header when the platform hands it over, otherwise at
	// the ICMP header.
	ReadFrom(buf []byte) (int, netip.Addr, error)
	// Close releases the socket
	Close() error
}

// Sink is the send capability for a single hop. Its outbound TTL is fixed
// when it is opened.
type Sink interface {
	// Send writes payload as one datagram to dst. For UDP sinks payload is the
	// UDP payload, for ICMP sinks it is the whole ICMP message.
	Send(payload []byte, dst netip.AddrPort) error
	// Close releases the socket
	Close() error
}

// Network acquires capabilities
type Network interface {
	// OpenSource acquires the raw ICMP receive socket
	OpenSource() (Source, error)
	// OpenSink acquires a send socket for proto whose outbound TTL is ttl
	OpenSink(proto common.Protocol, ttl uint8) (Sink, error)
}
