// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// sinkUDP sends UDP probes from an ephemeral port
type sinkUDP struct {
	conn net.PacketConn
}

var _ Sink = &sinkUDP{}

// NewSinkUDP opens a UDP socket whose outbound TTL is ttl
func NewSinkUDP(ttl uint8) (Sink, error) {
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket: %w", err)
	}
	if err := ipv4.NewPacketConn(conn).SetTTL(int(ttl)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set TTL %d on UDP socket: %w", ttl, err)
	}
	return &sinkUDP{conn: conn}, nil
}

// Send writes payload as a single UDP datagram to dst
func (s *sinkUDP) Send(payload []byte, dst netip.AddrPort) error {
	_, err := s.conn.WriteTo(payload, net.UDPAddrFromAddrPort(dst))
	return err
}

// Close closes the socket
func (s *sinkUDP) Close() error {
	return s.conn.Close()
}

// sinkICMP sends ICMP echo probes. The port of dst is ignored.
type sinkICMP struct {
	conn *icmp.PacketConn
}

var _ Sink = &sinkICMP{}

// NewSinkICMP opens a raw ICMP socket whose outbound TTL is ttl
func NewSinkICMP(ttl uint8) (Sink, error) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("failed to open ICMP socket: %w", err)
	}
	if err := conn.IPv4PacketConn().SetTTL(int(ttl)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set TTL %d on ICMP socket: %w", ttl, err)
	}
	return &sinkICMP{conn: conn}, nil
}

// Send writes the ICMP message in payload to dst
func (s *sinkICMP) Send(payload []byte, dst netip.AddrPort) error {
	_, err := s.conn.WriteTo(payload, &net.IPAddr{IP: dst.Addr().AsSlice()})
	return err
}

// Close closes the socket
func (s *sinkICMP) Close() error {
	return s.conn.Close()
}
