// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build !linux

package packets

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"golang.org/x/net/icmp"
)

// sourceICMP wraps an x/net/icmp listener. Depending on the platform the
// frames it returns may or may not include the IPv4 header, the FrameParser
// handles both.
type sourceICMP struct {
	conn *icmp.PacketConn
}

var _ Source = &sourceICMP{}

// NewSourceICMP opens a raw ICMP listener on all IPv4 addresses
func NewSourceICMP() (Source, error) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for ICMP: %w", err)
	}
	return &sourceICMP{conn: conn}, nil
}

// SetReadDeadline sets the deadline for the next ReadFrom
func (s *sourceICMP) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// ReadFrom reads one frame
func (s *sourceICMP) ReadFrom(buf []byte) (int, netip.Addr, error) {
	n, peer, err := s.conn.ReadFrom(buf)
	if err != nil {
		return 0, netip.Addr{}, err
	}
	var from netip.Addr
	if ipAddr, ok := peer.(*net.IPAddr); ok {
		from, _ = netip.AddrFromSlice(ipAddr.IP)
		from = from.Unmap()
	}
	return n, from, nil
}

// Close closes the listener
func (s *sourceICMP) Close() error {
	return s.conn.Close()
}

func openSource() (Source, error) {
	return NewSourceICMP()
}
